package governor

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/ShayCichocki/mindcanvas/internal/clock"
)

func newTestGovernor(opts ...Option) (*Governor, *clock.Fake) {
	fc := clock.NewFake(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	return New(append([]Option{WithClock(fc)}, opts...)...), fc
}

func TestGovernor_StartEndPairing(t *testing.T) {
	g, _ := newTestGovernor()

	for i := 0; i < 25; i++ {
		before := g.Snapshot().CurrentRequests
		g.RecordRequestStart(0)
		g.RecordRequestEnd()
		if after := g.Snapshot().CurrentRequests; after != before {
			t.Fatalf("iteration %d: CurrentRequests = %d, want %d", i, after, before)
		}
	}

	if got := g.Snapshot().TotalRequests; got != 25 {
		t.Errorf("TotalRequests = %d, want 25", got)
	}
}

func TestGovernor_PairingSurvivesFailures(t *testing.T) {
	g, _ := newTestGovernor()
	errBoom := errors.New("boom")

	call := func(fail bool) (err error) {
		g.RecordRequestStart(0)
		defer g.RecordRequestEnd()
		if fail {
			return errBoom
		}
		return nil
	}
	panicky := func() {
		defer func() { _ = recover() }()
		g.RecordRequestStart(0)
		defer g.RecordRequestEnd()
		panic("remote exploded")
	}

	for i := 0; i < 10; i++ {
		_ = call(i%2 == 0)
		panicky()
	}

	if got := g.Snapshot().CurrentRequests; got != 0 {
		t.Errorf("CurrentRequests = %d, want 0", got)
	}
}

func TestGovernor_EndFlooredAtZero(t *testing.T) {
	g, _ := newTestGovernor()

	g.RecordRequestEnd()
	g.RecordRequestEnd()

	if got := g.Snapshot().CurrentRequests; got != 0 {
		t.Errorf("CurrentRequests = %d, want 0", got)
	}
}

func TestGovernor_RateLimitTripsAfterCeiling(t *testing.T) {
	g, fc := newTestGovernor()

	for i := 0; i < 60; i++ {
		g.RecordRequestStart(0)
		g.RecordRequestEnd()
		fc.Advance(10 * time.Millisecond)
	}
	if g.RateLimited() {
		t.Fatal("60 requests should not trip the limit")
	}

	g.RecordRequestStart(0)
	g.RecordRequestEnd()

	u := g.Snapshot()
	if !u.RateLimitReached {
		t.Fatal("61 requests within one second should trip the limit")
	}
	if u.RequestsPerMinute != 61 {
		t.Errorf("RequestsPerMinute = %d, want 61", u.RequestsPerMinute)
	}
	if u.ResetTime == nil {
		t.Fatal("ResetTime should be set when rate limited")
	}
	if u.ResetTime.Before(fc.Now()) {
		t.Errorf("ResetTime %v is before now %v", u.ResetTime, fc.Now())
	}
	if want := fc.Now().Add(DefaultWindow); !u.ResetTime.Equal(want) {
		t.Errorf("ResetTime = %v, want %v", u.ResetTime, want)
	}
}

func TestGovernor_WindowDecaysWithoutRequests(t *testing.T) {
	g, fc := newTestGovernor()

	for i := 0; i < 3; i++ {
		g.RecordRequestStart(0)
		fc.Advance(20 * time.Second)
	}
	// Starts at t=0, 20s, 40s; now t=60s.
	g.PruneWindow()
	if got := g.Snapshot().RequestsPerMinute; got != 3 {
		t.Errorf("RequestsPerMinute at 60s = %d, want 3", got)
	}

	fc.Advance(time.Second)
	g.PruneWindow()
	if got := g.Snapshot().RequestsPerMinute; got != 2 {
		t.Errorf("RequestsPerMinute at 61s = %d, want 2", got)
	}

	fc.Advance(time.Minute)
	g.PruneWindow()
	if got := g.Snapshot().RequestsPerMinute; got != 0 {
		t.Errorf("RequestsPerMinute after idle = %d, want 0", got)
	}
}

func TestGovernor_RateLimitLiftsAfterReset(t *testing.T) {
	g, fc := newTestGovernor(WithMaxRequestsPerMinute(2))

	for i := 0; i < 3; i++ {
		g.RecordRequestStart(0)
		g.RecordRequestEnd()
	}
	if !g.RateLimited() {
		t.Fatal("expected rate limit with ceiling 2")
	}

	fc.Advance(30 * time.Second)
	g.PruneWindow()
	if !g.RateLimited() {
		t.Fatal("rate limit lifted before reset time")
	}

	fc.Advance(31 * time.Second)
	g.PruneWindow()
	if g.RateLimited() {
		t.Error("rate limit should lift once reset time passed and window drained")
	}
	if g.Snapshot().ResetTime != nil {
		t.Error("ResetTime should be cleared")
	}
}

func TestGovernor_TokensAndCost(t *testing.T) {
	g, _ := newTestGovernor(WithCostPerToken(0.001))

	g.RecordRequestStart(100)
	g.RecordTokens(400)
	g.RecordTokens(-5)
	g.RecordRequestEnd()

	u := g.Snapshot()
	if u.TokensUsed != 500 {
		t.Errorf("TokensUsed = %d, want 500", u.TokensUsed)
	}
	if math.Abs(u.EstimatedCost-0.5) > 1e-9 {
		t.Errorf("EstimatedCost = %f, want 0.5", u.EstimatedCost)
	}
}

func TestGovernor_SnapshotIsCopy(t *testing.T) {
	g, _ := newTestGovernor(WithMaxRequestsPerMinute(1))
	g.RecordRequestStart(0)
	g.RecordRequestStart(0)

	snap := g.Snapshot()
	reset := *snap.ResetTime
	*snap.ResetTime = reset.Add(time.Hour)
	snap.CurrentRequests = 99

	again := g.Snapshot()
	if again.CurrentRequests != 2 {
		t.Errorf("CurrentRequests = %d, want 2", again.CurrentRequests)
	}
	if !again.ResetTime.Equal(reset) {
		t.Error("mutating a snapshot changed governor state")
	}
}

func TestGovernor_ConcurrentUse(t *testing.T) {
	g := New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.RecordRequestStart(10)
			_ = g.Snapshot()
			g.RecordRequestEnd()
		}()
	}
	wg.Wait()

	u := g.Snapshot()
	if u.CurrentRequests != 0 {
		t.Errorf("CurrentRequests = %d, want 0", u.CurrentRequests)
	}
	if u.TotalRequests != 50 {
		t.Errorf("TotalRequests = %d, want 50", u.TotalRequests)
	}
	if u.TokensUsed != 500 {
		t.Errorf("TokensUsed = %d, want 500", u.TokensUsed)
	}
}

func TestGovernor_RunPrunesPeriodically(t *testing.T) {
	g, fc := newTestGovernor(WithPruneInterval(10 * time.Second))
	g.RecordRequestStart(0)
	g.RecordRequestEnd()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		g.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for fc.Tickers() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("Run did not start its ticker")
		}
		time.Sleep(time.Millisecond)
	}

	// Ticks inside the window keep the request.
	fc.Advance(59 * time.Second)
	time.Sleep(10 * time.Millisecond)
	if got := g.Snapshot().RequestsPerMinute; got != 1 {
		t.Fatalf("RequestsPerMinute before pruning = %d, want 1", got)
	}

	fc.Advance(2 * time.Second)
	for g.Snapshot().RequestsPerMinute != 0 {
		if time.Now().After(deadline) {
			t.Fatal("Run did not prune the window on tick")
		}
		time.Sleep(time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if n := fc.Tickers(); n != 0 {
		t.Errorf("Tickers() = %d after Run returned, want 0", n)
	}
}
