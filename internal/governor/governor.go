// Package governor tracks remote-call resource usage: a rolling request
// window, in-flight count, token and cost accumulators, and a rate-limit flag.
//
// The Governor only reports. Callers that honor RateLimited before issuing a
// call bound their own concurrency; nothing here blocks.
package governor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ShayCichocki/mindcanvas/internal/clock"
	"github.com/ShayCichocki/mindcanvas/pkg/models"
)

// ErrRateLimited is returned by callers that refuse to start a remote call
// while the governor reports the rate limit as reached.
var ErrRateLimited = errors.New("rate limit reached")

const (
	// DefaultWindow is the length of the rolling request window.
	DefaultWindow = 60 * time.Second
	// DefaultMaxRequestsPerMinute is the window ceiling; exceeding it trips the limit.
	DefaultMaxRequestsPerMinute = 60
	// DefaultPruneInterval is how often Run prunes the window.
	DefaultPruneInterval = 10 * time.Second
	// DefaultCostPerToken is the USD rate used for cost estimation.
	DefaultCostPerToken = 0.00003
)

// Governor maintains resource usage bookkeeping for one model client.
type Governor struct {
	// window holds request start times, oldest first.
	window []time.Time
	// current is the number of calls started but not finished.
	current int
	// total counts every call ever started.
	total int
	// tokens is the accumulated token count.
	tokens int64
	// cost is the accumulated cost in USD.
	cost float64
	// rateLimited is set once the window exceeds maxPerWindow.
	rateLimited bool
	// resetTime is when the rate limit is expected to lift.
	resetTime time.Time

	windowLen     time.Duration
	maxPerWindow  int
	pruneInterval time.Duration
	costPerToken  float64
	clock         clock.Clock

	// mu protects mutable state.
	mu sync.Mutex
}

// Option configures a Governor.
type Option func(*Governor)

// WithWindow sets the rolling window length.
func WithWindow(d time.Duration) Option {
	return func(g *Governor) {
		if d > 0 {
			g.windowLen = d
		}
	}
}

// WithMaxRequestsPerMinute sets the window ceiling.
func WithMaxRequestsPerMinute(n int) Option {
	return func(g *Governor) {
		if n > 0 {
			g.maxPerWindow = n
		}
	}
}

// WithPruneInterval sets how often Run prunes the window.
func WithPruneInterval(d time.Duration) Option {
	return func(g *Governor) {
		if d > 0 {
			g.pruneInterval = d
		}
	}
}

// WithCostPerToken sets the USD cost per token.
func WithCostPerToken(rate float64) Option {
	return func(g *Governor) {
		if rate >= 0 {
			g.costPerToken = rate
		}
	}
}

// WithClock injects the time source.
func WithClock(c clock.Clock) Option {
	return func(g *Governor) {
		if c != nil {
			g.clock = c
		}
	}
}

// New creates a Governor with default limits.
func New(opts ...Option) *Governor {
	g := &Governor{
		windowLen:     DefaultWindow,
		maxPerWindow:  DefaultMaxRequestsPerMinute,
		pruneInterval: DefaultPruneInterval,
		costPerToken:  DefaultCostPerToken,
		clock:         clock.Real{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// RecordRequestStart records the start of a remote call and adds tokens to
// the accumulators. It trips the rate limit when the window exceeds its ceiling.
func (g *Governor) RecordRequestStart(tokens int64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	g.pruneLocked(now)
	g.window = append(g.window, now)
	g.current++
	g.total++
	g.addTokensLocked(tokens)

	if len(g.window) > g.maxPerWindow {
		g.rateLimited = true
		g.resetTime = now.Add(g.windowLen)
	}
}

// RecordRequestEnd records the end of a remote call. The in-flight count is
// floored at zero.
func (g *Governor) RecordRequestEnd() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.current > 0 {
		g.current--
	}
}

// RecordTokens adds post-call token usage to the accumulators.
func (g *Governor) RecordTokens(tokens int64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.addTokensLocked(tokens)
}

// addTokensLocked must be called with lock held.
func (g *Governor) addTokensLocked(tokens int64) {
	if tokens <= 0 {
		return
	}
	g.tokens += tokens
	g.cost += float64(tokens) * g.costPerToken
}

// PruneWindow drops timestamps older than the window and lifts the rate
// limit once its reset time has passed and the window is back under the ceiling.
func (g *Governor) PruneWindow() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.pruneLocked(g.clock.Now())
}

// pruneLocked must be called with lock held.
func (g *Governor) pruneLocked(now time.Time) {
	cutoff := now.Add(-g.windowLen)
	keep := 0
	for keep < len(g.window) && g.window[keep].Before(cutoff) {
		keep++
	}
	if keep > 0 {
		g.window = append(g.window[:0], g.window[keep:]...)
	}

	if g.rateLimited && !now.Before(g.resetTime) && len(g.window) <= g.maxPerWindow {
		g.rateLimited = false
		g.resetTime = time.Time{}
	}
}

// RateLimited reports whether the rate limit is currently reached.
func (g *Governor) RateLimited() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.rateLimited
}

// Snapshot returns a copy of the current usage. Later mutations do not
// affect the returned value.
func (g *Governor) Snapshot() models.ResourceUsage {
	g.mu.Lock()
	defer g.mu.Unlock()

	usage := models.ResourceUsage{
		CurrentRequests:   g.current,
		TotalRequests:     g.total,
		RequestsPerMinute: len(g.window),
		TokensUsed:        g.tokens,
		EstimatedCost:     g.cost,
		RateLimitReached:  g.rateLimited,
	}
	if g.rateLimited {
		reset := g.resetTime
		usage.ResetTime = &reset
	}
	return usage
}

// Run prunes the window on a fixed interval until ctx is done, so the rate
// reading decays even without new calls.
func (g *Governor) Run(ctx context.Context) {
	ticker := g.clock.NewTicker(g.pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			g.PruneWindow()
		}
	}
}

// String returns a one-line usage summary.
func (g *Governor) String() string {
	u := g.Snapshot()
	status := "ok"
	if u.RateLimitReached {
		status = "rate-limited"
	}
	return fmt.Sprintf("in-flight=%d total=%d rpm=%d tokens=%d cost=$%.4f %s",
		u.CurrentRequests, u.TotalRequests, u.RequestsPerMinute, u.TokensUsed, u.EstimatedCost, status)
}
