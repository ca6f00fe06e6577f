package api

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ShayCichocki/mindcanvas/internal/decompose"
	"github.com/ShayCichocki/mindcanvas/internal/governor"
	"github.com/ShayCichocki/mindcanvas/pkg/models"
)

// fakeCompleter replies with scripted text, errors or panics.
type fakeCompleter struct {
	mu       sync.Mutex
	text     string
	tokens   int64
	err      error
	panicMsg string
	block    bool
	probeErr error
	requests []CompletionRequest
}

func (f *fakeCompleter) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return &Completion{Text: f.text, Tokens: f.tokens}, nil
}

func (f *fakeCompleter) Probe(context.Context) error { return f.probeErr }

func (f *fakeCompleter) Name() string { return "fake" }

func (f *fakeCompleter) lastRequest(t *testing.T) CompletionRequest {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		t.Fatal("no request recorded")
	}
	return f.requests[len(f.requests)-1]
}

func newTestClient(fc *fakeCompleter, fallback bool) (*Client, *governor.Governor) {
	g := governor.New()
	return New(Config{Completer: fc, Governor: g, EnableFallback: fallback, Temperature: 0.7}), g
}

const validAnalysis = `{
	"intentionAnalysis": "You want to move apartments.",
	"suggestedTasks": [
		{"title": "Book movers", "description": "Get quotes", "reasoning": "They book up"},
		{"title": "Pack", "description": "Box everything", "reasoning": "Needed"}
	],
	"progressEstimate": 20
}`

func TestAnalyzeIntention_Success(t *testing.T) {
	fc := &fakeCompleter{text: validAnalysis, tokens: 321}
	c, g := newTestClient(fc, true)

	res, err := c.AnalyzeIntention(context.Background(), "organize my move", []string{"moving in June"})
	if err != nil {
		t.Fatalf("AnalyzeIntention failed: %v", err)
	}
	if res.Degraded {
		t.Errorf("Degraded = true, cause %v", res.Cause)
	}
	if len(res.Analysis.SuggestedTasks) != 2 {
		t.Errorf("len(SuggestedTasks) = %d, want 2", len(res.Analysis.SuggestedTasks))
	}

	u := g.Snapshot()
	if u.TotalRequests != 1 || u.CurrentRequests != 0 {
		t.Errorf("governor total=%d current=%d, want 1/0", u.TotalRequests, u.CurrentRequests)
	}
	if u.TokensUsed != 321 {
		t.Errorf("TokensUsed = %d, want 321", u.TokensUsed)
	}

	req := fc.lastRequest(t)
	if !strings.Contains(req.User, "moving in June") {
		t.Errorf("user prompt missing context: %q", req.User)
	}
	if req.MaxTokens != DefaultMaxTokens {
		t.Errorf("MaxTokens = %d, want %d", req.MaxTokens, DefaultMaxTokens)
	}
	if req.Temperature != 0.7 {
		t.Errorf("Temperature = %v, want 0.7", req.Temperature)
	}
}

func TestAnalyzeIntention_Degrades(t *testing.T) {
	upstream := errors.New("503 service unavailable")

	tests := []struct {
		name      string
		completer *fakeCompleter
		wantCause error
	}{
		{"remote error", &fakeCompleter{err: upstream}, ErrRemote},
		{"empty payload", &fakeCompleter{text: "   "}, ErrEmptyPayload},
		{"not JSON", &fakeCompleter{text: "I'm sorry, I can't do that."}, decompose.ErrParse},
		{"wrong shape", &fakeCompleter{text: `{"intentionAnalysis":"x","suggestedTasks":[],"progressEstimate":5}`}, decompose.ErrSchema},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := "organize my move to a new apartment"

			c, g := newTestClient(tt.completer, true)
			res, err := c.AnalyzeIntention(context.Background(), input, nil)
			if err != nil {
				t.Fatalf("fallback enabled: err = %v, want nil", err)
			}
			if !res.Degraded || !errors.Is(res.Cause, tt.wantCause) {
				t.Errorf("Degraded=%v Cause=%v, want true/%v", res.Degraded, res.Cause, tt.wantCause)
			}
			want := decompose.FallbackAnalysis(input)
			if res.Analysis.IntentionAnalysis != want.IntentionAnalysis {
				t.Errorf("IntentionAnalysis = %q, want %q", res.Analysis.IntentionAnalysis, want.IntentionAnalysis)
			}
			if n := len(res.Analysis.SuggestedTasks); n != 3 {
				t.Errorf("len(SuggestedTasks) = %d, want 3", n)
			}
			if u := g.Snapshot(); u.CurrentRequests != 0 || u.TotalRequests != 1 {
				t.Errorf("governor total=%d current=%d, want 1/0", u.TotalRequests, u.CurrentRequests)
			}

			strict, _ := newTestClient(tt.completer, false)
			res, err = strict.AnalyzeIntention(context.Background(), input, nil)
			if !errors.Is(err, tt.wantCause) {
				t.Errorf("fallback disabled: err = %v, want %v", err, tt.wantCause)
			}
			if res.Analysis == nil || !res.Degraded {
				t.Error("fallback disabled: degraded value should still be returned")
			}
		})
	}
}

func TestAnalyzeIntention_RemoteErrorKeepsUpstream(t *testing.T) {
	upstream := errors.New("connection reset")
	c, _ := newTestClient(&fakeCompleter{err: upstream}, false)

	_, err := c.AnalyzeIntention(context.Background(), "x", nil)
	if !errors.Is(err, ErrRemote) || !errors.Is(err, upstream) {
		t.Errorf("err = %v, want both ErrRemote and upstream", err)
	}
}

func TestClient_Unavailable(t *testing.T) {
	var nilClient *Client
	noCompleter := New(Config{EnableFallback: true})

	for name, c := range map[string]*Client{"nil client": nilClient, "no completer": noCompleter} {
		t.Run(name, func(t *testing.T) {
			if c.Available() {
				t.Error("Available() = true")
			}
			res, err := c.AnalyzeIntention(context.Background(), "plan a party", nil)
			if !errors.Is(err, ErrUnavailable) {
				t.Errorf("AnalyzeIntention err = %v, want ErrUnavailable", err)
			}
			if res.Analysis == nil || !res.Degraded {
				t.Error("unavailable client should still return the fallback analysis")
			}
			if _, err := c.SuggestTasks(context.Background(), "x", nil); !errors.Is(err, ErrUnavailable) {
				t.Errorf("SuggestTasks err = %v, want ErrUnavailable", err)
			}
			if _, err := c.UpdateTask(context.Background(), decompose.TaskBrief{}, "ctx"); !errors.Is(err, ErrUnavailable) {
				t.Errorf("UpdateTask err = %v, want ErrUnavailable", err)
			}
			if _, err := c.GenerateResult(context.Background(), decompose.TaskBrief{}); !errors.Is(err, ErrUnavailable) {
				t.Errorf("GenerateResult err = %v, want ErrUnavailable", err)
			}
			if c.Probe(context.Background()) {
				t.Error("Probe() = true")
			}
		})
	}
}

func TestClient_PairingSurvivesPanic(t *testing.T) {
	fc := &fakeCompleter{panicMsg: "provider bug"}
	c, g := newTestClient(fc, true)

	for i := 0; i < 3; i++ {
		func() {
			defer func() {
				if r := recover(); r == nil {
					t.Error("expected panic to propagate")
				}
			}()
			_, _ = c.AnalyzeIntention(context.Background(), "x", nil)
		}()
	}

	u := g.Snapshot()
	if u.CurrentRequests != 0 {
		t.Errorf("CurrentRequests = %d, want 0", u.CurrentRequests)
	}
	if u.TotalRequests != 3 {
		t.Errorf("TotalRequests = %d, want 3", u.TotalRequests)
	}
}

func TestClient_Timeout(t *testing.T) {
	fc := &fakeCompleter{block: true}
	c := New(Config{Completer: fc, EnableFallback: false, Timeout: 10 * time.Millisecond})

	_, err := c.UpdateTask(context.Background(), decompose.TaskBrief{Title: "t", Description: "d"}, "ctx")
	if !errors.Is(err, ErrRemote) || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want ErrRemote wrapping DeadlineExceeded", err)
	}
}

func TestSuggestTasks(t *testing.T) {
	fc := &fakeCompleter{text: `{"newTasks":[
		{"title":"Book Movers","description":"d","reasoning":"r"},
		{"title":"Change address","description":"d","reasoning":"r"},
		{"title":"Clean old place","description":"d","reasoning":"r"}
	]}`}
	c, g := newTestClient(fc, true)

	res, err := c.SuggestTasks(context.Background(), "Move", []string{"book movers", "Pack"})
	if err != nil {
		t.Fatalf("SuggestTasks failed: %v", err)
	}
	if len(res.Tasks) != 2 {
		t.Fatalf("len(Tasks) = %d, want 2", len(res.Tasks))
	}
	if len(res.Dropped) != 1 || res.Dropped[0] != "Book Movers" {
		t.Errorf("Dropped = %v, want [Book Movers]", res.Dropped)
	}
	if req := fc.lastRequest(t); req.MaxTokens != 800 {
		t.Errorf("MaxTokens = %d, want 800", req.MaxTokens)
	}
	if g.Snapshot().TotalRequests != 1 {
		t.Error("SuggestTasks should be accounted once")
	}
}

func TestSuggestTasks_FallbackEmpty(t *testing.T) {
	c, _ := newTestClient(&fakeCompleter{text: "no json"}, true)

	res, err := c.SuggestTasks(context.Background(), "Move", nil)
	if err != nil {
		t.Fatalf("SuggestTasks err = %v", err)
	}
	if !res.Degraded || res.Tasks == nil || len(res.Tasks) != 0 {
		t.Errorf("res = %+v, want degraded empty non-nil list", res)
	}
}

func TestUpdateTask(t *testing.T) {
	brief := decompose.TaskBrief{Title: "Pack", Description: "Pack kitchen", Status: models.TaskStatusSpawning}

	c, _ := newTestClient(&fakeCompleter{text: `{"updatedDescription":"Pack kitchen by Friday","status":"executing"}`}, true)
	res, err := c.UpdateTask(context.Background(), brief, "movers Friday")
	if err != nil {
		t.Fatalf("UpdateTask failed: %v", err)
	}
	if res.Update.UpdatedDescription != "Pack kitchen by Friday" || res.Degraded {
		t.Errorf("res = %+v", res)
	}

	c, _ = newTestClient(&fakeCompleter{err: errors.New("down")}, true)
	res, _ = c.UpdateTask(context.Background(), brief, "movers Friday")
	if !res.Degraded {
		t.Fatal("expected degraded result")
	}
	if res.Update.UpdatedDescription != "Pack kitchen (Updated with: movers Friday)" {
		t.Errorf("UpdatedDescription = %q", res.Update.UpdatedDescription)
	}
	if res.Update.Status != models.TaskStatusExecuting {
		t.Errorf("Status = %q, want executing", res.Update.Status)
	}
}

func TestGenerateResult_NotAccounted(t *testing.T) {
	fc := &fakeCompleter{text: "  1. Call three movers\n2. Pick one  ", tokens: 90}
	c, g := newTestClient(fc, true)

	res, err := c.GenerateResult(context.Background(), decompose.TaskBrief{Title: "Book movers", Description: "Get quotes"})
	if err != nil {
		t.Fatalf("GenerateResult failed: %v", err)
	}
	if res.Text != "1. Call three movers\n2. Pick one" {
		t.Errorf("Text = %q", res.Text)
	}
	if res.Tokens != 90 {
		t.Errorf("Tokens = %d, want 90", res.Tokens)
	}
	if u := g.Snapshot(); u.TotalRequests != 0 || u.TokensUsed != 0 {
		t.Errorf("GenerateResult touched the governor: %+v", u)
	}
}

func TestGenerateResult_Degraded(t *testing.T) {
	brief := decompose.TaskBrief{Title: "Book movers", Description: "Get quotes"}

	c, _ := newTestClient(&fakeCompleter{text: ""}, true)
	res, err := c.GenerateResult(context.Background(), brief)
	if err != nil {
		t.Fatalf("err = %v, want nil with fallback", err)
	}
	if !res.Degraded || res.Text != decompose.FallbackResult(brief) {
		t.Errorf("res = %+v", res)
	}

	c, _ = newTestClient(&fakeCompleter{text: ""}, false)
	if _, err := c.GenerateResult(context.Background(), brief); !errors.Is(err, ErrEmptyPayload) {
		t.Errorf("err = %v, want ErrEmptyPayload", err)
	}
}

func TestProbe_Idempotent(t *testing.T) {
	tests := []struct {
		name     string
		probeErr error
		want     bool
	}{
		{"valid credential", nil, true},
		{"rejected credential", errors.New("401"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, g := newTestClient(&fakeCompleter{probeErr: tt.probeErr}, true)
			for i := 0; i < 3; i++ {
				if got := c.Probe(context.Background()); got != tt.want {
					t.Fatalf("Probe() call %d = %v, want %v", i, got, tt.want)
				}
			}
			if g.Snapshot().TotalRequests != 0 {
				t.Error("Probe should not be accounted")
			}
		})
	}
}
