// Package api is the model client: it sends role-structured prompts to a
// provider, accounts every call with the resource governor, and degrades to
// deterministic fallbacks whenever a call or its reply is unusable.
package api

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ShayCichocki/mindcanvas/internal/decompose"
	"github.com/ShayCichocki/mindcanvas/internal/governor"
	"github.com/ShayCichocki/mindcanvas/internal/logging"
)

const (
	// DefaultTemperature is the sampling temperature when none is configured.
	DefaultTemperature = 0.7
	// DefaultMaxTokens is the completion budget when a prompt sets none.
	DefaultMaxTokens = 2000
)

// Config contains configuration for creating a Client.
type Config struct {
	// Completer performs the remote calls. A nil Completer makes the
	// client unavailable; every entry point then degrades.
	Completer Completer
	// Governor accounts every remote call. If nil, a default one is created.
	Governor *governor.Governor
	// EnableFallback controls whether degraded results are returned silently
	// (true) or together with the cause as an error (false).
	EnableFallback bool
	Temperature    float64
	MaxTokens      int
	// Timeout bounds each remote call. Zero means no extra bound.
	Timeout time.Duration
	Logger  *logging.DebugLogger
}

// Client is the model client used by the orchestrator and executor.
type Client struct {
	completer   Completer
	governor    *governor.Governor
	fallback    bool
	temperature float64
	maxTokens   int
	timeout     time.Duration
	logger      *logging.DebugLogger
}

// AnalysisResult is the outcome of AnalyzeIntention.
type AnalysisResult struct {
	Analysis *decompose.Analysis
	// Degraded is true when Analysis is the fallback.
	Degraded bool
	// Cause is why the result degraded.
	Cause  error
	Tokens int64
}

// SuggestionsResult is the outcome of SuggestTasks.
type SuggestionsResult struct {
	Tasks []decompose.SuggestedTask
	// Dropped lists suggested titles removed as duplicates.
	Dropped  []string
	Degraded bool
	Cause    error
	Tokens   int64
}

// TaskUpdateResult is the outcome of UpdateTask.
type TaskUpdateResult struct {
	Update   *decompose.TaskUpdate
	Degraded bool
	Cause    error
	Tokens   int64
}

// TextResult is the outcome of GenerateResult.
type TextResult struct {
	Text     string
	Degraded bool
	Cause    error
	Tokens   int64
}

// New creates a Client.
func New(cfg Config) *Client {
	g := cfg.Governor
	if g == nil {
		g = governor.New()
	}
	temp := cfg.Temperature
	if temp < 0 {
		temp = DefaultTemperature
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &Client{
		completer:   cfg.Completer,
		governor:    g,
		fallback:    cfg.EnableFallback,
		temperature: temp,
		maxTokens:   maxTokens,
		timeout:     cfg.Timeout,
		logger:      cfg.Logger,
	}
}

// Available reports whether the client can make remote calls.
func (c *Client) Available() bool {
	return c != nil && c.completer != nil
}

// Governor returns the governor accounting this client's calls.
func (c *Client) Governor() *governor.Governor {
	if c == nil {
		return nil
	}
	return c.governor
}

// FallbackEnabled reports whether degraded results are returned without error.
func (c *Client) FallbackEnabled() bool {
	return c != nil && c.fallback
}

// Provider names the configured completer, or "none".
func (c *Client) Provider() string {
	if !c.Available() {
		return "none"
	}
	return c.completer.Name()
}

// AnalyzeIntention asks the model to interpret input and propose 1-5 tasks.
// On any failure the result carries decompose.FallbackAnalysis(input).
// The error is non-nil only when the client is unavailable or fallback is
// disabled; the result is usable either way.
func (c *Client) AnalyzeIntention(ctx context.Context, input string, userContext []string) (AnalysisResult, error) {
	if !c.Available() {
		return AnalysisResult{Analysis: decompose.FallbackAnalysis(input), Degraded: true, Cause: ErrUnavailable}, ErrUnavailable
	}

	comp, err := c.accounted(ctx, decompose.AnalysisPrompt(input, userContext))
	if err == nil {
		var a *decompose.Analysis
		if a, err = decompose.ParseAnalysis(comp.Text); err == nil {
			return AnalysisResult{Analysis: a, Tokens: comp.Tokens}, nil
		}
	}

	res := AnalysisResult{Analysis: decompose.FallbackAnalysis(input), Degraded: true, Cause: err}
	return res, c.degrade("analyze intention", err)
}

// SuggestTasks asks for additional tasks for an intention. Suggestions that
// duplicate existingTitles are dropped. The fallback is an empty list.
func (c *Client) SuggestTasks(ctx context.Context, intentionTitle string, existingTitles []string) (SuggestionsResult, error) {
	if !c.Available() {
		return SuggestionsResult{Tasks: decompose.FallbackSuggestions().NewTasks, Degraded: true, Cause: ErrUnavailable}, ErrUnavailable
	}

	comp, err := c.accounted(ctx, decompose.SuggestionsPrompt(intentionTitle, existingTitles))
	if err == nil {
		var s *decompose.Suggestions
		if s, err = decompose.ParseSuggestions(comp.Text); err == nil {
			kept, dropped := decompose.DedupeSuggestions(existingTitles, s.NewTasks)
			if len(dropped) > 0 {
				c.logger.Log("[api] dropped %d duplicate suggestion(s): %s", len(dropped), strings.Join(dropped, ", "))
			}
			return SuggestionsResult{Tasks: kept, Dropped: dropped, Tokens: comp.Tokens}, nil
		}
	}

	res := SuggestionsResult{Tasks: decompose.FallbackSuggestions().NewTasks, Degraded: true, Cause: err}
	return res, c.degrade("suggest tasks", err)
}

// UpdateTask asks the model to revise a task given new context.
func (c *Client) UpdateTask(ctx context.Context, task decompose.TaskBrief, newContext string) (TaskUpdateResult, error) {
	if !c.Available() {
		return TaskUpdateResult{Update: decompose.FallbackTaskUpdate(task, newContext), Degraded: true, Cause: ErrUnavailable}, ErrUnavailable
	}

	comp, err := c.accounted(ctx, decompose.TaskUpdatePrompt(task, newContext))
	if err == nil {
		var u *decompose.TaskUpdate
		if u, err = decompose.ParseTaskUpdate(comp.Text); err == nil {
			return TaskUpdateResult{Update: u, Tokens: comp.Tokens}, nil
		}
	}

	res := TaskUpdateResult{Update: decompose.FallbackTaskUpdate(task, newContext), Degraded: true, Cause: err}
	return res, c.degrade("update task", err)
}

// GenerateResult asks the model to carry out a task and returns free-form
// text. The call is not accounted here: the caller holds the governor slot
// for the whole execution.
func (c *Client) GenerateResult(ctx context.Context, task decompose.TaskBrief) (TextResult, error) {
	if !c.Available() {
		return TextResult{Text: decompose.FallbackResult(task), Degraded: true, Cause: ErrUnavailable}, ErrUnavailable
	}

	comp, err := c.complete(ctx, decompose.ResultPrompt(task))
	if err == nil {
		return TextResult{Text: strings.TrimSpace(comp.Text), Tokens: comp.Tokens}, nil
	}

	res := TextResult{Text: decompose.FallbackResult(task), Degraded: true, Cause: err}
	return res, c.degrade("generate result", err)
}

// Probe reports whether the provider accepts the configured credential.
// It has no side effects, so repeated calls agree while the credential and
// network are unchanged.
func (c *Client) Probe(ctx context.Context) bool {
	if !c.Available() {
		return false
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	if err := c.completer.Probe(ctx); err != nil {
		c.logger.Log("[api] probe %s failed: %v", c.completer.Name(), err)
		return false
	}
	return true
}

// accounted brackets one remote call with the governor. The end is deferred
// so it pairs with the start on every path, panics included.
func (c *Client) accounted(ctx context.Context, p decompose.Prompt) (*Completion, error) {
	c.governor.RecordRequestStart(0)
	defer c.governor.RecordRequestEnd()

	comp, err := c.complete(ctx, p)
	if err != nil {
		return nil, err
	}
	c.governor.RecordTokens(comp.Tokens)
	return comp, nil
}

// complete performs one remote call and rejects empty replies.
func (c *Client) complete(ctx context.Context, p decompose.Prompt) (*Completion, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	maxTokens := p.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}

	start := time.Now()
	comp, err := c.completer.Complete(ctx, CompletionRequest{
		System:      p.System,
		User:        p.User,
		MaxTokens:   maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		if !errors.Is(err, ErrRemote) {
			err = fmt.Errorf("%w: %w", ErrRemote, err)
		}
		return nil, err
	}
	c.logger.Log("[api] %s replied in %v (%d tokens)", c.completer.Name(), time.Since(start).Round(time.Millisecond), comp.Tokens)

	if strings.TrimSpace(comp.Text) == "" {
		return nil, ErrEmptyPayload
	}
	return comp, nil
}

// degrade logs cause and decides whether it surfaces as an error.
func (c *Client) degrade(op string, cause error) error {
	c.logger.Log("[api] %s degraded to fallback: %v", op, cause)
	if c.fallback {
		return nil
	}
	return fmt.Errorf("%s: %w", op, cause)
}
