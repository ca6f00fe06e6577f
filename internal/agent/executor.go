// Package agent executes tasks: a short sequence of paced progress steps
// followed by one model call producing the task result.
package agent

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/mindcanvas/internal/api"
	"github.com/ShayCichocki/mindcanvas/internal/clock"
	"github.com/ShayCichocki/mindcanvas/internal/decompose"
	"github.com/ShayCichocki/mindcanvas/internal/governor"
	"github.com/ShayCichocki/mindcanvas/internal/logging"
	"github.com/ShayCichocki/mindcanvas/pkg/models"
)

const (
	// DefaultMinStepDelay and DefaultMaxStepDelay bound the pacing delay
	// after each progress step.
	DefaultMinStepDelay = 1 * time.Second
	DefaultMaxStepDelay = 3 * time.Second
	// DefaultTokenEstimate is recorded when the provider reports no usage.
	DefaultTokenEstimate = 500
)

// Steps are the execution steps in order. The last one performs the model call.
var Steps = []string{
	"Analyzing task requirements",
	"Gathering relevant context",
	"Planning execution approach",
	"Working through the task",
	"Generating final result",
}

// ExecutorConfig contains configuration options for the Executor.
type ExecutorConfig struct {
	// Client generates task results. Required.
	Client *api.Client
	// Governor gates and accounts executions. If nil, the client's governor
	// is used, or a fresh one when the client has none.
	Governor *governor.Governor
	// Clock paces the steps. If nil, the wall clock is used.
	Clock clock.Clock
	// MinStepDelay and MaxStepDelay bound the pacing delay. Both zero means
	// the defaults; use DisablePacing to skip the delays.
	MinStepDelay  time.Duration
	MaxStepDelay  time.Duration
	DisablePacing bool
	// Jitter picks a delay in [min, max]. If nil, a uniform random pick is used.
	Jitter func(min, max time.Duration) time.Duration
	// TokenEstimate is recorded when the result call reports no usage.
	TokenEstimate int64
	Logger        *logging.DebugLogger
	// NewID generates output IDs. If nil, UUIDs are used.
	NewID func() string
}

// Executor runs task executions and tracks the ones in flight.
type Executor struct {
	client        *api.Client
	governor      *governor.Governor
	clock         clock.Clock
	minDelay      time.Duration
	maxDelay      time.Duration
	pacing        bool
	jitter        func(min, max time.Duration) time.Duration
	tokenEstimate int64
	logger        *logging.DebugLogger
	newID         func() string

	mu   sync.Mutex
	runs map[string]*run // taskID -> in-flight run
}

// NewExecutor creates a new Executor with the given configuration.
func NewExecutor(cfg ExecutorConfig) *Executor {
	e := &Executor{
		client:        cfg.Client,
		governor:      cfg.Governor,
		clock:         cfg.Clock,
		minDelay:      cfg.MinStepDelay,
		maxDelay:      cfg.MaxStepDelay,
		pacing:        !cfg.DisablePacing,
		jitter:        cfg.Jitter,
		tokenEstimate: cfg.TokenEstimate,
		logger:        cfg.Logger,
		newID:         cfg.NewID,
		runs:          make(map[string]*run),
	}
	if e.governor == nil {
		e.governor = cfg.Client.Governor()
	}
	if e.governor == nil {
		e.governor = governor.New()
	}
	if e.clock == nil {
		e.clock = clock.Real{}
	}
	if e.minDelay == 0 && e.maxDelay == 0 {
		e.minDelay, e.maxDelay = DefaultMinStepDelay, DefaultMaxStepDelay
	}
	if e.maxDelay < e.minDelay {
		e.maxDelay = e.minDelay
	}
	if e.jitter == nil {
		e.jitter = uniformJitter
	}
	if e.tokenEstimate <= 0 {
		e.tokenEstimate = DefaultTokenEstimate
	}
	if e.newID == nil {
		e.newID = func() string { return uuid.New().String() }
	}
	return e
}

func uniformJitter(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int64N(int64(max-min)+1))
}

// Execute runs task to a terminal state, reporting every change to
// onProgress. The returned Execution is the final snapshot.
//
// The error is non-nil when the run failed, including the rate-limit gate
// (governor.ErrRateLimited), and when the task is already running
// (ErrAlreadyRunning, no snapshot). A force-completed run returns nil.
func (e *Executor) Execute(ctx context.Context, task *models.Task, onProgress ProgressFunc) (Execution, error) {
	if task == nil {
		return Execution{}, errors.New("execute: nil task")
	}
	if onProgress == nil {
		onProgress = func(Execution) {}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	r := &run{
		exec: Execution{
			TaskID:    task.ID,
			State:     StateStarting,
			StartedAt: e.clock.Now(),
		},
		cancel:     cancel,
		onProgress: onProgress,
	}
	e.mu.Lock()
	if _, ok := e.runs[task.ID]; ok {
		e.mu.Unlock()
		return Execution{}, ErrAlreadyRunning
	}
	e.runs[task.ID] = r
	e.mu.Unlock()
	defer e.release(task.ID, r)

	e.logger.Log("[agent] executing task %s: %q", task.ID, task.Title)
	r.publish()

	if e.governor.RateLimited() {
		return e.fail(r, governor.ErrRateLimited)
	}

	e.governor.RecordRequestStart(0)
	defer e.governor.RecordRequestEnd()

	last := len(Steps) - 1
	for i, step := range Steps[:last] {
		progress := (i + 1) * 100 / len(Steps)
		output := e.output(models.OutputProgress, step)
		if r.advance(StateRunning, func(x *Execution) {
			x.Progress = progress
			x.CurrentStep = step
			x.Outputs = append(x.Outputs, output)
		}) != nil {
			return r.finished()
		}
		if err := e.pace(runCtx); err != nil {
			if r.terminal() {
				return r.finished()
			}
			return e.fail(r, err)
		}
	}

	finalStep := Steps[last]
	output := e.output(models.OutputProgress, finalStep)
	if r.advance(StateRunning, func(x *Execution) {
		x.CurrentStep = finalStep
		x.Outputs = append(x.Outputs, output)
	}) != nil {
		return r.finished()
	}

	res, err := e.client.GenerateResult(runCtx, decompose.BriefOf(task))
	if r.terminal() {
		// Force-completed while the call was in flight; its result is discarded.
		return r.finished()
	}
	if err != nil {
		return e.fail(r, err)
	}
	if err := runCtx.Err(); err != nil {
		return e.fail(r, err)
	}

	// A fallback result spent nothing beyond what the client reported.
	tokens := res.Tokens
	if tokens <= 0 && !res.Degraded {
		tokens = e.tokenEstimate
	}
	if tokens > 0 {
		e.governor.RecordTokens(tokens)
	}
	if res.Degraded {
		e.logger.Log("[agent] task %s completed with fallback result: %v", task.ID, res.Cause)
	}

	result := e.output(models.OutputResult, res.Text)
	now := e.clock.Now()
	if err := r.advance(StateCompleted, func(x *Execution) {
		x.Progress = 100
		x.CurrentStep = "Complete"
		x.Outputs = append(x.Outputs, result)
		x.CompletedAt = &now
		x.Tokens = tokens
		x.Degraded = res.Degraded
	}); err != nil {
		e.logger.Log("[agent] task %s result discarded: %v", task.ID, err)
		return r.finished()
	}
	e.logger.Log("[agent] task %s completed (%d tokens)", task.ID, tokens)
	return r.finished()
}

// ForceComplete marks the running execution of taskID completed without
// finishing its steps. Any in-flight model call is cancelled and its result
// discarded. It returns ErrNotRunning if no execution is in flight.
func (e *Executor) ForceComplete(taskID string) (Execution, error) {
	e.mu.Lock()
	r, ok := e.runs[taskID]
	e.mu.Unlock()
	if !ok {
		return Execution{}, ErrNotRunning
	}

	now := e.clock.Now()
	output := e.output(models.OutputProgress, "Marked complete manually")
	if err := r.advance(StateCompleted, func(x *Execution) {
		x.Progress = 100
		x.CurrentStep = "Complete"
		x.Outputs = append(x.Outputs, output)
		x.CompletedAt = &now
		x.Forced = true
	}); err != nil {
		return Execution{}, fmt.Errorf("%w: force-complete %s: %w", ErrNotRunning, taskID, err)
	}
	r.cancel()

	e.logger.Log("[agent] task %s force-completed", taskID)
	return r.snapshot(), nil
}

// Running returns a snapshot of the execution in flight for taskID.
func (e *Executor) Running(taskID string) (Execution, bool) {
	e.mu.Lock()
	r, ok := e.runs[taskID]
	e.mu.Unlock()
	if !ok {
		return Execution{}, false
	}
	return r.snapshot(), true
}

// InFlight returns the number of executions in flight.
func (e *Executor) InFlight() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.runs)
}

func (e *Executor) release(taskID string, r *run) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.runs[taskID] == r {
		delete(e.runs, taskID)
	}
}

// fail moves r to failed with an error output and returns the cause.
func (e *Executor) fail(r *run, cause error) (Execution, error) {
	now := e.clock.Now()
	output := e.output(models.OutputError, cause.Error())
	if r.advance(StateFailed, func(x *Execution) {
		x.Outputs = append(x.Outputs, output)
		x.CompletedAt = &now
		x.Error = cause.Error()
	}) != nil {
		return r.finished()
	}
	e.logger.Log("[agent] task %s failed: %v", r.snapshot().TaskID, cause)
	return r.snapshot(), cause
}

func (e *Executor) pace(ctx context.Context) error {
	if !e.pacing {
		return ctx.Err()
	}
	return e.clock.Sleep(ctx, e.jitter(e.minDelay, e.maxDelay))
}

func (e *Executor) output(typ models.OutputType, content string) models.TaskOutput {
	return models.TaskOutput{
		ID:        e.newID(),
		Timestamp: e.clock.Now(),
		Type:      typ,
		Content:   content,
	}
}

// run is one in-flight execution.
type run struct {
	// mu protects exec and serializes onProgress calls.
	mu         sync.Mutex
	exec       Execution
	cancel     context.CancelFunc
	onProgress ProgressFunc
}

// advance moves the run to state `to`, applies fn and publishes the result.
// It returns false when the run already reached a terminal state.
func (r *run) advance(to ExecutionState, fn func(*Execution)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	from := r.exec.State
	if from.Terminal() || (to != from && !CanTransition(from, to)) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	r.exec.State = to
	if fn != nil {
		fn(&r.exec)
	}
	r.onProgress(r.exec.clone())
	return nil
}

func (r *run) publish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onProgress(r.exec.clone())
}

func (r *run) snapshot() Execution {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.exec.clone()
}

func (r *run) terminal() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.exec.State.Terminal()
}

// finished returns the final snapshot of a run that ended elsewhere.
func (r *run) finished() (Execution, error) {
	x := r.snapshot()
	if x.State == StateFailed {
		return x, errors.New(x.Error)
	}
	return x, nil
}
