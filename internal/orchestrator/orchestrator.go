package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
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

// ErrNothingToRetry is returned by Retry before any intention was processed.
var ErrNothingToRetry = errors.New("no intention processing to retry")

// Orchestrator sequences intention analysis and task materialization.
type Orchestrator struct {
	client    *api.Client
	store     Store
	scheduler Scheduler
	// stagger is set when the orchestrator owns the default scheduler.
	stagger *Stagger
	clock   clock.Clock
	emitter *EventEmitter
	logger  *logging.DebugLogger
	opts    orchestratorOptions

	// mu protects mutable state.
	mu sync.Mutex
	// state is the shared processing state.
	state ProcessingState
	// generation increments on every ProcessIntention; stale settle steps
	// and phase updates from older runs are ignored.
	generation uint64
	// last is the most recent ProcessIntention request, for Retry.
	last *processRequest
	// seq numbers every state change so notifications are delivered in order.
	seq uint64

	// notifyMu serializes notifications; notified is the last delivered seq.
	notifyMu sync.Mutex
	notified uint64
}

type processRequest struct {
	intentionID string
	text        string
	userContext []string
}

// New creates an Orchestrator.
func New(cfg RequiredConfig, opts ...Option) *Orchestrator {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.clock == nil {
		o.clock = clock.Real{}
	}
	if o.emitter == nil {
		o.emitter = NewEventEmitter(DefaultEventBuffer)
	}
	if o.newID == nil {
		o.newID = func() string { return uuid.New().String() }
	}

	orch := &Orchestrator{
		client:    cfg.Client,
		store:     cfg.Store,
		scheduler: o.scheduler,
		clock:     o.clock,
		emitter:   o.emitter,
		logger:    o.logger,
		opts:      o,
		state:     stateFor(PhaseIdle),
	}
	if orch.scheduler == nil {
		orch.stagger = NewStagger(o.clock)
		orch.scheduler = orch.stagger
	}
	return orch
}

// State returns a copy of the current processing state.
func (o *Orchestrator) State() ProcessingState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Events returns the orchestrator's event stream.
func (o *Orchestrator) Events() <-chan OrchestratorEvent {
	return o.emitter.Events()
}

// ProcessIntention analyzes text and materializes the suggested tasks under
// intentionID. It returns once the batch is scheduled; materialization and
// the settle reset continue in the background.
//
// userContext is added to the context already stored on the intention and
// the combined list is sent with the analysis.
//
// A non-nil error means the manual-fallback path was taken: the intention
// is active with the raw input as its title and State().Error is set.
func (o *Orchestrator) ProcessIntention(ctx context.Context, intentionID, text string, userContext []string) error {
	gen := o.begin(intentionID, text, userContext)
	o.logger.Log("[orchestrator] processing intention %s (run %d): %q", intentionID, gen, text)

	if _, err := o.store.UpdateIntention(intentionID, func(in *models.Intention) {
		in.Status = models.IntentionProcessing
		in.OriginalInput = text
		in.UserContext = mergeContext(in.UserContext, userContext)
		userContext = append([]string(nil), in.UserContext...)
		in.UpdatedAt = o.clock.Now()
	}); err != nil {
		return o.fail(gen, intentionID, text, fmt.Errorf("mark intention processing: %w", err))
	}
	o.emit(OrchestratorEvent{Type: EventIntentionUpdated, IntentionID: intentionID, Message: string(models.IntentionProcessing)})

	if err := o.checkRateLimit(); err != nil {
		return o.fail(gen, intentionID, text, err)
	}

	o.setPhase(gen, PhaseRequesting)
	res, err := o.client.AnalyzeIntention(ctx, text, userContext)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		return o.fail(gen, intentionID, text, fmt.Errorf("analyze intention: %w", err))
	}
	if res.Degraded {
		o.logger.Log("[orchestrator] intention %s using fallback analysis: %v", intentionID, res.Cause)
	}
	o.setPhase(gen, PhaseTaskGeneration)

	analysis := res.Analysis
	if _, err := o.store.UpdateIntention(intentionID, func(in *models.Intention) {
		in.Title = analysis.IntentionAnalysis
		in.Description = analysis.IntentionAnalysis
		in.Status = models.IntentionActive
		in.AIProgress = analysis.ProgressEstimate
		in.UpdatedAt = o.clock.Now()
	}); err != nil {
		return o.fail(gen, intentionID, text, fmt.Errorf("store analysis: %w", err))
	}
	o.emit(OrchestratorEvent{Type: EventIntentionUpdated, IntentionID: intentionID, Message: string(models.IntentionActive), Progress: analysis.ProgressEstimate})

	o.setPhase(gen, PhaseMaterializing)
	o.materialize(intentionID, analysis.SuggestedTasks, 0, o.opts.staggerInterval)

	o.setPhase(gen, PhaseComplete)
	o.scheduler.Schedule([]Step{{Delay: o.opts.settleDelay, Run: func() { o.settle(gen) }}})
	return nil
}

// GenerateMoreTasks asks for additional tasks, using existing titles as
// de-duplication context, and schedules them after the existing ones. It
// returns how many tasks were scheduled. The processing state is not touched.
func (o *Orchestrator) GenerateMoreTasks(ctx context.Context, intentionID string) (int, error) {
	in, err := o.store.GetIntention(intentionID)
	if err != nil {
		return 0, fmt.Errorf("load intention: %w", err)
	}
	if err := o.checkRateLimit(); err != nil {
		return 0, err
	}

	res, err := o.client.SuggestTasks(ctx, in.Title, in.TaskTitles())
	if err != nil {
		return 0, fmt.Errorf("suggest tasks: %w", err)
	}
	if res.Degraded {
		o.logger.Log("[orchestrator] suggestions for %s degraded: %v", intentionID, res.Cause)
	}

	o.materialize(intentionID, res.Tasks, len(in.Tasks), o.opts.regenerateInterval)
	return len(res.Tasks), nil
}

// UpdateTaskWithContext revises a task's description and status from new
// user context. Degraded updates are applied like genuine ones.
func (o *Orchestrator) UpdateTaskWithContext(ctx context.Context, taskID, newContext string) (*models.Task, error) {
	task, err := o.store.GetTask(taskID)
	if err != nil {
		return nil, fmt.Errorf("load task: %w", err)
	}
	if err := o.checkRateLimit(); err != nil {
		return nil, err
	}

	res, err := o.client.UpdateTask(ctx, decompose.BriefOf(task), newContext)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}

	updated, err := o.store.UpdateTask(taskID, func(t *models.Task) {
		t.Description = res.Update.UpdatedDescription
		t.Status = res.Update.Status
	})
	if err != nil {
		return nil, fmt.Errorf("store task update: %w", err)
	}
	o.emit(OrchestratorEvent{
		Type:        EventTaskUpdated,
		IntentionID: updated.IntentionID,
		TaskID:      updated.ID,
		TaskTitle:   updated.Title,
		Message:     string(updated.Status),
	})
	return updated, nil
}

// Retry clears the error and re-runs the last ProcessIntention request from
// the start.
func (o *Orchestrator) Retry(ctx context.Context) error {
	o.mu.Lock()
	last := o.last
	o.mu.Unlock()
	if last == nil {
		return ErrNothingToRetry
	}

	o.ClearError()
	return o.ProcessIntention(ctx, last.intentionID, last.text, last.userContext)
}

// ClearError clears ProcessingState.Error.
func (o *Orchestrator) ClearError() {
	o.mu.Lock()
	if o.state.Error == "" {
		o.mu.Unlock()
		return
	}
	o.state.Error = ""
	s, seq := o.state, o.nextSeq()
	o.mu.Unlock()
	o.notify(s, seq)
}

// Wait blocks until every scheduled materialization and settle step ran.
// It only waits when the scheduler supports it.
func (o *Orchestrator) Wait() {
	if w, ok := o.scheduler.(interface{ Wait() }); ok {
		w.Wait()
	}
}

// Close stops the owned scheduler and closes the event stream.
func (o *Orchestrator) Close() {
	if o.stagger != nil {
		o.stagger.Stop()
	}
	o.emitter.Close()
}

// begin starts a new run and returns its generation.
func (o *Orchestrator) begin(intentionID, text string, userContext []string) uint64 {
	o.mu.Lock()
	o.generation++
	gen := o.generation
	o.last = &processRequest{
		intentionID: intentionID,
		text:        text,
		userContext: append([]string(nil), userContext...),
	}
	o.state = stateFor(PhaseAnalyzing)
	s, seq := o.state, o.nextSeq()
	o.mu.Unlock()

	o.notify(s, seq)
	return gen
}

// setPhase moves run gen to phase p. Runs superseded by a newer one are ignored.
func (o *Orchestrator) setPhase(gen uint64, p Phase) {
	o.mu.Lock()
	if gen != o.generation {
		o.mu.Unlock()
		return
	}
	o.state = stateFor(p)
	s, seq := o.state, o.nextSeq()
	o.mu.Unlock()

	o.logger.Log("[orchestrator] run %d: %s (%d%%)", gen, p, s.Progress)
	o.notify(s, seq)
}

// settle returns to idle after a completed run unless a newer run started.
func (o *Orchestrator) settle(gen uint64) {
	o.mu.Lock()
	if gen != o.generation || o.state.Phase != PhaseComplete {
		o.mu.Unlock()
		return
	}
	o.state = stateFor(PhaseIdle)
	s, seq := o.state, o.nextSeq()
	o.mu.Unlock()

	o.notify(s, seq)
}

// fail takes the manual-fallback path and returns cause.
func (o *Orchestrator) fail(gen uint64, intentionID, text string, cause error) error {
	o.logger.Log("[orchestrator] run %d failed, manual fallback: %v", gen, cause)

	if _, err := o.store.UpdateIntention(intentionID, func(in *models.Intention) {
		in.Status = models.IntentionActive
		in.Title = text
		in.Description = decompose.ManualDescription(text)
		in.UpdatedAt = o.clock.Now()
	}); err != nil {
		o.logger.Log("[orchestrator] revert intention %s: %v", intentionID, err)
	} else {
		o.emit(OrchestratorEvent{Type: EventIntentionUpdated, IntentionID: intentionID, Message: string(models.IntentionActive)})
	}

	o.mu.Lock()
	if gen != o.generation {
		o.mu.Unlock()
		return cause
	}
	o.state = stateFor(PhaseIdle)
	o.state.Error = cause.Error()
	s, seq := o.state, o.nextSeq()
	o.mu.Unlock()

	o.notify(s, seq)
	return cause
}

// checkRateLimit returns governor.ErrRateLimited when enforcement is on and
// the client's governor reports the limit reached.
func (o *Orchestrator) checkRateLimit() error {
	if !o.opts.enforceRateLimit {
		return nil
	}
	if g := o.client.Governor(); g != nil && g.RateLimited() {
		return governor.ErrRateLimited
	}
	return nil
}

// materialize schedules one batch creating tasks at i x interval, positioned
// below offset existing tasks.
func (o *Orchestrator) materialize(intentionID string, tasks []decompose.SuggestedTask, offset int, interval time.Duration) {
	if len(tasks) == 0 {
		return
	}

	steps := make([]Step, len(tasks))
	for i, st := range tasks {
		task := &models.Task{
			ID:          o.opts.newID(),
			IntentionID: intentionID,
			Title:       st.Title,
			Description: st.Description,
			Status:      models.TaskStatusSpawning,
			Position:    models.Position{X: TaskColumnX, Y: float64((offset + i) * TaskRowHeight)},
			AIReasoning: st.Reasoning,
		}
		steps[i] = Step{
			Delay: time.Duration(i) * interval,
			Run:   func() { o.addTask(task) },
		}
	}
	o.scheduler.Schedule(steps)
}

func (o *Orchestrator) addTask(task *models.Task) {
	task.CreatedAt = o.clock.Now()
	if err := o.store.AddTask(task); err != nil {
		o.logger.Log("[orchestrator] add task %q to %s: %v", task.Title, task.IntentionID, err)
		return
	}
	o.emit(OrchestratorEvent{
		Type:        EventTaskCreated,
		IntentionID: task.IntentionID,
		TaskID:      task.ID,
		TaskTitle:   task.Title,
	})
}

// nextSeq must be called with mu held.
func (o *Orchestrator) nextSeq() uint64 {
	o.seq++
	return o.seq
}

// notify delivers state number seq to observers and the event stream. A
// state older than one already delivered is dropped, so a settle racing a
// newer run never reports a stale idle.
func (o *Orchestrator) notify(s ProcessingState, seq uint64) {
	o.notifyMu.Lock()
	defer o.notifyMu.Unlock()
	if seq <= o.notified {
		return
	}
	o.notified = seq

	for _, fn := range o.opts.observers {
		fn(s)
	}
	o.emit(OrchestratorEvent{Type: EventProcessingState, State: s, Progress: s.Progress, Message: s.CurrentStep})
}

func (o *Orchestrator) emit(e OrchestratorEvent) {
	if e.Timestamp.IsZero() {
		e.Timestamp = o.clock.Now()
	}
	o.emitter.Emit(e)
}

// mergeContext appends the entries of extra missing from stored. Blank
// entries are dropped.
func mergeContext(stored, extra []string) []string {
	merged := make([]string, 0, len(stored)+len(extra))
	seen := make(map[string]bool, len(stored)+len(extra))
	for _, list := range [][]string{stored, extra} {
		for _, c := range list {
			c = strings.TrimSpace(c)
			if c == "" || seen[c] {
				continue
			}
			seen[c] = true
			merged = append(merged, c)
		}
	}
	if len(merged) == 0 {
		return nil
	}
	return merged
}
