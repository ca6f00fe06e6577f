// Package session wires the governor, model client, store, orchestrator and
// executor of one user session together and exposes the operations the
// CLI and TUI drive.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/mindcanvas/internal/agent"
	"github.com/ShayCichocki/mindcanvas/internal/api"
	"github.com/ShayCichocki/mindcanvas/internal/clock"
	"github.com/ShayCichocki/mindcanvas/internal/config"
	"github.com/ShayCichocki/mindcanvas/internal/export"
	"github.com/ShayCichocki/mindcanvas/internal/governor"
	"github.com/ShayCichocki/mindcanvas/internal/logging"
	"github.com/ShayCichocki/mindcanvas/internal/orchestrator"
	"github.com/ShayCichocki/mindcanvas/internal/state"
	"github.com/ShayCichocki/mindcanvas/internal/transcript"
	"github.com/ShayCichocki/mindcanvas/pkg/models"
)

var _ orchestrator.Store = (*state.DB)(nil)

// ErrClosed is returned by operations on a closed session.
var ErrClosed = errors.New("session closed")

// IntentionColumnX is the x position of new intention cards.
const IntentionColumnX = 400

// Options configures a Session.
type Options struct {
	// Completer performs remote calls. Nil runs the session on fallbacks only.
	Completer      api.Completer
	EnableFallback bool
	Temperature    float64
	MaxTokens      int
	Timeout        time.Duration

	// DBPath is the SQLite file. Empty keeps everything in memory.
	DBPath string

	Governor     []governor.Option
	Orchestrator []orchestrator.Option
	// Executor is copied; Client, Governor, Clock and Logger are filled in.
	Executor agent.ExecutorConfig
	// MaxParallel bounds ExecuteAll. Zero means unbounded.
	MaxParallel int

	Clock  clock.Clock
	Logger *logging.DebugLogger
	// NewID generates intention IDs. If nil, UUIDs are used.
	NewID func() string
}

// OptionsFromConfig builds Options from cfg, creating the provider
// completer when a credential is available. A completer that cannot be
// created is reported as an error alongside Options that still work on
// fallbacks.
func OptionsFromConfig(ctx context.Context, cfg *config.Config, logger *logging.DebugLogger) (Options, error) {
	opts := Options{
		EnableFallback: cfg.App.EnableAIFallback,
		Temperature:    cfg.AI.Temperature,
		MaxTokens:      cfg.AI.MaxTokens,
		Timeout:        cfg.AI.Timeout,
		DBPath:         cfg.App.DBPath,
		Governor: []governor.Option{
			governor.WithWindow(cfg.Governor.Window),
			governor.WithMaxRequestsPerMinute(cfg.Governor.MaxRequestsPerMinute),
			governor.WithPruneInterval(cfg.Governor.PruneInterval),
			governor.WithCostPerToken(cfg.Governor.CostPerToken),
		},
		Orchestrator: []orchestrator.Option{
			orchestrator.WithStaggerInterval(cfg.Orchestrator.StaggerInterval),
			orchestrator.WithRegenerateInterval(cfg.Orchestrator.RegenerateInterval),
			orchestrator.WithSettleDelay(cfg.Orchestrator.SettleDelay),
			orchestrator.WithEnforceRateLimit(cfg.Orchestrator.EnforceRateLimit),
		},
		Executor: agent.ExecutorConfig{
			MinStepDelay:  cfg.Execution.MinStepDelay,
			MaxStepDelay:  cfg.Execution.MaxStepDelay,
			DisablePacing: cfg.Execution.DisablePacing,
			TokenEstimate: cfg.Execution.TokenEstimate,
		},
		MaxParallel: cfg.Execution.MaxParallel,
		Logger:      logger,
	}

	if !config.IsAIAvailable(cfg) {
		logger.Log("[session] no usable credential, running on fallbacks")
		return opts, nil
	}

	key, _ := config.GetAPIKey(cfg)
	completer, err := api.NewCompleter(ctx, api.ProviderConfig{
		Provider:      cfg.AI.Provider,
		APIKey:        key,
		Model:         cfg.AI.Model,
		BaseURL:       cfg.AI.BaseURL,
		UseAWSBedrock: cfg.AI.UseAWSBedrock,
		AWSRegion:     cfg.AI.AWSRegion,
		AWSProfile:    cfg.AI.AWSProfile,
	})
	if err != nil {
		return opts, fmt.Errorf("create completer: %w", err)
	}
	opts.Completer = completer
	return opts, nil
}

// Session is one user session. All methods are safe for concurrent use.
type Session struct {
	clock       clock.Clock
	logger      *logging.DebugLogger
	governor    *governor.Governor
	client      *api.Client
	store       *state.DB
	orch        *orchestrator.Orchestrator
	exec        *agent.Executor
	emitter     *orchestrator.EventEmitter
	newID       func() string
	maxParallel int

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once

	// mu protects closed.
	mu     sync.Mutex
	closed bool
}

// New opens the store and starts the governor's pruning loop.
func New(opts Options) (*Session, error) {
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real{}
	}
	newID := opts.NewID
	if newID == nil {
		newID = func() string { return uuid.New().String() }
	}

	store, err := state.OpenStore(opts.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	gov := governor.New(append([]governor.Option{governor.WithClock(clk)}, opts.Governor...)...)
	client := api.New(api.Config{
		Completer:      opts.Completer,
		Governor:       gov,
		EnableFallback: opts.EnableFallback,
		Temperature:    opts.Temperature,
		MaxTokens:      opts.MaxTokens,
		Timeout:        opts.Timeout,
		Logger:         opts.Logger,
	})

	emitter := orchestrator.NewEventEmitter(orchestrator.DefaultEventBuffer)
	orchOpts := append([]orchestrator.Option{
		orchestrator.WithClock(clk),
		orchestrator.WithEmitter(emitter),
		orchestrator.WithLogger(opts.Logger),
	}, opts.Orchestrator...)
	orch := orchestrator.New(orchestrator.RequiredConfig{Client: client, Store: store}, orchOpts...)

	execCfg := opts.Executor
	execCfg.Client = client
	execCfg.Governor = gov
	if execCfg.Clock == nil {
		execCfg.Clock = clk
	}
	execCfg.Logger = opts.Logger

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		clock:       clk,
		logger:      opts.Logger,
		governor:    gov,
		client:      client,
		store:       store,
		orch:        orch,
		exec:        agent.NewExecutor(execCfg),
		emitter:     emitter,
		newID:       newID,
		maxParallel: opts.MaxParallel,
		cancel:      cancel,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		gov.Run(ctx)
	}()

	s.logger.Log("[session] started (provider=%s, store=%s)", client.Provider(), store.Path())
	return s, nil
}

// Provider names the model provider in use, or "none".
func (s *Session) Provider() string {
	return s.client.Provider()
}

// AIAvailable reports whether remote calls can be made.
func (s *Session) AIAvailable() bool {
	return s.client.Available()
}

// Governor returns the session's resource governor.
func (s *Session) Governor() *governor.Governor {
	return s.governor
}

// ResourceUsage returns a snapshot of the governor's counters.
func (s *Session) ResourceUsage() models.ResourceUsage {
	return s.governor.Snapshot()
}

// ProcessingState returns the shared intention processing state.
func (s *Session) ProcessingState() orchestrator.ProcessingState {
	return s.orch.State()
}

// Events returns the session event stream. It is closed by Close.
func (s *Session) Events() <-chan orchestrator.OrchestratorEvent {
	return s.emitter.Events()
}

// Probe checks provider connectivity.
func (s *Session) Probe(ctx context.Context) bool {
	return s.client.Probe(ctx)
}

// CreateIntention adds a listening intention holding text, placed below
// the existing intentions.
func (s *Session) CreateIntention(text string) (*models.Intention, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	existing, err := s.store.ListIntentions()
	if err != nil {
		return nil, fmt.Errorf("list intentions: %w", err)
	}

	now := s.clock.Now()
	in := &models.Intention{
		ID:            s.newID(),
		Title:         text,
		OriginalInput: text,
		Status:        models.IntentionListening,
		Position:      models.Position{X: IntentionColumnX, Y: float64(len(existing) * orchestrator.TaskRowHeight)},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.CreateIntention(in); err != nil {
		return nil, fmt.Errorf("create intention: %w", err)
	}
	s.emitter.Emit(orchestrator.OrchestratorEvent{
		Type:        orchestrator.EventIntentionUpdated,
		IntentionID: in.ID,
		Message:     string(in.Status),
		Timestamp:   now,
	})
	return in, nil
}

// Submit creates an intention for text and processes it. The intention is
// returned even when processing took the manual-fallback path.
func (s *Session) Submit(ctx context.Context, text string, userContext []string) (*models.Intention, error) {
	in, err := s.CreateIntention(text)
	if err != nil {
		return nil, err
	}
	procErr := s.ProcessIntention(ctx, in.ID, text, userContext)
	if latest, err := s.store.GetIntention(in.ID); err == nil {
		in = latest
	}
	return in, procErr
}

// ProcessIntention analyzes text and materializes tasks under intentionID.
func (s *Session) ProcessIntention(ctx context.Context, intentionID, text string, userContext []string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	return s.orch.ProcessIntention(ctx, intentionID, text, userContext)
}

// GenerateMoreTasks schedules additional tasks for an intention.
func (s *Session) GenerateMoreTasks(ctx context.Context, intentionID string) (int, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	return s.orch.GenerateMoreTasks(ctx, intentionID)
}

// UpdateTaskWithContext revises a task from new user context.
func (s *Session) UpdateTaskWithContext(ctx context.Context, taskID, newContext string) (*models.Task, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	return s.orch.UpdateTaskWithContext(ctx, taskID, newContext)
}

// AddUserContext appends free-text context to an intention. The next
// ProcessIntention or Retry for the intention sends it with the analysis.
func (s *Session) AddUserContext(intentionID, text string) (*models.Intention, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return s.store.GetIntention(intentionID)
	}
	return s.store.UpdateIntention(intentionID, func(in *models.Intention) {
		in.UserContext = append(in.UserContext, text)
		in.UpdatedAt = s.clock.Now()
	})
}

// Retry re-runs the last intention processing.
func (s *Session) Retry(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	return s.orch.Retry(ctx)
}

// ClearError clears the processing error.
func (s *Session) ClearError() {
	s.orch.ClearError()
}

// Collate stores the collated results of an intention's tasks.
func (s *Session) Collate(intentionID string) (*models.Intention, error) {
	return s.orch.Collate(intentionID)
}

// SetCollatedOutput stores edited collated output.
func (s *Session) SetCollatedOutput(intentionID, output string) (*models.Intention, error) {
	return s.orch.SetCollatedOutput(intentionID, output)
}

// Fulfill marks an intention fulfilled.
func (s *Session) Fulfill(intentionID string) (*models.Intention, error) {
	return s.orch.Fulfill(intentionID)
}

// Intentions returns every intention with its tasks, oldest first.
func (s *Session) Intentions() ([]*models.Intention, error) {
	return s.store.ListIntentions()
}

// Intention returns one intention with its tasks.
func (s *Session) Intention(id string) (*models.Intention, error) {
	return s.store.GetIntention(id)
}

// Task returns one task.
func (s *Session) Task(id string) (*models.Task, error) {
	return s.store.GetTask(id)
}

// DeleteIntention removes an intention and its tasks.
func (s *Session) DeleteIntention(id string) error {
	return s.store.DeleteIntention(id)
}

// Running reports whether taskID has an execution in flight.
func (s *Session) Running(taskID string) bool {
	_, ok := s.exec.Running(taskID)
	return ok
}

// Export writes intentions in opts.Format.
func (s *Session) Export(w io.Writer, opts export.Options) error {
	intentions, err := s.store.ListIntentions()
	if err != nil {
		return fmt.Errorf("list intentions: %w", err)
	}
	if opts.Now.IsZero() {
		opts.Now = s.clock.Now()
	}
	return export.Write(w, intentions, opts)
}

// Listen turns transcript events into intentions until src is exhausted or
// ctx is done. The first event of an utterance creates a listening
// intention, interim events update it and the final event processes it.
// Processing failures take the manual-fallback path and do not stop
// listening.
func (s *Session) Listen(ctx context.Context, src transcript.Source) error {
	var current *models.Intention
	for {
		ev, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		if current == nil {
			if current, err = s.CreateIntention(ev.Text); err != nil {
				return err
			}
		} else if !ev.IsFinal {
			if _, err := s.store.UpdateIntention(current.ID, func(in *models.Intention) {
				in.Title = ev.Text
				in.OriginalInput = ev.Text
				in.UpdatedAt = s.clock.Now()
			}); err != nil {
				return fmt.Errorf("update listening intention: %w", err)
			}
			s.emitter.Emit(orchestrator.OrchestratorEvent{
				Type:        orchestrator.EventIntentionUpdated,
				IntentionID: current.ID,
				Message:     string(models.IntentionListening),
			})
		}

		if ev.IsFinal {
			if err := s.ProcessIntention(ctx, current.ID, ev.Text, nil); err != nil {
				if errors.Is(err, ErrClosed) {
					return err
				}
				s.logger.Log("[session] intention %s processed manually: %v", current.ID, err)
			}
			current = nil
		}
	}
}

// Wait blocks until scheduled task materialization finished.
func (s *Session) Wait() {
	s.orch.Wait()
}

// Close stops background work, closes the event stream and the store.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		s.cancel()
		s.wg.Wait()
		s.orch.Close()
		err = s.store.Close()
		s.logger.Log("[session] closed (%s)", s.governor)
	})
	return err
}

func (s *Session) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}
