package orchestrator

import (
	"time"

	"github.com/ShayCichocki/mindcanvas/internal/api"
	"github.com/ShayCichocki/mindcanvas/internal/clock"
	"github.com/ShayCichocki/mindcanvas/internal/logging"
)

// Default pacing and layout.
const (
	DefaultStaggerInterval    = 800 * time.Millisecond
	DefaultRegenerateInterval = 500 * time.Millisecond
	DefaultSettleDelay        = 1000 * time.Millisecond
	// TaskColumnX is the x offset of materialized tasks.
	TaskColumnX = 50
	// TaskRowHeight is the vertical spacing between materialized tasks.
	TaskRowHeight = 120
)

// RequiredConfig contains the minimal required configuration for an Orchestrator.
type RequiredConfig struct {
	// Client is the model client. A nil or unavailable client sends every
	// run down the manual-fallback path.
	Client *api.Client
	// Store holds intentions and tasks.
	Store Store
}

// Option configures an Orchestrator. Use With* functions to create Options.
type Option func(*orchestratorOptions)

// orchestratorOptions holds all optional configuration.
type orchestratorOptions struct {
	scheduler          Scheduler
	clock              clock.Clock
	emitter            *EventEmitter
	logger             *logging.DebugLogger
	staggerInterval    time.Duration
	regenerateInterval time.Duration
	settleDelay        time.Duration
	enforceRateLimit   bool
	newID              func() string
	observers          []StateObserver
}

func defaultOptions() orchestratorOptions {
	return orchestratorOptions{
		staggerInterval:    DefaultStaggerInterval,
		regenerateInterval: DefaultRegenerateInterval,
		settleDelay:        DefaultSettleDelay,
		enforceRateLimit:   true,
	}
}

// WithScheduler replaces the default Stagger scheduler.
func WithScheduler(s Scheduler) Option {
	return func(o *orchestratorOptions) { o.scheduler = s }
}

// WithClock sets the clock used for timestamps and the default scheduler.
func WithClock(c clock.Clock) Option {
	return func(o *orchestratorOptions) { o.clock = c }
}

// WithEmitter sets the event emitter shared with other components.
func WithEmitter(e *EventEmitter) Option {
	return func(o *orchestratorOptions) { o.emitter = e }
}

// WithLogger sets the debug logger.
func WithLogger(l *logging.DebugLogger) Option {
	return func(o *orchestratorOptions) { o.logger = l }
}

// WithStaggerInterval sets the spacing between materialized tasks.
func WithStaggerInterval(d time.Duration) Option {
	return func(o *orchestratorOptions) { o.staggerInterval = d }
}

// WithRegenerateInterval sets the spacing used by GenerateMoreTasks.
func WithRegenerateInterval(d time.Duration) Option {
	return func(o *orchestratorOptions) { o.regenerateInterval = d }
}

// WithSettleDelay sets how long the complete state is shown before idle.
func WithSettleDelay(d time.Duration) Option {
	return func(o *orchestratorOptions) { o.settleDelay = d }
}

// WithEnforceRateLimit controls whether a rate-limited governor blocks
// analysis and suggestion calls.
func WithEnforceRateLimit(b bool) Option {
	return func(o *orchestratorOptions) { o.enforceRateLimit = b }
}

// WithIDGenerator sets the task ID generator (uuid by default).
func WithIDGenerator(fn func() string) Option {
	return func(o *orchestratorOptions) { o.newID = fn }
}

// WithStateObserver registers a synchronous ProcessingState callback.
func WithStateObserver(fn StateObserver) Option {
	return func(o *orchestratorOptions) { o.observers = append(o.observers, fn) }
}
