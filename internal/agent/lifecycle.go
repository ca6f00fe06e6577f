package agent

import (
	"errors"
	"time"

	"github.com/ShayCichocki/mindcanvas/pkg/models"
)

// Common errors for task execution.
var (
	// ErrAlreadyRunning indicates the task already has an execution in flight.
	ErrAlreadyRunning = errors.New("task is already running")
	// ErrNotRunning indicates no execution is in flight for the task.
	ErrNotRunning = errors.New("task is not running")
	// ErrInvalidTransition indicates an invalid state transition was attempted.
	ErrInvalidTransition = errors.New("invalid state transition")
)

// ExecutionState is the state of one task execution.
type ExecutionState string

const (
	StateStarting  ExecutionState = "starting"
	StateRunning   ExecutionState = "running"
	StateCompleted ExecutionState = "completed"
	StateFailed    ExecutionState = "failed"
)

// validTransitions defines the allowed state transitions.
// Key is the current state, value is the set of valid target states.
var validTransitions = map[ExecutionState]map[ExecutionState]bool{
	StateStarting: {
		StateRunning:   true,
		StateCompleted: true,
		StateFailed:    true,
	},
	StateRunning: {
		StateCompleted: true,
		StateFailed:    true,
	},
	// Terminal states: completed and failed cannot transition to anything else
	StateCompleted: {},
	StateFailed:    {},
}

// CanTransition checks if a state transition is valid.
func CanTransition(from, to ExecutionState) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// Terminal reports whether s is completed or failed.
func (s ExecutionState) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// TaskStatus maps an execution state onto the task card status. A failed
// run puts the task back to spawning so it can be run again.
func (s ExecutionState) TaskStatus() models.TaskStatus {
	switch s {
	case StateCompleted:
		return models.TaskStatusCompleted
	case StateFailed:
		return models.TaskStatusSpawning
	default:
		return models.TaskStatusExecuting
	}
}

// Execution is a snapshot of one task execution.
type Execution struct {
	// TaskID is the task being executed.
	TaskID string
	// State is the current state.
	State ExecutionState
	// Progress is 0-100 and never decreases within a run. It reaches 100
	// only when State is completed.
	Progress int
	// CurrentStep names the step in progress.
	CurrentStep string
	// Outputs is the ordered execution log of this run.
	Outputs []models.TaskOutput
	// StartedAt is when the run was initialized.
	StartedAt time.Time
	// CompletedAt is set once the run reaches a terminal state.
	CompletedAt *time.Time
	// Tokens is the usage recorded with the governor for the result call.
	Tokens int64
	// Degraded is true when the result is fallback text.
	Degraded bool
	// Forced is true when ForceComplete ended the run.
	Forced bool
	// Error is the failure message of a failed run.
	Error string
}

// Result returns the content of the last result output, if any.
func (e Execution) Result() (string, bool) {
	for i := len(e.Outputs) - 1; i >= 0; i-- {
		if e.Outputs[i].Type == models.OutputResult {
			return e.Outputs[i].Content, true
		}
	}
	return "", false
}

func (e Execution) clone() Execution {
	e.Outputs = append([]models.TaskOutput(nil), e.Outputs...)
	if e.CompletedAt != nil {
		t := *e.CompletedAt
		e.CompletedAt = &t
	}
	return e
}

// ProgressFunc receives a snapshot after every change of a run, in order.
// It is called synchronously and must not call back into the Executor for
// the same task.
type ProgressFunc func(Execution)
