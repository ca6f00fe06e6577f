package models

import "time"

// TaskStatus represents the current state of a task card.
type TaskStatus string

const (
	// TaskStatusSpawning indicates the task was materialized and has not run yet.
	TaskStatusSpawning TaskStatus = "spawning"
	// TaskStatusExecuting indicates the task is being worked on.
	TaskStatusExecuting TaskStatus = "executing"
	// TaskStatusCompleted indicates the task finished (or was force-completed).
	TaskStatusCompleted TaskStatus = "completed"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusSpawning, TaskStatusExecuting, TaskStatusCompleted:
		return true
	default:
		return false
	}
}

// OutputType classifies a single execution output entry.
type OutputType string

const (
	// OutputProgress is a step-by-step progress note.
	OutputProgress OutputType = "progress"
	// OutputResult is the payload produced by the model.
	OutputResult OutputType = "result"
	// OutputError records a failure message.
	OutputError OutputType = "error"
)

// TaskOutput is one append-only entry in a task's execution log.
type TaskOutput struct {
	// ID is the unique identifier for this output.
	ID string `json:"id"`
	// Timestamp is when the output was emitted.
	Timestamp time.Time `json:"timestamp"`
	// Type is the kind of output.
	Type OutputType `json:"type"`
	// Content is the output text.
	Content string `json:"content"`
}

// Task represents one actionable unit derived from an intention.
type Task struct {
	// ID is the unique identifier for this task.
	ID string `json:"id"`
	// IntentionID is the owning intention. Tasks never migrate between intentions.
	IntentionID string `json:"intention_id"`
	// Title is the short description of the task.
	Title string `json:"title"`
	// Description provides detailed information about the task.
	Description string `json:"description,omitempty"`
	// Status is the current state of the task.
	Status TaskStatus `json:"status"`
	// Position is where the task card sits on the canvas.
	Position Position `json:"position"`
	// CreatedAt is when the task was created.
	CreatedAt time.Time `json:"created_at"`
	// AIReasoning explains why the model suggested this task.
	AIReasoning string `json:"ai_reasoning,omitempty"`
	// Progress is the execution progress (0-100).
	Progress int `json:"progress"`
	// CurrentStep describes what the execution is doing right now.
	CurrentStep string `json:"current_step,omitempty"`
	// Outputs is the ordered execution log.
	Outputs []TaskOutput `json:"outputs,omitempty"`
	// ExecutionStarted is when the latest execution began.
	ExecutionStarted *time.Time `json:"execution_started,omitempty"`
	// ExecutionCompleted is when the latest execution ended.
	ExecutionCompleted *time.Time `json:"execution_completed,omitempty"`
}

// LastResult returns the content of the last result output, which is the
// authoritative output of the task. ok is false if there is none.
func (t *Task) LastResult() (content string, ok bool) {
	for i := len(t.Outputs) - 1; i >= 0; i-- {
		if t.Outputs[i].Type == OutputResult {
			return t.Outputs[i].Content, true
		}
	}
	return "", false
}

// Results returns every result output in emission order.
func (t *Task) Results() []TaskOutput {
	var results []TaskOutput
	for _, out := range t.Outputs {
		if out.Type == OutputResult {
			results = append(results, out)
		}
	}
	return results
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	if t.Outputs != nil {
		c.Outputs = append([]TaskOutput(nil), t.Outputs...)
	}
	if t.ExecutionStarted != nil {
		started := *t.ExecutionStarted
		c.ExecutionStarted = &started
	}
	if t.ExecutionCompleted != nil {
		completed := *t.ExecutionCompleted
		c.ExecutionCompleted = &completed
	}
	return &c
}
