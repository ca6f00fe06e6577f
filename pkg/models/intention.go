// Package models contains the shared data types for mindcanvas.
package models

import "time"

// IntentionStatus represents the lifecycle state of an intention.
type IntentionStatus string

const (
	// IntentionListening indicates the intention is still being captured.
	IntentionListening IntentionStatus = "listening"
	// IntentionProcessing indicates the model is analyzing the intention.
	IntentionProcessing IntentionStatus = "processing"
	// IntentionActive indicates the intention has tasks and can be worked on.
	IntentionActive IntentionStatus = "active"
	// IntentionFulfilled indicates every task is complete.
	IntentionFulfilled IntentionStatus = "fulfilled"
)

// Valid returns true if the status is a known value.
func (s IntentionStatus) Valid() bool {
	switch s {
	case IntentionListening, IntentionProcessing, IntentionActive, IntentionFulfilled:
		return true
	default:
		return false
	}
}

// Position is a point on the canvas.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Intention is a user-declared goal awaiting decomposition into tasks.
type Intention struct {
	// ID is the unique identifier for this intention.
	ID string `json:"id"`
	// Title is the derived short title.
	Title string `json:"title"`
	// OriginalInput is the raw utterance.
	OriginalInput string `json:"original_input"`
	// Description is the derived interpretation.
	Description string `json:"description,omitempty"`
	// Status is the lifecycle state.
	Status IntentionStatus `json:"status"`
	// Position is where the intention card sits on the canvas.
	Position Position `json:"position"`
	// CreatedAt is when the intention was created.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is when the intention was last changed.
	UpdatedAt time.Time `json:"updated_at"`
	// Tasks are the owned tasks in creation order.
	Tasks []*Task `json:"tasks,omitempty"`
	// UserContext is free-text context supplied by the user.
	UserContext []string `json:"user_context,omitempty"`
	// AIProgress is the model's progress estimate (0-100).
	AIProgress int `json:"ai_progress"`
	// CollatedOutput is the aggregated result text, if collated.
	CollatedOutput string `json:"collated_output,omitempty"`
}

// TaskTitles returns the titles of the owned tasks in order.
func (i *Intention) TaskTitles() []string {
	titles := make([]string, 0, len(i.Tasks))
	for _, t := range i.Tasks {
		titles = append(titles, t.Title)
	}
	return titles
}

// AllTasksCompleted reports whether the intention has at least one task
// and every task is completed.
func (i *Intention) AllTasksCompleted() bool {
	if len(i.Tasks) == 0 {
		return false
	}
	for _, t := range i.Tasks {
		if t.Status != TaskStatusCompleted {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the intention including its tasks.
func (i *Intention) Clone() *Intention {
	if i == nil {
		return nil
	}
	c := *i
	if i.UserContext != nil {
		c.UserContext = append([]string(nil), i.UserContext...)
	}
	if i.Tasks != nil {
		c.Tasks = make([]*Task, len(i.Tasks))
		for idx, t := range i.Tasks {
			c.Tasks[idx] = t.Clone()
		}
	}
	return &c
}
