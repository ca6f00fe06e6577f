package orchestrator

import (
	"time"

	"github.com/ShayCichocki/mindcanvas/pkg/models"
)

// EventType represents the type of orchestrator event.
type EventType string

const (
	// EventProcessingState indicates the shared ProcessingState changed.
	EventProcessingState EventType = "processing_state"
	// EventIntentionUpdated indicates an intention's fields changed.
	EventIntentionUpdated EventType = "intention_updated"
	// EventIntentionFulfilled indicates every task of an intention completed.
	EventIntentionFulfilled EventType = "intention_fulfilled"
	// EventTaskCreated indicates a task was materialized.
	EventTaskCreated EventType = "task_created"
	// EventTaskUpdated indicates a task's description or status changed.
	EventTaskUpdated EventType = "task_updated"
	// EventTaskProgress provides execution progress for a task.
	EventTaskProgress EventType = "task_progress"
	// EventTaskCompleted indicates a task execution completed.
	EventTaskCompleted EventType = "task_completed"
	// EventTaskFailed indicates a task execution failed.
	EventTaskFailed EventType = "task_failed"
	// EventUsage carries a resource usage snapshot.
	EventUsage EventType = "usage"
)

// OrchestratorEvent represents an event emitted by the orchestrator or the
// session around it. These events are used to update the TUI.
type OrchestratorEvent struct {
	// Type is the kind of event.
	Type EventType
	// IntentionID is the ID of the related intention, if applicable.
	IntentionID string
	// TaskID is the ID of the related task, if applicable.
	TaskID string
	// TaskTitle is the title of the related task, if applicable.
	TaskTitle string
	// Message provides additional context about the event.
	Message string
	// Progress is task progress for task events, overall progress for
	// processing-state events.
	Progress int
	// State is a copy of the processing state for EventProcessingState.
	State ProcessingState
	// Usage is the governor snapshot for EventUsage.
	Usage *models.ResourceUsage
	// Error contains error details for failure events.
	Error error
	// Timestamp is when the event occurred.
	Timestamp time.Time
}
