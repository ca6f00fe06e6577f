package tui

import (
	"time"

	"github.com/ShayCichocki/mindcanvas/internal/orchestrator"
	"github.com/ShayCichocki/mindcanvas/pkg/models"
)

// IntentionSubmittedMsg is sent when the user submits the input line.
type IntentionSubmittedMsg struct {
	Text string
}

// EventMsg wraps a session event.
type EventMsg struct {
	Event orchestrator.OrchestratorEvent
}

// eventsClosedMsg is sent once the event stream is closed.
type eventsClosedMsg struct{}

// SnapshotMsg carries a fresh read of the backend.
type SnapshotMsg struct {
	Intentions []*models.Intention
	Usage      models.ResourceUsage
	State      orchestrator.ProcessingState
	Err        error
}

// ActionDoneMsg reports the outcome of a user action.
type ActionDoneMsg struct {
	Action string
	Err    error
}

// NoticeMsg adds a line to the activity log from outside the program.
type NoticeMsg struct {
	Message string
	Error   bool
}

// tickMsg drives the periodic resource refresh.
type tickMsg time.Time

// LogEntry is one line of the activity log.
type LogEntry struct {
	Timestamp time.Time
	Message   string
	Error     bool
}
