package orchestrator

import "github.com/ShayCichocki/mindcanvas/pkg/models"

// Store is the intention/task persistence the orchestrator mutates.
// internal/state provides the SQLite implementation.
type Store interface {
	GetIntention(id string) (*models.Intention, error)
	// UpdateIntention applies fn to the stored intention and persists it.
	UpdateIntention(id string, fn func(*models.Intention)) (*models.Intention, error)
	// AddTask appends task to its intention.
	AddTask(task *models.Task) error
	GetTask(id string) (*models.Task, error)
	// UpdateTask applies fn to the stored task and persists it.
	UpdateTask(id string, fn func(*models.Task)) (*models.Task, error)
}
