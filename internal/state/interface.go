package state

import (
	"io"

	"github.com/ShayCichocki/mindcanvas/pkg/models"
)

// IntentionStore handles intention persistence.
type IntentionStore interface {
	CreateIntention(in *models.Intention) error
	GetIntention(id string) (*models.Intention, error)
	ListIntentions() ([]*models.Intention, error)
	UpdateIntention(id string, fn func(*models.Intention)) (*models.Intention, error)
	DeleteIntention(id string) error
}

// TaskStore handles task persistence.
type TaskStore interface {
	AddTask(task *models.Task) error
	GetTask(id string) (*models.Task, error)
	UpdateTask(id string, fn func(*models.Task)) (*models.Task, error)
	DeleteTask(id string) error
}

// Migrator handles database schema migrations.
// Separating this allows clients to depend only on migration functionality.
type Migrator interface {
	// Migrate applies all pending schema migrations.
	Migrate() error
}

// StateStore composes the focused store interfaces so callers can work
// with any backend without depending on SQLite.
type StateStore interface {
	io.Closer
	Migrator
	IntentionStore
	TaskStore
}

// Compile-time verification that DB implements all interfaces.
var (
	_ StateStore     = (*DB)(nil)
	_ Migrator       = (*DB)(nil)
	_ IntentionStore = (*DB)(nil)
	_ TaskStore      = (*DB)(nil)
)
