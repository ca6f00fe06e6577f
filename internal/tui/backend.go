package tui

import (
	"context"

	"github.com/ShayCichocki/mindcanvas/internal/agent"
	"github.com/ShayCichocki/mindcanvas/internal/orchestrator"
	"github.com/ShayCichocki/mindcanvas/pkg/models"
)

// Backend is the session surface the dashboard drives.
// *session.Session implements it.
type Backend interface {
	Submit(ctx context.Context, text string, userContext []string) (*models.Intention, error)
	ExecuteTask(ctx context.Context, taskID string, onProgress agent.ProgressFunc) (agent.Execution, error)
	ExecuteAll(ctx context.Context, intentionID string) error
	ForceComplete(taskID string) (*models.Task, error)
	GenerateMoreTasks(ctx context.Context, intentionID string) (int, error)
	Collate(intentionID string) (*models.Intention, error)
	SetCollatedOutput(intentionID, output string) (*models.Intention, error)
	Fulfill(intentionID string) (*models.Intention, error)
	UpdateTaskWithContext(ctx context.Context, taskID, newContext string) (*models.Task, error)
	AddUserContext(intentionID, text string) (*models.Intention, error)
	Retry(ctx context.Context) error
	Intentions() ([]*models.Intention, error)
	ResourceUsage() models.ResourceUsage
	ProcessingState() orchestrator.ProcessingState
	Events() <-chan orchestrator.OrchestratorEvent
	Provider() string
}
