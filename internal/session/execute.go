package session

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/ShayCichocki/mindcanvas/internal/agent"
	"github.com/ShayCichocki/mindcanvas/internal/orchestrator"
	"github.com/ShayCichocki/mindcanvas/pkg/models"
)

// ForcedOutput is the log entry added when a task is completed by hand.
const ForcedOutput = "Marked complete manually"

// ExecuteTask runs the task to a terminal state. Every snapshot is mirrored
// into the store and published as an event before onProgress (which may be
// nil) sees it.
func (s *Session) ExecuteTask(ctx context.Context, taskID string, onProgress agent.ProgressFunc) (agent.Execution, error) {
	if err := s.checkOpen(); err != nil {
		return agent.Execution{}, err
	}
	task, err := s.store.GetTask(taskID)
	if err != nil {
		return agent.Execution{}, fmt.Errorf("load task: %w", err)
	}

	x, err := s.exec.Execute(ctx, task, func(x agent.Execution) {
		s.mirror(task, x)
		if onProgress != nil {
			onProgress(x)
		}
	})

	usage := s.governor.Snapshot()
	s.emitter.Emit(orchestrator.OrchestratorEvent{
		Type:        orchestrator.EventUsage,
		IntentionID: task.IntentionID,
		TaskID:      task.ID,
		Usage:       &usage,
		Timestamp:   s.clock.Now(),
	})
	return x, err
}

// mirror writes an execution snapshot to the task and publishes it.
func (s *Session) mirror(task *models.Task, x agent.Execution) {
	started := x.StartedAt
	if _, err := s.store.UpdateTask(task.ID, func(t *models.Task) {
		t.Status = x.State.TaskStatus()
		t.Progress = x.Progress
		t.CurrentStep = x.CurrentStep
		t.Outputs = x.Outputs
		t.ExecutionStarted = &started
		t.ExecutionCompleted = x.CompletedAt
	}); err != nil {
		s.logger.Log("[session] mirror execution of %s: %v", task.ID, err)
	}

	e := orchestrator.OrchestratorEvent{
		IntentionID: task.IntentionID,
		TaskID:      task.ID,
		TaskTitle:   task.Title,
		Progress:    x.Progress,
		Message:     x.CurrentStep,
		Timestamp:   s.clock.Now(),
	}
	switch x.State {
	case agent.StateCompleted:
		e.Type = orchestrator.EventTaskCompleted
	case agent.StateFailed:
		e.Type = orchestrator.EventTaskFailed
		e.Error = errors.New(x.Error)
		e.Message = x.Error
	default:
		e.Type = orchestrator.EventTaskProgress
	}
	s.emitter.Emit(e)
}

// ForceComplete marks a task completed. A running execution is stopped;
// a task that is not running is completed directly in the store.
func (s *Session) ForceComplete(taskID string) (*models.Task, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	if _, err := s.exec.ForceComplete(taskID); err == nil {
		return s.store.GetTask(taskID)
	} else if !errors.Is(err, agent.ErrNotRunning) {
		return nil, err
	}

	now := s.clock.Now()
	var already bool
	task, err := s.store.UpdateTask(taskID, func(t *models.Task) {
		if t.Status == models.TaskStatusCompleted {
			already = true
			return
		}
		t.Status = models.TaskStatusCompleted
		t.Progress = 100
		t.CurrentStep = "Complete"
		t.Outputs = append(t.Outputs, models.TaskOutput{
			ID:        s.newID(),
			Timestamp: now,
			Type:      models.OutputProgress,
			Content:   ForcedOutput,
		})
		t.ExecutionCompleted = &now
	})
	if err != nil {
		return nil, fmt.Errorf("complete task: %w", err)
	}
	if !already {
		s.emitter.Emit(orchestrator.OrchestratorEvent{
			Type:        orchestrator.EventTaskCompleted,
			IntentionID: task.IntentionID,
			TaskID:      task.ID,
			TaskTitle:   task.Title,
			Progress:    100,
			Message:     ForcedOutput,
			Timestamp:   now,
		})
	}
	return task, nil
}

// ExecuteAll runs every task of the intention that is neither completed nor
// already running, at most MaxParallel at a time. Executions are
// independent: one failing does not cancel the others. The first error is
// returned after all of them finished.
func (s *Session) ExecuteAll(ctx context.Context, intentionID string) error {
	in, err := s.store.GetIntention(intentionID)
	if err != nil {
		return fmt.Errorf("load intention: %w", err)
	}

	var g errgroup.Group
	if s.maxParallel > 0 {
		g.SetLimit(s.maxParallel)
	}
	for _, t := range in.Tasks {
		if t.Status == models.TaskStatusCompleted || s.Running(t.ID) {
			continue
		}
		taskID := t.ID
		g.Go(func() error {
			_, err := s.ExecuteTask(ctx, taskID, nil)
			if errors.Is(err, agent.ErrAlreadyRunning) {
				return nil
			}
			return err
		})
	}
	return g.Wait()
}
