package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/ShayCichocki/mindcanvas/internal/agent"
	"github.com/ShayCichocki/mindcanvas/internal/api"
	"github.com/ShayCichocki/mindcanvas/internal/session"
	"github.com/ShayCichocki/mindcanvas/pkg/models"
)

// stubCompleter answers analysis and task update prompts.
type stubCompleter struct{}

func (stubCompleter) Complete(_ context.Context, req api.CompletionRequest) (*api.Completion, error) {
	if strings.Contains(req.System, "update a task") {
		return &api.Completion{Text: `{"updatedDescription":"Get a parking permit first","status":"executing"}`, Tokens: 10}, nil
	}
	return &api.Completion{Text: `{"intentionAnalysis":"Plan your apartment move",
		"suggestedTasks":[{"title":"Book movers","description":"Get quotes","reasoning":"They book up"}],
		"progressEstimate":10}`, Tokens: 20}, nil
}

func (stubCompleter) Probe(context.Context) error { return nil }
func (stubCompleter) Name() string                { return "stub" }

func newEditSession(t *testing.T) (*session.Session, *models.Intention) {
	t.Helper()
	s, err := session.New(session.Options{
		Completer: stubCompleter{},
		Executor:  agent.ExecutorConfig{DisablePacing: true},
	})
	if err != nil {
		t.Fatalf("session.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	in, err := s.Submit(context.Background(), "organize my move", nil)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	s.Wait()
	if in, err = s.Intention(in.ID); err != nil {
		t.Fatal(err)
	}
	if len(in.Tasks) != 1 {
		t.Fatalf("got %d tasks, want 1", len(in.Tasks))
	}
	return s, in
}

func TestAddIntentionContext(t *testing.T) {
	s, in := newEditSession(t)

	var buf bytes.Buffer
	if err := addIntentionContext(s, &buf, in.ID, "  budget is 500 euros "); err != nil {
		t.Fatalf("addIntentionContext: %v", err)
	}
	if !strings.Contains(buf.String(), "context: budget is 500 euros") {
		t.Errorf("output missing context:\n%s", buf.String())
	}

	if err := addIntentionContext(s, &buf, in.ID, "   "); err == nil {
		t.Error("expected error for empty context")
	}
	if err := addIntentionContext(s, &buf, "missing", "x"); err == nil {
		t.Error("expected error for unknown intention")
	}
}

func TestSetIntentionOutputAndFulfill(t *testing.T) {
	s, in := newEditSession(t)

	var buf bytes.Buffer
	if err := setIntentionOutput(s, &buf, in.ID, "Movers booked for Saturday"); err != nil {
		t.Fatalf("setIntentionOutput: %v", err)
	}
	if err := fulfillIntention(s, &buf, in.ID); err != nil {
		t.Fatalf("fulfillIntention: %v", err)
	}

	got, err := s.Intention(in.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.CollatedOutput != "Movers booked for Saturday" {
		t.Errorf("CollatedOutput = %q", got.CollatedOutput)
	}
	if got.Status != models.IntentionFulfilled {
		t.Errorf("Status = %q, want %q", got.Status, models.IntentionFulfilled)
	}
}

func TestUpdateTask(t *testing.T) {
	s, in := newEditSession(t)
	taskID := in.Tasks[0].ID

	var buf bytes.Buffer
	if err := updateTask(context.Background(), s, &buf, taskID, "the street needs a parking permit"); err != nil {
		t.Fatalf("updateTask: %v", err)
	}
	if !strings.Contains(buf.String(), "Get a parking permit first") {
		t.Errorf("output missing revised description:\n%s", buf.String())
	}

	task, err := s.Task(taskID)
	if err != nil {
		t.Fatal(err)
	}
	if task.Status != models.TaskStatusExecuting {
		t.Errorf("Status = %q, want %q", task.Status, models.TaskStatusExecuting)
	}

	if err := updateTask(context.Background(), s, &buf, taskID, " "); err == nil {
		t.Error("expected error for empty context")
	}
}

func TestRunHelp_DescribesUnavailableClient(t *testing.T) {
	if strings.Contains(runCmd.Long, "task is created") {
		t.Errorf("run help claims a task is created without a client:\n%s", runCmd.Long)
	}
	if !strings.Contains(runCmd.Long, "no tasks are created") {
		t.Errorf("run help does not describe the unavailable-client outcome:\n%s", runCmd.Long)
	}
}
