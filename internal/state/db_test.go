package state

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ShayCichocki/mindcanvas/pkg/models"
)

// tempDBPath returns a path to a temp database file.
func tempDBPath(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	return filepath.Join(dir, "test.db")
}

// setupTestDB creates a new in-memory database for testing.
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenStore("")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return db
}

var testNow = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

func seedIntention(t *testing.T, db *DB, id string, tasks int) *models.Intention {
	t.Helper()
	in := &models.Intention{
		ID:            id,
		Title:         "Move apartments",
		OriginalInput: "organize my move",
		Status:        models.IntentionActive,
		UserContext:   []string{"June", "two bedrooms"},
		AIProgress:    15,
		CreatedAt:     testNow,
		UpdatedAt:     testNow,
	}
	if err := db.CreateIntention(in); err != nil {
		t.Fatalf("CreateIntention failed: %v", err)
	}
	for i := 0; i < tasks; i++ {
		task := &models.Task{
			ID:          fmt.Sprintf("%s-t%d", id, i),
			IntentionID: id,
			Title:       fmt.Sprintf("Task %d", i),
			Status:      models.TaskStatusSpawning,
			Position:    models.Position{X: 50, Y: float64(i * 120)},
			CreatedAt:   testNow.Add(time.Duration(i) * time.Second),
		}
		if err := db.AddTask(task); err != nil {
			t.Fatalf("AddTask failed: %v", err)
		}
	}
	return in
}

func TestOpen(t *testing.T) {
	path := tempDBPath(t)
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	if db.Path() != path {
		t.Errorf("Path() = %q, want %q", db.Path(), path)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("database file does not exist at %s", path)
	}
}

func TestOpen_Memory(t *testing.T) {
	db, err := Open("")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	if db.Path() != MemoryPath {
		t.Errorf("Path() = %q, want %q", db.Path(), MemoryPath)
	}
}

func TestOpen_CreatesParentDirectories(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "a", "b", "c")

	db, err := Open(filepath.Join(nested, "test.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(nested); os.IsNotExist(err) {
		t.Errorf("parent directories not created: %s", nested)
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	// Can't create directories under /proc on Linux.
	if _, err := Open("/proc/nonexistent/test.db"); err == nil {
		t.Error("expected error opening db at invalid path")
	}
}

func TestClose(t *testing.T) {
	db, err := Open(tempDBPath(t))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if err := db.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}

	if _, err := db.Query("SELECT 1"); err == nil {
		t.Error("expected error after close, got nil")
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	db, err := Open("")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	for i := 0; i < 3; i++ {
		if err := db.Migrate(); err != nil {
			t.Fatalf("Migrate (iteration %d) failed: %v", i, err)
		}
	}

	var version int
	if err := db.QueryRow("SELECT MAX(version) FROM schema_version").Scan(&version); err != nil {
		t.Fatalf("failed to get schema version: %v", err)
	}
	if version != 3 {
		t.Errorf("schema version = %d, want 3", version)
	}

	for _, table := range []string{"intentions", "tasks", "task_outputs"} {
		var count int
		row := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table)
		if err := row.Scan(&count); err != nil {
			t.Errorf("failed to check table %s: %v", table, err)
		}
		if count != 1 {
			t.Errorf("table %s does not exist", table)
		}
	}
}

func TestTransaction_Rollback(t *testing.T) {
	db := setupTestDB(t)

	err := db.Transaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec(
			"INSERT INTO intentions (id, created_at, updated_at) VALUES (?, ?, ?)",
			"tx-fail", formatTime(testNow), formatTime(testNow),
		); err != nil {
			return err
		}
		return fmt.Errorf("simulated error")
	})
	if err == nil {
		t.Error("expected error from Transaction")
	}

	if _, err := db.GetIntention("tx-fail"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetIntention err = %v, want ErrNotFound after rollback", err)
	}
}

func TestIntention_RoundTrip(t *testing.T) {
	db := setupTestDB(t)
	seedIntention(t, db, "i-1", 3)

	in, err := db.GetIntention("i-1")
	if err != nil {
		t.Fatalf("GetIntention failed: %v", err)
	}
	if in.Title != "Move apartments" || in.OriginalInput != "organize my move" || in.AIProgress != 15 {
		t.Errorf("intention = %+v", in)
	}
	if !in.CreatedAt.Equal(testNow) {
		t.Errorf("CreatedAt = %v, want %v", in.CreatedAt, testNow)
	}
	if fmt.Sprint(in.UserContext) != "[June two bedrooms]" {
		t.Errorf("UserContext = %v", in.UserContext)
	}
	if got := in.TaskTitles(); fmt.Sprint(got) != "[Task 0 Task 1 Task 2]" {
		t.Errorf("TaskTitles() = %v, want creation order", got)
	}
	if in.Tasks[2].Position.Y != 240 {
		t.Errorf("task 2 y = %v, want 240", in.Tasks[2].Position.Y)
	}
}

func TestGetIntention_NotFound(t *testing.T) {
	db := setupTestDB(t)
	if _, err := db.GetIntention("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if _, err := db.UpdateIntention("missing", func(*models.Intention) {}); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateIntention err = %v, want ErrNotFound", err)
	}
}

func TestUpdateIntention(t *testing.T) {
	db := setupTestDB(t)
	seedIntention(t, db, "i-1", 1)

	later := testNow.Add(time.Minute)
	updated, err := db.UpdateIntention("i-1", func(in *models.Intention) {
		in.Status = models.IntentionFulfilled
		in.CollatedOutput = "**Task 0**\ndone"
		in.UpdatedAt = later
	})
	if err != nil {
		t.Fatalf("UpdateIntention failed: %v", err)
	}
	if updated.Status != models.IntentionFulfilled || len(updated.Tasks) != 1 {
		t.Errorf("updated = %s with %d tasks", updated.Status, len(updated.Tasks))
	}

	got, _ := db.GetIntention("i-1")
	if got.CollatedOutput != "**Task 0**\ndone" || !got.UpdatedAt.Equal(later) {
		t.Errorf("stored = %q at %v", got.CollatedOutput, got.UpdatedAt)
	}
}

func TestListIntentions(t *testing.T) {
	db := setupTestDB(t)
	seedIntention(t, db, "i-1", 0)
	seedIntention(t, db, "i-2", 2)

	list, err := db.ListIntentions()
	if err != nil {
		t.Fatalf("ListIntentions failed: %v", err)
	}
	if len(list) != 2 || list[0].ID != "i-1" || len(list[1].Tasks) != 2 {
		t.Errorf("ListIntentions() = %d items", len(list))
	}
}

func TestAddTask_UnknownIntention(t *testing.T) {
	db := setupTestDB(t)
	err := db.AddTask(&models.Task{ID: "t", IntentionID: "nope", Title: "x", CreatedAt: testNow})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdateTask_Outputs(t *testing.T) {
	db := setupTestDB(t)
	seedIntention(t, db, "i-1", 1)

	started := testNow.Add(time.Second)
	_, err := db.UpdateTask("i-1-t0", func(task *models.Task) {
		task.Status = models.TaskStatusExecuting
		task.Progress = 40
		task.CurrentStep = "Gathering relevant context"
		task.ExecutionStarted = &started
		task.Outputs = append(task.Outputs,
			models.TaskOutput{ID: "o1", Timestamp: started, Type: models.OutputProgress, Content: "step 1"},
			models.TaskOutput{ID: "o2", Timestamp: started, Type: models.OutputProgress, Content: "step 2"},
		)
	})
	if err != nil {
		t.Fatalf("UpdateTask failed: %v", err)
	}

	task, err := db.GetTask("i-1-t0")
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if task.Status != models.TaskStatusExecuting || task.Progress != 40 {
		t.Errorf("task = %s/%d", task.Status, task.Progress)
	}
	if task.ExecutionStarted == nil || !task.ExecutionStarted.Equal(started) {
		t.Errorf("ExecutionStarted = %v", task.ExecutionStarted)
	}
	if task.ExecutionCompleted != nil {
		t.Errorf("ExecutionCompleted = %v, want nil", task.ExecutionCompleted)
	}
	if len(task.Outputs) != 2 || task.Outputs[1].Content != "step 2" {
		t.Errorf("Outputs = %+v", task.Outputs)
	}

	// A second update replaces the outputs rather than duplicating them.
	if _, err := db.UpdateTask("i-1-t0", func(task *models.Task) {
		task.Outputs = append(task.Outputs, models.TaskOutput{ID: "o3", Timestamp: started, Type: models.OutputResult, Content: "done"})
	}); err != nil {
		t.Fatal(err)
	}
	task, _ = db.GetTask("i-1-t0")
	if len(task.Outputs) != 3 {
		t.Errorf("len(Outputs) = %d, want 3", len(task.Outputs))
	}
	if got, ok := task.LastResult(); !ok || got != "done" {
		t.Errorf("LastResult() = %q, %v", got, ok)
	}
}

func TestOpenStore_ResetsOutputs(t *testing.T) {
	path := tempDBPath(t)
	db, err := OpenStore(path)
	if err != nil {
		t.Fatal(err)
	}
	seedIntention(t, db, "i-1", 1)
	if _, err := db.UpdateTask("i-1-t0", func(task *models.Task) {
		task.Outputs = []models.TaskOutput{{ID: "o1", Timestamp: testNow, Type: models.OutputResult, Content: "old"}}
	}); err != nil {
		t.Fatal(err)
	}
	db.Close()

	db, err = OpenStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	task, err := db.GetTask("i-1-t0")
	if err != nil {
		t.Fatalf("task should survive reopen: %v", err)
	}
	if len(task.Outputs) != 0 {
		t.Errorf("Outputs = %+v, want none after reopen", task.Outputs)
	}
}

func TestDelete(t *testing.T) {
	db := setupTestDB(t)
	seedIntention(t, db, "i-1", 2)

	if err := db.DeleteTask("i-1-t0"); err != nil {
		t.Fatalf("DeleteTask failed: %v", err)
	}
	if err := db.DeleteTask("i-1-t0"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second DeleteTask err = %v, want ErrNotFound", err)
	}

	if err := db.DeleteIntention("i-1"); err != nil {
		t.Fatalf("DeleteIntention failed: %v", err)
	}
	if _, err := db.GetTask("i-1-t1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("task survived intention delete: %v", err)
	}
}

func TestDefaultDBPath(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/custom/data")
	if got, want := DefaultDBPath(), "/custom/data/mindcanvas/mindcanvas.db"; got != want {
		t.Errorf("DefaultDBPath() = %q, want %q", got, want)
	}
}

func TestParseNullableTime(t *testing.T) {
	if parseNullableTime(sql.NullString{String: "2024-01-01T12:00:00Z", Valid: true}) == nil {
		t.Error("expected non-nil time for valid input")
	}
	if parseNullableTime(sql.NullString{}) != nil {
		t.Error("expected nil time for null input")
	}
	if parseNullableTime(sql.NullString{String: "not a time", Valid: true}) != nil {
		t.Error("expected nil time for invalid format")
	}
}
