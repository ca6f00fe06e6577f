package state

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ShayCichocki/mindcanvas/pkg/models"
)

// querier is satisfied by *sql.Tx. Every compound read and write runs in a
// transaction on the single connection.
type querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// Intention operations

// CreateIntention inserts a new intention. Its Tasks are not inserted;
// use AddTask.
func (db *DB) CreateIntention(in *models.Intention) error {
	return db.Transaction(func(tx *sql.Tx) error {
		uc, err := encodeContext(in.UserContext)
		if err != nil {
			return err
		}
		_, err = tx.Exec(`
			INSERT INTO intentions (id, title, original_input, description, status, pos_x, pos_y,
				user_context, ai_progress, collated_output, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, in.ID, in.Title, in.OriginalInput, in.Description, string(in.Status), in.Position.X, in.Position.Y,
			uc, in.AIProgress, in.CollatedOutput, formatTime(in.CreatedAt), formatTime(in.UpdatedAt))
		if err != nil {
			return fmt.Errorf("create intention: %w", err)
		}
		return nil
	})
}

// GetIntention retrieves an intention with its tasks in creation order.
func (db *DB) GetIntention(id string) (*models.Intention, error) {
	var in *models.Intention
	err := db.Transaction(func(tx *sql.Tx) error {
		var err error
		in, err = loadIntention(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return in, nil
}

// ListIntentions returns every intention with its tasks, oldest first.
func (db *DB) ListIntentions() ([]*models.Intention, error) {
	var out []*models.Intention
	err := db.Transaction(func(tx *sql.Tx) error {
		rows, err := tx.Query("SELECT id FROM intentions ORDER BY created_at, rowid")
		if err != nil {
			return fmt.Errorf("list intentions: %w", err)
		}
		var ids []string
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return fmt.Errorf("scan intention id: %w", err)
			}
			ids = append(ids, id)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return fmt.Errorf("list intentions: %w", err)
		}
		rows.Close()

		for _, id := range ids {
			in, err := loadIntention(tx, id)
			if err != nil {
				return err
			}
			out = append(out, in)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateIntention applies fn to the stored intention and writes it back.
// Changes fn makes to Tasks are not written; use UpdateTask.
func (db *DB) UpdateIntention(id string, fn func(*models.Intention)) (*models.Intention, error) {
	var in *models.Intention
	err := db.Transaction(func(tx *sql.Tx) error {
		var err error
		if in, err = loadIntention(tx, id); err != nil {
			return err
		}
		fn(in)

		uc, err := encodeContext(in.UserContext)
		if err != nil {
			return err
		}
		_, err = tx.Exec(`
			UPDATE intentions SET title = ?, original_input = ?, description = ?, status = ?, pos_x = ?, pos_y = ?,
				user_context = ?, ai_progress = ?, collated_output = ?, updated_at = ?
			WHERE id = ?
		`, in.Title, in.OriginalInput, in.Description, string(in.Status), in.Position.X, in.Position.Y,
			uc, in.AIProgress, in.CollatedOutput, formatTime(in.UpdatedAt), id)
		if err != nil {
			return fmt.Errorf("update intention: %w", err)
		}
		// Reload so the returned tasks reflect what is stored.
		in, err = loadIntention(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return in, nil
}

// DeleteIntention removes an intention with its tasks and their outputs.
func (db *DB) DeleteIntention(id string) error {
	return db.Transaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`
			DELETE FROM task_outputs WHERE task_id IN (SELECT id FROM tasks WHERE intention_id = ?)
		`, id); err != nil {
			return fmt.Errorf("delete task outputs: %w", err)
		}
		if _, err := tx.Exec("DELETE FROM tasks WHERE intention_id = ?", id); err != nil {
			return fmt.Errorf("delete tasks: %w", err)
		}
		res, err := tx.Exec("DELETE FROM intentions WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("delete intention: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("delete intention %s: %w", id, ErrNotFound)
		}
		return nil
	})
}

// Task operations

// AddTask appends a task to its intention.
func (db *DB) AddTask(task *models.Task) error {
	return db.Transaction(func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRow("SELECT COUNT(*) FROM intentions WHERE id = ?", task.IntentionID).Scan(&exists); err != nil {
			return fmt.Errorf("check intention: %w", err)
		}
		if exists == 0 {
			return fmt.Errorf("add task to intention %s: %w", task.IntentionID, ErrNotFound)
		}

		var seq int
		if err := tx.QueryRow(
			"SELECT COALESCE(MAX(seq), -1) + 1 FROM tasks WHERE intention_id = ?", task.IntentionID,
		).Scan(&seq); err != nil {
			return fmt.Errorf("next task seq: %w", err)
		}

		_, err := tx.Exec(`
			INSERT INTO tasks (id, intention_id, seq, title, description, status, pos_x, pos_y,
				ai_reasoning, progress, current_step, created_at, execution_started, execution_completed)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, task.ID, task.IntentionID, seq, task.Title, task.Description, string(task.Status),
			task.Position.X, task.Position.Y, task.AIReasoning, task.Progress, task.CurrentStep,
			formatTime(task.CreatedAt), nullableTime(task.ExecutionStarted), nullableTime(task.ExecutionCompleted))
		if err != nil {
			return fmt.Errorf("add task: %w", err)
		}
		return writeOutputs(tx, task.ID, task.Outputs)
	})
}

// GetTask retrieves a task with its outputs.
func (db *DB) GetTask(id string) (*models.Task, error) {
	var task *models.Task
	err := db.Transaction(func(tx *sql.Tx) error {
		var err error
		task, err = loadTask(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// UpdateTask applies fn to the stored task and writes it back, outputs included.
func (db *DB) UpdateTask(id string, fn func(*models.Task)) (*models.Task, error) {
	var task *models.Task
	err := db.Transaction(func(tx *sql.Tx) error {
		var err error
		if task, err = loadTask(tx, id); err != nil {
			return err
		}
		fn(task)

		_, err = tx.Exec(`
			UPDATE tasks SET title = ?, description = ?, status = ?, pos_x = ?, pos_y = ?, ai_reasoning = ?,
				progress = ?, current_step = ?, execution_started = ?, execution_completed = ?
			WHERE id = ?
		`, task.Title, task.Description, string(task.Status), task.Position.X, task.Position.Y, task.AIReasoning,
			task.Progress, task.CurrentStep, nullableTime(task.ExecutionStarted), nullableTime(task.ExecutionCompleted), id)
		if err != nil {
			return fmt.Errorf("update task: %w", err)
		}
		if _, err := tx.Exec("DELETE FROM task_outputs WHERE task_id = ?", id); err != nil {
			return fmt.Errorf("replace task outputs: %w", err)
		}
		return writeOutputs(tx, id, task.Outputs)
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// DeleteTask removes a task and its outputs.
func (db *DB) DeleteTask(id string) error {
	return db.Transaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM task_outputs WHERE task_id = ?", id); err != nil {
			return fmt.Errorf("delete task outputs: %w", err)
		}
		res, err := tx.Exec("DELETE FROM tasks WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("delete task: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("delete task %s: %w", id, ErrNotFound)
		}
		return nil
	})
}

func loadIntention(q querier, id string) (*models.Intention, error) {
	row := q.QueryRow(`
		SELECT id, title, original_input, description, status, pos_x, pos_y,
			user_context, ai_progress, collated_output, created_at, updated_at
		FROM intentions WHERE id = ?
	`, id)

	var in models.Intention
	var userContext sql.NullString
	var createdAt, updatedAt string
	err := row.Scan(&in.ID, &in.Title, &in.OriginalInput, &in.Description, &in.Status, &in.Position.X, &in.Position.Y,
		&userContext, &in.AIProgress, &in.CollatedOutput, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("intention %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get intention: %w", err)
	}
	in.CreatedAt, _ = parseTime(createdAt)
	in.UpdatedAt, _ = parseTime(updatedAt)
	if userContext.Valid && userContext.String != "" {
		if err := json.Unmarshal([]byte(userContext.String), &in.UserContext); err != nil {
			return nil, fmt.Errorf("decode user context: %w", err)
		}
	}

	rows, err := q.Query("SELECT id FROM tasks WHERE intention_id = ? ORDER BY seq", id)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	var taskIDs []string
	for rows.Next() {
		var taskID string
		if err := rows.Scan(&taskID); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan task id: %w", err)
		}
		taskIDs = append(taskIDs, taskID)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	rows.Close()

	for _, taskID := range taskIDs {
		task, err := loadTask(q, taskID)
		if err != nil {
			return nil, err
		}
		in.Tasks = append(in.Tasks, task)
	}
	return &in, nil
}

func loadTask(q querier, id string) (*models.Task, error) {
	row := q.QueryRow(`
		SELECT id, intention_id, title, description, status, pos_x, pos_y, ai_reasoning,
			progress, current_step, created_at, execution_started, execution_completed
		FROM tasks WHERE id = ?
	`, id)

	var t models.Task
	var createdAt string
	var started, completed sql.NullString
	err := row.Scan(&t.ID, &t.IntentionID, &t.Title, &t.Description, &t.Status, &t.Position.X, &t.Position.Y,
		&t.AIReasoning, &t.Progress, &t.CurrentStep, &createdAt, &started, &completed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	t.CreatedAt, _ = parseTime(createdAt)
	t.ExecutionStarted = parseNullableTime(started)
	t.ExecutionCompleted = parseNullableTime(completed)

	rows, err := q.Query(`
		SELECT id, timestamp, type, content FROM task_outputs WHERE task_id = ? ORDER BY seq
	`, id)
	if err != nil {
		return nil, fmt.Errorf("list task outputs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var out models.TaskOutput
		var ts string
		if err := rows.Scan(&out.ID, &ts, &out.Type, &out.Content); err != nil {
			return nil, fmt.Errorf("scan task output: %w", err)
		}
		out.Timestamp, _ = parseTime(ts)
		t.Outputs = append(t.Outputs, out)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list task outputs: %w", err)
	}
	return &t, nil
}

func writeOutputs(q querier, taskID string, outputs []models.TaskOutput) error {
	for i, out := range outputs {
		id := out.ID
		if id == "" {
			id = fmt.Sprintf("%s-out-%d", taskID, i)
		}
		if _, err := q.Exec(`
			INSERT INTO task_outputs (id, task_id, seq, timestamp, type, content) VALUES (?, ?, ?, ?, ?, ?)
		`, id, taskID, i, formatTime(out.Timestamp), string(out.Type), out.Content); err != nil {
			return fmt.Errorf("write task output: %w", err)
		}
	}
	return nil
}

func encodeContext(ctx []string) (sql.NullString, error) {
	if len(ctx) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(ctx)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode user context: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}
