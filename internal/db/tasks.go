package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Tasks returns tasks matching the filter, newest first.
func (db *DB) Tasks(
	ctx context.Context, f TaskFilter,
) ([]Task, error) {
	preds := []string{"1=1"}
	var args []any
	if f.Status != "" {
		preds = append(preds, "status = ?")
		args = append(args, f.Status)
	}
	if f.CategoryID != "" {
		preds = append(preds, "category_id = ?")
		args = append(args, f.CategoryID)
	}

	query := `SELECT id, title, description, category_id,
		estimated_minutes, actual_minutes, priority, status,
		due_date, created_at, completed_at
		FROM tasks WHERE ` + strings.Join(preds, " AND ") +
		` ORDER BY created_at DESC`

	rows, err := db.reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		var t Task
		if err := rows.Scan(
			&t.ID, &t.Title, &t.Description, &t.CategoryID,
			&t.EstimatedMinutes, &t.ActualMinutes, &t.Priority,
			&t.Status, &t.DueDate, &t.CreatedAt, &t.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// InsertTask writes a task inside tx, generating an ID when the
// caller did not supply one.
func InsertTask(tx *sql.Tx, t Task) (string, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	if t.Status == "" {
		t.Status = StatusActive
	}
	if t.CreatedAt == "" {
		t.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	_, err := tx.Exec(
		`INSERT INTO tasks
		 (id, title, description, category_id, estimated_minutes,
		  actual_minutes, priority, status, due_date,
		  created_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Title, t.Description, t.CategoryID,
		t.EstimatedMinutes, t.ActualMinutes, t.Priority, t.Status,
		t.DueDate, t.CreatedAt, t.CompletedAt,
	)
	if err != nil {
		return "", fmt.Errorf("inserting task %q: %w", t.Title, err)
	}
	return t.ID, nil
}

// ApplySessionToTask accumulates a completed session's minutes onto
// its task inside tx, marking the task completed once the accrued
// minutes reach its estimate. Unknown task IDs are a no-op so
// imported logs referencing pruned tasks don't fail the batch.
func ApplySessionToTask(tx *sql.Tx, taskID string, minutes int) error {
	_, err := tx.Exec(
		`UPDATE tasks SET actual_minutes = actual_minutes + ?
		 WHERE id = ?`,
		minutes, taskID,
	)
	if err != nil {
		return fmt.Errorf("accruing task %s: %w", taskID, err)
	}

	var estimated sql.NullInt64
	var actual int
	err = tx.QueryRow(
		`SELECT estimated_minutes, actual_minutes
		 FROM tasks WHERE id = ?`, taskID,
	).Scan(&estimated, &actual)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading task %s: %w", taskID, err)
	}
	if estimated.Valid && estimated.Int64 > 0 &&
		actual >= int(estimated.Int64) {
		return CompleteTask(tx, taskID)
	}
	return nil
}

// CompleteTask marks a task completed inside tx.
func CompleteTask(tx *sql.Tx, taskID string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := tx.Exec(
		`UPDATE tasks SET status = ?, completed_at = ?
		 WHERE id = ? AND status != ?`,
		StatusCompleted, now, taskID, StatusCompleted,
	)
	if err != nil {
		return fmt.Errorf("completing task %s: %w", taskID, err)
	}
	return nil
}
