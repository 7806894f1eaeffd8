package database

import (
	"context"
	"fmt"
	"time"

	"scams/internal/models"
)

const (
	TaskPending    = "pending"
	TaskRetry      = "retry"
	TaskProcessing = "processing"
	TaskCompleted  = "completed"
	TaskFailed     = "failed"
)

const taskColumns = `id, task_type, booking_id, payload, status, retry_count, last_error, created_at, processed_at, next_retry_at`

func (db *DB) CreateTask(ctx context.Context, task *models.Task) error {
	if task.Status == "" {
		task.Status = TaskPending
	}
	query := `INSERT INTO tasks (task_type, booking_id, payload, status, retry_count, last_error, created_at, next_retry_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		task.TaskType,
		task.BookingID,
		task.Payload,
		task.Status,
		task.RetryCount,
		task.LastError,
		now,
		task.NextRetryAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	task.ID = id
	task.CreatedAt = now
	return nil
}

func (db *DB) GetTask(ctx context.Context, id int64) (*models.Task, error) {
	tasks, err := db.queryTasks(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	return tasks[0], nil
}

// GetPendingTasks returns tasks due for (re)processing, oldest first.
func (db *DB) GetPendingTasks(ctx context.Context, limit int) ([]*models.Task, error) {
	query := `SELECT ` + taskColumns + `
              FROM tasks
              WHERE status IN (?, ?) AND (next_retry_at IS NULL OR next_retry_at <= ?)
              ORDER BY created_at ASC LIMIT ?`
	return db.queryTasks(ctx, query, TaskPending, TaskRetry, time.Now(), limit)
}

func (db *DB) GetFailedTasks(ctx context.Context) ([]*models.Task, error) {
	return db.queryTasks(ctx, `SELECT `+taskColumns+` FROM tasks WHERE status = ? ORDER BY created_at DESC`, TaskFailed)
}

// ClaimTask moves a due task to processing. It reports false when another
// worker already took it or it is no longer pending.
func (db *DB) ClaimTask(ctx context.Context, id int64) (bool, error) {
	result, err := db.ExecContext(ctx,
		`UPDATE tasks SET status = ? WHERE id = ? AND status IN (?, ?)`,
		TaskProcessing, id, TaskPending, TaskRetry)
	if err != nil {
		return false, fmt.Errorf("failed to claim task: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// RequeueProcessingTasks returns tasks left in processing by a stopped worker to pending.
func (db *DB) RequeueProcessingTasks(ctx context.Context) (int64, error) {
	result, err := db.ExecContext(ctx, `UPDATE tasks SET status = ? WHERE status = ?`, TaskPending, TaskProcessing)
	if err != nil {
		return 0, fmt.Errorf("failed to requeue tasks: %w", err)
	}
	return result.RowsAffected()
}

func (db *DB) UpdateTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error {
	var query string
	var args []interface{}
	now := time.Now()

	var lastError *string
	if errMsg != "" {
		lastError = &errMsg
	}

	switch status {
	case TaskRetry:
		query = `UPDATE tasks SET status = ?, last_error = ?, next_retry_at = ?, retry_count = retry_count + 1 WHERE id = ?`
		args = []interface{}{status, lastError, nextRetryAt, id}
	case TaskCompleted, TaskFailed:
		query = `UPDATE tasks SET status = ?, last_error = ?, next_retry_at = ?, processed_at = ? WHERE id = ?`
		args = []interface{}{status, lastError, nextRetryAt, now, id}
	default:
		query = `UPDATE tasks SET status = ?, last_error = ?, next_retry_at = ? WHERE id = ?`
		args = []interface{}{status, lastError, nextRetryAt, id}
	}

	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update task status: %w", err)
	}
	return checkAffected(result, fmt.Errorf("task %d: %w", id, ErrNotFound))
}

func (db *DB) queryTasks(ctx context.Context, query string, args ...interface{}) ([]*models.Task, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		var t models.Task
		if err := rows.Scan(
			&t.ID, &t.TaskType, &t.BookingID, &t.Payload, &t.Status, &t.RetryCount,
			&t.LastError, &t.CreatedAt, &t.ProcessedAt, &t.NextRetryAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, &t)
	}
	return tasks, rows.Err()
}
