package database

import (
	"context"
	"fmt"
	"time"

	"scams/internal/models"
)

func (db *DB) CreateNotification(ctx context.Context, n *models.Notification) error {
	query := `INSERT INTO notifications (user_id, type, title, message, is_read, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query, n.UserID, n.Type, n.Title, n.Message, n.Read, now)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	n.ID = id
	n.CreatedAt = now
	return nil
}

// ListNotifications returns a user's notifications, newest first.
func (db *DB) ListNotifications(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]*models.Notification, error) {
	query := `SELECT id, user_id, type, title, message, is_read, created_at FROM notifications WHERE user_id = ?`
	args := []interface{}{userID}
	if unreadOnly {
		query += ` AND is_read = 0`
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var out []*models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		out = append(out, &n)
	}
	return out, rows.Err()
}

func (db *DB) MarkNotificationRead(ctx context.Context, id, userID int64) error {
	result, err := db.ExecContext(ctx, `UPDATE notifications SET is_read = 1 WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return checkAffected(result, fmt.Errorf("notification %d: %w", id, ErrNotFound))
}

func (db *DB) MarkAllNotificationsRead(ctx context.Context, userID int64) (int64, error) {
	result, err := db.ExecContext(ctx, `UPDATE notifications SET is_read = 1 WHERE user_id = ? AND is_read = 0`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return result.RowsAffected()
}
