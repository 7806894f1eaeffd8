package database

import (
	"context"
	"fmt"
	"time"

	"scams/internal/models"
)

const maintenanceSelect = `SELECT m.id, m.room_id, COALESCE(r.name, ''), m.start_date, m.end_date, m.reason,
	m.status, m.created_at, m.updated_at
	FROM maintenance m LEFT JOIN rooms r ON r.id = m.room_id`

func (db *DB) CreateMaintenance(ctx context.Context, m *models.MaintenanceSchedule) error {
	if m.Status == "" {
		m.Status = models.MaintenanceScheduled
	}
	query := `INSERT INTO maintenance (room_id, start_date, end_date, reason, status, created_at, updated_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query, m.RoomID, m.StartDate, m.EndDate, m.Reason, m.Status, now, now)
	if err != nil {
		return fmt.Errorf("failed to create maintenance: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	m.ID = id
	m.CreatedAt = now
	m.UpdatedAt = now
	return nil
}

func (db *DB) GetMaintenance(ctx context.Context, id int64) (*models.MaintenanceSchedule, error) {
	list, err := db.listMaintenance(ctx, ` WHERE m.id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("maintenance %d: %w", id, ErrNotFound)
	}
	return list[0], nil
}

// ListMaintenance returns maintenance windows, optionally for one room.
func (db *DB) ListMaintenance(ctx context.Context, roomID int64) ([]*models.MaintenanceSchedule, error) {
	if roomID > 0 {
		return db.listMaintenance(ctx, ` WHERE m.room_id = ? ORDER BY m.start_date`, roomID)
	}
	return db.listMaintenance(ctx, ` ORDER BY m.start_date, m.room_id`)
}

// ActiveMaintenance returns the first non-completed window covering date.
func (db *DB) ActiveMaintenance(ctx context.Context, roomID int64, date string) (*models.MaintenanceSchedule, error) {
	list, err := db.listMaintenance(ctx,
		` WHERE m.room_id = ? AND m.status != ? AND m.start_date <= ? AND m.end_date >= ? ORDER BY m.start_date LIMIT 1`,
		roomID, models.MaintenanceCompleted, date, date)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (db *DB) UpdateMaintenanceStatus(ctx context.Context, id int64, status string) error {
	result, err := db.ExecContext(ctx, `UPDATE maintenance SET status = ?, updated_at = ? WHERE id = ?`, status, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update maintenance status: %w", err)
	}
	return checkAffected(result, fmt.Errorf("maintenance %d: %w", id, ErrNotFound))
}

func (db *DB) DeleteMaintenance(ctx context.Context, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM maintenance WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete maintenance: %w", err)
	}
	return checkAffected(result, fmt.Errorf("maintenance %d: %w", id, ErrNotFound))
}

func (db *DB) listMaintenance(ctx context.Context, tail string, args ...interface{}) ([]*models.MaintenanceSchedule, error) {
	rows, err := db.QueryContext(ctx, maintenanceSelect+tail, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list maintenance: %w", err)
	}
	defer rows.Close()

	var out []*models.MaintenanceSchedule
	for rows.Next() {
		var m models.MaintenanceSchedule
		if err := rows.Scan(&m.ID, &m.RoomID, &m.RoomName, &m.StartDate, &m.EndDate, &m.Reason,
			&m.Status, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan maintenance: %w", err)
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}
