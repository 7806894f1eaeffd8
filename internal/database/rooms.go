package database

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"scams/internal/models"
)

const roomColumns = `id, name, building_id, building_name, floor_number, capacity,
	description, type, image_url, devices, status, created_at, updated_at`

func (db *DB) CreateRoom(ctx context.Context, room *models.Room) error {
	if room.Status == "" {
		room.Status = models.RoomAvailable
	}
	devices, err := encodeDevices(room.Devices)
	if err != nil {
		return err
	}

	query := `INSERT INTO rooms (
				name, building_id, building_name, floor_number, capacity,
				description, type, image_url, devices, status, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		room.Name,
		room.BuildingID,
		room.BuildingName,
		room.FloorNumber,
		room.Capacity,
		room.Description,
		room.Type,
		room.ImageURL,
		devices,
		room.Status,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create room: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	room.ID = id
	room.CreatedAt = now
	room.UpdatedAt = now
	return nil
}

func (db *DB) UpdateRoom(ctx context.Context, room *models.Room) error {
	devices, err := encodeDevices(room.Devices)
	if err != nil {
		return err
	}

	query := `UPDATE rooms SET name = ?, building_id = ?, building_name = ?, floor_number = ?,
				capacity = ?, description = ?, type = ?, image_url = ?, devices = ?, status = ?, updated_at = ?
			  WHERE id = ?`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		room.Name, room.BuildingID, room.BuildingName, room.FloorNumber,
		room.Capacity, room.Description, room.Type, room.ImageURL, devices, room.Status, now,
		room.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update room: %w", err)
	}
	if err := checkAffected(result, fmt.Errorf("room %d: %w", room.ID, ErrNotFound)); err != nil {
		return err
	}
	room.UpdatedAt = now
	return nil
}

func (db *DB) UpdateRoomStatus(ctx context.Context, id int64, status string) error {
	result, err := db.ExecContext(ctx, `UPDATE rooms SET status = ?, updated_at = ? WHERE id = ?`, status, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update room status: %w", err)
	}
	return checkAffected(result, fmt.Errorf("room %d: %w", id, ErrNotFound))
}

// DeleteRoom removes a room that has never been booked.
func (db *DB) DeleteRoom(ctx context.Context, id int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookings WHERE room_id = ?`, id).Scan(&count); err != nil {
		return fmt.Errorf("failed to count room bookings: %w", err)
	}
	if count > 0 {
		return ErrRoomHasBookings
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM rooms WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete room: %w", err)
	}
	if err := checkAffected(result, fmt.Errorf("room %d: %w", id, ErrNotFound)); err != nil {
		return err
	}
	return tx.Commit()
}

func (db *DB) GetRoom(ctx context.Context, id int64) (*models.Room, error) {
	row := db.QueryRowContext(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = ?`, id)
	room, err := scanRoom(row)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("room %d", id))
	}
	return room, nil
}

// ListRooms applies the building and capacity filters in SQL; device and
// availability filters are left to the caller.
func (db *DB) ListRooms(ctx context.Context, filter models.RoomFilter) ([]*models.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms WHERE 1 = 1`
	var args []interface{}
	if filter.BuildingID > 0 {
		query += ` AND building_id = ?`
		args = append(args, filter.BuildingID)
	}
	if filter.MinCapacity > 0 {
		query += ` AND capacity >= ?`
		args = append(args, filter.MinCapacity)
	}
	query += ` ORDER BY building_id, floor_number, name`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	defer rows.Close()

	var rooms []*models.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan room: %w", err)
		}
		if room.HasDevices(filter.Devices) {
			rooms = append(rooms, room)
		}
	}
	return rooms, rows.Err()
}

func (db *DB) CountRooms(ctx context.Context) (total, inMaintenance int, err error) {
	query := `SELECT COUNT(*), COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) FROM rooms`
	err = db.QueryRowContext(ctx, query, models.RoomMaintenance).Scan(&total, &inMaintenance)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count rooms: %w", err)
	}
	return total, inMaintenance, nil
}

// ListBuildings returns the distinct buildings rooms belong to.
func (db *DB) ListBuildings(ctx context.Context) ([]models.Building, error) {
	rows, err := db.QueryContext(ctx, `SELECT building_id, MAX(building_name) FROM rooms GROUP BY building_id ORDER BY building_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list buildings: %w", err)
	}
	defer rows.Close()

	var buildings []models.Building
	for rows.Next() {
		var b models.Building
		if err := rows.Scan(&b.ID, &b.Name); err != nil {
			return nil, fmt.Errorf("failed to scan building: %w", err)
		}
		buildings = append(buildings, b)
	}
	return buildings, rows.Err()
}

// ListDevices returns the distinct device names across all rooms, sorted.
func (db *DB) ListDevices(ctx context.Context) ([]string, error) {
	rooms, err := db.ListRooms(ctx, models.RoomFilter{})
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	devices := []string{}
	for _, r := range rooms {
		for _, d := range r.Devices {
			key := strings.ToLower(d)
			if !seen[key] {
				seen[key] = true
				devices = append(devices, d)
			}
		}
	}
	sort.Strings(devices)
	return devices, nil
}

// SeedRooms inserts fixture rooms when the table is empty. Returns the number inserted.
func (db *DB) SeedRooms(ctx context.Context, rooms []models.Room) (int, error) {
	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rooms`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count rooms: %w", err)
	}
	if count > 0 {
		return 0, nil
	}

	for i := range rooms {
		room := rooms[i]
		room.ID = 0
		if err := db.CreateRoom(ctx, &room); err != nil {
			return i, fmt.Errorf("failed to seed room %s: %w", room.Name, err)
		}
	}
	if db.logger != nil {
		db.logger.Info().Int("rooms", len(rooms)).Msg("rooms seeded")
	}
	return len(rooms), nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRoom(row rowScanner) (*models.Room, error) {
	var room models.Room
	var devices string
	err := row.Scan(
		&room.ID, &room.Name, &room.BuildingID, &room.BuildingName, &room.FloorNumber, &room.Capacity,
		&room.Description, &room.Type, &room.ImageURL, &devices, &room.Status, &room.CreatedAt, &room.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(devices), &room.Devices); err != nil {
		return nil, fmt.Errorf("failed to decode devices of room %d: %w", room.ID, err)
	}
	if room.Devices == nil {
		room.Devices = []string{}
	}
	return &room, nil
}

func encodeDevices(devices []string) (string, error) {
	clean := make([]string, 0, len(devices))
	for _, d := range devices {
		if d = strings.TrimSpace(d); d != "" {
			clean = append(clean, d)
		}
	}
	raw, err := json.Marshal(clean)
	if err != nil {
		return "", fmt.Errorf("failed to encode devices: %w", err)
	}
	return string(raw), nil
}
