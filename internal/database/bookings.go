package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"scams/internal/booking"
	"scams/internal/crypto"
	"scams/internal/models"
)

const bookingColumns = `id, room_id, room_name, user_id, user_name, user_department, date,
	start_time, end_time, purpose, team_members, status, created_at, updated_at, version`

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// CreateBookingWithLock re-checks overlaps and inserts inside one IMMEDIATE
// transaction, so two writers cannot both claim the same slot.
func (db *DB) CreateBookingWithLock(ctx context.Context, b *models.Booking) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := db.checkOverlapTx(ctx, tx, b, 0); err != nil {
		return err
	}

	purpose, team, err := db.sealBooking(b)
	if err != nil {
		return err
	}

	if b.Status == "" {
		b.Status = models.StatusUpcoming
	}
	query := `INSERT INTO bookings (
				room_id, room_name, user_id, user_name, user_department, date,
				start_time, end_time, purpose, team_members, status, created_at, updated_at, version
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := tx.ExecContext(ctx, query,
		b.RoomID,
		b.RoomName,
		b.UserID,
		b.UserName,
		b.UserDepartment,
		b.Date,
		b.StartTime,
		b.EndTime,
		purpose,
		team,
		b.Status,
		now,
		now,
		1,
	)
	if err != nil {
		return fmt.Errorf("failed to insert booking in tx: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id in tx: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit booking: %w", err)
	}

	b.ID = id
	b.CreatedAt = now
	b.UpdatedAt = now
	b.Version = 1
	return nil
}

// UpdateBookingWithLock moves an upcoming booking to a new room/date/time and
// rewrites its details, provided the stored version still equals fromVersion.
func (db *DB) UpdateBookingWithLock(ctx context.Context, b *models.Booking, fromVersion int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := db.checkOverlapTx(ctx, tx, b, b.ID); err != nil {
		return err
	}

	purpose, team, err := db.sealBooking(b)
	if err != nil {
		return err
	}

	query := `UPDATE bookings SET room_id = ?, room_name = ?, date = ?, start_time = ?, end_time = ?,
				purpose = ?, team_members = ?, version = version + 1, updated_at = ?
			  WHERE id = ? AND version = ? AND status = ?`
	now := time.Now()
	result, err := tx.ExecContext(ctx, query,
		b.RoomID, b.RoomName, b.Date, b.StartTime, b.EndTime,
		purpose, team, now,
		b.ID, fromVersion, models.StatusUpcoming,
	)
	if err != nil {
		return fmt.Errorf("failed to update booking in tx: %w", err)
	}
	if err := checkAffected(result, ErrConcurrentModification); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit booking update: %w", err)
	}

	b.Version = fromVersion + 1
	b.UpdatedAt = now
	return nil
}

func (db *DB) checkOverlapTx(ctx context.Context, tx *sql.Tx, b *models.Booking, excludeID int64) error {
	existing, err := db.listBookings(ctx, tx, models.BookingFilter{RoomID: b.RoomID, Date: b.Date, ActiveOnly: true})
	if err != nil {
		return fmt.Errorf("failed to load bookings in tx: %w", err)
	}
	res, err := booking.CheckConflict(existing, booking.Candidate{
		RoomID: b.RoomID, Date: b.Date, StartTime: b.StartTime, EndTime: b.EndTime,
	}, excludeID)
	if err != nil {
		return err
	}
	if res.HasConflict {
		return fmt.Errorf("%w: %s", ErrBookingConflict, res.Message)
	}
	return nil
}

func (db *DB) UpdateBookingStatusWithVersion(ctx context.Context, id, fromVersion int64, status string) error {
	query := `UPDATE bookings SET status = ?, version = version + 1, updated_at = ? WHERE id = ? AND version = ?`
	result, err := db.ExecContext(ctx, query, status, time.Now(), id, fromVersion)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	return checkAffected(result, ErrConcurrentModification)
}

func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	bookings, err := db.listBookingsWhere(ctx, db, `id = ?`, []interface{}{id}, "")
	if err != nil {
		return nil, err
	}
	if len(bookings) == 0 {
		return nil, fmt.Errorf("booking %d: %w", id, ErrNotFound)
	}
	return bookings[0], nil
}

func (db *DB) ListBookings(ctx context.Context, filter models.BookingFilter) ([]*models.Booking, error) {
	return db.listBookings(ctx, db, filter)
}

func (db *DB) CountBookings(ctx context.Context, filter models.BookingFilter) (int, error) {
	where, args := bookingWhere(filter)
	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookings WHERE `+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return count, nil
}

// CompletePastBookings marks every upcoming booking that ended before now as
// completed and returns the affected bookings.
func (db *DB) CompletePastBookings(ctx context.Context, now time.Time) ([]*models.Booking, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	today := now.Format(models.DateLayout)
	clock := now.Format(models.ClockLayout)
	past, err := db.listBookingsWhere(ctx, tx,
		`status = ? AND (date < ? OR (date = ? AND end_time <= ?))`,
		[]interface{}{models.StatusUpcoming, today, today, clock}, "")
	if err != nil {
		return nil, err
	}
	if len(past) == 0 {
		return nil, nil
	}

	stamp := time.Now()
	for _, b := range past {
		_, err := tx.ExecContext(ctx,
			`UPDATE bookings SET status = ?, version = version + 1, updated_at = ? WHERE id = ? AND version = ?`,
			models.StatusCompleted, stamp, b.ID, b.Version)
		if err != nil {
			return nil, fmt.Errorf("failed to complete booking %d: %w", b.ID, err)
		}
		b.Status = models.StatusCompleted
		b.Version++
		b.UpdatedAt = stamp
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit completion: %w", err)
	}
	return past, nil
}

// BookingCounts returns the number of upcoming bookings, bookings dated today
// that are not cancelled, and cancelled bookings overall.
func (db *DB) BookingCounts(ctx context.Context, today string) (upcoming, todayCount, cancelled int, err error) {
	query := `SELECT
				COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
				COALESCE(SUM(CASE WHEN date = ? AND status != ? THEN 1 ELSE 0 END), 0),
				COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0)
			  FROM bookings`
	err = db.QueryRowContext(ctx, query,
		models.StatusUpcoming, today, models.StatusCancelled, models.StatusCancelled,
	).Scan(&upcoming, &todayCount, &cancelled)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return upcoming, todayCount, cancelled, nil
}

func (db *DB) listBookings(ctx context.Context, q queryer, filter models.BookingFilter) ([]*models.Booking, error) {
	where, args := bookingWhere(filter)
	order := `date ASC, start_time ASC, id ASC`
	if filter.NewestFirst {
		order = `date DESC, start_time DESC, id DESC`
	}
	suffix := ` ORDER BY ` + order
	if filter.Limit > 0 {
		suffix += ` LIMIT ? OFFSET ?`
		args = append(args, filter.Limit, filter.Offset)
	}
	return db.listBookingsWhere(ctx, q, where, args, suffix)
}

func (db *DB) listBookingsWhere(ctx context.Context, q queryer, where string, args []interface{}, suffix string) ([]*models.Booking, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE `+where+suffix, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b, err := db.scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bookings: %w", err)
	}
	return bookings, nil
}

func bookingWhere(f models.BookingFilter) (string, []interface{}) {
	clauses := []string{"1 = 1"}
	var args []interface{}
	if f.Date != "" {
		clauses = append(clauses, "date = ?")
		args = append(args, f.Date)
	}
	if f.DateFrom != "" {
		clauses = append(clauses, "date >= ?")
		args = append(args, f.DateFrom)
	}
	if f.DateTo != "" {
		clauses = append(clauses, "date <= ?")
		args = append(args, f.DateTo)
	}
	if f.RoomID > 0 {
		clauses = append(clauses, "room_id = ?")
		args = append(args, f.RoomID)
	}
	if f.UserID > 0 {
		clauses = append(clauses, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.BuildingID > 0 {
		clauses = append(clauses, "room_id IN (SELECT id FROM rooms WHERE building_id = ?)")
		args = append(args, f.BuildingID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, f.Status)
	}
	if f.ActiveOnly {
		clauses = append(clauses, "status != ?")
		args = append(args, models.StatusCancelled)
	}
	return strings.Join(clauses, " AND "), args
}

func (db *DB) scanBooking(rows *sql.Rows) (*models.Booking, error) {
	var b models.Booking
	var purpose, team string
	err := rows.Scan(
		&b.ID, &b.RoomID, &b.RoomName, &b.UserID, &b.UserName, &b.UserDepartment, &b.Date,
		&b.StartTime, &b.EndTime, &purpose, &team, &b.Status, &b.CreatedAt, &b.UpdatedAt, &b.Version,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan booking: %w", err)
	}
	db.openBooking(&b, purpose, team)
	return &b, nil
}

func (db *DB) sealBooking(b *models.Booking) (purpose, team string, err error) {
	c := db.getCipher()
	purpose, err = c.Encrypt(b.Purpose)
	if err != nil {
		return "", "", fmt.Errorf("failed to encrypt purpose: %w", err)
	}
	team, err = c.EncryptList(b.TeamMembers)
	if err != nil {
		return "", "", fmt.Errorf("failed to encrypt team members: %w", err)
	}
	return purpose, team, nil
}

// openBooking decrypts stored fields. Values written before a key was
// configured are returned as stored.
func (db *DB) openBooking(b *models.Booking, purpose, team string) {
	c := db.getCipher()

	if p, err := c.Decrypt(purpose); err == nil {
		b.Purpose = p
	} else {
		b.Purpose = purpose
		db.warn(err, b.ID, "purpose")
	}

	members, err := c.DecryptList(team)
	if err != nil {
		var plain *crypto.Cipher
		members, err = plain.DecryptList(team)
		if err != nil {
			db.warn(err, b.ID, "team_members")
			members = []string{}
		}
	}
	b.TeamMembers = members
}

func (db *DB) warn(err error, bookingID int64, field string) {
	if db.logger != nil {
		db.logger.Warn().Err(err).Int64("booking_id", bookingID).Str("field", field).Msg("failed to decrypt booking field")
	}
}
