package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"scams/internal/crypto"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

var (
	ErrNotFound               = errors.New("not found")
	ErrBookingConflict        = errors.New("booking conflicts with an existing booking")
	ErrConcurrentModification = errors.New("record was modified concurrently")
	ErrDuplicateEmail         = errors.New("email already registered")
	ErrRoomHasBookings        = errors.New("room has bookings")
)

type DB struct {
	*sql.DB
	path   string
	logger *zerolog.Logger
	mu     sync.RWMutex
	cipher *crypto.Cipher
}

func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if path != ":memory:" {
		// Создаем директорию для БД, если её нет
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// IMMEDIATE транзакции берут блокировку на запись сразу, а не при первом UPDATE
	dsn := path + "?_txlock=immediate&_busy_timeout=5000&_foreign_keys=on"
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite допускает одного писателя; для :memory: каждое соединение - отдельная база
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := &DB{DB: sqlDB, path: path, logger: logger}
	if err := db.createTables(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	if err := db.ensureColumn("bookings", "version", "INTEGER NOT NULL DEFAULT 1"); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	if logger != nil {
		logger.Info().Str("path", path).Msg("database initialized")
	}
	return db, nil
}

// Path returns the database file path the DB was opened with.
func (db *DB) Path() string { return db.path }

// SetCipher enables at-rest encryption of booking purpose and team members.
func (db *DB) SetCipher(c *crypto.Cipher) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.cipher = c
}

func (db *DB) getCipher() *crypto.Cipher {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.cipher
}

func (db *DB) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            full_name TEXT NOT NULL,
            email TEXT NOT NULL UNIQUE COLLATE NOCASE,
            department TEXT NOT NULL DEFAULT '',
            role TEXT NOT NULL DEFAULT 'employee',
            status TEXT NOT NULL DEFAULT 'active',
            hashed_password TEXT NOT NULL,
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS rooms (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            name TEXT NOT NULL UNIQUE COLLATE NOCASE,
            building_id INTEGER NOT NULL DEFAULT 0,
            building_name TEXT NOT NULL DEFAULT '',
            floor_number INTEGER NOT NULL DEFAULT 0,
            capacity INTEGER NOT NULL,
            description TEXT NOT NULL DEFAULT '',
            type TEXT NOT NULL DEFAULT '',
            image_url TEXT NOT NULL DEFAULT '',
            devices TEXT NOT NULL DEFAULT '[]',
            status TEXT NOT NULL DEFAULT 'available',
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL
        )`,
		// date и время храним текстом: YYYY-MM-DD и HH:MM
		`CREATE TABLE IF NOT EXISTS bookings (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            room_id INTEGER NOT NULL REFERENCES rooms(id),
            room_name TEXT NOT NULL,
            user_id INTEGER NOT NULL REFERENCES users(id),
            user_name TEXT NOT NULL DEFAULT '',
            user_department TEXT NOT NULL DEFAULT '',
            date TEXT NOT NULL,
            start_time TEXT NOT NULL,
            end_time TEXT NOT NULL,
            purpose TEXT NOT NULL DEFAULT '',
            team_members TEXT NOT NULL DEFAULT '',
            status TEXT NOT NULL DEFAULT 'upcoming',
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS maintenance (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            room_id INTEGER NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
            start_date TEXT NOT NULL,
            end_date TEXT NOT NULL,
            reason TEXT NOT NULL DEFAULT '',
            status TEXT NOT NULL DEFAULT 'scheduled',
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS notifications (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            type TEXT NOT NULL,
            title TEXT NOT NULL,
            message TEXT NOT NULL,
            is_read BOOLEAN NOT NULL DEFAULT 0,
            created_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS tasks (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            task_type TEXT NOT NULL,
            booking_id INTEGER NOT NULL DEFAULT 0,
            payload TEXT NOT NULL DEFAULT '',
            status TEXT NOT NULL DEFAULT 'pending',
            retry_count INTEGER NOT NULL DEFAULT 0,
            last_error TEXT,
            created_at DATETIME NOT NULL,
            processed_at DATETIME,
            next_retry_at DATETIME
        )`,

		`CREATE INDEX IF NOT EXISTS idx_bookings_room_date ON bookings(room_id, date)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_user_id ON bookings(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_status ON bookings(status)`,
		`CREATE INDEX IF NOT EXISTS idx_rooms_building ON rooms(building_id)`,
		`CREATE INDEX IF NOT EXISTS idx_maintenance_room ON maintenance(room_id)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, is_read)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status, next_retry_at)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

// ensureColumn adds a column to databases created before it existed.
func (db *DB) ensureColumn(table, column, definition string) error {
	_, err := db.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, definition))
	if err != nil && !strings.Contains(err.Error(), "duplicate column") {
		return fmt.Errorf("failed to add column %s.%s: %w", table, column, err)
	}
	return nil
}

// notFound maps sql.ErrNoRows onto ErrNotFound.
func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("failed to get %s: %w", what, err)
}

func checkAffected(result sql.Result, missing error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		return missing
	}
	return nil
}
