package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"scams/internal/models"
)

const userColumns = `id, full_name, email, department, role, status, hashed_password, created_at, updated_at`

func (db *DB) CreateUser(ctx context.Context, user *models.User) error {
	if user.Role == "" {
		user.Role = models.RoleEmployee
	}
	if user.Status == "" {
		user.Status = models.UserActive
	}

	query := `INSERT INTO users (
				full_name, email, department, role, status, hashed_password, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		user.FullName,
		strings.ToLower(strings.TrimSpace(user.Email)),
		user.Department,
		user.Role,
		user.Status,
		user.HashedPassword,
		now,
		now,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	user.ID = id
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

func (db *DB) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return db.queryUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (db *DB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return db.queryUser(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, strings.ToLower(strings.TrimSpace(email)))
}

func (db *DB) queryUser(ctx context.Context, query string, args ...interface{}) (*models.User, error) {
	var user models.User
	err := db.QueryRowContext(ctx, query, args...).Scan(
		&user.ID, &user.FullName, &user.Email, &user.Department, &user.Role, &user.Status,
		&user.HashedPassword, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err, "user")
	}
	return &user, nil
}

func (db *DB) ListUsers(ctx context.Context) ([]*models.User, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY full_name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(
			&u.ID, &u.FullName, &u.Email, &u.Department, &u.Role, &u.Status,
			&u.HashedPassword, &u.CreatedAt, &u.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, &u)
	}
	return users, rows.Err()
}

// UpdateUser rewrites profile, role and status. The password is left untouched.
func (db *DB) UpdateUser(ctx context.Context, user *models.User) error {
	query := `UPDATE users SET full_name = ?, department = ?, role = ?, status = ?, updated_at = ? WHERE id = ?`
	now := time.Now()
	result, err := db.ExecContext(ctx, query, user.FullName, user.Department, user.Role, user.Status, now, user.ID)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if err := checkAffected(result, fmt.Errorf("user %d: %w", user.ID, ErrNotFound)); err != nil {
		return err
	}
	user.UpdatedAt = now
	return nil
}

func (db *DB) UpdateUserPassword(ctx context.Context, id int64, hashed string) error {
	result, err := db.ExecContext(ctx, `UPDATE users SET hashed_password = ?, updated_at = ? WHERE id = ?`, hashed, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return checkAffected(result, fmt.Errorf("user %d: %w", id, ErrNotFound))
}

func (db *DB) CountUsers(ctx context.Context) (int, error) {
	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}
