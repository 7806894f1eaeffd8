package models

import (
	"strings"
	"time"
)

type User struct {
	ID             int64     `json:"id"`
	FullName       string    `json:"name"`
	Email          string    `json:"email"`
	Department     string    `json:"department"`
	Role           string    `json:"role"`   // employee, admin
	Status         string    `json:"status"` // active, inactive
	HashedPassword string    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

func (u *User) IsActive() bool {
	return u.Status != UserInactive
}

// Session is an authenticated sign-in, keyed by an opaque token.
type Session struct {
	Token     string    `json:"token"`
	UserID    int64     `json:"user_id"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
