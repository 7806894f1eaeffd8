package models

import "time"

type Booking struct {
	ID             int64     `json:"id"`
	RoomID         int64     `json:"room_id"`
	RoomName       string    `json:"room_name"`
	UserID         int64     `json:"user_id"`
	UserName       string    `json:"user_name,omitempty"`
	UserDepartment string    `json:"user_department,omitempty"`
	Date           string    `json:"date"`       // YYYY-MM-DD
	StartTime      string    `json:"start_time"` // HH:MM
	EndTime        string    `json:"end_time"`   // HH:MM
	Purpose        string    `json:"purpose"`
	TeamMembers    []string  `json:"team_members"`
	Status         string    `json:"status"` // upcoming, completed, cancelled
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	Version        int64     `json:"version"`
}

// IsActive reports whether the booking still occupies its room.
func (b *Booking) IsActive() bool {
	return b.Status != StatusCancelled
}

// BookingFilter narrows schedule listings. Zero values are ignored.
type BookingFilter struct {
	Date        string
	DateFrom    string
	DateTo      string
	RoomID      int64
	UserID      int64
	BuildingID  int64
	Status      string
	ActiveOnly  bool // exclude cancelled
	NewestFirst bool
	Limit       int
	Offset      int
}
