package models

import "time"

type Room struct {
	ID           int64     `json:"id" yaml:"id"`
	Name         string    `json:"name" yaml:"name"`
	BuildingID   int64     `json:"building_id" yaml:"building_id"`
	BuildingName string    `json:"building_name" yaml:"building_name"`
	FloorNumber  int       `json:"floor_number" yaml:"floor_number"`
	Capacity     int       `json:"capacity" yaml:"capacity"`
	Description  string    `json:"description" yaml:"description"`
	Type         string    `json:"type,omitempty" yaml:"type"`
	ImageURL     string    `json:"image_url,omitempty" yaml:"image_url"`
	Devices      []string  `json:"devices" yaml:"devices"`
	Status       string    `json:"status" yaml:"status"` // available, maintenance
	CreatedAt    time.Time `json:"created_at" yaml:"-"`
	UpdatedAt    time.Time `json:"updated_at" yaml:"-"`
}

// HasDevices reports whether the room carries every requested device (case-insensitive).
func (r *Room) HasDevices(required []string) bool {
	if len(required) == 0 {
		return true
	}
	have := make(map[string]bool, len(r.Devices))
	for _, d := range r.Devices {
		have[normalize(d)] = true
	}
	for _, d := range required {
		if !have[normalize(d)] {
			return false
		}
	}
	return true
}

// RoomFilter mirrors the query parameters of the room listing.
type RoomFilter struct {
	BuildingID  int64
	MinCapacity int
	Devices     []string
	Date        string
	StartTime   string
	EndTime     string
}

type TimeSlot struct {
	Time      string `json:"time"`
	Available bool   `json:"available"`
}

type MaintenanceSchedule struct {
	ID        int64     `json:"id"`
	RoomID    int64     `json:"room_id"`
	RoomName  string    `json:"room_name"`
	StartDate string    `json:"start_date"`
	EndDate   string    `json:"end_date"`
	Reason    string    `json:"reason"`
	Status    string    `json:"status"` // scheduled, in-progress, completed
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Covers reports whether a YYYY-MM-DD date falls inside the maintenance window.
func (m *MaintenanceSchedule) Covers(date string) bool {
	return m.Status != MaintenanceCompleted && m.StartDate <= date && date <= m.EndDate
}

type Building struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
