package models

type UtilizationStat struct {
	RoomID        int64   `json:"room_id"`
	RoomName      string  `json:"room_name"`
	Date          string  `json:"date"`
	Percentage    int     `json:"percentage"`
	BookingCount  int     `json:"booking_count"`
	BookedMinutes int     `json:"booked_minutes"`
	HoursBooked   float64 `json:"hours_booked"`
}

type UtilizationSummary struct {
	Date    string            `json:"date"`
	Average int               `json:"average"`
	Rooms   []UtilizationStat `json:"rooms"`
}

type DepartmentUsage struct {
	Department   string  `json:"department"`
	BookingCount int     `json:"booking_count"`
	TotalHours   float64 `json:"total_hours"`
}

type Overview struct {
	TotalRooms         int `json:"total_rooms"`
	RoomsInMaintenance int `json:"rooms_in_maintenance"`
	TotalUsers         int `json:"total_users"`
	UpcomingBookings   int `json:"upcoming_bookings"`
	TodayBookings      int `json:"today_bookings"`
	CancelledBookings  int `json:"cancelled_bookings"`
}
