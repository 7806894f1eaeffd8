package booking

import (
	"math"
	"sort"

	"scams/internal/models"
)

// RoomUtilization sums the upcoming bookings of one room on one date and expresses
// them as a share of workdayMinutes. A non-positive workday falls back to 8 hours.
func RoomUtilization(bookings []*models.Booking, roomID int64, date string, workdayMinutes int) models.UtilizationStat {
	if workdayMinutes <= 0 {
		workdayMinutes = models.DefaultWorkdayMinutes
	}

	stat := models.UtilizationStat{RoomID: roomID, Date: date}
	for _, b := range bookings {
		if b == nil || b.RoomID != roomID || b.Date != date || b.Status != models.StatusUpcoming {
			continue
		}
		iv, err := ParseInterval(b.StartTime, b.EndTime)
		if err != nil || iv.Minutes() <= 0 {
			continue
		}
		stat.BookingCount++
		stat.BookedMinutes += iv.Minutes()
		if stat.RoomName == "" {
			stat.RoomName = b.RoomName
		}
	}

	stat.Percentage = Percentage(stat.BookedMinutes, workdayMinutes)
	stat.HoursBooked = math.Round(float64(stat.BookedMinutes)/60*10) / 10
	return stat
}

// Percentage returns round(booked/total*100) clamped to [0,100].
func Percentage(booked, total int) int {
	if total <= 0 || booked <= 0 {
		return 0
	}
	p := math.Floor(float64(booked)/float64(total)*100 + 0.5)
	if p > 100 {
		return 100
	}
	return int(p)
}

// Summarize computes per-room utilization for a date, sorted by percentage
// descending, and the average across rooms.
func Summarize(rooms []*models.Room, bookings []*models.Booking, date string, workdayMinutes int) models.UtilizationSummary {
	summary := models.UtilizationSummary{Date: date, Rooms: make([]models.UtilizationStat, 0, len(rooms))}
	if len(rooms) == 0 {
		return summary
	}

	total := 0
	for _, r := range rooms {
		stat := RoomUtilization(bookings, r.ID, date, workdayMinutes)
		stat.RoomName = r.Name
		total += stat.Percentage
		summary.Rooms = append(summary.Rooms, stat)
	}

	sort.SliceStable(summary.Rooms, func(i, j int) bool {
		return summary.Rooms[i].Percentage > summary.Rooms[j].Percentage
	})
	summary.Average = int(math.Floor(float64(total)/float64(len(rooms)) + 0.5))
	return summary
}

// DepartmentUsage aggregates non-cancelled bookings by the booker's department.
func DepartmentUsage(bookings []*models.Booking) []models.DepartmentUsage {
	idx := make(map[string]*models.DepartmentUsage)
	var order []string
	for _, b := range bookings {
		if b == nil || !b.IsActive() {
			continue
		}
		dept := b.UserDepartment
		if dept == "" {
			dept = "Unassigned"
		}
		u, ok := idx[dept]
		if !ok {
			u = &models.DepartmentUsage{Department: dept}
			idx[dept] = u
			order = append(order, dept)
		}
		u.BookingCount++
		if iv, err := ParseInterval(b.StartTime, b.EndTime); err == nil && iv.Minutes() > 0 {
			u.TotalHours += float64(iv.Minutes()) / 60
		}
	}

	out := make([]models.DepartmentUsage, 0, len(order))
	for _, dept := range order {
		u := *idx[dept]
		u.TotalHours = math.Round(u.TotalHours*10) / 10
		out = append(out, u)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].BookingCount > out[j].BookingCount
	})
	return out
}
