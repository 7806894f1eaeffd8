package booking

import "scams/internal/models"

// Slots splits [open, close) into step-minute slots and marks each one available
// when no active booking of the room on that date overlaps it.
func Slots(bookings []*models.Booking, roomID int64, date string, open, closeAt string, step int) ([]models.TimeSlot, error) {
	day, err := ParseInterval(open, closeAt)
	if err != nil {
		return nil, err
	}
	if step <= 0 {
		step = 60
	}

	var taken []Interval
	for _, b := range bookings {
		if b == nil || !b.IsActive() || b.RoomID != roomID || b.Date != date {
			continue
		}
		if iv, err := ParseInterval(b.StartTime, b.EndTime); err == nil {
			taken = append(taken, iv)
		}
	}

	var slots []models.TimeSlot
	for t := day.Start; t+step <= day.End; t += step {
		slot := Interval{Start: t, End: t + step}
		free := true
		for _, iv := range taken {
			if slot.Overlaps(iv) {
				free = false
				break
			}
		}
		slots = append(slots, models.TimeSlot{Time: FormatClock(t), Available: free})
	}
	return slots, nil
}
