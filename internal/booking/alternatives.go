package booking

import "scams/internal/models"

// AlternativeRooms suggests up to limit available rooms whose capacity is within 50%
// of the conflicted room and that have no conflict for the candidate slot.
func AlternativeRooms(rooms []*models.Room, bookings []*models.Booking, c Candidate, limit int) []*models.Room {
	if limit <= 0 {
		limit = models.DefaultAlternativesLimit
	}

	var conflicted *models.Room
	for _, r := range rooms {
		if r.ID == c.RoomID {
			conflicted = r
			break
		}
	}
	if conflicted == nil {
		return nil
	}

	out := make([]*models.Room, 0, limit)
	for _, r := range rooms {
		if len(out) == limit {
			break
		}
		if r.ID == conflicted.ID || r.Status != models.RoomAvailable {
			continue
		}
		diff := r.Capacity - conflicted.Capacity
		if diff < 0 {
			diff = -diff
		}
		if float64(diff) > float64(conflicted.Capacity)*0.5 {
			continue
		}
		alt := c
		alt.RoomID = r.ID
		res, err := CheckConflict(bookings, alt, 0)
		if err != nil || res.HasConflict {
			continue
		}
		out = append(out, r)
	}
	return out
}
