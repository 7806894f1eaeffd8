package booking

import (
	"fmt"

	"scams/internal/models"
)

// Candidate is the room/date/time range a user wants to reserve.
type Candidate struct {
	RoomID    int64
	Date      string
	StartTime string
	EndTime   string
}

// ConflictResult lists the bookings that overlap a candidate.
type ConflictResult struct {
	HasConflict bool              `json:"has_conflict"`
	Conflicting []*models.Booking `json:"conflicting_bookings"`
	Message     string            `json:"message,omitempty"`
}

// CheckConflict scans existing bookings for ones in the same room and date whose
// interval overlaps the candidate. Cancelled bookings and excludeID are ignored;
// excludeID of 0 excludes nothing.
func CheckConflict(existing []*models.Booking, c Candidate, excludeID int64) (ConflictResult, error) {
	want, err := ParseInterval(c.StartTime, c.EndTime)
	if err != nil {
		return ConflictResult{}, err
	}

	var res ConflictResult
	for _, b := range existing {
		if b == nil || !b.IsActive() {
			continue
		}
		if excludeID != 0 && b.ID == excludeID {
			continue
		}
		if b.RoomID != c.RoomID || b.Date != c.Date {
			continue
		}
		have, err := ParseInterval(b.StartTime, b.EndTime)
		if err != nil {
			continue
		}
		if want.Overlaps(have) {
			res.Conflicting = append(res.Conflicting, b)
		}
	}

	if len(res.Conflicting) > 0 {
		res.HasConflict = true
		res.Message = fmt.Sprintf("This time slot conflicts with %d existing booking(s)", len(res.Conflicting))
	}
	return res, nil
}
