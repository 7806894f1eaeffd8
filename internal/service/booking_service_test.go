package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"scams/internal/database"
	"scams/internal/events"
	"scams/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateBooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.bookings.CreateBooking(ctx, f.alice, BookingRequest{
		RoomID: f.orion.ID, Date: "2025-10-16", StartTime: "9:00", EndTime: "10:30",
		Purpose: "  Planning ", TeamMembers: []string{"Bob", " ", "Carol"},
	})
	require.NoError(t, err)

	assert.NotZero(t, b.ID)
	assert.Equal(t, "09:00", b.StartTime)
	assert.Equal(t, "Orion", b.RoomName)
	assert.Equal(t, "Alice", b.UserName)
	assert.Equal(t, "Sales", b.UserDepartment)
	assert.Equal(t, "Planning", b.Purpose)
	assert.Equal(t, []string{"Bob", "Carol"}, b.TeamMembers)
	assert.Equal(t, models.StatusUpcoming, b.Status)

	require.Len(t, f.received, 1)
	assert.Equal(t, events.EventBookingCreated, f.received[0].Type)
	p, err := events.DecodeBooking(&f.received[0])
	require.NoError(t, err)
	assert.Equal(t, b.ID, p.BookingID)
	assert.Equal(t, f.alice.ID, p.ChangedByID)
}

func TestCreateBooking_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  BookingRequest
		msg  string
	}{
		{"past", BookingRequest{RoomID: f.orion.ID, Date: "2025-10-14", StartTime: "09:00", EndTime: "10:00"}, "Cannot book rooms in the past"},
		{"too far", BookingRequest{RoomID: f.orion.ID, Date: "2026-01-14", StartTime: "09:00", EndTime: "10:00"}, "Cannot book rooms more than 90 days in advance"},
		{"inverted", BookingRequest{RoomID: f.orion.ID, Date: "2025-10-16", StartTime: "10:00", EndTime: "09:00"}, "End time must be after start time"},
		{"too short", BookingRequest{RoomID: f.orion.ID, Date: "2025-10-16", StartTime: "10:00", EndTime: "10:15"}, "Booking must be at least 30 minutes"},
		{"too long", BookingRequest{RoomID: f.orion.ID, Date: "2025-10-16", StartTime: "08:00", EndTime: "16:30"}, "Booking cannot exceed 8 hours"},
		{"unknown room", BookingRequest{RoomID: 999, Date: "2025-10-16", StartTime: "09:00", EndTime: "10:00"}, "Room does not exist"},
		{"no room", BookingRequest{Date: "2025-10-16", StartTime: "09:00", EndTime: "10:00"}, "room_id is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.bookings.CreateBooking(ctx, f.alice, tt.req)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.msg, verr.Message)
		})
	}
	assert.Empty(t, f.received)
}

func TestCreateBooking_TodayAndLastDayAllowed(t *testing.T) {
	f := newFixture(t)
	f.book(t, f.alice, f.orion, "2025-10-15", "10:00", "11:00")
	f.book(t, f.alice, f.orion, "2026-01-13", "10:00", "11:00")
}

func TestCreateBooking_Conflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	existing := f.book(t, f.alice, f.orion, "2025-10-16", "09:00", "10:00")

	_, err := f.bookings.CreateBooking(ctx, f.bob, BookingRequest{
		RoomID: f.orion.ID, Date: "2025-10-16", StartTime: "09:30", EndTime: "10:30",
	})
	var cerr *ConflictError
	require.ErrorAs(t, err, &cerr)
	assert.True(t, cerr.Result.HasConflict)
	assert.Equal(t, "This time slot conflicts with 1 existing booking(s)", cerr.Error())
	require.Len(t, cerr.Result.Conflicting, 1)
	assert.Equal(t, existing.ID, cerr.Result.Conflicting[0].ID)

	// Vega is within 50% of Orion's capacity, Lyra is not
	require.Len(t, cerr.Alternatives, 1)
	assert.Equal(t, f.vega.ID, cerr.Alternatives[0].ID)

	// back-to-back is fine
	f.book(t, f.bob, f.orion, "2025-10-16", "10:00", "11:00")
}

func TestCreateBooking_CancelledDoesNotBlock(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, f.alice, f.orion, "2025-10-16", "09:00", "10:00")
	_, err := f.bookings.CancelBooking(context.Background(), f.alice, b.ID)
	require.NoError(t, err)

	f.book(t, f.bob, f.orion, "2025-10-16", "09:00", "10:00")
}

func TestCreateBooking_RoomBusy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.bookings.lockWait = 50 * time.Millisecond
	f.bookings.lockPoll = 5 * time.Millisecond

	_, ok, err := f.locker.Acquire(ctx, f.orion.ID, "2025-10-16", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = f.bookings.CreateBooking(ctx, f.alice, BookingRequest{
		RoomID: f.orion.ID, Date: "2025-10-16", StartTime: "09:00", EndTime: "10:00",
	})
	assert.ErrorIs(t, err, ErrRoomBusy)
}

func TestCreateBooking_WaitsForRoomLock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	token, ok, err := f.locker.Acquire(ctx, f.orion.ID, "2025-10-16", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	go func() {
		time.Sleep(100 * time.Millisecond)
		_ = f.locker.Release(context.Background(), f.orion.ID, "2025-10-16", token)
	}()

	b, err := f.bookings.CreateBooking(ctx, f.alice, BookingRequest{
		RoomID: f.orion.ID, Date: "2025-10-16", StartTime: "09:00", EndTime: "10:00",
	})
	require.NoError(t, err)
	assert.Equal(t, "09:00", b.StartTime)
}

func TestConcurrentCreateBooking_DisjointSlots(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	slots := [][2]string{{"09:00", "10:00"}, {"10:00", "11:00"}, {"11:00", "12:00"}, {"13:00", "14:00"}}
	var wg sync.WaitGroup
	errs := make(chan error, len(slots))
	for _, sl := range slots {
		wg.Add(1)
		go func(start, end string) {
			defer wg.Done()
			_, err := f.bookings.CreateBooking(ctx, f.alice, BookingRequest{
				RoomID: f.orion.ID, Date: "2025-10-16", StartTime: start, EndTime: end,
			})
			errs <- err
		}(sl[0], sl[1])
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	list, err := f.db.ListBookings(ctx, models.BookingFilter{RoomID: f.orion.ID, Date: "2025-10-16"})
	require.NoError(t, err)
	assert.Len(t, list, len(slots))
}

func TestCreateBooking_Maintenance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.db.CreateMaintenance(ctx, &models.MaintenanceSchedule{
		RoomID: f.orion.ID, StartDate: "2025-10-16", EndDate: "2025-10-17", Reason: "Paint",
	}))

	_, err := f.bookings.CreateBooking(ctx, f.alice, BookingRequest{
		RoomID: f.orion.ID, Date: "2025-10-17", StartTime: "09:00", EndTime: "10:00",
	})
	assert.True(t, IsValidation(err))

	f.book(t, f.alice, f.orion, "2025-10-18", "09:00", "10:00")

	require.NoError(t, f.db.UpdateRoomStatus(ctx, f.vega.ID, models.RoomMaintenance))
	_, err = f.bookings.CreateBooking(ctx, f.alice, BookingRequest{
		RoomID: f.vega.ID, Date: "2025-10-20", StartTime: "09:00", EndTime: "10:00",
	})
	assert.True(t, IsValidation(err))
}

func TestConcurrentCreateBooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const writers = 8
	var wg sync.WaitGroup
	results := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.bookings.CreateBooking(ctx, f.alice, BookingRequest{
				RoomID: f.orion.ID, Date: "2025-10-16", StartTime: "09:00", EndTime: "10:00",
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	created := 0
	for err := range results {
		if err == nil {
			created++
			continue
		}
		var cerr *ConflictError
		assert.True(t, errors.Is(err, ErrRoomBusy) || errors.As(err, &cerr), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, created)

	list, err := f.db.ListBookings(ctx, models.BookingFilter{RoomID: f.orion.ID, Date: "2025-10-16"})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestCheckConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.book(t, f.alice, f.orion, "2025-10-16", "09:00", "10:00")

	res, err := f.bookings.CheckConflict(ctx, CheckRequest{RoomID: f.orion.ID, Date: "2025-10-16", StartTime: "09:30", EndTime: "11:00"})
	require.NoError(t, err)
	assert.True(t, res.HasConflict)
	assert.Len(t, res.Conflicting, 1)
	assert.Len(t, res.Alternatives, 1)

	res, err = f.bookings.CheckConflict(ctx, CheckRequest{RoomID: f.orion.ID, Date: "2025-10-16", StartTime: "09:30", EndTime: "11:00", ExcludeBookingID: b.ID})
	require.NoError(t, err)
	assert.False(t, res.HasConflict)
	assert.Empty(t, res.Alternatives)

	_, err = f.bookings.CheckConflict(ctx, CheckRequest{RoomID: f.orion.ID, Date: "2025-10-16", StartTime: "9am", EndTime: "11:00"})
	assert.True(t, IsValidation(err))
}

func TestUpdateBooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.book(t, f.alice, f.orion, "2025-10-16", "09:00", "10:00")
	f.book(t, f.bob, f.orion, "2025-10-16", "11:00", "12:00")

	// shifting within its own slot does not conflict with itself
	updated, err := f.bookings.UpdateBooking(ctx, f.alice, b.ID, BookingRequest{
		RoomID: f.orion.ID, Date: "2025-10-16", StartTime: "09:30", EndTime: "10:30", Purpose: "Moved",
	})
	require.NoError(t, err)
	assert.Equal(t, "09:30", updated.StartTime)
	assert.Equal(t, b.Version+1, updated.Version)

	_, err = f.bookings.UpdateBooking(ctx, f.alice, b.ID, BookingRequest{
		RoomID: f.orion.ID, Date: "2025-10-16", StartTime: "10:30", EndTime: "11:30",
	})
	var cerr *ConflictError
	assert.ErrorAs(t, err, &cerr)

	_, err = f.bookings.UpdateBooking(ctx, f.bob, b.ID, BookingRequest{
		RoomID: f.orion.ID, Date: "2025-10-16", StartTime: "13:00", EndTime: "14:00",
	})
	assert.ErrorIs(t, err, ErrForbidden)

	moved, err := f.bookings.UpdateBooking(ctx, f.admin, b.ID, BookingRequest{
		RoomID: f.vega.ID, Date: "2025-10-17", StartTime: "13:00", EndTime: "14:00",
	})
	require.NoError(t, err)
	assert.Equal(t, "Vega", moved.RoomName)

	assert.Contains(t, f.eventTypes(), events.EventBookingUpdated)
}

func TestCancelBooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.book(t, f.alice, f.orion, "2025-10-16", "09:00", "10:00")

	_, err := f.bookings.CancelBooking(ctx, f.bob, b.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	cancelled, err := f.bookings.CancelBooking(ctx, f.admin, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, cancelled.Status)

	_, err = f.bookings.CancelBooking(ctx, f.alice, b.ID)
	assert.True(t, IsValidation(err))

	_, err = f.bookings.CancelBooking(ctx, f.alice, 999)
	assert.ErrorIs(t, err, database.ErrNotFound)

	last := f.received[len(f.received)-1]
	assert.Equal(t, events.EventBookingCancelled, last.Type)
	p, err := events.DecodeBooking(&last)
	require.NoError(t, err)
	assert.Equal(t, f.admin.ID, p.ChangedByID)
	assert.Equal(t, f.alice.ID, p.UserID)
}

func TestCompleteBooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.book(t, f.alice, f.orion, "2025-10-16", "09:00", "10:00")

	_, err := f.bookings.CompleteBooking(ctx, f.alice, b.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	done, err := f.bookings.CompleteBooking(ctx, f.admin, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, done.Status)

	got, err := f.bookings.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
}

func TestListMine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.book(t, f.alice, f.orion, "2025-10-16", "09:00", "10:00")
	f.book(t, f.alice, f.orion, "2025-10-18", "09:00", "10:00")
	f.book(t, f.alice, f.vega, "2025-10-17", "09:00", "10:00")
	f.book(t, f.bob, f.lyra, "2025-10-17", "09:00", "10:00")

	list, total, err := f.bookings.ListMine(ctx, f.alice, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, list, 2)
	assert.Equal(t, "2025-10-18", list[0].Date)
	assert.Equal(t, "2025-10-17", list[1].Date)

	list, _, err = f.bookings.ListMine(ctx, f.alice, 2, 2)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "2025-10-16", list[0].Date)
}

func TestListBookings_DefaultsToToday(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.book(t, f.alice, f.orion, "2025-10-15", "10:00", "11:00")
	f.book(t, f.alice, f.orion, "2025-10-16", "10:00", "11:00")
	f.book(t, f.bob, f.lyra, "2025-10-15", "12:00", "13:00")

	list, err := f.bookings.ListBookings(ctx, models.BookingFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, err = f.bookings.ListBookings(ctx, models.BookingFilter{BuildingID: 2})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, f.lyra.ID, list[0].RoomID)

	list, err = f.bookings.BookingsInRange(ctx, "2025-10-15", "2025-10-16")
	require.NoError(t, err)
	assert.Len(t, list, 3)

	_, err = f.bookings.BookingsInRange(ctx, "2025-10-16", "2025-10-15")
	assert.True(t, IsValidation(err))
}
