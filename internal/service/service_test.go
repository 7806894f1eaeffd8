package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"scams/internal/config"
	"scams/internal/database"
	"scams/internal/events"
	"scams/internal/models"
	"scams/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 10, 15, 9, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

func testBookingConfig() config.BookingConfig {
	return config.BookingConfig{
		MinDurationMinutes: 30,
		MaxDurationMinutes: 480,
		MaxAdvanceDays:     90,
		WorkdayMinutes:     480,
		DayStart:           "08:00",
		DayEnd:             "18:00",
		SlotMinutes:        60,
		AlternativesLimit:  3,
		LockTTLSeconds:     5,
	}
}

type fixture struct {
	db       *database.DB
	bus      *events.EventBus
	locker   *repository.MemoryRoomLocker
	bookings *BookingService
	rooms    *RoomService
	admin    *models.User
	alice    *models.User
	bob      *models.User
	orion    *models.Room
	vega     *models.Room
	lyra     *models.Room
	mu       sync.Mutex
	received []events.Event
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	f := &fixture{db: db, bus: events.NewEventBus(), locker: repository.NewMemoryRoomLocker()}
	for _, et := range append(events.BookingEvents, events.EventRoomChanged) {
		f.bus.Subscribe(et, func(e *events.Event) error {
			f.mu.Lock()
			f.received = append(f.received, *e)
			f.mu.Unlock()
			return nil
		})
	}

	ctx := context.Background()
	f.admin = f.user(t, "Root", "root@example.com", "IT", models.RoleAdmin)
	f.alice = f.user(t, "Alice", "alice@example.com", "Sales", models.RoleEmployee)
	f.bob = f.user(t, "Bob", "bob@example.com", "Research", models.RoleEmployee)

	f.orion = &models.Room{Name: "Orion", BuildingID: 1, BuildingName: "Main", Capacity: 8, Devices: []string{"Projector"}, Status: models.RoomAvailable}
	f.vega = &models.Room{Name: "Vega", BuildingID: 1, BuildingName: "Main", Capacity: 10, Devices: []string{"Projector", "Whiteboard"}, Status: models.RoomAvailable}
	f.lyra = &models.Room{Name: "Lyra", BuildingID: 2, BuildingName: "Annex", Capacity: 30, Status: models.RoomAvailable}
	for _, r := range []*models.Room{f.orion, f.vega, f.lyra} {
		require.NoError(t, db.CreateRoom(ctx, r))
	}

	cfg := testBookingConfig()
	f.bookings = NewBookingService(db, f.locker, f.bus, cfg, fixedNow, &logger)
	f.rooms = NewRoomService(db, nil, f.bus, cfg, &logger)
	return f
}

func (f *fixture) user(t *testing.T, name, email, dept, role string) *models.User {
	t.Helper()
	u := &models.User{FullName: name, Email: email, Department: dept, Role: role, HashedPassword: "x"}
	require.NoError(t, f.db.CreateUser(context.Background(), u))
	return u
}

func (f *fixture) book(t *testing.T, actor *models.User, room *models.Room, date, start, end string) *models.Booking {
	t.Helper()
	b, err := f.bookings.CreateBooking(context.Background(), actor, BookingRequest{
		RoomID: room.ID, Date: date, StartTime: start, EndTime: end, Purpose: "Sync",
	})
	require.NoError(t, err)
	return b
}

func (f *fixture) eventTypes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.received))
	for _, e := range f.received {
		out = append(out, e.Type)
	}
	return out
}
