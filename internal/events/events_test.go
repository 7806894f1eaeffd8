package events

import (
	"encoding/json"
	"errors"
	"testing"

	"scams/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus(t *testing.T) {
	bus := NewEventBus()

	var received *Event
	var callCount int

	bus.Subscribe("test_event", func(event *Event) error {
		received = event
		callCount++
		return nil
	})

	require.NoError(t, bus.PublishJSON("test_event", map[string]string{"foo": "bar"}))
	assert.Equal(t, 1, callCount)
	require.NotNil(t, received)
	assert.Equal(t, "test_event", received.Type)
	assert.False(t, received.CreatedAt.IsZero())

	var decoded map[string]string
	require.NoError(t, json.Unmarshal(received.Payload, &decoded))
	assert.Equal(t, "bar", decoded["foo"])
}

func TestEventBusMultipleSubscribers(t *testing.T) {
	bus := NewEventBus()
	var count1, count2 int

	bus.Subscribe("event", func(_ *Event) error { count1++; return nil })
	bus.Subscribe("event", func(_ *Event) error { count2++; return nil })

	bus.Publish(&Event{Type: "event"})

	assert.Equal(t, 1, count1)
	assert.Equal(t, 1, count2)
}

func TestEventBusHandlerErrorDoesNotStopDelivery(t *testing.T) {
	bus := NewEventBus()
	var failed []string
	var delivered bool

	bus.OnError(func(e *Event, err error) { failed = append(failed, e.Type+": "+err.Error()) })
	bus.Subscribe("event", func(_ *Event) error { return errors.New("boom") })
	bus.Subscribe("event", func(_ *Event) error { delivered = true; return nil })

	bus.Publish(&Event{Type: "event"})

	assert.True(t, delivered)
	assert.Equal(t, []string{"event: boom"}, failed)
}

func TestEventBusSubscribeAll(t *testing.T) {
	bus := NewEventBus()
	var seen []string
	bus.SubscribeAll(BookingEvents, func(e *Event) error { seen = append(seen, e.Type); return nil })

	for _, typ := range BookingEvents {
		require.NoError(t, bus.PublishJSON(typ, nil))
	}
	require.NoError(t, bus.PublishJSON(EventRoomChanged, nil))

	assert.Equal(t, BookingEvents, seen)
}

func TestEventBusNoSubscribers(t *testing.T) {
	bus := NewEventBus()
	bus.Publish(&Event{Type: "unknown"})
	assert.NoError(t, bus.PublishJSON("unknown", nil))

	var nilBus *EventBus
	assert.NoError(t, nilBus.PublishJSON("unknown", nil))
}

func TestNewJSONEvent(t *testing.T) {
	event, err := NewJSONEvent("type", BookingEventPayload{BookingID: 123})
	require.NoError(t, err)
	assert.Equal(t, "type", event.Type)
	assert.False(t, event.CreatedAt.IsZero())

	decoded, err := DecodeBooking(&event)
	require.NoError(t, err)
	assert.Equal(t, int64(123), decoded.BookingID)

	_, err = NewJSONEvent("type", make(chan int))
	assert.Error(t, err)
}

func TestNewBookingPayload(t *testing.T) {
	b := &models.Booking{
		ID: 7, RoomID: 2, RoomName: "Atlas", UserID: 3, UserName: "Ada",
		Date: "2025-10-20", StartTime: "09:00", EndTime: "10:00",
		Purpose: "secret", TeamMembers: []string{"bob"}, Status: models.StatusUpcoming,
	}
	p := NewBookingPayload(b, 9)

	assert.Equal(t, BookingEventPayload{
		BookingID: 7, RoomID: 2, RoomName: "Atlas", UserID: 3, UserName: "Ada",
		Date: "2025-10-20", StartTime: "09:00", EndTime: "10:00",
		Status: models.StatusUpcoming, ChangedByID: 9,
	}, p)

	raw, err := json.Marshal(p)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "secret")
}
