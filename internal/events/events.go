package events

import (
	"encoding/json"
	"sync"
	"time"

	"scams/internal/models"
)

const (
	EventBookingCreated   = "booking_created"
	EventBookingUpdated   = "booking_updated"
	EventBookingCancelled = "booking_cancelled"
	EventBookingCompleted = "booking_completed"
	EventRoomChanged      = "room_changed"
)

// BookingEvents lists every booking lifecycle event type.
var BookingEvents = []string{
	EventBookingCreated,
	EventBookingUpdated,
	EventBookingCancelled,
	EventBookingCompleted,
}

// BookingEventPayload describes the minimal booking snapshot for event consumers.
type BookingEventPayload struct {
	BookingID   int64  `json:"booking_id"`
	RoomID      int64  `json:"room_id"`
	RoomName    string `json:"room_name"`
	UserID      int64  `json:"user_id"`
	UserName    string `json:"user_name,omitempty"`
	Date        string `json:"date"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Status      string `json:"status"`
	ChangedByID int64  `json:"changed_by_id,omitempty"`
}

// NewBookingPayload snapshots b. Purpose and team members never leave the database.
func NewBookingPayload(b *models.Booking, changedBy int64) BookingEventPayload {
	return BookingEventPayload{
		BookingID:   b.ID,
		RoomID:      b.RoomID,
		RoomName:    b.RoomName,
		UserID:      b.UserID,
		UserName:    b.UserName,
		Date:        b.Date,
		StartTime:   b.StartTime,
		EndTime:     b.EndTime,
		Status:      b.Status,
		ChangedByID: changedBy,
	}
}

// Event represents a lightweight domain event.
type Event struct {
	ID        int64           `json:"id,omitempty"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
	errs        func(event *Event, err error)
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// OnError installs a callback for handler failures. Handlers never stop delivery.
func (b *EventBus) OnError(fn func(event *Event, err error)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.errs = fn
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// SubscribeAll registers the handler for each of the event types.
func (b *EventBus) SubscribeAll(eventTypes []string, handler EventHandler) {
	for _, t := range eventTypes {
		b.Subscribe(t, handler)
	}
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	onErr := b.errs
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		if err := handler(event); err != nil && onErr != nil {
			onErr(event, err)
		}
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	event, err := NewJSONEvent(eventType, payload)
	if err != nil {
		return err
	}

	b.Publish(&event)
	return nil
}

// NewJSONEvent builds an Event with JSON payload for manual publishing.
func NewJSONEvent(eventType string, payload interface{}) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}

	return Event{Type: eventType, Payload: raw, CreatedAt: time.Now()}, nil
}

// DecodeBooking unpacks a booking event payload.
func DecodeBooking(event *Event) (BookingEventPayload, error) {
	var p BookingEventPayload
	err := json.Unmarshal(event.Payload, &p)
	return p, err
}
