package worker

import (
	"context"
	"fmt"
	"time"

	"scams/internal/booking"
	"scams/internal/domain"
	"scams/internal/events"
	"scams/internal/models"

	"github.com/rs/zerolog"
)

const enqueueTimeout = 5 * time.Second

// SubscribeNotifications turns booking events into notify tasks for the booking owner.
func SubscribeNotifications(bus *events.EventBus, enq domain.TaskEnqueuer, logger *zerolog.Logger) {
	bus.SubscribeAll(events.BookingEvents, func(event *events.Event) error {
		p, err := events.DecodeBooking(event)
		if err != nil {
			return fmt.Errorf("decode %s: %w", event.Type, err)
		}
		n := bookingNotification(event.Type, p)
		if n == nil {
			return nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), enqueueTimeout)
		defer cancel()
		if err := enq.EnqueueTask(ctx, TaskNotify, p.BookingID, n); err != nil {
			logger.Error().Err(err).Int64("booking_id", p.BookingID).Str("event", event.Type).Msg("Failed to enqueue notification")
			return err
		}
		return nil
	})
}

// ForwardEvents enqueues a publish task for each event of the given types.
func ForwardEvents(bus *events.EventBus, enq domain.TaskEnqueuer, eventTypes []string, logger *zerolog.Logger) {
	bus.SubscribeAll(eventTypes, func(event *events.Event) error {
		var bookingID int64
		if p, err := events.DecodeBooking(event); err == nil {
			bookingID = p.BookingID
		}

		ctx, cancel := context.WithTimeout(context.Background(), enqueueTimeout)
		defer cancel()
		if err := enq.EnqueueTask(ctx, TaskPublish, bookingID, event); err != nil {
			logger.Error().Err(err).Str("event", event.Type).Msg("Failed to enqueue event for publishing")
			return err
		}
		return nil
	})
}

func bookingNotification(eventType string, p events.BookingEventPayload) *models.Notification {
	when := fmt.Sprintf("%s at %s", displayDate(p.Date), displayClock(p.StartTime))
	n := &models.Notification{UserID: p.UserID}

	switch eventType {
	case events.EventBookingCreated:
		n.Type = models.NotificationConfirmation
		n.Title = "Booking Confirmed"
		n.Message = fmt.Sprintf("Your booking for %s on %s has been confirmed.", p.RoomName, when)
	case events.EventBookingUpdated:
		n.Type = models.NotificationChange
		n.Title = "Booking Updated"
		n.Message = fmt.Sprintf("Your booking for %s has been moved to %s.", p.RoomName, when)
	case events.EventBookingCancelled:
		n.Type = models.NotificationCancellation
		n.Title = "Booking Cancelled"
		n.Message = fmt.Sprintf("Your booking for %s on %s has been cancelled.", p.RoomName, when)
		if p.ChangedByID != 0 && p.ChangedByID != p.UserID {
			n.Message = fmt.Sprintf("Your booking for %s on %s was cancelled by an administrator.", p.RoomName, when)
		}
	default:
		return nil
	}
	return n
}

func reminderNotification(b *models.Booking) *models.Notification {
	return &models.Notification{
		UserID:  b.UserID,
		Type:    models.NotificationReminder,
		Title:   "Meeting Reminder",
		Message: fmt.Sprintf("You have a meeting in %s tomorrow at %s.", b.RoomName, displayClock(b.StartTime)),
	}
}

// displayDate renders 2025-10-15 as "Oct 15".
func displayDate(date string) string {
	d, err := time.Parse(models.DateLayout, date)
	if err != nil {
		return date
	}
	return d.Format("Jan 2")
}

// displayClock renders 14:00 as "2:00 PM".
func displayClock(clock string) string {
	m, err := booking.ParseClock(clock)
	if err != nil {
		return clock
	}
	t := time.Date(2000, 1, 1, m/60, m%60, 0, 0, time.UTC)
	return t.Format("3:04 PM")
}
