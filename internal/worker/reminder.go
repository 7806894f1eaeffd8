package worker

import (
	"context"
	"time"

	"scams/internal/booking"
	"scams/internal/domain"
	"scams/internal/models"

	"github.com/rs/zerolog"
)

// Reminder notifies owners of next-day bookings once per day after a fixed clock time.
type Reminder struct {
	repo     domain.BookingRepository
	enq      domain.TaskEnqueuer
	at       int
	now      func() time.Time
	lastSent string
	logger   *zerolog.Logger
}

func NewReminder(repo domain.BookingRepository, enq domain.TaskEnqueuer, at string, now func() time.Time, logger *zerolog.Logger) (*Reminder, error) {
	minutes, err := booking.ParseClock(at)
	if err != nil {
		return nil, err
	}
	if now == nil {
		now = time.Now
	}
	return &Reminder{repo: repo, enq: enq, at: minutes, now: now, logger: logger}, nil
}

func (r *Reminder) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := r.Tick(ctx); err != nil && ctx.Err() == nil {
			r.logger.Error().Err(err).Msg("Reminder run failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Tick sends tomorrow's reminders if the reminder time has passed and they
// were not sent yet today.
func (r *Reminder) Tick(ctx context.Context) (int, error) {
	now := r.now()
	today := now.Format(models.DateLayout)
	if r.lastSent == today || now.Hour()*60+now.Minute() < r.at {
		return 0, nil
	}

	tomorrow := booking.StartOfDay(now).AddDate(0, 0, 1).Format(models.DateLayout)
	n, err := r.Send(ctx, tomorrow)
	if err != nil {
		return n, err
	}
	r.lastSent = today
	return n, nil
}

// Send enqueues a reminder for every upcoming booking on date.
func (r *Reminder) Send(ctx context.Context, date string) (int, error) {
	bookings, err := r.repo.ListBookings(ctx, models.BookingFilter{Date: date, Status: models.StatusUpcoming})
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, b := range bookings {
		if err := r.enq.EnqueueTask(ctx, TaskNotify, b.ID, reminderNotification(b)); err != nil {
			return sent, err
		}
		sent++
	}
	if sent > 0 {
		r.logger.Info().Int("count", sent).Str("date", date).Msg("Reminders queued")
	}
	return sent, nil
}
