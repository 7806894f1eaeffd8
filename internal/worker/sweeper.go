package worker

import (
	"context"
	"time"

	"scams/internal/domain"
	"scams/internal/events"
	"scams/internal/metrics"

	"github.com/rs/zerolog"
)

// Sweeper completes upcoming bookings whose end time has passed.
type Sweeper struct {
	repo     domain.BookingRepository
	events   domain.EventPublisher
	interval time.Duration
	now      func() time.Time
	logger   *zerolog.Logger
}

func NewSweeper(repo domain.BookingRepository, pub domain.EventPublisher, interval time.Duration, now func() time.Time, logger *zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if now == nil {
		now = time.Now
	}
	return &Sweeper{repo: repo, events: pub, interval: interval, now: now, logger: logger}
}

func (s *Sweeper) Start(ctx context.Context) {
	s.logger.Info().Dur("interval", s.interval).Msg("Booking sweeper started")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error().Err(err).Msg("Booking sweep failed")
		}
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Booking sweeper stopped")
			return
		case <-ticker.C:
		}
	}
}

// Sweep runs one pass and returns the number of bookings completed.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	done, err := s.repo.CompletePastBookings(ctx, s.now())
	if err != nil {
		return 0, err
	}
	for _, b := range done {
		metrics.IncBooking("completed")
		if s.events == nil {
			continue
		}
		if err := s.events.PublishJSON(events.EventBookingCompleted, events.NewBookingPayload(b, 0)); err != nil {
			s.logger.Warn().Err(err).Int64("booking_id", b.ID).Msg("Failed to publish completion")
		}
	}
	if len(done) > 0 {
		s.logger.Info().Int("count", len(done)).Msg("Completed past bookings")
	}
	return len(done), nil
}
