package service

import (
	"context"
	"time"

	"scams/internal/booking"
	"scams/internal/config"
	"scams/internal/domain"
	"scams/internal/models"
)

type AnalyticsService struct {
	repo domain.Repository
	cfg  config.BookingConfig
	now  func() time.Time
}

func NewAnalyticsService(repo domain.Repository, cfg config.BookingConfig, now func() time.Time) *AnalyticsService {
	if now == nil {
		now = time.Now
	}
	return &AnalyticsService{repo: repo, cfg: cfg, now: now}
}

func (s *AnalyticsService) today() string {
	return s.now().Format(models.DateLayout)
}

// Utilization reports how much of the workday each room is booked on date (today by default).
func (s *AnalyticsService) Utilization(ctx context.Context, actor *models.User, date string) (models.UtilizationSummary, error) {
	if !actor.IsAdmin() {
		return models.UtilizationSummary{}, ErrForbidden
	}
	if date == "" {
		date = s.today()
	}
	if err := checkDate(date); err != nil {
		return models.UtilizationSummary{}, err
	}
	return s.utilization(ctx, date)
}

func (s *AnalyticsService) utilization(ctx context.Context, date string) (models.UtilizationSummary, error) {
	rooms, err := s.repo.ListRooms(ctx, models.RoomFilter{})
	if err != nil {
		return models.UtilizationSummary{}, err
	}
	bookings, err := s.repo.ListBookings(ctx, models.BookingFilter{Date: date, Status: models.StatusUpcoming})
	if err != nil {
		return models.UtilizationSummary{}, err
	}
	return booking.Summarize(rooms, bookings, date, s.cfg.WorkdayMinutes), nil
}

// UtilizationReport is Utilization without the role check, for trusted callers such as the CLI.
func (s *AnalyticsService) UtilizationReport(ctx context.Context, date string) (models.UtilizationSummary, error) {
	if date == "" {
		date = s.today()
	}
	if err := checkDate(date); err != nil {
		return models.UtilizationSummary{}, err
	}
	return s.utilization(ctx, date)
}

// Departments aggregates booking counts and hours by department over [from, to].
// Defaults to the last 30 days.
func (s *AnalyticsService) Departments(ctx context.Context, actor *models.User, from, to string) ([]models.DepartmentUsage, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	if to == "" {
		to = s.today()
	}
	if from == "" {
		t, err := time.Parse(models.DateLayout, to)
		if err != nil {
			return nil, invalid("to must be a YYYY-MM-DD date")
		}
		from = t.AddDate(0, 0, -30).Format(models.DateLayout)
	}
	if err := checkRange(from, to); err != nil {
		return nil, err
	}
	bookings, err := s.repo.ListBookings(ctx, models.BookingFilter{DateFrom: from, DateTo: to, ActiveOnly: true})
	if err != nil {
		return nil, err
	}
	return booking.DepartmentUsage(bookings), nil
}

func (s *AnalyticsService) Overview(ctx context.Context, actor *models.User) (models.Overview, error) {
	var o models.Overview
	if !actor.IsAdmin() {
		return o, ErrForbidden
	}
	var err error
	if o.TotalRooms, o.RoomsInMaintenance, err = s.repo.CountRooms(ctx); err != nil {
		return o, err
	}
	if o.TotalUsers, err = s.repo.CountUsers(ctx); err != nil {
		return o, err
	}
	o.UpcomingBookings, o.TodayBookings, o.CancelledBookings, err = s.repo.BookingCounts(ctx, s.today())
	return o, err
}
