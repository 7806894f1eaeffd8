package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"scams/internal/booking"
	"scams/internal/config"
	"scams/internal/database"
	"scams/internal/domain"
	"scams/internal/events"
	"scams/internal/metrics"
	"scams/internal/models"

	"github.com/rs/zerolog"
)

// BookingRequest is the editable part of a booking.
type BookingRequest struct {
	RoomID      int64    `json:"room_id"`
	Date        string   `json:"date"`
	StartTime   string   `json:"start_time"`
	EndTime     string   `json:"end_time"`
	Purpose     string   `json:"purpose"`
	TeamMembers []string `json:"team_members"`
}

// CheckRequest asks whether a slot is free. ExcludeBookingID skips the booking being edited.
type CheckRequest struct {
	RoomID           int64  `json:"room_id"`
	Date             string `json:"date"`
	StartTime        string `json:"start_time"`
	EndTime          string `json:"end_time"`
	ExcludeBookingID int64  `json:"exclude_booking_id"`
}

type CheckResult struct {
	booking.ConflictResult
	Alternatives []*models.Room `json:"alternative_rooms"`
}

type BookingService struct {
	repo      domain.Repository
	locker    domain.RoomLocker
	eventBus  domain.EventPublisher
	validator *booking.Validator
	cfg       config.BookingConfig
	logger    *zerolog.Logger

	lockWait time.Duration
	lockPoll time.Duration
}

const (
	defaultLockWait = 2 * time.Second
	defaultLockPoll = 25 * time.Millisecond
)

func NewBookingService(repo domain.Repository, locker domain.RoomLocker, eventBus domain.EventPublisher, cfg config.BookingConfig, now func() time.Time, logger *zerolog.Logger) *BookingService {
	return &BookingService{
		repo:      repo,
		locker:    locker,
		eventBus:  eventBus,
		validator: booking.NewValidator(cfg.Rules(), now),
		cfg:       cfg,
		logger:    logger,
		lockWait:  defaultLockWait,
		lockPoll:  defaultLockPoll,
	}
}

// Today returns the current booking date in the configured timezone.
func (s *BookingService) Today() string {
	return s.validator.Today()
}

// normalize validates date and time and rewrites the clocks as zero-padded HH:MM.
func (s *BookingService) normalize(req *BookingRequest) error {
	if req.RoomID <= 0 {
		return invalid("room_id is required")
	}
	if res := s.validator.ValidateDate(req.Date); !res.Valid {
		return invalid("%s", res.Message)
	}
	if res := s.validator.ValidateTime(req.StartTime, req.EndTime); !res.Valid {
		return invalid("%s", res.Message)
	}
	iv, _ := booking.ParseInterval(req.StartTime, req.EndTime)
	req.StartTime = booking.FormatClock(iv.Start)
	req.EndTime = booking.FormatClock(iv.End)
	req.Purpose = strings.TrimSpace(req.Purpose)
	req.TeamMembers = cleanMembers(req.TeamMembers)
	return nil
}

func cleanMembers(in []string) []string {
	out := make([]string, 0, len(in))
	for _, m := range in {
		if m = strings.TrimSpace(m); m != "" {
			out = append(out, m)
		}
	}
	return out
}

// bookableRoom loads the room and rejects it while it is under maintenance on date.
func (s *BookingService) bookableRoom(ctx context.Context, roomID int64, date string) (*models.Room, error) {
	room, err := s.repo.GetRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, invalid("Room does not exist")
		}
		return nil, err
	}
	if room.Status == models.RoomMaintenance {
		return nil, invalid("Room %s is under maintenance", room.Name)
	}
	m, err := s.repo.ActiveMaintenance(ctx, roomID, date)
	if err != nil {
		return nil, err
	}
	if m != nil {
		return nil, invalid("Room %s is under maintenance from %s to %s", room.Name, m.StartDate, m.EndDate)
	}
	return room, nil
}

// CheckConflict previews a slot. On conflict it suggests alternative rooms.
func (s *BookingService) CheckConflict(ctx context.Context, req CheckRequest) (*CheckResult, error) {
	if req.RoomID <= 0 || req.Date == "" {
		return nil, invalid("room_id and date are required")
	}
	c := booking.Candidate{RoomID: req.RoomID, Date: req.Date, StartTime: req.StartTime, EndTime: req.EndTime}
	existing, err := s.repo.ListBookings(ctx, models.BookingFilter{Date: req.Date, ActiveOnly: true})
	if err != nil {
		return nil, err
	}
	res, err := booking.CheckConflict(existing, c, req.ExcludeBookingID)
	if err != nil {
		return nil, invalid("Invalid time format; expected HH:MM")
	}

	out := &CheckResult{ConflictResult: res, Alternatives: []*models.Room{}}
	if res.HasConflict {
		alts, err := s.alternatives(ctx, existing, c)
		if err != nil {
			return nil, err
		}
		out.Alternatives = alts
	}
	return out, nil
}

func (s *BookingService) alternatives(ctx context.Context, dayBookings []*models.Booking, c booking.Candidate) ([]*models.Room, error) {
	rooms, err := s.repo.ListRooms(ctx, models.RoomFilter{})
	if err != nil {
		return nil, err
	}
	alts := booking.AlternativeRooms(rooms, dayBookings, c, s.cfg.AlternativesLimit)
	// a room under a maintenance window is not a real alternative
	out := make([]*models.Room, 0, len(alts))
	for _, r := range alts {
		m, err := s.repo.ActiveMaintenance(ctx, r.ID, c.Date)
		if err != nil {
			return nil, err
		}
		if m == nil {
			out = append(out, r)
		}
	}
	return out, nil
}

// conflictError rebuilds the conflict details after the database rejected a write.
func (s *BookingService) conflictError(ctx context.Context, c booking.Candidate, excludeID int64) error {
	existing, err := s.repo.ListBookings(ctx, models.BookingFilter{Date: c.Date, ActiveOnly: true})
	if err != nil {
		return err
	}
	res, err := booking.CheckConflict(existing, c, excludeID)
	if err != nil {
		return err
	}
	if !res.HasConflict {
		res = booking.ConflictResult{HasConflict: true, Message: "This time slot was just taken"}
	}
	alts, err := s.alternatives(ctx, existing, c)
	if err != nil {
		return err
	}
	metrics.IncConflict()
	return &ConflictError{Result: res, Alternatives: alts}
}

func (s *BookingService) lock(ctx context.Context, roomID int64, date string) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	ttl := time.Duration(s.cfg.LockTTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	// Writers on the same room and day queue briefly; overlap itself is
	// decided inside the database transaction.
	deadline := time.Now().Add(s.lockWait)
	var token string
	for {
		t, ok, err := s.locker.Acquire(ctx, roomID, date, ttl)
		if err != nil {
			return nil, err
		}
		if ok {
			token = t
			break
		}
		if !time.Now().Before(deadline) {
			return nil, ErrRoomBusy
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.lockPoll):
		}
	}
	return func() {
		if err := s.locker.Release(context.Background(), roomID, date, token); err != nil {
			s.logger.Warn().Err(err).Int64("room_id", roomID).Str("date", date).Msg("Failed to release room lock")
		}
	}, nil
}

func (s *BookingService) CreateBooking(ctx context.Context, actor *models.User, req BookingRequest) (*models.Booking, error) {
	if err := s.normalize(&req); err != nil {
		return nil, err
	}
	room, err := s.bookableRoom(ctx, req.RoomID, req.Date)
	if err != nil {
		return nil, err
	}

	unlock, err := s.lock(ctx, req.RoomID, req.Date)
	if err != nil {
		return nil, err
	}
	defer unlock()

	b := &models.Booking{
		RoomID:         room.ID,
		RoomName:       room.Name,
		UserID:         actor.ID,
		UserName:       actor.FullName,
		UserDepartment: actor.Department,
		Date:           req.Date,
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
		Purpose:        req.Purpose,
		TeamMembers:    req.TeamMembers,
		Status:         models.StatusUpcoming,
	}
	if err := s.repo.CreateBookingWithLock(ctx, b); err != nil {
		if errors.Is(err, database.ErrBookingConflict) {
			return nil, s.conflictError(ctx, candidateOf(b), 0)
		}
		return nil, err
	}

	metrics.IncBooking("created")
	s.publishEvent(events.EventBookingCreated, b, actor.ID)
	s.logger.Info().Int64("booking_id", b.ID).Int64("room_id", b.RoomID).Str("date", b.Date).
		Str("start", b.StartTime).Str("end", b.EndTime).Msg("Booking created")
	return b, nil
}

// UpdateBooking moves or edits an upcoming booking. Only the owner or an admin may edit.
func (s *BookingService) UpdateBooking(ctx context.Context, actor *models.User, id int64, req BookingRequest) (*models.Booking, error) {
	current, err := s.ownedBooking(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if current.Status != models.StatusUpcoming {
		return nil, invalid("Only upcoming bookings can be edited")
	}
	if err := s.normalize(&req); err != nil {
		return nil, err
	}
	room, err := s.bookableRoom(ctx, req.RoomID, req.Date)
	if err != nil {
		return nil, err
	}

	unlock, err := s.lock(ctx, req.RoomID, req.Date)
	if err != nil {
		return nil, err
	}
	defer unlock()

	updated := *current
	updated.RoomID = room.ID
	updated.RoomName = room.Name
	updated.Date = req.Date
	updated.StartTime = req.StartTime
	updated.EndTime = req.EndTime
	updated.Purpose = req.Purpose
	updated.TeamMembers = req.TeamMembers

	if err := s.repo.UpdateBookingWithLock(ctx, &updated, current.Version); err != nil {
		if errors.Is(err, database.ErrBookingConflict) {
			return nil, s.conflictError(ctx, candidateOf(&updated), updated.ID)
		}
		return nil, err
	}

	metrics.IncBooking("updated")
	s.publishEvent(events.EventBookingUpdated, &updated, actor.ID)
	return &updated, nil
}

// CancelBooking cancels an upcoming booking on behalf of its owner or an admin.
func (s *BookingService) CancelBooking(ctx context.Context, actor *models.User, id int64) (*models.Booking, error) {
	b, err := s.ownedBooking(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if b.Status != models.StatusUpcoming {
		return nil, invalid("Only upcoming bookings can be cancelled")
	}
	if err := s.transition(ctx, b, models.StatusCancelled); err != nil {
		return nil, err
	}

	metrics.IncBooking("cancelled")
	s.publishEvent(events.EventBookingCancelled, b, actor.ID)
	return b, nil
}

// CompleteBooking marks an upcoming booking as held. Admins only.
func (s *BookingService) CompleteBooking(ctx context.Context, actor *models.User, id int64) (*models.Booking, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	b, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Status != models.StatusUpcoming {
		return nil, invalid("Only upcoming bookings can be completed")
	}
	if err := s.transition(ctx, b, models.StatusCompleted); err != nil {
		return nil, err
	}

	metrics.IncBooking("completed")
	s.publishEvent(events.EventBookingCompleted, b, actor.ID)
	return b, nil
}

func (s *BookingService) transition(ctx context.Context, b *models.Booking, status string) error {
	if err := s.repo.UpdateBookingStatusWithVersion(ctx, b.ID, b.Version, status); err != nil {
		return err
	}
	b.Status = status
	b.Version++
	return nil
}

func (s *BookingService) ownedBooking(ctx context.Context, actor *models.User, id int64) (*models.Booking, error) {
	b, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.UserID != actor.ID && !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	return b, nil
}

func (s *BookingService) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	return s.repo.GetBooking(ctx, id)
}

// ListBookings lists schedules. Without any date bound it shows today.
func (s *BookingService) ListBookings(ctx context.Context, filter models.BookingFilter) ([]*models.Booking, error) {
	if filter.Date == "" && filter.DateFrom == "" && filter.DateTo == "" {
		filter.Date = s.Today()
	}
	return s.repo.ListBookings(ctx, filter)
}

// ListMine pages through the actor's bookings, newest first, and returns the total count.
func (s *BookingService) ListMine(ctx context.Context, actor *models.User, limit, offset int) ([]*models.Booking, int, error) {
	if limit <= 0 {
		limit = models.DefaultPageSize
	}
	if offset < 0 {
		offset = 0
	}
	filter := models.BookingFilter{UserID: actor.ID, NewestFirst: true, Limit: limit, Offset: offset}
	list, err := s.repo.ListBookings(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.CountBookings(ctx, models.BookingFilter{UserID: actor.ID})
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// BookingsInRange returns every booking dated within [from, to].
func (s *BookingService) BookingsInRange(ctx context.Context, from, to string) ([]*models.Booking, error) {
	if err := checkRange(from, to); err != nil {
		return nil, err
	}
	return s.repo.ListBookings(ctx, models.BookingFilter{DateFrom: from, DateTo: to})
}

func checkRange(from, to string) error {
	f, err := time.Parse(models.DateLayout, from)
	if err != nil {
		return invalid("from must be a YYYY-MM-DD date")
	}
	t, err := time.Parse(models.DateLayout, to)
	if err != nil {
		return invalid("to must be a YYYY-MM-DD date")
	}
	if t.Before(f) {
		return invalid("to must not be before from")
	}
	return nil
}

func candidateOf(b *models.Booking) booking.Candidate {
	return booking.Candidate{RoomID: b.RoomID, Date: b.Date, StartTime: b.StartTime, EndTime: b.EndTime}
}

func (s *BookingService) publishEvent(eventType string, b *models.Booking, changedByID int64) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.PublishJSON(eventType, events.NewBookingPayload(b, changedByID)); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("booking_id", b.ID).Msg("publish event error")
	}
}
