package service

import (
	"context"
	"strings"
	"time"

	"scams/internal/booking"
	"scams/internal/config"
	"scams/internal/domain"
	"scams/internal/events"
	"scams/internal/models"

	"github.com/rs/zerolog"
)

type RoomService struct {
	repo     domain.Repository
	cache    domain.RoomCache
	eventBus domain.EventPublisher
	cfg      config.BookingConfig
	logger   *zerolog.Logger
}

func NewRoomService(repo domain.Repository, cache domain.RoomCache, eventBus domain.EventPublisher, cfg config.BookingConfig, logger *zerolog.Logger) *RoomService {
	return &RoomService{repo: repo, cache: cache, eventBus: eventBus, cfg: cfg, logger: logger}
}

// allRooms reads the unfiltered room list through the cache.
func (s *RoomService) allRooms(ctx context.Context) ([]*models.Room, error) {
	if s.cache != nil {
		rooms, err := s.cache.GetRooms(ctx)
		if err != nil {
			s.logger.Warn().Err(err).Msg("room cache read failed")
		} else if rooms != nil {
			return rooms, nil
		}
	}

	rooms, err := s.repo.ListRooms(ctx, models.RoomFilter{})
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.SetRooms(ctx, rooms); err != nil {
			s.logger.Warn().Err(err).Msg("room cache write failed")
		}
	}
	return rooms, nil
}

// ListRooms applies building, capacity and device filters. When a full date and
// time window is given, only rooms free for the whole window are returned.
func (s *RoomService) ListRooms(ctx context.Context, filter models.RoomFilter) ([]*models.Room, error) {
	window := filter.Date != "" || filter.StartTime != "" || filter.EndTime != ""
	var iv booking.Interval
	if window {
		if filter.Date == "" || filter.StartTime == "" || filter.EndTime == "" {
			return nil, invalid("date, start_time and end_time must be given together")
		}
		var err error
		if iv, err = booking.ParseInterval(filter.StartTime, filter.EndTime); err != nil {
			return nil, invalid("Invalid time format; expected HH:MM")
		}
	}

	rooms, err := s.allRooms(ctx)
	if err != nil {
		return nil, err
	}

	var dayBookings []*models.Booking
	if window {
		dayBookings, err = s.repo.ListBookings(ctx, models.BookingFilter{Date: filter.Date, ActiveOnly: true})
		if err != nil {
			return nil, err
		}
	}

	out := make([]*models.Room, 0, len(rooms))
	for _, r := range rooms {
		if filter.BuildingID > 0 && r.BuildingID != filter.BuildingID {
			continue
		}
		if filter.MinCapacity > 0 && r.Capacity < filter.MinCapacity {
			continue
		}
		if !r.HasDevices(filter.Devices) {
			continue
		}
		if window {
			free, err := s.freeDuring(ctx, r, dayBookings, filter.Date, iv)
			if err != nil {
				return nil, err
			}
			if !free {
				continue
			}
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *RoomService) freeDuring(ctx context.Context, r *models.Room, dayBookings []*models.Booking, date string, iv booking.Interval) (bool, error) {
	if r.Status != models.RoomAvailable {
		return false, nil
	}
	c := booking.Candidate{RoomID: r.ID, Date: date, StartTime: booking.FormatClock(iv.Start), EndTime: booking.FormatClock(iv.End)}
	res, err := booking.CheckConflict(dayBookings, c, 0)
	if err != nil || res.HasConflict {
		return false, err
	}
	m, err := s.repo.ActiveMaintenance(ctx, r.ID, date)
	if err != nil {
		return false, err
	}
	return m == nil, nil
}

func (s *RoomService) GetRoom(ctx context.Context, id int64) (*models.Room, error) {
	return s.repo.GetRoom(ctx, id)
}

// Schedule returns the room's non-cancelled bookings on date, earliest first.
func (s *RoomService) Schedule(ctx context.Context, roomID int64, date string) ([]*models.Booking, error) {
	if err := checkDate(date); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}
	return s.repo.ListBookings(ctx, models.BookingFilter{RoomID: roomID, Date: date, ActiveOnly: true})
}

// Slots splits the configured business day into fixed slots for the room.
func (s *RoomService) Slots(ctx context.Context, roomID int64, date string) ([]models.TimeSlot, error) {
	list, err := s.Schedule(ctx, roomID, date)
	if err != nil {
		return nil, err
	}
	return booking.Slots(list, roomID, date, s.cfg.DayStart, s.cfg.DayEnd, s.cfg.SlotMinutes)
}

func (s *RoomService) Buildings(ctx context.Context) ([]models.Building, error) {
	return s.repo.ListBuildings(ctx)
}

func (s *RoomService) Devices(ctx context.Context) ([]string, error) {
	return s.repo.ListDevices(ctx)
}

func (s *RoomService) CreateRoom(ctx context.Context, actor *models.User, room *models.Room) error {
	if !actor.IsAdmin() {
		return ErrForbidden
	}
	if err := checkRoom(room); err != nil {
		return err
	}
	if err := s.repo.CreateRoom(ctx, room); err != nil {
		return err
	}
	s.changed(ctx, room, "created")
	return nil
}

func (s *RoomService) UpdateRoom(ctx context.Context, actor *models.User, room *models.Room) error {
	if !actor.IsAdmin() {
		return ErrForbidden
	}
	if err := checkRoom(room); err != nil {
		return err
	}
	if err := s.repo.UpdateRoom(ctx, room); err != nil {
		return err
	}
	s.changed(ctx, room, "updated")
	return nil
}

// DeleteRoom removes a room. Rooms with booking history cannot be deleted.
func (s *RoomService) DeleteRoom(ctx context.Context, actor *models.User, id int64) error {
	if !actor.IsAdmin() {
		return ErrForbidden
	}
	if err := s.repo.DeleteRoom(ctx, id); err != nil {
		return err
	}
	s.changed(ctx, &models.Room{ID: id}, "deleted")
	return nil
}

func checkRoom(room *models.Room) error {
	room.Name = strings.TrimSpace(room.Name)
	switch {
	case room.Name == "":
		return invalid("Room name is required")
	case room.Capacity <= 0:
		return invalid("Capacity must be positive")
	case room.BuildingID <= 0:
		return invalid("building_id is required")
	}
	if room.Status == "" {
		room.Status = models.RoomAvailable
	}
	if room.Status != models.RoomAvailable && room.Status != models.RoomMaintenance {
		return invalid("Unknown room status %q", room.Status)
	}
	room.Devices = cleanMembers(room.Devices)
	return nil
}

// changed drops the cached room list and announces the change.
func (s *RoomService) changed(ctx context.Context, room *models.Room, action string) {
	s.invalidate(ctx)
	s.logger.Info().Int64("room_id", room.ID).Str("action", action).Msg("Room changed")
	if s.eventBus == nil {
		return
	}
	payload := map[string]interface{}{"room_id": room.ID, "action": action}
	if err := s.eventBus.PublishJSON(events.EventRoomChanged, payload); err != nil {
		s.logger.Error().Err(err).Int64("room_id", room.ID).Msg("publish event error")
	}
}

func (s *RoomService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("room cache invalidate failed")
	}
}

func checkDate(date string) error {
	if _, err := time.Parse(models.DateLayout, date); err != nil {
		return invalid("date must be a YYYY-MM-DD date")
	}
	return nil
}
