package service

import (
	"context"
	"strings"

	"scams/internal/domain"
	"scams/internal/models"

	"github.com/rs/zerolog"
)

type MaintenanceService struct {
	repo   domain.Repository
	cache  domain.RoomCache
	logger *zerolog.Logger
}

func NewMaintenanceService(repo domain.Repository, cache domain.RoomCache, logger *zerolog.Logger) *MaintenanceService {
	return &MaintenanceService{repo: repo, cache: cache, logger: logger}
}

func validMaintenanceStatus(s string) bool {
	switch s {
	case models.MaintenanceScheduled, models.MaintenanceInProgress, models.MaintenanceCompleted:
		return true
	}
	return false
}

func (s *MaintenanceService) List(ctx context.Context, actor *models.User, roomID int64) ([]*models.MaintenanceSchedule, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	return s.repo.ListMaintenance(ctx, roomID)
}

func (s *MaintenanceService) Create(ctx context.Context, actor *models.User, m *models.MaintenanceSchedule) error {
	if !actor.IsAdmin() {
		return ErrForbidden
	}
	if err := checkRange(m.StartDate, m.EndDate); err != nil {
		return err
	}
	m.Reason = strings.TrimSpace(m.Reason)
	if m.Reason == "" {
		return invalid("Reason is required")
	}
	if m.Status == "" {
		m.Status = models.MaintenanceScheduled
	}
	if !validMaintenanceStatus(m.Status) {
		return invalid("Unknown maintenance status %q", m.Status)
	}
	room, err := s.repo.GetRoom(ctx, m.RoomID)
	if err != nil {
		return err
	}
	m.RoomName = room.Name

	if err := s.repo.CreateMaintenance(ctx, m); err != nil {
		return err
	}
	s.logger.Info().Int64("maintenance_id", m.ID).Int64("room_id", m.RoomID).
		Str("from", m.StartDate).Str("to", m.EndDate).Msg("Maintenance scheduled")
	return s.syncRoom(ctx, m.RoomID)
}

func (s *MaintenanceService) UpdateStatus(ctx context.Context, actor *models.User, id int64, status string) (*models.MaintenanceSchedule, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	if !validMaintenanceStatus(status) {
		return nil, invalid("Unknown maintenance status %q", status)
	}
	if err := s.repo.UpdateMaintenanceStatus(ctx, id, status); err != nil {
		return nil, err
	}
	m, err := s.repo.GetMaintenance(ctx, id)
	if err != nil {
		return nil, err
	}
	return m, s.syncRoom(ctx, m.RoomID)
}

func (s *MaintenanceService) Delete(ctx context.Context, actor *models.User, id int64) error {
	if !actor.IsAdmin() {
		return ErrForbidden
	}
	m, err := s.repo.GetMaintenance(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteMaintenance(ctx, id); err != nil {
		return err
	}
	return s.syncRoom(ctx, m.RoomID)
}

// syncRoom keeps the room status in line with its windows: a room is in
// maintenance exactly while one of its windows is in progress.
func (s *MaintenanceService) syncRoom(ctx context.Context, roomID int64) error {
	list, err := s.repo.ListMaintenance(ctx, roomID)
	if err != nil {
		return err
	}
	status := models.RoomAvailable
	for _, m := range list {
		if m.Status == models.MaintenanceInProgress {
			status = models.RoomMaintenance
			break
		}
	}

	room, err := s.repo.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if room.Status == status {
		return nil
	}
	if err := s.repo.UpdateRoomStatus(ctx, roomID, status); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("room cache invalidate failed")
		}
	}
	return nil
}
