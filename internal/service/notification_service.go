package service

import (
	"context"

	"scams/internal/domain"
	"scams/internal/models"
)

const maxNotifications = 100

type NotificationService struct {
	repo domain.NotificationRepository
}

func NewNotificationService(repo domain.NotificationRepository) *NotificationService {
	return &NotificationService{repo: repo}
}

func (s *NotificationService) List(ctx context.Context, actor *models.User, unreadOnly bool, limit int) ([]*models.Notification, error) {
	if limit <= 0 || limit > maxNotifications {
		limit = maxNotifications
	}
	return s.repo.ListNotifications(ctx, actor.ID, unreadOnly, limit)
}

// MarkRead marks one of the actor's notifications as read. Other users' ids look missing.
func (s *NotificationService) MarkRead(ctx context.Context, actor *models.User, id int64) error {
	return s.repo.MarkNotificationRead(ctx, id, actor.ID)
}

func (s *NotificationService) MarkAllRead(ctx context.Context, actor *models.User) (int64, error) {
	return s.repo.MarkAllNotificationsRead(ctx, actor.ID)
}
