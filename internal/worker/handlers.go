package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"scams/internal/domain"
	"scams/internal/events"
	"scams/internal/models"
)

// Publisher delivers an event to an external broker.
type Publisher interface {
	Publish(ctx context.Context, event *events.Event) error
}

// NotifyHandler stores the notification carried by a notify task.
func NotifyHandler(repo domain.NotificationRepository) TaskHandler {
	return func(ctx context.Context, task *models.Task) error {
		var n models.Notification
		if err := json.Unmarshal([]byte(task.Payload), &n); err != nil {
			return fmt.Errorf("decode notification: %w", err)
		}
		if n.UserID == 0 {
			return errors.New("notification without recipient")
		}
		return repo.CreateNotification(ctx, &n)
	}
}

// PublishHandler forwards the event carried by a publish task.
func PublishHandler(p Publisher) TaskHandler {
	return func(ctx context.Context, task *models.Task) error {
		var event events.Event
		if err := json.Unmarshal([]byte(task.Payload), &event); err != nil {
			return fmt.Errorf("decode event: %w", err)
		}
		return p.Publish(ctx, &event)
	}
}
