package services

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/taskflow/core/internal/domain/entities"
	"github.com/taskflow/core/internal/infrastructure/logger"
	"github.com/taskflow/core/internal/ports"
)

const (
	defaultNotificationLimit = 50
	maxNotificationLimit     = 100
)

// NotificationService stores per-user notifications and pushes them to live subscribers
type NotificationService struct {
	repo      ports.NotificationRepository
	publisher ports.NotificationPublisher
	logger    *logger.Logger
}

var _ ports.NotificationService = (*NotificationService)(nil)

// NewNotificationService creates a new notification service. publisher may be nil.
func NewNotificationService(repo ports.NotificationRepository, publisher ports.NotificationPublisher, logger *logger.Logger) *NotificationService {
	return &NotificationService{
		repo:      repo,
		publisher: publisher,
		logger:    logger.WithComponent("notifications"),
	}
}

// Notify creates one notification per distinct recipient, skipping the actor.
// Delivery is best-effort: failures are logged and never returned.
func (s *NotificationService) Notify(ctx context.Context, actorID uuid.UUID, recipients []uuid.UUID, tmpl ports.NotificationTemplate) {
	seen := make([]uuid.UUID, 0, len(recipients))
	for _, userID := range recipients {
		if userID == uuid.Nil || userID == actorID || slices.Contains(seen, userID) {
			continue
		}
		seen = append(seen, userID)

		n := &entities.Notification{
			UserID:      userID,
			Title:       tmpl.Title,
			Description: tmpl.Description,
			Type:        tmpl.Type,
			TargetID:    tmpl.TargetID,
		}
		if err := s.repo.Create(ctx, n); err != nil {
			s.logger.Errorw("Failed to create notification", "error", err, "user_id", userID, "type", tmpl.Type)
			continue
		}

		if s.publisher != nil {
			if err := s.publisher.Publish(ctx, n); err != nil {
				s.logger.Warnw("Failed to publish notification", "error", err, "user_id", userID, "notification_id", n.ID)
			}
		}
	}
}

func (s *NotificationService) List(ctx context.Context, userID uuid.UUID, filter ports.NotificationFilter) ([]*entities.Notification, error) {
	switch {
	case filter.Limit <= 0:
		filter.Limit = defaultNotificationLimit
	case filter.Limit > maxNotificationLimit:
		filter.Limit = maxNotificationLimit
	}

	notifications, err := s.repo.ListByUser(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return notifications, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	count, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to count notifications: %w", err)
	}
	return count, nil
}

// MarkRead marks one of the user's notifications read. Another user's
// notification is reported as not found.
func (s *NotificationService) MarkRead(ctx context.Context, userID, id uuid.UUID) (*entities.Notification, error) {
	return s.repo.MarkRead(ctx, id, userID)
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	n, err := s.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return n, nil
}
