package services

import (
	"context"
	"fmt"
	"time"

	"github.com/taskflow/core/internal/domain/entities"
	"github.com/taskflow/core/internal/ports"
)

const dueSoonWindow = 7 * 24 * time.Hour

// DashboardService aggregates statistics over the caller's boards
type DashboardService struct {
	boards        ports.BoardRepository
	notifications ports.NotificationRepository
	now           func() time.Time
}

var _ ports.DashboardService = (*DashboardService)(nil)

func NewDashboardService(boards ports.BoardRepository, notifications ports.NotificationRepository) *DashboardService {
	return &DashboardService{boards: boards, notifications: notifications, now: time.Now}
}

func (s *DashboardService) Stats(ctx context.Context, actor *entities.User) (*ports.DashboardStats, error) {
	if actor == nil {
		return nil, entities.ErrAuthenticationRequired
	}

	boards, err := s.boards.ListByMember(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list boards: %w", err)
	}

	now := s.now()
	stats := &ports.DashboardStats{TotalBoards: len(boards)}
	for _, b := range boards {
		if b.Starred {
			stats.StarredBoards++
		}
		stats.TotalColumns += len(b.Columns)
		b.EachCard(func(_ *entities.Column, c *entities.Card) {
			stats.TotalCards++
			if c.AssigneeID != nil && *c.AssigneeID == actor.ID {
				stats.AssignedToMe++
			}
			switch {
			case c.IsOverdue(now):
				stats.OverdueCards++
			case c.DueWithin(now, dueSoonWindow):
				stats.DueSoonCards++
			}
		})
	}

	if stats.UnreadNotifications, err = s.notifications.CountUnread(ctx, actor.ID); err != nil {
		return nil, fmt.Errorf("failed to count notifications: %w", err)
	}

	invited, err := s.boards.ListWithPendingInvite(ctx, actor.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	for _, b := range invited {
		stats.PendingInvitations += len(b.PendingInvitationsFor(actor.Email))
	}

	return stats, nil
}
