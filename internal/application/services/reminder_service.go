package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/taskflow/core/internal/domain/entities"
	"github.com/taskflow/core/internal/infrastructure/logger"
	"github.com/taskflow/core/internal/ports"
)

// ReminderService notifies assignees about cards that fall due within the window.
// Each card produces at most one due_date notification per assignee.
type ReminderService struct {
	boards        ports.BoardRepository
	notifications ports.NotificationRepository
	notifier      ports.NotificationService
	window        time.Duration
	logger        *logger.Logger
	now           func() time.Time
}

func NewReminderService(
	boards ports.BoardRepository,
	notifications ports.NotificationRepository,
	notifier ports.NotificationService,
	window time.Duration,
	logger *logger.Logger,
) *ReminderService {
	return &ReminderService{
		boards:        boards,
		notifications: notifications,
		notifier:      notifier,
		window:        window,
		logger:        logger.WithComponent("reminders"),
		now:           time.Now,
	}
}

// Run scans once and returns the number of reminders sent.
func (s *ReminderService) Run(ctx context.Context) (int, error) {
	now := s.now()
	boards, err := s.boards.ListWithDueCards(ctx, now.Add(s.window))
	if err != nil {
		return 0, fmt.Errorf("failed to list boards with due cards: %w", err)
	}

	sent := 0
	for _, board := range boards {
		var due []entities.Card
		board.EachCard(func(_ *entities.Column, c *entities.Card) {
			if c.AssigneeID != nil && c.DueWithin(now, s.window) && board.IsMember(*c.AssigneeID) {
				due = append(due, *c)
			}
		})

		for _, card := range due {
			if err := ctx.Err(); err != nil {
				return sent, err
			}

			exists, err := s.notifications.Exists(ctx, *card.AssigneeID, entities.NotificationDueDate, card.ID.String())
			if err != nil {
				s.logger.Warnw("Failed to check reminder", "error", err, "card_id", card.ID)
				continue
			}
			if exists {
				continue
			}

			s.notifier.Notify(ctx, uuid.Nil, []uuid.UUID{*card.AssigneeID}, ports.NotificationTemplate{
				Title:       fmt.Sprintf("Due soon on %s", board.Title),
				Description: fmt.Sprintf("%q is due %s", card.Title, card.DueDate.UTC().Format(time.RFC1123)),
				Type:        entities.NotificationDueDate,
				TargetID:    card.ID.String(),
			})
			sent++
		}
	}

	if sent > 0 {
		s.logger.Infow("Due date reminders sent", "count", sent)
	}
	return sent, nil
}
