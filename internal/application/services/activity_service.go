package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/taskflow/core/internal/domain/entities"
	"github.com/taskflow/core/internal/infrastructure/logger"
	"github.com/taskflow/core/internal/ports"
)

const (
	defaultActivityLimit = 20
	maxActivityLimit     = 100
)

// ActivityService appends to and reads the board activity feed
type ActivityService struct {
	repo   ports.ActivityRepository
	boards ports.BoardRepository
	logger *logger.Logger
}

var _ ports.ActivityService = (*ActivityService)(nil)

func NewActivityService(repo ports.ActivityRepository, boards ports.BoardRepository, logger *logger.Logger) *ActivityService {
	return &ActivityService{
		repo:   repo,
		boards: boards,
		logger: logger.WithComponent("activity"),
	}
}

// Record appends an entry. Failures are logged only.
func (s *ActivityService) Record(ctx context.Context, actor *entities.User, board *entities.Board, typ entities.ActivityType, description string) {
	if actor == nil || board == nil {
		return
	}

	a := &entities.Activity{
		UserID:      actor.ID,
		UserName:    actor.DisplayName(),
		Type:        typ,
		BoardID:     board.ID,
		BoardTitle:  board.Title,
		Description: description,
	}
	if err := s.repo.Append(ctx, a); err != nil {
		s.logger.Errorw("Failed to record activity", "error", err, "board_id", board.ID, "type", typ)
	}
}

// Feed returns the newest entries for one board, or for every board the actor belongs to.
func (s *ActivityService) Feed(ctx context.Context, actor *entities.User, boardID *uuid.UUID, limit int) ([]*entities.Activity, error) {
	if actor == nil {
		return nil, entities.ErrAuthenticationRequired
	}
	switch {
	case limit <= 0:
		limit = defaultActivityLimit
	case limit > maxActivityLimit:
		limit = maxActivityLimit
	}

	var ids []uuid.UUID
	if boardID != nil {
		board, err := s.boards.GetByID(ctx, *boardID)
		if err != nil {
			return nil, err
		}
		if err := authorizeMember(board, actor); err != nil {
			return nil, err
		}
		ids = []uuid.UUID{board.ID}
	} else {
		boards, err := s.boards.ListByMember(ctx, actor.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list boards: %w", err)
		}
		for _, b := range boards {
			ids = append(ids, b.ID)
		}
	}

	activities, err := s.repo.ListByBoards(ctx, ids, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity: %w", err)
	}
	return activities, nil
}
