package services

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/taskflow/core/internal/domain/entities"
	"github.com/taskflow/core/internal/infrastructure/logger"
	"github.com/taskflow/core/internal/ports"
)

const maxMutationAttempts = 3

// boardMutator runs read-modify-write cycles against whole board documents.
type boardMutator struct {
	boards ports.BoardRepository
	logger *logger.Logger
}

// mutate loads the board, applies fn and writes it back, retrying from a fresh
// read when another writer got there first. fn must be safe to run more than once.
func (m *boardMutator) mutate(ctx context.Context, boardID uuid.UUID, fn func(*entities.Board) error) (*entities.Board, error) {
	log := m.logger.WithBoardID(boardID.String())

	var lastErr error
	for attempt := 1; attempt <= maxMutationAttempts; attempt++ {
		board, err := m.boards.GetByID(ctx, boardID)
		if err != nil {
			return nil, err
		}
		if err := fn(board); err != nil {
			return nil, err
		}

		err = m.boards.Update(ctx, board)
		if err == nil {
			return board, nil
		}
		if !errors.Is(err, entities.ErrVersionConflict) {
			return nil, err
		}

		lastErr = err
		log.Debugw("Board write conflict, retrying", "attempt", attempt)
	}

	log.Warnw("Giving up on board write", "attempts", maxMutationAttempts)
	return nil, lastErr
}

func authorizeMember(board *entities.Board, actor *entities.User) error {
	if actor == nil {
		return entities.ErrAuthenticationRequired
	}
	if !board.IsMember(actor.ID) {
		return entities.ErrForbidden
	}
	return nil
}

func authorizeAdmin(board *entities.Board, actor *entities.User) error {
	if err := authorizeMember(board, actor); err != nil {
		return err
	}
	if !board.IsAdmin(actor.ID) {
		return entities.ErrForbidden
	}
	return nil
}

func actorID(actor *entities.User) uuid.UUID {
	if actor == nil {
		return uuid.Nil
	}
	return actor.ID
}
