package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/taskflow/core/internal/domain/entities"
	"github.com/taskflow/core/internal/infrastructure/logger"
	"github.com/taskflow/core/internal/ports"
)

// BoardService handles boards, columns and cards
type BoardService struct {
	mutator  boardMutator
	boards   ports.BoardRepository
	notifier ports.NotificationService
	activity ports.ActivityService
	logger   *logger.Logger
}

var _ ports.BoardService = (*BoardService)(nil)

// NewBoardService creates a new board service
func NewBoardService(
	boards ports.BoardRepository,
	notifier ports.NotificationService,
	activity ports.ActivityService,
	logger *logger.Logger,
) *BoardService {
	log := logger.WithComponent("boards")
	return &BoardService{
		mutator:  boardMutator{boards: boards, logger: log},
		boards:   boards,
		notifier: notifier,
		activity: activity,
		logger:   log,
	}
}

// ListBoards returns the boards the actor is an accepted member of
func (s *BoardService) ListBoards(ctx context.Context, actor *entities.User) ([]*entities.Board, error) {
	if actor == nil {
		return nil, entities.ErrAuthenticationRequired
	}

	boards, err := s.boards.ListByMember(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list boards: %w", err)
	}
	return boards, nil
}

// GetBoard returns a board the actor is a member of
func (s *BoardService) GetBoard(ctx context.Context, actor *entities.User, id uuid.UUID) (*entities.Board, error) {
	if actor == nil {
		return nil, entities.ErrAuthenticationRequired
	}

	board, err := s.boards.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorizeMember(board, actor); err != nil {
		return nil, err
	}
	return board, nil
}

// CreateBoard creates a board with the actor as its only admin
func (s *BoardService) CreateBoard(ctx context.Context, actor *entities.User, req ports.CreateBoardRequest) (*entities.Board, error) {
	if actor == nil {
		return nil, entities.ErrAuthenticationRequired
	}

	boardTitle, err := requireTitle(req.Title)
	if err != nil {
		return nil, err
	}

	board := entities.NewBoard(boardTitle, req.Description, req.Background, actor)
	if err := s.boards.Create(ctx, board); err != nil {
		return nil, fmt.Errorf("failed to create board: %w", err)
	}

	s.logger.Infow("Board created successfully", "board_id", board.ID, "user_id", actor.ID)
	s.activity.Record(ctx, actor, board, entities.ActivityBoardCreated, fmt.Sprintf("created board %q", board.Title))

	return board, nil
}

// UpdateBoard changes the board's details
func (s *BoardService) UpdateBoard(ctx context.Context, actor *entities.User, id uuid.UUID, req ports.UpdateBoardRequest) (*entities.Board, error) {
	boardTitle, err := optionalTitle(req.Title)
	if err != nil {
		return nil, err
	}

	board, err := s.mutator.mutate(ctx, id, func(b *entities.Board) error {
		if err := authorizeMember(b, actor); err != nil {
			return err
		}
		b.UpdateDetails(boardTitle, req.Description, req.Background, req.Starred)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.activity.Record(ctx, actor, board, entities.ActivityBoardUpdated, fmt.Sprintf("updated board %q", board.Title))
	return board, nil
}

// DeleteBoard removes the board. Only admins may delete.
func (s *BoardService) DeleteBoard(ctx context.Context, actor *entities.User, id uuid.UUID) error {
	board, err := s.GetBoard(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := authorizeAdmin(board, actor); err != nil {
		return err
	}

	if err := s.boards.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Infow("Board deleted successfully", "board_id", id, "user_id", actor.ID)
	s.activity.Record(ctx, actor, board, entities.ActivityBoardDeleted, fmt.Sprintf("deleted board %q", board.Title))
	return nil
}

func (s *BoardService) AddColumn(ctx context.Context, actor *entities.User, boardID uuid.UUID, req ports.AddColumnRequest) (*entities.Board, error) {
	title, err := requireTitle(req.Title)
	if err != nil {
		return nil, err
	}

	board, err := s.mutator.mutate(ctx, boardID, func(b *entities.Board) error {
		if err := authorizeMember(b, actor); err != nil {
			return err
		}
		b.AddColumn(title)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.activity.Record(ctx, actor, board, entities.ActivityColumnAdded, fmt.Sprintf("added column %q", title))
	return board, nil
}

func (s *BoardService) UpdateColumn(ctx context.Context, actor *entities.User, boardID, columnID uuid.UUID, req ports.UpdateColumnRequest) (*entities.Board, error) {
	title, err := requireTitle(req.Title)
	if err != nil {
		return nil, err
	}

	board, err := s.mutator.mutate(ctx, boardID, func(b *entities.Board) error {
		if err := authorizeMember(b, actor); err != nil {
			return err
		}
		_, err := b.RenameColumn(columnID, title)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.activity.Record(ctx, actor, board, entities.ActivityColumnUpdated, fmt.Sprintf("renamed column to %q", title))
	return board, nil
}

// DeleteColumn removes a column and every card in it
func (s *BoardService) DeleteColumn(ctx context.Context, actor *entities.User, boardID, columnID uuid.UUID) (*entities.Board, error) {
	var removed entities.Column
	board, err := s.mutator.mutate(ctx, boardID, func(b *entities.Board) error {
		if err := authorizeMember(b, actor); err != nil {
			return err
		}
		col, err := b.RemoveColumn(columnID)
		removed = col
		return err
	})
	if err != nil {
		return nil, err
	}

	s.activity.Record(ctx, actor, board, entities.ActivityColumnDeleted,
		fmt.Sprintf("deleted column %q with %d cards", removed.Title, len(removed.Cards)))
	return board, nil
}

func (s *BoardService) MoveColumn(ctx context.Context, actor *entities.User, boardID, columnID uuid.UUID, toIndex int) (*entities.Board, error) {
	var title string
	var position int
	board, err := s.mutator.mutate(ctx, boardID, func(b *entities.Board) error {
		if err := authorizeMember(b, actor); err != nil {
			return err
		}
		col, err := b.MoveColumn(columnID, toIndex)
		if err != nil {
			return err
		}
		title, position = col.Title, col.Order
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.activity.Record(ctx, actor, board, entities.ActivityColumnMoved, fmt.Sprintf("moved column %q to position %d", title, position+1))
	return board, nil
}

func (s *BoardService) AddCard(ctx context.Context, actor *entities.User, boardID uuid.UUID, req ports.AddCardRequest) (*entities.Board, error) {
	cardTitle, err := requireTitle(req.Title)
	if err != nil {
		return nil, err
	}

	var card entities.Card
	var columnTitle string
	board, err := s.mutator.mutate(ctx, boardID, func(b *entities.Board) error {
		if err := authorizeMember(b, actor); err != nil {
			return err
		}
		due := req.DueDate
		if due != nil {
			utc := due.UTC()
			due = &utc
		}
		c, err := b.AddCard(req.ColumnID, entities.Card{
			Title:       cardTitle,
			Description: req.Description,
			AssigneeID:  req.AssigneeID,
			DueDate:     due,
			Labels:      req.Labels,
		})
		if err != nil {
			return err
		}
		card = *c
		col, _ := b.Column(req.ColumnID)
		columnTitle = col.Title
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.activity.Record(ctx, actor, board, entities.ActivityCardAdded, fmt.Sprintf("added card %q to %q", card.Title, columnTitle))
	if card.AssigneeID != nil {
		s.notifyAssigned(ctx, actor, board, card)
	}
	return board, nil
}

// UpdateCard applies a partial update to a card
func (s *BoardService) UpdateCard(ctx context.Context, actor *entities.User, boardID, cardID uuid.UUID, req ports.UpdateCardRequest) (*entities.Board, error) {
	cardTitle, err := optionalTitle(req.Title)
	if err != nil {
		return nil, err
	}

	var card entities.Card
	var reassigned bool
	board, err := s.mutator.mutate(ctx, boardID, func(b *entities.Board) error {
		if err := authorizeMember(b, actor); err != nil {
			return err
		}
		before, err := b.Card(cardID)
		if err != nil {
			return err
		}
		previous := before.AssigneeID

		c, err := b.UpdateCard(cardID, entities.CardPatch{
			Title:         cardTitle,
			Description:   req.Description,
			AssigneeID:    req.AssigneeID,
			ClearAssignee: req.ClearAssignee,
			DueDate:       req.DueDate,
			ClearDueDate:  req.ClearDueDate,
			Labels:        req.Labels,
		})
		if err != nil {
			return err
		}
		card = *c
		reassigned = c.AssigneeID != nil && (previous == nil || *previous != *c.AssigneeID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.activity.Record(ctx, actor, board, entities.ActivityCardUpdated, fmt.Sprintf("updated card %q", card.Title))
	if reassigned {
		s.notifyAssigned(ctx, actor, board, card)
	}
	return board, nil
}

func (s *BoardService) DeleteCard(ctx context.Context, actor *entities.User, boardID, cardID uuid.UUID) (*entities.Board, error) {
	var removed entities.Card
	board, err := s.mutator.mutate(ctx, boardID, func(b *entities.Board) error {
		if err := authorizeMember(b, actor); err != nil {
			return err
		}
		c, err := b.RemoveCard(cardID)
		removed = c
		return err
	})
	if err != nil {
		return nil, err
	}

	s.activity.Record(ctx, actor, board, entities.ActivityCardDeleted, fmt.Sprintf("deleted card %q", removed.Title))
	return board, nil
}

// MoveCard moves a card within or across columns and tells the assignee and
// the board admins about it.
func (s *BoardService) MoveCard(ctx context.Context, actor *entities.User, boardID uuid.UUID, req ports.MoveCardRequest) (*entities.Board, error) {
	var move entities.CardMove
	var from, to string
	board, err := s.mutator.mutate(ctx, boardID, func(b *entities.Board) error {
		if err := authorizeMember(b, actor); err != nil {
			return err
		}
		m, err := b.MoveCard(req.CardID, req.ToColumnID, req.ToIndex)
		if err != nil {
			return err
		}
		move = *m
		src, _ := b.Column(m.FromColumnID)
		dst, _ := b.Column(m.ToColumnID)
		from, to = src.Title, dst.Title
		return nil
	})
	if err != nil {
		return nil, err
	}

	description := fmt.Sprintf("%s moved %q from %q to %q", actor.DisplayName(), move.Card.Title, from, to)
	s.activity.Record(ctx, actor, board, entities.ActivityCardMoved, description)

	recipients := board.AdminIDs()
	if move.Card.AssigneeID != nil {
		recipients = append(recipients, *move.Card.AssigneeID)
	}
	s.notifier.Notify(ctx, actor.ID, recipients, ports.NotificationTemplate{
		Title:       fmt.Sprintf("Card moved on %s", board.Title),
		Description: description,
		Type:        entities.NotificationCardMoved,
		TargetID:    move.Card.ID.String(),
	})

	return board, nil
}

func (s *BoardService) notifyAssigned(ctx context.Context, actor *entities.User, board *entities.Board, card entities.Card) {
	s.notifier.Notify(ctx, actor.ID, []uuid.UUID{*card.AssigneeID}, ports.NotificationTemplate{
		Title:       fmt.Sprintf("New assignment on %s", board.Title),
		Description: fmt.Sprintf("%s assigned you to %q", actor.DisplayName(), card.Title),
		Type:        entities.NotificationCardAssigned,
		TargetID:    card.ID.String(),
	})
}

// requireTitle trims a title and rejects one that is left empty.
func requireTitle(s string) (string, error) {
	t := strings.TrimSpace(s)
	if t == "" {
		return "", entities.ErrBlankTitle
	}
	return t, nil
}

func optionalTitle(s *string) (*string, error) {
	if s == nil {
		return nil, nil
	}
	t, err := requireTitle(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
