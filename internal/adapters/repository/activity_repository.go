package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/taskflow/core/internal/domain/entities"
	"github.com/taskflow/core/internal/ports"
)

// ActivityRepositoryImpl implements the ActivityRepository interface
type ActivityRepositoryImpl struct {
	db *sqlx.DB
}

// NewActivityRepository creates a new activity repository
func NewActivityRepository(db *sqlx.DB) ports.ActivityRepository {
	return &ActivityRepositoryImpl{db: db}
}

func (r *ActivityRepositoryImpl) Append(ctx context.Context, a *entities.Activity) error {
	query := `
		INSERT INTO activities (id, user_id, user_name, type, board_id, board_title, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`

	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}

	err := r.db.QueryRowContext(ctx, query,
		a.ID, a.UserID, a.UserName, a.Type, a.BoardID, a.BoardTitle, a.Description,
	).Scan(&a.CreatedAt)
	if err != nil {
		return fmt.Errorf("append activity: %w", err)
	}

	return nil
}

func (r *ActivityRepositoryImpl) ListByBoards(ctx context.Context, boardIDs []uuid.UUID, limit int) ([]*entities.Activity, error) {
	activities := []*entities.Activity{}
	if len(boardIDs) == 0 {
		return activities, nil
	}

	query := `
		SELECT id, user_id, user_name, type, board_id, board_title, description, created_at
		FROM activities
		WHERE board_id = ANY($1)
		ORDER BY created_at DESC
		LIMIT $2`

	if err := r.db.SelectContext(ctx, &activities, query, uuidArray(boardIDs), limit); err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}

	return activities, nil
}
