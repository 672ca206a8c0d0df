package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/taskflow/core/internal/domain/entities"
	"github.com/taskflow/core/internal/ports"
)

// BoardRepositoryImpl stores each board as one JSONB document. member_ids,
// pending_emails and next_due_at are derived from the document on every write.
type BoardRepositoryImpl struct {
	db *sqlx.DB
}

// NewBoardRepository creates a new board repository
func NewBoardRepository(db *sqlx.DB) ports.BoardRepository {
	return &BoardRepositoryImpl{db: db}
}

type boardRow struct {
	Doc     []byte `db:"doc"`
	Version int64  `db:"version"`
}

func (r *BoardRepositoryImpl) Create(ctx context.Context, board *entities.Board) error {
	doc, err := sonic.ConfigStd.Marshal(board)
	if err != nil {
		return fmt.Errorf("encode board: %w", err)
	}

	query := `
		INSERT INTO boards (id, doc, member_ids, pending_emails, next_due_at, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = r.db.ExecContext(ctx, query,
		board.ID, doc, uuidArray(board.MemberIDs), pq.Array(board.PendingEmails()),
		board.NextDueAt(), board.Version, board.CreatedAt, board.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create board: %w", err)
	}

	return nil
}

func (r *BoardRepositoryImpl) GetByID(ctx context.Context, id uuid.UUID) (*entities.Board, error) {
	var row boardRow
	err := r.db.GetContext(ctx, &row, `SELECT doc, version FROM boards WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entities.ErrBoardNotFound
		}
		return nil, fmt.Errorf("get board: %w", err)
	}

	return decodeBoard(row)
}

func (r *BoardRepositoryImpl) Update(ctx context.Context, board *entities.Board) error {
	next := *board
	next.Version = board.Version + 1

	doc, err := sonic.ConfigStd.Marshal(&next)
	if err != nil {
		return fmt.Errorf("encode board: %w", err)
	}

	query := `
		UPDATE boards
		SET doc = $2, member_ids = $3, pending_emails = $4, next_due_at = $5,
			version = version + 1, updated_at = $6
		WHERE id = $1 AND version = $7`

	result, err := r.db.ExecContext(ctx, query,
		board.ID, doc, uuidArray(board.MemberIDs), pq.Array(board.PendingEmails()),
		board.NextDueAt(), board.UpdatedAt, board.Version,
	)
	if err != nil {
		return fmt.Errorf("update board: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		var exists bool
		if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM boards WHERE id = $1)`, board.ID); err != nil {
			return fmt.Errorf("check board: %w", err)
		}
		if !exists {
			return entities.ErrBoardNotFound
		}
		return entities.ErrVersionConflict
	}

	board.Version = next.Version
	return nil
}

func (r *BoardRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM boards WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete board: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return entities.ErrBoardNotFound
	}

	return nil
}

func (r *BoardRepositoryImpl) ListByMember(ctx context.Context, userID uuid.UUID) ([]*entities.Board, error) {
	query := `
		SELECT doc, version FROM boards
		WHERE $1 = ANY(member_ids)
		ORDER BY updated_at DESC`

	return r.list(ctx, query, userID)
}

func (r *BoardRepositoryImpl) ListWithPendingInvite(ctx context.Context, email string) ([]*entities.Board, error) {
	query := `
		SELECT doc, version FROM boards
		WHERE $1 = ANY(pending_emails)
		ORDER BY updated_at DESC`

	return r.list(ctx, query, strings.ToLower(strings.TrimSpace(email)))
}

func (r *BoardRepositoryImpl) ListWithDueCards(ctx context.Context, before time.Time) ([]*entities.Board, error) {
	query := `
		SELECT doc, version FROM boards
		WHERE next_due_at IS NOT NULL AND next_due_at <= $1
		ORDER BY next_due_at`

	return r.list(ctx, query, before)
}

func (r *BoardRepositoryImpl) list(ctx context.Context, query string, args ...interface{}) ([]*entities.Board, error) {
	var rows []boardRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list boards: %w", err)
	}

	boards := make([]*entities.Board, 0, len(rows))
	for _, row := range rows {
		board, err := decodeBoard(row)
		if err != nil {
			return nil, err
		}
		boards = append(boards, board)
	}

	return boards, nil
}

func decodeBoard(row boardRow) (*entities.Board, error) {
	var board entities.Board
	if err := sonic.ConfigStd.Unmarshal(row.Doc, &board); err != nil {
		return nil, fmt.Errorf("decode board: %w", err)
	}
	board.Version = row.Version
	return &board, nil
}

func uuidArray(ids []uuid.UUID) interface{} {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return pq.Array(out)
}
