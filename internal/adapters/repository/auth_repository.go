package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/taskflow/core/internal/domain/entities"
	"github.com/taskflow/core/internal/infrastructure/database"
	"github.com/taskflow/core/internal/ports"
)

// AuthRepositoryImpl implements the AuthRepository interface
type AuthRepositoryImpl struct {
	db   *sqlx.DB
	conn *database.DB
}

// NewAuthRepository creates a new auth repository
func NewAuthRepository(conn *database.DB) ports.AuthRepository {
	return &AuthRepositoryImpl{db: conn.DB, conn: conn}
}

func (r *AuthRepositoryImpl) CreateRefreshToken(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error {
	query := `
		INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at)
		VALUES ($1, $2, $3, $4)`

	_, err := r.db.ExecContext(ctx, query, uuid.New(), userID, tokenHash, expiresAt)
	if err != nil {
		return fmt.Errorf("create refresh token: %w", err)
	}

	return nil
}

func (r *AuthRepositoryImpl) GetRefreshToken(ctx context.Context, tokenHash string) (*entities.RefreshToken, error) {
	query := `
		SELECT id, user_id, token_hash, expires_at, revoked_at, created_at
		FROM refresh_tokens
		WHERE token_hash = $1`

	var token entities.RefreshToken
	err := r.db.GetContext(ctx, &token, query, tokenHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entities.ErrInvalidToken
		}
		return nil, fmt.Errorf("get refresh token: %w", err)
	}

	return &token, nil
}

func (r *AuthRepositoryImpl) RevokeRefreshToken(ctx context.Context, tokenHash string) error {
	query := `
		UPDATE refresh_tokens
		SET revoked_at = CURRENT_TIMESTAMP
		WHERE token_hash = $1 AND revoked_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}

	return expectOneRow(result, entities.ErrInvalidToken)
}

func (r *AuthRepositoryImpl) RevokeAllUserTokens(ctx context.Context, userID uuid.UUID) error {
	query := `
		UPDATE refresh_tokens
		SET revoked_at = CURRENT_TIMESTAMP
		WHERE user_id = $1 AND revoked_at IS NULL`

	_, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("revoke user tokens: %w", err)
	}

	return nil
}

func (r *AuthRepositoryImpl) CreatePasswordReset(ctx context.Context, reset *entities.PasswordReset) error {
	query := `
		INSERT INTO password_resets (id, user_id, token_hash, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`

	if reset.ID == uuid.Nil {
		reset.ID = uuid.New()
	}

	err := r.db.QueryRowContext(ctx, query, reset.ID, reset.UserID, reset.TokenHash, reset.ExpiresAt).
		Scan(&reset.CreatedAt)
	if err != nil {
		return fmt.Errorf("create password reset: %w", err)
	}

	return nil
}

func (r *AuthRepositoryImpl) GetPasswordReset(ctx context.Context, tokenHash string) (*entities.PasswordReset, error) {
	query := `
		SELECT id, user_id, token_hash, expires_at, used_at, created_at
		FROM password_resets
		WHERE token_hash = $1`

	var reset entities.PasswordReset
	err := r.db.GetContext(ctx, &reset, query, tokenHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entities.ErrInvalidToken
		}
		return nil, fmt.Errorf("get password reset: %w", err)
	}

	return &reset, nil
}

func (r *AuthRepositoryImpl) ConsumePasswordReset(ctx context.Context, reset *entities.PasswordReset, passwordHash string, at time.Time) error {
	return r.conn.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE password_resets SET used_at = $2 WHERE id = $1 AND used_at IS NULL`, reset.ID, at)
		if err != nil {
			return fmt.Errorf("mark password reset used: %w", err)
		}
		if err := expectOneRow(result, entities.ErrInvalidToken); err != nil {
			return err
		}

		result, err = tx.ExecContext(ctx,
			`UPDATE users SET password_hash = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $1`, reset.UserID, passwordHash)
		if err != nil {
			return fmt.Errorf("update password: %w", err)
		}
		if err := expectOneRow(result, entities.ErrUserNotFound); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE refresh_tokens SET revoked_at = $2 WHERE user_id = $1 AND revoked_at IS NULL`, reset.UserID, at)
		if err != nil {
			return fmt.Errorf("revoke user tokens: %w", err)
		}
		return nil
	})
}

func expectOneRow(result sql.Result, none error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return none
	}
	return nil
}
