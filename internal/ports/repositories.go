package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/taskflow/core/internal/domain/entities"
)

// UserRepository defines the interface for user data operations
type UserRepository interface {
	Create(ctx context.Context, user *entities.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.User, error)
	GetByEmail(ctx context.Context, email string) (*entities.User, error)
	GetByExternalID(ctx context.Context, provider entities.AuthProvider, externalID string) (*entities.User, error)
	Update(ctx context.Context, user *entities.User) error
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

// AuthRepository stores hashed refresh tokens and password reset tokens.
type AuthRepository interface {
	CreateRefreshToken(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error
	GetRefreshToken(ctx context.Context, tokenHash string) (*entities.RefreshToken, error)
	// RevokeRefreshToken returns entities.ErrInvalidToken unless this call
	// moved the token from active to revoked.
	RevokeRefreshToken(ctx context.Context, tokenHash string) error
	RevokeAllUserTokens(ctx context.Context, userID uuid.UUID) error

	CreatePasswordReset(ctx context.Context, reset *entities.PasswordReset) error
	GetPasswordReset(ctx context.Context, tokenHash string) (*entities.PasswordReset, error)
	// ConsumePasswordReset marks the reset used, stores the new password hash and
	// revokes the user's refresh tokens as one unit. A reset that was already
	// used reports entities.ErrInvalidToken and changes nothing.
	ConsumePasswordReset(ctx context.Context, reset *entities.PasswordReset, passwordHash string, at time.Time) error
}

// BoardRepository persists whole board documents.
//
// Update must only succeed when the stored version equals board.Version; on success
// the stored and in-memory versions are incremented. A stale write returns
// entities.ErrVersionConflict.
type BoardRepository interface {
	Create(ctx context.Context, board *entities.Board) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Board, error)
	Update(ctx context.Context, board *entities.Board) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByMember(ctx context.Context, userID uuid.UUID) ([]*entities.Board, error)
	ListWithPendingInvite(ctx context.Context, email string) ([]*entities.Board, error)
	ListWithDueCards(ctx context.Context, before time.Time) ([]*entities.Board, error)
}

// NotificationFilter narrows notification listings.
type NotificationFilter struct {
	UnreadOnly bool
	Limit      int
}

// NotificationRepository defines the interface for notification data operations
type NotificationRepository interface {
	Create(ctx context.Context, n *entities.Notification) error
	ListByUser(ctx context.Context, userID uuid.UUID, filter NotificationFilter) ([]*entities.Notification, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int64, error)
	// MarkRead only touches a notification owned by userID.
	MarkRead(ctx context.Context, id, userID uuid.UUID) (*entities.Notification, error)
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
	Exists(ctx context.Context, userID uuid.UUID, typ entities.NotificationType, targetID string) (bool, error)
}

// ActivityRepository is append-only.
type ActivityRepository interface {
	Append(ctx context.Context, a *entities.Activity) error
	ListByBoards(ctx context.Context, boardIDs []uuid.UUID, limit int) ([]*entities.Activity, error)
}
