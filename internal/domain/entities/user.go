package entities

import (
	"time"

	"github.com/google/uuid"
)

// User represents an account, either local or provisioned from the identity provider.
type User struct {
	ID           uuid.UUID    `json:"id" db:"id"`
	Email        string       `json:"email" db:"email"`
	Name         string       `json:"name" db:"name"`
	AvatarURL    string       `json:"avatarUrl" db:"avatar_url"`
	PasswordHash string       `json:"-" db:"password_hash"`
	Provider     AuthProvider `json:"provider" db:"provider"`
	ExternalID   *string      `json:"-" db:"external_id"`
	IsActive     bool         `json:"isActive" db:"is_active"`
	LastLoginAt  *time.Time   `json:"lastLoginAt,omitempty" db:"last_login_at"`
	CreatedAt    time.Time    `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time    `json:"updatedAt" db:"updated_at"`
}

// DisplayName falls back to the email when no name was set.
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

// RefreshToken is stored as a SHA-256 hash of the opaque token handed to the client.
type RefreshToken struct {
	ID        uuid.UUID  `db:"id"`
	UserID    uuid.UUID  `db:"user_id"`
	TokenHash string     `db:"token_hash"`
	ExpiresAt time.Time  `db:"expires_at"`
	RevokedAt *time.Time `db:"revoked_at"`
	CreatedAt time.Time  `db:"created_at"`
}

func (t *RefreshToken) IsExpired() bool {
	return time.Now().After(t.ExpiresAt)
}

func (t *RefreshToken) IsRevoked() bool {
	return t.RevokedAt != nil
}

// PasswordReset is a single-use reset token, stored hashed.
type PasswordReset struct {
	ID        uuid.UUID  `db:"id"`
	UserID    uuid.UUID  `db:"user_id"`
	TokenHash string     `db:"token_hash"`
	ExpiresAt time.Time  `db:"expires_at"`
	UsedAt    *time.Time `db:"used_at"`
	CreatedAt time.Time  `db:"created_at"`
}

func (r *PasswordReset) IsUsable(now time.Time) bool {
	return r.UsedAt == nil && now.Before(r.ExpiresAt)
}
