// Package memory holds process-local implementations of the repository ports.
// They back the "memory" storage driver and the service tests.
package memory

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/taskflow/core/internal/domain/entities"
	"github.com/taskflow/core/internal/ports"
)

// Store groups every repository over one shared lock.
type Store struct {
	mu            sync.RWMutex
	users         map[uuid.UUID]entities.User
	refreshTokens map[string]entities.RefreshToken
	resets        map[string]entities.PasswordReset
	boards        map[uuid.UUID]*entities.Board
	notifications []entities.Notification
	activities    []entities.Activity
}

func NewStore() *Store {
	return &Store{
		users:         make(map[uuid.UUID]entities.User),
		refreshTokens: make(map[string]entities.RefreshToken),
		resets:        make(map[string]entities.PasswordReset),
		boards:        make(map[uuid.UUID]*entities.Board),
	}
}

func (s *Store) Users() *UserRepository { return &UserRepository{s} }
func (s *Store) Auth() *AuthRepository { return &AuthRepository{s} }
func (s *Store) Boards() *BoardRepository { return &BoardRepository{s} }
func (s *Store) Notifications() *NotificationRepository { return &NotificationRepository{s} }
func (s *Store) Activities() *ActivityRepository { return &ActivityRepository{s} }

// Users

type UserRepository struct{ s *Store }

var _ ports.UserRepository = (*UserRepository)(nil)

func (r *UserRepository) Create(_ context.Context, user *entities.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	for _, u := range r.s.users {
		if u.Email == user.Email {
			return entities.ErrEmailTaken
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.s.users[user.ID] = *user
	return nil
}

func (r *UserRepository) find(match func(entities.User) bool) (*entities.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, u := range r.s.users {
		if match(u) {
			return &u, nil
		}
	}
	return nil, entities.ErrUserNotFound
}

func (r *UserRepository) GetByID(_ context.Context, id uuid.UUID) (*entities.User, error) {
	return r.find(func(u entities.User) bool { return u.ID == id })
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (*entities.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.find(func(u entities.User) bool { return u.Email == email })
}

func (r *UserRepository) GetByExternalID(_ context.Context, provider entities.AuthProvider, externalID string) (*entities.User, error) {
	return r.find(func(u entities.User) bool {
		return u.Provider == provider && u.ExternalID != nil && *u.ExternalID == externalID
	})
}

func (r *UserRepository) Update(_ context.Context, user *entities.User) error {
	return r.modify(user.ID, func(u *entities.User) {
		u.Name = user.Name
		u.AvatarURL = user.AvatarURL
		u.Provider = user.Provider
		u.ExternalID = user.ExternalID
		u.IsActive = user.IsActive
		u.UpdatedAt = time.Now().UTC()
		user.UpdatedAt = u.UpdatedAt
	})
}

func (r *UserRepository) UpdatePassword(_ context.Context, id uuid.UUID, passwordHash string) error {
	return r.modify(id, func(u *entities.User) {
		u.PasswordHash = passwordHash
		u.UpdatedAt = time.Now().UTC()
	})
}

func (r *UserRepository) UpdateLastLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	return r.modify(id, func(u *entities.User) { u.LastLoginAt = &at })
}

func (r *UserRepository) modify(id uuid.UUID, fn func(*entities.User)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return entities.ErrUserNotFound
	}
	fn(&u)
	r.s.users[id] = u
	return nil
}

// Auth

type AuthRepository struct{ s *Store }

var _ ports.AuthRepository = (*AuthRepository)(nil)

func (r *AuthRepository) CreateRefreshToken(_ context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.refreshTokens[tokenHash] = entities.RefreshToken{
		ID:        uuid.New(),
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	}
	return nil
}

func (r *AuthRepository) GetRefreshToken(_ context.Context, tokenHash string) (*entities.RefreshToken, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	t, ok := r.s.refreshTokens[tokenHash]
	if !ok {
		return nil, entities.ErrInvalidToken
	}
	return &t, nil
}

func (r *AuthRepository) RevokeRefreshToken(_ context.Context, tokenHash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.refreshTokens[tokenHash]
	if !ok || t.RevokedAt != nil {
		return entities.ErrInvalidToken
	}
	now := time.Now().UTC()
	t.RevokedAt = &now
	r.s.refreshTokens[tokenHash] = t
	return nil
}

func (r *AuthRepository) RevokeAllUserTokens(_ context.Context, userID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := time.Now().UTC()
	for hash, t := range r.s.refreshTokens {
		if t.UserID == userID && t.RevokedAt == nil {
			t.RevokedAt = &now
			r.s.refreshTokens[hash] = t
		}
	}
	return nil
}

func (r *AuthRepository) CreatePasswordReset(_ context.Context, reset *entities.PasswordReset) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if reset.ID == uuid.Nil {
		reset.ID = uuid.New()
	}
	reset.CreatedAt = time.Now().UTC()
	r.s.resets[reset.TokenHash] = *reset
	return nil
}

func (r *AuthRepository) GetPasswordReset(_ context.Context, tokenHash string) (*entities.PasswordReset, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	reset, ok := r.s.resets[tokenHash]
	if !ok {
		return nil, entities.ErrInvalidToken
	}
	return &reset, nil
}

func (r *AuthRepository) ConsumePasswordReset(_ context.Context, reset *entities.PasswordReset, passwordHash string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.resets[reset.TokenHash]
	if !ok || stored.ID != reset.ID || stored.UsedAt != nil {
		return entities.ErrInvalidToken
	}
	user, ok := r.s.users[stored.UserID]
	if !ok {
		return entities.ErrUserNotFound
	}

	stored.UsedAt = &at
	r.s.resets[reset.TokenHash] = stored

	user.PasswordHash = passwordHash
	user.UpdatedAt = at
	r.s.users[user.ID] = user

	for hash, t := range r.s.refreshTokens {
		if t.UserID == user.ID && t.RevokedAt == nil {
			t.RevokedAt = &at
			r.s.refreshTokens[hash] = t
		}
	}
	return nil
}

// Boards

type BoardRepository struct{ s *Store }

var _ ports.BoardRepository = (*BoardRepository)(nil)

func (r *BoardRepository) Create(_ context.Context, board *entities.Board) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.boards[board.ID] = board.Clone()
	return nil
}

func (r *BoardRepository) GetByID(_ context.Context, id uuid.UUID) (*entities.Board, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	b, ok := r.s.boards[id]
	if !ok {
		return nil, entities.ErrBoardNotFound
	}
	return b.Clone(), nil
}

func (r *BoardRepository) Update(_ context.Context, board *entities.Board) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.boards[board.ID]
	if !ok {
		return entities.ErrBoardNotFound
	}
	if stored.Version != board.Version {
		return entities.ErrVersionConflict
	}
	board.Version++
	r.s.boards[board.ID] = board.Clone()
	return nil
}

func (r *BoardRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.boards[id]; !ok {
		return entities.ErrBoardNotFound
	}
	delete(r.s.boards, id)
	return nil
}

func (r *BoardRepository) ListByMember(_ context.Context, userID uuid.UUID) ([]*entities.Board, error) {
	return r.list(func(b *entities.Board) bool { return b.IsMember(userID) }), nil
}

func (r *BoardRepository) ListWithPendingInvite(_ context.Context, email string) ([]*entities.Board, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.list(func(b *entities.Board) bool { return slices.Contains(b.PendingEmails(), email) }), nil
}

func (r *BoardRepository) ListWithDueCards(_ context.Context, before time.Time) ([]*entities.Board, error) {
	return r.list(func(b *entities.Board) bool {
		next := b.NextDueAt()
		return next != nil && !next.After(before)
	}), nil
}

func (r *BoardRepository) list(match func(*entities.Board) bool) []*entities.Board {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []*entities.Board{}
	for _, b := range r.s.boards {
		if match(b) {
			out = append(out, b.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out
}

// Notifications

type NotificationRepository struct{ s *Store }

var _ ports.NotificationRepository = (*NotificationRepository)(nil)

func (r *NotificationRepository) Create(_ context.Context, n *entities.Notification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	now := time.Now().UTC()
	n.CreatedAt = now
	n.UpdatedAt = now
	r.s.notifications = append(r.s.notifications, *n)
	return nil
}

func (r *NotificationRepository) ListByUser(_ context.Context, userID uuid.UUID, filter ports.NotificationFilter) ([]*entities.Notification, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []*entities.Notification{}
	// newest first
	for i := len(r.s.notifications) - 1; i >= 0; i-- {
		n := r.s.notifications[i]
		if n.UserID != userID || (filter.UnreadOnly && n.Read) {
			continue
		}
		out = append(out, &n)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func (r *NotificationRepository) CountUnread(_ context.Context, userID uuid.UUID) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var count int64
	for _, n := range r.s.notifications {
		if n.UserID == userID && !n.Read {
			count++
		}
	}
	return count, nil
}

func (r *NotificationRepository) MarkRead(_ context.Context, id, userID uuid.UUID) (*entities.Notification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for i := range r.s.notifications {
		n := &r.s.notifications[i]
		if n.ID == id && n.UserID == userID {
			n.Read = true
			n.UpdatedAt = time.Now().UTC()
			out := *n
			return &out, nil
		}
	}
	return nil, entities.ErrNotificationNotFound
}

func (r *NotificationRepository) MarkAllRead(_ context.Context, userID uuid.UUID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var changed int64
	now := time.Now().UTC()
	for i := range r.s.notifications {
		n := &r.s.notifications[i]
		if n.UserID == userID && !n.Read {
			n.Read = true
			n.UpdatedAt = now
			changed++
		}
	}
	return changed, nil
}

func (r *NotificationRepository) Exists(_ context.Context, userID uuid.UUID, typ entities.NotificationType, targetID string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, n := range r.s.notifications {
		if n.UserID == userID && n.Type == typ && n.TargetID == targetID {
			return true, nil
		}
	}
	return false, nil
}

// Activities

type ActivityRepository struct{ s *Store }

var _ ports.ActivityRepository = (*ActivityRepository)(nil)

func (r *ActivityRepository) Append(_ context.Context, a *entities.Activity) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.CreatedAt = time.Now().UTC()
	r.s.activities = append(r.s.activities, *a)
	return nil
}

func (r *ActivityRepository) ListByBoards(_ context.Context, boardIDs []uuid.UUID, limit int) ([]*entities.Activity, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []*entities.Activity{}
	for i := len(r.s.activities) - 1; i >= 0; i-- {
		a := r.s.activities[i]
		if !slices.Contains(boardIDs, a.BoardID) {
			continue
		}
		out = append(out, &a)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
