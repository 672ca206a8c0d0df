package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/taskflow/core/internal/adapters/repository/memory"
	"github.com/taskflow/core/internal/domain/entities"
	"github.com/taskflow/core/internal/infrastructure/config"
	"github.com/taskflow/core/internal/infrastructure/logger"
	"github.com/taskflow/core/internal/ports"
)

const testPublicURL = "https://taskflow.test"

type fixture struct {
	store         *memory.Store
	mailer        *recordingMailer
	publisher     *recordingPublisher
	identity      *IdentityService
	boards        *BoardService
	members       *MemberService
	notifications *NotificationService
	activity      *ActivityService
	dashboard     *DashboardService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	log := logger.NewNop()
	store := memory.NewStore()
	mailer := &recordingMailer{}
	publisher := &recordingPublisher{}

	notifications := NewNotificationService(store.Notifications(), publisher, log)
	activity := NewActivityService(store.Activities(), store.Boards(), log)

	return &fixture{
		store:         store,
		mailer:        mailer,
		publisher:     publisher,
		identity:      NewIdentityService(store.Users(), store.Auth(), store.Boards(), nil, mailer, testJWTConfig(), testPublicURL, log),
		boards:        NewBoardService(store.Boards(), notifications, activity, log),
		members:       NewMemberService(store.Boards(), store.Users(), notifications, activity, mailer, testPublicURL, log),
		notifications: notifications,
		activity:      activity,
		dashboard:     NewDashboardService(store.Boards(), store.Notifications()),
	}
}

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:           "test-secret",
		ExpiresIn:        time.Hour,
		RefreshExpiresIn: 24 * time.Hour,
		Issuer:           "taskflow-test",
	}
}

// user stores an active account for email.
func (f *fixture) user(t *testing.T, email string) *entities.User {
	t.Helper()
	u := &entities.User{ID: uuid.New(), Email: email, Name: email, IsActive: true, Provider: entities.AuthProviderLocal}
	require.NoError(t, f.store.Users().Create(context.Background(), u))
	return u
}

// board creates a board owned by owner with the given columns.
func (f *fixture) board(t *testing.T, owner *entities.User, columns ...string) *entities.Board {
	t.Helper()
	ctx := context.Background()

	b, err := f.boards.CreateBoard(ctx, owner, ports.CreateBoardRequest{Title: "Test Board"})
	require.NoError(t, err)
	for _, title := range columns {
		b, err = f.boards.AddColumn(ctx, owner, b.ID, ports.AddColumnRequest{Title: title})
		require.NoError(t, err)
	}
	return b
}

// join invites u to the board and accepts on their behalf.
func (f *fixture) join(t *testing.T, admin, u *entities.User, boardID uuid.UUID) *entities.Board {
	t.Helper()
	ctx := context.Background()

	b, err := f.members.InviteMember(ctx, admin, boardID, ports.InviteMemberRequest{Email: u.Email})
	require.NoError(t, err)
	var memberID uuid.UUID
	for _, m := range b.Members {
		if m.Email == u.Email {
			memberID = m.ID
		}
	}
	_, err = f.members.AcceptInvitation(ctx, u, boardID, memberID)
	require.NoError(t, err)

	b, err = f.store.Boards().GetByID(ctx, boardID)
	require.NoError(t, err)
	return b
}

func (f *fixture) inbox(t *testing.T, userID uuid.UUID) []*entities.Notification {
	t.Helper()
	list, err := f.notifications.List(context.Background(), userID, ports.NotificationFilter{})
	require.NoError(t, err)
	return list
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []ports.MailMessage
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg ports.MailMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *recordingMailer) last() (ports.MailMessage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return ports.MailMessage{}, false
	}
	return m.sent[len(m.sent)-1], true
}

type recordingPublisher struct {
	mu        sync.Mutex
	published []*entities.Notification
}

func (p *recordingPublisher) Publish(_ context.Context, n *entities.Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, n)
	return nil
}

// conflictingBoards fails the first n updates with a version conflict.
type conflictingBoards struct {
	ports.BoardRepository
	n       int
	updates int
}

func (r *conflictingBoards) Update(ctx context.Context, b *entities.Board) error {
	r.updates++
	if r.updates <= r.n {
		return entities.ErrVersionConflict
	}
	return r.BoardRepository.Update(ctx, b)
}

var errMailDown = errors.New("smtp unavailable")
