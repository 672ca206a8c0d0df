//go:build integration

package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskflow/core/internal/domain/entities"
	"github.com/taskflow/core/internal/infrastructure/config"
	"github.com/taskflow/core/internal/infrastructure/database"
	"github.com/taskflow/core/internal/ports"
)

func setupPostgres(t *testing.T) *database.DB {
	t.Helper()

	pool, err := dockertest.NewPool("")
	require.NoError(t, err)

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "16-alpine",
		Env: []string{
			"POSTGRES_PASSWORD=postgres",
			"POSTGRES_USER=postgres",
			"POSTGRES_DB=taskflow_test",
		},
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Purge(resource) })

	hostPort := resource.GetPort("5432/tcp")
	port, err := strconv.Atoi(hostPort)
	require.NoError(t, err)

	cfg := config.DatabaseConfig{
		Host:            "localhost",
		Port:            port,
		Name:            "taskflow_test",
		User:            "postgres",
		Password:        "postgres",
		SSLMode:         "disable",
		MaxOpenConns:    4,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Minute,
	}

	require.NoError(t, pool.Retry(func() error {
		db, err := sql.Open("postgres", cfg.GetDSN())
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()
		return db.Ping()
	}))

	db, err := database.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	migrationsDir, err := filepath.Abs(filepath.Join("..", "..", "..", "migrations"))
	require.NoError(t, err)
	require.DirExists(t, migrationsDir)

	changed, err := db.Migrate("file://"+migrationsDir, "up", 0)
	require.NoError(t, err)
	require.True(t, changed)

	return db
}

func TestPostgresRepositoriesIntegration(t *testing.T) {
	ctx := context.Background()
	db := setupPostgres(t)

	users := NewUserRepository(db.DB)
	auth := NewAuthRepository(db)
	boards := NewBoardRepository(db.DB)
	notifications := NewNotificationRepository(db.DB)
	activities := NewActivityRepository(db.DB)

	owner := &entities.User{Email: "Owner@Example.com", Name: "Owner", Provider: entities.AuthProviderLocal, IsActive: true, PasswordHash: "hash"}
	require.NoError(t, users.Create(ctx, owner))
	require.NotEqual(t, uuid.Nil, owner.ID)
	require.ErrorIs(t, users.Create(ctx, &entities.User{Email: "owner@example.com", Provider: entities.AuthProviderLocal}), entities.ErrEmailTaken)

	byEmail, err := users.GetByEmail(ctx, "owner@example.com")
	require.NoError(t, err)
	assert.Equal(t, owner.ID, byEmail.ID)

	t.Run("refresh tokens", func(t *testing.T) {
		require.NoError(t, auth.CreateRefreshToken(ctx, owner.ID, "token-hash", time.Now().Add(time.Hour)))
		token, err := auth.GetRefreshToken(ctx, "token-hash")
		require.NoError(t, err)
		assert.Equal(t, owner.ID, token.UserID)

		require.NoError(t, auth.RevokeRefreshToken(ctx, "token-hash"))
		assert.ErrorIs(t, auth.RevokeRefreshToken(ctx, "token-hash"), entities.ErrInvalidToken)
		assert.ErrorIs(t, auth.RevokeRefreshToken(ctx, "missing"), entities.ErrInvalidToken)

		require.NoError(t, auth.CreateRefreshToken(ctx, owner.ID, "other-hash", time.Now().Add(time.Hour)))
		require.NoError(t, auth.RevokeAllUserTokens(ctx, owner.ID))
		token, err = auth.GetRefreshToken(ctx, "other-hash")
		require.NoError(t, err)
		assert.True(t, token.IsRevoked())
	})

	t.Run("password reset", func(t *testing.T) {
		require.NoError(t, auth.CreateRefreshToken(ctx, owner.ID, "session-hash", time.Now().Add(time.Hour)))
		reset := &entities.PasswordReset{UserID: owner.ID, TokenHash: "reset-hash", ExpiresAt: time.Now().Add(time.Hour)}
		require.NoError(t, auth.CreatePasswordReset(ctx, reset))

		require.NoError(t, auth.ConsumePasswordReset(ctx, reset, "new-hash", time.Now().UTC()))
		assert.ErrorIs(t, auth.ConsumePasswordReset(ctx, reset, "newer-hash", time.Now().UTC()), entities.ErrInvalidToken)

		stored, err := users.GetByID(ctx, owner.ID)
		require.NoError(t, err)
		assert.Equal(t, "new-hash", stored.PasswordHash)

		session, err := auth.GetRefreshToken(ctx, "session-hash")
		require.NoError(t, err)
		assert.True(t, session.IsRevoked())
	})

	t.Run("board versioning", func(t *testing.T) {
		board := entities.NewBoard("Roadmap", "", "", owner)
		_, err := board.Invite("guest@example.com", "", entities.MemberRoleMember, nil)
		require.NoError(t, err)
		col := board.AddColumn("Todo")
		due := time.Now().Add(2 * time.Hour)
		_, err = board.AddCard(col.ID, entities.Card{Title: "ship", DueDate: &due})
		require.NoError(t, err)
		require.NoError(t, boards.Create(ctx, board))

		first, err := boards.GetByID(ctx, board.ID)
		require.NoError(t, err)
		second, err := boards.GetByID(ctx, board.ID)
		require.NoError(t, err)

		first.AddColumn("Done")
		require.NoError(t, boards.Update(ctx, first))
		second.AddColumn("Doing")
		require.ErrorIs(t, boards.Update(ctx, second), entities.ErrVersionConflict)

		mine, err := boards.ListByMember(ctx, owner.ID)
		require.NoError(t, err)
		require.Len(t, mine, 1)
		require.Len(t, mine[0].Columns, 2)

		invited, err := boards.ListWithPendingInvite(ctx, "GUEST@example.com")
		require.NoError(t, err)
		assert.Len(t, invited, 1)

		dueSoon, err := boards.ListWithDueCards(ctx, time.Now().Add(3*time.Hour))
		require.NoError(t, err)
		assert.Len(t, dueSoon, 1)

		require.NoError(t, activities.Append(ctx, &entities.Activity{
			UserID: owner.ID, UserName: owner.Name, Type: entities.ActivityBoardCreated,
			BoardID: board.ID, BoardTitle: board.Title, Description: "created",
		}))
		feed, err := activities.ListByBoards(ctx, []uuid.UUID{board.ID}, 10)
		require.NoError(t, err)
		assert.Len(t, feed, 1)

		require.NoError(t, boards.Delete(ctx, board.ID))
		_, err = boards.GetByID(ctx, board.ID)
		assert.ErrorIs(t, err, entities.ErrBoardNotFound)
	})

	t.Run("notifications", func(t *testing.T) {
		other := &entities.User{Email: "other@example.com", Name: "Other", Provider: entities.AuthProviderLocal, IsActive: true}
		require.NoError(t, users.Create(ctx, other))

		mine := &entities.Notification{UserID: owner.ID, Title: "moved", Type: entities.NotificationCardMoved, TargetID: "c1"}
		theirs := &entities.Notification{UserID: other.ID, Title: "moved", Type: entities.NotificationCardMoved, TargetID: "c1"}
		require.NoError(t, notifications.Create(ctx, mine))
		require.NoError(t, notifications.Create(ctx, theirs))

		_, err := notifications.MarkRead(ctx, theirs.ID, owner.ID)
		assert.ErrorIs(t, err, entities.ErrNotificationNotFound)

		read, err := notifications.MarkRead(ctx, mine.ID, owner.ID)
		require.NoError(t, err)
		assert.True(t, read.Read)

		unread, err := notifications.CountUnread(ctx, other.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), unread)

		exists, err := notifications.Exists(ctx, other.ID, entities.NotificationCardMoved, "c1")
		require.NoError(t, err)
		assert.True(t, exists)

		list, err := notifications.ListByUser(ctx, owner.ID, ports.NotificationFilter{UnreadOnly: true, Limit: 10})
		require.NoError(t, err)
		assert.Empty(t, list)
	})
}
