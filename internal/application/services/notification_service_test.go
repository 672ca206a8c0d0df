package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskflow/core/internal/domain/entities"
	"github.com/taskflow/core/internal/ports"
)

func TestNotifySkipsActorAndDuplicates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor, a, b := uuid.New(), uuid.New(), uuid.New()

	f.notifications.Notify(ctx, actor, []uuid.UUID{a, actor, b, a, uuid.Nil}, ports.NotificationTemplate{
		Title: "Card moved", Type: entities.NotificationCardMoved, TargetID: "card-1",
	})

	assert.Len(t, f.inbox(t, a), 1)
	assert.Len(t, f.inbox(t, b), 1)
	assert.Empty(t, f.inbox(t, actor))
	assert.Len(t, f.publisher.published, 2)

	n := f.inbox(t, a)[0]
	assert.False(t, n.Read)
	assert.Equal(t, "card-1", n.TargetID)
}

func TestMarkReadIsScopedToOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()

	f.notifications.Notify(ctx, uuid.Nil, []uuid.UUID{alice}, ports.NotificationTemplate{Title: "hi", Type: entities.NotificationInvitation})
	n := f.inbox(t, alice)[0]

	_, err := f.notifications.MarkRead(ctx, bob, n.ID)
	assert.ErrorIs(t, err, entities.ErrNotificationNotFound)

	count, err := f.notifications.UnreadCount(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	read, err := f.notifications.MarkRead(ctx, alice, n.ID)
	require.NoError(t, err)
	assert.True(t, read.Read)

	count, err = f.notifications.UnreadCount(ctx, alice)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestMarkAllRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := uuid.New()

	for i := 0; i < 3; i++ {
		f.notifications.Notify(ctx, uuid.Nil, []uuid.UUID{user}, ports.NotificationTemplate{Title: "n", Type: entities.NotificationCardMoved})
	}

	changed, err := f.notifications.MarkAllRead(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(3), changed)

	unread, err := f.notifications.List(ctx, user, ports.NotificationFilter{UnreadOnly: true})
	require.NoError(t, err)
	assert.Empty(t, unread)
}

func TestListClampsLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := uuid.New()

	for i := 0; i < maxNotificationLimit+5; i++ {
		f.notifications.Notify(ctx, uuid.Nil, []uuid.UUID{user}, ports.NotificationTemplate{Title: "n", Type: entities.NotificationCardMoved})
	}

	list, err := f.notifications.List(ctx, user, ports.NotificationFilter{Limit: 1000})
	require.NoError(t, err)
	assert.Len(t, list, maxNotificationLimit)

	list, err = f.notifications.List(ctx, user, ports.NotificationFilter{})
	require.NoError(t, err)
	assert.Len(t, list, defaultNotificationLimit)
}
