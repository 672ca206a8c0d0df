package http

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskflow/core/internal/domain/entities"
	"github.com/taskflow/core/internal/infrastructure/logger"
	"github.com/taskflow/core/internal/infrastructure/pubsub"
)

// readUntil returns the first line starting with prefix.
func readUntil(t *testing.T, r *bufio.Reader, prefix string) string {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, prefix) {
			return strings.TrimSpace(line)
		}
	}
}

func TestNotificationStream(t *testing.T) {
	hub := pubsub.NewLocal()
	user := &entities.User{ID: uuid.New(), Email: "dev@example.com"}
	h := NewNotificationStreamHandler(hub, time.Hour, logger.NewNop())

	e := newEcho()
	e.GET("/stream", h.Stream, as(user))
	srv := httptest.NewServer(e)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/stream", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	body := bufio.NewReader(resp.Body)
	readUntil(t, body, ": connected")

	other := &entities.Notification{ID: uuid.New(), UserID: uuid.New(), Title: "not yours"}
	require.NoError(t, hub.Publish(ctx, other))
	mine := &entities.Notification{ID: uuid.New(), UserID: user.ID, Title: "Card moved", Type: entities.NotificationCardMoved}
	require.NoError(t, hub.Publish(ctx, mine))

	assert.Equal(t, "id: "+mine.ID.String(), readUntil(t, body, "id: "))
	assert.Equal(t, "event: notification", readUntil(t, body, "event: "))
	data := readUntil(t, body, "data: ")
	assert.Contains(t, data, `"title":"Card moved"`)
	assert.NotContains(t, data, "not yours")
}

func TestNotificationStreamRequiresUser(t *testing.T) {
	h := NewNotificationStreamHandler(pubsub.NewLocal(), 0, logger.NewNop())
	e := newEcho()
	e.GET("/stream", h.Stream)

	assert.Equal(t, http.StatusUnauthorized, do(e, http.MethodGet, "/stream", "").Code)
}
