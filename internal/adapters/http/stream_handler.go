package http

import (
	"fmt"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"

	"github.com/taskflow/core/internal/infrastructure/logger"
	"github.com/taskflow/core/internal/ports"
)

const defaultHeartbeat = 25 * time.Second

// NotificationStreamHandler pushes the caller's notifications as Server-Sent Events.
type NotificationStreamHandler struct {
	subscriber ports.NotificationSubscriber
	heartbeat  time.Duration
	logger     *logger.Logger
}

func NewNotificationStreamHandler(subscriber ports.NotificationSubscriber, heartbeat time.Duration, logger *logger.Logger) *NotificationStreamHandler {
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	return &NotificationStreamHandler{
		subscriber: subscriber,
		heartbeat:  heartbeat,
		logger:     logger,
	}
}

// Stream godoc
// @Summary Stream notifications
// @Description Server-Sent Events; each event is a JSON notification
// @Tags notifications
// @Produce text/event-stream
// @Success 200 {object} entities.Notification
// @Security BearerAuth
// @Router /notifications/stream [get]
func (h *NotificationStreamHandler) Stream(c echo.Context) error {
	user := currentUser(c)
	if user == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Authentication required")
	}

	ctx := c.Request().Context()
	events, err := h.subscriber.Subscribe(ctx, user.ID)
	if err != nil {
		h.logger.Errorw("Notification subscription failed", "error", err, "user_id", user.ID)
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Notification stream unavailable")
	}

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if _, err := fmt.Fprint(w, ": connected\n\n"); err != nil {
		return nil
	}
	w.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case n, ok := <-events:
			if !ok {
				return nil
			}
			data, err := sonic.Marshal(n)
			if err != nil {
				h.logger.Warnw("Dropping unencodable notification", "error", err, "notification_id", n.ID)
				continue
			}
			if _, err := fmt.Fprintf(w, "id: %s\nevent: notification\ndata: %s\n\n", n.ID, data); err != nil {
				return nil
			}
			w.Flush()
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return nil
			}
			w.Flush()
		}
	}
}
