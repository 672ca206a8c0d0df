// Package pubsub pushes stored notifications to live subscribers.
package pubsub

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/taskflow/core/internal/domain/entities"
	"github.com/taskflow/core/internal/infrastructure/logger"
	"github.com/taskflow/core/internal/ports"
)

const subscriberBuffer = 16

// Redis fans notifications out over one channel per user.
type Redis struct {
	client *redis.Client
	prefix string
	logger *logger.Logger
}

var (
	_ ports.NotificationPublisher  = (*Redis)(nil)
	_ ports.NotificationSubscriber = (*Redis)(nil)
)

func NewRedis(client *redis.Client, prefix string, log *logger.Logger) *Redis {
	return &Redis{client: client, prefix: prefix, logger: log.WithComponent("pubsub")}
}

func (r *Redis) channel(userID uuid.UUID) string {
	return r.prefix + userID.String()
}

func (r *Redis) Publish(ctx context.Context, n *entities.Notification) error {
	data, err := sonic.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel(n.UserID), data).Err(); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// Subscribe returns a channel that is closed once ctx is done.
func (r *Redis) Subscribe(ctx context.Context, userID uuid.UUID) (<-chan *entities.Notification, error) {
	sub := r.client.Subscribe(ctx, r.channel(userID))
	// Receive blocks until the subscription is confirmed.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	out := make(chan *entities.Notification, subscriberBuffer)
	go func() {
		defer close(out)
		defer sub.Close()

		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					r.logger.Warnw("subscription channel closed", "user_id", userID)
					return
				}
				var n entities.Notification
				if err := sonic.UnmarshalString(msg.Payload, &n); err != nil {
					r.logger.Errorw("unable to parse notification", "error", err)
					continue
				}
				select {
				case out <- &n:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
