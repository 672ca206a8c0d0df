package pubsub

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/taskflow/core/internal/domain/entities"
	"github.com/taskflow/core/internal/ports"
)

// Local is an in-process hub used when Redis is disabled. It only reaches
// subscribers connected to the same instance.
type Local struct {
	mu   sync.RWMutex
	subs map[uuid.UUID]map[chan *entities.Notification]struct{}
}

var (
	_ ports.NotificationPublisher  = (*Local)(nil)
	_ ports.NotificationSubscriber = (*Local)(nil)
)

func NewLocal() *Local {
	return &Local{subs: make(map[uuid.UUID]map[chan *entities.Notification]struct{})}
}

// Publish never blocks; slow subscribers miss messages.
func (l *Local) Publish(_ context.Context, n *entities.Notification) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for ch := range l.subs[n.UserID] {
		cp := *n
		select {
		case ch <- &cp:
		default:
		}
	}
	return nil
}

func (l *Local) Subscribe(ctx context.Context, userID uuid.UUID) (<-chan *entities.Notification, error) {
	ch := make(chan *entities.Notification, subscriberBuffer)

	l.mu.Lock()
	if l.subs[userID] == nil {
		l.subs[userID] = make(map[chan *entities.Notification]struct{})
	}
	l.subs[userID][ch] = struct{}{}
	l.mu.Unlock()

	go func() {
		<-ctx.Done()
		l.mu.Lock()
		delete(l.subs[userID], ch)
		if len(l.subs[userID]) == 0 {
			delete(l.subs, userID)
		}
		l.mu.Unlock()
		close(ch)
	}()
	return ch, nil
}
