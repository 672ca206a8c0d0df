package cache

import (
	"context"
	"errors"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/taskflow/core/internal/domain/entities"
	"github.com/taskflow/core/internal/ports"
)

// BoardCache wraps a BoardRepository with a Redis read-through cache for GetByID.
// Writes go to the base repository first and then evict the cached document.
type BoardCache struct {
	ports.BoardRepository
	redis *redis.Client
	ttl   time.Duration
}

// NewBoardCache creates a caching BoardRepository using the provided Redis client and TTL.
func NewBoardCache(base ports.BoardRepository, client *redis.Client, ttl time.Duration) *BoardCache {
	if base == nil {
		panic("cache.NewBoardCache: base repository is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &BoardCache{BoardRepository: base, redis: client, ttl: ttl}
}

func (c *BoardCache) GetByID(ctx context.Context, id uuid.UUID) (*entities.Board, error) {
	if board, ok := c.load(ctx, id); ok {
		return board, nil
	}

	board, err := c.BoardRepository.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	c.store(ctx, board)
	return board, nil
}

func (c *BoardCache) Update(ctx context.Context, board *entities.Board) error {
	if err := c.BoardRepository.Update(ctx, board); err != nil {
		if errors.Is(err, entities.ErrVersionConflict) {
			c.evict(ctx, board.ID)
		}
		return err
	}

	c.evict(ctx, board.ID)
	return nil
}

func (c *BoardCache) Delete(ctx context.Context, id uuid.UUID) error {
	if err := c.BoardRepository.Delete(ctx, id); err != nil {
		return err
	}

	c.evict(ctx, id)
	return nil
}

func (c *BoardCache) load(ctx context.Context, id uuid.UUID) (*entities.Board, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, boardCacheKey(id)).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing store without failing.
			_ = c.redis.Del(ctx, boardCacheKey(id)).Err()
		}
		return nil, false
	}
	var board entities.Board
	if err := sonic.Unmarshal(data, &board); err != nil {
		_ = c.redis.Del(ctx, boardCacheKey(id)).Err()
		return nil, false
	}
	return &board, true
}

func (c *BoardCache) store(ctx context.Context, board *entities.Board) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := sonic.Marshal(board)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, boardCacheKey(board.ID), data, c.ttl).Err()
}

func (c *BoardCache) evict(ctx context.Context, id uuid.UUID) {
	if c.redis == nil {
		return
	}
	_ = c.redis.Del(ctx, boardCacheKey(id)).Err()
}

func boardCacheKey(id uuid.UUID) string {
	return "board:" + id.String()
}
