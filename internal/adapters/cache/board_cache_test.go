package cache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskflow/core/internal/adapters/repository/memory"
	"github.com/taskflow/core/internal/domain/entities"
	"github.com/taskflow/core/internal/ports"
)

type countingRepo struct {
	ports.BoardRepository
	gets int
}

func (r *countingRepo) GetByID(ctx context.Context, id uuid.UUID) (*entities.Board, error) {
	r.gets++
	return r.BoardRepository.GetByID(ctx, id)
}

func setup(t *testing.T) (*miniredis.Miniredis, *countingRepo, *BoardCache) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	base := &countingRepo{BoardRepository: memory.NewStore().Boards()}
	return mr, base, NewBoardCache(base, client, time.Minute)
}

func seedBoard(t *testing.T, repo ports.BoardRepository) *entities.Board {
	t.Helper()
	owner := &entities.User{ID: uuid.New(), Email: "owner@example.com", Name: "Owner"}
	board := entities.NewBoard("Roadmap", "", "", owner)
	board.AddColumn("Todo")
	require.NoError(t, repo.Create(context.Background(), board))
	return board
}

func TestBoardCacheMissThenHit(t *testing.T) {
	mr, base, cache := setup(t)
	ctx := context.Background()
	board := seedBoard(t, cache)

	first, err := cache.GetByID(ctx, board.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, base.gets)

	ttl := mr.TTL(boardCacheKey(board.ID))
	assert.True(t, ttl > 0 && ttl <= time.Minute, "unexpected TTL %v", ttl)

	second, err := cache.GetByID(ctx, board.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, base.gets)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Columns[0].ID, second.Columns[0].ID)
}

func TestBoardCacheEvictsOnWrite(t *testing.T) {
	mr, base, cache := setup(t)
	ctx := context.Background()
	board := seedBoard(t, cache)

	loaded, err := cache.GetByID(ctx, board.ID)
	require.NoError(t, err)
	require.True(t, mr.Exists(boardCacheKey(board.ID)))

	loaded.Title = "Renamed"
	require.NoError(t, cache.Update(ctx, loaded))
	assert.False(t, mr.Exists(boardCacheKey(board.ID)))

	fresh, err := cache.GetByID(ctx, board.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", fresh.Title)
	assert.Equal(t, int64(1), fresh.Version)
	assert.Equal(t, 2, base.gets)

	require.NoError(t, cache.Delete(ctx, board.ID))
	assert.False(t, mr.Exists(boardCacheKey(board.ID)))
	_, err = cache.GetByID(ctx, board.ID)
	assert.ErrorIs(t, err, entities.ErrBoardNotFound)
}

func TestBoardCacheIgnoresCorruptEntries(t *testing.T) {
	mr, base, cache := setup(t)
	ctx := context.Background()
	board := seedBoard(t, cache)

	require.NoError(t, mr.Set(boardCacheKey(board.ID), "{not json"))

	got, err := cache.GetByID(ctx, board.ID)
	require.NoError(t, err)
	assert.Equal(t, board.ID, got.ID)
	assert.Equal(t, 1, base.gets)
}
