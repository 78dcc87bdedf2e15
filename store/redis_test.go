package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestRedis(t *testing.T) *redis.Client {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedisStore(t *testing.T) {
	runSessionStoreSuite(t, func(t *testing.T) SessionStore {
		return NewRedisStoreFromClient(setupTestRedis(t), "parley:", zap.NewNop())
	})
}

func TestRedisStore_KeyPrefixIsolation(t *testing.T) {
	ctx := context.Background()
	client := setupTestRedis(t)

	a := NewRedisStoreFromClient(client, "a:", zap.NewNop())
	b := NewRedisStoreFromClient(client, "b:", zap.NewNop())

	require.NoError(t, a.SaveSession(ctx, testRecord("shared-id", time.Now())))

	_, err := a.GetSession(ctx, "shared-id")
	require.NoError(t, err)
	_, err = b.GetSession(ctx, "shared-id")
	require.ErrorIs(t, err, ErrNotFound)

	listed, err := b.ListSessions(ctx)
	require.NoError(t, err)
	require.Empty(t, listed)
}

func TestRedisStore_ListHealsDanglingIndexEntries(t *testing.T) {
	ctx := context.Background()
	client := setupTestRedis(t)
	s := NewRedisStoreFromClient(client, "parley:", zap.NewNop())

	require.NoError(t, s.SaveSession(ctx, testRecord("kept", time.Now())))
	require.NoError(t, s.SaveSession(ctx, testRecord("dangling", time.Now())))

	// Simulate a record lost out of band: the index still points at it.
	require.NoError(t, client.Del(ctx, "parley:session:dangling").Err())

	listed, err := s.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, "kept", listed[0].SessionID)

	// Second listing runs against a healed index.
	n, err := client.ZCard(ctx, "parley:sessions").Result()
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestNewRedisStore_UnreachableServer(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Redis.Host = "127.0.0.1"
	cfg.Redis.Port = 1 // nothing listens here
	_, err := NewRedisStore(cfg, zap.NewNop())
	require.Error(t, err)
}
