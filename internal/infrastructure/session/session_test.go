package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tenancy/backend/internal/domain/shared"
	"github.com/tenancy/backend/internal/infrastructure/cache"
	"github.com/tenancy/backend/internal/infrastructure/config"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now()
	s.now = func() time.Time { return now }

	require.NoError(t, s.Save(ctx, "acme_session", "id1", Data{"user": "alice"}, time.Minute))

	data, err := s.Load(ctx, "acme_session", "id1")
	require.NoError(t, err)
	assert.Equal(t, "alice", data["user"])

	_, err = s.Load(ctx, "globex_session", "id1")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	now = now.Add(2 * time.Minute)
	_, err = s.Load(ctx, "acme_session", "id1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	s := NewRedisStore(client)

	id := NewID()
	require.NoError(t, s.Save(ctx, "acme_session", id, Data{"user": "alice"}, time.Hour))
	assert.True(t, mr.Exists("session:acme_session:"+id))

	data, err := s.Load(ctx, "acme_session", id)
	require.NoError(t, err)
	assert.Equal(t, "alice", data["user"])

	require.NoError(t, s.Destroy(ctx, "acme_session", id))
	_, err = s.Load(ctx, "acme_session", id)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestManager(t *testing.T) {
	mr := miniredis.RunT(t)
	base := config.NewRuntime(map[string]any{
		"app":     map[string]any{"env": "production"},
		"redis":   map[string]any{"host": mr.Host(), "port": mr.Port()},
		"session": map[string]any{"driver": "memory", "cookie": "tenancy_session", "lifetime": "30m"},
	})
	memory := NewMemoryStore()
	redisPool := cache.NewRedisPool()
	t.Cleanup(func() { _ = redisPool.Close() })

	t.Run("memory driver", func(t *testing.T) {
		rt := base.Fork()
		m := NewManager(rt, memory, nil)
		store, err := m.Store()
		require.NoError(t, err)
		assert.Same(t, memory, store)

		cookie := m.Cookie()
		assert.Equal(t, "tenancy_session", cookie.Name)
		assert.Equal(t, 1800, cookie.MaxAge())
		assert.True(t, cookie.Secure)
	})

	t.Run("redis driver after invalidation", func(t *testing.T) {
		rt := base.Fork()
		m := NewManager(rt, memory, cache.NewRedisManager(rt, redisPool))
		_, err := m.Store()
		require.NoError(t, err)

		rt.Set("session.driver", "redis")
		rt.Set("session.cookie", "acme_session")
		rt.Invalidate("session")

		store, err := m.Store()
		require.NoError(t, err)
		assert.IsType(t, &RedisStore{}, store)
		assert.Equal(t, "acme_session", m.Cookie().Name)
	})

	t.Run("unsupported driver", func(t *testing.T) {
		rt := base.Fork()
		rt.Set("session.driver", "database")
		_, err := NewManager(rt, memory, nil).Store()
		assert.ErrorIs(t, err, shared.ErrNotSupported)
	})
}
