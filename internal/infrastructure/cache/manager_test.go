package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tenancy/backend/internal/domain/shared"
	"github.com/tenancy/backend/internal/infrastructure/config"
)

func redisRuntime(mr *miniredis.Miniredis) *config.Runtime {
	return config.NewRuntime(map[string]any{
		"redis": map[string]any{"host": mr.Host(), "port": mr.Port(), "db": 0},
		"cache": map[string]any{"driver": "memory", "prefix": "tenancy", "ttl": "1m"},
	})
}

func TestRedisManager_SharesClientsByFingerprint(t *testing.T) {
	mr := miniredis.RunT(t)
	p := NewRedisPool()
	t.Cleanup(func() { _ = p.Close() })
	base := redisRuntime(mr)

	a := NewRedisManager(base.Fork(), p)
	b := NewRedisManager(base.Fork(), p)

	ca, err := a.Client()
	require.NoError(t, err)
	cb, err := b.Client()
	require.NoError(t, err)
	assert.Same(t, ca, cb)
	require.NoError(t, ca.Ping(context.Background()).Err())
	assert.Equal(t, 1, p.Len())
}

func TestRedisManager_InvalidateRebuildsForNewConfig(t *testing.T) {
	mr := miniredis.RunT(t)
	p := NewRedisPool()
	t.Cleanup(func() { _ = p.Close() })
	rt := redisRuntime(mr).Fork()
	m := NewRedisManager(rt, p)

	first, err := m.Client()
	require.NoError(t, err)

	rt.Set("redis.db", 3)
	same, err := m.Client()
	require.NoError(t, err)
	assert.Same(t, first, same, "handle is kept until invalidated")

	rt.Invalidate("redis")
	second, err := m.Client()
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Equal(t, 3, second.Options().DB)
}

func TestStoreManager_MemoryDriverUsesPrefix(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	memory := newTestRistretto(t)
	rt := redisRuntime(mr).Fork()
	m := NewStoreManager(rt, memory, nil)

	s, err := m.Store()
	require.NoError(t, err)
	assert.Equal(t, "tenancy", s.Prefix())
	assert.Equal(t, time.Minute, m.TTL())

	rt.Set("cache.prefix", "tenant_abc")
	rt.Invalidate("cache")
	s, err = m.Store()
	require.NoError(t, err)
	assert.Equal(t, "tenant_abc", s.Prefix())

	require.NoError(t, s.Set(ctx, "k", []byte("v"), 0))
	_, ok, _ := memory.Get(ctx, "tenant_abc:k")
	assert.True(t, ok)
}

func TestStoreManager_RedisDriver(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	p := NewRedisPool()
	t.Cleanup(func() { _ = p.Close() })
	rt := redisRuntime(mr).Fork()
	rt.Set("cache.driver", "redis")
	rt.Set("cache.prefix", "tenant_abc")

	m := NewStoreManager(rt, newTestRistretto(t), NewRedisManager(rt, p))
	s, err := m.Store()
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "k", []byte("v"), 0))
	assert.True(t, mr.Exists("tenant_abc:k"))
}

func TestStoreManager_UnsupportedDriver(t *testing.T) {
	mr := miniredis.RunT(t)
	rt := redisRuntime(mr).Fork()
	rt.Set("cache.driver", "file")

	m := NewStoreManager(rt, newTestRistretto(t), nil)
	_, err := m.Store()
	assert.ErrorIs(t, err, shared.ErrNotSupported)
}

func TestStoreManager_ResetDropsHandle(t *testing.T) {
	mr := miniredis.RunT(t)
	rt := redisRuntime(mr).Fork()
	m := NewStoreManager(rt, newTestRistretto(t), nil)

	rt.Set("cache.prefix", "tenant_abc")
	rt.Invalidate("cache")
	s, err := m.Store()
	require.NoError(t, err)
	assert.Equal(t, "tenant_abc", s.Prefix())

	rt.Reset()
	s, err = m.Store()
	require.NoError(t, err)
	assert.Equal(t, "tenancy", s.Prefix())
}
