package cache

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRistretto(t *testing.T) *RistrettoStore {
	t.Helper()
	s, err := NewRistrettoStore(1 << 20)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRistrettoStore(t *testing.T) {
	ctx := context.Background()
	s := newTestRistretto(t)

	_, ok, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Minute))
	v, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), v)

	require.NoError(t, s.Delete(ctx, "k"))
	_, ok, _ = s.Get(ctx, "k")
	assert.False(t, ok)
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	s := NewRedisStore(client, "app:")

	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Minute))
	assert.True(t, mr.Exists("app:k"))

	v, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), v)

	mr.FastForward(2 * time.Minute)
	_, ok, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, s.Delete(ctx, "a", "b"))
	assert.False(t, mr.Exists("app:a"))
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	client, err := NewRedisClient(context.Background(), RedisConfig{Host: mr.Host(), Port: port})
	require.NoError(t, err)
	_ = client.Close()

	_, err = NewRedisClient(context.Background(), RedisConfig{Host: "127.0.0.1", Port: 1})
	assert.Error(t, err)
}

func TestPrefixedStore(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)

	a := NewPrefixedStore(NewRedisStore(client, ""), "tenant_a")
	b := NewPrefixedStore(NewRedisStore(client, ""), "tenant_b")

	require.NoError(t, a.Set(ctx, "greeting", []byte("hello a"), 0))
	assert.True(t, mr.Exists("tenant_a:greeting"))

	_, ok, err := b.Get(ctx, "greeting")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, a.Delete(ctx, "greeting"))
	assert.False(t, mr.Exists("tenant_a:greeting"))
	assert.Equal(t, "tenant_a", a.Prefix())
}
