package cache

import (
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tenancy/backend/internal/domain/shared"
	"github.com/tenancy/backend/internal/infrastructure/config"
	"github.com/tenancy/backend/internal/infrastructure/pool"
)

// Cache drivers accepted under cache.driver.
const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
)

// NewRedisPool creates the process-wide pool of Redis clients.
func NewRedisPool() *pool.Pool[*redis.Client] {
	return pool.New(func(c *redis.Client) error { return c.Close() })
}

// RedisManager hands out the Redis client matching the unit's current
// redis.* configuration. Clients are shared through the pool by fingerprint.
type RedisManager struct {
	rt   *config.Runtime
	pool *pool.Pool[*redis.Client]

	mu     sync.Mutex
	client *redis.Client
}

// NewRedisManager binds a manager to rt and drops its handle whenever the
// redis section is invalidated.
func NewRedisManager(rt *config.Runtime, p *pool.Pool[*redis.Client]) *RedisManager {
	m := &RedisManager{rt: rt, pool: p}
	rt.Subscribe("redis", m.Invalidate)
	return m
}

// Client returns the client for the current configuration.
func (m *RedisManager) Client() (*redis.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client != nil {
		return m.client, nil
	}

	cfg := RedisConfig{
		Host:     m.rt.GetString("redis.host", "localhost"),
		Port:     m.rt.GetInt("redis.port", 6379),
		Password: m.rt.GetString("redis.password", ""),
		DB:       m.rt.GetInt("redis.db", 0),
	}
	client, err := m.pool.Get(m.rt.Fingerprint("redis"), func() (*redis.Client, error) {
		return redis.NewClient(&redis.Options{
			Addr:     cfg.Addr(),
			Password: cfg.Password,
			DB:       cfg.DB,
		}), nil
	})
	if err != nil {
		return nil, err
	}
	m.client = client
	return client, nil
}

// Invalidate drops the cached client handle.
func (m *RedisManager) Invalidate() {
	m.mu.Lock()
	m.client = nil
	m.mu.Unlock()
}

// StoreManager hands out the application cache store for the unit of work,
// namespaced by cache.prefix.
type StoreManager struct {
	rt     *config.Runtime
	memory *RistrettoStore
	redis  *RedisManager

	mu    sync.Mutex
	store *PrefixedStore
}

// NewStoreManager binds a manager to rt. memory backs the memory driver and
// is shared by every unit; redis backs the redis driver and may be nil.
func NewStoreManager(rt *config.Runtime, memory *RistrettoStore, redisManager *RedisManager) *StoreManager {
	m := &StoreManager{rt: rt, memory: memory, redis: redisManager}
	rt.Subscribe("cache", m.Invalidate)
	rt.Subscribe("redis", m.Invalidate)
	return m
}

// Store returns the store for the current cache configuration.
func (m *StoreManager) Store() (*PrefixedStore, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.store != nil {
		return m.store, nil
	}

	prefix := m.rt.GetString("cache.prefix", "")
	driver := m.rt.GetString("cache.driver", DriverMemory)

	var inner Store
	switch driver {
	case DriverMemory:
		inner = m.memory
	case DriverRedis:
		if m.redis == nil {
			return nil, fmt.Errorf("cache driver %q: %w", driver, shared.ErrNotSupported)
		}
		client, err := m.redis.Client()
		if err != nil {
			return nil, err
		}
		inner = NewRedisStore(client, "")
	default:
		return nil, fmt.Errorf("cache driver %q: %w", driver, shared.ErrNotSupported)
	}

	m.store = NewPrefixedStore(inner, prefix)
	return m.store, nil
}

// TTL returns the configured default lifetime for application cache entries.
func (m *StoreManager) TTL() time.Duration {
	return m.rt.GetDuration("cache.ttl", 0)
}

// Invalidate drops the cached store handle.
func (m *StoreManager) Invalidate() {
	m.mu.Lock()
	m.store = nil
	m.mu.Unlock()
}
