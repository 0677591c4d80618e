package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/tenancy/backend/internal/domain/shared"
	"github.com/tenancy/backend/internal/infrastructure/cache"
	"github.com/tenancy/backend/internal/infrastructure/config"
)

// Session drivers accepted under session.driver
const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
)

// CookieOptions describes the session cookie for the current unit
type CookieOptions struct {
	Name     string
	Domain   string
	Lifetime time.Duration
	Secure   bool
}

// MaxAge returns the cookie max-age in seconds
func (o CookieOptions) MaxAge() int {
	return int(o.Lifetime / time.Second)
}

// Manager hands out the session store and cookie settings matching the
// unit's session.* configuration.
type Manager struct {
	rt     *config.Runtime
	memory *MemoryStore
	redis  *cache.RedisManager

	mu    sync.Mutex
	store Store
}

// NewManager binds a manager to rt. memory backs the memory driver; redis
// backs the redis driver and may be nil.
func NewManager(rt *config.Runtime, memory *MemoryStore, redisManager *cache.RedisManager) *Manager {
	m := &Manager{rt: rt, memory: memory, redis: redisManager}
	rt.Subscribe("session", m.Invalidate)
	rt.Subscribe("redis", m.Invalidate)
	return m
}

// Store returns the store for the configured driver
func (m *Manager) Store() (Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.store != nil {
		return m.store, nil
	}

	driver := m.rt.GetString("session.driver", DriverMemory)
	switch driver {
	case DriverMemory:
		m.store = m.memory
	case DriverRedis:
		if m.redis == nil {
			return nil, fmt.Errorf("session driver %q: %w", driver, shared.ErrNotSupported)
		}
		client, err := m.redis.Client()
		if err != nil {
			return nil, err
		}
		m.store = NewRedisStore(client)
	default:
		return nil, fmt.Errorf("session driver %q: %w", driver, shared.ErrNotSupported)
	}
	return m.store, nil
}

// Cookie returns the cookie settings for the current configuration
func (m *Manager) Cookie() CookieOptions {
	return CookieOptions{
		Name:     m.rt.GetString("session.cookie", "session"),
		Domain:   m.rt.GetString("session.domain", ""),
		Lifetime: m.rt.GetDuration("session.lifetime", 2*time.Hour),
		Secure:   m.rt.GetString("app.env", "") == "production",
	}
}

// Invalidate drops the cached store handle
func (m *Manager) Invalidate() {
	m.mu.Lock()
	m.store = nil
	m.mu.Unlock()
}
