package persistence

import (
	"context"
	"sync"

	"github.com/tenancy/backend/internal/infrastructure/config"
	"github.com/tenancy/backend/internal/infrastructure/pool"
	"gorm.io/gorm"
)

// Opener opens a connection for a database configuration
type Opener func(cfg *config.DatabaseConfig) (*Database, error)

// NewConnectionPool creates the process-wide pool of database connections.
func NewConnectionPool() *pool.Pool[*Database] {
	return pool.New(func(d *Database) error { return d.Close() })
}

// ConnectionManager hands out the connection matching the unit's current
// database.* configuration. A tenant pointing at its own host or database
// gets its own pooled connection; everyone else shares the baseline one.
type ConnectionManager struct {
	rt   *config.Runtime
	pool *pool.Pool[*Database]
	open Opener

	mu sync.Mutex
	db *Database
}

// NewConnectionManager binds a manager to rt and drops its handle whenever
// the database section is invalidated.
func NewConnectionManager(rt *config.Runtime, p *pool.Pool[*Database], open Opener) *ConnectionManager {
	m := &ConnectionManager{rt: rt, pool: p, open: open}
	rt.Subscribe("database", m.Invalidate)
	return m
}

// Database returns the connection for the current configuration.
func (m *ConnectionManager) Database() (*Database, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.db != nil {
		return m.db, nil
	}

	cfg := DatabaseConfigFromRuntime(m.rt)
	db, err := m.pool.Get(m.rt.Fingerprint("database"), func() (*Database, error) {
		return m.open(cfg)
	})
	if err != nil {
		return nil, err
	}
	m.db = db
	return db, nil
}

// DB returns a session on the current connection bound to ctx.
func (m *ConnectionManager) DB(ctx context.Context) (*gorm.DB, error) {
	db, err := m.Database()
	if err != nil {
		return nil, err
	}
	return db.DB.WithContext(ctx), nil
}

// Invalidate drops the cached connection handle.
func (m *ConnectionManager) Invalidate() {
	m.mu.Lock()
	m.db = nil
	m.mu.Unlock()
}

// DatabaseConfigFromRuntime reads the database section of rt.
func DatabaseConfigFromRuntime(rt *config.Runtime) *config.DatabaseConfig {
	return &config.DatabaseConfig{
		Driver:          rt.GetString("database.driver", "postgres"),
		Host:            rt.GetString("database.host", "localhost"),
		Port:            rt.GetInt("database.port", 5432),
		User:            rt.GetString("database.user", ""),
		Password:        rt.GetString("database.password", ""),
		DBName:          rt.GetString("database.dbname", ""),
		SSLMode:         rt.GetString("database.sslmode", "disable"),
		MaxOpenConns:    rt.GetInt("database.max_open_conns", 25),
		MaxIdleConns:    rt.GetInt("database.max_idle_conns", 5),
		ConnMaxLifetime: rt.GetInt("database.conn_max_lifetime", 5),
		ConnMaxIdleTime: rt.GetInt("database.conn_max_idle_time", 5),
	}
}
