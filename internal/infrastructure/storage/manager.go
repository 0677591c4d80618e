package storage

import (
	"fmt"
	"sync"

	"github.com/tenancy/backend/internal/infrastructure/config"
	"github.com/tenancy/backend/internal/infrastructure/pool"
)

// Opener builds the backend for a storage configuration
type Opener func(cfg *config.StorageConfig) (ObjectStorage, error)

// S3Opener opens S3-compatible storage, falling back to memory when no
// bucket is configured.
func S3Opener(opts ...S3ObjectStorageOption) Opener {
	return func(cfg *config.StorageConfig) (ObjectStorage, error) {
		if cfg.Bucket == "" {
			return NewMemoryObjectStorage(), nil
		}
		return NewS3ObjectStorage(cfg, opts...)
	}
}

// NewPool creates the process-wide pool of storage backends
func NewPool() *pool.Pool[ObjectStorage] {
	return pool.New[ObjectStorage](nil)
}

// Manager hands out the unit's storage, namespaced by storage.prefix.
// Backends are shared between tenants using the same bucket and credentials.
type Manager struct {
	rt   *config.Runtime
	pool *pool.Pool[ObjectStorage]
	open Opener

	mu      sync.Mutex
	storage *PrefixedStorage
}

// NewManager binds a manager to rt and drops its handle whenever the
// storage section is invalidated.
func NewManager(rt *config.Runtime, p *pool.Pool[ObjectStorage], open Opener) *Manager {
	m := &Manager{rt: rt, pool: p, open: open}
	rt.Subscribe("storage", m.Invalidate)
	return m
}

// Storage returns the prefixed storage for the current configuration
func (m *Manager) Storage() (*PrefixedStorage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.storage != nil {
		return m.storage, nil
	}

	cfg := ConfigFromRuntime(m.rt)
	key := fmt.Sprintf("%s|%s|%s|%s|%t", cfg.Bucket, cfg.Region, cfg.Endpoint, cfg.AccessKeyID, cfg.UsePathStyle)
	backend, err := m.pool.Get(key, func() (ObjectStorage, error) {
		return m.open(cfg)
	})
	if err != nil {
		return nil, err
	}
	m.storage = NewPrefixedStorage(backend, cfg.Prefix)
	return m.storage, nil
}

// Invalidate drops the cached storage handle
func (m *Manager) Invalidate() {
	m.mu.Lock()
	m.storage = nil
	m.mu.Unlock()
}

// ConfigFromRuntime reads the storage section of rt
func ConfigFromRuntime(rt *config.Runtime) *config.StorageConfig {
	return &config.StorageConfig{
		Bucket:          rt.GetString("storage.bucket", ""),
		Region:          rt.GetString("storage.region", ""),
		Endpoint:        rt.GetString("storage.endpoint", ""),
		AccessKeyID:     rt.GetString("storage.access_key_id", ""),
		SecretAccessKey: rt.GetString("storage.secret_access_key", ""),
		UsePathStyle:    rt.GetBool("storage.use_path_style", false),
		Prefix:          rt.GetString("storage.prefix", ""),
	}
}
