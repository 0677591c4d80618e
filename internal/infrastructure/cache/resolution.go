package cache

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Loader produces the value for a cache miss. A nil value with a nil error
// means "not found" and is not cached.
type Loader func(ctx context.Context) ([]byte, error)

// ResolutionCache is the process-wide remember-style cache used for tenant
// lookups. Concurrent misses on one key share a single load.
type ResolutionCache struct {
	store  Store
	group  singleflight.Group
	logger *zap.Logger
}

// NewResolutionCache creates a cache over store.
func NewResolutionCache(store Store, logger *zap.Logger) *ResolutionCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResolutionCache{store: store, logger: logger}
}

// Remember returns the cached value for key or calls load and caches a
// non-nil result for ttl. A ttl of zero or less bypasses the cache entirely.
// The bool reports a cache hit.
func (c *ResolutionCache) Remember(ctx context.Context, key string, ttl time.Duration, load Loader) ([]byte, bool, error) {
	if ttl <= 0 {
		v, err := load(ctx)
		return v, false, err
	}

	if v, ok, err := c.store.Get(ctx, key); err == nil && ok {
		return v, true, nil
	} else if err != nil {
		c.logger.Warn("resolution cache read failed", zap.String("key", key), zap.Error(err))
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		data, err := load(ctx)
		if err != nil || data == nil {
			return data, err
		}
		if err := c.store.Set(ctx, key, data, ttl); err != nil {
			c.logger.Warn("resolution cache write failed", zap.String("key", key), zap.Error(err))
		}
		return data, nil
	})
	if err != nil {
		return nil, false, err
	}
	data, _ := v.([]byte)
	return data, false, nil
}

// Forget evicts keys.
func (c *ResolutionCache) Forget(ctx context.Context, keys ...string) error {
	return c.store.Delete(ctx, keys...)
}
