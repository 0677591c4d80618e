// Package cache provides the key/value stores behind tenant resolution and
// the per-tenant application cache.
package cache

import (
	"context"
	"time"
)

// Store is a byte-oriented key/value cache.
type Store interface {
	// Get returns the value for key and whether it was present
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value under key. A zero ttl means no expiry
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes keys. Missing keys are ignored
	Delete(ctx context.Context, keys ...string) error
}

// PrefixedStore namespaces every key of an underlying store.
type PrefixedStore struct {
	inner  Store
	prefix string
}

// NewPrefixedStore wraps inner so every key becomes "<prefix>:<key>".
func NewPrefixedStore(inner Store, prefix string) *PrefixedStore {
	return &PrefixedStore{inner: inner, prefix: prefix}
}

// Prefix returns the namespace applied to keys.
func (s *PrefixedStore) Prefix() string {
	return s.prefix
}

func (s *PrefixedStore) key(k string) string {
	if s.prefix == "" {
		return k
	}
	return s.prefix + ":" + k
}

// Get implements Store
func (s *PrefixedStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return s.inner.Get(ctx, s.key(key))
}

// Set implements Store
func (s *PrefixedStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.inner.Set(ctx, s.key(key), value, ttl)
}

// Delete implements Store
func (s *PrefixedStore) Delete(ctx context.Context, keys ...string) error {
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = s.key(k)
	}
	return s.inner.Delete(ctx, prefixed...)
}
