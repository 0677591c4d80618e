package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// DefaultMaxCost bounds the in-process cache at 16MB of values.
const DefaultMaxCost int64 = 16 << 20

// RistrettoStore is an in-process Store backed by ristretto.
type RistrettoStore struct {
	cache *ristretto.Cache[string, []byte]
}

// NewRistrettoStore creates an in-process store. maxCost is the total
// size in bytes; values are charged their length.
func NewRistrettoStore(maxCost int64) (*RistrettoStore, error) {
	if maxCost <= 0 {
		maxCost = DefaultMaxCost
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: maxCost / 100 * 10,
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ristretto cache: %w", err)
	}
	return &RistrettoStore{cache: c}, nil
}

// Get implements Store
func (s *RistrettoStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := s.cache.Get(key)
	return v, ok, nil
}

// Set implements Store. The write is flushed before returning so a
// following Get observes it.
func (s *RistrettoStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.cache.SetWithTTL(key, value, int64(len(value))+1, ttl)
	s.cache.Wait()
	return nil
}

// Delete implements Store
func (s *RistrettoStore) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		s.cache.Del(k)
	}
	return nil
}

// Clear drops every entry.
func (s *RistrettoStore) Clear() {
	s.cache.Clear()
}

// Close stops the cache's background goroutines.
func (s *RistrettoStore) Close() {
	s.cache.Close()
}
