package cache

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// TieredStore implements a two-tier caching strategy
// L1: ristretto in-process cache (fast, local to the instance)
// L2: optional shared store, usually Redis (slower, shared across instances)
// Reads go L1 then L2 and backfill L1; writes go to both tiers.
type TieredStore struct {
	l1     *RistrettoStore
	l2     Store
	l1TTL  time.Duration
	logger *zap.Logger

	l1Hits   atomic.Int64
	l1Misses atomic.Int64
	l2Hits   atomic.Int64
	l2Misses atomic.Int64
}

// TieredStoreOption is a functional option for configuring the store
type TieredStoreOption func(*TieredStore)

// WithL2 sets the shared second tier
func WithL2(l2 Store) TieredStoreOption {
	return func(s *TieredStore) {
		s.l2 = l2
	}
}

// WithL1TTL caps how long entries live in the local tier. Zero keeps the
// caller's ttl.
func WithL1TTL(ttl time.Duration) TieredStoreOption {
	return func(s *TieredStore) {
		s.l1TTL = ttl
	}
}

// WithTieredLogger sets the logger for the store
func WithTieredLogger(logger *zap.Logger) TieredStoreOption {
	return func(s *TieredStore) {
		s.logger = logger
	}
}

// NewTieredStore creates a tiered store on top of l1.
func NewTieredStore(l1 *RistrettoStore, opts ...TieredStoreOption) *TieredStore {
	s := &TieredStore{
		l1:     l1,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *TieredStore) localTTL(ttl time.Duration) time.Duration {
	if s.l1TTL > 0 && (ttl <= 0 || s.l1TTL < ttl) {
		return s.l1TTL
	}
	return ttl
}

// Get implements Store
func (s *TieredStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if v, ok, _ := s.l1.Get(ctx, key); ok {
		s.l1Hits.Add(1)
		return v, true, nil
	}
	s.l1Misses.Add(1)

	if s.l2 == nil {
		return nil, false, nil
	}

	v, ok, err := s.l2.Get(ctx, key)
	if err != nil {
		// L2 unavailable: behave as a miss so callers fall back to the source
		s.logger.Warn("L2 cache read failed", zap.String("key", key), zap.Error(err))
		s.l2Misses.Add(1)
		return nil, false, nil
	}
	if !ok {
		s.l2Misses.Add(1)
		return nil, false, nil
	}
	s.l2Hits.Add(1)

	_ = s.l1.Set(ctx, key, v, s.localTTL(0))
	return v, true, nil
}

// Set implements Store
func (s *TieredStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_ = s.l1.Set(ctx, key, value, s.localTTL(ttl))
	if s.l2 == nil {
		return nil
	}
	if err := s.l2.Set(ctx, key, value, ttl); err != nil {
		s.logger.Warn("L2 cache write failed", zap.String("key", key), zap.Error(err))
		return err
	}
	return nil
}

// Delete implements Store
func (s *TieredStore) Delete(ctx context.Context, keys ...string) error {
	err := s.l1.Delete(ctx, keys...)
	if s.l2 != nil {
		err = multierr.Append(err, s.l2.Delete(ctx, keys...))
	}
	return err
}

// Stats holds hit and miss counters per tier
type Stats struct {
	L1Hits   int64 `json:"l1_hits"`
	L1Misses int64 `json:"l1_misses"`
	L2Hits   int64 `json:"l2_hits"`
	L2Misses int64 `json:"l2_misses"`
}

// Stats returns a snapshot of the counters
func (s *TieredStore) Stats() Stats {
	return Stats{
		L1Hits:   s.l1Hits.Load(),
		L1Misses: s.l1Misses.Load(),
		L2Hits:   s.l2Hits.Load(),
		L2Misses: s.l2Misses.Load(),
	}
}
