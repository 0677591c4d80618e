// Package pool shares expensive resources between units of work. Resources
// are keyed by a fingerprint of the configuration they were built from, so a
// unit only ever receives an instance matching its own configuration.
package pool

import (
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/sync/singleflight"
)

// Pool holds one resource per fingerprint.
type Pool[T any] struct {
	mu      sync.RWMutex
	items   map[string]T
	group   singleflight.Group
	closeFn func(T) error
}

// New creates a pool. closeFn releases a resource on Close and may be nil.
func New[T any](closeFn func(T) error) *Pool[T] {
	return &Pool[T]{
		items:   make(map[string]T),
		closeFn: closeFn,
	}
}

// Get returns the resource for key, building it once with build. Concurrent
// callers for the same key share one build.
func (p *Pool[T]) Get(key string, build func() (T, error)) (T, error) {
	p.mu.RLock()
	item, ok := p.items[key]
	p.mu.RUnlock()
	if ok {
		return item, nil
	}

	v, err, _ := p.group.Do(key, func() (any, error) {
		p.mu.RLock()
		existing, ok := p.items[key]
		p.mu.RUnlock()
		if ok {
			return existing, nil
		}
		built, err := build()
		if err != nil {
			return nil, err
		}
		p.mu.Lock()
		p.items[key] = built
		p.mu.Unlock()
		return built, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// Len returns the number of pooled resources.
func (p *Pool[T]) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.items)
}

// Close releases every resource and empties the pool.
func (p *Pool[T]) Close() error {
	p.mu.Lock()
	items := p.items
	p.items = make(map[string]T)
	p.mu.Unlock()

	if p.closeFn == nil {
		return nil
	}
	var err error
	for _, item := range items {
		err = multierr.Append(err, p.closeFn(item))
	}
	return err
}
