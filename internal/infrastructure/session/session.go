// Package session stores server-side session data. Sessions are namespaced
// by the cookie name, which the configuration pipeline derives per tenant.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrSessionNotFound is returned when a session id is unknown or expired
var ErrSessionNotFound = errors.New("session not found")

// Data is the payload of a session
type Data map[string]any

// Store persists sessions by namespace and id
type Store interface {
	Load(ctx context.Context, namespace, id string) (Data, error)
	Save(ctx context.Context, namespace, id string, data Data, lifetime time.Duration) error
	Destroy(ctx context.Context, namespace, id string) error
}

// NewID returns a fresh session id
func NewID() string {
	return uuid.NewString()
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryStore keeps sessions in process memory
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryStore creates an empty memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry), now: time.Now}
}

func memoryKey(namespace, id string) string {
	return namespace + ":" + id
}

// Load implements Store
func (s *MemoryStore) Load(_ context.Context, namespace, id string) (Data, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := memoryKey(namespace, id)
	entry, ok := s.entries[key]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if !entry.expiresAt.IsZero() && s.now().After(entry.expiresAt) {
		delete(s.entries, key)
		return nil, ErrSessionNotFound
	}
	var data Data
	if err := json.Unmarshal(entry.data, &data); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return data, nil
}

// Save implements Store
func (s *MemoryStore) Save(_ context.Context, namespace, id string, data Data, lifetime time.Duration) error {
	encoded, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	entry := memoryEntry{data: encoded}
	if lifetime > 0 {
		entry.expiresAt = s.now().Add(lifetime)
	}
	s.mu.Lock()
	s.entries[memoryKey(namespace, id)] = entry
	s.mu.Unlock()
	return nil
}

// Destroy implements Store
func (s *MemoryStore) Destroy(_ context.Context, namespace, id string) error {
	s.mu.Lock()
	delete(s.entries, memoryKey(namespace, id))
	s.mu.Unlock()
	return nil
}

// RedisStore keeps sessions in Redis under "session:<namespace>:<id>"
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed store
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func redisKey(namespace, id string) string {
	return "session:" + namespace + ":" + id
}

// Load implements Store
func (s *RedisStore) Load(ctx context.Context, namespace, id string) (Data, error) {
	raw, err := s.client.Get(ctx, redisKey(namespace, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	var data Data
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return data, nil
}

// Save implements Store
func (s *RedisStore) Save(ctx context.Context, namespace, id string, data Data, lifetime time.Duration) error {
	encoded, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := s.client.Set(ctx, redisKey(namespace, id), encoded, lifetime).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Destroy implements Store
func (s *RedisStore) Destroy(ctx context.Context, namespace, id string) error {
	if err := s.client.Del(ctx, redisKey(namespace, id)).Err(); err != nil {
		return fmt.Errorf("failed to destroy session: %w", err)
	}
	return nil
}
