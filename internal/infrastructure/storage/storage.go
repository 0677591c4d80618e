// Package storage provides object storage for tenant files. Every tenant
// writes below its own key prefix.
package storage

import (
	"context"
	"errors"
	"path"
	"strings"
	"time"
)

// ErrKeyRequired is returned when an operation is given an empty key
var ErrKeyRequired = errors.New("storage key is required")

// ObjectStorage stores opaque objects by key
type ObjectStorage interface {
	Upload(ctx context.Context, storageKey string, data []byte, contentType string) error
	Download(ctx context.Context, storageKey string) ([]byte, error)
	DeleteObject(ctx context.Context, storageKey string) error
	ObjectExists(ctx context.Context, storageKey string) (bool, error)
	GenerateDownloadURL(ctx context.Context, storageKey string, expiresIn time.Duration) (string, time.Time, error)
}

// PrefixedStorage places every key below a fixed prefix
type PrefixedStorage struct {
	inner  ObjectStorage
	prefix string
}

// NewPrefixedStorage wraps inner with prefix. An empty prefix is a no-op.
func NewPrefixedStorage(inner ObjectStorage, prefix string) *PrefixedStorage {
	return &PrefixedStorage{inner: inner, prefix: strings.Trim(prefix, "/")}
}

// Prefix returns the key prefix
func (s *PrefixedStorage) Prefix() string {
	return s.prefix
}

// Key returns the full key for storageKey
func (s *PrefixedStorage) Key(storageKey string) (string, error) {
	storageKey = strings.TrimLeft(storageKey, "/")
	if storageKey == "" {
		return "", ErrKeyRequired
	}
	cleaned := path.Clean("/" + storageKey)[1:]
	if s.prefix == "" {
		return cleaned, nil
	}
	return s.prefix + "/" + cleaned, nil
}

// Upload implements ObjectStorage
func (s *PrefixedStorage) Upload(ctx context.Context, storageKey string, data []byte, contentType string) error {
	key, err := s.Key(storageKey)
	if err != nil {
		return err
	}
	return s.inner.Upload(ctx, key, data, contentType)
}

// Download implements ObjectStorage
func (s *PrefixedStorage) Download(ctx context.Context, storageKey string) ([]byte, error) {
	key, err := s.Key(storageKey)
	if err != nil {
		return nil, err
	}
	return s.inner.Download(ctx, key)
}

// DeleteObject implements ObjectStorage
func (s *PrefixedStorage) DeleteObject(ctx context.Context, storageKey string) error {
	key, err := s.Key(storageKey)
	if err != nil {
		return err
	}
	return s.inner.DeleteObject(ctx, key)
}

// ObjectExists implements ObjectStorage
func (s *PrefixedStorage) ObjectExists(ctx context.Context, storageKey string) (bool, error) {
	key, err := s.Key(storageKey)
	if err != nil {
		return false, err
	}
	return s.inner.ObjectExists(ctx, key)
}

// GenerateDownloadURL implements ObjectStorage
func (s *PrefixedStorage) GenerateDownloadURL(ctx context.Context, storageKey string, expiresIn time.Duration) (string, time.Time, error) {
	key, err := s.Key(storageKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return s.inner.GenerateDownloadURL(ctx, key, expiresIn)
}
