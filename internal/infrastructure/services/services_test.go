package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tenancy/backend/internal/infrastructure/cache"
	"github.com/tenancy/backend/internal/infrastructure/config"
	"github.com/tenancy/backend/internal/infrastructure/storage"
)

func newTestPools(t *testing.T) *Pools {
	t.Helper()
	p, err := NewPools(nil, 1<<20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestBind_UnitsAreIndependent(t *testing.T) {
	p := newTestPools(t)
	base := config.NewRuntime(map[string]any{
		"cache":   map[string]any{"driver": "memory", "prefix": "app", "ttl": "1m"},
		"storage": map[string]any{"bucket": "", "prefix": ""},
	})

	rtA := base.Fork()
	rtA.Set("cache.prefix", "tenant_a")
	rtA.Set("storage.prefix", "tenants/a")
	unitA := p.Bind(rtA)

	rtB := base.Fork()
	rtB.Set("cache.prefix", "tenant_b")
	rtB.Set("storage.prefix", "tenants/b")
	unitB := p.Bind(rtB)

	ctx := context.Background()
	storeA, err := unitA.Cache.Store()
	require.NoError(t, err)
	storeB, err := unitB.Cache.Store()
	require.NoError(t, err)

	require.NoError(t, storeA.Set(ctx, "greeting", []byte("hello"), 0))
	_, found, err := storeB.Get(ctx, "greeting")
	require.NoError(t, err)
	assert.False(t, found)

	objA, err := unitA.Storage.Storage()
	require.NoError(t, err)
	objB, err := unitB.Storage.Storage()
	require.NoError(t, err)
	assert.Equal(t, "tenants/a", objA.Prefix())
	assert.Equal(t, "tenants/b", objB.Prefix())
	assert.Equal(t, 1, p.Storage.Len())

	assert.Same(t, p.Logger, unitA.Log.Logger())
}

func TestBind_ResetRestoresBaseline(t *testing.T) {
	p := newTestPools(t)
	rt := config.NewRuntime(map[string]any{
		"cache": map[string]any{"driver": "memory", "prefix": "app"},
	})
	unit := p.Bind(rt)

	rt.Set("cache.prefix", "tenant_a")
	rt.Invalidate("cache")
	store, err := unit.Cache.Store()
	require.NoError(t, err)
	assert.Equal(t, "tenant_a", store.Prefix())

	rt.Reset()
	store, err = unit.Cache.Store()
	require.NoError(t, err)
	assert.Equal(t, "app", store.Prefix())
}

func TestNewPools_Options(t *testing.T) {
	opened := 0
	p, err := NewPools(nil, 1<<20, WithStorageOpener(func(*config.StorageConfig) (storage.ObjectStorage, error) {
		opened++
		return storage.NewMemoryObjectStorage(), nil
	}))
	require.NoError(t, err)
	defer p.Close()

	unit := p.Bind(config.NewRuntime(map[string]any{"storage": map[string]any{"bucket": "files"}}))
	_, err = unit.Storage.Storage()
	require.NoError(t, err)
	assert.Equal(t, 1, opened)
	assert.IsType(t, &cache.StoreManager{}, unit.Cache)
}
