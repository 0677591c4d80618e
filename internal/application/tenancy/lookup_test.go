package tenancy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tenancy/backend/internal/domain/tenant"
)

func TestSnapshot_RoundTripKeepsParentChain(t *testing.T) {
	root := newTestTenant(t, "root", tenant.WithConfig(tenant.Tree{
		"app": map[string]any{"locale": "de"},
	}))
	child := newTestTenant(t, "child", tenant.WithParent(root), tenant.WithInternal(true), tenant.WithConfig(tenant.Tree{
		"app":         map[string]any{"name": "Child"},
		"_visibility": map[string]any{"app": map[string]any{"name": "PUBLIC"}},
	}))

	data, err := EncodeSnapshot(child)
	require.NoError(t, err)
	got, err := DecodeSnapshot(data)
	require.NoError(t, err)

	assert.Equal(t, child.ID, got.ID)
	assert.Equal(t, child.PublicID, got.PublicID)
	assert.True(t, got.IsInternal)
	require.NotNil(t, got.Parent())
	assert.Equal(t, root.ID, got.Parent().ID)
	assert.Equal(t, "de", got.GetConfig("app.locale", nil))
	assert.Equal(t, tenant.Tree{"app": map[string]any{"name": "Child"}}, got.GetPublicConfig())
}

func TestDecodeSnapshot_Invalid(t *testing.T) {
	_, err := DecodeSnapshot([]byte("[]"))
	assert.Error(t, err)
	_, err = DecodeSnapshot([]byte("{"))
	assert.Error(t, err)
}

func TestTenantLookup_ForgetReloads(t *testing.T) {
	repo := new(MockTenantRepository)
	acme := newTestTenant(t, "acme")
	repo.On("FindActiveByIdentifier", mock.Anything, "acme").Return(acme, nil).Twice()
	lookup := NewTenantLookup(repo, newTestResolutionCache(t))
	ctx := context.Background()

	_, hit, err := lookup.Find(ctx, "ACME", time.Minute)
	require.NoError(t, err)
	assert.False(t, hit)
	_, hit, err = lookup.Find(ctx, "acme", time.Minute)
	require.NoError(t, err)
	assert.True(t, hit)

	require.NoError(t, lookup.Forget(ctx, "acme"))
	_, hit, err = lookup.Find(ctx, "acme", time.Minute)
	require.NoError(t, err)
	assert.False(t, hit)
	repo.AssertExpectations(t)
}

func TestTenantLookup_ZeroTTLAlwaysLoads(t *testing.T) {
	repo := new(MockTenantRepository)
	acme := newTestTenant(t, "acme")
	repo.On("FindActiveByIdentifier", mock.Anything, "acme").Return(acme, nil).Times(3)
	lookup := NewTenantLookup(repo, newTestResolutionCache(t))

	for i := 0; i < 3; i++ {
		got, hit, err := lookup.Find(context.Background(), "acme", 0)
		require.NoError(t, err)
		assert.False(t, hit)
		assert.Equal(t, acme.ID, got.ID)
	}
	repo.AssertExpectations(t)
}

func TestTenantLookup_CachedCopiesAreIndependent(t *testing.T) {
	repo := new(MockTenantRepository)
	acme := newTestTenant(t, "acme", tenant.WithConfig(tenant.Tree{"app": map[string]any{"name": "Acme"}}))
	repo.On("FindActiveByIdentifier", mock.Anything, "acme").Return(acme, nil).Once()
	lookup := NewTenantLookup(repo, newTestResolutionCache(t))
	ctx := context.Background()

	first, _, err := lookup.Find(ctx, "acme", time.Minute)
	require.NoError(t, err)
	require.NoError(t, first.SetConfig("app.name", "Changed"))

	second, hit, err := lookup.Find(ctx, "acme", time.Minute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "Acme", second.GetConfig("app.name", nil))
}
