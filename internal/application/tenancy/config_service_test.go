package tenancy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tenancy/backend/internal/domain/shared"
	"github.com/tenancy/backend/internal/domain/tenant"
)

func visibleConfig() tenant.Tree {
	return tenant.Tree{
		"app": map[string]any{"name": "Acme", "key": "secret", "url": "https://acme.test"},
		"_visibility": map[string]any{
			"app": map[string]any{"name": "PUBLIC", "key": "PRIVATE", "url": "PROTECTED"},
		},
	}
}

func newTestConfigService(t *testing.T, repo *MockTenantRepository, env string) *ConfigService {
	t.Helper()
	rc := newTestResolutionCache(t)
	lookup := NewTenantLookup(repo, rc)
	resolvers, err := DefaultResolverRegistry().Build([]string{"domain"}, ResolverOptions{Lookup: lookup, CacheTTL: time.Minute})
	require.NoError(t, err)
	return NewConfigService(ConfigServiceConfig{
		Repository: repo,
		Resolution: NewResolutionService(ResolutionServiceConfig{Resolvers: resolvers, Lookup: lookup}),
		Cache:      rc,
		TTL:        time.Minute,
		Env:        env,
	})
}

func TestConfigService_PublicConfig(t *testing.T) {
	svc := newTestConfigService(t, new(MockTenantRepository), "production")

	closed := newTestTenant(t, "closed", tenant.WithConfig(visibleConfig()))
	_, err := svc.PublicConfig(closed)
	assert.ErrorIs(t, err, tenant.ErrPublicConfigDisabled)

	open := newTestTenant(t, "open", tenant.WithConfig(visibleConfig()), tenant.WithPublicConfig(true))
	cfg, err := svc.PublicConfig(open)
	require.NoError(t, err)
	assert.Equal(t, tenant.Tree{"app": map[string]any{"name": "Acme"}}, cfg)

	_, err = svc.PublicConfig(nil)
	assert.ErrorIs(t, err, tenant.ErrTenantNotFound)
}

func TestConfigService_ProtectedConfig(t *testing.T) {
	svc := newTestConfigService(t, new(MockTenantRepository), "production")
	acme := newTestTenant(t, "acme", tenant.WithConfig(visibleConfig()))

	cfg, err := svc.ProtectedConfig(acme)
	require.NoError(t, err)
	assert.Equal(t, tenant.Tree{"app": map[string]any{"name": "Acme", "url": "https://acme.test"}}, cfg)
	assert.NotContains(t, cfg, tenant.VisibilityKey)
}

func TestConfigService_Target(t *testing.T) {
	ctx := context.Background()
	internal := newTestTenant(t, "ops", tenant.WithInternal(true))
	regular := newTestTenant(t, "acme")
	other := newTestTenant(t, "globex")

	repo := new(MockTenantRepository)
	repo.On("FindActiveByIdentifier", mock.Anything, "globex").Return(other, nil)
	repo.On("FindActiveByIdentifier", mock.Anything, "missing").Return(nil, tenant.ErrTenantNotFound)
	svc := newTestConfigService(t, repo, "production")

	got, err := svc.Target(ctx, regular, "")
	require.NoError(t, err)
	assert.Same(t, regular, got)

	_, err = svc.Target(ctx, regular, "globex")
	assert.ErrorIs(t, err, shared.ErrForbidden)

	got, err = svc.Target(ctx, internal, "GLOBEX")
	require.NoError(t, err)
	assert.Equal(t, other.ID, got.ID)

	got, err = svc.Target(ctx, internal, "missing")
	assert.ErrorIs(t, err, tenant.ErrTenantNotFound)
	assert.Nil(t, got)
}

func TestConfigService_AllProtectedConfig(t *testing.T) {
	ctx := context.Background()
	internal := newTestTenant(t, "ops", tenant.WithInternal(true))
	acme := newTestTenant(t, "acme", tenant.WithConfig(visibleConfig()))

	t.Run("requires internal caller", func(t *testing.T) {
		svc := newTestConfigService(t, new(MockTenantRepository), "production")
		_, err := svc.AllProtectedConfig(ctx, acme)
		assert.ErrorIs(t, err, shared.ErrForbidden)
	})

	t.Run("cached outside development", func(t *testing.T) {
		repo := new(MockTenantRepository)
		repo.On("FindActive", mock.Anything).Return([]*tenant.Tenant{acme, internal}, nil).Once()
		svc := newTestConfigService(t, repo, "production")

		for i := 0; i < 2; i++ {
			all, err := svc.AllProtectedConfig(ctx, internal)
			require.NoError(t, err)
			assert.Equal(t, "https://acme.test", all["acme"]["app"].(map[string]any)["url"])
			assert.Empty(t, all["ops"])
		}
		repo.AssertExpectations(t)

		require.NoError(t, svc.Forget(ctx))
		repo.On("FindActive", mock.Anything).Return([]*tenant.Tenant{acme}, nil).Once()
		all, err := svc.AllProtectedConfig(ctx, internal)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("not cached in development", func(t *testing.T) {
		repo := new(MockTenantRepository)
		repo.On("FindActive", mock.Anything).Return([]*tenant.Tenant{acme}, nil).Twice()
		svc := newTestConfigService(t, repo, "development")

		for i := 0; i < 2; i++ {
			_, err := svc.AllProtectedConfig(ctx, internal)
			require.NoError(t, err)
		}
		repo.AssertExpectations(t)
	})
}
