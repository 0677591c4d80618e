package tenancy

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tenancy/backend/internal/domain/tenant"
)

func newTestResolutionService(t *testing.T, repo *MockTenantRepository, names ...string) (*ResolutionService, *recordingPublisher) {
	t.Helper()
	lookup := NewTenantLookup(repo, newTestResolutionCache(t))
	resolvers, err := DefaultResolverRegistry().Build(names, ResolverOptions{Lookup: lookup, CacheTTL: time.Minute})
	require.NoError(t, err)
	pub := &recordingPublisher{}
	return NewResolutionService(ResolutionServiceConfig{
		Resolvers: resolvers,
		Lookup:    lookup,
		Skip:      SkipPaths("/health", "/metrics/"),
		Publisher: pub,
	}), pub
}

func TestResolutionService_HostScenario(t *testing.T) {
	repo := new(MockTenantRepository)
	acme := newTestTenant(t, "acme.example.com")
	repo.On("FindActiveByIdentifier", mock.Anything, "acme.example.com").Return(acme, nil).Once()
	repo.On("FindActiveByIdentifier", mock.Anything, "unknown.example.com").Return(nil, tenant.ErrTenantNotFound)
	svc, pub := newTestResolutionService(t, repo, "domain")
	ctx := context.Background()

	res, err := svc.Resolve(ctx, httptest.NewRequest("GET", "http://acme.example.com/anything", nil))
	require.NoError(t, err)
	require.True(t, res.Found())
	assert.Equal(t, acme.ID, res.Tenant.ID)
	assert.Equal(t, "domain", res.Resolver)
	assert.Equal(t, "tenant.acme.example.com", res.CacheKey)
	assert.False(t, res.CacheHit)

	res, err = svc.Resolve(ctx, httptest.NewRequest("GET", "http://acme.example.com/other", nil))
	require.NoError(t, err)
	require.True(t, res.Found())
	assert.True(t, res.CacheHit)

	res, err = svc.Resolve(ctx, httptest.NewRequest("GET", "http://unknown.example.com/", nil))
	require.NoError(t, err)
	assert.False(t, res.Found())
	assert.Equal(t, "unknown.example.com", res.Identifier)

	assert.Equal(t, []string{tenant.EventTypeResolved, tenant.EventTypeResolved, tenant.EventTypeNotFound}, pub.types())
	notFound := pub.events[2].(*tenant.NotFoundEvent)
	assert.Equal(t, "unknown.example.com", notFound.Host)
	assert.Equal(t, "domain", notFound.Resolver)
	repo.AssertExpectations(t)
}

func TestResolutionService_FallsThroughInOrder(t *testing.T) {
	repo := new(MockTenantRepository)
	acme := newTestTenant(t, "acme")
	repo.On("FindActiveByIdentifier", mock.Anything, "acme").Return(acme, nil)
	svc, _ := newTestResolutionService(t, repo, "header", "subdomain")

	req := httptest.NewRequest("GET", "http://acme.example.com/", nil)
	res, err := svc.Resolve(context.Background(), req)
	require.NoError(t, err)
	require.True(t, res.Found())
	assert.Equal(t, "subdomain", res.Resolver)

	req.Header.Set(DefaultHeaderName, "acme")
	req.Host = "example.com"
	res, err = svc.Resolve(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "header", res.Resolver)
}

func TestResolutionService_NoIdentifier(t *testing.T) {
	repo := new(MockTenantRepository)
	svc, pub := newTestResolutionService(t, repo, "header")

	res, err := svc.Resolve(context.Background(), httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.False(t, res.Found())
	assert.Empty(t, res.Identifier)
	assert.Equal(t, []string{tenant.EventTypeNotFound}, pub.types())
	repo.AssertNotCalled(t, "FindActiveByIdentifier", mock.Anything, mock.Anything)
}

func TestResolutionService_Skip(t *testing.T) {
	repo := new(MockTenantRepository)
	svc, pub := newTestResolutionService(t, repo, "domain")

	for _, path := range []string{"/health", "/metrics/cpu"} {
		res, err := svc.Resolve(context.Background(), httptest.NewRequest("GET", "http://acme.example.com"+path, nil))
		require.NoError(t, err)
		assert.True(t, res.Skipped)
		assert.False(t, res.Found())
	}
	assert.Empty(t, pub.types())
	repo.AssertNotCalled(t, "FindActiveByIdentifier", mock.Anything, mock.Anything)
}

func TestResolutionService_RepositoryError(t *testing.T) {
	repo := new(MockTenantRepository)
	repo.On("FindActiveByIdentifier", mock.Anything, "acme.example.com").Return(nil, errors.New("connection refused"))
	svc, pub := newTestResolutionService(t, repo, "domain")

	_, err := svc.Resolve(context.Background(), httptest.NewRequest("GET", "http://acme.example.com/", nil))
	assert.ErrorContains(t, err, "connection refused")
	assert.Empty(t, pub.types())
}

func TestResolutionService_InactiveNeverCached(t *testing.T) {
	repo := new(MockTenantRepository)
	acme := newTestTenant(t, "acme.example.com")
	repo.On("FindActiveByIdentifier", mock.Anything, "acme.example.com").Return(nil, tenant.ErrTenantNotFound).Once()
	repo.On("FindActiveByIdentifier", mock.Anything, "acme.example.com").Return(acme, nil).Once()
	svc, _ := newTestResolutionService(t, repo, "domain")

	res, err := svc.Resolve(context.Background(), httptest.NewRequest("GET", "http://acme.example.com/", nil))
	require.NoError(t, err)
	assert.False(t, res.Found())

	res, err = svc.Resolve(context.Background(), httptest.NewRequest("GET", "http://acme.example.com/", nil))
	require.NoError(t, err)
	assert.True(t, res.Found())
	repo.AssertExpectations(t)
}
