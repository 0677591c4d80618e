package tenancy

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tenancy/backend/internal/domain/tenant"
)

func TestResolvers_Identifier(t *testing.T) {
	opts := ResolverOptions{HeaderName: "X-Org", PathSegment: 1}

	tests := []struct {
		name     string
		resolver Resolver
		target   string
		host     string
		header   string
		want     string
	}{
		{"domain strips port", NewDomainResolver(opts), "/anything", "Acme.Example.com:8080", "", "acme.example.com"},
		{"domain ipv6", NewDomainResolver(opts), "/", "[::1]:8080", "", "::1"},
		{"subdomain first label", NewSubdomainResolver(opts), "/", "acme.example.com", "", "acme"},
		{"subdomain needs three labels", NewSubdomainResolver(opts), "/", "example.com", "", ""},
		{"subdomain ignores ip", NewSubdomainResolver(opts), "/", "10.0.0.1", "", ""},
		{"path segment", NewPathResolver(opts), "/t/acme/orders", "example.com", "", "acme"},
		{"path segment out of range", NewPathResolver(opts), "/t", "example.com", "", ""},
		{"header", NewHeaderResolver(opts), "/", "example.com", " ACME ", "acme"},
		{"header missing", NewHeaderResolver(opts), "/", "example.com", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.target, nil)
			req.Host = tt.host
			if tt.header != "" {
				req.Header.Set("X-Org", tt.header)
			}
			assert.Equal(t, tt.want, tt.resolver.Identifier(req))
			if tt.want == "" {
				assert.Empty(t, tt.resolver.CacheKey(req))
			} else {
				assert.Equal(t, "tenant."+tt.want, tt.resolver.CacheKey(req))
			}
		})
	}
}

func TestHeaderResolver_DefaultHeader(t *testing.T) {
	r := NewHeaderResolver(ResolverOptions{})
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(DefaultHeaderName, "acme")
	assert.Equal(t, "acme", r.Identifier(req))
}

func TestResolver_Resolve(t *testing.T) {
	repo := new(MockTenantRepository)
	acme := newTestTenant(t, "acme.example.com")
	repo.On("FindActiveByIdentifier", mock.Anything, "acme.example.com").Return(acme, nil)
	repo.On("FindActiveByIdentifier", mock.Anything, "unknown.example.com").Return(nil, tenant.ErrTenantNotFound)

	r := NewDomainResolver(ResolverOptions{Lookup: NewTenantLookup(repo, nil), CacheTTL: time.Minute})
	assert.Equal(t, time.Minute, r.CacheTTL())
	assert.Equal(t, ResolverDomain, r.Name())

	req := httptest.NewRequest("GET", "http://acme.example.com/anything", nil)
	got, err := r.Resolve(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, acme.ID, got.ID)

	req = httptest.NewRequest("GET", "http://unknown.example.com/", nil)
	got, err = r.Resolve(context.Background(), req)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestResolverRegistry(t *testing.T) {
	reg := DefaultResolverRegistry()
	assert.Equal(t, []string{"domain", "header", "path", "subdomain"}, reg.Names())

	resolvers, err := reg.Build([]string{"header", "domain"}, ResolverOptions{})
	require.NoError(t, err)
	require.Len(t, resolvers, 2)
	assert.Equal(t, ResolverHeader, resolvers[0].Name())
	assert.Equal(t, ResolverDomain, resolvers[1].Name())

	_, err = reg.Build([]string{"domain", "cookie"}, ResolverOptions{})
	assert.ErrorContains(t, err, `unknown tenant resolver "cookie"`)
}
