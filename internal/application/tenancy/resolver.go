package tenancy

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tenancy/backend/internal/domain/tenant"
)

// Built-in resolver names
const (
	ResolverDomain    = "domain"
	ResolverSubdomain = "subdomain"
	ResolverPath      = "path"
	ResolverHeader    = "header"
)

// DefaultHeaderName is the header read by the header resolver when none is configured
const DefaultHeaderName = "X-Tenant"

// Resolver extracts a tenant identifier from a request and loads the tenant
// it names.
type Resolver interface {
	// Name identifies the strategy in events and metrics
	Name() string
	// Identifier returns the identifier carried by r, or ""
	Identifier(r *http.Request) string
	// Resolve loads the active tenant named by r, or nil
	Resolve(ctx context.Context, r *http.Request) (*tenant.Tenant, error)
	// CacheKey returns the resolution cache key for r, or "" when r names no tenant
	CacheKey(r *http.Request) string
	// CacheTTL is how long resolutions are cached; <= 0 disables caching
	CacheTTL() time.Duration
}

// ResolverOptions configures resolvers built by a registry
type ResolverOptions struct {
	Lookup      *TenantLookup
	CacheTTL    time.Duration
	HeaderName  string
	PathSegment int
}

// ResolverFactory builds a resolver
type ResolverFactory func(opts ResolverOptions) Resolver

type identifierResolver struct {
	name    string
	extract func(r *http.Request) string
	lookup  *TenantLookup
	ttl     time.Duration
}

func (r *identifierResolver) Name() string { return r.name }

func (r *identifierResolver) Identifier(req *http.Request) string {
	return tenant.NormalizeIdentifier(r.extract(req))
}

func (r *identifierResolver) Resolve(ctx context.Context, req *http.Request) (*tenant.Tenant, error) {
	id := r.Identifier(req)
	if id == "" || r.lookup == nil {
		return nil, nil
	}
	t, _, err := r.lookup.Find(ctx, id, r.ttl)
	return t, err
}

func (r *identifierResolver) CacheKey(req *http.Request) string {
	id := r.Identifier(req)
	if id == "" {
		return ""
	}
	return CacheKey(id)
}

func (r *identifierResolver) CacheTTL() time.Duration { return r.ttl }

// NewDomainResolver matches the full request host, port stripped
func NewDomainResolver(opts ResolverOptions) Resolver {
	return &identifierResolver{name: ResolverDomain, extract: requestHost, lookup: opts.Lookup, ttl: opts.CacheTTL}
}

// NewSubdomainResolver matches the first label of hosts with at least three
// labels: "acme.example.com" yields "acme", "example.com" yields nothing.
func NewSubdomainResolver(opts ResolverOptions) Resolver {
	return &identifierResolver{
		name: ResolverSubdomain,
		extract: func(r *http.Request) string {
			host := requestHost(r)
			if net.ParseIP(host) != nil {
				return ""
			}
			labels := strings.Split(host, ".")
			if len(labels) < 3 {
				return ""
			}
			return labels[0]
		},
		lookup: opts.Lookup,
		ttl:    opts.CacheTTL,
	}
}

// NewPathResolver matches the URL path segment at opts.PathSegment, counted
// from zero: segment 0 of "/acme/orders" is "acme".
func NewPathResolver(opts ResolverOptions) Resolver {
	index := opts.PathSegment
	return &identifierResolver{
		name: ResolverPath,
		extract: func(r *http.Request) string {
			segments := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
			if index < 0 || index >= len(segments) {
				return ""
			}
			return segments[index]
		},
		lookup: opts.Lookup,
		ttl:    opts.CacheTTL,
	}
}

// NewHeaderResolver matches the value of opts.HeaderName
func NewHeaderResolver(opts ResolverOptions) Resolver {
	name := opts.HeaderName
	if name == "" {
		name = DefaultHeaderName
	}
	return &identifierResolver{
		name:    ResolverHeader,
		extract: func(r *http.Request) string { return r.Header.Get(name) },
		lookup:  opts.Lookup,
		ttl:     opts.CacheTTL,
	}
}

func requestHost(r *http.Request) string {
	host := r.Host
	if host == "" {
		host = r.URL.Host
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.ToLower(strings.Trim(host, "[]"))
}

// ResolverRegistry maps resolver names to constructors
type ResolverRegistry struct {
	mu        sync.RWMutex
	factories map[string]ResolverFactory
}

// NewResolverRegistry creates an empty registry
func NewResolverRegistry() *ResolverRegistry {
	return &ResolverRegistry{factories: make(map[string]ResolverFactory)}
}

// DefaultResolverRegistry returns a registry with the built-in resolvers
func DefaultResolverRegistry() *ResolverRegistry {
	r := NewResolverRegistry()
	r.Register(ResolverDomain, NewDomainResolver)
	r.Register(ResolverSubdomain, NewSubdomainResolver)
	r.Register(ResolverPath, NewPathResolver)
	r.Register(ResolverHeader, NewHeaderResolver)
	return r
}

// Register adds or replaces a factory
func (r *ResolverRegistry) Register(name string, factory ResolverFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Names returns the registered names, sorted
func (r *ResolverRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build constructs the named resolvers in order. Unknown names fail.
func (r *ResolverRegistry) Build(names []string, opts ResolverOptions) ([]Resolver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	resolvers := make([]Resolver, 0, len(names))
	for _, name := range names {
		factory, ok := r.factories[name]
		if !ok {
			return nil, fmt.Errorf("unknown tenant resolver %q", name)
		}
		resolvers = append(resolvers, factory(opts))
	}
	return resolvers, nil
}
