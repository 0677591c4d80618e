package tenancy

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/tenancy/backend/internal/domain/shared"
	"github.com/tenancy/backend/internal/domain/tenant"
	"github.com/tenancy/backend/internal/infrastructure/logger"
	"github.com/tenancy/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// SkipFunc reports whether a request should not resolve a tenant at all
type SkipFunc func(r *http.Request) bool

// SkipPaths skips requests whose path equals one of paths or lies below it
func SkipPaths(paths ...string) SkipFunc {
	return func(r *http.Request) bool {
		path := r.URL.Path
		for _, p := range paths {
			if path == p || strings.HasPrefix(path, strings.TrimSuffix(p, "/")+"/") {
				return true
			}
		}
		return false
	}
}

// Resolution is the outcome of resolving one request
type Resolution struct {
	Tenant     *tenant.Tenant
	Resolver   string
	Identifier string
	CacheKey   string
	CacheHit   bool
	Skipped    bool
}

// Found reports whether a tenant was resolved
func (r *Resolution) Found() bool {
	return r.Tenant != nil
}

// ResolutionServiceConfig holds the ResolutionService dependencies
type ResolutionServiceConfig struct {
	Resolvers []Resolver
	Lookup    *TenantLookup
	Skip      SkipFunc
	Publisher shared.EventPublisher
	Metrics   *telemetry.TenancyMetrics
	Logger    *zap.Logger
}

// ResolutionService maps requests to tenants by walking the configured
// resolvers in order. The first resolver producing an identifier decides;
// later resolvers are not consulted even if that identifier is unknown.
type ResolutionService struct {
	resolvers []Resolver
	lookup    *TenantLookup
	skip      SkipFunc
	publisher shared.EventPublisher
	metrics   *telemetry.TenancyMetrics
	logger    *zap.Logger
}

// NewResolutionService creates a resolution service
func NewResolutionService(cfg ResolutionServiceConfig) *ResolutionService {
	s := &ResolutionService{
		resolvers: cfg.Resolvers,
		lookup:    cfg.Lookup,
		skip:      cfg.Skip,
		publisher: cfg.Publisher,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
	}
	if s.publisher == nil {
		s.publisher = shared.NopPublisher{}
	}
	if s.metrics == nil {
		s.metrics = telemetry.NopTenancyMetrics()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Resolvers returns the configured resolvers in order
func (s *ResolutionService) Resolvers() []Resolver {
	return append([]Resolver(nil), s.resolvers...)
}

// Resolve determines the tenant owning r. Finding no tenant is not an error;
// the returned Resolution then has a nil Tenant and the caller applies its
// not-found policy.
func (s *ResolutionService) Resolve(ctx context.Context, r *http.Request) (*Resolution, error) {
	if s.skip != nil && s.skip(r) {
		s.metrics.RecordResolution(ctx, "", telemetry.OutcomeSkipped, false)
		return &Resolution{Skipped: true}, nil
	}

	ctx, span := telemetry.StartSpan(ctx, "tenancy.resolve")
	defer span.End()

	res := &Resolution{}
	ttl := s.defaultTTL()
	for _, resolver := range s.resolvers {
		if id := resolver.Identifier(r); id != "" {
			res.Resolver = resolver.Name()
			res.Identifier = id
			res.CacheKey = resolver.CacheKey(r)
			ttl = resolver.CacheTTL()
			break
		}
	}

	if res.Identifier == "" {
		s.metrics.RecordResolution(ctx, "", telemetry.OutcomeNone, false)
		s.publish(ctx, tenant.NewNotFoundEvent(r.Host, r.URL.Path, "", "", ""))
		return res, nil
	}

	t, hit, err := s.lookup.Find(ctx, res.Identifier, ttl)
	if err != nil {
		telemetry.RecordError(span, err)
		s.metrics.RecordResolution(ctx, res.Resolver, telemetry.OutcomeError, false)
		return nil, err
	}
	res.CacheHit = hit
	span.SetAttributes(
		attribute.String("tenancy.resolver", res.Resolver),
		attribute.Bool("tenancy.cache_hit", hit),
	)

	if t == nil {
		s.metrics.RecordResolution(ctx, res.Resolver, telemetry.OutcomeNotFound, false)
		s.publish(ctx, tenant.NewNotFoundEvent(r.Host, r.URL.Path, res.Resolver, res.Identifier, res.CacheKey))
		return res, nil
	}

	res.Tenant = t
	span.SetAttributes(attribute.String("tenancy.tenant", t.PublicID))
	s.metrics.RecordResolution(ctx, res.Resolver, telemetry.OutcomeResolved, hit)
	s.publish(ctx, tenant.NewResolvedEvent(t, res.Resolver, res.CacheKey))
	return res, nil
}

// ResolveIdentifier looks up an active tenant by identifier, using the TTL
// of the first configured resolver. Used for override targets.
func (s *ResolutionService) ResolveIdentifier(ctx context.Context, identifier string) (*tenant.Tenant, error) {
	t, _, err := s.lookup.Find(ctx, identifier, s.defaultTTL())
	return t, err
}

// Forget evicts cached resolutions for identifiers
func (s *ResolutionService) Forget(ctx context.Context, identifiers ...string) error {
	return s.lookup.Forget(ctx, identifiers...)
}

func (s *ResolutionService) defaultTTL() time.Duration {
	if len(s.resolvers) == 0 {
		return 0
	}
	return s.resolvers[0].CacheTTL()
}

func (s *ResolutionService) publish(ctx context.Context, event shared.DomainEvent) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		logger.WithLogger(ctx, s.logger).Warn("Failed to publish resolution event",
			zap.String("event_type", event.EventType()),
			zap.Error(err),
		)
	}
}
