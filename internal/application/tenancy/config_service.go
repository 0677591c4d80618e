package tenancy

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tenancy/backend/internal/domain/shared"
	"github.com/tenancy/backend/internal/domain/tenant"
	"github.com/tenancy/backend/internal/infrastructure/cache"
	"go.uber.org/zap"
)

// AllConfigCacheKey caches the protected configuration of every active tenant
const AllConfigCacheKey = "tenants.protected_config"

// ConfigService exposes visibility-filtered tenant configuration
type ConfigService struct {
	repo     tenant.Repository
	resolver *ResolutionService
	cache    *cache.ResolutionCache
	ttl      time.Duration
	cacheAll bool
	logger   *zap.Logger
}

// ConfigServiceConfig holds the ConfigService dependencies
type ConfigServiceConfig struct {
	Repository tenant.Repository
	Resolution *ResolutionService
	Cache      *cache.ResolutionCache
	// TTL for the all-tenants dump, normally the resolution TTL
	TTL time.Duration
	// Env disables the all-tenants cache when "local" or "development"
	Env    string
	Logger *zap.Logger
}

// NewConfigService creates a config service
func NewConfigService(cfg ConfigServiceConfig) *ConfigService {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConfigService{
		repo:     cfg.Repository,
		resolver: cfg.Resolution,
		cache:    cfg.Cache,
		ttl:      cfg.TTL,
		cacheAll: cfg.Cache != nil && cfg.Env != "local" && cfg.Env != "development",
		logger:   logger,
	}
}

// PublicConfig returns the public configuration of t, if t allows it
func (s *ConfigService) PublicConfig(t *tenant.Tenant) (tenant.Tree, error) {
	if t == nil {
		return nil, tenant.ErrTenantNotFound
	}
	if !t.AllowPublicConfig {
		return nil, tenant.ErrPublicConfigDisabled
	}
	return t.GetPublicConfig(), nil
}

// ProtectedConfig returns the protected configuration of t
func (s *ConfigService) ProtectedConfig(t *tenant.Tenant) (tenant.Tree, error) {
	if t == nil {
		return nil, tenant.ErrTenantNotFound
	}
	return t.GetProtectedConfig(), nil
}

// Target returns the tenant whose configuration caller may read. Without an
// override that is caller itself. An override is only honoured for internal
// callers and must name an active tenant; it never falls back to caller.
func (s *ConfigService) Target(ctx context.Context, caller *tenant.Tenant, override string) (*tenant.Tenant, error) {
	if caller == nil {
		return nil, tenant.ErrTenantNotFound
	}
	override = tenant.NormalizeIdentifier(override)
	if override == "" {
		return caller, nil
	}
	if !caller.IsInternal {
		return nil, shared.ErrForbidden
	}
	target, err := s.resolver.ResolveIdentifier(ctx, override)
	if err != nil {
		return nil, err
	}
	if target == nil {
		s.logger.Warn("Override names no active tenant",
			zap.String("caller", caller.PublicID),
			zap.String("override", override))
		return nil, tenant.ErrTenantNotFound
	}
	return target, nil
}

// AllProtectedConfig returns the protected configuration of every active
// tenant keyed by identifier. caller must be internal.
func (s *ConfigService) AllProtectedConfig(ctx context.Context, caller *tenant.Tenant) (map[string]tenant.Tree, error) {
	if caller == nil || !caller.IsInternal {
		return nil, shared.ErrForbidden
	}

	load := func(ctx context.Context) ([]byte, error) {
		tenants, err := s.repo.FindActive(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list active tenants: %w", err)
		}
		out := make(map[string]tenant.Tree, len(tenants))
		for _, t := range tenants {
			out[t.Identifier] = t.GetProtectedConfig()
		}
		return json.Marshal(out)
	}

	var (
		data []byte
		err  error
	)
	if s.cacheAll {
		data, _, err = s.cache.Remember(ctx, AllConfigCacheKey, s.ttl, load)
	} else {
		data, err = load(ctx)
	}
	if err != nil {
		return nil, err
	}

	var out map[string]tenant.Tree
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode tenant configuration: %w", err)
	}
	return out, nil
}

// Forget drops the cached all-tenants dump
func (s *ConfigService) Forget(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Forget(ctx, AllConfigCacheKey)
}
