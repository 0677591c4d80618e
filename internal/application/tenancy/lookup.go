package tenancy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tenancy/backend/internal/domain/shared"
	"github.com/tenancy/backend/internal/domain/tenant"
	"github.com/tenancy/backend/internal/infrastructure/cache"
)

// CacheKey returns the resolution cache key for identifier
func CacheKey(identifier string) string {
	return "tenant." + identifier
}

// TenantLookup finds resolvable tenants by identifier through the shared
// resolution cache. Misses are never cached.
type TenantLookup struct {
	repo  tenant.Repository
	cache *cache.ResolutionCache
}

// NewTenantLookup creates a lookup. A nil cache disables caching.
func NewTenantLookup(repo tenant.Repository, resolutionCache *cache.ResolutionCache) *TenantLookup {
	return &TenantLookup{repo: repo, cache: resolutionCache}
}

// Find returns the active tenant for identifier, or nil when there is none.
// The bool reports whether the result came from the cache.
func (l *TenantLookup) Find(ctx context.Context, identifier string, ttl time.Duration) (*tenant.Tenant, bool, error) {
	identifier = tenant.NormalizeIdentifier(identifier)
	if identifier == "" {
		return nil, false, nil
	}
	if l.cache == nil {
		t, err := l.load(ctx, identifier)
		return t, false, err
	}

	data, hit, err := l.cache.Remember(ctx, CacheKey(identifier), ttl, func(ctx context.Context) ([]byte, error) {
		t, err := l.load(ctx, identifier)
		if err != nil || t == nil {
			return nil, err
		}
		return EncodeSnapshot(t)
	})
	if err != nil {
		return nil, false, err
	}
	if data == nil {
		return nil, false, nil
	}
	t, err := DecodeSnapshot(data)
	if err != nil {
		return nil, false, err
	}
	return t, hit, nil
}

// Forget evicts the cached entries for identifiers
func (l *TenantLookup) Forget(ctx context.Context, identifiers ...string) error {
	if l.cache == nil || len(identifiers) == 0 {
		return nil
	}
	keys := make([]string, 0, len(identifiers))
	for _, id := range identifiers {
		keys = append(keys, CacheKey(tenant.NormalizeIdentifier(id)))
	}
	return l.cache.Forget(ctx, keys...)
}

func (l *TenantLookup) load(ctx context.Context, identifier string) (*tenant.Tenant, error) {
	t, err := l.repo.FindActiveByIdentifier(ctx, identifier)
	if errors.Is(err, tenant.ErrTenantNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load tenant %q: %w", identifier, err)
	}
	return t, nil
}

type tenantSnapshot struct {
	ID                uuid.UUID   `json:"id"`
	PublicID          string      `json:"public_id"`
	Identifier        string      `json:"identifier"`
	Name              string      `json:"name"`
	ParentID          *uuid.UUID  `json:"parent_id,omitempty"`
	Config            tenant.Tree `json:"config"`
	IsActive          bool        `json:"is_active"`
	IsInternal        bool        `json:"is_internal"`
	AllowPublicConfig bool        `json:"allow_public_config"`
	DeletedAt         *time.Time  `json:"deleted_at,omitempty"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
	Version           int         `json:"version"`
}

// EncodeSnapshot serializes t and its loaded ancestors, nearest first
func EncodeSnapshot(t *tenant.Tenant) ([]byte, error) {
	chain := append([]*tenant.Tenant{t}, t.Ancestors()...)
	snaps := make([]tenantSnapshot, 0, len(chain))
	for _, node := range chain {
		snaps = append(snaps, tenantSnapshot{
			ID:                node.ID,
			PublicID:          node.PublicID,
			Identifier:        node.Identifier,
			Name:              node.Name,
			ParentID:          node.ParentID,
			Config:            node.Config,
			IsActive:          node.IsActive,
			IsInternal:        node.IsInternal,
			AllowPublicConfig: node.AllowPublicConfig,
			DeletedAt:         node.DeletedAt,
			CreatedAt:         node.CreatedAt,
			UpdatedAt:         node.UpdatedAt,
			Version:           node.Version,
		})
	}
	return json.Marshal(snaps)
}

// DecodeSnapshot rebuilds a tenant and its ancestor chain
func DecodeSnapshot(data []byte) (*tenant.Tenant, error) {
	var snaps []tenantSnapshot
	if err := json.Unmarshal(data, &snaps); err != nil {
		return nil, fmt.Errorf("failed to decode tenant snapshot: %w", err)
	}
	if len(snaps) == 0 {
		return nil, errors.New("empty tenant snapshot")
	}

	var parent *tenant.Tenant
	for i := len(snaps) - 1; i >= 0; i-- {
		s := snaps[i]
		t := &tenant.Tenant{
			BaseAggregateRoot: shared.BaseAggregateRoot{
				BaseEntity: shared.BaseEntity{ID: s.ID, CreatedAt: s.CreatedAt, UpdatedAt: s.UpdatedAt},
				Version:    s.Version,
			},
			PublicID:          s.PublicID,
			Identifier:        s.Identifier,
			Name:              s.Name,
			ParentID:          s.ParentID,
			Config:            s.Config,
			IsActive:          s.IsActive,
			IsInternal:        s.IsInternal,
			AllowPublicConfig: s.AllowPublicConfig,
			DeletedAt:         s.DeletedAt,
		}
		if t.Config == nil {
			t.Config = tenant.Tree{}
		}
		if parent != nil {
			if err := t.AttachParent(parent); err != nil {
				return nil, fmt.Errorf("failed to rebuild tenant chain: %w", err)
			}
		}
		parent = t
	}
	return parent, nil
}
