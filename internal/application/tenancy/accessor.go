package tenancy

import (
	"context"

	"github.com/google/uuid"
	"github.com/tenancy/backend/internal/domain/tenant"
)

// Prefix returns the stable per-tenant prefix "tenant_<public_id>"
func Prefix(t *tenant.Tenant) string {
	return "tenant_" + t.PublicID
}

// Accessor gives tenant-aware consumers one way to read the current tenant
// and derive tenant-scoped names from it.
type Accessor struct{}

// NewAccessor creates an accessor
func NewAccessor() *Accessor {
	return &Accessor{}
}

// Current returns the tenant of the unit carried by ctx, or nil
func (a *Accessor) Current(ctx context.Context) *tenant.Tenant {
	return FromContext(ctx).Current()
}

// CurrentID returns the current tenant id and whether a tenant is set
func (a *Accessor) CurrentID(ctx context.Context) (uuid.UUID, bool) {
	t := a.Current(ctx)
	if t == nil {
		return uuid.Nil, false
	}
	return t.ID, true
}

// PrefixOf returns the scoped prefix of t. The configuration pipes use it
// for cache keys, queue names and log files.
func (a *Accessor) PrefixOf(t *tenant.Tenant) string {
	return Prefix(t)
}

// ScopedName returns "tenant_<public_id>_<name>", or name when no tenant is set
func (a *Accessor) ScopedName(ctx context.Context, name string) string {
	t := a.Current(ctx)
	if t == nil {
		return name
	}
	return a.PrefixOf(t) + "_" + name
}

// ScopedTags returns the tags identifying the current tenant, or nil
func (a *Accessor) ScopedTags(ctx context.Context) []string {
	t := a.Current(ctx)
	if t == nil {
		return nil
	}
	return []string{a.PrefixOf(t), "tenant:" + t.Identifier}
}
