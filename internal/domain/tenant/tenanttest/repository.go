// Package tenanttest provides an in-memory tenant.Repository for tests of
// packages that sit above the persistence layer.
package tenanttest

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/tenancy/backend/internal/domain/shared"
	"github.com/tenancy/backend/internal/domain/tenant"
)

// Repository is a map-backed tenant.Repository. Tenants are stored by
// pointer, so their attached parents are returned as given.
type Repository struct {
	mu      sync.RWMutex
	tenants map[uuid.UUID]*tenant.Tenant
	// Err, when set, is returned by every method
	Err error
}

var _ tenant.Repository = (*Repository)(nil)

// NewRepository creates a repository holding tenants
func NewRepository(tenants ...*tenant.Tenant) *Repository {
	r := &Repository{tenants: make(map[uuid.UUID]*tenant.Tenant)}
	for _, t := range tenants {
		r.tenants[t.ID] = t
	}
	return r
}

// Add stores t
func (r *Repository) Add(t *tenant.Tenant) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tenants[t.ID] = t
}

func (r *Repository) FindByID(_ context.Context, id uuid.UUID) (*tenant.Tenant, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tenants[id]
	if !ok {
		return nil, tenant.ErrTenantNotFound
	}
	return t, nil
}

func (r *Repository) FindActiveByIdentifier(_ context.Context, identifier string) (*tenant.Tenant, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	identifier = tenant.NormalizeIdentifier(identifier)
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.tenants {
		if t.Identifier == identifier && t.Resolvable() {
			return t, nil
		}
	}
	return nil, tenant.ErrTenantNotFound
}

func (r *Repository) FindAll(_ context.Context, filter shared.Filter) ([]*tenant.Tenant, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	all := r.matching(filter.Search)
	if filter.PageSize <= 0 {
		return all, nil
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	start := (page - 1) * filter.PageSize
	if start >= len(all) {
		return []*tenant.Tenant{}, nil
	}
	end := start + filter.PageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], nil
}

func (r *Repository) FindActive(_ context.Context) ([]*tenant.Tenant, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	var out []*tenant.Tenant
	for _, t := range r.sorted() {
		if t.Resolvable() {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *Repository) FindChildren(_ context.Context, parentID uuid.UUID) ([]*tenant.Tenant, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	var out []*tenant.Tenant
	for _, t := range r.sorted() {
		if t.ParentID != nil && *t.ParentID == parentID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *Repository) ExistsActiveByIdentifier(_ context.Context, identifier string, excludeID uuid.UUID) (bool, error) {
	if r.Err != nil {
		return false, r.Err
	}
	identifier = tenant.NormalizeIdentifier(identifier)
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.tenants {
		if t.ID != excludeID && t.Identifier == identifier && !t.IsDeleted() {
			return true, nil
		}
	}
	return false, nil
}

func (r *Repository) Save(_ context.Context, t *tenant.Tenant) error {
	if r.Err != nil {
		return r.Err
	}
	r.Add(t)
	return nil
}

func (r *Repository) Count(_ context.Context, filter shared.Filter) (int64, error) {
	if r.Err != nil {
		return 0, r.Err
	}
	return int64(len(r.matching(filter.Search))), nil
}

func (r *Repository) matching(search string) []*tenant.Tenant {
	search = strings.ToLower(strings.TrimSpace(search))
	var out []*tenant.Tenant
	for _, t := range r.sorted() {
		if t.IsDeleted() {
			continue
		}
		if search != "" && !strings.Contains(t.Identifier, search) && !strings.Contains(strings.ToLower(t.Name), search) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func (r *Repository) sorted() []*tenant.Tenant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*tenant.Tenant, 0, len(r.tenants))
	for _, t := range r.tenants {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identifier < out[j].Identifier })
	return out
}
