package tenant

import (
	"context"

	"github.com/google/uuid"
	"github.com/tenancy/backend/internal/domain/shared"
)

// Repository defines the interface for tenant persistence. Returned tenants
// have their parent chain attached.
type Repository interface {
	// FindByID finds a tenant by id, including soft-deleted ones
	FindByID(ctx context.Context, id uuid.UUID) (*Tenant, error)

	// FindActiveByIdentifier finds a resolvable tenant: active and not deleted
	FindActiveByIdentifier(ctx context.Context, identifier string) (*Tenant, error)

	// FindAll finds tenants that are not soft-deleted
	FindAll(ctx context.Context, filter shared.Filter) ([]*Tenant, error)

	// FindActive finds all resolvable tenants
	FindActive(ctx context.Context) ([]*Tenant, error)

	// FindChildren finds direct children of a tenant
	FindChildren(ctx context.Context, parentID uuid.UUID) ([]*Tenant, error)

	// ExistsActiveByIdentifier checks identifier uniqueness among active tenants,
	// ignoring the tenant with excludeID
	ExistsActiveByIdentifier(ctx context.Context, identifier string, excludeID uuid.UUID) (bool, error)

	// Save creates or updates a tenant
	Save(ctx context.Context, t *Tenant) error

	// Count counts tenants that are not soft-deleted
	Count(ctx context.Context, filter shared.Filter) (int64, error)
}
