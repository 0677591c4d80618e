package tenant

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/tenancy/backend/internal/domain/shared"
)

var (
	ErrTenantNotFound    = shared.NewDomainError("TENANT_NOT_FOUND", "Tenant not found")
	ErrIdentifierTaken   = shared.NewDomainError("IDENTIFIER_TAKEN", "Identifier is already used by an active tenant")
	ErrParentCycle       = shared.NewDomainError("PARENT_CYCLE", "Parent chain would contain a cycle")
	ErrReservedConfigKey = shared.NewDomainError("RESERVED_CONFIG_KEY", "Configuration key is reserved")
	ErrEmptyConfigKey    = shared.NewDomainError("EMPTY_CONFIG_KEY", "Configuration key cannot be empty")
	ErrInvalidConfig     = shared.NewDomainError("INVALID_TENANT_CONFIG", "Tenant configuration is invalid")

	// Scoping errors
	ErrNoTenant               = shared.NewDomainError("NO_TENANT", "No tenant is set for a tenant-scoped operation")
	ErrCrossTenant            = shared.NewDomainError("CROSS_TENANT", "Record belongs to another tenant")
	ErrDiscriminatorImmutable = shared.NewDomainError("DISCRIMINATOR_IMMUTABLE", "The owning tenant of a record cannot be changed")
	ErrPublicConfigDisabled   = shared.NewDomainError("PUBLIC_CONFIG_DISABLED", "Public configuration is disabled for this tenant")
)

// CrossTenantError reports a write against a record owned by another tenant.
type CrossTenantError struct {
	Resource       string
	ResourceTenant *uuid.UUID
	ActingTenant   uuid.UUID
}

func (e *CrossTenantError) Error() string {
	owner := "system"
	if e.ResourceTenant != nil {
		owner = e.ResourceTenant.String()
	}
	return fmt.Sprintf("%s owned by tenant %s cannot be modified by tenant %s", e.Resource, owner, e.ActingTenant)
}

// Is matches ErrCrossTenant.
func (e *CrossTenantError) Is(target error) bool {
	return target == ErrCrossTenant
}
