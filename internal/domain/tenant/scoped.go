package tenant

import "github.com/google/uuid"

// DiscriminatorColumn names the column holding the owning tenant's id.
const DiscriminatorColumn = "tenant_id"

// Scoped is implemented by persisted records owned by a tenant. A nil
// tenant id marks a system record.
type Scoped interface {
	GetTenantID() *uuid.UUID
	SetTenantID(id uuid.UUID)
}
