package tenant

import (
	"github.com/google/uuid"
	"github.com/tenancy/backend/internal/domain/shared"
)

// Event type constants
const (
	EventTypeCreated       = "TenantCreated"
	EventTypeUpdated       = "TenantUpdated"
	EventTypeConfigChanged = "TenantConfigChanged"
	EventTypeDeleted       = "TenantDeleted"
	EventTypeRestored      = "TenantRestored"
	EventTypeResolved      = "TenantResolved"
	EventTypeNotFound      = "TenantNotFound"
)

// CreatedEvent is published when a tenant is created
type CreatedEvent struct {
	shared.BaseDomainEvent
	PublicID   string `json:"public_id"`
	Identifier string `json:"identifier"`
	Name       string `json:"name"`
}

// NewCreatedEvent creates a new CreatedEvent
func NewCreatedEvent(t *Tenant) *CreatedEvent {
	return &CreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCreated, AggregateType, t.ID, t.ID),
		PublicID:        t.PublicID,
		Identifier:      t.Identifier,
		Name:            t.Name,
	}
}

// ChangedEvent is implemented by events that make cached copies of the
// tenant stale.
type ChangedEvent interface {
	shared.DomainEvent
	TenantIdentifier() string
}

// UpdatedEvent is published when tenant attributes change. Previous is set
// when the identifier itself changed.
type UpdatedEvent struct {
	shared.BaseDomainEvent
	Identifier string `json:"identifier"`
	Previous   string `json:"previous_identifier,omitempty"`
	IsActive   bool   `json:"is_active"`
	IsInternal bool   `json:"is_internal"`
}

// NewUpdatedEvent creates a new UpdatedEvent
func NewUpdatedEvent(t *Tenant) *UpdatedEvent {
	return &UpdatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeUpdated, AggregateType, t.ID, t.ID),
		Identifier:      t.Identifier,
		IsActive:        t.IsActive,
		IsInternal:      t.IsInternal,
	}
}

// TenantIdentifier implements ChangedEvent
func (e *UpdatedEvent) TenantIdentifier() string { return e.Identifier }

// PreviousIdentifier returns the identifier before the change, if any
func (e *UpdatedEvent) PreviousIdentifier() string { return e.Previous }

// ConfigChangedEvent is published when a configuration key is set or cleared
type ConfigChangedEvent struct {
	shared.BaseDomainEvent
	Identifier string `json:"identifier"`
	Key        string `json:"key"`
}

// NewConfigChangedEvent creates a new ConfigChangedEvent
func NewConfigChangedEvent(t *Tenant, key string) *ConfigChangedEvent {
	return &ConfigChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeConfigChanged, AggregateType, t.ID, t.ID),
		Identifier:      t.Identifier,
		Key:             key,
	}
}

// TenantIdentifier implements ChangedEvent
func (e *ConfigChangedEvent) TenantIdentifier() string { return e.Identifier }

// DeletedEvent is published when a tenant is soft-deleted
type DeletedEvent struct {
	shared.BaseDomainEvent
	Identifier string `json:"identifier"`
}

// NewDeletedEvent creates a new DeletedEvent
func NewDeletedEvent(t *Tenant) *DeletedEvent {
	return &DeletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDeleted, AggregateType, t.ID, t.ID),
		Identifier:      t.Identifier,
	}
}

// TenantIdentifier implements ChangedEvent
func (e *DeletedEvent) TenantIdentifier() string { return e.Identifier }

// RestoredEvent is published when a soft-deleted tenant is restored
type RestoredEvent struct {
	shared.BaseDomainEvent
	Identifier string `json:"identifier"`
}

// NewRestoredEvent creates a new RestoredEvent
func NewRestoredEvent(t *Tenant) *RestoredEvent {
	return &RestoredEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeRestored, AggregateType, t.ID, t.ID),
		Identifier:      t.Identifier,
	}
}

// TenantIdentifier implements ChangedEvent
func (e *RestoredEvent) TenantIdentifier() string { return e.Identifier }

// EventTypeCrossTenantViolation is published when the scoping guard rejects a write
const EventTypeCrossTenantViolation = "CrossTenantViolation"

// CrossTenantViolationEvent records a rejected cross-tenant write
type CrossTenantViolationEvent struct {
	shared.BaseDomainEvent
	Resource       string `json:"resource"`
	ResourceTenant string `json:"resource_tenant"`
}

// NewCrossTenantViolationEvent creates a new CrossTenantViolationEvent for err
func NewCrossTenantViolationEvent(err *CrossTenantError) *CrossTenantViolationEvent {
	owner := ""
	if err.ResourceTenant != nil {
		owner = err.ResourceTenant.String()
	}
	return &CrossTenantViolationEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCrossTenantViolation, AggregateType, err.ActingTenant, err.ActingTenant),
		Resource:        err.Resource,
		ResourceTenant:  owner,
	}
}

// ResolvedEvent is published when a request resolves to a tenant
type ResolvedEvent struct {
	shared.BaseDomainEvent
	PublicID   string `json:"public_id"`
	Identifier string `json:"identifier"`
	Resolver   string `json:"resolver"`
	CacheKey   string `json:"cache_key,omitempty"`
}

// NewResolvedEvent creates a new ResolvedEvent
func NewResolvedEvent(t *Tenant, resolver, cacheKey string) *ResolvedEvent {
	return &ResolvedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeResolved, AggregateType, t.ID, t.ID),
		PublicID:        t.PublicID,
		Identifier:      t.Identifier,
		Resolver:        resolver,
		CacheKey:        cacheKey,
	}
}

// NotFoundEvent is published when a request resolves to no tenant. Resolver
// and Identifier are empty when no strategy produced an identifier.
type NotFoundEvent struct {
	shared.BaseDomainEvent
	Host       string `json:"host"`
	Path       string `json:"path"`
	Resolver   string `json:"resolver,omitempty"`
	Identifier string `json:"identifier,omitempty"`
	CacheKey   string `json:"cache_key,omitempty"`
}

// NewNotFoundEvent creates a new NotFoundEvent
func NewNotFoundEvent(host, path, resolver, identifier, cacheKey string) *NotFoundEvent {
	return &NotFoundEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeNotFound, AggregateType, uuid.Nil, uuid.Nil),
		Host:            host,
		Path:            path,
		Resolver:        resolver,
		Identifier:      identifier,
		CacheKey:        cacheKey,
	}
}

// EventTypePipeFailed is published when a configuration pipe fails for a tenant
const EventTypePipeFailed = "PipeFailed"

// PipeFailedEvent records a configuration pipe that could not apply
type PipeFailedEvent struct {
	shared.BaseDomainEvent
	PublicID string `json:"public_id"`
	Pipe     string `json:"pipe"`
	Error    string `json:"error"`
	Critical bool   `json:"critical"`
}

// NewPipeFailedEvent creates a new PipeFailedEvent
func NewPipeFailedEvent(t *Tenant, pipe string, err error, critical bool) *PipeFailedEvent {
	return &PipeFailedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePipeFailed, AggregateType, t.ID, t.ID),
		PublicID:        t.PublicID,
		Pipe:            pipe,
		Error:           err.Error(),
		Critical:        critical,
	}
}
