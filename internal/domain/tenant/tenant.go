// Package tenant holds the tenant aggregate: identity, the nested
// configuration tree with parent inheritance, and the visibility tree that
// decides which configuration keys may leave the backend.
package tenant

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tenancy/backend/internal/domain/shared"
)

// AggregateType is the aggregate name used on tenant events.
const AggregateType = "Tenant"

const maxIdentifierLength = 255

// Tenant is the aggregate root for a tenant.
type Tenant struct {
	shared.BaseAggregateRoot
	PublicID          string
	Identifier        string
	Name              string
	ParentID          *uuid.UUID
	Config            Tree
	IsActive          bool
	IsInternal        bool
	AllowPublicConfig bool
	DeletedAt         *time.Time

	parent *Tenant
}

// Option configures a tenant at creation time.
type Option func(*Tenant)

// WithParent sets the parent used for configuration inheritance.
func WithParent(parent *Tenant) Option {
	return func(t *Tenant) {
		if parent == nil {
			return
		}
		id := parent.ID
		t.ParentID = &id
		t.parent = parent
	}
}

// WithConfig sets the initial configuration tree.
func WithConfig(cfg Tree) Option {
	return func(t *Tenant) {
		t.Config = CloneTree(cfg)
	}
}

// WithInternal marks the tenant as internal.
func WithInternal(internal bool) Option {
	return func(t *Tenant) {
		t.IsInternal = internal
	}
}

// WithPublicConfig allows the public config endpoint for this tenant.
func WithPublicConfig(allow bool) Option {
	return func(t *Tenant) {
		t.AllowPublicConfig = allow
	}
}

// NewTenant creates an active tenant with a fresh public id.
func NewTenant(identifier, name string, opts ...Option) (*Tenant, error) {
	identifier = NormalizeIdentifier(identifier)
	if err := validateIdentifier(identifier); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "Tenant name cannot be empty")
	}

	t := &Tenant{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		PublicID:          NewPublicID(),
		Identifier:        identifier,
		Name:              name,
		Config:            Tree{},
		IsActive:          true,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.Config == nil {
		t.Config = Tree{}
	}

	t.AddDomainEvent(NewCreatedEvent(t))
	return t, nil
}

// NewPublicID returns an opaque identifier that is safe to expose.
func NewPublicID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// NormalizeIdentifier lowercases and trims a resolution identifier.
func NormalizeIdentifier(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}

func validateIdentifier(identifier string) error {
	if identifier == "" {
		return shared.NewDomainError("INVALID_IDENTIFIER", "Tenant identifier cannot be empty")
	}
	if len(identifier) > maxIdentifierLength {
		return shared.NewDomainError("INVALID_IDENTIFIER", "Tenant identifier cannot exceed 255 characters")
	}
	if strings.ContainsAny(identifier, " \t\r\n") {
		return shared.NewDomainError("INVALID_IDENTIFIER", "Tenant identifier cannot contain whitespace")
	}
	return nil
}

// Parent returns the attached parent, if loaded.
func (t *Tenant) Parent() *Tenant {
	return t.parent
}

// AttachParent links the loaded parent tenant. It rejects a parent whose id
// does not match ParentID and any chain that leads back to t.
func (t *Tenant) AttachParent(parent *Tenant) error {
	if parent == nil {
		t.parent = nil
		return nil
	}
	if t.ParentID == nil || *t.ParentID != parent.ID {
		return shared.NewDomainError("INVALID_PARENT", "Parent does not match the tenant's parent id")
	}
	for p := parent; p != nil; p = p.parent {
		if p.ID == t.ID {
			return ErrParentCycle
		}
	}
	t.parent = parent
	return nil
}

// SetParent changes the parent reference. Passing nil detaches it.
func (t *Tenant) SetParent(parent *Tenant) error {
	if parent == nil {
		t.ParentID = nil
		t.parent = nil
		t.touch()
		return nil
	}
	prevID, prev := t.ParentID, t.parent
	id := parent.ID
	t.ParentID = &id
	if err := t.AttachParent(parent); err != nil {
		t.ParentID, t.parent = prevID, prev
		return err
	}
	t.touch()
	return nil
}

// Ancestors returns the loaded parent chain, nearest first.
func (t *Tenant) Ancestors() []*Tenant {
	var out []*Tenant
	for p := t.parent; p != nil; p = p.parent {
		out = append(out, p)
	}
	return out
}

// Update changes the display name.
func (t *Tenant) Update(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return shared.NewDomainError("INVALID_NAME", "Tenant name cannot be empty")
	}
	t.Name = name
	t.touch()
	t.AddDomainEvent(NewUpdatedEvent(t))
	return nil
}

// ChangeIdentifier changes the resolution identifier. Uniqueness among
// active tenants is checked by the application service.
func (t *Tenant) ChangeIdentifier(identifier string) (string, error) {
	identifier = NormalizeIdentifier(identifier)
	if err := validateIdentifier(identifier); err != nil {
		return "", err
	}
	old := t.Identifier
	t.Identifier = identifier
	t.touch()
	event := NewUpdatedEvent(t)
	if old != identifier {
		event.Previous = old
	}
	t.AddDomainEvent(event)
	return old, nil
}

// Activate makes the tenant resolvable.
func (t *Tenant) Activate() error {
	if t.IsActive {
		return shared.NewDomainError("ALREADY_ACTIVE", "Tenant is already active")
	}
	t.IsActive = true
	t.touch()
	t.AddDomainEvent(NewUpdatedEvent(t))
	return nil
}

// Deactivate stops the tenant from resolving.
func (t *Tenant) Deactivate() error {
	if !t.IsActive {
		return shared.NewDomainError("ALREADY_INACTIVE", "Tenant is already inactive")
	}
	t.IsActive = false
	t.touch()
	t.AddDomainEvent(NewUpdatedEvent(t))
	return nil
}

// MarkInternal grants or revokes internal status.
func (t *Tenant) MarkInternal(internal bool) {
	t.IsInternal = internal
	t.touch()
	t.AddDomainEvent(NewUpdatedEvent(t))
}

// SetAllowPublicConfig toggles the public config endpoint.
func (t *Tenant) SetAllowPublicConfig(allow bool) {
	t.AllowPublicConfig = allow
	t.touch()
	t.AddDomainEvent(NewUpdatedEvent(t))
}

// SoftDelete marks the tenant removed. The record stays so children and
// historical rows still resolve their owner.
func (t *Tenant) SoftDelete() error {
	if t.DeletedAt != nil {
		return shared.NewDomainError("ALREADY_DELETED", "Tenant is already deleted")
	}
	now := time.Now()
	t.DeletedAt = &now
	t.touch()
	t.AddDomainEvent(NewDeletedEvent(t))
	return nil
}

// Restore reverses SoftDelete.
func (t *Tenant) Restore() error {
	if t.DeletedAt == nil {
		return shared.NewDomainError("NOT_DELETED", "Tenant is not deleted")
	}
	t.DeletedAt = nil
	t.touch()
	t.AddDomainEvent(NewRestoredEvent(t))
	return nil
}

// IsDeleted reports whether the tenant is soft-deleted.
func (t *Tenant) IsDeleted() bool {
	return t.DeletedAt != nil
}

// Resolvable reports whether the tenant may be resolved from a request.
func (t *Tenant) Resolvable() bool {
	return t.IsActive && t.DeletedAt == nil
}

func (t *Tenant) touch() {
	t.UpdatedAt = time.Now()
	t.IncrementVersion()
}
