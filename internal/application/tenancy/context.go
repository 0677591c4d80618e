// Package tenancy holds the per unit of work tenant state and the services
// that resolve, administer and expose tenants.
package tenancy

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/tenancy/backend/internal/domain/tenant"
	"github.com/tenancy/backend/internal/infrastructure/config"
)

// Context holds the current tenant and the bypass flag for one unit of work.
// A new Context is created for every request, job and CLI invocation; it is
// never shared between units.
type Context struct {
	mu       sync.RWMutex
	current  *tenant.Tenant
	bypassed bool
	runtime  *config.Runtime
}

// NewContext returns an empty context
func NewContext() *Context {
	return &Context{}
}

// SetCurrent replaces the current tenant. nil clears it.
func (c *Context) SetCurrent(t *tenant.Tenant) {
	c.mu.Lock()
	c.current = t
	c.mu.Unlock()
}

// Current returns the current tenant, or nil
func (c *Context) Current() *tenant.Tenant {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// CurrentID returns the current tenant's id, or uuid.Nil
func (c *Context) CurrentID() uuid.UUID {
	if t := c.Current(); t != nil {
		return t.ID
	}
	return uuid.Nil
}

// Bypass marks the unit as administrative. Scoping checks are skipped until
// ClearBypass.
func (c *Context) Bypass() {
	c.mu.Lock()
	c.bypassed = true
	c.mu.Unlock()
}

// ClearBypass ends administrative mode
func (c *Context) ClearBypass() {
	c.mu.Lock()
	c.bypassed = false
	c.mu.Unlock()
}

// IsBypassed reports whether scoping checks are skipped
func (c *Context) IsBypassed() bool {
	if c == nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bypassed
}

// AttachRuntime records the unit's runtime configuration, which decides the
// connections the unit actually uses.
func (c *Context) AttachRuntime(rt *config.Runtime) {
	c.mu.Lock()
	c.runtime = rt
	c.mu.Unlock()
}

// Runtime returns the attached runtime configuration, or nil
func (c *Context) Runtime() *config.Runtime {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.runtime
}

// Reset clears the tenant and the bypass flag
func (c *Context) Reset() {
	c.mu.Lock()
	c.current = nil
	c.bypassed = false
	c.mu.Unlock()
}

type contextKey struct{}

// WithContext returns a copy of ctx carrying tc
func WithContext(ctx context.Context, tc *Context) context.Context {
	return context.WithValue(ctx, contextKey{}, tc)
}

// FromContext returns the Context carried by ctx, or nil. The read methods
// of a nil *Context report no tenant and no bypass.
func FromContext(ctx context.Context) *Context {
	if ctx == nil {
		return nil
	}
	tc, _ := ctx.Value(contextKey{}).(*Context)
	return tc
}

// Unit is one unit of work: its tenant context and its private copy of the
// runtime configuration.
type Unit struct {
	Context *Context
	Config  *config.Runtime
}

// RunUnit runs fn as a unit of work with a fresh Context and a runtime forked
// from baseline. Both are reset when fn returns or panics, so nothing the
// unit configured is visible to the next one.
func RunUnit(ctx context.Context, baseline *config.Runtime, fn func(ctx context.Context, u *Unit) error) error {
	u := &Unit{Context: NewContext(), Config: baseline.Fork()}
	u.Context.AttachRuntime(u.Config)
	defer func() {
		u.Context.Reset()
		u.Config.Reset()
	}()
	return fn(WithContext(ctx, u.Context), u)
}
