package tenancy

import (
	"context"
	"fmt"

	"github.com/tenancy/backend/internal/infrastructure/config"
	ptenant "github.com/tenancy/backend/internal/infrastructure/persistence/tenant"
)

// isolationKeys are the connection settings that move a tenant onto its own store
var isolationKeys = []string{"database.host", "database.dbname"}

// ScopeDecider decides whether a unit of work runs against the baseline
// database or one of its own. The decision is structural and follows the
// unit's runtime configuration, the same tree its connections are built
// from: a unit whose database.host or database.dbname differs from the
// baseline is isolated, everything else is shared and row-scoped. A tenant
// whose database settings were never applied stays shared.
type ScopeDecider struct {
	baseline *config.Runtime
	accessor *Accessor
}

// NewScopeDecider creates a decider comparing against baseline
func NewScopeDecider(baseline *config.Runtime) *ScopeDecider {
	return &ScopeDecider{baseline: baseline, accessor: NewAccessor()}
}

// IsIsolated reports whether rt points at a database other than the baseline
func (d *ScopeDecider) IsIsolated(rt *config.Runtime) bool {
	if rt == nil {
		return false
	}
	for _, key := range isolationKeys {
		v, ok := rt.Get(key)
		if !ok {
			continue
		}
		base, _ := d.baseline.Baseline(key)
		if fmt.Sprint(v) != fmt.Sprint(base) {
			return true
		}
	}
	return false
}

// Scope returns the scoping boundary for the unit carried by ctx
func (d *ScopeDecider) Scope(ctx context.Context) ptenant.Scope {
	tc := FromContext(ctx)
	scope := ptenant.Scope{Bypassed: tc.IsBypassed()}
	if id, ok := d.accessor.CurrentID(ctx); ok {
		scope.TenantID = id
		scope.Isolated = d.IsIsolated(tc.Runtime())
	}
	return scope
}

// GuardScope adapts Scope to the persistence guard
func (d *ScopeDecider) GuardScope() ptenant.ScopeFunc {
	return d.Scope
}
