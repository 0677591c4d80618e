// Package tenant enforces tenant boundaries on GORM statements.
//
// The Guard registers callbacks that filter reads by the tenant_id
// discriminator, stamp new records with the current tenant and refuse
// writes against records owned by another tenant. Only models implementing
// the domain's Scoped interface are affected.
//
// Usage:
//
//	guard := tenant.NewGuard(tenant.GuardConfig{Scope: tenancy.GuardScope})
//	_ = guard.Register(db)
//	db.WithContext(ctx).Find(&records) // WHERE tenant_id = '<current>' is added
package tenant

import (
	"context"
	"reflect"

	"github.com/google/uuid"
	"github.com/tenancy/backend/internal/domain/shared"
	domain "github.com/tenancy/backend/internal/domain/tenant"
	"github.com/tenancy/backend/internal/infrastructure/logger"
	"github.com/tenancy/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Policies applied to reads when no tenant is active.
const (
	// NoTenantGlobal returns only system records (tenant_id IS NULL)
	NoTenantGlobal = "global"
	// NoTenantEmpty returns nothing
	NoTenantEmpty = "empty"
	// NoTenantFail rejects the statement with ErrNoTenant
	NoTenantFail = "fail"
)

// Scope is the tenant boundary in effect for a statement.
type Scope struct {
	// TenantID is uuid.Nil when no tenant is active
	TenantID uuid.UUID
	// Bypassed disables every check for trusted system work
	Bypassed bool
	// Isolated means the tenant has its own database, so no filtering is needed
	Isolated bool
}

// HasTenant reports whether a tenant is active.
func (s Scope) HasTenant() bool {
	return s.TenantID != uuid.Nil
}

// ScopeFunc derives the scope from a statement's context
type ScopeFunc func(ctx context.Context) Scope

// GuardConfig holds the Guard dependencies
type GuardConfig struct {
	Scope          ScopeFunc
	NoTenantPolicy string
	Publisher      shared.EventPublisher
	Metrics        *telemetry.TenancyMetrics
	Logger         *zap.Logger
}

// Guard is the GORM plugin enforcing tenant boundaries
type Guard struct {
	scope     ScopeFunc
	noTenant  string
	publisher shared.EventPublisher
	metrics   *telemetry.TenancyMetrics
	logger    *zap.Logger
}

// NewGuard creates a guard. Missing dependencies fall back to no-ops and the
// global no-tenant policy.
func NewGuard(cfg GuardConfig) *Guard {
	g := &Guard{
		scope:     cfg.Scope,
		noTenant:  cfg.NoTenantPolicy,
		publisher: cfg.Publisher,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
	}
	if g.scope == nil {
		g.scope = func(context.Context) Scope { return Scope{} }
	}
	if g.noTenant == "" {
		g.noTenant = NoTenantGlobal
	}
	if g.publisher == nil {
		g.publisher = shared.NopPublisher{}
	}
	if g.metrics == nil {
		g.metrics = telemetry.NopTenancyMetrics()
	}
	if g.logger == nil {
		g.logger = zap.NewNop()
	}
	return g
}

// Name implements gorm.Plugin
func (g *Guard) Name() string {
	return "tenancy:guard"
}

// Initialize implements gorm.Plugin
func (g *Guard) Initialize(db *gorm.DB) error {
	return g.Register(db)
}

// Register installs the guard callbacks on db
func (g *Guard) Register(db *gorm.DB) error {
	cb := db.Callback()
	if err := cb.Query().Before("gorm:query").Register("tenancy:before_query", g.beforeQuery); err != nil {
		return err
	}
	if err := cb.Row().Before("gorm:row").Register("tenancy:before_row", g.beforeQuery); err != nil {
		return err
	}
	if err := cb.Create().Before("gorm:create").Register("tenancy:before_create", g.beforeCreate); err != nil {
		return err
	}
	if err := cb.Update().Before("gorm:update").Register("tenancy:before_update", g.beforeUpdate); err != nil {
		return err
	}
	return cb.Delete().Before("gorm:delete").Register("tenancy:before_delete", g.beforeDelete)
}

// Restore clears the soft-delete marker of model under the same ownership
// check as any other write.
func (g *Guard) Restore(ctx context.Context, db *gorm.DB, model domain.Scoped) error {
	return db.WithContext(ctx).Unscoped().Model(model).Update("deleted_at", nil).Error
}

func (g *Guard) beforeQuery(db *gorm.DB) {
	if !isScopedSchema(db) {
		return
	}
	scope := g.scope(statementContext(db))
	if scope.Bypassed || scope.Isolated {
		return
	}
	g.restrict(db, scope)
}

func (g *Guard) beforeCreate(db *gorm.DB) {
	if !isScopedSchema(db) {
		return
	}
	scope := g.scope(statementContext(db))
	if scope.Bypassed || scope.Isolated || !scope.HasTenant() {
		return
	}
	for _, record := range scopedRecords(db.Statement.Dest) {
		owner := record.GetTenantID()
		if owner == nil {
			record.SetTenantID(scope.TenantID)
			continue
		}
		if *owner != scope.TenantID {
			g.reject(db, scope, owner)
			return
		}
	}

	// Save falls back to an upsert when its update matched nothing; the
	// conflicting row may belong to another tenant.
	if c, ok := db.Statement.Clauses["ON CONFLICT"]; ok {
		if onConflict, ok := c.Expression.(clause.OnConflict); ok && !onConflict.DoNothing {
			onConflict.Where.Exprs = append(onConflict.Where.Exprs, clause.Eq{
				Column: clause.Column{Table: clause.CurrentTable, Name: domain.DiscriminatorColumn},
				Value:  scope.TenantID,
			})
			db.Statement.AddClause(onConflict)
		}
	}
}

func (g *Guard) beforeUpdate(db *gorm.DB) {
	if !isScopedSchema(db) {
		return
	}
	if g.changesDiscriminator(db) {
		_ = db.AddError(domain.ErrDiscriminatorImmutable)
		return
	}
	g.guardWrite(db)
}

func (g *Guard) beforeDelete(db *gorm.DB) {
	if !isScopedSchema(db) {
		return
	}
	g.guardWrite(db)
}

// guardWrite checks the owner of the target records and restricts the
// statement to the current tenant's rows. Records carrying a primary key are
// checked against their stored owner, so an unloaded model cannot reach
// another tenant's row unnoticed.
func (g *Guard) guardWrite(db *gorm.DB) {
	scope := g.scope(statementContext(db))
	if scope.Bypassed || scope.Isolated {
		return
	}
	if scope.HasTenant() {
		for _, record := range scopedRecords(db.Statement.Model) {
			owner := record.GetTenantID()
			if stored, found := g.storedOwner(db, record); found {
				owner = stored
			}
			if owner != nil && *owner != scope.TenantID {
				g.reject(db, scope, owner)
				return
			}
		}
	}
	// The discriminator condition would satisfy gorm's own check for a
	// missing WHERE clause.
	if !db.AllowGlobalUpdate && !targeted(db) {
		_ = db.AddError(gorm.ErrMissingWhereClause)
		return
	}
	g.restrict(db, scope)
}

// targeted reports whether the statement names its rows, either through
// conditions or through the primary key of its model.
func targeted(db *gorm.DB) bool {
	if c, ok := db.Statement.Clauses["WHERE"]; ok {
		if where, ok := c.Expression.(clause.Where); ok && len(where.Exprs) > 0 {
			return true
		}
	}
	for _, record := range scopedRecords(db.Statement.Model) {
		if _, ok := primaryKey(db, record); ok {
			return true
		}
	}
	return false
}

type ownerLookup struct {
	owner *uuid.UUID
	found bool
}

const storedOwnersKey = "tenancy:stored_owners"

// storedOwner returns the persisted discriminator of record. found is false
// when the record has no primary key or no row exists yet. Lookups are
// remembered for the rest of the statement.
func (g *Guard) storedOwner(db *gorm.DB, record domain.Scoped) (*uuid.UUID, bool) {
	cache := map[domain.Scoped]ownerLookup{}
	if v, ok := db.Statement.Settings.Load(storedOwnersKey); ok {
		cache = v.(map[domain.Scoped]ownerLookup)
	}
	if l, ok := cache[record]; ok {
		return l.owner, l.found
	}

	var lookup ownerLookup
	if conds, ok := primaryKey(db, record); ok {
		var owners []*uuid.UUID
		err := db.Session(&gorm.Session{NewDB: true, Context: statementContext(db)}).
			Table(db.Statement.Table).
			Clauses(clause.Where{Exprs: conds}).
			Limit(1).
			Pluck(domain.DiscriminatorColumn, &owners).Error
		if err != nil {
			logger.WithLogger(statementContext(db), g.logger).Error("Failed to load stored tenant owner",
				zap.String("table", db.Statement.Table),
				zap.Error(err))
		} else if len(owners) == 1 {
			lookup = ownerLookup{owner: owners[0], found: true}
		}
	}
	cache[record] = lookup
	db.Statement.Settings.Store(storedOwnersKey, cache)
	return lookup.owner, lookup.found
}

// primaryKey returns equality conditions on record's primary key. ok is
// false when any key field is zero.
func primaryKey(db *gorm.DB, record domain.Scoped) ([]clause.Expression, bool) {
	sch := db.Statement.Schema
	if sch == nil || len(sch.PrimaryFields) == 0 {
		return nil, false
	}
	rv := reflect.Indirect(reflect.ValueOf(record))
	if rv.Type() != sch.ModelType {
		return nil, false
	}
	conds := make([]clause.Expression, 0, len(sch.PrimaryFields))
	for _, field := range sch.PrimaryFields {
		value, zero := field.ValueOf(statementContext(db), rv)
		if zero {
			return nil, false
		}
		conds = append(conds, clause.Eq{Column: clause.Column{Name: field.DBName}, Value: value})
	}
	return conds, true
}

// restrict adds the discriminator condition for scope, or applies the
// no-tenant policy.
func (g *Guard) restrict(db *gorm.DB, scope Scope) {
	column := clause.Column{Table: clause.CurrentTable, Name: domain.DiscriminatorColumn}
	if scope.HasTenant() {
		db.Statement.AddClause(clause.Where{Exprs: []clause.Expression{
			clause.Eq{Column: column, Value: scope.TenantID},
		}})
		return
	}

	switch g.noTenant {
	case NoTenantFail:
		_ = db.AddError(domain.ErrNoTenant)
	case NoTenantEmpty:
		db.Statement.AddClause(clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "1 = 0"},
		}})
	default:
		db.Statement.AddClause(clause.Where{Exprs: []clause.Expression{
			clause.Eq{Column: column, Value: nil},
		}})
	}
}

func (g *Guard) reject(db *gorm.DB, scope Scope, owner *uuid.UUID) {
	resource := db.Statement.Table
	if db.Statement.Schema != nil {
		resource = db.Statement.Schema.Name
	}
	err := &domain.CrossTenantError{
		Resource:       resource,
		ResourceTenant: owner,
		ActingTenant:   scope.TenantID,
	}
	_ = db.AddError(err)

	ctx := statementContext(db)
	log := logger.WithLogger(ctx, g.logger)
	log.Warn("Cross-tenant write rejected",
		zap.String("resource", resource),
		zap.String("resource_tenant", owner.String()),
		zap.String("acting_tenant", scope.TenantID.String()),
	)
	g.metrics.RecordViolation(ctx, resource)
	if pubErr := g.publisher.Publish(ctx, domain.NewCrossTenantViolationEvent(err)); pubErr != nil {
		log.Error("Failed to publish cross-tenant violation", zap.Error(pubErr))
	}
}

// changesDiscriminator reports whether the update assigns a tenant id that
// differs from the one stored for the target record. It applies under
// bypass too.
func (g *Guard) changesDiscriminator(db *gorm.DB) bool {
	stmt := db.Statement
	targets := scopedRecords(stmt.Model)
	var current *uuid.UUID
	if len(targets) == 1 {
		current = targets[0].GetTenantID()
		if stored, found := g.storedOwner(db, targets[0]); found {
			current = stored
		}
	}

	switch dest := stmt.Dest.(type) {
	case map[string]any:
		for key, value := range dest {
			if !isDiscriminatorField(db, key) {
				continue
			}
			return !sameTenant(current, value)
		}
		return false
	}

	if stmt.Dest == stmt.Model {
		// Save(&record) writes every column, a cleared discriminator included
		for _, record := range targets {
			if stored, found := g.storedOwner(db, record); found && !sameTenant(stored, record.GetTenantID()) {
				return true
			}
		}
		return false
	}
	for _, record := range scopedRecords(stmt.Dest) {
		if next := record.GetTenantID(); next != nil && !sameTenant(current, *next) {
			return true
		}
	}
	return false
}

func isDiscriminatorField(db *gorm.DB, key string) bool {
	if key == domain.DiscriminatorColumn {
		return true
	}
	if db.Statement.Schema == nil {
		return false
	}
	field := db.Statement.Schema.LookUpField(key)
	return field != nil && field.DBName == domain.DiscriminatorColumn
}

func sameTenant(current *uuid.UUID, value any) bool {
	var next *uuid.UUID
	switch v := value.(type) {
	case nil:
	case uuid.UUID:
		next = &v
	case *uuid.UUID:
		next = v
	case string:
		id, err := uuid.Parse(v)
		if err != nil {
			return false
		}
		next = &id
	default:
		return false
	}
	if current == nil || next == nil {
		return current == nil && next == nil
	}
	return *current == *next
}

func statementContext(db *gorm.DB) context.Context {
	if db.Statement.Context != nil {
		return db.Statement.Context
	}
	return context.Background()
}

var scopedType = reflect.TypeOf((*domain.Scoped)(nil)).Elem()

func isScopedSchema(db *gorm.DB) bool {
	if db.Statement.Schema == nil {
		return false
	}
	return reflect.PointerTo(db.Statement.Schema.ModelType).Implements(scopedType)
}

// scopedRecords returns the Scoped values held by v, which may be a
// pointer to a struct or a slice of structs or pointers.
func scopedRecords(v any) []domain.Scoped {
	if v == nil {
		return nil
	}
	if s, ok := v.(domain.Scoped); ok {
		return []domain.Scoped{s}
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}

	var out []domain.Scoped
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if s, ok := asScoped(rv.Index(i)); ok {
				out = append(out, s)
			}
		}
	case reflect.Struct:
		if s, ok := asScoped(rv); ok {
			out = append(out, s)
		}
	}
	return out
}

func asScoped(v reflect.Value) (domain.Scoped, bool) {
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil, false
		}
		s, ok := v.Interface().(domain.Scoped)
		return s, ok
	}
	if !v.CanAddr() {
		return nil, false
	}
	s, ok := v.Addr().Interface().(domain.Scoped)
	return s, ok
}
