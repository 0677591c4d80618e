package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/tenancy/backend/internal/domain/shared"
	"github.com/tenancy/backend/internal/domain/tenant"
	"github.com/tenancy/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// maxTenantDepth bounds parent chain walks.
const maxTenantDepth = 32

// GormTenantRepository implements tenant.Repository using GORM
type GormTenantRepository struct {
	db *gorm.DB
}

// NewGormTenantRepository creates a new GormTenantRepository
func NewGormTenantRepository(db *gorm.DB) *GormTenantRepository {
	return &GormTenantRepository{db: db}
}

var _ tenant.Repository = (*GormTenantRepository)(nil)

// FindByID finds a tenant by its ID, including soft-deleted tenants
func (r *GormTenantRepository) FindByID(ctx context.Context, id uuid.UUID) (*tenant.Tenant, error) {
	var model models.TenantModel
	if err := r.db.WithContext(ctx).Unscoped().First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, tenant.ErrTenantNotFound
		}
		return nil, err
	}
	return r.hydrate(ctx, &model, map[uuid.UUID]*tenant.Tenant{})
}

// FindActiveByIdentifier finds the active, non-deleted tenant with the identifier
func (r *GormTenantRepository) FindActiveByIdentifier(ctx context.Context, identifier string) (*tenant.Tenant, error) {
	identifier = tenant.NormalizeIdentifier(identifier)
	if identifier == "" {
		return nil, tenant.ErrTenantNotFound
	}
	var model models.TenantModel
	if err := r.db.WithContext(ctx).
		Where("identifier = ? AND is_active = ?", identifier, true).
		Order("created_at ASC").
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, tenant.ErrTenantNotFound
		}
		return nil, err
	}
	return r.hydrate(ctx, &model, map[uuid.UUID]*tenant.Tenant{})
}

// FindAll finds tenants that are not soft-deleted, matching the filter
func (r *GormTenantRepository) FindAll(ctx context.Context, filter shared.Filter) ([]*tenant.Tenant, error) {
	var tenantModels []models.TenantModel
	query := r.applySearch(r.db.WithContext(ctx).Model(&models.TenantModel{}), filter)

	// Apply sorting with whitelist validation to prevent SQL injection
	sortField := ValidateSortField(filter.OrderBy, TenantSortFields, "created_at")
	sortOrder := ValidateSortOrder(filter.OrderDir)
	query = query.Order(sortField + " " + sortOrder)

	query = query.Offset(filter.Offset()).Limit(filter.Limit())

	if err := query.Find(&tenantModels).Error; err != nil {
		return nil, err
	}
	return r.hydrateAll(ctx, tenantModels)
}

// FindActive finds all resolvable tenants ordered by identifier
func (r *GormTenantRepository) FindActive(ctx context.Context) ([]*tenant.Tenant, error) {
	var tenantModels []models.TenantModel
	if err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("identifier ASC").
		Find(&tenantModels).Error; err != nil {
		return nil, err
	}
	return r.hydrateAll(ctx, tenantModels)
}

// FindChildren finds the direct, non-deleted children of a tenant
func (r *GormTenantRepository) FindChildren(ctx context.Context, parentID uuid.UUID) ([]*tenant.Tenant, error) {
	var tenantModels []models.TenantModel
	if err := r.db.WithContext(ctx).
		Where("parent_id = ?", parentID).
		Order("identifier ASC").
		Find(&tenantModels).Error; err != nil {
		return nil, err
	}
	return r.hydrateAll(ctx, tenantModels)
}

// ExistsActiveByIdentifier checks whether an active tenant other than excludeID uses the identifier
func (r *GormTenantRepository) ExistsActiveByIdentifier(ctx context.Context, identifier string, excludeID uuid.UUID) (bool, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&models.TenantModel{}).
		Where("identifier = ? AND is_active = ?", tenant.NormalizeIdentifier(identifier), true)
	if excludeID != uuid.Nil {
		query = query.Where("id <> ?", excludeID)
	}
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Save creates or updates a tenant, including its soft-delete state
func (r *GormTenantRepository) Save(ctx context.Context, t *tenant.Tenant) error {
	model, err := models.TenantModelFromDomain(t)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Unscoped().Save(model).Error
}

// Count counts tenants that are not soft-deleted, matching the filter
func (r *GormTenantRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	var count int64
	query := r.applySearch(r.db.WithContext(ctx).Model(&models.TenantModel{}), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *GormTenantRepository) applySearch(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if filter.Search == "" {
		return query
	}
	keyword := "%" + strings.ToLower(filter.Search) + "%"
	return query.Where("LOWER(name) LIKE ? OR identifier LIKE ?", keyword, keyword)
}

func (r *GormTenantRepository) hydrateAll(ctx context.Context, tenantModels []models.TenantModel) ([]*tenant.Tenant, error) {
	loaded := make(map[uuid.UUID]*tenant.Tenant)
	tenants := make([]*tenant.Tenant, 0, len(tenantModels))
	for i := range tenantModels {
		t, err := r.hydrate(ctx, &tenantModels[i], loaded)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, t)
	}
	return tenants, nil
}

// hydrate converts model and attaches its ancestors. Ancestors are loaded
// even when soft-deleted; a dangling parent id ends the chain.
func (r *GormTenantRepository) hydrate(ctx context.Context, model *models.TenantModel, loaded map[uuid.UUID]*tenant.Tenant) (*tenant.Tenant, error) {
	t, err := model.ToDomain()
	if err != nil {
		return nil, err
	}

	seen := map[uuid.UUID]bool{t.ID: true}
	cur := t
	for depth := 0; cur.ParentID != nil; depth++ {
		parentID := *cur.ParentID
		if seen[parentID] || depth >= maxTenantDepth {
			return nil, tenant.ErrParentCycle
		}
		seen[parentID] = true

		if parent, ok := loaded[parentID]; ok {
			// Cached ancestors already carry their own chain.
			if err := cur.AttachParent(parent); err != nil {
				return nil, err
			}
			break
		}

		var parentModel models.TenantModel
		err := r.db.WithContext(ctx).Unscoped().First(&parentModel, "id = ?", parentID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			break
		}
		if err != nil {
			return nil, err
		}
		parent, err := parentModel.ToDomain()
		if err != nil {
			return nil, err
		}
		if err := cur.AttachParent(parent); err != nil {
			return nil, err
		}
		loaded[parentID] = parent
		cur = parent
	}
	return t, nil
}
