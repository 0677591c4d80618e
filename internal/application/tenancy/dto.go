package tenancy

import (
	"time"

	"github.com/google/uuid"
	"github.com/tenancy/backend/internal/domain/shared"
	"github.com/tenancy/backend/internal/domain/tenant"
)

// CreateTenantInput contains input for creating a tenant
type CreateTenantInput struct {
	Identifier        string
	Name              string
	ParentID          *uuid.UUID
	Config            tenant.Tree
	IsInternal        bool
	AllowPublicConfig bool
}

// UpdateTenantInput contains input for updating a tenant. Nil fields are left unchanged.
type UpdateTenantInput struct {
	ID                uuid.UUID
	Name              *string
	Identifier        *string
	IsInternal        *bool
	AllowPublicConfig *bool
}

// TenantDTO represents tenant data transfer object. Config is the tenant's
// own configuration, visibility annotations included.
type TenantDTO struct {
	ID                uuid.UUID   `json:"id"`
	PublicID          string      `json:"public_id"`
	Identifier        string      `json:"identifier"`
	Name              string      `json:"name"`
	ParentID          *uuid.UUID  `json:"parent_id,omitempty"`
	Config            tenant.Tree `json:"config"`
	IsActive          bool        `json:"is_active"`
	IsInternal        bool        `json:"is_internal"`
	AllowPublicConfig bool        `json:"allow_public_config"`
	DeletedAt         *time.Time  `json:"deleted_at,omitempty"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
	Version           int         `json:"version"`
}

// TenantFilter represents filter for querying tenants
type TenantFilter struct {
	Page     int
	PageSize int
	SortBy   string
	SortDir  string
	Keyword  string
}

// ToSharedFilter converts TenantFilter to shared.Filter
func (f TenantFilter) ToSharedFilter() shared.Filter {
	page := f.Page
	if page < 1 {
		page = 1
	}
	pageSize := f.PageSize
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return shared.Filter{
		Page:     page,
		PageSize: pageSize,
		OrderBy:  f.SortBy,
		OrderDir: f.SortDir,
		Search:   f.Keyword,
	}
}

// TenantListResult represents paginated tenant list result
type TenantListResult struct {
	Tenants    []TenantDTO `json:"tenants"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
	TotalPages int         `json:"total_pages"`
}

// ToTenantDTO converts a tenant to its DTO
func ToTenantDTO(t *tenant.Tenant) *TenantDTO {
	return &TenantDTO{
		ID:                t.ID,
		PublicID:          t.PublicID,
		Identifier:        t.Identifier,
		Name:              t.Name,
		ParentID:          t.ParentID,
		Config:            tenant.CloneTree(t.Config),
		IsActive:          t.IsActive,
		IsInternal:        t.IsInternal,
		AllowPublicConfig: t.AllowPublicConfig,
		DeletedAt:         t.DeletedAt,
		CreatedAt:         t.CreatedAt,
		UpdatedAt:         t.UpdatedAt,
		Version:           t.Version,
	}
}
