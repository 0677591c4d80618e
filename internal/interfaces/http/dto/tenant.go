package dto

import "github.com/google/uuid"

// CreateTenantRequest is the body of POST /admin/tenants
type CreateTenantRequest struct {
	Identifier        string         `json:"identifier" binding:"required,max=255"`
	Name              string         `json:"name" binding:"required,max=200"`
	ParentID          *uuid.UUID     `json:"parent_id"`
	Config            map[string]any `json:"config"`
	IsInternal        bool           `json:"is_internal"`
	AllowPublicConfig bool           `json:"allow_public_config"`
}

// UpdateTenantRequest is the body of PUT /admin/tenants/:id. Omitted fields
// are left unchanged.
type UpdateTenantRequest struct {
	Name              *string `json:"name" binding:"omitempty,max=200"`
	Identifier        *string `json:"identifier" binding:"omitempty,max=255"`
	IsInternal        *bool   `json:"is_internal"`
	AllowPublicConfig *bool   `json:"allow_public_config"`
}

// SetConfigRequest sets or, with a null value, clears one configuration key
type SetConfigRequest struct {
	Key   string `json:"key" binding:"required"`
	Value any    `json:"value"`
}

// SetVisibilityRequest annotates one configuration key
type SetVisibilityRequest struct {
	Key   string `json:"key" binding:"required"`
	Level string `json:"level" binding:"required,oneof=PUBLIC PROTECTED PRIVATE public protected private"`
}

// ListTenantsRequest holds list query parameters
type ListTenantsRequest struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy  string `form:"order_by" binding:"omitempty,oneof=identifier name created_at updated_at"`
	OrderDir string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
	Search   string `form:"search"`
}

// IDRequest represents a request with an ID path parameter
type IDRequest struct {
	ID string `uri:"id" binding:"required,uuid"`
}
