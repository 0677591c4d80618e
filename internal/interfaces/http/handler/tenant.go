package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tenancy/backend/internal/application/tenancy"
	"github.com/tenancy/backend/internal/domain/tenant"
	"github.com/tenancy/backend/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// TenantHandler handles tenant administration HTTP requests
type TenantHandler struct {
	BaseHandler
	tenantService *tenancy.TenantService
}

// NewTenantHandler creates a new tenant handler
func NewTenantHandler(tenantService *tenancy.TenantService, logger *zap.Logger) *TenantHandler {
	return &TenantHandler{
		BaseHandler:   BaseHandler{Logger: logger},
		tenantService: tenantService,
	}
}

// Create godoc
// @Summary      Create a new tenant
// @Tags         tenants
// @Accept       json
// @Produce      json
// @Param        request body dto.CreateTenantRequest true "Tenant creation request"
// @Success      201 {object} dto.Response{data=tenancy.TenantDTO}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /admin/tenants [post]
func (h *TenantHandler) Create(c *gin.Context) {
	var req dto.CreateTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	t, err := h.tenantService.Create(c.Request.Context(), tenancy.CreateTenantInput{
		Identifier:        req.Identifier,
		Name:              req.Name,
		ParentID:          req.ParentID,
		Config:            req.Config,
		IsInternal:        req.IsInternal,
		AllowPublicConfig: req.AllowPublicConfig,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, t)
}

// List godoc
// @Summary      List tenants
// @Tags         tenants
// @Produce      json
// @Param        page      query int    false "Page number"
// @Param        page_size query int    false "Page size"
// @Param        search    query string false "Identifier or name contains"
// @Success      200 {object} dto.Response{data=[]tenancy.TenantDTO}
// @Router       /admin/tenants [get]
func (h *TenantHandler) List(c *gin.Context) {
	var req dto.ListTenantsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BindError(c, err)
		return
	}

	result, err := h.tenantService.List(c.Request.Context(), tenancy.TenantFilter{
		Page:     req.Page,
		PageSize: req.PageSize,
		SortBy:   req.OrderBy,
		SortDir:  req.OrderDir,
		Keyword:  req.Search,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, result.Tenants, result.Total, result.Page, result.PageSize)
}

// Get godoc
// @Summary      Get a tenant by ID
// @Tags         tenants
// @Produce      json
// @Param        id path string true "Tenant ID" format(uuid)
// @Success      200 {object} dto.Response{data=tenancy.TenantDTO}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /admin/tenants/{id} [get]
func (h *TenantHandler) Get(c *gin.Context) {
	id, ok := h.tenantID(c)
	if !ok {
		return
	}
	t, err := h.tenantService.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, t)
}

// Update godoc
// @Summary      Update tenant attributes
// @Tags         tenants
// @Accept       json
// @Produce      json
// @Param        id      path string                  true "Tenant ID" format(uuid)
// @Param        request body dto.UpdateTenantRequest true "Fields to change"
// @Success      200 {object} dto.Response{data=tenancy.TenantDTO}
// @Router       /admin/tenants/{id} [put]
func (h *TenantHandler) Update(c *gin.Context) {
	id, ok := h.tenantID(c)
	if !ok {
		return
	}
	var req dto.UpdateTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	t, err := h.tenantService.Update(c.Request.Context(), tenancy.UpdateTenantInput{
		ID:                id,
		Name:              req.Name,
		Identifier:        req.Identifier,
		IsInternal:        req.IsInternal,
		AllowPublicConfig: req.AllowPublicConfig,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, t)
}

// SetConfig godoc
// @Summary      Set or clear one configuration key
// @Tags         tenants
// @Accept       json
// @Produce      json
// @Param        id      path string               true "Tenant ID" format(uuid)
// @Param        request body dto.SetConfigRequest true "Key and value; null clears"
// @Success      200 {object} dto.Response{data=tenancy.TenantDTO}
// @Router       /admin/tenants/{id}/config [put]
func (h *TenantHandler) SetConfig(c *gin.Context) {
	id, ok := h.tenantID(c)
	if !ok {
		return
	}
	var req dto.SetConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	t, err := h.tenantService.SetConfig(c.Request.Context(), id, req.Key, req.Value)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, t)
}

// SetVisibility godoc
// @Summary      Annotate a configuration key with a visibility level
// @Tags         tenants
// @Accept       json
// @Produce      json
// @Param        id      path string                   true "Tenant ID" format(uuid)
// @Param        request body dto.SetVisibilityRequest true "Key and level"
// @Success      200 {object} dto.Response{data=tenancy.TenantDTO}
// @Router       /admin/tenants/{id}/visibility [put]
func (h *TenantHandler) SetVisibility(c *gin.Context) {
	id, ok := h.tenantID(c)
	if !ok {
		return
	}
	var req dto.SetVisibilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	t, err := h.tenantService.SetVisibility(c.Request.Context(), id, req.Key, tenant.ParseVisibility(req.Level))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, t)
}

// Activate godoc
// @Summary      Activate a tenant
// @Tags         tenants
// @Param        id path string true "Tenant ID" format(uuid)
// @Success      200 {object} dto.Response{data=tenancy.TenantDTO}
// @Router       /admin/tenants/{id}/activate [post]
func (h *TenantHandler) Activate(c *gin.Context) {
	id, ok := h.tenantID(c)
	if !ok {
		return
	}
	t, err := h.tenantService.Activate(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, t)
}

// Deactivate godoc
// @Summary      Deactivate a tenant
// @Tags         tenants
// @Param        id path string true "Tenant ID" format(uuid)
// @Success      200 {object} dto.Response{data=tenancy.TenantDTO}
// @Router       /admin/tenants/{id}/deactivate [post]
func (h *TenantHandler) Deactivate(c *gin.Context) {
	id, ok := h.tenantID(c)
	if !ok {
		return
	}
	t, err := h.tenantService.Deactivate(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, t)
}

// Delete godoc
// @Summary      Soft-delete a tenant
// @Tags         tenants
// @Param        id path string true "Tenant ID" format(uuid)
// @Success      204
// @Router       /admin/tenants/{id} [delete]
func (h *TenantHandler) Delete(c *gin.Context) {
	id, ok := h.tenantID(c)
	if !ok {
		return
	}
	if err := h.tenantService.Delete(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// Restore godoc
// @Summary      Restore a soft-deleted tenant
// @Tags         tenants
// @Param        id path string true "Tenant ID" format(uuid)
// @Success      200 {object} dto.Response{data=tenancy.TenantDTO}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /admin/tenants/{id}/restore [post]
func (h *TenantHandler) Restore(c *gin.Context) {
	id, ok := h.tenantID(c)
	if !ok {
		return
	}
	t, err := h.tenantService.Restore(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, t)
}

func (h *TenantHandler) tenantID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return uuid.Nil, false
	}
	return id, true
}
