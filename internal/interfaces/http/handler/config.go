package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/tenancy/backend/internal/application/tenancy"
	"github.com/tenancy/backend/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// DefaultOverrideHeader names the tenant an internal caller wants to read
const DefaultOverrideHeader = "X-Tenant-Override"

// ConfigHandler serves the resolved tenant's visibility-filtered configuration
type ConfigHandler struct {
	BaseHandler
	service        *tenancy.ConfigService
	overrideHeader string
}

// NewConfigHandler creates a new ConfigHandler. An empty overrideHeader
// uses DefaultOverrideHeader.
func NewConfigHandler(service *tenancy.ConfigService, overrideHeader string, logger *zap.Logger) *ConfigHandler {
	if overrideHeader == "" {
		overrideHeader = DefaultOverrideHeader
	}
	return &ConfigHandler{
		BaseHandler:    BaseHandler{Logger: logger},
		service:        service,
		overrideHeader: overrideHeader,
	}
}

// OverrideHeader returns the header read for cross-tenant reads
func (h *ConfigHandler) OverrideHeader() string {
	return h.overrideHeader
}

// Public godoc
// @Summary      Get public tenant configuration
// @Description  Configuration keys annotated PUBLIC, for unauthenticated clients
// @Tags         tenant-config
// @Produce      json
// @Success      200 {object} dto.Response
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /tenant/config/public [get]
func (h *ConfigHandler) Public(c *gin.Context) {
	target, err := h.service.Target(c.Request.Context(), middleware.CurrentTenant(c), c.GetHeader(h.overrideHeader))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	cfg, err := h.service.PublicConfig(target)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, cfg)
}

// Protected godoc
// @Summary      Get protected tenant configuration
// @Description  Configuration keys annotated PUBLIC or PROTECTED, for trusted networks
// @Tags         tenant-config
// @Produce      json
// @Success      200 {object} dto.Response
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /tenant/config/protected [get]
func (h *ConfigHandler) Protected(c *gin.Context) {
	target, err := h.service.Target(c.Request.Context(), middleware.CurrentTenant(c), c.GetHeader(h.overrideHeader))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	cfg, err := h.service.ProtectedConfig(target)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, cfg)
}

// All godoc
// @Summary      Get protected configuration of every tenant
// @Description  Keyed by identifier. Internal tenants on trusted networks only.
// @Tags         tenant-config
// @Produce      json
// @Success      200 {object} dto.Response
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /tenant/config/all [get]
func (h *ConfigHandler) All(c *gin.Context) {
	all, err := h.service.AllProtectedConfig(c.Request.Context(), middleware.CurrentTenant(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, all)
}
