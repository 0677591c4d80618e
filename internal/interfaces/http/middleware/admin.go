package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tenancy/backend/internal/interfaces/http/dto"
)

// RequireInternalTenant only lets requests resolved to an internal tenant through
func RequireInternalTenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		t := CurrentTenant(c)
		if t == nil {
			abortWithError(c, http.StatusNotFound, dto.ErrCodeTenantNotFound, "Tenant not found")
			return
		}
		if !t.IsInternal {
			abortWithError(c, http.StatusForbidden, dto.ErrCodeForbidden, "Only internal tenants may use this endpoint")
			return
		}
		c.Next()
	}
}

// BypassScope lifts tenant scoping for the rest of the request. Admin routes
// use it to manage records of every tenant.
func BypassScope() gin.HandlerFunc {
	return func(c *gin.Context) {
		tc := GetTenantContext(c)
		if tc == nil {
			abortWithError(c, http.StatusInternalServerError, dto.ErrCodeInternal, "Tenant context missing")
			return
		}
		tc.Bypass()
		defer tc.ClearBypass()
		c.Next()
	}
}
