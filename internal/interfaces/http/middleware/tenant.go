package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tenancy/backend/internal/application/pipeline"
	"github.com/tenancy/backend/internal/application/tenancy"
	"github.com/tenancy/backend/internal/domain/tenant"
	"github.com/tenancy/backend/internal/infrastructure/config"
	"github.com/tenancy/backend/internal/infrastructure/logger"
	"github.com/tenancy/backend/internal/infrastructure/services"
	"github.com/tenancy/backend/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// Gin keys set by the tenancy middleware
const (
	ResolutionKey    = "tenancy.resolution"
	TenantContextKey = "tenancy.context"
	UnitKey          = "tenancy.unit"
)

// Not-found policies
const (
	NotFoundReject   = "reject"
	NotFoundRedirect = "redirect"
	NotFoundCustom   = "custom"
	NotFoundAllow    = "allow"
)

// TenancyConfig holds the tenancy middleware dependencies
type TenancyConfig struct {
	Resolution *tenancy.ResolutionService
	// Pipeline overlays the resolved tenant's configuration. Nil skips it.
	Pipeline *pipeline.Pipeline
	// Baseline is forked once per request
	Baseline *config.Runtime
	// Pools binds the request's service managers. Nil leaves them unbound.
	Pools *services.Pools
	// NotFound is one of reject, redirect, custom, allow. Empty means reject.
	NotFound    string
	RedirectURL string
	// OnNotFound handles unknown tenants under the custom policy
	OnNotFound gin.HandlerFunc
	Logger     *zap.Logger
}

// Validate checks the not-found policy settings
func (cfg TenancyConfig) Validate() error {
	switch cfg.NotFound {
	case "", NotFoundReject, NotFoundAllow:
	case NotFoundRedirect:
		if cfg.RedirectURL == "" {
			return errors.New("not-found policy redirect needs a redirect url")
		}
	case NotFoundCustom:
		if cfg.OnNotFound == nil {
			return errors.New("not-found policy custom needs a handler")
		}
	default:
		return fmt.Errorf("unknown not-found policy %q", cfg.NotFound)
	}
	return nil
}

// Tenancy makes every request a unit of work: a fresh tenant context, a
// private fork of the baseline configuration and, when a tenant resolves,
// that tenant's configuration applied through the pipeline. Both are reset
// once the request has been handled.
func Tenancy(cfg TenancyConfig) gin.HandlerFunc {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context) {
		_ = tenancy.RunUnit(c.Request.Context(), cfg.Baseline, func(ctx context.Context, u *tenancy.Unit) error {
			serveUnit(ctx, c, u, cfg, log)
			return nil
		})
	}
}

func serveUnit(ctx context.Context, c *gin.Context, u *tenancy.Unit, cfg TenancyConfig, log *zap.Logger) {
	var unit *services.Unit
	if cfg.Pools != nil {
		unit = cfg.Pools.Bind(u.Config)
		ctx = services.WithUnit(ctx, unit)
		c.Set(UnitKey, unit)
	}
	c.Set(TenantContextKey, u.Context)

	res, err := cfg.Resolution.Resolve(ctx, c.Request)
	if err != nil {
		log.Error("Tenant resolution failed",
			zap.String("host", c.Request.Host),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err))
		abortWithError(c, http.StatusInternalServerError, dto.ErrCodeInternal, "Tenant resolution failed")
		return
	}
	c.Set(ResolutionKey, res)

	if !res.Found() && !res.Skipped {
		if !applyNotFound(c, cfg) {
			return
		}
	}

	if t := res.Tenant; t != nil {
		u.Context.SetCurrent(t)
		if cfg.Pipeline != nil {
			if err := cfg.Pipeline.Run(ctx, t, u.Config); err != nil {
				var result *pipeline.Result
				if errors.As(err, &result) && result.Aborted {
					abortWithError(c, http.StatusServiceUnavailable, dto.ErrCodeTenantConfiguration, "Tenant configuration could not be applied")
					return
				}
			}
		}
		ctx, _ = logger.WithTenant(ctx, logger.FromContext(ctx), t.PublicID, t.Identifier)
	}

	c.Request = c.Request.WithContext(ctx)
	c.Next()
}

// applyNotFound enforces the not-found policy and reports whether the
// request may continue without a tenant.
func applyNotFound(c *gin.Context, cfg TenancyConfig) bool {
	switch cfg.NotFound {
	case NotFoundAllow:
		return true
	case NotFoundRedirect:
		c.Redirect(http.StatusFound, cfg.RedirectURL)
		c.Abort()
	case NotFoundCustom:
		cfg.OnNotFound(c)
		c.Abort()
	default:
		abortWithError(c, http.StatusNotFound, dto.ErrCodeTenantNotFound, "Tenant not found")
	}
	return false
}

// GetTenantContext returns the request's tenant context
func GetTenantContext(c *gin.Context) *tenancy.Context {
	if v, ok := c.Get(TenantContextKey); ok {
		if tc, ok := v.(*tenancy.Context); ok {
			return tc
		}
	}
	return nil
}

// CurrentTenant returns the request's resolved tenant, or nil
func CurrentTenant(c *gin.Context) *tenant.Tenant {
	return GetTenantContext(c).Current()
}

// GetResolution returns how the request's tenant was resolved
func GetResolution(c *gin.Context) *tenancy.Resolution {
	if v, ok := c.Get(ResolutionKey); ok {
		if res, ok := v.(*tenancy.Resolution); ok {
			return res
		}
	}
	return nil
}

// GetUnit returns the request's bound service managers, or nil
func GetUnit(c *gin.Context) *services.Unit {
	if v, ok := c.Get(UnitKey); ok {
		if u, ok := v.(*services.Unit); ok {
			return u
		}
	}
	return nil
}

// RequireTenant rejects requests that resolved no tenant. Used on routes
// mounted under the allow policy.
func RequireTenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentTenant(c) == nil {
			abortWithError(c, http.StatusNotFound, dto.ErrCodeTenantNotFound, "Tenant not found")
			return
		}
		c.Next()
	}
}
