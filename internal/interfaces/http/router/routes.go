package router

import (
	"github.com/gin-gonic/gin"
	"github.com/tenancy/backend/internal/infrastructure/logger"
	"github.com/tenancy/backend/internal/interfaces/http/handler"
	"github.com/tenancy/backend/internal/interfaces/http/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

// EngineConfig holds everything needed to assemble the HTTP engine
type EngineConfig struct {
	Logger         *zap.Logger
	ServiceName    string // enables otelgin tracing when set
	TrustedProxies []string
	MaxBodySize    int64

	System  *handler.SystemHandler
	Config  *handler.ConfigHandler
	Tenants *handler.TenantHandler

	// Tenancy resolves and applies the tenant for every versioned API route.
	Tenancy         gin.HandlerFunc
	TrustedNetworks *middleware.TrustedNetworks
}

// NewEngine builds the gin engine. Probes live outside the tenancy
// middleware so they answer on any host.
func NewEngine(cfg EngineConfig) (*gin.Engine, error) {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	engine := gin.New()
	if len(cfg.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
			return nil, err
		}
	}

	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	if cfg.ServiceName != "" {
		engine.Use(otelgin.Middleware(cfg.ServiceName))
	}
	engine.Use(middleware.Secure())

	if cfg.System != nil {
		engine.GET("/health", cfg.System.Health)
		engine.GET("/ready", cfg.System.Ready)
		engine.GET("/info", cfg.System.Info)
	}

	var opts []RouterOption
	if cfg.Tenancy != nil {
		opts = append(opts, WithMiddleware(cfg.Tenancy))
	}
	r := NewRouter(engine, opts...)
	if cfg.Config != nil {
		r.Register(ConfigRoutes(cfg.Config, cfg.TrustedNetworks))
	}
	if cfg.Tenants != nil {
		r.Register(AdminRoutes(cfg.Tenants, cfg.TrustedNetworks, cfg.MaxBodySize))
	}
	r.Setup()
	return engine, nil
}

// ConfigRoutes serves the current tenant's configuration. The public view
// is open; everything else requires a trusted network.
func ConfigRoutes(h *handler.ConfigHandler, networks *middleware.TrustedNetworks) *DomainGroup {
	g := NewDomainGroup("tenant-config", "/tenant/config")
	g.Use(middleware.NoStore(h.OverrideHeader()))
	g.GET("/public", h.Public)

	trusted := g.Group("tenant-config-trusted", "")
	trusted.Use(middleware.TrustedNetworkOnly(networks))
	trusted.GET("/protected", h.Protected)
	trusted.GET("/all", middleware.RequireInternalTenant(), h.All)
	return g
}

// AdminRoutes manages tenants. Only internal tenants on a trusted network
// reach it, and handlers run with tenant scoping bypassed.
func AdminRoutes(h *handler.TenantHandler, networks *middleware.TrustedNetworks, maxBody int64) *DomainGroup {
	g := NewDomainGroup("tenants", "/admin/tenants")
	g.Use(
		middleware.TrustedNetworkOnly(networks),
		middleware.RequireInternalTenant(),
		middleware.BypassScope(),
	)
	if maxBody > 0 {
		g.Use(middleware.BodyLimit(maxBody))
	}

	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
	g.PUT("/:id/config", h.SetConfig)
	g.PUT("/:id/visibility", h.SetVisibility)
	g.POST("/:id/activate", h.Activate)
	g.POST("/:id/deactivate", h.Deactivate)
	g.POST("/:id/restore", h.Restore)
	return g
}
