package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tenancy/backend/internal/application/pipeline"
	"github.com/tenancy/backend/internal/application/tenancy"
	"github.com/tenancy/backend/internal/domain/tenant"
	"github.com/tenancy/backend/internal/domain/tenant/tenanttest"
	"github.com/tenancy/backend/internal/infrastructure/config"
	"github.com/tenancy/backend/internal/infrastructure/logger"
	"github.com/tenancy/backend/internal/infrastructure/services"
	"github.com/tenancy/backend/internal/interfaces/http/dto"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTenant(t *testing.T, identifier string, cfg tenant.Tree, opts ...tenant.Option) *tenant.Tenant {
	t.Helper()
	tn, err := tenant.NewTenant(identifier, identifier, append(opts, tenant.WithConfig(cfg))...)
	require.NoError(t, err)
	return tn
}

func newResolution(t *testing.T, repo tenant.Repository) *tenancy.ResolutionService {
	t.Helper()
	lookup := tenancy.NewTenantLookup(repo, nil)
	resolvers, err := tenancy.DefaultResolverRegistry().Build([]string{tenancy.ResolverDomain}, tenancy.ResolverOptions{Lookup: lookup})
	require.NoError(t, err)
	return tenancy.NewResolutionService(tenancy.ResolutionServiceConfig{
		Resolvers: resolvers,
		Lookup:    lookup,
		Skip:      tenancy.SkipPaths("/health"),
	})
}

func newBaseline() *config.Runtime {
	return config.NewRuntime(map[string]any{
		"app":   map[string]any{"name": "Platform", "url": "https://platform.example.com"},
		"cache": map[string]any{"driver": "memory", "prefix": "platform", "ttl": "5m"},
	})
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) *dto.ErrorInfo {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	return resp.Error
}

func TestTenancy_ResolvesAndAppliesConfiguration(t *testing.T) {
	acme := newTenant(t, "acme.example.com", tenant.Tree{"app": map[string]any{"name": "Acme"}})
	pools, err := services.NewPools(nil, 1<<20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pools.Close() })

	pipes, err := pipeline.DefaultRegistry().Build([]string{pipeline.PipeCore, pipeline.PipeCache}, nil)
	require.NoError(t, err)

	router := gin.New()
	router.Use(Tenancy(TenancyConfig{
		Resolution: newResolution(t, tenanttest.NewRepository(acme)),
		Pipeline:   pipeline.New(pipes),
		Baseline:   newBaseline(),
		Pools:      pools,
	}))

	var (
		tc       *tenancy.Context
		rt       *config.Runtime
		prefix   string
		logged   string
		fromUnit *services.Unit
	)
	router.GET("/api/v1/ping", func(c *gin.Context) {
		tc = GetTenantContext(c)
		unit := GetUnit(c)
		rt = unit.Config
		store, err := unit.Cache.Store()
		require.NoError(t, err)
		prefix = store.Prefix()
		logged = logger.GetTenantID(c.Request.Context())
		fromUnit = services.FromContext(c.Request.Context())
		assert.Same(t, acme, CurrentTenant(c))
		assert.Same(t, tc, tenancy.FromContext(c.Request.Context()))
		assert.Equal(t, "Acme", rt.GetString("app.name", ""))
		assert.Equal(t, tenancy.ResolverDomain, GetResolution(c).Resolver)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://ACME.example.com:8080/api/v1/ping", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "tenant_"+acme.PublicID, prefix)
	assert.Equal(t, acme.PublicID, logged)
	assert.NotNil(t, fromUnit)

	// the unit is torn down once the request is done
	assert.Nil(t, tc.Current())
	assert.Equal(t, "Platform", rt.GetString("app.name", ""))
	assert.Equal(t, "platform", rt.GetString("cache.prefix", ""))
}

func TestTenancy_NotFoundPolicies(t *testing.T) {
	tests := []struct {
		name         string
		cfg          TenancyConfig
		wantStatus   int
		wantHandler  bool
		wantLocation string
		wantCode     string
	}{
		{
			name:       "reject by default",
			wantStatus: http.StatusNotFound,
			wantCode:   dto.ErrCodeTenantNotFound,
		},
		{
			name:         "redirect",
			cfg:          TenancyConfig{NotFound: NotFoundRedirect, RedirectURL: "https://example.com/signup"},
			wantStatus:   http.StatusFound,
			wantLocation: "https://example.com/signup",
		},
		{
			name: "custom",
			cfg: TenancyConfig{NotFound: NotFoundCustom, OnNotFound: func(c *gin.Context) {
				c.String(http.StatusTeapot, "who are you")
			}},
			wantStatus: http.StatusTeapot,
		},
		{
			name:        "allow",
			cfg:         TenancyConfig{NotFound: NotFoundAllow},
			wantStatus:  http.StatusOK,
			wantHandler: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			cfg.Resolution = newResolution(t, tenanttest.NewRepository())
			cfg.Baseline = newBaseline()
			require.NoError(t, cfg.Validate())

			router := gin.New()
			router.Use(Tenancy(cfg))
			called := false
			router.GET("/page", func(c *gin.Context) {
				called = true
				assert.Nil(t, CurrentTenant(c))
				c.Status(http.StatusOK)
			})

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://unknown.example.com/page", nil))

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantHandler, called)
			if tt.wantLocation != "" {
				assert.Equal(t, tt.wantLocation, w.Header().Get("Location"))
			}
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, decodeError(t, w).Code)
			}
		})
	}
}

func TestTenancy_SkippedPathsPassThrough(t *testing.T) {
	router := gin.New()
	router.Use(Tenancy(TenancyConfig{
		Resolution: newResolution(t, tenanttest.NewRepository()),
		Baseline:   newBaseline(),
	}))
	router.GET("/health", func(c *gin.Context) {
		assert.True(t, GetResolution(c).Skipped)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://unknown.example.com/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTenancy_LookupErrorIsInternal(t *testing.T) {
	repo := tenanttest.NewRepository()
	repo.Err = errors.New("connection refused")

	router := gin.New()
	router.Use(Tenancy(TenancyConfig{Resolution: newResolution(t, repo), Baseline: newBaseline()}))
	router.GET("/page", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://acme.example.com/page", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, dto.ErrCodeInternal, decodeError(t, w).Code)
}

type failingPipe struct{}

func (failingPipe) Name() string { return "failing" }

func (failingPipe) Apply(context.Context, *tenant.Tenant, *config.Runtime) error {
	return errors.New("unreachable database")
}

func TestTenancy_PipelineFailures(t *testing.T) {
	acme := newTenant(t, "acme.example.com", nil)

	for _, critical := range []bool{false, true} {
		var p pipeline.Pipe = failingPipe{}
		if critical {
			p = pipeline.MarkCritical(p)
		}
		router := gin.New()
		router.Use(Tenancy(TenancyConfig{
			Resolution: newResolution(t, tenanttest.NewRepository(acme)),
			Pipeline:   pipeline.New([]pipeline.Pipe{p}),
			Baseline:   newBaseline(),
		}))
		router.GET("/page", func(c *gin.Context) { c.Status(http.StatusOK) })

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://acme.example.com/page", nil))
		if critical {
			assert.Equal(t, http.StatusServiceUnavailable, w.Code)
			assert.Equal(t, dto.ErrCodeTenantConfiguration, decodeError(t, w).Code)
		} else {
			assert.Equal(t, http.StatusOK, w.Code)
		}
	}
}

func TestTenancyConfig_Validate(t *testing.T) {
	assert.NoError(t, TenancyConfig{}.Validate())
	assert.Error(t, TenancyConfig{NotFound: NotFoundRedirect}.Validate())
	assert.Error(t, TenancyConfig{NotFound: NotFoundCustom}.Validate())
	assert.Error(t, TenancyConfig{NotFound: "ignore"}.Validate())
}

func TestRequireTenant(t *testing.T) {
	router := gin.New()
	router.Use(Tenancy(TenancyConfig{
		Resolution: newResolution(t, tenanttest.NewRepository()),
		Baseline:   newBaseline(),
		NotFound:   NotFoundAllow,
	}))
	router.GET("/open", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/closed", RequireTenant(), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://nobody.example.com/open", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://nobody.example.com/closed", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
