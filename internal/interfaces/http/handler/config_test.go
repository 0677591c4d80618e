package handler

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tenancy/backend/internal/application/tenancy"
	"github.com/tenancy/backend/internal/domain/tenant"
	"github.com/tenancy/backend/internal/domain/tenant/tenanttest"
	"github.com/tenancy/backend/internal/interfaces/http/dto"
)

func newConfigRouter(t *testing.T) *gin.Engine {
	t.Helper()
	acme := newTenant(t, "acme.example.com", tenant.Tree{
		"app": map[string]any{"name": "Acme", "support": "help@acme.example.com", "secret": "s3cr3t"},
		"_visibility": map[string]any{
			"app": map[string]any{"name": "PUBLIC", "support": "PROTECTED", "secret": "PRIVATE"},
		},
	}, tenant.WithPublicConfig(true))
	beta := newTenant(t, "beta.example.com", tenant.Tree{
		"app":         map[string]any{"name": "Beta"},
		"_visibility": map[string]any{"app": map[string]any{"name": "PUBLIC"}},
	})
	ops := newTenant(t, "ops.example.com", nil, tenant.WithInternal(true))

	repo := tenanttest.NewRepository(acme, beta, ops)
	resolution := newResolution(t, repo)
	h := NewConfigHandler(tenancy.NewConfigService(tenancy.ConfigServiceConfig{
		Repository: repo,
		Resolution: resolution,
	}), "", nil)

	router := gin.New()
	router.Use(tenancyMiddleware(resolution))
	router.GET("/tenant/config/public", h.Public)
	router.GET("/tenant/config/protected", h.Protected)
	router.GET("/tenant/config/all", h.All)
	return router
}

func decodeTree(t *testing.T, raw json.RawMessage) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestConfigHandler_Public(t *testing.T) {
	router := newConfigRouter(t)

	w, resp := perform(t, router, http.MethodGet, "http://acme.example.com/tenant/config/public", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{"app": map[string]any{"name": "Acme"}}, decodeTree(t, resp.Data))

	w, resp = perform(t, router, http.MethodGet, "http://beta.example.com/tenant/config/public", nil, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, dto.ErrCodePublicConfigDisabled, resp.Error.Code)
}

func TestConfigHandler_Protected(t *testing.T) {
	router := newConfigRouter(t)

	w, resp := perform(t, router, http.MethodGet, "http://acme.example.com/tenant/config/protected", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{"app": map[string]any{
		"name":    "Acme",
		"support": "help@acme.example.com",
	}}, decodeTree(t, resp.Data))
	assert.NotContains(t, string(resp.Data), "s3cr3t")
	assert.NotContains(t, string(resp.Data), "_visibility")
}

func TestConfigHandler_Override(t *testing.T) {
	router := newConfigRouter(t)
	override := map[string]string{DefaultOverrideHeader: "acme.example.com"}

	// internal callers may read another tenant
	w, resp := perform(t, router, http.MethodGet, "http://ops.example.com/tenant/config/protected", nil, override)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Acme", decodeTree(t, resp.Data)["app"].(map[string]any)["name"])

	// customers may not
	w, resp = perform(t, router, http.MethodGet, "http://beta.example.com/tenant/config/protected", nil, override)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, dto.ErrCodeForbidden, resp.Error.Code)

	// an unknown target fails closed instead of returning the caller's own config
	w, resp = perform(t, router, http.MethodGet, "http://ops.example.com/tenant/config/protected", nil,
		map[string]string{DefaultOverrideHeader: "ghost.example.com"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, dto.ErrCodeTenantNotFound, resp.Error.Code)
}

func TestConfigHandler_All(t *testing.T) {
	router := newConfigRouter(t)

	w, resp := perform(t, router, http.MethodGet, "http://ops.example.com/tenant/config/all", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	all := decodeTree(t, resp.Data)
	assert.Len(t, all, 3)
	assert.Equal(t, map[string]any{"app": map[string]any{"name": "Beta"}}, all["beta.example.com"])

	w, resp = perform(t, router, http.MethodGet, "http://acme.example.com/tenant/config/all", nil, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, dto.ErrCodeForbidden, resp.Error.Code)
}
