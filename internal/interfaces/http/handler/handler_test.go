package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/tenancy/backend/internal/application/tenancy"
	"github.com/tenancy/backend/internal/domain/tenant"
	"github.com/tenancy/backend/internal/infrastructure/config"
	"github.com/tenancy/backend/internal/interfaces/http/dto"
	"github.com/tenancy/backend/internal/interfaces/http/middleware"
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
	return tenancy.NewResolutionService(tenancy.ResolutionServiceConfig{Resolvers: resolvers, Lookup: lookup})
}

func tenancyMiddleware(resolution *tenancy.ResolutionService) gin.HandlerFunc {
	return middleware.Tenancy(middleware.TenancyConfig{
		Resolution: resolution,
		Baseline:   config.NewRuntime(nil),
	})
}

type testResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *dto.ErrorInfo  `json:"error"`
	Meta    *dto.Meta       `json:"meta"`
}

func perform(t *testing.T, router http.Handler, method, url string, body any, headers map[string]string) (*httptest.ResponseRecorder, testResponse) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, url, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp testResponse
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	}
	return w, resp
}
