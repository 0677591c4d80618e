package dto

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tenancy/backend/internal/domain/shared"
	"github.com/tenancy/backend/internal/domain/tenant"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code     string
		expected int
	}{
		{ErrCodeInternal, http.StatusInternalServerError},
		{ErrCodeValidation, http.StatusBadRequest},
		{ErrCodeForbidden, http.StatusForbidden},
		{ErrCodeUntrustedNetwork, http.StatusForbidden},
		{ErrCodeNotFound, http.StatusNotFound},
		{ErrCodeTenantNotFound, http.StatusNotFound},
		{ErrCodePublicConfigDisabled, http.StatusForbidden},
		{ErrCodeCrossTenant, http.StatusForbidden},
		{ErrCodeIdentifierTaken, http.StatusConflict},
		{ErrCodeInvalidTenantConfig, http.StatusUnprocessableEntity},
		{ErrCodeTenantConfiguration, http.StatusServiceUnavailable},
		{ErrCodeNotSupported, http.StatusNotImplemented},
		// Unknown code should return 500
		{"UNKNOWN_CODE", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetHTTPStatus(tt.code))
		})
	}
}

func TestNormalizeErrorCode_DomainErrors(t *testing.T) {
	tests := []struct {
		err      *shared.DomainError
		expected string
	}{
		{tenant.ErrTenantNotFound, ErrCodeTenantNotFound},
		{tenant.ErrPublicConfigDisabled, ErrCodePublicConfigDisabled},
		{tenant.ErrCrossTenant, ErrCodeCrossTenant},
		{tenant.ErrDiscriminatorImmutable, ErrCodeCrossTenant},
		{tenant.ErrNoTenant, ErrCodeNoTenant},
		{tenant.ErrIdentifierTaken, ErrCodeIdentifierTaken},
		{tenant.ErrInvalidConfig, ErrCodeInvalidTenantConfig},
		{shared.ErrForbidden, ErrCodeForbidden},
		{shared.ErrNotSupported, ErrCodeNotSupported},
	}

	for _, tt := range tests {
		t.Run(tt.err.Code, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeErrorCode(tt.err.Code))
		})
	}
	assert.Equal(t, ErrCodeNotFound, NormalizeErrorCode(ErrCodeNotFound))
	assert.Equal(t, "CUSTOM_ERROR", NormalizeErrorCode("CUSTOM_ERROR"))
}

func TestDomainErrorCodeMapping_AllMapped(t *testing.T) {
	for domainCode, apiCode := range DomainErrorCodeMapping {
		_, ok := ErrorCodeHTTPStatus[apiCode]
		assert.True(t, ok, "%s maps to %s which has no HTTP status", domainCode, apiCode)
	}
}

func TestNewValidationErrorResponse(t *testing.T) {
	resp := NewValidationErrorResponse(ErrCodeInvalidTenantConfig, "Tenant configuration is invalid", "req-1",
		[]FieldDetail{{Field: "app.url", Message: "is required"}})

	data, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"success": false,
		"error": {
			"code": "ERR_INVALID_TENANT_CONFIG",
			"message": "Tenant configuration is invalid",
			"request_id": "req-1",
			"details": [{"field": "app.url", "message": "is required"}]
		}
	}`, string(data))
}

func TestNewSuccessResponseWithMeta(t *testing.T) {
	resp := NewSuccessResponseWithMeta([]string{"a"}, 45, 2, 20)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, 3, resp.Meta.TotalPages)
	assert.True(t, resp.Success)

	resp = NewSuccessResponseWithMeta(nil, 0, 1, 0)
	assert.Equal(t, 0, resp.Meta.TotalPages)
}
