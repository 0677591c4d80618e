package dto

import "net/http"

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	ErrCodeUnknown  = "ERR_UNKNOWN"
	ErrCodeInternal = "ERR_INTERNAL"
)

// Validation and input error codes
const (
	ErrCodeValidation   = "ERR_VALIDATION"
	ErrCodeBadRequest   = "ERR_BAD_REQUEST"
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
	ErrCodeInvalidJSON  = "ERR_INVALID_JSON"
)

// Access error codes
const (
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	// ErrCodeForbidden is used when the caller is not allowed to see the resource
	ErrCodeForbidden = "ERR_FORBIDDEN"
	// ErrCodeUntrustedNetwork is used when the caller's address is outside the trusted networks
	ErrCodeUntrustedNetwork = "ERR_UNTRUSTED_NETWORK"
)

// Resource error codes
const (
	ErrCodeNotFound            = "ERR_NOT_FOUND"
	ErrCodeAlreadyExists       = "ERR_ALREADY_EXISTS"
	ErrCodeConflict            = "ERR_CONFLICT"
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
	ErrCodeInvalidState        = "ERR_INVALID_STATE"
	ErrCodeNotSupported        = "ERR_NOT_SUPPORTED"
)

// Tenancy error codes
const (
	// ErrCodeTenantNotFound is used when no active tenant matches the request or override
	ErrCodeTenantNotFound = "ERR_TENANT_NOT_FOUND"
	// ErrCodePublicConfigDisabled is used when the tenant does not expose public configuration
	ErrCodePublicConfigDisabled = "ERR_PUBLIC_CONFIG_DISABLED"
	// ErrCodeCrossTenant is used when a write targets another tenant's record
	ErrCodeCrossTenant = "ERR_CROSS_TENANT"
	// ErrCodeNoTenant is used when a tenant-scoped operation runs without a tenant
	ErrCodeNoTenant = "ERR_NO_TENANT"
	// ErrCodeIdentifierTaken is used when an active tenant already owns the identifier
	ErrCodeIdentifierTaken = "ERR_IDENTIFIER_TAKEN"
	// ErrCodeInvalidTenantConfig is used when tenant configuration fails validation
	ErrCodeInvalidTenantConfig = "ERR_INVALID_TENANT_CONFIG"
	// ErrCodeTenantConfiguration is used when the configuration pipeline aborted
	ErrCodeTenantConfiguration = "ERR_TENANT_CONFIGURATION"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	ErrCodeValidation:   http.StatusBadRequest,
	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeInvalidInput: http.StatusBadRequest,
	ErrCodeInvalidJSON:  http.StatusBadRequest,

	ErrCodeUnauthorized:     http.StatusUnauthorized,
	ErrCodeForbidden:        http.StatusForbidden,
	ErrCodeUntrustedNetwork: http.StatusForbidden,

	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,
	ErrCodeInvalidState:        http.StatusUnprocessableEntity,
	ErrCodeNotSupported:        http.StatusNotImplemented,

	ErrCodeTenantNotFound:       http.StatusNotFound,
	ErrCodePublicConfigDisabled: http.StatusForbidden,
	ErrCodeCrossTenant:          http.StatusForbidden,
	ErrCodeNoTenant:             http.StatusBadRequest,
	ErrCodeIdentifierTaken:      http.StatusConflict,
	ErrCodeInvalidTenantConfig:  http.StatusUnprocessableEntity,
	ErrCodeTenantConfiguration:  http.StatusServiceUnavailable,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps domain error codes to API error codes
var DomainErrorCodeMapping = map[string]string{
	"NOT_FOUND":               ErrCodeNotFound,
	"ALREADY_EXISTS":          ErrCodeAlreadyExists,
	"INVALID_INPUT":           ErrCodeInvalidInput,
	"INVALID_STATE":           ErrCodeInvalidState,
	"UNAUTHORIZED":            ErrCodeUnauthorized,
	"FORBIDDEN":               ErrCodeForbidden,
	"NOT_SUPPORTED":           ErrCodeNotSupported,
	"CONCURRENCY_CONFLICT":    ErrCodeConcurrencyConflict,
	"TENANT_NOT_FOUND":        ErrCodeTenantNotFound,
	"PUBLIC_CONFIG_DISABLED":  ErrCodePublicConfigDisabled,
	"CROSS_TENANT":            ErrCodeCrossTenant,
	"DISCRIMINATOR_IMMUTABLE": ErrCodeCrossTenant,
	"NO_TENANT":               ErrCodeNoTenant,
	"IDENTIFIER_TAKEN":        ErrCodeIdentifierTaken,
	"INVALID_TENANT_CONFIG":   ErrCodeInvalidTenantConfig,
	"RESERVED_CONFIG_KEY":     ErrCodeInvalidInput,
	"EMPTY_CONFIG_KEY":        ErrCodeInvalidInput,
	"PARENT_CYCLE":            ErrCodeInvalidInput,
	"INVALID_PARENT":          ErrCodeInvalidInput,
	"INVALID_IDENTIFIER":      ErrCodeValidation,
	"INVALID_NAME":            ErrCodeValidation,
	"ALREADY_ACTIVE":          ErrCodeInvalidState,
	"ALREADY_INACTIVE":        ErrCodeInvalidState,
	"ALREADY_DELETED":         ErrCodeInvalidState,
	"NOT_DELETED":             ErrCodeInvalidState,
}

// NormalizeErrorCode converts a domain error code to its API error code.
// Codes already in API form, or unknown, are returned as-is.
func NormalizeErrorCode(code string) string {
	if apiCode, ok := DomainErrorCodeMapping[code]; ok {
		return apiCode
	}
	return code
}
