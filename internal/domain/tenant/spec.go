package tenant

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/tenancy/backend/internal/domain/shared"
)

// ConfigRule describes one constrained configuration key. Tag uses the
// validator tag syntax ("url", "email", "hostname", ...).
type ConfigRule struct {
	Key      string
	Required bool
	Tag      string
}

// ConfigSpec validates a tenant's resolved configuration before the tenant is
// persisted.
type ConfigSpec struct {
	rules    []ConfigRule
	validate *validator.Validate
}

// DefaultConfigSpec requires the application URLs every tenant needs.
func DefaultConfigSpec() *ConfigSpec {
	return NewConfigSpec(
		ConfigRule{Key: "app.url", Required: true, Tag: "url"},
		ConfigRule{Key: "app.frontend_url", Required: true, Tag: "url"},
		ConfigRule{Key: "mail.from.address", Tag: "email"},
		ConfigRule{Key: "database.host", Tag: "hostname_rfc1123|ip"},
	)
}

// NewConfigSpec creates a spec from rules.
func NewConfigSpec(rules ...ConfigRule) *ConfigSpec {
	return &ConfigSpec{rules: rules, validate: validator.New()}
}

// Rules returns the configured rules.
func (s *ConfigSpec) Rules() []ConfigRule {
	return append([]ConfigRule(nil), s.rules...)
}

// ConfigFieldError is a single failed rule.
type ConfigFieldError struct {
	Key     string `json:"key"`
	Message string `json:"message"`
}

// ConfigValidationError lists every failed rule. It matches ErrInvalidConfig
// with errors.Is.
type ConfigValidationError struct {
	Fields []ConfigFieldError
}

func (e *ConfigValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Key+": "+f.Message)
	}
	return "tenant configuration is invalid: " + strings.Join(parts, "; ")
}

// Is implements errors.Is.
func (e *ConfigValidationError) Is(target error) bool {
	de, ok := target.(*shared.DomainError)
	return ok && de.Code == ErrInvalidConfig.Code
}

// Validate checks the tenant's resolved configuration, inheritance included.
func (s *ConfigSpec) Validate(t *Tenant) error {
	return s.ValidateTree(t.GetResolvedConfig())
}

// ValidateTree checks a configuration tree against the rules.
func (s *ConfigSpec) ValidateTree(cfg Tree) error {
	var fields []ConfigFieldError
	for _, rule := range s.rules {
		value, ok := GetPath(cfg, rule.Key)
		if !ok {
			if rule.Required {
				fields = append(fields, ConfigFieldError{Key: rule.Key, Message: "is required"})
			}
			continue
		}
		if rule.Tag == "" {
			continue
		}
		str, isString := value.(string)
		if !isString {
			fields = append(fields, ConfigFieldError{Key: rule.Key, Message: fmt.Sprintf("must be a string, got %T", value)})
			continue
		}
		if str == "" && !rule.Required {
			continue
		}
		if err := s.validate.Var(str, rule.Tag); err != nil {
			fields = append(fields, ConfigFieldError{Key: rule.Key, Message: "failed '" + rule.Tag + "' validation"})
		}
	}
	if len(fields) == 0 {
		return nil
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].Key < fields[j].Key })
	return &ConfigValidationError{Fields: fields}
}
