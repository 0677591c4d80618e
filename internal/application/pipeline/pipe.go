// Package pipeline overlays a resolved tenant's configuration onto the
// runtime configuration of a unit of work.
//
// A Pipeline is an ordered list of Pipes. Every run starts from the runtime
// baseline, so running it twice for the same tenant gives the same result
// and nothing from a previous tenant survives. Each Pipe copies the keys the
// tenant defines, fills in per-tenant defaults for keys it must not share,
// and invalidates the runtime sections it touched so the managers bound to
// them rebuild on next use.
package pipeline

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/tenancy/backend/internal/domain/tenant"
	"github.com/tenancy/backend/internal/infrastructure/config"
)

// Pipe is one step of the configuration pipeline
type Pipe interface {
	Name() string
	Apply(ctx context.Context, t *tenant.Tenant, cfg *config.Runtime) error
}

// CriticalPipe is implemented by pipes whose failure aborts the run
type CriticalPipe interface {
	Pipe
	Critical() bool
}

func isCritical(p Pipe) bool {
	c, ok := p.(CriticalPipe)
	return ok && c.Critical()
}

type criticalPipe struct {
	Pipe
}

func (criticalPipe) Critical() bool { return true }

// MarkCritical makes p abort the pipeline when it fails
func MarkCritical(p Pipe) Pipe {
	return criticalPipe{Pipe: p}
}

// Check validates a tenant value before it is copied
type Check func(value any) error

// Mapping copies the tenant key From to the runtime key To
type Mapping struct {
	From  string
	To    string
	Check Check
}

// Same maps each key onto the identical runtime key
func Same(check Check, keys ...string) []Mapping {
	out := make([]Mapping, 0, len(keys))
	for _, k := range keys {
		out = append(out, Mapping{From: k, To: k, Check: check})
	}
	return out
}

// CopyMappings copies every mapped key the tenant or one of its ancestors
// defines. Keys the tenant leaves unset keep their runtime value. All values
// are checked before anything is written, so a malformed value leaves the
// runtime untouched. It reports whether anything was copied.
func CopyMappings(t *tenant.Tenant, cfg *config.Runtime, mappings []Mapping) (bool, error) {
	type write struct {
		key   string
		value any
	}
	var writes []write
	for _, m := range mappings {
		if !t.HasConfig(m.From) {
			continue
		}
		value := t.GetConfig(m.From, nil)
		if value == nil {
			continue
		}
		if m.Check != nil {
			if err := m.Check(value); err != nil {
				return false, fmt.Errorf("%s: %w", m.From, err)
			}
		}
		writes = append(writes, write{key: m.To, value: value})
	}
	for _, w := range writes {
		cfg.Set(w.key, w.value)
	}
	return len(writes) > 0, nil
}

// IsString accepts strings
func IsString(v any) error {
	if _, ok := v.(string); !ok {
		return fmt.Errorf("expected a string, got %T", v)
	}
	return nil
}

// IsInt accepts whole numbers, including JSON numbers
func IsInt(v any) error {
	switch n := v.(type) {
	case int, int64:
		return nil
	case float64:
		if n != float64(int64(n)) {
			return fmt.Errorf("expected a whole number, got %v", n)
		}
		return nil
	default:
		return fmt.Errorf("expected a number, got %T", v)
	}
}

// IsBool accepts booleans
func IsBool(v any) error {
	if _, ok := v.(bool); !ok {
		return fmt.Errorf("expected a boolean, got %T", v)
	}
	return nil
}

// IsDuration accepts duration strings ("90s") and whole seconds
func IsDuration(v any) error {
	if s, ok := v.(string); ok {
		if _, err := time.ParseDuration(s); err != nil {
			return fmt.Errorf("invalid duration %q", s)
		}
		return nil
	}
	return IsInt(v)
}

// IsURL accepts absolute URLs
func IsURL(v any) error {
	s, ok := v.(string)
	if !ok {
		return fmt.Errorf("expected a URL string, got %T", v)
	}
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid URL %q", s)
	}
	return nil
}
