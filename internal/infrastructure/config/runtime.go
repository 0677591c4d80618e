package config

import (
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/tenancy/backend/internal/domain/tenant"
)

// Runtime is the configuration tree a unit of work reads from. It starts as a
// copy of the process baseline and is overlaid by the configuration pipeline.
// Each unit of work gets its own Runtime from Fork, so tenant overrides never
// leak into concurrent or later units.
type Runtime struct {
	mu          sync.RWMutex
	baseline    tenant.Tree
	values      tenant.Tree
	subscribers map[string][]func()
}

// NewRuntime creates a runtime whose baseline is a copy of tree.
func NewRuntime(tree map[string]any) *Runtime {
	base := tenant.CloneTree(tree)
	if base == nil {
		base = tenant.Tree{}
	}
	return &Runtime{
		baseline:    base,
		values:      tenant.CloneTree(base),
		subscribers: make(map[string][]func()),
	}
}

// Runtime builds the baseline runtime tree from the loaded configuration.
func (c *Config) Runtime() *Runtime {
	return NewRuntime(c.Tree())
}

// Tree returns the configuration keys the pipeline may override, in dot-path
// form matching tenant configuration keys.
func (c *Config) Tree() map[string]any {
	return map[string]any{
		"app": map[string]any{
			"name":         c.App.Name,
			"env":          c.App.Env,
			"url":          c.App.URL,
			"frontend_url": c.App.FrontendURL,
			"locale":       c.App.Locale,
			"timezone":     c.App.Timezone,
		},
		"database": map[string]any{
			"driver":             c.Database.Driver,
			"host":               c.Database.Host,
			"port":               c.Database.Port,
			"user":               c.Database.User,
			"password":           c.Database.Password,
			"dbname":             c.Database.DBName,
			"sslmode":            c.Database.SSLMode,
			"max_open_conns":     c.Database.MaxOpenConns,
			"max_idle_conns":     c.Database.MaxIdleConns,
			"conn_max_lifetime":  c.Database.ConnMaxLifetime,
			"conn_max_idle_time": c.Database.ConnMaxIdleTime,
		},
		"redis": map[string]any{
			"host":     c.Redis.Host,
			"port":     c.Redis.Port,
			"password": c.Redis.Password,
			"db":       c.Redis.DB,
		},
		"log": map[string]any{
			"level":  c.Log.Level,
			"format": c.Log.Format,
			"dir":    c.Log.Dir,
		},
		"cache": map[string]any{
			"driver": c.Cache.Driver,
			"prefix": c.Cache.Prefix,
			"ttl":    c.Cache.TTL.String(),
		},
		"session": map[string]any{
			"driver":   c.Session.Driver,
			"lifetime": c.Session.Lifetime.String(),
			"cookie":   c.Session.Cookie,
			"domain":   c.Session.Domain,
		},
		"mail": map[string]any{
			"host": c.Mail.Host,
			"port": c.Mail.Port,
			"from": map[string]any{
				"address": c.Mail.FromAddress,
				"name":    c.Mail.FromName,
			},
		},
		"storage": map[string]any{
			"bucket":            c.Storage.Bucket,
			"region":            c.Storage.Region,
			"endpoint":          c.Storage.Endpoint,
			"access_key_id":     c.Storage.AccessKeyID,
			"secret_access_key": c.Storage.SecretAccessKey,
			"use_path_style":    c.Storage.UsePathStyle,
			"prefix":            c.Storage.Prefix,
		},
		"queue": map[string]any{
			"connection": c.Queue.Connection,
			"name":       c.Queue.Name,
		},
	}
}

// Fork returns a fresh runtime at the same baseline with no subscribers.
func (r *Runtime) Fork() *Runtime {
	return &Runtime{
		baseline:    r.baseline,
		values:      tenant.CloneTree(r.baseline),
		subscribers: make(map[string][]func()),
	}
}

// Get returns the current value at key.
func (r *Runtime) Get(key string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := tenant.GetPath(r.values, key)
	if m, isTree := v.(map[string]any); isTree {
		return tenant.CloneTree(m), ok
	}
	return v, ok
}

// Baseline returns the process-wide value at key, ignoring overrides.
func (r *Runtime) Baseline(key string) (any, bool) {
	return tenant.GetPath(r.baseline, key)
}

// Has reports whether key has a non-nil value.
func (r *Runtime) Has(key string) bool {
	_, ok := r.Get(key)
	return ok
}

// Set stores value at key. A nil value removes the key.
func (r *Runtime) Set(key string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if value == nil {
		tenant.UnsetPath(r.values, key)
		return
	}
	if m, ok := value.(map[string]any); ok {
		value = tenant.CloneTree(m)
	}
	tenant.SetPath(r.values, key, value)
}

// GetString returns the value at key as a string, or def.
func (r *Runtime) GetString(key, def string) string {
	v, ok := r.Get(key)
	if !ok {
		return def
	}
	switch val := v.(type) {
	case string:
		return val
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return def
	}
}

// GetInt returns the value at key as an int, or def.
func (r *Runtime) GetInt(key string, def int) int {
	v, ok := r.Get(key)
	if !ok {
		return def
	}
	switch val := v.(type) {
	case int:
		return val
	case int64:
		return int(val)
	case float64:
		return int(val)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return n
		}
	}
	return def
}

// GetBool returns the value at key as a bool, or def.
func (r *Runtime) GetBool(key string, def bool) bool {
	v, ok := r.Get(key)
	if !ok {
		return def
	}
	switch val := v.(type) {
	case bool:
		return val
	case string:
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return def
}

// GetDuration returns the value at key as a duration. Strings use
// time.ParseDuration; bare numbers are seconds.
func (r *Runtime) GetDuration(key string, def time.Duration) time.Duration {
	v, ok := r.Get(key)
	if !ok {
		return def
	}
	switch val := v.(type) {
	case time.Duration:
		return val
	case int:
		return time.Duration(val) * time.Second
	case int64:
		return time.Duration(val) * time.Second
	case float64:
		return time.Duration(val * float64(time.Second))
	case string:
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
		if n, err := strconv.Atoi(val); err == nil {
			return time.Duration(n) * time.Second
		}
	}
	return def
}

// Snapshot returns a copy of the current tree.
func (r *Runtime) Snapshot() map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return tenant.CloneTree(r.values)
}

// Reset restores the baseline and notifies every subscriber.
func (r *Runtime) Reset() {
	r.mu.Lock()
	r.values = tenant.CloneTree(r.baseline)
	var fns []func()
	for _, subs := range r.subscribers {
		fns = append(fns, subs...)
	}
	r.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Subscribe registers fn to run when the section named prefix is invalidated.
func (r *Runtime) Subscribe(prefix string, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subscribers[prefix] = append(r.subscribers[prefix], fn)
}

// Invalidate notifies subscribers of prefix that their section changed.
func (r *Runtime) Invalidate(prefix string) {
	r.mu.RLock()
	fns := append([]func(){}, r.subscribers[prefix]...)
	r.mu.RUnlock()

	for _, fn := range fns {
		fn()
	}
}

// Fingerprint hashes the current value of the section at prefix. Resources
// built from equal sections can be shared.
func (r *Runtime) Fingerprint(prefix string) string {
	v, _ := r.Get(prefix)
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return strconv.FormatUint(xxhash.Sum64(append([]byte(prefix+":"), data...)), 16)
}
