package pipeline

import (
	"context"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/tenancy/backend/internal/application/tenancy"
	"github.com/tenancy/backend/internal/domain/tenant"
	"github.com/tenancy/backend/internal/infrastructure/config"
	"go.uber.org/multierr"
)

// Built-in pipe names
const (
	PipeCore       = "core"
	PipeDatabase   = "database"
	PipeRedis      = "redis"
	PipeCache      = "cache"
	PipeSession    = "session"
	PipeMail       = "mail"
	PipeFilesystem = "filesystem"
	PipeLogging    = "logging"
	PipeQueue      = "queue"
)

// DefaultOrder is the built-in pipe order. core runs first because session
// derives its cookie domain from app.url.
var DefaultOrder = []string{
	PipeCore, PipeDatabase, PipeRedis, PipeCache, PipeSession,
	PipeMail, PipeFilesystem, PipeLogging, PipeQueue,
}

var scoped = tenancy.NewAccessor()

// MappingPipe copies a fixed set of keys, then derives the defaults that
// keep tenants apart, then invalidates its runtime sections. The derived
// defaults are applied even when the copy fails, so a tenant with a bad
// value never falls back to the shared prefixes.
type MappingPipe struct {
	name       string
	mappings   []Mapping
	derive     func(t *tenant.Tenant, cfg *config.Runtime, explicit func(key string) bool) error
	invalidate []string
}

// Name implements Pipe
func (p *MappingPipe) Name() string { return p.name }

// Apply implements Pipe
func (p *MappingPipe) Apply(_ context.Context, t *tenant.Tenant, cfg *config.Runtime) error {
	_, err := CopyMappings(t, cfg, p.mappings)
	if p.derive != nil {
		// a failed copy wrote nothing, so no key counts as set by the tenant
		explicit := func(key string) bool { return err == nil && t.HasConfig(key) }
		err = multierr.Append(err, p.derive(t, cfg, explicit))
	}
	for _, section := range p.invalidate {
		cfg.Invalidate(section)
	}
	return err
}

// NewCorePipe copies application identity and locale
func NewCorePipe() Pipe {
	return &MappingPipe{
		name: PipeCore,
		mappings: append(
			Same(IsString, "app.name", "app.locale", "app.timezone"),
			Same(IsURL, "app.url", "app.frontend_url")...,
		),
		invalidate: []string{"app"},
	}
}

// NewDatabasePipe copies connection settings. A tenant changing host or
// dbname is moved onto its own pooled connection.
func NewDatabasePipe() Pipe {
	return &MappingPipe{
		name: PipeDatabase,
		mappings: append(
			Same(IsString, "database.host", "database.dbname", "database.user", "database.password", "database.sslmode"),
			Same(IsInt, "database.port")...,
		),
		invalidate: []string{"database"},
	}
}

// NewRedisPipe copies the redis connection
func NewRedisPipe() Pipe {
	return &MappingPipe{
		name: PipeRedis,
		mappings: append(
			Same(IsString, "redis.host", "redis.password"),
			Same(IsInt, "redis.port", "redis.db")...,
		),
		invalidate: []string{"redis"},
	}
}

// NewCachePipe copies cache settings. Without an explicit prefix the tenant
// gets "tenant_<public_id>" so no two tenants share cache keys.
func NewCachePipe() Pipe {
	return &MappingPipe{
		name: PipeCache,
		mappings: append(
			Same(IsString, "cache.driver", "cache.prefix"),
			Same(IsDuration, "cache.ttl")...,
		),
		derive: func(t *tenant.Tenant, cfg *config.Runtime, explicit func(string) bool) error {
			if !explicit("cache.prefix") {
				cfg.Set("cache.prefix", scoped.PrefixOf(t))
			}
			return nil
		},
		invalidate: []string{"cache"},
	}
}

// NewSessionPipe copies session settings. The cookie defaults to
// "<slug>_session" from the parent's name, or the tenant's own when it has
// no parent. A name without ASCII letters or digits falls back to the
// tenant prefix. The cookie domain defaults to the host of app.url.
func NewSessionPipe() Pipe {
	return &MappingPipe{
		name: PipeSession,
		mappings: append(
			Same(IsString, "session.driver", "session.cookie", "session.domain"),
			Same(IsDuration, "session.lifetime")...,
		),
		derive: func(t *tenant.Tenant, cfg *config.Runtime, explicit func(string) bool) error {
			if !explicit("session.cookie") {
				owner := t
				if p := t.Parent(); p != nil {
					owner = p
				}
				slug := Slug(owner.Name)
				if slug == "" {
					slug = scoped.PrefixOf(owner)
				}
				cfg.Set("session.cookie", slug+"_session")
			}
			if !explicit("session.domain") {
				if u, err := url.Parse(cfg.GetString("app.url", "")); err == nil && u.Hostname() != "" {
					cfg.Set("session.domain", u.Hostname())
				}
			}
			return nil
		},
		invalidate: []string{"session"},
	}
}

// NewMailPipe copies the sender identity and relay
func NewMailPipe() Pipe {
	return &MappingPipe{
		name: PipeMail,
		mappings: append(
			Same(IsString, "mail.from.address", "mail.from.name", "mail.host"),
			Same(IsInt, "mail.port")...,
		),
		invalidate: []string{"mail"},
	}
}

// NewFilesystemPipe copies object storage settings. Without an explicit
// prefix objects live under "tenants/<public_id>".
func NewFilesystemPipe() Pipe {
	return &MappingPipe{
		name: PipeFilesystem,
		mappings: append(
			Same(IsString, "storage.bucket", "storage.region", "storage.endpoint",
				"storage.access_key_id", "storage.secret_access_key", "storage.prefix"),
			Same(IsBool, "storage.use_path_style")...,
		),
		derive: func(t *tenant.Tenant, cfg *config.Runtime, explicit func(string) bool) error {
			if !explicit("storage.prefix") {
				cfg.Set("storage.prefix", "tenants/"+t.PublicID)
			}
			return nil
		},
		invalidate: []string{"storage"},
	}
}

// NewLoggingPipe copies the log level and routes the tenant's entries to
// "<log.dir>/tenant_<public_id>.log".
func NewLoggingPipe() Pipe {
	return &MappingPipe{
		name:     PipeLogging,
		mappings: Same(IsString, "log.level"),
		derive: func(t *tenant.Tenant, cfg *config.Runtime, _ func(string) bool) error {
			dir := cfg.GetString("log.dir", "logs")
			cfg.Set("log.tenant_file", filepath.Join(dir, scoped.PrefixOf(t)+".log"))
			return nil
		},
		invalidate: []string{"log"},
	}
}

// NewQueuePipe copies the queue connection. Jobs go to "tenant_<public_id>"
// unless the tenant names its own queue.
func NewQueuePipe() Pipe {
	return &MappingPipe{
		name:     PipeQueue,
		mappings: Same(IsString, "queue.connection", "queue.name"),
		derive: func(t *tenant.Tenant, cfg *config.Runtime, explicit func(string) bool) error {
			if !explicit("queue.name") {
				cfg.Set("queue.name", scoped.PrefixOf(t))
			}
			return nil
		},
		invalidate: []string{"queue"},
	}
}

// Slug lowercases s and joins its alphanumeric runs with underscores
func Slug(s string) string {
	var b strings.Builder
	sep := false
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if sep && b.Len() > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
			sep = false
			continue
		}
		sep = true
	}
	return b.String()
}
