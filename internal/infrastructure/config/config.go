package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Telemetry TelemetryConfig
	Tenancy   TenancyConfig
	Cache     CacheConfig
	Session   SessionConfig
	Mail      MailConfig
	Storage   StorageConfig
	Queue     QueueConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
	Dir    string // directory for per-tenant log files
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name        string
	Env         string
	Port        string
	URL         string
	FrontendURL string
	Locale      string
	Timezone    string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver          string // postgres, sqlite
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	MaxBodySize    int64 // bytes accepted on admin write requests
	TrustedProxies []string
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces
	Insecure          bool    // Use insecure (non-TLS) connection (development only)
	DBTraceEnabled    bool    // Enable database query tracing (otelgorm)
	DBLogFullSQL      bool    // Log full SQL statements (dev only)
}

// NotFoundConfig selects what happens when a request names no known tenant
type NotFoundConfig struct {
	Policy      string // reject, redirect, custom, allow
	RedirectURL string
}

// TenancyConfig holds tenant resolution and scoping settings
type TenancyConfig struct {
	Resolvers       []string      // resolver names, tried in order
	CacheTTL        time.Duration // resolution cache TTL, <= 0 disables caching
	HeaderName      string        // header resolver header
	PathSegment     int           // path resolver segment index
	OverrideHeader  string        // header naming another tenant for internal callers
	TrustedNetworks []string      // CIDRs allowed to read protected configuration
	SkipPaths       []string      // requests that never resolve a tenant
	NoTenantPolicy  string        // global, empty, fail
	Pipes           []string      // configuration pipeline, in order
	CriticalPipes   []string      // pipes whose failure aborts the run
	L1MaxCost       int64         // in-process resolution cache size in bytes
	NotFound        NotFoundConfig
}

// CacheConfig holds the application cache store defaults
type CacheConfig struct {
	Driver string // memory, redis
	Prefix string
	TTL    time.Duration
}

// SessionConfig holds session defaults
type SessionConfig struct {
	Driver   string // memory, redis
	Lifetime time.Duration
	Cookie   string
	Domain   string
}

// MailConfig holds outbound mail defaults
type MailConfig struct {
	Host        string
	Port        int
	FromAddress string
	FromName    string
}

// StorageConfig holds S3 compatible object storage settings
type StorageConfig struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
	Prefix          string
}

// QueueConfig holds job queue defaults
type QueueConfig struct {
	Connection string
	Name       string
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with TENANCY_ prefix (e.g., TENANCY_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("TENANCY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Name:        v.GetString("app.name"),
			Env:         v.GetString("app.env"),
			Port:        v.GetString("app.port"),
			URL:         v.GetString("app.url"),
			FrontendURL: v.GetString("app.frontend_url"),
			Locale:      v.GetString("app.locale"),
			Timezone:    v.GetString("app.timezone"),
		},
		Database: DatabaseConfig{
			Driver:          v.GetString("database.driver"),
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
			Dir:    v.GetString("log.dir"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:    v.GetDuration("http.read_timeout"),
			WriteTimeout:   v.GetDuration("http.write_timeout"),
			IdleTimeout:    v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes: v.GetInt("http.max_header_bytes"),
			MaxBodySize:    v.GetInt64("http.max_body_size"),
			TrustedProxies: v.GetStringSlice("http.trusted_proxies"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:      v.GetBool("telemetry.db_log_full_sql"),
		},
		Tenancy: TenancyConfig{
			Resolvers:       v.GetStringSlice("tenancy.resolvers"),
			CacheTTL:        v.GetDuration("tenancy.cache_ttl"),
			HeaderName:      v.GetString("tenancy.header_name"),
			PathSegment:     v.GetInt("tenancy.path_segment"),
			OverrideHeader:  v.GetString("tenancy.override_header"),
			TrustedNetworks: v.GetStringSlice("tenancy.trusted_networks"),
			SkipPaths:       v.GetStringSlice("tenancy.skip_paths"),
			NoTenantPolicy:  v.GetString("tenancy.no_tenant_policy"),
			Pipes:           v.GetStringSlice("tenancy.pipes"),
			CriticalPipes:   v.GetStringSlice("tenancy.critical_pipes"),
			L1MaxCost:       v.GetInt64("tenancy.l1_max_cost"),
			NotFound: NotFoundConfig{
				Policy:      v.GetString("tenancy.not_found.policy"),
				RedirectURL: v.GetString("tenancy.not_found.redirect_url"),
			},
		},
		Cache: CacheConfig{
			Driver: v.GetString("cache.driver"),
			Prefix: v.GetString("cache.prefix"),
			TTL:    v.GetDuration("cache.ttl"),
		},
		Session: SessionConfig{
			Driver:   v.GetString("session.driver"),
			Lifetime: v.GetDuration("session.lifetime"),
			Cookie:   v.GetString("session.cookie"),
			Domain:   v.GetString("session.domain"),
		},
		Mail: MailConfig{
			Host:        v.GetString("mail.host"),
			Port:        v.GetInt("mail.port"),
			FromAddress: v.GetString("mail.from.address"),
			FromName:    v.GetString("mail.from.name"),
		},
		Storage: StorageConfig{
			Bucket:          v.GetString("storage.bucket"),
			Region:          v.GetString("storage.region"),
			Endpoint:        v.GetString("storage.endpoint"),
			AccessKeyID:     v.GetString("storage.access_key_id"),
			SecretAccessKey: v.GetString("storage.secret_access_key"),
			UsePathStyle:    v.GetBool("storage.use_path_style"),
			Prefix:          v.GetString("storage.prefix"),
		},
		Queue: QueueConfig{
			Connection: v.GetString("queue.connection"),
			Name:       v.GetString("queue.name"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "tenancy-backend"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.App.URL == "" {
		cfg.App.URL = "http://localhost:" + cfg.App.Port
	}
	if cfg.App.FrontendURL == "" {
		cfg.App.FrontendURL = cfg.App.URL
	}
	if cfg.App.Locale == "" {
		cfg.App.Locale = "en"
	}
	if cfg.App.Timezone == "" {
		cfg.App.Timezone = "UTC"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "tenancy"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.Log.Dir == "" {
		cfg.Log.Dir = "logs"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "tenancy-backend"
	}

	// Tenancy defaults
	if len(cfg.Tenancy.Resolvers) == 0 {
		cfg.Tenancy.Resolvers = []string{"domain"}
	}
	if cfg.Tenancy.CacheTTL == 0 {
		cfg.Tenancy.CacheTTL = 5 * time.Minute
	}
	if cfg.Tenancy.HeaderName == "" {
		cfg.Tenancy.HeaderName = "X-Tenant"
	}
	if cfg.Tenancy.OverrideHeader == "" {
		cfg.Tenancy.OverrideHeader = "X-Tenant-Override"
	}
	if len(cfg.Tenancy.SkipPaths) == 0 {
		cfg.Tenancy.SkipPaths = []string{"/health", "/healthz", "/metrics"}
	}
	if cfg.Tenancy.NoTenantPolicy == "" {
		cfg.Tenancy.NoTenantPolicy = "global"
	}
	if len(cfg.Tenancy.Pipes) == 0 {
		cfg.Tenancy.Pipes = []string{"core", "database", "redis", "cache", "session", "mail", "filesystem", "logging", "queue"}
	}
	if cfg.Tenancy.L1MaxCost == 0 {
		cfg.Tenancy.L1MaxCost = 16 << 20 // 16MB
	}
	if cfg.Tenancy.NotFound.Policy == "" {
		cfg.Tenancy.NotFound.Policy = "reject"
	}

	if cfg.Cache.Driver == "" {
		cfg.Cache.Driver = "memory"
	}
	if cfg.Cache.Prefix == "" {
		cfg.Cache.Prefix = cfg.App.Name
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = time.Hour
	}
	if cfg.Session.Driver == "" {
		cfg.Session.Driver = "memory"
	}
	if cfg.Session.Lifetime == 0 {
		cfg.Session.Lifetime = 2 * time.Hour
	}
	if cfg.Session.Cookie == "" {
		cfg.Session.Cookie = strings.ReplaceAll(cfg.App.Name, "-", "_") + "_session"
	}
	if cfg.Mail.Host == "" {
		cfg.Mail.Host = "localhost"
	}
	if cfg.Mail.Port == 0 {
		cfg.Mail.Port = 25
	}
	if cfg.Mail.FromName == "" {
		cfg.Mail.FromName = cfg.App.Name
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}
	if cfg.Queue.Connection == "" {
		cfg.Queue.Connection = "sync"
	}
	if cfg.Queue.Name == "" {
		cfg.Queue.Name = "default"
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite, got %q", c.Database.Driver)
	}

	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production to prevent sensitive data exposure in traces")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	switch c.Tenancy.NotFound.Policy {
	case "reject", "custom", "allow":
	case "redirect":
		if c.Tenancy.NotFound.RedirectURL == "" {
			return fmt.Errorf("tenancy.not_found.redirect_url is required when policy is redirect")
		}
	default:
		return fmt.Errorf("tenancy.not_found.policy must be one of reject, redirect, custom, allow, got %q", c.Tenancy.NotFound.Policy)
	}
	switch c.Tenancy.NoTenantPolicy {
	case "global", "empty", "fail":
	default:
		return fmt.Errorf("tenancy.no_tenant_policy must be one of global, empty, fail, got %q", c.Tenancy.NoTenantPolicy)
	}
	for _, cidr := range c.Tenancy.TrustedNetworks {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			return fmt.Errorf("tenancy.trusted_networks: invalid CIDR %q: %w", cidr, err)
		}
	}
	if c.Tenancy.PathSegment < 0 {
		return fmt.Errorf("tenancy.path_segment cannot be negative")
	}

	return nil
}

// IsLocal reports whether the application runs in a local or development environment
func (c *AppConfig) IsLocal() bool {
	return c.Env == "local" || c.Env == "development"
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
