// Package services wires the stateful managers a unit of work reads through.
// Pools live for the whole process; a Unit is built per unit of work around
// that unit's runtime configuration.
package services

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/tenancy/backend/internal/infrastructure/cache"
	"github.com/tenancy/backend/internal/infrastructure/config"
	"github.com/tenancy/backend/internal/infrastructure/logger"
	"github.com/tenancy/backend/internal/infrastructure/mail"
	"github.com/tenancy/backend/internal/infrastructure/persistence"
	"github.com/tenancy/backend/internal/infrastructure/pool"
	"github.com/tenancy/backend/internal/infrastructure/session"
	"github.com/tenancy/backend/internal/infrastructure/storage"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Pools holds the process-wide resources shared by every unit of work
type Pools struct {
	Logger      *zap.Logger
	Databases   *pool.Pool[*persistence.Database]
	Redis       *pool.Pool[*redis.Client]
	Storage     *pool.Pool[storage.ObjectStorage]
	LogFiles    *logger.FilePool
	MemoryCache *cache.RistrettoStore
	Sessions    *session.MemoryStore

	openDatabase persistence.Opener
	openStorage  storage.Opener
}

// PoolsOption configures Pools
type PoolsOption func(*Pools)

// WithDatabaseOpener sets how database connections are opened
func WithDatabaseOpener(open persistence.Opener) PoolsOption {
	return func(p *Pools) {
		p.openDatabase = open
	}
}

// WithStorageOpener sets how storage backends are opened
func WithStorageOpener(open storage.Opener) PoolsOption {
	return func(p *Pools) {
		p.openStorage = open
	}
}

// NewPools creates the process-wide pools
func NewPools(log *zap.Logger, memoryCacheCost int64, opts ...PoolsOption) (*Pools, error) {
	if log == nil {
		log = zap.NewNop()
	}
	memory, err := cache.NewRistrettoStore(memoryCacheCost)
	if err != nil {
		return nil, err
	}
	p := &Pools{
		Logger:      log,
		Databases:   persistence.NewConnectionPool(),
		Redis:       cache.NewRedisPool(),
		Storage:     storage.NewPool(),
		LogFiles:    logger.NewFilePool(),
		MemoryCache: memory,
		Sessions:    session.NewMemoryStore(),
		openDatabase: func(cfg *config.DatabaseConfig) (*persistence.Database, error) {
			return persistence.NewDatabase(cfg)
		},
		openStorage: storage.S3Opener(storage.WithLogger(log)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Bind builds the managers for one unit of work around rt
func (p *Pools) Bind(rt *config.Runtime) *Unit {
	redisManager := cache.NewRedisManager(rt, p.Redis)
	return &Unit{
		Config:   rt,
		Database: persistence.NewConnectionManager(rt, p.Databases, p.openDatabase),
		Redis:    redisManager,
		Cache:    cache.NewStoreManager(rt, p.MemoryCache, redisManager),
		Session:  session.NewManager(rt, p.Sessions, redisManager),
		Mail:     mail.NewManager(rt, p.Logger),
		Storage:  storage.NewManager(rt, p.Storage, p.openStorage),
		Log:      logger.NewManager(p.Logger, p.LogFiles, rt),
	}
}

// Close releases every pooled resource
func (p *Pools) Close() error {
	p.MemoryCache.Close()
	return multierr.Combine(
		p.Databases.Close(),
		p.Redis.Close(),
		p.Storage.Close(),
		p.LogFiles.Close(),
	)
}

// Unit is the set of managers bound to one unit of work's configuration
type Unit struct {
	Config   *config.Runtime
	Database *persistence.ConnectionManager
	Redis    *cache.RedisManager
	Cache    *cache.StoreManager
	Session  *session.Manager
	Mail     *mail.Manager
	Storage  *storage.Manager
	Log      *logger.Manager
}

type unitKey struct{}

// WithUnit returns a copy of ctx carrying u
func WithUnit(ctx context.Context, u *Unit) context.Context {
	return context.WithValue(ctx, unitKey{}, u)
}

// FromContext returns the Unit carried by ctx, or nil
func FromContext(ctx context.Context) *Unit {
	u, _ := ctx.Value(unitKey{}).(*Unit)
	return u
}
