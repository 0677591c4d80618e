package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/tenancy/backend/internal/application/pipeline"
	"github.com/tenancy/backend/internal/application/tenancy"
	"github.com/tenancy/backend/internal/infrastructure/cache"
	"github.com/tenancy/backend/internal/infrastructure/config"
	"github.com/tenancy/backend/internal/infrastructure/event"
	"github.com/tenancy/backend/internal/infrastructure/logger"
	"github.com/tenancy/backend/internal/infrastructure/persistence"
	ptenant "github.com/tenancy/backend/internal/infrastructure/persistence/tenant"
	"github.com/tenancy/backend/internal/infrastructure/services"
	"github.com/tenancy/backend/internal/infrastructure/telemetry"
	"github.com/tenancy/backend/internal/interfaces/http/handler"
	"github.com/tenancy/backend/internal/interfaces/http/middleware"
	"github.com/tenancy/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting tenancy backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	ctx := context.Background()

	// Telemetry
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := meterProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down meter provider", zap.Error(err))
		}
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()
	metrics, err := telemetry.NewTenancyMetrics(meterProvider.Meter("tenancy"))
	if err != nil {
		log.Fatal("Failed to create tenancy metrics", zap.Error(err))
	}

	// Event bus
	bus := event.NewInMemoryEventBus(log)
	if err := bus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := bus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	// Resolution cache: ristretto in process, Redis shared between instances
	l1, err := cache.NewRistrettoStore(cfg.Tenancy.L1MaxCost)
	if err != nil {
		log.Fatal("Failed to create in-process cache", zap.Error(err))
	}
	defer l1.Close()
	tieredOpts := []cache.TieredStoreOption{cache.WithTieredLogger(log)}
	var redisClient *redis.Client
	if cfg.Cache.Driver == "redis" {
		redisClient, err = cache.NewRedisClient(ctx, cache.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer func() {
			_ = redisClient.Close()
		}()
		tieredOpts = append(tieredOpts, cache.WithL2(cache.NewRedisStore(redisClient, "tenancy:")))
	}
	resolutionCache := cache.NewResolutionCache(cache.NewTieredStore(l1, tieredOpts...), log)

	// Database with the tenant guard installed on every connection
	baseline := cfg.Runtime()
	scope := tenancy.NewScopeDecider(baseline)
	guard := ptenant.NewGuard(ptenant.GuardConfig{
		Scope:          scope.GuardScope(),
		NoTenantPolicy: cfg.Tenancy.NoTenantPolicy,
		Publisher:      bus,
		Metrics:        metrics,
		Logger:         log,
	})
	openDatabase := func(dbCfg *config.DatabaseConfig) (*persistence.Database, error) {
		return persistence.NewDatabase(dbCfg,
			persistence.WithLogger(log, logger.MapGormLogLevel(cfg.Log.Level)),
			persistence.WithTracing(telemetry.DBTracingConfig{
				Enabled:    cfg.Telemetry.DBTraceEnabled,
				LogFullSQL: cfg.Telemetry.DBLogFullSQL,
				DBName:     dbCfg.DBName,
			}),
			persistence.WithSetup(func(db *gorm.DB) error { return db.Use(guard) }),
		)
	}
	db, err := openDatabase(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	pools, err := services.NewPools(log, cfg.Tenancy.L1MaxCost, services.WithDatabaseOpener(openDatabase))
	if err != nil {
		log.Fatal("Failed to create service pools", zap.Error(err))
	}
	defer func() {
		if err := pools.Close(); err != nil {
			log.Error("Error closing service pools", zap.Error(err))
		}
	}()

	// Tenancy services
	tenantRepo := persistence.NewGormTenantRepository(db.DB)
	lookup := tenancy.NewTenantLookup(tenantRepo, resolutionCache)
	resolvers, err := tenancy.DefaultResolverRegistry().Build(cfg.Tenancy.Resolvers, tenancy.ResolverOptions{
		Lookup:      lookup,
		CacheTTL:    cfg.Tenancy.CacheTTL,
		HeaderName:  cfg.Tenancy.HeaderName,
		PathSegment: cfg.Tenancy.PathSegment,
	})
	if err != nil {
		log.Fatal("Invalid tenant resolvers", zap.Error(err))
	}
	resolution := tenancy.NewResolutionService(tenancy.ResolutionServiceConfig{
		Resolvers: resolvers,
		Lookup:    lookup,
		Skip:      tenancy.SkipPaths(cfg.Tenancy.SkipPaths...),
		Publisher: bus,
		Metrics:   metrics,
		Logger:    log,
	})
	configService := tenancy.NewConfigService(tenancy.ConfigServiceConfig{
		Repository: tenantRepo,
		Resolution: resolution,
		Cache:      resolutionCache,
		TTL:        cfg.Tenancy.CacheTTL,
		Env:        cfg.App.Env,
		Logger:     log,
	})
	tenantService := tenancy.NewTenantService(tenantRepo, nil, bus, log)

	invalidator := tenancy.NewCacheInvalidator(lookup, tenantRepo, configService, log)
	bus.Subscribe(invalidator)
	log.Info("Event handlers registered", zap.Strings("cache_invalidation_events", invalidator.EventTypes()))

	pipes, err := pipeline.DefaultRegistry().Build(cfg.Tenancy.Pipes, cfg.Tenancy.CriticalPipes)
	if err != nil {
		log.Fatal("Invalid configuration pipeline", zap.Error(err))
	}
	configPipeline := pipeline.New(pipes,
		pipeline.WithPublisher(bus),
		pipeline.WithMetrics(metrics),
		pipeline.WithLogger(log),
	)

	tenancyConfig := middleware.TenancyConfig{
		Resolution:  resolution,
		Pipeline:    configPipeline,
		Baseline:    baseline,
		Pools:       pools,
		NotFound:    cfg.Tenancy.NotFound.Policy,
		RedirectURL: cfg.Tenancy.NotFound.RedirectURL,
		Logger:      log,
	}
	if err := tenancyConfig.Validate(); err != nil {
		log.Fatal("Invalid tenancy configuration", zap.Error(err))
	}
	trustedNetworks, err := middleware.ParseTrustedNetworks(cfg.Tenancy.TrustedNetworks)
	if err != nil {
		log.Fatal("Invalid trusted networks", zap.Error(err))
	}

	// HTTP
	systemHandler := handler.NewSystemHandler(cfg.App.Name, version)
	systemHandler.AddCheck("database", func(context.Context) error { return db.Ping() })
	if redisClient != nil {
		systemHandler.AddCheck("redis", func(ctx context.Context) error { return redisClient.Ping(ctx).Err() })
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engineConfig := router.EngineConfig{
		Logger:          log,
		TrustedProxies:  cfg.HTTP.TrustedProxies,
		MaxBodySize:     cfg.HTTP.MaxBodySize,
		System:          systemHandler,
		Config:          handler.NewConfigHandler(configService, cfg.Tenancy.OverrideHeader, log),
		Tenants:         handler.NewTenantHandler(tenantService, log),
		Tenancy:         middleware.Tenancy(tenancyConfig),
		TrustedNetworks: trustedNetworks,
	}
	if cfg.Telemetry.Enabled {
		engineConfig.ServiceName = cfg.Telemetry.ServiceName
	}
	engine, err := router.NewEngine(engineConfig)
	if err != nil {
		log.Fatal("Failed to build HTTP engine", zap.Error(err))
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	log.Info("Server exited gracefully")
}
