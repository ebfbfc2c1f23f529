// Package app wires the application together. Construction order is the
// dependency order; there is no registry or codegen.
package app

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"commerce-backend/internal/config"
	"commerce-backend/internal/infrastructure/cache"
	"commerce-backend/internal/infrastructure/observability"
	"commerce-backend/internal/infrastructure/persistence"
	httpapi "commerce-backend/internal/interfaces/http"
	"commerce-backend/internal/interfaces/http/handlers"
	"commerce-backend/internal/service"
)

// Container holds every long-lived component of the process.
type Container struct {
	Config      *config.Config
	Logger      *zap.Logger
	Pool        *persistence.PgxPool
	DB          persistence.DB
	Caches      *cache.Caches
	Invalidator *cache.Invalidator
	Collector   *observability.Collector
	Catalog     *service.Catalog
	Admin       *service.Admin
	Handler     http.Handler

	logLevel        zap.AtomicLevel
	shutdownTracing func(context.Context) error
}

// Build constructs the container from configuration.
func Build(ctx context.Context, cfg *config.Config) (*Container, error) {
	logger, logLevel, err := newLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	shutdownTracing, err := observability.InitTracing(ctx, cfg.Tracing, string(cfg.Environment))
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	collector := observability.NewCollector("commerce")

	pool, err := persistence.NewPgxPool(ctx, persistence.PoolConfig{
		URL:              cfg.Database.URL,
		MaxConns:         cfg.Database.MaxConns,
		MinConns:         cfg.Database.MinConns,
		ConnectTimeout:   cfg.Database.ConnectTimeout,
		StatementTimeout: cfg.Database.StatementTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	db := persistence.NewBreakerDB(pool, logger)

	caches := cache.NewCaches(cache.Sizes{
		Homepage:       cfg.Cache.Homepage,
		Products:       cfg.Cache.Products,
		ProductDetails: cfg.Cache.ProductDetails,
		Discounts:      cfg.Cache.Discounts,
		RoomTypes:      cfg.Cache.RoomTypes,
		Categories:     cfg.Cache.Categories,
		Pricing:        cfg.Cache.Pricing,
		HeroBanners:    cfg.Cache.HeroBanners,
	}, logger, cache.WithMetrics(collector))
	invalidator := cache.NewInvalidator(caches, logger)

	catalogSvc := service.NewCatalog(db, caches, logger, collector)
	adminSvc := service.NewAdmin(db, invalidator, logger, collector)

	router := httpapi.NewRouter(httpapi.Deps{
		Catalog:     handlers.NewCatalog(catalogSvc),
		Admin:       handlers.NewAdmin(adminSvc, caches, invalidator),
		Health:      handlers.NewHealth(pool),
		Metrics:     collector.Handler(),
		MetricsSink: collector,
		Logger:      logger,
		CORS:        cfg.CORS,

		RequestTimeout: cfg.Server.RequestTimeout,
	})

	return &Container{
		Config:          cfg,
		Logger:          logger,
		Pool:            pool,
		DB:              db,
		Caches:          caches,
		Invalidator:     invalidator,
		Collector:       collector,
		Catalog:         catalogSvc,
		Admin:           adminSvc,
		Handler:         router,
		logLevel:        logLevel,
		shutdownTracing: shutdownTracing,
	}, nil
}

// ApplyLogging applies a reloaded logging level to the running logger.
// The output format is fixed at startup.
func (c *Container) ApplyLogging(cfg config.Logging) error {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("parse log level %q: %w", cfg.Level, err)
	}
	c.logLevel.SetLevel(level)
	return nil
}

// Shutdown releases the container's resources.
func (c *Container) Shutdown(ctx context.Context) {
	if c.shutdownTracing != nil {
		if err := c.shutdownTracing(ctx); err != nil {
			c.Logger.Warn("Tracing shutdown failed", zap.Error(err))
		}
	}
	if c.Pool != nil {
		c.Pool.Close()
	}
	c.Logger.Sync() //nolint:errcheck
}

func newLogger(cfg config.Logging) (*zap.Logger, zap.AtomicLevel, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var zcfg zap.Config
	if cfg.Format == "console" {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}
	atomic := zap.NewAtomicLevelAt(level)
	zcfg.Level = atomic

	logger, err := zcfg.Build()
	if err != nil {
		return nil, atomic, err
	}
	return logger, atomic, nil
}
