package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/shopcarbon12-gif/carbon-gen-sub002/config"
	httpDelivery "github.com/shopcarbon12-gif/carbon-gen-sub002/internal/delivery/http"
	"github.com/shopcarbon12-gif/carbon-gen-sub002/internal/domain"
	"github.com/shopcarbon12-gif/carbon-gen-sub002/internal/infrastructure/cache"
	"github.com/shopcarbon12-gif/carbon-gen-sub002/internal/infrastructure/postgres"
	"github.com/shopcarbon12-gif/carbon-gen-sub002/internal/infrastructure/shopify"
	"github.com/shopcarbon12-gif/carbon-gen-sub002/internal/infrastructure/snapshot"
	"github.com/shopcarbon12-gif/carbon-gen-sub002/internal/infrastructure/staging"
	"github.com/shopcarbon12-gif/carbon-gen-sub002/internal/usecase"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting carbon reconcile",
		zap.String("version", "1.0.0"),
		zap.String("environment", cfg.Server.Environment),
		zap.String("port", cfg.Server.Port),
		zap.String("cache", cfg.Cache.Type))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize infrastructure dependencies
	store, closeCache, err := newCache(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to initialize cache", zap.Error(err))
	}
	defer closeCache()

	var (
		durable     domain.StagingRepository
		credentials []domain.CredentialSource
		persisted   domain.StoreDirectory
	)
	if cfg.Database.URL != "" {
		pool, err := postgres.Connect(ctx, postgres.Config{
			URL:          cfg.Database.URL,
			MaxConns:     cfg.Database.MaxConns,
			MaxRetries:   3,
			InitialDelay: time.Second,
		}, logger)
		if err != nil {
			logger.Warn("staging database unavailable; using in-memory staging", zap.Error(err))
		} else {
			defer pool.Close()
			durable = postgres.NewStagingRepository(pool)
			creds := postgres.NewCredentialRepository(pool)
			credentials = append(credentials, creds)
			persisted = creds
		}
	} else {
		logger.Warn("database url not configured; staged products are kept in memory")
	}
	credentials = append(credentials,
		shopify.NewStaticCredentialSource(cfg.Shopify.AccessToken, cfg.Shopify.StoreTokens()))

	snapshotClient := snapshot.NewClient(snapshot.Config{
		BaseURL:  cfg.Snapshot.BaseURL,
		APIKey:   cfg.Snapshot.APIKey,
		Timeout:  cfg.Snapshot.Timeout,
		CacheTTL: cfg.Snapshot.CacheTTL,
		Rate:     cfg.Snapshot.Rate,
		Logger:   logger.Named("snapshot"),
	}, store)

	shopifyClient := shopify.NewClient(shopify.Config{
		APIVersion:  cfg.Shopify.APIVersion,
		BaseURL:     cfg.Shopify.BaseURL,
		PageSize:    cfg.Shopify.ScanPageSize,
		MaxPages:    cfg.Shopify.ScanMaxPages,
		ScanTimeout: cfg.Shopify.ScanTimeout,
		CacheTTL:    cfg.Shopify.CacheTTL,
		Rate:        cfg.Shopify.Rate,
		Logger:      logger.Named("shopify"),
	}, credentials, store)

	// Enable debug mode in development environment
	debug := cfg.Server.Environment == "development"
	snapshotClient.SetDebug(debug)

	directory := shopify.NewDirectory(cfg.Shopify.StoreDomains(), persisted, logger.Named("stores"))

	// Initialize usecase layer
	stagingService := usecase.NewStagingService(usecase.StagingServiceConfig{
		Durable:  durable,
		Fallback: staging.NewMemoryRepository(),
		Logger:   logger.Named("staging"),
	})

	matcher := usecase.NewMatchingService(usecase.MatchConfig{
		EnableDebugLogging: debug,
		Logger:             logger.Named("matching"),
	})

	inventoryService := usecase.NewInventoryService(
		snapshotClient,
		shopifyClient,
		directory,
		stagingService,
		usecase.NewAggregationService(matcher),
		usecase.InventoryServiceConfig{
			PageSizes:        cfg.Server.PageSizes,
			DefaultPageSize:  cfg.Server.DefaultPageSize,
			SnapshotPageSize: cfg.Snapshot.PageSizeHint,
			Logger:           logger.Named("inventory"),
		},
	)

	// Create HTTP handler with dependencies
	handler := httpDelivery.NewHandler(inventoryService, stagingService, logger.Named("http"))

	// Setup router
	router := httpDelivery.SetupRouter(cfg, handler, logger.Named("http"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// newLogger builds a JSON production logger, or a console logger in development
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Log.Level, err)
	}

	zapCfg := zap.NewProductionConfig()
	if cfg.Server.Environment == "development" {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	return zapCfg.Build()
}

// newCache returns the configured cache backend and its close function
func newCache(ctx context.Context, cfg *config.Config) (domain.CacheRepository, func(), error) {
	if cfg.Cache.Type == "redis" {
		redisCache, err := cache.NewRedisCache(ctx, cfg.Cache.RedisURL, "reconcile:")
		if err != nil {
			return nil, nil, err
		}
		return redisCache, func() { _ = redisCache.Close() }, nil
	}
	return cache.NewMemoryCache(), func() {}, nil
}
