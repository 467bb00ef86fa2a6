package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/wildcard-labs/deck-indexer/internal/adapter"
	"github.com/wildcard-labs/deck-indexer/internal/config"
	"github.com/wildcard-labs/deck-indexer/internal/ingest"
	"github.com/wildcard-labs/deck-indexer/internal/jobs"
	"github.com/wildcard-labs/deck-indexer/internal/logger"
	"github.com/wildcard-labs/deck-indexer/internal/opensea"
	"github.com/wildcard-labs/deck-indexer/internal/registry"
	"github.com/wildcard-labs/deck-indexer/internal/stats"
	"github.com/wildcard-labs/deck-indexer/internal/store"
	"github.com/wildcard-labs/deck-indexer/internal/sweeper"
)

const httpTimeout = 30 * time.Second

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
	runOnce    = flag.String("run-once", "", "Run a single job (daily-stats or weekly-holders) and exit")
)

func main() {
	flag.Parse()

	// Load configuration
	config.ChdirRepoRoot()
	cfg, err := config.LoadSweeperConfig(*configFile, *envPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize logger with sentry integration
	err = logger.Initialize(logger.Config{
		Debug:     cfg.Debug,
		SentryDSN: cfg.SentryDSN,
		Tags: map[string]string{
			"service": "sweeper",
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting Deck Indexer sweeper")

	// Connect to database
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := store.ConfigureConnectionPool(db, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime, cfg.Database.ConnMaxIdleTime); err != nil {
		logger.Fatal("Failed to configure connection pool", zap.Error(err))
	}
	if err := store.AutoMigrate(db); err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}

	// Initialize store and adapters
	dataStore := store.NewPGStore(db)
	cursorStore := store.NewSyncCursorStore(db)
	fs := adapter.NewFileSystem()
	jsonAdapter := adapter.NewJSON()
	clock := adapter.NewClock()
	httpClient := adapter.NewHTTPClient(httpTimeout)

	// Load deck registry
	registryLoader := registry.NewDeckRegistryLoader(fs, jsonAdapter)
	resolver, err := registryLoader.Load(cfg.RegistryPath)
	if err != nil {
		logger.Fatal("Failed to load deck registry",
			zap.Error(err),
			zap.String("path", cfg.RegistryPath))
	}

	// Create OpenSea client
	openseaClient := opensea.NewClient(httpClient, jsonAdapter, opensea.Config{
		APIURL:                  cfg.OpenSea.APIURL,
		APIKey:                  cfg.OpenSea.APIKey,
		AssetsAPIKey:            cfg.OpenSea.AssetsAPIKey,
		RetryAttempts:           cfg.OpenSea.RetryAttempts,
		RetryDelay:              cfg.OpenSea.RetryDelay,
		DetailRequestsPerSecond: cfg.OpenSea.DetailRequestsPerSecond,
	})

	// Create services
	statsService := stats.NewService(dataStore, openseaClient, clock, cfg.Cache.StatsTTL)
	ingestService := ingest.NewService(dataStore, cursorStore, openseaClient, clock, nil)
	runner := jobs.NewRunner(resolver, statsService, ingestService, clock)

	// One-shot mode for ad-hoc runs and platform cron wrappers
	if *runOnce != "" {
		var result jobs.Result
		switch *runOnce {
		case "daily-stats":
			result = runner.RunDailyStats(ctx)
		case "weekly-holders":
			result = runner.RunWeeklyHolders(ctx)
		default:
			logger.Fatal("Unknown job", zap.String("job", *runOnce))
		}
		if !result.Success {
			logger.Fatal("Job failed",
				zap.String("job", result.Job),
				zap.String("error", result.Error),
			)
		}
		logger.Info("Job complete",
			zap.String("job", result.Job),
			zap.Duration("duration", result.Duration),
			zap.Int("refreshed", result.Refreshed),
		)
		return
	}

	// Create the refresh sweeper
	refreshSweeper := sweeper.NewRefreshSweeper(sweeper.RefreshConfig{
		DailyStatsSpec:    cfg.Schedules.DailyStats,
		WeeklyHoldersSpec: cfg.Schedules.WeeklyHolders,
	}, runner)

	errCh := make(chan error, 1)
	go func() {
		if err := refreshSweeper.Start(ctx); err != nil && err != context.Canceled {
			errCh <- err
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.InfoCtx(ctx, "Received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errCh:
		logger.ErrorCtx(ctx, err, zap.String("component", refreshSweeper.Name()))
	}
	cancel()

	// Create shutdown context with timeout (don't use canceled ctx)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := refreshSweeper.Stop(shutdownCtx); err != nil {
		logger.Error(err, zap.String("component", refreshSweeper.Name()))
	}
	logger.Info("Sweeper stopped")
}
