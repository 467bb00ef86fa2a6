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
	"github.com/wildcard-labs/deck-indexer/internal/api/server"
	"github.com/wildcard-labs/deck-indexer/internal/config"
	"github.com/wildcard-labs/deck-indexer/internal/ingest"
	"github.com/wildcard-labs/deck-indexer/internal/jobs"
	"github.com/wildcard-labs/deck-indexer/internal/logger"
	"github.com/wildcard-labs/deck-indexer/internal/opensea"
	"github.com/wildcard-labs/deck-indexer/internal/registry"
	"github.com/wildcard-labs/deck-indexer/internal/stats"
	"github.com/wildcard-labs/deck-indexer/internal/store"
)

const httpTimeout = 30 * time.Second

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
)

func main() {
	flag.Parse()

	// Load configuration
	config.ChdirRepoRoot()
	cfg, err := config.LoadAPIConfig(*configFile, *envPath)
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
			"service": "api-server",
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting Deck Indexer API")

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
	logger.InfoCtx(ctx, "Connected to database",
		zap.Int("max_open_conns", cfg.Database.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.Database.MaxIdleConns),
	)

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
	logger.InfoCtx(ctx, "Loaded deck registry",
		zap.String("path", cfg.RegistryPath),
		zap.Int("decks", len(resolver.Decks())),
	)

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
	cardResolver := registry.NewStandardCardResolver(resolver)
	statsService := stats.NewService(dataStore, openseaClient, clock, cfg.Cache.StatsTTL)
	ingestService := ingest.NewService(dataStore, cursorStore, openseaClient, clock, nil)
	runner := jobs.NewRunner(resolver, statsService, ingestService, clock)

	// Create and start server
	srv := server.New(server.Config{
		Debug:        cfg.Debug,
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
		SharedSecret: cfg.Jobs.SharedSecret,
	}, resolver, cardResolver, statsService, runner)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			errCh <- err
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.InfoCtx(ctx, "Received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errCh:
		logger.ErrorCtx(ctx, err, zap.String("component", "server"))
	}
	cancel()

	// Create shutdown context with timeout (don't use canceled ctx)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error(err, zap.String("component", "server"))
	}
	logger.Info("API server stopped")
}
