package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/pgx-med-guard-server/internal/api"
	"github.com/pgx-med-guard-server/internal/config"
	"github.com/pgx-med-guard-server/internal/database"
	"github.com/pgx-med-guard-server/internal/domain"
	"github.com/pgx-med-guard-server/internal/genetics"
	"github.com/pgx-med-guard-server/internal/service"
	"github.com/pgx-med-guard-server/internal/store"
	"github.com/pgx-med-guard-server/internal/vitals"
	"github.com/pgx-med-guard-server/pkg/external"
)

func main() {
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger := newLogger(cfg.Logging)

	logger.WithFields(logrus.Fields{
		"host":    cfg.Server.Host,
		"port":    cfg.Server.Port,
		"backend": cfg.Store.Backend,
	}).Info("Starting medication risk guard server")

	dataStore, pool, err := newStore(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize store")
	}
	defer dataStore.Close()
	if pool != nil {
		defer pool.Close()
	}

	textGen := external.NewResilientTextClient(external.NewTextGenClient(cfg.TextGen), logger)

	parser, err := genetics.NewParser(logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize genotype parser")
	}

	provider := vitals.NewChannelProvider(logger)
	analyzer := service.NewAnalyzerService(logger, textGen)
	server := api.NewServer(cfg, logger, dataStore, analyzer, parser, provider)
	if pool != nil {
		server.WithDatabaseHealth(pool)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down")
		cancel()
	}()

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}

	logger.Info("Server stopped")
}

// newLogger builds the process logger from configuration.
func newLogger(cfg domain.LoggingConfig) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if cfg.Output == "stderr" {
		logger.SetOutput(os.Stderr)
	} else {
		logger.SetOutput(os.Stdout)
	}

	return logger
}

// newStore builds the configured persistence backend. The postgres
// backend runs schema migrations first and returns a connection pool
// for the health endpoint.
func newStore(cfg *domain.Config, logger *logrus.Logger) (domain.Store, *database.DB, error) {
	switch cfg.Store.Backend {
	case "postgres":
		databaseURL := database.ConnectionURL(cfg.Database)

		runner, err := database.NewMigrationRunner(databaseURL, logger)
		if err != nil {
			return nil, nil, err
		}
		if err := runner.Up(); err != nil {
			runner.Close()
			return nil, nil, err
		}
		runner.Close()

		pool, err := database.NewConnection(context.Background(), cfg.Database, logger)
		if err != nil {
			return nil, nil, err
		}

		pgStore, err := store.NewPostgresStore(databaseURL)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		return pgStore, pool, nil
	case "redis":
		redisStore, err := store.NewRedisStore(cfg.Cache.RedisURL, cfg.Cache.DefaultTTL)
		return redisStore, nil, err
	default:
		sqliteStore, err := store.NewSQLiteStore(cfg.Store.SQLitePath)
		return sqliteStore, nil, err
	}
}
