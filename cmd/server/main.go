package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/sirupsen/logrus"

	"github.com/medclaims-analyzer-server/internal/api"
	"github.com/medclaims-analyzer-server/internal/cache"
	"github.com/medclaims-analyzer-server/internal/config"
	"github.com/medclaims-analyzer-server/internal/database"
	"github.com/medclaims-analyzer-server/internal/decision"
	"github.com/medclaims-analyzer-server/internal/domain"
	"github.com/medclaims-analyzer-server/internal/extract"
	"github.com/medclaims-analyzer-server/internal/ingest"
	"github.com/medclaims-analyzer-server/internal/llm"
	"github.com/medclaims-analyzer-server/internal/report"
	"github.com/medclaims-analyzer-server/internal/score"
	"github.com/medclaims-analyzer-server/internal/service"
	"github.com/medclaims-analyzer-server/internal/store"
	"github.com/medclaims-analyzer-server/internal/validate"
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Claim store
	claimStore, watchlist, storeCleanup, err := buildStore(ctx, cfg, configManager, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open claim store")
	}
	defer storeCleanup()

	// Optional Redis cache in front of the watchlist
	if cfg.Redis.Enabled {
		client, err := cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable, continuing without watchlist cache")
		} else {
			defer client.Close()
			watchlist = cache.NewRedisWatchlist(watchlist, client, cfg.Redis.TTL, logger)
		}
	}

	// Optional LLM extraction fallback
	var provider domain.LLMProvider
	if cfg.LLM.Enabled {
		openaiProvider := llm.NewOpenAIProvider(llm.Config{
			APIKey:      cfg.LLM.APIKey,
			BaseURL:     cfg.LLM.BaseURL,
			Model:       cfg.LLM.Model,
			Timeout:     cfg.LLM.Timeout,
			MaxAttempts: cfg.LLM.MaxAttempts,
		}, logger)
		cached, err := llm.NewCachedProvider(openaiProvider, cfg.LLM.CacheSize, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to create LLM cache")
		}
		provider = cached
	}

	// Pipeline stages
	normalizer := extract.NewNormalizer(ingest.NewPlainTextExtractor(), logger)
	extractor := extract.NewExtractor(provider, logger)
	validator := validate.NewValidator(cfg.Validation, logger)
	scorer := score.NewScorer(cfg.Scoring, store.NewHistory(claimStore), watchlist, logger)
	decider := decision.NewEngine(cfg.Decision, logger)
	renderer := report.NewRenderer(cfg.Report.OutputDir, logger)

	hub := api.NewHub(logger)
	defer hub.Close()

	analyzer := service.NewAnalyzer(logger, normalizer, extractor, validator, scorer, decider, claimStore, service.AnalyzerOptions{
		Renderer:      renderer,
		Publisher:     hub,
		WriteAttempts: cfg.Store.WriteAttempts,
		WriteBackoff:  cfg.Store.WriteBackoff,
	})

	server := api.NewServer(cfg, analyzer, claimStore, hub, logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down")
		cancel()
	}()

	logger.WithFields(logrus.Fields{
		"host":    cfg.Server.Host,
		"port":    cfg.Server.Port,
		"backend": cfg.Store.Backend,
	}).Info("Starting medical claims analyzer")

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}
	logger.Info("Server stopped")
}

func buildStore(ctx context.Context, cfg *domain.Config, manager *config.Manager, logger *logrus.Logger) (domain.ClaimStore, domain.WatchlistReader, func(), error) {
	if cfg.Store.Backend != "postgres" {
		s, err := store.NewSQLiteStore(cfg.Store.SQLitePath)
		if err != nil {
			return nil, nil, nil, err
		}
		return s, s, func() { s.Close() }, nil
	}

	if cfg.Database.AutoMigrate {
		runner, err := database.NewMigrationRunner(manager.GetDatabaseURL(), cfg.Database.MigrationsPath, logger)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := runner.Up(); err != nil {
			runner.Close()
			return nil, nil, nil, err
		}
		runner.Close()
	}

	db, err := database.NewConnection(ctx, cfg.Database, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	s, err := store.NewPostgresStore(stdlib.OpenDBFromPool(db.Pool))
	if err != nil {
		db.Close()
		return nil, nil, nil, err
	}
	cleanup := func() {
		s.Close()
		db.Close()
	}
	return s, s, cleanup, nil
}

func newLogger(cfg domain.LoggingConfig) *logrus.Logger {
	logger := logrus.New()
	if strings.ToLower(cfg.Format) == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	if level, err := logrus.ParseLevel(cfg.Level); err == nil {
		logger.SetLevel(level)
	}
	return logger
}
