// cmd/service/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/KhlifiIsmail/devlog-backend/internal/ai"
	"github.com/KhlifiIsmail/devlog-backend/internal/api"
	"github.com/KhlifiIsmail/devlog-backend/internal/config"
	"github.com/KhlifiIsmail/devlog-backend/internal/database"
	"github.com/KhlifiIsmail/devlog-backend/internal/dispatch"
	"github.com/KhlifiIsmail/devlog-backend/internal/github"
	"github.com/KhlifiIsmail/devlog-backend/internal/resync"
	"github.com/KhlifiIsmail/devlog-backend/internal/session"
	"github.com/KhlifiIsmail/devlog-backend/internal/webhook"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Application startup error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Initialize structured logger
	logLevel := new(slog.LevelVar)
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(handler)
	slog.SetDefault(logger)

	// 2. Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	setLogLevel(cfg.LogLevel, logLevel)
	logger.Info("Configuration loaded successfully")

	// 3. Setup context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// 4. Initialize database connection and run migrations
	dbpool, err := pgxpool.New(ctx, cfg.DBURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dbpool.Close()
	logger.Info("Database connection established")

	if err := runMigrations(cfg.DBURL); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}
	logger.Info("Database migrations applied successfully")

	// 5. Initialize application components
	grouper := session.NewGrouper(time.Duration(cfg.SessionGapMinutes)*time.Minute, logger)
	window := time.Duration(cfg.GroupingWindowDays) * 24 * time.Hour
	processor := webhook.NewProcessor(dbpool, grouper, logger, window)

	dispatcher := dispatch.New(dbpool, processor, logger, dispatch.Config{
		Workers:      cfg.DispatchWorkers,
		PollInterval: cfg.DispatchPollEvery,
		MaxAttempts:  int32(cfg.DispatchMaxAttempts),
		BaseDelay:    cfg.DispatchBaseDelay,
		MaxDelay:     cfg.DispatchMaxDelay,
		SoftLimit:    cfg.DispatchSoftLimit,
	})

	var syncer *resync.Syncer
	if cfg.GithubToken != "" {
		syncer = resync.NewSyncer(dbpool, github.NewClient(cfg.GithubToken, logger), logger)
	} else {
		logger.Warn("GITHUB_TOKEN not set, repository sync and stats backfill disabled")
	}

	narrator := ai.NewClient(cfg.AIBaseURL, cfg.AIAPIKey, cfg.AIModel, logger)
	if !narrator.Configured() {
		logger.Warn("AI_API_KEY not set, session narratives disabled")
	}

	router := api.NewRouter(api.Deps{
		DB:            database.New(dbpool),
		Pool:          dbpool,
		Grouper:       grouper,
		Syncer:        syncer,
		Narrator:      narrator,
		WebhookSecret: cfg.GithubWebhookSecret,
		Logger:        logger,
	})
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 6. Run the HTTP server and the dispatcher until shutdown
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return dispatcher.Run(gctx)
	})

	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("Application stopped")
	return nil
}

func runMigrations(dbURL string) error {
	m, err := migrate.New("file://migrations", dbURL)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func setLogLevel(level string, v *slog.LevelVar) {
	switch level {
	case "debug":
		v.Set(slog.LevelDebug)
	case "warn":
		v.Set(slog.LevelWarn)
	case "error":
		v.Set(slog.LevelError)
	default:
		v.Set(slog.LevelInfo)
	}
}
