// Command api is the matchpulse webhook server: it receives live-score
// change notifications and dispatches push notifications to players.
//
// Usage:
//
//	matchpulse-api
//	API_PORT=8080 matchpulse-api
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"github.com/fiveaside/matchpulse/internal/api"
	"github.com/fiveaside/matchpulse/internal/api/handler"
	"github.com/fiveaside/matchpulse/internal/audience"
	"github.com/fiveaside/matchpulse/internal/config"
	"github.com/fiveaside/matchpulse/internal/db"
	"github.com/fiveaside/matchpulse/internal/fixture"
	"github.com/fiveaside/matchpulse/internal/livematch"
	"github.com/fiveaside/matchpulse/internal/notify"
	"github.com/fiveaside/matchpulse/internal/push"
	"github.com/fiveaside/matchpulse/internal/round"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// Load .env if present
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Context with signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	// Migrations first, then the pool (prepared statements need the tables)
	if cfg.MigrateOnStart {
		if err := db.Migrate(ctx, cfg); err != nil {
			logger.Error("Failed to run migrations", "error", err)
			os.Exit(1)
		}
		logger.Info("Migrations up to date")
	}

	logger.Info("Connecting to database...")
	pool, err := db.New(ctx, cfg)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("Database connected",
		"min_conns", cfg.DBPoolMinConns,
		"max_conns", cfg.DBPoolMaxConns)

	// Wire the delivery pipeline
	states := notify.NewPGStateStore(pool.Pool)
	claims := notify.NewCoordinator(states, notify.Windows{
		Goal:      cfg.GoalGraceWindow,
		Kickoff:   cfg.KickoffGraceWindow,
		Tolerance: cfg.ClaimTolerance,
	})
	fixtures := fixture.NewResolver(pool.Pool)
	audiences := audience.NewResolver(pool.Pool, fixtures)
	pushClient := push.New(cfg.PushAPIURL, cfg.PushAPIKey)
	dispatcher := notify.NewDispatcher(pushClient, logger)
	roundStore := round.NewPGStore(pool.Pool)
	rounds := round.NewAggregator(roundStore, fixtures, audiences, dispatcher, cfg.RoundMarkerWindow, logger)
	deliveries := notify.NewDeliveryLog(pool.Pool)

	processor := livematch.NewProcessor(cfg, logger, states, claims, fixtures, audiences, dispatcher, rounds, deliveries)

	// Router + HTTP server
	h := handler.New(pool, processor, states, fixtures, roundStore, logger)
	router := api.NewRouter(h, cfg)

	addr := fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Starting matchpulse webhook server",
			"addr", addr, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt
	<-ctx.Done()
	logger.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", "error", err)
	}
	logger.Info("Server stopped")
}
