// Package main is the entry point of the attendance HTTP API.
//
// The API records check-ins and check-outs, serves presence and ranking
// reads, and exposes the cron-triggered absence sweep. Checkout events are
// published to the worker, which keeps the ranking current.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nardi-attend/attendance-hub/config"
	"github.com/nardi-attend/attendance-hub/internal/application/eventhandler"
	"github.com/nardi-attend/attendance-hub/internal/application/query"
	"github.com/nardi-attend/attendance-hub/internal/bootstrap"
	httpserver "github.com/nardi-attend/attendance-hub/internal/interface/http"
	"github.com/nardi-attend/attendance-hub/internal/interface/http/handlers"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION AND LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := bootstrap.NewLogger(cfg)
	log.Info("starting attendance API",
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
		"utc_offset", cfg.App.Offset().String(),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. STORAGE, CACHE, EVENT BUS, USE CASES
	// ─────────────────────────────────────────────────────────────────────────
	app, err := bootstrap.New(ctx, cfg, log, bootstrap.RoleAPI)
	if err != nil {
		return err
	}
	defer app.Close()

	// Without Redis no worker will see our events, so handle them here.
	if app.LocalEvents {
		h := eventhandler.NewOnCheckedOutHandler(app.Ranking, log, eventhandler.DefaultCheckedOutConfig())
		if err := h.Register(app.Bus); err != nil {
			return fmt.Errorf("failed to register checkout handler: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. QUERIES
	// ─────────────────────────────────────────────────────────────────────────
	var rankingReader query.RankingReader
	if app.RankingCache != nil {
		rankingReader = app.RankingCache
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	cronAuth, err := handlers.NewCronAuth(cfg.HTTP.CronSecretHash)
	if err != nil {
		return fmt.Errorf("invalid CRON_SECRET_HASH: %w", err)
	}

	var limiter *handlers.RateLimiter
	if cfg.HTTP.RateLimitPerMinute > 0 {
		limiter = handlers.NewRateLimiter(handlers.RateLimitConfig{
			RequestsPerMinute: cfg.HTTP.RateLimitPerMinute,
			BurstSize:         cfg.HTTP.RateLimitBurst,
		})
	}

	serverCfg := httpserver.DefaultConfig()
	serverCfg.Host = cfg.HTTP.Host
	serverCfg.Port = cfg.HTTP.Port
	serverCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	serverCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	serverCfg.IdleTimeout = cfg.HTTP.IdleTimeout
	serverCfg.Version = cfg.App.Version

	server := httpserver.NewServer(serverCfg, httpserver.Dependencies{
		Attendance:    app.Ledger,
		Sweep:         app.Sweep,
		Ranking:       query.NewGetRankingHandler(rankingReader, app.Ranking, log),
		Presence:      query.NewGetPresenceHandler(app.Ledger, app.Records),
		LastSweep:     query.NewGetLastSweepHandler(app.SweepRuns),
		CronAuth:      cronAuth,
		RateLimiter:   limiter,
		HealthChecker: app.Health,
		Logger:        log,
	})

	errCh := server.StartAsync()

	// ─────────────────────────────────────────────────────────────────────────
	// 5. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("attendance API is running", "http_address", serverCfg.Address())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case err, ok := <-errCh:
		if ok && err != nil {
			log.Error("http server error", "error", err)
			return err
		}
	}

	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to stop HTTP server gracefully", "error", err)
		log.Warn("shutdown completed with errors")
		return nil
	}

	log.Info("shutdown completed successfully")
	return nil
}
