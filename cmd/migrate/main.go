// Package main applies or reverts the PostgreSQL schema.
//
// Usage:
//
//	migrate up     apply every pending migration
//	migrate down   revert the last applied migration
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nardi-attend/attendance-hub/config"
	"github.com/nardi-attend/attendance-hub/internal/bootstrap"
	"github.com/nardi-attend/attendance-hub/internal/infrastructure/persistence/postgres"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	direction := "up"
	if len(os.Args) > 1 {
		direction = os.Args[1]
	}

	if err := run(ctx, direction); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, direction string) error {
	if direction != "up" && direction != "down" {
		return fmt.Errorf("unknown direction %q, want up or down", direction)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	log := bootstrap.NewLogger(cfg)

	conn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL, postgres.DefaultPoolOptions())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer conn.Close()

	migrator := postgres.NewMigrator(conn)
	if direction == "down" {
		if err := migrator.Rollback(ctx); err != nil {
			return fmt.Errorf("failed to roll back: %w", err)
		}
		log.Info("last migration reverted")
		return nil
	}

	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	log.Info("database schema is up to date")
	return nil
}
