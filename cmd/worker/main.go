// Package main is the entry point of the background worker.
//
// The worker owns the periodic jobs:
// - the nightly absence sweep (streaks, warnings, blocks, open-record hours)
// - the ranking rebuild, which heals totals after missed checkout events
//
// It also consumes checkout events published by the API and recomputes the
// ranking as they arrive.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nardi-attend/attendance-hub/config"
	"github.com/nardi-attend/attendance-hub/internal/application/eventhandler"
	"github.com/nardi-attend/attendance-hub/internal/bootstrap"
	"github.com/nardi-attend/attendance-hub/internal/infrastructure/scheduler"
	"github.com/nardi-attend/attendance-hub/internal/infrastructure/scheduler/jobs"
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
	log.Info("starting attendance worker",
		"env", cfg.App.Environment,
		"utc_offset", cfg.App.Offset().String(),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. STORAGE, CACHE, EVENT BUS, USE CASES
	// ─────────────────────────────────────────────────────────────────────────
	app, err := bootstrap.New(ctx, cfg, log, bootstrap.RoleWorker)
	if err != nil {
		return err
	}
	defer app.Close()

	if app.LocalEvents {
		log.Warn("redis disabled: this worker will not receive checkout events from the API")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. EVENT HANDLERS
	// ─────────────────────────────────────────────────────────────────────────
	onCheckedOut := eventhandler.NewOnCheckedOutHandler(app.Ranking, log, eventhandler.DefaultCheckedOutConfig())
	if err := onCheckedOut.Register(app.Bus); err != nil {
		return fmt.Errorf("failed to register checkout handler: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. SCHEDULER
	// ─────────────────────────────────────────────────────────────────────────
	sched, err := newScheduler(cfg, app)
	if err != nil {
		return err
	}

	if cfg.Scheduler.Enabled {
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		for _, job := range sched.ListJobs() {
			log.Info("job scheduled", "job", job.Name, "schedule", job.Schedule, "next_run", job.NextRun)
		}
		// Warm the ranking cache instead of waiting for the first interval.
		go func() {
			if _, err := sched.RunNow(ctx, "rebuild_ranking"); err != nil {
				log.Warn("initial ranking rebuild failed", "error", err)
			}
		}()
	} else {
		log.Warn("scheduler disabled, only event handlers are active")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("attendance worker is running",
		"sweep_cron", cfg.Scheduler.SweepCron,
		"ranking_interval", cfg.Scheduler.RankingInterval.String(),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	sig := <-sigCh
	log.Info("received shutdown signal", "signal", sig.String())
	log.Info("starting graceful shutdown...")

	if err := sched.Stop(); err != nil && !errors.Is(err, scheduler.ErrSchedulerNotRunning) {
		log.Error("failed to stop scheduler", "error", err)
	}

	log.Info("shutdown completed successfully")
	return nil
}

// newScheduler registers the sweep on its cron expression and the ranking
// rebuild on its interval. Cron fields are read in the institution clock.
func newScheduler(cfg *config.Config, app *bootstrap.Components) (*scheduler.Scheduler, error) {
	sched := scheduler.New(scheduler.Config{
		Logger:       app.Logger,
		Location:     app.Offset.Location(),
		TickInterval: cfg.Scheduler.TickInterval,
	})

	sweepCron, err := scheduler.ParseCronExpression(cfg.Scheduler.SweepCron)
	if err != nil {
		return nil, fmt.Errorf("invalid SWEEP_CRON: %w", err)
	}
	sweepJob := jobs.NewAbsenceSweepJob(app.Sweep, app.Offset, app.Logger, jobs.AbsenceSweepConfig{
		Timeout: cfg.Scheduler.SweepTimeout,
	})
	if err := sched.Register(sweepJob, sweepCron); err != nil {
		return nil, fmt.Errorf("failed to register %s: %w", sweepJob.Name(), err)
	}

	rankingJob := jobs.NewRebuildRankingJob(app.Ranking, app.Logger, jobs.RebuildRankingConfig{
		Timeout: cfg.Scheduler.RankingTimeout,
	})
	if err := sched.Register(rankingJob, scheduler.NewIntervalSchedule(cfg.Scheduler.RankingInterval)); err != nil {
		return nil, fmt.Errorf("failed to register %s: %w", rankingJob.Name(), err)
	}

	return sched, nil
}
