package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REBUILD RANKING JOB
// ══════════════════════════════════════════════════════════════════════════════

// Recomputer rebuilds cumulative hours and ranks.
type Recomputer interface {
	Recompute(ctx context.Context) error
}

// RebuildRankingConfig configures RebuildRankingJob.
type RebuildRankingConfig struct {
	Timeout time.Duration
}

// DefaultRebuildRankingConfig returns sensible defaults.
func DefaultRebuildRankingConfig() RebuildRankingConfig {
	return RebuildRankingConfig{Timeout: 5 * time.Minute}
}

// RebuildRankingJob periodically recomputes the ranking so totals heal
// after missed checkout events.
type RebuildRankingJob struct {
	ranking Recomputer
	logger  *slog.Logger
	config  RebuildRankingConfig
}

// NewRebuildRankingJob creates a new RebuildRankingJob.
func NewRebuildRankingJob(ranking Recomputer, logger *slog.Logger, config RebuildRankingConfig) *RebuildRankingJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &RebuildRankingJob{
		ranking: ranking,
		logger:  logger.With("job", "rebuild_ranking"),
		config:  config,
	}
}

// Name returns the job name.
func (j *RebuildRankingJob) Name() string {
	return "rebuild_ranking"
}

// Description returns a human-readable description.
func (j *RebuildRankingJob) Description() string {
	return "Recomputes total hours and ranks from the attendance history"
}

// Run executes the rebuild.
func (j *RebuildRankingJob) Run(ctx context.Context) error {
	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	startedAt := time.Now()
	if err := j.ranking.Recompute(ctx); err != nil {
		return fmt.Errorf("rebuild ranking: %w", err)
	}

	j.logger.Debug("ranking rebuilt", "duration", time.Since(startedAt).String())
	return nil
}
