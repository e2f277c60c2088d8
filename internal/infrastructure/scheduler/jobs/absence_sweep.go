// Package jobs contains the scheduled jobs run by the worker.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nardi-attend/attendance-hub/internal/domain/attendance"
	"github.com/nardi-attend/attendance-hub/internal/domain/shared"
	"github.com/nardi-attend/attendance-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// ABSENCE SWEEP JOB
// ══════════════════════════════════════════════════════════════════════════════

// Sweeper runs the end-of-day absence sweep for a date key.
type Sweeper interface {
	Run(ctx context.Context, today string, now time.Time) (attendance.SweepSummary, error)
}

// AbsenceSweepConfig configures AbsenceSweepJob.
type AbsenceSweepConfig struct {
	// Timeout is the maximum duration of one sweep.
	Timeout time.Duration
}

// DefaultAbsenceSweepConfig returns sensible defaults.
func DefaultAbsenceSweepConfig() AbsenceSweepConfig {
	return AbsenceSweepConfig{Timeout: 15 * time.Minute}
}

// AbsenceSweepJob sweeps the current local day. It is scheduled for late
// evening, after the last session has ended.
type AbsenceSweepJob struct {
	sweeper Sweeper
	offset  timeutil.Offset
	now     func() time.Time
	logger  *slog.Logger
	config  AbsenceSweepConfig
}

// NewAbsenceSweepJob creates a new AbsenceSweepJob.
func NewAbsenceSweepJob(sweeper Sweeper, offset timeutil.Offset, logger *slog.Logger, config AbsenceSweepConfig) *AbsenceSweepJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &AbsenceSweepJob{
		sweeper: sweeper,
		offset:  offset,
		now:     time.Now,
		logger:  logger.With("job", "absence_sweep"),
		config:  config,
	}
}

// Name returns the job name.
func (j *AbsenceSweepJob) Name() string {
	return "absence_sweep"
}

// Description returns a human-readable description.
func (j *AbsenceSweepJob) Description() string {
	return "Counts the day's absences, warns and blocks members, finalizes open records"
}

// Run sweeps today's date in the configured offset. A sweep already held by
// another instance is not an error.
func (j *AbsenceSweepJob) Run(ctx context.Context) error {
	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	now := j.now()
	today := j.offset.DateKey(now)

	summary, err := j.sweeper.Run(ctx, today, now)
	if err != nil {
		if errors.Is(err, shared.ErrSweepInProgress) {
			j.logger.Info("sweep already running elsewhere, skipping", "date", today)
			return nil
		}
		return fmt.Errorf("absence sweep %s: %w", today, err)
	}

	if summary.Errors > 0 || summary.NotificationFailures > 0 {
		j.logger.Warn("absence sweep finished with failures",
			"date", today,
			"errors", summary.Errors,
			"notification_failures", summary.NotificationFailures,
		)
	}
	return nil
}
