package postgres

import (
	"context"
	"fmt"

	"github.com/nardi-attend/attendance-hub/internal/domain/attendance"
	"github.com/nardi-attend/attendance-hub/internal/domain/shared"
)

// SweepRunRepository implements attendance.SweepRunRepository for PostgreSQL.
type SweepRunRepository struct {
	conn *Connection
}

// NewSweepRunRepository creates a new SweepRunRepository.
func NewSweepRunRepository(conn *Connection) *SweepRunRepository {
	return &SweepRunRepository{conn: conn}
}

var _ attendance.SweepRunRepository = (*SweepRunRepository)(nil)

// SaveRun upserts the summary of the run's date, merged as in
// attendance.SweepSummary.Merge.
func (r *SweepRunRepository) SaveRun(ctx context.Context, s attendance.SweepSummary) error {
	query := `
		INSERT INTO sweep_runs (
			date, checked, warnings_sent, blocks_applied, hours_finalized, hours_skipped,
			already_swept, notification_failures, errors, started_at, finished_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (date) DO UPDATE SET
			checked = EXCLUDED.checked,
			warnings_sent = sweep_runs.warnings_sent + EXCLUDED.warnings_sent,
			blocks_applied = sweep_runs.blocks_applied + EXCLUDED.blocks_applied,
			hours_finalized = EXCLUDED.hours_finalized,
			hours_skipped = EXCLUDED.hours_skipped,
			already_swept = EXCLUDED.already_swept,
			notification_failures = sweep_runs.notification_failures + EXCLUDED.notification_failures,
			errors = EXCLUDED.errors,
			started_at = LEAST(sweep_runs.started_at, EXCLUDED.started_at),
			finished_at = EXCLUDED.finished_at`

	_, err := r.conn.Exec(ctx, query,
		s.Date,
		s.Checked,
		s.WarningsSent,
		s.BlocksApplied,
		s.HoursFinalized,
		s.HoursSkipped,
		s.AlreadySwept,
		s.NotificationFailures,
		s.Errors,
		s.StartedAt,
		s.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save sweep run: %w", err)
	}
	return nil
}

// LastRun returns the summary with the latest date.
func (r *SweepRunRepository) LastRun(ctx context.Context) (*attendance.SweepSummary, error) {
	query := `
		SELECT date, checked, warnings_sent, blocks_applied, hours_finalized, hours_skipped,
			already_swept, notification_failures, errors, started_at, finished_at
		FROM sweep_runs
		ORDER BY date DESC
		LIMIT 1`

	var s attendance.SweepSummary
	err := r.conn.QueryRow(ctx, query).Scan(
		&s.Date,
		&s.Checked,
		&s.WarningsSent,
		&s.BlocksApplied,
		&s.HoursFinalized,
		&s.HoursSkipped,
		&s.AlreadySwept,
		&s.NotificationFailures,
		&s.Errors,
		&s.StartedAt,
		&s.FinishedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.NewDomainError("sweep", "LastRun", shared.ErrNotFound, "no sweep has run yet")
		}
		return nil, fmt.Errorf("failed to get last sweep run: %w", err)
	}
	return &s, nil
}
