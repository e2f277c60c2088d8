package attendance

import (
	"context"
	"time"
)

// SweepSummary reports one absence sweep run.
type SweepSummary struct {
	Date                 string
	Checked              int
	WarningsSent         int
	BlocksApplied        int
	HoursFinalized       int
	HoursSkipped         int
	AlreadySwept         int
	NotificationFailures int
	Errors               int
	StartedAt            time.Time
	FinishedAt           time.Time
}

// Merge folds a later run of the same date into s. Warnings, blocks and
// their delivery failures only happen on the run that first sweeps a member,
// so they accumulate. Every other counter describes the whole day as of the
// later run and is taken from it.
func (s SweepSummary) Merge(later SweepSummary) SweepSummary {
	merged := later
	merged.WarningsSent += s.WarningsSent
	merged.BlocksApplied += s.BlocksApplied
	merged.NotificationFailures += s.NotificationFailures
	if !s.StartedAt.IsZero() && s.StartedAt.Before(later.StartedAt) {
		merged.StartedAt = s.StartedAt
	}
	return merged
}

// SweepRunRepository persists sweep summaries keyed by date.
type SweepRunRepository interface {
	// SaveRun stores the summary. An earlier run of the same date is merged
	// with it, see SweepSummary.Merge.
	SaveRun(ctx context.Context, s SweepSummary) error

	// LastRun returns the most recent summary, or an error matching shared.ErrNotFound.
	LastRun(ctx context.Context) (*SweepSummary, error)
}
