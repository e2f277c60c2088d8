package query

import (
	"context"
	"time"

	"github.com/nardi-attend/attendance-hub/internal/domain/attendance"
)

// SweepRunDTO reports the most recent absence sweep.
type SweepRunDTO struct {
	Date                 string    `json:"date"`
	Checked              int       `json:"checked"`
	WarningsSent         int       `json:"warnings_sent"`
	BlocksApplied        int       `json:"blocks_applied"`
	HoursFinalized       int       `json:"hours_finalized"`
	HoursSkipped         int       `json:"hours_skipped"`
	AlreadySwept         int       `json:"already_swept"`
	NotificationFailures int       `json:"notification_failures"`
	Errors               int       `json:"errors"`
	StartedAt            time.Time `json:"started_at"`
	FinishedAt           time.Time `json:"finished_at"`
}

// NewSweepRunDTO converts a summary.
func NewSweepRunDTO(s attendance.SweepSummary) SweepRunDTO {
	return SweepRunDTO{
		Date:                 s.Date,
		Checked:              s.Checked,
		WarningsSent:         s.WarningsSent,
		BlocksApplied:        s.BlocksApplied,
		HoursFinalized:       s.HoursFinalized,
		HoursSkipped:         s.HoursSkipped,
		AlreadySwept:         s.AlreadySwept,
		NotificationFailures: s.NotificationFailures,
		Errors:               s.Errors,
		StartedAt:            s.StartedAt,
		FinishedAt:           s.FinishedAt,
	}
}

// GetLastSweepHandler returns the latest stored sweep run.
type GetLastSweepHandler struct {
	runs attendance.SweepRunRepository
}

// NewGetLastSweepHandler creates a new GetLastSweepHandler.
func NewGetLastSweepHandler(runs attendance.SweepRunRepository) *GetLastSweepHandler {
	return &GetLastSweepHandler{runs: runs}
}

// Handle returns an error matching shared.ErrNotFound before the first run.
func (h *GetLastSweepHandler) Handle(ctx context.Context) (*SweepRunDTO, error) {
	run, err := h.runs.LastRun(ctx)
	if err != nil {
		return nil, err
	}
	dto := NewSweepRunDTO(*run)
	return &dto, nil
}
