package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nardi-attend/attendance-hub/internal/domain/attendance"
	"github.com/nardi-attend/attendance-hub/internal/domain/member"
	"github.com/nardi-attend/attendance-hub/internal/domain/notification"
	"github.com/nardi-attend/attendance-hub/internal/domain/schedule"
	"github.com/nardi-attend/attendance-hub/internal/domain/shared"
	"github.com/nardi-attend/attendance-hub/pkg/logger"
	"github.com/nardi-attend/attendance-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// ABSENCE SWEEP
// Daily pass: finalize open records, update absence streaks, warn and block.
// ══════════════════════════════════════════════════════════════════════════════

// Locker grants a cross-process lock. Acquire returns an error matching
// shared.ErrLocked when another holder owns key.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, err error)
}

// Recomputer rebuilds totals and ranks.
type Recomputer interface {
	Recompute(ctx context.Context) error
}

// AbsenceSweepConfig contains configuration for the sweep.
type AbsenceSweepConfig struct {
	// WarnAtStreak triggers a warning when the streak reaches exactly this value.
	WarnAtStreak int

	// BlockAtStreak blocks the member once the streak reaches this value.
	BlockAtStreak int

	// LockTTL bounds how long a crashed sweep can hold the lock.
	LockTTL time.Duration

	// NotifyTimeout bounds a single notification attempt.
	NotifyTimeout time.Duration
}

// DefaultAbsenceSweepConfig returns the default thresholds: warn at 2, block at 4.
func DefaultAbsenceSweepConfig() AbsenceSweepConfig {
	return AbsenceSweepConfig{
		WarnAtStreak:  2,
		BlockAtStreak: 4,
		LockTTL:       10 * time.Minute,
		NotifyTimeout: 30 * time.Second,
	}
}

// SweepDependencies wires the sweep. Runs, Locker, Ranking and
// EventPublisher are optional.
type SweepDependencies struct {
	Members        member.Repository
	Records        attendance.Repository
	Schedules      schedule.Source
	Resolver       *schedule.Resolver
	Sender         notification.Sender
	Runs           attendance.SweepRunRepository
	Locker         Locker
	Ranking        Recomputer
	EventPublisher shared.EventPublisher
	Logger         *slog.Logger
}

// AbsenceSweep runs the daily escalation pass.
//
// Re-running it for the same date is safe: a member's streak is only
// incremented by the first sweep that counts them for that date, and
// notifications follow only from that increment.
type AbsenceSweep struct {
	deps   SweepDependencies
	config AbsenceSweepConfig
	logger *slog.Logger
}

// NewAbsenceSweep creates a new AbsenceSweep.
func NewAbsenceSweep(deps SweepDependencies, config AbsenceSweepConfig) *AbsenceSweep {
	defaults := DefaultAbsenceSweepConfig()
	if config.WarnAtStreak <= 0 {
		config.WarnAtStreak = defaults.WarnAtStreak
	}
	if config.BlockAtStreak <= 0 {
		config.BlockAtStreak = defaults.BlockAtStreak
	}
	if config.LockTTL <= 0 {
		config.LockTTL = defaults.LockTTL
	}
	if config.NotifyTimeout <= 0 {
		config.NotifyTimeout = defaults.NotifyTimeout
	}
	if deps.EventPublisher == nil {
		deps.EventPublisher = shared.NopPublisher{}
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	return &AbsenceSweep{
		deps:   deps,
		config: config,
		logger: log.With(logger.Component("absence_sweep")),
	}
}

// Run executes the sweep for the calendar day today (YYYY-MM-DD) at instant now.
func (s *AbsenceSweep) Run(ctx context.Context, today string, now time.Time) (attendance.SweepSummary, error) {
	summary := attendance.SweepSummary{Date: today, StartedAt: now}

	if !timeutil.ValidDateKey(today) {
		return summary, shared.ErrInvalidDateKey
	}

	if s.deps.Locker != nil {
		release, err := s.deps.Locker.Acquire(ctx, "sweep:absence:"+today, s.config.LockTTL)
		if err != nil {
			if errors.Is(err, shared.ErrLocked) {
				return summary, shared.ErrSweepInProgress
			}
			return summary, fmt.Errorf("sweep: acquire lock: %w", err)
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				s.logger.WarnContext(ctx, "failed to release sweep lock", logger.Err(err))
			}
		}()
	}

	s.logger.InfoContext(ctx, "starting absence sweep", logger.Date(today))

	s.finalizeOpenRecords(ctx, today, now, &summary)

	present, err := s.deps.Members.ListPresentToday(ctx, today)
	if err != nil {
		return summary, fmt.Errorf("sweep: list present members: %w", err)
	}
	members, err := s.deps.Members.ListAll(ctx)
	if err != nil {
		return summary, fmt.Errorf("sweep: list members: %w", err)
	}

	for _, m := range members {
		select {
		case <-ctx.Done():
			s.logger.WarnContext(ctx, "absence sweep cancelled", logger.Date(today), slog.Int("checked", summary.Checked))
			return summary, ctx.Err()
		default:
		}

		summary.Checked++
		if _, ok := present[m.ID]; ok {
			s.markPresent(ctx, m, &summary)
			continue
		}
		s.markAbsent(ctx, m, today, now, &summary)
	}

	if s.deps.Ranking != nil {
		if err := s.deps.Ranking.Recompute(ctx); err != nil {
			s.logger.ErrorContext(ctx, "ranking recompute after sweep failed", logger.Err(err))
		}
	}

	summary.FinishedAt = time.Now()
	if s.deps.Runs != nil {
		if err := s.deps.Runs.SaveRun(ctx, summary); err != nil {
			s.logger.ErrorContext(ctx, "failed to save sweep run", logger.Err(err))
		}
	}

	s.publish(ctx, shared.NewSweepCompletedEvent(today, summary.Checked, summary.WarningsSent, summary.BlocksApplied, now))

	s.logger.InfoContext(ctx, "absence sweep completed",
		logger.Date(today),
		slog.Int("checked", summary.Checked),
		slog.Int("warnings_sent", summary.WarningsSent),
		slog.Int("blocks_applied", summary.BlocksApplied),
		slog.Int("hours_finalized", summary.HoursFinalized),
		slog.Int("hours_skipped", summary.HoursSkipped),
		slog.Int("already_swept", summary.AlreadySwept),
		slog.Int("notification_failures", summary.NotificationFailures),
		slog.Int("errors", summary.Errors),
	)

	return summary, nil
}

// finalizeOpenRecords credits records still IN with hours up to the scheduled end.
func (s *AbsenceSweep) finalizeOpenRecords(ctx context.Context, today string, now time.Time, summary *attendance.SweepSummary) {
	open, err := s.deps.Records.ListOpenByDate(ctx, today)
	if err != nil {
		summary.Errors++
		s.logger.ErrorContext(ctx, "failed to list open records", logger.Date(today), logger.Err(err))
		return
	}

	for _, rec := range open {
		if rec.CheckInAt == nil {
			continue
		}

		sched, err := s.deps.Schedules.ScheduleForMember(ctx, rec.MemberID)
		if err != nil {
			summary.Errors++
			s.logger.ErrorContext(ctx, "failed to load schedule", logger.MemberID(rec.MemberID), logger.Err(err))
			continue
		}
		window, err := s.deps.Resolver.Resolve(sched, *rec.CheckInAt)
		if err != nil {
			summary.Errors++
			s.logger.ErrorContext(ctx, "course schedule is misconfigured", logger.MemberID(rec.MemberID), logger.Err(err))
			continue
		}
		if window == nil {
			summary.HoursSkipped++
			continue
		}

		hours := attendance.ComputeHours(*rec.CheckInAt, nil, window.End, now)
		if err := s.deps.Records.SetHours(ctx, rec.ID, hours); err != nil {
			summary.Errors++
			s.logger.ErrorContext(ctx, "failed to store hours", logger.MemberID(rec.MemberID), logger.Err(err))
			continue
		}
		summary.HoursFinalized++
	}
}

func (s *AbsenceSweep) markPresent(ctx context.Context, m *member.Member, summary *attendance.SweepSummary) {
	if m.Blocked || m.AbsenceStreak == 0 {
		return
	}
	if _, err := s.deps.Members.ResetAbsenceStreak(ctx, m.ID); err != nil {
		summary.Errors++
		s.logger.ErrorContext(ctx, "failed to reset absence streak", logger.MemberID(m.ID), logger.Err(err))
	}
}

func (s *AbsenceSweep) markAbsent(ctx context.Context, m *member.Member, today string, now time.Time, summary *attendance.SweepSummary) {
	if m.Blocked {
		return
	}

	streak, applied, err := s.deps.Members.IncrementAbsenceStreak(ctx, m.ID, today)
	if err != nil {
		summary.Errors++
		s.logger.ErrorContext(ctx, "failed to increment absence streak", logger.MemberID(m.ID), logger.Err(err))
		return
	}
	if !applied {
		summary.AlreadySwept++
		return
	}
	m.AbsenceStreak = streak

	if streak == s.config.WarnAtStreak {
		summary.WarningsSent++
		s.publish(ctx, shared.NewMemberWarnedEvent(m.ID, streak, today, now))
		s.notify(ctx, m, summary, func(ctx context.Context) error {
			return s.deps.Sender.SendWarning(ctx, m, streak)
		})
	}

	if streak >= s.config.BlockAtStreak {
		changed, err := s.deps.Members.SetBlocked(ctx, m.ID)
		if err != nil {
			summary.Errors++
			s.logger.ErrorContext(ctx, "failed to block member", logger.MemberID(m.ID), logger.Err(err))
			return
		}
		if !changed {
			return
		}
		m.Blocked = true
		summary.BlocksApplied++
		s.publish(ctx, shared.NewMemberBlockedEvent(m.ID, streak, today, now))
		s.notify(ctx, m, summary, func(ctx context.Context) error {
			return s.deps.Sender.SendBlock(ctx, m)
		})
	}
}

// notify runs one delivery after state is committed. Failures are counted
// and logged; they never stop the sweep.
func (s *AbsenceSweep) notify(ctx context.Context, m *member.Member, summary *attendance.SweepSummary, send func(context.Context) error) {
	if s.deps.Sender == nil {
		return
	}

	nctx, cancel := context.WithTimeout(ctx, s.config.NotifyTimeout)
	defer cancel()

	if err := send(nctx); err != nil {
		summary.NotificationFailures++
		s.logger.WarnContext(ctx, "notification failed", logger.MemberID(m.ID), logger.Err(err))
	}
}

func (s *AbsenceSweep) publish(ctx context.Context, event shared.Event) {
	if err := s.deps.EventPublisher.Publish(event); err != nil {
		s.logger.WarnContext(ctx, "failed to publish event",
			slog.String("event_type", string(event.EventType())), logger.Err(err))
	}
}
