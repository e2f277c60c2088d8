// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nardi-attend/attendance-hub/internal/domain/attendance"
	"github.com/nardi-attend/attendance-hub/internal/domain/member"
	"github.com/nardi-attend/attendance-hub/internal/domain/schedule"
	"github.com/nardi-attend/attendance-hub/internal/domain/shared"
	"github.com/nardi-attend/attendance-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// ATTENDANCE LEDGER
// Owns the per-member, per-day record: ABSENT -> IN -> OUT.
// ══════════════════════════════════════════════════════════════════════════════

// LedgerConfig contains configuration for the ledger.
type LedgerConfig struct {
	// DuplicateScanGrace: a scan this soon after check-in is a retried check-in, not a checkout.
	DuplicateScanGrace time.Duration
}

// DefaultLedgerConfig returns the default ledger configuration.
func DefaultLedgerConfig() LedgerConfig {
	return LedgerConfig{
		DuplicateScanGrace: time.Minute,
	}
}

// Ledger records check-ins and check-outs.
type Ledger struct {
	members        member.Repository
	records        attendance.Repository
	schedules      schedule.Source
	resolver       *schedule.Resolver
	policy         *attendance.Policy
	eventPublisher shared.EventPublisher
	logger         *slog.Logger
	config         LedgerConfig
	newID          func() string
}

// NewLedger creates a new Ledger.
func NewLedger(
	members member.Repository,
	records attendance.Repository,
	schedules schedule.Source,
	resolver *schedule.Resolver,
	policy *attendance.Policy,
	eventPublisher shared.EventPublisher,
	log *slog.Logger,
	config LedgerConfig,
) *Ledger {
	if eventPublisher == nil {
		eventPublisher = shared.NopPublisher{}
	}
	if log == nil {
		log = slog.Default()
	}
	if config.DuplicateScanGrace < 0 {
		config.DuplicateScanGrace = 0
	}

	return &Ledger{
		members:        members,
		records:        records,
		schedules:      schedules,
		resolver:       resolver,
		policy:         policy,
		eventPublisher: eventPublisher,
		logger:         log.With(logger.Component("ledger")),
		config:         config,
		newID:          uuid.NewString,
	}
}

// DateKey returns the calendar day key of now under the configured offset.
func (l *Ledger) DateKey(now time.Time) string {
	return l.resolver.Offset().DateKey(now)
}

// CheckIn records the member's first check-in of the day.
//
// If a record already exists for today it is returned unchanged, so retrying a
// timed-out request is always safe. Denials are returned as errors matching
// shared.ErrMemberBlocked or shared.ErrOutsideWindow.
func (l *Ledger) CheckIn(ctx context.Context, memberID string, now time.Time) (*attendance.Record, error) {
	m, err := l.members.Get(ctx, memberID)
	if err != nil {
		return nil, err
	}
	if err := m.CanCheckIn(); err != nil {
		l.logger.InfoContext(ctx, "check-in denied", logger.MemberID(memberID), slog.String("reason", "blocked"))
		return nil, err
	}

	date := l.DateKey(now)

	existing, err := l.records.GetByMemberAndDate(ctx, memberID, date)
	if err == nil {
		return existing, nil
	}
	if !shared.IsNotFound(err) {
		return nil, fmt.Errorf("ledger: load today's record: %w", err)
	}

	window, err := l.windowFor(ctx, memberID, now)
	if err != nil {
		return nil, err
	}
	if decision := l.policy.Evaluate(now, window); !decision.Allowed {
		l.logger.InfoContext(ctx, "check-in denied",
			logger.MemberID(memberID),
			logger.Date(date),
			slog.String("reason", decision.Reason),
		)
		return nil, &shared.OutsideWindowError{Reason: decision.Reason}
	}

	rec, err := attendance.NewRecord(l.newID(), memberID, date, now)
	if err != nil {
		return nil, err
	}

	if err := l.records.Create(ctx, rec); err != nil {
		if !shared.IsAlreadyExists(err) {
			return nil, fmt.Errorf("ledger: create record: %w", err)
		}
		// Lost the race against a concurrent check-in for the same key.
		return l.records.GetByMemberAndDate(ctx, memberID, date)
	}

	if m.AbsenceStreak > 0 {
		if _, err := l.members.ResetAbsenceStreak(ctx, memberID); err != nil {
			l.logger.ErrorContext(ctx, "failed to reset absence streak",
				logger.MemberID(memberID), logger.Err(err))
		}
	}

	l.publish(ctx, shared.NewCheckedInEvent(memberID, rec.ID, date, now))

	l.logger.InfoContext(ctx, "checked in", logger.MemberID(memberID), logger.Date(date))
	return rec, nil
}

// CheckOut closes today's record and stores the earned hours.
// It fails with shared.ErrNoActiveSession when there is no record today and
// with shared.ErrAlreadyCheckedOut when the record is already OUT.
func (l *Ledger) CheckOut(ctx context.Context, memberID string, now time.Time) (*attendance.Record, error) {
	date := l.DateKey(now)

	rec, err := l.records.GetByMemberAndDate(ctx, memberID, date)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, shared.ErrNoActiveSession
		}
		return nil, fmt.Errorf("ledger: load today's record: %w", err)
	}
	if rec.Status == attendance.StatusOut {
		return nil, shared.ErrAlreadyCheckedOut
	}

	checkIn := now
	if rec.CheckInAt != nil {
		checkIn = *rec.CheckInAt
	}

	scheduledEnd := now
	window, err := l.windowFor(ctx, memberID, checkIn)
	if err != nil {
		return nil, err
	}
	if window != nil {
		scheduledEnd = window.End
	}

	hours := attendance.ComputeHours(checkIn, &now, scheduledEnd, now)

	ok, err := l.records.MarkCheckedOut(ctx, rec.ID, now, hours)
	if err != nil {
		return nil, fmt.Errorf("ledger: mark checked out: %w", err)
	}
	if !ok {
		return nil, shared.ErrAlreadyCheckedOut
	}
	if err := rec.CheckOut(now, hours); err != nil {
		return nil, err
	}

	l.publish(ctx, shared.NewCheckedOutEvent(memberID, rec.ID, date, hours, now))

	l.logger.InfoContext(ctx, "checked out",
		logger.MemberID(memberID),
		logger.Date(date),
		slog.Float64("hours", hours),
	)
	return rec, nil
}

// ScanAction describes what a scan did.
type ScanAction string

const (
	ScanCheckedIn  ScanAction = "checked_in"
	ScanCheckedOut ScanAction = "checked_out"
	ScanDuplicate  ScanAction = "duplicate"
)

// ScanResult is the outcome of a token scan.
type ScanResult struct {
	Action ScanAction
	Record *attendance.Record
}

// Scan toggles the day's state from a single token presentation:
// the first scan checks in, a later scan checks out. A scan within the
// duplicate grace of the check-in returns the existing record. A scan after
// checkout fails with shared.ErrAlreadyCheckedOut.
func (l *Ledger) Scan(ctx context.Context, memberID string, now time.Time) (*ScanResult, error) {
	rec, err := l.records.GetByMemberAndDate(ctx, memberID, l.DateKey(now))
	switch {
	case err == nil:
	case shared.IsNotFound(err):
		rec, err := l.CheckIn(ctx, memberID, now)
		if err != nil {
			return nil, err
		}
		return &ScanResult{Action: ScanCheckedIn, Record: rec}, nil
	default:
		return nil, fmt.Errorf("ledger: load today's record: %w", err)
	}

	if rec.Status == attendance.StatusOut {
		return nil, shared.ErrAlreadyCheckedOut
	}
	if rec.CheckInAt != nil && now.Sub(*rec.CheckInAt) < l.config.DuplicateScanGrace {
		return &ScanResult{Action: ScanDuplicate, Record: rec}, nil
	}

	out, err := l.CheckOut(ctx, memberID, now)
	if err != nil {
		return nil, err
	}
	return &ScanResult{Action: ScanCheckedOut, Record: out}, nil
}

// PresentToday returns the ids of members with a record on date.
func (l *Ledger) PresentToday(ctx context.Context, date string) (map[string]struct{}, error) {
	return l.members.ListPresentToday(ctx, date)
}

func (l *Ledger) windowFor(ctx context.Context, memberID string, ref time.Time) (*schedule.SessionWindow, error) {
	sched, err := l.schedules.ScheduleForMember(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("ledger: load schedule: %w", err)
	}

	window, err := l.resolver.Resolve(sched, ref)
	if err != nil {
		l.logger.ErrorContext(ctx, "course schedule is misconfigured",
			logger.MemberID(memberID), logger.Err(err))
		return nil, err
	}
	return window, nil
}

func (l *Ledger) publish(ctx context.Context, event shared.Event) {
	if err := l.eventPublisher.Publish(event); err != nil && !errors.Is(err, context.Canceled) {
		l.logger.WarnContext(ctx, "failed to publish event",
			slog.String("event_type", string(event.EventType())), logger.Err(err))
	}
}
