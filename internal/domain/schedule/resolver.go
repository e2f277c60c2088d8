package schedule

import (
	"fmt"
	"time"

	"github.com/nardi-attend/attendance-hub/internal/domain/shared"
	"github.com/nardi-attend/attendance-hub/pkg/timeutil"
)

// SessionWindow is the concrete start and end of one scheduled session.
// End is always after Start.
type SessionWindow struct {
	Start time.Time
	End   time.Time
}

// Duration returns the scheduled length of the session.
func (w SessionWindow) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Contains reports whether t falls within [Start, End].
func (w SessionWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Resolver turns a weekly schedule into the session window of a calendar day.
type Resolver struct {
	offset timeutil.Offset
}

// NewResolver creates a Resolver for the configured offset.
func NewResolver(offset timeutil.Offset) *Resolver {
	return &Resolver{offset: offset}
}

// Offset returns the offset the resolver reads calendar days under.
func (r *Resolver) Offset() timeutil.Offset {
	return r.offset
}

// Resolve returns the session window on the local calendar day of ref.
// It returns (nil, nil) when the schedule is nil or has no session that weekday.
// A malformed day, or one that ends at or before its start, is a configuration error.
func (r *Resolver) Resolve(s *WeeklySchedule, ref time.Time) (*SessionWindow, error) {
	day, ok := s.Day(r.offset.Weekday(ref))
	if !ok {
		return nil, nil
	}

	start, err := timeutil.ParseClock(day.StartTime)
	if err != nil {
		return nil, shared.WrapError("schedule", "Resolve", shared.ErrConfiguration, "invalid start time", err)
	}
	end, err := timeutil.ParseClock(day.EndTime)
	if err != nil {
		return nil, shared.WrapError("schedule", "Resolve", shared.ErrConfiguration, "invalid end time", err)
	}
	if end <= start {
		return nil, shared.NewDomainError("schedule", "Resolve", shared.ErrConfiguration,
			fmt.Sprintf("session %s-%s ends before it starts; sessions crossing midnight are not supported",
				day.StartTime, day.EndTime))
	}

	return &SessionWindow{
		Start: r.offset.At(ref, start).UTC(),
		End:   r.offset.At(ref, end).UTC(),
	}, nil
}
