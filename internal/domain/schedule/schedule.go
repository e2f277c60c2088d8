// Package schedule models a course's recurring weekly meeting pattern and
// resolves it into concrete session windows under a fixed UTC offset.
package schedule

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/nardi-attend/attendance-hub/internal/domain/shared"
	"github.com/nardi-attend/attendance-hub/pkg/timeutil"
)

// DaySchedule is one weekday's session in local HH:mm clock strings.
type DaySchedule struct {
	StartTime       string `json:"startTime"`
	EndTime         string `json:"endTime"`
	DurationMinutes int    `json:"duration,omitempty"`
}

// Duration returns the configured duration, deriving it from start/end when absent.
// A malformed day yields zero.
func (d DaySchedule) Duration() time.Duration {
	if d.DurationMinutes > 0 {
		return time.Duration(d.DurationMinutes) * time.Minute
	}
	start, err := timeutil.ParseClock(d.StartTime)
	if err != nil {
		return 0
	}
	end, err := timeutil.ParseClock(d.EndTime)
	if err != nil || end <= start {
		return 0
	}
	return time.Duration(end-start) * time.Minute
}

// WeeklySchedule is the canonical per-weekday lookup. Both stored forms
// (the per-day map and the legacy shared-times form) are folded into it when
// the schedule is decoded, so callers only ever use Day.
type WeeklySchedule struct {
	days map[time.Weekday]DaySchedule
}

// NewWeeklySchedule builds a schedule from the per-day form.
func NewWeeklySchedule(days map[time.Weekday]DaySchedule) *WeeklySchedule {
	s := &WeeklySchedule{days: make(map[time.Weekday]DaySchedule, len(days))}
	for wd, d := range days {
		s.days[wd] = withDuration(d)
	}
	return s
}

// DefaultSchedule is the fallback applied to courses created without a schedule:
// Monday and Wednesday, 09:00 to 11:00.
func DefaultSchedule() *WeeklySchedule {
	day := DaySchedule{StartTime: "09:00", EndTime: "11:00", DurationMinutes: 120}
	return NewWeeklySchedule(map[time.Weekday]DaySchedule{
		time.Monday:    day,
		time.Wednesday: day,
	})
}

func withDuration(d DaySchedule) DaySchedule {
	if d.DurationMinutes <= 0 {
		d.DurationMinutes = int(d.Duration() / time.Minute)
	}
	return d
}

// Day returns the effective session for a weekday.
func (s *WeeklySchedule) Day(wd time.Weekday) (DaySchedule, bool) {
	if s == nil {
		return DaySchedule{}, false
	}
	d, ok := s.days[wd]
	return d, ok
}

// IsEmpty reports whether no weekday has a session.
func (s *WeeklySchedule) IsEmpty() bool {
	return s == nil || len(s.days) == 0
}

// document is the stored JSON shape. Either form may be present.
type document struct {
	Days      map[string]DaySchedule `json:"days,omitempty"`
	Weekdays  []int                  `json:"weekdays,omitempty"`
	StartTime string                 `json:"startTime,omitempty"`
	EndTime   string                 `json:"endTime,omitempty"`
	Duration  int                    `json:"duration,omitempty"`
}

// MarshalJSON always writes the per-day form.
func (s *WeeklySchedule) MarshalJSON() ([]byte, error) {
	doc := document{Days: make(map[string]DaySchedule, len(s.days))}
	for wd, d := range s.days {
		doc.Days[strconv.Itoa(int(wd))] = d
	}
	return json.Marshal(doc)
}

// UnmarshalJSON accepts both the per-day form and the legacy form.
// Per-day entries take precedence over legacy ones for the same weekday.
func (s *WeeklySchedule) UnmarshalJSON(data []byte) error {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return shared.WrapError("schedule", "Decode", shared.ErrConfiguration, "malformed schedule document", err)
	}

	days := make(map[time.Weekday]DaySchedule)

	if len(doc.Weekdays) > 0 && doc.StartTime != "" && doc.EndTime != "" {
		for _, n := range doc.Weekdays {
			wd, err := weekday(n)
			if err != nil {
				return err
			}
			days[wd] = DaySchedule{StartTime: doc.StartTime, EndTime: doc.EndTime, DurationMinutes: doc.Duration}
		}
	}

	for key, d := range doc.Days {
		n, err := strconv.Atoi(key)
		if err != nil {
			return shared.WrapError("schedule", "Decode", shared.ErrConfiguration,
				fmt.Sprintf("weekday key %q is not a number", key), err)
		}
		wd, err := weekday(n)
		if err != nil {
			return err
		}
		days[wd] = d
	}

	*s = *NewWeeklySchedule(days)
	return nil
}

func weekday(n int) (time.Weekday, error) {
	if n < 0 || n > 6 {
		return 0, shared.NewDomainError("schedule", "Decode", shared.ErrConfiguration,
			fmt.Sprintf("weekday %d out of range 0..6", n))
	}
	return time.Weekday(n), nil
}

// Source resolves the effective schedule for a member (member → batch → course).
// A nil schedule with a nil error means the course is scheduleless.
type Source interface {
	ScheduleForMember(ctx context.Context, memberID string) (*WeeklySchedule, error)
}
