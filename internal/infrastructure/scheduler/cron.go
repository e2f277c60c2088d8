package scheduler

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// CronExpression is a parsed 5-field cron expression:
// minute hour day-of-month month day-of-week.
// Examples:
//   - "*/5 * * * *"  - every 5 minutes
//   - "0 23 * * *"   - every day at 23:00
//   - "0 0 * * 1-5"  - weekdays at midnight
//
// Times are evaluated in the location of the instant passed to Next.
type CronExpression struct {
	raw      string
	minutes  []int
	hours    []int
	days     []int
	months   []int
	weekdays []int
}

// Common expressions.
const (
	EveryHour      = "0 * * * *"
	EveryDay2300   = "0 23 * * *"
	Every15Minutes = "*/15 * * * *"
)

// ParseCronExpression parses a cron expression string.
// Supports: *, */n, n, n-m, n-m/s, n,m,o
func ParseCronExpression(expr string) (*CronExpression, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("invalid cron expression: expected 5 fields, got %d", len(fields))
	}

	ce := &CronExpression{raw: expr}
	specs := []struct {
		name     string
		min, max int
		dest     *[]int
	}{
		{"minute", 0, 59, &ce.minutes},
		{"hour", 0, 23, &ce.hours},
		{"day", 1, 31, &ce.days},
		{"month", 1, 12, &ce.months},
		{"weekday", 0, 6, &ce.weekdays},
	}
	for i, spec := range specs {
		values, err := parseField(fields[i], spec.min, spec.max)
		if err != nil {
			return nil, fmt.Errorf("invalid %s field: %w", spec.name, err)
		}
		*spec.dest = values
	}
	return ce, nil
}

// MustParseCronExpression parses a cron expression or panics.
func MustParseCronExpression(expr string) *CronExpression {
	ce, err := ParseCronExpression(expr)
	if err != nil {
		panic(fmt.Sprintf("invalid cron expression %q: %v", expr, err))
	}
	return ce
}

func parseField(field string, min, max int) ([]int, error) {
	seen := make(map[int]bool)
	for _, part := range strings.Split(field, ",") {
		if err := parsePart(part, min, max, seen); err != nil {
			return nil, err
		}
	}

	result := make([]int, 0, len(seen))
	for v := range seen {
		result = append(result, v)
	}
	sort.Ints(result)
	return result, nil
}

func parsePart(part string, min, max int, into map[int]bool) error {
	rangePart, step := part, 1
	if i := strings.Index(part, "/"); i >= 0 {
		n, err := strconv.Atoi(part[i+1:])
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid step value: %s", part[i+1:])
		}
		rangePart, step = part[:i], n
	}

	start, end := min, max
	switch {
	case rangePart == "*":
	case strings.Contains(rangePart, "-"):
		bounds := strings.SplitN(rangePart, "-", 2)
		var err error
		if start, err = strconv.Atoi(bounds[0]); err != nil {
			return fmt.Errorf("invalid range start: %s", bounds[0])
		}
		if end, err = strconv.Atoi(bounds[1]); err != nil {
			return fmt.Errorf("invalid range end: %s", bounds[1])
		}
	default:
		v, err := strconv.Atoi(rangePart)
		if err != nil {
			return fmt.Errorf("invalid value: %s", rangePart)
		}
		start = v
		if step == 1 {
			end = v
		}
	}

	if start < min || end > max || start > end {
		return fmt.Errorf("value out of range [%d-%d]: %s", min, max, part)
	}
	for v := start; v <= end; v += step {
		into[v] = true
	}
	return nil
}

// String returns the original cron expression.
func (ce *CronExpression) String() string {
	return ce.raw
}

// Next returns the first matching minute strictly after t.
func (ce *CronExpression) Next(t time.Time) time.Time {
	next := t.Truncate(time.Minute).Add(time.Minute)

	const maxIterations = 366 * 24 * 60
	for i := 0; i < maxIterations; i++ {
		if ce.matches(next) {
			return next
		}
		next = next.Add(time.Minute)
	}
	return time.Time{}
}

func (ce *CronExpression) matches(t time.Time) bool {
	return contains(ce.minutes, t.Minute()) &&
		contains(ce.hours, t.Hour()) &&
		contains(ce.days, t.Day()) &&
		contains(ce.months, int(t.Month())) &&
		contains(ce.weekdays, int(t.Weekday()))
}

func contains(slice []int, val int) bool {
	i := sort.SearchInts(slice, val)
	return i < len(slice) && slice[i] == val
}

// ══════════════════════════════════════════════════════════════════════════════
// INTERVAL SCHEDULE
// ══════════════════════════════════════════════════════════════════════════════

// IntervalSchedule runs a job every Interval.
type IntervalSchedule struct {
	Interval time.Duration
}

// NewIntervalSchedule creates a new IntervalSchedule.
func NewIntervalSchedule(interval time.Duration) *IntervalSchedule {
	return &IntervalSchedule{Interval: interval}
}

// Next returns t plus the interval.
func (s *IntervalSchedule) Next(t time.Time) time.Time {
	return t.Add(s.Interval)
}

func (s *IntervalSchedule) String() string {
	return "@every " + s.Interval.String()
}
