// Package timeutil models the institution's local clock as a fixed UTC offset.
// All calendar-day keys and HH:MM clock strings are computed through an Offset,
// never through the host's local zone or a timezone database.
package timeutil

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultOffsetMinutes is UTC+3.
const DefaultOffsetMinutes = 180

// Layouts used for persisted and displayed values.
const (
	DateKeyLayout = "2006-01-02"
	ClockLayout   = "15:04"
)

// MinutesPerDay bounds clock values produced by ParseClock.
const MinutesPerDay = 24 * 60

// Offset is a fixed number of minutes east of UTC.
type Offset struct {
	minutes int
	loc     *time.Location
}

// NewOffset creates an Offset. Negative values are west of UTC.
func NewOffset(minutes int) Offset {
	return Offset{
		minutes: minutes,
		loc:     time.FixedZone(zoneName(minutes), minutes*60),
	}
}

// Default returns the UTC+3 offset.
func Default() Offset {
	return NewOffset(DefaultOffsetMinutes)
}

func zoneName(minutes int) string {
	sign := '+'
	if minutes < 0 {
		sign = '-'
		minutes = -minutes
	}
	return fmt.Sprintf("UTC%c%02d:%02d", sign, minutes/60, minutes%60)
}

// Minutes returns the configured offset in minutes.
func (o Offset) Minutes() int {
	return o.minutes
}

// Location returns the fixed zone for this offset.
func (o Offset) Location() *time.Location {
	if o.loc == nil {
		return time.UTC
	}
	return o.loc
}

// String returns the zone name, e.g. "UTC+03:00".
func (o Offset) String() string {
	return zoneName(o.minutes)
}

// Local converts an instant to the institution's wall clock.
func (o Offset) Local(t time.Time) time.Time {
	return t.In(o.Location())
}

// DateKey returns the YYYY-MM-DD calendar day of t under the offset.
func (o Offset) DateKey(t time.Time) string {
	return o.Local(t).Format(DateKeyLayout)
}

// Weekday returns the weekday of t under the offset.
func (o Offset) Weekday(t time.Time) time.Weekday {
	return o.Local(t).Weekday()
}

// Clock formats t as local HH:MM.
func (o Offset) Clock(t time.Time) string {
	return o.Local(t).Format(ClockLayout)
}

// StartOfDay returns the instant of local midnight on t's calendar day.
func (o Offset) StartOfDay(t time.Time) time.Time {
	l := o.Local(t)
	return time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, o.Location())
}

// At returns the instant of the given local clock minute on t's calendar day.
func (o Offset) At(t time.Time, minuteOfDay int) time.Time {
	return o.StartOfDay(t).Add(time.Duration(minuteOfDay) * time.Minute)
}

// ParseDateKey parses a YYYY-MM-DD key into local midnight of that day.
func (o Offset) ParseDateKey(key string) (time.Time, error) {
	return time.ParseInLocation(DateKeyLayout, key, o.Location())
}

// ValidDateKey reports whether key is a well-formed YYYY-MM-DD value.
func ValidDateKey(key string) bool {
	_, err := time.Parse(DateKeyLayout, key)
	return err == nil
}

// ParseClock parses a strict "HH:mm" string into minutes after midnight.
func ParseClock(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("clock %q: want HH:mm", s)
	}

	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("clock %q: hour out of range", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("clock %q: minute out of range", s)
	}

	return h*60 + m, nil
}

// FormatClock formats minutes after midnight as HH:MM.
func FormatClock(minuteOfDay int) string {
	return fmt.Sprintf("%02d:%02d", minuteOfDay/60, minuteOfDay%60)
}
