package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCronExpression(t *testing.T) {
	tests := []struct {
		expr    string
		wantErr bool
	}{
		{"* * * * *", false},
		{"0 23 * * *", false},
		{"*/15 9-17 * * 1-5", false},
		{"0 0 1,15 * *", false},
		{"5/20 * * * *", false},
		{"0 24 * * *", true},
		{"0 0 * * 7", true},
		{"*/0 * * * *", true},
		{"a * * * *", true},
		{"0 0 * *", true},
		{"10-5 * * * *", true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			_, err := ParseCronExpression(tt.expr)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCronExpression_NextDailyAt2300(t *testing.T) {
	loc := time.FixedZone("UTC+03:00", 3*60*60)
	ce := MustParseCronExpression(EveryDay2300)

	before := time.Date(2024, 1, 8, 22, 59, 30, 0, loc)
	assert.Equal(t, time.Date(2024, 1, 8, 23, 0, 0, 0, loc), ce.Next(before))

	exactly := time.Date(2024, 1, 8, 23, 0, 0, 0, loc)
	assert.Equal(t, time.Date(2024, 1, 9, 23, 0, 0, 0, loc), ce.Next(exactly), "strictly after")
}

func TestCronExpression_NextWeekdays(t *testing.T) {
	ce := MustParseCronExpression("0 9 * * 1-5")

	// Friday 2024-01-12 10:00 -> Monday 2024-01-15 09:00
	got := ce.Next(time.Date(2024, 1, 12, 10, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC), got)
}

func TestCronExpression_Steps(t *testing.T) {
	ce, err := ParseCronExpression("5/20 * * * *")
	require.NoError(t, err)
	assert.Equal(t, []int{5, 25, 45}, ce.minutes)
}

func TestIntervalSchedule(t *testing.T) {
	s := NewIntervalSchedule(time.Hour)
	start := time.Date(2024, 1, 8, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, start.Add(time.Hour), s.Next(start))
	assert.Equal(t, "@every 1h0m0s", s.String())
}
