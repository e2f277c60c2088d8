package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOffset_DateKeyCrossesUTCMidnight(t *testing.T) {
	o := NewOffset(180)

	// 22:30 UTC Sunday is 01:30 Monday at +3.
	instant := time.Date(2024, 1, 7, 22, 30, 0, 0, time.UTC)

	assert.Equal(t, "2024-01-08", o.DateKey(instant))
	assert.Equal(t, time.Monday, o.Weekday(instant))
	assert.Equal(t, "01:30", o.Clock(instant))
}

func TestOffset_At(t *testing.T) {
	o := NewOffset(180)
	ref := time.Date(2024, 1, 8, 7, 0, 0, 0, time.UTC)

	start := o.At(ref, 9*60)

	assert.True(t, start.Equal(time.Date(2024, 1, 8, 6, 0, 0, 0, time.UTC)))
}

func TestOffset_NegativeOffset(t *testing.T) {
	o := NewOffset(-300)

	instant := time.Date(2024, 1, 8, 3, 0, 0, 0, time.UTC)

	assert.Equal(t, "2024-01-07", o.DateKey(instant))
	assert.Equal(t, "UTC-05:00", o.String())
}

func TestOffset_ParseDateKey(t *testing.T) {
	o := NewOffset(180)

	midnight, err := o.ParseDateKey("2024-01-08")
	require.NoError(t, err)
	assert.True(t, midnight.Equal(time.Date(2024, 1, 7, 21, 0, 0, 0, time.UTC)))

	_, err = o.ParseDateKey("08/01/2024")
	assert.Error(t, err)
	assert.False(t, ValidDateKey("2024-13-01"))
	assert.True(t, ValidDateKey("2024-12-01"))
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{in: "09:00", want: 540},
		{in: "00:00", want: 0},
		{in: "23:59", want: 1439},
		{in: "9:00", wantErr: true},
		{in: "24:00", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "noon", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseClock(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatClock(t *testing.T) {
	assert.Equal(t, "09:05", FormatClock(545))
	assert.Equal(t, "00:00", FormatClock(0))
}
