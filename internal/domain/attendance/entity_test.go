package attendance

import (
	"errors"
	"testing"

	"github.com/nardi-attend/attendance-hub/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRecord(t *testing.T) {
	r, err := NewRecord("rec-1", "m-1", "2024-01-08", local(9, 0, 0))
	require.NoError(t, err)

	assert.Equal(t, StatusIn, r.Status)
	assert.True(t, r.IsOpen())
	assert.Nil(t, r.Hours)
	assert.Equal(t, 0.0, r.EarnedHours())

	_, err = NewRecord("", "m-1", "2024-01-08", local(9, 0, 0))
	assert.True(t, shared.IsValidation(err))
}

func TestRecord_CheckOutIsTerminal(t *testing.T) {
	r, err := NewRecord("rec-1", "m-1", "2024-01-08", local(9, 0, 0))
	require.NoError(t, err)

	require.NoError(t, r.CheckOut(local(10, 0, 0), 1))
	assert.Equal(t, StatusOut, r.Status)
	assert.False(t, r.IsOpen())
	assert.Equal(t, 1.0, r.EarnedHours())

	err = r.CheckOut(local(10, 30, 0), 1.5)
	assert.True(t, errors.Is(err, shared.ErrAlreadyCheckedOut))
	assert.Equal(t, 1.0, r.EarnedHours())
}

func TestRecord_Clone(t *testing.T) {
	r, _ := NewRecord("rec-1", "m-1", "2024-01-08", local(9, 0, 0))
	c := r.Clone()

	require.NoError(t, c.CheckOut(local(10, 0, 0), 1))

	assert.Equal(t, StatusIn, r.Status)
	assert.Nil(t, r.CheckOutAt)
}
