package attendance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestComputeHours_WithCheckout(t *testing.T) {
	in := local(9, 5, 0)
	out := local(10, 5, 0)

	assert.InDelta(t, 1.0, ComputeHours(in, &out, mondayWindow().End, out), 1e-9)
}

func TestComputeHours_CheckoutBeforeCheckInClampsToZero(t *testing.T) {
	in := local(10, 0, 0)
	out := local(9, 0, 0)

	assert.Equal(t, 0.0, ComputeHours(in, &out, mondayWindow().End, in))
}

func TestComputeHours_NoCheckoutCapsAtScheduledEnd(t *testing.T) {
	in := local(9, 0, 0)
	end := mondayWindow().End

	assert.InDelta(t, 2.0, ComputeHours(in, nil, end, local(23, 0, 0)), 1e-9)
}

func TestComputeHours_NoCheckoutBeforeEndUsesNow(t *testing.T) {
	in := local(9, 0, 0)
	end := mondayWindow().End

	assert.InDelta(t, 0.5, ComputeHours(in, nil, end, local(9, 30, 0)), 1e-9)
}

func TestComputeHours_NoCheckoutAfterScheduledEndIsZero(t *testing.T) {
	// checked in after the session had already ended
	in := local(11, 30, 0)

	assert.Equal(t, 0.0, ComputeHours(in, nil, mondayWindow().End, local(23, 0, 0)))
}

func TestComputeHours_MonotonicInElapsed(t *testing.T) {
	in := local(9, 0, 0)
	prev := -1.0

	for d := -30 * time.Minute; d <= 3*time.Hour; d += 10 * time.Minute {
		out := in.Add(d)
		h := ComputeHours(in, &out, mondayWindow().End, out)
		assert.GreaterOrEqual(t, h, 0.0)
		assert.GreaterOrEqual(t, h, prev)
		prev = h
	}
}
