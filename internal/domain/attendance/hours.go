package attendance

import "time"

// ComputeHours returns the attendance hours earned between checkIn and checkOut.
// Without a checkout the session is credited up to min(now, scheduledEnd).
// The result is never negative.
func ComputeHours(checkIn time.Time, checkOut *time.Time, scheduledEnd, now time.Time) float64 {
	end := now
	if checkOut != nil {
		end = *checkOut
	} else if scheduledEnd.Before(now) {
		end = scheduledEnd
	}

	elapsed := end.Sub(checkIn)
	if elapsed <= 0 {
		return 0
	}
	return elapsed.Hours()
}
