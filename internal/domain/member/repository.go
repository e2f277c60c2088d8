package member

import (
	"context"
)

// Repository defines storage operations for members.
//
// Counter and flag mutations that both the ledger and the sweep touch are
// atomic at the storage level; callers never read-modify-write them.
type Repository interface {
	// Get returns a member by id. Returns shared.ErrMemberNotFound if missing.
	Get(ctx context.Context, id string) (*Member, error)

	// ListAll returns every member in registration order (created_at, id).
	ListAll(ctx context.Context) ([]*Member, error)

	// ListPresentToday returns the ids of members with a record on date,
	// regardless of IN or OUT.
	ListPresentToday(ctx context.Context, date string) (map[string]struct{}, error)

	// SetAbsenceStreak overwrites the streak.
	SetAbsenceStreak(ctx context.Context, id string, streak int) error

	// IncrementAbsenceStreak adds one to the streak unless the member was
	// already counted for date. It returns the streak after the call and
	// whether this call incremented it.
	IncrementAbsenceStreak(ctx context.Context, id, date string) (streak int, applied bool, err error)

	// ResetAbsenceStreak sets the streak to zero if it is non-zero.
	// It reports whether anything changed.
	ResetAbsenceStreak(ctx context.Context, id string) (bool, error)

	// SetBlocked sets the flag to true if it is false.
	// It reports whether this call flipped it.
	SetBlocked(ctx context.Context, id string) (bool, error)

	// SetTotalHours stores the cumulative hours.
	SetTotalHours(ctx context.Context, id string, hours float64) error

	// SetRank stores the rank.
	SetRank(ctx context.Context, id string, rank int) error
}
