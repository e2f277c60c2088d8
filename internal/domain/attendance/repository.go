package attendance

import (
	"context"
	"time"
)

// Repository stores attendance records.
//
// Implementations must enforce uniqueness of (member, date) at the storage
// level: Create returns an error matching shared.ErrAlreadyExists when a record
// for the key already exists, and never overwrites it.
type Repository interface {
	// Create inserts a new IN record.
	Create(ctx context.Context, r *Record) error

	// GetByMemberAndDate returns the record for the key, or an error matching
	// shared.ErrNotFound.
	GetByMemberAndDate(ctx context.Context, memberID, date string) (*Record, error)

	// MarkCheckedOut moves the record to OUT only if it is still IN.
	// It reports false when another writer already checked it out.
	MarkCheckedOut(ctx context.Context, id string, checkOutAt time.Time, hours float64) (bool, error)

	// SetHours stores earned hours without changing the status.
	SetHours(ctx context.Context, id string, hours float64) error

	// ListByDate returns all records of a calendar day.
	ListByDate(ctx context.Context, date string) ([]*Record, error)

	// ListOpenByDate returns the day's IN records that have a check-in and no checkout.
	ListOpenByDate(ctx context.Context, date string) ([]*Record, error)

	// SumHoursByMember returns total earned hours per member id.
	// Members without any hours may be absent from the map.
	SumHoursByMember(ctx context.Context) (map[string]float64, error)
}
