// Package attendance contains the per-member, per-day attendance record,
// the check-in eligibility policy and the hours calculation.
package attendance

import (
	"time"

	"github.com/nardi-attend/attendance-hub/internal/domain/shared"
)

// Status is the state of a day's record. A missing record means absent.
type Status string

const (
	StatusIn  Status = "IN"
	StatusOut Status = "OUT"
)

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	return s == StatusIn || s == StatusOut
}

// Record is one member's attendance on one calendar day.
// (MemberID, Date) is immutable and unique.
type Record struct {
	ID         string
	MemberID   string
	Date       string // YYYY-MM-DD under the configured offset
	Status     Status
	CheckInAt  *time.Time
	CheckOutAt *time.Time
	Hours      *float64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewRecord creates the IN record of a first check-in.
func NewRecord(id, memberID, date string, checkIn time.Time) (*Record, error) {
	if id == "" || memberID == "" {
		return nil, shared.NewDomainError("attendance", "NewRecord", shared.ErrEmptyValue, "record and member id are required")
	}
	if date == "" {
		return nil, shared.NewDomainError("attendance", "NewRecord", shared.ErrEmptyValue, "date is required")
	}

	in := checkIn.UTC().Truncate(time.Microsecond)
	return &Record{
		ID:        id,
		MemberID:  memberID,
		Date:      date,
		Status:    StatusIn,
		CheckInAt: &in,
		CreatedAt: in,
		UpdatedAt: in,
	}, nil
}

// IsOpen reports whether the member checked in and has not checked out.
func (r *Record) IsOpen() bool {
	return r.Status == StatusIn && r.CheckOutAt == nil
}

// CheckOut moves the record to OUT. It is the only transition and happens once.
func (r *Record) CheckOut(at time.Time, hours float64) error {
	if r.Status == StatusOut {
		return shared.ErrAlreadyCheckedOut
	}

	out := at.UTC().Truncate(time.Microsecond)
	r.Status = StatusOut
	r.CheckOutAt = &out
	r.Hours = &hours
	r.UpdatedAt = out
	return nil
}

// EarnedHours returns stored hours, or zero when none have been computed.
func (r *Record) EarnedHours() float64 {
	if r.Hours == nil {
		return 0
	}
	return *r.Hours
}

// Clone returns a deep copy, so callers cannot alias stored state.
func (r *Record) Clone() *Record {
	c := *r
	if r.CheckInAt != nil {
		t := *r.CheckInAt
		c.CheckInAt = &t
	}
	if r.CheckOutAt != nil {
		t := *r.CheckOutAt
		c.CheckOutAt = &t
	}
	if r.Hours != nil {
		h := *r.Hours
		c.Hours = &h
	}
	return &c
}
