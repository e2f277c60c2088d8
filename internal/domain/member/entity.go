// Package member contains the attendee entity and its storage contract.
package member

import (
	"time"

	"github.com/nardi-attend/attendance-hub/internal/domain/shared"
)

// Member is a registered attendee of a batch.
type Member struct {
	ID       string
	FullName string
	Email    string
	Phone    string
	BatchID  string

	// AbsenceStreak counts consecutive swept days without a record.
	AbsenceStreak int

	// Blocked only ever goes false -> true inside this system.
	Blocked bool

	TotalHours float64

	// Rank is 1-based; zero means not ranked yet.
	Rank int

	// LastSweptOn is the date key of the last sweep that counted this member.
	LastSweptOn string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewMember validates and creates a member.
func NewMember(id, fullName, email, batchID string, now time.Time) (*Member, error) {
	if id == "" {
		return nil, shared.NewDomainError("member", "New", shared.ErrInvalidID, "member id is required")
	}
	if fullName == "" {
		return nil, shared.NewDomainError("member", "New", shared.ErrEmptyValue, "full name is required")
	}
	if batchID == "" {
		return nil, shared.NewDomainError("member", "New", shared.ErrEmptyValue, "batch is required")
	}

	return &Member{
		ID:        id,
		FullName:  fullName,
		Email:     email,
		BatchID:   batchID,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// CanCheckIn reports whether the member may start a new attendance record.
func (m *Member) CanCheckIn() error {
	if m.Blocked {
		return shared.ErrMemberBlocked
	}
	return nil
}

// Standing is a member's computed total and rank.
type Standing struct {
	MemberID   string
	FullName   string
	TotalHours float64
	Rank       int
}
