package attendance

import (
	"fmt"
	"math"
	"time"

	"github.com/nardi-attend/attendance-hub/internal/domain/schedule"
	"github.com/nardi-attend/attendance-hub/pkg/timeutil"
)

// DefaultCheckInLead is how early before a session check-in opens.
const DefaultCheckInLead = 30 * time.Minute

// Decision is the outcome of evaluating a check-in.
type Decision struct {
	Allowed bool
	Reason  string
}

// Policy decides whether a first check-in of the day is accepted.
type Policy struct {
	offset timeutil.Offset
	lead   time.Duration
}

// NewPolicy creates a Policy. A non-positive lead falls back to DefaultCheckInLead.
func NewPolicy(offset timeutil.Offset, lead time.Duration) *Policy {
	if lead <= 0 {
		lead = DefaultCheckInLead
	}
	return &Policy{offset: offset, lead: lead}
}

// Evaluate allows check-in from lead before the window start through its end,
// inclusive. A nil window (scheduleless course or no session) always allows.
func (p *Policy) Evaluate(now time.Time, window *schedule.SessionWindow) Decision {
	if window == nil {
		return Decision{Allowed: true}
	}

	open := window.Start.Add(-p.lead)

	if now.Before(open) {
		minutes := int(math.Ceil(open.Sub(now).Minutes()))
		return Decision{
			Reason: fmt.Sprintf("check-in opens %d minutes before class (in %s), class starts at %s",
				int(p.lead/time.Minute), pluralMinutes(minutes), p.offset.Clock(window.Start)),
		}
	}

	if now.After(window.End) {
		return Decision{
			Reason: fmt.Sprintf("check-in window closed, class ended at %s", p.offset.Clock(window.End)),
		}
	}

	return Decision{Allowed: true}
}

func pluralMinutes(n int) string {
	if n == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", n)
}
