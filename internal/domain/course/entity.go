// Package course holds the course and batch entities a member's schedule is read from.
package course

import (
	"time"

	"github.com/nardi-attend/attendance-hub/internal/domain/schedule"
)

// Course is a program with an optional weekly schedule.
type Course struct {
	ID        string
	Name      string
	Schedule  *schedule.WeeklySchedule // nil: free-form check-in
	CreatedAt time.Time
}

// Batch is a cohort of members attending one course.
type Batch struct {
	ID        string
	Name      string
	CourseID  string
	CreatedAt time.Time
}

// EffectiveSchedule returns the course schedule, or fallback when the course has none.
// A nil fallback keeps scheduleless courses free-form.
func (c *Course) EffectiveSchedule(fallback *schedule.WeeklySchedule) *schedule.WeeklySchedule {
	if c.Schedule != nil && !c.Schedule.IsEmpty() {
		return c.Schedule
	}
	return fallback
}
