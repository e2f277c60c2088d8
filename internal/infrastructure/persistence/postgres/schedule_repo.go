package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nardi-attend/attendance-hub/internal/domain/schedule"
	"github.com/nardi-attend/attendance-hub/internal/domain/shared"
)

// ScheduleRepository implements schedule.Source by joining
// members, batches and courses.
type ScheduleRepository struct {
	conn     *Connection
	fallback *schedule.WeeklySchedule
}

// NewScheduleRepository creates a ScheduleRepository. fallback applies to
// courses without a stored schedule and may be nil.
func NewScheduleRepository(conn *Connection, fallback *schedule.WeeklySchedule) *ScheduleRepository {
	return &ScheduleRepository{conn: conn, fallback: fallback}
}

var _ schedule.Source = (*ScheduleRepository)(nil)

// ScheduleForMember returns the effective weekly schedule of the member's course.
func (r *ScheduleRepository) ScheduleForMember(ctx context.Context, memberID string) (*schedule.WeeklySchedule, error) {
	query := `
		SELECT b.id IS NOT NULL, c.id IS NOT NULL, c.schedule
		FROM members m
		LEFT JOIN batches b ON b.id = m.batch_id
		LEFT JOIN courses c ON c.id = b.course_id
		WHERE m.id = $1`

	var (
		hasBatch  bool
		hasCourse bool
		raw       []byte
	)
	if err := r.conn.QueryRow(ctx, query, memberID).Scan(&hasBatch, &hasCourse, &raw); err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrMemberNotFound
		}
		return nil, fmt.Errorf("failed to load schedule: %w", err)
	}
	if !hasBatch {
		return nil, shared.ErrBatchNotFound
	}
	if !hasCourse {
		return nil, shared.ErrCourseNotFound
	}
	if len(raw) == 0 || string(raw) == "null" {
		return r.fallback, nil
	}

	var s schedule.WeeklySchedule
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	if s.IsEmpty() {
		return r.fallback, nil
	}
	return &s, nil
}
