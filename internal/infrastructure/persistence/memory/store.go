// Package memory provides in-process repositories with the same uniqueness
// and compare-and-set contracts as the PostgreSQL ones. They back tests and
// single-instance development runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/nardi-attend/attendance-hub/internal/domain/attendance"
	"github.com/nardi-attend/attendance-hub/internal/domain/course"
	"github.com/nardi-attend/attendance-hub/internal/domain/member"
	"github.com/nardi-attend/attendance-hub/internal/domain/schedule"
	"github.com/nardi-attend/attendance-hub/internal/domain/shared"
)

// Store holds every table behind one lock.
type Store struct {
	mu      sync.RWMutex
	members map[string]*member.Member
	courses map[string]*course.Course
	batches map[string]*course.Batch
	records map[string]*attendance.Record // by id
	byKey   map[recordKey]string          // (member, date) -> id
	runs    map[string]attendance.SweepSummary
}

type recordKey struct {
	memberID string
	date     string
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		members: make(map[string]*member.Member),
		courses: make(map[string]*course.Course),
		batches: make(map[string]*course.Batch),
		records: make(map[string]*attendance.Record),
		byKey:   make(map[recordKey]string),
		runs:    make(map[string]attendance.SweepSummary),
	}
}

// AddMember inserts or replaces a member.
func (s *Store) AddMember(m *member.Member) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *m
	s.members[m.ID] = &c
}

// AddCourse inserts or replaces a course.
func (s *Store) AddCourse(c *course.Course) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.courses[c.ID] = &cp
}

// AddBatch inserts or replaces a batch.
func (s *Store) AddBatch(b *course.Batch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *b
	s.batches[b.ID] = &cp
}

// Members returns the member repository view.
func (s *Store) Members() *MemberRepository {
	return &MemberRepository{s: s}
}

// Attendance returns the attendance repository view.
func (s *Store) Attendance() *AttendanceRepository {
	return &AttendanceRepository{s: s}
}

// Schedules returns a schedule source applying fallback to scheduleless courses.
func (s *Store) Schedules(fallback *schedule.WeeklySchedule) *ScheduleSource {
	return &ScheduleSource{s: s, fallback: fallback}
}

// SweepRuns returns the sweep run repository view.
func (s *Store) SweepRuns() *SweepRunRepository {
	return &SweepRunRepository{s: s}
}

// ══════════════════════════════════════════════════════════════════════════════
// MEMBERS
// ══════════════════════════════════════════════════════════════════════════════

// MemberRepository implements member.Repository.
type MemberRepository struct {
	s *Store
}

var _ member.Repository = (*MemberRepository)(nil)

func (r *MemberRepository) Get(_ context.Context, id string) (*member.Member, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	m, ok := r.s.members[id]
	if !ok {
		return nil, shared.ErrMemberNotFound
	}
	c := *m
	return &c, nil
}

func (r *MemberRepository) ListAll(_ context.Context) ([]*member.Member, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*member.Member, 0, len(r.s.members))
	for _, m := range r.s.members {
		c := *m
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *MemberRepository) ListPresentToday(_ context.Context, date string) (map[string]struct{}, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	present := make(map[string]struct{})
	for key := range r.s.byKey {
		if key.date == date {
			present[key.memberID] = struct{}{}
		}
	}
	return present, nil
}

func (r *MemberRepository) SetAbsenceStreak(_ context.Context, id string, streak int) error {
	return r.update(id, func(m *member.Member) { m.AbsenceStreak = streak })
}

func (r *MemberRepository) IncrementAbsenceStreak(_ context.Context, id, date string) (int, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	m, ok := r.s.members[id]
	if !ok {
		return 0, false, shared.ErrMemberNotFound
	}
	if m.LastSweptOn != "" && m.LastSweptOn >= date {
		return m.AbsenceStreak, false, nil
	}
	m.AbsenceStreak++
	m.LastSweptOn = date
	m.UpdatedAt = time.Now()
	return m.AbsenceStreak, true, nil
}

func (r *MemberRepository) ResetAbsenceStreak(_ context.Context, id string) (bool, error) {
	changed := false
	err := r.update(id, func(m *member.Member) {
		if m.AbsenceStreak != 0 {
			m.AbsenceStreak = 0
			changed = true
		}
	})
	return changed, err
}

func (r *MemberRepository) SetBlocked(_ context.Context, id string) (bool, error) {
	changed := false
	err := r.update(id, func(m *member.Member) {
		if !m.Blocked {
			m.Blocked = true
			changed = true
		}
	})
	return changed, err
}

func (r *MemberRepository) SetTotalHours(_ context.Context, id string, hours float64) error {
	return r.update(id, func(m *member.Member) { m.TotalHours = hours })
}

func (r *MemberRepository) SetRank(_ context.Context, id string, rank int) error {
	return r.update(id, func(m *member.Member) { m.Rank = rank })
}

func (r *MemberRepository) update(id string, fn func(m *member.Member)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	m, ok := r.s.members[id]
	if !ok {
		return shared.ErrMemberNotFound
	}
	fn(m)
	m.UpdatedAt = time.Now()
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ATTENDANCE
// ══════════════════════════════════════════════════════════════════════════════

// AttendanceRepository implements attendance.Repository.
type AttendanceRepository struct {
	s *Store
}

var _ attendance.Repository = (*AttendanceRepository)(nil)

func (r *AttendanceRepository) Create(_ context.Context, rec *attendance.Record) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := recordKey{memberID: rec.MemberID, date: rec.Date}
	if _, exists := r.s.byKey[key]; exists {
		return shared.ErrRecordExists
	}
	r.s.records[rec.ID] = rec.Clone()
	r.s.byKey[key] = rec.ID
	return nil
}

func (r *AttendanceRepository) GetByMemberAndDate(_ context.Context, memberID, date string) (*attendance.Record, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	id, ok := r.s.byKey[recordKey{memberID: memberID, date: date}]
	if !ok {
		return nil, shared.ErrRecordNotFound
	}
	return r.s.records[id].Clone(), nil
}

func (r *AttendanceRepository) MarkCheckedOut(_ context.Context, id string, checkOutAt time.Time, hours float64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rec, ok := r.s.records[id]
	if !ok {
		return false, shared.ErrRecordNotFound
	}
	if rec.Status != attendance.StatusIn {
		return false, nil
	}
	if err := rec.CheckOut(checkOutAt, hours); err != nil {
		return false, err
	}
	return true, nil
}

func (r *AttendanceRepository) SetHours(_ context.Context, id string, hours float64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rec, ok := r.s.records[id]
	if !ok {
		return shared.ErrRecordNotFound
	}
	rec.Hours = &hours
	rec.UpdatedAt = time.Now()
	return nil
}

func (r *AttendanceRepository) ListByDate(_ context.Context, date string) ([]*attendance.Record, error) {
	return r.list(func(rec *attendance.Record) bool { return rec.Date == date }), nil
}

func (r *AttendanceRepository) ListOpenByDate(_ context.Context, date string) ([]*attendance.Record, error) {
	return r.list(func(rec *attendance.Record) bool {
		return rec.Date == date && rec.IsOpen() && rec.CheckInAt != nil
	}), nil
}

func (r *AttendanceRepository) SumHoursByMember(_ context.Context) (map[string]float64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	totals := make(map[string]float64)
	for _, rec := range r.s.records {
		if rec.Hours != nil {
			totals[rec.MemberID] += rec.EarnedHours()
		}
	}
	return totals, nil
}

func (r *AttendanceRepository) list(match func(*attendance.Record) bool) []*attendance.Record {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*attendance.Record
	for _, rec := range r.s.records {
		if match(rec) {
			out = append(out, rec.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULES
// ══════════════════════════════════════════════════════════════════════════════

// ScheduleSource implements schedule.Source over member -> batch -> course.
type ScheduleSource struct {
	s        *Store
	fallback *schedule.WeeklySchedule
}

var _ schedule.Source = (*ScheduleSource)(nil)

func (r *ScheduleSource) ScheduleForMember(_ context.Context, memberID string) (*schedule.WeeklySchedule, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	m, ok := r.s.members[memberID]
	if !ok {
		return nil, shared.ErrMemberNotFound
	}
	b, ok := r.s.batches[m.BatchID]
	if !ok {
		return nil, shared.ErrBatchNotFound
	}
	c, ok := r.s.courses[b.CourseID]
	if !ok {
		return nil, shared.ErrCourseNotFound
	}
	return c.EffectiveSchedule(r.fallback), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SWEEP RUNS
// ══════════════════════════════════════════════════════════════════════════════

// SweepRunRepository implements attendance.SweepRunRepository.
type SweepRunRepository struct {
	s *Store
}

var _ attendance.SweepRunRepository = (*SweepRunRepository)(nil)

func (r *SweepRunRepository) SaveRun(_ context.Context, sum attendance.SweepSummary) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if prev, ok := r.s.runs[sum.Date]; ok {
		sum = prev.Merge(sum)
	}
	r.s.runs[sum.Date] = sum
	return nil
}

func (r *SweepRunRepository) LastRun(_ context.Context) (*attendance.SweepSummary, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var last *attendance.SweepSummary
	for _, run := range r.s.runs {
		run := run
		if last == nil || run.Date > last.Date {
			last = &run
		}
	}
	if last == nil {
		return nil, shared.NewDomainError("sweep", "LastRun", shared.ErrNotFound, "no sweep has run yet")
	}
	return last, nil
}
