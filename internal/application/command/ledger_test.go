package command

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nardi-attend/attendance-hub/internal/domain/attendance"
	"github.com/nardi-attend/attendance-hub/internal/domain/course"
	"github.com/nardi-attend/attendance-hub/internal/domain/member"
	"github.com/nardi-attend/attendance-hub/internal/domain/schedule"
	"github.com/nardi-attend/attendance-hub/internal/domain/shared"
	"github.com/nardi-attend/attendance-hub/internal/infrastructure/persistence/memory"
	"github.com/nardi-attend/attendance-hub/pkg/logger"
	"github.com/nardi-attend/attendance-hub/pkg/timeutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var offset = timeutil.NewOffset(180)

// at returns a +3 wall-clock instant on 2024-01-<day>. 2024-01-08 is a Monday.
func at(day, hour, min int) time.Time {
	return time.Date(2024, 1, day, hour, min, 0, 0, offset.Location())
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.Event
}

func (p *recordingPublisher) Publish(e shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) ofType(t shared.EventType) []shared.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []shared.Event
	for _, e := range p.events {
		if e.EventType() == t {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	store     *memory.Store
	publisher *recordingPublisher
	ledger    *Ledger
}

func newFixture(t *testing.T, sched *schedule.WeeklySchedule) *fixture {
	t.Helper()

	store := memory.NewStore()
	store.AddCourse(&course.Course{ID: "c-1", Name: "Go", Schedule: sched})
	store.AddBatch(&course.Batch{ID: "b-1", Name: "2024-A", CourseID: "c-1"})

	pub := &recordingPublisher{}
	ledger := NewLedger(
		store.Members(),
		store.Attendance(),
		store.Schedules(nil),
		schedule.NewResolver(offset),
		attendance.NewPolicy(offset, 0),
		pub,
		logger.Discard(),
		DefaultLedgerConfig(),
	)
	return &fixture{store: store, publisher: pub, ledger: ledger}
}

func (f *fixture) addMember(t *testing.T, id string, mutate ...func(*member.Member)) {
	t.Helper()
	m, err := member.NewMember(id, "Member "+id, id+"@example.com", "b-1", at(1, 9, 0))
	require.NoError(t, err)
	for _, fn := range mutate {
		fn(m)
	}
	f.store.AddMember(m)
}

func (f *fixture) member(t *testing.T, id string) *member.Member {
	t.Helper()
	m, err := f.store.Members().Get(context.Background(), id)
	require.NoError(t, err)
	return m
}

func TestLedger_CheckIn_InsideWindow(t *testing.T) {
	f := newFixture(t, schedule.DefaultSchedule())
	f.addMember(t, "m-1")

	rec, err := f.ledger.CheckIn(context.Background(), "m-1", at(8, 8, 35))
	require.NoError(t, err)

	assert.Equal(t, attendance.StatusIn, rec.Status)
	assert.Equal(t, "2024-01-08", rec.Date)
	require.NotNil(t, rec.CheckInAt)
	assert.True(t, rec.CheckInAt.Equal(at(8, 8, 35)))
	assert.Len(t, f.publisher.ofType(shared.EventCheckedIn), 1)
}

func TestLedger_CheckIn_BoundaryAndTooEarly(t *testing.T) {
	f := newFixture(t, schedule.DefaultSchedule())
	f.addMember(t, "m-1")
	f.addMember(t, "m-2")

	_, err := f.ledger.CheckIn(context.Background(), "m-1", at(8, 8, 30))
	assert.NoError(t, err)

	_, err = f.ledger.CheckIn(context.Background(), "m-2", at(8, 8, 29))
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrOutsideWindow))
	assert.True(t, shared.IsPolicyDenied(err))

	var denial *shared.OutsideWindowError
	require.True(t, errors.As(err, &denial))
	assert.Contains(t, denial.Reason, "in 1 minute")
	assert.Contains(t, denial.Reason, "09:00")
}

func TestLedger_CheckIn_WindowClosed(t *testing.T) {
	f := newFixture(t, schedule.DefaultSchedule())
	f.addMember(t, "m-1")

	_, err := f.ledger.CheckIn(context.Background(), "m-1", at(8, 11, 1))

	var denial *shared.OutsideWindowError
	require.True(t, errors.As(err, &denial))
	assert.Contains(t, denial.Reason, "ended at 11:00")
}

func TestLedger_CheckIn_Scheduleless(t *testing.T) {
	f := newFixture(t, nil)
	f.addMember(t, "m-1")

	rec, err := f.ledger.CheckIn(context.Background(), "m-1", at(9, 23, 40))
	require.NoError(t, err)
	assert.Equal(t, "2024-01-09", rec.Date)
}

func TestLedger_CheckIn_Blocked(t *testing.T) {
	f := newFixture(t, schedule.DefaultSchedule())
	f.addMember(t, "m-1", func(m *member.Member) { m.Blocked = true })

	_, err := f.ledger.CheckIn(context.Background(), "m-1", at(8, 9, 0))

	assert.True(t, errors.Is(err, shared.ErrMemberBlocked))
	assert.True(t, shared.IsPolicyDenied(err))
}

func TestLedger_CheckIn_UnknownMember(t *testing.T) {
	f := newFixture(t, schedule.DefaultSchedule())

	_, err := f.ledger.CheckIn(context.Background(), "ghost", at(8, 9, 0))

	assert.True(t, shared.IsNotFound(err))
}

func TestLedger_CheckIn_MisconfiguredSchedule(t *testing.T) {
	broken := schedule.NewWeeklySchedule(map[time.Weekday]schedule.DaySchedule{
		time.Monday: {StartTime: "23:00", EndTime: "01:00"},
	})
	f := newFixture(t, broken)
	f.addMember(t, "m-1")

	_, err := f.ledger.CheckIn(context.Background(), "m-1", at(8, 23, 0))

	require.Error(t, err)
	assert.True(t, shared.IsConfiguration(err))
	assert.False(t, shared.IsPolicyDenied(err))
}

func TestLedger_CheckIn_IsIdempotent(t *testing.T) {
	f := newFixture(t, schedule.DefaultSchedule())
	f.addMember(t, "m-1")
	ctx := context.Background()

	first, err := f.ledger.CheckIn(ctx, "m-1", at(8, 9, 0))
	require.NoError(t, err)
	second, err := f.ledger.CheckIn(ctx, "m-1", at(8, 9, 1))
	require.NoError(t, err)

	assert.Equal(t, first, second)

	records, err := f.store.Attendance().ListByDate(ctx, "2024-01-08")
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Len(t, f.publisher.ofType(shared.EventCheckedIn), 1)
}

func TestLedger_CheckIn_ConcurrentDuplicates(t *testing.T) {
	f := newFixture(t, schedule.DefaultSchedule())
	f.addMember(t, "m-1")
	ctx := context.Background()

	const n = 16
	results := make([]*attendance.Record, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.ledger.CheckIn(ctx, "m-1", at(8, 9, 0))
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0].ID, results[i].ID)
	}

	records, err := f.store.Attendance().ListByDate(ctx, "2024-01-08")
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

// staleReadRepository hides existing records from the first lookup,
// reproducing two requests that both passed the existence check.
type staleReadRepository struct {
	attendance.Repository
	mu     sync.Mutex
	missed bool
}

func (r *staleReadRepository) GetByMemberAndDate(ctx context.Context, memberID, date string) (*attendance.Record, error) {
	r.mu.Lock()
	if !r.missed {
		r.missed = true
		r.mu.Unlock()
		return nil, shared.ErrRecordNotFound
	}
	r.mu.Unlock()
	return r.Repository.GetByMemberAndDate(ctx, memberID, date)
}

func TestLedger_CheckIn_UniqueConflictFallsBackToExisting(t *testing.T) {
	f := newFixture(t, schedule.DefaultSchedule())
	f.addMember(t, "m-1")
	ctx := context.Background()

	existing, err := attendance.NewRecord("rec-existing", "m-1", "2024-01-08", at(8, 8, 50))
	require.NoError(t, err)
	require.NoError(t, f.store.Attendance().Create(ctx, existing))

	f.ledger.records = &staleReadRepository{Repository: f.store.Attendance()}

	rec, err := f.ledger.CheckIn(ctx, "m-1", at(8, 9, 0))
	require.NoError(t, err)
	assert.Equal(t, "rec-existing", rec.ID)
	assert.Empty(t, f.publisher.ofType(shared.EventCheckedIn))
}

func TestLedger_CheckIn_ResetsAbsenceStreak(t *testing.T) {
	f := newFixture(t, schedule.DefaultSchedule())
	f.addMember(t, "m-1", func(m *member.Member) { m.AbsenceStreak = 3 })

	_, err := f.ledger.CheckIn(context.Background(), "m-1", at(8, 9, 0))
	require.NoError(t, err)

	assert.Equal(t, 0, f.member(t, "m-1").AbsenceStreak)
}

func TestLedger_CheckOut_ComputesHours(t *testing.T) {
	f := newFixture(t, schedule.DefaultSchedule())
	f.addMember(t, "m-1")
	ctx := context.Background()

	_, err := f.ledger.CheckIn(ctx, "m-1", at(8, 9, 5))
	require.NoError(t, err)

	rec, err := f.ledger.CheckOut(ctx, "m-1", at(8, 10, 5))
	require.NoError(t, err)

	assert.Equal(t, attendance.StatusOut, rec.Status)
	require.NotNil(t, rec.Hours)
	assert.InDelta(t, 1.0, *rec.Hours, 1e-9)

	stored, err := f.store.Attendance().GetByMemberAndDate(ctx, "m-1", "2024-01-08")
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusOut, stored.Status)
	assert.InDelta(t, 1.0, stored.EarnedHours(), 1e-9)

	events := f.publisher.ofType(shared.EventCheckedOut)
	require.Len(t, events, 1)
	assert.Equal(t, "m-1", events[0].AggregateID())
}

func TestLedger_CheckOut_WithoutCheckIn(t *testing.T) {
	f := newFixture(t, schedule.DefaultSchedule())
	f.addMember(t, "m-1")

	_, err := f.ledger.CheckOut(context.Background(), "m-1", at(8, 10, 0))

	assert.True(t, errors.Is(err, shared.ErrNoActiveSession))
	assert.True(t, shared.IsStateConflict(err))
}

func TestLedger_CheckOut_Twice(t *testing.T) {
	f := newFixture(t, schedule.DefaultSchedule())
	f.addMember(t, "m-1")
	ctx := context.Background()

	_, err := f.ledger.CheckIn(ctx, "m-1", at(8, 9, 0))
	require.NoError(t, err)
	_, err = f.ledger.CheckOut(ctx, "m-1", at(8, 10, 0))
	require.NoError(t, err)

	_, err = f.ledger.CheckOut(ctx, "m-1", at(8, 10, 30))
	assert.True(t, errors.Is(err, shared.ErrAlreadyCheckedOut))

	stored, err := f.store.Attendance().GetByMemberAndDate(ctx, "m-1", "2024-01-08")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, stored.EarnedHours(), 1e-9, "second checkout must not change hours")
	assert.Len(t, f.publisher.ofType(shared.EventCheckedOut), 1)
}

func TestLedger_CheckOut_ConcurrentSingleTransition(t *testing.T) {
	f := newFixture(t, schedule.DefaultSchedule())
	f.addMember(t, "m-1")
	ctx := context.Background()

	_, err := f.ledger.CheckIn(ctx, "m-1", at(8, 9, 0))
	require.NoError(t, err)

	const n = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.ledger.CheckOut(ctx, "m-1", at(8, 10, 0))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
			} else if errors.Is(err, shared.ErrAlreadyCheckedOut) {
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, n-1, conflicts)
	assert.Len(t, f.publisher.ofType(shared.EventCheckedOut), 1)
}

func TestLedger_CheckOut_BlockedMemberMayStillLeave(t *testing.T) {
	f := newFixture(t, schedule.DefaultSchedule())
	f.addMember(t, "m-1")
	ctx := context.Background()

	_, err := f.ledger.CheckIn(ctx, "m-1", at(8, 9, 0))
	require.NoError(t, err)
	_, err = f.store.Members().SetBlocked(ctx, "m-1")
	require.NoError(t, err)

	_, err = f.ledger.CheckOut(ctx, "m-1", at(8, 10, 0))
	assert.NoError(t, err)
}

func TestLedger_Scan_Toggles(t *testing.T) {
	f := newFixture(t, schedule.DefaultSchedule())
	f.addMember(t, "m-1")
	ctx := context.Background()

	res, err := f.ledger.Scan(ctx, "m-1", at(8, 9, 0))
	require.NoError(t, err)
	assert.Equal(t, ScanCheckedIn, res.Action)

	res, err = f.ledger.Scan(ctx, "m-1", at(8, 9, 0).Add(20*time.Second))
	require.NoError(t, err)
	assert.Equal(t, ScanDuplicate, res.Action)
	assert.Equal(t, attendance.StatusIn, res.Record.Status)

	res, err = f.ledger.Scan(ctx, "m-1", at(8, 10, 30))
	require.NoError(t, err)
	assert.Equal(t, ScanCheckedOut, res.Action)
	assert.InDelta(t, 1.5, res.Record.EarnedHours(), 1e-9)

	_, err = f.ledger.Scan(ctx, "m-1", at(8, 10, 45))
	assert.True(t, errors.Is(err, shared.ErrAlreadyCheckedOut))
}

func TestLedger_PresentToday(t *testing.T) {
	f := newFixture(t, nil)
	f.addMember(t, "m-1")
	f.addMember(t, "m-2")
	ctx := context.Background()

	_, err := f.ledger.CheckIn(ctx, "m-1", at(8, 12, 0))
	require.NoError(t, err)

	present, err := f.ledger.PresentToday(ctx, "2024-01-08")
	require.NoError(t, err)
	assert.Contains(t, present, "m-1")
	assert.NotContains(t, present, "m-2")
}
