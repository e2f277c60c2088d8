package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nardi-attend/attendance-hub/internal/application/command"
	"github.com/nardi-attend/attendance-hub/internal/application/query"
	"github.com/nardi-attend/attendance-hub/internal/domain/attendance"
	"github.com/nardi-attend/attendance-hub/internal/domain/course"
	"github.com/nardi-attend/attendance-hub/internal/domain/member"
	"github.com/nardi-attend/attendance-hub/internal/domain/schedule"
	"github.com/nardi-attend/attendance-hub/internal/infrastructure/notify"
	"github.com/nardi-attend/attendance-hub/internal/infrastructure/persistence/memory"
	"github.com/nardi-attend/attendance-hub/internal/interface/http/handlers"
	"github.com/nardi-attend/attendance-hub/pkg/logger"
	"github.com/nardi-attend/attendance-hub/pkg/timeutil"
)

var offset = timeutil.NewOffset(180)

// 2024-01-08 is a Monday; the default schedule runs 09:00-11:00.
func at(hour, min int) time.Time {
	return time.Date(2024, 1, 8, hour, min, 0, 0, offset.Location())
}

const cronSecret = "let-me-sweep"

type apiFixture struct {
	store  *memory.Store
	server *Server
	now    time.Time
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	store := memory.NewStore()
	store.AddCourse(&course.Course{ID: "c-1", Name: "Go"})
	store.AddBatch(&course.Batch{ID: "b-1", Name: "2024-A", CourseID: "c-1"})
	for i, id := range []string{"m-1", "m-2", "m-3"} {
		m, err := member.NewMember(id, "Member "+id, id+"@example.com", "b-1", time.Date(2024, 1, 1, 9, i, 0, 0, time.UTC))
		require.NoError(t, err)
		if id == "m-3" {
			m.Blocked = true
		}
		store.AddMember(m)
	}

	resolver := schedule.NewResolver(offset)
	schedules := store.Schedules(schedule.DefaultSchedule())
	ledger := command.NewLedger(
		store.Members(),
		store.Attendance(),
		schedules,
		resolver,
		attendance.NewPolicy(offset, 30*time.Minute),
		nil,
		logger.Discard(),
		command.DefaultLedgerConfig(),
	)
	ranking := command.NewRankingAggregator(store.Members(), store.Attendance(), nil, logger.Discard())
	sweep := command.NewAbsenceSweep(command.SweepDependencies{
		Members:   store.Members(),
		Records:   store.Attendance(),
		Schedules: schedules,
		Resolver:  resolver,
		Sender:    notify.NewLogSender(logger.Discard()),
		Runs:      store.SweepRuns(),
		Locker:    memory.NewLocker(),
		Ranking:   ranking,
		Logger:    logger.Discard(),
	}, command.DefaultAbsenceSweepConfig())

	hash, err := bcrypt.GenerateFromPassword([]byte(cronSecret), bcrypt.MinCost)
	require.NoError(t, err)
	auth, err := handlers.NewCronAuth(string(hash))
	require.NoError(t, err)

	f := &apiFixture{store: store, now: at(9, 0)}
	f.server = NewServer(DefaultConfig(), Dependencies{
		Attendance: ledger,
		Sweep:      sweep,
		Ranking:    query.NewGetRankingHandler(nil, ranking, logger.Discard()),
		Presence:   query.NewGetPresenceHandler(ledger, store.Attendance()),
		LastSweep:  query.NewGetLastSweepHandler(store.SweepRuns()),
		CronAuth:   auth,
		Logger:     logger.Discard(),
		Clock:      func() time.Time { return f.now },
	})
	return f
}

type apiResponse struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Error     *APIError       `json:"error"`
	RequestID string          `json:"request_id"`
}

func (f *apiFixture) do(t *testing.T, method, path, body string, header ...string) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}

	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)

	var resp apiResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return rec, resp
}

func TestCheckIn(t *testing.T) {
	f := newAPIFixture(t)

	rec, resp := f.do(t, http.MethodPost, "/api/v1/attendance/check-in", `{"member_id":"m-1"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var dto RecordDTO
	require.NoError(t, json.Unmarshal(resp.Data, &dto))
	assert.Equal(t, "m-1", dto.MemberID)
	assert.Equal(t, "2024-01-08", dto.Date)
	assert.Equal(t, "IN", dto.Status)

	// Retrying returns the same record.
	_, again := f.do(t, http.MethodPost, "/api/v1/attendance/check-in", `{"member_id":"m-1"}`)
	var dto2 RecordDTO
	require.NoError(t, json.Unmarshal(again.Data, &dto2))
	assert.Equal(t, dto.ID, dto2.ID)
}

func TestCheckIn_Denials(t *testing.T) {
	tests := []struct {
		name     string
		now      time.Time
		body     string
		wantCode int
		wantErr  string
	}{
		{"blocked member", at(9, 0), `{"member_id":"m-3"}`, http.StatusForbidden, "member_blocked"},
		{"too early", at(8, 0), `{"member_id":"m-1"}`, http.StatusForbidden, "outside_window"},
		{"too late", at(11, 30), `{"member_id":"m-1"}`, http.StatusForbidden, "outside_window"},
		{"unknown member", at(9, 0), `{"member_id":"ghost"}`, http.StatusNotFound, "not_found"},
		{"missing member id", at(9, 0), `{}`, http.StatusBadRequest, "invalid_request"},
		{"unknown field", at(9, 0), `{"member_id":"m-1","extra":true}`, http.StatusBadRequest, "invalid_request"},
		{"malformed json", at(9, 0), `{"member_id":`, http.StatusBadRequest, "invalid_request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAPIFixture(t)
			f.now = tt.now

			rec, resp := f.do(t, http.MethodPost, "/api/v1/attendance/check-in", tt.body)
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantErr, resp.Error.Code)
			assert.False(t, resp.Success)
		})
	}
}

func TestCheckIn_OutsideWindowExplainsWhen(t *testing.T) {
	f := newAPIFixture(t)
	f.now = at(8, 0)

	_, resp := f.do(t, http.MethodPost, "/api/v1/attendance/check-in", `{"member_id":"m-1"}`)
	require.NotNil(t, resp.Error)
	assert.Contains(t, resp.Error.Message, "class starts at 09:00")
}

func TestCheckIn_ValidationReportsFields(t *testing.T) {
	f := newAPIFixture(t)

	_, resp := f.do(t, http.MethodPost, "/api/v1/attendance/check-in", `{"member_id":""}`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "required", resp.Error.Fields["member_id"])
}

func TestCheckOut(t *testing.T) {
	f := newAPIFixture(t)

	rec, resp := f.do(t, http.MethodPost, "/api/v1/attendance/check-out", `{"member_id":"m-1"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "no_active_session", resp.Error.Code)

	f.do(t, http.MethodPost, "/api/v1/attendance/check-in", `{"member_id":"m-1"}`)
	f.now = at(10, 30)

	rec, resp = f.do(t, http.MethodPost, "/api/v1/attendance/check-out", `{"member_id":"m-1"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var dto RecordDTO
	require.NoError(t, json.Unmarshal(resp.Data, &dto))
	assert.Equal(t, "OUT", dto.Status)
	require.NotNil(t, dto.Hours)
	assert.InDelta(t, 1.5, *dto.Hours, 1e-9)

	rec, resp = f.do(t, http.MethodPost, "/api/v1/attendance/check-out", `{"member_id":"m-1"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "already_checked_out", resp.Error.Code)
}

func TestScan_Toggles(t *testing.T) {
	f := newAPIFixture(t)

	scan := func() (int, ScanDTO, *APIError) {
		rec, resp := f.do(t, http.MethodPost, "/api/v1/attendance/scan", `{"member_id":"m-2"}`)
		var dto ScanDTO
		if resp.Success {
			require.NoError(t, json.Unmarshal(resp.Data, &dto))
		}
		return rec.Code, dto, resp.Error
	}

	code, dto, _ := scan()
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "checked_in", dto.Action)

	code, dto, _ = scan()
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "duplicate", dto.Action)

	f.now = at(11, 0)
	code, dto, _ = scan()
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "checked_out", dto.Action)
	assert.Equal(t, "OUT", dto.Record.Status)

	code, _, apiErr := scan()
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "already_checked_out", apiErr.Code)
}

func TestPresent(t *testing.T) {
	f := newAPIFixture(t)
	f.do(t, http.MethodPost, "/api/v1/attendance/check-in", `{"member_id":"m-2"}`)

	rec, resp := f.do(t, http.MethodGet, "/api/v1/attendance/present", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var res query.GetPresenceResult
	require.NoError(t, json.Unmarshal(resp.Data, &res))
	assert.Equal(t, "2024-01-08", res.Date)
	assert.Equal(t, []string{"m-2"}, res.MemberIDs)

	_, resp = f.do(t, http.MethodGet, "/api/v1/attendance/present?date=2024-01-09", "")
	require.NoError(t, json.Unmarshal(resp.Data, &res))
	assert.Empty(t, res.MemberIDs)

	rec, _ = f.do(t, http.MethodGet, "/api/v1/attendance/present?date=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRanking(t *testing.T) {
	f := newAPIFixture(t)
	f.do(t, http.MethodPost, "/api/v1/attendance/check-in", `{"member_id":"m-2"}`)
	f.now = at(11, 0)
	f.do(t, http.MethodPost, "/api/v1/attendance/check-out", `{"member_id":"m-2"}`)

	rec, resp := f.do(t, http.MethodGet, "/api/v1/ranking?limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var res query.GetRankingResult
	require.NoError(t, json.Unmarshal(resp.Data, &res))
	assert.Equal(t, query.SourceComputed, res.Source)
	assert.Equal(t, 3, res.TotalCount)
	require.Len(t, res.Entries, 2)
	assert.Equal(t, "m-2", res.Entries[0].MemberID)
	assert.InDelta(t, 2.0, res.Entries[0].TotalHours, 1e-9)
	assert.True(t, res.HasMore)
}

func TestMemberStanding(t *testing.T) {
	f := newAPIFixture(t)
	f.do(t, http.MethodPost, "/api/v1/attendance/check-in", `{"member_id":"m-2"}`)
	f.now = at(11, 0)
	f.do(t, http.MethodPost, "/api/v1/attendance/check-out", `{"member_id":"m-2"}`)

	rec, resp := f.do(t, http.MethodGet, "/api/v1/ranking/m-2", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var res query.MemberStandingResult
	require.NoError(t, json.Unmarshal(resp.Data, &res))
	assert.Equal(t, 1, res.Rank)
	assert.Equal(t, "m-2", res.MemberID)
	assert.Equal(t, query.SourceComputed, res.Source)

	rec, _ = f.do(t, http.MethodGet, "/api/v1/ranking/ghost", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAbsenceSweepTrigger(t *testing.T) {
	f := newAPIFixture(t)
	f.do(t, http.MethodPost, "/api/v1/attendance/check-in", `{"member_id":"m-1"}`)
	f.now = at(23, 0)

	rec, _ := f.do(t, http.MethodPost, "/api/v1/cron/absence-sweep", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = f.do(t, http.MethodPost, "/api/v1/cron/absence-sweep", "", "Authorization", "Bearer wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, resp := f.do(t, http.MethodPost, "/api/v1/cron/absence-sweep", "", "Authorization", "Bearer "+cronSecret)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var run query.SweepRunDTO
	require.NoError(t, json.Unmarshal(resp.Data, &run))
	assert.Equal(t, "2024-01-08", run.Date)
	assert.Equal(t, 3, run.Checked)
	assert.Equal(t, 1, run.HoursFinalized)

	m2, err := f.store.Members().Get(context.Background(), "m-2")
	require.NoError(t, err)
	assert.Equal(t, 1, m2.AbsenceStreak)

	rec, resp = f.do(t, http.MethodGet, "/api/v1/cron/absence-sweep/last", "", "Authorization", "Bearer "+cronSecret)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(resp.Data, &run))
	assert.Equal(t, "2024-01-08", run.Date)
}

func TestAbsenceSweepTrigger_ExplicitDate(t *testing.T) {
	f := newAPIFixture(t)

	rec, resp := f.do(t, http.MethodPost, "/api/v1/cron/absence-sweep", `{"date":"2024-01-05"}`, "Authorization", "Bearer "+cronSecret)
	require.Equal(t, http.StatusOK, rec.Code)
	var run query.SweepRunDTO
	require.NoError(t, json.Unmarshal(resp.Data, &run))
	assert.Equal(t, "2024-01-05", run.Date)

	rec, resp = f.do(t, http.MethodPost, "/api/v1/cron/absence-sweep", `{"date":"05/01/2024"}`, "Authorization", "Bearer "+cronSecret)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "datekey", resp.Error.Fields["date"])
}

func TestLastSweep_NotFoundBeforeFirstRun(t *testing.T) {
	f := newAPIFixture(t)

	rec, resp := f.do(t, http.MethodGet, "/api/v1/cron/absence-sweep/last", "", "Authorization", "Bearer "+cronSecret)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", resp.Error.Code)
}

func TestHealthAndRequestID(t *testing.T) {
	f := newAPIFixture(t)

	rec, resp := f.do(t, http.MethodGet, "/health", "", "X-Request-ID", "req-42")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "req-42", resp.RequestID)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec, _ = f.do(t, http.MethodGet, "/live", "")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

type panickingAttendance struct{ AttendanceService }

func (panickingAttendance) CheckIn(context.Context, string, time.Time) (*attendance.Record, error) {
	panic("boom")
}

func TestRecoveryMiddleware(t *testing.T) {
	s := NewServer(DefaultConfig(), Dependencies{Attendance: panickingAttendance{}, Logger: logger.Discard()})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/attendance/check-in", bytes.NewReader([]byte(`{"member_id":"m-1"}`)))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestCronRoutesDisabledWithoutAuth(t *testing.T) {
	s := NewServer(DefaultConfig(), Dependencies{Logger: logger.Discard()})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cron/absence-sweep", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
