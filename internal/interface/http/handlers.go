package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/nardi-attend/attendance-hub/internal/application/query"
	"github.com/nardi-attend/attendance-hub/internal/domain/shared"
	"github.com/nardi-attend/attendance-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.deps.HealthChecker.Check(r.Context())
	if status.Version == "" {
		status.Version = s.config.Version
	}
	if !status.Healthy {
		writeJSON(w, r, http.StatusServiceUnavailable, status)
		return
	}
	writeJSON(w, r, http.StatusOK, status)
}

// handleLive handles GET /live.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// ATTENDANCE HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleCheckIn handles POST /api/v1/attendance/check-in.
func (s *Server) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	var req AttendanceRequest
	if !s.bind(w, r, &req, false) {
		return
	}

	rec, err := s.deps.Attendance.CheckIn(r.Context(), req.MemberID, s.now())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, newRecordDTO(rec))
}

// handleCheckOut handles POST /api/v1/attendance/check-out.
func (s *Server) handleCheckOut(w http.ResponseWriter, r *http.Request) {
	var req AttendanceRequest
	if !s.bind(w, r, &req, false) {
		return
	}

	rec, err := s.deps.Attendance.CheckOut(r.Context(), req.MemberID, s.now())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, newRecordDTO(rec))
}

// handleScan handles POST /api/v1/attendance/scan.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req AttendanceRequest
	if !s.bind(w, r, &req, false) {
		return
	}

	res, err := s.deps.Attendance.Scan(r.Context(), req.MemberID, s.now())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, newScanDTO(res))
}

// handlePresent handles GET /api/v1/attendance/present?date=YYYY-MM-DD.
// Without a date the current institution day is used.
func (s *Server) handlePresent(w http.ResponseWriter, r *http.Request) {
	if s.deps.Presence == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Presence query not configured")
		return
	}

	date := r.URL.Query().Get("date")
	if date == "" {
		date = s.deps.Attendance.DateKey(s.now())
	}

	res, err := s.deps.Presence.Handle(r.Context(), query.GetPresenceQuery{Date: date})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSONWithMeta(w, r, http.StatusOK, res, &ResponseMeta{TotalCount: len(res.MemberIDs)})
}

// ══════════════════════════════════════════════════════════════════════════════
// RANKING HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRanking handles GET /api/v1/ranking?limit=&offset=.
func (s *Server) handleRanking(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ranking == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Ranking query not configured")
		return
	}

	res, err := s.deps.Ranking.Handle(r.Context(), query.GetRankingQuery{
		Limit:  getQueryParamInt(r, "limit", 20),
		Offset: getQueryParamInt(r, "offset", 0),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSONWithMeta(w, r, http.StatusOK, res, &ResponseMeta{
		TotalCount: res.TotalCount,
		Page:       res.Page,
		PageSize:   res.PageSize,
		HasMore:    res.HasMore,
	})
}

// handleMemberStanding handles GET /api/v1/ranking/{member_id}.
func (s *Server) handleMemberStanding(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ranking == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Ranking query not configured")
		return
	}

	res, err := s.deps.Ranking.HandleMember(r.Context(), r.PathValue("member_id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

// ══════════════════════════════════════════════════════════════════════════════
// CRON HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleAbsenceSweep handles POST /api/v1/cron/absence-sweep.
func (s *Server) handleAbsenceSweep(w http.ResponseWriter, r *http.Request) {
	if s.deps.Sweep == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Absence sweep not configured")
		return
	}

	var req SweepRequest
	if !s.bind(w, r, &req, true) {
		return
	}

	now := s.now()
	date := req.Date
	if date == "" {
		date = s.deps.Attendance.DateKey(now)
	}

	summary, err := s.deps.Sweep.Run(r.Context(), date, now)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, query.NewSweepRunDTO(summary))
}

// handleLastSweep handles GET /api/v1/cron/absence-sweep/last.
func (s *Server) handleLastSweep(w http.ResponseWriter, r *http.Request) {
	if s.deps.LastSweep == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Sweep history not configured")
		return
	}

	run, err := s.deps.LastSweep.Handle(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, run)
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// bind decodes and validates the body, writing a 400 on failure.
func (s *Server) bind(w http.ResponseWriter, r *http.Request, dst interface{}, allowEmpty bool) bool {
	err := s.decodeAndValidate(r, dst, allowEmpty)
	if err == nil {
		return true
	}

	var reqErr *requestError
	if errors.As(err, &reqErr) {
		writeAPIError(w, http.StatusBadRequest, &APIError{
			Code:    "invalid_request",
			Message: reqErr.message,
			Fields:  reqErr.fields,
		})
		return false
	}
	writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
	return false
}

// writeDomainError maps domain errors to HTTP statuses. Policy denials are
// expected outcomes and are not logged as errors.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)

	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path), logger.Err(err))
	}

	writeJSONError(w, status, code, publicMessage(err, status))
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, shared.ErrMemberBlocked):
		return http.StatusForbidden, "member_blocked"
	case errors.Is(err, shared.ErrOutsideWindow):
		return http.StatusForbidden, "outside_window"
	case errors.Is(err, shared.ErrAlreadyCheckedOut):
		return http.StatusConflict, "already_checked_out"
	case errors.Is(err, shared.ErrNoActiveSession):
		return http.StatusConflict, "no_active_session"
	case errors.Is(err, shared.ErrSweepInProgress):
		return http.StatusConflict, "sweep_in_progress"
	case shared.IsConfiguration(err):
		return http.StatusInternalServerError, "configuration_error"
	case shared.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case shared.IsValidation(err):
		return http.StatusBadRequest, "invalid_request"
	case shared.IsPolicyDenied(err):
		return http.StatusForbidden, "denied"
	case shared.IsExternalService(err):
		return http.StatusServiceUnavailable, "service_unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func publicMessage(err error, status int) string {
	if status >= http.StatusInternalServerError {
		return http.StatusText(status)
	}

	var outside *shared.OutsideWindowError
	if errors.As(err, &outside) {
		return outside.Reason
	}
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) && domainErr.Message != "" {
		return domainErr.Message
	}
	return err.Error()
}
