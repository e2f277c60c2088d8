package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/nardi-attend/attendance-hub/internal/application/command"
	"github.com/nardi-attend/attendance-hub/internal/domain/attendance"
	"github.com/nardi-attend/attendance-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// REQUESTS
// ══════════════════════════════════════════════════════════════════════════════

// AttendanceRequest is the body of check-in, check-out and scan.
type AttendanceRequest struct {
	MemberID string `json:"member_id" validate:"required,max=64,printascii"`
}

// SweepRequest is the optional body of the cron trigger. An empty date
// sweeps the current institution day.
type SweepRequest struct {
	Date string `json:"date" validate:"omitempty,datekey"`
}

func newValidator() *validator.Validate {
	v := validator.New()

	// Report json names in field errors.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("datekey", func(fl validator.FieldLevel) bool {
		return timeutil.ValidDateKey(fl.Field().String())
	})

	return v
}

// requestError is a 400 with optional per-field details.
type requestError struct {
	message string
	fields  map[string]string
}

func (e *requestError) Error() string { return e.message }

// decodeAndValidate reads a JSON body into dst and validates it. An empty
// body is accepted when allowEmpty is set.
func (s *Server) decodeAndValidate(r *http.Request, dst interface{}, allowEmpty bool) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if !(allowEmpty && errors.Is(err, io.EOF)) {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				return &requestError{message: "request body too large"}
			}
			return &requestError{message: fmt.Sprintf("invalid JSON body: %v", err)}
		}
	}

	if err := s.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				fields[fe.Field()] = fe.Tag()
			}
			return &requestError{message: "validation failed", fields: fields}
		}
		return &requestError{message: err.Error()}
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSES
// ══════════════════════════════════════════════════════════════════════════════

// RecordDTO is an attendance record on the wire.
type RecordDTO struct {
	ID         string     `json:"id"`
	MemberID   string     `json:"member_id"`
	Date       string     `json:"date"`
	Status     string     `json:"status"`
	CheckInAt  *time.Time `json:"check_in_at,omitempty"`
	CheckOutAt *time.Time `json:"check_out_at,omitempty"`
	Hours      *float64   `json:"hours,omitempty"`
}

func newRecordDTO(r *attendance.Record) RecordDTO {
	return RecordDTO{
		ID:         r.ID,
		MemberID:   r.MemberID,
		Date:       r.Date,
		Status:     string(r.Status),
		CheckInAt:  r.CheckInAt,
		CheckOutAt: r.CheckOutAt,
		Hours:      r.Hours,
	}
}

// ScanDTO is the outcome of a scan.
type ScanDTO struct {
	Action string    `json:"action"`
	Record RecordDTO `json:"record"`
}

func newScanDTO(res *command.ScanResult) ScanDTO {
	return ScanDTO{Action: string(res.Action), Record: newRecordDTO(res.Record)}
}
