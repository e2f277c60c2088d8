// Package shared contains common domain types, errors and events
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")

	// State errors
	ErrInvalidState    = errors.New("invalid state")
	ErrStateTransition = errors.New("invalid state transition")

	// Policy errors are expected, user-facing outcomes.
	ErrPolicyDenied = errors.New("denied by policy")

	// Configuration errors must fail fast and never be treated as a denial.
	ErrConfiguration = errors.New("configuration error")

	// Authorization errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Concurrency errors
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrLocked                 = errors.New("resource locked")

	// External service errors
	ErrExternalService    = errors.New("external service error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
	ErrRateLimited        = errors.New("rate limited")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "member", "attendance", "schedule"
	Op      string // Operation that failed, e.g., "CheckIn", "Resolve"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if t, ok := target.(*DomainError); ok && e.Domain == t.Domain && e.Op == t.Op && e.Message == t.Message {
		return true
	}
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Member domain errors
var (
	ErrMemberNotFound = NewDomainError("member", "Find", ErrNotFound, "member not found")
	ErrMemberBlocked  = NewDomainError("member", "CheckIn", ErrPolicyDenied, "member is blocked from attendance")
)

// Schedule domain errors
var (
	ErrInvalidSchedule = NewDomainError("schedule", "Resolve", ErrConfiguration, "invalid course schedule")
	ErrCourseNotFound  = NewDomainError("schedule", "FindCourse", ErrNotFound, "course not found")
	ErrBatchNotFound   = NewDomainError("schedule", "FindBatch", ErrNotFound, "batch not found")
)

// Attendance domain errors
var (
	ErrOutsideWindow     = NewDomainError("attendance", "CheckIn", ErrPolicyDenied, "outside check-in window")
	ErrNoActiveSession   = NewDomainError("attendance", "CheckOut", ErrNotFound, "no active session for today")
	ErrAlreadyCheckedOut = NewDomainError("attendance", "CheckOut", ErrStateTransition, "already checked out for today")
	ErrRecordNotFound    = NewDomainError("attendance", "Find", ErrNotFound, "attendance record not found")
	ErrRecordExists      = NewDomainError("attendance", "Create", ErrAlreadyExists, "attendance record already exists")
)

// Sweep errors
var (
	ErrSweepInProgress = NewDomainError("sweep", "Run", ErrLocked, "absence sweep already running")
	ErrInvalidDateKey  = NewDomainError("sweep", "Run", ErrInvalidFormat, "date must be in YYYY-MM-DD form")
)

// Notification errors
var (
	ErrNotificationFailed = NewDomainError("notification", "Send", ErrExternalService, "failed to send notification")
	ErrNoRecipient        = NewDomainError("notification", "Send", ErrInvalidInput, "member has no email address")
)

// OutsideWindowError carries the policy reason of a denied check-in.
// It matches ErrOutsideWindow and ErrPolicyDenied with errors.Is.
type OutsideWindowError struct {
	Reason string
}

func (e *OutsideWindowError) Error() string {
	return "attendance.CheckIn: " + e.Reason
}

func (e *OutsideWindowError) Unwrap() error {
	return ErrOutsideWindow
}

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsPolicyDenied reports an expected, user-facing denial.
func IsPolicyDenied(err error) bool {
	return errors.Is(err, ErrPolicyDenied)
}

// IsConfiguration reports a misconfiguration (e.g. a malformed schedule).
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

// IsStateConflict reports a client-correctable state conflict.
func IsStateConflict(err error) bool {
	return errors.Is(err, ErrStateTransition) || errors.Is(err, ErrNoActiveSession)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrValueOutOfRange) ||
		errors.Is(err, ErrInvalidFormat)
}

// IsExternalService checks if the error is from an external service.
func IsExternalService(err error) bool {
	return errors.Is(err, ErrExternalService) ||
		errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrRateLimited)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrConcurrentModification)
}
