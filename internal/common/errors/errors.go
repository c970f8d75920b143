// internal/common/errors/errors.go
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Authentication / authorization
	ErrCodeUnauthenticated ErrorCode = "UNAUTHENTICATED"
	ErrCodeUnauthorized    ErrorCode = "UNAUTHORIZED"
	ErrCodeSessionInvalid  ErrorCode = "SESSION_INVALID"

	// Intake
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeAlreadySubmitted ErrorCode = "ALREADY_SUBMITTED"
	ErrCodeFormClosed       ErrorCode = "FORM_CLOSED"

	// Review / locking
	ErrCodeLockConflict ErrorCode = "LOCK_CONFLICT"

	// Generic
	ErrCodeNotFound        ErrorCode = "NOT_FOUND"
	ErrCodeBadRequest      ErrorCode = "BAD_REQUEST"
	ErrCodeUpstreamFailure ErrorCode = "UPSTREAM_FAILURE"
)

// FieldError carries per-field detail for validation failures.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// PortalError represents a structured application error.
type PortalError struct {
	Code      ErrorCode    `json:"code"`
	Message   string       `json:"message"`
	Details   string       `json:"details,omitempty"`
	Fields    []FieldError `json:"fields,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

func (e *PortalError) Error() string {
	return fmt.Sprintf("PortalError[%s]: %s", e.Code, e.Message)
}

// HTTPStatus maps the error code to the HTTP status the handlers return.
// SESSION_INVALID and UNAUTHORIZED share 403 but keep distinct payload codes
// so the client can tell "log in again" from "your tab was superseded".
func (e *PortalError) HTTPStatus() int {
	switch e.Code {
	case ErrCodeUnauthenticated:
		return http.StatusUnauthorized
	case ErrCodeUnauthorized, ErrCodeSessionInvalid, ErrCodeFormClosed:
		return http.StatusForbidden
	case ErrCodeValidationFailed, ErrCodeBadRequest:
		return http.StatusBadRequest
	case ErrCodeAlreadySubmitted, ErrCodeLockConflict:
		return http.StatusConflict
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeUpstreamFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// AsPortalError unwraps err to a *PortalError if possible.
func AsPortalError(err error) (*PortalError, bool) {
	var pe *PortalError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// IsCode reports whether err is a PortalError with the given code.
func IsCode(err error, code ErrorCode) bool {
	pe, ok := AsPortalError(err)
	return ok && pe.Code == code
}

// ==========================
// 2. Error Constructors
// ==========================

// NewUnauthenticatedError signals a missing or invalid bearer token.
func NewUnauthenticatedError(details string) *PortalError {
	return &PortalError{
		Code:      ErrCodeUnauthenticated,
		Message:   "Requires authentication",
		Details:   details,
		Timestamp: time.Now().UTC(),
	}
}

// NewUnauthorizedError signals a valid identity lacking the required role.
func NewUnauthorizedError(details string) *PortalError {
	return &PortalError{
		Code:      ErrCodeUnauthorized,
		Message:   "Insufficient permissions",
		Details:   details,
		Timestamp: time.Now().UTC(),
	}
}

// NewSessionInvalidError signals a superseded or expired admin session.
func NewSessionInvalidError() *PortalError {
	return &PortalError{
		Code:      ErrCodeSessionInvalid,
		Message:   "Session invalidated",
		Timestamp: time.Now().UTC(),
	}
}

// NewValidationFailedError carries field-level validation detail.
func NewValidationFailedError(fields []FieldError) *PortalError {
	return &PortalError{
		Code:      ErrCodeValidationFailed,
		Message:   "Form data validation failed",
		Fields:    fields,
		Timestamp: time.Now().UTC(),
	}
}

// NewAlreadySubmittedError signals a duplicate submission. Distinct from
// LOCK_CONFLICT so the UI can route to the status page.
func NewAlreadySubmittedError(formKey string) *PortalError {
	return &PortalError{
		Code:      ErrCodeAlreadySubmitted,
		Message:   "Application already exists for this user for this form",
		Details:   fmt.Sprintf("formKey: %s", formKey),
		Timestamp: time.Now().UTC(),
	}
}

// NewAlreadyCheckedInError signals a repeat scan for the same event slot.
func NewAlreadyCheckedInError(eventType string) *PortalError {
	return &PortalError{
		Code:      ErrCodeAlreadySubmitted,
		Message:   "Already checked in for this event",
		Details:   fmt.Sprintf("eventType: %s", eventType),
		Timestamp: time.Now().UTC(),
	}
}

// NewFormClosedError signals a submission to a closed form.
func NewFormClosedError(formKey string) *PortalError {
	return &PortalError{
		Code:      ErrCodeFormClosed,
		Message:   "Form is closed",
		Details:   fmt.Sprintf("formKey: %s", formKey),
		Timestamp: time.Now().UTC(),
	}
}

// NewLockConflictError signals that another live session holds the review
// lock. Recoverable: the caller may retry or proceed read-only.
func NewLockConflictError(recordID string) *PortalError {
	return &PortalError{
		Code:      ErrCodeLockConflict,
		Message:   "Application is locked by another admin",
		Details:   fmt.Sprintf("recordId: %s", recordID),
		Timestamp: time.Now().UTC(),
	}
}

// NewNotFoundError signals absence; also used as a normal control-flow
// signal ("not yet submitted", "queue drained").
func NewNotFoundError(what string) *PortalError {
	return &PortalError{
		Code:      ErrCodeNotFound,
		Message:   fmt.Sprintf("%s not found", what),
		Timestamp: time.Now().UTC(),
	}
}

// NewBadRequestError signals a malformed request.
func NewBadRequestError(details string) *PortalError {
	return &PortalError{
		Code:      ErrCodeBadRequest,
		Message:   "Bad request",
		Details:   details,
		Timestamp: time.Now().UTC(),
	}
}

// NewUpstreamFailureError wraps a store / blob store / provider failure.
// The detail is logged server-side; clients get the generic message.
func NewUpstreamFailureError(upstream string, err error) *PortalError {
	return &PortalError{
		Code:      ErrCodeUpstreamFailure,
		Message:   "Upstream service error",
		Details:   fmt.Sprintf("upstream: %s, error: %v", upstream, err),
		Timestamp: time.Now().UTC(),
	}
}
