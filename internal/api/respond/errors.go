package respond

import (
	"errors"
	"net/http"

	"github.com/good-yellow-bee/clipforge/internal/apperr"
)

// Error is the error half of the envelope.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	// Details carries a structured outcome, such as the quota decision that
	// denied a request.
	Details any `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

// Error codes
const (
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeNotFound           = "NOT_FOUND"
	CodeBadRequest         = "BAD_REQUEST"
	CodeConflict           = "CONFLICT"
	CodeInternalError      = "INTERNAL_ERROR"
	CodeRateLimited        = "RATE_LIMITED"
	CodeAccountLocked      = "ACCOUNT_LOCKED"
	CodeValidationFailed   = "VALIDATION_FAILED"
	CodeQuotaExceeded      = "QUOTA_EXCEEDED"
	CodeStorageUnavailable = "STORAGE_UNAVAILABLE"
)

// Standard errors
var (
	ErrUnauthorized = &Error{
		Code:    CodeUnauthorized,
		Message: "Invalid credentials",
		Status:  http.StatusUnauthorized,
	}

	ErrInvalidToken = &Error{
		Code:    CodeUnauthorized,
		Message: "Invalid or expired token",
		Status:  http.StatusUnauthorized,
	}

	ErrForbidden = &Error{
		Code:    CodeForbidden,
		Message: "Access denied",
		Status:  http.StatusForbidden,
	}

	ErrNotFound = &Error{
		Code:    CodeNotFound,
		Message: "Resource not found",
		Status:  http.StatusNotFound,
	}

	ErrInternalServer = &Error{
		Code:    CodeInternalError,
		Message: "Internal server error",
		Status:  http.StatusInternalServerError,
	}

	ErrRateLimited = &Error{
		Code:    CodeRateLimited,
		Message: "Too many requests",
		Status:  http.StatusTooManyRequests,
	}

	ErrAccountLocked = &Error{
		Code:    CodeAccountLocked,
		Message: "Account temporarily locked due to too many failed attempts",
		Status:  http.StatusTooManyRequests,
	}

	ErrStorageUnavailable = &Error{
		Code:    CodeStorageUnavailable,
		Message: "Storage temporarily unavailable",
		Status:  http.StatusServiceUnavailable,
	}
)

// NewBadRequest creates a bad request error with custom message.
func NewBadRequest(message string) *Error {
	return &Error{Code: CodeBadRequest, Message: message, Status: http.StatusBadRequest}
}

// NewValidationError creates a validation error with custom message.
func NewValidationError(message string) *Error {
	return &Error{Code: CodeValidationFailed, Message: message, Status: http.StatusBadRequest}
}

// NewConflict creates a conflict error with custom message.
func NewConflict(message string) *Error {
	return &Error{Code: CodeConflict, Message: message, Status: http.StatusConflict}
}

// NewNotFound creates a not found error with custom message.
func NewNotFound(message string) *Error {
	return &Error{Code: CodeNotFound, Message: message, Status: http.StatusNotFound}
}

// NewQuotaExceeded creates a quota error carrying the denying decision.
func NewQuotaExceeded(message string, decision any) *Error {
	return &Error{Code: CodeQuotaExceeded, Message: message, Status: http.StatusTooManyRequests, Details: decision}
}

// FromError classifies err. Messages of expected outcomes are passed
// through; faults get a generic message.
func FromError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}

	var ae *apperr.Error
	msg := "Internal server error"
	if errors.As(err, &ae) && ae.Err != nil {
		msg = ae.Err.Error()
	}

	switch apperr.KindOf(err) {
	case apperr.KindUnauthenticated:
		return ErrInvalidToken
	case apperr.KindNotFound:
		return NewNotFound(msg)
	case apperr.KindInvalidInput:
		return NewValidationError(msg)
	case apperr.KindQuotaExceeded:
		return NewQuotaExceeded(msg, nil)
	case apperr.KindStorageUnavailable, apperr.KindPersistenceFailure:
		return ErrStorageUnavailable
	default:
		return ErrInternalServer
	}
}
