// Package apperr classifies errors into the kinds callers act on.
//
// Expected outcomes (quota exhausted, missing profile) are distinguished from
// infrastructure faults so only the latter are logged as errors.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is the classification of an error.
type Kind string

const (
	KindUnknown            Kind = ""
	KindUnauthenticated    Kind = "unauthenticated"
	KindNotFound           Kind = "not_found"
	KindQuotaExceeded      Kind = "quota_exceeded"
	KindStorageUnavailable Kind = "storage_unavailable"
	KindPersistenceFailure Kind = "persistence_failure"
	KindInvalidInput       Kind = "invalid_input"
)

// Error carries a Kind, the operation that failed and the underlying cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Err != nil:
		return e.Err.Error()
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorKind implements the classifier used by KindOf.
func (e *Error) ErrorKind() string {
	return string(e.Kind)
}

// New wraps err with a kind and operation name.
func New(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf builds an error of the given kind from a format string.
func Newf(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the outermost classified error in err's chain.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsFault reports whether err is an infrastructure fault that should be
// logged, as opposed to an expected, user-visible outcome.
func IsFault(err error) bool {
	switch KindOf(err) {
	case KindNotFound, KindQuotaExceeded, KindInvalidInput, KindUnauthenticated:
		return false
	default:
		return err != nil
	}
}
