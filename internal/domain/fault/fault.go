// Package fault defines the error taxonomy shared by the reservation core and
// its transport boundary. Business failures are always synchronous and carry
// enough detail for the caller to act.
package fault

import (
	"errors"
	"fmt"

	"driveshare/internal/domain/shared/daterange"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidRange
	KindMissingField
	KindNotFound
	KindUnauthorized
	KindForbidden
	KindConflict
	KindInvalidTransition
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindInvalidRange:
		return "invalid_range"
	case KindMissingField:
		return "missing_field"
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindInvalidTransition:
		return "invalid_transition"
	case KindUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Error is a classified failure. Conflict errors additionally carry the
// blocking date ranges so the caller can display them.
type Error struct {
	Kind   Kind
	Msg    string
	Ranges []daterange.DateRange
	Cause  error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Cause }

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Cause: cause}
}

// Conflict builds a conflict error carrying the overlapping ranges.
func Conflict(msg string, ranges []daterange.DateRange) *Error {
	return &Error{Kind: KindConflict, Msg: msg, Ranges: ranges}
}

// KindOf extracts the taxonomy kind from an error chain, KindUnknown if none.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

// RangesOf returns the blocking ranges attached to a conflict error, if any.
func RangesOf(err error) []daterange.DateRange {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Ranges
	}
	return nil
}
