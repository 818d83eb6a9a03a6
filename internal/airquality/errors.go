package airquality

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies every failure that may reach a FetchState.
type ErrorKind string

const (
	// Location failures.
	KindLocationUnsupported ErrorKind = "location_unsupported"
	KindPermissionDenied    ErrorKind = "permission_denied"
	KindLocationUnavailable ErrorKind = "location_unavailable"

	// Provider failures.
	KindNetwork       ErrorKind = "network_error"
	KindBadStatus     ErrorKind = "bad_status"
	KindTimeout       ErrorKind = "timeout"
	KindNotConfigured ErrorKind = "not_configured"

	// Device failures.
	KindNotPaired        ErrorKind = "not_paired"
	KindConnectionFailed ErrorKind = "connection_failed"

	// Persistence failures. Never surfaced to the lifecycle.
	KindWriteFailed ErrorKind = "write_failed"
)

// Sentinels for errors.Is. They compare by kind only.
var (
	ErrLocationUnsupported = &Error{Kind: KindLocationUnsupported}
	ErrPermissionDenied    = &Error{Kind: KindPermissionDenied}
	ErrLocationUnavailable = &Error{Kind: KindLocationUnavailable}
	ErrNetwork             = &Error{Kind: KindNetwork}
	ErrBadStatus           = &Error{Kind: KindBadStatus}
	ErrTimeout             = &Error{Kind: KindTimeout}
	ErrNotConfigured       = &Error{Kind: KindNotConfigured}
	ErrNotPaired           = &Error{Kind: KindNotPaired}
	ErrConnectionFailed    = &Error{Kind: KindConnectionFailed}
	ErrWriteFailed         = &Error{Kind: KindWriteFailed}
)

// Error is a classified failure. Op names the component operation that
// produced it; Err carries the underlying cause, if any.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

// E builds a classified error.
func E(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Ef builds a classified error from a format string.
func Ef(kind ErrorKind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// KindOf returns the kind of a classified error, or "" if err is not one.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Classify guarantees a classified error. Context errors become timeout or
// network errors; anything else unclassified becomes fallback.
func Classify(err error, op string, fallback ErrorKind) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return E(KindTimeout, op, err)
	}
	return E(fallback, op, err)
}

// Actionable reports whether the user can fix the failure themselves
// ("enable location", "pair a device") rather than wait and retry.
func (k ErrorKind) Actionable() bool {
	switch k {
	case KindLocationUnsupported, KindPermissionDenied, KindNotPaired:
		return true
	}
	return false
}

// Transient reports whether retrying the same acquisition may succeed.
func (k ErrorKind) Transient() bool {
	return k == KindNetwork || k == KindTimeout
}

// Message is the user-facing text for a kind.
func (k ErrorKind) Message() string {
	switch k {
	case KindPermissionDenied:
		return "Location permission denied. Please enable location services to see air quality data for your area."
	case KindLocationUnsupported:
		return "Location is not available from this device. Please enable location or provide coordinates."
	case KindLocationUnavailable:
		return "Your location could not be determined. Please try again later."
	case KindNotConfigured:
		return "Air quality service is unavailable. Please try again later."
	case KindNotPaired:
		return "No Bluetooth device found. Please connect a device first."
	case KindConnectionFailed:
		return "Failed to connect to the device. Please try again."
	default:
		return "Failed to fetch air quality data. Please try again later."
	}
}
