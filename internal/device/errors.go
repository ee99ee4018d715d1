package device

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind identifies the class of a core failure
type ErrorKind string

const (
	RadioUnavailable ErrorKind = "radio_unavailable"
	MalformedAddress ErrorKind = "malformed_address"
	MalformedLabel   ErrorKind = "malformed_label"
	InvalidSelection ErrorKind = "invalid_selection"
	ConnectionBusy   ErrorKind = "connection_busy"
	ConnectionFailed ErrorKind = "connection_failed"
)

// Error is returned by every discovery and connection operation.
// Msg carries the detail; for ConnectionFailed it is the platform-reported reason.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Unwrap exposes the underlying platform error, if any
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is allows errors.Is to compare Error values by Kind
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Predefined sentinel errors, one per kind
var (
	ErrRadioUnavailable = &Error{Kind: RadioUnavailable}
	ErrMalformedAddress = &Error{Kind: MalformedAddress}
	ErrMalformedLabel   = &Error{Kind: MalformedLabel}
	ErrInvalidSelection = &Error{Kind: InvalidSelection}
	ErrConnectionBusy   = &Error{Kind: ConnectionBusy}
	ErrConnectionFailed = &Error{Kind: ConnectionFailed}
)

// NewError builds an Error of the given kind with a formatted message
func NewError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// NewConnectionFailed wraps a platform connect failure. The reason is the
// platform error text, kept verbatim.
func NewConnectionFailed(cause error) *Error {
	reason := "unknown failure"
	if cause != nil {
		reason = cause.Error()
	}
	return &Error{Kind: ConnectionFailed, Msg: reason, Err: cause}
}

// AsRadioUnavailable classifies err as RadioUnavailable, keeping it in the chain
func AsRadioUnavailable(err error) error {
	if err == nil {
		return nil
	}
	err = NormalizeError(err)
	if errors.Is(err, ErrRadioUnavailable) {
		return err
	}
	return &Error{Kind: RadioUnavailable, Msg: err.Error(), Err: err}
}

// IsKind reports whether err is an Error with the given kind
func IsKind(err error, kind ErrorKind) bool {
	var derr *Error
	if errors.As(err, &derr) {
		return derr.Kind == kind
	}
	return false
}

// FailureReason returns the platform reason carried by a ConnectionFailed error.
func FailureReason(err error) (string, bool) {
	var derr *Error
	if errors.As(err, &derr) && derr.Kind == ConnectionFailed {
		return derr.Msg, true
	}
	return "", false
}

// NormalizeError maps known platform error strings to RadioUnavailable.
// Other errors are returned unchanged.
func NormalizeError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrRadioUnavailable) {
		return err
	}

	msg := err.Error()
	switch {
	case containsIgnoreCase(msg, "org.bluez.Error.NotReady"):
		return &Error{Kind: RadioUnavailable, Msg: "adapter not ready", Err: err}
	case containsIgnoreCase(msg, "org.bluez.Error.NotPowered"):
		return &Error{Kind: RadioUnavailable, Msg: "adapter powered off", Err: err}
	case containsIgnoreCase(msg, "no bluetooth adapter"):
		return &Error{Kind: RadioUnavailable, Msg: "no adapter", Err: err}
	case containsIgnoreCase(msg, "org.freedesktop.DBus.Error.ServiceUnknown"):
		return &Error{Kind: RadioUnavailable, Msg: "bluetooth daemon not running", Err: err}
	case containsIgnoreCase(msg, "bluetooth is turned off"):
		return &Error{Kind: RadioUnavailable, Msg: "bluetooth is turned off", Err: err}
	default:
		return err
	}
}

// containsIgnoreCase checks substring case-insensitively
func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
