// Package mcperr defines the error taxonomy shared by every layer of the
// harness, from transport framing up to suite orchestration.
package mcperr

import (
	"errors"
	"fmt"
)

// Code identifies the class of failure. Propagation policy for each code is
// documented per call site; see the Runner package for how fatal vs.
// per-test codes are handled.
type Code string

const (
	ConfigInvalid       Code = "config_invalid"
	SpawnFailed         Code = "spawn_failed"
	StartupTimeout      Code = "startup_timeout"
	StdinClosed         Code = "stdin_closed"
	ParseError          Code = "parse_error"
	ReadTimeout         Code = "read_timeout"
	HandshakeFailed     Code = "handshake_failed"
	PatternUnknown      Code = "pattern_unknown"
	PatternFailed       Code = "pattern_failed"
	ValidationFailed    Code = "validation_failed"
	StderrMismatch      Code = "stderr_mismatch"
	PerformanceExceeded Code = "performance_exceeded"
	Cancelled           Code = "cancelled"
	Internal            Code = "internal"
	ReadInProgress      Code = "read_in_progress"
)

// Error is the harness-wide error type. Path is a dotted JSON-pointer-like
// location when the failure is response-shaped; it is empty for
// transport/lifecycle errors.
type Error struct {
	Code       Code
	Path       string
	Message    string
	Suggestion string
	Err        error // wrapped cause, if any
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s at %s: %s", e.Code, e.Path, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error with no wrapped cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf builds an *Error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying cause.
func Wrap(code Code, err error, message string) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// WithPath returns a copy of e with Path set; used once the caller knows
// where in the response tree the failure occurred.
func (e *Error) WithPath(path string) *Error {
	cp := *e
	cp.Path = path
	return &cp
}

// WithSuggestion returns a copy of e with an actionable suggestion attached.
func (e *Error) WithSuggestion(s string) *Error {
	cp := *e
	cp.Suggestion = s
	return &cp
}

// CodeOf extracts the Code from err if it (or something it wraps) is an
// *Error, otherwise returns Internal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return Internal
}
