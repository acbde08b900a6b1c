// Package errs defines the error taxonomy shared by every CalendarBot
// component: store, cache manager, selection engine, and config loader.
//
// Each error type carries a Code so callers can classify failures with
// errors.As without string matching, mirroring the RuntimeError pattern
// used by the sync engine this module was adapted from.
package errs

import (
	"errors"
	"fmt"
)

// Code categorizes an error into one of the taxonomy buckets from the
// error handling design.
type Code string

const (
	// CodeStoreInit indicates the database file is unreachable or unreadable.
	// Fatal for the process.
	CodeStoreInit Code = "STORE_INIT"

	// CodeStoreWrite indicates a constraint violation, disk full, or schema
	// mismatch. Non-retryable at the store layer.
	CodeStoreWrite Code = "STORE_WRITE"

	// CodeTransient indicates lock contention or a busy timeout. Retried up
	// to the configured budget before being surfaced to the caller.
	CodeTransient Code = "TRANSIENT"

	// CodeQueryFailure indicates malformed parameters or a read failure.
	CodeQueryFailure Code = "QUERY_FAILURE"

	// CodeSelectionData indicates a per-event data problem such as an
	// unresolvable timezone or malformed timestamp.
	CodeSelectionData Code = "SELECTION_DATA"

	// CodeConfig indicates invalid configuration (negative retention, zero
	// TTL, etc). Raised at startup, fatal.
	CodeConfig Code = "CONFIG_ERROR"

	// CodeTimeOrder indicates start_instant > end_instant for an event.
	CodeTimeOrder Code = "TIME_ORDER"
)

// Error is a typed, classifiable error carrying enough context for
// callers to decide whether to retry, log, or abort.
type Error struct {
	Code    Code
	Message string
	// SourceID identifies the event involved, when applicable.
	SourceID string
	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	if e.SourceID != "" {
		return fmt.Sprintf("%s: %s (source_id=%s)", e.Code, e.Message, e.SourceID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap builds an Error with the given code wrapping an underlying cause.
func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// WithSourceID attaches a source_id to an Error for diagnostics and
// returns the receiver for chaining at the call site.
func (e *Error) WithSourceID(sourceID string) *Error {
	e.SourceID = sourceID
	return e
}

// HasCode reports whether err is an *Error with the given code.
func HasCode(err error, code Code) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}
