// Package errs defines the structured error types raised by gomt5.
//
// Three categories cover every failure the library reports:
//
//   - ConnectionError: a terminal session could not be established or has
//     gone away (terminal not running, auth failure, retries exhausted).
//   - ValidationError: caller-supplied data violated a precondition; the
//     terminal was never contacted.
//   - OrderError: the terminal rejected a request, or a transient condition
//     survived the retry budget. Carries the terminal's numeric retcode.
package errs

import (
	"errors"
	"fmt"
)

// ConnectionError reports a failure to establish or use a terminal session.
type ConnectionError struct {
	Op      string // attempted operation, e.g. "connect", "order_send"
	Code    int    // terminal error code from last_error, 0 if none
	Message string
	Err     error // underlying cause, may be nil
}

func (e *ConnectionError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Code != 0 {
		return fmt.Sprintf("%s: %s (terminal error %d)", e.Op, msg, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ValidationError reports caller input that violated a builder or registry
// precondition. No terminal call was made.
type ValidationError struct {
	Field  string // offending field or argument, e.g. "volume", "name"
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// OrderError reports a trade request the terminal refused or failed.
type OrderError struct {
	Op      string // "order_send", "order_check", "close_position", ...
	Retcode uint32 // terminal trade retcode, 0 when not applicable
	Code    int    // terminal error code from last_error, 0 if none
	Message string
	// Transient marks conditions that were retryable but exhausted the
	// retry budget, as opposed to hard rejections.
	Transient bool
}

func (e *OrderError) Error() string {
	switch {
	case e.Retcode != 0:
		return fmt.Sprintf("%s: %s (retcode %d)", e.Op, e.Message, e.Retcode)
	case e.Code != 0:
		return fmt.Sprintf("%s: %s (terminal error %d)", e.Op, e.Message, e.Code)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
}

// Validation builds a ValidationError.
func Validation(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Connection builds a ConnectionError.
func Connection(op string, code int, format string, args ...any) *ConnectionError {
	return &ConnectionError{Op: op, Code: code, Message: fmt.Sprintf(format, args...)}
}

// IsConnection reports whether err is (or wraps) a ConnectionError.
func IsConnection(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsOrder reports whether err is (or wraps) an OrderError.
func IsOrder(err error) bool {
	var oe *OrderError
	return errors.As(err, &oe)
}
