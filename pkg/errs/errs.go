// Package errs classifies pipeline failures with string codes so the run
// controller can report what kind of failure ended a run.
package errs

import (
	"errors"
	"fmt"
)

// Code identifies a failure class. Codes are strings so they read well in logs.
type Code string

const (
	// CodeInvalidConfig marks a missing or invalid required input.
	CodeInvalidConfig Code = "INVALID_CONFIGURATION"

	// CodeExecutionFailed marks an external command that exited non-zero.
	CodeExecutionFailed Code = "EXECUTION_FAILED"

	// CodeUnauthorized marks rejected App Store Connect credentials.
	CodeUnauthorized Code = "UNAUTHORIZED"

	// CodeTimeout marks an exhausted polling loop.
	CodeTimeout Code = "TIMEOUT"

	// CodeNotFound marks a remote resource that does not exist.
	CodeNotFound Code = "NOT_FOUND"

	// CodeRemoteRejected marks a build the backend refused to process.
	CodeRemoteRejected Code = "REMOTE_REJECTED"

	// CodeCleanupFailed marks a teardown step that could not complete.
	CodeCleanupFailed Code = "CLEANUP_FAILED"

	// CodeUnknown is returned by CodeOf for unclassified errors.
	CodeUnknown Code = "UNKNOWN"
)

// Coder is implemented by errors that carry a Code.
type Coder interface {
	Code() Code
}

// Error attaches a Code to a wrapped cause.
type Error struct {
	code Code
	msg  string
	err  error
}

// E wraps err with code. The message, if non-empty, prefixes the cause.
func E(code Code, msg string, err error) *Error {
	return &Error{code: code, msg: msg, err: err}
}

// Config returns an INVALID_CONFIGURATION error built from a format string.
func Config(format string, args ...any) *Error {
	return &Error{code: CodeInvalidConfig, msg: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	switch {
	case e.msg == "" && e.err == nil:
		return string(e.code)
	case e.msg == "":
		return e.err.Error()
	case e.err == nil:
		return e.msg
	default:
		return e.msg + ": " + e.err.Error()
	}
}

func (e *Error) Unwrap() error { return e.err }

func (e *Error) Code() Code { return e.code }

// CodeOf returns the code of the first error in err's chain that carries one.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var c Coder
	if errors.As(err, &c) {
		return c.Code()
	}
	return CodeUnknown
}

// Is reports whether err's chain carries code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}
