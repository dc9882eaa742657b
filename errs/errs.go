// Package errs defines the error taxonomy shared by every loom package.
//
// All failures in loom are value-returning. Errors carry a stable Code so
// embedders can branch on the category without string matching, and wrap an
// underlying cause where one exists so errors.Is/errors.As keep working
// through the stack.
package errs

import (
	"errors"
	"fmt"
)

// Code categorizes an error.
type Code string

const (
	// CodeNotFound indicates a missing entry, key, or record.
	CodeNotFound Code = "NOT_FOUND"

	// CodeAlreadyExists indicates a duplicate entry, subtree name, or record.
	CodeAlreadyExists Code = "ALREADY_EXISTS"

	// CodeIO indicates a failure in the backend's underlying medium.
	CodeIO Code = "IO"

	// CodeSerialization indicates a failure encoding or decoding persisted
	// data. Treated as a data-integrity error and surfaced to the caller.
	CodeSerialization Code = "SERIALIZATION"

	// CodeInvalidOperation indicates a structurally invalid request, such as
	// using a committed operation or reading a nested map through a string
	// accessor.
	CodeInvalidOperation Code = "INVALID_OPERATION"
)

// Error is the concrete error type returned across package boundaries.
type Error struct {
	// Code identifies the error category.
	Code Code

	// Message is a human-readable description.
	Message string

	// Err is the wrapped cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the cause for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates an Error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error wrapping a cause. Returns nil if err is nil.
func Wrap(code Code, message string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// NotFound creates a NOT_FOUND error for the named object.
func NotFound(what string) *Error {
	return &Error{Code: CodeNotFound, Message: what + " not found"}
}

// codeOf extracts the Code from an error chain, or "" if none.
func codeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsNotFound reports whether err is a NOT_FOUND error.
func IsNotFound(err error) bool {
	return codeOf(err) == CodeNotFound
}

// IsAlreadyExists reports whether err is an ALREADY_EXISTS error.
func IsAlreadyExists(err error) bool {
	return codeOf(err) == CodeAlreadyExists
}

// IsIO reports whether err is an IO error.
func IsIO(err error) bool {
	return codeOf(err) == CodeIO
}

// IsSerialization reports whether err is a SERIALIZATION error.
func IsSerialization(err error) bool {
	return codeOf(err) == CodeSerialization
}

// IsInvalidOperation reports whether err is an INVALID_OPERATION error.
func IsInvalidOperation(err error) bool {
	return codeOf(err) == CodeInvalidOperation
}
