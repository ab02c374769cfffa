// Package errors defines the coded error type shared by services and the HTTP
// layer. Services attach a machine-readable code; transport translates the code
// into a status and a stable JSON error envelope.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	// CodeInvalidIdentifier marks a malformed product identifier. Admin paths
	// reject these up front; public paths degrade to not-found semantics.
	CodeInvalidIdentifier Code = "invalid_identifier"
	// CodeValidation covers malformed request input other than identifiers.
	CodeValidation Code = "validation_error"
	CodeNotFound   Code = "not_found"
	CodeConflict   Code = "conflict"
	// CodeExhausted signals the code generator ran out of retry budget. This is
	// a capacity/configuration fault, not an expected runtime condition.
	CodeExhausted Code = "code_space_exhausted"
	// CodeStoreUnavailable is persistence I/O failure on a write path. Never
	// swallowed; read paths degrade to not-found instead.
	CodeStoreUnavailable Code = "store_unavailable"
	// CodeSourceUnavailable marks external-source failures. Downgrades
	// enrichment only; it never changes an authenticity verdict.
	CodeSourceUnavailable Code = "source_unavailable"
	CodeUnauthorized      Code = "unauthorized"
	CodeInternal          Code = "internal_error"
)

// Error carries a code plus a human-readable message and an optional cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error, preserving the
// chain for errors.Is/As.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code Code) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// CodeOf returns the code of the outermost coded error, or CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps error codes onto HTTP statuses for the transport layer.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeInvalidIdentifier, CodeValidation:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeExhausted, CodeStoreUnavailable, CodeSourceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
