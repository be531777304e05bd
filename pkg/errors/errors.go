package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Standard error codes used across the codebase.
const (
	CodeInternal        = "INTERNAL"
	CodeNotFound        = "NOT_FOUND"
	CodeInvalidArgument = "INVALID_ARGUMENT"
	CodeConflict        = "CONFLICT"
	CodeForbidden       = "FORBIDDEN"
	CodeUnauthenticated = "UNAUTHENTICATED"
	CodeTimeout         = "TIMEOUT"
	CodeUnavailable     = "UNAVAILABLE"
)

// AppError is the structured error type returned from every layer of the
// application. It carries a stable Code that callers can switch on, a
// human-readable Message, and the underlying Error it wraps (if any).
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying error to errors.Is/errors.As.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New builds an AppError with the given code, message, and optional
// underlying error.
func New(code, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// Wrap annotates err with a message under CodeInternal, preserving the
// original error's code if it is already an *AppError.
func Wrap(err error, message string) *AppError {
	if err == nil {
		return nil
	}
	var ae *AppError
	if As(err, &ae) {
		return &AppError{Code: ae.Code, Message: message, Err: err}
	}
	return &AppError{Code: CodeInternal, Message: message, Err: err}
}

// NotFound builds an AppError with CodeNotFound.
func NotFound(message string, err error) *AppError {
	return New(CodeNotFound, message, err)
}

// Internal builds an AppError with CodeInternal.
func Internal(message string, err error) *AppError {
	return New(CodeInternal, message, err)
}

// InvalidArgument builds an AppError with CodeInvalidArgument.
func InvalidArgument(message string, err error) *AppError {
	return New(CodeInvalidArgument, message, err)
}

// Conflict builds an AppError with CodeConflict.
func Conflict(message string, err error) *AppError {
	return New(CodeConflict, message, err)
}

// Forbidden builds an AppError with CodeForbidden.
func Forbidden(message string, err error) *AppError {
	return New(CodeForbidden, message, err)
}

// Timeout builds an AppError with CodeTimeout.
func Timeout(message string, err error) *AppError {
	return New(CodeTimeout, message, err)
}

// Unavailable builds an AppError with CodeUnavailable.
func Unavailable(message string, err error) *AppError {
	return New(CodeUnavailable, message, err)
}

// Is re-exports the standard library's errors.Is so callers only need to
// import this package.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As re-exports the standard library's errors.As so callers only need to
// import this package.
func As(err error, target interface{}) bool {
	switch t := target.(type) {
	case **AppError:
		return errors.As(err, t)
	default:
		return errors.As(err, target)
	}
}

// HTTPStatus maps an AppError's code to an HTTP status code. Errors that
// are not *AppError map to 500.
func HTTPStatus(err error) int {
	var ae *AppError
	if !errors.As(err, &ae) {
		return http.StatusInternalServerError
	}
	switch ae.Code {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeConflict:
		return http.StatusConflict
	case CodeForbidden:
		return http.StatusForbidden
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
