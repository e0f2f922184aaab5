// Package apierr provides the error kinds returned to API callers.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is an error that is safe to show to a caller.
type Error struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
}

func (e *Error) Error() string {
	return e.Message
}

// WithMessage returns a copy of the error with a custom message.
func (e *Error) WithMessage(message string) *Error {
	return &Error{Code: e.Code, Message: message, StatusCode: e.StatusCode}
}

// Withf is WithMessage with formatting.
func (e *Error) Withf(format string, args ...any) *Error {
	return e.WithMessage(fmt.Sprintf(format, args...))
}

// Is matches any error of the same kind regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrNotFound = &Error{
		Code:       "NOT_FOUND",
		Message:    "Resource not found",
		StatusCode: http.StatusNotFound,
	}

	ErrBadRequest = &Error{
		Code:       "BAD_REQUEST",
		Message:    "Invalid request",
		StatusCode: http.StatusBadRequest,
	}

	ErrUnauthorized = &Error{
		Code:       "UNAUTHORIZED",
		Message:    "You must be logged in to access this resource",
		StatusCode: http.StatusUnauthorized,
	}

	ErrForbidden = &Error{
		Code:       "FORBIDDEN",
		Message:    "You are not allowed to access this resource",
		StatusCode: http.StatusForbidden,
	}

	ErrRateLimited = &Error{
		Code:       "RATE_LIMITED",
		Message:    "Too many requests. Please try again later.",
		StatusCode: http.StatusTooManyRequests,
	}

	ErrConflict = &Error{
		Code:       "CONFLICT",
		Message:    "Resource already exists",
		StatusCode: http.StatusConflict,
	}

	ErrInternal = &Error{
		Code:       "INTERNAL",
		Message:    "An internal error occurred",
		StatusCode: http.StatusInternalServerError,
	}
)

// As returns the *Error in err's chain, or ErrInternal when there is none.
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return ErrInternal
}

// IsKind reports whether err carries an *Error of the same code as kind.
func IsKind(err error, kind *Error) bool {
	return errors.Is(err, kind)
}
