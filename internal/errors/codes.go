// Package errors defines the error taxonomy shared by the parser, the reminder
// store, the dispatcher and the HTTP surface.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a specific error type.
type ErrorCode string

const (
	// ErrCodeParse indicates an unrecognized or malformed time expression.
	ErrCodeParse ErrorCode = "PARSE_ERROR"
	// ErrCodeNotFound indicates a selector did not resolve to a reminder.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodePastInstantUnresolvable indicates an absolute clause could not be
	// advanced into the future within the allowed number of steps.
	ErrCodePastInstantUnresolvable ErrorCode = "PAST_INSTANT_UNRESOLVABLE"
	// ErrCodeNotifyFailure indicates the notifier did not deliver a reminder.
	ErrCodeNotifyFailure ErrorCode = "NOTIFY_FAILURE"
	// ErrCodeInvalidArgument indicates invalid input parameters.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	// ErrCodeUnauthorized indicates authentication failure.
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	// ErrCodeRateLimitExceeded indicates rate limit has been exceeded.
	ErrCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"
	// ErrCodeTimeout indicates the operation timed out.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeInternal indicates an unexpected failure, usually from storage.
	ErrCodeInternal ErrorCode = "INTERNAL"
)

// Error represents a structured error carrying an ErrorCode.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// GetCode returns the error code.
func (e *Error) GetCode() ErrorCode {
	return e.Code
}

// ParseError creates a parse error.
func ParseError(format string, args ...any) *Error {
	return &Error{Code: ErrCodeParse, Message: fmt.Sprintf(format, args...)}
}

// NotFound creates a not found error.
func NotFound(format string, args ...any) *Error {
	return &Error{Code: ErrCodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// PastInstantUnresolvable creates an error for absolute clauses stuck in the past.
func PastInstantUnresolvable(msg string) *Error {
	return &Error{Code: ErrCodePastInstantUnresolvable, Message: msg}
}

// NotifyFailure wraps a notifier error.
func NotifyFailure(cause error) *Error {
	return &Error{Code: ErrCodeNotifyFailure, Message: "notification not delivered", Cause: cause}
}

// InvalidArgument creates an invalid argument error.
func InvalidArgument(format string, args ...any) *Error {
	return &Error{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf(format, args...)}
}

// Unauthorized creates an unauthorized error.
func Unauthorized(msg string) *Error {
	return &Error{Code: ErrCodeUnauthorized, Message: msg}
}

// RateLimitExceeded creates a rate limit exceeded error.
func RateLimitExceeded(msg string) *Error {
	return &Error{Code: ErrCodeRateLimitExceeded, Message: msg}
}

// Timeout creates a timeout error.
func Timeout(msg string, cause error) *Error {
	return &Error{Code: ErrCodeTimeout, Message: msg, Cause: cause}
}

// Wrap wraps an existing error with additional context.
func Wrap(cause error, code ErrorCode, msg string) *Error {
	return &Error{Code: code, Message: msg, Cause: cause}
}

// IsCode checks if an error, or any error it wraps, carries the given code.
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCodeFromError extracts the error code from any error.
// Returns the provided default code if the error chain holds no *Error.
func GetCodeFromError(err error, defaultCode ErrorCode) ErrorCode {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return defaultCode
}
