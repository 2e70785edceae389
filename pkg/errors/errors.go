package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	ErrorTypeNetwork        ErrorType = "network"
	ErrorTypeRateLimit      ErrorType = "rate_limit"
	ErrorTypeParsing        ErrorType = "parsing"
	ErrorTypeNotFound       ErrorType = "not_found"
	ErrorTypeServerError    ErrorType = "server_error"
	ErrorTypeRejected       ErrorType = "rejected"
	ErrorTypeMissingElement ErrorType = "missing_element"
	ErrorTypeUnknown        ErrorType = "unknown"
)

// Error is a classified failure talking to the site or the page
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s error: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap classifies err under t
func Wrap(t ErrorType, message string, err error) *Error {
	return &Error{Type: t, Message: message, Err: err}
}

// MissingElement reports a selector that matched nothing on the page
func MissingElement(selector string) *Error {
	return &Error{Type: ErrorTypeMissingElement, Message: fmt.Sprintf("no element matches %q", selector)}
}

// FromStatus classifies a non-2xx HTTP status
func FromStatus(statusCode int, message string) *Error {
	t := ErrorTypeUnknown
	switch {
	case statusCode == http.StatusTooManyRequests:
		t = ErrorTypeRateLimit
	case statusCode == http.StatusNotFound:
		t = ErrorTypeNotFound
	case statusCode >= 500:
		t = ErrorTypeServerError
	case statusCode >= 400:
		t = ErrorTypeRejected
	}
	return &Error{Type: t, Message: message, Code: statusCode}
}

// TypeOf returns the ErrorType carried anywhere in err's chain
func TypeOf(err error) ErrorType {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// Is reports whether err carries an Error of type t
func Is(err error, t ErrorType) bool {
	return err != nil && TypeOf(err) == t
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServerError:
		return true
	default:
		return false
	}
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // Network error
		return true
	case http.StatusTooManyRequests:
		return true
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return false
	default:
		return statusCode >= 500
	}
}
