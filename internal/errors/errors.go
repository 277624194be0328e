package errors

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnauthorized = errors.New("user is not authorized")
var ErrForbidden = errors.New("operation is forbidden for user")
var ErrNotFound = errors.New("resource not found")
var ErrPaymentRejected = errors.New("payment provider rejected the request")
var ErrPaymentUnavailable = errors.New("payment provider is unavailable")

// ValidationError is returned for malformed input before any state is touched
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func Validation(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ConflictError reports seats or values that no longer match what the caller expected
type ConflictError struct {
	Message          string
	ConflictingSeats []string
	Expected         *int64
	Actual           *int64
}

func (e *ConflictError) Error() string {
	if len(e.ConflictingSeats) > 0 {
		return fmt.Sprintf("%s: %s", e.Message, strings.Join(e.ConflictingSeats, ", "))
	}
	if e.Expected != nil && e.Actual != nil {
		return fmt.Sprintf("%s (expected %d, got %d)", e.Message, *e.Expected, *e.Actual)
	}
	return e.Message
}

func SeatsUnavailable(labels []string) error {
	return &ConflictError{Message: "some seats are unavailable", ConflictingSeats: labels}
}

func AmountMismatch(message string, expected, actual int64) error {
	return &ConflictError{Message: message, Expected: &expected, Actual: &actual}
}

// BusinessError is a rule violation on an existing resource (cutoff passed, already used...)
type BusinessError struct {
	Message string
}

func (e *BusinessError) Error() string { return e.Message }

func Business(format string, args ...any) error {
	return &BusinessError{Message: fmt.Sprintf(format, args...)}
}

// Re-exported so callers need a single errors import
var (
	Is  = errors.Is
	As  = errors.As
	New = errors.New
)
