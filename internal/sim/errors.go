package sim

import (
	"errors"
	"fmt"
)

// Error represents a failure raised synchronously by the simulation core.
//
// Errors fall into four categories:
//   - Lifecycle: an operation was called in a state that forbids it
//     (starting a running engine, executing a non-pending event).
//   - Validation: malformed input (invalid event, duplicate id, bad config).
//   - NotFound: a named entity (modality, event) does not exist.
//   - OutOfRange: a numeric parameter is outside its legal range
//     (negative advance, non-positive scale, backward time jump).
//
// Individual event execution failures are never surfaced through Error;
// they are captured on the event itself (status FAILED + ErrorMessage).
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// EventID identifies the affected event, if any.
	EventID string

	// Modality identifies the affected modality, if any.
	Modality string
}

// ErrorCode categorizes simulation errors.
type ErrorCode string

const (
	// ErrCodeLifecycle indicates an operation illegal in the current state.
	ErrCodeLifecycle ErrorCode = "LIFECYCLE"

	// ErrCodeValidation indicates malformed or inconsistent input.
	ErrCodeValidation ErrorCode = "VALIDATION"

	// ErrCodeNotFound indicates a missing named entity.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeOutOfRange indicates a parameter outside its legal range.
	ErrCodeOutOfRange ErrorCode = "OUT_OF_RANGE"
)

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.EventID != "":
		return fmt.Sprintf("%s: %s (event=%s)", e.Code, e.Message, e.EventID)
	case e.Modality != "":
		return fmt.Sprintf("%s: %s (modality=%s)", e.Code, e.Message, e.Modality)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// NewLifecycleError creates an Error for an operation illegal in the
// current state.
func NewLifecycleError(format string, args ...any) *Error {
	return &Error{Code: ErrCodeLifecycle, Message: fmt.Sprintf(format, args...)}
}

// NewValidationError creates an Error for malformed input.
func NewValidationError(format string, args ...any) *Error {
	return &Error{Code: ErrCodeValidation, Message: fmt.Sprintf(format, args...)}
}

// NewNotFoundError creates an Error for a missing named entity.
func NewNotFoundError(kind, name string) *Error {
	e := &Error{Code: ErrCodeNotFound, Message: fmt.Sprintf("%s %q not found", kind, name)}
	if kind == "modality" {
		e.Modality = name
	}
	return e
}

// NewOutOfRangeError creates an Error for an out-of-range parameter.
func NewOutOfRangeError(format string, args ...any) *Error {
	return &Error{Code: ErrCodeOutOfRange, Message: fmt.Sprintf(format, args...)}
}

// IsLifecycleError returns true if the error is a lifecycle error.
// Uses errors.As to handle wrapped errors.
func IsLifecycleError(err error) bool {
	return hasCode(err, ErrCodeLifecycle)
}

// IsValidationError returns true if the error is a validation error.
func IsValidationError(err error) bool {
	return hasCode(err, ErrCodeValidation)
}

// IsNotFound returns true if the error is a not-found error.
func IsNotFound(err error) bool {
	return hasCode(err, ErrCodeNotFound)
}

// IsOutOfRange returns true if the error is an out-of-range error.
func IsOutOfRange(err error) bool {
	return hasCode(err, ErrCodeOutOfRange)
}

func hasCode(err error, code ErrorCode) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}
