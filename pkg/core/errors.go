package core

import (
	"context"
	"errors"
	"fmt"
)

// ExecutionError represents a structured error with category and details
type ExecutionError struct {
	Category ErrorCategory
	Code     string                 // Machine-readable code: wait_timeout, index_out_of_range, etc.
	Message  string                 // Human-readable message
	Details  map[string]interface{} // Additional context
	Cause    error                  // Underlying error
}

// Error implements the error interface
func (e *ExecutionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an ExecutionError with the same code.
// Copies made with WithCause/WithMessage/WithDetails still match their sentinel.
func (e *ExecutionError) Is(target error) bool {
	t, ok := target.(*ExecutionError)
	if !ok {
		return false
	}
	return t.Code != "" && t.Code == e.Code
}

// WithCause returns a copy of the error with the given cause
func (e *ExecutionError) WithCause(cause error) *ExecutionError {
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Details:  e.Details,
		Cause:    cause,
	}
}

// WithMessage returns a copy of the error with a custom message
func (e *ExecutionError) WithMessage(msg string) *ExecutionError {
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  msg,
		Details:  e.Details,
		Cause:    e.Cause,
	}
}

// WithDetails returns a copy of the error with additional details
func (e *ExecutionError) WithDetails(details map[string]interface{}) *ExecutionError {
	merged := make(map[string]interface{})
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Details:  merged,
		Cause:    e.Cause,
	}
}

// Fatal returns true if the error means the session can no longer be used.
func (e *ExecutionError) Fatal() bool {
	return e.Category == ErrCategorySession
}

// Predefined errors
var (
	// Assertion errors
	ErrElementNotFound = &ExecutionError{
		Category: ErrCategoryAssertion,
		Code:     "element_not_found",
		Message:  "element not found",
	}
	ErrStaleElement = &ExecutionError{
		Category: ErrCategoryAssertion,
		Code:     "stale_element",
		Message:  "element is no longer attached to the page",
	}
	ErrIndexOutOfRange = &ExecutionError{
		Category: ErrCategoryAssertion,
		Code:     "index_out_of_range",
		Message:  "todo index out of range",
	}
	ErrVerificationFailed = &ExecutionError{
		Category: ErrCategoryAssertion,
		Code:     "verification_failed",
		Message:  "action was performed but its effect was not observed",
	}
	ErrFilterUnavailable = &ExecutionError{
		Category: ErrCategoryAssertion,
		Code:     "filter_unavailable",
		Message:  "filter controls are not shown",
	}

	// Timeout errors
	ErrTimeout = &ExecutionError{
		Category: ErrCategoryTimeout,
		Code:     "timeout",
		Message:  "operation timed out",
	}
	ErrWaitTimeout = &ExecutionError{
		Category: ErrCategoryTimeout,
		Code:     "wait_timeout",
		Message:  "wait condition timed out",
	}
	ErrCancelled = &ExecutionError{
		Category: ErrCategoryTimeout,
		Code:     "cancelled",
		Message:  "run was cancelled",
	}

	// Session errors
	ErrSessionLost = &ExecutionError{
		Category: ErrCategorySession,
		Code:     "session_lost",
		Message:  "browser session is no longer usable",
	}

	// Config errors
	ErrInvalidConfig = &ExecutionError{
		Category: ErrCategoryConfig,
		Code:     "invalid_config",
		Message:  "invalid configuration",
	}
	ErrInvalidFilter = &ExecutionError{
		Category: ErrCategoryConfig,
		Code:     "invalid_filter",
		Message:  "unknown filter",
	}
)

// NewExecutionError creates a new ExecutionError with the given parameters
func NewExecutionError(category ErrorCategory, code, message string) *ExecutionError {
	return &ExecutionError{
		Category: category,
		Code:     code,
		Message:  message,
	}
}

// NewIndexOutOfRange builds an IndexOutOfRange error for the requested
// position and the list size observed at resolution time.
func NewIndexOutOfRange(index, count int) *ExecutionError {
	return ErrIndexOutOfRange.
		WithMessage(fmt.Sprintf("todo index %d not found, only %d todos exist", index, count)).
		WithDetails(map[string]interface{}{"index": index, "count": count})
}

// NewWaitTimeout builds a WaitTimeout error naming the condition that never held.
func NewWaitTimeout(condition string, last error) *ExecutionError {
	return ErrWaitTimeout.
		WithMessage(fmt.Sprintf("timed out waiting for %s", condition)).
		WithDetails(map[string]interface{}{"condition": condition}).
		WithCause(last)
}

// AsExecutionError converts any error into an ExecutionError.
// Context errors become Cancelled or Timeout; anything else not already
// classified becomes VerificationFailed.
func AsExecutionError(err error) *ExecutionError {
	if err == nil {
		return nil
	}
	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		return execErr
	}
	switch {
	case errors.Is(err, context.Canceled):
		return ErrCancelled.WithCause(err)
	case errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout.WithCause(err)
	}
	return ErrVerificationFailed.WithMessage("interaction failed").WithCause(err)
}

// IsSessionLost reports whether err signals an unusable session.
func IsSessionLost(err error) bool {
	return errors.Is(err, ErrSessionLost)
}

// IsNotFound reports whether err means the element was absent or detached.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrElementNotFound) || errors.Is(err, ErrStaleElement)
}
