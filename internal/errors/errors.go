package errors

import (
	"context"
	"errors"
	"fmt"
)

// GraphError is the structured error type for graphmem.
// It provides rich context for error handling, logging, and user presentation.
type GraphError struct {
	// Code is the unique error code (e.g., "ERR_201_ENTITY_NOT_FOUND").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Graph, Backend, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool
}

// Error implements the error interface.
func (e *GraphError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *GraphError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with GraphError.
func (e *GraphError) Is(target error) bool {
	if t, ok := target.(*GraphError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *GraphError) WithDetail(key, value string) *GraphError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a new GraphError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *GraphError {
	return &GraphError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Newf creates a new GraphError with a formatted message and no cause.
func Newf(code string, format string, args ...any) *GraphError {
	return New(code, fmt.Sprintf(format, args...), nil)
}

// Wrap creates a GraphError from an existing error.
// The error's message becomes the GraphError message.
func Wrap(code string, err error) *GraphError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// NotFound creates an entity-not-found error.
func NotFound(name string) *GraphError {
	return Newf(ErrCodeEntityNotFound, "entity %q not found", name).WithDetail("entity", name)
}

// Duplicate creates a duplicate-entity error.
func Duplicate(name string) *GraphError {
	return Newf(ErrCodeDuplicateEntity, "entity %q already exists", name).WithDetail("entity", name)
}

// Cycle creates a parent-cycle error.
func Cycle(entity, parent string) *GraphError {
	return Newf(ErrCodeParentCycle, "setting parent %q for %q would create a cycle", parent, entity)
}

// Validation creates a validation error.
func Validation(message string) *GraphError {
	return New(ErrCodeInvalidInput, message, nil)
}

// Parse creates a boolean query parse error.
func Parse(message string) *GraphError {
	return New(ErrCodeQueryParse, message, nil)
}

// Capacity creates a capacity/complexity error.
func Capacity(message string) *GraphError {
	return New(ErrCodeQueryTooComplex, message, nil)
}

// Backend wraps a store or embedder failure.
func Backend(message string, cause error) *GraphError {
	return New(ErrCodeStoreFailed, message, cause)
}

// Cancelled converts a context error into the core's cancellation error.
// Returns nil if err is nil.
func Cancelled(err error) *GraphError {
	if err == nil {
		return nil
	}
	return New(ErrCodeCancelled, "operation cancelled", err)
}

// FromContext returns a Cancelled error if ctx is done, nil otherwise.
// Long-running operations call this at safe checkpoints.
func FromContext(ctx context.Context) *GraphError {
	select {
	case <-ctx.Done():
		return Cancelled(ctx.Err())
	default:
		return nil
	}
}

// IsNotFound reports whether err is an entity/relation not-found error.
func IsNotFound(err error) bool {
	return hasCode(err, ErrCodeEntityNotFound) || hasCode(err, ErrCodeRelationNotFound)
}

// IsDuplicate reports whether err is a duplicate-entity error.
func IsDuplicate(err error) bool {
	return hasCode(err, ErrCodeDuplicateEntity)
}

// IsCancelled reports whether err is a cancellation error.
func IsCancelled(err error) bool {
	return hasCode(err, ErrCodeCancelled) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// IsValidation reports whether err is a validation, parse, or capacity error.
func IsValidation(err error) bool {
	var ge *GraphError
	if errors.As(err, &ge) {
		return ge.Category == CategoryValidation
	}
	return false
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var ge *GraphError
	if errors.As(err, &ge) {
		return ge.Retryable
	}
	return false
}

func hasCode(err error, code string) bool {
	var ge *GraphError
	if errors.As(err, &ge) {
		return ge.Code == code
	}
	return false
}
