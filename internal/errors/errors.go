package errors

import (
	"fmt"
)

// QuarryError is the structured error type for Quarry.
// It provides rich context for error handling, logging, and user presentation.
type QuarryError struct {
	// Code is the unique error code (e.g., "ERR_201_CHUNKING").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Chunking, Provider, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs
	// (document origin, chunk_id, offending offsets).
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *QuarryError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *QuarryError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with QuarryError.
func (e *QuarryError) Is(target error) bool {
	if t, ok := target.(*QuarryError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *QuarryError) WithDetail(key, value string) *QuarryError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
// Returns the error for method chaining.
func (e *QuarryError) WithSuggestion(suggestion string) *QuarryError {
	e.Suggestion = suggestion
	return e
}

// New creates a new QuarryError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *QuarryError {
	return &QuarryError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a QuarryError from an existing error.
// The error's message becomes the QuarryError message.
func Wrap(code string, err error) *QuarryError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ChunkingError creates a document chunking error.
// Chunking errors are recoverable per document: skip and report.
func ChunkingError(origin, message string, cause error) *QuarryError {
	return New(ErrCodeChunking, message, cause).WithDetail("origin", origin)
}

// EmbeddingProviderError creates an embedding provider error.
// Provider errors are retryable with bounded backoff.
func EmbeddingProviderError(message string, cause error) *QuarryError {
	return New(ErrCodeEmbedProvider, message, cause)
}

// IndexNotBuiltError creates an error for querying before build_index has run.
func IndexNotBuiltError() *QuarryError {
	return New(ErrCodeIndexNotBuilt, "index has not been built", nil).
		WithSuggestion("run 'quarry index' to build the retrieval indexes")
}

// UnsupportedStoreVersionError creates an error for incompatible store layouts.
func UnsupportedStoreVersionError(got, want int) *QuarryError {
	return New(ErrCodeUnsupportedStoreVersion,
		fmt.Sprintf("store format version %d is not supported (expected %d)", got, want), nil).
		WithDetail("got_version", fmt.Sprintf("%d", got)).
		WithDetail("want_version", fmt.Sprintf("%d", want)).
		WithSuggestion("recreate the store with this version of quarry")
}

// InvalidFilterError creates an error for malformed filter expressions.
// Fatal for that query only, never retried.
func InvalidFilterError(expr, message string) *QuarryError {
	return New(ErrCodeInvalidFilter, message, nil).WithDetail("filter", expr)
}

// TimeoutError creates an error for operations that exceeded their deadline.
func TimeoutError(operation string, cause error) *QuarryError {
	return New(ErrCodeTimeout, fmt.Sprintf("%s timed out", operation), cause).
		WithDetail("operation", operation)
}

// IsRetryable checks if an error is retryable.
// Returns true if the error is a QuarryError with Retryable flag set.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if qe, ok := err.(*QuarryError); ok {
		return qe.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current operation.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if qe, ok := err.(*QuarryError); ok {
		return qe.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a QuarryError.
// Returns empty string if not a QuarryError.
func GetCode(err error) string {
	if qe, ok := err.(*QuarryError); ok {
		return qe.Code
	}
	return ""
}

// GetCategory extracts the category from a QuarryError.
// Returns empty string if not a QuarryError.
func GetCategory(err error) Category {
	if qe, ok := err.(*QuarryError); ok {
		return qe.Category
	}
	return ""
}
