// Package errors provides structured error handling for Quarry.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Chunking errors (malformed documents)
//   - 3XX: Embedding provider errors (network, rate limits)
//   - 4XX: Store and index errors
//   - 5XX: Query errors
//   - 6XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryChunking indicates document parsing and chunking errors.
	CategoryChunking Category = "CHUNKING"
	// CategoryProvider indicates embedding provider errors.
	CategoryProvider Category = "PROVIDER"
	// CategoryStore indicates store and index errors.
	CategoryStore Category = "STORE"
	// CategoryQuery indicates query validation errors.
	CategoryQuery Category = "QUERY"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// Chunking errors (200-299)
	// Recoverable per document: callers skip the document and report.
	ErrCodeChunking      = "ERR_201_CHUNKING"
	ErrCodeDocumentEmpty = "ERR_202_DOCUMENT_EMPTY"

	// Embedding provider errors (300-399)
	ErrCodeEmbedProvider    = "ERR_301_EMBED_PROVIDER"
	ErrCodeEmbedUnavailable = "ERR_302_EMBED_UNAVAILABLE"

	// Store and index errors (400-499)
	ErrCodeIndexNotBuilt           = "ERR_401_INDEX_NOT_BUILT"
	ErrCodeUnsupportedStoreVersion = "ERR_402_UNSUPPORTED_STORE_VERSION"
	ErrCodeStoreCorrupt            = "ERR_403_STORE_CORRUPT"
	ErrCodeDimensionMismatch       = "ERR_404_DIMENSION_MISMATCH"

	// Query errors (500-599)
	ErrCodeInvalidFilter = "ERR_501_INVALID_FILTER"
	ErrCodeQueryEmpty    = "ERR_502_QUERY_EMPTY"

	// Internal errors (600-699)
	ErrCodeInternal = "ERR_601_INTERNAL"
	ErrCodeTimeout  = "ERR_602_TIMEOUT"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Extract numeric portion (e.g., "201" from "ERR_201_CHUNKING")
	numStr := code[4:7]
	if len(numStr) < 1 {
		return CategoryInternal
	}

	switch numStr[0] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryChunking
	case '3':
		return CategoryProvider
	case '4':
		return CategoryStore
	case '5':
		return CategoryQuery
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	// Fatal errors: the store cannot be used at all.
	switch code {
	case ErrCodeUnsupportedStoreVersion, ErrCodeStoreCorrupt, ErrCodeIndexNotBuilt:
		return SeverityFatal
	}

	// Retryable provider errors get warning severity.
	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeEmbedProvider, ErrCodeEmbedUnavailable:
		return true
	default:
		return false
	}
}
