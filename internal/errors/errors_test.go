package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name         string
		code         string
		wantCategory Category
		wantSeverity Severity
		wantRetry    bool
	}{
		{
			name:         "config error",
			code:         ErrCodeConfigInvalid,
			wantCategory: CategoryConfig,
			wantSeverity: SeverityError,
			wantRetry:    false,
		},
		{
			name:         "chunking error",
			code:         ErrCodeChunking,
			wantCategory: CategoryChunking,
			wantSeverity: SeverityError,
			wantRetry:    false,
		},
		{
			name:         "provider error is retryable",
			code:         ErrCodeEmbedProvider,
			wantCategory: CategoryProvider,
			wantSeverity: SeverityWarning,
			wantRetry:    true,
		},
		{
			name:         "index not built is fatal",
			code:         ErrCodeIndexNotBuilt,
			wantCategory: CategoryStore,
			wantSeverity: SeverityFatal,
			wantRetry:    false,
		},
		{
			name:         "unsupported store version is fatal",
			code:         ErrCodeUnsupportedStoreVersion,
			wantCategory: CategoryStore,
			wantSeverity: SeverityFatal,
			wantRetry:    false,
		},
		{
			name:         "invalid filter",
			code:         ErrCodeInvalidFilter,
			wantCategory: CategoryQuery,
			wantSeverity: SeverityError,
			wantRetry:    false,
		},
		{
			name:         "timeout",
			code:         ErrCodeTimeout,
			wantCategory: CategoryInternal,
			wantSeverity: SeverityError,
			wantRetry:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, "test message", nil)
			assert.Equal(t, tt.code, err.Code)
			assert.Equal(t, tt.wantCategory, err.Category)
			assert.Equal(t, tt.wantSeverity, err.Severity)
			assert.Equal(t, tt.wantRetry, err.Retryable)
		})
	}
}

func TestErrorFormat(t *testing.T) {
	err := New(ErrCodeChunking, "unterminated code fence", nil)
	assert.Equal(t, "[ERR_201_CHUNKING] unterminated code fence", err.Error())
}

func TestUnwrap(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := Wrap(ErrCodeEmbedProvider, cause)

	require.NotNil(t, err)
	assert.Equal(t, cause, err.Unwrap())
	assert.True(t, stderrors.Is(err, cause))
}

func TestIsMatchesByCode(t *testing.T) {
	err := IndexNotBuiltError()
	target := New(ErrCodeIndexNotBuilt, "different message", nil)

	assert.True(t, stderrors.Is(err, target))
	assert.False(t, stderrors.Is(err, New(ErrCodeTimeout, "x", nil)))
}

func TestWithDetail(t *testing.T) {
	err := ChunkingError("docs/guide.md", "bad fence", nil).
		WithDetail("offset", "1042")

	assert.Equal(t, "docs/guide.md", err.Details["origin"])
	assert.Equal(t, "1042", err.Details["offset"])
}

func TestUnsupportedStoreVersionError(t *testing.T) {
	err := UnsupportedStoreVersionError(9, 1)
	assert.Equal(t, ErrCodeUnsupportedStoreVersion, err.Code)
	assert.Equal(t, "9", err.Details["got_version"])
	assert.Equal(t, "1", err.Details["want_version"])
	assert.True(t, IsFatal(err))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(EmbeddingProviderError("rate limited", nil)))
	assert.False(t, IsRetryable(InvalidFilterError("foo=bar", "unknown key")))
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(fmt.Errorf("plain error")))
}

func TestGetCode(t *testing.T) {
	assert.Equal(t, ErrCodeInvalidFilter, GetCode(InvalidFilterError("x", "y")))
	assert.Equal(t, "", GetCode(fmt.Errorf("plain")))
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}
