package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qerrors "github.com/quarrydocs/quarry/internal/errors"
)

func TestParseFilterEmpty(t *testing.T) {
	f, err := ParseFilter("")
	require.NoError(t, err)
	assert.Nil(t, f)

	f, err = ParseFilter("   ")
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestParseFilterExclude(t *testing.T) {
	f, err := ParseFilter("exclude=abc123,def456")
	require.NoError(t, err)
	require.NotNil(t, f)

	assert.False(t, f.Allows("abc123", "docs/a.md"))
	assert.False(t, f.Allows("def456", "docs/a.md"))
	assert.True(t, f.Allows("other", "docs/a.md"))
}

func TestParseFilterOrigin(t *testing.T) {
	f, err := ParseFilter("origin=docs/guides/")
	require.NoError(t, err)
	require.NotNil(t, f)

	assert.True(t, f.Allows("x", "docs/guides/install.md"))
	assert.False(t, f.Allows("x", "docs/reference/api.md"))
}

func TestParseFilterCombined(t *testing.T) {
	f, err := ParseFilter("exclude=abc origin=docs/,notes/")
	require.NoError(t, err)
	require.NotNil(t, f)

	assert.False(t, f.Allows("abc", "docs/a.md"))
	assert.True(t, f.Allows("x", "docs/a.md"))
	assert.True(t, f.Allows("x", "notes/b.md"))
	assert.False(t, f.Allows("x", "src/c.md"))
}

func TestParseFilterMalformed(t *testing.T) {
	for _, expr := range []string{"banana", "exclude=", "=abc", "scope=docs/"} {
		_, err := ParseFilter(expr)
		require.Error(t, err, "expression %q", expr)
		assert.Equal(t, qerrors.ErrCodeInvalidFilter, qerrors.GetCode(err))
	}
}

func TestFilterNilAllowsEverything(t *testing.T) {
	var f *Filter
	assert.True(t, f.Allows("any", "anywhere"))
}

func TestNewFilter(t *testing.T) {
	f := NewFilter("a", "b")
	assert.False(t, f.Allows("a", ""))
	assert.False(t, f.Allows("b", ""))
	assert.True(t, f.Allows("c", ""))
}
