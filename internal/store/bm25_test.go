package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemKeywordIndex(t *testing.T) *BleveIndex {
	t.Helper()
	idx, err := NewBleveIndex("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestBleveTermPresence(t *testing.T) {
	idx := newMemKeywordIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Index(ctx, []*KeywordDocument{
		{ID: "chunk-a", Content: "Quarto supports YAML front matter for document options."},
		{ID: "chunk-b", Content: "Simmer the beets until tender, then peel and dice."},
	}))

	results, err := idx.Search(ctx, "YAML front matter", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "chunk-a", results[0].DocID)
	assert.Greater(t, results[0].Score, 0.0)
	assert.NotEmpty(t, results[0].MatchedTerms)
	assert.Contains(t, results[0].MatchedTerms, "yaml")
}

func TestBleveStemming(t *testing.T) {
	idx := newMemKeywordIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Index(ctx, []*KeywordDocument{
		{ID: "chunk-a", Content: "chunking documents into overlapping windows"},
	}))

	// Porter stemming maps "chunked" and "chunking" to the same term.
	results, err := idx.Search(ctx, "chunked document", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "chunk-a", results[0].DocID)
}

func TestBleveStopWordsOnlyQuery(t *testing.T) {
	idx := newMemKeywordIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Index(ctx, []*KeywordDocument{
		{ID: "chunk-a", Content: "the quick brown fox"},
	}))

	results, err := idx.Search(ctx, "the and of", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestBleveEmptyQuery(t *testing.T) {
	idx := newMemKeywordIndex(t)

	results, err := idx.Search(context.Background(), "   ", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestBleveReplaceDocument(t *testing.T) {
	idx := newMemKeywordIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Index(ctx, []*KeywordDocument{
		{ID: "chunk-a", Content: "original text about kubernetes"},
	}))
	require.NoError(t, idx.Index(ctx, []*KeywordDocument{
		{ID: "chunk-a", Content: "replacement text about postgres"},
	}))

	count, err := idx.DocCount()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	results, err := idx.Search(ctx, "kubernetes", 5)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = idx.Search(ctx, "postgres", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "chunk-a", results[0].DocID)
}

func TestBleveDelete(t *testing.T) {
	idx := newMemKeywordIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Index(ctx, []*KeywordDocument{
		{ID: "chunk-a", Content: "alpha particle physics"},
		{ID: "chunk-b", Content: "beta decay chains"},
	}))
	require.NoError(t, idx.Delete(ctx, []string{"chunk-a"}))

	count, err := idx.DocCount()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	results, err := idx.Search(ctx, "alpha particle", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestBleveTopKTruncation(t *testing.T) {
	idx := newMemKeywordIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Index(ctx, []*KeywordDocument{
		{ID: "chunk-a", Content: "retrieval pipeline design"},
		{ID: "chunk-b", Content: "retrieval quality evaluation"},
		{ID: "chunk-c", Content: "retrieval latency benchmarks"},
	}))

	results, err := idx.Search(ctx, "retrieval", 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestBlevePersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keyword.bleve")
	ctx := context.Background()

	idx, err := NewBleveIndex(path)
	require.NoError(t, err)
	require.NoError(t, idx.Index(ctx, []*KeywordDocument{
		{ID: "chunk-a", Content: "persistent keyword index"},
	}))
	require.NoError(t, idx.Close())

	reopened, err := NewBleveIndex(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	count, err := reopened.DocCount()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	results, err := reopened.Search(ctx, "keyword index", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "chunk-a", results[0].DocID)
}
