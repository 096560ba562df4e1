package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFlat(t *testing.T) *FlatIndex {
	t.Helper()
	idx, err := NewFlatIndex(DefaultVectorIndexConfig(testDims))
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestFlatExactRanking(t *testing.T) {
	idx := newTestFlat(t)
	ctx := context.Background()

	// chunk-near shares a component with the query, chunk-far is orthogonal.
	query := basisVector(0)
	near := []float32{0.9, 0.1, 0, 0, 0, 0, 0, 0}
	require.NoError(t, idx.Add(ctx,
		[]string{"chunk-exact", "chunk-near", "chunk-far"},
		[][]float32{basisVector(0), near, basisVector(4)}))

	results, err := idx.Search(ctx, query, 3)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "chunk-exact", results[0].ID)
	assert.Equal(t, "chunk-near", results[1].ID)
	assert.Equal(t, "chunk-far", results[2].ID)
	assert.InDelta(t, 1.0, float64(results[0].Score), 1e-5)
	assert.Greater(t, results[1].Score, results[2].Score)
}

func TestFlatTieBreakByID(t *testing.T) {
	idx := newTestFlat(t)
	ctx := context.Background()

	// Identical vectors score identically, so order falls back to chunk ID.
	require.NoError(t, idx.Add(ctx,
		[]string{"chunk-b", "chunk-a", "chunk-c"},
		[][]float32{basisVector(0), basisVector(0), basisVector(0)}))

	results, err := idx.Search(ctx, basisVector(0), 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "chunk-a", results[0].ID)
	assert.Equal(t, "chunk-b", results[1].ID)
	assert.Equal(t, "chunk-c", results[2].ID)
}

func TestFlatTopKBound(t *testing.T) {
	idx := newTestFlat(t)
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx,
		[]string{"chunk-a", "chunk-b", "chunk-c", "chunk-d"},
		[][]float32{basisVector(0), basisVector(1), basisVector(2), basisVector(3)}))

	results, err := idx.Search(ctx, basisVector(0), 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)

	results, err = idx.Search(ctx, basisVector(0), 100)
	require.NoError(t, err)
	assert.Len(t, results, 4)
}

func TestFlatDeleteAndCount(t *testing.T) {
	idx := newTestFlat(t)
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx,
		[]string{"chunk-a", "chunk-b"},
		[][]float32{basisVector(0), basisVector(1)}))
	assert.Equal(t, 2, idx.Count())

	require.NoError(t, idx.Delete(ctx, []string{"chunk-a"}))
	assert.Equal(t, 1, idx.Count())
	assert.False(t, idx.Contains("chunk-a"))
	assert.ElementsMatch(t, []string{"chunk-b"}, idx.AllIDs())
}

func TestFlatSaveLoadRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.idx")
	ctx := context.Background()

	idx := newTestFlat(t)
	require.NoError(t, idx.Add(ctx,
		[]string{"chunk-a", "chunk-b"},
		[][]float32{basisVector(0), basisVector(1)}))
	require.NoError(t, idx.Save(path))

	loaded, err := NewFlatIndex(DefaultVectorIndexConfig(testDims))
	require.NoError(t, err)
	defer func() { _ = loaded.Close() }()
	require.NoError(t, loaded.Load(path))

	assert.Equal(t, 2, loaded.Count())
	results, err := loaded.Search(ctx, basisVector(1), 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "chunk-b", results[0].ID)
}
