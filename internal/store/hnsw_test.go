package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qerrors "github.com/quarrydocs/quarry/internal/errors"
)

const testDims = 8

// basisVector returns a unit vector with a single nonzero component.
func basisVector(i int) []float32 {
	v := make([]float32, testDims)
	v[i%testDims] = 1.0
	return v
}

func newTestHNSW(t *testing.T) *HNSWIndex {
	t.Helper()
	idx, err := NewHNSWIndex(DefaultVectorIndexConfig(testDims))
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestHNSWExactMatchRanksFirst(t *testing.T) {
	idx := newTestHNSW(t)
	ctx := context.Background()

	ids := []string{"chunk-a", "chunk-b", "chunk-c", "chunk-d"}
	vectors := [][]float32{basisVector(0), basisVector(1), basisVector(2), basisVector(3)}
	require.NoError(t, idx.Add(ctx, ids, vectors))

	results, err := idx.Search(ctx, basisVector(2), 3)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	assert.Equal(t, "chunk-c", results[0].ID)
	assert.InDelta(t, 1.0, float64(results[0].Score), 1e-5)
	assert.LessOrEqual(t, len(results), 3)
}

func TestHNSWReplaceExistingID(t *testing.T) {
	idx := newTestHNSW(t)
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, []string{"chunk-a"}, [][]float32{basisVector(0)}))
	require.NoError(t, idx.Add(ctx, []string{"chunk-a"}, [][]float32{basisVector(5)}))

	assert.Equal(t, 1, idx.Count())

	results, err := idx.Search(ctx, basisVector(5), 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "chunk-a", results[0].ID)
	assert.InDelta(t, 1.0, float64(results[0].Score), 1e-5)
}

func TestHNSWDelete(t *testing.T) {
	idx := newTestHNSW(t)
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx,
		[]string{"chunk-a", "chunk-b"},
		[][]float32{basisVector(0), basisVector(1)}))
	require.NoError(t, idx.Delete(ctx, []string{"chunk-a"}))

	assert.False(t, idx.Contains("chunk-a"))
	assert.True(t, idx.Contains("chunk-b"))
	assert.Equal(t, 1, idx.Count())

	results, err := idx.Search(ctx, basisVector(0), 5)
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, "chunk-a", r.ID)
	}
}

func TestHNSWSaveLoadRoundtrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vectors.idx")
	ctx := context.Background()

	idx := newTestHNSW(t)
	require.NoError(t, idx.Add(ctx,
		[]string{"chunk-a", "chunk-b", "chunk-c"},
		[][]float32{basisVector(0), basisVector(1), basisVector(2)}))
	require.NoError(t, idx.Save(path))

	loaded, err := NewHNSWIndex(DefaultVectorIndexConfig(testDims))
	require.NoError(t, err)
	defer func() { _ = loaded.Close() }()
	require.NoError(t, loaded.Load(path))

	assert.Equal(t, 3, loaded.Count())
	results, err := loaded.Search(ctx, basisVector(1), 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "chunk-b", results[0].ID)
}

func TestHNSWDimensionMismatch(t *testing.T) {
	idx := newTestHNSW(t)
	ctx := context.Background()

	err := idx.Add(ctx, []string{"chunk-a"}, [][]float32{make([]float32, testDims+1)})
	require.Error(t, err)
	assert.Equal(t, qerrors.ErrCodeDimensionMismatch, qerrors.GetCode(err))

	require.NoError(t, idx.Add(ctx, []string{"chunk-a"}, [][]float32{basisVector(0)}))
	_, err = idx.Search(ctx, make([]float32, testDims-1), 1)
	require.Error(t, err)
	assert.Equal(t, qerrors.ErrCodeDimensionMismatch, qerrors.GetCode(err))
}

func TestHNSWEmptyIndexSearch(t *testing.T) {
	idx := newTestHNSW(t)

	results, err := idx.Search(context.Background(), basisVector(0), 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestHNSWClosed(t *testing.T) {
	idx, err := NewHNSWIndex(DefaultVectorIndexConfig(testDims))
	require.NoError(t, err)
	require.NoError(t, idx.Close())

	assert.Error(t, idx.Add(context.Background(), []string{"x"}, [][]float32{basisVector(0)}))
	_, err = idx.Search(context.Background(), basisVector(0), 1)
	assert.Error(t, err)
	assert.NoError(t, idx.Close())
}
