package embed

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticEmbedderDeterministic(t *testing.T) {
	e := NewStaticEmbedder()
	ctx := context.Background()

	a, err := e.Embed(ctx, "Quarto supports YAML front matter")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "Quarto supports YAML front matter")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, StaticDimensions)
}

func TestStaticEmbedderNormalized(t *testing.T) {
	e := NewStaticEmbedder()

	vec, err := e.Embed(context.Background(), "structured logging with rotation")
	require.NoError(t, err)

	var sumSquares float64
	for _, v := range vec {
		sumSquares += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sumSquares), 1e-5)
}

func TestStaticEmbedderEmptyText(t *testing.T) {
	e := NewStaticEmbedder()

	vec, err := e.Embed(context.Background(), "   \n ")
	require.NoError(t, err)
	assert.Equal(t, make([]float32, StaticDimensions), vec)
}

func TestStaticEmbedderDistinctTexts(t *testing.T) {
	e := NewStaticEmbedder()
	ctx := context.Background()

	a, err := e.Embed(ctx, "vector similarity search")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "keyword ranking with bm25")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestStaticEmbedderBatch(t *testing.T) {
	e := NewStaticEmbedder()
	ctx := context.Background()

	texts := []string{"first chunk", "second chunk", ""}
	vecs, err := e.EmbedBatch(ctx, texts)
	require.NoError(t, err)
	require.Len(t, vecs, 3)

	single, err := e.Embed(ctx, "first chunk")
	require.NoError(t, err)
	assert.Equal(t, single, vecs[0])
	assert.Equal(t, make([]float32, StaticDimensions), vecs[2])
}

func TestStaticEmbedderClosed(t *testing.T) {
	e := NewStaticEmbedder()
	require.NoError(t, e.Close())

	_, err := e.Embed(context.Background(), "text")
	assert.Error(t, err)
	assert.False(t, e.Available(context.Background()))
}

func TestTokenizeFiltersStopWords(t *testing.T) {
	tokens := filterStopWords(tokenize("The index is built from the chunks"))
	assert.NotContains(t, tokens, "the")
	assert.NotContains(t, tokens, "is")
	assert.Contains(t, tokens, "index")
	assert.Contains(t, tokens, "chunks")
}
