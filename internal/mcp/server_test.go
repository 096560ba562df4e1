package mcp

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrydocs/quarry/internal/chunk"
	"github.com/quarrydocs/quarry/internal/embed"
	"github.com/quarrydocs/quarry/internal/search"
	"github.com/quarrydocs/quarry/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	ctx := context.Background()

	s, err := store.Open(ctx, t.TempDir(), embed.NewStaticEmbedder(), store.Options{
		ExactVectorSearch: true,
		Logger:            discardLogger(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	doc := chunk.Document{
		Origin: "docs/quarto.md",
		Text:   "Quarto supports YAML front matter.\n\nSecond paragraph about rendering.\n",
	}
	chunks := []chunk.Chunk{
		{ID: "chunk-a", Origin: doc.Origin, Text: "Quarto supports YAML front matter.", StartOffset: 0, EndOffset: 34},
		{ID: "chunk-b", Origin: doc.Origin, Text: "Second paragraph about rendering.", StartOffset: 36, EndOffset: 69},
	}
	require.NoError(t, s.Insert(ctx, doc, chunks))
	require.NoError(t, s.BuildIndex(ctx))

	retriever, err := search.NewRetriever(s, search.DefaultConfig(), discardLogger())
	require.NoError(t, err)

	server, err := NewServer(retriever, s, discardLogger())
	require.NoError(t, err)
	return server
}

func TestRetrieveToolHybrid(t *testing.T) {
	server := newTestServer(t)

	_, output, err := server.retrieveHandler(context.Background(), nil, RetrieveInput{
		Query: "YAML front matter",
		TopK:  1,
	})
	require.NoError(t, err)
	require.Len(t, output.Results, 1)
	assert.Equal(t, "chunk-a", output.Results[0].ChunkID)
	assert.Equal(t, "docs/quarto.md", output.Results[0].Origin)
	assert.Greater(t, output.Results[0].Score, 0.0)
}

func TestRetrieveToolModes(t *testing.T) {
	server := newTestServer(t)
	ctx := context.Background()

	for _, mode := range []string{"", "hybrid", "vss", "bm25"} {
		_, output, err := server.retrieveHandler(ctx, nil, RetrieveInput{
			Query: "YAML front matter",
			Mode:  mode,
		})
		require.NoError(t, err, "mode %q", mode)
		assert.NotEmpty(t, output.Results, "mode %q", mode)
	}

	_, _, err := server.retrieveHandler(ctx, nil, RetrieveInput{Query: "x", Mode: "regex"})
	require.Error(t, err)
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
}

func TestRetrieveToolMissingQuery(t *testing.T) {
	server := newTestServer(t)

	_, _, err := server.retrieveHandler(context.Background(), nil, RetrieveInput{})
	require.Error(t, err)
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
}

func TestRetrieveToolExcludeFilter(t *testing.T) {
	server := newTestServer(t)
	ctx := context.Background()

	_, first, err := server.retrieveHandler(ctx, nil, RetrieveInput{
		Query: "YAML front matter",
		TopK:  1,
	})
	require.NoError(t, err)
	require.Len(t, first.Results, 1)

	_, second, err := server.retrieveHandler(ctx, nil, RetrieveInput{
		Query:  "YAML front matter",
		TopK:   1,
		Filter: "exclude=" + first.Results[0].ChunkID,
	})
	require.NoError(t, err)
	for _, r := range second.Results {
		assert.NotEqual(t, first.Results[0].ChunkID, r.ChunkID)
	}
}

func TestRetrieveToolMalformedFilter(t *testing.T) {
	server := newTestServer(t)

	_, _, err := server.retrieveHandler(context.Background(), nil, RetrieveInput{
		Query:  "anything",
		Filter: "banana",
	})
	require.Error(t, err)
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
}

func TestStoreStatusTool(t *testing.T) {
	server := newTestServer(t)

	_, output, err := server.storeStatusHandler(context.Background(), nil, StoreStatusInput{})
	require.NoError(t, err)
	assert.Equal(t, 1, output.Documents)
	assert.Equal(t, 2, output.Chunks)
	assert.True(t, output.IndexBuilt)
	assert.Equal(t, "static", output.EmbedderModel)
	assert.Equal(t, embed.StaticDimensions, output.Dimensions)
}

func TestNewServerValidation(t *testing.T) {
	_, err := NewServer(nil, nil, nil)
	require.Error(t, err)
}
