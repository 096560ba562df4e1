package store

import (
	"context"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrydocs/quarry/internal/chunk"
	qerrors "github.com/quarrydocs/quarry/internal/errors"
)

func newMemSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testChunk(origin, id string, start, end int) chunk.Chunk {
	return chunk.Chunk{
		ID:          id,
		Origin:      origin,
		Text:        "chunk text for " + id,
		StartOffset: start,
		EndOffset:   end,
		HeadingPath: []string{"Guide", "Setup"},
	}
}

func TestSQLiteDocumentRoundtrip(t *testing.T) {
	s := newMemSQLite(t)
	ctx := context.Background()

	doc := chunk.Document{Origin: "docs/guide.md", Text: "# Guide\n\nbody\n"}
	docID, err := s.SaveDocument(ctx, doc)
	require.NoError(t, err)
	assert.Len(t, docID, 16)

	got, err := s.GetDocument(ctx, "docs/guide.md")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, doc.Origin, got.Origin)
	assert.Equal(t, doc.Text, got.Text)

	// Saving the same origin again updates in place.
	doc.Text = "# Guide\n\nrevised body\n"
	again, err := s.SaveDocument(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, docID, again)

	got, err = s.GetDocument(ctx, "docs/guide.md")
	require.NoError(t, err)
	assert.Equal(t, doc.Text, got.Text)

	documents, _, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, documents)
}

func TestSQLiteChunkRoundtrip(t *testing.T) {
	s := newMemSQLite(t)
	ctx := context.Background()

	docID, err := s.SaveDocument(ctx, chunk.Document{Origin: "docs/a.md", Text: "text"})
	require.NoError(t, err)

	ck := testChunk("docs/a.md", "chunk-0001", 0, 42)
	ck.DocID = docID
	ck.Oversize = true
	ck.Embedding = []float32{0.25, -0.5, 0.75}

	require.NoError(t, s.SaveChunks(ctx, []chunk.Chunk{ck}))

	got, err := s.GetChunk(ctx, "chunk-0001")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, ck.Text, got.Text)
	assert.Equal(t, ck.StartOffset, got.StartOffset)
	assert.Equal(t, ck.EndOffset, got.EndOffset)
	assert.Equal(t, []string{"Guide", "Setup"}, got.HeadingPath)
	assert.True(t, got.Oversize)
	assert.Equal(t, []float32{0.25, -0.5, 0.75}, got.Embedding)
}

func TestSQLiteGetChunksBatch(t *testing.T) {
	s := newMemSQLite(t)
	ctx := context.Background()

	docID, err := s.SaveDocument(ctx, chunk.Document{Origin: "docs/a.md", Text: "text"})
	require.NoError(t, err)

	chunks := make([]chunk.Chunk, 3)
	for i := range chunks {
		chunks[i] = testChunk("docs/a.md", "chunk-"+strconv.Itoa(i), i*100, i*100+50)
		chunks[i].DocID = docID
	}
	require.NoError(t, s.SaveChunks(ctx, chunks))

	got, err := s.GetChunks(ctx, []string{"chunk-2", "chunk-0", "chunk-missing"})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	all, err := s.AllChunks(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestSQLiteChunkUpsert(t *testing.T) {
	s := newMemSQLite(t)
	ctx := context.Background()

	docID, err := s.SaveDocument(ctx, chunk.Document{Origin: "docs/a.md", Text: "text"})
	require.NoError(t, err)

	ck := testChunk("docs/a.md", "chunk-0001", 0, 42)
	ck.DocID = docID
	require.NoError(t, s.SaveChunks(ctx, []chunk.Chunk{ck}))

	ck.Text = "revised chunk text"
	ck.Embedding = []float32{1, 2, 3}
	require.NoError(t, s.SaveChunks(ctx, []chunk.Chunk{ck}))

	_, chunks, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, chunks)

	got, err := s.GetChunk(ctx, "chunk-0001")
	require.NoError(t, err)
	assert.Equal(t, "revised chunk text", got.Text)
	assert.Equal(t, []float32{1, 2, 3}, got.Embedding)
}

func TestSQLiteDeleteCascades(t *testing.T) {
	s := newMemSQLite(t)
	ctx := context.Background()

	for _, origin := range []string{"docs/a.md", "docs/b.md"} {
		docID, err := s.SaveDocument(ctx, chunk.Document{Origin: origin, Text: "text"})
		require.NoError(t, err)
		ck := testChunk(origin, origin+"-chunk", 0, 10)
		ck.DocID = docID
		require.NoError(t, s.SaveChunks(ctx, []chunk.Chunk{ck}))
	}

	ids, err := s.ChunkIDsByOrigin(ctx, "docs/a.md")
	require.NoError(t, err)
	assert.Equal(t, []string{"docs/a.md-chunk"}, ids)

	require.NoError(t, s.DeleteChunksByOrigin(ctx, "docs/a.md"))

	documents, chunks, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, documents)
	assert.Equal(t, 1, chunks)

	_, err = s.GetChunk(ctx, "docs/a.md-chunk")
	assert.Error(t, err)
}

func TestSQLiteMeta(t *testing.T) {
	s := newMemSQLite(t)

	value, err := s.GetMeta("absent")
	require.NoError(t, err)
	assert.Equal(t, "", value)

	require.NoError(t, s.SetMeta("embedder_model", "static"))
	require.NoError(t, s.SetMeta("embedder_model", "nomic-embed-text"))

	value, err = s.GetMeta("embedder_model")
	require.NoError(t, err)
	assert.Equal(t, "nomic-embed-text", value)
}

func TestSQLiteFormatVersionStamped(t *testing.T) {
	s := newMemSQLite(t)

	value, err := s.GetMeta(MetaKeyFormatVersion)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(CurrentFormatVersion), value)
}

func TestSQLiteUnsupportedFormatVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quarry.db")

	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.SetMeta(MetaKeyFormatVersion, "999"))
	require.NoError(t, s.Close())

	_, err = NewSQLiteStore(path)
	require.Error(t, err)
	assert.Equal(t, qerrors.ErrCodeUnsupportedStoreVersion, qerrors.GetCode(err))
}
