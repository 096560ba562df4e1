// Package store provides durable persistence for documents and chunks
// (SQLite), plus the vector (HNSW) and keyword (Bleve BM25) indexes built
// over the chunk set.
package store

import (
	"context"
	"fmt"

	qerrors "github.com/quarrydocs/quarry/internal/errors"
)

// CurrentFormatVersion is the persisted store layout version. Readers refuse
// stores written with a different version.
const CurrentFormatVersion = 1

// Metadata keys persisted in the store_meta table.
const (
	MetaKeyFormatVersion = "format_version"
	MetaKeyEmbedderModel = "embedder_model"
	MetaKeyEmbedderDims  = "embedder_dimensions"
	MetaKeyIndexBuiltAt  = "index_built_at"
)

// VectorResult is a single vector search result.
type VectorResult struct {
	ID       string  // chunk ID
	Distance float32 // lower is more similar (0-2 for cosine)
	Score    float32 // normalized similarity (0-1)
}

// VectorIndex answers approximate (or exact) nearest-neighbor queries over
// chunk embeddings.
type VectorIndex interface {
	// Add inserts vectors with their IDs. Existing IDs are replaced.
	Add(ctx context.Context, ids []string, vectors [][]float32) error

	// Search finds the k nearest neighbors to the query vector, ordered by
	// descending similarity with ties broken by chunk ID ascending.
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)

	// Delete removes vectors by ID.
	Delete(ctx context.Context, ids []string) error

	// AllIDs returns all vector IDs in the index.
	AllIDs() []string

	// Contains checks if an ID exists.
	Contains(id string) bool

	// Count returns the number of vectors.
	Count() int

	// Persistence
	Save(path string) error
	Load(path string) error
	Close() error
}

// VectorIndexConfig configures a vector index.
type VectorIndexConfig struct {
	// Dimensions is the vector dimension (set from the embedding provider)
	Dimensions int

	// Metric is the distance metric: "cos" (cosine), "l2" (euclidean)
	Metric string

	// M is HNSW max connections per layer (default: 16)
	M int

	// EfSearch is HNSW query-time search width (default: 64)
	EfSearch int
}

// DefaultVectorIndexConfig returns sensible defaults for the given dimension.
func DefaultVectorIndexConfig(dimensions int) VectorIndexConfig {
	return VectorIndexConfig{
		Dimensions: dimensions,
		Metric:     "cos",
		M:          16,
		EfSearch:   64,
	}
}

// KeywordDocument is the unit indexed for keyword search.
type KeywordDocument struct {
	ID      string // chunk ID
	Content string // chunk text
}

// BM25Result is a single keyword search result.
type BM25Result struct {
	DocID        string
	Score        float64
	MatchedTerms []string
}

// KeywordIndex answers BM25-ranked keyword queries over chunk text.
type KeywordIndex interface {
	// Index adds documents to the index. Existing IDs are replaced.
	Index(ctx context.Context, docs []*KeywordDocument) error

	// Search returns documents sharing at least one analyzed term with the
	// query, scored by BM25, ordered by descending score with ties broken
	// by chunk ID ascending.
	Search(ctx context.Context, query string, limit int) ([]*BM25Result, error)

	// Delete removes documents from the index.
	Delete(ctx context.Context, docIDs []string) error

	// DocCount returns the number of indexed documents.
	DocCount() (int, error)

	Close() error
}

// dimensionMismatchError builds the structured error for vectors whose
// dimension disagrees with the index.
func dimensionMismatchError(expected, got int) error {
	return qerrors.New(qerrors.ErrCodeDimensionMismatch,
		fmt.Sprintf("dimension mismatch: expected %d, got %d", expected, got), nil).
		WithSuggestion("rebuild the store with the current embedding model")
}
