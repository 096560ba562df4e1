package store

import (
	"context"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FlatIndex implements VectorIndex with exact brute-force cosine ranking.
// It is the correctness reference for HNSWIndex and the default for small
// stores where exhaustive scoring is cheap.
type FlatIndex struct {
	mu      sync.RWMutex
	config  VectorIndexConfig
	vectors map[string][]float32
	closed  bool
}

// Verify interface implementation at compile time
var _ VectorIndex = (*FlatIndex)(nil)

// flatMetadata is the gob persistence layout.
type flatMetadata struct {
	Config  VectorIndexConfig
	Vectors map[string][]float32
}

// NewFlatIndex creates a new exact-search vector index.
func NewFlatIndex(cfg VectorIndexConfig) (*FlatIndex, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive, got %d", cfg.Dimensions)
	}
	if cfg.Metric == "" {
		cfg.Metric = "cos"
	}
	return &FlatIndex{
		config:  cfg,
		vectors: make(map[string][]float32),
	}, nil
}

// Add inserts vectors with their IDs. Existing IDs are replaced.
func (s *FlatIndex) Add(_ context.Context, ids []string, vectors [][]float32) error {
	if len(ids) == 0 {
		return nil
	}
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch: %d vs %d", len(ids), len(vectors))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("index is closed")
	}

	for _, v := range vectors {
		if len(v) != s.config.Dimensions {
			return dimensionMismatchError(s.config.Dimensions, len(v))
		}
	}

	for i, id := range ids {
		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		if s.config.Metric == "cos" {
			normalizeVectorInPlace(vec)
		}
		s.vectors[id] = vec
	}
	return nil
}

// Search scores every stored vector against the query and returns the top k.
func (s *FlatIndex) Search(_ context.Context, query []float32, k int) ([]*VectorResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("index is closed")
	}
	if len(query) != s.config.Dimensions {
		return nil, dimensionMismatchError(s.config.Dimensions, len(query))
	}
	if len(s.vectors) == 0 || k <= 0 {
		return []*VectorResult{}, nil
	}

	normalizedQuery := make([]float32, len(query))
	copy(normalizedQuery, query)
	if s.config.Metric == "cos" {
		normalizeVectorInPlace(normalizedQuery)
	}

	results := make([]*VectorResult, 0, len(s.vectors))
	for id, vec := range s.vectors {
		distance := s.distance(normalizedQuery, vec)
		results = append(results, &VectorResult{
			ID:       id,
			Distance: distance,
			Score:    distanceToScore(distance, s.config.Metric),
		})
	}

	sortVectorResults(results)
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// distance computes the configured metric between two vectors.
func (s *FlatIndex) distance(a, b []float32) float32 {
	switch s.config.Metric {
	case "l2":
		var sum float64
		for i := range a {
			d := float64(a[i] - b[i])
			sum += d * d
		}
		return float32(sum)
	default:
		// Both vectors are unit length, so cosine distance is 1 - dot.
		var dot float64
		for i := range a {
			dot += float64(a[i]) * float64(b[i])
		}
		return float32(1.0 - dot)
	}
}

// Delete removes vectors by ID.
func (s *FlatIndex) Delete(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("index is closed")
	}
	for _, id := range ids {
		delete(s.vectors, id)
	}
	return nil
}

// AllIDs returns all vector IDs in the index.
func (s *FlatIndex) AllIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil
	}
	ids := make([]string, 0, len(s.vectors))
	for id := range s.vectors {
		ids = append(ids, id)
	}
	return ids
}

// Contains checks if an ID exists.
func (s *FlatIndex) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false
	}
	_, exists := s.vectors[id]
	return exists
}

// Count returns the number of vectors.
func (s *FlatIndex) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0
	}
	return len(s.vectors)
}

// Save persists the index to disk atomically (temp file + rename).
func (s *FlatIndex) Save(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return fmt.Errorf("index is closed")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create index file: %w", err)
	}

	meta := flatMetadata{Config: s.config, Vectors: s.vectors}
	if err := gob.NewEncoder(file).Encode(meta); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("encode flat index: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close index file: %w", err)
	}
	return os.Rename(tmpPath, path)
}

// Load loads the index from disk.
func (s *FlatIndex) Load(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("index is closed")
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open index file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var meta flatMetadata
	if err := gob.NewDecoder(file).Decode(&meta); err != nil {
		return fmt.Errorf("decode flat index: %w", err)
	}

	s.config = meta.Config
	s.vectors = meta.Vectors
	if s.vectors == nil {
		s.vectors = make(map[string][]float32)
	}
	return nil
}

// Close releases resources.
func (s *FlatIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.vectors = nil
	return nil
}
