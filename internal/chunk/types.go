// Package chunk splits normalized markdown documents into overlapping,
// boundary-aligned chunks tagged with their enclosing heading path.
package chunk

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Chunk size defaults.
const (
	// DefaultTargetChunkSize is the target chunk size in characters.
	DefaultTargetChunkSize = 1600

	// DefaultOverlapRatio is the fraction of target size shared between
	// consecutive chunks from the same segment.
	DefaultOverlapRatio = 0.5
)

// Document is a normalized text source unit. Documents are immutable:
// created by an external conversion step, inserted once, never mutated.
type Document struct {
	Origin string // URI or path identifying the source
	Text   string // normalized markdown
}

// Chunk is a contiguous substring of a document plus derived context.
// Offsets are byte offsets into the document text.
type Chunk struct {
	ID          string    // content-derived, unique within a store
	DocID       string    // owning document, assigned by the store on insert
	Origin      string    // source document origin
	Text        string    // substring, boundary-aligned
	StartOffset int       // inclusive
	EndOffset   int       // exclusive
	HeadingPath []string  // enclosing headings, root-first
	Oversize    bool      // single block exceeded target size, emitted unsplit
	Embedding   []float32 // nil until computed
}

// Config configures the chunker.
type Config struct {
	// TargetChunkSize is the target chunk size in characters (default: 1600).
	TargetChunkSize int

	// OverlapRatio is the target overlap between consecutive chunks as a
	// fraction of TargetChunkSize (default: 0.5).
	OverlapRatio float64

	// BoundaryHeadingLevels are heading levels (1-6) that force a hard
	// segment break. Chunks never span a boundary at these levels.
	BoundaryHeadingLevels map[int]bool
}

// DefaultConfig returns the default chunker configuration.
func DefaultConfig() Config {
	return Config{
		TargetChunkSize: DefaultTargetChunkSize,
		OverlapRatio:    DefaultOverlapRatio,
		BoundaryHeadingLevels: map[int]bool{
			1: true,
			2: true,
		},
	}
}

// applyDefaults fills zero values with defaults.
func (c Config) applyDefaults() Config {
	if c.TargetChunkSize <= 0 {
		c.TargetChunkSize = DefaultTargetChunkSize
	}
	if c.OverlapRatio <= 0 || c.OverlapRatio >= 1 {
		c.OverlapRatio = DefaultOverlapRatio
	}
	if c.BoundaryHeadingLevels == nil {
		c.BoundaryHeadingLevels = DefaultConfig().BoundaryHeadingLevels
	}
	return c
}

// generateChunkID derives a stable chunk ID from the document origin and the
// chunk's start offset. SHA256 truncated to 16 hex chars, matching the doc_id
// scheme used by the store.
func generateChunkID(origin string, start int) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s\x00%d", origin, start)))
	return hex.EncodeToString(h[:])[:16]
}
