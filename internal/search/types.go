// Package search provides hybrid retrieval combining vector similarity and
// BM25 keyword search. Results from both indexes are merged with Reciprocal
// Rank Fusion (RRF) for deterministic rank-based scoring.
package search

import "time"

// Result is a single retrieval hit. Plain structured record, directly
// serializable to a tool-call response.
type Result struct {
	ChunkID     string   `json:"chunk_id"`
	Score       float64  `json:"score"`
	Text        string   `json:"text"`
	HeadingPath []string `json:"heading_path"`
	Origin      string   `json:"origin"`

	// Per-source diagnostics, preserved through fusion.
	BM25Score    float64  `json:"bm25_score,omitempty"`
	VecScore     float64  `json:"vec_score,omitempty"`
	InBothLists  bool     `json:"in_both_lists,omitempty"`
	MatchedTerms []string `json:"matched_terms,omitempty"`
}

// QueryResult is an ordered result set, ranked descending by combined score,
// length bounded by the requested top_k.
type QueryResult []Result

// Weights configures the relative importance of keyword vs vector search.
type Weights struct {
	// BM25 is the weight for keyword search (default: 0.35).
	BM25 float64

	// Semantic is the weight for vector search (default: 0.65).
	Semantic float64
}

// DefaultWeights returns weights tuned for mixed prose queries.
func DefaultWeights() Weights {
	return Weights{
		BM25:     0.35,
		Semantic: 0.65,
	}
}

// Options configures a single retrieval call.
type Options struct {
	// TopK is the maximum number of results (default: 10, max: 100).
	TopK int

	// Filter restricts results. Nil means no filtering. The filter is
	// caller-owned and applied before truncation so excluded chunks do
	// not consume the TopK budget.
	Filter *Filter

	// Weights overrides the configured fusion weights.
	Weights *Weights
}

// Config configures the retriever.
type Config struct {
	// DefaultTopK is the result count when Options.TopK is unset (default: 10).
	DefaultTopK int

	// MaxTopK caps Options.TopK (default: 100).
	MaxTopK int

	// FanOutFactor scales the per-index fetch: each index is asked for
	// FanOutFactor*TopK candidates before fusion (default: 4).
	FanOutFactor int

	// Weights are the default fusion weights.
	Weights Weights

	// RRFConstant is the RRF smoothing constant k (default: 60).
	RRFConstant int

	// QueryTimeout bounds a single retrieval call (default: 5s).
	QueryTimeout time.Duration
}

// DefaultConfig returns the default retriever configuration.
func DefaultConfig() Config {
	return Config{
		DefaultTopK:  10,
		MaxTopK:      100,
		FanOutFactor: 4,
		Weights:      DefaultWeights(),
		RRFConstant:  DefaultRRFConstant,
		QueryTimeout: 5 * time.Second,
	}
}

// applyDefaults fills zero values with defaults.
func (c Config) applyDefaults() Config {
	if c.DefaultTopK <= 0 {
		c.DefaultTopK = 10
	}
	if c.MaxTopK <= 0 {
		c.MaxTopK = 100
	}
	if c.FanOutFactor <= 0 {
		c.FanOutFactor = 4
	}
	if c.Weights.BM25 == 0 && c.Weights.Semantic == 0 {
		c.Weights = DefaultWeights()
	}
	if c.RRFConstant <= 0 {
		c.RRFConstant = DefaultRRFConstant
	}
	if c.QueryTimeout <= 0 {
		c.QueryTimeout = 5 * time.Second
	}
	return c
}
