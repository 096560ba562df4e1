package search

import (
	"sort"

	"github.com/quarrydocs/quarry/internal/store"
)

// DefaultRRFConstant is the standard RRF smoothing parameter. k=60 is
// empirically validated across domains (Azure AI Search, OpenSearch).
const DefaultRRFConstant = 60

// FusedResult is a single result after RRF fusion.
type FusedResult struct {
	ChunkID      string   // chunk identifier
	RRFScore     float64  // combined RRF score, normalized to [0, 1]
	BM25Score    float64  // original BM25 score
	BM25Rank     int      // position in BM25 list (1-indexed, 0 if absent)
	VecScore     float64  // original vector similarity score
	VecRank      int      // position in vector list (1-indexed, 0 if absent)
	InBothLists  bool     // chunk appeared in both result lists
	MatchedTerms []string // BM25 matched terms
}

// RRFFusion merges keyword and vector result lists with weighted
// Reciprocal Rank Fusion:
//
//	RRF_score(d) = Σ weight_i / (k + rank_i)
//
// where rank_i is the 1-indexed position of d in list i. A chunk missing
// from a list contributes that list's weight at missing_rank =
// max(len(bm25), len(vec)) + 1.
type RRFFusion struct {
	K int
}

// NewRRFFusion creates an RRF fusion with the given k. Values <= 0 fall
// back to the default of 60.
func NewRRFFusion(k int) *RRFFusion {
	if k <= 0 {
		k = DefaultRRFConstant
	}
	return &RRFFusion{K: k}
}

// Fuse combines BM25 and vector results.
//
// Results are sorted by RRFScore desc, then InBothLists (true first), then
// BM25Score desc, then ChunkID asc, and finally normalized so the top score
// is 1.0.
func (f *RRFFusion) Fuse(bm25 []*store.BM25Result, vec []*store.VectorResult, weights Weights) []*FusedResult {
	if len(bm25) == 0 && len(vec) == 0 {
		return []*FusedResult{}
	}

	scores := make(map[string]*FusedResult, len(bm25)+len(vec))

	for rank, r := range bm25 {
		result := f.getOrCreate(scores, r.DocID)
		result.BM25Score = r.Score
		result.BM25Rank = rank + 1
		result.MatchedTerms = r.MatchedTerms
		result.RRFScore += weights.BM25 / float64(f.K+rank+1)
	}

	for rank, r := range vec {
		result := f.getOrCreate(scores, r.ID)
		result.VecScore = float64(r.Score)
		result.VecRank = rank + 1
		result.RRFScore += weights.Semantic / float64(f.K+rank+1)

		if result.BM25Rank > 0 {
			result.InBothLists = true
		}
	}

	missingRank := missingRank(len(bm25), len(vec))
	for _, r := range scores {
		if r.BM25Rank == 0 && r.VecRank > 0 {
			r.RRFScore += weights.BM25 / float64(f.K+missingRank)
		}
		if r.VecRank == 0 && r.BM25Rank > 0 {
			r.RRFScore += weights.Semantic / float64(f.K+missingRank)
		}
	}

	results := f.toSortedSlice(scores)
	f.normalize(results)
	return results
}

func (f *RRFFusion) getOrCreate(m map[string]*FusedResult, id string) *FusedResult {
	if r, ok := m[id]; ok {
		return r
	}
	r := &FusedResult{ChunkID: id}
	m[id] = r
	return r
}

// missingRank is the rank assigned for the list a chunk did not appear in.
func missingRank(bm25Len, vecLen int) int {
	if bm25Len > vecLen {
		return bm25Len + 1
	}
	return vecLen + 1
}

func (f *RRFFusion) toSortedSlice(m map[string]*FusedResult) []*FusedResult {
	results := make([]*FusedResult, 0, len(m))
	for _, r := range m {
		results = append(results, r)
	}
	sort.Slice(results, func(i, j int) bool {
		return f.less(results[i], results[j])
	})
	return results
}

// less orders a before b. RRF score first, then presence in both lists,
// then raw BM25 score, then chunk ID for determinism.
func (f *RRFFusion) less(a, b *FusedResult) bool {
	if a.RRFScore != b.RRFScore {
		return a.RRFScore > b.RRFScore
	}
	if a.InBothLists != b.InBothLists {
		return a.InBothLists
	}
	if a.BM25Score != b.BM25Score {
		return a.BM25Score > b.BM25Score
	}
	return a.ChunkID < b.ChunkID
}

// normalize scales scores so the top result is 1.0.
func (f *RRFFusion) normalize(results []*FusedResult) {
	if len(results) == 0 {
		return
	}
	maxScore := results[0].RRFScore
	if maxScore == 0 {
		return
	}
	for _, r := range results {
		r.RRFScore /= maxScore
	}
}
