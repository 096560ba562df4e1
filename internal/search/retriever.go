package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/quarrydocs/quarry/internal/chunk"
	"github.com/quarrydocs/quarry/internal/embed"
	qerrors "github.com/quarrydocs/quarry/internal/errors"
	"github.com/quarrydocs/quarry/internal/store"
)

// Searcher is the store surface the retriever needs: both indexes, chunk
// lookup, and the embedding provider bound to the store.
type Searcher interface {
	SearchVector(ctx context.Context, query []float32, k int) ([]*store.VectorResult, error)
	SearchKeyword(ctx context.Context, query string, k int) ([]*store.BM25Result, error)
	Chunks(ctx context.Context, ids []string) ([]chunk.Chunk, error)
	Embedder() embed.Embedder
}

// ErrNilDependency is returned when a required dependency is nil.
var ErrNilDependency = errors.New("nil dependency")

// Retriever executes hybrid retrieval: both indexes are queried in parallel
// with a fan-out larger than top_k, merged with RRF, filtered, and truncated.
type Retriever struct {
	searcher Searcher
	cfg      Config
	fusion   *RRFFusion
	logger   *slog.Logger
}

// NewRetriever creates a hybrid retriever over a store.
func NewRetriever(searcher Searcher, cfg Config, logger *slog.Logger) (*Retriever, error) {
	if searcher == nil {
		return nil, fmt.Errorf("%w: searcher is required", ErrNilDependency)
	}
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.applyDefaults()
	return &Retriever{
		searcher: searcher,
		cfg:      cfg,
		fusion:   NewRRFFusion(cfg.RRFConstant),
		logger:   logger,
	}, nil
}

// Retrieve runs a hybrid query. Both indexes are consulted; a single failing
// index degrades to the other's results, both failing is an error. Queries
// are read-only and freely cancellable.
func (r *Retriever) Retrieve(ctx context.Context, query string, opts Options) (QueryResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return QueryResult{}, nil
	}
	opts = r.applyDefaults(opts)

	ctx, cancel := context.WithTimeout(ctx, r.cfg.QueryTimeout)
	defer cancel()

	fanOut := r.cfg.FanOutFactor * opts.TopK
	bm25Results, vecResults, searchErr := r.parallelSearch(ctx, query, fanOut)
	if searchErr != nil {
		if bm25Results == nil && vecResults == nil {
			return nil, r.wrapTimeout(ctx, searchErr)
		}
		r.logger.Warn("partial_retrieval",
			slog.String("query", query),
			slog.String("error", searchErr.Error()))
	}

	fused := r.fusion.Fuse(bm25Results, vecResults, *opts.Weights)
	return r.assemble(ctx, fused, opts)
}

// RetrieveVSS runs a vector-only query.
func (r *Retriever) RetrieveVSS(ctx context.Context, query string, opts Options) (QueryResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return QueryResult{}, nil
	}
	opts = r.applyDefaults(opts)

	ctx, cancel := context.WithTimeout(ctx, r.cfg.QueryTimeout)
	defer cancel()

	embedding, err := r.searcher.Embedder().Embed(ctx, query)
	if err != nil {
		return nil, r.wrapTimeout(ctx, err)
	}

	vecResults, err := r.searcher.SearchVector(ctx, embedding, r.cfg.FanOutFactor*opts.TopK)
	if err != nil {
		return nil, r.wrapTimeout(ctx, err)
	}

	fused := make([]*FusedResult, 0, len(vecResults))
	for rank, vr := range vecResults {
		fused = append(fused, &FusedResult{
			ChunkID:  vr.ID,
			RRFScore: float64(vr.Score),
			VecScore: float64(vr.Score),
			VecRank:  rank + 1,
		})
	}
	return r.assemble(ctx, fused, opts)
}

// RetrieveBM25 runs a keyword-only query. Scores are normalized so the top
// result is 1.0.
func (r *Retriever) RetrieveBM25(ctx context.Context, query string, opts Options) (QueryResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return QueryResult{}, nil
	}
	opts = r.applyDefaults(opts)

	ctx, cancel := context.WithTimeout(ctx, r.cfg.QueryTimeout)
	defer cancel()

	bm25Results, err := r.searcher.SearchKeyword(ctx, query, r.cfg.FanOutFactor*opts.TopK)
	if err != nil {
		return nil, r.wrapTimeout(ctx, err)
	}

	var maxScore float64
	if len(bm25Results) > 0 {
		maxScore = bm25Results[0].Score
	}

	fused := make([]*FusedResult, 0, len(bm25Results))
	for rank, br := range bm25Results {
		score := br.Score
		if maxScore > 0 {
			score /= maxScore
		}
		fused = append(fused, &FusedResult{
			ChunkID:      br.DocID,
			RRFScore:     score,
			BM25Score:    br.Score,
			BM25Rank:     rank + 1,
			MatchedTerms: br.MatchedTerms,
		})
	}
	return r.assemble(ctx, fused, opts)
}

// parallelSearch queries both indexes concurrently. A single failed search
// yields partial results; both failing returns the joined error.
func (r *Retriever) parallelSearch(ctx context.Context, query string, limit int) (
	bm25Results []*store.BM25Result,
	vecResults []*store.VectorResult,
	err error,
) {
	var wg sync.WaitGroup
	var bm25Err, vecErr error

	wg.Add(2)
	go func() {
		defer wg.Done()
		bm25Results, bm25Err = r.searcher.SearchKeyword(ctx, query, limit)
	}()
	go func() {
		defer wg.Done()
		embedding, embedErr := r.searcher.Embedder().Embed(ctx, query)
		if embedErr != nil {
			vecErr = embedErr
			return
		}
		vecResults, vecErr = r.searcher.SearchVector(ctx, embedding, limit)
	}()
	wg.Wait()

	if bm25Err != nil && vecErr != nil {
		return nil, nil, errors.Join(bm25Err, vecErr)
	}
	if bm25Err != nil {
		err = bm25Err
	} else if vecErr != nil {
		err = vecErr
	}
	return bm25Results, vecResults, err
}

// assemble enriches fused results with chunk metadata, applies the filter
// before truncation, and truncates to top_k.
func (r *Retriever) assemble(ctx context.Context, fused []*FusedResult, opts Options) (QueryResult, error) {
	if len(fused) == 0 {
		return QueryResult{}, nil
	}

	ids := make([]string, len(fused))
	for i, f := range fused {
		ids[i] = f.ChunkID
	}

	chunks, err := r.searcher.Chunks(ctx, ids)
	if err != nil {
		return nil, r.wrapTimeout(ctx, err)
	}
	byID := make(map[string]*chunk.Chunk, len(chunks))
	for i := range chunks {
		byID[chunks[i].ID] = &chunks[i]
	}

	results := make(QueryResult, 0, opts.TopK)
	for _, f := range fused {
		ck, ok := byID[f.ChunkID]
		if !ok {
			// Index entry with no metadata row: stale after a delete.
			continue
		}
		if !opts.Filter.Allows(ck.ID, ck.Origin) {
			continue
		}

		results = append(results, Result{
			ChunkID:      ck.ID,
			Score:        f.RRFScore,
			Text:         ck.Text,
			HeadingPath:  ck.HeadingPath,
			Origin:       ck.Origin,
			BM25Score:    f.BM25Score,
			VecScore:     f.VecScore,
			InBothLists:  f.InBothLists,
			MatchedTerms: f.MatchedTerms,
		})
		if len(results) == opts.TopK {
			break
		}
	}
	return results, nil
}

// applyDefaults fills in default values for retrieval options.
func (r *Retriever) applyDefaults(opts Options) Options {
	if opts.TopK <= 0 {
		opts.TopK = r.cfg.DefaultTopK
	}
	if opts.TopK > r.cfg.MaxTopK {
		opts.TopK = r.cfg.MaxTopK
	}
	if opts.Weights == nil {
		w := r.cfg.Weights
		opts.Weights = &w
	}
	return opts
}

// wrapTimeout converts deadline errors to TimeoutError, passing others
// through.
func (r *Retriever) wrapTimeout(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return qerrors.TimeoutError("retrieve", err)
	}
	return err
}
