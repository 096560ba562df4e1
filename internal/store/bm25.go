package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/token/porter"
	"github.com/blevesearch/bleve/v2/analysis/token/stop"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/analysis/tokenmap"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search"
	index "github.com/blevesearch/bleve_index_api"
)

// Names registered on the index mapping for the prose analyzer chain.
const (
	proseStopMapName    = "prose_stop_map"
	proseStopFilterName = "prose_stop"
	proseAnalyzerName   = "prose_analyzer"
)

// proseStopTokens are high-frequency English words excluded from the
// keyword index.
var proseStopTokens = []string{
	"a", "an", "the", "and", "or", "of", "to", "in", "on", "for",
	"is", "are", "was", "be", "with", "as", "at", "by", "it",
	"this", "that", "from", "not", "can",
}

// BleveIndex implements KeywordIndex using Bleve v2 with BM25 scoring.
type BleveIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	closed bool
}

// Verify interface implementation at compile time
var _ KeywordIndex = (*BleveIndex)(nil)

// bleveDocument is the indexed document shape.
type bleveDocument struct {
	Content string `json:"content"`
}

// NewBleveIndex creates or opens a BM25 keyword index at path.
// An empty path creates an in-memory index for testing.
func NewBleveIndex(path string) (*BleveIndex, error) {
	indexMapping, err := createIndexMapping()
	if err != nil {
		return nil, fmt.Errorf("failed to create index mapping: %w", err)
	}

	var idx bleve.Index
	if path == "" {
		idx, err = bleve.NewMemOnly(indexMapping)
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}

		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, indexMapping)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create/open index: %w", err)
	}

	return &BleveIndex{index: idx, path: path}, nil
}

// createIndexMapping builds the Bleve mapping: unicode tokenizer, lowercase,
// prose stop words, Porter stemming, BM25 scoring.
func createIndexMapping() (*mapping.IndexMappingImpl, error) {
	indexMapping := bleve.NewIndexMapping()

	stopTokens := make([]interface{}, len(proseStopTokens))
	for i, t := range proseStopTokens {
		stopTokens[i] = t
	}
	if err := indexMapping.AddCustomTokenMap(proseStopMapName, map[string]interface{}{
		"type":   tokenmap.Name,
		"tokens": stopTokens,
	}); err != nil {
		return nil, fmt.Errorf("failed to add stop token map: %w", err)
	}

	if err := indexMapping.AddCustomTokenFilter(proseStopFilterName, map[string]interface{}{
		"type":           stop.Name,
		"stop_token_map": proseStopMapName,
	}); err != nil {
		return nil, fmt.Errorf("failed to add stop filter: %w", err)
	}

	if err := indexMapping.AddCustomAnalyzer(proseAnalyzerName, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": unicode.Name,
		"token_filters": []string{
			lowercase.Name,
			proseStopFilterName,
			porter.Name,
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to add custom analyzer: %w", err)
	}

	indexMapping.DefaultAnalyzer = proseAnalyzerName
	indexMapping.ScoringModel = index.BM25Scoring

	return indexMapping, nil
}

// Index adds documents to the index. Existing IDs are replaced.
func (b *BleveIndex) Index(_ context.Context, docs []*KeywordDocument) error {
	if len(docs) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("index is closed")
	}

	batch := b.index.NewBatch()
	for _, doc := range docs {
		if err := batch.Index(doc.ID, bleveDocument{Content: doc.Content}); err != nil {
			return fmt.Errorf("failed to index document %s: %w", doc.ID, err)
		}
	}

	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to execute batch: %w", err)
	}
	return nil
}

// Search returns documents matching the query, scored by BM25. Only chunks
// sharing at least one analyzed term with the query can match.
func (b *BleveIndex) Search(ctx context.Context, queryStr string, limit int) ([]*BM25Result, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("index is closed")
	}
	if strings.TrimSpace(queryStr) == "" || limit <= 0 {
		return []*BM25Result{}, nil
	}

	matchQuery := bleve.NewMatchQuery(queryStr)
	matchQuery.SetField("content")

	searchRequest := bleve.NewSearchRequest(matchQuery)
	searchRequest.Size = limit
	searchRequest.IncludeLocations = true // for matched terms

	result, err := b.index.SearchInContext(ctx, searchRequest)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	results := make([]*BM25Result, 0, len(result.Hits))
	for _, hit := range result.Hits {
		results = append(results, &BM25Result{
			DocID:        hit.ID,
			Score:        hit.Score,
			MatchedTerms: extractMatchedTerms(hit),
		})
	}

	// Equal scores sort by chunk ID for determinism.
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].DocID < results[j].DocID
	})

	return results, nil
}

// Delete removes documents from the index.
func (b *BleveIndex) Delete(_ context.Context, docIDs []string) error {
	if len(docIDs) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("index is closed")
	}

	batch := b.index.NewBatch()
	for _, id := range docIDs {
		batch.Delete(id)
	}

	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to delete documents: %w", err)
	}
	return nil
}

// DocCount returns the number of indexed documents.
func (b *BleveIndex) DocCount() (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return 0, fmt.Errorf("index is closed")
	}

	count, err := b.index.DocCount()
	if err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return int(count), nil
}

// Close closes the index.
func (b *BleveIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	if b.index != nil {
		return b.index.Close()
	}
	return nil
}

// extractMatchedTerms pulls the analyzed terms that matched in the content
// field of a hit.
func extractMatchedTerms(hit *search.DocumentMatch) []string {
	terms := make(map[string]struct{})
	for field, locations := range hit.Locations {
		if field == "content" {
			for term := range locations {
				terms[term] = struct{}{}
			}
		}
	}

	result := make([]string, 0, len(terms))
	for term := range terms {
		result = append(result, term)
	}
	sort.Strings(result)
	return result
}
