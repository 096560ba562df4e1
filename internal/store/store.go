package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quarrydocs/quarry/internal/chunk"
	"github.com/quarrydocs/quarry/internal/embed"
	qerrors "github.com/quarrydocs/quarry/internal/errors"
)

// Store file names inside the store directory.
const (
	metaFileName    = "quarry.db"
	vectorFileName  = "vectors.idx"
	keywordDirName  = "keyword.bleve"
	indexBatchSize  = 500
	embedConcurrent = 4
)

// Options configures a Store.
type Options struct {
	// ExactVectorSearch uses brute-force cosine ranking instead of HNSW.
	// Exact search is always correct and fast enough for small stores.
	ExactVectorSearch bool

	// Logger receives structured progress events. Defaults to slog.Default().
	Logger *slog.Logger
}

// Stats summarizes store contents.
type Stats struct {
	Documents     int    `json:"documents"`
	Chunks        int    `json:"chunks"`
	Vectors       int    `json:"vectors"`
	IndexBuilt    bool   `json:"index_built"`
	EmbedderModel string `json:"embedder_model"`
	Dimensions    int    `json:"dimensions"`
}

// Store owns the metadata database and both retrieval indexes for one
// store directory. A file lock makes it single-writer across processes.
type Store struct {
	dir      string
	meta     *SQLiteStore
	embedder embed.Embedder
	logger   *slog.Logger
	lock     *FileLock
	exact    bool

	mu         sync.RWMutex
	vector     VectorIndex
	keyword    KeywordIndex
	indexBuilt bool
	closed     bool
}

// Open opens or creates a store at dir using the given embedder.
// The persisted format version and embedder identity are verified: a store
// built with a different embedding model cannot be queried with this one.
func Open(ctx context.Context, dir string, embedder embed.Embedder, opts Options) (*Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	lock := NewFileLock(dir)
	acquired, err := lock.TryLock()
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, fmt.Errorf("store at %s is locked by another process", dir)
	}

	meta, err := NewSQLiteStore(filepath.Join(dir, metaFileName))
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}

	s := &Store{
		dir:      dir,
		meta:     meta,
		embedder: embedder,
		logger:   logger,
		lock:     lock,
		exact:    opts.ExactVectorSearch,
	}

	if err := s.checkEmbedderIdentity(); err != nil {
		_ = meta.Close()
		_ = lock.Unlock()
		return nil, err
	}

	s.loadIndexes(ctx)
	return s, nil
}

// checkEmbedderIdentity pins the embedding model and dimension at store
// creation and rejects mismatches on later opens.
func (s *Store) checkEmbedderIdentity() error {
	storedModel, err := s.meta.GetMeta(MetaKeyEmbedderModel)
	if err != nil {
		return err
	}

	if storedModel == "" {
		if err := s.meta.SetMeta(MetaKeyEmbedderModel, s.embedder.ModelName()); err != nil {
			return err
		}
		return s.meta.SetMeta(MetaKeyEmbedderDims, strconv.Itoa(s.embedder.Dimensions()))
	}

	if storedModel != s.embedder.ModelName() {
		return qerrors.New(qerrors.ErrCodeDimensionMismatch,
			fmt.Sprintf("store was built with embedding model %q, current model is %q",
				storedModel, s.embedder.ModelName()), nil).
			WithSuggestion("reopen with the original model or rebuild the store")
	}

	storedDims, err := s.meta.GetMeta(MetaKeyEmbedderDims)
	if err != nil {
		return err
	}
	if dims, err := strconv.Atoi(storedDims); err == nil && dims != s.embedder.Dimensions() {
		return dimensionMismatchError(dims, s.embedder.Dimensions())
	}
	return nil
}

// loadIndexes loads previously built indexes from disk, best effort. A store
// without built indexes answers inserts but not queries.
func (s *Store) loadIndexes(_ context.Context) {
	vectorPath := filepath.Join(s.dir, vectorFileName)
	keywordPath := filepath.Join(s.dir, keywordDirName)

	if _, err := os.Stat(vectorPath); err != nil {
		return
	}
	if _, err := os.Stat(keywordPath); err != nil {
		return
	}

	vec, err := s.newVectorIndex(s.embedder.Dimensions())
	if err != nil {
		s.logger.Warn("vector_index_create_failed", slog.String("error", err.Error()))
		return
	}
	if err := vec.Load(vectorPath); err != nil {
		s.logger.Warn("vector_index_load_failed",
			slog.String("path", vectorPath), slog.String("error", err.Error()))
		return
	}

	kw, err := NewBleveIndex(keywordPath)
	if err != nil {
		s.logger.Warn("keyword_index_load_failed",
			slog.String("path", keywordPath), slog.String("error", err.Error()))
		_ = vec.Close()
		return
	}

	s.vector = vec
	s.keyword = kw
	s.indexBuilt = true
	s.logger.Info("indexes_loaded",
		slog.Int("vectors", vec.Count()),
		slog.String("dir", s.dir))
}

// newVectorIndex creates the configured vector index flavor.
func (s *Store) newVectorIndex(dims int) (VectorIndex, error) {
	cfg := DefaultVectorIndexConfig(dims)
	if s.exact {
		return NewFlatIndex(cfg)
	}
	return NewHNSWIndex(cfg)
}

// Insert persists a document and its chunks, embedding any chunk that does
// not carry an embedding yet. On provider failure the chunks processed so
// far are persisted (embedded or pending) and the error is returned: the
// store stays internally consistent but the insert is incomplete.
func (s *Store) Insert(ctx context.Context, doc chunk.Document, chunks []chunk.Chunk) error {
	docID, err := s.meta.SaveDocument(ctx, doc)
	if err != nil {
		return err
	}

	for i := range chunks {
		chunks[i].DocID = docID
		if chunks[i].Origin == "" {
			chunks[i].Origin = doc.Origin
		}
	}

	embedErr := s.embedMissing(ctx, chunks)

	for _, ck := range chunks {
		if ck.Embedding != nil && len(ck.Embedding) != s.embedder.Dimensions() {
			return dimensionMismatchError(s.embedder.Dimensions(), len(ck.Embedding))
		}
	}

	if err := s.meta.SaveChunks(ctx, chunks); err != nil {
		return err
	}

	s.logger.Debug("chunks_inserted",
		slog.String("origin", doc.Origin),
		slog.Int("chunks", len(chunks)))
	return embedErr
}

// embedMissing fills embeddings for chunks lacking one, batching requests
// through a bounded worker pool.
func (s *Store) embedMissing(ctx context.Context, chunks []chunk.Chunk) error {
	var missing []int
	for i := range chunks {
		if chunks[i].Embedding == nil && strings.TrimSpace(chunks[i].Text) != "" {
			missing = append(missing, i)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedConcurrent)

	for start := 0; start < len(missing); start += embed.DefaultBatchSize {
		end := min(start+embed.DefaultBatchSize, len(missing))
		batch := missing[start:end]

		g.Go(func() error {
			texts := make([]string, len(batch))
			for i, idx := range batch {
				texts[i] = chunks[idx].Text
			}

			vectors, err := s.embedder.EmbedBatch(gctx, texts)
			if err != nil {
				return err
			}
			for i, idx := range batch {
				chunks[idx].Embedding = vectors[i]
			}
			return nil
		})
	}

	return g.Wait()
}

// BuildIndex (re)constructs the vector and keyword indexes from the full
// persisted chunk set. Idempotent; the new indexes replace the old ones
// atomically so concurrent queries never observe a partial rebuild.
func (s *Store) BuildIndex(ctx context.Context) error {
	chunks, err := s.meta.AllChunks(ctx)
	if err != nil {
		return wrapTimeout(ctx, err)
	}

	vectorPath := filepath.Join(s.dir, vectorFileName)
	keywordPath := filepath.Join(s.dir, keywordDirName)
	keywordTmp := keywordPath + ".tmp"

	vec, err := s.newVectorIndex(s.embedder.Dimensions())
	if err != nil {
		return err
	}

	var ids []string
	var vectors [][]float32
	docs := make([]*KeywordDocument, 0, len(chunks))
	for _, ck := range chunks {
		if ck.Embedding != nil {
			ids = append(ids, ck.ID)
			vectors = append(vectors, ck.Embedding)
		}
		docs = append(docs, &KeywordDocument{ID: ck.ID, Content: ck.Text})
	}
	if err := vec.Add(ctx, ids, vectors); err != nil {
		_ = vec.Close()
		return wrapTimeout(ctx, err)
	}

	_ = os.RemoveAll(keywordTmp)
	kw, err := NewBleveIndex(keywordTmp)
	if err != nil {
		_ = vec.Close()
		return err
	}
	for start := 0; start < len(docs); start += indexBatchSize {
		if err := ctx.Err(); err != nil {
			_ = kw.Close()
			_ = vec.Close()
			_ = os.RemoveAll(keywordTmp)
			return wrapTimeout(ctx, err)
		}
		end := min(start+indexBatchSize, len(docs))
		if err := kw.Index(ctx, docs[start:end]); err != nil {
			_ = kw.Close()
			_ = vec.Close()
			_ = os.RemoveAll(keywordTmp)
			return wrapTimeout(ctx, err)
		}
	}

	if err := vec.Save(vectorPath); err != nil {
		_ = kw.Close()
		_ = vec.Close()
		_ = os.RemoveAll(keywordTmp)
		return err
	}

	// Close the fresh keyword index so its directory can be renamed into
	// place, then swap both indexes under the write lock.
	if err := kw.Close(); err != nil {
		_ = vec.Close()
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.keyword != nil {
		_ = s.keyword.Close()
		s.keyword = nil
	}
	if err := os.RemoveAll(keywordPath); err != nil {
		_ = vec.Close()
		return fmt.Errorf("failed to remove old keyword index: %w", err)
	}
	if err := os.Rename(keywordTmp, keywordPath); err != nil {
		_ = vec.Close()
		return fmt.Errorf("failed to install keyword index: %w", err)
	}

	reopened, err := NewBleveIndex(keywordPath)
	if err != nil {
		_ = vec.Close()
		return err
	}

	if s.vector != nil {
		_ = s.vector.Close()
	}
	s.vector = vec
	s.keyword = reopened
	s.indexBuilt = true

	if err := s.meta.SetMeta(MetaKeyIndexBuiltAt, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return err
	}

	s.logger.Info("index_built",
		slog.Int("chunks", len(chunks)),
		slog.Int("vectors", len(ids)))
	return nil
}

// wrapTimeout converts deadline errors to TimeoutError, passing others
// through.
func wrapTimeout(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return qerrors.TimeoutError("build_index", err)
	}
	return err
}

// SearchVector queries the vector index. Fails with IndexNotBuiltError
// before the first BuildIndex.
func (s *Store) SearchVector(ctx context.Context, query []float32, k int) ([]*VectorResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.indexBuilt {
		return nil, qerrors.IndexNotBuiltError()
	}
	return s.vector.Search(ctx, query, k)
}

// SearchKeyword queries the keyword index. Fails with IndexNotBuiltError
// before the first BuildIndex.
func (s *Store) SearchKeyword(ctx context.Context, query string, k int) ([]*BM25Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.indexBuilt {
		return nil, qerrors.IndexNotBuiltError()
	}
	return s.keyword.Search(ctx, query, k)
}

// IndexBuilt reports whether the retrieval indexes are available.
func (s *Store) IndexBuilt() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexBuilt
}

// Embedder returns the embedding provider bound to this store.
func (s *Store) Embedder() embed.Embedder {
	return s.embedder
}

// Chunks fetches chunks by ID from the metadata database.
func (s *Store) Chunks(ctx context.Context, ids []string) ([]chunk.Chunk, error) {
	return s.meta.GetChunks(ctx, ids)
}

// DeleteDocument removes a document, its chunks, and their index entries.
func (s *Store) DeleteDocument(ctx context.Context, origin string) error {
	ids, err := s.meta.ChunkIDsByOrigin(ctx, origin)
	if err != nil {
		return err
	}

	if err := s.meta.DeleteChunksByOrigin(ctx, origin); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.indexBuilt && len(ids) > 0 {
		if err := s.vector.Delete(ctx, ids); err != nil {
			return err
		}
		if err := s.keyword.Delete(ctx, ids); err != nil {
			return err
		}
	}
	return nil
}

// Stats returns store statistics.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	documents, chunks, err := s.meta.Counts(ctx)
	if err != nil {
		return Stats{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{
		Documents:     documents,
		Chunks:        chunks,
		IndexBuilt:    s.indexBuilt,
		EmbedderModel: s.embedder.ModelName(),
		Dimensions:    s.embedder.Dimensions(),
	}
	if s.indexBuilt {
		stats.Vectors = s.vector.Count()
	}
	return stats, nil
}

// Close releases the embedder, indexes, the database, and the directory
// lock. The store owns the embedder passed to Open.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.vector != nil {
		_ = s.vector.Close()
	}
	if s.keyword != nil {
		_ = s.keyword.Close()
	}
	_ = s.embedder.Close()
	err := s.meta.Close()
	if unlockErr := s.lock.Unlock(); err == nil {
		err = unlockErr
	}
	return err
}
