package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // pure Go SQLite driver (no CGO)

	"github.com/quarrydocs/quarry/internal/chunk"
	qerrors "github.com/quarrydocs/quarry/internal/errors"
)

// SQLiteStore persists documents, chunks, and store metadata in SQLite.
type SQLiteStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

// NewSQLiteStore opens or creates the metadata database at path.
// An empty path creates an in-memory database for testing.
// The persisted format version is verified against CurrentFormatVersion.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dsn := path
	if path == "" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single connection prevents lock contention with modernc.org/sqlite.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -65536",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	s := &SQLiteStore{db: db, path: path}

	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := s.checkFormatVersion(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// initSchema creates the documents, chunks, and store_meta tables.
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS store_meta (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS documents (
		doc_id    TEXT PRIMARY KEY,
		origin    TEXT NOT NULL UNIQUE,
		full_text TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS chunks (
		chunk_id     TEXT PRIMARY KEY,
		doc_id       TEXT NOT NULL REFERENCES documents(doc_id) ON DELETE CASCADE,
		origin       TEXT NOT NULL,
		text         TEXT NOT NULL,
		start_offset INTEGER NOT NULL,
		end_offset   INTEGER NOT NULL,
		heading_path TEXT NOT NULL,
		oversize     INTEGER NOT NULL DEFAULT 0,
		embedding    BLOB
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_doc_id ON chunks(doc_id);
	CREATE INDEX IF NOT EXISTS idx_chunks_origin ON chunks(origin);
	`
	_, err := s.db.Exec(schema)
	return err
}

// checkFormatVersion verifies the persisted layout version, stamping fresh
// stores with the current version.
func (s *SQLiteStore) checkFormatVersion() error {
	stored, err := s.getMetaLocked(MetaKeyFormatVersion)
	if err != nil {
		return err
	}
	if stored == "" {
		return s.setMetaLocked(MetaKeyFormatVersion, strconv.Itoa(CurrentFormatVersion))
	}

	version, err := strconv.Atoi(stored)
	if err != nil {
		return qerrors.New(qerrors.ErrCodeStoreCorrupt,
			"store format version is not a number: "+stored, err)
	}
	if version != CurrentFormatVersion {
		return qerrors.UnsupportedStoreVersionError(version, CurrentFormatVersion)
	}
	return nil
}

// generateDocID derives a stable document ID from the origin.
func generateDocID(origin string) string {
	h := sha256.Sum256([]byte(origin))
	return hex.EncodeToString(h[:])[:16]
}

// SaveDocument upserts a document row and returns its doc ID.
func (s *SQLiteStore) SaveDocument(ctx context.Context, doc chunk.Document) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", fmt.Errorf("store is closed")
	}

	docID := generateDocID(doc.Origin)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents(doc_id, origin, full_text) VALUES (?, ?, ?)
		 ON CONFLICT(doc_id) DO UPDATE SET full_text = excluded.full_text`,
		docID, doc.Origin, doc.Text)
	if err != nil {
		return "", fmt.Errorf("failed to save document %s: %w", doc.Origin, err)
	}
	return docID, nil
}

// GetDocument fetches a document by origin. Returns sql.ErrNoRows wrapped
// if absent.
func (s *SQLiteStore) GetDocument(ctx context.Context, origin string) (*chunk.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	var doc chunk.Document
	err := s.db.QueryRowContext(ctx,
		`SELECT origin, full_text FROM documents WHERE origin = ?`, origin).
		Scan(&doc.Origin, &doc.Text)
	if err != nil {
		return nil, fmt.Errorf("failed to get document %s: %w", origin, err)
	}
	return &doc, nil
}

// SaveChunks upserts chunk rows in a single transaction.
func (s *SQLiteStore) SaveChunks(ctx context.Context, chunks []chunk.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks(chunk_id, doc_id, origin, text, start_offset, end_offset, heading_path, oversize, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chunk_id) DO UPDATE SET
			doc_id = excluded.doc_id,
			origin = excluded.origin,
			text = excluded.text,
			start_offset = excluded.start_offset,
			end_offset = excluded.end_offset,
			heading_path = excluded.heading_path,
			oversize = excluded.oversize,
			embedding = excluded.embedding`)
	if err != nil {
		return fmt.Errorf("failed to prepare chunk statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, ck := range chunks {
		headingPath, err := json.Marshal(ck.HeadingPath)
		if err != nil {
			return fmt.Errorf("failed to encode heading path for %s: %w", ck.ID, err)
		}

		var embedding []byte
		if ck.Embedding != nil {
			embedding = encodeEmbedding(ck.Embedding)
		}

		if _, err := stmt.ExecContext(ctx,
			ck.ID, ck.DocID, ck.Origin, ck.Text,
			ck.StartOffset, ck.EndOffset, string(headingPath),
			boolToInt(ck.Oversize), embedding); err != nil {
			return fmt.Errorf("failed to save chunk %s: %w", ck.ID, err)
		}
	}

	return tx.Commit()
}

// GetChunk fetches a single chunk by ID.
func (s *SQLiteStore) GetChunk(ctx context.Context, id string) (*chunk.Chunk, error) {
	chunks, err := s.GetChunks(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("chunk %s not found", id)
	}
	return &chunks[0], nil
}

// GetChunks fetches chunks by ID in one query. Missing IDs are skipped.
func (s *SQLiteStore) GetChunks(ctx context.Context, ids []string) ([]chunk.Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT chunk_id, doc_id, origin, text, start_offset, end_offset, heading_path, oversize, embedding
		FROM chunks WHERE chunk_id IN (%s)`, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanChunks(rows)
}

// AllChunks returns every chunk in the store, ordered by chunk ID.
func (s *SQLiteStore) AllChunks(ctx context.Context) ([]chunk.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT chunk_id, doc_id, origin, text, start_offset, end_offset, heading_path, oversize, embedding
		FROM chunks ORDER BY chunk_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanChunks(rows)
}

// ChunkIDsByOrigin returns the IDs of all chunks belonging to a document.
func (s *SQLiteStore) ChunkIDsByOrigin(ctx context.Context, origin string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT chunk_id FROM chunks WHERE origin = ? ORDER BY chunk_id`, origin)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunk IDs for %s: %w", origin, err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan chunk ID: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteChunksByOrigin removes a document and its chunks.
func (s *SQLiteStore) DeleteChunksByOrigin(ctx context.Context, origin string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	// Cascade removes the chunks.
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE origin = ?`, origin)
	if err != nil {
		return fmt.Errorf("failed to delete document %s: %w", origin, err)
	}
	return nil
}

// Counts returns the number of documents and chunks.
func (s *SQLiteStore) Counts(ctx context.Context) (documents, chunks int, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, 0, fmt.Errorf("store is closed")
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&documents); err != nil {
		return 0, 0, fmt.Errorf("failed to count documents: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&chunks); err != nil {
		return 0, 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return documents, chunks, nil
}

// GetMeta reads a store_meta value. Returns "" when the key is absent.
func (s *SQLiteStore) GetMeta(key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return "", fmt.Errorf("store is closed")
	}
	return s.getMetaLocked(key)
}

// SetMeta writes a store_meta value.
func (s *SQLiteStore) SetMeta(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}
	return s.setMetaLocked(key, value)
}

func (s *SQLiteStore) getMetaLocked(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM store_meta WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get meta %s: %w", key, err)
	}
	return value, nil
}

func (s *SQLiteStore) setMetaLocked(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO store_meta(key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set meta %s: %w", key, err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// scanChunks converts rows into chunk values.
func scanChunks(rows *sql.Rows) ([]chunk.Chunk, error) {
	var chunks []chunk.Chunk
	for rows.Next() {
		var ck chunk.Chunk
		var headingPath string
		var oversize int
		var embedding []byte

		if err := rows.Scan(&ck.ID, &ck.DocID, &ck.Origin, &ck.Text,
			&ck.StartOffset, &ck.EndOffset, &headingPath, &oversize, &embedding); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}

		if err := json.Unmarshal([]byte(headingPath), &ck.HeadingPath); err != nil {
			return nil, qerrors.New(qerrors.ErrCodeStoreCorrupt,
				"chunk heading path is not valid JSON", err).
				WithDetail("chunk_id", ck.ID)
		}
		ck.Oversize = oversize != 0
		if embedding != nil {
			ck.Embedding = decodeEmbedding(embedding)
		}

		chunks = append(chunks, ck)
	}
	return chunks, rows.Err()
}

// encodeEmbedding packs a float32 vector as little-endian bytes.
func encodeEmbedding(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// decodeEmbedding unpacks a little-endian byte blob into a float32 vector.
func decodeEmbedding(buf []byte) []float32 {
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
