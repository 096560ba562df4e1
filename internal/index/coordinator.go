// Package index coordinates the ingest and index-build pipeline: discover
// markdown files, chunk them, embed and persist the chunks, and rebuild the
// retrieval indexes.
package index

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"

	"github.com/quarrydocs/quarry/internal/chunk"
	qerrors "github.com/quarrydocs/quarry/internal/errors"
	"github.com/quarrydocs/quarry/internal/ignore"
	"github.com/quarrydocs/quarry/internal/store"
)

// DefaultMaxFileSize is the largest file the coordinator will ingest.
// Larger files are skipped with a warning.
const DefaultMaxFileSize int64 = 100 * 1024 * 1024

// DefaultIncludeGlobs match the normalized text formats the store accepts.
var DefaultIncludeGlobs = []string{"**/*.md", "**/*.markdown", "**/*.txt"}

// Config configures the coordinator.
type Config struct {
	// IncludeGlobs select files to ingest, relative to the ingest root
	// (doublestar syntax). Defaults to DefaultIncludeGlobs.
	IncludeGlobs []string

	// ExcludeGlobs drop files matched by IncludeGlobs.
	ExcludeGlobs []string

	// MaxFileSize in bytes. Defaults to DefaultMaxFileSize.
	MaxFileSize int64

	// Workers bounds concurrent per-document chunk+insert work (default: 4).
	Workers int

	// ChunkConfig configures the chunker.
	ChunkConfig chunk.Config

	// ShowProgress renders a progress bar on stderr.
	ShowProgress bool

	// DisableIgnoreFiles skips loading .gitignore and .quarryignore
	// from the ingest root. By default their patterns exclude files.
	DisableIgnoreFiles bool
}

// applyDefaults fills zero values with defaults.
func (c Config) applyDefaults() Config {
	if len(c.IncludeGlobs) == 0 {
		c.IncludeGlobs = DefaultIncludeGlobs
	}
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = DefaultMaxFileSize
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	return c
}

// SkippedFile records a document that could not be ingested and why.
type SkippedFile struct {
	Origin string
	Reason string
}

// Report summarizes one ingest run.
type Report struct {
	RunID         string
	FilesScanned  int
	FilesIngested int
	ChunksCreated int
	Skipped       []SkippedFile
	Duration      time.Duration
}

// Coordinator drives ingest and index builds against one store.
type Coordinator struct {
	store   *store.Store
	chunker *chunk.Chunker
	cfg     Config
	logger  *slog.Logger
	mu      sync.Mutex
}

// NewCoordinator creates a coordinator over the given store.
func NewCoordinator(s *store.Store, cfg Config, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.applyDefaults()
	return &Coordinator{
		store:   s,
		chunker: chunk.New(cfg.ChunkConfig),
		cfg:     cfg,
		logger:  logger,
	}
}

// Ingest walks root, chunks every matching file, and inserts the chunks with
// embeddings. Malformed documents are skipped and reported, not fatal;
// embedding provider failures abort the run.
func (c *Coordinator) Ingest(ctx context.Context, root string) (*Report, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	report := &Report{RunID: uuid.NewString()}

	files, err := c.discover(root)
	if err != nil {
		return nil, err
	}
	report.FilesScanned = len(files)

	c.logger.Info("ingest_started",
		slog.String("run_id", report.RunID),
		slog.String("root", root),
		slog.Int("files", len(files)))

	bar := c.newProgressBar(len(files))

	var reportMu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Workers)

	for _, rel := range files {
		g.Go(func() error {
			defer func() { _ = bar.Add(1) }()

			err := c.ingestFile(gctx, root, rel)

			reportMu.Lock()
			defer reportMu.Unlock()
			switch {
			case err == nil:
			case qerrors.GetCode(err) == qerrors.ErrCodeChunking,
				qerrors.GetCode(err) == qerrors.ErrCodeDocumentEmpty:
				// Malformed document: recoverable per-document, skip
				// and report rather than aborting the batch.
				report.Skipped = append(report.Skipped, SkippedFile{Origin: rel, Reason: err.Error()})
				c.logger.Warn("document_skipped",
					slog.String("origin", rel),
					slog.String("error", err.Error()))
				return nil
			default:
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	_ = bar.Finish()

	report.FilesIngested = report.FilesScanned - len(report.Skipped)
	report.ChunksCreated = c.countChunks(ctx)
	report.Duration = time.Since(start)
	sort.Slice(report.Skipped, func(i, j int) bool {
		return report.Skipped[i].Origin < report.Skipped[j].Origin
	})

	c.logger.Info("ingest_finished",
		slog.String("run_id", report.RunID),
		slog.Int("ingested", report.FilesIngested),
		slog.Int("skipped", len(report.Skipped)),
		slog.Duration("duration", report.Duration))
	return report, nil
}

// ingestFile reads, chunks, and inserts a single document. The origin is the
// path relative to the ingest root.
func (c *Coordinator) ingestFile(ctx context.Context, root, rel string) error {
	path := filepath.Join(root, rel)
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", rel, err)
	}

	doc := chunk.Document{Origin: filepath.ToSlash(rel), Text: string(data)}
	chunks, err := c.chunker.Chunk(doc)
	if err != nil {
		return err
	}

	return c.store.Insert(ctx, doc, chunks)
}

// BuildIndex rebuilds the vector and keyword indexes from the persisted
// chunk set.
func (c *Coordinator) BuildIndex(ctx context.Context) error {
	start := time.Now()
	if err := c.store.BuildIndex(ctx); err != nil {
		return err
	}
	c.logger.Info("index_rebuild_finished",
		slog.Duration("duration", time.Since(start)))
	return nil
}

// IngestAndIndex runs a full pipeline: ingest then rebuild.
func (c *Coordinator) IngestAndIndex(ctx context.Context, root string) (*Report, error) {
	report, err := c.Ingest(ctx, root)
	if err != nil {
		return nil, err
	}
	if err := c.BuildIndex(ctx); err != nil {
		return report, err
	}
	return report, nil
}

// discover walks root and returns the sorted relative paths matching the
// configured globs.
func (c *Coordinator) discover(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to stat ingest root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("ingest root %s is not a directory", root)
	}

	var ignorer *ignore.Matcher
	if !c.cfg.DisableIgnoreFiles {
		ignorer, err = ignore.Load(root)
		if err != nil {
			return nil, err
		}
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rel != "." && ignorer.Match(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}

		if ignorer.Match(rel, false) || !c.matches(rel) {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return err
		}
		if fi.Size() > c.cfg.MaxFileSize {
			c.logger.Warn("file_too_large",
				slog.String("path", rel),
				slog.Int64("size", fi.Size()),
				slog.Int64("max", c.cfg.MaxFileSize))
			return nil
		}

		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}

	sort.Strings(files)
	return files, nil
}

// matches applies include then exclude globs to a slash-separated relative
// path.
func (c *Coordinator) matches(rel string) bool {
	included := false
	for _, pattern := range c.cfg.IncludeGlobs {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			included = true
			break
		}
	}
	if !included {
		return false
	}
	for _, pattern := range c.cfg.ExcludeGlobs {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return false
		}
	}
	return true
}

// newProgressBar returns a visible or silent progress bar.
func (c *Coordinator) newProgressBar(total int) *progressbar.ProgressBar {
	if !c.cfg.ShowProgress {
		return progressbar.DefaultSilent(int64(total))
	}
	return progressbar.Default(int64(total), "ingesting")
}

// countChunks reads the chunk count for reporting, best effort.
func (c *Coordinator) countChunks(ctx context.Context) int {
	stats, err := c.store.Stats(ctx)
	if err != nil {
		return 0
	}
	return stats.Chunks
}
