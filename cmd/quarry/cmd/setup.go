package cmd

import (
	"context"
	"log/slog"
	"os"

	"github.com/quarrydocs/quarry/internal/chunk"
	"github.com/quarrydocs/quarry/internal/config"
	"github.com/quarrydocs/quarry/internal/embed"
	"github.com/quarrydocs/quarry/internal/index"
	"github.com/quarrydocs/quarry/internal/logging"
	"github.com/quarrydocs/quarry/internal/search"
	"github.com/quarrydocs/quarry/internal/store"
)

// loadConfig resolves configuration from --config or ./quarry.yaml.
func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	return config.Load(".")
}

// newLogger builds the logger the configuration asks for. File logging goes
// through the rotating writer; otherwise logs go to stderr so stdout stays
// clean for command output and the MCP protocol.
func newLogger(cfg *config.Config) (*slog.Logger, func(), error) {
	level := cfg.Logging.Level
	if debugMode {
		level = "debug"
	}

	if cfg.Logging.File != "" {
		lc := logging.DefaultConfig()
		lc.Level = level
		lc.FilePath = cfg.Logging.File
		lc.WriteToStderr = false
		return logging.Setup(lc)
	}

	opts := &slog.HandlerOptions{Level: logging.ParseLevel(level)}
	var handler slog.Handler
	if cfg.Logging.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	return slog.New(handler), func() {}, nil
}

// newEmbedder creates the configured embedding provider. The --offline flag
// forces static embeddings.
func newEmbedder(ctx context.Context, cfg *config.Config) (embed.Embedder, error) {
	provider := embed.ProviderType(cfg.Embeddings.Provider)
	if offline {
		provider = embed.ProviderStatic
	}
	return embed.NewEmbedder(ctx, provider, cfg.Embeddings.Model)
}

// openStore opens the store at the configured directory with the configured
// embedder. The caller owns the returned store; Close releases the embedder
// as well.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*store.Store, error) {
	embedder, err := newEmbedder(ctx, cfg)
	if err != nil {
		return nil, err
	}

	s, err := store.Open(ctx, cfg.Store.Dir, embedder, store.Options{
		ExactVectorSearch: cfg.Store.ExactVectorSearch,
		Logger:            logger,
	})
	if err != nil {
		_ = embedder.Close()
		return nil, err
	}
	return s, nil
}

// chunkConfigFrom maps the chunker config section.
func chunkConfigFrom(cfg *config.Config) chunk.Config {
	return chunk.Config{
		TargetChunkSize:       cfg.Chunker.TargetChunkSize,
		OverlapRatio:          cfg.Chunker.OverlapRatio,
		BoundaryHeadingLevels: cfg.BoundaryLevelSet(),
	}
}

// searchConfigFrom maps the search config section.
func searchConfigFrom(cfg *config.Config) search.Config {
	return search.Config{
		DefaultTopK: cfg.Search.DefaultTopK,
		MaxTopK:     cfg.Search.MaxTopK,
		Weights: search.Weights{
			BM25:     cfg.Search.BM25Weight,
			Semantic: cfg.Search.SemanticWeight,
		},
		RRFConstant:  cfg.Search.RRFConstant,
		QueryTimeout: cfg.Search.QueryTimeout,
	}
}

// coordinatorConfigFrom maps the ingest config section.
func coordinatorConfigFrom(cfg *config.Config, showProgress bool) index.Config {
	return index.Config{
		IncludeGlobs: cfg.Ingest.Include,
		ExcludeGlobs: cfg.Ingest.Exclude,
		MaxFileSize:  cfg.Ingest.MaxFileSize,
		Workers:      cfg.Ingest.Workers,
		ChunkConfig:  chunkConfigFrom(cfg),
		ShowProgress: showProgress,
	}
}
