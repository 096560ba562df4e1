// Package config loads the quarry YAML configuration with defaults,
// QUARRY_* environment overrides, and validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	qerrors "github.com/quarrydocs/quarry/internal/errors"
)

// DefaultFileName is the config file looked up in the store directory.
const DefaultFileName = "quarry.yaml"

// Config is the complete quarry configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store"`
	Chunker    ChunkerConfig    `yaml:"chunker"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Search     SearchConfig     `yaml:"search"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// StoreConfig configures the persistent store.
type StoreConfig struct {
	// Dir is the store directory (default: .quarry).
	Dir string `yaml:"dir"`

	// ExactVectorSearch uses brute-force ranking instead of HNSW.
	ExactVectorSearch bool `yaml:"exact_vector_search"`
}

// ChunkerConfig configures document chunking.
type ChunkerConfig struct {
	// TargetChunkSize is the target chunk size in characters (default: 1600).
	TargetChunkSize int `yaml:"target_chunk_size"`

	// OverlapRatio is the overlap between consecutive chunks as a fraction
	// of the target size (default: 0.5).
	OverlapRatio float64 `yaml:"overlap_ratio"`

	// BoundaryHeadingLevels are heading levels that force a segment break
	// (default: [1, 2]).
	BoundaryHeadingLevels []int `yaml:"boundary_heading_levels"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider selects the embedder: "ollama" or "static" (default: ollama).
	Provider string `yaml:"provider"`

	// Model is the embedding model name (default: nomic-embed-text).
	Model string `yaml:"model"`

	// OllamaHost is the Ollama API endpoint (default: http://localhost:11434).
	OllamaHost string `yaml:"ollama_host"`

	// BatchSize is the embedding request batch size (default: 32).
	BatchSize int `yaml:"batch_size"`

	// Timeout bounds a single embedding request (default: 60s).
	Timeout time.Duration `yaml:"timeout"`

	// MaxRetries is the retry budget for transient provider failures
	// (default: 3).
	MaxRetries int `yaml:"max_retries"`

	// CacheSize is the query-embedding LRU size; 0 disables the cache
	// (default: 1000).
	CacheSize int `yaml:"cache_size"`
}

// SearchConfig configures hybrid retrieval.
type SearchConfig struct {
	// BM25Weight and SemanticWeight must sum to 1.0.
	BM25Weight     float64 `yaml:"bm25_weight"`
	SemanticWeight float64 `yaml:"semantic_weight"`

	// RRFConstant is the fusion smoothing parameter k (default: 60).
	RRFConstant int `yaml:"rrf_constant"`

	// DefaultTopK and MaxTopK bound result counts (defaults: 10, 100).
	DefaultTopK int `yaml:"default_top_k"`
	MaxTopK     int `yaml:"max_top_k"`

	// QueryTimeout bounds a retrieval call (default: 5s).
	QueryTimeout time.Duration `yaml:"query_timeout"`
}

// IngestConfig configures document discovery.
type IngestConfig struct {
	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude"`

	// MaxFileSize in bytes (default: 100MB).
	MaxFileSize int64 `yaml:"max_file_size"`

	// Workers bounds concurrent per-document ingest work (default: 4).
	Workers int `yaml:"workers"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level: debug, info, warn, error (default: info).
	Level string `yaml:"level"`

	// Format: json or text (default: json).
	Format string `yaml:"format"`

	// File is an optional log file path; empty logs to stderr.
	File string `yaml:"file"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Dir: ".quarry",
		},
		Chunker: ChunkerConfig{
			TargetChunkSize:       1600,
			OverlapRatio:          0.5,
			BoundaryHeadingLevels: []int{1, 2},
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "ollama",
			Model:      "nomic-embed-text",
			OllamaHost: "http://localhost:11434",
			BatchSize:  32,
			Timeout:    60 * time.Second,
			MaxRetries: 3,
			CacheSize:  1000,
		},
		Search: SearchConfig{
			BM25Weight:     0.35,
			SemanticWeight: 0.65,
			RRFConstant:    60,
			DefaultTopK:    10,
			MaxTopK:        100,
			QueryTimeout:   5 * time.Second,
		},
		Ingest: IngestConfig{
			Include:     []string{"**/*.md", "**/*.markdown", "**/*.txt"},
			MaxFileSize: 100 * 1024 * 1024,
			Workers:     4,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads configuration for a working directory: defaults, then
// <dir>/quarry.yaml if present, then QUARRY_* environment overrides,
// then validation.
func Load(dir string) (*Config, error) {
	cfg := Default()

	path := filepath.Join(dir, DefaultFileName)
	if _, err := os.Stat(path); err == nil {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads configuration from an explicit file path. The file must
// exist.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.loadYAML(path); err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadYAML merges a YAML file over the current values.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return qerrors.New(qerrors.ErrCodeConfigNotFound,
			fmt.Sprintf("cannot read config file %s", path), err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return qerrors.New(qerrors.ErrCodeConfigInvalid,
			fmt.Sprintf("cannot parse config file %s", path), err).
			WithSuggestion("check the YAML syntax")
	}
	return nil
}

// applyEnvOverrides applies QUARRY_* environment variable overrides.
// Environment always wins over file values.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("QUARRY_STORE_DIR"); v != "" {
		c.Store.Dir = v
	}
	if v := os.Getenv("QUARRY_EMBEDDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("QUARRY_EMBED_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("QUARRY_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
	}
	if v := os.Getenv("QUARRY_BM25_WEIGHT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Search.BM25Weight = f
		}
	}
	if v := os.Getenv("QUARRY_SEMANTIC_WEIGHT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Search.SemanticWeight = f
		}
	}
	if v := os.Getenv("QUARRY_RRF_CONSTANT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Search.RRFConstant = n
		}
	}
	if v := os.Getenv("QUARRY_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks configuration consistency.
func (c *Config) Validate() error {
	if c.Chunker.TargetChunkSize <= 0 {
		return invalid("chunker.target_chunk_size must be positive")
	}
	if c.Chunker.OverlapRatio < 0 || c.Chunker.OverlapRatio >= 1 {
		return invalid("chunker.overlap_ratio must be in [0, 1)")
	}
	for _, level := range c.Chunker.BoundaryHeadingLevels {
		if level < 1 || level > 6 {
			return invalid("chunker.boundary_heading_levels entries must be 1-6")
		}
	}
	if c.Embeddings.Provider != "ollama" && c.Embeddings.Provider != "static" {
		return invalid("embeddings.provider must be ollama or static")
	}
	if c.Embeddings.BatchSize <= 0 {
		return invalid("embeddings.batch_size must be positive")
	}

	weightSum := c.Search.BM25Weight + c.Search.SemanticWeight
	if weightSum < 0.999 || weightSum > 1.001 {
		return invalid(fmt.Sprintf("search weights must sum to 1.0, got %.3f", weightSum))
	}
	if c.Search.DefaultTopK <= 0 || c.Search.MaxTopK < c.Search.DefaultTopK {
		return invalid("search.default_top_k must be positive and <= search.max_top_k")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return invalid("logging.level must be debug, info, warn, or error")
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return invalid("logging.format must be json or text")
	}
	return nil
}

// BoundaryLevelSet converts the configured heading levels to the set form
// the chunker takes.
func (c *Config) BoundaryLevelSet() map[int]bool {
	set := make(map[int]bool, len(c.Chunker.BoundaryHeadingLevels))
	for _, level := range c.Chunker.BoundaryHeadingLevels {
		set[level] = true
	}
	return set
}

// WriteYAML writes the configuration to a file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func invalid(message string) error {
	return qerrors.New(qerrors.ErrCodeConfigInvalid, message, nil)
}
