package embed

import (
	"context"
	"os"
	"strings"

	qerrors "github.com/quarrydocs/quarry/internal/errors"
)

// ProviderType represents an embedding provider
type ProviderType string

const (
	// ProviderOllama uses the Ollama API for embeddings (default)
	ProviderOllama ProviderType = "ollama"

	// ProviderStatic uses hash-based embeddings (no external service)
	ProviderStatic ProviderType = "static"
)

// NewEmbedder creates an embedder based on provider type.
// The QUARRY_EMBEDDER environment variable overrides the provider:
//   - "ollama": Use OllamaEmbedder
//   - "static": Use StaticEmbedder
//
// Query embedding caching is enabled by default. Set QUARRY_EMBED_CACHE=false
// to disable it.
func NewEmbedder(ctx context.Context, provider ProviderType, model string) (Embedder, error) {
	if env := os.Getenv("QUARRY_EMBEDDER"); env != "" {
		provider = ProviderType(strings.ToLower(env))
	}

	var embedder Embedder
	var err error

	switch provider {
	case ProviderStatic:
		embedder = NewStaticEmbedder()

	case ProviderOllama, "":
		cfg := DefaultOllamaConfig()
		if model != "" {
			cfg.Model = model
		}
		if host := os.Getenv("QUARRY_OLLAMA_HOST"); host != "" {
			cfg.Host = host
		}
		embedder, err = NewOllamaEmbedder(ctx, cfg)

	default:
		return nil, qerrors.New(qerrors.ErrCodeConfigInvalid,
			"unknown embedding provider: "+string(provider), nil).
			WithSuggestion("use 'ollama' or 'static'")
	}

	if err != nil {
		return nil, err
	}

	if !isCacheDisabled() {
		embedder = NewCachedEmbedder(embedder, DefaultEmbeddingCacheSize)
	}

	return embedder, nil
}

// isCacheDisabled checks if the embedding cache is disabled via environment.
func isCacheDisabled() bool {
	v := strings.ToLower(os.Getenv("QUARRY_EMBED_CACHE"))
	return v == "false" || v == "0" || v == "off" || v == "disabled"
}
