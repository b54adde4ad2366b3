package embedding

import (
	"context"
	"fmt"

	"github.com/tanyalayanan/ragcore/config"
)

// Provider produces a dense embedding for a query string. Corpus chunk
// embeddings are precomputed by ingestion and never requested here.
type Provider interface {
	GetEmbedding(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// NewFromConfig builds the configured provider, wrapped in an LRU cache.
func NewFromConfig(cfg config.EmbeddingConfig) (Provider, error) {
	var p Provider
	switch cfg.Provider {
	case "openai":
		p = NewOpenAI(cfg)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
	return NewCached(p, cfg.CacheSize)
}
