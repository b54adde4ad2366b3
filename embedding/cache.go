package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cached wraps a Provider with an LRU keyed by content hash, so repeated
// identical queries do not re-embed.
type Cached struct {
	inner Provider
	lru   *lru.Cache[string, []float32]
}

// NewCached wraps the provider; size <= 0 defaults to 1024.
func NewCached(inner Provider, size int) (*Cached, error) {
	if size <= 0 {
		size = 1024
	}
	c, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, err
	}
	return &Cached{inner: inner, lru: c}, nil
}

func (c *Cached) Dimensions() int { return c.inner.Dimensions() }

func (c *Cached) GetEmbedding(ctx context.Context, text string) ([]float32, error) {
	key := contentHash(text)
	if v, ok := c.lru.Get(key); ok {
		return v, nil
	}
	v, err := c.inner.GetEmbedding(ctx, text)
	if err != nil {
		return nil, err
	}
	c.lru.Add(key, v)
	return v, nil
}

func contentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
