package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanyalayanan/ragcore/config"
)

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0}, []float32{1, 0}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"scale invariant", []float32{2, 0}, []float32{5, 0}, 1},
		{"length mismatch", []float32{1, 0}, []float32{1, 0, 0}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0},
		{"empty", nil, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Cosine(tt.a, tt.b), 1e-9)
		})
	}
}

// countingProvider counts upstream embedding calls.
type countingProvider struct {
	calls int
	err   error
}

func (p *countingProvider) Dimensions() int { return 2 }

func (p *countingProvider) GetEmbedding(ctx context.Context, text string) ([]float32, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return []float32{float32(len(text)), 1}, nil
}

func TestCached_DeduplicatesIdenticalQueries(t *testing.T) {
	inner := &countingProvider{}
	c, err := NewCached(inner, 8)
	require.NoError(t, err)
	ctx := context.Background()

	v1, err := c.GetEmbedding(ctx, "syarat ktp")
	require.NoError(t, err)
	v2, err := c.GetEmbedding(ctx, "syarat ktp")
	require.NoError(t, err)
	assert.Equal(t, v1, v2)
	assert.Equal(t, 1, inner.calls)

	_, err = c.GetEmbedding(ctx, "pertanyaan lain")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestCached_ErrorsAreNotCached(t *testing.T) {
	inner := &countingProvider{err: errors.New("down")}
	c, err := NewCached(inner, 8)
	require.NoError(t, err)

	_, err = c.GetEmbedding(context.Background(), "q")
	require.Error(t, err)

	inner.err = nil
	v, err := c.GetEmbedding(context.Background(), "q")
	require.NoError(t, err)
	assert.NotNil(t, v)
	assert.Equal(t, 2, inner.calls)
}

func TestCached_EvictsBeyondCapacity(t *testing.T) {
	inner := &countingProvider{}
	c, err := NewCached(inner, 2)
	require.NoError(t, err)
	ctx := context.Background()

	_, _ = c.GetEmbedding(ctx, "a")
	_, _ = c.GetEmbedding(ctx, "bb")
	_, _ = c.GetEmbedding(ctx, "ccc") // evicts "a"
	_, _ = c.GetEmbedding(ctx, "a")
	assert.Equal(t, 4, inner.calls)
}

func TestOpenAI_GetEmbedding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/embeddings", r.URL.Path)
		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Input, 1)
		assert.Equal(t, "text-embedding-3-small", req.Model)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data": []map[string]any{
				{"object": "embedding", "index": 0, "embedding": []float64{0.25, -0.5}},
			},
			"model": req.Model,
		})
	}))
	defer srv.Close()

	p := NewOpenAI(config.EmbeddingConfig{Provider: "openai", APIKey: "test", BaseURL: srv.URL})
	v, err := p.GetEmbedding(context.Background(), "syarat ktp")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.25, -0.5}, v)
}

func TestNewFromConfig(t *testing.T) {
	p, err := NewFromConfig(config.EmbeddingConfig{Provider: "openai", Dimensions: 128})
	require.NoError(t, err)
	assert.Equal(t, 128, p.Dimensions())

	_, err = NewFromConfig(config.EmbeddingConfig{Provider: "cohere"})
	assert.Error(t, err)
}
