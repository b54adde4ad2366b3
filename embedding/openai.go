package embedding

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/tanyalayanan/ragcore/config"
)

// OpenAI embeds queries through an OpenAI-compatible embeddings endpoint.
type OpenAI struct {
	client openai.Client
	model  string
	dims   int
}

// NewOpenAI builds the provider from config. BaseURL may point at any
// OpenAI-compatible server.
func NewOpenAI(cfg config.EmbeddingConfig) *OpenAI {
	opts := []option.RequestOption{}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.Model
	if model == "" {
		model = "text-embedding-3-small"
	}
	return &OpenAI{
		client: openai.NewClient(opts...),
		model:  model,
		dims:   cfg.Dimensions,
	}
}

func (p *OpenAI) Dimensions() int { return p.dims }

func (p *OpenAI) GetEmbedding(ctx context.Context, text string) ([]float32, error) {
	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: []string{text},
		},
		Model: openai.EmbeddingModel(p.model),
	}
	if p.dims > 0 {
		params.Dimensions = openai.Int(int64(p.dims))
	}
	resp, err := p.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("embedding request: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embedding response contained no data")
	}
	src := resp.Data[0].Embedding
	out := make([]float32, len(src))
	for i, v := range src {
		out[i] = float32(v)
	}
	return out, nil
}
