package generation

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/tanyalayanan/ragcore/config"
	"github.com/tanyalayanan/ragcore/schema"
)

// OpenAIBackend calls an OpenAI-compatible chat completions endpoint. Most
// tiers in practice are this provider with different base URLs and models
// (hosted models, local gateways).
type OpenAIBackend struct {
	client      openai.Client
	model       string
	temperature float64
}

// NewOpenAIBackend builds the backend from tier config.
func NewOpenAIBackend(cfg config.TierConfig) *OpenAIBackend {
	opts := []option.RequestOption{}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAIBackend{
		client:      openai.NewClient(opts...),
		model:       cfg.Model,
		temperature: cfg.Temperature,
	}
}

func (b *OpenAIBackend) Generate(ctx context.Context, req Request) (*Result, error) {
	messages := []openai.ChatCompletionMessageParamUnion{}
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Messages: messages,
		Model:    openai.ChatModel(b.model),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if b.temperature > 0 {
		params.Temperature = openai.Float(b.temperature)
	}

	resp, err := b.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, classifyOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, Transient(fmt.Errorf("completion response contained no choices"))
	}
	return &Result{
		Text: resp.Choices[0].Message.Content,
		Usage: schema.TokenUsage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}, nil
}

// classifyOpenAIError maps API failures onto the transient/fatal taxonomy.
// Rate limits and server errors may succeed on another tier; auth and
// request errors will not.
func classifyOpenAIError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return Transient(err)
	}
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		if apierr.StatusCode == 429 || apierr.StatusCode >= 500 {
			return Transient(err)
		}
		return err
	}
	// Transport-level failure with no HTTP status.
	return Transient(err)
}
