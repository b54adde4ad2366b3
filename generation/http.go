package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/tanyalayanan/ragcore/common/httpx"
	"github.com/tanyalayanan/ragcore/config"
	"github.com/tanyalayanan/ragcore/schema"
)

// HTTPBackend calls a plain JSON generation endpoint. Useful for self-hosted
// models behind a thin shim and for the mock backend under mocks/.
//
// Request:  {"prompt": "...", "system": "...", "max_tokens": 512}
// Response: {"text": "...", "prompt_tokens": 10, "completion_tokens": 42}
type HTTPBackend struct {
	Endpoint string
	Client   *httpx.Client
}

// NewHTTPBackend builds the backend from tier config.
func NewHTTPBackend(cfg config.TierConfig, client *httpx.Client) *HTTPBackend {
	return &HTTPBackend{Endpoint: cfg.Endpoint, Client: client}
}

type httpGenRequest struct {
	Prompt    string `json:"prompt"`
	System    string `json:"system,omitempty"`
	MaxTokens int    `json:"max_tokens,omitempty"`
}

type httpGenResponse struct {
	Text             string `json:"text"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
}

func (b *HTTPBackend) Generate(ctx context.Context, req Request) (*Result, error) {
	if b.Client == nil {
		return nil, fmt.Errorf("http backend client not configured")
	}
	bs, _ := json.Marshal(httpGenRequest{
		Prompt:    req.Prompt,
		System:    req.System,
		MaxTokens: req.MaxTokens,
	})
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.Endpoint, bytes.NewReader(bs))
	if err != nil {
		return nil, err
	}
	hreq.Header.Set("Content-Type", "application/json")

	// The orchestrator owns the retry policy for generation calls, so the
	// client-level retry is bypassed here.
	resp, err := b.Client.DoOnce(hreq)
	if err != nil {
		return nil, Transient(err)
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, Transient(fmt.Errorf("generation http status %d", resp.StatusCode))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("generation http status %d", resp.StatusCode)
	}

	var out httpGenResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, Transient(fmt.Errorf("decode generation response: %w", err))
	}
	if out.Text == "" {
		return nil, fmt.Errorf("generation response contained no text")
	}
	return &Result{
		Text: out.Text,
		Usage: schema.TokenUsage{
			PromptTokens:     out.PromptTokens,
			CompletionTokens: out.CompletionTokens,
			TotalTokens:      out.PromptTokens + out.CompletionTokens,
		},
	}, nil
}
