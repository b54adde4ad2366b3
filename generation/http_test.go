package generation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanyalayanan/ragcore/common/httpx"
	"github.com/tanyalayanan/ragcore/config"
)

func TestHTTPBackend_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Prompt    string `json:"prompt"`
			System    string `json:"system"`
			MaxTokens int    `json:"max_tokens"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "pertanyaan", req.Prompt)
		assert.Equal(t, 128, req.MaxTokens)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"text": "jawaban", "prompt_tokens": 12, "completion_tokens": 4,
		})
	}))
	defer srv.Close()

	b := &HTTPBackend{Endpoint: srv.URL, Client: httpx.NewFromConfig(nil, nil)}
	res, err := b.Generate(context.Background(), Request{Prompt: "pertanyaan", System: "sistem", MaxTokens: 128})
	require.NoError(t, err)
	assert.Equal(t, "jawaban", res.Text)
	assert.Equal(t, 16, res.Usage.TotalTokens)
}

func TestHTTPBackend_ServerErrorMakesOneWireRequest(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	// Client-level retries must not stack under the orchestrator's retry, so
	// one Generate call is exactly one wire request.
	client := httpx.NewFromConfig(&config.HTTPClientConfig{Retry: 3, BackoffMinMs: 1, BackoffMaxMs: 2}, nil)
	b := &HTTPBackend{Endpoint: srv.URL, Client: client}
	_, err := b.Generate(context.Background(), Request{Prompt: "p"})
	require.Error(t, err)
	assert.True(t, IsTransient(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestHTTPBackend_RateLimitIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	b := &HTTPBackend{Endpoint: srv.URL, Client: httpx.NewFromConfig(nil, nil)}
	_, err := b.Generate(context.Background(), Request{Prompt: "p"})
	require.Error(t, err)
	assert.True(t, IsTransient(err))
}

func TestHTTPBackend_ClientErrorIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	b := &HTTPBackend{Endpoint: srv.URL, Client: httpx.NewFromConfig(nil, nil)}
	_, err := b.Generate(context.Background(), Request{Prompt: "p"})
	require.Error(t, err)
	assert.False(t, IsTransient(err))
}

func TestHTTPBackend_EmptyTextIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"text": ""})
	}))
	defer srv.Close()

	b := &HTTPBackend{Endpoint: srv.URL, Client: httpx.NewFromConfig(nil, nil)}
	_, err := b.Generate(context.Background(), Request{Prompt: "p"})
	require.Error(t, err)
	assert.False(t, IsTransient(err))
}
