package httpx

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanyalayanan/ragcore/config"
)

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewFromConfig(&config.HTTPClientConfig{Retry: 1, BackoffMinMs: 1, BackoffMaxMs: 2}, nil)
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestClient_DoOnceNeverRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewFromConfig(&config.HTTPClientConfig{Retry: 3, BackoffMinMs: 1, BackoffMaxMs: 2}, nil)
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := c.DoOnce(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "single attempt even with client retry configured")
}

func TestClient_ClientErrorsAreNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewFromConfig(&config.HTTPClientConfig{Retry: 3, BackoffMinMs: 1, BackoffMaxMs: 2}, nil)
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "4xx responses are returned to the caller untouched")
}

func TestClient_HostAllowlist(t *testing.T) {
	c := NewFromConfig(&config.HTTPClientConfig{HostAllowlist: []string{"api.example.com", "*.internal"}}, nil)

	req, _ := http.NewRequest(http.MethodGet, "https://evil.example.org/x", nil)
	_, err := c.Do(req)
	assert.ErrorIs(t, err, ErrHostNotAllowed)

	assert.True(t, c.allowed("https://api.example.com/v1"))
	assert.True(t, c.allowed("https://svc.internal/v1"))
	assert.False(t, c.allowed("https://api.example.com.evil.org/v1"))
}

func TestClient_CircuitOpensAfterConsecutiveFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewFromConfig(&config.HTTPClientConfig{
		Retry: 0, BackoffMinMs: 1, BackoffMaxMs: 2,
		MaxConsecutiveFailures: 2, CircuitOpenSeconds: 60,
	}, nil)

	for i := 0; i < 2; i++ {
		req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
		resp, err := c.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	_, err := c.Do(req)
	assert.ErrorIs(t, err, ErrCircuitOpen)
}
