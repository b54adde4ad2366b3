package generation

import (
	"context"
	"errors"
	"fmt"

	"github.com/tanyalayanan/ragcore/schema"
)

// Request is one assembled generation call.
type Request struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Result is a successful generation.
type Result struct {
	Text  string
	Usage schema.TokenUsage
}

// Backend is one configured generation tier endpoint. Errors should be
// wrapped with Transient when a later retry or another tier might succeed.
type Backend interface {
	Generate(ctx context.Context, req Request) (*Result, error)
}

type transientError struct {
	err error
}

func (e *transientError) Error() string { return fmt.Sprintf("transient: %v", e.err) }
func (e *transientError) Unwrap() error { return e.err }

// Transient wraps an error as retryable (timeouts, 429s, 5xx).
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether the error chain contains a transient marker.
func IsTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}
