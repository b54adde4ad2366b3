package generation

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/tanyalayanan/ragcore/metrics"
	"github.com/tanyalayanan/ragcore/quota"
	"github.com/tanyalayanan/ragcore/schema"
)

// ErrUnavailable is returned when every tier is quota-exhausted or failed.
// The caller surfaces it; the orchestrator never fabricates an answer.
var ErrUnavailable = errors.New("all generation tiers exhausted or failed")

// Tier is one generation backend in the priority-ordered fallback chain.
type Tier struct {
	ID      string
	Backend Backend
	Counter *quota.Counter
	Timeout time.Duration
	// MaxTokens caps the completion when the request leaves it unset.
	MaxTokens int
}

// Outcome is a successful dispatch plus its audit trail.
type Outcome struct {
	Text     string
	TierID   string
	Usage    schema.TokenUsage
	Attempts []schema.GenerationAttempt
}

// Orchestrator iterates tiers in priority order: quota-exhausted tiers are
// skipped without counter movement, transient failures get at most one
// backoff retry, and the first success returns immediately so a request can
// never consume quota on two tiers.
type Orchestrator struct {
	tiers  []Tier
	logger *zap.Logger

	// RetryBackoff is the wait before the single transient retry.
	RetryBackoff time.Duration
	// EstimateUsage fills token usage when a backend reports none.
	EstimateUsage func(prompt, completion string) schema.TokenUsage
}

// NewOrchestrator wires the tier chain; order is priority order.
func NewOrchestrator(tiers []Tier, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		tiers:        tiers,
		logger:       logger,
		RetryBackoff: 200 * time.Millisecond,
	}
}

// Tiers exposes the configured chain (for usage reporting).
func (o *Orchestrator) Tiers() []Tier { return o.tiers }

// Dispatch tries each tier in order until one succeeds. The returned
// Outcome's Attempts always carry the full audit trail; on total failure the
// attempts are returned alongside ErrUnavailable.
func (o *Orchestrator) Dispatch(ctx context.Context, req Request) (*Outcome, []schema.GenerationAttempt, error) {
	var attempts []schema.GenerationAttempt

	for _, tier := range o.tiers {
		if err := ctx.Err(); err != nil {
			return nil, attempts, err
		}

		allowed, err := tier.Counter.Allow(ctx)
		if err != nil {
			o.logger.Error("quota check failed", zap.String("tier", tier.ID), zap.Error(err))
			attempts = append(attempts, attempt(tier.ID, schema.AttemptFatalError, schema.TokenUsage{}, 0, err))
			metrics.IncTierAttempt(tier.ID, string(schema.AttemptFatalError))
			continue
		}
		if !allowed {
			o.logger.Info("tier quota exhausted, skipping", zap.String("tier", tier.ID))
			attempts = append(attempts, attempt(tier.ID, schema.AttemptQuotaExceeded, schema.TokenUsage{}, 0, nil))
			metrics.IncTierAttempt(tier.ID, string(schema.AttemptQuotaExceeded))
			continue
		}

		result, latency, genErr := o.callWithRetry(ctx, tier, req)
		if genErr == nil {
			usage := result.Usage
			if usage.TotalTokens == 0 && o.EstimateUsage != nil {
				usage = o.EstimateUsage(req.Prompt, result.Text)
			}
			// The call fully completed: record it. A call aborted by the
			// request context never reaches this point, so cancelled calls
			// leave the counters untouched.
			if err := tier.Counter.Record(ctx, usage.TotalTokens); err != nil {
				o.logger.Error("quota record failed", zap.String("tier", tier.ID), zap.Error(err))
			}
			attempts = append(attempts, attempt(tier.ID, schema.AttemptSuccess, usage, latency, nil))
			metrics.IncTierAttempt(tier.ID, string(schema.AttemptSuccess))
			o.logger.Info("generation succeeded",
				zap.String("tier", tier.ID),
				zap.Int("total_tokens", usage.TotalTokens),
				zap.Duration("latency", latency))
			return &Outcome{Text: result.Text, TierID: tier.ID, Usage: usage, Attempts: attempts}, attempts, nil
		}

		if ctx.Err() != nil {
			// Request-level timeout or cancel: discard, no partial credit.
			return nil, attempts, ctx.Err()
		}

		status := schema.AttemptFatalError
		if IsTransient(genErr) {
			status = schema.AttemptTransientError
		}
		attempts = append(attempts, attempt(tier.ID, status, schema.TokenUsage{}, latency, genErr))
		metrics.IncTierAttempt(tier.ID, string(status))
		o.logger.Warn("tier failed, trying next",
			zap.String("tier", tier.ID), zap.String("status", string(status)), zap.Error(genErr))
	}

	return nil, attempts, ErrUnavailable
}

// callWithRetry attempts the backend with the tier timeout and at most one
// backoff retry on a transient classification.
func (o *Orchestrator) callWithRetry(ctx context.Context, tier Tier, req Request) (*Result, time.Duration, error) {
	start := time.Now()
	result, err := o.call(ctx, tier, req)
	if err == nil || !IsTransient(err) || ctx.Err() != nil {
		return result, time.Since(start), err
	}

	select {
	case <-ctx.Done():
		return nil, time.Since(start), err
	case <-time.After(o.RetryBackoff):
	}

	result, retryErr := o.call(ctx, tier, req)
	if retryErr != nil {
		return nil, time.Since(start), retryErr
	}
	return result, time.Since(start), nil
}

func (o *Orchestrator) call(ctx context.Context, tier Tier, req Request) (*Result, error) {
	if req.MaxTokens == 0 {
		req.MaxTokens = tier.MaxTokens
	}
	callCtx := ctx
	if tier.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, tier.Timeout)
		defer cancel()
	}
	return tier.Backend.Generate(callCtx, req)
}

func attempt(tierID string, status schema.AttemptStatus, usage schema.TokenUsage, latency time.Duration, err error) schema.GenerationAttempt {
	a := schema.GenerationAttempt{TierID: tierID, Status: status, Usage: usage, Latency: latency}
	if err != nil {
		a.Err = err.Error()
	}
	return a
}
