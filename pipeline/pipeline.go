package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tanyalayanan/ragcore/cache"
	"github.com/tanyalayanan/ragcore/config"
	"github.com/tanyalayanan/ragcore/generation"
	"github.com/tanyalayanan/ragcore/guardrail"
	"github.com/tanyalayanan/ragcore/metrics"
	"github.com/tanyalayanan/ragcore/prompt"
	"github.com/tanyalayanan/ragcore/retriever"
	"github.com/tanyalayanan/ragcore/schema"
)

const noContextAnswer = "Maaf, kami tidak menemukan informasi yang relevan untuk pertanyaan Anda " +
	"dalam basis pengetahuan layanan publik kami."

// Request is one question at the pipeline boundary.
type Request struct {
	Question string
	TopK     int
}

// Response is the assembled answer contract.
type Response struct {
	Answer         string                     `json:"answer"`
	Sources        []schema.Source            `json:"sources"`
	Confidence     float64                    `json:"confidence"`
	LatencySeconds float64                    `json:"latency_seconds"`
	RequestID      string                     `json:"request_id"`
	CacheHit       bool                       `json:"cache_hit,omitempty"`
	Guardrail      string                     `json:"guardrail,omitempty"`
	TierUsed       string                     `json:"tier_used,omitempty"`
	Attempts       []schema.GenerationAttempt `json:"-"`
}

// Pipeline runs the serving stages strictly in sequence for each request:
// Guardrail -> Cache -> Hybrid Retrieve -> Prompt -> Generation -> Cache.set
// -> Assembly. Stages share no mutable state beyond the cache and quota
// counters, so concurrent requests need no coordination here.
type Pipeline struct {
	Guard    *guardrail.Classifier
	Cache    *cache.Semantic // nil disables semantic caching
	Hybrid   *retriever.Hybrid
	Builder  *prompt.Builder
	Orch     *generation.Orchestrator
	Guardcfg config.GuardrailConfig
	Retcfg   config.RetrievalConfig
	Logger   *zap.Logger
}

// Ask answers one question. Only a cancelled context or total generation
// exhaustion return an error; everything else is recovered into a response.
func (p *Pipeline) Ask(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	requestID := uuid.NewString()
	logger := p.logger().With(zap.String("request_id", requestID))

	topK := req.TopK
	if topK <= 0 {
		topK = p.Retcfg.TopK
	}

	// Stage 1: guardrail. Disallowed and OutOfScope stop here at zero cost;
	// Ambiguous stops or passes through per configuration.
	verdict := p.Guard.Classify(req.Question)
	if verdict.ShortCircuits(p.Guardcfg.AmbiguousPassthrough) {
		logger.Info("guardrail short-circuit",
			zap.String("classification", string(verdict.Classification)),
			zap.String("rule", verdict.MatchedRule))
		metrics.ObserveRequest("guardrail", start)
		return &Response{
			Answer:         verdict.Clarification,
			Sources:        []schema.Source{},
			Confidence:     0,
			LatencySeconds: time.Since(start).Seconds(),
			RequestID:      requestID,
			Guardrail:      string(verdict.Classification),
		}, nil
	}
	penalty := 0.0
	if verdict.Classification == guardrail.Ambiguous {
		penalty = p.Guardcfg.ConfidencePenalty
		logger.Info("ambiguous query passed through", zap.String("rule", verdict.MatchedRule))
	}

	// Stage 2: semantic cache.
	if p.Cache != nil {
		if entry, ok := p.Cache.Get(ctx, req.Question); ok {
			logger.Info("semantic cache hit",
				zap.String("cached_query", entry.QueryText),
				zap.Int("hit_count", entry.HitCount))
			metrics.ObserveRequest("cache_hit", start)
			return &Response{
				Answer:         entry.Answer,
				Sources:        entry.Sources,
				Confidence:     applyPenalty(maxSourceScore(entry.Sources), penalty),
				LatencySeconds: time.Since(start).Seconds(),
				RequestID:      requestID,
				CacheHit:       true,
				Guardrail:      passthroughLabel(verdict),
			}, nil
		}
	}

	// Stage 3: hybrid retrieval.
	result, err := p.Hybrid.Retrieve(ctx, req.Question, topK, p.Retcfg.AlphaValue())
	if err != nil {
		metrics.ObserveRequest("cancelled", start)
		return nil, err
	}
	if len(result.Candidates) == 0 {
		// Nothing to ground an answer on; refusing beats fabricating.
		logger.Info("no candidates retrieved", zap.Bool("degraded", result.Degraded))
		metrics.ObserveRequest("no_context", start)
		return &Response{
			Answer:         noContextAnswer,
			Sources:        []schema.Source{},
			Confidence:     0,
			LatencySeconds: time.Since(start).Seconds(),
			RequestID:      requestID,
			Guardrail:      passthroughLabel(verdict),
		}, nil
	}

	// Stage 4+5: prompt assembly and tiered generation.
	promptText := p.Builder.Build(req.Question, result.Candidates)
	outcome, attempts, err := p.Orch.Dispatch(ctx, generation.Request{
		System: p.Builder.System,
		Prompt: promptText,
	})
	if err != nil {
		if ctx.Err() != nil {
			metrics.ObserveRequest("cancelled", start)
			return nil, ctx.Err()
		}
		logger.Error("all generation tiers failed",
			zap.Int("attempts", len(attempts)), zap.Error(err))
		metrics.ObserveRequest("unavailable", start)
		return nil, fmt.Errorf("%w: %d attempts", ErrGenerationUnavailable, len(attempts))
	}

	// Stage 6: cache fill, then assembly.
	sources, chunkIDs := assembleSources(result.Candidates)
	if p.Cache != nil {
		p.Cache.Set(ctx, req.Question, outcome.Text, sources, chunkIDs)
	}

	metrics.ObserveRequest("ok", start)
	return &Response{
		Answer:         outcome.Text,
		Sources:        sources,
		Confidence:     confidence(result.Candidates, result.Degraded, penalty),
		LatencySeconds: time.Since(start).Seconds(),
		RequestID:      requestID,
		Guardrail:      passthroughLabel(verdict),
		TierUsed:       outcome.TierID,
		Attempts:       attempts,
	}, nil
}

func (p *Pipeline) logger() *zap.Logger {
	if p.Logger == nil {
		return zap.NewNop()
	}
	return p.Logger
}

func passthroughLabel(v guardrail.Verdict) string {
	if v.Classification == guardrail.Normal {
		return ""
	}
	return string(v.Classification)
}

func applyPenalty(conf, penalty float64) float64 {
	if penalty > 0 && penalty < 1 {
		conf *= penalty
	}
	return conf
}
