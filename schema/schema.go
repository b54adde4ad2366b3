package schema

import "time"

// Chunk is a unit of retrievable text with precomputed sparse and dense
// representations. Chunks are produced by the ingestion collaborator and are
// immutable once loaded; replacement is a full corpus reload.
type Chunk struct {
	ID               string             `json:"id" yaml:"id"`
	Text             string             `json:"text" yaml:"text"`
	SourceDocumentID string             `json:"source_document_id" yaml:"source_document_id"`
	Title            string             `json:"title,omitempty" yaml:"title,omitempty"`
	Category         string             `json:"category,omitempty" yaml:"category,omitempty"`
	SparseTermWeights map[string]float64 `json:"sparse_term_weights" yaml:"sparse_term_weights"`
	DenseEmbedding   []float32          `json:"dense_embedding" yaml:"dense_embedding"`
}

// ScoredChunk pairs a chunk with a retrieval score. Raw retriever scores are
// backend-specific; fused scores are always in [0,1].
type ScoredChunk struct {
	Chunk *Chunk
	Score float64
}

// RetrievalResult is the ordered output of hybrid retrieval for one query.
type RetrievalResult struct {
	Candidates []ScoredChunk
	// Degraded is set when one ranker was unavailable and the result was
	// produced from the other ranker alone.
	Degraded bool
	// DegradedReason names the failed ranker when Degraded is set.
	DegradedReason string
}

// Source is the citation shape surfaced at the response boundary.
type Source struct {
	Title    string  `json:"title"`
	Excerpt  string  `json:"excerpt"`
	Score    float64 `json:"score"`
	Category string  `json:"category"`
}

// TokenUsage reports token accounting for one generation call.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// AttemptStatus classifies the outcome of a single generation attempt.
type AttemptStatus string

const (
	AttemptSuccess        AttemptStatus = "success"
	AttemptQuotaExceeded  AttemptStatus = "quota_exceeded"
	AttemptTransientError AttemptStatus = "transient_error"
	AttemptFatalError     AttemptStatus = "fatal_error"
)

// GenerationAttempt is one entry of the per-request audit trail.
type GenerationAttempt struct {
	TierID  string        `json:"tier_id"`
	Status  AttemptStatus `json:"status"`
	Usage   TokenUsage    `json:"usage"`
	Latency time.Duration `json:"latency"`
	Err     string        `json:"error,omitempty"`
}
