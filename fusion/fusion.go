package fusion

import (
	"sort"

	"github.com/tanyalayanan/ragcore/schema"
)

// Candidate is one ranked entry from a single ranker pool.
type Candidate struct {
	Chunk *schema.Chunk
	// Score is the ranker-native raw score (cosine similarity for dense,
	// BM25 for sparse).
	Score float64
}

// Strategy merges a dense pool and a sparse pool into one ranked list with
// fused scores in [0,1]. Ties are broken by corpus insertion order so output
// is deterministic for identical inputs.
type Strategy interface {
	Fuse(dense, sparse []Candidate, topK int) []schema.ScoredChunk
	Name() string
}

// Params carries shared strategy inputs.
type Params struct {
	// Position maps a chunk ID to its corpus insertion index for
	// tie-breaking. Required.
	Position func(id string) int
}

// New creates a fusion strategy by name. Unknown names fall back to the
// weighted strategy.
func New(name string, alpha float64, rrfK int, p Params) Strategy {
	switch name {
	case "rrf":
		return NewRRF(rrfK, p)
	default:
		return NewWeighted(alpha, p)
	}
}

// sortRanked orders by fused score descending, breaking exact ties by corpus
// insertion order (ascending).
func sortRanked(out []schema.ScoredChunk, pos func(id string) int) {
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return pos(out[i].Chunk.ID) < pos(out[j].Chunk.ID)
	})
}

// normalizePool divides every score by the pool maximum, using 1.0 as the
// divisor for an empty pool. Negative raw scores clamp to 0 so fused scores
// stay within [0,1].
func normalizePool(pool []Candidate) map[string]float64 {
	maxScore := 0.0
	for _, c := range pool {
		if c.Score > maxScore {
			maxScore = c.Score
		}
	}
	if maxScore <= 0 {
		maxScore = 1.0
	}
	norm := make(map[string]float64, len(pool))
	for _, c := range pool {
		s := c.Score / maxScore
		if s < 0 {
			s = 0
		}
		norm[c.Chunk.ID] = s
	}
	return norm
}
