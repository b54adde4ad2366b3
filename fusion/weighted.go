package fusion

import (
	"github.com/tanyalayanan/ragcore/schema"
)

// Weighted implements alpha-weighted fusion of max-normalized pools:
// combined = alpha*dense_norm + (1-alpha)*sparse_norm over the union of both
// pools, substituting 0 for a candidate missing from one pool. alpha=0 is
// pure sparse, alpha=1 pure dense.
type Weighted struct {
	Alpha float64
	p     Params
}

// NewWeighted creates the strategy; alpha outside [0,1] is clamped.
func NewWeighted(alpha float64, p Params) *Weighted {
	if alpha < 0 {
		alpha = 0
	}
	if alpha > 1 {
		alpha = 1
	}
	return &Weighted{Alpha: alpha, p: p}
}

func (s *Weighted) Name() string { return "weighted" }

func (s *Weighted) Fuse(dense, sparse []Candidate, topK int) []schema.ScoredChunk {
	denseNorm := normalizePool(dense)
	sparseNorm := normalizePool(sparse)

	chunks := make(map[string]*schema.Chunk, len(dense)+len(sparse))
	for _, c := range dense {
		chunks[c.Chunk.ID] = c.Chunk
	}
	for _, c := range sparse {
		chunks[c.Chunk.ID] = c.Chunk
	}

	out := make([]schema.ScoredChunk, 0, len(chunks))
	for id, ch := range chunks {
		combined := s.Alpha*denseNorm[id] + (1-s.Alpha)*sparseNorm[id]
		out = append(out, schema.ScoredChunk{Chunk: ch, Score: combined})
	}
	sortRanked(out, s.p.Position)
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out
}
