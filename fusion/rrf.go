package fusion

import (
	"github.com/tanyalayanan/ragcore/schema"
)

// RRF implements Reciprocal Rank Fusion over the two pools. Accumulated
// scores are rescaled by the observed maximum so the fused score stays in
// [0,1] like the weighted strategy.
type RRF struct {
	K int
	p Params
}

// NewRRF creates the strategy; k <= 0 defaults to 60.
func NewRRF(k int, p Params) *RRF {
	if k <= 0 {
		k = 60
	}
	return &RRF{K: k, p: p}
}

func (s *RRF) Name() string { return "rrf" }

func (s *RRF) Fuse(dense, sparse []Candidate, topK int) []schema.ScoredChunk {
	type agg struct {
		chunk *schema.Chunk
		score float64
	}
	scores := map[string]*agg{}
	for _, pool := range [][]Candidate{dense, sparse} {
		for idx, c := range pool {
			a, ok := scores[c.Chunk.ID]
			if !ok {
				a = &agg{chunk: c.Chunk}
				scores[c.Chunk.ID] = a
			}
			a.score += 1.0 / (float64(s.K) + float64(idx+1))
		}
	}

	maxScore := 0.0
	for _, a := range scores {
		if a.score > maxScore {
			maxScore = a.score
		}
	}
	if maxScore <= 0 {
		maxScore = 1.0
	}

	out := make([]schema.ScoredChunk, 0, len(scores))
	for _, a := range scores {
		out = append(out, schema.ScoredChunk{Chunk: a.chunk, Score: a.score / maxScore})
	}
	sortRanked(out, s.p.Position)
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out
}
