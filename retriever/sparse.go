package retriever

import (
	"context"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/tanyalayanan/ragcore/corpus"
	"github.com/tanyalayanan/ragcore/fusion"
)

// Sparse is the keyword-relevance ranker. It scores query terms against each
// chunk's precomputed sparse term weights with a BM25-style formula using the
// corpus statistics the snapshot computed at load time.
type Sparse struct {
	// K1 controls term-frequency saturation (default 1.5).
	K1 float64
	// B controls length normalization (default 0.75).
	B float64
}

// NewSparse creates the ranker with defaults for unset constants.
func NewSparse(k1, b float64) *Sparse {
	if k1 <= 0 {
		k1 = 1.5
	}
	if b <= 0 {
		b = 0.75
	}
	return &Sparse{K1: k1, B: b}
}

func (r *Sparse) Type() string { return "sparse" }

func (r *Sparse) Rank(ctx context.Context, snap *corpus.Snapshot, query string, limit int) ([]fusion.Candidate, error) {
	if snap.Len() == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	terms := Tokenize(query)
	if len(terms) == 0 {
		return nil, nil
	}

	n := float64(snap.Len())
	avgLen := snap.AvgDocLen()
	if avgLen <= 0 {
		avgLen = 1
	}

	out := make([]fusion.Candidate, 0, limit)
	for _, ch := range snap.Chunks() {
		var score float64
		dl := snap.DocLen(ch.ID)
		for _, t := range terms {
			w := ch.SparseTermWeights[t]
			if w <= 0 {
				continue
			}
			df := float64(snap.DocFreq(t))
			idf := math.Log(1 + (n-df+0.5)/(df+0.5))
			score += idf * (w * (r.K1 + 1)) / (w + r.K1*(1-r.B+r.B*dl/avgLen))
		}
		if score > 0 {
			out = append(out, fusion.Candidate{Chunk: ch, Score: score})
		}
	}

	// Iteration above follows insertion order, so a stable sort keeps
	// equal-score candidates deterministic.
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Tokenize lowercases and splits on anything that is not a letter or digit.
// Term weighting already happened at ingestion, so no stemming here.
func Tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len(f) > 1 {
			out = append(out, f)
		}
	}
	return out
}
