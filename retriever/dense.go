package retriever

import (
	"context"
	"fmt"
	"sort"

	"github.com/tanyalayanan/ragcore/corpus"
	"github.com/tanyalayanan/ragcore/embedding"
	"github.com/tanyalayanan/ragcore/fusion"
)

// Dense is the embedding-similarity ranker over the in-process corpus. It
// embeds the query and scans every chunk's precomputed vector with cosine
// similarity. For corpora beyond a few thousand chunks, configure the milvus
// backend instead.
type Dense struct {
	Embed embedding.Provider
}

// NewDense creates the in-process dense ranker.
func NewDense(embed embedding.Provider) *Dense {
	return &Dense{Embed: embed}
}

func (r *Dense) Type() string { return "dense" }

func (r *Dense) Rank(ctx context.Context, snap *corpus.Snapshot, query string, limit int) ([]fusion.Candidate, error) {
	if snap.Len() == 0 {
		return nil, nil
	}
	qv, err := r.Embed.GetEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	out := make([]fusion.Candidate, 0, limit)
	for _, ch := range snap.Chunks() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(ch.DenseEmbedding) == 0 {
			continue
		}
		sim := embedding.Cosine(qv, ch.DenseEmbedding)
		out = append(out, fusion.Candidate{Chunk: ch, Score: sim})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
