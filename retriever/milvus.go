package retriever

import (
	"context"
	"fmt"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/tanyalayanan/ragcore/config"
	"github.com/tanyalayanan/ragcore/corpus"
	"github.com/tanyalayanan/ragcore/embedding"
	"github.com/tanyalayanan/ragcore/fusion"
)

// Milvus is the remote dense ranker for corpora too large for the in-process
// scan. The collection is expected to hold the same chunk IDs and vectors the
// ingestion pipeline loaded into the corpus file; hits whose IDs are unknown
// to the current snapshot are dropped.
type Milvus struct {
	Embed      embedding.Provider
	c          client.Client
	collection string
	ef         int
}

// NewMilvus connects to the configured milvus instance.
func NewMilvus(ctx context.Context, cfg config.VectorDBConfig, embed embedding.Provider) (*Milvus, error) {
	c, err := client.NewClient(ctx, client.Config{
		Address:  cfg.Address,
		Username: cfg.Username,
		Password: cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("milvus connect: %w", err)
	}
	ef := cfg.EfSearch
	if ef <= 0 {
		ef = 64
	}
	return &Milvus{Embed: embed, c: c, collection: cfg.Collection, ef: ef}, nil
}

func (r *Milvus) Type() string { return "dense" }

// Close releases the client connection.
func (r *Milvus) Close() error { return r.c.Close() }

func (r *Milvus) Rank(ctx context.Context, snap *corpus.Snapshot, query string, limit int) ([]fusion.Candidate, error) {
	if snap.Len() == 0 {
		return nil, nil
	}
	qv, err := r.Embed.GetEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	sp, err := entity.NewIndexHNSWSearchParam(r.ef)
	if err != nil {
		return nil, fmt.Errorf("milvus search param: %w", err)
	}
	results, err := r.c.Search(ctx, r.collection, nil, "", []string{"id"},
		[]entity.Vector{entity.FloatVector(qv)}, "vector", entity.IP, limit, sp)
	if err != nil {
		return nil, fmt.Errorf("milvus search: %w", err)
	}

	out := make([]fusion.Candidate, 0, limit)
	for _, res := range results {
		ids, ok := res.IDs.(*entity.ColumnVarChar)
		if !ok {
			return nil, fmt.Errorf("milvus: unexpected id column type %T", res.IDs)
		}
		for i, id := range ids.Data() {
			ch, known := snap.Get(id)
			if !known {
				continue
			}
			out = append(out, fusion.Candidate{Chunk: ch, Score: float64(res.Scores[i])})
		}
	}
	return out, nil
}
