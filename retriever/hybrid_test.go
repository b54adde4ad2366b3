package retriever

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanyalayanan/ragcore/config"
	"github.com/tanyalayanan/ragcore/corpus"
	"github.com/tanyalayanan/ragcore/fusion"
	"github.com/tanyalayanan/ragcore/schema"
)

// stubRanker returns a fixed pool or error and records the limit it was
// asked for.
type stubRanker struct {
	kind      string
	pool      []fusion.Candidate
	err       error
	lastLimit int
}

func (s *stubRanker) Type() string { return s.kind }

func (s *stubRanker) Rank(ctx context.Context, snap *corpus.Snapshot, query string, limit int) ([]fusion.Candidate, error) {
	s.lastLimit = limit
	if s.err != nil {
		return nil, s.err
	}
	return s.pool, s.err
}

func hybridFixture(t *testing.T, dense, sparse Ranker, cfg config.RetrievalConfig) *Hybrid {
	t.Helper()
	snap, err := corpus.NewSnapshot([]*schema.Chunk{
		{ID: "a", Text: "a", SparseTermWeights: map[string]float64{"a": 1}},
		{ID: "b", Text: "b", SparseTermWeights: map[string]float64{"b": 1}},
		{ID: "c", Text: "c", SparseTermWeights: map[string]float64{"c": 1}},
	})
	require.NoError(t, err)
	return NewHybrid(corpus.NewStore(snap), dense, sparse, cfg, nil)
}

func TestHybrid_MergesBothPools(t *testing.T) {
	a := &schema.Chunk{ID: "a"}
	b := &schema.Chunk{ID: "b"}
	dense := &stubRanker{kind: "dense", pool: []fusion.Candidate{{Chunk: a, Score: 0.9}}}
	sparse := &stubRanker{kind: "sparse", pool: []fusion.Candidate{{Chunk: b, Score: 4.0}}}
	h := hybridFixture(t, dense, sparse, config.RetrievalConfig{TopK: 4, Overshoot: 2})

	res, err := h.Retrieve(context.Background(), "q", 4, 0.6)
	require.NoError(t, err)
	assert.False(t, res.Degraded)
	require.Len(t, res.Candidates, 2)
	assert.Equal(t, "a", res.Candidates[0].Chunk.ID)
	assert.Equal(t, 8, dense.lastLimit) // overshoot * topK
	assert.Equal(t, 8, sparse.lastLimit)
}

func TestHybrid_DegradesWhenDenseFails(t *testing.T) {
	b := &schema.Chunk{ID: "b"}
	dense := &stubRanker{kind: "dense", err: errors.New("embedding service down")}
	sparse := &stubRanker{kind: "sparse", pool: []fusion.Candidate{{Chunk: b, Score: 4.0}}}
	h := hybridFixture(t, dense, sparse, config.RetrievalConfig{TopK: 4})

	res, err := h.Retrieve(context.Background(), "q", 4, 0.6)
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.Equal(t, "dense", res.DegradedReason)
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, "b", res.Candidates[0].Chunk.ID)
}

func TestHybrid_DegradesWhenSparseFails(t *testing.T) {
	a := &schema.Chunk{ID: "a"}
	dense := &stubRanker{kind: "dense", pool: []fusion.Candidate{{Chunk: a, Score: 0.9}}}
	sparse := &stubRanker{kind: "sparse", err: errors.New("index corrupt")}
	h := hybridFixture(t, dense, sparse, config.RetrievalConfig{TopK: 4})

	res, err := h.Retrieve(context.Background(), "q", 4, 0.6)
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.Equal(t, "sparse", res.DegradedReason)
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, "a", res.Candidates[0].Chunk.ID)
}

func TestHybrid_BothRankersDownIsDegradedNotError(t *testing.T) {
	dense := &stubRanker{kind: "dense", err: errors.New("down")}
	sparse := &stubRanker{kind: "sparse", err: errors.New("down")}
	h := hybridFixture(t, dense, sparse, config.RetrievalConfig{TopK: 4})

	res, err := h.Retrieve(context.Background(), "q", 4, 0.6)
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.Equal(t, "dense+sparse", res.DegradedReason)
	assert.Empty(t, res.Candidates)
}

func TestHybrid_EmptyCorpusReturnsEmpty(t *testing.T) {
	snap, err := corpus.NewSnapshot(nil)
	require.NoError(t, err)
	h := NewHybrid(corpus.NewStore(snap), &stubRanker{kind: "dense"}, &stubRanker{kind: "sparse"}, config.RetrievalConfig{TopK: 4}, nil)

	res, err := h.Retrieve(context.Background(), "q", 4, 0.6)
	require.NoError(t, err)
	assert.Empty(t, res.Candidates)
	assert.False(t, res.Degraded)
}

func TestHybrid_CancelledContextPropagates(t *testing.T) {
	dense := &stubRanker{kind: "dense", err: context.Canceled}
	sparse := &stubRanker{kind: "sparse", err: context.Canceled}
	h := hybridFixture(t, dense, sparse, config.RetrievalConfig{TopK: 4})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := h.Retrieve(ctx, "q", 4, 0.6)
	assert.ErrorIs(t, err, context.Canceled)
}
