package retriever

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tanyalayanan/ragcore/config"
	"github.com/tanyalayanan/ragcore/corpus"
	"github.com/tanyalayanan/ragcore/fusion"
	"github.com/tanyalayanan/ragcore/metrics"
	"github.com/tanyalayanan/ragcore/schema"
)

// Hybrid merges the dense and sparse ranker pools into one ranked candidate
// list. A failed ranker degrades the result to the surviving ranker instead
// of failing the query; only a cancelled context propagates as an error.
type Hybrid struct {
	store  *corpus.Store
	dense  Ranker
	sparse Ranker
	cfg    config.RetrievalConfig
	logger *zap.Logger
}

// NewHybrid wires the two rankers around the corpus store.
func NewHybrid(store *corpus.Store, dense, sparse Ranker, cfg config.RetrievalConfig, logger *zap.Logger) *Hybrid {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hybrid{store: store, dense: dense, sparse: sparse, cfg: cfg, logger: logger}
}

// Retrieve runs both rankers concurrently on the same corpus snapshot, each
// keeping overshoot*topK candidates, then fuses the pools. alpha is the
// dense weight in [0,1].
func (h *Hybrid) Retrieve(ctx context.Context, query string, topK int, alpha float64) (schema.RetrievalResult, error) {
	if topK <= 0 {
		topK = h.cfg.TopK
	}
	snap := h.store.Snapshot()
	if snap.Len() == 0 {
		return schema.RetrievalResult{}, nil
	}

	overshoot := h.cfg.Overshoot
	if overshoot <= 0 {
		overshoot = 2
	}
	poolSize := overshoot * topK

	var (
		wg                   sync.WaitGroup
		densePool, sparsePool []fusion.Candidate
		denseErr, sparseErr  error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		start := time.Now()
		densePool, denseErr = h.dense.Rank(ctx, snap, query, poolSize)
		metrics.ObserveRanker(h.dense.Type(), start, len(densePool))
	}()
	go func() {
		defer wg.Done()
		start := time.Now()
		sparsePool, sparseErr = h.sparse.Rank(ctx, snap, query, poolSize)
		metrics.ObserveRanker(h.sparse.Type(), start, len(sparsePool))
	}()
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return schema.RetrievalResult{}, err
	}

	result := schema.RetrievalResult{}
	switch {
	case denseErr != nil && sparseErr != nil:
		// Both sides down: empty result, surfaced as degraded rather than
		// an error so the caller can still answer from cache or refuse.
		h.logger.Error("retrieval: both rankers unavailable",
			zap.Error(denseErr), zap.NamedError("sparse_error", sparseErr))
		result.Degraded = true
		result.DegradedReason = "dense+sparse"
		metrics.IncDegraded("both")
		return result, nil
	case denseErr != nil:
		h.logger.Warn("retrieval: dense ranker unavailable, sparse-only", zap.Error(denseErr))
		densePool = nil
		result.Degraded = true
		result.DegradedReason = "dense"
		metrics.IncDegraded("dense")
	case sparseErr != nil:
		h.logger.Warn("retrieval: sparse ranker unavailable, dense-only", zap.Error(sparseErr))
		sparsePool = nil
		result.Degraded = true
		result.DegradedReason = "sparse"
		metrics.IncDegraded("sparse")
	}

	strategy := fusion.New(h.cfg.Fusion, alpha, h.cfg.RRFK, fusion.Params{Position: snap.Position})
	result.Candidates = strategy.Fuse(densePool, sparsePool, topK)
	metrics.ObserveFusion(len(densePool) + len(sparsePool))
	return result, nil
}
