package retriever

import (
	"context"

	"github.com/tanyalayanan/ragcore/corpus"
	"github.com/tanyalayanan/ragcore/fusion"
)

// Ranker scores corpus chunks against a query. Implementations return their
// native raw scores; normalization happens at fusion time.
type Ranker interface {
	Type() string
	Rank(ctx context.Context, snap *corpus.Snapshot, query string, limit int) ([]fusion.Candidate, error)
}
