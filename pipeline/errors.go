package pipeline

import (
	"errors"

	"github.com/tanyalayanan/ragcore/generation"
)

// ErrGenerationUnavailable is returned when every configured generation tier
// is quota-exhausted or failed. It is the only component failure that
// propagates to the caller; single-ranker and single-tier failures are
// recovered inside their components.
var ErrGenerationUnavailable = errors.New("generation temporarily unavailable")

// IsUnavailable reports whether the error means total backend exhaustion.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrGenerationUnavailable) || errors.Is(err, generation.ErrUnavailable)
}
