package quota

import (
	"context"
	"time"
)

// Limits are the per-tier quota bounds; zero disables a check.
type Limits struct {
	RequestsPerMinute int
	RequestsPerDay    int
	TokensPerDay      int
}

// Usage is a point-in-time view of one tier's counters.
type Usage struct {
	WindowRequests int       // completed requests in the sliding minute window
	DayRequests    int       // completed requests since the daily boundary
	DayTokens      int       // tokens consumed since the daily boundary
	DayResetAt     time.Time // next daily boundary
}

// Store is the durable event log behind the counters. Record must be atomic
// under concurrent dispatches; counts are derived from recorded events so
// they can never go negative and only grow within a window.
type Store interface {
	// Record logs one completed call against a tier.
	Record(ctx context.Context, tierID string, at time.Time, tokens int) error
	// CountSince returns the number of recorded calls at or after since.
	CountSince(ctx context.Context, tierID string, since time.Time) (int, error)
	// TokensSince returns the token sum of recorded calls at or after since.
	TokensSince(ctx context.Context, tierID string, since time.Time) (int, error)
	// Prune drops events strictly before the cutoff.
	Prune(ctx context.Context, before time.Time) error
	Close() error
}

// Counter gates one generation tier. The check is read-only; usage is
// recorded only after a call fully completed, so aborted calls leave no
// partial credit. The clock is injected for deterministic tests.
type Counter struct {
	TierID string
	Limits Limits
	store  Store
	now    func() time.Time
}

// NewCounter builds a counter over the shared store.
func NewCounter(tierID string, limits Limits, store Store) *Counter {
	return &Counter{TierID: tierID, Limits: limits, store: store, now: time.Now}
}

// SetClock overrides the time source. Intended for tests.
func (c *Counter) SetClock(now func() time.Time) { c.now = now }

// Allow reports whether the tier has quota headroom right now. It does not
// increment anything; exhausted tiers are skipped without counter movement.
func (c *Counter) Allow(ctx context.Context) (bool, error) {
	now := c.now()
	if c.Limits.RequestsPerMinute > 0 {
		n, err := c.store.CountSince(ctx, c.TierID, now.Add(-time.Minute))
		if err != nil {
			return false, err
		}
		if n >= c.Limits.RequestsPerMinute {
			return false, nil
		}
	}
	dayStart := dayStart(now)
	if c.Limits.RequestsPerDay > 0 {
		n, err := c.store.CountSince(ctx, c.TierID, dayStart)
		if err != nil {
			return false, err
		}
		if n >= c.Limits.RequestsPerDay {
			return false, nil
		}
	}
	if c.Limits.TokensPerDay > 0 {
		n, err := c.store.TokensSince(ctx, c.TierID, dayStart)
		if err != nil {
			return false, err
		}
		if n >= c.Limits.TokensPerDay {
			return false, nil
		}
	}
	return true, nil
}

// Record logs one fully completed call.
func (c *Counter) Record(ctx context.Context, tokens int) error {
	return c.store.Record(ctx, c.TierID, c.now(), tokens)
}

// Usage returns the current counter view.
func (c *Counter) Usage(ctx context.Context) (Usage, error) {
	now := c.now()
	ds := dayStart(now)
	wr, err := c.store.CountSince(ctx, c.TierID, now.Add(-time.Minute))
	if err != nil {
		return Usage{}, err
	}
	dr, err := c.store.CountSince(ctx, c.TierID, ds)
	if err != nil {
		return Usage{}, err
	}
	dt, err := c.store.TokensSince(ctx, c.TierID, ds)
	if err != nil {
		return Usage{}, err
	}
	return Usage{
		WindowRequests: wr,
		DayRequests:    dr,
		DayTokens:      dt,
		DayResetAt:     ds.Add(24 * time.Hour),
	}, nil
}

// dayStart is the fixed daily reset boundary (midnight in the clock's
// location).
func dayStart(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
