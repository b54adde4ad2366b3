package cache

import (
	"context"
	"sync"
	"time"

	"github.com/tanyalayanan/ragcore/embedding"
	"github.com/tanyalayanan/ragcore/metrics"
	"github.com/tanyalayanan/ragcore/schema"
)

// Entry is one cached answer keyed by query embedding proximity.
type Entry struct {
	QueryText      string
	QueryEmbedding []float32
	Answer         string
	Sources        []schema.Source
	SourceChunkIDs []string
	CreatedAt      time.Time
	TTL            time.Duration
	HitCount       int

	// seq is the insertion sequence, used to prefer the earliest-inserted
	// entry on exact similarity ties.
	seq uint64
}

func (e *Entry) expired(now time.Time) bool {
	return e.TTL > 0 && now.Sub(e.CreatedAt) >= e.TTL
}

// Semantic maps a query to a previously computed answer by embedding
// proximity rather than exact text. Expired entries are pruned lazily during
// lookup; capacity eviction removes the lowest hit-count entry, breaking ties
// by oldest creation time. The store size stays in the hundreds-to-low-
// thousands range, so one coarse mutex serializes all mutations.
type Semantic struct {
	mu        sync.Mutex
	embed     embedding.Provider
	entries   []*Entry
	capacity  int
	ttl       time.Duration
	threshold float64
	nextSeq   uint64

	// now is injected for deterministic TTL tests.
	now func() time.Time
}

// NewSemantic creates the cache. capacity <= 0 defaults to 512, threshold
// <= 0 to 0.95.
func NewSemantic(embed embedding.Provider, capacity int, ttl time.Duration, threshold float64) *Semantic {
	if capacity <= 0 {
		capacity = 512
	}
	if threshold <= 0 {
		threshold = 0.95
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Semantic{
		embed:     embed,
		capacity:  capacity,
		ttl:       ttl,
		threshold: threshold,
		now:       time.Now,
	}
}

// SetClock overrides the time source. Intended for tests.
func (c *Semantic) SetClock(now func() time.Time) { c.now = now }

// Get embeds the query and returns a copy of the most similar live entry
// when its similarity reaches the threshold. Exact floating-point ties prefer
// the earliest-inserted entry. Expired entries discovered during the scan are
// pruned. The copy is taken under the mutex so callers can read it freely
// while a concurrent Set refreshes the stored entry.
func (c *Semantic) Get(ctx context.Context, query string) (Entry, bool) {
	qv, err := c.embed.GetEmbedding(ctx, query)
	if err != nil {
		// Treat an embedding failure as a miss; retrieval will surface the
		// same failure through its own degraded path.
		metrics.IncCacheLookup("miss")
		return Entry{}, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.pruneLocked(now)

	var best *Entry
	bestSim := -1.0
	for _, e := range c.entries {
		sim := embedding.Cosine(qv, e.QueryEmbedding)
		if sim > bestSim || (sim == bestSim && best != nil && e.seq < best.seq) {
			bestSim = sim
			best = e
		}
	}
	if best == nil || bestSim < c.threshold {
		metrics.IncCacheLookup("miss")
		return Entry{}, false
	}
	best.HitCount++
	metrics.IncCacheLookup("hit")
	return *best, true
}

// Set stores an answer for the query. When a live entry already covers the
// same semantic query (similarity >= threshold), that entry is refreshed in
// place so concurrent Set calls cannot create duplicates. At capacity, the
// lowest hit-count entry is evicted, ties broken by oldest creation time.
func (c *Semantic) Set(ctx context.Context, query, answer string, sources []schema.Source, chunkIDs []string) {
	qv, err := c.embed.GetEmbedding(ctx, query)
	if err != nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.pruneLocked(now)

	for _, e := range c.entries {
		if embedding.Cosine(qv, e.QueryEmbedding) >= c.threshold {
			e.QueryText = query
			e.QueryEmbedding = qv
			e.Answer = answer
			e.Sources = sources
			e.SourceChunkIDs = chunkIDs
			e.CreatedAt = now
			e.TTL = c.ttl
			return
		}
	}

	if len(c.entries) >= c.capacity {
		c.evictLocked()
	}
	c.entries = append(c.entries, &Entry{
		QueryText:      query,
		QueryEmbedding: qv,
		Answer:         answer,
		Sources:        sources,
		SourceChunkIDs: chunkIDs,
		CreatedAt:      now,
		TTL:            c.ttl,
		seq:            c.nextSeq,
	})
	c.nextSeq++
}

// Len returns the live entry count.
func (c *Semantic) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Purge drops all entries.
func (c *Semantic) Purge() {
	c.mu.Lock()
	c.entries = nil
	c.mu.Unlock()
}

func (c *Semantic) pruneLocked(now time.Time) {
	live := c.entries[:0]
	for _, e := range c.entries {
		if e.expired(now) {
			metrics.IncCacheLookup("expired")
			continue
		}
		live = append(live, e)
	}
	c.entries = live
}

func (c *Semantic) evictLocked() {
	if len(c.entries) == 0 {
		return
	}
	victim := 0
	for i, e := range c.entries {
		v := c.entries[victim]
		if e.HitCount < v.HitCount ||
			(e.HitCount == v.HitCount && e.CreatedAt.Before(v.CreatedAt)) {
			victim = i
		}
	}
	c.entries = append(c.entries[:victim], c.entries[victim+1:]...)
}
