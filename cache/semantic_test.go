package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanyalayanan/ragcore/schema"
)

// vecEmbedder returns preassigned vectors per text so similarity between
// queries is fully controlled by the test.
type vecEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	err     error
}

func (s *vecEmbedder) Dimensions() int { return 2 }

func (s *vecEmbedder) GetEmbedding(ctx context.Context, text string) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if v, ok := s.vectors[text]; ok {
		return v, nil
	}
	return []float32{1, 0}, nil
}

func newTestCache(t *testing.T, embed *vecEmbedder, capacity int, ttl time.Duration) (*Semantic, *time.Time) {
	t.Helper()
	c := NewSemantic(embed, capacity, ttl, 0.95)
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	c.SetClock(func() time.Time { return now })
	return c, &now
}

func TestSemantic_HitOnNearbyQuery(t *testing.T) {
	embed := &vecEmbedder{vectors: map[string][]float32{
		"syarat membuat ktp": {1, 0},
		"cara membuat ktp":   {0.999, 0.01}, // cosine ~0.9999
		"cara bayar pajak":   {0, 1},
	}}
	c, _ := newTestCache(t, embed, 10, time.Hour)
	ctx := context.Background()

	c.Set(ctx, "syarat membuat ktp", "jawaban ktp", nil, []string{"c1"})

	entry, ok := c.Get(ctx, "cara membuat ktp")
	require.True(t, ok)
	assert.Equal(t, "jawaban ktp", entry.Answer)
	assert.Equal(t, 1, entry.HitCount)

	_, ok = c.Get(ctx, "cara bayar pajak")
	assert.False(t, ok)
}

func TestSemantic_BelowThresholdMisses(t *testing.T) {
	embed := &vecEmbedder{vectors: map[string][]float32{
		"a": {1, 0},
		"b": {0.7, 0.7}, // cosine ~0.707, below 0.95
	}}
	c, _ := newTestCache(t, embed, 10, time.Hour)
	ctx := context.Background()

	c.Set(ctx, "a", "answer", nil, nil)
	_, ok := c.Get(ctx, "b")
	assert.False(t, ok)
}

func TestSemantic_TTLExpiryIsLazy(t *testing.T) {
	embed := &vecEmbedder{vectors: map[string][]float32{"a": {1, 0}}}
	c, now := newTestCache(t, embed, 10, time.Hour)
	ctx := context.Background()

	c.Set(ctx, "a", "answer", nil, nil)
	require.Equal(t, 1, c.Len())

	*now = now.Add(59 * time.Minute)
	_, ok := c.Get(ctx, "a")
	assert.True(t, ok)

	*now = now.Add(2 * time.Minute)
	_, ok = c.Get(ctx, "a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len(), "expired entry should be pruned during lookup")
}

func TestSemantic_SetRefreshesSemanticDuplicateInPlace(t *testing.T) {
	embed := &vecEmbedder{vectors: map[string][]float32{
		"a":  {1, 0},
		"a2": {1, 0.001},
	}}
	c, _ := newTestCache(t, embed, 10, time.Hour)
	ctx := context.Background()

	c.Set(ctx, "a", "old", nil, nil)
	c.Set(ctx, "a2", "new", nil, nil)
	assert.Equal(t, 1, c.Len())

	entry, ok := c.Get(ctx, "a")
	require.True(t, ok)
	assert.Equal(t, "new", entry.Answer)
}

func TestSemantic_EvictsLowestHitCountThenOldest(t *testing.T) {
	embed := &vecEmbedder{vectors: map[string][]float32{
		"cold-old": {1, 0},
		"cold-new": {0, 1},
		"hot":      {0.7, -0.7},
		"extra":    {-1, 0},
	}}
	c, now := newTestCache(t, embed, 3, time.Hour)
	ctx := context.Background()

	c.Set(ctx, "cold-old", "1", nil, nil)
	*now = now.Add(time.Minute)
	c.Set(ctx, "cold-new", "2", nil, nil)
	c.Set(ctx, "hot", "3", nil, nil)

	_, ok := c.Get(ctx, "hot")
	require.True(t, ok)

	// Capacity reached: cold-old and cold-new tie on hit count, cold-old is
	// older and must be the victim.
	c.Set(ctx, "extra", "4", nil, nil)
	assert.Equal(t, 3, c.Len())

	_, ok = c.Get(ctx, "cold-old")
	assert.False(t, ok)
	_, ok = c.Get(ctx, "cold-new")
	assert.True(t, ok)
	_, ok = c.Get(ctx, "extra")
	assert.True(t, ok)
}

func TestSemantic_RaisingThresholdNeverIncreasesHitRate(t *testing.T) {
	vectors := map[string][]float32{
		"seed": {1, 0},
		"near": {0.999, 0.01}, // cosine ~0.9999
		"mid":  {0.92, 0.39},  // cosine ~0.92
		"far":  {0.7, 0.7},    // cosine ~0.707
	}
	log := []string{"near", "mid", "far"}

	hits := func(threshold float64) int {
		c := NewSemantic(&vecEmbedder{vectors: vectors}, 10, time.Hour, threshold)
		ctx := context.Background()
		c.Set(ctx, "seed", "answer", nil, nil)
		n := 0
		for _, q := range log {
			if _, ok := c.Get(ctx, q); ok {
				n++
			}
		}
		return n
	}

	low, high := hits(0.90), hits(0.98)
	assert.Equal(t, 2, low)
	assert.Equal(t, 1, high)
	assert.LessOrEqual(t, high, low)
}

func TestSemantic_EmbeddingFailureIsMiss(t *testing.T) {
	embed := &vecEmbedder{err: errors.New("provider down")}
	c := NewSemantic(embed, 10, time.Hour, 0.95)

	_, ok := c.Get(context.Background(), "anything")
	assert.False(t, ok)
	c.Set(context.Background(), "anything", "answer", nil, nil)
	assert.Equal(t, 0, c.Len())
}

func TestSemantic_CarriesSourcesAndChunkIDs(t *testing.T) {
	embed := &vecEmbedder{vectors: map[string][]float32{"a": {1, 0}}}
	c, _ := newTestCache(t, embed, 10, time.Hour)
	ctx := context.Background()

	sources := []schema.Source{{Title: "KTP", Excerpt: "syarat", Score: 0.91}}
	c.Set(ctx, "a", "answer", sources, []string{"chunk-1", "chunk-2"})

	entry, ok := c.Get(ctx, "a")
	require.True(t, ok)
	assert.Equal(t, sources, entry.Sources)
	assert.Equal(t, []string{"chunk-1", "chunk-2"}, entry.SourceChunkIDs)
}

func TestSemantic_HitIsStableUnderConcurrentRefresh(t *testing.T) {
	embed := &vecEmbedder{vectors: map[string][]float32{
		"a":  {1, 0},
		"a2": {1, 0.001}, // same semantic neighborhood as "a"
	}}
	c := NewSemantic(embed, 10, time.Hour, 0.95)
	ctx := context.Background()
	c.Set(ctx, "a", "old", sourcesFor("a"), []string{"a"})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			c.Set(ctx, "a2", "new", sourcesFor("a2"), []string{"a2"})
			c.Set(ctx, "a", "old", sourcesFor("a"), []string{"a"})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			entry, ok := c.Get(ctx, "a")
			if !ok {
				continue
			}
			// The returned entry is a snapshot: its fields must agree with
			// each other even while the stored entry is being refreshed.
			require.Contains(t, []string{"old", "new"}, entry.Answer)
			require.Len(t, entry.Sources, 1)
			require.Equal(t, entry.Answer, entry.Sources[0].Title)
			require.Equal(t, entry.Sources[0].Excerpt, entry.SourceChunkIDs[0])
		}
	}()
	wg.Wait()
}

func sourcesFor(query string) []schema.Source {
	answer := "old"
	if query == "a2" {
		answer = "new"
	}
	return []schema.Source{{Title: answer, Excerpt: query, Score: 0.9}}
}

func TestSemantic_ConcurrentAccess(t *testing.T) {
	vectors := map[string][]float32{}
	for i := 0; i < 16; i++ {
		// Spread vectors so most queries are distinct entries.
		vectors[fmt.Sprintf("q%d", i)] = []float32{float32(i), 1}
	}
	embed := &vecEmbedder{vectors: vectors}
	c := NewSemantic(embed, 8, time.Hour, 0.95)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				key := fmt.Sprintf("q%d", (g+i)%16)
				c.Set(context.Background(), key, "answer", nil, nil)
				c.Get(context.Background(), key)
			}
		}(g)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 8)
}
