package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanyalayanan/ragcore/schema"
)

func TestAssembleSources(t *testing.T) {
	candidates := []schema.ScoredChunk{
		{Chunk: &schema.Chunk{ID: "c1", Title: "KTP", Text: "syarat ktp", Category: "identitas"}, Score: 0.92},
		{Chunk: &schema.Chunk{ID: "c2", SourceDocumentID: "doc-2", Text: "perekaman"}, Score: 0.4},
	}

	sources, ids := assembleSources(candidates)
	require.Len(t, sources, 2)
	assert.Equal(t, []string{"c1", "c2"}, ids)
	assert.Equal(t, "KTP", sources[0].Title)
	assert.Equal(t, 0.92, sources[0].Score)
	assert.Equal(t, "identitas", sources[0].Category)
	assert.Equal(t, "doc-2", sources[1].Title, "missing title falls back to document id")
}

func TestExcerpt(t *testing.T) {
	short := "Persyaratan singkat."
	assert.Equal(t, short, excerpt("  "+short+"  "))

	long := strings.Repeat("kata panjang ", 40)
	got := excerpt(long)
	assert.True(t, strings.HasSuffix(got, "…"))
	assert.LessOrEqual(t, len([]rune(got)), excerptRunes+1)
	assert.False(t, strings.HasSuffix(strings.TrimSuffix(got, "…"), " "), "cut lands on a word boundary")
}

func TestConfidence(t *testing.T) {
	candidates := []schema.ScoredChunk{{Chunk: &schema.Chunk{ID: "a"}, Score: 0.9}}

	assert.Equal(t, 0.0, confidence(nil, false, 0))
	assert.InDelta(t, 0.9, confidence(candidates, false, 0), 1e-9)
	assert.InDelta(t, 0.72, confidence(candidates, true, 0), 1e-9)
	assert.InDelta(t, 0.45, confidence(candidates, false, 0.5), 1e-9)
	assert.InDelta(t, 0.36, confidence(candidates, true, 0.5), 1e-9)

	over := []schema.ScoredChunk{{Chunk: &schema.Chunk{ID: "a"}, Score: 1.5}}
	assert.Equal(t, 1.0, confidence(over, false, 0), "confidence is clamped to [0,1]")
}

func TestMaxSourceScore(t *testing.T) {
	assert.Equal(t, 0.0, maxSourceScore(nil))
	sources := []schema.Source{{Score: 0.3}, {Score: 0.8}, {Score: 0.5}}
	assert.Equal(t, 0.8, maxSourceScore(sources))
}
