package pipeline

import (
	"strings"
	"unicode/utf8"

	"github.com/tanyalayanan/ragcore/schema"
)

const excerptRunes = 240

// assembleSources converts ranked candidates into the response citation
// shape. Fused scores pass through unchanged; they are already in [0,1].
func assembleSources(candidates []schema.ScoredChunk) ([]schema.Source, []string) {
	sources := make([]schema.Source, 0, len(candidates))
	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		title := c.Chunk.Title
		if title == "" {
			title = c.Chunk.SourceDocumentID
		}
		sources = append(sources, schema.Source{
			Title:    title,
			Excerpt:  excerpt(c.Chunk.Text),
			Score:    c.Score,
			Category: c.Chunk.Category,
		})
		ids = append(ids, c.Chunk.ID)
	}
	return sources, ids
}

// excerpt trims chunk text to a short citation snippet on a word boundary.
func excerpt(text string) string {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) <= excerptRunes {
		return text
	}
	runes := []rune(text)
	cut := string(runes[:excerptRunes])
	if idx := strings.LastIndexByte(cut, ' '); idx > 0 {
		cut = cut[:idx]
	}
	return cut + "…"
}

// confidence derives the response confidence from the best fused score,
// applying the degraded-retrieval and ambiguous-passthrough penalties.
func confidence(candidates []schema.ScoredChunk, degraded bool, penalty float64) float64 {
	if len(candidates) == 0 {
		return 0
	}
	conf := candidates[0].Score
	if degraded {
		conf *= 0.8
	}
	if penalty > 0 && penalty < 1 {
		conf *= penalty
	}
	if conf < 0 {
		conf = 0
	}
	if conf > 1 {
		conf = 1
	}
	return conf
}

// maxSourceScore recovers a confidence figure from cached sources.
func maxSourceScore(sources []schema.Source) float64 {
	best := 0.0
	for _, s := range sources {
		if s.Score > best {
			best = s.Score
		}
	}
	return best
}
