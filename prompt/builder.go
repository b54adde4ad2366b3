package prompt

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/tanyalayanan/ragcore/schema"
)

const defaultSystem = "Anda adalah asisten layanan publik Indonesia. Jawab pertanyaan " +
	"HANYA berdasarkan konteks yang diberikan. Jika konteks tidak memuat jawabannya, " +
	"katakan bahwa informasi tersebut tidak tersedia. Sebutkan persyaratan dan langkah " +
	"secara ringkas dan jelas."

// Builder assembles the generation prompt from retrieved chunks, trimming
// context so the prompt stays within the token budget. Counting uses
// tiktoken; when the encoding is unavailable a words-based approximation is
// used instead.
type Builder struct {
	System string
	// MaxContextTokens bounds the retrieved-context portion of the prompt
	// (0 => 3000).
	MaxContextTokens int

	encOnce sync.Once
	enc     *tiktoken.Tiktoken
}

// NewBuilder creates a builder with the default system instruction.
func NewBuilder(maxContextTokens int) *Builder {
	if maxContextTokens <= 0 {
		maxContextTokens = 3000
	}
	return &Builder{System: defaultSystem, MaxContextTokens: maxContextTokens}
}

// Build renders the final prompt for one query over its ranked candidates.
// Candidates are consumed in rank order; a candidate that would exceed the
// remaining context budget is truncated, later ones are dropped.
func (b *Builder) Build(query string, candidates []schema.ScoredChunk) string {
	var sb strings.Builder
	sb.WriteString("Konteks:\n")
	budget := b.MaxContextTokens
	for i, c := range candidates {
		if budget <= 0 {
			break
		}
		text := c.Chunk.Text
		if n := b.CountTokens(text); n > budget {
			text = b.truncate(text, budget)
		}
		budget -= b.CountTokens(text)
		title := c.Chunk.Title
		if title == "" {
			title = c.Chunk.SourceDocumentID
		}
		fmt.Fprintf(&sb, "[%d] %s\n%s\n\n", i+1, title, text)
	}
	sb.WriteString("Pertanyaan: ")
	sb.WriteString(query)
	sb.WriteString("\nJawaban:")
	return sb.String()
}

// CountTokens returns the token count of text under the builder encoding.
func (b *Builder) CountTokens(text string) int {
	if enc := b.encoding(); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	// Rough fallback: one token per word.
	return len(strings.Fields(text))
}

// EstimateUsage approximates token usage for backends that report none.
func (b *Builder) EstimateUsage(prompt, completion string) schema.TokenUsage {
	p := b.CountTokens(prompt)
	c := b.CountTokens(completion)
	return schema.TokenUsage{PromptTokens: p, CompletionTokens: c, TotalTokens: p + c}
}

func (b *Builder) truncate(text string, tokens int) string {
	if enc := b.encoding(); enc != nil {
		ids := enc.Encode(text, nil, nil)
		if len(ids) <= tokens {
			return text
		}
		return enc.Decode(ids[:tokens])
	}
	words := strings.Fields(text)
	if len(words) <= tokens {
		return text
	}
	return strings.Join(words[:tokens], " ")
}

func (b *Builder) encoding() *tiktoken.Tiktoken {
	b.encOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			b.enc = enc
		}
	})
	return b.enc
}
