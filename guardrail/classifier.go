package guardrail

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/tanyalayanan/ragcore/config"
	"github.com/tanyalayanan/ragcore/metrics"
)

// Classification is the guardrail verdict class for a query.
type Classification string

const (
	Normal     Classification = "normal"
	Ambiguous  Classification = "ambiguous"
	OutOfScope Classification = "out_of_scope"
	Disallowed Classification = "disallowed"
)

// priority orders rule evaluation; lower value wins first.
var priority = map[Classification]int{
	Disallowed: 0,
	OutOfScope: 1,
	Ambiguous:  2,
}

// Verdict is the stateless per-query classification result.
type Verdict struct {
	Classification Classification
	// MatchedRule identifies the winning rule as "category/pattern".
	MatchedRule string
	// Category is the matched rule group's category.
	Category string
	// Clarification is the templated response text for ambiguous and
	// refused queries; empty for Normal.
	Clarification string
}

// ShortCircuits reports whether the verdict stops the pipeline before any
// retrieval or generation call. Ambiguous short-circuits only when
// passthrough is disabled in config; Disallowed and OutOfScope always do.
func (v Verdict) ShortCircuits(ambiguousPassthrough bool) bool {
	switch v.Classification {
	case Disallowed, OutOfScope:
		return true
	case Ambiguous:
		return !ambiguousPassthrough
	default:
		return false
	}
}

type rule struct {
	classification Classification
	category       string
	pattern        *regexp.Regexp
	raw            string
	clarification  string
}

// Classifier applies an ordered, data-driven rule list. Rules are
// configuration, not code; evaluation is strict priority order
// Disallowed > OutOfScope > Ambiguous, first match wins.
type Classifier struct {
	rules  []rule
	logger *zap.Logger
}

// New compiles the configured rule groups. Patterns are case-insensitive.
func New(cfg config.GuardrailConfig, logger *zap.Logger) (*Classifier, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Classifier{logger: logger}
	for _, g := range cfg.RuleGroups {
		cls := Classification(g.Classification)
		if _, ok := priority[cls]; !ok {
			return nil, fmt.Errorf("guardrail: unknown classification %q", g.Classification)
		}
		for _, p := range g.Patterns {
			re, err := regexp.Compile("(?i)" + p)
			if err != nil {
				return nil, fmt.Errorf("guardrail: pattern %q: %w", p, err)
			}
			c.rules = append(c.rules, rule{
				classification: cls,
				category:       g.Category,
				pattern:        re,
				raw:            p,
				clarification:  g.Clarification,
			})
		}
	}
	// Stable sort keeps config order within the same class.
	sort.SliceStable(c.rules, func(i, j int) bool {
		return priority[c.rules[i].classification] < priority[c.rules[j].classification]
	})
	return c, nil
}

// Classify returns the first matching rule's verdict, or Normal.
func (c *Classifier) Classify(query string) Verdict {
	for _, r := range c.rules {
		if !r.pattern.MatchString(query) {
			continue
		}
		v := Verdict{
			Classification: r.classification,
			MatchedRule:    r.category + "/" + r.raw,
			Category:       r.category,
			Clarification:  renderClarification(r, query),
		}
		c.logger.Debug("guardrail matched",
			zap.String("classification", string(v.Classification)),
			zap.String("rule", v.MatchedRule))
		metrics.IncGuardrail(string(v.Classification))
		return v
	}
	metrics.IncGuardrail(string(Normal))
	return Verdict{Classification: Normal}
}

func renderClarification(r rule, query string) string {
	switch r.classification {
	case Disallowed:
		return "Maaf, pertanyaan ini tidak dapat kami proses."
	case OutOfScope:
		return "Maaf, pertanyaan ini di luar cakupan layanan publik yang kami dukung."
	case Ambiguous:
		if r.clarification != "" {
			return strings.ReplaceAll(r.clarification, "{query}", query)
		}
		return fmt.Sprintf("Pertanyaan Anda tentang %s masih kurang spesifik. Bisa dijelaskan lebih detail?", r.category)
	default:
		return ""
	}
}
