package config

import (
	"fmt"
	"regexp"
	"strings"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation error [%s]: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	if len(errs) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("found %d configuration error(s):\n", len(errs)))
	for i, err := range errs {
		b.WriteString(fmt.Sprintf("  %d. [%s] %s\n", i+1, err.Field, err.Message))
	}
	return b.String()
}

var validClassifications = map[string]bool{
	"disallowed":   true,
	"out_of_scope": true,
	"ambiguous":    true,
}

// Validate validates the complete configuration
func (c *Config) Validate() error {
	var errs ValidationErrors

	errs = append(errs, c.validateRetrieval()...)
	errs = append(errs, c.validateCache()...)
	errs = append(errs, c.validateGuardrail()...)
	errs = append(errs, c.validateTiers()...)
	errs = append(errs, c.validateQuota()...)
	errs = append(errs, c.validateVectorDB()...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (c *Config) validateRetrieval() ValidationErrors {
	var errs ValidationErrors
	if a := c.Retrieval.AlphaValue(); a < 0 || a > 1 {
		errs = append(errs, ValidationError{
			Field:   "retrieval.alpha",
			Message: fmt.Sprintf("alpha must be in [0,1], got %v", a),
		})
	}
	switch c.Retrieval.Fusion {
	case "", "weighted", "rrf":
	default:
		errs = append(errs, ValidationError{
			Field:   "retrieval.fusion",
			Message: fmt.Sprintf("unknown fusion strategy %q", c.Retrieval.Fusion),
		})
	}
	return errs
}

func (c *Config) validateCache() ValidationErrors {
	var errs ValidationErrors
	if c.Cache.Threshold < 0 || c.Cache.Threshold > 1 {
		errs = append(errs, ValidationError{
			Field:   "cache.threshold",
			Message: fmt.Sprintf("threshold must be in [0,1], got %v", c.Cache.Threshold),
		})
	}
	return errs
}

func (c *Config) validateGuardrail() ValidationErrors {
	var errs ValidationErrors
	for i, g := range c.Guardrail.RuleGroups {
		if !validClassifications[g.Classification] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("guardrail.rule_groups[%d].classification", i),
				Message: fmt.Sprintf("unknown classification %q", g.Classification),
			})
		}
		if g.Category == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("guardrail.rule_groups[%d].category", i),
				Message: "category is required",
			})
		}
		if len(g.Patterns) == 0 {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("guardrail.rule_groups[%d].patterns", i),
				Message: "at least one pattern is required",
			})
		}
		for j, p := range g.Patterns {
			if _, err := regexp.Compile("(?i)" + p); err != nil {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("guardrail.rule_groups[%d].patterns[%d]", i, j),
					Message: fmt.Sprintf("invalid pattern: %v", err),
				})
			}
		}
	}
	return errs
}

func (c *Config) validateTiers() ValidationErrors {
	var errs ValidationErrors
	seen := map[string]bool{}
	for i, t := range c.Tiers {
		if t.ID == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("tiers[%d].id", i),
				Message: "tier id is required",
			})
			continue
		}
		if seen[t.ID] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("tiers[%d].id", i),
				Message: fmt.Sprintf("duplicate tier id %q", t.ID),
			})
		}
		seen[t.ID] = true
		switch t.Provider {
		case "openai":
			if t.Model == "" {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("tiers[%d].model", i),
					Message: "model is required for openai tiers",
				})
			}
		case "http":
			if t.Endpoint == "" {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("tiers[%d].endpoint", i),
					Message: "endpoint is required for http tiers",
				})
			}
		default:
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("tiers[%d].provider", i),
				Message: fmt.Sprintf("unknown provider %q", t.Provider),
			})
		}
	}
	return errs
}

func (c *Config) validateQuota() ValidationErrors {
	var errs ValidationErrors
	switch c.Quota.Store {
	case "", "sqlite", "memory":
	default:
		errs = append(errs, ValidationError{
			Field:   "quota.store",
			Message: fmt.Sprintf("unknown quota store %q", c.Quota.Store),
		})
	}
	return errs
}

func (c *Config) validateVectorDB() ValidationErrors {
	var errs ValidationErrors
	switch c.VectorDB.Provider {
	case "", "milvus":
	default:
		errs = append(errs, ValidationError{
			Field:   "vectordb.provider",
			Message: fmt.Sprintf("unknown vectordb provider %q", c.VectorDB.Provider),
		})
	}
	if c.VectorDB.Provider == "milvus" {
		if c.VectorDB.Address == "" {
			errs = append(errs, ValidationError{
				Field:   "vectordb.address",
				Message: "address is required for milvus",
			})
		}
		if c.VectorDB.Collection == "" {
			errs = append(errs, ValidationError{
				Field:   "vectordb.collection",
				Message: "collection is required for milvus",
			})
		}
	}
	return errs
}
