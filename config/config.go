package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the serving core.
type Config struct {
	Server    ServerConfig      `json:"server" yaml:"server"`
	Corpus    CorpusConfig      `json:"corpus" yaml:"corpus"`
	Embedding EmbeddingConfig   `json:"embedding" yaml:"embedding"`
	Retrieval RetrievalConfig   `json:"retrieval" yaml:"retrieval"`
	VectorDB  VectorDBConfig    `json:"vectordb" yaml:"vectordb"`
	Cache     CacheConfig       `json:"cache" yaml:"cache"`
	Guardrail GuardrailConfig   `json:"guardrail" yaml:"guardrail"`
	Tiers     []TierConfig      `json:"tiers" yaml:"tiers"`
	Quota     QuotaConfig       `json:"quota" yaml:"quota"`
	HTTP      *HTTPClientConfig `json:"http,omitempty" yaml:"http,omitempty"`
}

// ServerConfig configures the HTTP boundary.
type ServerConfig struct {
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"`
	// RequestTimeoutMs bounds one whole request, generation included.
	RequestTimeoutMs int      `json:"request_timeout_ms,omitempty" yaml:"request_timeout_ms,omitempty"`
	AllowedOrigins   []string `json:"allowed_origins,omitempty" yaml:"allowed_origins,omitempty"`
}

// CorpusConfig points at the ingestion-produced chunk file.
type CorpusConfig struct {
	Path string `json:"path" yaml:"path"`
}

// EmbeddingConfig defines the query-embedding provider. Corpus embeddings are
// precomputed by ingestion; only queries are embedded at serving time.
type EmbeddingConfig struct {
	Provider   string `json:"provider" yaml:"provider"` // openai
	APIKey     string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	BaseURL    string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Model      string `json:"model,omitempty" yaml:"model,omitempty"`
	Dimensions int    `json:"dimensions,omitempty" yaml:"dimensions,omitempty"`
	// CacheSize is the LRU size for query-embedding reuse (0 => 1024).
	CacheSize int `json:"cache_size,omitempty" yaml:"cache_size,omitempty"`
}

// RetrievalConfig tunes the hybrid retriever.
type RetrievalConfig struct {
	TopK int `json:"top_k,omitempty" yaml:"top_k,omitempty"`
	// Alpha is the dense weight in [0,1]; 0 => pure sparse, 1 => pure dense.
	// Unset defaults to 0.6.
	Alpha *float64 `json:"alpha,omitempty" yaml:"alpha,omitempty"`
	// Overshoot is the per-ranker candidate pool multiplier (default 2).
	Overshoot int `json:"overshoot,omitempty" yaml:"overshoot,omitempty"`
	// Fusion strategy: "weighted" (default) or "rrf".
	Fusion string `json:"fusion,omitempty" yaml:"fusion,omitempty"`
	RRFK   int    `json:"rrf_k,omitempty" yaml:"rrf_k,omitempty"`
	// BM25 constants.
	BM25K1 float64 `json:"bm25_k1,omitempty" yaml:"bm25_k1,omitempty"`
	BM25B  float64 `json:"bm25_b,omitempty" yaml:"bm25_b,omitempty"`
}

// AlphaValue returns the configured dense weight or the default.
func (r RetrievalConfig) AlphaValue() float64 {
	if r.Alpha == nil {
		return 0.6
	}
	return *r.Alpha
}

// VectorDBConfig optionally backs the dense ranker with a remote ANN index.
// When Provider is empty the dense ranker scans the in-process corpus.
type VectorDBConfig struct {
	Provider   string `json:"provider,omitempty" yaml:"provider,omitempty"` // "", milvus
	Address    string `json:"address,omitempty" yaml:"address,omitempty"`
	Collection string `json:"collection,omitempty" yaml:"collection,omitempty"`
	Username   string `json:"username,omitempty" yaml:"username,omitempty"`
	Password   string `json:"password,omitempty" yaml:"password,omitempty"`
	// EfSearch is the HNSW search parameter (0 => 64).
	EfSearch int `json:"ef_search,omitempty" yaml:"ef_search,omitempty"`
}

// CacheConfig controls the semantic response cache.
type CacheConfig struct {
	Enabled    bool `json:"enabled" yaml:"enabled"`
	Capacity   int  `json:"capacity,omitempty" yaml:"capacity,omitempty"`
	TTLSeconds int  `json:"ttl_seconds,omitempty" yaml:"ttl_seconds,omitempty"`
	// Threshold is the minimum cosine similarity for a hit (default 0.95).
	Threshold float64 `json:"threshold,omitempty" yaml:"threshold,omitempty"`
}

// TTL returns the configured TTL as a duration.
func (c CacheConfig) TTL() time.Duration {
	if c.TTLSeconds <= 0 {
		return time.Hour
	}
	return time.Duration(c.TTLSeconds) * time.Second
}

// GuardrailConfig holds the data-driven classification rules.
type GuardrailConfig struct {
	// RulesPath optionally loads RuleGroups from a separate yaml file.
	RulesPath string `json:"rules_path,omitempty" yaml:"rules_path,omitempty"`
	// RuleGroups are evaluated in strict priority order:
	// disallowed > out_of_scope > ambiguous.
	RuleGroups []RuleGroup `json:"rule_groups,omitempty" yaml:"rule_groups,omitempty"`
	// AmbiguousPassthrough lets Ambiguous queries continue through the
	// pipeline with a confidence penalty instead of short-circuiting.
	AmbiguousPassthrough bool `json:"ambiguous_passthrough,omitempty" yaml:"ambiguous_passthrough,omitempty"`
	// ConfidencePenalty multiplies final confidence for passed-through
	// Ambiguous queries (0 => 0.5).
	ConfidencePenalty float64 `json:"confidence_penalty,omitempty" yaml:"confidence_penalty,omitempty"`
}

// RuleGroup is a set of patterns sharing one classification and category.
type RuleGroup struct {
	// Classification: disallowed, out_of_scope, ambiguous.
	Classification string `json:"classification" yaml:"classification"`
	// Category names the rule group, e.g. "identity_documents".
	Category string `json:"category" yaml:"category"`
	// Patterns are case-insensitive regular expressions.
	Patterns []string `json:"patterns" yaml:"patterns"`
	// Clarification is the response template for ambiguous matches.
	// "{query}" is substituted with the original question.
	Clarification string `json:"clarification,omitempty" yaml:"clarification,omitempty"`
}

// TierConfig registers one generation backend in fallback priority order
// (first entry is tried first).
type TierConfig struct {
	ID       string `json:"id" yaml:"id"`
	Provider string `json:"provider" yaml:"provider"` // openai, http
	APIKey   string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	BaseURL  string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	Model    string `json:"model,omitempty" yaml:"model,omitempty"`

	Temperature float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	TimeoutMs   int     `json:"timeout_ms,omitempty" yaml:"timeout_ms,omitempty"`

	// Quota limits; zero disables the corresponding check.
	RequestsPerMinute int `json:"requests_per_minute,omitempty" yaml:"requests_per_minute,omitempty"`
	RequestsPerDay    int `json:"requests_per_day,omitempty" yaml:"requests_per_day,omitempty"`
	TokensPerDay      int `json:"tokens_per_day,omitempty" yaml:"tokens_per_day,omitempty"`
}

// Timeout returns the per-call timeout as a duration.
func (t TierConfig) Timeout() time.Duration {
	if t.TimeoutMs <= 0 {
		return 20 * time.Second
	}
	return time.Duration(t.TimeoutMs) * time.Millisecond
}

// QuotaConfig configures the durable counter store.
type QuotaConfig struct {
	// Store: "sqlite" (durable) or "memory".
	Store string `json:"store,omitempty" yaml:"store,omitempty"`
	Path  string `json:"path,omitempty" yaml:"path,omitempty"`
}

// HTTPClientConfig sets defaults for outbound HTTP calls (generic generation
// tiers, mock backends).
type HTTPClientConfig struct {
	TimeoutMs              int      `json:"timeout_ms,omitempty" yaml:"timeout_ms,omitempty"`
	Retry                  int      `json:"retry,omitempty" yaml:"retry,omitempty"`
	BackoffMinMs           int      `json:"backoff_min_ms,omitempty" yaml:"backoff_min_ms,omitempty"`
	BackoffMaxMs           int      `json:"backoff_max_ms,omitempty" yaml:"backoff_max_ms,omitempty"`
	HostAllowlist          []string `json:"host_allowlist,omitempty" yaml:"host_allowlist,omitempty"`
	MaxConsecutiveFailures int      `json:"max_consecutive_failures,omitempty" yaml:"max_consecutive_failures,omitempty"`
	CircuitOpenSeconds     int      `json:"circuit_open_seconds,omitempty" yaml:"circuit_open_seconds,omitempty"`
}

// Load reads a yaml config file, applies defaults and validates.
func Load(path string) (*Config, error) {
	bs, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	// ${VAR} references resolve against the process environment, so secrets
	// like API keys stay out of the file.
	bs = []byte(os.ExpandEnv(string(bs)))
	cfg := &Config{}
	if err := yaml.Unmarshal(bs, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.ApplyDefaults()
	if cfg.Guardrail.RulesPath != "" {
		groups, err := LoadRuleGroups(cfg.Guardrail.RulesPath)
		if err != nil {
			return nil, err
		}
		cfg.Guardrail.RuleGroups = append(cfg.Guardrail.RuleGroups, groups...)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadRuleGroups reads guardrail rule groups from a standalone yaml file.
func LoadRuleGroups(path string) ([]RuleGroup, error) {
	bs, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	var doc struct {
		RuleGroups []RuleGroup `yaml:"rule_groups"`
	}
	if err := yaml.Unmarshal(bs, &doc); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	return doc.RuleGroups, nil
}

// ApplyDefaults fills unset fields with serving defaults.
func (c *Config) ApplyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.RequestTimeoutMs <= 0 {
		c.Server.RequestTimeoutMs = 30000
	}
	if c.Retrieval.TopK <= 0 {
		c.Retrieval.TopK = 4
	}
	if c.Retrieval.Overshoot <= 0 {
		c.Retrieval.Overshoot = 2
	}
	if c.Retrieval.Fusion == "" {
		c.Retrieval.Fusion = "weighted"
	}
	if c.Retrieval.RRFK <= 0 {
		c.Retrieval.RRFK = 60
	}
	if c.Retrieval.BM25K1 <= 0 {
		c.Retrieval.BM25K1 = 1.5
	}
	if c.Retrieval.BM25B <= 0 {
		c.Retrieval.BM25B = 0.75
	}
	if c.Cache.Capacity <= 0 {
		c.Cache.Capacity = 512
	}
	if c.Cache.Threshold <= 0 {
		c.Cache.Threshold = 0.95
	}
	if c.Cache.TTLSeconds <= 0 {
		c.Cache.TTLSeconds = 3600
	}
	if c.Guardrail.ConfidencePenalty <= 0 {
		c.Guardrail.ConfidencePenalty = 0.5
	}
	if c.Embedding.CacheSize <= 0 {
		c.Embedding.CacheSize = 1024
	}
	if c.Quota.Store == "" {
		c.Quota.Store = "sqlite"
	}
	if c.Quota.Store == "sqlite" && c.Quota.Path == "" {
		c.Quota.Path = "quota.db"
	}
	for i := range c.Tiers {
		if c.Tiers[i].TimeoutMs <= 0 {
			c.Tiers[i].TimeoutMs = 20000
		}
		if c.Tiers[i].MaxTokens <= 0 {
			c.Tiers[i].MaxTokens = 1024
		}
	}
}
