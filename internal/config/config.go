// Package config defines the engine configuration: every recognized option,
// its default, YAML loading, environment overrides, and validation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/graphmem/internal/errors"
)

// Config is the complete graphmem configuration.
type Config struct {
	TFIDF       TFIDFConfig       `yaml:"tfidf" json:"tfidf"`
	BM25        BM25Config        `yaml:"bm25" json:"bm25"`
	Fuzzy       FuzzyConfig       `yaml:"fuzzy" json:"fuzzy"`
	Boolean     BooleanConfig     `yaml:"boolean" json:"boolean"`
	Hybrid      HybridConfig      `yaml:"hybrid" json:"hybrid"`
	Plan        PlanConfig        `yaml:"plan" json:"plan"`
	Termination TerminationConfig `yaml:"termination" json:"termination"`
	Reflection  ReflectionConfig  `yaml:"reflection" json:"reflection"`
	ResultCache ResultCacheConfig `yaml:"result_cache" json:"result_cache"`
	Pagination  PaginationConfig  `yaml:"pagination" json:"pagination"`
	Embeddings  EmbeddingsConfig  `yaml:"embeddings" json:"embeddings"`
	Logging     LoggingConfig     `yaml:"logging" json:"logging"`
}

// TFIDFConfig configures the TF-IDF index.
type TFIDFConfig struct {
	// MinTermLength is the minimum token length to index.
	MinTermLength int `yaml:"min_term_length" json:"min_term_length"`
	// StopWords replaces the default stop-word list when non-empty.
	StopWords []string `yaml:"stopwords" json:"stopwords"`
}

// BM25Config holds the Okapi parameters.
type BM25Config struct {
	K1 float64 `yaml:"k1" json:"k1"`
	B  float64 `yaml:"b" json:"b"`
	// Backend selects the keyword index: "memory" (default) or "bleve".
	Backend string `yaml:"backend" json:"backend"`
}

// FuzzyConfig configures edit-distance search.
type FuzzyConfig struct {
	Threshold     float64 `yaml:"threshold" json:"threshold"`
	UseWorkerPool bool    `yaml:"use_worker_pool" json:"use_worker_pool"`
}

// BooleanConfig bounds boolean query complexity.
type BooleanConfig struct {
	MaxDepth       int `yaml:"max_depth" json:"max_depth"`
	MaxTerms       int `yaml:"max_terms" json:"max_terms"`
	MaxOperators   int `yaml:"max_operators" json:"max_operators"`
	MaxQueryLength int `yaml:"max_query_length" json:"max_query_length"`
}

// HybridConfig configures layer fusion.
type HybridConfig struct {
	SemanticWeight   float64 `yaml:"semantic_weight" json:"semantic_weight"`
	LexicalWeight    float64 `yaml:"lexical_weight" json:"lexical_weight"`
	SymbolicWeight   float64 `yaml:"symbolic_weight" json:"symbolic_weight"`
	MinScore         float64 `yaml:"min_score" json:"min_score"`
	NormalizeWeights bool    `yaml:"normalize_weights" json:"normalize_weights"`
}

// PlanConfig configures the query plan cache.
type PlanConfig struct {
	CacheMaxSize     int           `yaml:"cache_max_size" json:"cache_max_size"`
	CacheTTL         time.Duration `yaml:"cache_ttl" json:"cache_ttl"`
	NormalizeQueries bool          `yaml:"normalize_queries" json:"normalize_queries"`
}

// TerminationConfig configures the early-termination controller.
type TerminationConfig struct {
	AdequacyThreshold float64       `yaml:"adequacy_threshold" json:"adequacy_threshold"`
	MinResults        int           `yaml:"min_results" json:"min_results"`
	MinRelevance      float64       `yaml:"min_relevance" json:"min_relevance"`
	MinDiversity      int           `yaml:"min_diversity" json:"min_diversity"`
	LayerTimeout      time.Duration `yaml:"layer_timeout" json:"layer_timeout"`
}

// ReflectionConfig configures iterative refinement.
type ReflectionConfig struct {
	MaxIterations       int     `yaml:"max_iterations" json:"max_iterations"`
	InitialLimit        int     `yaml:"initial_limit" json:"initial_limit"`
	LimitIncreaseFactor float64 `yaml:"limit_increase_factor" json:"limit_increase_factor"`
	FocusMissingTypes   bool    `yaml:"focus_missing_types" json:"focus_missing_types"`
}

// ResultCacheConfig configures the per-retriever result caches.
type ResultCacheConfig struct {
	Size int           `yaml:"size" json:"size"`
	TTL  time.Duration `yaml:"ttl" json:"ttl"`
}

// PaginationConfig bounds offset/limit.
type PaginationConfig struct {
	DefaultLimit int `yaml:"default_limit" json:"default_limit"`
	MaxLimit     int `yaml:"max_limit" json:"max_limit"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider is "static" (default, deterministic) or "ollama".
	Provider   string `yaml:"provider" json:"provider"`
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`
	Model      string `yaml:"model" json:"model"`
	Dimensions int    `yaml:"dimensions" json:"dimensions"`
	CacheSize  int    `yaml:"cache_size" json:"cache_size"`
}

// LoggingConfig configures slog setup.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// Default returns the documented defaults.
func Default() Config {
	return Config{
		TFIDF: TFIDFConfig{
			MinTermLength: 3,
		},
		BM25: BM25Config{
			K1:      1.2,
			B:       0.75,
			Backend: "memory",
		},
		Fuzzy: FuzzyConfig{
			Threshold:     0.7,
			UseWorkerPool: true,
		},
		Boolean: BooleanConfig{
			MaxDepth:       10,
			MaxTerms:       50,
			MaxOperators:   50,
			MaxQueryLength: 1000,
		},
		Hybrid: HybridConfig{
			SemanticWeight:   0.4,
			LexicalWeight:    0.4,
			SymbolicWeight:   0.2,
			MinScore:         0,
			NormalizeWeights: true,
		},
		Plan: PlanConfig{
			CacheMaxSize:     100,
			CacheTTL:         5 * time.Minute,
			NormalizeQueries: true,
		},
		Termination: TerminationConfig{
			AdequacyThreshold: 0.7,
			MinResults:        3,
			MinRelevance:      0.5,
			MinDiversity:      2,
			LayerTimeout:      2 * time.Second,
		},
		Reflection: ReflectionConfig{
			MaxIterations:       3,
			InitialLimit:        10,
			LimitIncreaseFactor: 1.5,
			FocusMissingTypes:   true,
		},
		ResultCache: ResultCacheConfig{
			Size: 500,
			TTL:  5 * time.Minute,
		},
		Pagination: PaginationConfig{
			DefaultLimit: 50,
			MaxLimit:     200,
		},
		Embeddings: EmbeddingsConfig{
			Provider:  "static",
			CacheSize: 4096,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Load reads a YAML config file over the defaults and applies environment
// overrides. A missing path returns defaults plus env.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, errors.New(errors.ErrCodeConfigNotFound, "read config file", err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, errors.New(errors.ErrCodeConfigInvalid, "parse config file", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv overrides selected options from GRAPHMEM_* variables.
func (c *Config) applyEnv() {
	if v := os.Getenv("GRAPHMEM_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("GRAPHMEM_EMBED_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("GRAPHMEM_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
	}
	if v := os.Getenv("GRAPHMEM_BM25_BACKEND"); v != "" {
		c.BM25.Backend = v
	}
	if v := os.Getenv("GRAPHMEM_FUZZY_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Fuzzy.Threshold = f
		}
	}
}

// Validate checks option ranges.
func (c *Config) Validate() error {
	fail := func(format string, args ...any) error {
		return errors.New(errors.ErrCodeConfigInvalid, fmt.Sprintf(format, args...), nil)
	}

	if c.TFIDF.MinTermLength < 1 {
		return fail("tfidf.min_term_length must be >= 1, got %d", c.TFIDF.MinTermLength)
	}
	if c.BM25.K1 <= 0 {
		return fail("bm25.k1 must be positive, got %g", c.BM25.K1)
	}
	if c.BM25.B < 0 || c.BM25.B > 1 {
		return fail("bm25.b must be in [0,1], got %g", c.BM25.B)
	}
	if c.Fuzzy.Threshold < 0 || c.Fuzzy.Threshold > 1 {
		return fail("fuzzy.threshold must be in [0,1], got %g", c.Fuzzy.Threshold)
	}
	for name, w := range map[string]float64{
		"hybrid.semantic_weight": c.Hybrid.SemanticWeight,
		"hybrid.lexical_weight":  c.Hybrid.LexicalWeight,
		"hybrid.symbolic_weight": c.Hybrid.SymbolicWeight,
	} {
		if w < 0 {
			return fail("%s must be non-negative, got %g", name, w)
		}
	}
	if c.Termination.AdequacyThreshold < 0 || c.Termination.AdequacyThreshold > 1 {
		return fail("termination.adequacy_threshold must be in [0,1], got %g", c.Termination.AdequacyThreshold)
	}
	if c.Reflection.MaxIterations < 1 {
		return fail("reflection.max_iterations must be >= 1, got %d", c.Reflection.MaxIterations)
	}
	if c.Reflection.LimitIncreaseFactor < 1 {
		return fail("reflection.limit_increase_factor must be >= 1, got %g", c.Reflection.LimitIncreaseFactor)
	}
	if c.Pagination.DefaultLimit < 1 || c.Pagination.MaxLimit < c.Pagination.DefaultLimit {
		return fail("pagination limits invalid: default %d, max %d", c.Pagination.DefaultLimit, c.Pagination.MaxLimit)
	}
	return nil
}
