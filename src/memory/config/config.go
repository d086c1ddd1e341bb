// Package config builds the immutable runtime configuration of the memory
// pipeline. Everything is read once at startup; components receive the struct
// and never consult the environment themselves.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/Protocol-Lattice/go-shardmem/src/memory/route"
)

// Defaults applied when the corresponding environment variable is unset.
const (
	DefaultQdrantURL     = "http://localhost:6333"
	DefaultKnowledge     = "knowledge"
	DefaultBestPractices = "best-practices"
	DefaultSessions      = "agent-memory"
	DefaultProjectID     = "default-project"

	DefaultMinScore          = 0.5
	DefaultSemanticThreshold = 0.85
	DefaultMaxTokensPerShard = 300
	DefaultEmbedDimension    = 384
	DefaultRequestTimeout    = 30 * time.Second
)

// Config is the full pipeline configuration. It is built once (FromEnv or a
// literal in tests) and passed by value; nothing mutates it afterwards.
type Config struct {
	// Vector store endpoint.
	QdrantURL    string
	QdrantAPIKey string
	Timeout      time.Duration

	// Collection names, one per logical pool.
	KnowledgeCollection     string
	BestPracticesCollection string
	SessionCollection       string

	// ProjectID is the default scope_id for writes and searches that do not
	// name one explicitly.
	ProjectID string

	// Embedding provider selection.
	EmbedProvider  string
	EmbedModel     string
	EmbedDimension int

	// Tunable thresholds. Both are empirical constants from the reference
	// embedding model and should be re-tuned when the model changes.
	MinScore          float64
	SemanticThreshold float64
	MaxTokensPerShard int
}

// FromEnv reads the configuration from the process environment, applying
// defaults for anything unset. Numeric variables that fail to parse are an
// error rather than a silent fallback.
func FromEnv() (Config, error) {
	cfg := Config{
		QdrantURL:               envOr("QDRANT_URL", DefaultQdrantURL),
		QdrantAPIKey:            os.Getenv("QDRANT_API_KEY"),
		Timeout:                 DefaultRequestTimeout,
		KnowledgeCollection:     envOr("QDRANT_KNOWLEDGE_COLLECTION", DefaultKnowledge),
		BestPracticesCollection: envOr("QDRANT_BEST_PRACTICES_COLLECTION", DefaultBestPractices),
		SessionCollection:       envOr("QDRANT_AGENT_MEMORY_COLLECTION", DefaultSessions),
		ProjectID:               envOr("PROJECT_ID", DefaultProjectID),
		EmbedProvider:           envOr("EMBEDDING_PROVIDER", "dummy"),
		EmbedModel:              os.Getenv("EMBEDDING_MODEL"),
	}

	var err error
	if cfg.EmbedDimension, err = envInt("EMBEDDING_DIMENSION", DefaultEmbedDimension); err != nil {
		return Config{}, err
	}
	if cfg.MaxTokensPerShard, err = envInt("MAX_TOKENS_PER_SHARD", DefaultMaxTokensPerShard); err != nil {
		return Config{}, err
	}
	if cfg.MinScore, err = envFloat("MEMORY_MIN_SCORE", DefaultMinScore); err != nil {
		return Config{}, err
	}
	if cfg.SemanticThreshold, err = envFloat("SIMILARITY_THRESHOLD", DefaultSemanticThreshold); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Router maps the configured collection names onto the three logical pools.
func (c Config) Router() route.Router {
	return route.Router{
		Knowledge:     c.KnowledgeCollection,
		BestPractices: c.BestPracticesCollection,
		Session:       c.SessionCollection,
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func envFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}
