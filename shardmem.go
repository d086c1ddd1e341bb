// Package shardmem is the root facade over the memory shard pipeline. It
// re-exports the types a consumer needs to store and retrieve shards without
// importing the src packages individually.
package shardmem

import (
	"log/slog"

	"github.com/Protocol-Lattice/go-shardmem/src/memory/config"
	"github.com/Protocol-Lattice/go-shardmem/src/memory/embed"
	"github.com/Protocol-Lattice/go-shardmem/src/memory/engine"
	"github.com/Protocol-Lattice/go-shardmem/src/memory/model"
	"github.com/Protocol-Lattice/go-shardmem/src/memory/store"
)

// Core record types.
type (
	MemoryShard = model.MemoryShard
	Kind        = model.Kind
	Role        = model.Role
	Importance  = model.Importance
)

// Error taxonomy.
type (
	ValidationError          = model.ValidationError
	DuplicateError           = model.DuplicateError
	TokenBudgetExceededError = model.TokenBudgetExceededError
)

var (
	ErrStoreUnavailable  = model.ErrStoreUnavailable
	ErrSearchUnavailable = model.ErrSearchUnavailable
)

// Pipeline types.
type (
	Config          = config.Config
	StorageEngine   = engine.StorageEngine
	RetrievalEngine = engine.RetrievalEngine
	SearchRequest   = engine.SearchRequest
	VectorStore     = store.VectorStore
	Embedder        = embed.Embedder
)

// FromEnv builds the configuration from the process environment.
func FromEnv() (Config, error) { return config.FromEnv() }

// Open wires both engines against a Qdrant store and the configured embedding
// provider, with the embedding cache in front. The caller owns bootstrap
// (StorageEngine.EnsureCollections) and shutdown.
func Open(cfg Config, logger *slog.Logger) (*StorageEngine, *RetrievalEngine, error) {
	vs := store.NewQdrantStore(cfg.QdrantURL, cfg.QdrantAPIKey, cfg.Timeout)

	embedder, err := embed.New(cfg.EmbedProvider, cfg.EmbedModel)
	if err != nil {
		return nil, nil, err
	}
	cached, err := embed.NewCachedEmbedder(embedder)
	if err != nil {
		return nil, nil, err
	}

	return engine.NewStorageEngine(cfg, vs, cached, logger),
		engine.NewRetrievalEngine(cfg, vs, cached, logger),
		nil
}
