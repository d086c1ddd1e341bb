// Package engine orchestrates the memory shard pipeline: the write path from
// raw shard to confirmed vector-store point, and the read path from query text
// to a budgeted context string.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Protocol-Lattice/go-shardmem/src/memory/config"
	"github.com/Protocol-Lattice/go-shardmem/src/memory/dedup"
	"github.com/Protocol-Lattice/go-shardmem/src/memory/embed"
	"github.com/Protocol-Lattice/go-shardmem/src/memory/model"
	"github.com/Protocol-Lattice/go-shardmem/src/memory/route"
	"github.com/Protocol-Lattice/go-shardmem/src/memory/store"
	"github.com/Protocol-Lattice/go-shardmem/src/memory/tokens"
)

// StorageEngine runs the synchronous write path. Every stage must pass before
// anything is written; a failed call leaves the store untouched.
type StorageEngine struct {
	store      store.VectorStore
	embedder   embed.Embedder
	router     route.Router
	detector   *dedup.Detector
	shardLimit int
	logger     *slog.Logger
}

// NewStorageEngine wires the write path against a vector store and an
// embedding provider. The configuration is captured at construction; the
// engine never consults the environment.
func NewStorageEngine(cfg config.Config, vs store.VectorStore, embedder embed.Embedder, logger *slog.Logger) *StorageEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &StorageEngine{
		store:      vs,
		embedder:   embedder,
		router:     cfg.Router(),
		detector:   &dedup.Detector{Store: vs, Threshold: cfg.SemanticThreshold},
		shardLimit: cfg.MaxTokensPerShard,
		logger:     logger,
	}
}

// Store validates, budgets, dedupes, embeds and persists one shard, returning
// the storage point id. The upsert requests synchronous confirmation, so a nil
// error means the shard is durable and searchable. All-or-nothing: any stage
// failing aborts the write with no partial state.
func (e *StorageEngine) Store(ctx context.Context, shard model.MemoryShard) (string, error) {
	if shard.CreatedAt == "" {
		shard.CreatedAt = time.Now().UTC().Format("2006-01-02")
	}
	if len(shard.SourceRefs) == 0 {
		shard.SourceRefs = model.ExtractSourceRefs(shard.Content)
	}

	if err := model.Validate(shard); err != nil {
		return "", err
	}
	if err := tokens.EnforceShardSize(shard.Content, e.shardLimit); err != nil {
		return "", err
	}

	collection := e.router.Collection(shard.Kind)
	scope := e.router.ScopeFilter(shard.Kind, shard.ScopeID)
	shard.ContentHash = model.HashContent(shard.Content)

	// Embed before the duplicate check so the semantic stage and the upsert
	// share one provider call.
	vector, err := e.embedder.Embed(ctx, shard.Content)
	if err != nil {
		return "", fmt.Errorf("embed shard %s: %w: %v", shard.UniqueID, model.ErrStoreUnavailable, err)
	}

	if err := e.detector.Check(ctx, collection, scope, shard, vector); err != nil {
		return "", err
	}

	point := store.Point{
		ID:      uuid.NewString(),
		Vector:  vector,
		Payload: shard.Payload(),
	}
	if err := e.store.Upsert(ctx, collection, []store.Point{point}, true); err != nil {
		return "", fmt.Errorf("upsert shard %s: %w", shard.UniqueID, err)
	}

	e.logger.Info("shard stored",
		"unique_id", shard.UniqueID,
		"kind", string(shard.Kind),
		"collection", collection,
		"point_id", point.ID,
	)
	return point.ID, nil
}

// BatchResult reports the outcome of one shard in a batch write.
type BatchResult struct {
	UniqueID string
	ShardID  string
	Err      error
}

// StoreBatch stores each shard independently. A failing shard does not stop
// the rest of the batch; every shard gets a result in input order.
func (e *StorageEngine) StoreBatch(ctx context.Context, shards []model.MemoryShard) []BatchResult {
	results := make([]BatchResult, 0, len(shards))
	for _, shard := range shards {
		id, err := e.Store(ctx, shard)
		results = append(results, BatchResult{UniqueID: shard.UniqueID, ShardID: id, Err: err})
	}
	return results
}

// EnsureCollections creates every configured pool collection with the
// embedder's output dimension. Idempotent; run once at bootstrap.
func (e *StorageEngine) EnsureCollections(ctx context.Context) error {
	dim := e.embedder.Dimension()
	for _, collection := range e.router.Collections() {
		if err := e.store.EnsureCollection(ctx, collection, dim); err != nil {
			return fmt.Errorf("ensure collection %s: %w", collection, err)
		}
	}
	return nil
}

// Health reports per-collection point counts. An unreachable store surfaces
// as the wrapped transport error.
func (e *StorageEngine) Health(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int, 3)
	for _, collection := range e.router.Collections() {
		n, err := e.store.Count(ctx, collection, store.Filter{})
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", collection, err)
		}
		counts[collection] = n
	}
	return counts, nil
}
