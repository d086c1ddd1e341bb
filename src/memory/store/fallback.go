package store

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Protocol-Lattice/go-shardmem/src/memory/model"
)

// FallbackStore delegates to a primary store and degrades to a secondary
// (typically a local chromem database) when the primary is unreachable. Only
// unavailability triggers the fallback; every other error surfaces as-is. The
// two stores are not reconciled: a shard written to the secondary stays there
// until an external process replays it.
type FallbackStore struct {
	primary   VectorStore
	secondary VectorStore
	logger    *slog.Logger
}

// NewFallbackStore wires a primary and secondary store. logger may be nil.
func NewFallbackStore(primary, secondary VectorStore, logger *slog.Logger) *FallbackStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FallbackStore{primary: primary, secondary: secondary, logger: logger}
}

func (fs *FallbackStore) degrade(op string, err error) bool {
	if !errors.Is(err, model.ErrStoreUnavailable) {
		return false
	}
	fs.logger.Warn("primary store unavailable, degrading to local fallback", "op", op, "error", err)
	return true
}

func (fs *FallbackStore) EnsureCollection(ctx context.Context, collection string, dim int) error {
	// The secondary is always prepared so a later degraded write has a
	// collection to land in.
	if err := fs.secondary.EnsureCollection(ctx, collection, dim); err != nil {
		return err
	}
	if err := fs.primary.EnsureCollection(ctx, collection, dim); err != nil && !fs.degrade("ensure_collection", err) {
		return err
	}
	return nil
}

func (fs *FallbackStore) Upsert(ctx context.Context, collection string, points []Point, wait bool) error {
	err := fs.primary.Upsert(ctx, collection, points, wait)
	if err == nil || !fs.degrade("upsert", err) {
		return err
	}
	return fs.secondary.Upsert(ctx, collection, points, wait)
}

func (fs *FallbackStore) Get(ctx context.Context, collection string, ids []string) ([]Point, error) {
	points, err := fs.primary.Get(ctx, collection, ids)
	if err == nil || !fs.degrade("get", err) {
		return points, err
	}
	return fs.secondary.Get(ctx, collection, ids)
}

func (fs *FallbackStore) Scroll(ctx context.Context, collection string, filter Filter, limit int) ([]Point, error) {
	points, err := fs.primary.Scroll(ctx, collection, filter, limit)
	if err == nil || !fs.degrade("scroll", err) {
		return points, err
	}
	return fs.secondary.Scroll(ctx, collection, filter, limit)
}

func (fs *FallbackStore) Search(ctx context.Context, collection string, vector []float32, filter Filter, limit int, scoreThreshold float64) ([]ScoredPoint, error) {
	hits, err := fs.primary.Search(ctx, collection, vector, filter, limit, scoreThreshold)
	if err == nil || !fs.degrade("search", err) {
		return hits, err
	}
	return fs.secondary.Search(ctx, collection, vector, filter, limit, scoreThreshold)
}

func (fs *FallbackStore) Count(ctx context.Context, collection string, filter Filter) (int, error) {
	count, err := fs.primary.Count(ctx, collection, filter)
	if err == nil || !fs.degrade("count", err) {
		return count, err
	}
	return fs.secondary.Count(ctx, collection, filter)
}

func (fs *FallbackStore) Delete(ctx context.Context, collection string, ids []string) error {
	err := fs.primary.Delete(ctx, collection, ids)
	if err == nil || !fs.degrade("delete", err) {
		return err
	}
	return fs.secondary.Delete(ctx, collection, ids)
}
