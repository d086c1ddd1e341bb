package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/Protocol-Lattice/go-shardmem/src/memory/model"
)

// downStore fails every operation as unreachable.
type downStore struct{}

func (downStore) EnsureCollection(context.Context, string, int) error {
	return fmt.Errorf("%w: connection refused", model.ErrStoreUnavailable)
}
func (downStore) Upsert(context.Context, string, []Point, bool) error {
	return fmt.Errorf("%w: connection refused", model.ErrStoreUnavailable)
}
func (downStore) Get(context.Context, string, []string) ([]Point, error) {
	return nil, fmt.Errorf("%w: connection refused", model.ErrStoreUnavailable)
}
func (downStore) Scroll(context.Context, string, Filter, int) ([]Point, error) {
	return nil, fmt.Errorf("%w: connection refused", model.ErrStoreUnavailable)
}
func (downStore) Search(context.Context, string, []float32, Filter, int, float64) ([]ScoredPoint, error) {
	return nil, fmt.Errorf("%w: connection refused", model.ErrStoreUnavailable)
}
func (downStore) Count(context.Context, string, Filter) (int, error) {
	return 0, fmt.Errorf("%w: connection refused", model.ErrStoreUnavailable)
}
func (downStore) Delete(context.Context, string, []string) error {
	return fmt.Errorf("%w: connection refused", model.ErrStoreUnavailable)
}

func TestFallbackDegradesOnUnavailable(t *testing.T) {
	ctx := context.Background()
	secondary := NewInMemoryStore()
	fs := NewFallbackStore(downStore{}, secondary, nil)

	if err := fs.EnsureCollection(ctx, "knowledge", 3); err != nil {
		t.Fatalf("EnsureCollection: %v", err)
	}
	point := Point{ID: "a", Vector: []float32{1, 0, 0}, Payload: map[string]any{"scope_id": "proj-a"}}
	if err := fs.Upsert(ctx, "knowledge", []Point{point}, true); err != nil {
		t.Fatalf("Upsert should degrade, got %v", err)
	}

	// The shard is readable through the degraded path.
	hits, err := fs.Search(ctx, "knowledge", []float32{1, 0, 0}, Filter{}, 5, 0.5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != "a" {
		t.Fatalf("hits = %+v", hits)
	}

	count, err := fs.Count(ctx, "knowledge", Filter{})
	if err != nil || count != 1 {
		t.Fatalf("Count = %d, %v", count, err)
	}
}

// brokenStore fails with a non-transport error that must not degrade.
type brokenStore struct{ downStore }

var errBadRequest = errors.New("malformed filter")

func (brokenStore) Search(context.Context, string, []float32, Filter, int, float64) ([]ScoredPoint, error) {
	return nil, errBadRequest
}

func TestFallbackDoesNotMaskOtherErrors(t *testing.T) {
	fs := NewFallbackStore(brokenStore{}, NewInMemoryStore(), nil)
	_, err := fs.Search(context.Background(), "knowledge", []float32{1}, Filter{}, 1, 0)
	if !errors.Is(err, errBadRequest) {
		t.Fatalf("expected the primary's error, got %v", err)
	}
}
