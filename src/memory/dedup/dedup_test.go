package dedup

import (
	"context"
	"errors"
	"testing"

	"github.com/Protocol-Lattice/go-shardmem/src/memory/embed"
	"github.com/Protocol-Lattice/go-shardmem/src/memory/model"
	"github.com/Protocol-Lattice/go-shardmem/src/memory/store"
)

const testCollection = "knowledge"

func scopeFilter(scopeID string) store.Filter {
	return store.Filter{Must: []store.Condition{{Key: model.FieldScopeID, Match: scopeID}}}
}

func seed(t *testing.T, s store.VectorStore, id string, shard model.MemoryShard) {
	t.Helper()
	shard.ContentHash = model.HashContent(shard.Content)
	err := s.Upsert(context.Background(), testCollection, []store.Point{{
		ID:      id,
		Vector:  embed.DummyEmbedding(shard.Content),
		Payload: shard.Payload(),
	}}, true)
	if err != nil {
		t.Fatalf("seed upsert: %v", err)
	}
}

func testShard(uniqueID, content string) model.MemoryShard {
	return model.MemoryShard{
		Content:    content,
		Kind:       model.KindTaskOutcome,
		UniqueID:   uniqueID,
		ScopeID:    "proj-a",
		Role:       model.RoleDev,
		Importance: model.ImportanceHigh,
		CreatedAt:  "2026-08-28",
	}
}

func check(t *testing.T, d *Detector, shard model.MemoryShard) error {
	t.Helper()
	return d.Check(context.Background(), testCollection, scopeFilter(shard.ScopeID),
		shard, embed.DummyEmbedding(shard.Content))
}

func TestCheckPassesCleanShard(t *testing.T) {
	s := store.NewInMemoryStore()
	d := &Detector{Store: s}
	if err := check(t, d, testShard("story-1-1-checkout", "Checkout retries use exponential backoff capped at five attempts.")); err != nil {
		t.Fatalf("Check on empty store: %v", err)
	}
}

func TestCheckExactDuplicate(t *testing.T) {
	s := store.NewInMemoryStore()
	existing := testShard("story-1-1-checkout", "Checkout retries use exponential backoff capped at five attempts.")
	seed(t, s, "p1", existing)

	d := &Detector{Store: s}
	candidate := testShard("story-9-9-other", existing.Content)
	err := check(t, d, candidate)

	var dup *model.DuplicateError
	if !errors.As(err, &dup) {
		t.Fatalf("Check = %v, want DuplicateError", err)
	}
	if dup.Kind != model.DuplicateExact {
		t.Fatalf("Kind = %q, want exact", dup.Kind)
	}
	if dup.ExistingID != "story-1-1-checkout" {
		t.Fatalf("ExistingID = %q, want the stored unique_id", dup.ExistingID)
	}
}

func TestCheckSemanticDuplicate(t *testing.T) {
	s := store.NewInMemoryStore()
	existing := testShard("story-1-1-checkout", "Checkout retries use exponential backoff capped at five attempts.")
	seed(t, s, "p1", existing)

	// Same bytes are always similarity 1.0; tweak trailing whitespace so the
	// content hash differs while the dummy embedding still matches closely.
	d := &Detector{Store: s, Threshold: 0.95}
	candidate := testShard("story-1-2-checkout", existing.Content+" !")
	if model.HashContent(candidate.Content) == model.HashContent(existing.Content) {
		t.Fatal("test setup: hashes must differ")
	}
	err := check(t, d, candidate)

	var dup *model.DuplicateError
	if !errors.As(err, &dup) {
		t.Fatalf("Check = %v, want DuplicateError", err)
	}
	if dup.Kind != model.DuplicateSemantic {
		t.Fatalf("Kind = %q, want semantic", dup.Kind)
	}
	if dup.Similarity < 0.95 {
		t.Fatalf("Similarity = %.3f, want >= threshold", dup.Similarity)
	}
	if dup.ExistingID != "story-1-1-checkout" {
		t.Fatalf("ExistingID = %q", dup.ExistingID)
	}
}

func TestCheckIDCollision(t *testing.T) {
	s := store.NewInMemoryStore()
	existing := testShard("story-1-1-checkout", "Checkout retries use exponential backoff capped at five attempts.")
	seed(t, s, "p1", existing)

	d := &Detector{Store: s, Threshold: 0.999}
	candidate := testShard("story-1-1-checkout", "Settlement happens in a nightly batch job, not at checkout time.")
	err := check(t, d, candidate)

	var dup *model.DuplicateError
	if !errors.As(err, &dup) {
		t.Fatalf("Check = %v, want DuplicateError", err)
	}
	if dup.Kind != model.DuplicateIDCollision {
		t.Fatalf("Kind = %q, want id_collision", dup.Kind)
	}
}

func TestCheckIsScoped(t *testing.T) {
	s := store.NewInMemoryStore()
	existing := testShard("story-1-1-checkout", "Checkout retries use exponential backoff capped at five attempts.")
	seed(t, s, "p1", existing)

	// Same content in another scope is not a duplicate.
	d := &Detector{Store: s}
	candidate := testShard("story-1-1-checkout", existing.Content)
	candidate.ScopeID = "proj-b"
	if err := check(t, d, candidate); err != nil {
		t.Fatalf("cross-scope Check: %v", err)
	}
}

func TestCheckShortCircuitsOnExact(t *testing.T) {
	// With an exact hash hit, the detector must not run the similarity
	// search; a store whose Search always fails proves the ordering.
	s := &searchFailStore{VectorStore: store.NewInMemoryStore()}
	existing := testShard("story-1-1-checkout", "Checkout retries use exponential backoff capped at five attempts.")
	seed(t, s, "p1", existing)

	d := &Detector{Store: s}
	err := check(t, d, testShard("story-2-2-other", existing.Content))

	var dup *model.DuplicateError
	if !errors.As(err, &dup) || dup.Kind != model.DuplicateExact {
		t.Fatalf("Check = %v, want exact duplicate without touching Search", err)
	}
}

type searchFailStore struct {
	store.VectorStore
}

func (s *searchFailStore) Search(context.Context, string, []float32, store.Filter, int, float64) ([]store.ScoredPoint, error) {
	return nil, errors.New("search must not be called")
}
