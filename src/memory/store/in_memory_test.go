package store

import (
	"context"
	"testing"
)

func seedPoints() []Point {
	return []Point{
		{ID: "a", Vector: []float32{1, 0, 0}, Payload: map[string]any{"scope_id": "proj-a", "kind": "task-outcome", "content_hash": "h1"}},
		{ID: "b", Vector: []float32{0.9, 0.1, 0}, Payload: map[string]any{"scope_id": "proj-a", "kind": "error-pattern", "content_hash": "h2"}},
		{ID: "c", Vector: []float32{0, 1, 0}, Payload: map[string]any{"scope_id": "proj-b", "kind": "task-outcome", "content_hash": "h3"}},
	}
}

func TestInMemorySearchFiltersAndRanks(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	if err := s.Upsert(ctx, "knowledge", seedPoints(), true); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	hits, err := s.Search(ctx, "knowledge", []float32{1, 0, 0}, Filter{Must: []Condition{{Key: "scope_id", Match: "proj-a"}}}, 10, 0.5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].ID != "a" || hits[1].ID != "b" {
		t.Fatalf("hits out of order: %s, %s", hits[0].ID, hits[1].ID)
	}
	if hits[0].Score < hits[1].Score {
		t.Fatal("scores not descending")
	}
}

func TestInMemorySearchScoreThreshold(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	if err := s.Upsert(ctx, "knowledge", seedPoints(), true); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	// c is orthogonal to the query; a high threshold drops it entirely.
	hits, err := s.Search(ctx, "knowledge", []float32{0, 1, 0}, Filter{Must: []Condition{{Key: "scope_id", Match: "proj-a"}}}, 10, 0.5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("expected no hits above threshold, got %d", len(hits))
	}
}

func TestInMemoryScrollCountDelete(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	if err := s.Upsert(ctx, "knowledge", seedPoints(), true); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	byHash := Filter{Must: []Condition{{Key: "content_hash", Match: "h2"}}}
	points, err := s.Scroll(ctx, "knowledge", byHash, 10)
	if err != nil {
		t.Fatalf("Scroll: %v", err)
	}
	if len(points) != 1 || points[0].ID != "b" {
		t.Fatalf("scroll by hash: got %v", points)
	}

	byKinds := Filter{Must: []Condition{{Key: "kind", MatchAny: []string{"task-outcome", "schema-note"}}}}
	count, err := s.Count(ctx, "knowledge", byKinds)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}

	if err := s.Delete(ctx, "knowledge", []string{"a", "c"}); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if count, _ = s.Count(ctx, "knowledge", Filter{}); count != 1 {
		t.Fatalf("count after delete = %d, want 1", count)
	}
}

func TestFilterMatchesZeroValue(t *testing.T) {
	if !(Filter{}).Matches(map[string]any{"anything": "goes"}) {
		t.Fatal("zero filter must match everything")
	}
	f := Filter{Must: []Condition{{Key: "scope_id", Match: "proj-a"}, {Key: "kind", MatchAny: []string{"task-outcome"}}}}
	if !f.Matches(map[string]any{"scope_id": "proj-a", "kind": "task-outcome"}) {
		t.Fatal("conjunction should match")
	}
	if f.Matches(map[string]any{"scope_id": "proj-a", "kind": "session-note"}) {
		t.Fatal("match-any miss should fail the conjunction")
	}
}

func TestCosineSimilarity(t *testing.T) {
	cases := []struct {
		a, b []float32
		want float64
	}{
		{[]float32{1, 0}, []float32{1, 0}, 1},
		{[]float32{1, 0}, []float32{0, 1}, 0},
		{[]float32{1, 0}, []float32{1, 0, 0}, 0}, // shape mismatch
		{nil, nil, 0},
	}
	for _, c := range cases {
		if got := CosineSimilarity(c.a, c.b); got != c.want {
			t.Fatalf("CosineSimilarity(%v, %v) = %f, want %f", c.a, c.b, got, c.want)
		}
	}
}
