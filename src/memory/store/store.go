// Package store defines the vector store contract the memory pipeline runs
// against and ships Qdrant, Postgres/pgvector, MongoDB, chromem and in-memory
// backends for it.
package store

import (
	"context"
	"math"
)

// Point is one persisted record: id, embedding vector, and the flat
// JSON-compatible shard payload.
type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

// ScoredPoint is a search hit with its cosine similarity to the query.
type ScoredPoint struct {
	Point
	Score float64
}

// Condition matches one payload field, either against a single value or any
// member of a set.
type Condition struct {
	Key      string
	Match    string
	MatchAny []string
}

// Filter is a conjunction of conditions over point payloads. The zero value
// matches every point.
type Filter struct {
	Must []Condition
}

// Matches evaluates the filter against a payload. Backends without server-side
// payload filtering use it to post-filter candidates.
func (f Filter) Matches(payload map[string]any) bool {
	for _, c := range f.Must {
		value := stringValue(payload[c.Key])
		if c.Match != "" {
			if value != c.Match {
				return false
			}
			continue
		}
		if len(c.MatchAny) > 0 {
			found := false
			for _, want := range c.MatchAny {
				if value == want {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
	}
	return true
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}

// VectorStore is the contract for long-term shard storage. Collections are
// fixed-dimension cosine-metric vector spaces; payloads carry every shard
// field. Implementations wrap transport failures with
// model.ErrStoreUnavailable so callers can degrade instead of crashing.
type VectorStore interface {
	// EnsureCollection creates the named collection with the given vector
	// dimension if it does not already exist. Idempotent.
	EnsureCollection(ctx context.Context, collection string, dim int) error

	// Upsert writes points by id. With wait set, the call does not return
	// until the store confirms persistence.
	Upsert(ctx context.Context, collection string, points []Point, wait bool) error

	// Get retrieves points by id. Missing ids are simply absent from the
	// result.
	Get(ctx context.Context, collection string, ids []string) ([]Point, error)

	// Scroll returns up to limit points matching the filter, without any
	// similarity ranking. Used for payload lookups (hash, unique_id).
	Scroll(ctx context.Context, collection string, filter Filter, limit int) ([]Point, error)

	// Search runs a cosine similarity query restricted by the filter,
	// dropping hits below scoreThreshold, best first.
	Search(ctx context.Context, collection string, vector []float32, filter Filter, limit int, scoreThreshold float64) ([]ScoredPoint, error)

	// Count returns the number of points matching the filter.
	Count(ctx context.Context, collection string, filter Filter) (int, error)

	// Delete removes points by id.
	Delete(ctx context.Context, collection string, ids []string) error
}

// CosineSimilarity computes cosine similarity between two vectors, 0 when the
// shapes differ or either vector is zero.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
