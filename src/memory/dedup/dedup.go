// Package dedup rejects candidate writes that collide with shards already in
// the store, so retries and paraphrased resubmissions do not bloat retrieval.
package dedup

import (
	"context"
	"fmt"

	"github.com/Protocol-Lattice/go-shardmem/src/memory/model"
	"github.com/Protocol-Lattice/go-shardmem/src/memory/store"
)

// DefaultSemanticThreshold is the cosine similarity above which two shards
// count as the same idea reworded. Tuned against the reference embedding
// model; treat as a knob when swapping models.
const DefaultSemanticThreshold = 0.85

// Detector runs the three ordered duplicate checks against a vector store.
// It holds no state between calls and takes no locks: a concurrent writer can
// slip a near-duplicate past the check, and the next write attempt discovers
// it. That inconsistency is accepted as self-healing.
type Detector struct {
	Store store.VectorStore
	// Threshold is the semantic near-duplicate boundary; zero means
	// DefaultSemanticThreshold.
	Threshold float64
}

// Check verifies the candidate shard against the collection, restricted to the
// given scope filter. The checks run cheapest first and short-circuit:
//
//  1. exact: an existing point with the same content_hash
//  2. semantic: top-1 similarity at or above the threshold
//  3. id_collision: the same unique_id with differing content
//
// A nil return clears the shard for writing. The embedding vector is supplied
// by the caller so the store path embeds each shard exactly once.
func (d *Detector) Check(ctx context.Context, collection string, scope store.Filter, shard model.MemoryShard, vector []float32) error {
	threshold := d.Threshold
	if threshold == 0 {
		threshold = DefaultSemanticThreshold
	}

	hash := shard.ContentHash
	if hash == "" {
		hash = model.HashContent(shard.Content)
	}

	hashFilter := withCondition(scope, store.Condition{Key: model.FieldContentHash, Match: hash})
	hits, err := d.Store.Scroll(ctx, collection, hashFilter, 1)
	if err != nil {
		return fmt.Errorf("exact duplicate lookup: %w", err)
	}
	if len(hits) > 0 {
		return &model.DuplicateError{
			Kind:       model.DuplicateExact,
			ExistingID: existingID(hits[0]),
			Similarity: 1.0,
		}
	}

	scored, err := d.Store.Search(ctx, collection, vector, scope, 1, threshold)
	if err != nil {
		return fmt.Errorf("semantic duplicate search: %w", err)
	}
	if len(scored) > 0 {
		return &model.DuplicateError{
			Kind:       model.DuplicateSemantic,
			ExistingID: existingID(scored[0].Point),
			Similarity: scored[0].Score,
		}
	}

	idFilter := withCondition(scope, store.Condition{Key: model.FieldUniqueID, Match: shard.UniqueID})
	hits, err = d.Store.Scroll(ctx, collection, idFilter, 1)
	if err != nil {
		return fmt.Errorf("unique_id lookup: %w", err)
	}
	if len(hits) > 0 {
		existingHash := model.StringFromAny(hits[0].Payload[model.FieldContentHash])
		if existingHash != hash {
			return &model.DuplicateError{
				Kind:       model.DuplicateIDCollision,
				ExistingID: existingID(hits[0]),
			}
		}
	}
	return nil
}

// existingID prefers the shard's unique_id over the storage point id, since
// that is the handle producers actually know.
func existingID(p store.Point) string {
	if id := model.StringFromAny(p.Payload[model.FieldUniqueID]); id != "" {
		return id
	}
	return p.ID
}

func withCondition(base store.Filter, c store.Condition) store.Filter {
	must := make([]store.Condition, 0, len(base.Must)+1)
	must = append(must, base.Must...)
	must = append(must, c)
	return store.Filter{Must: must}
}
