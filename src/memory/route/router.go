// Package route maps shard kinds to their logical collection pools and builds
// the scope filters retrieval and dedup run under.
package route

import (
	"github.com/Protocol-Lattice/go-shardmem/src/memory/model"
	"github.com/Protocol-Lattice/go-shardmem/src/memory/store"
)

// Pool names the three logical collections.
type Pool string

const (
	// PoolKnowledge holds project-scoped knowledge, most kinds.
	PoolKnowledge Pool = "knowledge"
	// PoolBestPractices is the global cross-tenant pool.
	PoolBestPractices Pool = "best-practices"
	// PoolSession holds session notes, partitioned by session id.
	PoolSession Pool = "session"
)

// PoolFor is the static kind to pool mapping. No runtime configuration
// changes it.
func PoolFor(kind model.Kind) Pool {
	switch kind {
	case model.KindUniversalBestPractice:
		return PoolBestPractices
	case model.KindSessionNote:
		return PoolSession
	default:
		return PoolKnowledge
	}
}

// Router resolves pools to the configured collection names.
type Router struct {
	Knowledge     string
	BestPractices string
	Session       string
}

// Collection returns the collection name a shard of this kind is stored in.
func (r Router) Collection(kind model.Kind) string {
	switch PoolFor(kind) {
	case PoolBestPractices:
		return r.BestPractices
	case PoolSession:
		return r.Session
	default:
		return r.Knowledge
	}
}

// CollectionForPool resolves a pool directly.
func (r Router) CollectionForPool(pool Pool) string {
	switch pool {
	case PoolBestPractices:
		return r.BestPractices
	case PoolSession:
		return r.Session
	default:
		return r.Knowledge
	}
}

// Collections lists every configured collection name.
func (r Router) Collections() []string {
	return []string{r.Knowledge, r.BestPractices, r.Session}
}

// ScopeFilter builds the partition filter for a kind. Project kinds filter on
// scope_id; the global pool matches every scope; session notes filter on the
// session identifier instead of the project scope.
func (r Router) ScopeFilter(kind model.Kind, scopeID string) store.Filter {
	switch PoolFor(kind) {
	case PoolBestPractices:
		return store.Filter{}
	case PoolSession:
		return store.Filter{Must: []store.Condition{{Key: model.FieldSessionID, Match: scopeID}}}
	default:
		return store.Filter{Must: []store.Condition{{Key: model.FieldScopeID, Match: scopeID}}}
	}
}
