package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/Protocol-Lattice/go-shardmem/src/memory/config"
	"github.com/Protocol-Lattice/go-shardmem/src/memory/embed"
	"github.com/Protocol-Lattice/go-shardmem/src/memory/model"
	"github.com/Protocol-Lattice/go-shardmem/src/memory/route"
	"github.com/Protocol-Lattice/go-shardmem/src/memory/store"
	"github.com/Protocol-Lattice/go-shardmem/src/memory/tokens"
)

// DefaultSearchLimit caps how many hits a search pulls per pool before budget
// selection.
const DefaultSearchLimit = 10

// SearchRequest describes one retrieval call. Zero values mean defaults:
// no kind/importance filter, the configured minimum score, limit 10.
type SearchRequest struct {
	Query      string
	Role       model.Role
	ScopeID    string
	Kinds      []model.Kind
	Importance []model.Importance
	MinScore   float64
	Limit      int
}

// RetrievalEngine runs the read path: embed the query, search the routed
// pools under the scope filter, then pack the best hits into the consuming
// role's token budget.
type RetrievalEngine struct {
	store    store.VectorStore
	embedder embed.Embedder
	router   route.Router
	budgets  tokens.Budgets
	minScore float64
	logger   *slog.Logger
}

// NewRetrievalEngine wires the read path. Budgets come from the static role
// table; the minimum score from the configuration.
func NewRetrievalEngine(cfg config.Config, vs store.VectorStore, embedder embed.Embedder, logger *slog.Logger) *RetrievalEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &RetrievalEngine{
		store:    vs,
		embedder: embedder,
		router:   cfg.Router(),
		budgets:  tokens.DefaultBudgets(),
		minScore: cfg.MinScore,
		logger:   logger,
	}
}

// Search returns a formatted context string for the request: ranked hits
// above the score threshold, greedily packed into the role's token budget,
// each rendered as a labeled block. An empty string means no memory cleared
// the threshold, which is a normal outcome, not an error.
func (e *RetrievalEngine) Search(ctx context.Context, req SearchRequest) (string, error) {
	minScore := req.MinScore
	if minScore == 0 {
		minScore = e.minScore
	}
	limit := req.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	vector, err := e.embedder.Embed(ctx, req.Query)
	if err != nil {
		return "", fmt.Errorf("embed query: %w: %v", model.ErrSearchUnavailable, err)
	}

	var hits []store.ScoredPoint
	for _, pool := range poolsFor(req.Kinds) {
		collection := e.router.CollectionForPool(pool)
		filter := e.poolFilter(pool, req)
		found, err := e.store.Search(ctx, collection, vector, filter, limit, minScore)
		if err != nil {
			if errors.Is(err, model.ErrStoreUnavailable) {
				return "", fmt.Errorf("search %s: %w: %v", collection, model.ErrSearchUnavailable, err)
			}
			return "", fmt.Errorf("search %s: %w", collection, err)
		}
		hits = append(hits, found...)
	}
	if len(hits) == 0 {
		return "", nil
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > limit {
		hits = hits[:limit]
	}

	blocks := make([]string, 0, len(hits))
	for _, hit := range hits {
		blocks = append(blocks, renderBlock(hit))
	}
	budget := e.budgets.For(req.Role)
	selected, consumed := tokens.SelectWithinBudget(blocks, tokens.Estimate, budget)

	e.logger.Debug("memory search",
		"role", string(req.Role),
		"hits", len(hits),
		"selected", len(selected),
		"tokens", consumed,
		"budget", budget,
	)
	return strings.Join(selected, "\n\n"), nil
}

// poolsFor picks which logical pools a kind filter touches. Without a filter
// the knowledge and global best-practice pools are searched; the session pool
// only when session notes are explicitly requested.
func poolsFor(kinds []model.Kind) []route.Pool {
	if len(kinds) == 0 {
		return []route.Pool{route.PoolKnowledge, route.PoolBestPractices}
	}
	seen := make(map[route.Pool]bool, 3)
	var pools []route.Pool
	for _, kind := range kinds {
		pool := route.PoolFor(kind)
		if !seen[pool] {
			seen[pool] = true
			pools = append(pools, pool)
		}
	}
	return pools
}

// poolFilter combines the pool's scope filter with the request's kind and
// importance restrictions.
func (e *RetrievalEngine) poolFilter(pool route.Pool, req SearchRequest) store.Filter {
	var filter store.Filter
	switch pool {
	case route.PoolBestPractices:
		filter = e.router.ScopeFilter(model.KindUniversalBestPractice, req.ScopeID)
	case route.PoolSession:
		filter = e.router.ScopeFilter(model.KindSessionNote, req.ScopeID)
	default:
		filter = e.router.ScopeFilter(model.KindTaskOutcome, req.ScopeID)
	}

	if kinds := kindsInPool(req.Kinds, pool); len(kinds) > 0 {
		filter.Must = append(filter.Must, store.Condition{Key: model.FieldKind, MatchAny: kinds})
	}
	if len(req.Importance) > 0 {
		levels := make([]string, 0, len(req.Importance))
		for _, imp := range req.Importance {
			levels = append(levels, string(imp))
		}
		filter.Must = append(filter.Must, store.Condition{Key: model.FieldImportance, MatchAny: levels})
	}
	return filter
}

func kindsInPool(kinds []model.Kind, pool route.Pool) []string {
	var names []string
	for _, kind := range kinds {
		if route.PoolFor(kind) == pool {
			names = append(names, string(kind))
		}
	}
	return names
}

// renderBlock formats one hit as a labeled context block.
func renderBlock(hit store.ScoredPoint) string {
	shard := model.ShardFromPayload(hit.Payload)
	var b strings.Builder
	fmt.Fprintf(&b, "[%s | %s | score: %.2f]\n%s", shard.Kind, shard.Role, hit.Score, shard.Content)
	if len(shard.SourceRefs) > 0 {
		b.WriteString("\nrefs: ")
		b.WriteString(strings.Join(shard.SourceRefs, ", "))
	}
	return b.String()
}
