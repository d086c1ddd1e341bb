package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/Protocol-Lattice/go-shardmem/src/memory/model"
)

// ChromemStore wraps chromem-go, a pure Go embedded vector database that
// persists to local files. It backs the degraded local fallback path: when the
// primary store is unreachable, writes land here under the same validation,
// dedup, and budget rules.
type ChromemStore struct {
	db   *chromem.DB
	mu   sync.Mutex
	cols map[string]*chromem.Collection
	dims map[string]int
}

// NewChromemStore opens (or creates) a persistent chromem database at path.
func NewChromemStore(path string) (*ChromemStore, error) {
	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, fmt.Errorf("open chromem db: %w", err)
	}
	return &ChromemStore{
		db:   db,
		cols: make(map[string]*chromem.Collection),
		dims: make(map[string]int),
	}, nil
}

func (cs *ChromemStore) collection(name string) (*chromem.Collection, error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if col, ok := cs.cols[name]; ok {
		return col, nil
	}
	col, err := cs.db.GetOrCreateCollection(name, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem collection %s: %w", name, err)
	}
	cs.cols[name] = col
	return col, nil
}

func (cs *ChromemStore) EnsureCollection(_ context.Context, collection string, dim int) error {
	cs.mu.Lock()
	cs.dims[collection] = dim
	cs.mu.Unlock()
	_, err := cs.collection(collection)
	return err
}

func (cs *ChromemStore) Upsert(ctx context.Context, collection string, points []Point, _ bool) error {
	// chromem persists on write; the wait flag is always honored.
	col, err := cs.collection(collection)
	if err != nil {
		return err
	}
	for _, p := range points {
		content, err := json.Marshal(p.Payload)
		if err != nil {
			return err
		}
		doc := chromem.Document{
			ID:        p.ID,
			Content:   string(content),
			Embedding: p.Vector,
			Metadata:  flatMetadata(p.Payload),
		}
		if err := col.AddDocument(ctx, doc); err != nil {
			return fmt.Errorf("chromem add document: %w", err)
		}
	}
	cs.mu.Lock()
	if _, ok := cs.dims[collection]; !ok && len(points) > 0 {
		cs.dims[collection] = len(points[0].Vector)
	}
	cs.mu.Unlock()
	return nil
}

func (cs *ChromemStore) Get(ctx context.Context, collection string, ids []string) ([]Point, error) {
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	all, err := cs.scan(ctx, collection, Filter{}, 0)
	if err != nil {
		return nil, err
	}
	var points []Point
	for _, p := range all {
		if _, ok := wanted[p.ID]; ok {
			points = append(points, p)
		}
	}
	return points, nil
}

func (cs *ChromemStore) Scroll(ctx context.Context, collection string, filter Filter, limit int) ([]Point, error) {
	return cs.scan(ctx, collection, filter, limit)
}

func (cs *ChromemStore) Search(ctx context.Context, collection string, vector []float32, filter Filter, limit int, scoreThreshold float64) ([]ScoredPoint, error) {
	if limit <= 0 {
		return nil, nil
	}
	col, err := cs.collection(collection)
	if err != nil {
		return nil, err
	}
	n := col.Count()
	if n == 0 {
		return nil, nil
	}
	// chromem rejects nResults beyond the collection size; over-fetch within
	// that bound so post-filtered conditions still fill the limit.
	results, err := col.QueryEmbedding(ctx, vector, n, equalityWhere(filter), nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}
	var hits []ScoredPoint
	for _, r := range results {
		score := float64(r.Similarity)
		if score < scoreThreshold {
			continue
		}
		p, err := pointFromDocument(r.ID, r.Embedding, r.Content)
		if err != nil {
			continue
		}
		if !filter.Matches(p.Payload) {
			continue
		}
		hits = append(hits, ScoredPoint{Point: p, Score: score})
		if len(hits) >= limit {
			break
		}
	}
	return hits, nil
}

func (cs *ChromemStore) Count(ctx context.Context, collection string, filter Filter) (int, error) {
	if len(filter.Must) == 0 {
		col, err := cs.collection(collection)
		if err != nil {
			return 0, err
		}
		return col.Count(), nil
	}
	points, err := cs.scan(ctx, collection, filter, 0)
	if err != nil {
		return 0, err
	}
	return len(points), nil
}

func (cs *ChromemStore) Delete(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	col, err := cs.collection(collection)
	if err != nil {
		return err
	}
	return col.Delete(ctx, nil, nil, ids...)
}

// scan enumerates the whole collection through a similarity query against a
// basis vector; chromem has no scroll API, and fallback collections stay
// small enough for this to be acceptable.
func (cs *ChromemStore) scan(ctx context.Context, collection string, filter Filter, limit int) ([]Point, error) {
	col, err := cs.collection(collection)
	if err != nil {
		return nil, err
	}
	n := col.Count()
	if n == 0 {
		return nil, nil
	}
	cs.mu.Lock()
	dim := cs.dims[collection]
	cs.mu.Unlock()
	if dim == 0 {
		return nil, fmt.Errorf("chromem collection %s: unknown vector dimension; call EnsureCollection first", collection)
	}
	probe := make([]float32, dim)
	probe[0] = 1
	results, err := col.QueryEmbedding(ctx, probe, n, equalityWhere(filter), nil)
	if err != nil {
		return nil, fmt.Errorf("chromem scan: %w", err)
	}
	var points []Point
	for _, r := range results {
		p, err := pointFromDocument(r.ID, r.Embedding, r.Content)
		if err != nil {
			continue
		}
		if !filter.Matches(p.Payload) {
			continue
		}
		points = append(points, p)
		if limit > 0 && len(points) >= limit {
			break
		}
	}
	return points, nil
}

// equalityWhere lifts single-value conditions into chromem's metadata filter;
// match-any conditions are post-filtered by the caller.
func equalityWhere(filter Filter) map[string]string {
	var where map[string]string
	for _, c := range filter.Must {
		if c.Match == "" {
			continue
		}
		if where == nil {
			where = make(map[string]string)
		}
		where[c.Key] = c.Match
	}
	return where
}

func flatMetadata(payload map[string]any) map[string]string {
	meta := make(map[string]string)
	for _, key := range []string{
		model.FieldKind, model.FieldUniqueID, model.FieldScopeID, model.FieldSessionID,
		model.FieldRole, model.FieldImportance, model.FieldContentHash, model.FieldCreatedAt,
	} {
		if v := model.StringFromAny(payload[key]); v != "" {
			meta[key] = v
		}
	}
	return meta
}

func pointFromDocument(id string, embedding []float32, content string) (Point, error) {
	var payload map[string]any
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return Point{}, err
	}
	return Point{ID: id, Vector: embedding, Payload: payload}, nil
}
