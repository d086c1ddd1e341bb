package store

import (
	"context"
	"sort"
	"sync"
)

// InMemoryStore keeps collections in process memory. It implements the full
// VectorStore contract with exact cosine scoring and exists for tests and
// throwaway runs; nothing survives a restart.
type InMemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]Point
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{collections: make(map[string]map[string]Point)}
}

func (s *InMemoryStore) EnsureCollection(_ context.Context, collection string, _ int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[collection]; !ok {
		s.collections[collection] = make(map[string]Point)
	}
	return nil
}

func (s *InMemoryStore) Upsert(_ context.Context, collection string, points []Point, _ bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	col, ok := s.collections[collection]
	if !ok {
		col = make(map[string]Point)
		s.collections[collection] = col
	}
	for _, p := range points {
		vec := append([]float32(nil), p.Vector...)
		payload := make(map[string]any, len(p.Payload))
		for k, v := range p.Payload {
			payload[k] = v
		}
		col[p.ID] = Point{ID: p.ID, Vector: vec, Payload: payload}
	}
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, collection string, ids []string) ([]Point, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	col := s.collections[collection]
	points := make([]Point, 0, len(ids))
	for _, id := range ids {
		if p, ok := col[id]; ok {
			points = append(points, p)
		}
	}
	return points, nil
}

func (s *InMemoryStore) Scroll(_ context.Context, collection string, filter Filter, limit int) ([]Point, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var points []Point
	for _, p := range s.collections[collection] {
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

func (s *InMemoryStore) Search(_ context.Context, collection string, vector []float32, filter Filter, limit int, scoreThreshold float64) ([]ScoredPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var hits []ScoredPoint
	for _, p := range s.collections[collection] {
		if !filter.Matches(p.Payload) {
			continue
		}
		score := CosineSimilarity(vector, p.Vector)
		if score < scoreThreshold {
			continue
		}
		hits = append(hits, ScoredPoint{Point: p, Score: score})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (s *InMemoryStore) Count(_ context.Context, collection string, filter Filter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, p := range s.collections[collection] {
		if filter.Matches(p.Payload) {
			count++
		}
	}
	return count, nil
}

func (s *InMemoryStore) Delete(_ context.Context, collection string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	col := s.collections[collection]
	for _, id := range ids {
		delete(col, id)
	}
	return nil
}
