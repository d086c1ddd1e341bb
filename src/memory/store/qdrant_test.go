package store

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Protocol-Lattice/go-shardmem/src/memory/model"
)

func TestQdrantUpsertSendsWaitAndPayload(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path + "?" + r.URL.RawQuery
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		_, _ = w.Write([]byte(`{"status":"ok","result":{}}`))
	}))
	defer srv.Close()

	qs := NewQdrantStore(srv.URL, "secret", time.Second)
	point := Point{ID: "11111111-2222-3333-4444-555555555555", Vector: []float32{0.1, 0.2}, Payload: map[string]any{"kind": "task-outcome"}}
	if err := qs.Upsert(context.Background(), "knowledge", []Point{point}, true); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if gotPath != "/collections/knowledge/points?wait=true" {
		t.Fatalf("path = %q", gotPath)
	}
	points, ok := gotBody["points"].([]any)
	if !ok || len(points) != 1 {
		t.Fatalf("body points = %v", gotBody["points"])
	}
	wire := points[0].(map[string]any)
	if wire["id"] != point.ID {
		t.Fatalf("id = %v", wire["id"])
	}
}

func TestQdrantSearchEncodesFilterAndThreshold(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		_, _ = w.Write([]byte(`{"status":"ok","result":[
			{"id":"p1","score":0.91,"payload":{"kind":"task-outcome"}},
			{"id":"p2","score":0.64,"payload":{"kind":"error-pattern"}}
		]}`))
	}))
	defer srv.Close()

	qs := NewQdrantStore(srv.URL, "", time.Second)
	filter := Filter{Must: []Condition{
		{Key: "scope_id", Match: "proj-a"},
		{Key: "kind", MatchAny: []string{"task-outcome", "error-pattern"}},
	}}
	hits, err := qs.Search(context.Background(), "knowledge", []float32{1, 0}, filter, 5, 0.5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 || hits[0].ID != "p1" || hits[0].Score != 0.91 {
		t.Fatalf("hits = %+v", hits)
	}
	if gotBody["score_threshold"] != 0.5 {
		t.Fatalf("score_threshold = %v", gotBody["score_threshold"])
	}
	wireFilter, _ := json.Marshal(gotBody["filter"])
	want := `{"must":[{"key":"scope_id","match":{"value":"proj-a"}},{"key":"kind","match":{"any":["task-outcome","error-pattern"]}}]}`
	if string(wireFilter) != want {
		t.Fatalf("filter = %s, want %s", wireFilter, want)
	}
}

func TestQdrantScrollPages(t *testing.T) {
	page := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page++
		if page == 1 {
			_, _ = w.Write([]byte(`{"status":"ok","result":{"points":[{"id":"p1","payload":{}}],"next_page_offset":"p2"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok","result":{"points":[{"id":"p2","payload":{}}],"next_page_offset":null}}`))
	}))
	defer srv.Close()

	qs := NewQdrantStore(srv.URL, "", time.Second)
	points, err := qs.Scroll(context.Background(), "knowledge", Filter{}, 10)
	if err != nil {
		t.Fatalf("Scroll: %v", err)
	}
	if len(points) != 2 || points[0].ID != "p1" || points[1].ID != "p2" {
		t.Fatalf("points = %+v", points)
	}
}

func TestQdrantCount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok","result":{"count":7}}`))
	}))
	defer srv.Close()

	qs := NewQdrantStore(srv.URL, "", time.Second)
	count, err := qs.Count(context.Background(), "knowledge", Filter{})
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 7 {
		t.Fatalf("count = %d, want 7", count)
	}
}

func TestQdrantEnsureCollectionIdempotent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"status":{"error":"collection knowledge already exists"}}`))
	}))
	defer srv.Close()

	qs := NewQdrantStore(srv.URL, "", time.Second)
	if err := qs.EnsureCollection(context.Background(), "knowledge", 384); err != nil {
		t.Fatalf("existing collection should not error: %v", err)
	}
}

func TestQdrantUnreachableWrapsStoreUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // nothing is listening anymore

	qs := NewQdrantStore(srv.URL, "", 200*time.Millisecond)
	err := qs.Upsert(context.Background(), "knowledge", []Point{{ID: "x"}}, true)
	if !errors.Is(err, model.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	_, err = qs.Search(context.Background(), "knowledge", []float32{1}, Filter{}, 1, 0)
	if !errors.Is(err, model.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable from search, got %v", err)
	}
}

func TestQdrantServerErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	qs := NewQdrantStore(srv.URL, "", time.Second)
	_, err := qs.Count(context.Background(), "knowledge", Filter{})
	if !errors.Is(err, model.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}
