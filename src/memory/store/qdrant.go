package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Protocol-Lattice/go-shardmem/src/memory/model"
)

// --- Qdrant wire types ---

type qdrantDistance string

const distanceCosine qdrantDistance = "Cosine"

// qdrantStatus supports both `status: "ok"` and `status: {"error":"..."}`.
type qdrantStatus struct {
	State string // "ok" or "error"
	Error string // non-empty if error
}

func (s *qdrantStatus) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		s.State = strings.ToLower(v)
		return nil
	}
	var obj struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	if obj.Error != "" {
		s.State = "error"
		s.Error = obj.Error
	}
	return nil
}

type qdrantEnvelope[T any] struct {
	Status qdrantStatus `json:"status"`
	Time   float64      `json:"time"`
	Result T            `json:"result"`
}

type qdrantPoint struct {
	ID      json.RawMessage `json:"id"`
	Score   float64         `json:"score"`
	Payload map[string]any  `json:"payload"`
	Vector  []float32       `json:"vector"`
}

type qdrantScrollResult struct {
	Points []qdrantPoint   `json:"points"`
	Offset json.RawMessage `json:"next_page_offset"`
}

type qdrantCountResult struct {
	Count int `json:"count"`
}

type qdrantGetResult struct {
	Points []qdrantPoint `json:"points"`
}

type qdrantMatch struct {
	Value string   `json:"value,omitempty"`
	Any   []string `json:"any,omitempty"`
}

type qdrantCondition struct {
	Key   string      `json:"key"`
	Match qdrantMatch `json:"match"`
}

type qdrantFilter struct {
	Must []qdrantCondition `json:"must,omitempty"`
}

func encodeFilter(f Filter) *qdrantFilter {
	if len(f.Must) == 0 {
		return nil
	}
	qf := &qdrantFilter{}
	for _, c := range f.Must {
		qf.Must = append(qf.Must, qdrantCondition{
			Key:   c.Key,
			Match: qdrantMatch{Value: c.Match, Any: c.MatchAny},
		})
	}
	return qf
}

// QdrantStore talks to Qdrant's REST API. It is the production backend; the
// client is safe for concurrent use and may be shared process-wide.
type QdrantStore struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewQdrantStore creates a Qdrant-backed VectorStore. An empty baseURL falls
// back to the local default; timeout bounds every request.
func NewQdrantStore(baseURL, apiKey string, timeout time.Duration) *QdrantStore {
	if baseURL == "" {
		baseURL = "http://localhost:6333"
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &QdrantStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// EnsureCollection creates the collection with a cosine vector space of the
// given dimension. Existing collections are left alone.
func (qs *QdrantStore) EnsureCollection(ctx context.Context, collection string, dim int) error {
	req := map[string]any{
		"vectors": map[string]any{"size": dim, "distance": distanceCosine},
	}
	var resp qdrantEnvelope[json.RawMessage]
	err := qs.do(ctx, http.MethodPut, "/collections/"+url.PathEscape(collection), req, &resp)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "already exists") {
			return nil
		}
		return err
	}
	return respError(resp)
}

// Upsert writes points; with wait set, Qdrant confirms persistence before
// the call returns.
func (qs *QdrantStore) Upsert(ctx context.Context, collection string, points []Point, wait bool) error {
	if len(points) == 0 {
		return nil
	}
	wire := make([]map[string]any, 0, len(points))
	for _, p := range points {
		wire = append(wire, map[string]any{
			"id":      p.ID,
			"vector":  p.Vector,
			"payload": p.Payload,
		})
	}
	path := fmt.Sprintf("/collections/%s/points?wait=%t", url.PathEscape(collection), wait)
	var resp qdrantEnvelope[json.RawMessage]
	if err := qs.do(ctx, http.MethodPut, path, map[string]any{"points": wire}, &resp); err != nil {
		return err
	}
	return respError(resp)
}

func (qs *QdrantStore) Get(ctx context.Context, collection string, ids []string) ([]Point, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	req := map[string]any{
		"ids":          ids,
		"with_payload": true,
		"with_vector":  true,
	}
	var resp qdrantEnvelope[[]qdrantPoint]
	if err := qs.do(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points", url.PathEscape(collection)), req, &resp); err != nil {
		return nil, err
	}
	return decodePoints(resp.Result), nil
}

// Scroll pages through points matching the filter until limit is reached.
func (qs *QdrantStore) Scroll(ctx context.Context, collection string, filter Filter, limit int) ([]Point, error) {
	if limit <= 0 {
		limit = 128
	}
	var (
		points     []Point
		offset     json.RawMessage
		prevOffset string
	)
	for len(points) < limit {
		req := map[string]any{
			"limit":        limit - len(points),
			"with_payload": true,
			"with_vector":  true,
		}
		if qf := encodeFilter(filter); qf != nil {
			req["filter"] = qf
		}
		if offset != nil {
			req["offset"] = offset
		}
		var resp qdrantEnvelope[qdrantScrollResult]
		if err := qs.do(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/scroll", url.PathEscape(collection)), req, &resp); err != nil {
			return nil, err
		}
		points = append(points, decodePoints(resp.Result.Points)...)

		raw := strings.TrimSpace(string(resp.Result.Offset))
		if len(resp.Result.Points) == 0 || raw == "" || strings.EqualFold(raw, "null") || raw == prevOffset {
			break
		}
		prevOffset = raw
		offset = resp.Result.Offset
	}
	return points, nil
}

func (qs *QdrantStore) Search(ctx context.Context, collection string, vector []float32, filter Filter, limit int, scoreThreshold float64) ([]ScoredPoint, error) {
	if limit <= 0 {
		return nil, nil
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
		"with_vector":  false,
	}
	if qf := encodeFilter(filter); qf != nil {
		req["filter"] = qf
	}
	if scoreThreshold > 0 {
		req["score_threshold"] = scoreThreshold
	}
	var resp qdrantEnvelope[[]qdrantPoint]
	if err := qs.do(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/search", url.PathEscape(collection)), req, &resp); err != nil {
		return nil, err
	}
	hits := make([]ScoredPoint, 0, len(resp.Result))
	for _, qp := range resp.Result {
		hits = append(hits, ScoredPoint{
			Point: Point{ID: decodeQdrantID(qp.ID), Vector: qp.Vector, Payload: qp.Payload},
			Score: qp.Score,
		})
	}
	return hits, nil
}

func (qs *QdrantStore) Count(ctx context.Context, collection string, filter Filter) (int, error) {
	req := map[string]any{"exact": true}
	if qf := encodeFilter(filter); qf != nil {
		req["filter"] = qf
	}
	var resp qdrantEnvelope[qdrantCountResult]
	if err := qs.do(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/count", url.PathEscape(collection)), req, &resp); err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

func (qs *QdrantStore) Delete(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	var resp qdrantEnvelope[json.RawMessage]
	path := fmt.Sprintf("/collections/%s/points/delete?wait=true", url.PathEscape(collection))
	if err := qs.do(ctx, http.MethodPost, path, map[string]any{"points": ids}, &resp); err != nil {
		return err
	}
	return respError(resp)
}

func (qs *QdrantStore) do(ctx context.Context, method, path string, body, out any) error {
	var buf io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		buf = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, qs.baseURL+path, buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if qs.apiKey != "" {
		req.Header.Set("api-key", qs.apiKey)
	}
	resp, err := qs.client.Do(req)
	if err != nil {
		// Connectivity and timeout failures are the degradable kind.
		return fmt.Errorf("%w: qdrant %s %s: %v", model.ErrStoreUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: qdrant %s %s -> http %d: %s",
			model.ErrStoreUnavailable, method, path, resp.StatusCode, strings.TrimSpace(string(payload)))
	}
	if resp.StatusCode >= 400 {
		var env qdrantEnvelope[json.RawMessage]
		_ = json.Unmarshal(payload, &env)
		if env.Status.Error != "" {
			return errors.New(env.Status.Error)
		}
		return fmt.Errorf("qdrant %s %s -> http %d: %s",
			method, path, resp.StatusCode, strings.TrimSpace(string(payload)))
	}
	if out != nil && len(payload) > 0 {
		if err := json.Unmarshal(payload, out); err != nil {
			return err
		}
	}
	return nil
}

func respError[T any](resp qdrantEnvelope[T]) error {
	if !strings.EqualFold(resp.Status.State, "ok") && resp.Status.Error != "" {
		return errors.New(resp.Status.Error)
	}
	return nil
}

func decodePoints(wire []qdrantPoint) []Point {
	points := make([]Point, 0, len(wire))
	for _, qp := range wire {
		points = append(points, Point{ID: decodeQdrantID(qp.ID), Vector: qp.Vector, Payload: qp.Payload})
	}
	return points
}

// decodeQdrantID tolerates both string (UUID) and numeric point ids.
func decodeQdrantID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}
