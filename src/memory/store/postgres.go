package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Protocol-Lattice/go-shardmem/src/memory/model"
)

// PostgresStore persists shards in Postgres with the pgvector extension.
// Each logical collection is one table: id, embedding vector(dim), payload
// jsonb. Similarity uses pgvector's cosine distance operator.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects a pgx pool to dsn. The pool is safe to share
// process-wide; Close releases it.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: connect postgres: %v", model.ErrStoreUnavailable, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: ping postgres: %v", model.ErrStoreUnavailable, err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Close releases the connection pool.
func (ps *PostgresStore) Close() {
	ps.pool.Close()
}

func (ps *PostgresStore) EnsureCollection(ctx context.Context, collection string, dim int) error {
	table := pgx.Identifier{collection}.Sanitize()
	if _, err := ps.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("%w: create pgvector extension: %v", model.ErrStoreUnavailable, err)
	}
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id TEXT PRIMARY KEY,
		embedding vector(%d),
		payload JSONB NOT NULL
	)`, table, dim)
	if _, err := ps.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("%w: create table %s: %v", model.ErrStoreUnavailable, collection, err)
	}
	return nil
}

func (ps *PostgresStore) Upsert(ctx context.Context, collection string, points []Point, _ bool) error {
	// Postgres commits synchronously; the wait flag is always honored.
	table := pgx.Identifier{collection}.Sanitize()
	for _, p := range points {
		payload, err := json.Marshal(p.Payload)
		if err != nil {
			return err
		}
		sql := fmt.Sprintf(`INSERT INTO %s (id, embedding, payload)
			VALUES ($1, $2::vector, $3)
			ON CONFLICT (id) DO UPDATE SET embedding = EXCLUDED.embedding, payload = EXCLUDED.payload`, table)
		if _, err := ps.pool.Exec(ctx, sql, p.ID, vectorLiteral(p.Vector), payload); err != nil {
			return fmt.Errorf("%w: upsert into %s: %v", model.ErrStoreUnavailable, collection, err)
		}
	}
	return nil
}

func (ps *PostgresStore) Get(ctx context.Context, collection string, ids []string) ([]Point, error) {
	table := pgx.Identifier{collection}.Sanitize()
	sql := fmt.Sprintf(`SELECT id, embedding::text, payload FROM %s WHERE id = ANY($1)`, table)
	rows, err := ps.pool.Query(ctx, sql, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: get from %s: %v", model.ErrStoreUnavailable, collection, err)
	}
	defer rows.Close()
	return scanPoints(rows)
}

func (ps *PostgresStore) Scroll(ctx context.Context, collection string, filter Filter, limit int) ([]Point, error) {
	table := pgx.Identifier{collection}.Sanitize()
	where, args := filterSQL(filter, 1)
	sql := fmt.Sprintf(`SELECT id, embedding::text, payload FROM %s %s LIMIT %d`, table, where, normalizeLimit(limit))
	rows, err := ps.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: scroll %s: %v", model.ErrStoreUnavailable, collection, err)
	}
	defer rows.Close()
	return scanPoints(rows)
}

func (ps *PostgresStore) Search(ctx context.Context, collection string, vector []float32, filter Filter, limit int, scoreThreshold float64) ([]ScoredPoint, error) {
	if limit <= 0 {
		return nil, nil
	}
	table := pgx.Identifier{collection}.Sanitize()
	args := []any{vectorLiteral(vector)}
	where, filterArgs := filterSQL(filter, 2)
	args = append(args, filterArgs...)
	sql := fmt.Sprintf(`SELECT id, embedding::text, payload, 1 - (embedding <=> $1::vector) AS score
		FROM %s %s ORDER BY embedding <=> $1::vector LIMIT %d`, table, where, limit)
	rows, err := ps.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: search %s: %v", model.ErrStoreUnavailable, collection, err)
	}
	defer rows.Close()

	var hits []ScoredPoint
	for rows.Next() {
		var (
			id      string
			vecText string
			payload map[string]any
			score   float64
		)
		if err := rows.Scan(&id, &vecText, &payload, &score); err != nil {
			return nil, err
		}
		if score < scoreThreshold {
			continue
		}
		hits = append(hits, ScoredPoint{
			Point: Point{ID: id, Vector: parseVectorLiteral(vecText), Payload: payload},
			Score: score,
		})
	}
	return hits, rows.Err()
}

func (ps *PostgresStore) Count(ctx context.Context, collection string, filter Filter) (int, error) {
	table := pgx.Identifier{collection}.Sanitize()
	where, args := filterSQL(filter, 1)
	var count int
	sql := fmt.Sprintf(`SELECT COUNT(*) FROM %s %s`, table, where)
	if err := ps.pool.QueryRow(ctx, sql, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: count %s: %v", model.ErrStoreUnavailable, collection, err)
	}
	return count, nil
}

func (ps *PostgresStore) Delete(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	table := pgx.Identifier{collection}.Sanitize()
	sql := fmt.Sprintf(`DELETE FROM %s WHERE id = ANY($1)`, table)
	if _, err := ps.pool.Exec(ctx, sql, ids); err != nil {
		return fmt.Errorf("%w: delete from %s: %v", model.ErrStoreUnavailable, collection, err)
	}
	return nil
}

// filterSQL compiles a Filter into a WHERE clause over JSONB payload fields,
// numbering placeholders from start.
func filterSQL(filter Filter, start int) (string, []any) {
	if len(filter.Must) == 0 {
		return "", nil
	}
	var (
		clauses []string
		args    []any
		n       = start
	)
	for _, c := range filter.Must {
		if c.Match != "" {
			clauses = append(clauses, fmt.Sprintf("payload->>'%s' = $%d", safeKey(c.Key), n))
			args = append(args, c.Match)
			n++
			continue
		}
		if len(c.MatchAny) > 0 {
			clauses = append(clauses, fmt.Sprintf("payload->>'%s' = ANY($%d)", safeKey(c.Key), n))
			args = append(args, c.MatchAny)
			n++
		}
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

// safeKey strips anything that cannot appear in a payload field name. Keys
// come from this package's callers, not user input, so this is belt only.
func safeKey(key string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return -1
		}
	}, key)
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 128
	}
	return limit
}

func scanPoints(rows pgx.Rows) ([]Point, error) {
	var points []Point
	for rows.Next() {
		var (
			id      string
			vecText string
			payload map[string]any
		)
		if err := rows.Scan(&id, &vecText, &payload); err != nil {
			return nil, err
		}
		points = append(points, Point{ID: id, Vector: parseVectorLiteral(vecText), Payload: payload})
	}
	return points, rows.Err()
}

// vectorLiteral renders a pgvector input literal: [0.1,0.2,...].
func vectorLiteral(vec []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range vec {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(v), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

func parseVectorLiteral(text string) []float32 {
	text = strings.Trim(strings.TrimSpace(text), "[]")
	if text == "" {
		return nil
	}
	parts := strings.Split(text, ",")
	vec := make([]float32, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil
		}
		vec = append(vec, float32(f))
	}
	return vec
}
