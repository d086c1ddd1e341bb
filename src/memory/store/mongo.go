package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"github.com/Protocol-Lattice/go-shardmem/src/memory/model"
)

func majorityWriteConcern() *writeconcern.WriteConcern {
	return writeconcern.Majority()
}

// MongoStore keeps shards in MongoDB, one Mongo collection per logical
// collection. Similarity is scored client-side with exact cosine, which is
// fine at knowledge-base scale; use Qdrant or pgvector when volume grows.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

const mongoCloseTimeout = 5 * time.Second

type mongoDoc struct {
	ID      string         `bson:"_id"`
	Vector  []float64      `bson:"vector"`
	Payload map[string]any `bson:"payload"`
}

// NewMongoStore connects to uri and uses the named database.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	if uri == "" {
		return nil, errors.New("mongo uri is required")
	}
	if database == "" {
		return nil, errors.New("mongo database name is required")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("%w: connect mongo: %v", model.ErrStoreUnavailable, err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("%w: ping mongo: %v", model.ErrStoreUnavailable, err)
	}
	return &MongoStore{client: client, db: client.Database(database)}, nil
}

// Close disconnects the underlying client.
func (ms *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), mongoCloseTimeout)
	defer cancel()
	return ms.client.Disconnect(ctx)
}

func (ms *MongoStore) EnsureCollection(ctx context.Context, collection string, _ int) error {
	// Mongo creates collections lazily; an index on the filterable payload
	// fields is all the bootstrap needed.
	col := ms.db.Collection(collection)
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "payload." + model.FieldContentHash, Value: 1}}},
		{Keys: bson.D{{Key: "payload." + model.FieldUniqueID, Value: 1}}},
		{Keys: bson.D{{Key: "payload." + model.FieldScopeID, Value: 1}}},
	}
	if _, err := col.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("%w: ensure indexes on %s: %v", model.ErrStoreUnavailable, collection, err)
	}
	return nil
}

func (ms *MongoStore) Upsert(ctx context.Context, collection string, points []Point, wait bool) error {
	col := ms.db.Collection(collection)
	if wait {
		col = ms.db.Collection(collection, options.Collection().SetWriteConcern(majorityWriteConcern()))
	}
	for _, p := range points {
		doc := mongoDoc{ID: p.ID, Vector: toFloat64(p.Vector), Payload: p.Payload}
		opts := options.Replace().SetUpsert(true)
		if _, err := col.ReplaceOne(ctx, bson.M{"_id": p.ID}, doc, opts); err != nil {
			return fmt.Errorf("%w: upsert into %s: %v", model.ErrStoreUnavailable, collection, err)
		}
	}
	return nil
}

func (ms *MongoStore) Get(ctx context.Context, collection string, ids []string) ([]Point, error) {
	return ms.find(ctx, collection, bson.M{"_id": bson.M{"$in": ids}}, 0)
}

func (ms *MongoStore) Scroll(ctx context.Context, collection string, filter Filter, limit int) ([]Point, error) {
	return ms.find(ctx, collection, mongoFilter(filter), int64(normalizeLimit(limit)))
}

func (ms *MongoStore) Search(ctx context.Context, collection string, vector []float32, filter Filter, limit int, scoreThreshold float64) ([]ScoredPoint, error) {
	if limit <= 0 {
		return nil, nil
	}
	candidates, err := ms.find(ctx, collection, mongoFilter(filter), 0)
	if err != nil {
		return nil, err
	}
	hits := make([]ScoredPoint, 0, len(candidates))
	for _, p := range candidates {
		score := CosineSimilarity(vector, p.Vector)
		if score < scoreThreshold {
			continue
		}
		hits = append(hits, ScoredPoint{Point: p, Score: score})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (ms *MongoStore) Count(ctx context.Context, collection string, filter Filter) (int, error) {
	n, err := ms.db.Collection(collection).CountDocuments(ctx, mongoFilter(filter))
	if err != nil {
		return 0, fmt.Errorf("%w: count %s: %v", model.ErrStoreUnavailable, collection, err)
	}
	return int(n), nil
}

func (ms *MongoStore) Delete(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := ms.db.Collection(collection).DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return fmt.Errorf("%w: delete from %s: %v", model.ErrStoreUnavailable, collection, err)
	}
	return nil
}

func (ms *MongoStore) find(ctx context.Context, collection string, query bson.M, limit int64) ([]Point, error) {
	opts := options.Find()
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cursor, err := ms.db.Collection(collection).Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: find in %s: %v", model.ErrStoreUnavailable, collection, err)
	}
	defer cursor.Close(ctx)

	var points []Point
	for cursor.Next(ctx) {
		var doc mongoDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		points = append(points, Point{ID: doc.ID, Vector: toFloat32(doc.Vector), Payload: doc.Payload})
	}
	return points, cursor.Err()
}

func mongoFilter(filter Filter) bson.M {
	query := bson.M{}
	for _, c := range filter.Must {
		key := "payload." + c.Key
		if c.Match != "" {
			query[key] = c.Match
			continue
		}
		if len(c.MatchAny) > 0 {
			query[key] = bson.M{"$in": c.MatchAny}
		}
	}
	return query
}

func toFloat64(vec []float32) []float64 {
	out := make([]float64, len(vec))
	for i, v := range vec {
		out[i] = float64(v)
	}
	return out
}

func toFloat32(vec []float64) []float32 {
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(v)
	}
	return out
}
