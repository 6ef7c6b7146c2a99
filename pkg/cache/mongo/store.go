// Package mongo is a cache backend on MongoDB. Documents have the shape
// {query, result, timestamp}; a TTL index on timestamp lets the server expire
// them, and Purge deletes anything the TTL monitor has not reached yet.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/marquee-ai/marquee/pkg/models"
)

type cacheDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Query     string             `bson:"query"`
	Result    models.Result      `bson:"result"`
	Timestamp time.Time          `bson:"timestamp"`
}

// Store keeps cache entries in a MongoDB collection.
type Store struct {
	coll    *mongo.Collection
	horizon time.Duration
	client  *mongo.Client
}

// New wraps an existing collection. Call EnsureIndexes once before serving.
func New(coll *mongo.Collection, horizon time.Duration) *Store {
	return &Store{coll: coll, horizon: horizon}
}

// Connect dials uri, selects database.collection and creates the indexes.
func Connect(ctx context.Context, uri, database, collection string, horizon time.Duration) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	s := New(client.Database(database).Collection(collection), horizon)
	s.client = client
	if err := s.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

// EnsureIndexes creates a unique index on query and a TTL index on timestamp.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "query", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "timestamp", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(s.horizon.Seconds())),
		},
	})
	if err != nil {
		return fmt.Errorf("create cache indexes: %w", err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context, key string) (models.CacheEntry, bool, error) {
	var doc cacheDocument
	err := s.coll.FindOne(ctx, bson.M{"query": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.CacheEntry{}, false, nil
	}
	if err != nil {
		return models.CacheEntry{}, false, fmt.Errorf("mongo find: %w", err)
	}
	return models.CacheEntry{Key: doc.Query, Result: doc.Result, StoredAt: doc.Timestamp.UTC()}, true, nil
}

// Save upserts the document for entry.Key, replacing result and timestamp together.
func (s *Store) Save(ctx context.Context, entry models.CacheEntry) error {
	_, err := s.coll.UpdateOne(ctx,
		bson.M{"query": entry.Key},
		bson.M{"$set": bson.M{"result": entry.Result, "timestamp": entry.StoredAt}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("mongo upsert: %w", err)
	}
	return nil
}

func (s *Store) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.coll.DeleteMany(ctx, bson.M{"timestamp": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, fmt.Errorf("mongo purge: %w", err)
	}
	return res.DeletedCount, nil
}

func (s *Store) Count(ctx context.Context) (int64, error) {
	n, err := s.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("mongo count: %w", err)
	}
	return n, nil
}

func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.coll.DeleteMany(ctx, bson.D{}); err != nil {
		return fmt.Errorf("mongo clear: %w", err)
	}
	return nil
}

// Close disconnects the client when the Store created it.
func (s *Store) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(context.Background())
}
