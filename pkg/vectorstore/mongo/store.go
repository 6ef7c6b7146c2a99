// Package mongo is a vector store on MongoDB Atlas Vector Search.
package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/marquee-ai/marquee/pkg/models"
	"github.com/marquee-ai/marquee/pkg/vectorstore"
)

// Store runs $vectorSearch against a collection whose documents carry title,
// plot, year, genres and an embedding array.
type Store struct {
	coll   *mongo.Collection
	index  string
	client *mongo.Client
}

var _ vectorstore.Store = (*Store)(nil)

type movieDocument struct {
	ID        string    `bson:"_id"`
	Title     string    `bson:"title"`
	Plot      string    `bson:"plot"`
	Year      int       `bson:"year"`
	Genres    []string  `bson:"genres"`
	Embedding []float32 `bson:"embedding"`
}

// New wraps an existing collection searched through the named vector index.
func New(coll *mongo.Collection, index string) *Store {
	if index == "" {
		index = "vector_index"
	}
	return &Store{coll: coll, index: index}
}

// Connect dials uri and selects database.collection.
func Connect(ctx context.Context, uri, database, collection, index string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	s := New(client.Database(database).Collection(collection), index)
	s.client = client
	return s, nil
}

// Search asks for k candidates and k results. _id is projected as a string so
// both ObjectID and string keys decode.
func (s *Store) Search(ctx context.Context, vec []float32, k int) ([]models.Movie, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$vectorSearch", Value: bson.D{
			{Key: "index", Value: s.index},
			{Key: "path", Value: "embedding"},
			{Key: "queryVector", Value: vec},
			{Key: "numCandidates", Value: k},
			{Key: "limit", Value: k},
		}}},
		{{Key: "$project", Value: bson.D{
			{Key: "_id", Value: 0},
			{Key: "id", Value: bson.D{{Key: "$toString", Value: "$_id"}}},
			{Key: "title", Value: 1},
			{Key: "plot", Value: 1},
			{Key: "year", Value: 1},
			{Key: "genres", Value: 1},
			{Key: "score", Value: bson.D{{Key: "$meta", Value: "vectorSearchScore"}}},
		}}},
	}

	cur, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	movies := []models.Movie{}
	if err := cur.All(ctx, &movies); err != nil {
		return nil, fmt.Errorf("decode search results: %w", err)
	}
	return movies, nil
}

func (s *Store) Upsert(ctx context.Context, docs []models.Document) error {
	if len(docs) == 0 {
		return nil
	}
	writes := make([]mongo.WriteModel, 0, len(docs))
	for _, d := range docs {
		doc := movieDocument{
			ID:        d.Movie.ID,
			Title:     d.Movie.Title,
			Plot:      d.Movie.Plot,
			Year:      d.Movie.Year,
			Genres:    d.Movie.Genres,
			Embedding: d.Embedding,
		}
		writes = append(writes, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": doc.ID}).
			SetReplacement(doc).
			SetUpsert(true))
	}
	if _, err := s.coll.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false)); err != nil {
		return fmt.Errorf("bulk upsert: %w", err)
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
