package mongo

import (
	"context"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/marquee-ai/marquee/pkg/models"
)

func ns(mt *mtest.T) string {
	return mt.Coll.Database().Name() + "." + mt.Coll.Name()
}

func TestStore(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("ensure indexes", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		s := New(mt.Coll, 24*time.Hour)

		if err := s.EnsureIndexes(context.Background()); err != nil {
			t.Fatal(err)
		}
		cmd := mt.GetStartedEvent().Command
		if got := cmd.Lookup("indexes", "1", "expireAfterSeconds").Int32(); got != 86400 {
			t.Errorf("expireAfterSeconds = %d, want 86400", got)
		}
		if !cmd.Lookup("indexes", "0", "unique").Boolean() {
			t.Error("expected unique index on query")
		}
	})

	mt.Run("load hit", func(mt *mtest.T) {
		stored := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch, bson.D{
			{Key: "_id", Value: primitive.NewObjectID()},
			{Key: "query", Value: "k1"},
			{Key: "result", Value: bson.D{
				{Key: "answer", Value: "Watch Alien."},
				{Key: "movies", Value: bson.A{bson.D{
					{Key: "id", Value: "m1"},
					{Key: "title", Value: "Alien"},
					{Key: "year", Value: int32(1979)},
					{Key: "genres", Value: bson.A{"Horror", "Sci-Fi"}},
					{Key: "score", Value: 0.75},
				}}},
			}},
			{Key: "timestamp", Value: stored},
		}))
		s := New(mt.Coll, 24*time.Hour)

		entry, ok, err := s.Load(context.Background(), "k1")
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			t.Fatal("expected entry")
		}
		if entry.Result.Answer != "Watch Alien." || len(entry.Result.Movies) != 1 || entry.Result.Movies[0].Year != 1979 {
			t.Errorf("unexpected result %+v", entry.Result)
		}
		if !entry.StoredAt.Equal(stored) {
			t.Errorf("stored_at = %v, want %v", entry.StoredAt, stored)
		}
	})

	mt.Run("load miss", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch))
		s := New(mt.Coll, 24*time.Hour)

		_, ok, err := s.Load(context.Background(), "absent")
		if err != nil {
			t.Fatal(err)
		}
		if ok {
			t.Error("expected miss")
		}
	})

	mt.Run("save upserts by query", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: int32(1)}))
		s := New(mt.Coll, 24*time.Hour)

		err := s.Save(context.Background(), models.CacheEntry{
			Key:      "k1",
			Result:   models.Result{Answer: "a", Movies: []models.Movie{}},
			StoredAt: time.Now(),
		})
		if err != nil {
			t.Fatal(err)
		}
		cmd := mt.GetStartedEvent().Command
		if !cmd.Lookup("updates", "0", "upsert").Boolean() {
			t.Error("expected upsert")
		}
		if got := cmd.Lookup("updates", "0", "q", "query").StringValue(); got != "k1" {
			t.Errorf("filter query = %q, want k1", got)
		}
		if _, err := cmd.LookupErr("updates", "0", "u", "$set", "timestamp"); err != nil {
			t.Error("expected timestamp in $set")
		}
	})

	mt.Run("purge", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: int32(3)}))
		s := New(mt.Coll, 24*time.Hour)

		n, err := s.Purge(context.Background(), time.Now().Add(-24*time.Hour))
		if err != nil {
			t.Fatal(err)
		}
		if n != 3 {
			t.Errorf("expected 3 deleted, got %d", n)
		}
		if mt.GetStartedEvent().CommandName != "delete" {
			t.Error("expected delete command")
		}
	})

	mt.Run("count", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch, bson.D{{Key: "n", Value: int32(2)}}))
		s := New(mt.Coll, 24*time.Hour)

		n, err := s.Count(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if n != 2 {
			t.Errorf("expected 2, got %d", n)
		}
	})
}
