package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/marquee-ai/marquee/pkg/models"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return New(db, "movies"), mock
}

func TestVectorLiteral(t *testing.T) {
	if got := vectorLiteral([]float32{0.5, -1, 0.25}); got != "[0.5,-1,0.25]" {
		t.Errorf("got %s", got)
	}
	if got := vectorLiteral(nil); got != "[]" {
		t.Errorf("got %s", got)
	}
}

func TestSearch(t *testing.T) {
	s, mock := newMock(t)

	rows := sqlmock.NewRows([]string{"id", "title", "plot", "year", "genres", "score"}).
		AddRow("m1", "When Harry Met Sally", "Friends fall in love.", 1989, "{Comedy,Romance}", 0.91).
		AddRow("m2", "Notting Hill", "A bookseller meets a star.", 1999, "{Comedy,Drama,Romance}", 0.88)
	mock.ExpectQuery(regexp.QuoteMeta(`1 - (embedding <=> $1::vector) AS score`)).
		WithArgs("[1,0]", 100).
		WillReturnRows(rows)

	got, err := s.Search(context.Background(), []float32{1, 0}, 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 movies, got %d", len(got))
	}
	if got[0].Title != "When Harry Met Sally" || got[0].Score != 0.91 {
		t.Errorf("unexpected first movie %+v", got[0])
	}
	if len(got[1].Genres) != 3 || got[1].Genres[2] != "Romance" {
		t.Errorf("genres not decoded: %v", got[1].Genres)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestSearchError(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(`SELECT id, title`).WillReturnError(errors.New("connection reset"))

	if _, err := s.Search(context.Background(), []float32{1}, 10); err == nil {
		t.Fatal("expected error")
	}
}

func TestUpsert(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "movies"`)).
		WithArgs("m1", "Heat", "", 1995, sqlmock.AnyArg(), "[0.5,0.5]").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.Upsert(context.Background(), []models.Document{
		{Movie: models.Movie{ID: "m1", Title: "Heat", Year: 1995}, Embedding: []float32{0.5, 0.5}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestMigrate(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta(`CREATE EXTENSION IF NOT EXISTS vector`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS "movies"`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := s.Migrate(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
