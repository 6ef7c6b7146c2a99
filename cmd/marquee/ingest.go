package main

import (
	"context"
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/marquee-ai/marquee/pkg/logging"
	"github.com/marquee-ai/marquee/pkg/models"
)

// datasetMovie is one entry of an ingest file. Exports from a document
// database carry the identifier as _id.
type datasetMovie struct {
	ID     string   `json:"id"`
	DocID  string   `json:"_id"`
	Title  string   `json:"title"`
	Plot   string   `json:"plot"`
	Year   int      `json:"year"`
	Genres []string `json:"genres"`
}

func (d datasetMovie) movie() models.Movie {
	id := d.ID
	if id == "" {
		id = d.DocID
	}
	return models.Movie{ID: id, Title: d.Title, Plot: d.Plot, Year: d.Year, Genres: d.Genres}
}

type batchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

func newIngestCmd(load configLoader) *cobra.Command {
	var (
		batchSize   int
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "ingest <movies.json>",
		Short: "Embed a JSON array of movies and load it into the vector store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			log := logging.WithComponent("ingest")
			ctx := cmd.Context()

			movies, err := readDataset(args[0])
			if err != nil {
				return err
			}
			if len(movies) == 0 {
				return fmt.Errorf("no movies with an id in %s", args[0])
			}

			vs, err := openVectorStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = vs.Close() }()

			docs, err := embedMovies(ctx, newEmbedder(cfg), movies, batchSize, concurrency)
			if err != nil {
				return err
			}

			for start := 0; start < len(docs); start += batchSize {
				end := min(start+batchSize, len(docs))
				if err := vs.Upsert(ctx, docs[start:end]); err != nil {
					return fmt.Errorf("upsert movies %d-%d: %w", start, end, err)
				}
			}

			log.Info().Int("movies", len(docs)).Str("vector_store", cfg.VectorStore.Backend).Msg("ingest complete")
			return nil
		},
	}

	cmd.Flags().IntVar(&batchSize, "batch-size", 64, "movies per embedding request")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "parallel embedding requests")
	return cmd
}

func readDataset(path string) ([]models.Movie, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	var raw []datasetMovie
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse dataset: %w", err)
	}
	movies := make([]models.Movie, 0, len(raw))
	for _, r := range raw {
		m := r.movie()
		if m.ID == "" {
			continue
		}
		movies = append(movies, m)
	}
	return movies, nil
}

// embedMovies embeds movies in batches, running up to concurrency requests at once.
// The returned documents keep input order.
func embedMovies(ctx context.Context, e batchEmbedder, movies []models.Movie, batchSize, concurrency int) ([]models.Document, error) {
	if batchSize <= 0 {
		batchSize = 64
	}
	docs := make([]models.Document, len(movies))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(concurrency, 1))
	for start := 0; start < len(movies); start += batchSize {
		end := min(start+batchSize, len(movies))
		g.Go(func() error {
			texts := make([]string, 0, end-start)
			for _, m := range movies[start:end] {
				texts = append(texts, m.EmbeddingText())
			}
			vecs, err := e.EmbedBatch(ctx, texts)
			if err != nil {
				return fmt.Errorf("embed movies %d-%d: %w", start, end, err)
			}
			for i, v := range vecs {
				docs[start+i] = models.Document{Movie: movies[start+i], Embedding: v}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return docs, nil
}
