package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/marquee-ai/marquee/pkg/models"
)

func newSearchCmd(load configLoader) *cobra.Command {
	var (
		yearStart int
		yearEnd   int
		genres    []string
		sortBy    string
		limit     int
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a single recommendation query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			svc, err := buildService(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = svc.Close() }()

			f := models.Filter{
				Genres: genres,
				SortBy: models.ParseSortMode(sortBy),
				Limit:  limit,
			}
			if cmd.Flags().Changed("year-start") {
				f.YearStart = &yearStart
			}
			if cmd.Flags().Changed("year-end") {
				f.YearEnd = &yearEnd
			}

			result, outcome := svc.Recommend(cmd.Context(), strings.Join(args, " "), f)

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}

			fmt.Println(result.Answer)
			fmt.Println()
			if len(result.Movies) > 0 {
				w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "TITLE\tYEAR\tGENRES\tSCORE")
				for _, m := range result.Movies {
					fmt.Fprintf(w, "%s\t%d\t%s\t%.3f\n", m.Title, m.Year, strings.Join(m.Genres, ", "), m.Score)
				}
				if err := w.Flush(); err != nil {
					return err
				}
			}
			fmt.Fprintf(os.Stderr, "source=%s took=%s\n", outcome.Source, outcome.Duration.Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().IntVar(&yearStart, "year-start", 0, "earliest release year (needs --year-end)")
	cmd.Flags().IntVar(&yearEnd, "year-end", 0, "latest release year (needs --year-start)")
	cmd.Flags().StringSliceVar(&genres, "genre", nil, "keep movies in any of these genres (repeatable)")
	cmd.Flags().StringVar(&sortBy, "sort", "relevance", "relevance, year_desc, year_asc, title_asc or title_desc")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of movies (default from config)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}
