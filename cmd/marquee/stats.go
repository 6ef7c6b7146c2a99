package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/marquee-ai/marquee/pkg/history"
)

func newStatsCmd(load configLoader) *cobra.Command {
	var (
		since  time.Duration
		top    int
		recent int
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show served searches and the most frequent queries",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}

			h, err := history.New(cfg.DBPath)
			if err != nil {
				return err
			}
			defer h.Close()

			ctx := cmd.Context()
			if recent > 0 {
				return printRecent(ctx, h, recent)
			}
			from := time.Now().Add(-since)

			summaries, err := h.Summary(ctx, from)
			if err != nil {
				return err
			}
			if len(summaries) == 0 {
				fmt.Println("No searches found.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SOURCE\tSEARCHES\tAVG LATENCY\tMOVIES")
			for _, s := range summaries {
				fmt.Fprintf(w, "%s\t%d\t%.0fms\t%d\n", s.Source, s.RequestCount, s.AvgLatencyMs, s.TotalMovies)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if top <= 0 {
				return nil
			}
			queries, err := h.TopQueries(ctx, from, top)
			if err != nil {
				return err
			}
			fmt.Println()
			w = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "QUERY\tCOUNT\tLAST SEEN")
			for _, q := range queries {
				fmt.Fprintf(w, "%s\t%d\t%s\n", q.Query, q.Count, q.Last.Format("2006-01-02T15:04:05"))
			}
			return w.Flush()
		},
	}

	cmd.Flags().DurationVar(&since, "since", 7*24*time.Hour, "how far back to look")
	cmd.Flags().IntVar(&top, "top", 10, "number of top queries to show (0 to hide)")
	cmd.Flags().IntVar(&recent, "recent", 0, "list the last N searches instead of the summary")
	return cmd
}

func printRecent(ctx context.Context, h *history.SQLiteRecorder, n int) error {
	recs, err := h.Recent(ctx, n)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		fmt.Println("No searches found.")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tSOURCE\tMOVIES\tLATENCY\tCLIENT\tQUERY")
	for _, r := range recs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%dms\t%s\t%s\n",
			r.CreatedAt.Format("2006-01-02T15:04:05"), r.Source, r.MovieCount, r.LatencyMs, r.Client, r.Query)
	}
	return w.Flush()
}
