package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/marquee-ai/marquee/pkg/history"
	"github.com/marquee-ai/marquee/pkg/janitor"
	"github.com/marquee-ai/marquee/pkg/logging"
	"github.com/marquee-ai/marquee/pkg/ratelimit"
	"github.com/marquee-ai/marquee/pkg/server"
)

func newServeCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the recommendation HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			log := logging.WithComponent("serve")

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			svc, err := buildService(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = svc.Close() }()

			var limiter server.Admitter
			if cfg.RateLimit.Enabled {
				limiter = ratelimit.New(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Window)
			}

			jan := janitor.New(time.Minute)
			if svc.cache != nil {
				if err := jan.Schedule(cfg.Cache.PurgeSchedule, "cache-purge", svc.cache.Purge); err != nil {
					return err
				}
				jan.RunNow("cache-purge", svc.cache.Purge)
			}

			var hist history.Recorder
			if cfg.History.Enabled {
				h, err := history.New(cfg.DBPath)
				if err != nil {
					return err
				}
				defer func() { _ = h.Close() }()
				hist = h

				retention := cfg.History.Retention
				cleanup := func(ctx context.Context) (int64, error) {
					return h.Cleanup(ctx, time.Now().Add(-retention))
				}
				if err := jan.Schedule(cfg.History.CleanupSchedule, "history-cleanup", cleanup); err != nil {
					return err
				}
			}

			jan.Start()
			defer func() {
				stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				jan.Stop(stopCtx)
			}()

			log.Info().
				Str("cache", cfg.Cache.Backend).
				Bool("cache_enabled", cfg.Cache.Enabled).
				Str("vector_store", cfg.VectorStore.Backend).
				Bool("rate_limit", cfg.RateLimit.Enabled).
				Msg("starting marquee")

			return server.New(cfg, svc, limiter, hist).ListenAndServe(ctx)
		},
	}
}
