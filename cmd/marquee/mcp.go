package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/marquee-ai/marquee/pkg/history"
	"github.com/marquee-ai/marquee/pkg/mcp"
)

func newMCPCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Start Marquee as an MCP server on stdio",
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

			var cache mcp.CacheStatter
			if svc.cache != nil {
				cache = svc.cache
			}
			var hist mcp.HistoryReader
			if cfg.History.Enabled {
				h, err := history.New(cfg.DBPath)
				if err != nil {
					return err
				}
				defer func() { _ = h.Close() }()
				hist = h
			}

			return mcp.New(svc, cache, hist, version).Run(cmd.Context(), os.Stdin, os.Stdout)
		},
	}
}
