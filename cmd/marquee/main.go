package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marquee-ai/marquee/pkg/config"
	"github.com/marquee-ai/marquee/pkg/logging"
)

var version = "dev"

func main() {
	var configPath string

	root := &cobra.Command{
		Use:           "marquee",
		Short:         "Marquee: movie recommendations from natural-language queries",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "marquee.yaml", "path to config file")

	load := func() (*config.Config, error) {
		cfg, err := config.LoadOrDefault(configPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
		return cfg, nil
	}

	root.AddCommand(
		newServeCmd(load),
		newSearchCmd(load),
		newIngestCmd(load),
		newCacheCmd(load),
		newStatsCmd(load),
		newMCPCmd(load),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// configLoader loads the config named by the --config flag and initializes logging.
type configLoader func() (*config.Config, error)
