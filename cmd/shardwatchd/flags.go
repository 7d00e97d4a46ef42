package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/avoss/shardwatch/internal/metrics"
)

// parseServeFlags parses the "serve" subcommand's flags and resolves the
// engine config, falling back to the built-in defaults when -config is
// omitted.
func parseServeFlags(args []string) (cfg *metrics.Config, demo bool) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "path to a TOML config file (defaults used if omitted)")
	demoFlag := fs.Bool("demo", false, "generate synthetic half-events instead of waiting for a real producer")
	fs.Parse(args)

	if *configPath == "" {
		return metrics.DefaultConfig(), *demoFlag
	}

	c, err := metrics.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	slog.Info("loaded config", "path", *configPath)
	return c, *demoFlag
}
