// Package main provides the vario command line: an HTTP experiment server
// plus administration commands against a shared backend.
//
// # Basic Usage
//
// Start the server:
//
//	vario serve --config vario.yaml
//
// Create experiments from a definition file:
//
//	vario load --config vario.yaml experiments.yaml
//
// Print statistics:
//
//	vario stats --config vario.yaml hero-banner
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information - populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "vario",
		Short: "vario - adaptive A/B experiment engine",
		Long: `vario assigns visitors to experiment variants, counts impressions and
conversions, and shifts traffic toward the best converting variant.

Backends: memory, NATS JetStream KV, SQLite (sticky assignments may also use Redis).`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildServeCmd(),
		buildLoadCmd(),
		buildStatsCmd(),
	)

	return rootCmd
}
