package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// buildServeCmd creates the "serve" command that runs the HTTP server.
func buildServeCmd() *cobra.Command {
	var (
		configPath string
		addr       string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the vario HTTP server",
		Long: `Start the vario HTTP server.

The server will:
1. Load configuration from the specified file (defaults when omitted)
2. Open the configured repository and sticky store
3. Optionally bind the JetStream events stream and consumer
4. Serve the experiment API and Prometheus metrics

Graceful shutdown is handled on SIGINT/SIGTERM signals.`,
		Example: `  # In-memory server with defaults
  vario serve

  # Shared NATS backend
  vario serve --config /etc/vario/vario.yaml --addr :9090`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadAppConfig(configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return runServe(ctx, cfg, cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")

	return cmd
}

// buildLoadCmd creates the "load" command that creates experiments from a file.
func buildLoadCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "load <experiments.yaml>",
		Short: "Create experiments from a YAML definition file",
		Example: `  vario load --config vario.yaml experiments.yaml

  # experiments.yaml
  experiments:
    - id: hero-banner
      name: Hero banner
      variants:
        - {id: control, name: Control, weight: 1}
        - {id: bold, name: Bold headline, weight: 1}`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadAppConfig(configPath)
			if err != nil {
				return err
			}

			return runLoad(cmd.Context(), cfg, args[0], cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")

	return cmd
}

// buildStatsCmd creates the "stats" command that prints experiment counters.
func buildStatsCmd() *cobra.Command {
	var (
		configPath string
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "stats <experiment-id>...",
		Short: "Print counters and weights of experiments",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadAppConfig(configPath)
			if err != nil {
				return err
			}

			return runStats(cmd.Context(), cfg, args, asJSON, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")

	return cmd
}
