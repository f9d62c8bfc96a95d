// Package main provides the CLI entry point for the Kestrel agent
// runtime: a single binary that loads a YAML configuration, wires the
// agent core to an LLM provider, and either drives an interactive
// session (serve) or inspects persisted state (checkpoint, archive).
//
// # Basic Usage
//
// Start an interactive session:
//
//	kestrel serve --config kestrel.yaml
//
// Validate a configuration file without starting anything:
//
//	kestrel config validate --config kestrel.yaml
//
// # Environment Variables
//
//   - ANTHROPIC_API_KEY, OPENAI_API_KEY, AWS_REGION: provider credentials
//   - KESTREL_MODEL, KESTREL_AUTONOMY_LEVEL, KESTREL_MAX_ACTIONS_PER_HOUR,
//     KESTREL_MAX_COST_PER_DAY_CENTS, KESTREL_LOG_LEVEL: config overrides
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags during release builds.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd assembles the command tree. Separated from main so
// tests can exercise it without calling os.Exit.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "kestrel",
		Short:        "Kestrel - browser-resident autonomous agent runtime",
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildServeCmd(),
		buildConfigCmd(),
		buildCheckpointCmd(),
		buildArchiveCmd(),
		buildDoctorCmd(),
	)
	return rootCmd
}
