package main

import (
	"fmt"

	"github.com/kestrel-agent/kestrel/internal/config"
	"github.com/spf13/cobra"
)

// buildConfigCmd creates the "config" command group.
func buildConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and validate configuration",
	}
	cmd.AddCommand(buildConfigValidateCmd())
	return cmd
}

func buildConfigValidateCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Load and validate a configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Configuration is valid.")
			fmt.Fprintf(out, "  agent.model: %s\n", cfg.Agent.Model)
			fmt.Fprintf(out, "  autonomy.level: %s\n", cfg.Autonomy.Level)
			fmt.Fprintf(out, "  scheduler.enabled: %v\n", cfg.Scheduler.Enabled)
			fmt.Fprintf(out, "  logging: %s/%s\n", cfg.Logging.Level, cfg.Logging.Format)
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "kestrel.yaml", "Path to YAML configuration file")
	return cmd
}
