package main

import (
	"fmt"

	"github.com/kestrel-agent/kestrel/internal/security"
	"github.com/spf13/cobra"
)

// buildDoctorCmd creates the "doctor" command group: audit and fix
// file-permission and policy issues in a Kestrel installation.
func buildDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Audit and fix local installation security issues",
	}
	cmd.AddCommand(buildDoctorAuditCmd(), buildDoctorFixCmd())
	return cmd
}

func buildDoctorAuditCmd() *cobra.Command {
	var (
		stateDir   string
		configPath string
	)
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Check state directory permissions and config policy",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := security.DefaultAuditOptions()
			if stateDir != "" {
				opts.StateDir = stateDir
			}
			if configPath != "" {
				opts.ConfigPath = configPath
			}

			report, err := security.RunAudit(opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "critical: %d  warn: %d  info: %d\n\n",
				report.Summary.Critical, report.Summary.Warn, report.Summary.Info)
			for _, f := range report.Findings {
				fmt.Fprintf(out, "[%s] %s: %s\n", f.Severity, f.CheckID, f.Title)
				if f.Remediation != "" {
					fmt.Fprintf(out, "    fix: %s\n", f.Remediation)
				}
			}
			if report.HasCritical() {
				return fmt.Errorf("%d critical finding(s)", report.Summary.Critical)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&stateDir, "state-dir", "", "Override the state directory (default: ~/.kestrel)")
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Override the config path (default: kestrel.yaml)")
	return cmd
}

func buildDoctorFixCmd() *cobra.Command {
	var (
		stateDir   string
		configPath string
		dryRun     bool
	)
	cmd := &cobra.Command{
		Use:   "fix",
		Short: "Tighten permissions on the state directory and config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := security.FixOptions{
				StateDir:   security.DefaultStateDir(),
				ConfigPath: security.DefaultConfigPath(),
				DryRun:     dryRun,
			}
			if stateDir != "" {
				opts.StateDir = stateDir
			}
			if configPath != "" {
				opts.ConfigPath = configPath
			}

			result := security.Fix(opts)
			out := cmd.OutOrStdout()
			for _, action := range result.Actions {
				switch {
				case action.Success:
					fmt.Fprintf(out, "fixed   %s: %s\n", action.Path, action.Description)
				case action.Skipped != "":
					fmt.Fprintf(out, "skipped %s: %s\n", action.Path, action.Skipped)
				case action.Error != "":
					fmt.Fprintf(out, "error   %s: %s\n", action.Path, action.Error)
				}
			}
			fmt.Fprintf(out, "\nfixed: %d  skipped: %d  errors: %d\n",
				result.FixedCount, result.SkippedCount, result.ErrorCount)
			return nil
		},
	}
	cmd.Flags().StringVar(&stateDir, "state-dir", "", "Override the state directory (default: ~/.kestrel)")
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Override the config path (default: kestrel.yaml)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report changes without applying them")
	return cmd
}
