package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/kestrel-agent/kestrel/internal/eventlog"
	"github.com/kestrel-agent/kestrel/internal/persistence"
	"github.com/spf13/cobra"
)

// buildArchiveCmd creates the "archive" command group for inspecting
// conversation archives written by "serve" (spec.md §6's {meta.json,
// events.jsonl} layout).
func buildArchiveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Inspect saved conversation archives",
	}
	cmd.AddCommand(buildArchiveListCmd(), buildArchiveShowCmd())
	return cmd
}

func buildArchiveListCmd() *cobra.Command {
	var dataDir string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List conversation archives under --data-dir",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := persistence.NewLocalBlobStore(dataDir)
			if err != nil {
				return err
			}
			entries, err := store.ListDir(".")
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No archives found.")
				return nil
			}
			for _, name := range entries {
				fmt.Fprintln(out, strings.TrimSuffix(name, ".json"))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dataDir, "data-dir", "./kestrel-data", "Directory for conversation archives")
	return cmd
}

func buildArchiveShowCmd() *cobra.Command {
	var dataDir string
	cmd := &cobra.Command{
		Use:   "show <conversation-id>",
		Short: "Show a conversation archive's metadata and message history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := persistence.NewLocalBlobStore(dataDir)
			if err != nil {
				return err
			}
			meta, log, err := persistence.LoadConversation(store, args[0], time.Now)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "id:        %s\n", meta.ID)
			fmt.Fprintf(out, "name:      %s\n", meta.Name)
			fmt.Fprintf(out, "created:   %s\n", meta.Created.Format(time.RFC3339))
			fmt.Fprintf(out, "lastUsed:  %s\n", meta.LastUsed.Format(time.RFC3339))
			fmt.Fprintf(out, "version:   %d\n", meta.Version)
			fmt.Fprintln(out)

			history := eventlog.DeriveSessionHistory(log.Events(), "")
			fmt.Fprintf(out, "messages: %d\n", len(history))
			for _, m := range history {
				fmt.Fprintf(out, "  [%s] %s\n", m.Role, truncate(m.Content, 100))
			}

			goals := eventlog.DeriveGoals(log.Events())
			if len(goals) > 0 {
				fmt.Fprintf(out, "goals: %d\n", len(goals))
				for _, g := range goals {
					fmt.Fprintf(out, "  [%s] %s\n", g.Status, g.Description)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dataDir, "data-dir", "./kestrel-data", "Directory for conversation archives")
	return cmd
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
