package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/kestrel-agent/kestrel/internal/eventlog"
	"github.com/kestrel-agent/kestrel/pkg/models"
	"github.com/spf13/cobra"
)

// checkpointView mirrors the spec.md §6 "Checkpoint bytes" envelope
// (agent.checkpointDoc's unexported fields, duplicated here purely for
// read-only CLI inspection) so an operator can inspect a checkpoint
// file without a live Runtime.
type checkpointView struct {
	ID                string                 `json:"id"`
	Timestamp         time.Time              `json:"timestamp"`
	Version           int                    `json:"version"`
	AgentState        json.RawMessage        `json:"agent_state"`
	SessionHistory    json.RawMessage        `json:"session_history"`
	ActiveGoals       []models.Goal          `json:"active_goals,omitempty"`
	SchedulerSnapshot []*models.ScheduledJob `json:"scheduler_snapshot,omitempty"`
}

// buildCheckpointCmd creates the "checkpoint" command group for
// inspecting checkpoint files produced by agent.Runtime.Checkpoint.
func buildCheckpointCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Inspect checkpoint files",
	}
	cmd.AddCommand(buildCheckpointInspectCmd())
	return cmd
}

func buildCheckpointInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <path>",
		Short: "Print a checkpoint file's summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var doc checkpointView
			if err := json.Unmarshal(data, &doc); err != nil {
				return fmt.Errorf("decode checkpoint: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "id:        %s\n", doc.ID)
			fmt.Fprintf(out, "version:   %d\n", doc.Version)
			fmt.Fprintf(out, "timestamp: %s\n", doc.Timestamp.Format(time.RFC3339))

			switch doc.Version {
			case 2:
				var sessionJSONL string
				if err := json.Unmarshal(doc.SessionHistory, &sessionJSONL); err != nil {
					return fmt.Errorf("decode session_history: %w", err)
				}
				log, err := eventlog.FromJSONL([]byte(sessionJSONL), time.Now)
				if err != nil {
					return fmt.Errorf("decode event log: %w", err)
				}
				fmt.Fprintf(out, "events:    %d\n", log.Len())
				fmt.Fprintf(out, "goals:     %d\n", len(eventlog.DeriveGoals(log.Events())))
			case 1:
				var history []models.Message
				if err := json.Unmarshal(doc.SessionHistory, &history); err != nil {
					return fmt.Errorf("decode v1 session_history: %w", err)
				}
				fmt.Fprintf(out, "messages (v1): %d\n", len(history))
				fmt.Fprintf(out, "goals (v1):    %d\n", len(doc.ActiveGoals))
			default:
				return fmt.Errorf("unsupported checkpoint version %d", doc.Version)
			}

			if len(doc.SchedulerSnapshot) > 0 {
				fmt.Fprintf(out, "scheduler jobs: %d\n", len(doc.SchedulerSnapshot))
			}
			return nil
		},
	}
	return cmd
}
