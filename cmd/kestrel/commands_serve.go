package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/kestrel-agent/kestrel/internal/config"
	"github.com/kestrel-agent/kestrel/internal/eventlog"
	"github.com/kestrel-agent/kestrel/internal/observability"
	"github.com/kestrel-agent/kestrel/internal/persistence"
	"github.com/kestrel-agent/kestrel/pkg/models"
	"github.com/spf13/cobra"
)

// buildServeCmd creates the "serve" command: an interactive, line-at-a-
// time session against the agent core, with conversation state loaded
// from and saved back to a local archive on start/stop (spec.md §6).
func buildServeCmd() *cobra.Command {
	var (
		configPath     string
		dataDir        string
		conversationID string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start an interactive Kestrel session",
		Long: `Start an interactive session against the agent core.

Each line of stdin becomes a user message; the agent's reply is
printed to stdout. The conversation's event log is loaded from, and
saved back to, a local archive under --data-dir on start and on
graceful shutdown (SIGINT/SIGTERM or stdin EOF).

The configuration file is watched for changes: autonomy level updates
take effect without restarting the process.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, dataDir, conversationID)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "kestrel.yaml", "Path to YAML configuration file")
	cmd.Flags().StringVar(&dataDir, "data-dir", "./kestrel-data", "Directory for conversation archives")
	cmd.Flags().StringVar(&conversationID, "conversation", "default", "Conversation id to resume or create")
	return cmd
}

func runServe(ctx context.Context, configPath, dataDir, conversationID string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store, err := persistence.NewLocalBlobStore(dataDir)
	if err != nil {
		return err
	}

	now := time.Now
	var events *eventlog.Log
	if meta, log, err := persistence.LoadConversation(store, conversationID, now); err == nil {
		events = log
		slog.Info("resumed conversation", "id", meta.ID, "lastUsed", meta.LastUsed)
	} else {
		events = eventlog.New(now)
	}

	logger := slog.Default().With("component", "serve")
	rt, controller, err := buildRuntime(cfg, events, logger)
	if err != nil {
		return err
	}

	obs := buildObservability()
	defer func() {
		if err := obs.Shutdown(context.Background()); err != nil {
			logger.Warn("tracer shutdown failed", "error", err)
		}
	}()
	obs.Metrics.SessionStarted()
	sessionStart := now()
	defer func() {
		obs.Metrics.SessionEnded(now().Sub(sessionStart).Seconds())
	}()

	watcher := config.NewWatcher(configPath, func(newCfg *config.Config) {
		controller.SetLevel(models.AutonomyLevel(newCfg.Autonomy.Level))
		logger.Info("autonomy level updated from config reload", "level", newCfg.Autonomy.Level)
	}, logger)
	if err := watcher.Start(ctx); err != nil {
		logger.Warn("config hot-reload unavailable", "error", err)
	} else {
		defer watcher.Close()
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	created := now()
	defer func() {
		if err := persistence.SaveConversation(store, conversationID, filepath.Base(conversationID), events, created, now()); err != nil {
			logger.Error("failed to save conversation archive", "error", err)
		}
	}()

	fmt.Println("Kestrel session ready. Type a message and press Enter; Ctrl-C to exit.")
	scanner := bufio.NewScanner(os.Stdin)
	lines := make(chan string)
	go func() {
		defer close(lines)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-sigCtx.Done():
			fmt.Println("\nshutting down")
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if line == "" {
				continue
			}

			runID := fmt.Sprintf("run-%d", now().UnixNano())
			runCtx := observability.AddRunID(sigCtx, runID)
			runCtx = observability.AddSessionID(runCtx, conversationID)
			runCtx, span := obs.Tracer.TraceAgentRun(runCtx, conversationID, runID)

			if blocked, reason := controller.CheckLimits(); blocked {
				obs.Metrics.RecordAutonomyRateLimited(reason)
				obs.Events.Record(runCtx, observability.EventTypeAutonomyDeny, reason, nil)
				fmt.Printf("autonomy budget exceeded: %s\n", reason)
				span.End()
				continue
			}

			runStart := now()
			obs.Events.RecordRunStart(runCtx, runID, map[string]interface{}{"input_length": len(line)})
			rt.SendMessage(line)
			result := rt.Run(runCtx)
			obs.Events.RecordRunEnd(runCtx, now().Sub(runStart), nil)

			if result.Status == models.TurnFailed {
				obs.Metrics.RecordRunAttempt("error")
				obs.Metrics.RecordError("agent", "run_failed")
			} else {
				obs.Metrics.RecordRunAttempt("success")
			}
			if result.Usage != nil {
				obs.Metrics.RecordContextWindow(providerName(cfg), result.Model, result.Usage.InputTokens+result.Usage.OutputTokens, cfg.Agent.ContextLimit)
			}
			span.End()
			fmt.Println(result.Data)
		}
	}
}
