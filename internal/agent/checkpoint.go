package agent

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/kestrel-agent/kestrel/internal/eventlog"
	"github.com/kestrel-agent/kestrel/pkg/models"
)

// checkpointVersion is the wire version Checkpoint emits. Version 1 is
// the legacy, pre-event-log shape (spec.md §6): a plain session_history
// array of messages with no raw event log. Restore reads either.
const checkpointVersion = 2

// agentState carries the small pieces of runtime configuration that
// aren't derivable from the event log itself.
type agentState struct {
	SystemPrompt string               `json:"system_prompt"`
	Model        string               `json:"model"`
	Memory       []models.MemoryEntry `json:"memory,omitempty"`
}

// checkpointDoc is the JSON envelope Checkpoint/Restore exchange, named
// per spec.md §6's "Checkpoint bytes" field list: id, timestamp,
// agent_state, session_history, active_goals, scheduler_snapshot,
// version. session_history carries the event log's own JSONL wire
// format (eventlog.ToJSONL) rather than a re-derived message array, so
// restoring a checkpoint reconstructs the exact event sequence it was
// taken from, not just the messages derivable from it.
type checkpointDoc struct {
	ID                string                 `json:"id"`
	Timestamp         time.Time              `json:"timestamp"`
	Version           int                    `json:"version"`
	AgentState        agentState             `json:"agent_state"`
	SessionHistory    string                 `json:"session_history"`
	ActiveGoals       []models.Goal          `json:"active_goals,omitempty"`
	SchedulerSnapshot []*models.ScheduledJob `json:"scheduler_snapshot,omitempty"`
}

// versionProbe reads just enough of a checkpoint to decide which shape
// to decode it as.
type versionProbe struct {
	Version int `json:"version"`
}

// legacyCheckpointDoc is the v1 fallback shape: session_history is a
// plain array of derived messages rather than a raw event log, because
// v1 checkpoints predate the event-sourced core.
type legacyCheckpointDoc struct {
	ID                string                 `json:"id"`
	Timestamp         time.Time              `json:"timestamp"`
	Version           int                    `json:"version"`
	AgentState        agentState             `json:"agent_state"`
	SessionHistory    []models.Message       `json:"session_history"`
	ActiveGoals       []models.Goal          `json:"active_goals,omitempty"`
	SchedulerSnapshot []*models.ScheduledJob `json:"scheduler_snapshot,omitempty"`
}

// Checkpoint serializes the full core state — event log, system
// prompt, model, semantic memory, goals, and scheduler jobs — to a byte
// sequence a later Restore can reconstruct from (spec.md §4.6:
// "checkpoint()/restore(bytes) — serialize/deserialize the core state
// to a byte sequence").
func (rt *Runtime) Checkpoint() ([]byte, error) {
	events := rt.events.Events()
	eventsJSONL, err := rt.events.ToJSONL()
	if err != nil {
		return nil, fmt.Errorf("agent: checkpoint events: %w", err)
	}

	doc := checkpointDoc{
		ID:        fmt.Sprintf("ckpt_%d", rt.now().UnixNano()),
		Timestamp: rt.now(),
		Version:   checkpointVersion,
		AgentState: agentState{
			SystemPrompt: rt.systemPrompt,
			Model:        rt.model,
		},
		SessionHistory: string(eventsJSONL),
		ActiveGoals:    eventlog.DeriveGoals(events),
	}
	if rt.memory != nil {
		doc.AgentState.Memory = rt.memory.Snapshot()
	}
	if rt.scheduler != nil {
		doc.SchedulerSnapshot = rt.scheduler.Jobs()
	}

	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("agent: checkpoint encode: %w", err)
	}
	return out, nil
}

// Restore replaces the runtime's entire state with a previously
// serialized Checkpoint. It is destructive to whatever state existed
// before the call: any events, memory, or scheduler jobs not present in
// data are gone afterward. A v1 checkpoint is migrated in place: its
// session_history message array is scanned and synthesized into the
// equivalent user_message/agent_message/tool_call/tool_result events,
// and its active_goals are appended as goal_added events — the goal id
// counter needs no separate advance since goals are folded from the
// event log itself (eventlog.DeriveGoals), not tracked as independent
// mutable state.
func (rt *Runtime) Restore(data []byte) error {
	var probe versionProbe
	if err := json.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("agent: restore decode: %w", err)
	}

	switch probe.Version {
	case checkpointVersion:
		var doc checkpointDoc
		if err := json.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("agent: restore decode: %w", err)
		}
		events, err := eventlog.FromJSONL([]byte(doc.SessionHistory), rt.now)
		if err != nil {
			return fmt.Errorf("agent: restore events: %w", err)
		}
		rt.events = events
		rt.systemPrompt = doc.AgentState.SystemPrompt
		rt.model = doc.AgentState.Model
		if rt.memory != nil {
			rt.memory.Restore(doc.AgentState.Memory)
		}
		if rt.scheduler != nil {
			rt.scheduler.Restore(doc.SchedulerSnapshot)
		}
		return nil

	case 1:
		var doc legacyCheckpointDoc
		if err := json.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("agent: restore decode v1: %w", err)
		}
		events := eventlog.New(rt.now)
		migrateLegacySessionHistory(events, doc.SessionHistory, doc.ActiveGoals)
		rt.events = events
		rt.systemPrompt = doc.AgentState.SystemPrompt
		rt.model = doc.AgentState.Model
		if rt.memory != nil {
			rt.memory.Restore(doc.AgentState.Memory)
		}
		if rt.scheduler != nil {
			rt.scheduler.Restore(doc.SchedulerSnapshot)
		}
		return nil

	default:
		return fmt.Errorf("agent: restore: unsupported checkpoint version %d", probe.Version)
	}
}

// migrateLegacySessionHistory replays a v1 derived-message history and
// goal list into events, in order, on a fresh log.
func migrateLegacySessionHistory(events *eventlog.Log, history []models.Message, goals []models.Goal) {
	for _, m := range history {
		switch m.Role {
		case models.RoleUser:
			events.Append(models.EventUserMessage, models.EventData{Content: m.Content}, models.SourceUser)

		case models.RoleAssistant:
			events.Append(models.EventAgentMessage, models.EventData{Content: m.Content}, models.SourceAgent)
			for _, tc := range m.ToolCalls {
				events.Append(models.EventToolCall, models.EventData{
					CallID:    tc.ID,
					ToolName:  tc.Name,
					Arguments: tc.Arguments,
				}, models.SourceAgent)
			}

		case models.RoleTool:
			events.Append(models.EventToolResult, models.EventData{
				CallID:   m.ToolCallID,
				ToolName: m.ToolName,
				Success:  true,
				Output:   m.Content,
			}, models.SourceSystem)
		}
	}

	for _, g := range goals {
		goal := g
		events.Append(models.EventGoalAdded, models.EventData{Goal: &goal}, models.SourceSystem)
	}
}
