package persistence

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/kestrel-agent/kestrel/internal/eventlog"
	"github.com/kestrel-agent/kestrel/pkg/models"
)

// legacyCheckpoint mirrors the v1 "Checkpoint bytes" shape named in
// spec.md §6 — {id, timestamp, agent_state, session_history,
// active_goals, scheduler_snapshot, version} — from back when
// session_history was a plain derived-message array rather than a raw
// event log.
type legacyCheckpoint struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Version   int       `json:"version"`

	AgentState struct {
		SystemPrompt string `json:"system_prompt"`
		Model        string `json:"model"`
	} `json:"agent_state"`

	SessionHistory []models.Message `json:"session_history"`
	ActiveGoals    []models.Goal    `json:"active_goals,omitempty"`
}

// MigrateLegacyCheckpoint decodes a v1 checkpoint object and replays
// its session_history and active_goals onto a fresh event log,
// synthesizing the equivalent user_message/agent_message/tool_call/
// tool_result events and appending goal_added events — the exact
// migration spec.md §6 names for the archive's v1 fallback. This is
// scoped to what a conversation archive needs (history and goals); it
// intentionally ignores agent_state.memory and scheduler_snapshot,
// which a v1 checkpoint may also carry but which are out of scope for
// what meta.json/events.jsonl represent. agent.Runtime.Restore has its
// own fuller v1 migration for the full-fidelity checkpoint() API,
// which does carry memory and scheduler state.
func MigrateLegacyCheckpoint(data []byte, now func() time.Time) (ConversationMeta, *eventlog.Log, error) {
	var doc legacyCheckpoint
	if err := json.Unmarshal(data, &doc); err != nil {
		return ConversationMeta{}, nil, fmt.Errorf("persistence: decode legacy checkpoint: %w", err)
	}

	log := eventlog.New(now)
	for _, m := range doc.SessionHistory {
		switch m.Role {
		case models.RoleUser:
			log.Append(models.EventUserMessage, models.EventData{Content: m.Content}, models.SourceUser)

		case models.RoleAssistant:
			log.Append(models.EventAgentMessage, models.EventData{Content: m.Content}, models.SourceAgent)
			for _, tc := range m.ToolCalls {
				log.Append(models.EventToolCall, models.EventData{
					CallID:    tc.ID,
					ToolName:  tc.Name,
					Arguments: tc.Arguments,
				}, models.SourceAgent)
			}

		case models.RoleTool:
			log.Append(models.EventToolResult, models.EventData{
				CallID:   m.ToolCallID,
				ToolName: m.ToolName,
				Success:  true,
				Output:   m.Content,
			}, models.SourceSystem)
		}
	}
	for _, g := range doc.ActiveGoals {
		goal := g
		log.Append(models.EventGoalAdded, models.EventData{Goal: &goal}, models.SourceSystem)
	}

	meta := ConversationMeta{
		ID:       doc.ID,
		Created:  doc.Timestamp,
		LastUsed: now(),
		Version:  archiveVersion,
	}
	return meta, log, nil
}
