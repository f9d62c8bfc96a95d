// Package models provides the domain types shared across the Kestrel agent
// core: the event log entries, derived conversation/goal views, tool
// contracts, memory entries, scheduler jobs, and autonomy state.
package models

import "time"

// EventType identifies the kind of event recorded in the event log.
//
// This is a closed set: every event the core appends must use one of
// these values, and deriveSessionHistory treats any other type as
// invisible to the model.
type EventType string

const (
	EventUserMessage         EventType = "user_message"
	EventAgentMessage        EventType = "agent_message"
	EventToolCall            EventType = "tool_call"
	EventToolResult          EventType = "tool_result"
	EventToolResultTruncated EventType = "tool_result_truncated"
	EventGoalAdded           EventType = "goal_added"
	EventGoalUpdated         EventType = "goal_updated"
	EventMemoryStored        EventType = "memory_stored"
	EventMemoryForgotten     EventType = "memory_forgotten"
	EventCacheHit            EventType = "cache_hit"
	EventStreamError         EventType = "stream_error"
	EventAutonomyBlocked     EventType = "autonomy_blocked"
	EventContextCompacted    EventType = "context_compacted"
	EventSchedulerAdded      EventType = "scheduler_added"
	EventSchedulerRemoved    EventType = "scheduler_removed"
	EventSchedulerFired      EventType = "scheduler_fired"
	EventError               EventType = "error"
)

// EventSource tags who produced an event.
type EventSource string

const (
	SourceUser   EventSource = "user"
	SourceAgent  EventSource = "agent"
	SourceSystem EventSource = "system"
)

// Event is a single append-only entry in the event log. Once appended an
// event is immutable: there is no edit and no delete.
type Event struct {
	ID        string      `json:"id"`
	Seq       uint64      `json:"seq"`
	Timestamp time.Time   `json:"timestamp"`
	Type      EventType   `json:"type"`
	Source    EventSource `json:"source"`
	Data      EventData   `json:"data"`
}

// EventData is the typed payload carried by an event. Exactly the fields
// relevant to the event's Type should be populated; the others stay at
// their zero value and are omitted on marshal.
type EventData struct {
	// user_message / agent_message
	Content string `json:"content,omitempty"`

	// tool_call
	CallID    string `json:"call_id,omitempty"`
	ToolName  string `json:"tool_name,omitempty"`
	Arguments string `json:"arguments,omitempty"`

	// tool_result / tool_result_truncated
	Success bool   `json:"success,omitempty"`
	Output  string `json:"output,omitempty"`
	Error   string `json:"error,omitempty"`

	// goal_added / goal_updated
	Goal *Goal `json:"goal,omitempty"`

	// memory_stored / memory_forgotten
	MemoryID  string `json:"memory_id,omitempty"`
	MemoryKey string `json:"memory_key,omitempty"`

	// cache_hit
	CacheKey string `json:"cache_key,omitempty"`

	// stream_error / error
	Reason string `json:"reason,omitempty"`

	// autonomy_blocked
	AutonomyLevel string `json:"autonomy_level,omitempty"`

	// context_compacted
	MessagesBefore int `json:"messages_before,omitempty"`
	MessagesAfter  int `json:"messages_after,omitempty"`

	// scheduler_added / scheduler_removed / scheduler_fired
	JobID string `json:"job_id,omitempty"`

	// Extra carries any additional structured fields a specific event
	// needs without growing this struct further (e.g. usage stats).
	Extra map[string]any `json:"extra,omitempty"`
}
