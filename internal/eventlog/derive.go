package eventlog

import "github.com/kestrel-agent/kestrel/pkg/models"

// DeriveSessionHistory scans the event list left-to-right and produces
// the message list the provider sees. systemPrompt, when non-empty,
// occupies the first slot. The derivation is a pure function of the
// event list plus the system prompt: two logs with equal event
// sequences derive equal histories.
func DeriveSessionHistory(events []models.Event, systemPrompt string) []models.Message {
	var history []models.Message
	if systemPrompt != "" {
		history = append(history, models.Message{Role: models.RoleSystem, Content: systemPrompt})
	}

	// sinkIdx points at the current assistant message (in history) that
	// subsequent tool_call events attach to; -1 means no open sink.
	sinkIdx := -1

	for _, e := range events {
		switch e.Type {
		case models.EventUserMessage:
			history = append(history, models.Message{Role: models.RoleUser, Content: e.Data.Content})
			sinkIdx = -1

		case models.EventAgentMessage:
			history = append(history, models.Message{Role: models.RoleAssistant, Content: e.Data.Content})
			sinkIdx = len(history) - 1

		case models.EventToolCall:
			if sinkIdx < 0 {
				// No open assistant sink (e.g. replayed log missing its
				// agent_message); synthesize an empty one so the call
				// still has somewhere to attach.
				history = append(history, models.Message{Role: models.RoleAssistant})
				sinkIdx = len(history) - 1
			}
			history[sinkIdx].ToolCalls = append(history[sinkIdx].ToolCalls, models.ToolCallStub{
				ID:        e.Data.CallID,
				Name:      e.Data.ToolName,
				Arguments: e.Data.Arguments,
			})

		case models.EventToolResult, models.EventToolResultTruncated:
			content := e.Data.Output
			if !e.Data.Success {
				content = e.Data.Error
			}
			history = append(history, models.Message{
				Role:       models.RoleTool,
				Content:    content,
				ToolCallID: e.Data.CallID,
				ToolName:   e.Data.ToolName,
			})

		default:
			// All other event types are invisible to the model.
		}
	}

	return history
}

// DeriveToolCallLog pairs each tool_call event with its tool_result (or
// tool_result_truncated) event by call_id. Calls with no matching
// result appear as pending.
func DeriveToolCallLog(events []models.Event) []models.ToolCallRecord {
	order := make([]string, 0)
	records := make(map[string]*models.ToolCallRecord)

	for _, e := range events {
		switch e.Type {
		case models.EventToolCall:
			rec := &models.ToolCallRecord{
				CallID:    e.Data.CallID,
				ToolName:  e.Data.ToolName,
				Arguments: e.Data.Arguments,
				Pending:   true,
			}
			records[e.Data.CallID] = rec
			order = append(order, e.Data.CallID)

		case models.EventToolResult, models.EventToolResultTruncated:
			rec, ok := records[e.Data.CallID]
			if !ok {
				rec = &models.ToolCallRecord{CallID: e.Data.CallID, ToolName: e.Data.ToolName}
				records[e.Data.CallID] = rec
				order = append(order, e.Data.CallID)
			}
			rec.Pending = false
			rec.Success = e.Data.Success
			rec.Output = e.Data.Output
			rec.Error = e.Data.Error
		}
	}

	out := make([]models.ToolCallRecord, 0, len(order))
	for _, id := range order {
		out = append(out, *records[id])
	}
	return out
}

// DeriveGoals folds goal_added/goal_updated events into a goal list
// keyed by goal id, preserving first-seen order.
func DeriveGoals(events []models.Event) []models.Goal {
	order := make([]string, 0)
	goals := make(map[string]models.Goal)

	for _, e := range events {
		if e.Type != models.EventGoalAdded && e.Type != models.EventGoalUpdated {
			continue
		}
		if e.Data.Goal == nil {
			continue
		}
		g := *e.Data.Goal
		if _, seen := goals[g.ID]; !seen {
			order = append(order, g.ID)
		}
		goals[g.ID] = g
	}

	out := make([]models.Goal, 0, len(order))
	for _, id := range order {
		out = append(out, goals[id])
	}
	return out
}

// SliceToTurnEnd returns the prefix of events up to the end of the turn
// containing eventID, where a turn begins at a user_message and extends
// to (but excludes) the next user_message. It returns nil if eventID is
// not found.
func SliceToTurnEnd(events []models.Event, eventID string) []models.Event {
	idx := -1
	for i, e := range events {
		if e.ID == eventID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}

	end := len(events)
	for i := idx + 1; i < len(events); i++ {
		if events[i].Type == models.EventUserMessage {
			end = i
			break
		}
	}

	out := make([]models.Event, end)
	copy(out, events[:end])
	return out
}
