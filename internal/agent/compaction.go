package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/kestrel-agent/kestrel/pkg/models"
)

// estimateTokens approximates token count as ceil(chars/4) over every
// message's content plus its tool calls' serialized arguments
// (spec.md §4.6.3).
func estimateTokens(messages []models.Message) int {
	total := 0
	for _, m := range messages {
		total += len(m.Content)
		for _, tc := range m.ToolCalls {
			total += len(tc.Name) + len(tc.Arguments)
		}
	}
	return (total + 3) / 4
}

// compactIfNeeded applies spec.md §4.6.3's compaction policy ahead of
// constructing a provider request. It never mutates the event log's
// permanent history — compaction is a transform of the snapshot handed
// to the provider for this one call; the log keeps the untouched
// record. One context_compacted event is appended each time
// compaction actually runs.
func (rt *Runtime) compactIfNeeded(ctx context.Context, messages []models.Message) []models.Message {
	if estimateTokens(messages) <= rt.cfg.CompactionThreshold {
		return messages
	}
	return rt.compact(ctx, messages)
}

// forceCompact runs the same compaction policy regardless of the
// estimated-token threshold, for the self-repair collaborator's
// mid-turn "compact" action (spec.md §4.6 step h).
func (rt *Runtime) forceCompact(ctx context.Context, messages []models.Message) []models.Message {
	return rt.compact(ctx, messages)
}

func (rt *Runtime) compact(ctx context.Context, messages []models.Message) []models.Message {
	body := messages
	var system *models.Message
	if len(messages) > 0 && messages[0].Role == models.RoleSystem {
		s := messages[0]
		system = &s
		body = messages[1:]
	}

	keepFrom := len(body) - compactionKeepLast
	if keepFrom <= 0 {
		return messages // nothing old enough to compact
	}
	older := body[:keepFrom]
	recent := body[keepFrom:]

	summary, err := rt.summarizeOlder(ctx, older)
	if err != nil || strings.TrimSpace(summary) == "" {
		summary = heuristicSummary(older)
	}

	compacted := make([]models.Message, 0, len(recent)+3)
	if system != nil {
		compacted = append(compacted, *system)
	}
	compacted = append(compacted,
		models.Message{Role: models.RoleUser, Content: summary},
		models.Message{Role: models.RoleAssistant, Content: "Understood. Continuing with the summarized context above."},
	)
	compacted = append(compacted, recent...)

	rt.events.Append(models.EventContextCompacted, models.EventData{
		MessagesBefore: len(messages),
		MessagesAfter:  len(compacted),
	}, models.SourceSystem)

	return compacted
}

// summarizeOlder issues one additional provider call asking for a
// compact summary of the older messages, each truncated to its first
// 500 characters and tagged with its role.
func (rt *Runtime) summarizeOlder(ctx context.Context, older []models.Message) (string, error) {
	var sb strings.Builder
	for _, m := range older {
		content := m.Content
		if len(content) > 500 {
			content = content[:500]
		}
		fmt.Fprintf(&sb, "[%s] %s\n", m.Role, content)
	}

	req := CompletionRequest{
		Model:  rt.model,
		System: "Summarize the following conversation excerpt compactly, preserving key facts, decisions, and open tasks. Respond with the summary only.",
		Messages: []Message{
			{Role: "user", Content: sb.String()},
		},
	}
	resp, err := rt.provider.Complete(ctx, req)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// heuristicSummary is the fallback used when the summarization call
// fails: the first-line snippet of each of the first three older user
// messages.
func heuristicSummary(older []models.Message) string {
	var lines []string
	for _, m := range older {
		if m.Role != models.RoleUser {
			continue
		}
		line := m.Content
		if idx := strings.IndexByte(line, '\n'); idx >= 0 {
			line = line[:idx]
		}
		lines = append(lines, line)
		if len(lines) == 3 {
			break
		}
	}
	if len(lines) == 0 {
		return "Earlier conversation context has been compacted."
	}
	return "Earlier conversation covered: " + strings.Join(lines, "; ")
}
