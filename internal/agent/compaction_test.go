package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/kestrel-agent/kestrel/pkg/models"
)

func TestEstimateTokens(t *testing.T) {
	messages := []models.Message{
		{Role: models.RoleUser, Content: "12345678"}, // 8 chars
	}
	if got := estimateTokens(messages); got != 2 {
		t.Errorf("estimateTokens = %d, want 2", got)
	}
}

func TestCompactIfNeededBelowThreshold(t *testing.T) {
	rt := newTestRuntime(t, &fakeProvider{nativeTools: true})
	rt.cfg.CompactionThreshold = 1_000_000
	messages := []models.Message{{Role: models.RoleUser, Content: "hi"}}

	got := rt.compactIfNeeded(context.Background(), messages)
	if len(got) != 1 {
		t.Fatalf("expected no compaction below threshold, got %d messages", len(got))
	}
}

func TestCompactIfNeededAboveThreshold(t *testing.T) {
	provider := &fakeProvider{
		nativeTools: true,
		responses:   []*models.ProviderResponse{{Content: "summary of earlier conversation"}},
	}
	rt := newTestRuntime(t, provider)
	rt.cfg.CompactionThreshold = 1

	messages := []models.Message{{Role: models.RoleSystem, Content: "sys"}}
	for i := 0; i < 20; i++ {
		messages = append(messages, models.Message{Role: models.RoleUser, Content: strings.Repeat("x", 100)})
	}

	got := rt.compactIfNeeded(context.Background(), messages)
	if len(got) >= len(messages) {
		t.Fatalf("expected compaction to shrink history, got %d >= %d", len(got), len(messages))
	}
	if got[0].Role != models.RoleSystem {
		t.Errorf("expected system message preserved at position 0, got %+v", got[0])
	}
	if got[1].Content != "summary of earlier conversation" {
		t.Errorf("expected summarized content, got %q", got[1].Content)
	}

	events := rt.events.Events()
	found := false
	for _, e := range events {
		if e.Type == models.EventContextCompacted {
			found = true
		}
	}
	if !found {
		t.Error("expected a context_compacted event to be appended")
	}
}

func TestCompactIfNeededTooFewOlderMessages(t *testing.T) {
	rt := newTestRuntime(t, &fakeProvider{nativeTools: true})
	rt.cfg.CompactionThreshold = 1

	messages := []models.Message{
		{Role: models.RoleSystem, Content: "sys"},
		{Role: models.RoleUser, Content: "hi"},
	}
	got := rt.compactIfNeeded(context.Background(), messages)
	if len(got) != len(messages) {
		t.Fatalf("expected unchanged history when nothing old enough to compact, got %d", len(got))
	}
}

func TestHeuristicSummaryFallback(t *testing.T) {
	older := []models.Message{
		{Role: models.RoleUser, Content: "first question\nmore detail"},
		{Role: models.RoleAssistant, Content: "an answer"},
		{Role: models.RoleUser, Content: "second question"},
	}
	summary := heuristicSummary(older)
	if !strings.Contains(summary, "first question") || !strings.Contains(summary, "second question") {
		t.Errorf("expected summary to mention both user messages, got %q", summary)
	}
	if strings.Contains(summary, "more detail") {
		t.Errorf("expected only first line kept, got %q", summary)
	}
}

func TestHeuristicSummaryEmpty(t *testing.T) {
	if got := heuristicSummary(nil); got == "" {
		t.Error("expected a non-empty fallback summary")
	}
}
