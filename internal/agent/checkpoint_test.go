package agent

import (
	"testing"

	"github.com/kestrel-agent/kestrel/internal/eventlog"
	"github.com/kestrel-agent/kestrel/pkg/models"
)

func TestCheckpointRestoreRoundTrip(t *testing.T) {
	rt := newTestRuntime(t, &fakeProvider{nativeTools: true})
	rt.SetSystemPrompt("be terse")
	rt.SetModel("model-x")
	rt.SendMessage("remember this")
	rt.MemoryStore("k1", "some fact", "", nil)
	rt.AddSchedulerJob("ping", 12345)

	data, err := rt.Checkpoint()
	if err != nil {
		t.Fatalf("Checkpoint failed: %v", err)
	}

	restored := newTestRuntime(t, &fakeProvider{nativeTools: true})
	if err := restored.Restore(data); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}

	if restored.systemPrompt != "be terse" {
		t.Errorf("systemPrompt = %q, want %q", restored.systemPrompt, "be terse")
	}
	if restored.model != "model-x" {
		t.Errorf("model = %q, want %q", restored.model, "model-x")
	}

	history := restored.history()
	found := false
	for _, m := range history {
		if m.Content == "remember this" {
			found = true
		}
	}
	if !found {
		t.Error("expected restored history to contain the original user message")
	}

	if restored.memory.Len() != 1 {
		t.Errorf("expected 1 restored memory entry, got %d", restored.memory.Len())
	}

	jobs := restored.ListSchedulerJobs()
	if len(jobs) != 1 || jobs[0].Prompt != "ping" {
		t.Fatalf("expected restored scheduler job, got %+v", jobs)
	}
}

func TestRestoreMigratesV1Checkpoint(t *testing.T) {
	rt := newTestRuntime(t, &fakeProvider{nativeTools: true})

	legacy := `{
		"id": "ckpt_old",
		"timestamp": "2024-01-01T00:00:00Z",
		"version": 1,
		"agent_state": {"system_prompt": "legacy prompt", "model": "legacy-model"},
		"session_history": [
			{"role": "user", "content": "hi there"},
			{"role": "assistant", "content": "hello", "tool_calls": [{"id": "c1", "name": "echo", "arguments": "{}"}]},
			{"role": "tool", "content": "echoed", "tool_call_id": "c1", "tool_name": "echo"}
		],
		"active_goals": [{"id": "goal_1", "description": "ship it", "status": "active"}]
	}`

	if err := rt.Restore([]byte(legacy)); err != nil {
		t.Fatalf("Restore of a v1 checkpoint failed: %v", err)
	}
	if rt.systemPrompt != "legacy prompt" || rt.model != "legacy-model" {
		t.Fatalf("unexpected migrated state: prompt=%q model=%q", rt.systemPrompt, rt.model)
	}

	history := rt.history()
	var sawUser, sawTool bool
	for _, m := range history {
		if m.Role == models.RoleUser && m.Content == "hi there" {
			sawUser = true
		}
		if m.Role == models.RoleTool && m.Content == "echoed" {
			sawTool = true
		}
	}
	if !sawUser || !sawTool {
		t.Fatalf("expected migrated user and tool messages, got %+v", history)
	}

	goals := eventlog.DeriveGoals(rt.events.Events())
	if len(goals) != 1 || goals[0].ID != "goal_1" {
		t.Fatalf("expected the migrated goal to survive, got %+v", goals)
	}
}

func TestRestoreRejectsUnknownVersion(t *testing.T) {
	rt := newTestRuntime(t, &fakeProvider{nativeTools: true})
	err := rt.Restore([]byte(`{"version":99}`))
	if err == nil {
		t.Fatal("expected an error for an unsupported checkpoint version")
	}
}

func TestRestoreRejectsMalformedJSON(t *testing.T) {
	rt := newTestRuntime(t, &fakeProvider{nativeTools: true})
	if err := rt.Restore([]byte(`not json`)); err == nil {
		t.Fatal("expected an error for malformed checkpoint data")
	}
}
