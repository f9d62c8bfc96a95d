package eventlog

import (
	"testing"
	"time"

	"github.com/kestrel-agent/kestrel/pkg/models"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestAppend_SequenceIncreasesByOne(t *testing.T) {
	l := New(fixedClock(time.Unix(0, 0)))

	for i := 0; i < 5; i++ {
		ev := l.Append(models.EventUserMessage, models.EventData{Content: "hi"}, models.SourceUser)
		if ev.Seq != uint64(i) {
			t.Fatalf("event %d: Seq = %d, want %d", i, ev.Seq, i)
		}
	}
	if l.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", l.Len())
	}
}

func TestAppend_IDsAreUnique(t *testing.T) {
	l := New(nil)
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		ev := l.Append(models.EventUserMessage, models.EventData{}, models.SourceUser)
		if seen[ev.ID] {
			t.Fatalf("duplicate event id %s", ev.ID)
		}
		seen[ev.ID] = true
	}
}

func TestJSONLRoundTrip(t *testing.T) {
	l := New(fixedClock(time.Unix(100, 0)))
	l.Append(models.EventUserMessage, models.EventData{Content: "Hi"}, models.SourceUser)
	l.Append(models.EventAgentMessage, models.EventData{Content: "Hello"}, models.SourceAgent)

	data, err := l.ToJSONL()
	if err != nil {
		t.Fatalf("ToJSONL: %v", err)
	}

	restored, err := FromJSONL(data, nil)
	if err != nil {
		t.Fatalf("FromJSONL: %v", err)
	}

	want := l.Events()
	got := restored.Events()
	if len(got) != len(want) {
		t.Fatalf("event count = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d mismatch:\n got  %+v\n want %+v", i, got[i], want[i])
		}
	}
}

func TestFromJSONL_SkipsBlankLines(t *testing.T) {
	data := []byte("\n   \n" + `{"id":"evt_1_0","seq":0,"type":"user_message","source":"user","data":{"content":"hi"}}` + "\n\n")
	l, err := FromJSONL(data, nil)
	if err != nil {
		t.Fatalf("FromJSONL: %v", err)
	}
	if l.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", l.Len())
	}
}

func TestFromJSONL_MalformedLineFailsWholeDecode(t *testing.T) {
	data := []byte(`{"id":"evt_1_0","seq":0,"type":"user_message"}` + "\n" + "not json" + "\n")
	if _, err := FromJSONL(data, nil); err == nil {
		t.Fatal("expected error decoding malformed JSONL")
	}
}

func TestDeriveSessionHistory_Deterministic(t *testing.T) {
	l := New(fixedClock(time.Unix(0, 0)))
	l.Append(models.EventUserMessage, models.EventData{Content: "Hi"}, models.SourceUser)
	l.Append(models.EventAgentMessage, models.EventData{Content: ""}, models.SourceAgent)
	l.Append(models.EventToolCall, models.EventData{CallID: "t1", ToolName: "echo", Arguments: `{"text":"x"}`}, models.SourceAgent)
	l.Append(models.EventToolResult, models.EventData{CallID: "t1", ToolName: "echo", Success: true, Output: "x"}, models.SourceSystem)
	l.Append(models.EventAgentMessage, models.EventData{Content: "Done"}, models.SourceAgent)

	events := l.Events()
	h1 := DeriveSessionHistory(events, "You are test.")
	h2 := DeriveSessionHistory(events, "You are test.")

	if len(h1) != len(h2) {
		t.Fatalf("non-deterministic derivation: %d vs %d messages", len(h1), len(h2))
	}
	for i := range h1 {
		if h1[i].Content != h2[i].Content || h1[i].Role != h2[i].Role {
			t.Fatalf("message %d differs between derivations", i)
		}
	}

	if h1[0].Role != models.RoleSystem || h1[0].Content != "You are test." {
		t.Fatalf("system prompt not in slot 0: %+v", h1[0])
	}
	if len(h1[2].ToolCalls) != 1 || h1[2].ToolCalls[0].Name != "echo" {
		t.Fatalf("tool call not attached to assistant sink: %+v", h1[2])
	}
}

func TestDeriveToolCallLog_PendingWhenUnpaired(t *testing.T) {
	l := New(nil)
	l.Append(models.EventToolCall, models.EventData{CallID: "t1", ToolName: "fetch"}, models.SourceAgent)

	recs := DeriveToolCallLog(l.Events())
	if len(recs) != 1 || !recs[0].Pending {
		t.Fatalf("expected one pending record, got %+v", recs)
	}
}

func TestSliceToTurnEnd(t *testing.T) {
	l := New(nil)
	l.Append(models.EventUserMessage, models.EventData{Content: "first"}, models.SourceUser)
	first := l.Append(models.EventAgentMessage, models.EventData{Content: "r1"}, models.SourceAgent)
	l.Append(models.EventUserMessage, models.EventData{Content: "second"}, models.SourceUser)
	l.Append(models.EventAgentMessage, models.EventData{Content: "r2"}, models.SourceAgent)

	slice := SliceToTurnEnd(l.Events(), first.ID)
	if len(slice) != 2 {
		t.Fatalf("len(slice) = %d, want 2", len(slice))
	}
	if slice[1].Data.Content != "r1" {
		t.Fatalf("slice did not include the turn's own response: %+v", slice)
	}
}

func TestSliceToTurnEnd_UnknownID(t *testing.T) {
	l := New(nil)
	l.Append(models.EventUserMessage, models.EventData{}, models.SourceUser)
	if got := SliceToTurnEnd(l.Events(), "missing"); got != nil {
		t.Fatalf("expected nil for unknown event id, got %v", got)
	}
}

func TestDeriveGoals_Folding(t *testing.T) {
	l := New(nil)
	l.Append(models.EventGoalAdded, models.EventData{Goal: &models.Goal{ID: "g1", Description: "ship", Status: models.GoalActive}}, models.SourceAgent)
	l.Append(models.EventGoalUpdated, models.EventData{Goal: &models.Goal{ID: "g1", Description: "ship", Status: models.GoalCompleted}}, models.SourceAgent)

	goals := DeriveGoals(l.Events())
	if len(goals) != 1 || goals[0].Status != models.GoalCompleted {
		t.Fatalf("expected folded goal with completed status, got %+v", goals)
	}
}
