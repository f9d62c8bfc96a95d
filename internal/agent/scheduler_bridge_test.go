package agent

import (
	"testing"

	"github.com/kestrel-agent/kestrel/pkg/models"
)

func TestSchedulerJobCRUD(t *testing.T) {
	rt := newTestRuntime(t, &fakeProvider{nativeTools: true})

	job := rt.AddSchedulerJob("fire once", 1000)
	if job == nil {
		t.Fatal("expected a job")
	}

	jobs := rt.ListSchedulerJobs()
	if len(jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(jobs))
	}

	if !rt.RemoveSchedulerJob(job.ID) {
		t.Fatal("expected removal to succeed")
	}
	if rt.RemoveSchedulerJob(job.ID) {
		t.Fatal("expected a second removal to report false")
	}
	if len(rt.ListSchedulerJobs()) != 0 {
		t.Fatal("expected no jobs remaining")
	}
}

func TestSchedulerTickFiresDueJobs(t *testing.T) {
	rt := newTestRuntime(t, &fakeProvider{nativeTools: true})
	rt.AddSchedulerJob("wake up", 1000)

	fired := rt.Tick(2000)
	if len(fired) != 1 {
		t.Fatalf("expected 1 fired job, got %d", len(fired))
	}

	history := rt.history()
	var sawPrompt bool
	for _, m := range history {
		if m.Content == "wake up" {
			sawPrompt = true
		}
	}
	if !sawPrompt {
		t.Error("expected the fired job's prompt to be appended as a user message")
	}

	var sawEvent bool
	for _, e := range rt.events.Events() {
		if e.Type == models.EventSchedulerFired {
			sawEvent = true
		}
	}
	if !sawEvent {
		t.Error("expected a scheduler_fired event")
	}
}

func TestAddSchedulerCronJob_InvalidExpressionReturnsError(t *testing.T) {
	rt := newTestRuntime(t, &fakeProvider{nativeTools: true})

	job, err := rt.AddSchedulerCronJob("bad", "* * * *")
	if err == nil {
		t.Fatal("expected an error for a malformed cron expression")
	}
	if job != nil {
		t.Fatal("expected a nil job alongside the error")
	}
}

func TestAddSchedulerCronJob_ValidExpression(t *testing.T) {
	rt := newTestRuntime(t, &fakeProvider{nativeTools: true})

	job, err := rt.AddSchedulerCronJob("standup", "0 9 * * 1-5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job == nil {
		t.Fatal("expected a job")
	}
}
