package agent

import (
	"fmt"

	"github.com/kestrel-agent/kestrel/pkg/models"
)

// AddSchedulerJob registers a one-shot job firing at fireAt (epoch ms).
func (rt *Runtime) AddSchedulerJob(prompt string, fireAt int64) *models.ScheduledJob {
	job := rt.scheduler.AddOnce(prompt, fireAt)
	rt.events.Append(models.EventSchedulerAdded, models.EventData{JobID: job.ID}, models.SourceSystem)
	return job
}

// AddSchedulerIntervalJob registers a repeating job firing every
// intervalMs.
func (rt *Runtime) AddSchedulerIntervalJob(prompt string, intervalMs int64) *models.ScheduledJob {
	job := rt.scheduler.AddInterval(prompt, intervalMs)
	rt.events.Append(models.EventSchedulerAdded, models.EventData{JobID: job.ID}, models.SourceSystem)
	return job
}

// AddSchedulerCronJob registers a job firing on a five-field cron
// schedule. It returns an error, rather than a nil job, when cronExpr
// fails to parse.
func (rt *Runtime) AddSchedulerCronJob(prompt string, cronExpr string) (*models.ScheduledJob, error) {
	job := rt.scheduler.AddCron(prompt, cronExpr)
	if job == nil {
		return nil, fmt.Errorf("invalid cron expression: %q", cronExpr)
	}
	rt.events.Append(models.EventSchedulerAdded, models.EventData{JobID: job.ID}, models.SourceSystem)
	return job, nil
}

// ListSchedulerJobs returns every registered job.
func (rt *Runtime) ListSchedulerJobs() []*models.ScheduledJob {
	return rt.scheduler.Jobs()
}

// RemoveSchedulerJob removes a job by id, reporting whether it existed.
func (rt *Runtime) RemoveSchedulerJob(id string) bool {
	if !rt.scheduler.Remove(id) {
		return false
	}
	rt.events.Append(models.EventSchedulerRemoved, models.EventData{JobID: id}, models.SourceSystem)
	return true
}

// Tick fires due scheduler jobs (spec.md §4.7): each firing job appends
// a user message to history and a scheduler_fired event, so the next
// run/runStream picks it up.
func (rt *Runtime) Tick(nowMs int64) []*models.ScheduledJob {
	fired := rt.scheduler.Tick(nowMs)
	for _, job := range fired {
		rt.SendMessage(job.Prompt)
		rt.events.Append(models.EventSchedulerFired, models.EventData{JobID: job.ID}, models.SourceSystem)
	}
	return fired
}
