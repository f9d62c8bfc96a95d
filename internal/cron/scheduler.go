package cron

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kestrel-agent/kestrel/pkg/models"
)

// Scheduler holds the registered jobs and advances them one tick at a
// time. It does not run its own goroutine loop: the host (agent core)
// calls Tick at the start of each run iteration, matching the spec's
// "checkLimits-style" single entry point for time-driven state.
// Grounded on the teacher's internal/cron.Scheduler functional-options
// construction, narrowed to the spec's job-registry contract.
type Scheduler struct {
	mu     sync.Mutex
	jobs   map[string]*models.ScheduledJob
	order  []string
	nextID int
	logger *slog.Logger
}

// Option configures a Scheduler at construction.
type Option func(*Scheduler)

// WithLogger sets the scheduler's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates an empty scheduler.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		jobs:   make(map[string]*models.ScheduledJob),
		logger: slog.Default().With("component", "cron"),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// AddOnce registers a job that fires once at fireAt (epoch ms).
func (s *Scheduler) AddOnce(prompt string, fireAt int64) *models.ScheduledJob {
	return s.add(models.ScheduleOnce, prompt, fireAt, 0, "")
}

// AddInterval registers a job that fires every intervalMs.
func (s *Scheduler) AddInterval(prompt string, intervalMs int64) *models.ScheduledJob {
	return s.add(models.ScheduleInterval, prompt, 0, intervalMs, "")
}

// AddCron registers a job firing on cronExpr's schedule. Returns nil if
// cronExpr fails to parse.
func (s *Scheduler) AddCron(prompt string, cronExpr string) *models.ScheduledJob {
	if ParseCron(cronExpr) == nil {
		return nil
	}
	return s.add(models.ScheduleCron, prompt, 0, 0, cronExpr)
}

func (s *Scheduler) add(kind models.ScheduleType, prompt string, fireAt, intervalMs int64, cronExpr string) *models.ScheduledJob {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	job := &models.ScheduledJob{
		ID:           fmt.Sprintf("job_%d", s.nextID),
		ScheduleType: kind,
		Prompt:       prompt,
		FireAt:       fireAt,
		IntervalMs:   intervalMs,
		Cron:         cronExpr,
	}
	s.jobs[job.ID] = job
	s.order = append(s.order, job.ID)
	return job
}

// Remove deletes a job by id.
func (s *Scheduler) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[id]; !ok {
		return false
	}
	delete(s.jobs, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// SetPaused toggles a job's paused state.
func (s *Scheduler) SetPaused(id string, paused bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return false
	}
	job.Paused = paused
	return true
}

// Jobs returns a snapshot of all registered jobs in registration order.
func (s *Scheduler) Jobs() []*models.ScheduledJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.ScheduledJob, 0, len(s.order))
	for _, id := range s.order {
		job := *s.jobs[id]
		out = append(out, &job)
	}
	return out
}

// Tick advances every unpaused job against nowMs and returns the jobs
// that newly fired this call, in registration order. Firing semantics
// per spec §4.7:
//   - once fires when !fired && nowMs >= fireAt
//   - interval fires when nowMs >= lastFired + intervalMs
//   - cron fires when the current minute differs from the minute of
//     lastFired and the parsed expression matches nowMs's local time
func (s *Scheduler) Tick(nowMs int64) []*models.ScheduledJob {
	s.mu.Lock()
	defer s.mu.Unlock()

	var fired []*models.ScheduledJob
	nowT := time.UnixMilli(nowMs)

	for _, id := range s.order {
		job := s.jobs[id]
		if job.Paused {
			continue
		}

		switch job.ScheduleType {
		case models.ScheduleOnce:
			if !job.Fired && nowMs >= job.FireAt {
				job.Fired = true
				job.LastFired = nowMs
				fired = append(fired, cloneJob(job))
			}

		case models.ScheduleInterval:
			if nowMs >= job.LastFired+job.IntervalMs {
				job.LastFired = nowMs
				fired = append(fired, cloneJob(job))
			}

		case models.ScheduleCron:
			currentMinute := nowMs / 60000
			lastMinute := job.LastFired / 60000
			if currentMinute == lastMinute {
				continue
			}
			expr := job.ParsedCron(ParseCron)
			if expr != nil && CronMatches(expr, nowT) {
				job.LastFired = nowMs
				fired = append(fired, cloneJob(job))
			}
		}
	}

	return fired
}

// Restore replaces the scheduler's entire job set with jobs, preserving
// their ids, fire/paused state, and registration order — used by
// checkpoint restore to reinstall a previously serialized schedule
// rather than re-registering jobs through AddOnce/AddInterval/AddCron,
// which would mint fresh ids.
func (s *Scheduler) Restore(jobs []*models.ScheduledJob) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.jobs = make(map[string]*models.ScheduledJob, len(jobs))
	s.order = make([]string, 0, len(jobs))
	for _, j := range jobs {
		job := cloneJob(j)
		s.jobs[job.ID] = job
		s.order = append(s.order, job.ID)
	}
}

func cloneJob(j *models.ScheduledJob) *models.ScheduledJob {
	clone := *j
	return &clone
}
