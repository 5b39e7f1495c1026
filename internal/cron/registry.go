package cron

import (
	"context"
	"sync"
	"time"
)

// Job represents a scheduled task that runs inside the cron worker.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type scheduled struct {
	job     Job
	every   time.Duration
	lastRun time.Time
}

// Registry holds the cron jobs and how often each may run. Cart reconcile
// and reminders want every cycle; outbox retention is a daily sweep.
type Registry struct {
	mu   sync.Mutex
	jobs []*scheduled
}

// NewRegistry registers jobs that run on every cycle.
func NewRegistry(jobs ...Job) *Registry {
	r := &Registry{}
	for _, job := range jobs {
		r.Register(job, 0)
	}
	return r
}

// Register adds a job that runs at most once per every. Zero means every
// cycle. Nil jobs and duplicate names are ignored.
func (r *Registry) Register(job Job, every time.Duration) {
	if job == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.jobs {
		if s.job.Name() == job.Name() {
			return
		}
	}
	r.jobs = append(r.jobs, &scheduled{job: job, every: max(every, 0)})
}

// Jobs returns the registered jobs in the order they were added.
func (r *Registry) Jobs() []Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	jobs := make([]Job, 0, len(r.jobs))
	for _, s := range r.jobs {
		jobs = append(jobs, s.job)
	}
	return jobs
}

// Due returns the jobs whose spacing has elapsed at now, in registration
// order. A job that never completed is always due.
func (r *Registry) Due(now time.Time) []Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	var due []Job
	for _, s := range r.jobs {
		if s.lastRun.IsZero() || s.every == 0 || !now.Before(s.lastRun.Add(s.every)) {
			due = append(due, s.job)
		}
	}
	return due
}

// Completed records a successful run. Failed runs are not recorded so the
// job is retried on the next cycle.
func (r *Registry) Completed(name string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.jobs {
		if s.job.Name() == name {
			s.lastRun = at
			return
		}
	}
}
