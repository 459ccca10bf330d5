package cron

import "context"

// Job is a unit of scheduled reconciliation work. Jobs are expected to be
// idempotent; the scheduler may run them again after a missed tick.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry holds the jobs a cron worker ticks through, in registration order.
type Registry struct {
	jobs []Job
}

// NewRegistry builds a registry from the provided jobs, dropping nils.
func NewRegistry(jobs ...Job) *Registry {
	registry := &Registry{jobs: make([]Job, 0, len(jobs))}
	for _, job := range jobs {
		if job != nil {
			registry.jobs = append(registry.jobs, job)
		}
	}
	return registry
}

// Jobs returns a copy of the registered jobs.
func (r *Registry) Jobs() []Job {
	jobs := make([]Job, len(r.jobs))
	copy(jobs, r.jobs)
	return jobs
}
