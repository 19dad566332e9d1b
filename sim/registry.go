package sim

import "github.com/pkg/errors"

// JobRegistry owns all job records through their lifecycle. Submission order
// is preserved so priority ties and equal-time submissions resolve by
// apparent arrival order.
type JobRegistry struct {
	jobs  map[JobID]*Job
	order []JobID
}

// NewJobRegistry creates an empty registry.
func NewJobRegistry() *JobRegistry {
	return &JobRegistry{
		jobs: make(map[JobID]*Job),
	}
}

// Add registers a job. Job IDs are unique for the lifetime of a run.
func (r *JobRegistry) Add(j *Job) error {
	if _, exists := r.jobs[j.ID]; exists {
		return errors.Errorf("duplicate job id %d", j.ID)
	}
	r.jobs[j.ID] = j
	r.order = append(r.order, j.ID)
	return nil
}

// Get returns the job with the given id, or nil.
func (r *JobRegistry) Get(id JobID) *Job {
	return r.jobs[id]
}

// Len returns the number of registered jobs.
func (r *JobRegistry) Len() int {
	return len(r.jobs)
}

// Pending returns all Pending jobs in submission order.
func (r *JobRegistry) Pending() []*Job {
	var out []*Job
	for _, id := range r.order {
		if j := r.jobs[id]; j.State == StatePending {
			out = append(out, j)
		}
	}
	return out
}

// Running returns all Running jobs in submission order.
func (r *JobRegistry) Running() []*Job {
	var out []*Job
	for _, id := range r.order {
		if j := r.jobs[id]; j.State == StateRunning {
			out = append(out, j)
		}
	}
	return out
}

// occupying returns all jobs currently holding node shares: Running jobs
// plus jobs committed earlier in the same instant whose Allocation event has
// not yet been consumed. Reservation planning walks their declared release
// times.
func (r *JobRegistry) occupying() []*Job {
	var out []*Job
	for _, id := range r.order {
		j := r.jobs[id]
		if len(j.AssignedNodes) > 0 && !j.State.Terminal() {
			out = append(out, j)
		}
	}
	return out
}

// NonTerminal returns all jobs not yet in a terminal state, in submission
// order. Used at horizon cutoff to record truncated jobs.
func (r *JobRegistry) NonTerminal() []*Job {
	var out []*Job
	for _, id := range r.order {
		if j := r.jobs[id]; !j.State.Terminal() {
			out = append(out, j)
		}
	}
	return out
}
