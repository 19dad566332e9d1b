package sim

// JobID identifies a job across the engine. Components other than the
// JobRegistry hold JobIDs, never independent copies of the job record.
type JobID int64

// Resources is a per-node resource share.
type Resources struct {
	Cores    int64
	MemoryMB int64
	GPUs     int64
}

// FitsIn reports whether r fits inside the available share avail.
func (r Resources) FitsIn(avail Resources) bool {
	return r.Cores <= avail.Cores && r.MemoryMB <= avail.MemoryMB && r.GPUs <= avail.GPUs
}

// Add returns r + other.
func (r Resources) Add(other Resources) Resources {
	return Resources{
		Cores:    r.Cores + other.Cores,
		MemoryMB: r.MemoryMB + other.MemoryMB,
		GPUs:     r.GPUs + other.GPUs,
	}
}

// Sub returns r - other.
func (r Resources) Sub(other Resources) Resources {
	return Resources{
		Cores:    r.Cores - other.Cores,
		MemoryMB: r.MemoryMB - other.MemoryMB,
		GPUs:     r.GPUs - other.GPUs,
	}
}

// IsZero reports whether every dimension is zero.
func (r Resources) IsZero() bool {
	return r.Cores == 0 && r.MemoryMB == 0 && r.GPUs == 0
}

// JobState represents the lifecycle state of a job.
type JobState string

const (
	StatePending   JobState = "PENDING"
	StateRunning   JobState = "RUNNING"
	StateCompleted JobState = "COMPLETED"
	StateFailed    JobState = "FAILED"
	StateCancelled JobState = "CANCELLED"
)

// Terminal reports whether the state is final.
func (s JobState) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Job is a job record, owned exclusively by the JobRegistry.
//
// A job is created on Submission, transitions to Running via an Allocation
// event, and reaches a terminal state via a Completion event (or
// cancellation). Terminal jobs are frozen into the realization and never
// mutated again.
type Job struct {
	ID JobID

	// Priority inputs
	User    string
	Account string
	QOS     string
	Nice    int64 // user-assigned adjustment, subtracted from the score

	// Request
	Partition     string
	NodeCount     int
	PerNode       Resources // share reserved on each assigned node
	WallTimeLimit int64     // declared limit, seconds

	// Lifecycle
	State         JobState
	SubmitTime    int64
	StartTime     int64
	EndTime       int64
	AssignedNodes []NodeID
	RequeueCount  int
	FailReason    string

	// allocEpoch distinguishes successive allocations of the same job so a
	// completion scheduled before a preemption cannot terminate the requeued
	// run.
	allocEpoch uint64
}

// TotalCores is the job-wide core request across all nodes.
func (j *Job) TotalCores() int64 {
	return j.PerNode.Cores * int64(j.NodeCount)
}

// Age is the time the job has spent since submission.
func (j *Job) Age(clock int64) int64 {
	return clock - j.SubmitTime
}
