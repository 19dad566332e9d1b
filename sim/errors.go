package sim

import "github.com/pkg/errors"

// Sentinel errors for the engine's failure taxonomy.
//
// ErrCausalityViolation indicates an internal ordering bug and aborts the
// run. ErrInsufficientResources is an expected local condition: the job
// stays Pending and is retried at the next scheduling pass.
var (
	// ErrCausalityViolation is returned when an event is scheduled with a
	// timestamp strictly before the current simulated clock.
	ErrCausalityViolation = errors.New("causality violation: event timestamp before current clock")

	// ErrInsufficientResources is returned by Cluster.TryAllocate when the
	// candidate node set cannot hold the job's request. State is unchanged.
	ErrInsufficientResources = errors.New("insufficient resources")

	// ErrUnsatisfiableRequest is returned when a job's request exceeds the
	// cluster's maximum even with every node idle. The job is cancelled at
	// submission, never retried.
	ErrUnsatisfiableRequest = errors.New("request exceeds cluster maximum")
)

// FailReason values recorded on terminally failed or cancelled jobs.
const (
	FailReasonWallTimeExceeded = "WallTimeExceeded"
	FailReasonNodeDown         = "NodeDown"
	FailReasonUnsatisfiable    = "UnsatisfiableRequest"
	FailReasonRequeueLimit     = "RequeueLimitExceeded"
	FailReasonPreempted        = "Preempted"
)
