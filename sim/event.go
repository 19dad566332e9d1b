package sim

// Event defines the interface for all simulation events.
// Each event carries a timestamp (simulated seconds), a kind, and a
// per-simulator insertion sequence number used as the final ordering
// tie-breaker.
type Event interface {
	Timestamp() int64
	Kind() EventKind
	Seq() uint64
	Execute(*Simulator) error
}

// EventKind tags the concrete event type for deterministic ordering.
type EventKind string

const (
	KindCompletion      EventKind = "Completion"
	KindNodeStateChange EventKind = "NodeStateChange"
	KindSubmission      EventKind = "Submission"
	KindAllocation      EventKind = "Allocation"
	KindSchedulingTick  EventKind = "SchedulingTick"
)

// eventKindPriority defines ordering for events at the same timestamp.
// Lower values are processed first: completions release capacity before new
// submissions are registered, and the scheduling pass runs last so it sees
// every state change of the instant.
var eventKindPriority = map[EventKind]int{
	KindCompletion:      1,
	KindNodeStateChange: 2,
	KindSubmission:      3,
	KindAllocation:      4,
	KindSchedulingTick:  5,
}

// BaseEvent provides the common event fields.
type BaseEvent struct {
	timestamp int64
	seq       uint64
	kind      EventKind
}

func (e *BaseEvent) Timestamp() int64 { return e.timestamp }
func (e *BaseEvent) Seq() uint64      { return e.seq }
func (e *BaseEvent) Kind() EventKind  { return e.kind }

// SubmissionEvent represents a job arriving from the workload feed.
type SubmissionEvent struct {
	BaseEvent
	Job *Job
}

func (e *SubmissionEvent) Execute(s *Simulator) error {
	return s.handleSubmission(e)
}

// AllocationEvent consumes a scheduling decision: the named job transitions
// to Running on the given node set. Resources were committed when the
// decision was made; this event performs the lifecycle transition and
// schedules the matching completion.
type AllocationEvent struct {
	BaseEvent
	JobID JobID
	Nodes []NodeID
	// Occupancy is the sampled (or declared) runtime the job will hold its
	// nodes for, capped at the job's wall-time limit.
	Occupancy int64
	// Exceeded marks that the sampled runtime overran the declared limit,
	// so the job terminates as Failed with WallTimeExceeded.
	Exceeded bool
}

func (e *AllocationEvent) Execute(s *Simulator) error {
	return s.handleAllocation(e)
}

// CompletionEvent represents a running job reaching the end of its occupancy.
// Epoch guards against stale completions: a preempted or node-failed job
// bumps its allocation epoch, and the orphaned completion is ignored.
type CompletionEvent struct {
	BaseEvent
	JobID    JobID
	Epoch    uint64
	Exceeded bool
}

func (e *CompletionEvent) Execute(s *Simulator) error {
	return s.handleCompletion(e)
}

// SchedulingTickEvent triggers a scheduling pass over all pending jobs.
type SchedulingTickEvent struct {
	BaseEvent
}

func (e *SchedulingTickEvent) Execute(s *Simulator) error {
	return s.handleTick(e)
}

// NodeStateChangeEvent models a node going down (maintenance window,
// failure) or coming back up.
type NodeStateChangeEvent struct {
	BaseEvent
	Node NodeID
	Down bool
	// UpAfter, for a Down transition, schedules the matching up event this
	// many simulated seconds later. Zero means the node stays down.
	UpAfter int64
}

func (e *NodeStateChangeEvent) Execute(s *Simulator) error {
	return s.handleNodeStateChange(e)
}
