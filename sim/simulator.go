package sim

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/slurmsim/slurmsim/sim/realization"
)

// Simulator is the core object holding simulated time, cluster and job
// state, and the event loop. The core is single-threaded cooperative: one
// logical clock, one event queue, and all state transitions for a simulated
// instant applied before the clock advances.
//
// Replicas are the parallelism boundary: independent Simulators over the
// same trace share no mutable state and may run concurrently.
type Simulator struct {
	Clock   int64
	Horizon int64
	// EventBudget bounds the number of processed events; 0 means unlimited.
	EventBudget int64

	Jobs     *JobRegistry
	Cluster  *Cluster
	Sched    *Scheduler
	Recorder *realization.Recorder
	RNG      *PartitionedRNG
	Metrics  *Metrics
	Usage    *UsageTracker

	cfg       *PolicyConfig
	queue     *EventHeap
	nextSeq   uint64
	processed int64

	// Pass coalescing: at most one opportunistic pass per simulated instant
	// (the tick's kind priority already puts it after every same-instant
	// mutation), plus at most one pending periodic tick.
	immediateTick  bool
	periodicTickAt int64
}

// NewSimulator wires a simulator from its collaborators. The priority
// policy defaults to the multifactor score over the run's usage tracker.
func NewSimulator(cfg *PolicyConfig, cluster *Cluster, rng *PartitionedRNG, rec *realization.Recorder) *Simulator {
	usage := NewUsageTracker()
	s := &Simulator{
		Jobs:     NewJobRegistry(),
		Cluster:  cluster,
		Recorder: rec,
		RNG:      rng,
		Metrics:  NewMetrics(),
		Usage:    usage,
		cfg:      cfg,
		queue:    NewEventHeap(),
	}
	s.Sched = NewScheduler(cfg, NewMultifactorPriority(cfg, usage, cluster), NewRuntimeSampler(cfg.Runtime, rng))
	return s
}

// SetPriorityPolicy swaps the priority policy (capability set plug point).
func (s *Simulator) SetPriorityPolicy(p PriorityPolicy) {
	s.Sched.priority = p
}

// newBaseEvent stamps an event with the next insertion sequence number.
func (s *Simulator) newBaseEvent(timestamp int64, kind EventKind) BaseEvent {
	s.nextSeq++
	return BaseEvent{timestamp: timestamp, seq: s.nextSeq, kind: kind}
}

// Schedule inserts an event preserving the deterministic total order. An
// event timestamped before the current clock indicates a policy or feed bug
// and fails with ErrCausalityViolation; it is fatal, never retried.
func (s *Simulator) Schedule(ev Event) error {
	if ev.Timestamp() < s.Clock {
		return errors.Wrapf(ErrCausalityViolation, "%s at %d, clock %d", ev.Kind(), ev.Timestamp(), s.Clock)
	}
	s.queue.Schedule(ev)
	return nil
}

// SubmitJob schedules the job's submission event at its submit time.
func (s *Simulator) SubmitJob(j *Job) error {
	return s.Schedule(&SubmissionEvent{
		BaseEvent: s.newBaseEvent(j.SubmitTime, KindSubmission),
		Job:       j,
	})
}

// ScheduleNodeDown schedules a maintenance window or failure: the node goes
// Down at the given time and, when upAfter is positive, returns to service
// that many seconds later.
func (s *Simulator) ScheduleNodeDown(at int64, node NodeID, upAfter int64) error {
	return s.Schedule(&NodeStateChangeEvent{
		BaseEvent: s.newBaseEvent(at, KindNodeStateChange),
		Node:      node,
		Down:      true,
		UpAfter:   upAfter,
	})
}

// Run drains the event queue in simulated-time order until exhaustion, the
// horizon, or the event budget. On cutoff, jobs still in flight are
// recorded with a truncated marker rather than silently dropped.
func (s *Simulator) Run() error {
	for s.queue.Len() > 0 {
		ev := s.queue.PopNext()

		if s.Horizon > 0 && ev.Timestamp() > s.Horizon {
			return s.truncate(s.Horizon)
		}
		if ev.Timestamp() < s.Clock {
			return errors.Wrapf(ErrCausalityViolation, "%s at %d, clock %d", ev.Kind(), ev.Timestamp(), s.Clock)
		}
		s.Clock = ev.Timestamp()

		if err := ev.Execute(s); err != nil {
			return err
		}
		s.processed++
		if s.EventBudget > 0 && s.processed >= s.EventBudget && s.queue.Len() > 0 {
			return s.truncate(s.Clock)
		}
	}
	// Queue exhaustion with jobs still in flight: no future event exists
	// that could ever start them (every schedulable path emits one), so
	// record them rather than ending with a partial realization.
	if len(s.Jobs.NonTerminal()) > 0 {
		return s.truncate(s.Clock)
	}
	return nil
}

// truncate records every non-terminal job with the truncated marker.
func (s *Simulator) truncate(at int64) error {
	for _, j := range s.Jobs.NonTerminal() {
		end := int64(0)
		if j.State == StateRunning {
			end = at
		}
		rec := realization.Record{
			JobID:      int64(j.ID),
			SubmitTime: j.SubmitTime,
			StartTime:  j.StartTime,
			EndTime:    end,
			Nodes:      nodeNames(j.AssignedNodes),
			State:      string(j.State),
			Requeues:   j.RequeueCount,
			Truncated:  true,
		}
		if err := s.Recorder.Finalize(rec); err != nil {
			return err
		}
		s.Metrics.Truncated++
	}
	logrus.Infof("run truncated at %d with %d jobs in flight", at, s.Metrics.Truncated)
	return nil
}

// === Event handlers ===

func (s *Simulator) handleSubmission(e *SubmissionEvent) error {
	j := e.Job
	if err := s.Jobs.Add(j); err != nil {
		return err
	}
	s.Metrics.Submitted++
	logrus.Infof("<< Submission: job %d at %d", j.ID, s.Clock)

	// Structurally unsatisfiable requests fail fast, never retried.
	if !s.Cluster.CanEverRun(j) {
		logrus.Warnf("job %d: %v, cancelling", j.ID, ErrUnsatisfiableRequest)
		return s.cancelJob(j, s.Clock, FailReasonUnsatisfiable)
	}

	j.State = StatePending
	return s.requestPass()
}

func (s *Simulator) handleAllocation(e *AllocationEvent) error {
	j := s.Jobs.Get(e.JobID)
	if j == nil || j.State != StatePending {
		return errors.Errorf("allocation for job %d in unexpected state", e.JobID)
	}

	j.State = StateRunning
	j.StartTime = e.Timestamp()
	j.AssignedNodes = e.Nodes
	j.allocEpoch++
	s.Metrics.Started++
	// Wait time means submission to first start; restarts after a requeue
	// are not separate waits.
	if j.RequeueCount == 0 {
		s.Metrics.WaitTime.Update(j.StartTime - j.SubmitTime)
	}
	logrus.Infof("<< Allocation: job %d on %v at %d for %ds", j.ID, e.Nodes, s.Clock, e.Occupancy)

	return s.Schedule(&CompletionEvent{
		BaseEvent: s.newBaseEvent(e.Timestamp()+e.Occupancy, KindCompletion),
		JobID:     j.ID,
		Epoch:     j.allocEpoch,
		Exceeded:  e.Exceeded,
	})
}

func (s *Simulator) handleCompletion(e *CompletionEvent) error {
	j := s.Jobs.Get(e.JobID)
	if j == nil {
		return errors.Errorf("completion for unknown job %d", e.JobID)
	}
	if j.State != StateRunning || e.Epoch != j.allocEpoch {
		// Stale completion from before a preemption or node failure.
		logrus.Debugf("ignoring stale completion for job %d (epoch %d)", j.ID, e.Epoch)
		return nil
	}

	now := e.Timestamp()
	s.Cluster.Release(j)
	s.chargeUsage(j, now)
	j.EndTime = now

	if e.Exceeded {
		j.State = StateFailed
		j.FailReason = FailReasonWallTimeExceeded
		s.Metrics.Failed++
		logrus.Infof("<< Completion: job %d exceeded wall time at %d", j.ID, now)
	} else {
		j.State = StateCompleted
		s.Metrics.Completed++
		logrus.Infof("<< Completion: job %d at %d", j.ID, now)
	}

	if err := s.finalize(j); err != nil {
		return err
	}
	// Reclaim freed capacity promptly.
	return s.requestPass()
}

func (s *Simulator) handleTick(e *SchedulingTickEvent) error {
	s.immediateTick = false
	if s.periodicTickAt == e.Timestamp() {
		s.periodicTickAt = 0
	}

	if err := s.Sched.RunPass(s); err != nil {
		return err
	}

	// Keep periodic ticks flowing while pending jobs wait on future events
	// (completions, node recoveries). Age factors and preemption thresholds
	// shift between opportunistic passes.
	if s.cfg.TickInterval > 0 && s.periodicTickAt == 0 &&
		len(s.Jobs.Pending()) > 0 && s.queue.Len() > 0 {
		s.periodicTickAt = s.Clock + s.cfg.TickInterval
		return s.Schedule(&SchedulingTickEvent{
			BaseEvent: s.newBaseEvent(s.periodicTickAt, KindSchedulingTick),
		})
	}
	return nil
}

func (s *Simulator) handleNodeStateChange(e *NodeStateChangeEvent) error {
	if !e.Down {
		logrus.Infof("<< NodeUp: %s at %d", e.Node, s.Clock)
		s.Cluster.MarkUp(e.Node)
		return s.requestPass()
	}

	logrus.Infof("<< NodeDown: %s at %d", e.Node, s.Clock)
	affected := s.Cluster.MarkDown(e.Node)
	for _, jid := range affected {
		j := s.Jobs.Get(jid)
		j.allocEpoch++
		s.Cluster.Release(j)
		s.chargeUsage(j, s.Clock)
		j.AssignedNodes = nil

		if s.cfg.DownNodePolicy == DownNodeRequeue {
			j.RequeueCount++
			if j.RequeueCount > s.cfg.MaxRequeues {
				if err := s.cancelJob(j, s.Clock, FailReasonRequeueLimit); err != nil {
					return err
				}
				continue
			}
			j.State = StatePending
			j.StartTime = 0
			s.Metrics.Requeues++
			continue
		}

		j.State = StateFailed
		j.FailReason = FailReasonNodeDown
		j.EndTime = s.Clock
		s.Metrics.Failed++
		if err := s.finalize(j); err != nil {
			return err
		}
	}

	if e.UpAfter > 0 {
		up := &NodeStateChangeEvent{
			BaseEvent: s.newBaseEvent(s.Clock+e.UpAfter, KindNodeStateChange),
			Node:      e.Node,
		}
		if err := s.Schedule(up); err != nil {
			return err
		}
	}
	return s.requestPass()
}

// === Internals ===

// requestPass schedules a scheduling pass at the current instant unless one
// is already pending. The tick's kind priority puts it after every other
// same-instant event, so the pass sees the instant's full state.
func (s *Simulator) requestPass() error {
	if s.immediateTick {
		return nil
	}
	s.immediateTick = true
	return s.Schedule(&SchedulingTickEvent{
		BaseEvent: s.newBaseEvent(s.Clock, KindSchedulingTick),
	})
}

// chargeUsage accounts consumed core-seconds for fair-share and utilization.
func (s *Simulator) chargeUsage(j *Job, until int64) {
	if j.StartTime <= 0 || until <= j.StartTime {
		return
	}
	coreSeconds := float64(j.TotalCores()) * float64(until-j.StartTime)
	s.Usage.AddUsage(j.Account, coreSeconds)
	s.Metrics.CoreSecondsUsed += coreSeconds
}

// cancelJob moves a job to Cancelled and finalizes it.
func (s *Simulator) cancelJob(j *Job, now int64, reason string) error {
	j.State = StateCancelled
	j.FailReason = reason
	j.EndTime = now
	s.Metrics.Cancelled++
	return s.finalize(j)
}

// finalize freezes a terminal job into the realization.
func (s *Simulator) finalize(j *Job) error {
	if !j.State.Terminal() {
		return errors.Errorf("finalize called for job %d in state %s", j.ID, j.State)
	}
	if j.EndTime > 0 {
		s.Metrics.Turnaround.Update(j.EndTime - j.SubmitTime)
	}
	rec := realization.Record{
		JobID:      int64(j.ID),
		SubmitTime: j.SubmitTime,
		StartTime:  j.StartTime,
		EndTime:    j.EndTime,
		Nodes:      nodeNames(j.AssignedNodes),
		State:      string(j.State),
		FailReason: j.FailReason,
		Requeues:   j.RequeueCount,
	}
	return s.Recorder.Finalize(rec)
}

func nodeNames(ids []NodeID) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
