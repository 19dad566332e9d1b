package sim

import (
	"sort"

	"github.com/sirupsen/logrus"
)

// tryPreempt attempts to free capacity for a blocked pending job by evicting
// lower-priority running jobs. Victims are taken lowest score first (ties:
// highest job id, so the youngest of equals goes). The eviction set is
// dry-run first: if even evicting every authorized victim would not let the
// blocked job fit (a needed node is Down, say), nothing is evicted and no
// running work is lost. Returns true if victims were evicted.
func (sch *Scheduler) tryPreempt(s *Simulator, blocked rankedJob) (bool, error) {
	now := s.Clock

	running := s.Jobs.Running()
	victims := make([]rankedJob, 0, len(running))
	for _, j := range running {
		victims = append(victims, rankedJob{job: j, score: sch.priority.Compute(j, now)})
	}
	sort.SliceStable(victims, func(i, k int) bool {
		if victims[i].score != victims[k].score {
			return victims[i].score < victims[k].score
		}
		return victims[i].job.ID > victims[k].job.ID
	})

	// Dry run: grow the eviction set one authorized victim at a time until
	// the blocked job would fit in the hypothetically freed capacity.
	freed := make(map[NodeID]Resources)
	var set []*Job
	fits := false
	for _, v := range victims {
		if !sch.authorizePreemption(blocked, v) {
			break // victims are sorted; no later one is authorized either
		}
		for _, id := range v.job.AssignedNodes {
			freed[id] = freed[id].Add(v.job.PerNode)
		}
		set = append(set, v.job)
		nodes := selectFrom(s.Cluster, blocked.job, func(n *Node) (Resources, bool) {
			return n.Free().Add(freed[n.ID]), n.schedulable()
		})
		if nodes != nil {
			fits = true
			break
		}
	}
	if !fits {
		return false, nil
	}

	for _, victim := range set {
		if err := sch.preempt(s, victim, now); err != nil {
			return false, err
		}
	}
	return true, nil
}

// authorizePreemption applies the configured threshold: the pending job's
// score must exceed the victim's by at least Threshold.
func (sch *Scheduler) authorizePreemption(pending, victim rankedJob) bool {
	return pending.score-victim.score >= sch.cfg.Preemption.Threshold
}

// preempt evicts one running job. The allocation epoch is bumped so the
// victim's in-flight completion event becomes stale. Depending on config the
// victim requeues (submit time preserved, requeue count incremented, bounded
// by max_requeues) or is cancelled.
func (sch *Scheduler) preempt(s *Simulator, victim *Job, now int64) error {
	logrus.Infof("preempting job %d at %d", victim.ID, now)

	victim.allocEpoch++
	s.Cluster.Release(victim)
	s.chargeUsage(victim, now)
	victim.AssignedNodes = nil
	s.Metrics.Preemptions++

	mode := sch.cfg.Preemption.Mode
	if mode == PreemptRequeue || mode == "" {
		victim.RequeueCount++
		if victim.RequeueCount > sch.cfg.MaxRequeues {
			return s.cancelJob(victim, now, FailReasonRequeueLimit)
		}
		victim.State = StatePending
		victim.StartTime = 0
		victim.EndTime = 0
		s.Metrics.Requeues++
		return nil
	}

	return s.cancelJob(victim, now, FailReasonPreempted)
}
