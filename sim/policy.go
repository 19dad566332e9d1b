package sim

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Scheduler is the scheduling policy engine. At each scheduling pass it
// orders pending jobs by priority, attempts allocation in that order, holds
// a reservation for the first blocked job, and backfills around it.
//
// The capability set (compute-priority, select-candidates,
// authorize-preemption) is pluggable; the pass driver itself is fixed.
type Scheduler struct {
	cfg      *PolicyConfig
	priority PriorityPolicy
	sampler  *RuntimeSampler
}

// NewScheduler builds the policy engine from config.
func NewScheduler(cfg *PolicyConfig, priority PriorityPolicy, sampler *RuntimeSampler) *Scheduler {
	return &Scheduler{
		cfg:      cfg,
		priority: priority,
		sampler:  sampler,
	}
}

// rankedJob pairs a job with its score for one pass. Scores are computed
// once per pass so sorting and preemption see a consistent snapshot.
type rankedJob struct {
	job   *Job
	score float64
}

// RunPass executes one scheduling pass at the current clock.
func (sch *Scheduler) RunPass(s *Simulator) error {
	pending := s.Jobs.Pending()
	if len(pending) == 0 {
		return nil
	}
	now := s.Clock

	ranked := make([]rankedJob, len(pending))
	for i, j := range pending {
		ranked[i] = rankedJob{job: j, score: sch.priority.Compute(j, now)}
	}
	// Descending score; ties broken by lowest job id first.
	sort.SliceStable(ranked, func(i, k int) bool {
		if ranked[i].score != ranked[k].score {
			return ranked[i].score > ranked[k].score
		}
		return ranked[i].job.ID < ranked[k].job.ID
	})

	var resv *Reservation
	for _, r := range ranked {
		j := r.job

		if resv == nil {
			nodes := selectCandidates(s.Cluster, j)
			if nodes == nil && sch.cfg.Preemption.Enabled {
				evicted, err := sch.tryPreempt(s, r)
				if err != nil {
					return err
				}
				if evicted {
					nodes = selectCandidates(s.Cluster, j)
				}
			}
			if nodes != nil {
				if err := sch.startJob(s, j, nodes, now); err != nil {
					return err
				}
				continue
			}

			// First blocked job: hold its earliest feasible start so
			// backfill cannot delay it. No finite plan (nodes down) means
			// no candidate can prove it is harmless, so the pass stops.
			resv = computeReservation(s, j, now)
			logrus.Debugf("job %d blocked, reservation %+v", j.ID, resv)
			if resv == nil || !sch.cfg.Backfill {
				break
			}
			continue
		}

		// Backfill candidate: may start only if it provably does not delay
		// the reservation — it finishes before the reserved start, or it
		// avoids the reserved nodes entirely.
		nodes := selectCandidates(s.Cluster, j)
		if nodes == nil {
			continue
		}
		if resv != nil && now+j.WallTimeLimit > resv.Start && resv.Intersects(nodes) {
			continue
		}
		if err := sch.startJob(s, j, nodes, now); err != nil {
			return err
		}
		s.Metrics.Backfilled++
	}
	return nil
}

// startJob commits the allocation and emits the Allocation event consumed at
// the same instant. Resources are reserved here so later candidates in the
// pass see them taken.
func (sch *Scheduler) startJob(s *Simulator, j *Job, nodes []NodeID, now int64) error {
	if err := s.Cluster.TryAllocate(j, nodes); err != nil {
		// selectCandidates found capacity moments ago; failing here is an
		// engine bug, not contention.
		return errors.Wrapf(err, "commit for job %d", j.ID)
	}
	occ, exceeded := sch.sampler.Sample(j)
	j.AssignedNodes = nodes
	j.StartTime = now
	return s.Schedule(&AllocationEvent{
		BaseEvent: s.newBaseEvent(now, KindAllocation),
		JobID:     j.ID,
		Nodes:     nodes,
		Occupancy: occ,
		Exceeded:  exceeded,
	})
}

// Score exposes the pass priority of a job, used by preemption authorization
// and tests.
func (sch *Scheduler) Score(j *Job, clock int64) float64 {
	return sch.priority.Compute(j, clock)
}

// selectCandidates picks nodes for the job in the cluster's stable node
// order (first-fit): schedulable nodes in the job's partition with enough
// free capacity for the per-node share. Returns nil if fewer than NodeCount
// qualify.
func selectCandidates(c *Cluster, j *Job) []NodeID {
	return selectFrom(c, j, func(n *Node) (Resources, bool) {
		return n.Free(), n.schedulable()
	})
}

// selectFrom is the shared candidate walk. The avail callback supplies the
// free share and eligibility per node, letting reservation planning run the
// same walk over a hypothetical future state.
func selectFrom(c *Cluster, j *Job, avail func(*Node) (Resources, bool)) []NodeID {
	var picked []NodeID
	for _, n := range c.Nodes() {
		if j.Partition != "" && n.Partition != j.Partition {
			continue
		}
		free, ok := avail(n)
		if !ok || !j.PerNode.FitsIn(free) {
			continue
		}
		picked = append(picked, n.ID)
		if len(picked) == j.NodeCount {
			return picked
		}
	}
	return nil
}
