package sim

import "sort"

// Reservation is the earliest-start estimate held for the highest-priority
// job that cannot currently be placed. Backfill candidates are validated
// against it: they may start only if they finish before Start or avoid
// Nodes entirely.
type Reservation struct {
	JobID JobID
	Start int64
	Nodes map[NodeID]bool
}

// Intersects reports whether any of the given nodes is reserved.
func (r *Reservation) Intersects(nodes []NodeID) bool {
	if r == nil {
		return false
	}
	for _, id := range nodes {
		if r.Nodes[id] {
			return true
		}
	}
	return false
}

// plannedRelease is a future capacity return used for reservation planning.
// Release times use declared wall-time limits, not sampled runtimes: the
// scheduler plans against what jobs are entitled to, and early completions
// only move the real start earlier.
type plannedRelease struct {
	at    int64
	jobID JobID
	nodes []NodeID
	share Resources
}

// computeReservation walks occupying jobs' declared release times in order
// and returns the first instant at which the blocked job fits, together
// with the node set it would take. Returns nil when no finite plan exists
// (only possible while nodes are down, since structurally unsatisfiable
// jobs were cancelled at submission); callers treat nil conservatively and
// do not backfill.
func computeReservation(s *Simulator, j *Job, now int64) *Reservation {
	// Hypothetical free share per schedulable node, starting from the
	// present allocation state.
	free := make(map[NodeID]Resources)
	for _, n := range s.Cluster.Nodes() {
		if n.schedulable() {
			free[n.ID] = n.Free()
		}
	}

	releases := make([]plannedRelease, 0)
	for _, occ := range s.Jobs.occupying() {
		releases = append(releases, plannedRelease{
			at:    occ.StartTime + occ.WallTimeLimit,
			jobID: occ.ID,
			nodes: occ.AssignedNodes,
			share: occ.PerNode,
		})
	}
	sort.Slice(releases, func(i, k int) bool {
		if releases[i].at != releases[k].at {
			return releases[i].at < releases[k].at
		}
		return releases[i].jobID < releases[k].jobID
	})

	tryFit := func(at int64) *Reservation {
		nodes := selectFrom(s.Cluster, j, func(n *Node) (Resources, bool) {
			f, ok := free[n.ID]
			return f, ok
		})
		if nodes == nil {
			return nil
		}
		set := make(map[NodeID]bool, len(nodes))
		for _, id := range nodes {
			set[id] = true
		}
		return &Reservation{JobID: j.ID, Start: at, Nodes: set}
	}

	if r := tryFit(now); r != nil {
		return r
	}
	for _, rel := range releases {
		for _, id := range rel.nodes {
			if f, ok := free[id]; ok {
				free[id] = f.Add(rel.share)
			}
		}
		if r := tryFit(rel.at); r != nil {
			return r
		}
	}
	return nil
}
