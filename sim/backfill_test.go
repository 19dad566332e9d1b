package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoNodes() []*Node {
	return []*Node{
		NewNode("cn01", "", Resources{Cores: 16, MemoryMB: 64000}),
		NewNode("cn02", "", Resources{Cores: 16, MemoryMB: 64000}),
	}
}

// Three-job shape: j1 occupies one node for an hour, j2 wants both nodes
// and blocks, j3 fits in the hole next to j1.
func backfillJobs() (j1, j2, j3 *Job) {
	j1 = mkJob(1, 0, 1, 16, 3600)
	j2 = mkJob(2, 10, 2, 16, 1000)
	j3 = mkJob(3, 20, 1, 16, 1000)
	return
}

func TestBackfill_ShortJobStartsAroundReservation(t *testing.T) {
	// GIVEN a blocked two-node job holding a reservation at 3600
	s, _ := newTestSim(t, DefaultPolicyConfig(), twoNodes())
	j1, j2, j3 := backfillJobs()
	for _, j := range []*Job{j1, j2, j3} {
		require.NoError(t, s.SubmitJob(j))
	}

	require.NoError(t, s.Run())

	// THEN j3 backfills immediately and j2 still starts at its reservation
	assert.Equal(t, int64(20), j3.StartTime)
	assert.Equal(t, int64(3600), j2.StartTime)
	assert.Equal(t, int64(1), s.Metrics.Backfilled)
	assert.Equal(t, StateCompleted, j2.State)
	assert.Equal(t, StateCompleted, j3.State)
}

func TestBackfill_Disabled_ShortJobWaitsBehindBlocked(t *testing.T) {
	cfg := DefaultPolicyConfig()
	cfg.Backfill = false
	s, _ := newTestSim(t, cfg, twoNodes())
	j1, j2, j3 := backfillJobs()
	for _, j := range []*Job{j1, j2, j3} {
		require.NoError(t, s.SubmitJob(j))
	}

	require.NoError(t, s.Run())

	// j3 cannot jump the queue: it waits for j2's two-node run to finish.
	assert.Equal(t, int64(3600), j2.StartTime)
	assert.Equal(t, int64(4600), j3.StartTime)
	assert.Equal(t, int64(0), s.Metrics.Backfilled)
}

func TestBackfill_CandidateThatWouldDelayReservation_Skipped(t *testing.T) {
	// GIVEN a backfill candidate running past the reserved start on a
	// reserved node
	s, _ := newTestSim(t, DefaultPolicyConfig(), twoNodes())
	j1 := mkJob(1, 0, 1, 16, 3600)
	j2 := mkJob(2, 10, 2, 16, 1000)
	j3 := mkJob(3, 20, 1, 16, 5000)
	for _, j := range []*Job{j1, j2, j3} {
		require.NoError(t, s.SubmitJob(j))
	}

	require.NoError(t, s.Run())

	// THEN it is held back and the reservation is honored
	assert.Equal(t, int64(3600), j2.StartTime)
	assert.Equal(t, int64(4600), j3.StartTime)
	assert.Equal(t, int64(0), s.Metrics.Backfilled)
}

func TestRunPass_NoFinitePlan_HoldsLowerPriorityJobs(t *testing.T) {
	// GIVEN cn01 down until t=100, a high-QOS two-node job that cannot be
	// planned while it is down, and a long low-QOS job behind it
	s, _ := newTestSim(t, DefaultPolicyConfig(), twoNodes())
	require.NoError(t, s.ScheduleNodeDown(0, "cn01", 100))
	j1 := mkJob(1, 10, 2, 16, 500)
	j1.QOS = "high"
	j2 := mkJob(2, 10, 1, 16, 10000)
	j2.QOS = "low"
	require.NoError(t, s.SubmitJob(j1))
	require.NoError(t, s.SubmitJob(j2))

	require.NoError(t, s.Run())

	// THEN the long job cannot start unchecked and delay the blocked one:
	// j1 starts the moment the node recovers, j2 waits behind it
	assert.Equal(t, int64(100), j1.StartTime)
	assert.Equal(t, int64(600), j2.StartTime)
	assert.Equal(t, int64(0), s.Metrics.Backfilled)
}

func TestComputeReservation_UsesDeclaredReleaseTimes(t *testing.T) {
	// GIVEN one node fully occupied until 3600
	s, _ := newTestSim(t, DefaultPolicyConfig(), oneNode())
	occ := mkJob(1, 0, 1, 16, 3600)
	occ.State = StateRunning
	occ.StartTime = 0
	occ.AssignedNodes = []NodeID{"cn01"}
	require.NoError(t, s.Jobs.Add(occ))
	require.NoError(t, s.Cluster.TryAllocate(occ, []NodeID{"cn01"}))

	blocked := mkJob(2, 10, 1, 16, 100)

	resv := computeReservation(s, blocked, 10)
	require.NotNil(t, resv)
	assert.Equal(t, int64(3600), resv.Start)
	assert.True(t, resv.Nodes["cn01"])
}

func TestComputeReservation_NilWhileNodesDown(t *testing.T) {
	s, _ := newTestSim(t, DefaultPolicyConfig(), oneNode())
	s.Cluster.MarkDown("cn01")

	blocked := mkJob(1, 0, 1, 16, 100)
	assert.Nil(t, computeReservation(s, blocked, 0))
}

func TestReservation_Intersects(t *testing.T) {
	r := &Reservation{JobID: 1, Start: 100, Nodes: map[NodeID]bool{"cn01": true}}
	assert.True(t, r.Intersects([]NodeID{"cn02", "cn01"}))
	assert.False(t, r.Intersects([]NodeID{"cn02"}))

	var nilResv *Reservation
	assert.False(t, nilResv.Intersects([]NodeID{"cn01"}))
}
