package sim

import (
	"bytes"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slurmsim/slurmsim/sim/realization"
)

// newTestSim wires a simulator over a fresh cluster with an in-memory
// recorder, returning the buffer so tests can inspect the realization.
func newTestSim(t *testing.T, cfg *PolicyConfig, nodes []*Node) (*Simulator, *bytes.Buffer) {
	t.Helper()
	cluster, err := NewCluster(nodes)
	require.NoError(t, err)

	var buf bytes.Buffer
	rec, err := realization.NewRecorder(&buf, realization.Header{RunID: "test", Seed: 7})
	require.NoError(t, err)

	rng := NewPartitionedRNG(ReplicaKey{BaseSeed: 7})
	return NewSimulator(cfg, cluster, rng, rec), &buf
}

func mkJob(id JobID, submit int64, nodeCount int, cores int64, wall int64) *Job {
	return &Job{
		ID:            id,
		Account:       "acct",
		QOS:           "normal",
		NodeCount:     nodeCount,
		PerNode:       Resources{Cores: cores, MemoryMB: 1000},
		WallTimeLimit: wall,
		SubmitTime:    submit,
	}
}

func oneNode() []*Node {
	return []*Node{NewNode("cn01", "", Resources{Cores: 16, MemoryMB: 64000})}
}

func TestSimulator_SequentialFullClusterJobs(t *testing.T) {
	// GIVEN a one-node cluster and two full-capacity jobs ten seconds apart
	s, _ := newTestSim(t, DefaultPolicyConfig(), oneNode())
	j1 := mkJob(1, 0, 1, 16, 3600)
	j2 := mkJob(2, 10, 1, 16, 3600)
	require.NoError(t, s.SubmitJob(j1))
	require.NoError(t, s.SubmitJob(j2))

	require.NoError(t, s.Run())

	// THEN the second starts exactly when the first releases the node
	assert.Equal(t, StateCompleted, j1.State)
	assert.Equal(t, int64(0), j1.StartTime)
	assert.Equal(t, int64(3600), j1.EndTime)
	assert.Equal(t, StateCompleted, j2.State)
	assert.Equal(t, int64(3600), j2.StartTime)
	assert.Equal(t, int64(7200), j2.EndTime)

	assert.Equal(t, int64(2), s.Metrics.Submitted)
	assert.Equal(t, int64(2), s.Metrics.Completed)
	assert.Equal(t, 2, s.Recorder.Count())
}

func TestSimulator_ShareableNode_RunsJobsConcurrently(t *testing.T) {
	s, _ := newTestSim(t, DefaultPolicyConfig(), oneNode())
	j1 := mkJob(1, 0, 1, 8, 1000)
	j2 := mkJob(2, 0, 1, 8, 1000)
	require.NoError(t, s.SubmitJob(j1))
	require.NoError(t, s.SubmitJob(j2))

	require.NoError(t, s.Run())

	assert.Equal(t, int64(0), j1.StartTime)
	assert.Equal(t, int64(0), j2.StartTime)
	assert.Equal(t, int64(1000), j1.EndTime)
	assert.Equal(t, int64(1000), j2.EndTime)
}

func TestSimulator_UnsatisfiableRequest_CancelledAtSubmission(t *testing.T) {
	s, _ := newTestSim(t, DefaultPolicyConfig(), oneNode())
	j := mkJob(1, 0, 4, 1, 100)
	require.NoError(t, s.SubmitJob(j))

	require.NoError(t, s.Run())

	assert.Equal(t, StateCancelled, j.State)
	assert.Equal(t, FailReasonUnsatisfiable, j.FailReason)
	assert.Equal(t, int64(1), s.Metrics.Cancelled)
	assert.Equal(t, 1, s.Recorder.Count())
}

func TestSimulator_Schedule_RejectsPastTimestamp(t *testing.T) {
	s, _ := newTestSim(t, DefaultPolicyConfig(), oneNode())
	s.Clock = 100

	err := s.Schedule(&SchedulingTickEvent{BaseEvent: s.newBaseEvent(50, KindSchedulingTick)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCausalityViolation))
}

func TestSimulator_Horizon_TruncatesInFlightJobs(t *testing.T) {
	// GIVEN a job whose completion falls past the horizon
	s, _ := newTestSim(t, DefaultPolicyConfig(), oneNode())
	s.Horizon = 1800
	j := mkJob(1, 0, 1, 16, 3600)
	require.NoError(t, s.SubmitJob(j))

	require.NoError(t, s.Run())

	// THEN it is recorded with the truncated marker, not dropped
	assert.Equal(t, StateRunning, j.State)
	assert.Equal(t, int64(1), s.Metrics.Truncated)
	assert.Equal(t, 1, s.Recorder.Count())
}

func TestSimulator_EventBudget_Truncates(t *testing.T) {
	s, _ := newTestSim(t, DefaultPolicyConfig(), oneNode())
	s.EventBudget = 1
	require.NoError(t, s.SubmitJob(mkJob(1, 0, 1, 16, 3600)))
	require.NoError(t, s.SubmitJob(mkJob(2, 10, 1, 16, 3600)))

	require.NoError(t, s.Run())

	// Only the first submission was processed before the budget hit.
	assert.Equal(t, int64(1), s.Metrics.Submitted)
	assert.Equal(t, int64(1), s.Metrics.Truncated)
}

func TestSimulator_WallTimeExceeded_FailsAtLimit(t *testing.T) {
	// GIVEN a runtime model that always overruns the declared limit
	cfg := DefaultPolicyConfig()
	cfg.Runtime = RuntimeConfig{Model: RuntimeUniform, MinFraction: 1.5, MaxFraction: 1.5}
	s, _ := newTestSim(t, cfg, oneNode())
	j := mkJob(1, 0, 1, 16, 1000)
	require.NoError(t, s.SubmitJob(j))

	require.NoError(t, s.Run())

	// THEN the job occupies exactly its limit and terminates as Failed
	assert.Equal(t, StateFailed, j.State)
	assert.Equal(t, FailReasonWallTimeExceeded, j.FailReason)
	assert.Equal(t, int64(1000), j.EndTime)
	assert.Equal(t, int64(1), s.Metrics.Failed)
}

func TestSimulator_NodeDown_FailPolicy(t *testing.T) {
	cfg := DefaultPolicyConfig()
	cfg.DownNodePolicy = DownNodeFail
	s, _ := newTestSim(t, cfg, oneNode())
	j := mkJob(1, 0, 1, 16, 3600)
	require.NoError(t, s.SubmitJob(j))
	require.NoError(t, s.ScheduleNodeDown(1000, "cn01", 0))

	require.NoError(t, s.Run())

	assert.Equal(t, StateFailed, j.State)
	assert.Equal(t, FailReasonNodeDown, j.FailReason)
	assert.Equal(t, int64(1000), j.EndTime)
	assert.Equal(t, NodeDown, s.Cluster.Node("cn01").State)
}

func TestSimulator_NodeDown_RequeuePolicy_RestartsAfterRecovery(t *testing.T) {
	// GIVEN a job interrupted by a 500s outage under the requeue policy
	cfg := DefaultPolicyConfig()
	cfg.DownNodePolicy = DownNodeRequeue
	s, _ := newTestSim(t, cfg, oneNode())
	j := mkJob(1, 0, 1, 16, 3600)
	require.NoError(t, s.SubmitJob(j))
	require.NoError(t, s.ScheduleNodeDown(1000, "cn01", 500))

	require.NoError(t, s.Run())

	// THEN it restarts from scratch when the node returns at 1500; the
	// completion scheduled for the first allocation is stale and ignored
	assert.Equal(t, StateCompleted, j.State)
	assert.Equal(t, int64(1500), j.StartTime)
	assert.Equal(t, int64(5100), j.EndTime)
	assert.Equal(t, 1, j.RequeueCount)
	assert.Equal(t, int64(1), s.Metrics.Requeues)
	assert.Equal(t, NodeIdle, s.Cluster.Node("cn01").State)

	// Two starts, one wait: the restart is not a separate wait sample.
	assert.Equal(t, int64(2), s.Metrics.Started)
	assert.Equal(t, int64(1), s.Metrics.WaitTime.Count())
}

func TestSimulator_QueueExhaustion_RecordsStrandedJobs(t *testing.T) {
	// GIVEN the only node going down for good before the job arrives
	s, _ := newTestSim(t, DefaultPolicyConfig(), oneNode())
	require.NoError(t, s.ScheduleNodeDown(0, "cn01", 0))
	j := mkJob(1, 10, 1, 16, 100)
	require.NoError(t, s.SubmitJob(j))

	require.NoError(t, s.Run())

	// THEN the run ends with the stranded job in the realization rather
	// than missing from it
	assert.Equal(t, StatePending, j.State)
	assert.Equal(t, int64(1), s.Metrics.Truncated)
	assert.Equal(t, 1, s.Recorder.Count())
}

func TestSimulator_DuplicateJobID_Fails(t *testing.T) {
	s, _ := newTestSim(t, DefaultPolicyConfig(), oneNode())
	require.NoError(t, s.SubmitJob(mkJob(1, 0, 1, 1, 100)))
	require.NoError(t, s.SubmitJob(mkJob(1, 5, 1, 1, 100)))

	require.Error(t, s.Run())
}
