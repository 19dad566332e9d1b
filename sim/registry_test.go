package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobRegistry_RejectsDuplicateID(t *testing.T) {
	r := NewJobRegistry()
	require.NoError(t, r.Add(&Job{ID: 1}))
	require.Error(t, r.Add(&Job{ID: 1}))
	assert.Equal(t, 1, r.Len())
}

func TestJobRegistry_PendingPreservesSubmissionOrder(t *testing.T) {
	r := NewJobRegistry()
	for _, id := range []JobID{30, 10, 20} {
		require.NoError(t, r.Add(&Job{ID: id, State: StatePending}))
	}

	pending := r.Pending()
	require.Len(t, pending, 3)
	assert.Equal(t, JobID(30), pending[0].ID)
	assert.Equal(t, JobID(10), pending[1].ID)
	assert.Equal(t, JobID(20), pending[2].ID)
}

func TestJobRegistry_FiltersByState(t *testing.T) {
	r := NewJobRegistry()
	require.NoError(t, r.Add(&Job{ID: 1, State: StatePending}))
	require.NoError(t, r.Add(&Job{ID: 2, State: StateRunning}))
	require.NoError(t, r.Add(&Job{ID: 3, State: StateCompleted}))
	require.NoError(t, r.Add(&Job{ID: 4, State: StateFailed}))

	assert.Len(t, r.Pending(), 1)
	assert.Len(t, r.Running(), 1)
	assert.Len(t, r.NonTerminal(), 2)
}

func TestJobRegistry_OccupyingIncludesUnconsumedAllocations(t *testing.T) {
	// A job whose allocation was committed this instant holds nodes even
	// though its state flip is still queued.
	r := NewJobRegistry()
	require.NoError(t, r.Add(&Job{ID: 1, State: StatePending, AssignedNodes: []NodeID{"cn01"}}))
	require.NoError(t, r.Add(&Job{ID: 2, State: StateRunning, AssignedNodes: []NodeID{"cn02"}}))
	require.NoError(t, r.Add(&Job{ID: 3, State: StateCompleted, AssignedNodes: []NodeID{"cn03"}}))
	require.NoError(t, r.Add(&Job{ID: 4, State: StatePending}))

	occ := r.occupying()
	require.Len(t, occ, 2)
	assert.Equal(t, JobID(1), occ[0].ID)
	assert.Equal(t, JobID(2), occ[1].ID)
}

func TestResources_FitsIn(t *testing.T) {
	avail := Resources{Cores: 8, MemoryMB: 1000, GPUs: 1}
	assert.True(t, Resources{Cores: 8, MemoryMB: 1000, GPUs: 1}.FitsIn(avail))
	assert.True(t, Resources{Cores: 1}.FitsIn(avail))
	assert.False(t, Resources{Cores: 9}.FitsIn(avail))
	assert.False(t, Resources{MemoryMB: 1001}.FitsIn(avail))
	assert.False(t, Resources{GPUs: 2}.FitsIn(avail))
}

func TestJobState_Terminal(t *testing.T) {
	assert.False(t, StatePending.Terminal())
	assert.False(t, StateRunning.Terminal())
	assert.True(t, StateCompleted.Terminal())
	assert.True(t, StateFailed.Terminal())
	assert.True(t, StateCancelled.Terminal())
}
