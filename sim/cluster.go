package sim

import (
	"slices"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// NodeState represents the lifecycle state of a node.
type NodeState string

const (
	NodeIdle      NodeState = "IDLE"
	NodeAllocated NodeState = "ALLOCATED"
	NodeDown      NodeState = "DOWN"
	NodeDraining  NodeState = "DRAINING"
)

// Node is a single compute node, owned by the Cluster.
// Invariant: the sum of shares reserved by running jobs never exceeds
// Capacity. A Down or Draining node accepts no new allocation.
type Node struct {
	ID        NodeID
	Partition string
	Capacity  Resources
	State     NodeState

	alloc   Resources
	running map[JobID]Resources
}

// NodeID identifies a node within the cluster.
type NodeID string

// NewNode creates an idle node with the given capacity.
func NewNode(id NodeID, partition string, capacity Resources) *Node {
	return &Node{
		ID:        id,
		Partition: partition,
		Capacity:  capacity,
		State:     NodeIdle,
		running:   make(map[JobID]Resources),
	}
}

// Free returns the unreserved share of the node's capacity.
func (n *Node) Free() Resources {
	return n.Capacity.Sub(n.alloc)
}

// Allocated returns the currently reserved share.
func (n *Node) Allocated() Resources {
	return n.alloc
}

// JobCount returns the number of jobs holding a share of this node.
func (n *Node) JobCount() int {
	return len(n.running)
}

// schedulable reports whether new jobs may be placed on the node.
func (n *Node) schedulable() bool {
	return n.State == NodeIdle || n.State == NodeAllocated
}

// Cluster is the resource model: the full set of nodes with their capacity
// and state. All allocation and release goes through its operations; nothing
// else mutates node state.
type Cluster struct {
	nodes []*Node // stable order, fixed at construction
	byID  map[NodeID]*Node
}

// NewCluster builds a cluster from an ordered node list. Node order is
// load-bearing: candidate selection iterates it, so it must be identical
// across replicas.
func NewCluster(nodes []*Node) (*Cluster, error) {
	c := &Cluster{
		nodes: nodes,
		byID:  make(map[NodeID]*Node, len(nodes)),
	}
	for _, n := range nodes {
		if _, exists := c.byID[n.ID]; exists {
			return nil, errors.Errorf("duplicate node id %q", n.ID)
		}
		if n.running == nil {
			n.running = make(map[JobID]Resources)
		}
		c.byID[n.ID] = n
	}
	return c, nil
}

// Nodes returns the cluster's nodes in their stable order.
func (c *Cluster) Nodes() []*Node {
	return c.nodes
}

// Node returns the node with the given id, or nil.
func (c *Cluster) Node(id NodeID) *Node {
	return c.byID[id]
}

// TotalCapacity sums capacity across all nodes, Down or not.
func (c *Cluster) TotalCapacity() Resources {
	var total Resources
	for _, n := range c.nodes {
		total = total.Add(n.Capacity)
	}
	return total
}

// CanEverRun reports whether the job's request is structurally satisfiable:
// enough nodes exist in its partition whose full capacity covers the
// per-node share. Down nodes count, since they may come back up.
func (c *Cluster) CanEverRun(j *Job) bool {
	fitting := 0
	for _, n := range c.nodes {
		if j.Partition != "" && n.Partition != j.Partition {
			continue
		}
		if j.PerNode.FitsIn(n.Capacity) {
			fitting++
		}
	}
	return fitting >= j.NodeCount
}

// TryAllocate checks capacity and state invariants for the candidate node
// set and either commits the allocation atomically or returns
// ErrInsufficientResources leaving all state unchanged.
func (c *Cluster) TryAllocate(j *Job, candidates []NodeID) error {
	if len(candidates) != j.NodeCount {
		return errors.Wrapf(ErrInsufficientResources,
			"job %d wants %d nodes, offered %d", j.ID, j.NodeCount, len(candidates))
	}

	// Validate everything before touching state: all-or-nothing.
	picked := make([]*Node, 0, len(candidates))
	seen := make(map[NodeID]bool, len(candidates))
	for _, id := range candidates {
		n := c.byID[id]
		if n == nil {
			return errors.Wrapf(ErrInsufficientResources, "job %d: unknown node %q", j.ID, id)
		}
		if seen[id] {
			return errors.Wrapf(ErrInsufficientResources, "job %d: node %q offered twice", j.ID, id)
		}
		seen[id] = true
		if !n.schedulable() {
			return errors.Wrapf(ErrInsufficientResources, "job %d: node %q is %s", j.ID, id, n.State)
		}
		if !j.PerNode.FitsIn(n.Free()) {
			return errors.Wrapf(ErrInsufficientResources, "job %d: node %q lacks capacity", j.ID, id)
		}
		picked = append(picked, n)
	}

	for _, n := range picked {
		n.alloc = n.alloc.Add(j.PerNode)
		n.running[j.ID] = j.PerNode
		n.State = NodeAllocated
	}
	return nil
}

// Release returns the job's reserved shares to its assigned nodes. A node
// transitions back to Idle only when no other job holds a share of it.
func (c *Cluster) Release(j *Job) {
	for _, id := range j.AssignedNodes {
		n := c.byID[id]
		if n == nil {
			continue
		}
		share, held := n.running[j.ID]
		if !held {
			continue
		}
		n.alloc = n.alloc.Sub(share)
		delete(n.running, j.ID)
		if len(n.running) == 0 && n.State == NodeAllocated {
			n.State = NodeIdle
		}
	}
}

// MarkDown transitions a node to Down and returns the ids of jobs that held
// a share of it, in ascending job id order. The caller decides their fate
// (fail or requeue) and must release them.
func (c *Cluster) MarkDown(id NodeID) []JobID {
	n := c.byID[id]
	if n == nil {
		return nil
	}
	n.State = NodeDown
	affected := make([]JobID, 0, len(n.running))
	for jid := range n.running {
		affected = append(affected, jid)
	}
	slices.Sort(affected)
	logrus.Debugf("node %s marked down, %d jobs affected", id, len(affected))
	return affected
}

// MarkUp returns a Down node to service. If jobs still hold shares (the
// caller chose not to evict them) the node resumes as Allocated.
func (c *Cluster) MarkUp(id NodeID) {
	n := c.byID[id]
	if n == nil || n.State != NodeDown {
		return
	}
	if len(n.running) > 0 {
		n.State = NodeAllocated
	} else {
		n.State = NodeIdle
	}
}

// Drain marks a node Draining: running jobs finish, no new allocation.
func (c *Cluster) Drain(id NodeID) {
	n := c.byID[id]
	if n == nil {
		return
	}
	n.State = NodeDraining
}
