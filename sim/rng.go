package sim

import (
	"fmt"
	"hash/fnv"
	"math/rand"
)

// === ReplicaKey ===

// ReplicaKey uniquely identifies a reproducible simulation run.
// Two runs with the same ReplicaKey and identical configuration MUST produce
// byte-identical realizations. dtstart deliberately does not enter the key:
// sliding the trace window reuses the same random streams.
type ReplicaKey struct {
	BaseSeed int64
	Replica  int
}

// === Subsystem Constants ===

const (
	// SubsystemRuntime is the RNG subsystem for sampling actual job runtimes.
	SubsystemRuntime = "runtime"

	// SubsystemRunID is the RNG subsystem providing entropy for the run
	// identifier in the realization header.
	SubsystemRunID = "run_id"
)

// === PartitionedRNG ===

// PartitionedRNG provides deterministic, isolated RNG instances per
// subsystem.
//
// Derivation formula: baseSeed XOR fnv1a64("replica_<n>/<subsystem>"), so
// replicas of the same trace draw from independent streams while staying
// reproducible.
//
// Thread-safety: NOT thread-safe. Each Simulator owns its own instance and
// runs on a single goroutine; replicas running in parallel never share one.
type PartitionedRNG struct {
	key        ReplicaKey
	subsystems map[string]*rand.Rand
}

// NewPartitionedRNG creates a PartitionedRNG from a ReplicaKey.
func NewPartitionedRNG(key ReplicaKey) *PartitionedRNG {
	return &PartitionedRNG{
		key:        key,
		subsystems: make(map[string]*rand.Rand),
	}
}

// ForSubsystem returns a deterministically-seeded RNG for the named
// subsystem. The same subsystem name always returns the same *rand.Rand
// instance (cached). Never returns nil.
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	if rng, ok := p.subsystems[name]; ok {
		return rng
	}

	derivedSeed := p.key.BaseSeed ^ fnv1a64(fmt.Sprintf("replica_%d/%s", p.key.Replica, name))
	rng := rand.New(rand.NewSource(derivedSeed))
	p.subsystems[name] = rng
	return rng
}

// Key returns the ReplicaKey used to create this PartitionedRNG.
func (p *PartitionedRNG) Key() ReplicaKey {
	return p.key
}

// fnv1a64 computes a 64-bit FNV-1a hash of the input string.
func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}

// === RuntimeSampler ===

// RuntimeModel names how actual job runtimes relate to declared limits.
const (
	// RuntimeDeclared uses the declared wall-time limit verbatim.
	RuntimeDeclared = "declared"
	// RuntimeUniform samples a uniform fraction of the declared limit in
	// [MinFraction, MaxFraction]. A fraction above 1 models a job overrunning
	// its limit.
	RuntimeUniform = "uniform"
)

// RuntimeSampler draws actual runtimes for allocated jobs. It is the only
// randomness source affecting the realization, so the rest of the engine is
// a pure function of events and decisions.
type RuntimeSampler struct {
	cfg RuntimeConfig
	rng *rand.Rand
}

// NewRuntimeSampler builds a sampler over the runtime subsystem stream.
func NewRuntimeSampler(cfg RuntimeConfig, rng *PartitionedRNG) *RuntimeSampler {
	return &RuntimeSampler{
		cfg: cfg,
		rng: rng.ForSubsystem(SubsystemRuntime),
	}
}

// Sample returns the occupancy the job will hold its nodes for (capped at
// the declared limit) and whether the sampled runtime exceeded the limit.
// A job that exceeds its limit still consumes the full limit's worth of
// simulated occupancy before terminating as Failed.
func (rs *RuntimeSampler) Sample(j *Job) (occupancy int64, exceeded bool) {
	switch rs.cfg.Model {
	case "", RuntimeDeclared:
		return j.WallTimeLimit, false
	case RuntimeUniform:
		frac := rs.cfg.MinFraction + rs.rng.Float64()*(rs.cfg.MaxFraction-rs.cfg.MinFraction)
		actual := int64(frac * float64(j.WallTimeLimit))
		if actual < 1 {
			actual = 1
		}
		if actual > j.WallTimeLimit {
			return j.WallTimeLimit, true
		}
		return actual, false
	default:
		// Config validation rejects unknown models before a run starts.
		return j.WallTimeLimit, false
	}
}
