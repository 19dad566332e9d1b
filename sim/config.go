package sim

import (
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// Down-node handling for jobs whose allocation included a failed node.
const (
	DownNodeFail    = "fail"
	DownNodeRequeue = "requeue"
)

// Preemption modes for jobs evicted in favor of higher-priority work.
const (
	PreemptRequeue = "requeue"
	PreemptCancel  = "cancel"
)

// PriorityWeights are the multifactor priority weights. The score of a
// pending job is
//
//	weightAge*ageFactor + weightFairShare*shareFactor +
//	weightQOS*qosFactor + weightSize*sizeFactor - nice
//
// with each factor normalized to [0, 1].
type PriorityWeights struct {
	Age       float64 `yaml:"age"`
	FairShare float64 `yaml:"fair_share"`
	QOS       float64 `yaml:"qos"`
	Size      float64 `yaml:"size"`

	// MaxAge is the age (seconds) at which the age factor saturates at 1.
	MaxAge int64 `yaml:"max_age"`
}

// PreemptionConfig controls whether and how running jobs are evicted.
type PreemptionConfig struct {
	Enabled bool `yaml:"enabled"`
	// Threshold is the minimum priority-score gap between the pending job
	// and a running victim for preemption to be authorized.
	Threshold float64 `yaml:"threshold"`
	// Mode is "requeue" (victim returns to Pending, submit time preserved)
	// or "cancel".
	Mode string `yaml:"mode"`
}

// RuntimeConfig parameterizes the runtime sampling model.
type RuntimeConfig struct {
	Model       string  `yaml:"model"` // "declared" or "uniform"
	MinFraction float64 `yaml:"min_fraction"`
	MaxFraction float64 `yaml:"max_fraction"`
}

// PolicyConfig is the scheduling-policy tunables, loaded from YAML.
type PolicyConfig struct {
	// TickInterval is the periodic scheduling tick spacing in simulated
	// seconds. Passes also run opportunistically after submissions and
	// completions.
	TickInterval int64 `yaml:"tick_interval"`

	// Backfill enables starting lower-priority jobs around a blocked
	// higher-priority job when that provably does not delay its reservation.
	Backfill bool `yaml:"backfill"`

	Priority   PriorityWeights  `yaml:"priority"`
	Preemption PreemptionConfig `yaml:"preemption"`
	Runtime    RuntimeConfig    `yaml:"runtime"`

	// QOSFactors maps QOS names to factors in [0, 1]. Unknown QOS names
	// score 0.
	QOSFactors map[string]float64 `yaml:"qos_factors"`

	// DownNodePolicy is "fail" or "requeue".
	DownNodePolicy string `yaml:"down_node_policy"`

	// MaxRequeues bounds preemption/requeue cycling; exceeding it forces
	// Cancelled.
	MaxRequeues int `yaml:"max_requeues"`
}

// DefaultPolicyConfig returns the tunables used when no policy file is given.
func DefaultPolicyConfig() *PolicyConfig {
	return &PolicyConfig{
		TickInterval: 60,
		Backfill:     true,
		Priority: PriorityWeights{
			Age:       1000,
			FairShare: 2000,
			QOS:       1000,
			Size:      100,
			MaxAge:    7 * 24 * 3600,
		},
		Preemption: PreemptionConfig{
			Enabled:   false,
			Threshold: 1000,
			Mode:      PreemptRequeue,
		},
		Runtime: RuntimeConfig{
			Model: RuntimeDeclared,
		},
		QOSFactors: map[string]float64{
			"normal": 0.5,
			"high":   1.0,
			"low":    0.0,
		},
		DownNodePolicy: DownNodeFail,
		MaxRequeues:    3,
	}
}

// Validate checks the configuration, aggregating every violation.
func (c *PolicyConfig) Validate() error {
	var result *multierror.Error

	if c.TickInterval <= 0 {
		result = multierror.Append(result, errors.New("tick_interval must be positive"))
	}
	if c.Priority.MaxAge <= 0 {
		result = multierror.Append(result, errors.New("priority.max_age must be positive"))
	}
	switch c.Preemption.Mode {
	case "", PreemptRequeue, PreemptCancel:
	default:
		result = multierror.Append(result, errors.Errorf("preemption.mode %q not one of requeue, cancel", c.Preemption.Mode))
	}
	switch c.Runtime.Model {
	case "", RuntimeDeclared:
	case RuntimeUniform:
		if c.Runtime.MinFraction <= 0 {
			result = multierror.Append(result, errors.New("runtime.min_fraction must be positive"))
		}
		if c.Runtime.MaxFraction < c.Runtime.MinFraction {
			result = multierror.Append(result, errors.New("runtime.max_fraction must be >= runtime.min_fraction"))
		}
	default:
		result = multierror.Append(result, errors.Errorf("runtime.model %q not one of declared, uniform", c.Runtime.Model))
	}
	switch c.DownNodePolicy {
	case "", DownNodeFail, DownNodeRequeue:
	default:
		result = multierror.Append(result, errors.Errorf("down_node_policy %q not one of fail, requeue", c.DownNodePolicy))
	}
	if c.MaxRequeues < 0 {
		result = multierror.Append(result, errors.New("max_requeues must be non-negative"))
	}
	for qos, f := range c.QOSFactors {
		if f < 0 || f > 1 {
			result = multierror.Append(result, errors.Errorf("qos_factors[%s] = %v outside [0, 1]", qos, f))
		}
	}

	return result.ErrorOrNil()
}
