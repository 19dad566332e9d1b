package sim

// PriorityPolicy computes a priority score for a job at a scheduling pass.
// Higher scores are scheduled first. Implementations MUST NOT modify the
// job — only the return value is used.
type PriorityPolicy interface {
	Compute(j *Job, clock int64) float64
}

// FIFOPriority orders jobs purely by arrival: every job scores 0 and the
// engine's lowest-job-id tie-break yields first-come-first-served.
type FIFOPriority struct{}

func (FIFOPriority) Compute(_ *Job, _ int64) float64 {
	return 0
}

// MultifactorPriority is the weighted-factor score: age since submission,
// fair-share account usage, QOS boost, and job size, minus the user-assigned
// nice value. Factors normalize to [0, 1] before weighting.
type MultifactorPriority struct {
	Weights    PriorityWeights
	QOSFactors map[string]float64
	Usage      *UsageTracker

	// ClusterCores normalizes the size factor; larger requests score higher,
	// favoring wide jobs that would otherwise starve.
	ClusterCores int64
}

// NewMultifactorPriority wires the multifactor policy from config.
func NewMultifactorPriority(cfg *PolicyConfig, usage *UsageTracker, cluster *Cluster) *MultifactorPriority {
	return &MultifactorPriority{
		Weights:      cfg.Priority,
		QOSFactors:   cfg.QOSFactors,
		Usage:        usage,
		ClusterCores: cluster.TotalCapacity().Cores,
	}
}

func (m *MultifactorPriority) Compute(j *Job, clock int64) float64 {
	ageFactor := 0.0
	if m.Weights.MaxAge > 0 {
		ageFactor = float64(j.Age(clock)) / float64(m.Weights.MaxAge)
		if ageFactor > 1 {
			ageFactor = 1
		}
	}

	shareFactor := 1.0
	if m.Usage != nil {
		shareFactor = m.Usage.Factor(j.Account)
	}

	qosFactor := m.QOSFactors[j.QOS]

	sizeFactor := 0.0
	if m.ClusterCores > 0 {
		sizeFactor = float64(j.TotalCores()) / float64(m.ClusterCores)
		if sizeFactor > 1 {
			sizeFactor = 1
		}
	}

	return m.Weights.Age*ageFactor +
		m.Weights.FairShare*shareFactor +
		m.Weights.QOS*qosFactor +
		m.Weights.Size*sizeFactor -
		float64(j.Nice)
}
