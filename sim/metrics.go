package sim

import (
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/sirupsen/logrus"
)

// Metrics accumulates run-level counters and distributions. They are
// reported at the end of a run and are not part of the realization bytes.
type Metrics struct {
	Submitted   int64
	Started     int64
	Completed   int64
	Failed      int64
	Cancelled   int64
	Truncated   int64
	Backfilled  int64
	Preemptions int64
	Requeues    int64

	// WaitTime is first start - submit per job (a requeued job's restarts
	// are not separate waits); Turnaround is end - submit per terminal job.
	// Both in simulated seconds.
	WaitTime   gometrics.Histogram
	Turnaround gometrics.Histogram

	// CoreSecondsUsed accumulates occupancy for the utilization report.
	CoreSecondsUsed float64
}

// NewMetrics creates a metrics accumulator.
func NewMetrics() *Metrics {
	return &Metrics{
		WaitTime:   gometrics.NewHistogram(gometrics.NewUniformSample(4096)),
		Turnaround: gometrics.NewHistogram(gometrics.NewUniformSample(4096)),
	}
}

// Print reports the run's outcome via the configured logger.
func (m *Metrics) Print(cluster *Cluster, makespan int64) {
	logrus.Infof("jobs: submitted=%d started=%d completed=%d failed=%d cancelled=%d truncated=%d",
		m.Submitted, m.Started, m.Completed, m.Failed, m.Cancelled, m.Truncated)
	logrus.Infof("scheduling: backfilled=%d preemptions=%d requeues=%d",
		m.Backfilled, m.Preemptions, m.Requeues)
	logrus.Infof("wait time: mean=%.1fs p95=%.1fs max=%ds",
		m.WaitTime.Mean(), m.WaitTime.Percentile(0.95), m.WaitTime.Max())
	logrus.Infof("turnaround: mean=%.1fs p95=%.1fs max=%ds",
		m.Turnaround.Mean(), m.Turnaround.Percentile(0.95), m.Turnaround.Max())

	if makespan > 0 {
		available := float64(cluster.TotalCapacity().Cores) * float64(makespan)
		if available > 0 {
			logrus.Infof("core utilization: %.1f%% over %ds makespan",
				100*m.CoreSecondsUsed/available, makespan)
		}
	}
}
