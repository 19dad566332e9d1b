package feed

import (
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/slurmsim/slurmsim/sim"
)

// Feed converts trace records into jobs with shifted submit times. The
// source's relative ordering is preserved exactly: equal submit times keep
// original record order via the simulator's insertion-sequence tie-break.
type Feed struct {
	src     Source
	dtstart int64
}

// New creates a feed over the given source. dtstart shifts every submit
// time by a fixed delta, enabling sliding-window replay of the same trace.
func New(src Source, dtstart int64) *Feed {
	return &Feed{src: src, dtstart: dtstart}
}

// Next returns the next job, or io.EOF after the last record.
func (f *Feed) Next() (*sim.Job, error) {
	rec, err := f.src.Next()
	if err != nil {
		return nil, err
	}
	return &sim.Job{
		ID:            sim.JobID(rec.JobID),
		User:          rec.User,
		Account:       rec.Account,
		QOS:           rec.QOS,
		Nice:          rec.Nice,
		Partition:     rec.Partition,
		NodeCount:     rec.NodeCount,
		PerNode:       sim.Resources{Cores: rec.CoresPerNode, MemoryMB: rec.MemoryMB, GPUs: rec.GPUs},
		WallTimeLimit: rec.WallTime,
		SubmitTime:    rec.SubmitOffset + f.dtstart,
	}, nil
}

// InjectAll drains the feed into the simulator's event queue and returns
// the number of submissions scheduled.
func (f *Feed) InjectAll(s *sim.Simulator) (int, error) {
	count := 0
	for {
		j, err := f.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return count, errors.Wrap(err, "reading workload feed")
		}
		if err := s.SubmitJob(j); err != nil {
			return count, errors.Wrapf(err, "scheduling submission of job %d", j.ID)
		}
		count++
	}
	logrus.Debugf("workload feed injected %d submissions (dtstart=%d)", count, f.dtstart)
	return count, nil
}
