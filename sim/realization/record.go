// Package realization records the output of a simulation run: the sequence
// of job start times, end times, and node assignments that resulted from
// applying a scheduling policy to a workload. It has no dependency on sim/
// — it stores pure data and owns the output stream.
package realization

// Header identifies a realization. One realization exists per
// (trace, dtstart, replica) combination; the run id is derived from the
// replica RNG so identical runs produce identical headers.
type Header struct {
	RunID   string `json:"run_id"`
	Trace   string `json:"trace"`
	Replica int    `json:"replica"`
	DtStart int64  `json:"dtstart"`
	Seed    int64  `json:"seed"`
}

// Record is one finalized job outcome. Records are immutable once written.
type Record struct {
	JobID      int64    `json:"job_id"`
	SubmitTime int64    `json:"submit_time"`
	StartTime  int64    `json:"start_time"`
	EndTime    int64    `json:"end_time"`
	Nodes      []string `json:"nodes"`
	State      string   `json:"state"`
	FailReason string   `json:"fail_reason,omitempty"`
	Requeues   int      `json:"requeues,omitempty"`

	// Truncated marks jobs still in flight when the run hit its horizon or
	// event budget; they are recorded rather than silently dropped.
	Truncated bool `json:"truncated,omitempty"`
}
