package feed

// Record is one canonical trace record: a job submission with its request
// and priority inputs. Submit offsets are relative to the trace start; the
// feed shifts them by dtstart.
type Record struct {
	JobID        int64
	SubmitOffset int64

	User      string
	Account   string
	QOS       string
	Partition string
	Nice      int64

	NodeCount    int
	CoresPerNode int64
	MemoryMB     int64
	GPUs         int64
	WallTime     int64
}

// Source yields trace records in original file order. Next returns io.EOF
// after the last record. Implementations must preserve record order even
// when submit offsets collide: downstream priority computation depends on
// apparent arrival order. Reset rewinds the source to the first record so
// the same trace can feed several replicas.
type Source interface {
	Next() (*Record, error)
	Reset() error
}
