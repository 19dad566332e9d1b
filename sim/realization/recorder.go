package realization

import (
	"bufio"
	"encoding/json"
	"io"

	"github.com/pkg/errors"
)

// ErrDuplicateFinalization indicates Finalize was called twice for one job
// id. This is a lifecycle bug (double-counting under preemption/requeue)
// and aborts the run.
var ErrDuplicateFinalization = errors.New("duplicate finalization")

// Recorder appends finalized job records to a JSONL stream. Output is
// flushed after every record so long runs can be inspected before they
// finish.
type Recorder struct {
	buf  *bufio.Writer
	enc  *json.Encoder
	c    io.Closer
	seen map[int64]bool
}

// NewRecorder writes the header line and returns a recorder over w. If w is
// also an io.Closer, Close closes it.
func NewRecorder(w io.Writer, header Header) (*Recorder, error) {
	buf := bufio.NewWriter(w)
	enc := json.NewEncoder(buf)
	if err := enc.Encode(header); err != nil {
		return nil, errors.Wrap(err, "writing realization header")
	}
	if err := buf.Flush(); err != nil {
		return nil, errors.Wrap(err, "flushing realization header")
	}
	r := &Recorder{
		buf:  buf,
		enc:  enc,
		seen: make(map[int64]bool),
	}
	if c, ok := w.(io.Closer); ok {
		r.c = c
	}
	return r, nil
}

// Finalize appends one immutable record. Called exactly once per terminal
// job transition; a second call for the same job id is rejected.
func (r *Recorder) Finalize(rec Record) error {
	if r.seen[rec.JobID] {
		return errors.Wrapf(ErrDuplicateFinalization, "job %d", rec.JobID)
	}
	r.seen[rec.JobID] = true
	if err := r.enc.Encode(rec); err != nil {
		return errors.Wrapf(err, "encoding record for job %d", rec.JobID)
	}
	return errors.Wrap(r.buf.Flush(), "flushing realization record")
}

// Count returns the number of finalized records.
func (r *Recorder) Count() int {
	return len(r.seen)
}

// Close flushes buffered output and closes the underlying writer when it is
// closable.
func (r *Recorder) Close() error {
	if err := r.buf.Flush(); err != nil {
		return errors.Wrap(err, "flushing realization")
	}
	if r.c != nil {
		return errors.Wrap(r.c.Close(), "closing realization")
	}
	return nil
}
