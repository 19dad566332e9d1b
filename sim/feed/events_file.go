package feed

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// EventsFile reads trace records from a line-oriented events file.
//
// Each non-blank, non-comment line is a sequence of key=value tokens:
//
//	dt=16 job=1001 user=alice account=chem qos=normal partition=compute \
//	nodes=2 cores=8 mem=4G walltime=01:00:00
//
// Required keys: dt, job, nodes, cores, walltime. Optional: user, account,
// qos, partition, mem, gpus, nice.
//
// The reader fails closed: a malformed record stops the run with an error
// rather than being silently skipped, unless Lenient is set, in which case
// bad lines are logged and dropped.
type EventsFile struct {
	Path    string
	Lenient bool

	rc      io.ReadCloser
	scanner *bufio.Scanner
	line    int
}

var _ Source = (*EventsFile)(nil)

// NewEventsFile creates a reader for the given path. The file is opened on
// the first Next call; Reset reopens it, making the source restartable.
func NewEventsFile(path string, lenient bool) *EventsFile {
	return &EventsFile{Path: path, Lenient: lenient}
}

// Reset closes any open handle so the next read starts from the beginning.
func (ef *EventsFile) Reset() error {
	if ef.rc != nil {
		if err := ef.rc.Close(); err != nil {
			return errors.Wrapf(err, "closing %s", ef.Path)
		}
		ef.rc = nil
		ef.scanner = nil
		ef.line = 0
	}
	return nil
}

// Next returns the next record in file order, or io.EOF after the last.
func (ef *EventsFile) Next() (*Record, error) {
	if ef.scanner == nil {
		rc, err := Open(ef.Path)
		if err != nil {
			return nil, err
		}
		ef.rc = rc
		ef.scanner = bufio.NewScanner(rc)
	}

	for ef.scanner.Scan() {
		ef.line++
		text := strings.TrimSpace(ef.scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		rec, err := parseLine(text)
		if err != nil {
			if ef.Lenient {
				logrus.Warnf("%s:%d: skipping malformed record: %v", ef.Path, ef.line, err)
				continue
			}
			return nil, errors.Wrapf(err, "%s:%d", ef.Path, ef.line)
		}
		return rec, nil
	}
	if err := ef.scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "reading %s", ef.Path)
	}
	return nil, io.EOF
}

func parseLine(text string) (*Record, error) {
	rec := &Record{NodeCount: 1, CoresPerNode: 1, QOS: "normal"}
	seen := make(map[string]bool)
	memPerCPU := false

	for _, tok := range strings.Fields(text) {
		key, val, ok := strings.Cut(tok, "=")
		if !ok {
			return nil, errors.Errorf("token %q is not key=value", tok)
		}
		seen[key] = true

		var err error
		switch key {
		case "dt":
			rec.SubmitOffset, err = strconv.ParseInt(val, 10, 64)
		case "job":
			rec.JobID, err = strconv.ParseInt(val, 10, 64)
		case "user":
			rec.User = val
		case "account":
			rec.Account = val
		case "qos":
			rec.QOS = val
		case "partition":
			rec.Partition = val
		case "nodes":
			rec.NodeCount, err = strconv.Atoi(val)
		case "cores":
			rec.CoresPerNode, err = strconv.ParseInt(val, 10, 64)
		case "gpus":
			rec.GPUs, err = strconv.ParseInt(val, 10, 64)
		case "nice":
			rec.Nice, err = strconv.ParseInt(val, 10, 64)
		case "mem":
			rec.MemoryMB, memPerCPU, err = ParseSize(val)
		case "walltime":
			rec.WallTime, err = ParseDuration(val)
		default:
			return nil, errors.Errorf("unknown key %q", key)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "key %q", key)
		}
	}

	for _, req := range []string{"dt", "job", "nodes", "cores", "walltime"} {
		if !seen[req] {
			return nil, errors.Errorf("missing required key %q", req)
		}
	}
	if rec.SubmitOffset < 0 {
		return nil, errors.New("dt must be non-negative")
	}
	if rec.NodeCount < 1 || rec.CoresPerNode < 1 {
		return nil, errors.New("nodes and cores must be at least 1")
	}
	if rec.WallTime < 1 {
		return nil, errors.New("walltime must be at least one second")
	}
	// Per-CPU memory ("4Gc") scales by the core count, whatever the token
	// order on the line was.
	if memPerCPU {
		rec.MemoryMB *= rec.CoresPerNode
	}
	return rec, nil
}
