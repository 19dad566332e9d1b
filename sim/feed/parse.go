// Package feed converts an ordered external trace of job submissions into
// submission events. It is agnostic to on-disk encoding: the simulator sees
// an abstract record source, and the events-file reader here is one
// implementation of it.
package feed

import (
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Slurm wall-time formats: "minutes", "minutes:seconds",
// "hours:minutes:seconds", "days-hours", "days-hours:minutes" and
// "days-hours:minutes:seconds".
var durationPatterns = []struct {
	re    *regexp.Regexp
	build func(m []string) int64
}{
	{regexp.MustCompile(`^(\d+)-(\d+):(\d+):(\d+)$`), func(m []string) int64 {
		return atoi(m[1])*86400 + atoi(m[2])*3600 + atoi(m[3])*60 + atoi(m[4])
	}},
	{regexp.MustCompile(`^(\d+)-(\d+):(\d+)$`), func(m []string) int64 {
		return atoi(m[1])*86400 + atoi(m[2])*3600 + atoi(m[3])*60
	}},
	{regexp.MustCompile(`^(\d+)-(\d+)$`), func(m []string) int64 {
		return atoi(m[1])*86400 + atoi(m[2])*3600
	}},
	{regexp.MustCompile(`^(\d+):(\d+):(\d+)$`), func(m []string) int64 {
		return atoi(m[1])*3600 + atoi(m[2])*60 + atoi(m[3])
	}},
	{regexp.MustCompile(`^(\d+):(\d+)$`), func(m []string) int64 {
		return atoi(m[1])*60 + atoi(m[2])
	}},
	{regexp.MustCompile(`^(\d+)$`), func(m []string) int64 {
		return atoi(m[1]) * 60
	}},
}

func atoi(s string) int64 {
	v, _ := strconv.ParseInt(s, 10, 64)
	return v
}

// ParseDuration converts a Slurm wall-time string to seconds.
func ParseDuration(s string) (int64, error) {
	s = strings.TrimSpace(s)
	for _, p := range durationPatterns {
		if m := p.re.FindStringSubmatch(s); m != nil {
			return p.build(m), nil
		}
	}
	return 0, errors.Errorf("unknown duration format %q", s)
}

// siSuffixes uses binary multipliers, matching how memory sizes are
// declared. Values are in units of MB.
var siSuffixes = map[string]float64{
	"":  1,
	"k": 1.0 / 1024, "K": 1.0 / 1024,
	"m": 1, "M": 1,
	"g": 1024, "G": 1024,
	"t": 1024 * 1024, "T": 1024 * 1024,
}

var sizeRe = regexp.MustCompile(`^([0-9.]+) ?([kmgtKMGT]?)([cnCN]?)$`)

// ParseSize converts a memory string like "4G", "512M", or "1.5Gn" to MB.
// A bare number is MB. A trailing "n" means per node (the default), "c"
// means per CPU; perCPU reports which was given.
func ParseSize(s string) (mb int64, perCPU bool, err error) {
	m := sizeRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, false, errors.Errorf("unknown size format %q", s)
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false, errors.Wrapf(err, "size %q", s)
	}
	mb = int64(v*siSuffixes[m[2]] + 0.5)
	perCPU = m[3] == "c" || m[3] == "C"
	return mb, perCPU, nil
}

// Open opens an events file, decompressing transparently by extension.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening events file %s", path)
	}
	if filepath.Ext(path) == ".gz" {
		zr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, errors.Wrapf(err, "reading gzip header of %s", path)
		}
		return &gzipReadCloser{zr: zr, f: f}, nil
	}
	return f, nil
}

type gzipReadCloser struct {
	zr *gzip.Reader
	f  *os.File
}

func (g *gzipReadCloser) Read(p []byte) (int, error) {
	return g.zr.Read(p)
}

func (g *gzipReadCloser) Close() error {
	if err := g.zr.Close(); err != nil {
		g.f.Close()
		return err
	}
	return g.f.Close()
}
