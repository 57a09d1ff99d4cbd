// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"golang.org/x/perfport/aggregate"
	"golang.org/x/perfport/trial"
)

// Column names of the delimited formats.
const (
	colError       = "error"
	colDuration    = "duration"
	colCellsPerSec = "cellspersec"
	colThroughput  = "throughput"
	colGPU         = "gpu"

	colGlobalSize = "global_size"
	colKernel     = "kernel"
	colHardware   = "hardware"
)

// AggregateColumns is the header of the aggregate table, in order.
var AggregateColumns = []string{
	colGlobalSize, colKernel, colHardware, colGPU,
	"error_mean", "error_std",
	"runtime_mean", "runtime_std",
	"cellspersec_mean", "cellspersec_std",
	"throughput_mean", "throughput_std",
}

// table reads a delimited file with a header row and gives access to
// fields by column name.
type table struct {
	r    *csv.Reader
	name string
	cols map[string]int
	row  []string
}

func newTable(r io.Reader, name string, comma rune, required ...string) (*table, error) {
	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true
	t := &table{r: cr, name: name}

	hdr, err := cr.Read()
	if err == io.EOF {
		return nil, &SyntaxError{name, 1, "missing header"}
	} else if err != nil {
		return nil, t.wrap(err)
	}
	t.cols = make(map[string]int, len(hdr))
	for i, h := range hdr {
		t.cols[strings.TrimSpace(h)] = i
	}
	for _, c := range required {
		if !t.has(c) {
			return nil, &SyntaxError{name, 1, fmt.Sprintf("missing column %q", c)}
		}
	}
	return t, nil
}

// wrap converts csv parse errors into SyntaxErrors.
func (t *table) wrap(err error) error {
	var pErr *csv.ParseError
	if errors.As(err, &pErr) {
		return &SyntaxError{t.name, pErr.Line, pErr.Err.Error()}
	}
	return fmt.Errorf("%s: %w", t.name, err)
}

// next advances to the next row and reports whether there is one.
func (t *table) next() (bool, error) {
	row, err := t.r.Read()
	if err == io.EOF {
		return false, nil
	} else if err != nil {
		return false, t.wrap(err)
	}
	t.row = row
	return true, nil
}

func (t *table) line() int {
	line, _ := t.r.FieldPos(0)
	return line
}

func (t *table) errorf(format string, args ...interface{}) error {
	return &SyntaxError{t.name, t.line(), fmt.Sprintf(format, args...)}
}

func (t *table) has(col string) bool {
	_, ok := t.cols[col]
	return ok
}

func (t *table) str(col string) string {
	i, ok := t.cols[col]
	if !ok || i >= len(t.row) {
		return ""
	}
	return strings.TrimSpace(t.row[i])
}

// float parses a numeric column. An empty field is NaN.
func (t *table) float(col string) (float64, error) {
	s := t.str(col)
	if s == "" {
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, t.errorf("parsing %s: %v", col, errors.Unwrap(err))
	}
	return v, nil
}

// bool parses a flag column written as 0/1 or true/false.
func (t *table) bool(col string) (bool, error) {
	s := t.str(col)
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f != 0, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, t.errorf("parsing %s: %q is not a flag", col, s)
	}
	return b, nil
}

func (t *table) stat(prefix string) (aggregate.Stat, error) {
	mean, err := t.float(prefix + "_mean")
	if err != nil {
		return aggregate.Stat{}, err
	}
	std, err := t.float(prefix + "_std")
	if err != nil {
		return aggregate.Stat{}, err
	}
	return aggregate.Stat{Mean: mean, StdDev: std}, nil
}

// ReadTrials reads a delimited trial log from r. Each row becomes
// one trial.Record of run, with the row index as its repetition. If
// the log has a gpu column it overrides run.GPU.
//
// name is used in error messages.
func ReadTrials(r io.Reader, name string, run Run) ([]trial.Record, error) {
	t, err := newTable(r, name, ';', colError, colDuration, colCellsPerSec, colThroughput)
	if err != nil {
		return nil, err
	}
	var out []trial.Record
	for {
		ok, err := t.next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		rec := trial.Record{
			Kernel:   run.Kernel,
			Hardware: run.Hardware,
			Size:     run.Size,
			UsesGPU:  run.GPU,
			Rep:      len(out),
		}
		for _, f := range []struct {
			col string
			dst *float64
		}{
			{colError, &rec.Error},
			{colDuration, &rec.Duration},
			{colCellsPerSec, &rec.CellsPerSec},
			{colThroughput, &rec.Throughput},
		} {
			if *f.dst, err = t.float(f.col); err != nil {
				return nil, err
			}
		}
		if t.has(colGPU) {
			if rec.UsesGPU, err = t.bool(colGPU); err != nil {
				return nil, err
			}
		}
		if err := rec.Validate(); err != nil {
			return nil, t.errorf("%v", err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// ReadAggregates reads an aggregate table as written by
// report.WriteAggregates. Empty standard deviations are NaN, as is an
// empty error mean, which Google Benchmark logs do not record. The
// runtime, cellspersec and throughput means are required. If the
// table has no hardware column, every result is attributed to
// hardware.
func ReadAggregates(r io.Reader, name, hardware string) ([]aggregate.Result, error) {
	required := append([]string{colGlobalSize, colKernel}, AggregateColumns[4:]...)
	t, err := newTable(r, name, ',', required...)
	if err != nil {
		return nil, err
	}
	var out []aggregate.Result
	for {
		ok, err := t.next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		res := aggregate.Result{Kernel: t.str(colKernel), Hardware: hardware}
		if t.has(colHardware) {
			res.Hardware = t.str(colHardware)
		}
		size, err := t.float(colGlobalSize)
		if err != nil {
			return nil, err
		}
		if math.IsNaN(size) || size < 0 || size != math.Trunc(size) {
			return nil, t.errorf("invalid global_size %q", t.str(colGlobalSize))
		}
		res.Size = int(size)
		if t.has(colGPU) {
			if res.UsesGPU, err = t.bool(colGPU); err != nil {
				return nil, err
			}
		}
		for _, s := range []struct {
			prefix   string
			dst      *aggregate.Stat
			required bool
		}{
			{"error", &res.Error, false},
			{"runtime", &res.Duration, true},
			{"cellspersec", &res.CellsPerSec, true},
			{"throughput", &res.Throughput, true},
		} {
			if *s.dst, err = t.stat(s.prefix); err != nil {
				return nil, err
			}
			if s.required && math.IsNaN(s.dst.Mean) {
				return nil, t.errorf("missing %s_mean", s.prefix)
			}
		}
		if res.Kernel == "" || res.Hardware == "" {
			return nil, t.errorf("missing kernel or hardware")
		}
		out = append(out, res)
	}
	return out, nil
}
