// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package loader

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
	"golang.org/x/perfport/aggregate"
	"golang.org/x/perfport/trial"
)

// A Format names the encoding of a set of input files.
type Format string

const (
	// Delimited is the semicolon-separated trial log.
	Delimited Format = "delimited"
	// GBench is the Google Benchmark JSON log.
	GBench Format = "gbench"
	// Aggregates is the aggregate table written by
	// report.WriteAggregates.
	Aggregates Format = "aggregate"
)

// ParseFormat returns the Format named s.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case Delimited, GBench, Aggregates:
		return f, nil
	case "":
		return Delimited, nil
	}
	return "", fmt.Errorf("unknown input format %q", s)
}

// A Batch is what a set of files yields. Delimited logs produce raw
// trials; the other formats are already aggregated.
type Batch struct {
	// Trials is never nil in a Batch returned by Files.Load.
	Trials  *trial.Store
	Results []aggregate.Result
}

// Merge adds the contents of o to b. The trials of o are validated
// again on the way in; on error b is unchanged.
func (b *Batch) Merge(o Batch) error {
	if o.Trials != nil && o.Trials.Len() > 0 {
		if b.Trials == nil {
			b.Trials = new(trial.Store)
		}
		if err := b.Trials.Add(o.Trials.All()...); err != nil {
			return err
		}
	}
	b.Results = append(b.Results, o.Results...)
	return nil
}

// NumTrials returns the number of trials in b.
func (b *Batch) NumTrials() int {
	if b.Trials == nil {
		return 0
	}
	return b.Trials.Len()
}

// Files reads benchmark logs of one format recorded on one hardware
// target.
//
// A path may be of the form label=path. For delimited logs the label
// is parsed as the run name in place of the file name, which allows
// logs that were renamed after the fact.
//
// A file that cannot be opened is logged and skipped; see Skipped.
// A file that can be opened but not parsed stops Load.
type Files struct {
	Hardware string
	Format   Format
	Paths    []string

	// KernelIDs and Magnitude configure GBench logs. See
	// GBenchOptions.
	KernelIDs KernelIDs
	Magnitude float64

	// Logger receives a warning for each skipped file. If nil,
	// the standard logrus logger is used.
	Logger logrus.FieldLogger

	skipped error
}

type input struct {
	path  string
	label string
}

func (f *Files) inputs() []input {
	out := make([]input, 0, len(f.Paths))
	for _, p := range f.Paths {
		label := p
		if i := strings.Index(p, "="); i >= 0 {
			label, p = p[:i], p[i+1:]
		}
		out = append(out, input{p, label})
	}
	return out
}

func (f *Files) logger() logrus.FieldLogger {
	if f.Logger == nil {
		return logrus.StandardLogger()
	}
	return f.Logger
}

// Load reads every file in f.Paths. Trials are added to the
// returned Batch's Store, which rejects the whole file if any of
// its records is invalid.
func (f *Files) Load() (Batch, error) {
	b := Batch{Trials: new(trial.Store)}
	f.skipped = nil
	if f.Hardware == "" && f.Format != Aggregates {
		return b, fmt.Errorf("loading %d files: no hardware given", len(f.Paths))
	}
	format := f.Format
	if format == "" {
		format = Delimited
	}
	log := f.logger().WithField("hardware", f.Hardware)
	for _, inp := range f.inputs() {
		file, err := os.Open(inp.path)
		if err != nil {
			log.WithField("path", inp.path).WithError(err).Warn("skipping unreadable input")
			f.skipped = multierr.Append(f.skipped, err)
			continue
		}
		trials, results, err := f.read(format, file, inp)
		file.Close()
		if err != nil {
			return Batch{}, err
		}
		if err := b.Trials.Add(trials...); err != nil {
			return Batch{}, fmt.Errorf("%s: %w", inp.path, err)
		}
		b.Results = append(b.Results, results...)
		log.WithField("path", inp.path).Debugf("read %d trials, %d results", len(trials), len(results))
	}
	return b, nil
}

func (f *Files) read(format Format, r io.Reader, inp input) ([]trial.Record, []aggregate.Result, error) {
	switch format {
	case Delimited:
		run, err := ParseRunName(inp.label)
		if err != nil {
			return nil, nil, err
		}
		run.Hardware = f.Hardware
		trials, err := ReadTrials(r, inp.path, run)
		return trials, nil, err
	case GBench:
		results, err := ReadGBench(r, inp.path, f.Hardware, GBenchOptions{f.KernelIDs, f.Magnitude})
		return nil, results, err
	case Aggregates:
		results, err := ReadAggregates(r, inp.path, f.Hardware)
		return nil, results, err
	}
	return nil, nil, fmt.Errorf("unknown input format %q", format)
}

// Skipped returns the combined errors of the files skipped by the
// last Load, or nil if every file was read. Use multierr.Errors to
// list them.
func (f *Files) Skipped() error {
	return f.skipped
}
