// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package report renders aggregated results, efficiency tables and
// portability scores as CSV, aligned text and HTML.
//
// A NotRun efficiency is written as an empty CSV cell and as "-" in
// text and HTML. NaN statistics are written as empty CSV cells so
// that loader.ReadAggregates recovers them exactly.
package report

import (
	"encoding/csv"
	"io"
	"math"
	"strconv"

	"golang.org/x/perfport/aggregate"
	"golang.org/x/perfport/efficiency"
	"golang.org/x/perfport/loader"
	"golang.org/x/perfport/portability"
)

// strof formats v in the shortest form that parses back to v. NaN is
// the empty string.
func strof(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func ratio(r efficiency.Ratio) string {
	v, ok := r.Value()
	if !ok {
		return ""
	}
	return strof(v)
}

func writeAll(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

// WriteAggregates writes results in the aggregate table format read
// by loader.ReadAggregates.
func WriteAggregates(w io.Writer, results []aggregate.Result) error {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{
			strconv.Itoa(r.Size), r.Kernel, r.Hardware, flag(r.UsesGPU),
			strof(r.Error.Mean), strof(r.Error.StdDev),
			strof(r.Duration.Mean), strof(r.Duration.StdDev),
			strof(r.CellsPerSec.Mean), strof(r.CellsPerSec.StdDev),
			strof(r.Throughput.Mean), strof(r.Throughput.StdDev),
		})
	}
	return writeAll(w, loader.AggregateColumns, rows)
}

// WriteEfficiency writes one row per entry of tables.
func WriteEfficiency(w io.Writer, tables ...*efficiency.Table) error {
	var rows [][]string
	for _, t := range tables {
		size := strconv.Itoa(t.Size)
		for _, e := range t.Entries {
			rows = append(rows, []string{size, e.Kernel, e.Hardware, ratio(e.Arch), ratio(e.App)})
		}
	}
	return writeAll(w, []string{"global_size", "kernel", "hardware", "arch", "app"}, rows)
}

var scoreColumns = []string{"global_size", "kernel", "subset", "pp_arch", "pp_app"}

// WriteScores writes the portability scores computed at one problem
// size.
func WriteScores(w io.Writer, size int, scores []portability.Score) error {
	sw := NewScoreWriter(w)
	if err := sw.Write(size, scores); err != nil {
		return err
	}
	return sw.Flush()
}

// A ScoreWriter writes the portability scores of several problem
// sizes as a single table.
type ScoreWriter struct {
	cw     *csv.Writer
	header bool
}

// NewScoreWriter returns a ScoreWriter writing to w.
func NewScoreWriter(w io.Writer) *ScoreWriter {
	return &ScoreWriter{cw: csv.NewWriter(w)}
}

// Write adds the scores computed at size. The header is written
// before the first row.
func (sw *ScoreWriter) Write(size int, scores []portability.Score) error {
	if !sw.header {
		if err := sw.cw.Write(scoreColumns); err != nil {
			return err
		}
		sw.header = true
	}
	for _, s := range scores {
		if err := sw.cw.Write([]string{strconv.Itoa(size), s.Kernel, s.Subset, strof(s.Arch), strof(s.App)}); err != nil {
			return err
		}
	}
	return nil
}

// Flush writes any buffered rows. A ScoreWriter that was never
// given scores still writes the header.
func (sw *ScoreWriter) Flush() error {
	if !sw.header {
		if err := sw.cw.Write(scoreColumns); err != nil {
			return err
		}
		sw.header = true
	}
	sw.cw.Flush()
	return sw.cw.Error()
}
