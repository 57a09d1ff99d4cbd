// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package trial holds raw benchmark trial measurements.
//
// A Record is one repetition of one kernel on one hardware target at
// one problem size. Records are produced by a loader and never
// mutated after they are added to a Store.
package trial

import (
	"fmt"
	"math"
	"sort"
)

// A Record is a single measured repetition of a benchmark kernel.
type Record struct {
	Kernel   string
	Hardware string

	// Size is the global problem size in elements.
	Size int

	// UsesGPU reports whether the run executed on a GPU device.
	UsesGPU bool

	// Duration is the run time of the repetition.
	Duration float64
	// Throughput is in the same units as the hardware peak table.
	Throughput float64
	// CellsPerSec is the number of grid cells updated per second.
	CellsPerSec float64
	// Error is the numerical error reported by the kernel's
	// validation step.
	Error float64

	// Rep is the repetition index within its run.
	Rep int
}

// Key identifies the aggregation group of a Record.
type Key struct {
	Kernel   string
	Hardware string
	Size     int
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%d", k.Kernel, k.Hardware, k.Size)
}

// Key returns the aggregation key of r.
func (r *Record) Key() Key {
	return Key{r.Kernel, r.Hardware, r.Size}
}

// Validate reports whether r is well formed. Measurements must be
// non-negative numbers and both names must be set.
func (r *Record) Validate() error {
	if r.Kernel == "" {
		return fmt.Errorf("trial %d: missing kernel name", r.Rep)
	}
	if r.Hardware == "" {
		return fmt.Errorf("trial %s rep %d: missing hardware name", r.Kernel, r.Rep)
	}
	if r.Size < 0 {
		return fmt.Errorf("trial %s rep %d: negative problem size %d", r.Key(), r.Rep, r.Size)
	}
	for _, m := range []struct {
		name string
		v    float64
	}{
		{"duration", r.Duration},
		{"throughput", r.Throughput},
		{"cellspersec", r.CellsPerSec},
		{"error", r.Error},
	} {
		if math.IsNaN(m.v) || m.v < 0 {
			return fmt.Errorf("trial %s rep %d: invalid %s %v", r.Key(), r.Rep, m.name, m.v)
		}
	}
	return nil
}

// A Store is an in-memory collection of Records with lookup by
// aggregation key. The zero Store is empty and ready to use.
//
// A Store is not safe for concurrent mutation.
type Store struct {
	recs  []Record
	byKey map[Key][]int

	kernels  []string
	hardware []string
	seenK    map[string]bool
	seenH    map[string]bool
	sizes    map[int]bool
}

// Add validates and appends recs to s. If any record is invalid, Add
// returns an error and s is left unchanged.
func (s *Store) Add(recs ...Record) error {
	for i := range recs {
		if err := recs[i].Validate(); err != nil {
			return err
		}
	}
	if s.byKey == nil {
		s.byKey = make(map[Key][]int)
		s.seenK = make(map[string]bool)
		s.seenH = make(map[string]bool)
		s.sizes = make(map[int]bool)
	}
	for _, rec := range recs {
		k := rec.Key()
		s.byKey[k] = append(s.byKey[k], len(s.recs))
		s.recs = append(s.recs, rec)
		if !s.seenK[rec.Kernel] {
			s.seenK[rec.Kernel] = true
			s.kernels = append(s.kernels, rec.Kernel)
		}
		if !s.seenH[rec.Hardware] {
			s.seenH[rec.Hardware] = true
			s.hardware = append(s.hardware, rec.Hardware)
		}
		s.sizes[rec.Size] = true
	}
	return nil
}

// Len returns the number of records in s.
func (s *Store) Len() int {
	return len(s.recs)
}

// All returns a copy of every record in s, in insertion order.
func (s *Store) All() []Record {
	return append([]Record(nil), s.recs...)
}

// Lookup returns the records of one aggregation group, in insertion
// order. It returns nil if the group has no records.
func (s *Store) Lookup(kernel, hardware string, size int) []Record {
	idx := s.byKey[Key{kernel, hardware, size}]
	if len(idx) == 0 {
		return nil
	}
	out := make([]Record, len(idx))
	for i, j := range idx {
		out[i] = s.recs[j]
	}
	return out
}

// Kernels returns the distinct kernel names in first-seen order.
func (s *Store) Kernels() []string {
	return append([]string(nil), s.kernels...)
}

// Hardware returns the distinct hardware names in first-seen order.
func (s *Store) Hardware() []string {
	return append([]string(nil), s.hardware...)
}

// Sizes returns the distinct problem sizes in ascending order.
func (s *Store) Sizes() []int {
	out := make([]int, 0, len(s.sizes))
	for size := range s.sizes {
		out = append(out, size)
	}
	sort.Ints(out)
	return out
}
