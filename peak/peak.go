// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package peak provides the hardware peak-throughput reference table
// used to compute architectural efficiency.
//
// A Table is ordered: its order is the canonical hardware order used
// for efficiency tables, hardware subsets and charts. Tables are
// read-only once constructed and safe for concurrent use.
package peak

import (
	"fmt"
	"io"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// Hardware describes one hardware target.
type Hardware struct {
	Name string `yaml:"name"`
	// Peak is the peak throughput of the target, in the same
	// units as measured throughput.
	Peak float64 `yaml:"peak"`
	GPU  bool    `yaml:"gpu"`
}

// A Table is an ordered hardware name to peak throughput mapping.
type Table struct {
	hw    []Hardware
	index map[string]int
}

// New returns a Table holding hw in the given order. Names must be
// unique and non-empty and peaks must be finite and positive.
func New(hw ...Hardware) (*Table, error) {
	t := &Table{
		hw:    append([]Hardware(nil), hw...),
		index: make(map[string]int, len(hw)),
	}
	for i, h := range t.hw {
		if h.Name == "" {
			return nil, fmt.Errorf("peak table entry %d: missing hardware name", i)
		}
		if _, ok := t.index[h.Name]; ok {
			return nil, fmt.Errorf("peak table: duplicate hardware %q", h.Name)
		}
		if !(h.Peak > 0) || math.IsInf(h.Peak, 0) {
			return nil, fmt.Errorf("peak table: hardware %q has invalid peak %v", h.Name, h.Peak)
		}
		t.index[h.Name] = i
	}
	return t, nil
}

// STREAM returns the reference table measured with the STREAM
// benchmark on the machines of the advection study, in G items/s.
func STREAM() *Table {
	t, err := New(
		Hardware{Name: "mi250", Peak: 80.8125, GPU: true},
		Hardware{Name: "a100", Peak: 87.625, GPU: true},
		Hardware{Name: "epyc", Peak: 9.625},
		Hardware{Name: "genoa", Peak: 29.125},
		Hardware{Name: "xeon", Peak: 9.6875},
	)
	if err != nil {
		panic(err)
	}
	return t
}

// Load decodes a YAML list of Hardware from r.
func Load(r io.Reader) (*Table, error) {
	var hw []Hardware
	if err := yaml.NewDecoder(r).Decode(&hw); err != nil {
		return nil, fmt.Errorf("decoding peak table: %w", err)
	}
	return New(hw...)
}

// LoadFile is like Load but reads from the named file.
func LoadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	t, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Peak returns the peak throughput of the named hardware.
func (t *Table) Peak(name string) (float64, bool) {
	i, ok := t.index[name]
	if !ok {
		return 0, false
	}
	return t.hw[i].Peak, true
}

// Lookup returns the full description of the named hardware.
func (t *Table) Lookup(name string) (Hardware, bool) {
	i, ok := t.index[name]
	if !ok {
		return Hardware{}, false
	}
	return t.hw[i], true
}

// Len returns the number of hardware targets in t.
func (t *Table) Len() int { return len(t.hw) }

// At returns the i'th hardware target in canonical order.
func (t *Table) At(i int) Hardware { return t.hw[i] }

// Names returns the hardware names in canonical order.
func (t *Table) Names() []string {
	names := make([]string, len(t.hw))
	for i, h := range t.hw {
		names[i] = h.Name
	}
	return names
}
