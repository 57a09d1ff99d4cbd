// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package texttab lays out aligned plain-text tables.
package texttab

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode/utf8"
)

// Table does layout of text-based tables.
//
// Rows are built up by chaining calls:
//
//	var t texttab.Table
//	t.Row().Cell("kernel").Cell("a100", texttab.Right)
//	t.Row().Cell("NDRange").Cell("0.81", texttab.Right)
//	t.Format(os.Stdout)
type Table struct {
	cells []cell
	cols  int

	curRow, curCol int
}

type cell struct {
	row, col, span int
	value          string
	margin         string
	align          align
}

// A CellOption changes the layout of one cell.
type CellOption func(c *cell)

// Margin replaces the default one-space left margin of a cell.
func Margin(m string) CellOption {
	return func(c *cell) { c.margin = m }
}

var (
	Left   CellOption = func(c *cell) { c.align = alignLeft }
	Center CellOption = func(c *cell) { c.align = alignCenter }
	Right  CellOption = func(c *cell) { c.align = alignRight }
)

type align int

const (
	alignLeft align = iota
	alignCenter
	alignRight
)

func width(s string) int { return utf8.RuneCountInString(s) }

// pad pads s on the left to align it within w columns. Right padding
// is left to the next cell's offset.
func (a align) pad(s string, w int) string {
	switch a {
	case alignCenter:
		return strings.Repeat(" ", max(0, (w-width(s))/2)) + s
	case alignRight:
		return strings.Repeat(" ", max(0, w-width(s))) + s
	}
	return s
}

// Row starts a new row.
func (t *Table) Row() *Table {
	if len(t.cells) > 0 {
		t.curRow++
	}
	t.curCol = 0
	return t
}

// Col skips forward to column col, leaving the skipped cells empty.
// Columns are numbered from 0.
func (t *Table) Col(col int) *Table {
	if col < t.curCol {
		panic(fmt.Sprintf("cannot move from column %d back to column %d", t.curCol, col))
	}
	t.curCol = col
	return t
}

// Cell adds a single-column cell at the current position.
func (t *Table) Cell(value string, opts ...CellOption) *Table {
	return t.Span(1, value, opts...)
}

// Span adds a cell covering n columns at the current position.
func (t *Table) Span(n int, value string, opts ...CellOption) *Table {
	c := cell{row: t.curRow, col: t.curCol, span: n, value: value, margin: " "}
	if t.curCol == 0 || value == "" {
		c.margin = ""
	}
	for _, o := range opts {
		o(&c)
	}
	t.cells = append(t.cells, c)
	t.curCol += n
	t.cols = max(t.cols, t.curCol)
	return t
}

// Rule adds a row of dashes as wide as the table.
func (t *Table) Rule() *Table {
	t.Row()
	t.cells = append(t.cells, cell{row: t.curRow, span: -1})
	return t
}

// Format lays out the table and writes it to w.
func (t *Table) Format(w io.Writer) error {
	margins := make([]int, t.cols)
	for _, c := range t.cells {
		if c.span > 0 {
			margins[c.col] = max(margins[c.col], width(c.margin))
		}
	}

	// Size single-column cells first, then widen the columns
	// under any span that still does not fit, spreading the
	// shortfall evenly from the right.
	widths := make([]int, t.cols)
	for _, c := range t.cells {
		if c.span == 1 {
			widths[c.col] = max(widths[c.col], width(c.value)+margins[c.col])
		}
	}
	for _, c := range t.cells {
		if c.span <= 1 {
			continue
		}
		have := 0
		for i := c.col; i < c.col+c.span; i++ {
			have += widths[i]
		}
		short := width(c.value) + margins[c.col] - have
		for i := c.col + c.span - 1; short > 0 && i >= c.col; i-- {
			add := (short + i - c.col) / (i - c.col + 1)
			widths[i] += add
			short -= add
		}
	}
	offs := make([]int, t.cols+1)
	for i, wd := range widths {
		offs[i+1] = offs[i] + wd
	}

	cells := append([]cell(nil), t.cells...)
	sort.SliceStable(cells, func(i, j int) bool {
		if cells[i].row != cells[j].row {
			return cells[i].row < cells[j].row
		}
		return cells[i].col < cells[j].col
	})
	var b strings.Builder
	row, off := 0, 0
	for _, c := range cells {
		for c.row > row {
			b.WriteByte('\n')
			row++
			off = 0
		}
		if c.span < 0 {
			b.WriteString(strings.Repeat("-", offs[t.cols]))
			continue
		}
		if strings.TrimSpace(c.value) == "" && strings.TrimSpace(c.margin) == "" {
			// Skip empty cells so rows carry no trailing spaces.
			continue
		}
		fmt.Fprintf(&b, "%*s%*s", offs[c.col]-off, "", margins[c.col], c.margin)
		off = offs[c.col] + margins[c.col]
		s := c.align.pad(c.value, offs[c.col+c.span]-off)
		b.WriteString(s)
		off += width(s)
	}
	if len(cells) > 0 {
		b.WriteByte('\n')
	}
	_, err := io.WriteString(w, b.String())
	return err
}
