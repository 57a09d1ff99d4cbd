// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package report

import (
	"fmt"
	"io"

	"golang.org/x/perfport/efficiency"
	"golang.org/x/perfport/internal/texttab"
	"golang.org/x/perfport/portability"
)

// notRun is how a missing measurement is shown to people.
const notRun = "-"

func fixed(v float64) string {
	return fmt.Sprintf("%.3f", v)
}

func textRatio(r efficiency.Ratio) string {
	if v, ok := r.Value(); ok {
		return fixed(v)
	}
	return notRun
}

// FormatEfficiency writes t as an aligned text table with one row per
// kernel and an arch/app column pair per hardware target.
func FormatEfficiency(w io.Writer, t *efficiency.Table) error {
	var tab texttab.Table
	tab.Row().Cell(fmt.Sprintf("global_size: %d", t.Size))
	tab.Row().Cell("")
	for _, h := range t.Hardware {
		tab.Span(2, h, texttab.Center, texttab.Margin("  "))
	}
	tab.Row().Cell("kernel")
	for range t.Hardware {
		tab.Cell("arch", texttab.Right, texttab.Margin("  ")).Cell("app", texttab.Right)
	}
	tab.Rule()
	for _, k := range t.Kernels {
		tab.Row().Cell(k)
		for _, h := range t.Hardware {
			e, _ := t.Lookup(k, h)
			tab.Cell(textRatio(e.Arch), texttab.Right, texttab.Margin("  ")).Cell(textRatio(e.App), texttab.Right)
		}
	}
	return tab.Format(w)
}

// scoreGrid arranges scores by kernel and subset, both in first-seen
// order.
type scoreGrid struct {
	kernels, subsets []string
	cells            map[[2]string]portability.Score
}

func gridOf(scores []portability.Score) *scoreGrid {
	g := &scoreGrid{cells: make(map[[2]string]portability.Score)}
	seenK, seenS := map[string]bool{}, map[string]bool{}
	for _, s := range scores {
		if !seenK[s.Kernel] {
			seenK[s.Kernel] = true
			g.kernels = append(g.kernels, s.Kernel)
		}
		if !seenS[s.Subset] {
			seenS[s.Subset] = true
			g.subsets = append(g.subsets, s.Subset)
		}
		g.cells[[2]string{s.Kernel, s.Subset}] = s
	}
	return g
}

func (g *scoreGrid) lookup(kernel, subset string) (portability.Score, bool) {
	s, ok := g.cells[[2]string{kernel, subset}]
	return s, ok
}

// FormatScores writes the portability scores computed at one problem
// size as an aligned text table with one row per kernel and an
// arch/app column pair per subset.
func FormatScores(w io.Writer, size int, scores []portability.Score) error {
	g := gridOf(scores)
	var tab texttab.Table
	tab.Row().Cell(fmt.Sprintf("global_size: %d", size))
	tab.Row().Cell("")
	for _, s := range g.subsets {
		tab.Span(2, "PP "+s, texttab.Center, texttab.Margin("  "))
	}
	tab.Row().Cell("kernel")
	for range g.subsets {
		tab.Cell("arch", texttab.Right, texttab.Margin("  ")).Cell("app", texttab.Right)
	}
	tab.Rule()
	for _, k := range g.kernels {
		tab.Row().Cell(k)
		for _, sub := range g.subsets {
			arch, app := notRun, notRun
			if s, ok := g.lookup(k, sub); ok {
				arch, app = fixed(s.Arch), fixed(s.App)
			}
			tab.Cell(arch, texttab.Right, texttab.Margin("  ")).Cell(app, texttab.Right)
		}
	}
	return tab.Format(w)
}
