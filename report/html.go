// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package report

import (
	"io"

	"github.com/google/safehtml/template"
	"golang.org/x/perfport/efficiency"
	"golang.org/x/perfport/portability"
)

const htmlSource = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Performance portability, size {{.Size}}</title></head>
<body>
<h1>global_size {{.Size}}</h1>
<table class='efficiency'>
<tr><th rowspan="2">kernel{{range .Hardware}}<th colspan="2">{{.}}{{end}}
<tr>{{range .Hardware}}<th>arch<th>app{{end}}
{{range .Rows -}}
<tr><td>{{.Name}}{{range .Cells}}<td>{{.}}{{end}}
{{end -}}
</table>
{{if .Subsets -}}
<table class='portability'>
<tr><th rowspan="2">kernel{{range .Subsets}}<th colspan="2">PP {{.}}{{end}}
<tr>{{range .Subsets}}<th>arch<th>app{{end}}
{{range .Scores -}}
<tr><td>{{.Name}}{{range .Cells}}<td>{{.}}{{end}}
{{end -}}
</table>
{{end -}}
</body>
</html>
`

var htmlTemplate = template.Must(template.New("report").Parse(htmlSource))

type htmlRow struct {
	Name  string
	Cells []string
}

type htmlPage struct {
	Size     int
	Hardware []string
	Rows     []htmlRow
	Subsets  []string
	Scores   []htmlRow
}

// FormatHTML writes an HTML page with the efficiency table t and the
// portability scores computed from it. scores may be empty.
func FormatHTML(w io.Writer, t *efficiency.Table, scores []portability.Score) error {
	page := htmlPage{Size: t.Size, Hardware: t.Hardware}
	for _, k := range t.Kernels {
		row := htmlRow{Name: k}
		for _, h := range t.Hardware {
			e, _ := t.Lookup(k, h)
			row.Cells = append(row.Cells, textRatio(e.Arch), textRatio(e.App))
		}
		page.Rows = append(page.Rows, row)
	}
	g := gridOf(scores)
	page.Subsets = g.subsets
	for _, k := range g.kernels {
		row := htmlRow{Name: k}
		for _, sub := range g.subsets {
			if s, ok := g.lookup(k, sub); ok {
				row.Cells = append(row.Cells, fixed(s.Arch), fixed(s.App))
			} else {
				row.Cells = append(row.Cells, notRun, notRun)
			}
		}
		page.Scores = append(page.Scores, row)
	}
	return htmlTemplate.Execute(w, page)
}
