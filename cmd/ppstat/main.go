// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Ppstat computes the performance portability of benchmark kernels
// across hardware targets.
//
// Usage:
//
//	ppstat [--config run.yaml] [--env .env] [--log-level level] command [flags] [logs...]
//
// The commands are:
//
//	aggregate   print the aggregate table as CSV
//	efficiency  print the efficiency tables
//	score       print the portability scores
//	chart       draw efficiency and throughput charts
//	save        store results and scores in the results database
//	publish     upload CSV artifacts and write points to InfluxDB
//
// Inputs come from the inputs section of the configuration. Log files
// given on the command line are read as one more input, recorded on
// the hardware named by --hardware.
//
// Output of efficiency and score is selected with --format, one of
// text, csv and html.
package main

import (
	"golang.org/x/perfport/internal/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logging.GetLogger().WithError(err).Fatal("ppstat failed")
	}
}
