// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config loads the YAML description of an analysis run.
//
// String values may reference environment variables as ${NAME}.
// References to unset variables are left as written.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"
	"golang.org/x/perfport/loader"
	"golang.org/x/perfport/peak"
	"golang.org/x/perfport/portability"
	"golang.org/x/perfport/publish"
	"gopkg.in/yaml.v3"
)

// Config describes an analysis run.
type Config struct {
	// Sizes lists the problem sizes to analyze. If empty, every
	// size found in the inputs is analyzed.
	Sizes []int `yaml:"sizes"`
	// Hardware is the peak table in canonical order. If empty,
	// and PeakFile is not set, peak.STREAM is used.
	Hardware []peak.Hardware `yaml:"hardware"`
	// PeakFile names a YAML file holding the peak table, in place
	// of Hardware. A relative name is relative to the configuration
	// file.
	PeakFile string `yaml:"peak_file"`
	// Kernels fixes the kernels of efficiency tables.
	Kernels []string `yaml:"kernels"`
	// KernelIDs maps Google Benchmark kernel_id counters to names.
	// If empty, loader.DefaultKernelIDs is used.
	KernelIDs map[int]string `yaml:"kernel_ids"`
	// Subsets lists the hardware subsets to score. Null entries
	// (~) are placeholders. If empty, the all, cpus and gpus
	// subsets are derived from the peak table.
	Subsets []portability.Subset `yaml:"subsets"`

	Inputs []Input `yaml:"inputs"`

	Database Database             `yaml:"database"`
	Influx   publish.InfluxConfig `yaml:"influx"`
	GCS      GCS                  `yaml:"gcs"`
}

// Input is a set of log files recorded on one hardware target.
type Input struct {
	Hardware string   `yaml:"hardware"`
	Format   string   `yaml:"format"`
	Paths    []string `yaml:"paths"`
	// Magnitude divides items_per_second in gbench logs.
	Magnitude float64 `yaml:"magnitude"`
}

// Database locates the results database.
type Database struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// GCS locates the artifact bucket, as bucket or bucket/prefix.
type GCS struct {
	Bucket string `yaml:"bucket"`
}

var envRef = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(content string) string {
	return envRef.ReplaceAllStringFunc(content, func(match string) string {
		name := strings.Trim(match, "${}")
		if value, ok := os.LookupEnv(name); ok {
			return value
		}
		return match
	})
}

// Parse decodes and validates a configuration. A relative PeakFile
// is taken relative to the current directory.
func Parse(data []byte) (*Config, error) {
	return parse(data, "")
}

func parse(data []byte, dir string) (*Config, error) {
	dec := yaml.NewDecoder(bytes.NewReader([]byte(expandEnvVars(string(data)))))
	dec.KnownFields(true)
	var c Config
	if err := dec.Decode(&c); err != nil {
		return nil, err
	}
	if c.PeakFile != "" && dir != "" && !filepath.IsAbs(c.PeakFile) {
		c.PeakFile = filepath.Join(dir, c.PeakFile)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &c, nil
}

// Load reads and parses the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c, err := parse(data, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Peaks returns the configured peak table.
func (c *Config) Peaks() (*peak.Table, error) {
	if c.PeakFile != "" {
		if len(c.Hardware) > 0 {
			return nil, fmt.Errorf("both hardware and peak_file are set")
		}
		return peak.LoadFile(c.PeakFile)
	}
	if len(c.Hardware) == 0 {
		return peak.STREAM(), nil
	}
	return peak.New(c.Hardware...)
}

// PortabilitySubsets returns the configured subsets, or the canonical
// subsets of peaks.
func (c *Config) PortabilitySubsets(peaks *peak.Table) []portability.Subset {
	if len(c.Subsets) == 0 {
		return []portability.Subset{portability.All(peaks), portability.CPUs(peaks), portability.GPUs(peaks)}
	}
	return c.Subsets
}

// KernelIDTable returns the configured kernel_id table.
func (c *Config) KernelIDTable() loader.KernelIDs {
	if len(c.KernelIDs) == 0 {
		return loader.DefaultKernelIDs()
	}
	return loader.KernelIDs(c.KernelIDs)
}

// Files returns a loader for each input.
func (c *Config) Files(log logrus.FieldLogger) []*loader.Files {
	ids := c.KernelIDTable()
	var fs []*loader.Files
	for _, in := range c.Inputs {
		format, _ := loader.ParseFormat(in.Format)
		fs = append(fs, &loader.Files{
			Hardware:  in.Hardware,
			Format:    format,
			Paths:     in.Paths,
			KernelIDs: ids,
			Magnitude: in.Magnitude,
			Logger:    log,
		})
	}
	return fs
}

// Validate checks c for consistency.
func (c *Config) Validate() error {
	for _, s := range c.Sizes {
		if s <= 0 {
			return fmt.Errorf("sizes: %d is not positive", s)
		}
	}
	peaks, err := c.Peaks()
	if err != nil {
		return fmt.Errorf("hardware: %w", err)
	}
	for _, s := range c.Subsets {
		if s.ID == "" {
			return fmt.Errorf("subsets: missing id")
		}
		if len(s.Hardware) != peaks.Len() {
			return fmt.Errorf("subset %q: has %d entries, want one per hardware target (%d)", s.ID, len(s.Hardware), peaks.Len())
		}
		for _, h := range s.Present() {
			if _, ok := peaks.Lookup(h); !ok {
				return fmt.Errorf("subset %q: unknown hardware %q", s.ID, h)
			}
		}
	}
	for i, in := range c.Inputs {
		f, err := loader.ParseFormat(in.Format)
		if err != nil {
			return fmt.Errorf("inputs[%d]: %w", i, err)
		}
		if in.Hardware == "" && f != loader.Aggregates {
			return fmt.Errorf("inputs[%d]: missing hardware", i)
		}
		if in.Magnitude < 0 {
			return fmt.Errorf("inputs[%d]: negative magnitude", i)
		}
	}
	switch c.Database.Driver {
	case "":
	case "sqlite3":
		if c.Database.DSN == "" {
			return fmt.Errorf("database: missing dsn")
		}
	case "mysql":
		if _, err := mysql.ParseDSN(c.Database.DSN); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	default:
		return fmt.Errorf("database: unsupported driver %q", c.Database.Driver)
	}
	if c.Influx.URL != "" && (c.Influx.Org == "" || c.Influx.Bucket == "") {
		return fmt.Errorf("influx: org and bucket are required")
	}
	return nil
}
