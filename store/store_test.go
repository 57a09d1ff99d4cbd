// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package store_test

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"flag"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"golang.org/x/perfport/aggregate"
	"golang.org/x/perfport/portability"
	. "golang.org/x/perfport/store"
	"golang.org/x/perfport/store/sqlite3"
)

var mysqlDSN = flag.String("mysql", "", "run store tests against the MySQL server at this DSN instead of in-memory SQLite")

// scratchMySQL creates an empty database on the -mysql server and
// returns its DSN. The database is dropped when t finishes.
func scratchMySQL(t *testing.T) string {
	t.Helper()
	cfg, err := mysql.ParseDSN(*mysqlDSN)
	if err != nil {
		t.Fatalf("parsing -mysql: %v", err)
	}
	suffix := make([]byte, 4)
	if _, err := rand.Read(suffix); err != nil {
		t.Fatal(err)
	}
	name := "perfport_test_" + hex.EncodeToString(suffix)

	cfg.DBName = ""
	admin, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := admin.Exec(fmt.Sprintf("CREATE DATABASE `%s`", name)); err != nil {
		admin.Close()
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if _, err := admin.Exec(fmt.Sprintf("DROP DATABASE `%s`", name)); err != nil {
			t.Error(err)
		}
		admin.Close()
	})
	cfg.DBName = name
	return cfg.FormatDSN()
}

// newDB opens an empty results database: in-memory SQLite, or a
// scratch MySQL database when -mysql is set.
func newDB(t *testing.T) *DB {
	t.Helper()
	driver, dsn := "sqlite3", ":memory:"
	if *mysqlDSN != "" {
		driver, dsn = "mysql", scratchMySQL(t)
	}
	db, err := OpenSQL(driver, dsn)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if n, err := db.CountUploads(); err != nil || n != 0 {
		t.Fatalf("new database has %d uploads, %v", n, err)
	}
	return db
}

// TestUploadIDs verifies that NewUpload generates the correct sequence of upload IDs.
func TestUploadIDs(t *testing.T) {
	ctx := context.Background()

	db := newDB(t)

	defer SetNow(time.Time{})

	tests := []struct {
		sec int64
		id  string
	}{
		{0, "19700101.1"},
		{0, "19700101.2"},
		{86400, "19700102.1"},
		{86400, "19700102.2"},
		{86400, "19700102.3"},
	}
	for _, test := range tests {
		SetNow(time.Unix(test.sec, 0))
		u, err := db.NewUpload(ctx)
		if err != nil {
			t.Fatalf("NewUpload: %v", err)
		}
		if err := u.Commit(); err != nil {
			t.Fatalf("Commit: %v", err)
		}
		if u.ID != test.id {
			t.Fatalf("u.ID = %q, want %q", u.ID, test.id)
		}
	}
	if n, err := db.CountUploads(); err != nil || n != len(tests) {
		t.Errorf("CountUploads = %d, %v, want %d", n, err, len(tests))
	}
}

func results() []aggregate.Result {
	return []aggregate.Result{
		{
			Kernel: "BasicRange2D", Hardware: "a100", Size: 8192, UsesGPU: true, N: 3,
			Error:       aggregate.Stat{Mean: 2e-6, StdDev: 1e-6},
			Duration:    aggregate.Stat{Mean: 0.6, StdDev: 0.1},
			CellsPerSec: aggregate.Stat{Mean: 1.75e9, StdDev: 2.5e8},
			Throughput:  aggregate.Stat{Mean: 1.75, StdDev: 0.25},
		},
		{
			Kernel: "NDRange", Hardware: "epyc", Size: 8192, N: 1,
			Error:       aggregate.Stat{Mean: 0, StdDev: math.NaN()},
			Duration:    aggregate.Stat{Mean: 0.3, StdDev: math.NaN()},
			CellsPerSec: aggregate.Stat{Mean: 3e8, StdDev: math.NaN()},
			Throughput:  aggregate.Stat{Mean: 0.3, StdDev: math.NaN()},
		},
	}
}

func TestInsertResults(t *testing.T) {
	SetNow(time.Unix(0, 0))
	defer SetNow(time.Time{})
	db := newDB(t)
	ctx := context.Background()

	u, err := db.NewUpload(ctx)
	if err != nil {
		t.Fatalf("NewUpload: %v", err)
	}
	if err := u.Insert(results()...); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	scores := []portability.Score{
		{Kernel: "BasicRange2D", Subset: "all", Arch: 0.2, App: 1},
		{Kernel: "NDRange", Subset: "all"},
	}
	if err := u.InsertScores(8192, scores...); err != nil {
		t.Fatalf("InsertScores: %v", err)
	}
	if err := u.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	got, err := db.Results(ctx, Query{})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(results(), got, cmpopts.EquateNaNs()); diff != "" {
		t.Errorf("Results mismatch (-want +got):\n%s", diff)
	}

	got, err = db.Results(ctx, Query{Hardware: "epyc", UploadID: "19700101.1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Kernel != "NDRange" {
		t.Errorf("Results(epyc) = %+v", got)
	}
	got, err = db.Results(ctx, Query{Size: 16})
	if err != nil || len(got) != 0 {
		t.Errorf("Results(size 16) = %+v, %v", got, err)
	}

	gotScores, err := db.Scores(ctx, "19700101.1", 8192)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(scores, gotScores); diff != "" {
		t.Errorf("Scores mismatch (-want +got):\n%s", diff)
	}
}

func TestAbort(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()

	u, err := db.NewUpload(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := u.Insert(results()...); err != nil {
		t.Fatal(err)
	}
	if err := u.Abort(); err != nil {
		t.Fatal(err)
	}
	if n, err := db.CountUploads(); err != nil || n != 0 {
		t.Errorf("after Abort: CountUploads = %d, %v", n, err)
	}
	if got, err := db.Results(ctx, Query{}); err != nil || len(got) != 0 {
		t.Errorf("after Abort: Results = %+v, %v", got, err)
	}
}

func TestDuplicateResult(t *testing.T) {
	db := newDB(t)

	u, err := db.NewUpload(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer u.Abort()
	r := results()[0]
	err = u.Insert(r, r)
	if err == nil {
		t.Fatal("inserting a result twice succeeded")
	}
	if !sqlite3.IsConstraint(err) {
		t.Skipf("not a sqlite3 database: %v", err)
	}
}
