// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package store persists aggregated benchmark results and
// portability scores in a SQL database.
//
// Each batch of rows is written as an upload with an ID of the form
// YYYYMMDD.N. Statistics that are NaN are stored as NULL.
package store

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"text/template"
	"time"

	"golang.org/x/perfport/aggregate"
	"golang.org/x/perfport/portability"
)

// DB is a high-level interface to a results database. It's safe for
// concurrent use by multiple goroutines.
type DB struct {
	sql *sql.DB

	insertUpload *sql.Stmt
	lastUpload   *sql.Stmt
	insertResult *sql.Stmt
	insertScore  *sql.Stmt
}

// OpenSQL creates a DB backed by a SQL database. The parameters are
// the same as the parameters for sql.Open. Only mysql and sqlite3 are
// explicitly supported; other database engines will receive MySQL
// query syntax which may or may not be compatible.
func OpenSQL(driverName, dataSourceName string) (*DB, error) {
	db, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		return nil, err
	}
	if hook := openHooks[driverName]; hook != nil {
		if err := hook(db); err != nil {
			db.Close()
			return nil, err
		}
	}
	d := &DB{sql: db}
	if err := d.createTables(driverName); err != nil {
		db.Close()
		return nil, err
	}
	if err := d.prepareStatements(); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

var openHooks = make(map[string]func(*sql.DB) error)

// RegisterOpenHook registers a hook to be called after opening a
// connection to driverName. It must be called from an init function.
func RegisterOpenHook(driverName string, hook func(*sql.DB) error) {
	openHooks[driverName] = hook
}

// createTmpl is evaluated with . as a map containing one entry whose
// key is the driver name.
var createTmpl = template.Must(template.New("create").Parse(`
CREATE TABLE IF NOT EXISTS Uploads (
	UploadID VARCHAR(20) PRIMARY KEY,
	Day CHAR(8) NOT NULL,
	Seq BIGINT NOT NULL,
	Created BIGINT NOT NULL
);
CREATE TABLE IF NOT EXISTS Results (
	UploadID VARCHAR(20),
	Kernel VARCHAR(255),
	Hardware VARCHAR(255),
	GlobalSize BIGINT,
	GPU BOOLEAN NOT NULL,
	N BIGINT NOT NULL,
	ErrorMean DOUBLE PRECISION,
	ErrorStd DOUBLE PRECISION,
	RuntimeMean DOUBLE PRECISION,
	RuntimeStd DOUBLE PRECISION,
	CellsPerSecMean DOUBLE PRECISION,
	CellsPerSecStd DOUBLE PRECISION,
	ThroughputMean DOUBLE PRECISION,
	ThroughputStd DOUBLE PRECISION,
	PRIMARY KEY (UploadID, Kernel, Hardware, GlobalSize),
{{if not .sqlite3}}
	Index (Kernel(100), Hardware(100)),
{{end}}
	FOREIGN KEY (UploadID) REFERENCES Uploads(UploadID) ON UPDATE CASCADE ON DELETE CASCADE
);
CREATE TABLE IF NOT EXISTS Scores (
	UploadID VARCHAR(20),
	GlobalSize BIGINT,
	Kernel VARCHAR(255),
	Subset VARCHAR(255),
	Arch DOUBLE PRECISION,
	App DOUBLE PRECISION,
	PRIMARY KEY (UploadID, GlobalSize, Kernel, Subset),
	FOREIGN KEY (UploadID) REFERENCES Uploads(UploadID) ON UPDATE CASCADE ON DELETE CASCADE
);
{{if .sqlite3}}
CREATE INDEX IF NOT EXISTS ResultsKernelHardware ON Results(Kernel, Hardware);
{{end}}
`))

func (db *DB) createTables(driverName string) error {
	var buf bytes.Buffer
	if err := createTmpl.Execute(&buf, map[string]bool{driverName: true}); err != nil {
		return err
	}
	for _, q := range strings.Split(buf.String(), ";") {
		if strings.TrimSpace(q) == "" {
			continue
		}
		if _, err := db.sql.Exec(q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	return nil
}

func (db *DB) prepareStatements() error {
	for _, s := range []struct {
		dst *(*sql.Stmt)
		q   string
	}{
		{&db.insertUpload, "INSERT INTO Uploads(UploadID, Day, Seq, Created) VALUES (?, ?, ?, ?)"},
		{&db.lastUpload, "SELECT COALESCE(MAX(Seq), 0) FROM Uploads WHERE Day = ?"},
		{&db.insertResult, "INSERT INTO Results(UploadID, Kernel, Hardware, GlobalSize, GPU, N, " +
			"ErrorMean, ErrorStd, RuntimeMean, RuntimeStd, CellsPerSecMean, CellsPerSecStd, ThroughputMean, ThroughputStd) " +
			"VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"},
		{&db.insertScore, "INSERT INTO Scores(UploadID, GlobalSize, Kernel, Subset, Arch, App) VALUES (?, ?, ?, ?, ?, ?)"},
	} {
		st, err := db.sql.Prepare(s.q)
		if err != nil {
			return err
		}
		*s.dst = st
	}
	return nil
}

// now is a hook for testing
var now = time.Now

// An Upload is a batch of results and scores that share an upload ID.
// Nothing is visible to queries until Commit.
type Upload struct {
	// ID is the upload ID, of the form YYYYMMDD.N.
	ID string

	db *DB
	tx *sql.Tx
}

// NewUpload starts a new upload.
func (db *DB) NewUpload(ctx context.Context) (*Upload, error) {
	tx, err := db.sql.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	t := now().UTC()
	day := t.Format("20060102")
	var seq int64
	if err := tx.StmtContext(ctx, db.lastUpload).QueryRowContext(ctx, day).Scan(&seq); err != nil {
		tx.Rollback()
		return nil, err
	}
	seq++
	id := fmt.Sprintf("%s.%d", day, seq)
	if _, err := tx.StmtContext(ctx, db.insertUpload).ExecContext(ctx, id, day, seq, t.Unix()); err != nil {
		tx.Rollback()
		return nil, err
	}
	return &Upload{ID: id, db: db, tx: tx}, nil
}

func nullable(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: !math.IsNaN(v)}
}

func fromNull(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

// Insert adds results to u.
func (u *Upload) Insert(results ...aggregate.Result) error {
	st := u.tx.Stmt(u.db.insertResult)
	defer st.Close()
	for _, r := range results {
		_, err := st.Exec(u.ID, r.Kernel, r.Hardware, r.Size, r.UsesGPU, r.N,
			nullable(r.Error.Mean), nullable(r.Error.StdDev),
			nullable(r.Duration.Mean), nullable(r.Duration.StdDev),
			nullable(r.CellsPerSec.Mean), nullable(r.CellsPerSec.StdDev),
			nullable(r.Throughput.Mean), nullable(r.Throughput.StdDev))
		if err != nil {
			return fmt.Errorf("inserting %s: %w", r.Key(), err)
		}
	}
	return nil
}

// InsertScores adds the portability scores computed at one problem
// size to u.
func (u *Upload) InsertScores(size int, scores ...portability.Score) error {
	st := u.tx.Stmt(u.db.insertScore)
	defer st.Close()
	for _, s := range scores {
		if _, err := st.Exec(u.ID, size, s.Kernel, s.Subset, nullable(s.Arch), nullable(s.App)); err != nil {
			return fmt.Errorf("inserting score of %s over %s: %w", s.Kernel, s.Subset, err)
		}
	}
	return nil
}

// Commit makes the upload visible.
func (u *Upload) Commit() error {
	return u.tx.Commit()
}

// Abort discards the upload. It is a no-op after Commit.
func (u *Upload) Abort() error {
	err := u.tx.Rollback()
	if err == sql.ErrTxDone {
		return nil
	}
	return err
}

// A Query selects results. Zero fields match anything.
type Query struct {
	UploadID string
	Kernel   string
	Hardware string
	Size     int
}

func (q Query) where() (string, []interface{}) {
	var conds []string
	var args []interface{}
	add := func(cond string, arg interface{}) {
		conds = append(conds, cond)
		args = append(args, arg)
	}
	if q.UploadID != "" {
		add("UploadID = ?", q.UploadID)
	}
	if q.Kernel != "" {
		add("Kernel = ?", q.Kernel)
	}
	if q.Hardware != "" {
		add("Hardware = ?", q.Hardware)
	}
	if q.Size != 0 {
		add("GlobalSize = ?", q.Size)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// Results returns the committed results matching q, ordered by
// upload, then by insertion key.
func (db *DB) Results(ctx context.Context, q Query) ([]aggregate.Result, error) {
	where, args := q.where()
	rows, err := db.sql.QueryContext(ctx, "SELECT Kernel, Hardware, GlobalSize, GPU, N, "+
		"ErrorMean, ErrorStd, RuntimeMean, RuntimeStd, CellsPerSecMean, CellsPerSecStd, ThroughputMean, ThroughputStd "+
		"FROM Results"+where+" ORDER BY UploadID, GlobalSize, Kernel, Hardware", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []aggregate.Result
	for rows.Next() {
		var r aggregate.Result
		var stats [8]sql.NullFloat64
		dst := []interface{}{&r.Kernel, &r.Hardware, &r.Size, &r.UsesGPU, &r.N}
		for i := range stats {
			dst = append(dst, &stats[i])
		}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		r.Error = aggregate.Stat{Mean: fromNull(stats[0]), StdDev: fromNull(stats[1])}
		r.Duration = aggregate.Stat{Mean: fromNull(stats[2]), StdDev: fromNull(stats[3])}
		r.CellsPerSec = aggregate.Stat{Mean: fromNull(stats[4]), StdDev: fromNull(stats[5])}
		r.Throughput = aggregate.Stat{Mean: fromNull(stats[6]), StdDev: fromNull(stats[7])}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Scores returns the committed portability scores of an upload at
// one problem size, ordered by subset, then kernel.
func (db *DB) Scores(ctx context.Context, uploadID string, size int) ([]portability.Score, error) {
	rows, err := db.sql.QueryContext(ctx, "SELECT Kernel, Subset, Arch, App FROM Scores "+
		"WHERE UploadID = ? AND GlobalSize = ? ORDER BY Subset, Kernel", uploadID, size)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []portability.Score
	for rows.Next() {
		var s portability.Score
		var arch, app sql.NullFloat64
		if err := rows.Scan(&s.Kernel, &s.Subset, &arch, &app); err != nil {
			return nil, err
		}
		s.Arch, s.App = fromNull(arch), fromNull(app)
		out = append(out, s)
	}
	return out, rows.Err()
}

// CountUploads returns the number of uploads in the database.
func (db *DB) CountUploads() (int, error) {
	var uploads int
	err := db.sql.QueryRow("SELECT COUNT(*) FROM Uploads").Scan(&uploads)
	return uploads, err
}

// Close closes the database connections, releasing any open resources.
func (db *DB) Close() error {
	for _, st := range []*sql.Stmt{db.insertUpload, db.lastUpload, db.insertResult, db.insertScore} {
		if err := st.Close(); err != nil {
			return err
		}
	}
	return db.sql.Close()
}
