package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/bicmine/internal/errors"
	"github.com/rohankatakam/bicmine/internal/models"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"

	DefaultBatchSize = 1000
)

// timestamps are stored as text so both drivers round-trip the offset
const storedTimeLayout = time.RFC3339

const sqlSchema = `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		input TEXT,
		started_at TEXT,
		finished_at TEXT,
		commits INTEGER,
		counters TEXT
	);

	CREATE TABLE IF NOT EXISTS fix_annotations (
		run_id TEXT NOT NULL,
		hash TEXT NOT NULL,
		date TEXT NOT NULL,
		fixes_hash TEXT,
		fixes_date TEXT,
		fixes_commits INTEGER,
		fixes_seconds BIGINT,
		PRIMARY KEY (run_id, hash)
	);

	CREATE INDEX IF NOT EXISTS idx_fix_annotations_fixes ON fix_annotations(run_id, fixes_hash);
`

const upsertAnnotation = `
	INSERT INTO fix_annotations (run_id, hash, date, fixes_hash, fixes_date, fixes_commits, fixes_seconds)
	VALUES (:run_id, :hash, :date, :fixes_hash, :fixes_date, :fixes_commits, :fixes_seconds)
	ON CONFLICT (run_id, hash) DO UPDATE SET
		date = EXCLUDED.date,
		fixes_hash = EXCLUDED.fixes_hash,
		fixes_date = EXCLUDED.fixes_date,
		fixes_commits = EXCLUDED.fixes_commits,
		fixes_seconds = EXCLUDED.fixes_seconds
`

const insertRun = `
	INSERT INTO runs (id) VALUES (:id)
	ON CONFLICT (id) DO NOTHING
`

const upsertRun = `
	INSERT INTO runs (id, input, started_at, finished_at, commits, counters)
	VALUES (:id, :input, :started_at, :finished_at, :commits, :counters)
	ON CONFLICT (id) DO UPDATE SET
		input = EXCLUDED.input,
		started_at = EXCLUDED.started_at,
		finished_at = EXCLUDED.finished_at,
		commits = EXCLUDED.commits,
		counters = EXCLUDED.counters
`

type annotationRecord struct {
	RunID        string         `db:"run_id"`
	Hash         string         `db:"hash"`
	Date         string         `db:"date"`
	FixesHash    sql.NullString `db:"fixes_hash"`
	FixesDate    sql.NullString `db:"fixes_date"`
	FixesCommits sql.NullInt64  `db:"fixes_commits"`
	FixesSeconds sql.NullInt64  `db:"fixes_seconds"`
}

type runRecord struct {
	ID         string         `db:"id"`
	Input      sql.NullString `db:"input"`
	StartedAt  sql.NullString `db:"started_at"`
	FinishedAt sql.NullString `db:"finished_at"`
	Commits    sql.NullInt64  `db:"commits"`
	Counters   sql.NullString `db:"counters"`
}

// SQLSink stores annotated rows in SQLite or PostgreSQL
type SQLSink struct {
	db        *sqlx.DB
	logger    *logrus.Logger
	runID     string
	batchSize int
	pending   []annotationRecord
	written   int
}

// SQLOptions configures NewSQLSink
type SQLOptions struct {
	Driver    string
	DSN       string
	RunID     string
	BatchSize int
}

// NewSQLSink connects, creates the schema and registers the run
func NewSQLSink(ctx context.Context, opts SQLOptions, logger *logrus.Logger) (*SQLSink, error) {
	if opts.Driver == "" {
		opts.Driver = DriverSQLite
	}
	if opts.Driver != DriverSQLite && opts.Driver != DriverPostgres {
		return nil, errors.ConfigErrorf("unsupported sql driver %q", opts.Driver)
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	if opts.Driver == DriverSQLite && opts.DSN != ":memory:" && !strings.HasPrefix(opts.DSN, "file:") {
		if err := os.MkdirAll(filepath.Dir(opts.DSN), 0755); err != nil {
			return nil, errors.FileSystemErrorf(err, "create database directory for %s", opts.DSN)
		}
	}

	db, err := sqlx.ConnectContext(ctx, opts.Driver, opts.DSN)
	if err != nil {
		return nil, errors.DatabaseError(err, "connect to "+opts.Driver)
	}

	if opts.Driver == DriverSQLite {
		// one connection, so ":memory:" databases are shared by every statement
		db.SetMaxOpenConns(1)
		db.Exec("PRAGMA journal_mode = WAL")
	} else {
		db.SetMaxOpenConns(4)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	s := &SQLSink{
		db:        db,
		logger:    logger,
		runID:     opts.RunID,
		batchSize: opts.BatchSize,
	}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLSink) initSchema(ctx context.Context) error {
	// lib/pq needs one statement per Exec
	for _, stmt := range strings.Split(sqlSchema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errors.DatabaseError(err, "init schema")
		}
	}
	_, err := s.db.NamedExecContext(ctx, insertRun, runRecord{ID: s.runID})
	if err != nil {
		return errors.DatabaseError(err, "register run")
	}
	return nil
}

// WriteRow buffers a row and flushes a full batch in one transaction
func (s *SQLSink) WriteRow(ctx context.Context, row models.FixRow) error {
	s.pending = append(s.pending, toAnnotationRecord(s.runID, row))
	if len(s.pending) >= s.batchSize {
		return s.flush(ctx)
	}
	return nil
}

func (s *SQLSink) flush(ctx context.Context) error {
	if len(s.pending) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.DatabaseError(err, "begin transaction")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareNamedContext(ctx, upsertAnnotation)
	if err != nil {
		return errors.DatabaseError(err, "prepare annotation insert")
	}
	defer stmt.Close()

	for _, rec := range s.pending {
		if _, err := stmt.ExecContext(ctx, rec); err != nil {
			return errors.DatabaseError(err, "insert annotation "+rec.Hash)
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.DatabaseError(err, "commit annotations")
	}

	s.written += len(s.pending)
	s.logger.WithFields(logrus.Fields{
		"run_id": s.runID,
		"batch":  len(s.pending),
		"total":  s.written,
	}).Debug("Stored annotation batch")
	s.pending = s.pending[:0]
	return nil
}

// FinishRun flushes pending rows and stores the run counters
func (s *SQLSink) FinishRun(ctx context.Context, run Run) error {
	if err := s.flush(ctx); err != nil {
		return err
	}
	counters, err := json.Marshal(run.Counters)
	if err != nil {
		return errors.InternalErrorf("marshal counters: %v", err)
	}
	rec := runRecord{
		ID:         s.runID,
		Input:      sql.NullString{String: run.Input, Valid: true},
		StartedAt:  sql.NullString{String: run.StartedAt.Format(storedTimeLayout), Valid: true},
		FinishedAt: sql.NullString{String: run.FinishedAt.Format(storedTimeLayout), Valid: true},
		Commits:    sql.NullInt64{Int64: int64(run.Commits), Valid: true},
		Counters:   sql.NullString{String: string(counters), Valid: true},
	}
	if _, err := s.db.NamedExecContext(ctx, upsertRun, rec); err != nil {
		return errors.DatabaseError(err, "store run")
	}
	return nil
}

// Annotations returns the stored rows of a run ordered by hash
func (s *SQLSink) Annotations(ctx context.Context, runID string) ([]models.FixRow, error) {
	var recs []annotationRecord
	query := s.db.Rebind(`SELECT * FROM fix_annotations WHERE run_id = ? ORDER BY hash`)
	if err := s.db.SelectContext(ctx, &recs, query, runID); err != nil {
		return nil, errors.DatabaseError(err, "query annotations")
	}

	rows := make([]models.FixRow, 0, len(recs))
	for _, rec := range recs {
		row, err := rec.toFixRow()
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Kind names the store in consistency reports
func (s *SQLSink) Kind() string { return "sql" }

// CountFixes returns the number of stored rows of a run that carry a fix
func (s *SQLSink) CountFixes(ctx context.Context, runID string) (int64, error) {
	var n int64
	query := s.db.Rebind(`SELECT COUNT(*) FROM fix_annotations WHERE run_id = ? AND fixes_hash IS NOT NULL`)
	if err := s.db.GetContext(ctx, &n, query, runID); err != nil {
		return 0, errors.DatabaseError(err, "count fixes")
	}
	return n, nil
}

// GetRun loads stored run metadata
func (s *SQLSink) GetRun(ctx context.Context, runID string) (Run, error) {
	var rec runRecord
	query := s.db.Rebind(`SELECT * FROM runs WHERE id = ?`)
	if err := s.db.GetContext(ctx, &rec, query, runID); err != nil {
		if err == sql.ErrNoRows {
			return Run{}, ErrRunNotFound
		}
		return Run{}, errors.DatabaseError(err, "query run")
	}

	run := Run{ID: rec.ID, Input: rec.Input.String, Commits: int(rec.Commits.Int64)}
	if rec.StartedAt.Valid {
		run.StartedAt, _ = time.Parse(storedTimeLayout, rec.StartedAt.String)
	}
	if rec.FinishedAt.Valid {
		run.FinishedAt, _ = time.Parse(storedTimeLayout, rec.FinishedAt.String)
	}
	if rec.Counters.Valid {
		if err := json.Unmarshal([]byte(rec.Counters.String), &run.Counters); err != nil {
			return Run{}, errors.DatabaseError(err, "decode run counters")
		}
	}
	return run, nil
}

// Close flushes pending rows and closes the connection
func (s *SQLSink) Close(ctx context.Context) error {
	err := s.flush(ctx)
	if cerr := s.db.Close(); err == nil && cerr != nil {
		err = errors.DatabaseError(cerr, "close database")
	}
	return err
}

func toAnnotationRecord(runID string, row models.FixRow) annotationRecord {
	rec := annotationRecord{
		RunID: runID,
		Hash:  row.Hash,
		Date:  row.Date.Format(storedTimeLayout),
	}
	if row.FixesHash != "" {
		rec.FixesHash = sql.NullString{String: row.FixesHash, Valid: true}
	}
	if row.FixesDate != nil {
		rec.FixesDate = sql.NullString{String: row.FixesDate.Format(storedTimeLayout), Valid: true}
	}
	if row.FixesCommits != nil {
		rec.FixesCommits = sql.NullInt64{Int64: int64(*row.FixesCommits), Valid: true}
	}
	if row.FixesSeconds != nil {
		rec.FixesSeconds = sql.NullInt64{Int64: *row.FixesSeconds, Valid: true}
	}
	return rec
}

func (rec annotationRecord) toFixRow() (models.FixRow, error) {
	date, err := time.Parse(storedTimeLayout, rec.Date)
	if err != nil {
		return models.FixRow{}, errors.DatabaseError(err, "decode date of "+rec.Hash)
	}
	row := models.FixRow{Hash: rec.Hash, Date: date, FixesHash: rec.FixesHash.String}
	if rec.FixesDate.Valid {
		d, err := time.Parse(storedTimeLayout, rec.FixesDate.String)
		if err != nil {
			return models.FixRow{}, errors.DatabaseError(err, "decode fixes date of "+rec.Hash)
		}
		row.FixesDate = &d
	}
	if rec.FixesCommits.Valid {
		n := int(rec.FixesCommits.Int64)
		row.FixesCommits = &n
	}
	if rec.FixesSeconds.Valid {
		n := rec.FixesSeconds.Int64
		row.FixesSeconds = &n
	}
	return row, nil
}
