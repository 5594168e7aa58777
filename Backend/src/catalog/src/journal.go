package main

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Journal records every executed step of every run in a local SQLite file.
// A nil *Journal records nothing.
type Journal struct {
	DB *sql.DB
}

type StepRun struct {
	RunID     string
	Step      string
	Section   string
	Status    string // ok | failed
	Duration  time.Duration
	Error     string
	StartedAt time.Time
}

func OpenJournal(path string) (*Journal, error) {
	if path == "" {
		return nil, nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	j := &Journal{DB: db}
	if err := j.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) migrate(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS step_runs(
  id          INTEGER PRIMARY KEY AUTOINCREMENT,
  run_id      TEXT    NOT NULL,
  step        TEXT    NOT NULL,
  section     TEXT    NOT NULL,
  status      TEXT    NOT NULL,
  duration_ms INTEGER NOT NULL DEFAULT 0,
  error       TEXT    NOT NULL DEFAULT '',
  started_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_step_runs_run ON step_runs(run_id);
`
	_, err := j.DB.ExecContext(ctx, schema)
	return err
}

func (j *Journal) Record(ctx context.Context, sr StepRun) error {
	if j == nil {
		return nil
	}
	_, err := j.DB.ExecContext(ctx, `
INSERT INTO step_runs(run_id,step,section,status,duration_ms,error,started_at)
VALUES(?,?,?,?,?,?,?)`,
		sr.RunID, sr.Step, sr.Section, sr.Status, sr.Duration.Milliseconds(), sr.Error, sr.StartedAt.Unix())
	return err
}

// Runs lists the recorded steps of one run in execution order.
func (j *Journal) Runs(ctx context.Context, runID string) ([]StepRun, error) {
	if j == nil {
		return nil, nil
	}
	rows, err := j.DB.QueryContext(ctx, `
SELECT run_id,step,section,status,duration_ms,error,started_at
FROM step_runs WHERE run_id=? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StepRun
	for rows.Next() {
		var sr StepRun
		var ms, started int64
		if err := rows.Scan(&sr.RunID, &sr.Step, &sr.Section, &sr.Status, &ms, &sr.Error, &started); err != nil {
			return nil, err
		}
		sr.Duration = time.Duration(ms) * time.Millisecond
		sr.StartedAt = time.Unix(started, 0)
		out = append(out, sr)
	}
	return out, rows.Err()
}

func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	return j.DB.Close()
}
