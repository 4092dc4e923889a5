package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/wlmoi/chipster/internal/logging"
	"github.com/wlmoi/chipster/internal/pipeline"
)

const archiveSchema = `
CREATE TABLE IF NOT EXISTS runs (
	id             TEXT PRIMARY KEY,
	query          TEXT NOT NULL,
	terminal       TEXT NOT NULL,
	failure        TEXT NOT NULL DEFAULT '',
	retry_count    INTEGER NOT NULL,
	retry_budget   INTEGER NOT NULL,
	validation_log TEXT NOT NULL,
	storage_dir    TEXT NOT NULL DEFAULT '',
	started_at     TIMESTAMP NOT NULL,
	finished_at    TIMESTAMP
);
CREATE TABLE IF NOT EXISTS changes (
	run_id   TEXT NOT NULL REFERENCES runs(id),
	ordinal  INTEGER NOT NULL,
	artifact TEXT NOT NULL,
	noop     INTEGER NOT NULL,
	diff     TEXT NOT NULL,
	PRIMARY KEY (run_id, ordinal)
);
`

// Archive persists terminal run states to SQLite for audit. Runs are written
// once, after they leave RUNNING; the archive is never read back by the
// pipeline itself.
type Archive struct {
	db *sql.DB
}

// OpenArchive opens (creating if needed) the run archive at path. The archive
// is safe for concurrent SaveRun calls: writes go through a single connection
// and the driver waits out transient lock contention instead of failing with
// a busy error.
func OpenArchive(path string) (*Archive, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(archiveSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize archive schema: %w", err)
	}
	return &Archive{db: db}, nil
}

// Close releases the underlying database.
func (a *Archive) Close() error { return a.db.Close() }

// SaveRun records a run and its change log.
func (a *Archive) SaveRun(ctx context.Context, st *pipeline.RunState) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin archive tx: %w", err)
	}
	defer tx.Rollback()

	var finished any
	if !st.FinishedAt.IsZero() {
		finished = st.FinishedAt
	}
	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs
		(id, query, terminal, failure, retry_count, retry_budget, validation_log, storage_dir, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		st.ID, st.Query, st.Terminal.String(), st.Failure,
		st.RetryCount, st.RetryBudget, st.ValidationLog, st.StorageDir,
		st.StartedAt, finished)
	if err != nil {
		return fmt.Errorf("failed to archive run %s: %w", st.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM changes WHERE run_id = ?`, st.ID); err != nil {
		return fmt.Errorf("failed to reset change log for %s: %w", st.ID, err)
	}
	for _, c := range st.Changes.Entries() {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO changes (run_id, ordinal, artifact, noop, diff)
			VALUES (?, ?, ?, ?, ?)`,
			st.ID, c.Ordinal, c.Artifact, boolToInt(c.NoOp), c.Diff)
		if err != nil {
			return fmt.Errorf("failed to archive change #%d for %s: %w", c.Ordinal, st.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit archive tx: %w", err)
	}
	logging.Get(logging.CategoryStore).Infof("archived run %s (%s)", st.ID, st.Terminal)
	return nil
}

// RunSummary is one archived run, as listed by ListRuns.
type RunSummary struct {
	ID          string
	Query       string
	Terminal    string
	RetryCount  int
	RetryBudget int
	Corrections int
	StartedAt   time.Time
}

// ListRuns returns archived runs, most recent first.
func (a *Archive) ListRuns(ctx context.Context) ([]RunSummary, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT r.id, r.query, r.terminal, r.retry_count, r.retry_budget,
		       (SELECT COUNT(*) FROM changes c WHERE c.run_id = r.id),
		       r.started_at
		FROM runs r
		ORDER BY r.started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var s RunSummary
		if err := rows.Scan(&s.ID, &s.Query, &s.Terminal, &s.RetryCount,
			&s.RetryBudget, &s.Corrections, &s.StartedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
