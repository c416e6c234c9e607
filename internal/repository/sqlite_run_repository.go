package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/iconidentify/sheetgrab/internal/domain"
)

// migrations are applied in order; the index of the last applied one is
// kept in PRAGMA user_version.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		destination TEXT NOT NULL,
		stem TEXT NOT NULL,
		url_column TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		completed INTEGER NOT NULL DEFAULT 0,
		total INTEGER NOT NULL DEFAULT 0,
		message TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		started_at INTEGER NOT NULL,
		finished_at INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);`,

	`CREATE TABLE IF NOT EXISTS run_outcomes (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		status TEXT NOT NULL,
		row_index INTEGER NOT NULL,
		url TEXT NOT NULL,
		path TEXT NOT NULL DEFAULT '',
		filename TEXT NOT NULL DEFAULT '',
		bytes INTEGER NOT NULL DEFAULT 0,
		reason TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (run_id, seq)
	);`,
}

// SQLiteRunRepository implements RunRepository on a SQLite file.
type SQLiteRunRepository struct {
	db *sql.DB
}

// NewSQLiteRunRepository opens (creating if needed) the database at path
// and applies pending migrations.
func NewSQLiteRunRepository(path string) (*SQLiteRunRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection serializes writers and keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteRunRepository{db: db}, nil
}

func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for i := version; i < len(migrations); i++ {
		if _, err := db.Exec(migrations[i]); err != nil {
			return fmt.Errorf("apply migration %d: %w", i+1, err)
		}
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", i+1)); err != nil {
			return fmt.Errorf("record migration %d: %w", i+1, err)
		}
	}
	return nil
}

// Close closes the database.
func (r *SQLiteRunRepository) Close() error {
	return r.db.Close()
}

// Save upserts the run and replaces its outcomes in one transaction.
func (r *SQLiteRunRepository) Save(ctx context.Context, run *domain.Run) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var finished sql.NullInt64
	if run.FinishedAt != nil {
		finished = sql.NullInt64{Int64: run.FinishedAt.UnixNano(), Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, source, destination, stem, url_column, status,
			completed, total, message, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source = excluded.source,
			destination = excluded.destination,
			stem = excluded.stem,
			url_column = excluded.url_column,
			status = excluded.status,
			completed = excluded.completed,
			total = excluded.total,
			message = excluded.message,
			error = excluded.error,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at
	`, string(run.ID), run.Source, run.Destination, run.Stem, run.URLColumn, string(run.Status),
		run.Progress.Completed, run.Progress.Total, run.Progress.Message, run.Error,
		run.StartedAt.UnixNano(), finished)
	if err != nil {
		return fmt.Errorf("upsert run: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM run_outcomes WHERE run_id = ?", string(run.ID)); err != nil {
		return fmt.Errorf("clear outcomes: %w", err)
	}

	for i, o := range run.Outcomes {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO run_outcomes (run_id, seq, status, row_index, url, path, filename, bytes, reason)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, string(run.ID), i, string(o.Status), o.RowIndex, o.URL, o.Path, o.Filename, o.Bytes, o.Reason)
		if err != nil {
			return fmt.Errorf("insert outcome %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

const runColumns = `id, source, destination, stem, url_column, status,
	completed, total, message, error, started_at, finished_at`

// Get retrieves a run by ID.
func (r *SQLiteRunRepository) Get(ctx context.Context, id domain.RunID) (*domain.Run, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE id = ?", string(id))
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}

	if run.Outcomes, err = r.outcomes(ctx, run.ID); err != nil {
		return nil, err
	}
	return run, nil
}

// List returns runs newest first.
func (r *SQLiteRunRepository) List(ctx context.Context, limit, offset int) ([]*domain.Run, error) {
	if limit <= 0 {
		limit = -1
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		ORDER BY started_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}

	runs := make([]*domain.Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	for _, run := range runs {
		if run.Outcomes, err = r.outcomes(ctx, run.ID); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

// Count returns the total number of runs.
func (r *SQLiteRunRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM runs").Scan(&n); err != nil {
		return 0, fmt.Errorf("count runs: %w", err)
	}
	return n, nil
}

func (r *SQLiteRunRepository) outcomes(ctx context.Context, id domain.RunID) ([]domain.Outcome, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT status, row_index, url, path, filename, bytes, reason
		FROM run_outcomes
		WHERE run_id = ?
		ORDER BY seq
	`, string(id))
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	var out []domain.Outcome
	for rows.Next() {
		var o domain.Outcome
		var status string
		if err := rows.Scan(&status, &o.RowIndex, &o.URL, &o.Path, &o.Filename, &o.Bytes, &o.Reason); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		o.Status = domain.OutcomeStatus(status)
		out = append(out, o)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(s rowScanner) (*domain.Run, error) {
	var (
		run      domain.Run
		id       string
		status   string
		started  int64
		finished sql.NullInt64
	)
	err := s.Scan(&id, &run.Source, &run.Destination, &run.Stem, &run.URLColumn, &status,
		&run.Progress.Completed, &run.Progress.Total, &run.Progress.Message, &run.Error,
		&started, &finished)
	if err != nil {
		return nil, err
	}

	run.ID = domain.RunID(id)
	run.Status = domain.RunStatus(status)
	run.StartedAt = time.Unix(0, started)
	if finished.Valid {
		t := time.Unix(0, finished.Int64)
		run.FinishedAt = &t
	}
	return &run, nil
}
