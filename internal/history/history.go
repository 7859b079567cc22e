// Package history keeps a SQLite audit log of processed pops. Writes are
// best-effort: a failed insert is logged by the caller and never fails the
// pop itself.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Entry is one processed pop.
type Entry struct {
	JobID       string
	URL         string
	Action      string // new-tab | new-window | app-window | system-open
	Status      string // launched | failed
	Error       string
	EnqueuedAt  time.Time
	CompletedAt time.Time
}

// Store wraps the pop_log table.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the SQLite database at path and ensures
// the pop_log table exists.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(pctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}

	if err := bootstrap(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record appends one processed pop to the log.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.JobID == "" {
		return fmt.Errorf("job id is empty")
	}

	var errVal any
	if e.Error != "" {
		errVal = e.Error
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO pop_log(id, url, action, status, error, enqueued_at, completed_at)
VALUES(?, ?, ?, ?, ?, ?, ?);
`, e.JobID, e.URL, e.Action, e.Status, errVal,
		e.EnqueuedAt.UTC().Format(time.RFC3339Nano),
		e.CompletedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert pop_log: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT id, url, action, status, error, enqueued_at, completed_at
FROM pop_log
ORDER BY completed_at DESC, rowid DESC
LIMIT ?;
`, limit)
	if err != nil {
		return nil, fmt.Errorf("query pop_log: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e            Entry
			errS         sql.NullString
			enqueuedAtS  string
			completedAtS string
		)
		if err := rows.Scan(&e.JobID, &e.URL, &e.Action, &e.Status, &errS, &enqueuedAtS, &completedAtS); err != nil {
			return nil, fmt.Errorf("scan pop_log: %w", err)
		}
		if errS.Valid {
			e.Error = errS.String
		}
		if t, err := time.Parse(time.RFC3339Nano, enqueuedAtS); err == nil {
			e.EnqueuedAt = t
		}
		if t, err := time.Parse(time.RFC3339Nano, completedAtS); err == nil {
			e.CompletedAt = t
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func bootstrap(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS pop_log (
  id           TEXT PRIMARY KEY,
  url          TEXT NOT NULL,
  action       TEXT NOT NULL,
  status       TEXT NOT NULL,
  error        TEXT,
  enqueued_at  TEXT NOT NULL,
  completed_at TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS pop_log_completed_at_idx ON pop_log(completed_at);`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap sqlite: %w", err)
		}
	}
	return nil
}
