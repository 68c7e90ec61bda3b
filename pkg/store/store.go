package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofrs/flock"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/queuectl/queuectl/pkg/logging"
)

// busyRetryBudget bounds how long transient SQLITE_BUSY conditions are
// retried internally before they surface as ErrUnavailable.
const busyRetryBudget = 5 * time.Second

// timeFormat is a fixed-width RFC 3339 layout. Trailing zeros are kept so
// that the TEXT columns compare lexicographically in chronological order,
// which the claim predicate relies on. All persisted times are UTC.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// orphanGrace is added to a job's timeout before a processing row without a
// live worker is considered orphaned.
const orphanGrace = 30 * time.Second

// Store is the single source of truth: a SQLite database holding jobs and
// the persisted queue configuration. All state transitions go through it.
type Store struct {
	db       *sql.DB
	validate *validator.Validate
	log      zerolog.Logger
}

// Open opens (creating if necessary) the database at path, runs schema
// migrations, and sweeps orphaned rows left behind by crashed workers.
//
// Migration and the orphan sweep are serialized across processes with a
// sidecar lock file, so several worker pools can start against the same
// database concurrently.
func Open(ctx context.Context, path string, now time.Time) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// WAL journaling for concurrent readers, busy_timeout as the first
	// line of defense against writer contention.
	for _, pragma := range []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA busy_timeout=5000;`,
		`PRAGMA foreign_keys=ON;`,
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %s: %w", strings.TrimSuffix(pragma, ";"), err)
		}
	}

	s := &Store{
		db:       db,
		validate: validator.New(),
		log:      logging.NewLogger("store", zerolog.InfoLevel),
	}

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		db.Close()
		return nil, fmt.Errorf("acquire store lock: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	reaped, err := s.ReapOrphans(ctx, now)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("reap orphans: %w", err)
	}
	if reaped > 0 {
		s.log.Warn().Int("count", reaped).Msg("reset orphaned processing jobs")
	}

	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the schema if absent. It is idempotent.
func (s *Store) migrate(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS jobs (
  id TEXT PRIMARY KEY,
  command TEXT NOT NULL,
  priority INTEGER NOT NULL DEFAULT 0,
  timeout INTEGER NOT NULL DEFAULT 300,
  max_retries INTEGER NOT NULL DEFAULT 3,
  attempts INTEGER NOT NULL DEFAULT 0,
  state TEXT NOT NULL DEFAULT 'pending'
    CHECK (state IN ('pending','processing','completed','failed','dead')),
  run_at TEXT NOT NULL,
  next_attempt_at TEXT NOT NULL,
  claimed_by TEXT,
  started_at TEXT,
  finished_at TEXT,
  exit_code INTEGER,
  stdout TEXT NOT NULL DEFAULT '',
  stderr TEXT NOT NULL DEFAULT '',
  error TEXT NOT NULL DEFAULT '',
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_jobs_claim
  ON jobs(state, next_attempt_at, priority, created_at);

CREATE TABLE IF NOT EXISTS config (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updated_at TEXT
);

INSERT OR IGNORE INTO config(key,value) VALUES ('backoff_base','2');
INSERT OR IGNORE INTO config(key,value) VALUES ('default_priority','0');
INSERT OR IGNORE INTO config(key,value) VALUES ('default_timeout','300');
INSERT OR IGNORE INTO config(key,value) VALUES ('max_retries','3');
`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// withRetry runs op, retrying with capped backoff while the database
// reports a busy condition. After the retry budget is exhausted the busy
// error is wrapped in ErrUnavailable.
func (s *Store) withRetry(ctx context.Context, op func() error) error {
	deadline := time.Now().Add(busyRetryBudget)
	delay := 10 * time.Millisecond

	for {
		err := op()
		if err == nil {
			return nil
		}
		if isClosed(err) {
			return fmt.Errorf("%w: %v", ErrClosed, err)
		}
		if !isBusy(err) {
			return err
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if delay > 500*time.Millisecond {
			delay = 500 * time.Millisecond
		}
	}
}

// isClosed reports whether err indicates the database handle is gone.
func isClosed(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, sql.ErrConnDone) ||
		strings.Contains(err.Error(), "database is closed")
}

// isBusy reports whether err is a transient SQLite contention error.
func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}

// isConstraint reports whether err is a unique-constraint violation.
func isConstraint(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "SQLITE_CONSTRAINT")
}

// ts renders a timestamp in the persisted format.
func ts(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

// parseTS parses a persisted timestamp. Zero time on empty input.
func parseTS(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeFormat, s)
	if err != nil {
		// Tolerate rows written by older tools with plain RFC 3339.
		t, err = time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}
		}
	}
	return t.UTC()
}

// parseNullTS parses a nullable timestamp column.
func parseNullTS(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t := parseTS(ns.String)
	return &t
}
