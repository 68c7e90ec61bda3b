package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/queuectl/queuectl/pkg/job"
)

// jobColumns is the column list used by every job read, in scanJob order.
const jobColumns = `id, command, priority, timeout, max_retries, attempts, state,
  run_at, next_attempt_at, claimed_by, started_at, finished_at,
  exit_code, stdout, stderr, error, created_at, updated_at`

// rowScanner abstracts *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(r rowScanner) (*job.Job, error) {
	var (
		j                  job.Job
		runAt, nextAt      string
		createdAt, updated string
		claimedBy          sql.NullString
		startedAt          sql.NullString
		finishedAt         sql.NullString
		exitCode           sql.NullInt64
	)

	err := r.Scan(
		&j.ID, &j.Command, &j.Priority, &j.TimeoutSec, &j.MaxRetries, &j.Attempts, &j.State,
		&runAt, &nextAt, &claimedBy, &startedAt, &finishedAt,
		&exitCode, &j.Stdout, &j.Stderr, &j.Error, &createdAt, &updated,
	)
	if err != nil {
		return nil, err
	}

	j.RunAt = parseTS(runAt)
	j.NextAttemptAt = parseTS(nextAt)
	j.CreatedAt = parseTS(createdAt)
	j.UpdatedAt = parseTS(updated)
	j.StartedAt = parseNullTS(startedAt)
	j.FinishedAt = parseNullTS(finishedAt)
	if claimedBy.Valid {
		j.ClaimedBy = claimedBy.String
	}
	if exitCode.Valid {
		code := int(exitCode.Int64)
		j.ExitCode = &code
	}

	return &j, nil
}

// Insert atomically inserts a new job row. A conflicting id yields
// ErrDuplicateID regardless of the existing job's state: re-running a
// finished command requires a fresh id (or a DLQ retry for dead jobs).
func (s *Store) Insert(ctx context.Context, j *job.Job) error {
	return s.withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
INSERT INTO jobs (id, command, priority, timeout, max_retries, attempts, state,
                  run_at, next_attempt_at, stdout, stderr, error, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, '', '', '', ?, ?)
`, j.ID, j.Command, j.Priority, j.TimeoutSec, j.MaxRetries, j.Attempts, string(j.State),
			ts(j.RunAt), ts(j.NextAttemptAt), ts(j.CreatedAt), ts(j.UpdatedAt))

		if isConstraint(err) {
			return NewDuplicateIDError(j.ID)
		}
		if err != nil {
			return fmt.Errorf("insert job: %w", err)
		}
		return nil
	})
}

// GetByID returns a snapshot of one job.
func (s *Store) GetByID(ctx context.Context, id string) (*job.Job, error) {
	var out *job.Job
	err := s.withRetry(ctx, func() error {
		j, err := scanJob(s.db.QueryRowContext(ctx,
			`SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return NewNotFoundError(id)
		}
		if err != nil {
			return fmt.Errorf("get job: %w", err)
		}
		out = j
		return nil
	})
	return out, err
}

// List returns jobs, optionally filtered by state, newest first.
func (s *Store) List(ctx context.Context, state job.State, limit int) ([]*job.Job, error) {
	if state != "" && !state.Valid() {
		return nil, NewInvalidInputError("state", fmt.Sprintf("unknown state %q", state))
	}
	if limit <= 0 {
		limit = 50
	}

	q := `SELECT ` + jobColumns + ` FROM jobs`
	args := []any{}
	if state != "" {
		q += ` WHERE state = ?`
		args = append(args, string(state))
	}
	q += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	var out []*job.Job
	err := s.withRetry(ctx, func() error {
		rows, err := s.db.QueryContext(ctx, q, args...)
		if err != nil {
			return fmt.Errorf("list jobs: %w", err)
		}
		defer rows.Close()

		out = out[:0]
		for rows.Next() {
			j, err := scanJob(rows)
			if err != nil {
				return fmt.Errorf("scan job: %w", err)
			}
			out = append(out, j)
		}
		return rows.Err()
	})
	return out, err
}

// ClaimNext atomically claims the next ready job for workerID.
//
// Ready means pending, or failed with its retry deadline reached, and past
// its run_at. Candidates are ordered priority DESC then created_at ASC. The
// guarded UPDATE defeats the race where two workers select the same
// candidate: the loser updates zero rows and reports no job.
func (s *Store) ClaimNext(ctx context.Context, workerID string, now time.Time) (*job.Job, error) {
	var claimed *job.Job
	err := s.withRetry(ctx, func() error {
		claimed = nil

		tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
		if err != nil {
			return fmt.Errorf("begin claim tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		var id string
		err = tx.QueryRowContext(ctx, `
SELECT id FROM jobs
WHERE (state = 'pending' OR state = 'failed')
  AND next_attempt_at <= ?
  AND run_at <= ?
ORDER BY priority DESC, created_at ASC
LIMIT 1
`, ts(now), ts(now)).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("select candidate: %w", err)
		}

		res, err := tx.ExecContext(ctx, `
UPDATE jobs
SET state = 'processing',
    claimed_by = ?,
    started_at = ?,
    attempts = attempts + 1,
    updated_at = ?
WHERE id = ? AND state IN ('pending','failed')
`, workerID, ts(now), ts(now), id)
		if err != nil {
			return fmt.Errorf("claim update: %w", err)
		}
		if n, _ := res.RowsAffected(); n != 1 {
			// Another worker won the race for this row.
			return nil
		}

		j, err := scanJob(tx.QueryRowContext(ctx,
			`SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id))
		if err != nil {
			return fmt.Errorf("reload claimed job: %w", err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit claim: %w", err)
		}
		claimed = j
		return nil
	})
	return claimed, err
}

// Outcome carries the captured result of one finished attempt.
type Outcome struct {
	ExitCode   *int
	Stdout     string
	Stderr     string
	Error      string // empty on success
	FinishedAt time.Time
}

// Finalize transitions processing → completed and persists the outcome of
// the successful attempt.
func (s *Store) Finalize(ctx context.Context, id string, oc Outcome) error {
	return s.withRetry(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `
UPDATE jobs
SET state = 'completed',
    claimed_by = NULL,
    finished_at = ?,
    exit_code = ?,
    stdout = ?,
    stderr = ?,
    error = '',
    updated_at = ?
WHERE id = ? AND state = 'processing'
`, ts(oc.FinishedAt), nullInt(oc.ExitCode), oc.Stdout, oc.Stderr, ts(oc.FinishedAt), id)
		if err != nil {
			return fmt.Errorf("finalize: %w", err)
		}
		return requireOneRow(res, id)
	})
}

// RescheduleRetry transitions processing → failed and schedules the next
// attempt at nextAttemptAt.
func (s *Store) RescheduleRetry(ctx context.Context, id string, oc Outcome, nextAttemptAt time.Time) error {
	return s.withRetry(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `
UPDATE jobs
SET state = 'failed',
    claimed_by = NULL,
    finished_at = ?,
    exit_code = ?,
    stdout = ?,
    stderr = ?,
    error = ?,
    next_attempt_at = ?,
    updated_at = ?
WHERE id = ? AND state = 'processing'
`, ts(oc.FinishedAt), nullInt(oc.ExitCode), oc.Stdout, oc.Stderr, oc.Error,
			ts(nextAttemptAt), ts(oc.FinishedAt), id)
		if err != nil {
			return fmt.Errorf("reschedule retry: %w", err)
		}
		return requireOneRow(res, id)
	})
}

// MoveToDead transitions processing → dead. The job stays visible in the
// DLQ until retried or deleted.
func (s *Store) MoveToDead(ctx context.Context, id string, oc Outcome) error {
	return s.withRetry(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `
UPDATE jobs
SET state = 'dead',
    claimed_by = NULL,
    finished_at = ?,
    exit_code = ?,
    stdout = ?,
    stderr = ?,
    error = ?,
    updated_at = ?
WHERE id = ? AND state = 'processing'
`, ts(oc.FinishedAt), nullInt(oc.ExitCode), oc.Stdout, oc.Stderr, oc.Error, ts(oc.FinishedAt), id)
		if err != nil {
			return fmt.Errorf("move to dead: %w", err)
		}
		return requireOneRow(res, id)
	})
}

// RetryFromDLQ transitions dead → pending, resetting the retry budget. It
// fails with ErrNotFound if no dead job has the given id: a second retry of
// the same id is therefore an error, not a no-op.
func (s *Store) RetryFromDLQ(ctx context.Context, id string, now time.Time) error {
	return s.withRetry(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `
UPDATE jobs
SET state = 'pending',
    attempts = 0,
    claimed_by = NULL,
    next_attempt_at = ?,
    error = '',
    updated_at = ?
WHERE id = ? AND state = 'dead'
`, ts(now), ts(now), id)
		if err != nil {
			return fmt.Errorf("retry from dlq: %w", err)
		}

		if n, _ := res.RowsAffected(); n != 1 {
			// Distinguish "no such job" from "job exists but is not dead".
			var state string
			err := s.db.QueryRowContext(ctx, `SELECT state FROM jobs WHERE id = ?`, id).Scan(&state)
			if errors.Is(err, sql.ErrNoRows) {
				return NewNotFoundError(id)
			}
			if err != nil {
				return fmt.Errorf("retry from dlq: %w", err)
			}
			return NewInvalidInputError("id", fmt.Sprintf("job %q is %s, not dead", id, state))
		}
		return nil
	})
}

// ReapOrphans resets processing rows whose worker disappeared: any row
// whose started_at is older than its timeout plus a grace period becomes
// failed with error "orphaned" and is immediately eligible for re-claim.
func (s *Store) ReapOrphans(ctx context.Context, now time.Time) (int, error) {
	type candidate struct {
		id        string
		startedAt time.Time
		timeout   int
	}

	var reaped int
	err := s.withRetry(ctx, func() error {
		rows, err := s.db.QueryContext(ctx,
			`SELECT id, started_at, timeout FROM jobs WHERE state = 'processing'`)
		if err != nil {
			return fmt.Errorf("scan processing jobs: %w", err)
		}

		var stale []candidate
		for rows.Next() {
			var c candidate
			var startedAt sql.NullString
			if err := rows.Scan(&c.id, &startedAt, &c.timeout); err != nil {
				rows.Close()
				return fmt.Errorf("scan orphan candidate: %w", err)
			}
			if !startedAt.Valid {
				continue
			}
			c.startedAt = parseTS(startedAt.String)
			ttl := time.Duration(c.timeout)*time.Second + orphanGrace
			if now.Sub(c.startedAt) > ttl {
				stale = append(stale, c)
			}
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		reaped = 0
		for _, c := range stale {
			res, err := s.db.ExecContext(ctx, `
UPDATE jobs
SET state = 'failed',
    claimed_by = NULL,
    error = 'orphaned',
    next_attempt_at = ?,
    updated_at = ?
WHERE id = ? AND state = 'processing'
`, ts(now), ts(now), c.id)
			if err != nil {
				return fmt.Errorf("reap %s: %w", c.id, err)
			}
			if n, _ := res.RowsAffected(); n == 1 {
				reaped++
			}
		}
		return nil
	})
	return reaped, err
}

// Aggregates are the read-only rollups behind status and metrics.
type Aggregates struct {
	Counts            map[job.State]int `json:"counts"`
	TotalJobs         int               `json:"total_jobs"`
	AvgRuntimeSeconds float64           `json:"avg_runtime_seconds"`
}

// Aggregate computes per-state counts and the mean completed runtime. It is
// a pure snapshot read and never blocks writers for long.
func (s *Store) Aggregate(ctx context.Context) (*Aggregates, error) {
	agg := &Aggregates{Counts: map[job.State]int{}}
	for _, st := range job.States {
		agg.Counts[st] = 0
	}

	err := s.withRetry(ctx, func() error {
		rows, err := s.db.QueryContext(ctx, `SELECT state, COUNT(*) FROM jobs GROUP BY state`)
		if err != nil {
			return fmt.Errorf("count states: %w", err)
		}
		total := 0
		for rows.Next() {
			var st string
			var n int
			if err := rows.Scan(&st, &n); err != nil {
				rows.Close()
				return err
			}
			agg.Counts[job.State(st)] = n
			total += n
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		agg.TotalJobs = total

		// Runtime average computed in Go: the fixed-width TEXT timestamps
		// are not a format SQLite's date functions are guaranteed to take.
		runs, err := s.db.QueryContext(ctx, `
SELECT started_at, finished_at FROM jobs
WHERE state = 'completed' AND started_at IS NOT NULL AND finished_at IS NOT NULL
`)
		if err != nil {
			return fmt.Errorf("completed runtimes: %w", err)
		}
		defer runs.Close()

		var sum float64
		var n int
		for runs.Next() {
			var start, finish string
			if err := runs.Scan(&start, &finish); err != nil {
				return err
			}
			d := parseTS(finish).Sub(parseTS(start))
			if d < 0 {
				continue
			}
			sum += d.Seconds()
			n++
		}
		if n > 0 {
			agg.AvgRuntimeSeconds = sum / float64(n)
		}
		return runs.Err()
	})
	return agg, err
}

// requireOneRow converts a zero-row guarded update into ErrNotFound. The
// usual cause is an orphan sweep or competing finalize that moved the row
// out of processing first.
func requireOneRow(res sql.Result, id string) error {
	if n, _ := res.RowsAffected(); n != 1 {
		return NewNotFoundError(id)
	}
	return nil
}

// nullInt converts an optional exit code for persistence.
func nullInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}
