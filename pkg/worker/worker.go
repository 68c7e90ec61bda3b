// Package worker contains the claim → execute → finalize loop and the pool
// supervisor that owns worker lifetimes.
package worker

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/queuectl/queuectl/pkg/clock"
	"github.com/queuectl/queuectl/pkg/executor"
	"github.com/queuectl/queuectl/pkg/job"
	"github.com/queuectl/queuectl/pkg/logging"
	"github.com/queuectl/queuectl/pkg/manager"
	"github.com/queuectl/queuectl/pkg/store"
)

// defaultPollInterval is the sleep between empty claim attempts, jittered
// by up to half its value to spread competing workers apart.
const defaultPollInterval = 300 * time.Millisecond

// Worker claims ready jobs one at a time and turns executor outcomes into
// durable state transitions.
type Worker struct {
	id    string
	store *store.Store
	exec  *executor.Executor
	clock clock.Clock
	poll  time.Duration
	logs  *manager.LogWriter
	log   zerolog.Logger
}

// Option configures a Worker.
type Option func(*Worker)

// WithClock overrides the wall clock (tests).
func WithClock(c clock.Clock) Option {
	return func(w *Worker) { w.clock = c }
}

// WithPollInterval overrides the empty-queue poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(w *Worker) { w.poll = d }
}

// WithLogWriter attaches a per-job log file writer.
func WithLogWriter(lw *manager.LogWriter) Option {
	return func(w *Worker) { w.logs = lw }
}

// New creates a worker with the given identity.
func New(id string, st *store.Store, ex *executor.Executor, opts ...Option) *Worker {
	w := &Worker{
		id:    id,
		store: st,
		exec:  ex,
		clock: clock.Real{},
		poll:  defaultPollInterval,
		log:   logging.NewLogger("worker", zerolog.InfoLevel).With().Str("worker_id", id).Logger(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run is the worker loop. It returns nil on cancellation and an error only
// when the store has become unusable.
//
// Cancellation is observed between iterations and inside the child-process
// wait. A job interrupted mid-run is finalized as a failed attempt before
// the worker exits, so no row is left in processing voluntarily.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info().Msg("worker started")
	defer w.log.Info().Msg("worker stopped")

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		j, err := w.store.ClaimNext(ctx, w.id, w.clock.Now())
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if store.IsUnavailable(err) || store.IsClosed(err) {
				w.log.Error().Err(err).Msg("store unavailable, worker exiting")
				return err
			}
			w.log.Error().Err(err).Msg("claim failed")
			if !w.sleep(ctx) {
				return nil
			}
			continue
		}

		if j == nil {
			w.log.Debug().Msg("no ready jobs")
			if !w.sleep(ctx) {
				return nil
			}
			continue
		}

		w.process(ctx, j)
	}
}

// process runs one attempt and finalizes it. Finalization uses a detached
// context so a shutdown signal cannot strand the row in processing.
func (w *Worker) process(ctx context.Context, j *job.Job) {
	w.log.Info().Str("job_id", j.ID).Int("attempt", j.Attempts).Msg("processing job")

	res := w.exec.Run(ctx, j.Command, j.Timeout())
	now := w.clock.Now()

	if w.logs != nil {
		if err := w.logs.Write(j.ID, res.ExitCode, res.Stdout, res.Stderr); err != nil {
			w.log.Warn().Err(err).Str("job_id", j.ID).Msg("writing job log file failed")
		}
	}

	oc := store.Outcome{
		ExitCode:   res.ExitCode,
		Stdout:     res.Stdout,
		Stderr:     res.Stderr,
		FinishedAt: now,
	}
	finCtx := context.WithoutCancel(ctx)

	if res.Success() {
		if err := w.store.Finalize(finCtx, j.ID, oc); err != nil {
			w.log.Error().Err(err).Str("job_id", j.ID).Msg("finalize failed")
			return
		}
		w.log.Info().
			Str("job_id", j.ID).
			Dur("duration", res.Duration).
			Msg("job completed")
		return
	}

	oc.Error = failureReason(res, j.TimeoutSec)

	// The claim already incremented attempts; retries remain while the
	// finished attempt has not exhausted the budget.
	if j.Attempts <= j.MaxRetries {
		delay := w.backoffDelay(finCtx, j.Attempts)
		next := now.Add(delay)
		if err := w.store.RescheduleRetry(finCtx, j.ID, oc, next); err != nil {
			w.log.Error().Err(err).Str("job_id", j.ID).Msg("reschedule failed")
			return
		}
		w.log.Warn().
			Str("job_id", j.ID).
			Str("reason", oc.Error).
			Dur("retry_in", delay).
			Int("attempt", j.Attempts).
			Int("max_retries", j.MaxRetries).
			Msg("job failed, retry scheduled")
		return
	}

	if err := w.store.MoveToDead(finCtx, j.ID, oc); err != nil {
		w.log.Error().Err(err).Str("job_id", j.ID).Msg("move to dead failed")
		return
	}
	w.log.Error().
		Str("job_id", j.ID).
		Str("reason", oc.Error).
		Int("attempts", j.Attempts).
		Msg("job moved to DLQ")
}

// backoffDelay computes backoff_base^attempts seconds, reading the base
// from the persisted config so changes apply to in-flight retries.
func (w *Worker) backoffDelay(ctx context.Context, attempts int) time.Duration {
	base := 2
	if cfg, err := w.store.QueueConfig(ctx); err == nil {
		base = cfg.BackoffBase
	} else {
		w.log.Warn().Err(err).Msg("reading backoff base failed, using default")
	}
	return time.Duration(ipow(base, attempts)) * time.Second
}

// sleep waits one jittered poll interval. It returns false on cancellation.
func (w *Worker) sleep(ctx context.Context) bool {
	d := w.poll + time.Duration(rand.Int63n(int64(w.poll)/2+1))
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

// failureReason renders the short human-readable error stored on the row.
func failureReason(res executor.Result, timeoutSec int) string {
	switch {
	case res.TimedOut:
		return fmt.Sprintf("timeout after %ds", timeoutSec)
	case res.SpawnError != "":
		return "spawn failed: " + res.SpawnError
	case res.ExitCode != nil:
		return fmt.Sprintf("command exited with code %d", *res.ExitCode)
	default:
		return "attempt failed"
	}
}

// ipow is integer exponentiation with saturation; a runaway attempt count
// must not overflow into a negative delay.
func ipow(base, exp int) int64 {
	const maxSeconds = int64(1) << 31
	result := int64(1)
	for i := 0; i < exp; i++ {
		result *= int64(base)
		if result > maxSeconds {
			return maxSeconds
		}
	}
	return result
}
