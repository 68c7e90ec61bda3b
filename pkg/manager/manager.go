// Package manager is the semantic layer over the store: it validates
// enqueue payloads, fills defaults from the persisted queue configuration,
// and serves the read paths used by the CLI and the dashboard.
package manager

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/queuectl/queuectl/pkg/clock"
	"github.com/queuectl/queuectl/pkg/job"
	"github.com/queuectl/queuectl/pkg/logging"
	"github.com/queuectl/queuectl/pkg/store"
)

// Manager exposes the job lifecycle operations.
type Manager struct {
	store *store.Store
	clock clock.Clock
	logs  *LogWriter
	log   zerolog.Logger

	// activeWorkers reports the pool's process-local worker count; nil
	// outside a worker process.
	activeWorkers func() int
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the wall clock (tests).
func WithClock(c clock.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithLogWriter attaches a per-job log file writer.
func WithLogWriter(w *LogWriter) Option {
	return func(m *Manager) { m.logs = w }
}

// WithActiveWorkers wires the pool's process-local worker counter into
// Status. The count is not authoritative across separate pool processes.
func WithActiveWorkers(fn func() int) Option {
	return func(m *Manager) { m.activeWorkers = fn }
}

// New creates a Manager over st.
func New(st *store.Store, opts ...Option) *Manager {
	m := &Manager{
		store: st,
		clock: clock.Real{},
		log:   logging.NewLogger("manager", zerolog.InfoLevel),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Enqueue validates spec, fills defaults from the current queue
// configuration, and inserts the job as pending.
func (m *Manager) Enqueue(ctx context.Context, spec job.Spec) (*job.Job, error) {
	cfg, err := m.store.QueueConfig(ctx)
	if err != nil {
		return nil, err
	}

	now := m.clock.Now()
	runAt, err := job.ParseTime(spec.RunAt, now)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", job.ErrInvalidSpec, err)
	}

	j := &job.Job{
		ID:            spec.ID,
		Command:       spec.Command,
		Priority:      cfg.DefaultPriority,
		TimeoutSec:    cfg.DefaultTimeout,
		MaxRetries:    cfg.MaxRetries,
		State:         job.StatePending,
		RunAt:         runAt,
		NextAttemptAt: runAt,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if spec.Priority != nil {
		j.Priority = *spec.Priority
	}
	if spec.Timeout != nil {
		j.TimeoutSec = *spec.Timeout
	}
	if spec.MaxRetries != nil {
		j.MaxRetries = *spec.MaxRetries
	}

	if err := m.store.Insert(ctx, j); err != nil {
		return nil, err
	}

	m.log.Info().
		Str("job_id", j.ID).
		Int("priority", j.Priority).
		Time("run_at", j.RunAt).
		Msg("enqueued job")
	return j, nil
}

// Get returns one job by id.
func (m *Manager) Get(ctx context.Context, id string) (*job.Job, error) {
	return m.store.GetByID(ctx, id)
}

// List returns jobs, optionally filtered by state, newest first.
func (m *Manager) List(ctx context.Context, state job.State, limit int) ([]*job.Job, error) {
	return m.store.List(ctx, state, limit)
}

// Status is the queue snapshot behind `status` and the dashboard.
type Status struct {
	Counts        map[job.State]int `json:"counts"`
	ActiveWorkers int               `json:"active_workers"`
}

// Status returns per-state counts plus the process-local worker count.
func (m *Manager) Status(ctx context.Context) (*Status, error) {
	agg, err := m.store.Aggregate(ctx)
	if err != nil {
		return nil, err
	}

	st := &Status{Counts: agg.Counts}
	if m.activeWorkers != nil {
		st.ActiveWorkers = m.activeWorkers()
	}
	return st, nil
}

// Metrics are the rollups behind `metrics` and the dashboard.
type Metrics struct {
	TotalJobs         int               `json:"total_jobs"`
	Counts            map[job.State]int `json:"counts"`
	AvgRuntimeSeconds float64           `json:"avg_runtime_seconds"`
	ActiveWorkers     int               `json:"active_workers"`
}

// Metrics returns totals per state and the mean completed runtime.
func (m *Manager) Metrics(ctx context.Context) (*Metrics, error) {
	agg, err := m.store.Aggregate(ctx)
	if err != nil {
		return nil, err
	}

	mx := &Metrics{
		TotalJobs:         agg.TotalJobs,
		Counts:            agg.Counts,
		AvgRuntimeSeconds: agg.AvgRuntimeSeconds,
	}
	if m.activeWorkers != nil {
		mx.ActiveWorkers = m.activeWorkers()
	}
	return mx, nil
}

// LogRecord is the captured output of a job's last attempt.
type LogRecord struct {
	ExitCode *int   `json:"exit_code"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
}

// Logs returns the last attempt's exit code and captured output. The store
// row is authoritative; the on-disk log file is informational only.
func (m *Manager) Logs(ctx context.Context, id string) (*LogRecord, error) {
	j, err := m.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &LogRecord{ExitCode: j.ExitCode, Stdout: j.Stdout, Stderr: j.Stderr}, nil
}

// LogFile returns the raw on-disk log file for id. The file only exists
// once a worker with a log writer has finalized an attempt.
func (m *Manager) LogFile(id string) (string, error) {
	if m.logs == nil {
		return "", os.ErrNotExist
	}
	return m.logs.Read(id)
}

// DLQList lists all dead jobs.
func (m *Manager) DLQList(ctx context.Context) ([]*job.Job, error) {
	return m.store.List(ctx, job.StateDead, 0)
}

// DLQRetry resets a dead job to pending with a fresh retry budget. It
// errors if the id does not name a dead job.
func (m *Manager) DLQRetry(ctx context.Context, id string) error {
	if err := m.store.RetryFromDLQ(ctx, id, m.clock.Now()); err != nil {
		return err
	}
	m.log.Info().Str("job_id", id).Msg("retrying job from DLQ")
	return nil
}

// ConfigShow returns the persisted queue configuration entries.
func (m *Manager) ConfigShow(ctx context.Context) (map[string]string, error) {
	return m.store.ConfigMap(ctx)
}

// ConfigSet validates and persists one queue option.
func (m *Manager) ConfigSet(ctx context.Context, key, value string) error {
	return m.store.SetConfig(ctx, key, value, m.clock.Now())
}
