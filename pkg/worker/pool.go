package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/queuectl/queuectl/pkg/clock"
	"github.com/queuectl/queuectl/pkg/executor"
	"github.com/queuectl/queuectl/pkg/logging"
	"github.com/queuectl/queuectl/pkg/manager"
	"github.com/queuectl/queuectl/pkg/store"
)

// Pool spawns N workers with identities worker-1 … worker-N, propagates
// cancellation, and waits for graceful exit. Several pools may run against
// the same store; the claim protocol keeps them from colliding.
type Pool struct {
	count      int
	store      *store.Store
	exec       *executor.Executor
	clock      clock.Clock
	poll       time.Duration
	logs       *manager.LogWriter
	instanceID string
	active     atomic.Int64
	log        zerolog.Logger
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithPoolClock overrides the wall clock shared by all workers.
func WithPoolClock(c clock.Clock) PoolOption {
	return func(p *Pool) { p.clock = c }
}

// WithPoolPollInterval overrides the workers' poll interval.
func WithPoolPollInterval(d time.Duration) PoolOption {
	return func(p *Pool) { p.poll = d }
}

// WithPoolLogWriter attaches a per-job log file writer to all workers.
func WithPoolLogWriter(lw *manager.LogWriter) PoolOption {
	return func(p *Pool) { p.logs = lw }
}

// NewPool creates a supervisor for count workers. count < 1 is clamped to 1.
func NewPool(st *store.Store, ex *executor.Executor, count int, opts ...PoolOption) *Pool {
	if count < 1 {
		count = 1
	}
	p := &Pool{
		count:      count,
		store:      st,
		exec:       ex,
		clock:      clock.Real{},
		poll:       defaultPollInterval,
		instanceID: uuid.NewString(),
	}
	p.log = logging.NewLogger("pool", zerolog.InfoLevel).With().Str("instance", p.instanceID).Logger()
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run starts all workers and blocks until every one has finalized and
// exited. It returns nil after a clean cancellation; a store-fatal error
// from any worker cancels the rest and is returned.
func (p *Pool) Run(ctx context.Context) error {
	p.log.Info().Int("workers", p.count).Msg("worker pool started")
	defer p.log.Info().Msg("worker pool stopped")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		fatalErr error
	)

	for i := 1; i <= p.count; i++ {
		w := New(
			fmt.Sprintf("worker-%d", i),
			p.store,
			p.exec,
			WithClock(p.clock),
			WithPollInterval(p.poll),
			WithLogWriter(p.logs),
		)

		wg.Add(1)
		go func() {
			defer wg.Done()
			p.active.Add(1)
			defer p.active.Add(-1)

			if err := w.Run(ctx); err != nil {
				errOnce.Do(func() {
					fatalErr = err
					cancel()
				})
			}
		}()
	}

	wg.Wait()
	return fatalErr
}

// ActiveWorkers reports the number of workers currently running in this
// process. The counter is process-local: it is not authoritative across
// multiple concurrent pool processes.
func (p *Pool) ActiveWorkers() int {
	return int(p.active.Load())
}
