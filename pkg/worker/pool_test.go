package worker

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/queuectl/queuectl/pkg/executor"
	"github.com/queuectl/queuectl/pkg/job"
	"github.com/queuectl/queuectl/pkg/manager"
)

// verifyNoLeaks checks for leaked goroutines. The store is still open when
// the deferred check runs, so database/sql's pool goroutine is expected.
func verifyNoLeaks(t *testing.T) {
	goleak.VerifyNone(t,
		goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"),
	)
}

func TestPool_DrainsQueueAndStopsClean(t *testing.T) {
	defer verifyNoLeaks(t)

	s := newTestStore(t)
	m := manager.New(s)

	const jobs = 6
	for i := 0; i < jobs; i++ {
		enqueue(t, s, m, job.Spec{
			ID:      fmt.Sprintf("j%d", i),
			Command: fmt.Sprintf("echo job-%d", i),
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := NewPool(s, executor.New(), 3, WithPoolPollInterval(20*time.Millisecond))
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	claimants := make(map[string]string, jobs)
	for i := 0; i < jobs; i++ {
		id := fmt.Sprintf("j%d", i)
		j := waitForState(t, s, id, job.StateCompleted, 5*time.Second)
		assert.Equal(t, 1, j.Attempts)
		claimants[id] = j.ID
	}
	assert.Len(t, claimants, jobs)

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, 0, p.ActiveWorkers())
}

func TestPool_ActiveWorkersTracksLifecycle(t *testing.T) {
	defer verifyNoLeaks(t)

	s := newTestStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := NewPool(s, executor.New(), 4, WithPoolPollInterval(20*time.Millisecond))
	assert.Equal(t, 0, p.ActiveWorkers())

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool {
		return p.ActiveWorkers() == 4
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, 0, p.ActiveWorkers())
}

func TestPool_CountClampedToOne(t *testing.T) {
	s := newTestStore(t)
	p := NewPool(s, executor.New(), 0)
	assert.Equal(t, 1, p.count)
}

func TestPool_StoreErrorStopsAllWorkers(t *testing.T) {
	defer verifyNoLeaks(t)

	s := newTestStore(t)
	require.NoError(t, s.Close())

	p := NewPool(s, executor.New(), 2, WithPoolPollInterval(20*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := p.Run(ctx)
	require.Error(t, err)
	assert.Equal(t, 0, p.ActiveWorkers())
}
