package worker

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queuectl/queuectl/pkg/executor"
	"github.com/queuectl/queuectl/pkg/job"
	"github.com/queuectl/queuectl/pkg/manager"
	"github.com/queuectl/queuectl/pkg/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "queuectl.db"), time.Now().UTC())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func enqueue(t *testing.T, s *store.Store, m *manager.Manager, spec job.Spec) *job.Job {
	t.Helper()
	j, err := m.Enqueue(context.Background(), spec)
	require.NoError(t, err)
	return j
}

// waitForState polls until the job reaches want or the deadline passes.
func waitForState(t *testing.T, s *store.Store, id string, want job.State, deadline time.Duration) *job.Job {
	t.Helper()
	end := time.Now().Add(deadline)
	for time.Now().Before(end) {
		j, err := s.GetByID(context.Background(), id)
		require.NoError(t, err)
		if j.State == want {
			return j
		}
		time.Sleep(25 * time.Millisecond)
	}
	j, _ := s.GetByID(context.Background(), id)
	t.Fatalf("job %s never reached %s (last state: %+v)", id, want, j.State)
	return nil
}

func intPtr(n int) *int { return &n }

func TestWorker_SuccessPath(t *testing.T) {
	s := newTestStore(t)
	m := manager.New(s)
	enqueue(t, s, m, job.Spec{ID: "j1", Command: "echo hi"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := New("worker-1", s, executor.New(), WithPollInterval(20*time.Millisecond))
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	j := waitForState(t, s, "j1", job.StateCompleted, 2*time.Second)
	assert.Equal(t, 1, j.Attempts)
	require.NotNil(t, j.ExitCode)
	assert.Equal(t, 0, *j.ExitCode)
	assert.Contains(t, j.Stdout, "hi")
	assert.Empty(t, j.ClaimedBy)

	cancel()
	require.NoError(t, <-done)
}

func TestWorker_PriorityOrder(t *testing.T) {
	s := newTestStore(t)
	m := manager.New(s)
	enqueue(t, s, m, job.Spec{ID: "low", Command: "echo L", Priority: intPtr(0)})
	enqueue(t, s, m, job.Spec{ID: "high", Command: "echo H", Priority: intPtr(10)})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := New("worker-1", s, executor.New(), WithPollInterval(20*time.Millisecond))
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	high := waitForState(t, s, "high", job.StateCompleted, 2*time.Second)
	low := waitForState(t, s, "low", job.StateCompleted, 2*time.Second)
	cancel()
	require.NoError(t, <-done)

	require.NotNil(t, high.FinishedAt)
	require.NotNil(t, low.FinishedAt)
	assert.False(t, high.FinishedAt.After(*low.FinishedAt),
		"high priority job must finish no later than the low priority one")
}

func TestWorker_RetryThenSucceed(t *testing.T) {
	s := newTestStore(t)
	m := manager.New(s)

	// Fails on the first invocation, succeeds once the sentinel exists.
	sentinel := filepath.Join(t.TempDir(), "ran-once")
	cmd := fmt.Sprintf(`if [ -f %q ]; then exit 0; else touch %q; exit 1; fi`, sentinel, sentinel)
	enqueue(t, s, m, job.Spec{ID: "flaky", Command: cmd, MaxRetries: intPtr(3)})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := New("worker-1", s, executor.New(), WithPollInterval(20*time.Millisecond))
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// The second attempt waits out the 2s backoff first.
	j := waitForState(t, s, "flaky", job.StateCompleted, 10*time.Second)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, 2, j.Attempts)
	require.NotNil(t, j.FinishedAt)
	assert.GreaterOrEqual(t, j.FinishedAt.Sub(j.CreatedAt), 2*time.Second,
		"at least backoff_base^1 seconds must elapse before the retry")
}

func TestWorker_JobsSurviveStoreRestart(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "queuectl.db")

	s1, err := store.Open(context.Background(), dbPath, time.Now().UTC())
	require.NoError(t, err)
	m := manager.New(s1)
	for i := 0; i < 3; i++ {
		enqueue(t, s1, m, job.Spec{ID: fmt.Sprintf("j%d", i), Command: "echo hi"})
	}
	require.NoError(t, s1.Close())

	// A fresh store over the same file sees the pending jobs and a single
	// worker drains them exactly once.
	s2, err := store.Open(context.Background(), dbPath, time.Now().UTC())
	require.NoError(t, err)
	defer s2.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := New("worker-1", s2, executor.New(), WithPollInterval(20*time.Millisecond))
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	for i := 0; i < 3; i++ {
		j := waitForState(t, s2, fmt.Sprintf("j%d", i), job.StateCompleted, 5*time.Second)
		assert.Equal(t, 1, j.Attempts, "no duplicate processing across the restart")
	}
	cancel()
	require.NoError(t, <-done)
}

func TestProcess_FailureSchedulesRetryWithBackoff(t *testing.T) {
	s := newTestStore(t)
	m := manager.New(s)
	enqueue(t, s, m, job.Spec{ID: "flaky", Command: "exit 3", MaxRetries: intPtr(2)})

	ctx := context.Background()
	w := New("worker-1", s, executor.New())

	claimed, err := s.ClaimNext(ctx, "worker-1", time.Now().UTC())
	require.NoError(t, err)
	require.NotNil(t, claimed)

	before := time.Now().UTC()
	w.process(ctx, claimed)

	j, err := s.GetByID(ctx, "flaky")
	require.NoError(t, err)
	assert.Equal(t, job.StateFailed, j.State)
	assert.Equal(t, 1, j.Attempts)
	assert.Equal(t, "command exited with code 3", j.Error)

	// First failure: delay = backoff_base^1 = 2s.
	assert.False(t, j.NextAttemptAt.Before(before.Add(2*time.Second)),
		"retry must wait at least backoff_base^attempts seconds")
}

func TestProcess_ExhaustedRetriesMoveToDLQ(t *testing.T) {
	s := newTestStore(t)
	m := manager.New(s)
	enqueue(t, s, m, job.Spec{ID: "bad", Command: "exit 1", MaxRetries: intPtr(1)})

	ctx := context.Background()
	w := New("worker-1", s, executor.New())
	now := time.Now().UTC()

	// Attempt 1 fails and is rescheduled.
	claimed, err := s.ClaimNext(ctx, "worker-1", now)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	w.process(ctx, claimed)

	j, err := s.GetByID(ctx, "bad")
	require.NoError(t, err)
	require.Equal(t, job.StateFailed, j.State)

	// Attempt 2 (claim well past the backoff) exhausts the budget.
	claimed, err = s.ClaimNext(ctx, "worker-1", now.Add(time.Hour))
	require.NoError(t, err)
	require.NotNil(t, claimed)
	require.Equal(t, 2, claimed.Attempts)
	w.process(ctx, claimed)

	j, err = s.GetByID(ctx, "bad")
	require.NoError(t, err)
	assert.Equal(t, job.StateDead, j.State)
	assert.Equal(t, 2, j.Attempts, "dead implies attempts = max_retries + 1")
}

func TestProcess_TimeoutGoesToDLQ(t *testing.T) {
	s := newTestStore(t)
	m := manager.New(s)
	enqueue(t, s, m, job.Spec{ID: "slow", Command: "sleep 30", Timeout: intPtr(1), MaxRetries: intPtr(0)})

	ctx := context.Background()
	w := New("worker-1", s, executor.New(executor.WithGrace(200*time.Millisecond)))

	claimed, err := s.ClaimNext(ctx, "worker-1", time.Now().UTC())
	require.NoError(t, err)
	require.NotNil(t, claimed)

	start := time.Now()
	w.process(ctx, claimed)
	assert.Less(t, time.Since(start), 3*time.Second)

	j, err := s.GetByID(ctx, "slow")
	require.NoError(t, err)
	assert.Equal(t, job.StateDead, j.State)
	assert.Contains(t, j.Error, "timeout")
}

func TestProcess_SpawnErrorIsRetriable(t *testing.T) {
	s := newTestStore(t)
	m := manager.New(s)
	enqueue(t, s, m, job.Spec{ID: "j1", Command: "true", MaxRetries: intPtr(1)})

	ctx := context.Background()
	w := New("worker-1", s, executor.New(executor.WithShell("/nonexistent/shell")))

	claimed, err := s.ClaimNext(ctx, "worker-1", time.Now().UTC())
	require.NoError(t, err)
	w.process(ctx, claimed)

	j, err := s.GetByID(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, job.StateFailed, j.State)
	assert.Contains(t, j.Error, "spawn failed")
	assert.Nil(t, j.ExitCode)
}

func TestProcess_WritesJobLogFile(t *testing.T) {
	s := newTestStore(t)
	m := manager.New(s)
	enqueue(t, s, m, job.Spec{ID: "j1", Command: "echo out; echo err >&2"})

	lw, err := manager.NewLogWriter(filepath.Join(t.TempDir(), "logs"))
	require.NoError(t, err)

	ctx := context.Background()
	w := New("worker-1", s, executor.New(), WithLogWriter(lw))

	claimed, err := s.ClaimNext(ctx, "worker-1", time.Now().UTC())
	require.NoError(t, err)
	w.process(ctx, claimed)

	content, err := lw.Read("j1")
	require.NoError(t, err)
	assert.Contains(t, content, "out")
	assert.Contains(t, content, "err")
}

func TestIpow(t *testing.T) {
	tests := []struct {
		base, exp int
		want      int64
	}{
		{2, 0, 1},
		{2, 1, 2},
		{2, 3, 8},
		{3, 4, 81},
		{2, 62, int64(1) << 31}, // saturates
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d^%d", tt.base, tt.exp), func(t *testing.T) {
			assert.Equal(t, tt.want, ipow(tt.base, tt.exp))
		})
	}
}

func TestFailureReason(t *testing.T) {
	code := 9
	assert.Equal(t, "timeout after 5s", failureReason(executor.Result{TimedOut: true}, 5))
	assert.Equal(t, "spawn failed: no such file", failureReason(executor.Result{SpawnError: "no such file"}, 5))
	assert.Equal(t, "command exited with code 9", failureReason(executor.Result{ExitCode: &code}, 5))
}
