// Package executor runs a single attempt of a job command as a child
// process: shell invocation, wall-clock timeout with process-group
// termination, and bounded output capture. It does no persistence.
package executor

import (
	"context"
	"errors"
	"os/exec"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/queuectl/queuectl/pkg/logging"
)

const (
	// MaxCaptureBytes caps each captured stream. Excess output is dropped
	// and marked, bounding the size of the persisted row.
	MaxCaptureBytes = 1 << 20

	truncationMarker = "…[truncated]"

	// defaultGrace is the delay between SIGTERM and SIGKILL on timeout.
	defaultGrace = 2 * time.Second

	defaultShell = "/bin/sh"
)

// Result is the outcome of one attempt.
//
// ExitCode is nil when the command could not be spawned at all; SpawnError
// holds the reason. A timed-out attempt has TimedOut set and whatever exit
// status the terminated process produced.
type Result struct {
	ExitCode   *int
	Stdout     string
	Stderr     string
	Duration   time.Duration
	TimedOut   bool
	SpawnError string
}

// Success reports whether the attempt completed cleanly.
func (r Result) Success() bool {
	return r.SpawnError == "" && !r.TimedOut && r.ExitCode != nil && *r.ExitCode == 0
}

// Executor runs job commands. It is stateless and safe for concurrent use.
type Executor struct {
	shell      string
	grace      time.Duration
	maxCapture int
	log        zerolog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithShell overrides the shell binary used to interpret commands.
func WithShell(shell string) Option {
	return func(e *Executor) { e.shell = shell }
}

// WithGrace overrides the SIGTERM-to-SIGKILL grace period.
func WithGrace(d time.Duration) Option {
	return func(e *Executor) { e.grace = d }
}

// WithCaptureLimit overrides the per-stream capture cap.
func WithCaptureLimit(n int) Option {
	return func(e *Executor) { e.maxCapture = n }
}

// New creates an Executor with the default shell, grace, and capture cap.
func New(opts ...Option) *Executor {
	e := &Executor{
		shell:      defaultShell,
		grace:      defaultGrace,
		maxCapture: MaxCaptureBytes,
		log:        logging.NewLogger("executor", zerolog.InfoLevel),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes command through the shell with a wall-clock timeout.
//
// The child is started in its own process group so that a timeout kills the
// whole pipeline, not just the shell. On timeout the group first gets
// SIGTERM; if it is still running after the grace period it gets SIGKILL.
// Context cancellation terminates the child the same way but does not mark
// the result as timed out: the non-zero exit status routes it through the
// normal retry path.
func (e *Executor) Run(ctx context.Context, command string, timeout time.Duration) Result {
	start := time.Now()

	cmd := exec.Command(e.shell, "-c", command)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout := newCapBuffer(e.maxCapture)
	stderr := newCapBuffer(e.maxCapture)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return Result{
			SpawnError: err.Error(),
			Duration:   time.Since(start),
		}
	}
	pgid := cmd.Process.Pid

	waited := make(chan error, 1)
	go func() { waited <- cmd.Wait() }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var waitErr error
	var timedOut bool

	select {
	case waitErr = <-waited:
	case <-timer.C:
		timedOut = true
		waitErr = e.terminate(pgid, waited)
	case <-ctx.Done():
		waitErr = e.terminate(pgid, waited)
	}

	res := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
		TimedOut: timedOut,
	}

	if waitErr == nil {
		zero := 0
		res.ExitCode = &zero
		return res
	}

	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		code := exitErr.ExitCode()
		res.ExitCode = &code
		return res
	}

	// Wait failed for a reason other than a non-zero exit.
	res.SpawnError = waitErr.Error()
	return res
}

// terminate sends SIGTERM to the process group, escalating to SIGKILL after
// the grace period, and returns the child's wait error.
func (e *Executor) terminate(pgid int, waited <-chan error) error {
	_ = syscall.Kill(-pgid, syscall.SIGTERM)

	select {
	case err := <-waited:
		return err
	case <-time.After(e.grace):
	}

	e.log.Debug().Int("pgid", pgid).Msg("escalating to SIGKILL")
	_ = syscall.Kill(-pgid, syscall.SIGKILL)
	return <-waited
}
