// Package executor wraps a single job instance as a cancellable unit of
// work: it drives Run, watches for the job's interrupt signal, commits
// terminal state, and emits lifecycle events.
//
// Package job cannot construct an Executor directly (see job.ErasedJob's
// doc comment for why); callers build one with New once they have an
// ErasedJob in hand, typically the scheduler at dispatch time.
package executor

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/meridianfs/core/job"
	"github.com/meridianfs/core/jobctx"
	"github.com/meridianfs/core/jobstore"
	"github.com/meridianfs/core/pkg/logger"
	"github.com/meridianfs/core/progressbus"
)

// Deps bundles the runtime collaborators an Executor needs. All fields
// are required except CancelGrace and OnExit.
type Deps struct {
	Store     jobstore.Store
	Bus       *progressbus.Bus
	Logger    *logger.Logger
	LibraryID string

	// CancelGrace bounds how long a Cancel request waits for the job to
	// observe its interrupt and return before the executor detaches: it
	// commits Cancelled and returns, leaving the job goroutine to finish
	// (or not) on its own. Zero means wait indefinitely.
	CancelGrace time.Duration

	// OnExit, if set, is called exactly once as Run returns, regardless
	// of outcome, so the scheduler can drop the job from its running set
	// and consider dispatching the next one.
	OnExit func(jobID string)
}

// Executor owns the interrupt channel for exactly one running job, per
// the store's "one interrupt channel per running job" invariant.
type Executor struct {
	id     string
	schema job.Schema
	erased job.ErasedJob
	deps   Deps

	interrupt *jobctx.Interrupt
	detach    chan struct{}
	detachOne sync.Once
}

// New builds an Executor for erased, which is assumed to already be
// registered under schema. id is the JobRecord row this run belongs to.
func New(id string, schema job.Schema, erased job.ErasedJob, deps Deps) *Executor {
	return &Executor{
		id:        id,
		schema:    schema,
		erased:    erased,
		deps:      deps,
		interrupt: jobctx.NewInterrupt(),
		detach:    make(chan struct{}),
	}
}

// Pause requests a cooperative pause.
func (e *Executor) Pause() {
	e.interrupt.Request(jobctx.SuspendPause)
}

// Resume clears a pending pause request. It has no effect once the job
// has already observed the pause and exited; resuming a Paused job is
// the scheduler's job (re-enqueue), not this Executor's.
func (e *Executor) Resume() {
	e.interrupt.Clear()
}

// Shutdown requests a cooperative pause on behalf of the shutdown
// coordinator, distinct from an ordinary Pause only in the reason
// surfaced to the job; Run settles both the same way.
func (e *Executor) Shutdown() {
	e.interrupt.Request(jobctx.SuspendShutdown)
}

// Cancel requests cancellation. If deps.CancelGrace is positive and the
// job has not exited by then, Run detaches: it commits Cancelled and
// returns immediately, leaving the job's goroutine to run to completion
// unobserved.
func (e *Executor) Cancel() {
	e.interrupt.Request(jobctx.SuspendCancel)

	if e.deps.CancelGrace > 0 {
		time.AfterFunc(e.deps.CancelGrace, func() {
			e.detachOne.Do(func() { close(e.detach) })
		})
	}
}

type runResult struct {
	output job.Output
	err    error
}

// Run drives the job to a terminal (or Paused) state. It blocks until
// the job returns, is detached after a Cancel grace period expires, or
// panics (recovered and reported as a Failed transition).
func (e *Executor) Run() error {
	if e.deps.OnExit != nil {
		defer e.deps.OnExit(e.id)
	}

	if err := e.deps.Store.UpdateStatus(e.id, jobstore.StatusRunning, nil, nil); err != nil {
		return fmt.Errorf("executor: transition to running: %w", err)
	}
	e.deps.Bus.PublishLifecycle(progressbus.Event{Type: progressbus.JobStarted, JobID: e.id})

	ctx := jobctx.New(e.id, e.deps.LibraryID, e.deps.Store, e.deps.Bus, e.interrupt, e.deps.Logger, e.schema.Version)

	done := make(chan runResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- runResult{err: fmt.Errorf("job panicked: %v", r)}
			}
		}()
		output, err := e.erased.Run(ctx)
		done <- runResult{output: output, err: err}
	}()

	select {
	case res := <-done:
		return e.finish(res)
	case <-e.detach:
		return e.detachCancel()
	}
}

func (e *Executor) finish(res runResult) error {
	var interrupted *jobctx.InterruptedError

	switch {
	case res.err == nil:
		return e.complete(res.output)

	case errors.As(res.err, &interrupted):
		return e.finishInterrupted(interrupted.Reason)

	default:
		return e.fail(res.err)
	}
}

func (e *Executor) complete(output job.Output) error {
	if err := e.deps.Store.UpdateStatus(e.id, jobstore.StatusCompleted, nil, nil); err != nil {
		return err
	}
	e.deps.Bus.PublishLifecycle(progressbus.Event{
		Type:    progressbus.JobCompleted,
		JobID:   e.id,
		Summary: output.Summary,
	})
	return nil
}

func (e *Executor) finishInterrupted(reason jobctx.SuspendReason) error {
	switch reason {
	case jobctx.SuspendCancel:
		return e.cancel()
	case jobctx.SuspendPause, jobctx.SuspendShutdown:
		if e.schema.Resumable {
			return e.pause()
		}
		return e.fail(fmt.Errorf("job interrupted (%s) but type %q is not resumable", reason, e.schema.Name))
	default:
		return e.fail(fmt.Errorf("job interrupted for unknown reason %q", reason))
	}
}

func (e *Executor) pause() error {
	if p, ok := e.erased.(job.Pauser); ok {
		p.OnPause()
	}
	if err := e.deps.Store.UpdateStatus(e.id, jobstore.StatusPaused, nil, nil); err != nil {
		return err
	}
	e.deps.Bus.PublishLifecycle(progressbus.Event{Type: progressbus.JobPaused, JobID: e.id})
	return nil
}

func (e *Executor) cancel() error {
	if c, ok := e.erased.(job.Canceler); ok {
		c.OnCancel()
	}
	if err := e.deps.Store.UpdateStatus(e.id, jobstore.StatusCancelled, nil, nil); err != nil {
		return err
	}
	e.deps.Bus.PublishLifecycle(progressbus.Event{Type: progressbus.JobCancelled, JobID: e.id})
	return nil
}

func (e *Executor) fail(cause error) error {
	if err := e.deps.Store.UpdateStatus(e.id, jobstore.StatusFailed, nil, nil); err != nil {
		return err
	}
	if err := e.deps.Store.SetError(e.id, cause.Error()); err != nil {
		e.deps.Logger.Warn("failed to persist error message", "job_id", e.id, "error", err)
	}
	e.deps.Bus.PublishLifecycle(progressbus.Event{Type: progressbus.JobFailed, JobID: e.id, Error: cause.Error()})
	return cause
}

// detachCancel commits the job Cancelled without waiting for its
// goroutine, per the hard-cancel-timeout contract.
func (e *Executor) detachCancel() error {
	e.deps.Logger.Warn("cancel grace period expired, detaching job", "job_id", e.id)
	return e.cancel()
}
