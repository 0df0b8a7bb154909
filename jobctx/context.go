// Package jobctx defines the per-job runtime handle passed to a job's
// Run method: progress reporting, checkpointing, cooperative
// interruption, logging, and a narrow view of the owning library.
package jobctx

import (
	"sync"

	"github.com/meridianfs/core/jobstore"
	"github.com/meridianfs/core/pkg/logger"
)

// LibraryHandle is the minimal view of the owning library a job is
// allowed to see. Real file/database access through the library is out
// of scope for this system (see spec Non-goals); jobs that need it are
// expected to have been constructed with their own dependencies.
type LibraryHandle struct {
	ID string
}

// Context is a capability bundle for the duration of one job's
// execution. It owns no state the job must persist: Report and
// Checkpoint both flow straight through to the Store and Bus the
// Executor wired in.
type Context struct {
	id        string
	libraryID string
	store     jobstore.Store
	sink      ProgressSink
	interrupt *Interrupt
	log       *logger.Logger

	stateVersion uint32

	mu      sync.Mutex
	metrics jobstore.JobMetrics
}

// New builds a Context for one job run. sink may be nil, in which case
// Report skips publication and only updates the cached row.
func New(id, libraryID string, store jobstore.Store, sink ProgressSink, interrupt *Interrupt, log *logger.Logger, stateVersion uint32) *Context {
	return &Context{
		id:           id,
		libraryID:    libraryID,
		store:        store,
		sink:         sink,
		interrupt:    interrupt,
		log:          log.WithField("job_id", id),
		stateVersion: stateVersion,
	}
}

// ID returns the job's identifier.
func (c *Context) ID() string {
	return c.id
}

// Library returns a minimal handle to the owning library.
func (c *Context) Library() LibraryHandle {
	return LibraryHandle{ID: c.libraryID}
}

// Log returns the job-scoped logger, already carrying job_id as a field.
func (c *Context) Log() *logger.Logger {
	return c.log
}

// Report publishes a progress snapshot. Publication to the Bus is
// non-blocking and lossy by the Bus's own contract; the cached row
// write to the Store is best-effort and its error is logged rather than
// surfaced, since losing one progress tick must never fail a job.
func (c *Context) Report(snap Snapshot) {
	c.mu.Lock()
	switch snap.Kind {
	case ProgressCount:
		c.metrics.ItemsProcessed = snap.Current
	case ProgressBytes:
		c.metrics.BytesProcessed = snap.Current
	}
	c.mu.Unlock()

	if c.sink != nil {
		c.sink.PublishProgress(c.id, snap)
	}

	if err := c.store.RecordProgress(c.id, toStoreSnapshot(snap)); err != nil {
		c.log.Warn("failed to cache progress on job row", "error", err)
	}
}

// Checkpoint serializes state into the versioned envelope format and
// commits it to the Store together with the job's accumulated metrics.
// Safe to call at any suspension-safe point, including from
// SuspendPoint.
func (c *Context) Checkpoint(state []byte) error {
	c.mu.Lock()
	metrics := c.metrics
	c.mu.Unlock()

	blob := jobstore.EncodeEnvelope(c.stateVersion, state)
	return c.store.Checkpoint(c.id, blob, metrics)
}

// ShouldSuspend reports whether a pause, cancel, or shutdown has been
// requested for this job. It is a cooperative, non-destructive poll:
// job code is expected to call it between units of work.
func (c *Context) ShouldSuspend() (SuspendReason, bool) {
	return c.interrupt.Current()
}

// SuspendPoint is a convenience wrapper: if an interrupt is pending, it
// invokes checkpointFn to obtain the job's resumable state, commits it,
// and returns an *InterruptedError carrying the reason. Callers treat a
// non-nil return as "stop running now".
func (c *Context) SuspendPoint(checkpointFn func() ([]byte, error)) error {
	reason, pending := c.ShouldSuspend()
	if !pending {
		return nil
	}

	state, err := checkpointFn()
	if err != nil {
		return err
	}

	if err := c.Checkpoint(state); err != nil {
		return err
	}

	return &InterruptedError{Reason: reason}
}

func toStoreSnapshot(snap Snapshot) jobstore.ProgressSnapshot {
	return jobstore.ProgressSnapshot{
		Kind:       jobstore.ProgressKind(snap.Kind),
		Current:    snap.Current,
		Total:      snap.Total,
		Percentage: snap.Percentage,
		Message:    snap.Message,
		Structured: snap.Structured,
	}
}
