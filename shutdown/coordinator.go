// Package shutdown runs once on library close: it stops the scheduler
// from admitting new work, asks every running job to pause, and gives
// each one a grace window to land in a terminal or Paused state before
// forcing the issue.
package shutdown

import (
	"context"
	"time"

	"github.com/meridianfs/core/job"
	"github.com/meridianfs/core/jobstore"
	"github.com/meridianfs/core/pkg/logger"
	"github.com/meridianfs/core/progressbus"
)

const pollInterval = 25 * time.Millisecond

// Scheduler is the narrow surface Close needs from scheduler.Scheduler.
type Scheduler interface {
	SetDraining()
	ShutdownRunning() []string
	Get(id string) (*jobstore.Record, error)
}

// Report summarizes one shutdown pass: Paused holds jobs the grace
// window caught mid-pause (either cooperatively or force-parked at the
// deadline); FailedOnShutdown holds non-resumable jobs force-failed at
// the deadline.
type Report struct {
	Paused           []string
	FailedOnShutdown []string
}

// Close drains sched per the library's shutdown contract: stop admitting
// new jobs, send every running job a Shutdown-reason pause, and wait up
// to graceWindow for each to settle. Stragglers still non-terminal at
// the deadline are marked directly — Paused if their type is resumable,
// Failed otherwise — and any later write from a detached job goroutine
// is rejected by the store's terminal-row guard.
//
// ctx bounds the wait independently of graceWindow; whichever fires
// first ends the wait and stragglers are finalized the same way either
// way.
func Close(ctx context.Context, sched Scheduler, store jobstore.Store, registry *job.Registry, bus *progressbus.Bus, log *logger.Logger, graceWindow time.Duration) (Report, error) {
	log = log.WithField("component", "shutdown")

	sched.SetDraining()
	ids := sched.ShutdownRunning()
	log.Info("shutdown starting", "running_jobs", len(ids))

	pending := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		pending[id] = struct{}{}
	}

	waitForSettled(ctx, sched, graceWindow, pending)

	var report Report
	for _, id := range ids {
		if _, straggler := pending[id]; straggler {
			finalizeStraggler(id, store, registry, bus, log, &report)
			continue
		}
		if rec, err := store.Get(id); err == nil && rec.Status == jobstore.StatusPaused {
			report.Paused = append(report.Paused, id)
		}
	}

	bus.PublishLifecycle(progressbus.Event{
		Type:             progressbus.ShutdownComplete,
		Paused:           len(report.Paused),
		FailedOnShutdown: len(report.FailedOnShutdown),
	})
	log.Info("shutdown complete", "paused", len(report.Paused), "failed_on_shutdown", len(report.FailedOnShutdown))

	return report, nil
}

// waitForSettled polls pending until every entry reaches a terminal or
// Paused state, the grace window expires, or ctx is cancelled. Settled
// ids are removed from pending in place.
func waitForSettled(ctx context.Context, sched Scheduler, graceWindow time.Duration, pending map[string]struct{}) {
	if len(pending) == 0 {
		return
	}

	timer := time.NewTimer(graceWindow)
	defer timer.Stop()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for len(pending) > 0 {
		select {
		case <-ticker.C:
			for id := range pending {
				rec, err := sched.Get(id)
				if err != nil || rec.Status.Terminal() || rec.Status == jobstore.StatusPaused {
					delete(pending, id)
				}
			}
		case <-timer.C:
			return
		case <-ctx.Done():
			return
		}
	}
}

// finalizeStraggler force-settles a job that did not reach a terminal or
// Paused state within the grace window.
func finalizeStraggler(id string, store jobstore.Store, registry *job.Registry, bus *progressbus.Bus, log *logger.Logger, report *Report) {
	rec, err := store.Get(id)
	if err != nil {
		log.Warn("shutdown: failed to load straggler job", "job_id", id, "error", err)
		return
	}
	if rec.Status.Terminal() || rec.Status == jobstore.StatusPaused {
		// Settled between the last poll and here.
		return
	}

	schema, known := registry.SchemaFor(job.TypeName(rec.TypeName))
	if known && schema.Resumable {
		if err := store.UpdateStatus(id, jobstore.StatusPaused, nil, nil); err != nil {
			log.Warn("shutdown: failed to force-pause straggler job", "job_id", id, "error", err)
			return
		}
		bus.PublishLifecycle(progressbus.Event{Type: progressbus.JobPaused, JobID: id})
		report.Paused = append(report.Paused, id)
		return
	}

	const reason = "shutdown grace window expired before job paused"
	if err := store.UpdateStatus(id, jobstore.StatusFailed, nil, nil); err != nil {
		log.Warn("shutdown: failed to force-fail straggler job", "job_id", id, "error", err)
		return
	}
	_ = store.SetError(id, reason)
	bus.PublishLifecycle(progressbus.Event{Type: progressbus.JobFailed, JobID: id, Error: reason})
	report.FailedOnShutdown = append(report.FailedOnShutdown, id)
}
