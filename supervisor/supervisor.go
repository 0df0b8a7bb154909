// Package supervisor runs once on library open: it reloads every
// non-terminal job row, reclassifies anything that was Running when the
// process last exited (a crash, from the row's point of view), and
// re-enqueues whatever is safely resumable.
package supervisor

import (
	"fmt"

	"github.com/meridianfs/core/job"
	"github.com/meridianfs/core/jobstore"
	"github.com/meridianfs/core/pkg/logger"
	"github.com/meridianfs/core/progressbus"
)

// Requeuer is the narrow scheduler surface recovery needs: re-enqueue an
// already-persisted record without inserting it again.
type Requeuer interface {
	Requeue(rec *jobstore.Record)
}

// Report summarizes one recovery pass: the supervisor never loses a job
// silently, so every non-terminal row at load time accounts for itself
// in exactly one of these three buckets.
type Report struct {
	Resumed []string
	Failed  []string
	Skipped []string
}

// Recover reloads every non-terminal row from store and reclassifies
// it, re-enqueuing the ones that should run again through scheduler.
func Recover(store jobstore.Store, registry *job.Registry, scheduler Requeuer, bus *progressbus.Bus, log *logger.Logger) (Report, error) {
	log = log.WithField("component", "supervisor")

	rows, err := store.LoadNonTerminal()
	if err != nil {
		return Report{}, fmt.Errorf("supervisor: failed to load non-terminal jobs: %w", err)
	}

	var report Report

	for _, rec := range rows {
		recoverRow(rec, store, registry, scheduler, bus, log, &report)
	}

	log.Info("recovery complete",
		"resumed", len(report.Resumed),
		"failed", len(report.Failed),
		"skipped", len(report.Skipped))

	return report, nil
}

func recoverRow(rec *jobstore.Record, store jobstore.Store, registry *job.Registry, scheduler Requeuer, bus *progressbus.Bus, log *logger.Logger, report *Report) {
	typeName := job.TypeName(rec.TypeName)

	schema, ok := registry.SchemaFor(typeName)
	if !ok {
		failRow(store, bus, report, rec.ID, "unknown job type")
		return
	}

	version, _, err := jobstore.DecodeEnvelope(rec.StateBlob, schema.Version)
	if err != nil {
		failRow(store, bus, report, rec.ID, fmt.Sprintf("incompatible state version: %v", err))
		return
	}
	if version > schema.Version {
		failRow(store, bus, report, rec.ID, "incompatible state version")
		return
	}

	if _, err := registry.Deserialize(typeName, rec.StateBlob[4:]); err != nil {
		failRow(store, bus, report, rec.ID, fmt.Sprintf("failed to deserialize job: %v", err))
		return
	}

	// A row still Running at load time means the process exited (or
	// crashed) mid-execution; treat it the same as an unresumed Pause.
	effectiveStatus := rec.Status
	if effectiveStatus == jobstore.StatusRunning {
		if schema.Resumable {
			effectiveStatus = jobstore.StatusPaused
		} else {
			effectiveStatus = jobstore.StatusFailed
		}
	}

	switch effectiveStatus {
	case jobstore.StatusFailed:
		failRow(store, bus, report, rec.ID, "job was running when the process stopped and is not resumable")

	case jobstore.StatusPaused:
		if !schema.Resumable {
			failRow(store, bus, report, rec.ID, "job is paused but its type is not resumable")
			return
		}
		resumeRow(rec, store, scheduler, bus, log, report)

	case jobstore.StatusQueued:
		scheduler.Requeue(rec)
		report.Resumed = append(report.Resumed, rec.ID)

	default:
		log.Warn("recovery: leaving non-terminal job in place", "job_id", rec.ID, "status", rec.Status)
		report.Skipped = append(report.Skipped, rec.ID)
	}
}

// resumeRow moves a resumable job back to Queued. A row still Running
// at load time must pass through Paused first: Running -> Queued is not
// a legal edge, only Running -> Paused -> Queued is.
func resumeRow(rec *jobstore.Record, store jobstore.Store, scheduler Requeuer, bus *progressbus.Bus, log *logger.Logger, report *Report) {
	if rec.Status == jobstore.StatusRunning {
		if err := store.UpdateStatus(rec.ID, jobstore.StatusPaused, nil, nil); err != nil {
			log.Error("recovery: failed to park crashed job as paused", "job_id", rec.ID, "error", err)
			report.Skipped = append(report.Skipped, rec.ID)
			return
		}
	}

	if err := store.UpdateStatus(rec.ID, jobstore.StatusQueued, nil, nil); err != nil {
		log.Error("recovery: failed to requeue resumable job", "job_id", rec.ID, "error", err)
		report.Skipped = append(report.Skipped, rec.ID)
		return
	}

	rec.Status = jobstore.StatusQueued
	scheduler.Requeue(rec)
	bus.PublishLifecycle(progressbus.Event{Type: progressbus.JobResumed, JobID: rec.ID})
	report.Resumed = append(report.Resumed, rec.ID)
}

func failRow(store jobstore.Store, bus *progressbus.Bus, report *Report, id, reason string) {
	_ = store.UpdateStatus(id, jobstore.StatusFailed, nil, nil)
	_ = store.SetError(id, reason)
	bus.PublishLifecycle(progressbus.Event{Type: progressbus.JobFailed, JobID: id, Error: reason})
	report.Failed = append(report.Failed, id)
}
