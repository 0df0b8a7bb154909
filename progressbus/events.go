package progressbus

import (
	"time"

	"github.com/meridianfs/core/jobctx"
)

// EventType discriminates the kind of lifecycle or progress event
// carried by an Event.
type EventType string

const (
	JobQueued    EventType = "job.queued"
	JobStarted   EventType = "job.started"
	JobProgress  EventType = "job.progress"
	JobPaused    EventType = "job.paused"
	JobResumed   EventType = "job.resumed"
	JobCancelled EventType = "job.cancelled"
	JobCompleted EventType = "job.completed"
	JobFailed    EventType = "job.failed"

	// ShutdownComplete is a library-wide event, not scoped to one job;
	// JobID is empty on this event.
	ShutdownComplete EventType = "shutdown.complete"
)

// Event is the payload delivered to Bus subscribers. Only the field(s)
// relevant to Type are populated; the rest are zero values.
type Event struct {
	Type      EventType
	JobID     string
	Timestamp time.Time

	// Progress is set only on JobProgress events.
	Progress jobctx.Snapshot

	// Error is set only on JobFailed events.
	Error string

	// Summary is set on JobCompleted events.
	Summary string

	// Paused and FailedOnShutdown are set only on ShutdownComplete.
	Paused           int
	FailedOnShutdown int
}

// lifecycle reports whether t is a lifecycle (as opposed to progress)
// event. Lifecycle events are delivered without drop; progress events
// are lossy.
func (t EventType) lifecycle() bool {
	return t != JobProgress
}
