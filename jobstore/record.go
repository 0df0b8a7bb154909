// Package jobstore provides durable, library-scoped storage for job
// records: identity, type, status, priority, parent/child links,
// checkpoint data, and cached progress.
package jobstore

import (
	"encoding/json"
	"time"
)

// Status is a job's place in the state machine described by the
// scheduler's transition table. Completed, Failed, and Cancelled are
// terminal: a row in one of those states is never mutated again.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether s is one of the immutable end states.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// validTransitions enumerates the legal edges of the state machine; any
// transition not listed here is a bug, not a user error.
//
// Queued -> Paused parks a job that never started (Scheduler.Pause on a
// queued job). The two -> Failed edges from Queued/Paused fail a row
// that never ran: the scheduler uses Queued -> Failed when a dequeued
// job's type is unregistered, and supervisor.Recover uses both when a
// recovered row's type is unregistered or its state_blob cannot be read.
var validTransitions = map[Status]map[Status]bool{
	StatusQueued:  {StatusRunning: true, StatusCancelled: true, StatusPaused: true, StatusFailed: true},
	StatusRunning: {StatusPaused: true, StatusCancelled: true, StatusCompleted: true, StatusFailed: true},
	StatusPaused:  {StatusQueued: true, StatusCancelled: true, StatusFailed: true},
}

// CanTransition reports whether moving from 'from' to 'to' is legal.
func CanTransition(from, to Status) bool {
	if from.Terminal() {
		return false
	}
	return validTransitions[from][to]
}

// ProgressKind discriminates the shape carried by a ProgressSnapshot.
type ProgressKind string

const (
	ProgressKindCount         ProgressKind = "count"
	ProgressKindPercentage    ProgressKind = "percentage"
	ProgressKindBytes         ProgressKind = "bytes"
	ProgressKindIndeterminate ProgressKind = "indeterminate"
	ProgressKindStructured    ProgressKind = "structured"
)

// ProgressSnapshot is the store's flattened, storage-friendly view of a
// job's last reported progress. It exists independently of any
// in-process progress type so the store package never needs to import
// the job-runtime packages that produce progress.
type ProgressSnapshot struct {
	Kind       ProgressKind    `json:"kind"`
	Current    int64           `json:"current,omitempty"`
	Total      int64           `json:"total,omitempty"`
	Percentage float64         `json:"percentage,omitempty"`
	Message    string          `json:"message,omitempty"`
	Structured json.RawMessage `json:"structured,omitempty"`
}

// JobMetrics tracks aggregate work performed by a job over its lifetime.
type JobMetrics struct {
	BytesProcessed int64         `json:"bytes_processed"`
	ItemsProcessed int64         `json:"items_processed"`
	Warnings       int           `json:"warnings"`
	Duration       time.Duration `json:"duration"`
}

// ActionContext records the user-level action that spawned a job, when
// known. A nil ActionContext is legal and common.
type ActionContext struct {
	ActionName     string            `json:"action_name"`
	OccurredAt     time.Time         `json:"occurred_at"`
	SanitizedInput map[string]string `json:"sanitized_input,omitempty"`
}

// ResourceRequirements declares the disk space and memory a job expects
// to use. It is recorded for observability and future admission control
// but is not enforced anywhere in this repository: the scheduler's only
// admission gate is TypeLimits concurrency, not these values.
type ResourceRequirements struct {
	DiskSpace int64 `json:"disk_space,omitempty"`
	Memory    int64 `json:"memory,omitempty"`
}

// Record is the persisted row for one job.
type Record struct {
	ID       string `json:"id"`
	TypeName string `json:"type_name"`
	Status   Status `json:"status"`
	Priority int32  `json:"priority"`

	// ParentID is empty when the job has no parent.
	ParentID string `json:"parent_id,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// StateBlob is the job value itself: [4-byte big-endian version][payload].
	StateBlob []byte `json:"state_blob"`

	// CheckpointBlob is additional opaque resume data, same envelope
	// shape as StateBlob. Nil means no checkpoint has been written.
	CheckpointBlob []byte `json:"checkpoint_blob,omitempty"`

	LastProgress ProgressSnapshot `json:"last_progress"`

	// Error is set on Failed; empty otherwise.
	Error string `json:"error,omitempty"`

	Metrics JobMetrics `json:"metrics"`

	ActionContext *ActionContext `json:"action_context,omitempty"`

	// Resources is a declared-but-unenforced hint about the job's
	// expected disk and memory footprint. See ResourceRequirements.
	Resources ResourceRequirements `json:"resources,omitempty"`

	// UpdateSeq is a monotonic counter bumped on every write, guarding
	// against torn status+checkpoint writes landing out of order.
	UpdateSeq uint64 `json:"update_seq"`
}

// Clone returns a deep copy of r, safe to hand to a caller without
// sharing mutable state with the store's own copy.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}

	out := *r

	if r.StateBlob != nil {
		out.StateBlob = append([]byte(nil), r.StateBlob...)
	}
	if r.CheckpointBlob != nil {
		out.CheckpointBlob = append([]byte(nil), r.CheckpointBlob...)
	}
	if r.StartedAt != nil {
		t := *r.StartedAt
		out.StartedAt = &t
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		out.CompletedAt = &t
	}
	if r.ActionContext != nil {
		ac := *r.ActionContext
		if r.ActionContext.SanitizedInput != nil {
			ac.SanitizedInput = make(map[string]string, len(r.ActionContext.SanitizedInput))
			for k, v := range r.ActionContext.SanitizedInput {
				ac.SanitizedInput[k] = v
			}
		}
		out.ActionContext = &ac
	}
	if r.LastProgress.Structured != nil {
		out.LastProgress.Structured = append(json.RawMessage(nil), r.LastProgress.Structured...)
	}

	return &out
}
