package jobctx

import "encoding/json"

// ProgressKind discriminates the shape of a Snapshot. This mirrors
// jobstore.ProgressKind by name but is a distinct type: the in-process
// progress representation is produced by running jobs and consumed by
// the Bus, while jobstore's copy is the flattened form cached on the
// persisted row. Keeping them separate means jobstore never imports
// this package.
type ProgressKind string

const (
	ProgressCount         ProgressKind = "count"
	ProgressPercentage    ProgressKind = "percentage"
	ProgressBytes         ProgressKind = "bytes"
	ProgressIndeterminate ProgressKind = "indeterminate"
	ProgressStructured    ProgressKind = "structured"
)

// Snapshot is the normalized shape a job reports through Context.Report.
// Exactly one of the payload shapes is meaningful, selected by Kind.
type Snapshot struct {
	Kind       ProgressKind
	Current    int64
	Total      int64
	Percentage float64
	Message    string
	Structured json.RawMessage
}

// Count builds a count-based snapshot ({current, total}).
func Count(current, total int64) Snapshot {
	return Snapshot{Kind: ProgressCount, Current: current, Total: total}
}

// Percent builds a percentage snapshot; frac is expected in [0.0, 1.0].
func Percent(frac float64) Snapshot {
	return Snapshot{Kind: ProgressPercentage, Percentage: frac}
}

// Bytes builds a byte-count snapshot ({current, total}).
func Bytes(current, total int64) Snapshot {
	return Snapshot{Kind: ProgressBytes, Current: current, Total: total}
}

// Indeterminate builds a message-only snapshot for work with no known
// total.
func Indeterminate(message string) Snapshot {
	return Snapshot{Kind: ProgressIndeterminate, Message: message}
}

// Structured builds a snapshot carrying an arbitrary job-defined payload.
func Structured(payload json.RawMessage) Snapshot {
	return Snapshot{Kind: ProgressStructured, Structured: payload}
}

// ProgressSink is the narrow publish surface Context needs from a
// progress bus. It is satisfied by *progressbus.Bus via duck typing;
// this package never imports progressbus, which keeps the dependency
// direction one-way (progressbus imports jobctx, not the reverse).
type ProgressSink interface {
	PublishProgress(jobID string, snap Snapshot)
}
