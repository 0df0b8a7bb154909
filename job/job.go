// Package job defines the polymorphic job handle and the process-global
// registry that maps a job type's name to its schema and factories.
package job

import (
	"encoding/json"

	"github.com/meridianfs/core/jobctx"
)

// TypeName is a job type's static, registry-unique name (e.g.
// "file_copy", "indexer").
type TypeName string

// Output is what a job's Run method returns on success.
type Output struct {
	Summary string          `json:"summary"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Schema is a registry entry's in-memory description of a job type.
type Schema struct {
	Name        TypeName
	Resumable   bool
	Version     uint32
	Description string
}

// ErasedJob is the type-erased handle the registry, executor, and
// scheduler operate on without knowing a job's concrete Go type.
//
// Note on shape: an earlier design had ErasedJob expose an
// into_executor method, but that would require this package to import
// package executor for the return type while executor must import this
// package for ErasedJob itself — an import cycle. Executor construction
// is a freestanding executor.New(id, Schema, ErasedJob, Deps) constructor instead;
// see DESIGN.md.
type ErasedJob interface {
	TypeName() TypeName
	MarshalState() ([]byte, error)
	Run(ctx *jobctx.Context) (Output, error)
}

// Pauser is an optional hook a job type implements to react to a pause:
// it runs after the job has checkpointed and returned, before the
// executor records it Paused.
type Pauser interface {
	OnPause()
}

// Resumer is an optional hook invoked when a paused job is picked back
// up by the scheduler.
type Resumer interface {
	OnResume()
}

// Canceler is an optional hook invoked when a job is cancelled.
type Canceler interface {
	OnCancel()
}
