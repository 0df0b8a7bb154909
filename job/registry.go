package job

import (
	"fmt"
	"sync"

	joberrors "github.com/meridianfs/core/pkg/errors"
)

// FromJSON builds an ErasedJob from a structured JSON value, used by
// RPC-style dispatch where inputs arrive already parsed.
type FromJSON func(value []byte) (ErasedJob, error)

// FromBytes rehydrates an ErasedJob from its own MarshalState output,
// used by the supervisor to resume persisted jobs.
type FromBytes func(state []byte) (ErasedJob, error)

type entry struct {
	schema    Schema
	fromJSON  FromJSON
	fromBytes FromBytes
}

// Registry is a process-global, read-after-startup table mapping a job
// type's name to its schema and factories. Every job type is registered
// once at startup (jobs.RegisterAll does this for the bundled types), so
// the set of job types a binary supports is compiled in rather than
// discovered at runtime.
type Registry struct {
	mu      sync.RWMutex
	entries map[TypeName]entry
}

// defaultRegistry is the process-wide registry used by the package-level
// Register/Create/Deserialize/SchemaFor functions.
var defaultRegistry = NewRegistry()

// NewRegistry returns an empty registry. jobctl and library.Open build
// their registry this way, and tests use it to exercise registration
// without mutating the package-level default.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[TypeName]entry)}
}

// Register adds a job type to the registry. Calling Register twice for
// the same name is a programming error — a binary wiring two job
// packages under one name has a naming bug, not a recoverable runtime
// condition — so it panics rather than returning an error.
func (r *Registry) Register(schema Schema, fromJSON FromJSON, fromBytes FromBytes) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[schema.Name]; exists {
		panic(fmt.Sprintf("job: duplicate registration for type %q", schema.Name))
	}

	r.entries[schema.Name] = entry{schema: schema, fromJSON: fromJSON, fromBytes: fromBytes}
}

// Create builds a job instance from a structured JSON value.
func (r *Registry) Create(name TypeName, value []byte) (ErasedJob, error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()

	if !ok {
		return nil, joberrors.NewNotFoundError(string(name))
	}

	j, err := e.fromJSON(value)
	if err != nil {
		return nil, joberrors.NewSerializationError(string(name), err)
	}
	return j, nil
}

// Deserialize rehydrates a job instance from its persisted state blob.
func (r *Registry) Deserialize(name TypeName, state []byte) (ErasedJob, error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()

	if !ok {
		return nil, joberrors.NewNotFoundError(string(name))
	}

	j, err := e.fromBytes(state)
	if err != nil {
		return nil, joberrors.NewSerializationError(string(name), err)
	}
	return j, nil
}

// SchemaFor returns the registered schema for name, if any.
func (r *Registry) SchemaFor(name TypeName) (Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[name]
	if !ok {
		return Schema{}, false
	}
	return e.schema, true
}

// Names returns every registered type name, for diagnostics and CLI listing.
func (r *Registry) Names() []TypeName {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]TypeName, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	return names
}

// Package-level convenience wrappers over the default registry.

func Register(schema Schema, fromJSON FromJSON, fromBytes FromBytes) {
	defaultRegistry.Register(schema, fromJSON, fromBytes)
}

func Create(name TypeName, value []byte) (ErasedJob, error) {
	return defaultRegistry.Create(name, value)
}

func Deserialize(name TypeName, state []byte) (ErasedJob, error) {
	return defaultRegistry.Deserialize(name, state)
}

func SchemaFor(name TypeName) (Schema, bool) {
	return defaultRegistry.SchemaFor(name)
}

func Names() []TypeName {
	return defaultRegistry.Names()
}
