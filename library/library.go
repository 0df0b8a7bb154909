// Package library composes the job registry, store, context, executor,
// scheduler, supervisor, progress bus, and shutdown coordinator behind
// one entry point, the way a process manager composes its execution
// engine and store behind one struct.
package library

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/meridianfs/core/job"
	"github.com/meridianfs/core/jobstore"
	"github.com/meridianfs/core/pkg/logger"
	"github.com/meridianfs/core/progressbus"
	"github.com/meridianfs/core/scheduler"
	"github.com/meridianfs/core/shutdown"
	"github.com/meridianfs/core/supervisor"
)

// Config wires a Library's storage location and tunables. When Registry
// is nil, Open uses a new, empty registry; the job package's
// package-level registry is not used.
type Config struct {
	ID          string
	JournalPath string
	SyncWrites  bool

	WorkerPoolSize int
	TypeLimits     map[string]int
	CancelGrace    time.Duration
	ShutdownGrace  time.Duration

	Registry *job.Registry
	Logger   *logger.Logger
}

// Library is the host application's single entry point into the job
// system for one library (one store, one scheduler, one progress bus).
type Library struct {
	id            string
	store         jobstore.Store
	registry      *job.Registry
	bus           *progressbus.Bus
	scheduler     *scheduler.Scheduler
	log           *logger.Logger
	shutdownGrace time.Duration
}

// Open opens (or creates) the library's store, runs crash recovery, and
// starts the scheduler. Call Close to drain it before process exit.
func Open(cfg Config) (*Library, error) {
	log := cfg.Logger
	if log == nil {
		log = logger.New()
	}
	log = log.WithField("component", "library").WithField("library_id", cfg.ID)

	registry := cfg.Registry
	if registry == nil {
		registry = job.NewRegistry()
	}

	store, err := jobstore.OpenFileStore(cfg.JournalPath, cfg.SyncWrites)
	if err != nil {
		return nil, fmt.Errorf("library: open store: %w", err)
	}

	bus := progressbus.New()

	sched := scheduler.New(scheduler.Config{
		Store:          store,
		Registry:       registry,
		Bus:            bus,
		Logger:         log,
		LibraryID:      cfg.ID,
		WorkerPoolSize: cfg.WorkerPoolSize,
		TypeLimits:     cfg.TypeLimits,
		CancelGrace:    cfg.CancelGrace,
	})
	sched.Start()

	report, err := supervisor.Recover(store, registry, sched, bus, log)
	if err != nil {
		return nil, fmt.Errorf("library: recovery: %w", err)
	}
	log.Info("library opened", "resumed", len(report.Resumed), "failed", len(report.Failed), "skipped", len(report.Skipped))

	shutdownGrace := cfg.ShutdownGrace
	if shutdownGrace <= 0 {
		shutdownGrace = 10 * time.Second
	}

	return &Library{
		id:            cfg.ID,
		store:         store,
		registry:      registry,
		bus:           bus,
		scheduler:     sched,
		log:           log,
		shutdownGrace: shutdownGrace,
	}, nil
}

// Dispatch creates and enqueues a new job.
func (l *Library) Dispatch(typeName job.TypeName, params json.RawMessage, opts scheduler.DispatchOptions) (string, error) {
	return l.scheduler.Dispatch(typeName, params, opts)
}

// Pause requests a cooperative pause on id.
func (l *Library) Pause(id string) error { return l.scheduler.Pause(id) }

// Resume re-queues a paused job.
func (l *Library) Resume(id string) error { return l.scheduler.Resume(id) }

// Cancel cancels id, cascading to its children.
func (l *Library) Cancel(id string) error { return l.scheduler.Cancel(id) }

// Get returns id's current record.
func (l *Library) Get(id string) (*jobstore.Record, error) { return l.store.Get(id) }

// List returns records matching filter.
func (l *Library) List(filter jobstore.Filter) ([]*jobstore.Record, error) { return l.store.List(filter) }

// Subscribe returns a channel of lifecycle and progress events, and an
// unsubscribe function the caller must call when done listening.
func (l *Library) Subscribe() (<-chan progressbus.Event, func()) { return l.bus.Subscribe() }

// Close drains the library per the shutdown coordinator's contract
// (stop admitting new jobs, pause everything running, wait up to the
// configured grace window, force-settle stragglers) and stops the
// scheduler's dispatch loop.
func (l *Library) Close(ctx context.Context) (shutdown.Report, error) {
	report, err := shutdown.Close(ctx, l.scheduler, l.store, l.registry, l.bus, l.log, l.shutdownGrace)
	if err != nil {
		return report, err
	}

	if err := l.scheduler.Stop(ctx); err != nil {
		return report, fmt.Errorf("library: scheduler stop: %w", err)
	}

	l.bus.Close()
	return report, l.store.Close()
}
