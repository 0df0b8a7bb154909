// Package scheduler owns the worker pool, dispatch queue, priority
// ordering, concurrency caps, parent/child gating, and lifecycle event
// emission for a library's jobs.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/meridianfs/core/executor"
	"github.com/meridianfs/core/job"
	"github.com/meridianfs/core/jobstore"
	"github.com/meridianfs/core/pkg/logger"
	"github.com/meridianfs/core/progressbus"
)

const admissionPollInterval = 25 * time.Millisecond

// Config wires a Scheduler's collaborators and tunables.
type Config struct {
	Store     jobstore.Store
	Registry  *job.Registry
	Bus       *progressbus.Bus
	Logger    *logger.Logger
	LibraryID string

	WorkerPoolSize int
	TypeLimits     map[string]int
	CancelGrace    time.Duration
}

// DispatchOptions customizes one Dispatch call.
type DispatchOptions struct {
	Priority      int32
	ParentID      string
	ActionContext *jobstore.ActionContext

	// Resources declares expected disk/memory footprint. Recorded on
	// the job's Record for observability; the scheduler does not
	// enforce it.
	Resources jobstore.ResourceRequirements
}

// Scheduler is the library-scoped coordinator that admits queued jobs
// into worker slots, respecting per-type concurrency limits and
// priority order.
type Scheduler struct {
	store     jobstore.Store
	registry  *job.Registry
	bus       *progressbus.Bus
	log       *logger.Logger
	libraryID string

	workerSem   *semaphore.Weighted
	typeLimits  map[string]int
	typeSemMu   sync.Mutex
	typeSems    map[string]*semaphore.Weighted
	cancelGrace time.Duration

	pq *priorityQueue

	mu      sync.Mutex
	running map[string]*executor.Executor

	newJobSignal chan struct{}
	draining     atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group

	startOnce sync.Once
}

// New builds a Scheduler. Call Start to begin dispatching.
func New(cfg Config) *Scheduler {
	workerPoolSize := cfg.WorkerPoolSize
	if workerPoolSize <= 0 {
		workerPoolSize = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	group := &errgroup.Group{}

	return &Scheduler{
		store:        cfg.Store,
		registry:     cfg.Registry,
		bus:          cfg.Bus,
		log:          cfg.Logger.WithField("component", "scheduler"),
		libraryID:    cfg.LibraryID,
		workerSem:    semaphore.NewWeighted(int64(workerPoolSize)),
		typeLimits:   cfg.TypeLimits,
		typeSems:     make(map[string]*semaphore.Weighted),
		cancelGrace:  cfg.CancelGrace,
		pq:           newPriorityQueue(),
		running:      make(map[string]*executor.Executor),
		newJobSignal: make(chan struct{}, 1),
		ctx:          ctx,
		cancel:       cancel,
		group:        group,
	}
}

// Start begins the dispatch loop in the background.
func (s *Scheduler) Start() {
	s.startOnce.Do(func() {
		go s.loop()
	})
}

// Stop cancels the dispatch loop and waits (bounded by ctx) for running
// jobs to exit. It does not itself request that running jobs pause or
// cancel — that is the shutdown coordinator's job.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()

	done := make(chan error, 1)
	go func() { done <- s.group.Wait() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dispatch creates a new job of typeName from params, persists it
// Queued, and enqueues it for pickup.
func (s *Scheduler) Dispatch(typeName job.TypeName, params json.RawMessage, opts DispatchOptions) (string, error) {
	schema, ok := s.registry.SchemaFor(typeName)
	if !ok {
		return "", fmt.Errorf("scheduler: unknown job type %q", typeName)
	}

	erased, err := s.registry.Create(typeName, params)
	if err != nil {
		return "", err
	}

	state, err := erased.MarshalState()
	if err != nil {
		return "", fmt.Errorf("scheduler: marshal initial state: %w", err)
	}

	id := uuid.New().String()
	rec := &jobstore.Record{
		ID:            id,
		TypeName:      string(typeName),
		Status:        jobstore.StatusQueued,
		Priority:      opts.Priority,
		ParentID:      opts.ParentID,
		CreatedAt:     time.Now().UTC(),
		StateBlob:     jobstore.EncodeEnvelope(schema.Version, state),
		ActionContext: opts.ActionContext,
		Resources:     opts.Resources,
	}

	if err := s.store.Insert(rec); err != nil {
		return "", err
	}

	s.bus.PublishLifecycle(progressbus.Event{Type: progressbus.JobQueued, JobID: id})
	s.enqueue(rec)

	return id, nil
}

// Requeue re-enqueues a record that already exists in the Store,
// without inserting it again. Used by the supervisor to pick up
// non-terminal jobs recovered on startup.
func (s *Scheduler) Requeue(rec *jobstore.Record) {
	s.enqueue(rec)
}

func (s *Scheduler) enqueue(rec *jobstore.Record) {
	s.pq.Add(&queueEntry{
		id:        rec.ID,
		typeName:  rec.TypeName,
		priority:  rec.Priority,
		createdAt: rec.CreatedAt,
		parentID:  rec.ParentID,
	})
	s.wake()
}

func (s *Scheduler) wake() {
	select {
	case s.newJobSignal <- struct{}{}:
	default:
	}
}

// Pause requests a cooperative pause on a running job, or, for a job
// that hasn't started yet, parks a Queued job directly into Paused
// without ever starting it.
func (s *Scheduler) Pause(id string) error {
	s.mu.Lock()
	exec, running := s.running[id]
	s.mu.Unlock()

	if running {
		exec.Pause()
		return nil
	}

	if s.pq.Remove(id) {
		if err := s.store.UpdateStatus(id, jobstore.StatusPaused, nil, nil); err != nil {
			return err
		}
		s.bus.PublishLifecycle(progressbus.Event{Type: progressbus.JobPaused, JobID: id})
		return nil
	}

	rec, err := s.store.Get(id)
	if err != nil {
		return err
	}
	if rec.Status.Terminal() {
		// Pausing a Completed/Failed/Cancelled job is a no-op.
		return nil
	}

	return fmt.Errorf("scheduler: job %q is neither running nor queued", id)
}

// Resume moves a Paused job back to Queued and re-enqueues it.
func (s *Scheduler) Resume(id string) error {
	if err := s.store.UpdateStatus(id, jobstore.StatusQueued, nil, nil); err != nil {
		return err
	}

	rec, err := s.store.Get(id)
	if err != nil {
		return err
	}

	s.bus.PublishLifecycle(progressbus.Event{Type: progressbus.JobResumed, JobID: id})
	s.enqueue(rec)
	return nil
}

// Cancel cancels a job wherever it is: running jobs get a cooperative
// cancel signal; queued and paused jobs are marked Cancelled directly
// (queued ones are pulled out of the queue first). Either way,
// cascade-cancel runs against its children.
func (s *Scheduler) Cancel(id string) error {
	s.mu.Lock()
	exec, running := s.running[id]
	s.mu.Unlock()

	if running {
		exec.Cancel()
		return nil
	}

	if s.pq.Remove(id) {
		if err := s.store.UpdateStatus(id, jobstore.StatusCancelled, nil, nil); err != nil {
			return err
		}
		s.bus.PublishLifecycle(progressbus.Event{Type: progressbus.JobCancelled, JobID: id})
		s.cascadeCancelChildren(id)
		return nil
	}

	if rec, err := s.store.Get(id); err == nil && rec.Status == jobstore.StatusPaused {
		if err := s.store.UpdateStatus(id, jobstore.StatusCancelled, nil, nil); err != nil {
			return err
		}
		s.bus.PublishLifecycle(progressbus.Event{Type: progressbus.JobCancelled, JobID: id})
		s.cascadeCancelChildren(id)
		return nil
	}

	return fmt.Errorf("scheduler: job %q is neither running nor queued", id)
}

// SetDraining stops the dispatch loop from admitting any new job; jobs
// already running are left alone. Used by the shutdown coordinator as
// the first step of a graceful drain.
func (s *Scheduler) SetDraining() {
	s.draining.Store(true)
}

// ShutdownRunning sends a cooperative shutdown-pause signal to every
// currently running job's executor and returns their ids, so the
// shutdown coordinator can watch for each to reach a terminal or paused
// state within its grace window.
func (s *Scheduler) ShutdownRunning() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.running))
	for id, exec := range s.running {
		exec.Shutdown()
		ids = append(ids, id)
	}
	return ids
}

// Get and List pass straight through to the Store.
func (s *Scheduler) Get(id string) (*jobstore.Record, error) { return s.store.Get(id) }
func (s *Scheduler) List(filter jobstore.Filter) ([]*jobstore.Record, error) {
	return s.store.List(filter)
}

// loop is the main dispatch loop: sleep until there's a candidate,
// check admission, dispatch or wait, repeat.
func (s *Scheduler) loop() {
	s.log.Info("scheduler loop starting")

	for {
		select {
		case <-s.ctx.Done():
			s.log.Info("scheduler loop stopping")
			return
		default:
		}

		if s.draining.Load() {
			select {
			case <-s.ctx.Done():
				return
			case <-time.After(admissionPollInterval):
			}
			continue
		}

		entry := s.pq.Peek()
		if entry == nil {
			select {
			case <-s.newJobSignal:
				continue
			case <-s.ctx.Done():
				return
			}
		}

		blocked, cascade := s.gateOnParent(entry)
		if blocked {
			if cascade {
				s.pq.Remove(entry.id)
				s.cancelBlockedEntry(entry)
				continue
			}

			// Parent is still Queued/Running/Paused: entry stays in the
			// queue, gated, until the parent reaches a terminal state.
			// Wait rather than busy-loop re-peeking the same entry.
			select {
			case <-s.newJobSignal:
			case <-time.After(admissionPollInterval):
			case <-s.ctx.Done():
				return
			}
			continue
		}

		if !s.acquireAdmission(entry.typeName) {
			select {
			case <-s.newJobSignal:
			case <-time.After(admissionPollInterval):
			case <-s.ctx.Done():
				return
			}
			continue
		}

		popped := s.pq.PopNext()
		if popped == nil {
			// The loop is the sole consumer of the queue, so this
			// shouldn't happen; release what we acquired rather than
			// leak a slot.
			s.releaseAdmission(entry.typeName)
			continue
		}

		s.dispatch(popped)
	}
}

// gateOnParent reports whether entry cannot be dispatched yet because
// of its parent's state. A job whose parent is still Queued, Running,
// or Paused stays gated (blocked, no cascade) until the parent
// completes. cascade is true when the parent has already failed or
// been cancelled, meaning entry itself must be cancelled rather than
// merely deferred.
func (s *Scheduler) gateOnParent(entry *queueEntry) (blocked bool, cascade bool) {
	if entry.parentID == "" {
		return false, false
	}

	parent, err := s.store.Get(entry.parentID)
	if err != nil {
		return false, false
	}

	switch parent.Status {
	case jobstore.StatusCompleted:
		return false, false
	case jobstore.StatusFailed, jobstore.StatusCancelled:
		return true, true
	default:
		// Queued, Running, or Paused.
		return true, false
	}
}

func (s *Scheduler) cancelBlockedEntry(entry *queueEntry) {
	if err := s.store.UpdateStatus(entry.id, jobstore.StatusCancelled, nil, nil); err != nil {
		s.log.Warn("failed to cascade-cancel blocked job", "job_id", entry.id, "error", err)
		return
	}
	s.bus.PublishLifecycle(progressbus.Event{Type: progressbus.JobCancelled, JobID: entry.id})
	s.cascadeCancelChildren(entry.id)
}

// cascadeCancelChildren walks the Store's parent/child links and
// cancels every non-terminal descendant of id when id itself has
// failed or been cancelled.
func (s *Scheduler) cascadeCancelChildren(id string) {
	children, err := s.store.ListChildren(id)
	if err != nil {
		s.log.Warn("failed to list children for cascade-cancel", "job_id", id, "error", err)
		return
	}

	for _, child := range children {
		if child.Status.Terminal() {
			continue
		}

		s.mu.Lock()
		exec, running := s.running[child.ID]
		s.mu.Unlock()

		if running {
			exec.Cancel()
			continue
		}

		s.pq.Remove(child.ID)
		if err := s.store.UpdateStatus(child.ID, jobstore.StatusCancelled, nil, nil); err != nil {
			s.log.Warn("failed to cancel child job", "job_id", child.ID, "error", err)
			continue
		}
		s.bus.PublishLifecycle(progressbus.Event{Type: progressbus.JobCancelled, JobID: child.ID})
		s.cascadeCancelChildren(child.ID)
	}
}

// acquireAdmission tries to reserve one global worker slot and, if the
// type has a configured limit, one per-type slot. Both are released
// together if either fails, since admission is all-or-nothing.
func (s *Scheduler) acquireAdmission(typeName string) bool {
	if !s.workerSem.TryAcquire(1) {
		return false
	}

	typeSem := s.typeSemaphoreFor(typeName)
	if typeSem == nil {
		return true
	}

	if !typeSem.TryAcquire(1) {
		s.workerSem.Release(1)
		return false
	}

	return true
}

func (s *Scheduler) releaseAdmission(typeName string) {
	s.workerSem.Release(1)
	if typeSem := s.typeSemaphoreFor(typeName); typeSem != nil {
		typeSem.Release(1)
	}
}

func (s *Scheduler) typeSemaphoreFor(typeName string) *semaphore.Weighted {
	limit, configured := s.typeLimits[typeName]
	if !configured || limit <= 0 {
		return nil
	}

	s.typeSemMu.Lock()
	defer s.typeSemMu.Unlock()

	sem, ok := s.typeSems[typeName]
	if !ok {
		sem = semaphore.NewWeighted(int64(limit))
		s.typeSems[typeName] = sem
	}
	return sem
}

// dispatch rehydrates entry's job from the Store and hands it to a
// fresh Executor, running under the worker pool's errgroup.
func (s *Scheduler) dispatch(entry *queueEntry) {
	typeName := job.TypeName(entry.typeName)

	schema, ok := s.registry.SchemaFor(typeName)
	if !ok {
		s.log.Error("dispatch: unknown job type, failing job", "job_id", entry.id, "type", entry.typeName)
		s.failUnknownType(entry.id)
		s.releaseAdmission(entry.typeName)
		return
	}

	rec, err := s.store.Get(entry.id)
	if err != nil {
		s.log.Error("dispatch: failed to load job record", "job_id", entry.id, "error", err)
		s.releaseAdmission(entry.typeName)
		return
	}

	// A job that has checkpointed resumes from that checkpoint rather
	// than from the state it was dispatched with.
	blob := rec.StateBlob
	if rec.CheckpointBlob != nil {
		blob = rec.CheckpointBlob
	}

	_, payload, err := jobstore.DecodeEnvelope(blob, schema.Version)
	if err != nil {
		s.log.Error("dispatch: failed to decode state envelope", "job_id", entry.id, "error", err)
		s.releaseAdmission(entry.typeName)
		return
	}

	erased, err := s.registry.Deserialize(typeName, payload)
	if err != nil {
		s.log.Error("dispatch: failed to rehydrate job", "job_id", entry.id, "error", err)
		s.releaseAdmission(entry.typeName)
		return
	}

	if rec.CheckpointBlob != nil {
		if resumer, ok := erased.(job.Resumer); ok {
			resumer.OnResume()
		}
	}

	deps := executor.Deps{
		Store:       s.store,
		Bus:         s.bus,
		Logger:      s.log,
		LibraryID:   s.libraryID,
		CancelGrace: s.cancelGrace,
		OnExit: func(jobID string) {
			s.onExecutorExit(jobID, entry.typeName)
		},
	}

	exec := executor.New(entry.id, schema, erased, deps)

	s.mu.Lock()
	s.running[entry.id] = exec
	s.mu.Unlock()

	s.group.Go(func() error {
		if err := exec.Run(); err != nil {
			s.log.Debug("job exited with error", "job_id", entry.id, "error", err)
		}
		return nil
	})
}

func (s *Scheduler) failUnknownType(id string) {
	if err := s.store.UpdateStatus(id, jobstore.StatusFailed, nil, nil); err != nil {
		return
	}
	_ = s.store.SetError(id, "unknown job type")
	s.bus.PublishLifecycle(progressbus.Event{Type: progressbus.JobFailed, JobID: id, Error: "unknown job type"})
}

// onExecutorExit releases the admission slots an executor held, drops
// it from the running set, cascades cancellation to its children if it
// ended in a terminal non-success state, and wakes the loop so the next
// candidate gets a chance.
func (s *Scheduler) onExecutorExit(jobID, typeName string) {
	s.mu.Lock()
	delete(s.running, jobID)
	s.mu.Unlock()

	s.releaseAdmission(typeName)

	if rec, err := s.store.Get(jobID); err == nil {
		if rec.Status == jobstore.StatusFailed || rec.Status == jobstore.StatusCancelled {
			s.cascadeCancelChildren(jobID)
		}
	}

	s.wake()
}
