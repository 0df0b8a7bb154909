package shutdown

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/meridianfs/core/job"
	"github.com/meridianfs/core/jobctx"
	"github.com/meridianfs/core/jobstore"
	"github.com/meridianfs/core/pkg/logger"
	"github.com/meridianfs/core/progressbus"
	"github.com/meridianfs/core/scheduler"
	"github.com/stretchr/testify/require"
)

// cooperativeJob checks its suspend point on every loop iteration, so it
// parks itself as soon as the coordinator asks it to.
type cooperativeJob struct{}

func (j *cooperativeJob) TypeName() job.TypeName        { return "shutdown_cooperative" }
func (j *cooperativeJob) MarshalState() ([]byte, error) { return json.Marshal(struct{}{}) }
func (j *cooperativeJob) Run(ctx *jobctx.Context) (job.Output, error) {
	for {
		if err := ctx.SuspendPoint(func() ([]byte, error) { return nil, nil }); err != nil {
			return job.Output{}, err
		}
		time.Sleep(time.Millisecond)
	}
}

// stubbornJob never checks its suspend point and so never responds to a
// shutdown request on its own.
type stubbornJob struct{ release chan struct{} }

func (j *stubbornJob) TypeName() job.TypeName        { return "shutdown_stubborn" }
func (j *stubbornJob) MarshalState() ([]byte, error) { return json.Marshal(struct{}{}) }
func (j *stubbornJob) Run(ctx *jobctx.Context) (job.Output, error) {
	<-j.release
	return job.Output{Summary: "finally done"}, nil
}

func newFromJSON(build func() job.ErasedJob) job.FromJSON {
	return func([]byte) (job.ErasedJob, error) { return build(), nil }
}

func newFromBytes(build func() job.ErasedJob) job.FromBytes {
	return func([]byte) (job.ErasedJob, error) { return build(), nil }
}

func waitForStatus(t *testing.T, store jobstore.Store, id string, want jobstore.Status, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		rec, err := store.Get(id)
		require.NoError(t, err)
		if rec.Status == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("job %s did not reach status %s in time", id, want)
}

func TestCloseParksCooperativeResumableJobWithinGraceWindow(t *testing.T) {
	store, err := jobstore.OpenFileStore(t.TempDir()+"/journal.json", false)
	require.NoError(t, err)

	registry := job.NewRegistry()
	registry.Register(job.Schema{Name: "shutdown_cooperative", Resumable: true, Version: 1},
		newFromJSON(func() job.ErasedJob { return &cooperativeJob{} }),
		newFromBytes(func() job.ErasedJob { return &cooperativeJob{} }))

	bus := progressbus.New()
	events, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	sched := scheduler.New(scheduler.Config{
		Store:          store,
		Registry:       registry,
		Bus:            bus,
		Logger:         logger.New(),
		LibraryID:      "lib-test",
		WorkerPoolSize: 4,
	})
	sched.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = sched.Stop(ctx)
	})

	id, err := sched.Dispatch("shutdown_cooperative", []byte(`{}`), scheduler.DispatchOptions{})
	require.NoError(t, err)
	waitForStatus(t, store, id, jobstore.StatusRunning, time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	report, err := Close(ctx, sched, store, registry, bus, logger.New(), time.Second)
	require.NoError(t, err)
	require.Contains(t, report.Paused, id)
	require.Empty(t, report.FailedOnShutdown)

	rec, err := store.Get(id)
	require.NoError(t, err)
	require.Equal(t, jobstore.StatusPaused, rec.Status)

	var sawShutdownComplete bool
drain:
	for {
		select {
		case ev := <-events:
			if ev.Type == progressbus.ShutdownComplete {
				sawShutdownComplete = true
				require.Equal(t, 1, ev.Paused)
				require.Equal(t, 0, ev.FailedOnShutdown)
			}
		case <-time.After(50 * time.Millisecond):
			break drain
		}
	}
	require.True(t, sawShutdownComplete, "expected a ShutdownComplete event")
}

func TestCloseForceFailsNonResumableStraggler(t *testing.T) {
	store, err := jobstore.OpenFileStore(t.TempDir()+"/journal.json", false)
	require.NoError(t, err)

	release := make(chan struct{})
	registry := job.NewRegistry()
	registry.Register(job.Schema{Name: "shutdown_stubborn", Resumable: false, Version: 1},
		newFromJSON(func() job.ErasedJob { return &stubbornJob{release: release} }),
		newFromBytes(func() job.ErasedJob { return &stubbornJob{release: release} }))
	defer close(release)

	bus := progressbus.New()
	sched := scheduler.New(scheduler.Config{
		Store:          store,
		Registry:       registry,
		Bus:            bus,
		Logger:         logger.New(),
		LibraryID:      "lib-test",
		WorkerPoolSize: 4,
	})
	sched.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = sched.Stop(ctx)
	})

	id, err := sched.Dispatch("shutdown_stubborn", []byte(`{}`), scheduler.DispatchOptions{})
	require.NoError(t, err)
	waitForStatus(t, store, id, jobstore.StatusRunning, time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	report, err := Close(ctx, sched, store, registry, bus, logger.New(), 30*time.Millisecond)
	require.NoError(t, err)
	require.Contains(t, report.FailedOnShutdown, id)
	require.Empty(t, report.Paused)

	rec, err := store.Get(id)
	require.NoError(t, err)
	require.Equal(t, jobstore.StatusFailed, rec.Status)
}
