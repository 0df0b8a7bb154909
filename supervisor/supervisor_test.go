package supervisor

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/meridianfs/core/job"
	"github.com/meridianfs/core/jobctx"
	"github.com/meridianfs/core/jobstore"
	"github.com/meridianfs/core/pkg/logger"
	"github.com/meridianfs/core/progressbus"
	"github.com/stretchr/testify/require"
)

type counterState struct {
	Count int `json:"count"`
}

type counterJob struct{ state counterState }

func (c *counterJob) TypeName() job.TypeName        { return "counter" }
func (c *counterJob) MarshalState() ([]byte, error) { return json.Marshal(c.state) }
func (c *counterJob) Run(ctx *jobctx.Context) (job.Output, error) { return job.Output{}, nil }

func counterFromJSON(v []byte) (job.ErasedJob, error) {
	var s counterState
	if err := json.Unmarshal(v, &s); err != nil {
		return nil, err
	}
	return &counterJob{state: s}, nil
}

func counterFromBytes(v []byte) (job.ErasedJob, error) { return counterFromJSON(v) }

type fakeRequeuer struct {
	requeued []string
}

func (f *fakeRequeuer) Requeue(rec *jobstore.Record) {
	f.requeued = append(f.requeued, rec.ID)
}

func newTestStore(t *testing.T) *jobstore.FileStore {
	t.Helper()
	store, err := jobstore.OpenFileStore(filepath.Join(t.TempDir(), "journal.json"), false)
	require.NoError(t, err)
	return store
}

func insertRow(t *testing.T, store jobstore.Store, id, typeName string, status jobstore.Status, version uint32) {
	t.Helper()
	state, _ := json.Marshal(counterState{Count: 30})
	rec := &jobstore.Record{
		ID:        id,
		TypeName:  typeName,
		Status:    jobstore.StatusQueued,
		CreatedAt: time.Now().UTC(),
		StateBlob: jobstore.EncodeEnvelope(version, state),
	}
	require.NoError(t, store.Insert(rec))

	if status != jobstore.StatusQueued {
		var intermediate jobstore.Status
		if status == jobstore.StatusRunning || status == jobstore.StatusPaused {
			intermediate = jobstore.StatusRunning
		}
		if intermediate != "" {
			require.NoError(t, store.UpdateStatus(id, intermediate, nil, nil))
		}
		if status == jobstore.StatusPaused {
			require.NoError(t, store.UpdateStatus(id, jobstore.StatusPaused, nil, nil))
		}
	}
}

func TestRecoverResumesPausedResumableJob(t *testing.T) {
	store := newTestStore(t)
	registry := job.NewRegistry()
	registry.Register(job.Schema{Name: "counter", Resumable: true, Version: 1}, counterFromJSON, counterFromBytes)

	insertRow(t, store, "job-paused", "counter", jobstore.StatusPaused, 1)

	requeuer := &fakeRequeuer{}
	report, err := Recover(store, registry, requeuer, progressbus.New(), logger.New())
	require.NoError(t, err)

	require.Contains(t, report.Resumed, "job-paused")
	require.Contains(t, requeuer.requeued, "job-paused")

	rec, err := store.Get("job-paused")
	require.NoError(t, err)
	require.Equal(t, jobstore.StatusQueued, rec.Status)
}

func TestRecoverTreatsCrashedRunningResumableAsQueued(t *testing.T) {
	store := newTestStore(t)
	registry := job.NewRegistry()
	registry.Register(job.Schema{Name: "counter", Resumable: true, Version: 1}, counterFromJSON, counterFromBytes)

	insertRow(t, store, "job-running", "counter", jobstore.StatusRunning, 1)

	requeuer := &fakeRequeuer{}
	report, err := Recover(store, registry, requeuer, progressbus.New(), logger.New())
	require.NoError(t, err)

	require.Contains(t, report.Resumed, "job-running")

	rec, err := store.Get("job-running")
	require.NoError(t, err)
	require.Equal(t, jobstore.StatusQueued, rec.Status)
}

func TestRecoverFailsCrashedRunningNonResumable(t *testing.T) {
	store := newTestStore(t)
	registry := job.NewRegistry()
	registry.Register(job.Schema{Name: "counter", Resumable: false, Version: 1}, counterFromJSON, counterFromBytes)

	insertRow(t, store, "job-running", "counter", jobstore.StatusRunning, 1)

	requeuer := &fakeRequeuer{}
	report, err := Recover(store, registry, requeuer, progressbus.New(), logger.New())
	require.NoError(t, err)

	require.Contains(t, report.Failed, "job-running")

	rec, err := store.Get("job-running")
	require.NoError(t, err)
	require.Equal(t, jobstore.StatusFailed, rec.Status)
}

func TestRecoverFailsUnknownType(t *testing.T) {
	store := newTestStore(t)
	registry := job.NewRegistry()

	insertRow(t, store, "job-unknown", "mystery_type", jobstore.StatusQueued, 1)

	requeuer := &fakeRequeuer{}
	report, err := Recover(store, registry, requeuer, progressbus.New(), logger.New())
	require.NoError(t, err)

	require.Contains(t, report.Failed, "job-unknown")
	rec, err := store.Get("job-unknown")
	require.NoError(t, err)
	require.Equal(t, jobstore.StatusFailed, rec.Status)
	require.Equal(t, "unknown job type", rec.Error)
}

func TestRecoverFailsNewerVersion(t *testing.T) {
	store := newTestStore(t)
	registry := job.NewRegistry()
	registry.Register(job.Schema{Name: "counter", Resumable: true, Version: 1}, counterFromJSON, counterFromBytes)

	insertRow(t, store, "job-futurever", "counter", jobstore.StatusQueued, 99)

	requeuer := &fakeRequeuer{}
	report, err := Recover(store, registry, requeuer, progressbus.New(), logger.New())
	require.NoError(t, err)

	require.Contains(t, report.Failed, "job-futurever")
}

func TestRecoverRequeuesAlreadyQueuedJobs(t *testing.T) {
	store := newTestStore(t)
	registry := job.NewRegistry()
	registry.Register(job.Schema{Name: "counter", Resumable: true, Version: 1}, counterFromJSON, counterFromBytes)

	insertRow(t, store, "job-queued", "counter", jobstore.StatusQueued, 1)

	requeuer := &fakeRequeuer{}
	report, err := Recover(store, registry, requeuer, progressbus.New(), logger.New())
	require.NoError(t, err)

	require.Contains(t, report.Resumed, "job-queued")
	require.Contains(t, requeuer.requeued, "job-queued")
}
