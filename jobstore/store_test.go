package jobstore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.json")
	fs, err := OpenFileStore(path, false)
	require.NoError(t, err)
	return fs
}

func newRecord(id, typeName string, priority int32) *Record {
	return &Record{
		ID:        id,
		TypeName:  typeName,
		Status:    StatusQueued,
		Priority:  priority,
		CreatedAt: time.Now().UTC(),
		StateBlob: EncodeEnvelope(1, []byte(`{}`)),
	}
}

func TestInsertAndGet(t *testing.T) {
	fs := newTestStore(t)

	rec := newRecord("job-1", "echo", 0)
	require.NoError(t, fs.Insert(rec))

	got, err := fs.Get("job-1")
	require.NoError(t, err)
	require.Equal(t, "echo", got.TypeName)
	require.Equal(t, StatusQueued, got.Status)
}

func TestInsertDuplicateFails(t *testing.T) {
	fs := newTestStore(t)

	require.NoError(t, fs.Insert(newRecord("job-1", "echo", 0)))
	err := fs.Insert(newRecord("job-1", "echo", 0))
	require.ErrorIs(t, err, ErrAlreadyExists)
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	fs := newTestStore(t)
	_, err := fs.Get("missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateStatusValidTransitions(t *testing.T) {
	fs := newTestStore(t)
	require.NoError(t, fs.Insert(newRecord("job-1", "echo", 0)))

	require.NoError(t, fs.UpdateStatus("job-1", StatusRunning, nil, nil))
	rec, err := fs.Get("job-1")
	require.NoError(t, err)
	require.Equal(t, StatusRunning, rec.Status)
	require.NotNil(t, rec.StartedAt)

	require.NoError(t, fs.UpdateStatus("job-1", StatusCompleted, nil, &JobMetrics{ItemsProcessed: 3}))
	rec, err = fs.Get("job-1")
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, rec.Status)
	require.NotNil(t, rec.CompletedAt)
	require.Equal(t, int64(3), rec.Metrics.ItemsProcessed)
}

func TestUpdateStatusRejectsInvalidTransition(t *testing.T) {
	fs := newTestStore(t)
	require.NoError(t, fs.Insert(newRecord("job-1", "echo", 0)))

	err := fs.UpdateStatus("job-1", StatusCompleted, nil, nil)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestUpdateStatusRejectsWriteToTerminalRow(t *testing.T) {
	fs := newTestStore(t)
	require.NoError(t, fs.Insert(newRecord("job-1", "echo", 0)))
	require.NoError(t, fs.UpdateStatus("job-1", StatusRunning, nil, nil))
	require.NoError(t, fs.UpdateStatus("job-1", StatusCompleted, nil, nil))

	err := fs.UpdateStatus("job-1", StatusFailed, nil, nil)
	require.ErrorIs(t, err, ErrTerminal)
}

func TestCheckpointRoundTrip(t *testing.T) {
	fs := newTestStore(t)
	require.NoError(t, fs.Insert(newRecord("job-1", "counter", 0)))
	require.NoError(t, fs.UpdateStatus("job-1", StatusRunning, nil, nil))

	checkpoint := EncodeEnvelope(1, []byte(`{"cursor":30}`))
	require.NoError(t, fs.Checkpoint("job-1", checkpoint, JobMetrics{ItemsProcessed: 30}))

	rec, err := fs.Get("job-1")
	require.NoError(t, err)
	require.Equal(t, checkpoint, rec.CheckpointBlob)
	require.Equal(t, int64(30), rec.Metrics.ItemsProcessed)
}

func TestListOrdersByPriorityThenAge(t *testing.T) {
	fs := newTestStore(t)

	a := newRecord("a", "echo", 0)
	a.CreatedAt = time.Now().UTC()
	require.NoError(t, fs.Insert(a))

	time.Sleep(2 * time.Millisecond)
	b := newRecord("b", "echo", 0)
	b.CreatedAt = time.Now().UTC()
	require.NoError(t, fs.Insert(b))

	time.Sleep(2 * time.Millisecond)
	c := newRecord("c", "echo", 10)
	c.CreatedAt = time.Now().UTC()
	require.NoError(t, fs.Insert(c))

	records, err := fs.List(Filter{})
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, "c", records[0].ID)
	require.Equal(t, "a", records[1].ID)
	require.Equal(t, "b", records[2].ID)
}

func TestListChildren(t *testing.T) {
	fs := newTestStore(t)

	parent := newRecord("parent", "echo", 0)
	require.NoError(t, fs.Insert(parent))

	child := newRecord("child", "echo", 0)
	child.ParentID = "parent"
	require.NoError(t, fs.Insert(child))

	other := newRecord("other", "echo", 0)
	require.NoError(t, fs.Insert(other))

	children, err := fs.ListChildren("parent")
	require.NoError(t, err)
	require.Len(t, children, 1)
	require.Equal(t, "child", children[0].ID)
}

func TestLoadNonTerminal(t *testing.T) {
	fs := newTestStore(t)

	running := newRecord("running", "echo", 0)
	require.NoError(t, fs.Insert(running))
	require.NoError(t, fs.UpdateStatus("running", StatusRunning, nil, nil))

	done := newRecord("done", "echo", 0)
	require.NoError(t, fs.Insert(done))
	require.NoError(t, fs.UpdateStatus("done", StatusRunning, nil, nil))
	require.NoError(t, fs.UpdateStatus("done", StatusCompleted, nil, nil))

	rows, err := fs.LoadNonTerminal()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "running", rows[0].ID)
}

func TestPersistenceAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.json")

	fs1, err := OpenFileStore(path, false)
	require.NoError(t, err)
	require.NoError(t, fs1.Insert(newRecord("job-1", "echo", 0)))
	require.NoError(t, fs1.UpdateStatus("job-1", StatusRunning, nil, nil))
	require.NoError(t, fs1.Close())

	fs2, err := OpenFileStore(path, false)
	require.NoError(t, err)

	rec, err := fs2.Get("job-1")
	require.NoError(t, err)
	require.Equal(t, StatusRunning, rec.Status)
}

func TestPrune(t *testing.T) {
	fs := newTestStore(t)

	rec := newRecord("old", "echo", 0)
	require.NoError(t, fs.Insert(rec))
	require.NoError(t, fs.UpdateStatus("old", StatusRunning, nil, nil))
	require.NoError(t, fs.UpdateStatus("old", StatusCompleted, nil, nil))

	n, err := fs.Prune(time.Now().Add(1 * time.Hour))
	require.NoError(t, err)
	require.Equal(t, 1, n)

	_, err = fs.Get("old")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestEnvelopeRoundTrip(t *testing.T) {
	envelope := EncodeEnvelope(1, []byte(`{"hello":"world"}`))

	version, payload, err := DecodeEnvelope(envelope, 1)
	require.NoError(t, err)
	require.Equal(t, uint32(1), version)
	require.Equal(t, []byte(`{"hello":"world"}`), payload)
}

func TestEnvelopeVersionMismatch(t *testing.T) {
	envelope := EncodeEnvelope(2, []byte(`{}`))

	_, _, err := DecodeEnvelope(envelope, 1)
	require.ErrorIs(t, err, ErrVersionMismatch)
}
