package jobstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	joberrors "github.com/meridianfs/core/pkg/errors"
)

// Store is the durable, library-scoped table of job records the rest of
// the Core reads and writes through. Every mutating call commits status
// and checkpoint data together; partial writes are never observable.
type Store interface {
	Insert(r *Record) error
	UpdateStatus(id string, newStatus Status, checkpoint []byte, metrics *JobMetrics) error
	RecordProgress(id string, snap ProgressSnapshot) error
	Checkpoint(id string, blob []byte, metrics JobMetrics) error
	SetError(id string, errMsg string) error
	Get(id string) (*Record, error)
	List(filter Filter) ([]*Record, error)
	ListChildren(parentID string) ([]*Record, error)
	LoadNonTerminal() ([]*Record, error)
	Prune(before time.Time) (int, error)
	Close() error
}

// FileStore is a file-backed Store: an in-memory map guarded by a mutex,
// synchronously mirrored to a single JSON snapshot file on every
// mutating call so the file on disk always reflects the latest
// committed status and checkpoint.
type FileStore struct {
	mu         sync.RWMutex
	path       string
	syncWrites bool
	records    map[string]*Record
}

// OpenFileStore opens (or creates) a snapshot file at path and loads any
// records already persisted there.
func OpenFileStore(path string, syncWrites bool) (*FileStore, error) {
	fs := &FileStore{
		path:       path,
		syncWrites: syncWrites,
		records:    make(map[string]*Record),
	}

	if err := fs.load(); err != nil {
		return nil, fmt.Errorf("jobstore: failed to load snapshot: %w", err)
	}

	return fs, nil
}

func (fs *FileStore) load() error {
	data, err := os.ReadFile(fs.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if len(data) == 0 {
		return nil
	}

	var records map[string]*Record
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("%w: %v", joberrors.ErrSerialization, err)
	}

	fs.records = records
	return nil
}

// save must be called with fs.mu held (read or write; it only reads
// fs.records) and persists the entire table as one JSON document,
// following the whole-map snapshot idiom used elsewhere in this corpus
// for small, infrequently-huge in-process indexes.
func (fs *FileStore) save() error {
	data, err := json.MarshalIndent(fs.records, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", joberrors.ErrSerialization, err)
	}

	if err := os.MkdirAll(filepath.Dir(fs.path), 0o755); err != nil {
		return err
	}

	tmp := fs.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}

	if fs.syncWrites {
		if f, err := os.Open(tmp); err == nil {
			_ = f.Sync()
			_ = f.Close()
		}
	}

	return os.Rename(tmp, fs.path)
}

func (fs *FileStore) Insert(r *Record) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if _, exists := fs.records[r.ID]; exists {
		return wrapStoreErr(r.ID, "insert", ErrAlreadyExists)
	}

	rec := r.Clone()
	rec.UpdateSeq = 1
	fs.records[rec.ID] = rec

	return fs.save()
}

func (fs *FileStore) UpdateStatus(id string, newStatus Status, checkpoint []byte, metrics *JobMetrics) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	rec, ok := fs.records[id]
	if !ok {
		return wrapStoreErr(id, "update_status", ErrNotFound)
	}

	if rec.Status.Terminal() {
		return wrapStoreErr(id, "update_status", ErrTerminal)
	}

	if !CanTransition(rec.Status, newStatus) {
		return wrapStoreErr(id, "update_status", invalidTransition(rec.Status, newStatus))
	}

	now := time.Now().UTC()

	switch newStatus {
	case StatusRunning:
		rec.StartedAt = &now
	case StatusCompleted, StatusFailed, StatusCancelled:
		rec.CompletedAt = &now
	}

	rec.Status = newStatus
	if checkpoint != nil {
		rec.CheckpointBlob = append([]byte(nil), checkpoint...)
	}
	if metrics != nil {
		rec.Metrics = *metrics
	}
	rec.UpdateSeq++

	return fs.save()
}

func (fs *FileStore) RecordProgress(id string, snap ProgressSnapshot) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	rec, ok := fs.records[id]
	if !ok {
		return wrapStoreErr(id, "record_progress", ErrNotFound)
	}
	if rec.Status.Terminal() {
		return wrapStoreErr(id, "record_progress", ErrTerminal)
	}

	rec.LastProgress = snap
	rec.UpdateSeq++

	return fs.save()
}

func (fs *FileStore) Checkpoint(id string, blob []byte, metrics JobMetrics) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	rec, ok := fs.records[id]
	if !ok {
		return wrapStoreErr(id, "checkpoint", ErrNotFound)
	}
	if rec.Status.Terminal() {
		return wrapStoreErr(id, "checkpoint", ErrTerminal)
	}

	rec.CheckpointBlob = append([]byte(nil), blob...)
	rec.Metrics = metrics
	rec.UpdateSeq++

	return fs.save()
}

func (fs *FileStore) SetError(id string, errMsg string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	rec, ok := fs.records[id]
	if !ok {
		return wrapStoreErr(id, "set_error", ErrNotFound)
	}

	rec.Error = errMsg
	rec.UpdateSeq++

	return fs.save()
}

func (fs *FileStore) Get(id string) (*Record, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	rec, ok := fs.records[id]
	if !ok {
		return nil, wrapStoreErr(id, "get", ErrNotFound)
	}
	return rec.Clone(), nil
}

func (fs *FileStore) List(filter Filter) ([]*Record, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	matched := make([]*Record, 0, len(fs.records))
	for _, rec := range fs.records {
		if filter.matches(rec) {
			matched = append(matched, rec.Clone())
		}
	}

	sortByPriorityThenAge(matched)

	return filter.paginate(matched), nil
}

func (fs *FileStore) ListChildren(parentID string) ([]*Record, error) {
	return fs.List(Filter{ParentID: &parentID})
}

func (fs *FileStore) LoadNonTerminal() ([]*Record, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	out := make([]*Record, 0)
	for _, rec := range fs.records {
		if !rec.Status.Terminal() {
			out = append(out, rec.Clone())
		}
	}

	sortByPriorityThenAge(out)

	return out, nil
}

func (fs *FileStore) Prune(before time.Time) (int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	pruned := 0
	for id, rec := range fs.records {
		if rec.Status.Terminal() && rec.CompletedAt != nil && rec.CompletedAt.Before(before) {
			delete(fs.records, id)
			pruned++
		}
	}

	if pruned > 0 {
		if err := fs.save(); err != nil {
			return 0, err
		}
	}

	return pruned, nil
}

func (fs *FileStore) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.save()
}

// sortByPriorityThenAge orders records by (priority desc, created_at asc),
// the dispatch queue's canonical ordering.
func sortByPriorityThenAge(records []*Record) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].Priority != records[j].Priority {
			return records[i].Priority > records[j].Priority
		}
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
}
