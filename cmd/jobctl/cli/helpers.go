package cli

import (
	"context"
	"time"

	"github.com/meridianfs/core/jobstore"
	"github.com/meridianfs/core/library"
)

// closeQuietly drains the library with a short grace window before the
// CLI process exits, discarding the shutdown report: a one-shot command
// invocation has nothing useful to do with it.
func closeQuietly(lib *library.Library) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _ = lib.Close(ctx)
}

// waitForAdmission blocks briefly until id leaves StatusQueued, so a
// one-shot dispatch doesn't race the scheduler's own admission loop:
// without this, Close's shutdown coordinator can start draining before
// the job has even been picked off the priority queue, and a job that
// never ran gets silently left Queued rather than paused or executed.
func waitForAdmission(lib *library.Library, id string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		rec, err := lib.Get(id)
		if err != nil || rec.Status != jobstore.StatusQueued {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
}
