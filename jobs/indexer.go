package jobs

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/meridianfs/core/job"
	"github.com/meridianfs/core/jobctx"
)

// IndexerTypeName is the registered type name for Indexer.
const IndexerTypeName job.TypeName = "indexer"

// IndexerState is Indexer's resumable state: the location root being
// walked and the last path visited, so a resume can skip everything
// already seen.
type IndexerState struct {
	Root          string `json:"root"`
	LastVisited   string `json:"last_visited,omitempty"`
	EntriesWalked int    `json:"entries_walked"`
}

// Indexer walks a filesystem location with filepath.WalkDir, skipping
// ahead to LastVisited on resume and checking its suspension point at
// every entry (a pending interrupt checkpoints its progress).
type Indexer struct {
	state    IndexerState
	skipping bool
}

func (ix *Indexer) TypeName() job.TypeName        { return IndexerTypeName }
func (ix *Indexer) MarshalState() ([]byte, error) { return json.Marshal(ix.state) }

func (ix *Indexer) Run(ctx *jobctx.Context) (job.Output, error) {
	ix.skipping = ix.state.LastVisited != ""

	var suspendErr error
	walkErr := filepath.WalkDir(ix.state.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if ix.skipping {
			if path == ix.state.LastVisited {
				ix.skipping = false
			}
			return nil
		}

		if path == ix.state.Root {
			return nil
		}

		if err := ctx.SuspendPoint(func() ([]byte, error) { return json.Marshal(ix.state) }); err != nil {
			suspendErr = err
			return filepath.SkipAll
		}

		ix.state.LastVisited = path
		ix.state.EntriesWalked++
		ctx.Report(jobctx.Count(int64(ix.state.EntriesWalked), 0))

		return nil
	})

	if suspendErr != nil {
		return job.Output{}, suspendErr
	}
	if walkErr != nil {
		return job.Output{}, fmt.Errorf("indexer: walk %s: %w", ix.state.Root, walkErr)
	}

	return job.Output{Summary: fmt.Sprintf("indexed %d entries under %s", ix.state.EntriesWalked, ix.state.Root)}, nil
}

func indexerFromJSON(value []byte) (job.ErasedJob, error) {
	var s IndexerState
	if err := json.Unmarshal(value, &s); err != nil {
		return nil, err
	}
	return &Indexer{state: s}, nil
}

func indexerFromBytes(state []byte) (job.ErasedJob, error) {
	var s IndexerState
	if err := json.Unmarshal(state, &s); err != nil {
		return nil, err
	}
	return &Indexer{state: s}, nil
}
