package jobs

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/meridianfs/core/job"
	"github.com/meridianfs/core/jobctx"
)

// FileCopyTypeName is the registered type name for FileCopy.
const FileCopyTypeName job.TypeName = "file_copy"

const fileCopyChunkSize = 1 << 20 // 1 MiB, matching the copier job's chunked read size.

// FileCopyState is FileCopy's resumable state: source/destination paths
// and the byte offset already copied.
type FileCopyState struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Offset      int64  `json:"offset"`
}

// FileCopy copies Source to Destination in fixed-size chunks, reporting
// bytes-copied progress and checking its suspension point before every
// chunk. A pause checkpoints the offset, and a resumed run continues
// from it; a run that stops without checkpointing (a crash) resumes from
// its last checkpoint, or from the start if it has none.
type FileCopy struct {
	state FileCopyState
}

func (f *FileCopy) TypeName() job.TypeName        { return FileCopyTypeName }
func (f *FileCopy) MarshalState() ([]byte, error) { return json.Marshal(f.state) }

func (f *FileCopy) Run(ctx *jobctx.Context) (job.Output, error) {
	src, err := os.Open(f.state.Source)
	if err != nil {
		return job.Output{}, fmt.Errorf("file_copy: open source: %w", err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return job.Output{}, fmt.Errorf("file_copy: stat source: %w", err)
	}
	total := info.Size()

	flags := os.O_WRONLY | os.O_CREATE
	if f.state.Offset == 0 {
		flags |= os.O_TRUNC
	}
	dst, err := os.OpenFile(f.state.Destination, flags, 0o644)
	if err != nil {
		return job.Output{}, fmt.Errorf("file_copy: open destination: %w", err)
	}
	defer dst.Close()

	if f.state.Offset > 0 {
		if _, err := src.Seek(f.state.Offset, io.SeekStart); err != nil {
			return job.Output{}, fmt.Errorf("file_copy: seek source: %w", err)
		}
		if _, err := dst.Seek(f.state.Offset, io.SeekStart); err != nil {
			return job.Output{}, fmt.Errorf("file_copy: seek destination: %w", err)
		}
	}

	buf := make([]byte, fileCopyChunkSize)
	for f.state.Offset < total {
		if err := ctx.SuspendPoint(func() ([]byte, error) { return json.Marshal(f.state) }); err != nil {
			return job.Output{}, err
		}

		n, readErr := src.Read(buf)
		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				return job.Output{}, fmt.Errorf("file_copy: write destination: %w", err)
			}
			f.state.Offset += int64(n)
			ctx.Report(jobctx.Bytes(f.state.Offset, total))
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return job.Output{}, fmt.Errorf("file_copy: read source: %w", readErr)
		}
	}

	return job.Output{Summary: fmt.Sprintf("copied %d bytes to %s", f.state.Offset, f.state.Destination)}, nil
}

func fileCopyFromJSON(value []byte) (job.ErasedJob, error) {
	var s FileCopyState
	if err := json.Unmarshal(value, &s); err != nil {
		return nil, err
	}
	return &FileCopy{state: s}, nil
}

func fileCopyFromBytes(state []byte) (job.ErasedJob, error) {
	var s FileCopyState
	if err := json.Unmarshal(state, &s); err != nil {
		return nil, err
	}
	return &FileCopy{state: s}, nil
}
