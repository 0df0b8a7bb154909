package jobs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/meridianfs/core/job"
	"github.com/meridianfs/core/jobctx"
)

// HashFileTypeName is the registered type name for HashFile.
const HashFileTypeName job.TypeName = "hash_file"

const hashFileChunkSize = 1 << 20

// HashFileState is HashFile's resumable state: the path being hashed,
// the byte offset already digested, and the running digest's own
// marshaled state (sha256.Hash implements encoding.BinaryMarshaler).
type HashFileState struct {
	Path        string `json:"path"`
	Offset      int64  `json:"offset"`
	DigestState []byte `json:"digest_state,omitempty"`
}

// HashFile streams a file through crypto/sha256, checkpointing the
// running digest's own binary state and the byte offset so a pause
// resumes without re-reading bytes already hashed. Grounded on the same
// copier/indexer family as FileCopy — both are streaming, checkpointed
// byte-offset jobs over one file.
type HashFile struct {
	state HashFileState
}

func (h *HashFile) TypeName() job.TypeName        { return HashFileTypeName }
func (h *HashFile) MarshalState() ([]byte, error) { return json.Marshal(h.state) }

func (h *HashFile) Run(ctx *jobctx.Context) (job.Output, error) {
	f, err := os.Open(h.state.Path)
	if err != nil {
		return job.Output{}, fmt.Errorf("hash_file: open: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return job.Output{}, fmt.Errorf("hash_file: stat: %w", err)
	}
	total := info.Size()

	digest := sha256.New()
	if len(h.state.DigestState) > 0 {
		unmarshaler, ok := digest.(binaryUnmarshaler)
		if !ok {
			return job.Output{}, fmt.Errorf("hash_file: digest does not support resuming from a checkpoint")
		}
		if err := unmarshaler.UnmarshalBinary(h.state.DigestState); err != nil {
			return job.Output{}, fmt.Errorf("hash_file: restore digest state: %w", err)
		}
		if _, err := f.Seek(h.state.Offset, io.SeekStart); err != nil {
			return job.Output{}, fmt.Errorf("hash_file: seek: %w", err)
		}
	}

	buf := make([]byte, hashFileChunkSize)
	for h.state.Offset < total {
		if err := ctx.SuspendPoint(func() ([]byte, error) { return h.checkpointState(digest) }); err != nil {
			return job.Output{}, err
		}

		n, readErr := f.Read(buf)
		if n > 0 {
			digest.Write(buf[:n])
			h.state.Offset += int64(n)
			ctx.Report(jobctx.Bytes(h.state.Offset, total))
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return job.Output{}, fmt.Errorf("hash_file: read: %w", readErr)
		}
	}

	sum := hex.EncodeToString(digest.Sum(nil))
	return job.Output{
		Summary: fmt.Sprintf("sha256:%s", sum),
		Data:    json.RawMessage(fmt.Sprintf(`{"sha256":%q}`, sum)),
	}, nil
}

// binaryUnmarshaler avoids importing the whole encoding package
// for one method name; hash.Hash implementations from crypto/sha256
// satisfy it.
type binaryUnmarshaler interface {
	UnmarshalBinary(data []byte) error
}

type binaryMarshaler interface {
	MarshalBinary() (data []byte, err error)
}

func (h *HashFile) checkpointState(digest interface{ Sum(b []byte) []byte }) ([]byte, error) {
	marshaler, ok := digest.(binaryMarshaler)
	if !ok {
		h.state.DigestState = nil
		return json.Marshal(h.state)
	}
	data, err := marshaler.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("hash_file: marshal digest state: %w", err)
	}
	h.state.DigestState = data
	return json.Marshal(h.state)
}

func hashFileFromJSON(value []byte) (job.ErasedJob, error) {
	var s HashFileState
	if err := json.Unmarshal(value, &s); err != nil {
		return nil, err
	}
	return &HashFile{state: s}, nil
}

func hashFileFromBytes(state []byte) (job.ErasedJob, error) {
	var s HashFileState
	if err := json.Unmarshal(state, &s); err != nil {
		return nil, err
	}
	return &HashFile{state: s}, nil
}
