// Package jobs provides small, concrete job types exercising the Core's
// SDK contract end-to-end. Echo and Counter are synthetic, built only to
// make the state machine observable in tests; FileCopy, HashFile,
// Indexer, and Thumbnail model the file-management operations this
// system exists to run.
package jobs

import (
	"encoding/json"

	"github.com/meridianfs/core/job"
	"github.com/meridianfs/core/jobctx"
)

// EchoTypeName is the registered type name for Echo.
const EchoTypeName job.TypeName = "echo"

// EchoState is Echo's entire persisted state: the message it was asked
// to report back.
type EchoState struct {
	Message string `json:"message"`
}

// Echo immediately succeeds, returning its message as the output
// summary. It never suspends, so it has no resumable behavior to speak
// of; it exists to drive the dispatch-to-completion scenario.
type Echo struct {
	state EchoState
}

func (e *Echo) TypeName() job.TypeName        { return EchoTypeName }
func (e *Echo) MarshalState() ([]byte, error) { return json.Marshal(e.state) }

func (e *Echo) Run(ctx *jobctx.Context) (job.Output, error) {
	ctx.Log().Info("echoing", "message", e.state.Message)
	return job.Output{Summary: e.state.Message}, nil
}

func echoFromJSON(value []byte) (job.ErasedJob, error) {
	var s EchoState
	if err := json.Unmarshal(value, &s); err != nil {
		return nil, err
	}
	return &Echo{state: s}, nil
}

func echoFromBytes(state []byte) (job.ErasedJob, error) {
	var s EchoState
	if err := json.Unmarshal(state, &s); err != nil {
		return nil, err
	}
	return &Echo{state: s}, nil
}
