package jobs

import (
	"encoding/json"
	"fmt"

	"github.com/meridianfs/core/job"
	"github.com/meridianfs/core/jobctx"
)

// CounterTypeName is the registered type name for Counter.
const CounterTypeName job.TypeName = "counter"

// CounterState is Counter's resumable state: how far it has counted and
// its target.
type CounterState struct {
	Current int `json:"current"`
	Target  int `json:"target"`
}

// Counter counts from its current value up to Target one tick at a
// time, checking its suspension point between ticks. Resumable by
// design: it exists to drive the pause/resume round-trip scenario.
type Counter struct {
	state CounterState
}

func (c *Counter) TypeName() job.TypeName        { return CounterTypeName }
func (c *Counter) MarshalState() ([]byte, error) { return json.Marshal(c.state) }

func (c *Counter) Run(ctx *jobctx.Context) (job.Output, error) {
	for c.state.Current < c.state.Target {
		if err := ctx.SuspendPoint(func() ([]byte, error) { return json.Marshal(c.state) }); err != nil {
			return job.Output{}, err
		}

		c.state.Current++
		ctx.Report(jobctx.Count(int64(c.state.Current), int64(c.state.Target)))
	}

	return job.Output{Summary: fmt.Sprintf("counted to %d", c.state.Current)}, nil
}

func counterFromJSON(value []byte) (job.ErasedJob, error) {
	var s CounterState
	if err := json.Unmarshal(value, &s); err != nil {
		return nil, err
	}
	return &Counter{state: s}, nil
}

func counterFromBytes(state []byte) (job.ErasedJob, error) {
	var s CounterState
	if err := json.Unmarshal(state, &s); err != nil {
		return nil, err
	}
	return &Counter{state: s}, nil
}
