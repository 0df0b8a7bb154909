package jobctx

import "sync/atomic"

// SuspendReason is the cooperative interrupt a job observes via
// Context.ShouldSuspend. Job code is expected to poll between units of
// work rather than being preempted.
type SuspendReason string

const (
	SuspendPause    SuspendReason = "pause"
	SuspendCancel   SuspendReason = "cancel"
	SuspendShutdown SuspendReason = "shutdown"
)

// Interrupt is a per-job, non-blocking "latest reason wins" signal. It
// is the Go translation of a buffered-1 channel that the sender
// overwrites rather than blocks on: Request never blocks, and Current
// can be polled repeatedly without consuming the value, which a plain
// channel cannot do.
type Interrupt struct {
	reason atomic.Value // holds SuspendReason
}

// NewInterrupt returns an Interrupt with no reason set.
func NewInterrupt() *Interrupt {
	it := &Interrupt{}
	it.reason.Store(SuspendReason(""))
	return it
}

// Request records reason as the current interrupt, overwriting any
// reason already set. The executor calls this from Pause/Cancel/
// Shutdown; it never blocks the caller.
func (it *Interrupt) Request(reason SuspendReason) {
	it.reason.Store(reason)
}

// Current returns the interrupt reason and whether one is set. It does
// not clear the reason; call Clear explicitly once the interrupt has
// been acted on.
func (it *Interrupt) Current() (SuspendReason, bool) {
	reason, _ := it.reason.Load().(SuspendReason)
	if reason == "" {
		return "", false
	}
	return reason, true
}

// Clear removes any pending interrupt reason.
func (it *Interrupt) Clear() {
	it.reason.Store(SuspendReason(""))
}
