package jobctx

import (
	"fmt"

	joberrors "github.com/meridianfs/core/pkg/errors"
)

// InterruptedError is returned by SuspendPoint when the job observes a
// pending interrupt. The executor inspects Reason to decide whether the
// job lands in Paused, Cancelled, or Failed.
type InterruptedError struct {
	Reason SuspendReason
}

func (e *InterruptedError) Error() string {
	return fmt.Sprintf("job interrupted: %s", e.Reason)
}

func (e *InterruptedError) Unwrap() error {
	return joberrors.ErrInterrupted
}
