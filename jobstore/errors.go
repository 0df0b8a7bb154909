package jobstore

import (
	"fmt"

	joberrors "github.com/meridianfs/core/pkg/errors"
)

// Re-exported sentinels so callers of this package don't need to import
// pkg/errors directly for the cases the store contract names.
var (
	ErrNotFound          = joberrors.ErrNotFound
	ErrAlreadyExists     = joberrors.ErrAlreadyExists
	ErrTerminal          = joberrors.ErrTerminal
	ErrInvalidTransition = joberrors.ErrInvalidTransition
	ErrVersionMismatch   = joberrors.ErrVersionMismatch
)

// wrapStoreErr annotates an error with the job id and operation that
// produced it, matching the pkg/errors.JobError convention.
func wrapStoreErr(id, op string, err error) error {
	if err == nil {
		return nil
	}
	return joberrors.WrapJobError(id, op, err)
}

func invalidTransition(from, to Status) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}
