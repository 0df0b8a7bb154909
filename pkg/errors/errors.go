// Package errors provides standardized error handling for the job system.
// It implements structured error types with proper wrapping and
// classification following Go 1.20+ error handling conventions.
package errors

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors covering the job system's error taxonomy.
var (
	// ErrNotFound is returned when a job type is unknown to the registry;
	// jobstore re-exports it for lookups of a job id with no record.
	ErrNotFound = errors.New("job type not found")

	// ErrSerialization is returned when encode/decode of a job's state fails.
	ErrSerialization = errors.New("job state serialization failed")

	// ErrExecution wraps a user-level failure returned from a job's run method.
	ErrExecution = errors.New("job execution failed")

	// ErrInterrupted is returned when a job observes a cooperative suspend request.
	ErrInterrupted = errors.New("job interrupted")

	// ErrInternal marks a bug or invariant violation; always logged loudly.
	ErrInternal = errors.New("internal job system error")

	// ErrVersionMismatch is returned by the store when a persisted state_blob
	// carries a newer format version than the running binary understands.
	ErrVersionMismatch = errors.New("state blob version mismatch")

	// ErrAlreadyExists is returned when inserting a record whose id already exists.
	ErrAlreadyExists = errors.New("job record already exists")

	// ErrTerminal is returned when a write is attempted against a terminal row.
	ErrTerminal = errors.New("job is in a terminal state")

	// ErrInvalidTransition is returned for a status change forbidden by the state machine.
	ErrInvalidTransition = errors.New("invalid job status transition")
)

// JobError represents an error related to a specific job.
type JobError struct {
	JobID     string
	Operation string
	Err       error
}

func (e *JobError) Error() string {
	return fmt.Sprintf("job %s: operation %s: %v", e.JobID, e.Operation, e.Err)
}

func (e *JobError) Unwrap() error {
	return e.Err
}

// TypeError represents an error related to a registered job type.
type TypeError struct {
	TypeName  string
	Operation string
	Err       error
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("job type %s: operation %s: %v", e.TypeName, e.Operation, e.Err)
}

func (e *TypeError) Unwrap() error {
	return e.Err
}

// Error wrapping constructors.

func WrapJobError(jobID, operation string, err error) error {
	if err == nil {
		return nil
	}
	return &JobError{JobID: jobID, Operation: operation, Err: err}
}

func WrapTypeError(typeName, operation string, err error) error {
	if err == nil {
		return nil
	}
	return &TypeError{TypeName: typeName, Operation: operation, Err: err}
}

func NewNotFoundError(typeName string) error {
	return WrapTypeError(typeName, "lookup", ErrNotFound)
}

func NewSerializationError(typeName string, err error) error {
	return WrapTypeError(typeName, "deserialize", fmt.Errorf("%w: %v", ErrSerialization, err))
}

// Error classification functions.

func IsJobError(err error) bool {
	var je *JobError
	return errors.As(err, &je)
}

func IsTypeError(err error) bool {
	var te *TypeError
	return errors.As(err, &te)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsSerialization(err error) bool {
	return errors.Is(err, ErrSerialization)
}

func IsInterrupted(err error) bool {
	return errors.Is(err, ErrInterrupted)
}

func IsInternal(err error) bool {
	return errors.Is(err, ErrInternal)
}

func IsVersionMismatch(err error) bool {
	return errors.Is(err, ErrVersionMismatch)
}

func IsTerminal(err error) bool {
	return errors.Is(err, ErrTerminal)
}

// GetJobID extracts the job id from a wrapped JobError, if present.
func GetJobID(err error) (string, bool) {
	var je *JobError
	if errors.As(err, &je) {
		return je.JobID, true
	}
	return "", false
}

// IsContextError reports whether err originates from context cancellation or deadline.
func IsContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// JoinErrors combines multiple errors into a single error, skipping nils.
func JoinErrors(errs ...error) error {
	var validErrs []error
	for _, err := range errs {
		if err != nil {
			validErrs = append(validErrs, err)
		}
	}

	if len(validErrs) == 0 {
		return nil
	}
	if len(validErrs) == 1 {
		return validErrs[0]
	}

	return &multiError{errors: validErrs}
}

type multiError struct {
	errors []error
}

func (e *multiError) Error() string {
	if len(e.errors) == 0 {
		return ""
	}
	if len(e.errors) == 1 {
		return e.errors[0].Error()
	}

	msg := e.errors[0].Error()
	for _, err := range e.errors[1:] {
		msg += "; " + err.Error()
	}
	return msg
}

func (e *multiError) Unwrap() []error {
	return e.errors
}

func (e *multiError) Is(target error) bool {
	for _, err := range e.errors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (e *multiError) As(target interface{}) bool {
	for _, err := range e.errors {
		if errors.As(err, target) {
			return true
		}
	}
	return false
}
