package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestJobError(t *testing.T) {
	originalErr := errors.New("checkpoint write failed")
	jobErr := &JobError{
		JobID:     "job-123",
		Operation: "checkpoint",
		Err:       originalErr,
	}

	expectedMsg := "job job-123: operation checkpoint: checkpoint write failed"
	if jobErr.Error() != expectedMsg {
		t.Errorf("JobError.Error() = %v, want %v", jobErr.Error(), expectedMsg)
	}

	if unwrapped := jobErr.Unwrap(); unwrapped != originalErr {
		t.Errorf("JobError.Unwrap() = %v, want %v", unwrapped, originalErr)
	}
}

func TestTypeError(t *testing.T) {
	originalErr := errors.New("unknown job type")
	typeErr := &TypeError{
		TypeName:  "file_copy",
		Operation: "deserialize",
		Err:       originalErr,
	}

	expectedMsg := "job type file_copy: operation deserialize: unknown job type"
	if typeErr.Error() != expectedMsg {
		t.Errorf("TypeError.Error() = %v, want %v", typeErr.Error(), expectedMsg)
	}

	if unwrapped := typeErr.Unwrap(); unwrapped != originalErr {
		t.Errorf("TypeError.Unwrap() = %v, want %v", unwrapped, originalErr)
	}
}

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		msg  string
	}{
		{"ErrNotFound", ErrNotFound, "job type not found"},
		{"ErrSerialization", ErrSerialization, "job state serialization failed"},
		{"ErrExecution", ErrExecution, "job execution failed"},
		{"ErrInterrupted", ErrInterrupted, "job interrupted"},
		{"ErrInternal", ErrInternal, "internal job system error"},
		{"ErrVersionMismatch", ErrVersionMismatch, "state blob version mismatch"},
		{"ErrAlreadyExists", ErrAlreadyExists, "job record already exists"},
		{"ErrTerminal", ErrTerminal, "job is in a terminal state"},
		{"ErrInvalidTransition", ErrInvalidTransition, "invalid job status transition"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() != tt.msg {
				t.Errorf("Error message = %v, want %v", tt.err.Error(), tt.msg)
			}
		})
	}
}

func TestIsJobError(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		isJob bool
	}{
		{"JobError", &JobError{JobID: "123", Operation: "start", Err: errors.New("test")}, true},
		{"Wrapped JobError", fmt.Errorf("wrapped: %w", &JobError{JobID: "123", Operation: "start", Err: errors.New("test")}), true},
		{"Regular error", errors.New("not a job error"), false},
		{"Nil error", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsJobError(tt.err)
			if result != tt.isJob {
				t.Errorf("IsJobError() = %v, want %v", result, tt.isJob)
			}
		})
	}
}

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		found bool
	}{
		{"ErrNotFound", ErrNotFound, true},
		{"Wrapped not found", fmt.Errorf("registry: %w", ErrNotFound), true},
		{"Regular error", errors.New("not it"), false},
		{"Nil error", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNotFound(tt.err); got != tt.found {
				t.Errorf("IsNotFound() = %v, want %v", got, tt.found)
			}
		})
	}
}

func TestJoinErrors(t *testing.T) {
	err1 := errors.New("first error")
	err2 := errors.New("second error")
	err3 := errors.New("third error")

	tests := []struct {
		name  string
		errs  []error
		want  string
		isNil bool
	}{
		{name: "No errors", errs: []error{}, isNil: true},
		{name: "Single error", errs: []error{err1}, want: "first error"},
		{name: "Multiple errors", errs: []error{err1, err2, err3}, want: "first error; second error; third error"},
		{name: "Errors with nils", errs: []error{err1, nil, err2}, want: "first error; second error"},
		{name: "Only nils", errs: []error{nil, nil, nil}, isNil: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := JoinErrors(tt.errs...)
			if tt.isNil {
				if result != nil {
					t.Errorf("JoinErrors() = %v, want nil", result)
				}
				return
			}
			if result == nil {
				t.Fatal("JoinErrors() = nil, want non-nil")
			}
			if result.Error() != tt.want {
				t.Errorf("JoinErrors() = %v, want %v", result.Error(), tt.want)
			}
		})
	}
}

func TestWrapJobError(t *testing.T) {
	originalErr := errors.New("original error")
	wrappedErr := WrapJobError("job-123", "start", originalErr)

	jobErr, ok := wrappedErr.(*JobError)
	if !ok {
		t.Fatalf("WrapJobError() returned %T, want *JobError", wrappedErr)
	}

	if jobErr.JobID != "job-123" {
		t.Errorf("JobID = %v, want job-123", jobErr.JobID)
	}
	if jobErr.Operation != "start" {
		t.Errorf("Operation = %v, want start", jobErr.Operation)
	}
	if jobErr.Err != originalErr {
		t.Errorf("Err = %v, want %v", jobErr.Err, originalErr)
	}
}

func TestGetJobID(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		jobID string
		hasID bool
	}{
		{
			name:  "Direct JobError",
			err:   &JobError{JobID: "job-123", Operation: "start", Err: errors.New("test")},
			jobID: "job-123",
			hasID: true,
		},
		{
			name:  "Wrapped JobError",
			err:   fmt.Errorf("context: %w", &JobError{JobID: "job-456", Operation: "stop", Err: errors.New("test")}),
			jobID: "job-456",
			hasID: true,
		},
		{name: "Non-JobError", err: errors.New("regular error")},
		{name: "Nil error", err: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobID, hasID := GetJobID(tt.err)
			if jobID != tt.jobID {
				t.Errorf("GetJobID() jobID = %v, want %v", jobID, tt.jobID)
			}
			if hasID != tt.hasID {
				t.Errorf("GetJobID() hasID = %v, want %v", hasID, tt.hasID)
			}
		})
	}
}

func TestErrorChain(t *testing.T) {
	baseErr := errors.New("base error")
	jobErr := WrapJobError("job-123", "start", baseErr)
	wrappedErr := fmt.Errorf("context: %w", jobErr)

	if !errors.Is(wrappedErr, baseErr) {
		t.Error("errors.Is() should find base error in chain")
	}

	var je *JobError
	if !errors.As(wrappedErr, &je) {
		t.Error("errors.As() should find JobError in chain")
	}
	if je.JobID != "job-123" {
		t.Errorf("Found JobError has JobID = %v, want job-123", je.JobID)
	}
}

func BenchmarkJobError_Error(b *testing.B) {
	err := &JobError{
		JobID:     "job-12345678-1234-1234-1234-123456789012",
		Operation: "checkpoint",
		Err:       errors.New("state write failed"),
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = err.Error()
	}
}

func BenchmarkIsJobError(b *testing.B) {
	err := fmt.Errorf("wrapped: %w", &JobError{
		JobID:     "job-123",
		Operation: "start",
		Err:       errors.New("test"),
	})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = IsJobError(err)
	}
}
