package errors

import (
	"context"
	"errors"
	"fmt"
)

// ErrorCategory groups errors by what kind of problem they represent.
type ErrorCategory string

const (
	CategoryNotFound      ErrorCategory = "not_found"
	CategorySerialization ErrorCategory = "serialization"
	CategoryExecution     ErrorCategory = "execution"
	CategoryInterrupted   ErrorCategory = "interrupted"
	CategoryInternal      ErrorCategory = "internal"
	CategoryTimeout       ErrorCategory = "timeout"
	CategoryConflict      ErrorCategory = "conflict"
	CategoryUnknown       ErrorCategory = "unknown"
)

// ErrorSeverity tells us how serious an error is.
type ErrorSeverity string

const (
	SeverityCritical ErrorSeverity = "critical"
	SeverityHigh     ErrorSeverity = "high"
	SeverityMedium   ErrorSeverity = "medium"
	SeverityLow      ErrorSeverity = "low"
	SeverityInfo     ErrorSeverity = "info"
)

// ClassifiedError is a regular error with extra info attached: what kind of
// error it is, how serious it is, and whether it's worth retrying.
type ClassifiedError struct {
	Err       error
	Category  ErrorCategory
	Severity  ErrorSeverity
	Retryable bool
	UserMsg   string
}

func (e *ClassifiedError) Error() string {
	return e.Err.Error()
}

func (e *ClassifiedError) Unwrap() error {
	return e.Err
}

// ClassifyError classifies an error based on the job system's error taxonomy.
func ClassifyError(err error) *ClassifiedError {
	if err == nil {
		return nil
	}

	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return classified
	}

	switch {
	case IsNotFound(err):
		return &ClassifiedError{
			Err:       err,
			Category:  CategoryNotFound,
			Severity:  SeverityLow,
			Retryable: false,
			UserMsg:   "Requested job type was not registered.",
		}

	case IsSerialization(err):
		return &ClassifiedError{
			Err:       err,
			Category:  CategorySerialization,
			Severity:  SeverityHigh,
			Retryable: false,
			UserMsg:   "Job state could not be encoded or decoded.",
		}

	case IsInterrupted(err):
		return &ClassifiedError{
			Err:       err,
			Category:  CategoryInterrupted,
			Severity:  SeverityInfo,
			Retryable: false,
			UserMsg:   "Job was paused, cancelled, or interrupted by shutdown.",
		}

	case IsVersionMismatch(err):
		return &ClassifiedError{
			Err:       err,
			Category:  CategorySerialization,
			Severity:  SeverityHigh,
			Retryable: false,
			UserMsg:   "Job state was written by an incompatible version.",
		}

	case IsTerminal(err):
		return &ClassifiedError{
			Err:       err,
			Category:  CategoryConflict,
			Severity:  SeverityLow,
			Retryable: false,
			UserMsg:   "Job has already finished and cannot be modified.",
		}

	case IsInternal(err):
		return &ClassifiedError{
			Err:       err,
			Category:  CategoryInternal,
			Severity:  SeverityCritical,
			Retryable: false,
			UserMsg:   "An internal job system error occurred.",
		}

	case errors.Is(err, context.Canceled):
		return &ClassifiedError{
			Err:       err,
			Category:  CategoryTimeout,
			Severity:  SeverityLow,
			Retryable: false,
			UserMsg:   "Operation was canceled.",
		}

	case errors.Is(err, context.DeadlineExceeded):
		return &ClassifiedError{
			Err:       err,
			Category:  CategoryTimeout,
			Severity:  SeverityMedium,
			Retryable: true,
			UserMsg:   "Operation timed out.",
		}

	case IsJobError(err):
		return &ClassifiedError{
			Err:       err,
			Category:  CategoryExecution,
			Severity:  SeverityMedium,
			Retryable: true,
			UserMsg:   "Job operation failed.",
		}

	default:
		return &ClassifiedError{
			Err:       err,
			Category:  CategoryUnknown,
			Severity:  SeverityMedium,
			Retryable: false,
			UserMsg:   "An unexpected error occurred.",
		}
	}
}

// ShouldRetry determines if an operation should be retried based on the error.
func ShouldRetry(err error) bool {
	classified := ClassifyError(err)
	if classified == nil {
		return false
	}
	return classified.Retryable
}

// GetSeverity reports how serious an error is. A nil error is low
// severity; an error matching no known sentinel is medium severity.
func GetSeverity(err error) ErrorSeverity {
	classified := ClassifyError(err)
	if classified == nil {
		return SeverityLow
	}
	return classified.Severity
}

// GetCategory reports the error's category, defaulting to unknown.
func GetCategory(err error) ErrorCategory {
	classified := ClassifyError(err)
	if classified == nil {
		return CategoryUnknown
	}
	return classified.Category
}

// GetUserMessage returns a message suitable for UI display.
func GetUserMessage(err error) string {
	classified := ClassifyError(err)
	if classified == nil {
		return "An error occurred."
	}
	return classified.UserMsg
}

// IsRetryable is an alias for ShouldRetry.
func IsRetryable(err error) bool {
	return ShouldRetry(err)
}

// IsCritical checks if an error is critical severity.
func IsCritical(err error) bool {
	return GetSeverity(err) == SeverityCritical
}

// NewCriticalError creates a critical, non-retryable classified error.
func NewCriticalError(category ErrorCategory, err error, userMsg string) *ClassifiedError {
	return &ClassifiedError{
		Err:       err,
		Category:  category,
		Severity:  SeverityCritical,
		Retryable: false,
		UserMsg:   userMsg,
	}
}

// NewRetryableError creates a medium-severity, retryable classified error.
func NewRetryableError(category ErrorCategory, err error, userMsg string) *ClassifiedError {
	return &ClassifiedError{
		Err:       err,
		Category:  category,
		Severity:  SeverityMedium,
		Retryable: true,
		UserMsg:   userMsg,
	}
}

// NewUserError attaches a user-friendly message to a classified error.
func NewUserError(err error, userMsg string) *ClassifiedError {
	classified := ClassifyError(err)
	if classified == nil {
		classified = &ClassifiedError{
			Err:      err,
			Category: CategoryUnknown,
			Severity: SeverityMedium,
		}
	}
	classified.UserMsg = userMsg
	return classified
}

// FormatErrorForLogging formats an error for structured logging.
func FormatErrorForLogging(err error) map[string]interface{} {
	if err == nil {
		return nil
	}

	classified := ClassifyError(err)
	result := map[string]interface{}{
		"error":     err.Error(),
		"category":  string(classified.Category),
		"severity":  string(classified.Severity),
		"retryable": classified.Retryable,
	}

	if jobID, ok := GetJobID(err); ok {
		result["job_id"] = jobID
	}

	return result
}

// WrapWithUserMessage wraps an error with a user-friendly message while preserving the original error.
func WrapWithUserMessage(err error, userMsg string) error {
	if err == nil {
		return nil
	}

	classified := NewUserError(err, userMsg)
	return fmt.Errorf("%s: %w", userMsg, classified)
}
