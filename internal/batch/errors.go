package batch

import (
	"errors"
	"fmt"

	"tube-transcriber/internal/domain"
)

// ItemError attributes a per-item failure to the step that caused it.
type ItemError struct {
	Kind      domain.FailureKind
	Reference domain.VideoReference
	Cause     error
}

// Error formats the failure for progress lines and outcomes.
func (e *ItemError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s failure for %s: %v", e.Kind, e.Reference, e.Cause)
}

// Unwrap exposes underlying error for errors.Is / errors.As.
func (e *ItemError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Message returns the cause text recorded on the outcome.
func (e *ItemError) Message() string {
	if e == nil || e.Cause == nil {
		return ""
	}
	return e.Cause.Error()
}

// SetupError aborts a run before any item is processed.
type SetupError struct {
	Cause error
}

// Error formats setup failures.
func (e *SetupError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("batch setup failed: %v", e.Cause)
}

// Unwrap exposes underlying error for errors.Is / errors.As.
func (e *SetupError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// IsSetupError reports whether err aborted a run during setup.
func IsSetupError(err error) bool {
	var setupErr *SetupError
	return errors.As(err, &setupErr)
}
