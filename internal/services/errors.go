package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation marks bad input rejected before any work happens.
	ErrValidation = errors.New("validation error")
	// ErrConflict marks a lost race on a conditional update; the caller retries.
	ErrConflict = errors.New("conflict error")
	// ErrNotFound marks a lookup for a record that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrProvider marks a failed call to a generation provider.
	ErrProvider = errors.New("provider error")
	// ErrTimeout marks an external call that exceeded its stage budget.
	ErrTimeout = errors.New("timeout")
	// ErrStateTransition marks an illegal status change attempt.
	ErrStateTransition = errors.New("state transition error")
	// ErrPersistence marks storage being unavailable.
	ErrPersistence = errors.New("persistence error")
	// ErrTransient marks failures worth retrying without classification.
	ErrTransient = errors.New("transient failure")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsRetryable reports whether the executor should retry the operation
// rather than failing the task. Infrastructure and race failures retry;
// everything else is handled by stage-level policy.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrPersistence) || errors.Is(err, ErrConflict) || errors.Is(err, ErrTransient)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
