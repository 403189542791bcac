package pipeline

import (
	"fmt"
	"time"
)

// ConfigValidationError means the publish config is unusable. It is never
// retried; the caller has to fix the input first.
type ConfigValidationError struct {
	Field  string
	Reason string
}

func (e *ConfigValidationError) Error() string {
	if e.Field == "" {
		return "invalid config: " + e.Reason
	}
	return fmt.Sprintf("invalid config: %s %s", e.Field, e.Reason)
}

// TimeoutError is returned when an operation did not reach a terminal state
// within its time budget.
type TimeoutError struct {
	Op    string
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s without reaching a terminal state", e.Op, e.After)
}
