package core

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced by session stores and the runner.
var (
	// ErrSessionNotFound is returned when a session key does not resolve.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionBusy is returned when a session already has an invocation in
	// flight and the busy policy rejects concurrent submissions.
	ErrSessionBusy = errors.New("session busy")
)

// ValidationError reports invalid input to an operation.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError constructs a ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

// RoutingError reports a transfer request that could not be resolved: the
// target does not exist or is not reachable from the requesting agent. No
// state is mutated when routing fails.
type RoutingError struct {
	Target string
	From   string
}

func (e *RoutingError) Error() string {
	return fmt.Sprintf("cannot route transfer from %q to %q", e.From, e.Target)
}

// ChildExecutionError wraps a failure of a child agent inside a composite.
type ChildExecutionError struct {
	Agent string
	Err   error
}

func (e *ChildExecutionError) Error() string {
	return fmt.Sprintf("agent %s failed: %v", e.Agent, e.Err)
}

func (e *ChildExecutionError) Unwrap() error { return e.Err }

// CompactionError wraps a summarizer or bookkeeping failure during log
// compaction. Compaction failures never fail the invocation that triggered
// them.
type CompactionError struct {
	Err error
}

func (e *CompactionError) Error() string { return fmt.Sprintf("compaction failed: %v", e.Err) }

func (e *CompactionError) Unwrap() error { return e.Err }

// PersistenceError wraps a session store failure. Persistence failures are
// fatal for the invocation: the log is the source of truth and must not
// silently diverge.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return fmt.Sprintf("persistence %s failed: %v", e.Op, e.Err) }

func (e *PersistenceError) Unwrap() error { return e.Err }
