package types

import "fmt"

// PersistenceError wraps a checkpoint read or write failure.
type PersistenceError struct {
	Op       string
	ThreadID string
	Err      error
}

func (e *PersistenceError) Error() string {
	if e.ThreadID != "" {
		return fmt.Sprintf("persistence error: %s: thread '%s': %v", e.Op, e.ThreadID, e.Err)
	}
	return fmt.Sprintf("persistence error: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// NewPersistenceError creates a new PersistenceError
func NewPersistenceError(op, threadID string, err error) error {
	return &PersistenceError{Op: op, ThreadID: threadID, Err: err}
}
