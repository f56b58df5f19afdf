package graph

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyCompiled is returned when attempting to modify a compiled graph
	ErrAlreadyCompiled = errors.New("graph is already compiled and cannot be modified")

	// ErrDuplicateNode is returned when adding a node that already exists
	ErrDuplicateNode = errors.New("node with this name already exists")

	// ErrReservedName is returned when a node is named START or END
	ErrReservedName = errors.New("node name is reserved")

	// ErrNodeNotFound is returned when referencing a non-existent node
	ErrNodeNotFound = errors.New("node not found")

	// ErrNilNode is returned when a node has no function
	ErrNilNode = errors.New("node function must not be nil")

	// ErrNoEntryPoint is returned when validating a graph with no entry point
	ErrNoEntryPoint = errors.New("graph must have an entry point")

	// ErrMultipleEntryPoints is returned when more than one start node is declared
	ErrMultipleEntryPoints = errors.New("graph must have exactly one entry point")

	// ErrUnreachableNode is returned when a node cannot be reached from the entry point
	ErrUnreachableNode = errors.New("node is unreachable from the entry point")

	// ErrConflictingEdges is returned when a node has more than one way out
	ErrConflictingEdges = errors.New("node has conflicting outgoing edges")

	// ErrInvalidEdge is returned for edges leaving END or entering START
	ErrInvalidEdge = errors.New("invalid edge")
)

var (
	// ErrNoPendingInterrupt is returned when resuming a thread that is not suspended
	ErrNoPendingInterrupt = errors.New("thread has no pending interrupt")

	// ErrMissingInterrupt is returned when a checkpoint has pending tasks but no interrupt
	ErrMissingInterrupt = errors.New("checkpoint has pending tasks but no interrupt")

	// ErrThreadExists is returned when starting a thread id that already has checkpoints
	ErrThreadExists = errors.New("thread already exists")

	// ErrEmptyThreadID is returned when invoking without a thread id
	ErrEmptyThreadID = errors.New("thread id must not be empty")

	// ErrNoTransition is returned when a node has no outgoing edge
	ErrNoTransition = errors.New("no transition from node")

	// ErrInvalidRoute is returned when a router picks a target it did not declare
	ErrInvalidRoute = errors.New("router returned an invalid target")

	// ErrMaxStepsExceeded is returned when an invocation exceeds its step limit
	ErrMaxStepsExceeded = errors.New("max steps exceeded")

	// ErrMissingToolRequest is returned when a suspension carries no tool invocation request
	ErrMissingToolRequest = errors.New("suspended without a tool invocation request")

	// ErrUnknownCommand is returned for a Command the engine does not handle
	ErrUnknownCommand = errors.New("unknown command")

	// ErrGraphMismatch is returned when a thread was checkpointed by another graph
	ErrGraphMismatch = errors.New("checkpoint belongs to a different graph")

	// ErrNodePanic is returned when a node panics
	ErrNodePanic = errors.New("node panicked")
)

// ValidationError represents an error that occurs during graph validation
type ValidationError struct {
	// Op is the operation that failed
	Op string
	// Node is the name of the node involved (if any)
	Node string
	// Err is the underlying error
	Err error
}

func (e *ValidationError) Error() string {
	if e.Node != "" {
		return fmt.Sprintf("validation failed: %s: node '%s': %v", e.Op, e.Node, e.Err)
	}
	return fmt.Sprintf("validation failed: %s: %v", e.Op, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a new ValidationError
func NewValidationError(op string, node string, err error) error {
	return &ValidationError{
		Op:   op,
		Node: node,
		Err:  err,
	}
}

// NodeExecutionError wraps an error returned by a node's own logic.
type NodeExecutionError struct {
	Node string
	Step int
	Err  error
}

func (e *NodeExecutionError) Error() string {
	return fmt.Sprintf("node execution error: node '%s' (step %d): %v", e.Node, e.Step, e.Err)
}

func (e *NodeExecutionError) Unwrap() error {
	return e.Err
}

// EngineInvariantError signals a corrupted or incompatible checkpoint, or a
// call the engine cannot honor. It is always fatal.
type EngineInvariantError struct {
	ThreadID string
	Node     string
	Err      error
}

func (e *EngineInvariantError) Error() string {
	if e.Node != "" {
		return fmt.Sprintf("engine invariant violated: thread '%s': node '%s': %v", e.ThreadID, e.Node, e.Err)
	}
	return fmt.Sprintf("engine invariant violated: thread '%s': %v", e.ThreadID, e.Err)
}

func (e *EngineInvariantError) Unwrap() error {
	return e.Err
}

func newInvariantError(threadID, node string, err error) error {
	return &EngineInvariantError{ThreadID: threadID, Node: node, Err: err}
}
