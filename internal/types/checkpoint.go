package types

import (
	"context"
	"time"

	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/state"
)

// Status describes where a thread stands after its latest checkpoint.
type Status string

const (
	StatusReady     Status = "ready"
	StatusSuspended Status = "suspended"
	StatusCompleted Status = "completed"
)

// Checkpoint is a durable snapshot of one thread after a step.
type Checkpoint struct {
	ID           string      `json:"id"`
	ParentID     string      `json:"parentId,omitempty"`
	ThreadID     string      `json:"threadId"`
	Graph        string      `json:"graph"`
	Step         int         `json:"step"`
	Status       Status      `json:"status"`
	State        state.State `json:"state"`
	PendingTasks []string    `json:"pendingTasks,omitempty"`
	Interrupt    *Interrupt  `json:"interrupt,omitempty"`
	// TaskInput is the state the suspended node replays from. State already
	// includes the node's pre-suspension update; TaskInput does not.
	TaskInput state.State `json:"taskInput,omitempty"`
	// Answers holds the resume values the suspended node already consumed,
	// in the order it asked for them.
	Answers   []any     `json:"answers,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Clone returns a deep copy of the checkpoint
func (c *Checkpoint) Clone() *Checkpoint {
	if c == nil {
		return nil
	}
	out := *c
	out.State = c.State.Clone()
	if c.PendingTasks != nil {
		out.PendingTasks = append([]string(nil), c.PendingTasks...)
	}
	out.Interrupt = c.Interrupt.Clone()
	if c.TaskInput != nil {
		out.TaskInput = c.TaskInput.Clone()
	}
	if c.Answers != nil {
		out.Answers = make([]any, len(c.Answers))
		for i, a := range c.Answers {
			out.Answers[i] = state.Copy(a)
		}
	}
	return &out
}

// Snapshot is the read-only view of a checkpoint returned to callers.
func (c *Checkpoint) Snapshot() *Snapshot {
	if c == nil {
		return nil
	}
	cp := c.Clone()
	return &Snapshot{
		ThreadID:     cp.ThreadID,
		State:        cp.State,
		PendingTasks: cp.PendingTasks,
		Interrupt:    cp.Interrupt,
		Step:         cp.Step,
		Status:       cp.Status,
	}
}

// Snapshot describes a thread's current position.
type Snapshot struct {
	ThreadID     string      `json:"threadId"`
	State        state.State `json:"state"`
	PendingTasks []string    `json:"pendingTasks,omitempty"`
	Interrupt    *Interrupt  `json:"interrupt,omitempty"`
	Step         int         `json:"step"`
	Status       Status      `json:"status"`
}

func (s *Snapshot) Completed() bool {
	return s != nil && s.Status == StatusCompleted
}

// Suspended reports whether the thread waits on an interrupt.
func (s *Snapshot) Suspended() bool {
	return s != nil && s.Interrupt != nil
}

// Checkpointer stores per-thread checkpoints. Get returns nil, nil for an
// unknown thread. Put appends to the thread's history; the last write wins.
type Checkpointer interface {
	Get(ctx context.Context, threadID string) (*Checkpoint, error)
	Put(ctx context.Context, threadID string, cp *Checkpoint) error
	List(ctx context.Context, threadID string) ([]*Checkpoint, error)
	// Export serializes the whole store.
	Export(ctx context.Context) ([]byte, error)
	// Import replaces the store's contents with a blob produced by Export.
	Import(ctx context.Context, blob []byte) error
}
