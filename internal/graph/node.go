package graph

import (
	"context"

	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/log"
	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/state"
	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/types"
)

// NodeFunc is the unit of work executed for a node. The state passed in is a
// private copy; the node reports changes through its NodeResult.
//
// A node that needs external input reads Runtime.ResumeValue and returns
// Suspend when no value is available. Everything the node does before that
// read runs again when the thread is resumed. A node may ask more than once;
// on replay each ResumeValue call gets the answer to the ask at the same
// position.
type NodeFunc func(ctx context.Context, st state.State, rt *Runtime) (NodeResult, error)

// NodeResult is either a partial update or a suspension. A suspension may
// still carry a partial update.
type NodeResult struct {
	Update  state.State
	Request *types.ToolInvocationRequest
}

// Update returns a result that merges u into the state and moves on.
func Update(u state.State) NodeResult {
	return NodeResult{Update: u}
}

// Suspend returns a result that stops the run and hands req to the caller.
func Suspend(req types.ToolInvocationRequest) NodeResult {
	return NodeResult{Request: &req}
}

// WithUpdate attaches a partial update to the result.
func (r NodeResult) WithUpdate(u state.State) NodeResult {
	r.Update = u
	return r
}

func (r NodeResult) Suspended() bool {
	return r.Request != nil
}

// NodeSpec represents a node's specification
type NodeSpec struct {
	Name        string
	Description string
	Function    NodeFunc
	Metadata    map[string]any
}

// NodeOption configures a NodeSpec.
type NodeOption func(*NodeSpec)

func WithNodeDescription(desc string) NodeOption {
	return func(n *NodeSpec) {
		n.Description = desc
	}
}

func WithNodeMetadata(md map[string]any) NodeOption {
	return func(n *NodeSpec) {
		n.Metadata = md
	}
}

// Runtime carries per-execution information into a node.
type Runtime struct {
	ThreadID string
	Node     string
	// Step counts the nodes executed on the thread before this one.
	Step int

	logger  log.Logger
	answers []any
	asked   int
	resumed bool
}

// ResumeValue returns the caller's answer to the node's next ask. Answers
// are handed out in the order the node asked for them, each once. When no
// answer is left it reports false and the node should suspend.
func (r *Runtime) ResumeValue() (any, bool) {
	if r.asked >= len(r.answers) {
		return nil, false
	}
	v := r.answers[r.asked]
	r.asked++
	return v, true
}

// consumed returns the answers read so far.
func (r *Runtime) consumed() []any {
	if r.asked == 0 {
		return nil
	}
	return append([]any(nil), r.answers[:r.asked]...)
}

// Resumed reports whether this execution replays a suspended node.
func (r *Runtime) Resumed() bool {
	return r.resumed
}

func (r *Runtime) Logger() log.Logger {
	if r.logger == nil {
		return log.Default
	}
	return r.logger
}
