// Package agents provides ready-made workflow agents.
package agents

import (
	"context"

	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/graph"
	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/state"
)

// BaseAgent is a straightforward in-process function agent.
type BaseAgent struct {
	name     string
	fn       graph.NodeFunc
	metadata map[string]any
}

// NewSimpleAgent helper to create an inline agent
func NewSimpleAgent(name string, fn graph.NodeFunc, meta map[string]any) *BaseAgent {
	return &BaseAgent{name: name, fn: fn, metadata: meta}
}

func (a *BaseAgent) Name() string {
	return a.name
}

func (a *BaseAgent) Execute(ctx context.Context, st state.State, rt *graph.Runtime) (graph.NodeResult, error) {
	return a.fn(ctx, st, rt)
}

func (a *BaseAgent) Metadata() map[string]any {
	return a.metadata
}
