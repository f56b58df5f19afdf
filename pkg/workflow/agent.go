package workflow

import (
	"context"

	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/graph"
	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/state"
)

// Agent represents a node in the user-facing workflow DSL.
type Agent interface {
	Name() string
	Execute(ctx context.Context, st state.State, rt *graph.Runtime) (graph.NodeResult, error)
	Metadata() map[string]any
}

// Predicate decides a two-way branch from the merged state.
type Predicate func(ctx context.Context, st state.State) bool

// Condition returns a branch key for OnCondition.
type Condition func(ctx context.Context, st state.State) string
