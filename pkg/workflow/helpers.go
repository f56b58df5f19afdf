package workflow

import (
	"fmt"

	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/graph"
)

// ensureAgent adds agent to the graph unless a node of that name exists.
func ensureAgent(wf *Builder, agent Agent) error {
	if agent == nil {
		return fmt.Errorf("cannot ensure agent: %w", graph.ErrNilNode)
	}
	if wf.graph.HasNode(agent.Name()) {
		return nil
	}
	err := wf.graph.AddNode(agent.Name(), agent.Execute, graph.WithNodeMetadata(agent.Metadata()))
	if err != nil {
		return fmt.Errorf("cannot ensure agent %q: %w", agent.Name(), err)
	}
	return nil
}

// targetName maps a nil agent to END.
func targetName(agent Agent) string {
	if agent == nil {
		return graph.END
	}
	return agent.Name()
}
