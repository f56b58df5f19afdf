package graph

import "github.com/forcedotcom/mobile-mcp-tools-sub001/internal/state"

// Option configures a Graph
type Option func(*Graph)

// WithSchema sets the state schema used to merge node updates.
func WithSchema(schema *state.Schema) Option {
	return func(g *Graph) {
		g.schema = schema
	}
}

// WithDescription sets a human readable description for the graph
func WithDescription(desc string) Option {
	return func(g *Graph) {
		g.description = desc
	}
}
