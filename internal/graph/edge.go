package graph

import (
	"context"

	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/state"
)

// Router picks the next node from the merged state. It may return END.
type Router func(ctx context.Context, st state.State) string

// Edge represents a static connection between nodes
type Edge struct {
	From string
	To   string
}

// Branch is a conditional edge leaving From.
type Branch struct {
	From    string
	Router  Router
	Targets []string
}

func (b *Branch) allows(target string) bool {
	if len(b.Targets) == 0 {
		return true
	}
	for _, t := range b.Targets {
		if t == target {
			return true
		}
	}
	return false
}
