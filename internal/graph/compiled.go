package graph

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/checkpoints"
	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/state"
	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/types"
)

// CompiledGraph represents an immutable, executable version of the graph. It
// holds no per-thread data; every thread lives in the checkpointer.
type CompiledGraph struct {
	name       string
	schema     *state.Schema
	entryPoint string

	nodes    map[string]*NodeSpec
	order    []string
	edges    map[string]string
	branches map[string]*Branch

	checkpointer types.Checkpointer
	config       compileConfig
}

// Compile validates the graph and binds it to cp. A nil checkpointer gets a
// fresh in-memory store.
func (g *Graph) Compile(cp types.Checkpointer, opts ...CompileOption) (*CompiledGraph, error) {
	entry, err := g.Validate()
	if err != nil {
		return nil, err
	}
	if cp == nil {
		cp = checkpoints.NewMemoryStore()
	}
	g.compiled = true

	cg := &CompiledGraph{
		name:         g.name,
		schema:       g.schema,
		entryPoint:   entry,
		nodes:        make(map[string]*NodeSpec, len(g.nodes)),
		order:        append([]string(nil), g.order...),
		edges:        make(map[string]string, len(g.edges)),
		branches:     make(map[string]*Branch, len(g.branches)),
		checkpointer: cp,
		config:       newCompileConfig(opts...),
	}
	for name, n := range g.nodes {
		spec := *n
		cg.nodes[name] = &spec
	}
	for _, e := range g.edges {
		cg.edges[e.From] = e.To
	}
	for from, b := range g.branches {
		branch := *b
		cg.branches[from] = &branch
	}
	return cg, nil
}

func (g *CompiledGraph) Name() string {
	return g.name
}

func (g *CompiledGraph) EntryPoint() string {
	return g.entryPoint
}

func (g *CompiledGraph) Checkpointer() types.Checkpointer {
	return g.checkpointer
}

// GetState returns the latest snapshot of threadID, or nil if the thread is
// unknown.
func (g *CompiledGraph) GetState(ctx context.Context, threadID string) (*types.Snapshot, error) {
	cp, err := g.checkpointer.Get(ctx, threadID)
	if err != nil {
		return nil, asPersistenceError(err, "get", threadID)
	}
	return cp.Snapshot(), nil
}

// History returns every stored checkpoint of threadID, oldest first.
func (g *CompiledGraph) History(ctx context.Context, threadID string) ([]*types.Checkpoint, error) {
	history, err := g.checkpointer.List(ctx, threadID)
	if err != nil {
		return nil, asPersistenceError(err, "list", threadID)
	}
	return history, nil
}

func (g *CompiledGraph) newCheckpoint(threadID, parentID string, step int, status types.Status, st state.State) *types.Checkpoint {
	return &types.Checkpoint{
		ID:        uuid.NewString(),
		ParentID:  parentID,
		ThreadID:  threadID,
		Graph:     g.name,
		Step:      step,
		Status:    status,
		State:     st,
		CreatedAt: time.Now().UTC(),
	}
}
