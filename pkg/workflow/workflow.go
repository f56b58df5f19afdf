package workflow

import (
	"context"
	"fmt"
	"sort"

	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/graph"
	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/state"
	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/types"
)

// Builder is the top-level DSL object. Wraps an internal graph.
type Builder struct {
	name  string
	graph *graph.Graph
}

// NewBuilder creates a new DSL workflow with an underlying graph.
func NewBuilder(name string, opts ...graph.Option) *Builder {
	g := graph.New(name, opts...)
	return &Builder{name: name, graph: g}
}

// FromGraph wraps a graph built elsewhere so it can be extended or run as
// an App.
func FromGraph(g *graph.Graph) *Builder {
	return &Builder{name: g.Name(), graph: g}
}

// Graph returns the underlying graph definition.
func (wf *Builder) Graph() *graph.Graph {
	return wf.graph
}

// Compile compiles the underlying graph using the internal engine.
func (wf *Builder) Compile(cp types.Checkpointer, opts ...graph.CompileOption) (*graph.CompiledGraph, error) {
	return wf.graph.Compile(cp, opts...)
}

// AddAgent adds a new agent (node) to the workflow.
func (wf *Builder) AddAgent(agent Agent) *FlowAgent {
	if err := ensureAgent(wf, agent); err != nil {
		return &FlowAgent{wf: wf, agent: agent, err: fmt.Errorf("AddAgent failed: %w", err)}
	}
	return &FlowAgent{wf: wf, agent: agent}
}

// At returns a FlowAgent for a node that is already part of the workflow,
// so edges can be added from it later (for example to close a loop).
func (wf *Builder) At(agent Agent) *FlowAgent {
	fa := &FlowAgent{wf: wf, agent: agent}
	if agent == nil || !wf.graph.HasNode(agent.Name()) {
		fa.err = fmt.Errorf("At: %w", graph.ErrNodeNotFound)
	}
	return fa
}

// FlowAgent references a node that was just added (an Agent).
type FlowAgent struct {
	wf    *Builder
	agent Agent
	err   error

	// Internal fields used for looping
	loopPredicate Predicate
	loopMode      bool

	// track possible branch targets from a ThenIf/OnCondition
	branchTargets []string
}

func (fa *FlowAgent) Err() error {
	return fa.err
}

// Name returns the name of the referenced agent.
func (fa *FlowAgent) Name() string {
	if fa.agent == nil {
		return ""
	}
	return fa.agent.Name()
}

// AsEntryPoint marks the current agent as the graph's entry point.
func (fa *FlowAgent) AsEntryPoint() *FlowAgent {
	if fa.err != nil {
		return fa
	}
	if err := fa.wf.graph.SetEntryPoint(fa.agent.Name()); err != nil {
		fa.err = fmt.Errorf("AsEntryPoint failed: %w", err)
	}
	return fa
}

// RepeatWhile makes the next Then loop back to the current agent while
// predicate holds.
func (fa *FlowAgent) RepeatWhile(predicate Predicate) *FlowAgent {
	if fa.err != nil {
		return fa
	}
	fa.loopMode = true
	fa.loopPredicate = predicate
	return fa
}

// Then creates a simple sequential link from fa.agent -> nextAgent.
func (fa *FlowAgent) Then(nextAgent Agent) *FlowAgent {
	if fa.err != nil {
		return fa
	}

	if err := ensureAgent(fa.wf, nextAgent); err != nil {
		fa.err = err
		return fa
	}

	if fa.loopMode && fa.loopPredicate != nil {
		localPredicate := fa.loopPredicate
		self := fa.agent.Name()
		next := nextAgent.Name()
		fa.loopMode = false
		fa.loopPredicate = nil

		router := func(ctx context.Context, st state.State) string {
			if localPredicate(ctx, st) {
				return self
			}
			return next
		}
		if e := fa.wf.graph.AddConditionalEdge(self, router, self, next); e != nil {
			fa.err = fmt.Errorf("Then(loopMode) failed: %w", e)
			return fa
		}
	} else {
		if e := fa.wf.graph.AddEdge(fa.agent.Name(), nextAgent.Name()); e != nil {
			fa.err = e
			return fa
		}
	}

	return &FlowAgent{wf: fa.wf, agent: nextAgent, err: fa.err}
}

// End marks the current agent as pointing to the END node.
func (fa *FlowAgent) End() error {
	if fa.err != nil {
		return fa.err
	}
	if len(fa.branchTargets) > 0 {
		for _, targetName := range fa.branchTargets {
			if targetName == graph.END {
				continue
			}
			if e := fa.wf.graph.AddEdge(targetName, graph.END); e != nil {
				fa.err = fmt.Errorf("[End]: AddEdge(%q->END) failed: %w", targetName, e)
				return fa.err
			}
		}
		fa.branchTargets = nil
		return nil
	}

	if e := fa.wf.graph.AddEdge(fa.agent.Name(), graph.END); e != nil {
		fa.err = fmt.Errorf("[End]: AddEdge(%q->END) failed: %w", fa.agent.Name(), e)
	}
	return fa.err
}

// ThenIf creates a 2-branch condition: if predicate => ifTrueAgent else
// ifFalseAgent. A nil agent means END.
func (fa *FlowAgent) ThenIf(predicate Predicate, ifTrueAgent, ifFalseAgent Agent) *FlowAgent {
	if fa.err != nil {
		return fa
	}

	for _, ag := range []Agent{ifTrueAgent, ifFalseAgent} {
		if ag == nil {
			continue
		}
		if e := ensureAgent(fa.wf, ag); e != nil {
			fa.err = e
			return fa
		}
	}

	ifTrue, ifFalse := targetName(ifTrueAgent), targetName(ifFalseAgent)
	router := func(ctx context.Context, st state.State) string {
		if predicate(ctx, st) {
			return ifTrue
		}
		return ifFalse
	}

	if err := fa.wf.graph.AddConditionalEdge(fa.agent.Name(), router, ifTrue, ifFalse); err != nil {
		fa.err = fmt.Errorf("ThenIf failed: %w", err)
	}
	fa.branchTargets = []string{ifTrue, ifFalse}
	return fa
}

// OnCondition routes on the key returned by condition. A nil agent in
// branchMap means END. A key missing from branchMap fails the run.
func (fa *FlowAgent) OnCondition(condition Condition, branchMap map[string]Agent) *FlowAgent {
	if fa.err != nil {
		return fa
	}

	keys := make([]string, 0, len(branchMap))
	for k := range branchMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	routes := make(map[string]string, len(branchMap))
	var targets []string
	for _, k := range keys {
		ag := branchMap[k]
		if ag != nil {
			if e := ensureAgent(fa.wf, ag); e != nil {
				fa.err = e
				return fa
			}
		}
		routes[k] = targetName(ag)
		targets = append(targets, routes[k])
	}

	router := func(ctx context.Context, st state.State) string {
		key := condition(ctx, st)
		// An unknown key yields "", which the engine rejects as an invalid route.
		return routes[key]
	}

	if err := fa.wf.graph.AddConditionalEdge(fa.agent.Name(), router, targets...); err != nil {
		fa.err = fmt.Errorf("OnCondition failed: %w", err)
	}
	fa.branchTargets = targets
	return fa
}
