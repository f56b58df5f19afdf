package graph

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/state"
	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/types"
)

const tracerName = "github.com/forcedotcom/mobile-mcp-tools-sub001/internal/graph"

// Result is the outcome of one Invoke: the thread's snapshot and, when the
// run stopped on a suspension, the pending interrupt.
type Result struct {
	Snapshot  *types.Snapshot
	Interrupt *types.Interrupt
}

func (r *Result) Suspended() bool {
	return r != nil && r.Interrupt != nil
}

func (r *Result) Completed() bool {
	return r != nil && r.Snapshot.Completed()
}

// State returns the thread state after the run.
func (r *Result) State() state.State {
	if r == nil || r.Snapshot == nil {
		return nil
	}
	return r.Snapshot.State
}

// position is where a run continues from.
type position struct {
	state    state.State
	node     string
	step     int
	parentID string
	answers  []any
	resuming bool
}

// Invoke runs threadID until it suspends or reaches END. A checkpoint is
// written after every executed node.
func (g *CompiledGraph) Invoke(ctx context.Context, threadID string, cmd Command) (*Result, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "graph.invoke", trace.WithAttributes(
		attribute.String("graph.name", g.name),
		attribute.String("thread.id", threadID),
	))
	defer span.End()

	res, err := g.invoke(ctx, threadID, cmd)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Bool("graph.suspended", res.Suspended()))
	return res, nil
}

func (g *CompiledGraph) invoke(ctx context.Context, threadID string, cmd Command) (*Result, error) {
	if threadID == "" {
		return nil, newInvariantError(threadID, "", ErrEmptyThreadID)
	}

	cp, err := g.checkpointer.Get(ctx, threadID)
	if err != nil {
		return nil, asPersistenceError(err, "get", threadID)
	}

	var pos position
	switch c := cmd.(type) {
	case Start:
		if cp != nil {
			return nil, newInvariantError(threadID, "", ErrThreadExists)
		}
		initial, err := g.schema.Merge(state.State{}, c.Input)
		if err != nil {
			return nil, errors.Wrap(err, "initial state")
		}
		pos = position{state: initial, node: g.entryPoint}
		g.config.logger.Infof("thread %s: starting graph %s at %s", threadID, g.name, g.entryPoint)

	case Resume:
		if err := g.checkResumable(threadID, cp); err != nil {
			return nil, err
		}
		if !c.HasValue {
			g.config.logger.Infof("thread %s: no resume value, re-surfacing interrupt %s", threadID, cp.Interrupt.ID)
			return &Result{Snapshot: cp.Snapshot(), Interrupt: cp.Interrupt.Clone()}, nil
		}
		value, err := state.Normalize(c.Value)
		if err != nil {
			return nil, errors.Wrap(err, "resume value")
		}
		base := cp.TaskInput
		if base == nil {
			base = state.State{}
		}
		answers := make([]any, 0, len(cp.Answers)+1)
		answers = append(answers, cp.Answers...)
		pos = position{
			state:    base,
			node:     cp.Interrupt.Node,
			step:     cp.Step - 1,
			parentID: cp.ID,
			answers:  append(answers, value),
			resuming: true,
		}
		g.config.logger.Infof("thread %s: resuming %s", threadID, pos.node)

	default:
		return nil, newInvariantError(threadID, "", errors.Wrapf(ErrUnknownCommand, "%T", cmd))
	}

	return g.run(ctx, threadID, pos)
}

// checkResumable verifies cp describes a thread suspended on a node this
// graph knows.
func (g *CompiledGraph) checkResumable(threadID string, cp *types.Checkpoint) error {
	if cp == nil || cp.Status == types.StatusCompleted {
		return newInvariantError(threadID, "", ErrNoPendingInterrupt)
	}
	if cp.Graph != "" && cp.Graph != g.name {
		return newInvariantError(threadID, "", errors.Wrapf(ErrGraphMismatch, "checkpoint of %q", cp.Graph))
	}
	if cp.Interrupt == nil {
		if len(cp.PendingTasks) > 0 {
			return newInvariantError(threadID, cp.PendingTasks[0], ErrMissingInterrupt)
		}
		return newInvariantError(threadID, "", ErrNoPendingInterrupt)
	}
	if cp.Interrupt.Request.Name == "" {
		return newInvariantError(threadID, cp.Interrupt.Node, ErrMissingToolRequest)
	}
	if _, ok := g.nodes[cp.Interrupt.Node]; !ok {
		return newInvariantError(threadID, cp.Interrupt.Node, ErrNodeNotFound)
	}
	return nil
}

func (g *CompiledGraph) run(ctx context.Context, threadID string, pos position) (*Result, error) {
	st := pos.state
	current := pos.node
	step := pos.step
	parentID := pos.parentID
	executed := 0

	for {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrapf(err, "thread %s cancelled before %s", threadID, current)
		}
		if g.config.maxSteps > 0 && executed >= g.config.maxSteps {
			return nil, newInvariantError(threadID, current, errors.Wrapf(ErrMaxStepsExceeded, "limit %d", g.config.maxSteps))
		}

		node, ok := g.nodes[current]
		if !ok {
			return nil, newInvariantError(threadID, current, ErrNodeNotFound)
		}

		rt := &Runtime{
			ThreadID: threadID,
			Node:     current,
			Step:     step,
			logger:   g.config.logger,
		}
		if pos.resuming && executed == 0 {
			rt.answers = pos.answers
			rt.resumed = true
		}

		input := st
		result, err := g.executeNode(ctx, node, input.Clone(), rt)
		if err != nil {
			return nil, &NodeExecutionError{Node: current, Step: step, Err: err}
		}
		st, err = g.schema.Merge(st, result.Update)
		if err != nil {
			return nil, &NodeExecutionError{Node: current, Step: step, Err: err}
		}
		executed++
		step++

		if result.Suspended() {
			return g.suspend(ctx, threadID, parentID, step, current, st, input, rt.consumed(), *result.Request)
		}

		next, err := g.nextNode(ctx, threadID, current, st)
		if err != nil {
			return nil, err
		}

		if next == END {
			cp := g.newCheckpoint(threadID, parentID, step, types.StatusCompleted, st)
			if err := g.put(ctx, threadID, cp); err != nil {
				return nil, err
			}
			g.config.logger.Infof("thread %s: graph %s completed after %d steps", threadID, g.name, step)
			return &Result{Snapshot: cp.Snapshot()}, nil
		}

		cp := g.newCheckpoint(threadID, parentID, step, types.StatusReady, st)
		cp.PendingTasks = []string{next}
		if err := g.put(ctx, threadID, cp); err != nil {
			return nil, err
		}
		g.config.logger.Debugf("thread %s: %s -> %s", threadID, current, next)

		parentID = cp.ID
		current = next
	}
}

func (g *CompiledGraph) suspend(
	ctx context.Context,
	threadID, parentID string,
	step int,
	node string,
	st, input state.State,
	answers []any,
	req types.ToolInvocationRequest,
) (*Result, error) {
	if req.Name == "" {
		return nil, newInvariantError(threadID, node, ErrMissingToolRequest)
	}
	values, err := state.Normalize(req.InputValues)
	if err != nil {
		return nil, &NodeExecutionError{Node: node, Step: step - 1, Err: errors.Wrap(err, "tool request input values")}
	}
	req.InputValues = values

	interrupt := &types.Interrupt{
		ID:      uuid.NewString(),
		Node:    node,
		Step:    step,
		Request: req,
	}
	cp := g.newCheckpoint(threadID, parentID, step, types.StatusSuspended, st)
	cp.PendingTasks = []string{node}
	cp.Interrupt = interrupt
	cp.TaskInput = input
	cp.Answers = answers
	if err := g.put(ctx, threadID, cp); err != nil {
		return nil, err
	}

	g.config.logger.Infof("thread %s: suspended at %s awaiting %s", threadID, node, req.Name)
	return &Result{Snapshot: cp.Snapshot(), Interrupt: interrupt.Clone()}, nil
}

func (g *CompiledGraph) executeNode(ctx context.Context, node *NodeSpec, st state.State, rt *Runtime) (res NodeResult, err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "graph.node "+node.Name, trace.WithAttributes(
		attribute.String("graph.node", node.Name),
		attribute.Int("graph.step", rt.Step),
		attribute.Bool("graph.resumed", rt.resumed),
	))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			err = errors.Wrapf(ErrNodePanic, "%v", r)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	return node.Function(ctx, st, rt)
}

// nextNode resolves the transition out of current. Routers take precedence
// over static edges; validation rejects nodes with both.
func (g *CompiledGraph) nextNode(ctx context.Context, threadID, current string, st state.State) (string, error) {
	if b, ok := g.branches[current]; ok {
		target := b.Router(ctx, st.Clone())
		if target == "" || !b.allows(target) {
			return "", newInvariantError(threadID, current, errors.Wrapf(ErrInvalidRoute, "%q", target))
		}
		if target != END {
			if _, ok := g.nodes[target]; !ok {
				return "", newInvariantError(threadID, current, errors.Wrapf(ErrNodeNotFound, "router target %q", target))
			}
		}
		return target, nil
	}

	if to, ok := g.edges[current]; ok {
		return to, nil
	}
	return "", newInvariantError(threadID, current, ErrNoTransition)
}

func (g *CompiledGraph) put(ctx context.Context, threadID string, cp *types.Checkpoint) error {
	if err := g.checkpointer.Put(ctx, threadID, cp); err != nil {
		g.config.logger.Errorf("thread %s: checkpoint write failed: %v", threadID, err)
		return asPersistenceError(err, "put", threadID)
	}
	return nil
}

func asPersistenceError(err error, op, threadID string) error {
	var perr *types.PersistenceError
	if errors.As(err, &perr) {
		return err
	}
	return types.NewPersistenceError(op, threadID, fmt.Errorf("checkpointer: %w", err))
}
