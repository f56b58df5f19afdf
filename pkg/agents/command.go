package agents

import (
	"context"

	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/command"
	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/graph"
	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/state"
)

// SpecFunc builds the command to run from the current state. Returning
// ok=false records reason as a failure without running anything.
type SpecFunc func(st state.State) (spec command.Spec, reason string, ok bool)

// CommandAgent runs an external command. A failed or timed out command is
// appended to ErrorKey instead of failing the run, so a router can send the
// thread to a recovery step.
type CommandAgent struct {
	name      string
	runner    command.Runner
	spec      SpecFunc
	outputKey string
	errorKey  string
	metadata  map[string]any
}

func NewCommandAgent(name string, runner command.Runner, spec SpecFunc, outputKey, errorKey string) *CommandAgent {
	return &CommandAgent{
		name:      name,
		runner:    runner,
		spec:      spec,
		outputKey: outputKey,
		errorKey:  errorKey,
		metadata:  map[string]any{"command": true},
	}
}

func (ca *CommandAgent) Name() string {
	return ca.name
}

func (ca *CommandAgent) Execute(ctx context.Context, st state.State, rt *graph.Runtime) (graph.NodeResult, error) {
	spec, reason, ok := ca.spec(st)
	if !ok {
		rt.Logger().Warnf("%s: not running command: %s", ca.name, reason)
		return graph.Update(state.State{ca.errorKey: ca.name + ": " + reason}), nil
	}

	res := ca.runner.Run(ctx, spec)
	if res.Failed() {
		return graph.Update(state.State{ca.errorKey: ca.name + ": " + res.Summary()}), nil
	}

	rt.Logger().Infof("%s: %s finished in %s", ca.name, spec, res.Duration)
	return graph.Update(state.State{ca.outputKey: res.Stdout}), nil
}

func (ca *CommandAgent) Metadata() map[string]any {
	return ca.metadata
}
