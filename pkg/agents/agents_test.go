package agents_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/command"
	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/command/commandtest"
	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/graph"
	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/log"
	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/state"
	"github.com/forcedotcom/mobile-mcp-tools-sub001/pkg/agents"
	"github.com/forcedotcom/mobile-mcp-tools-sub001/pkg/workflow"
)

func buildSpec(st state.State) (command.Spec, string, bool) {
	dir := st.String("projectPath")
	if dir == "" {
		return command.Spec{}, "projectPath is not set", false
	}
	return command.Spec{Name: "make", Args: []string{"build"}, Dir: dir}, "", true
}

func run(t *testing.T, agent workflow.Agent, input state.State) state.State {
	t.Helper()
	schema := state.NewSchema().Append("errors", nil)
	wf := workflow.NewBuilder("cmd", graph.WithSchema(schema))
	require.NoError(t, wf.AddAgent(agent).AsEntryPoint().End())
	cg, err := wf.Compile(nil, graph.WithLogger(log.Nop()))
	require.NoError(t, err)

	res, err := cg.Invoke(context.Background(), "t1", graph.Start{Input: input})
	require.NoError(t, err)
	return res.State()
}

func TestCommandAgentSuccess(t *testing.T) {
	runner := commandtest.New(command.Result{Stdout: "BUILD SUCCEEDED"})
	agent := agents.NewCommandAgent("build", runner, buildSpec, "buildOutput", "errors")

	st := run(t, agent, state.State{"projectPath": "/work/app"})
	assert.Equal(t, "BUILD SUCCEEDED", st["buildOutput"])
	assert.NotContains(t, st, "errors")

	calls := runner.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "/work/app", calls[0].Dir)
}

func TestCommandAgentFailureIsRecorded(t *testing.T) {
	runner := commandtest.New(command.Result{ExitCode: 65, Stderr: "signing failed"})
	agent := agents.NewCommandAgent("build", runner, buildSpec, "buildOutput", "errors")

	st := run(t, agent, state.State{"projectPath": "/work/app"})
	assert.Equal(t, []any{"build: exit code 65: signing failed"}, st["errors"])
}

func TestCommandAgentMissingSpec(t *testing.T) {
	runner := commandtest.New()
	agent := agents.NewCommandAgent("build", runner, buildSpec, "buildOutput", "errors")

	st := run(t, agent, state.State{})
	assert.Equal(t, []any{"build: projectPath is not set"}, st["errors"])
	assert.Empty(t, runner.Calls())
}

func TestSimpleAgent(t *testing.T) {
	agent := agents.NewSimpleAgent("hello", func(context.Context, state.State, *graph.Runtime) (graph.NodeResult, error) {
		return graph.Update(state.State{"hello": "world"}), nil
	}, map[string]any{"kind": "inline"})

	assert.Equal(t, "hello", agent.Name())
	assert.Equal(t, map[string]any{"kind": "inline"}, agent.Metadata())
	assert.Equal(t, "world", run(t, agent, nil)["hello"])
}
