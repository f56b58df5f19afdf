package server

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	mcp "trpc.group/trpc-go/trpc-mcp-go"

	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/checkpoints"
	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/command/commandtest"
	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/log"
	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/orchestrator"
	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/workflows"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	host := orchestrator.NewHost(nil, log.Nop(), orchestrator.WithCheckpointer(checkpoints.NewMemoryStore()))
	catalog := workflows.Catalog(workflows.Options{
		ProjectRoot: t.TempDir(),
		Runner:      commandtest.New(),
		Logger:      log.Nop(),
	})
	return New(host, catalog)
}

func callTool(t *testing.T, handler func(context.Context, *mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) (string, bool) {
	t.Helper()
	req := &mcp.CallToolRequest{}
	req.Params.Arguments = args

	res, err := handler(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, res)

	raw, err := json.Marshal(res)
	require.NoError(t, err)
	text := gjson.GetBytes(raw, "content.0.text").String()
	require.NotEmpty(t, text)
	return text, res.IsError
}

func callJSON(t *testing.T, handler func(context.Context, *mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) gjson.Result {
	t.Helper()
	text, isErr := callTool(t, handler, args)
	require.False(t, isErr, text)
	return gjson.Parse(text)
}

func TestWorkflowToolRoundTrip(t *testing.T) {
	s := newTestServer(t)
	handler := s.WorkflowHandler(workflows.GreetingName)

	out := callJSON(t, handler, nil)
	assert.Equal(t, "sfmobile-greeting-name", out.Get("nextAction.name").String())
	assert.False(t, out.Get("complete").Bool())
	threadID := out.Get("workflowStateData.thread_id").String()
	require.NotEmpty(t, threadID)

	out = callJSON(t, handler, map[string]any{
		"userInput":         map[string]any{"name": "Ava"},
		"workflowStateData": map[string]any{"thread_id": threadID},
	})
	assert.True(t, out.Get("complete").Bool())
	assert.Equal(t, "Hello, Ava", out.Get("finalState.greeting").String())
}

func TestWorkflowToolReportsErrors(t *testing.T) {
	s := newTestServer(t)
	handler := s.WorkflowHandler(workflows.GreetingName)

	out, isErr := callTool(t, handler, map[string]any{
		"userInput":         map[string]any{"name": "Ava"},
		"workflowStateData": map[string]any{"thread_id": "unknown"},
	})
	require.True(t, isErr)
	assert.Contains(t, out, "workflow state is invalid")

	out, isErr = callTool(t, handler, map[string]any{"userInput": "Ava"})
	require.True(t, isErr)
	assert.Contains(t, out, "invalid orchestrator request")

	first := callJSON(t, handler, nil)
	out, isErr = callTool(t, handler, map[string]any{
		"userInput":         map[string]any{"name": ""},
		"workflowStateData": map[string]any{"thread_id": first.Get("workflowStateData.thread_id").String()},
	})
	require.True(t, isErr)
	assert.Contains(t, out, "node execution failed")
}

func TestDescribeTool(t *testing.T) {
	s := newTestServer(t)

	out := callJSON(t, s.HandleDescribe, nil)
	require.True(t, out.IsArray())
	assert.Len(t, out.Array(), 3)
	assert.Equal(t, "sfmobile-workflow-greeting", out.Get(`#(name=="greeting").tool`).String())

	out = callJSON(t, s.HandleDescribe, map[string]any{"workflow": workflows.PRDName})
	assert.Equal(t, "init", out.Get("entryPoint").String())
	assert.Contains(t, out.Get("mermaid").String(), "flowchart TD")
	assert.Contains(t, out.Get("mermaid").String(), "review -.-> revise")
	assert.True(t, out.Get(`edges.#(from=="revise")`).Exists())

	text, isErr := callTool(t, s.HandleDescribe, map[string]any{"workflow": "nope"})
	require.True(t, isErr)
	assert.Contains(t, text, ErrUnknownWorkflow.Error())
}

func TestToolDefinitions(t *testing.T) {
	wf := orchestrator.Workflow{Name: "greeting", Title: "Greeting", Description: "Says hello."}
	tool := orchestratorTool(wf)
	assert.Equal(t, "sfmobile-workflow-greeting", tool.Name)
	assert.Contains(t, tool.Description, "Greeting: Says hello.")

	describe := describeTool([]string{"a", "b"})
	assert.Equal(t, DescribeTool, describe.Name)
	assert.Contains(t, describe.Description, "Describes")
}
