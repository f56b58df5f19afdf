package orchestrator

import (
	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/graph"
)

// ToolPrefix prefixes every orchestrator tool name.
const ToolPrefix = "sfmobile-workflow-"

// Workflow is a named graph the server exposes as an orchestrator tool.
type Workflow struct {
	Name        string
	Title       string
	Description string
	// Build returns a fresh, uncompiled graph.
	Build func() (*graph.Graph, error)
}

// ToolName is the MCP tool that drives the workflow.
func (w Workflow) ToolName() string {
	return ToolPrefix + w.Name
}
