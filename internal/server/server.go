// Package server exposes the workflow orchestrators as MCP tools.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
	mcp "trpc.group/trpc-go/trpc-mcp-go"

	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/graph"
	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/log"
	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/orchestrator"
)

const (
	Name = "sfmobile-mcp-server"

	// DescribeTool reports the structure of a workflow.
	DescribeTool = orchestrator.ToolPrefix + "describe"
)

// Version is set at build time.
var Version = "dev"

// ErrUnknownWorkflow is returned when describing a workflow that is not served.
var ErrUnknownWorkflow = errors.New("unknown workflow")

// OrchestratorInput documents the arguments of every orchestrator tool.
type OrchestratorInput struct {
	UserInput         map[string]any                  `json:"userInput,omitempty" jsonschema:"description=Input collected for the pending action; omit on the first call"`
	WorkflowStateData *orchestrator.WorkflowStateData `json:"workflowStateData,omitempty" jsonschema:"description=Opaque workflow token from the previous response; pass it back unchanged"`
}

// Server routes tool calls to one orchestrator per workflow.
type Server struct {
	host          *orchestrator.Host
	logger        log.Logger
	orchestrators map[string]*orchestrator.Orchestrator
	names         []string
}

func New(host *orchestrator.Host, catalog []orchestrator.Workflow) *Server {
	s := &Server{
		host:          host,
		logger:        log.Named(host.Logger(), "server"),
		orchestrators: make(map[string]*orchestrator.Orchestrator, len(catalog)),
	}
	for _, wf := range catalog {
		s.orchestrators[wf.Name] = orchestrator.New(host, wf)
		s.names = append(s.names, wf.Name)
	}
	return s
}

// NewStdio returns an MCP server on stdin/stdout with every tool registered.
func (s *Server) NewStdio() *mcp.StdioServer {
	srv := mcp.NewStdioServer(Name, Version, mcp.WithStdioServerLogger(mcp.GetDefaultLogger()))
	s.Register(srv)
	return srv
}

// Register adds one orchestrator tool per workflow plus the describe tool.
func (s *Server) Register(srv *mcp.StdioServer) {
	for _, name := range s.names {
		wf := s.orchestrators[name].Workflow()
		srv.RegisterTool(orchestratorTool(wf), s.WorkflowHandler(name))
		s.logger.Debugf("registered tool %s", wf.ToolName())
	}
	srv.RegisterTool(describeTool(s.names), s.HandleDescribe)
}

func orchestratorTool(wf orchestrator.Workflow) *mcp.Tool {
	desc := wf.Description
	if wf.Title != "" {
		desc = wf.Title + ": " + desc
	}
	desc += " Call without arguments to start. Every response names the next action and carries a workflowStateData token; " +
		"perform the action, then call this tool again with the result as userInput and the token unchanged."
	return mcp.NewTool(wf.ToolName(),
		mcp.WithDescription(desc),
		mcp.WithInputStruct[OrchestratorInput](),
	)
}

func describeTool(names []string) *mcp.Tool {
	return mcp.NewTool(DescribeTool,
		mcp.WithDescription("Describes the served workflows. With a workflow name, returns its steps and a Mermaid diagram."),
		mcp.WithString("workflow", mcp.Description("One of: "+strings.Join(names, ", "))),
	)
}

// WorkflowHandler returns the tool handler of the named workflow.
func (s *Server) WorkflowHandler(name string) func(context.Context, *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	o := s.orchestrators[name]
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		raw, err := json.Marshal(req.Params.Arguments)
		if err != nil {
			return mcp.NewErrorResult(fmt.Sprintf("invalid arguments: %v", err)), nil
		}
		parsed, err := orchestrator.ParseRequest(raw)
		if err != nil {
			return mcp.NewErrorResult(err.Error()), nil
		}

		resp, err := o.Handle(ctx, parsed)
		if err != nil {
			s.logger.Errorf("%s: %v", name, err)
			return mcp.NewErrorResult(errorMessage(err)), nil
		}
		return jsonResult(resp)
	}
}

// Description is the result of the describe tool.
type Description struct {
	Name        string     `json:"name"`
	Tool        string     `json:"tool"`
	Title       string     `json:"title,omitempty"`
	Description string     `json:"description,omitempty"`
	EntryPoint  string     `json:"entryPoint,omitempty"`
	Nodes       []string   `json:"nodes,omitempty"`
	Edges       []edgeJSON `json:"edges,omitempty"`
	Mermaid     string     `json:"mermaid,omitempty"`
}

type edgeJSON struct {
	From string `json:"from"`
	To   string `json:"to"`
	Type string `json:"type"`
}

func (s *Server) HandleDescribe(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, _ := req.Params.Arguments["workflow"].(string)
	if name == "" {
		return jsonResult(s.list())
	}
	desc, err := s.Describe(ctx, name)
	if err != nil {
		return mcp.NewErrorResult(err.Error()), nil
	}
	return jsonResult(desc)
}

func (s *Server) list() []Description {
	out := make([]Description, 0, len(s.names))
	for _, name := range s.names {
		wf := s.orchestrators[name].Workflow()
		out = append(out, Description{Name: wf.Name, Tool: wf.ToolName(), Title: wf.Title, Description: wf.Description})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Describe returns the structure of the named workflow.
func (s *Server) Describe(ctx context.Context, name string) (*Description, error) {
	o, ok := s.orchestrators[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownWorkflow, "%q", name)
	}
	app, err := o.App(ctx)
	if err != nil {
		return nil, err
	}
	compiled := app.Compiled()
	info := compiled.Info()

	wf := o.Workflow()
	desc := &Description{
		Name:        wf.Name,
		Tool:        wf.ToolName(),
		Title:       wf.Title,
		Description: wf.Description,
		EntryPoint:  info.EntryPoint,
		Nodes:       info.Nodes,
		Mermaid:     compiled.Mermaid(),
	}
	for _, e := range info.Edges {
		desc.Edges = append(desc.Edges, edgeJSON{From: e.From, To: e.To, Type: e.Type})
	}
	return desc, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "encode tool result")
	}
	return mcp.NewTextResult(string(b)), nil
}

// errorMessage prefixes engine failures with their class so the caller can
// tell a bad input from a broken thread.
func errorMessage(err error) string {
	var (
		verr *graph.ValidationError
		nerr *graph.NodeExecutionError
		ierr *graph.EngineInvariantError
	)
	switch {
	case errors.As(err, &nerr):
		return "node execution failed: " + err.Error()
	case errors.As(err, &ierr):
		return "workflow state is invalid: " + err.Error()
	case errors.As(err, &verr):
		return "workflow definition is invalid: " + err.Error()
	default:
		return err.Error()
	}
}
