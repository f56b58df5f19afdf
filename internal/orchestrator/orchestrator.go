// Package orchestrator adapts workflow graphs to the MCP tool protocol.
// Each tool call starts or resumes a thread and returns either the next
// action the caller must perform or the final state.
package orchestrator

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/tmc/langchaingo/prompts"

	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/graph"
	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/log"
	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/state"
	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/types"
	"github.com/forcedotcom/mobile-mcp-tools-sub001/pkg/workflow"
)

// ErrUnknownRequest is returned for a Request other than Start or Resume.
var ErrUnknownRequest = errors.New("unknown request")

// Response is the tool result returned to the MCP client.
type Response struct {
	OrchestrationInstructionsPrompt string                       `json:"orchestrationInstructionsPrompt"`
	NextAction                      *types.ToolInvocationRequest `json:"nextAction,omitempty"`
	WorkflowStateData               WorkflowStateData            `json:"workflowStateData"`
	Complete                        bool                         `json:"complete"`
	FinalState                      state.State                  `json:"finalState,omitempty"`
}

var (
	suspendPrompt = prompts.NewPromptTemplate(`You are orchestrating the "{{.title}}" workflow.

The workflow is waiting for: {{.action}}
{{.description}}
{{- if .inputValues}}

Context for this step:
{{.inputValues}}
{{- end}}
{{- if .inputSchema}}

Collect input that satisfies this JSON schema:
{{.inputSchema}}
{{- end}}

Then call the "{{.tool}}" tool again with:
- "userInput": the collected input
- "workflowStateData": {{.token}}

Pass workflowStateData back exactly as given.`,
		[]string{"title", "action", "description", "inputValues", "inputSchema", "tool", "token"})

	completePrompt = prompts.NewPromptTemplate(`The "{{.title}}" workflow is complete. Summarize the final state for the user:
{{.finalState}}`,
		[]string{"title", "finalState"})
)

// Orchestrator runs one workflow against the Host's checkpoint store.
type Orchestrator struct {
	host     *Host
	workflow Workflow
	logger   log.Logger

	once sync.Once
	app  *workflow.App
	err  error
}

func New(host *Host, wf Workflow) *Orchestrator {
	return &Orchestrator{
		host:     host,
		workflow: wf,
		logger:   log.Named(host.Logger(), wf.Name),
	}
}

func (o *Orchestrator) Workflow() Workflow {
	return o.workflow
}

// App compiles the workflow against the Host's store on first use.
func (o *Orchestrator) App(ctx context.Context) (*workflow.App, error) {
	o.once.Do(func() {
		cp, err := o.host.Checkpointer(ctx)
		if err != nil {
			o.err = err
			return
		}
		g, err := o.workflow.Build()
		if err != nil {
			o.err = errors.Wrapf(err, "build workflow %s", o.workflow.Name)
			return
		}
		o.app, o.err = workflow.NewApp(workflow.FromGraph(g),
			workflow.WithCheckpointer(cp),
			workflow.WithCallback(o),
			workflow.WithCompileOptions(graph.WithLogger(o.logger)),
		)
	})
	return o.app, o.err
}

// Handle runs one tool call.
func (o *Orchestrator) Handle(ctx context.Context, req Request) (*Response, error) {
	app, err := o.App(ctx)
	if err != nil {
		return nil, err
	}

	var (
		threadID string
		cmd      graph.Command
	)
	switch r := req.(type) {
	case Start:
		threadID = uuid.NewString()
		cmd = graph.Start{Input: r.Input}
		o.logger.Infof("starting thread %s", threadID)
	case Resume:
		threadID = r.ThreadID
		snap, err := app.GetState(ctx, threadID)
		if err != nil {
			return nil, err
		}
		switch {
		case snap == nil || snap.Completed():
			return nil, &graph.EngineInvariantError{ThreadID: threadID, Err: graph.ErrNoPendingInterrupt}
		case snap.Interrupt == nil && len(snap.PendingTasks) > 0:
			return nil, &graph.EngineInvariantError{ThreadID: threadID, Node: snap.PendingTasks[0], Err: graph.ErrMissingInterrupt}
		case snap.Interrupt == nil:
			return nil, &graph.EngineInvariantError{ThreadID: threadID, Err: graph.ErrNoPendingInterrupt}
		}
		o.logger.Infof("resuming thread %s at %s (value: %t)", threadID, snap.Interrupt.Node, r.HasValue)
		cmd = graph.Resume{Value: r.Value, HasValue: r.HasValue}
	default:
		return nil, errors.Wrapf(ErrUnknownRequest, "%T", req)
	}

	res, err := app.Invoke(ctx, threadID, cmd)
	if err != nil {
		return nil, err
	}
	return o.respond(threadID, res)
}

func (o *Orchestrator) respond(threadID string, res *graph.Result) (*Response, error) {
	token := WorkflowStateData{ThreadID: threadID}

	if res.Completed() {
		final := res.State()
		text, err := completePrompt.Format(map[string]any{
			"title":      o.title(),
			"finalState": indent(final),
		})
		if err != nil {
			return nil, errors.Wrap(err, "render completion prompt")
		}
		return &Response{
			OrchestrationInstructionsPrompt: text,
			WorkflowStateData:               token,
			Complete:                        true,
			FinalState:                      final,
		}, nil
	}

	if !res.Suspended() || res.Interrupt.Request.Name == "" {
		return nil, &graph.EngineInvariantError{ThreadID: threadID, Err: graph.ErrMissingToolRequest}
	}

	next := res.Interrupt.Request
	values := ""
	if next.InputValues != nil {
		values = indent(next.InputValues)
	}
	text, err := suspendPrompt.Format(map[string]any{
		"title":       o.title(),
		"action":      next.Name,
		"description": next.Description,
		"inputValues": values,
		"inputSchema": string(next.InputSchema),
		"tool":        o.workflow.ToolName(),
		"token":       compact(token),
	})
	if err != nil {
		return nil, errors.Wrap(err, "render instructions prompt")
	}
	return &Response{
		OrchestrationInstructionsPrompt: text,
		NextAction:                      &next,
		WorkflowStateData:               token,
	}, nil
}

func (o *Orchestrator) title() string {
	if o.workflow.Title != "" {
		return o.workflow.Title
	}
	return o.workflow.Name
}

func (o *Orchestrator) OnSuspend(ctx context.Context, threadID string, res *graph.Result) error {
	o.logger.Infof("thread %s suspended at %s", threadID, res.Interrupt.Node)
	return o.host.Flush(ctx)
}

func (o *Orchestrator) OnComplete(ctx context.Context, threadID string, _ *graph.Result) error {
	o.logger.Infof("thread %s completed", threadID)
	return o.host.Flush(ctx)
}

func (o *Orchestrator) OnError(_ context.Context, threadID string, err error) error {
	o.logger.Errorf("thread %s failed: %v", threadID, err)
	return nil
}

func indent(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return ""
	}
	return string(b)
}

func compact(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

var _ workflow.Callback = (*Orchestrator)(nil)
