package workflows

import (
	"context"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/graph"
	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/state"
	"github.com/forcedotcom/mobile-mcp-tools-sub001/pkg/agents"
	"github.com/forcedotcom/mobile-mcp-tools-sub001/pkg/workflow"
)

const GreetingName = "greeting"

// Greeting state keys
const (
	KeyName     = "name"
	KeyGreeting = "greeting"
	KeyStarted  = "started"
)

// Greeting builds Init -> Ask -> Greet -> END.
func Greeting() (*graph.Graph, error) {
	wf := workflow.NewBuilder(GreetingName, graph.WithDescription("Greets the user by name."))

	initAgent := agents.NewSimpleAgent("Init", func(context.Context, state.State, *graph.Runtime) (graph.NodeResult, error) {
		return graph.Update(state.State{KeyStarted: true}), nil
	}, nil)

	ask := agents.NewSimpleAgent("Ask", func(_ context.Context, _ state.State, rt *graph.Runtime) (graph.NodeResult, error) {
		guidance, err := Guidance("greeting-name", nil)
		if err != nil {
			return graph.NodeResult{}, err
		}
		req := InputRequest{
			Name:        "sfmobile-greeting-name",
			Description: guidance,
			Schema: objectSchema([]string{KeyName}, map[string]*openapi3.Schema{
				KeyName: stringSchema("The user's name"),
			}),
		}
		return Ask(rt, req, func(values map[string]any) (graph.NodeResult, error) {
			return graph.Update(state.State{KeyName: values[KeyName]}), nil
		})
	}, nil)

	greet := agents.NewSimpleAgent("Greet", func(_ context.Context, st state.State, _ *graph.Runtime) (graph.NodeResult, error) {
		return graph.Update(state.State{KeyGreeting: "Hello, " + st.String(KeyName)}), nil
	}, nil)

	if err := wf.AddAgent(initAgent).AsEntryPoint().Then(ask).Then(greet).End(); err != nil {
		return nil, err
	}
	return wf.Graph(), nil
}
