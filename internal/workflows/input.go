package workflows

import (
	"encoding/json"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/pkg/errors"

	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/graph"
	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/types"
)

// InputRequest describes input a node needs from the caller.
type InputRequest struct {
	Name        string
	Description string
	Schema      *openapi3.Schema
	Values      map[string]any
}

// ToolRequest converts r into the externally visible request.
func (r InputRequest) ToolRequest() (types.ToolInvocationRequest, error) {
	req := types.ToolInvocationRequest{
		Name:        r.Name,
		Description: r.Description,
	}
	if r.Values != nil {
		req.InputValues = r.Values
	}
	if r.Schema != nil {
		raw, err := json.Marshal(r.Schema)
		if err != nil {
			return req, errors.Wrapf(err, "marshal input schema of %s", r.Name)
		}
		req.InputSchema = raw
	}
	return req, nil
}

// Suspend returns the node result that hands r to the caller.
func (r InputRequest) Suspend() (graph.NodeResult, error) {
	req, err := r.ToolRequest()
	if err != nil {
		return graph.NodeResult{}, err
	}
	return graph.Suspend(req), nil
}

// InvalidInputError reports a resume value rejected by the request schema.
// The thread stays suspended, so the caller can resume again.
type InvalidInputError struct {
	Request string
	Err     error
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input for %s: %v", e.Request, e.Err)
}

func (e *InvalidInputError) Unwrap() error {
	return e.Err
}

// RequestInput returns the caller's answer to req. ok is false when no
// answer has been supplied yet; the node should then return req.Suspend().
// Work a node does before calling RequestInput runs again on resume.
func RequestInput(rt *graph.Runtime, req InputRequest) (values map[string]any, ok bool, err error) {
	v, ok := rt.ResumeValue()
	if !ok {
		return nil, false, nil
	}

	values, isObject := v.(map[string]any)
	if !isObject {
		return nil, true, &InvalidInputError{Request: req.Name, Err: errors.Errorf("expected an object, got %T", v)}
	}
	if req.Schema != nil {
		if err := req.Schema.VisitJSON(values); err != nil {
			return nil, true, &InvalidInputError{Request: req.Name, Err: err}
		}
	}
	rt.Logger().Debugf("%s: received input for %s", rt.Node, req.Name)
	return values, true, nil
}

// Ask is the node body shared by simple input steps: it suspends on req and
// maps the answer into a state update with apply.
func Ask(rt *graph.Runtime, req InputRequest, apply func(values map[string]any) (graph.NodeResult, error)) (graph.NodeResult, error) {
	values, ok, err := RequestInput(rt, req)
	if err != nil {
		return graph.NodeResult{}, err
	}
	if !ok {
		return req.Suspend()
	}
	return apply(values)
}

func stringSchema(desc string) *openapi3.Schema {
	s := openapi3.NewStringSchema().WithMinLength(1)
	s.Description = desc
	return s
}

func objectSchema(required []string, props map[string]*openapi3.Schema) *openapi3.Schema {
	return openapi3.NewObjectSchema().WithProperties(props).WithRequired(required)
}
