package orchestrator

import (
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/state"
)

// Argument names of an orchestrator tool call
const (
	ArgUserInput         = "userInput"
	ArgWorkflowStateData = "workflowStateData"
	ArgThreadID          = "thread_id"
)

// ErrInvalidRequest is returned for tool arguments that cannot be decoded.
var ErrInvalidRequest = errors.New("invalid orchestrator request")

// Request is either Start or Resume.
type Request interface {
	request()
}

// Start begins a new thread.
type Start struct {
	Input state.State
}

// Resume continues the thread named by the workflow token. HasValue is
// false when the call carried no userInput.
type Resume struct {
	ThreadID string
	Value    any
	HasValue bool
}

func (Start) request()  {}
func (Resume) request() {}

// WorkflowStateData is the opaque token handed to the caller.
type WorkflowStateData struct {
	ThreadID string `json:"thread_id"`
}

// ParseRequest decodes tool arguments. A call with a workflow token resumes
// that thread; anything else starts a new one.
func ParseRequest(raw []byte) (Request, error) {
	if len(raw) == 0 {
		return Start{Input: state.State{}}, nil
	}
	if !gjson.ValidBytes(raw) {
		return nil, errors.Wrap(ErrInvalidRequest, "arguments are not valid JSON")
	}
	doc := gjson.ParseBytes(raw)
	if doc.Type == gjson.Null {
		return Start{Input: state.State{}}, nil
	}
	if !doc.IsObject() {
		return nil, errors.Wrap(ErrInvalidRequest, "arguments must be an object")
	}

	input := doc.Get(ArgUserInput)
	token := doc.Get(ArgWorkflowStateData)
	if token.Exists() && token.Type != gjson.Null && !token.IsObject() {
		return nil, errors.Wrapf(ErrInvalidRequest, "%s must be an object", ArgWorkflowStateData)
	}

	if threadID := token.Get(ArgThreadID).String(); threadID != "" {
		hasValue := input.Exists() && input.Type != gjson.Null
		var value any
		if hasValue {
			value = input.Value()
		}
		return Resume{ThreadID: threadID, Value: value, HasValue: hasValue}, nil
	}

	if !input.Exists() || input.Type == gjson.Null {
		return Start{Input: state.State{}}, nil
	}
	if !input.IsObject() {
		return nil, errors.Wrapf(ErrInvalidRequest, "%s must be an object when starting a workflow", ArgUserInput)
	}
	values, _ := input.Value().(map[string]any)
	return Start{Input: state.State(values)}, nil
}
