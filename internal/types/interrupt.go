package types

import (
	"encoding/json"

	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/state"
)

// ToolInvocationRequest tells the caller which action to perform next.
type ToolInvocationRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
	InputValues any             `json:"inputValues,omitempty"`
}

// Interrupt is a suspension raised by a node waiting for external input.
type Interrupt struct {
	ID      string                `json:"id"`
	Node    string                `json:"node"`
	Step    int                   `json:"step"`
	Request ToolInvocationRequest `json:"request"`
}

func (i *Interrupt) Clone() *Interrupt {
	if i == nil {
		return nil
	}
	out := *i
	if i.Request.InputSchema != nil {
		out.Request.InputSchema = append(json.RawMessage(nil), i.Request.InputSchema...)
	}
	out.Request.InputValues = state.Copy(i.Request.InputValues)
	return &out
}
