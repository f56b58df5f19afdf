package graph

import "github.com/forcedotcom/mobile-mcp-tools-sub001/internal/state"

// Command tells Invoke whether to start a new thread or resume a suspended
// one. It is implemented only by Start and Resume.
type Command interface {
	command()
}

// Start begins a new thread from the entry point with Input as its initial state.
type Start struct {
	Input state.State
}

// Resume continues a suspended thread. When HasValue is false the engine
// only re-reports the pending interrupt.
type Resume struct {
	Value    any
	HasValue bool
}

func (Start) command()  {}
func (Resume) command() {}

// ResumeWith is shorthand for a Resume carrying value.
func ResumeWith(value any) Resume {
	return Resume{Value: value, HasValue: true}
}
