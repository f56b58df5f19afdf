package channels

import (
	"fmt"
)

// Kind names the merge rule of a channel.
type Kind string

const (
	KindLastValue Kind = "last_value"
	KindAppend    Kind = "append"
)

// Channel folds a value written by a node into the value already held for a
// state key. present reports whether the key held a value before the write.
type Channel interface {
	Kind() Kind
	Update(current any, present bool, value any) (any, error)
}

// LastValue is a channel that only keeps the most recent value
type LastValue struct{}

func NewLastValue() *LastValue {
	return &LastValue{}
}

func (l *LastValue) Kind() Kind { return KindLastValue }

func (l *LastValue) Update(_ any, _ bool, value any) (any, error) {
	return value, nil
}

// Append accumulates values into a list. A list written to the channel is
// appended element by element; any other value is appended as one element.
type Append struct{}

func NewAppend() *Append {
	return &Append{}
}

func (a *Append) Kind() Kind { return KindAppend }

func (a *Append) Update(current any, present bool, value any) (any, error) {
	var out []any
	if present && current != nil {
		existing, ok := current.([]any)
		if !ok {
			return nil, fmt.Errorf("append channel holds %T, want a list", current)
		}
		out = make([]any, 0, len(existing)+1)
		out = append(out, existing...)
	}

	switch v := value.(type) {
	case []any:
		out = append(out, v...)
	default:
		out = append(out, v)
	}
	if out == nil {
		out = []any{}
	}
	return out, nil
}

// ForKind returns the channel implementing kind.
func ForKind(kind Kind) (Channel, error) {
	switch kind {
	case KindLastValue, "":
		return NewLastValue(), nil
	case KindAppend:
		return NewAppend(), nil
	default:
		return nil, fmt.Errorf("unknown channel kind %q", kind)
	}
}
