package state

import (
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/pkg/errors"

	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/channels"
)

// Field declares how a state key is merged and, optionally, the type of its
// values. For append keys Type describes a single element.
type Field struct {
	Channel channels.Channel
	Type    *openapi3.Schema
}

// Schema maps state keys to their fields. Keys without a declaration merge
// with replace semantics and are not type checked. A nil *Schema is valid.
type Schema struct {
	fields map[string]Field
}

func NewSchema() *Schema {
	return &Schema{fields: make(map[string]Field)}
}

// Replace declares key with last-value-wins semantics.
func (s *Schema) Replace(key string, typ *openapi3.Schema) *Schema {
	s.fields[key] = Field{Channel: channels.NewLastValue(), Type: typ}
	return s
}

// Append declares key as an accumulating list.
func (s *Schema) Append(key string, elem *openapi3.Schema) *Schema {
	s.fields[key] = Field{Channel: channels.NewAppend(), Type: elem}
	return s
}

// Field returns the declaration for key.
func (s *Schema) Field(key string) (Field, bool) {
	if s == nil {
		return Field{}, false
	}
	f, ok := s.fields[key]
	return f, ok
}

func (s *Schema) channel(key string) channels.Channel {
	if f, ok := s.Field(key); ok && f.Channel != nil {
		return f.Channel
	}
	return channels.NewLastValue()
}

// TypeError reports a value that does not match its key's declared type.
type TypeError struct {
	Key string
	Err error
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("state key %q: %v", e.Key, e.Err)
}

func (e *TypeError) Unwrap() error {
	return e.Err
}

// Merge folds update into old and returns the result as a new State. Keys
// missing from update, or present with a nil value, leave old untouched.
// Neither argument is modified.
func (s *Schema) Merge(old, update State) (State, error) {
	out := old.Clone()
	for _, key := range update.Keys() {
		raw := update[key]
		if raw == nil {
			continue
		}
		value, err := Normalize(raw)
		if err != nil {
			return nil, &TypeError{Key: key, Err: err}
		}
		if err := s.check(key, value); err != nil {
			return nil, err
		}

		current, present := out[key]
		merged, err := s.channel(key).Update(current, present, value)
		if err != nil {
			return nil, &TypeError{Key: key, Err: err}
		}
		out[key] = merged
	}
	return out, nil
}

func (s *Schema) check(key string, value any) error {
	f, ok := s.Field(key)
	if !ok || f.Type == nil {
		return nil
	}

	values := []any{value}
	if f.Channel != nil && f.Channel.Kind() == channels.KindAppend {
		if list, isList := value.([]any); isList {
			values = list
		}
	}
	for _, v := range values {
		if err := f.Type.VisitJSON(v); err != nil {
			return &TypeError{Key: key, Err: errors.Wrap(err, "type mismatch")}
		}
	}
	return nil
}
