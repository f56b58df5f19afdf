package state

import (
	"fmt"
	"sort"
)

// State is the key/value container a graph run operates on. Values are kept
// in JSON-normal form (string, float64, bool, []any, map[string]any, nil) so
// a node observes identical types before and after a checkpoint round trip.
type State map[string]any

// Get returns the value stored under key
func (s State) Get(key string) (any, bool) {
	v, ok := s[key]
	return v, ok
}

// String returns the string under key, or "" if it is absent or not a string.
func (s State) String(key string) string {
	v, _ := s[key].(string)
	return v
}

// Float returns the number under key.
func (s State) Float(key string) (float64, bool) {
	switch v := s[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

func (s State) Bool(key string) bool {
	v, _ := s[key].(bool)
	return v
}

// List returns the list under key; absent keys yield nil.
func (s State) List(key string) []any {
	v, _ := s[key].([]any)
	return v
}

// Strings renders every element of the list under key with %v.
func (s State) Strings(key string) []string {
	list := s.List(key)
	if len(list) == 0 {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if str, ok := item.(string); ok {
			out = append(out, str)
			continue
		}
		out = append(out, fmt.Sprintf("%v", item))
	}
	return out
}

// Keys returns the state keys in sorted order.
func (s State) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a deep copy of the state
func (s State) Clone() State {
	if s == nil {
		return State{}
	}
	out := make(State, len(s))
	for k, v := range s {
		out[k] = deepCopy(v)
	}
	return out
}
