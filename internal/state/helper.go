package state

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// deepCopy performs a deep copy of a JSON-normal value
func deepCopy(v any) any {
	if v == nil {
		return nil
	}

	switch val := v.(type) {
	case map[string]any:
		newMap := make(map[string]any, len(val))
		for k, v := range val {
			newMap[k] = deepCopy(v)
		}
		return newMap
	case []any:
		newSlice := make([]any, len(val))
		for i, v := range val {
			newSlice[i] = deepCopy(v)
		}
		return newSlice
	default:
		// scalars are immutable
		return val
	}
}

// Normalize converts v into its JSON-normal form. Values that already are
// JSON-normal are deep-copied without a round trip through encoding/json.
func Normalize(v any) (any, error) {
	if isNormal(v) {
		return deepCopy(v), nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrapf(err, "normalize %T", v)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, errors.Wrapf(err, "normalize %T", v)
	}
	return out, nil
}

// NormalizeState normalizes every value of s into a new State.
func NormalizeState(s State) (State, error) {
	out := make(State, len(s))
	for k, v := range s {
		nv, err := Normalize(v)
		if err != nil {
			return nil, errors.Wrapf(err, "key %q", k)
		}
		out[k] = nv
	}
	return out, nil
}

func isNormal(v any) bool {
	switch val := v.(type) {
	case nil, string, float64, bool:
		return true
	case []any:
		for _, item := range val {
			if !isNormal(item) {
				return false
			}
		}
		return true
	case map[string]any:
		for _, item := range val {
			if !isNormal(item) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Copy returns a deep copy of a JSON-normal value.
func Copy(v any) any {
	return deepCopy(v)
}
