// Package params implements the shared parameter store and the identity
// resolver that maps a parameter set to a stage id.
//
// The store is a single JSON document of the form
//
//	{ "<Class>": { "<id>": { "<name>": <value>, ... }, ... }, ... }
//
// read and written whole on every access.
package params

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
)

var (
	// ErrInvalidParams is returned when a parameter set is not a JSON object.
	ErrInvalidParams = errors.New("invalid parameter set")
	// ErrStageNotFound is returned when no entry exists for a class and id.
	ErrStageNotFound = errors.New("stage not found")
)

// Params is one parameter set. Values are JSON-decoded, so numbers are float64.
type Params map[string]any

// ToParams normalizes v into a parameter set by passing it through JSON.
// Anything that does not encode to a JSON object is rejected.
func ToParams(v any) (Params, error) {
	if v == nil {
		return nil, fmt.Errorf("%w: value has to be a mapping but found nil instead", ErrInvalidParams)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}

	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}

	m, ok := decoded.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: value has to be a mapping but found %T instead", ErrInvalidParams, v)
	}
	return Params(m), nil
}

// Equal reports whether two parameter sets hold the same JSON values.
// A nil set equals an empty one.
func Equal(a, b Params) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return reflect.DeepEqual(map[string]any(a), map[string]any(b))
}

// Merge returns a copy of p with every key of overrides replacing its own.
func (p Params) Merge(overrides Params) Params {
	out := make(Params, len(p)+len(overrides))
	for k, v := range p {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}
