// Package node declares stage types.
//
// A stage type is a Definition: a class name, a typed parameter record and a
// fixed list of fields mapping names to DVC roles. Nothing is discovered at
// runtime; the schema is whatever the Definition lists.
package node

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/zen-systems/stagetrack/pkg/params"
)

// Node is the type-erased view of a Definition used by the registry, the
// writer and the executor.
type Node interface {
	ClassName() string
	IsMultiUse() bool
	Schema() []Field
	// Normalize overlays overrides on the defaults and returns the complete,
	// validated parameter set.
	Normalize(overrides params.Params) (params.Params, error)
	// Execute runs the stage with a stored parameter set.
	Execute(ctx context.Context, p params.Params, env *Env) (*Results, error)
}

// Env is what a running stage gets besides its parameters.
type Env struct {
	Class  string
	ID     string
	Paths  map[string]string
	Deps   []string
	Logger zerolog.Logger
}

// StageName returns the DVC stage name.
func (e *Env) StageName() string {
	return e.Class + "_" + e.ID
}

// Path returns the file of a declared field, or "" if the field is unknown.
func (e *Env) Path(name string) string {
	return e.Paths[name]
}

// Results holds the values of managed fields, keyed by field name.
type Results struct {
	Outs    map[string]any
	Metrics map[string]any
	Plots   map[string]any
}

// Lookup returns the value produced for a managed field.
func (r *Results) Lookup(f Field) (any, bool) {
	if r == nil {
		return nil, false
	}
	var m map[string]any
	switch f.Role {
	case RoleOuts:
		m = r.Outs
	case RoleMetrics:
		m = r.Metrics
	case RolePlots:
		m = r.Plots
	}
	v, ok := m[f.Name]
	return v, ok
}

// Definition declares a stage type with parameter record P.
type Definition[P any] struct {
	Class    string
	MultiUse bool
	Defaults P
	Fields   []Field
	Run      func(ctx context.Context, p P, env *Env) (*Results, error)
}

var _ Node = (*Definition[struct{}])(nil)

// Validate checks the definition itself.
func (d *Definition[P]) Validate() error {
	if d.Class == "" {
		return fmt.Errorf("class name is required")
	}
	if strings.IndexFunc(d.Class, unicode.IsSpace) >= 0 || strings.ContainsAny(d.Class, ".:") {
		return fmt.Errorf("class name %q must not contain whitespace, '.' or ':'", d.Class)
	}
	if d.Run == nil {
		return fmt.Errorf("class %s has no run function", d.Class)
	}
	if err := validateFields(d.Fields); err != nil {
		return fmt.Errorf("class %s: %w", d.Class, err)
	}
	return nil
}

func (d *Definition[P]) ClassName() string { return d.Class }

func (d *Definition[P]) IsMultiUse() bool { return d.MultiUse }

func (d *Definition[P]) Schema() []Field {
	return append([]Field(nil), d.Fields...)
}

// Encode turns a parameter record into a validated parameter set.
func (d *Definition[P]) Encode(p P) (params.Params, error) {
	if err := validateRecord(p); err != nil {
		return nil, fmt.Errorf("class %s: %w", d.Class, err)
	}
	return params.ToParams(p)
}

// Decode turns a parameter set into a record. Keys the record does not
// declare are rejected.
func (d *Definition[P]) Decode(p params.Params) (P, error) {
	var record P
	data, err := json.Marshal(map[string]any(p))
	if err != nil {
		return record, fmt.Errorf("%w: %v", params.ErrInvalidParams, err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&record); err != nil {
		return record, fmt.Errorf("%w: class %s: %v", params.ErrInvalidParams, d.Class, err)
	}
	if err := validateRecord(record); err != nil {
		return record, fmt.Errorf("class %s: %w", d.Class, err)
	}
	return record, nil
}

func (d *Definition[P]) Normalize(overrides params.Params) (params.Params, error) {
	base, err := params.ToParams(d.Defaults)
	if err != nil {
		return nil, fmt.Errorf("class %s defaults: %w", d.Class, err)
	}
	record, err := d.Decode(base.Merge(overrides))
	if err != nil {
		return nil, err
	}
	return params.ToParams(record)
}

func (d *Definition[P]) Execute(ctx context.Context, p params.Params, env *Env) (*Results, error) {
	record, err := d.Decode(p)
	if err != nil {
		return nil, err
	}
	return d.Run(ctx, record, env)
}
