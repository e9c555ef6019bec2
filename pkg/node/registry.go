package node

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrUnknownClass is returned when no stage type is registered under a name.
	ErrUnknownClass = errors.New("unknown stage class")
	// ErrDuplicateClass is returned when a class name is registered twice.
	ErrDuplicateClass = errors.New("duplicate stage class")
)

type selfValidator interface {
	Validate() error
}

// Registry maps class names to stage types.
type Registry struct {
	nodes map[string]Node
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{nodes: make(map[string]Node)}
}

// Register adds a stage type.
func (r *Registry) Register(n Node) error {
	if v, ok := n.(selfValidator); ok {
		if err := v.Validate(); err != nil {
			return err
		}
	} else if n.ClassName() == "" {
		return fmt.Errorf("class name is required")
	} else if err := validateFields(n.Schema()); err != nil {
		return fmt.Errorf("class %s: %w", n.ClassName(), err)
	}

	if _, ok := r.nodes[n.ClassName()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateClass, n.ClassName())
	}
	r.nodes[n.ClassName()] = n
	return nil
}

// MustRegister is Register for package-level setup; it panics on error.
func (r *Registry) MustRegister(nodes ...Node) {
	for _, n := range nodes {
		if err := r.Register(n); err != nil {
			panic(err)
		}
	}
}

// Get returns the stage type registered under class.
func (r *Registry) Get(class string) (Node, error) {
	n, ok := r.nodes[class]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownClass, class)
	}
	return n, nil
}

// Classes returns the registered class names, sorted.
func (r *Registry) Classes() []string {
	names := make([]string, 0, len(r.nodes))
	for name := range r.nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
