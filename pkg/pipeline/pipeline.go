// Package pipeline reads the stage records DVC keeps in dvc.yaml.
//
// The file is owned by DVC; nothing here writes it.
package pipeline

import "sort"

// Pipeline is a parsed dvc.yaml.
type Pipeline struct {
	Stages map[string]*Stage `yaml:"stages"`
}

// StageName returns the DVC stage name of a stage identity.
func StageName(class, id string) string {
	return class + "_" + id
}

// Stage returns the stage record called name.
func (p *Pipeline) Stage(name string) (*Stage, bool) {
	if p == nil || p.Stages == nil {
		return nil, false
	}
	s, ok := p.Stages[name]
	return s, ok && s != nil
}

// Lookup returns the stage record of a stage identity.
func (p *Pipeline) Lookup(class, id string) (*Stage, bool) {
	return p.Stage(StageName(class, id))
}

// Names returns the stage names, sorted.
func (p *Pipeline) Names() []string {
	names := make([]string, 0, len(p.Stages))
	for name := range p.Stages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
