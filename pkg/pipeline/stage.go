package pipeline

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// DefaultParamsFile is the file DVC assumes for bare parameter keys.
const DefaultParamsFile = "params.yaml"

// Stage is one stage record in dvc.yaml.
type Stage struct {
	Cmd           string    `yaml:"cmd"`
	Deps          PathList  `yaml:"deps,omitempty"`
	Outs          PathList  `yaml:"outs,omitempty"`
	Params        ParamList `yaml:"params,omitempty"`
	Metrics       PathList  `yaml:"metrics,omitempty"`
	Plots         PathList  `yaml:"plots,omitempty"`
	AlwaysChanged bool      `yaml:"always_changed,omitempty"`
}

// PathList is a list of paths. DVC writes each entry either as a plain path
// or as a single-key map from the path to its options:
//
//	outs:
//	  - outs/model.json
//	  - metrics/scores.json:
//	      cache: false
type PathList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *PathList) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.SequenceNode {
		return fmt.Errorf("line %d: expected a list of paths", value.Line)
	}

	paths := make(PathList, 0, len(value.Content))
	for _, item := range value.Content {
		switch item.Kind {
		case yaml.ScalarNode:
			paths = append(paths, item.Value)
		case yaml.MappingNode:
			for i := 0; i < len(item.Content); i += 2 {
				paths = append(paths, item.Content[i].Value)
			}
		default:
			return fmt.Errorf("line %d: unexpected path entry", item.Line)
		}
	}
	*l = paths
	return nil
}

// ParamRef is one parameter file and the keys a stage tracks in it.
type ParamRef struct {
	File string
	Keys []string
}

// ParamList is the params section of a stage:
//
//	params:
//	  - lr
//	  - config/params.json:
//	      - Train.0
type ParamList []ParamRef

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *ParamList) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.SequenceNode {
		return fmt.Errorf("line %d: expected a list of parameters", value.Line)
	}

	refs := make(ParamList, 0, len(value.Content))
	for _, item := range value.Content {
		switch item.Kind {
		case yaml.ScalarNode:
			refs = append(refs, ParamRef{File: DefaultParamsFile, Keys: []string{item.Value}})
		case yaml.MappingNode:
			for i := 0; i+1 < len(item.Content); i += 2 {
				ref := ParamRef{File: item.Content[i].Value}
				keys := item.Content[i+1]
				if keys.Kind == yaml.SequenceNode {
					if err := keys.Decode(&ref.Keys); err != nil {
						return fmt.Errorf("line %d: %w", keys.Line, err)
					}
				}
				refs = append(refs, ref)
			}
		default:
			return fmt.Errorf("line %d: unexpected parameter entry", item.Line)
		}
	}
	*l = refs
	return nil
}

// Files returns the parameter files, in order.
func (l ParamList) Files() []string {
	files := make([]string, 0, len(l))
	for _, ref := range l {
		files = append(files, ref.File)
	}
	return files
}
