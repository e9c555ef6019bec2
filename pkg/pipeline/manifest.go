package pipeline

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadManifest reads dvc.yaml. A missing file is an empty pipeline.
func LoadManifest(path string) (*Pipeline, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Pipeline{Stages: map[string]*Stage{}}, nil
	}
	if err != nil {
		return nil, err
	}

	var pipeline Pipeline
	if err := yaml.Unmarshal(data, &pipeline); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if pipeline.Stages == nil {
		pipeline.Stages = map[string]*Stage{}
	}

	return &pipeline, nil
}

// Validate checks the stage records for obvious damage.
func (p *Pipeline) Validate() error {
	for _, name := range p.Names() {
		if name == "" {
			return fmt.Errorf("stage name is required")
		}
		stage := p.Stages[name]
		if stage == nil {
			return fmt.Errorf("stage %s is empty", name)
		}
		if stage.Cmd == "" {
			return fmt.Errorf("stage %s must have a cmd", name)
		}
	}
	return nil
}
