package stage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/zen-systems/stagetrack/pkg/evidence"
	"github.com/zen-systems/stagetrack/pkg/files"
	"github.com/zen-systems/stagetrack/pkg/node"
	"github.com/zen-systems/stagetrack/pkg/params"
	"github.com/zen-systems/stagetrack/pkg/pipeline"
)

// Outcome describes an executed stage.
type Outcome struct {
	Class     string
	ID        string
	StageName string
	Params    params.Params
	Paths     map[string]string
	Results   *node.Results
	// Written lists the files written for managed fields, sorted.
	Written  []string
	Duration time.Duration
	// RunDir is the evidence directory of this run, if evidence is enabled.
	RunDir string
}

// Executor runs stages from their stored parameter sets.
type Executor struct {
	store       *params.Store
	layout      files.Layout
	evidenceDir string
	logger      zerolog.Logger
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithExecutorLogger sets the logger handed to stages.
func WithExecutorLogger(logger zerolog.Logger) ExecutorOption {
	return func(e *Executor) { e.logger = logger }
}

// WithExecutorEvidenceDir enables run records under dir.
func WithExecutorEvidenceDir(dir string) ExecutorOption {
	return func(e *Executor) { e.evidenceDir = dir }
}

// WithExecutorStore replaces the parameter store derived from the layout.
func WithExecutorStore(store *params.Store) ExecutorOption {
	return func(e *Executor) { e.store = store }
}

// NewExecutor creates an executor for layout.
func NewExecutor(layout files.Layout, opts ...ExecutorOption) *Executor {
	e := &Executor{layout: layout, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(e)
	}
	if e.store == nil {
		e.store = params.NewStore(layout.ParamsPath(), params.WithLogger(e.logger))
	}
	return e
}

// Execute loads the parameter set of (n, id), runs n and writes its managed
// fields.
func (e *Executor) Execute(ctx context.Context, n node.Node, id string) (*Outcome, error) {
	class := n.ClassName()
	p, err := e.store.Load(class, id)
	if err != nil {
		return nil, err
	}

	name := pipeline.StageName(class, id)
	logger := e.logger.With().Str("stage", name).Logger()
	f := files.New(e.layout, class, id, n.Schema())

	deps, err := e.deps(class, id)
	if err != nil {
		return nil, err
	}

	env := &node.Env{
		Class:  class,
		ID:     id,
		Paths:  f.PathMap(),
		Deps:   deps,
		Logger: logger,
	}

	outcome := &Outcome{
		Class:     class,
		ID:        id,
		StageName: name,
		Params:    p,
		Paths:     env.Paths,
	}

	start := time.Now()
	results, runErr := n.Execute(ctx, p, env)
	if runErr == nil {
		outcome.Results = results
		outcome.Written, runErr = writeResults(f, n.Schema(), results)
	}
	outcome.Duration = time.Since(start)

	if e.evidenceDir != "" {
		if err := e.writeEvidence(outcome, start, runErr); err != nil {
			logger.Warn().Err(err).Msg("could not write evidence")
		}
	}
	if runErr != nil {
		return nil, fmt.Errorf("stage %s: %w", name, runErr)
	}

	logger.Info().Int("files", len(outcome.Written)).Dur("duration", outcome.Duration).Msg("stage finished")
	return outcome, nil
}

func (e *Executor) deps(class, id string) ([]string, error) {
	manifest, err := pipeline.LoadManifest(e.layout.DVCFile)
	if err != nil {
		return nil, err
	}
	stage, ok := manifest.Lookup(class, id)
	if !ok {
		return nil, nil
	}
	return append([]string(nil), stage.Deps...), nil
}

func writeResults(f *files.Files, fields []node.Field, results *node.Results) ([]string, error) {
	if err := checkUndeclared(fields, results); err != nil {
		return nil, err
	}
	if err := f.MakeDirs(); err != nil {
		return nil, err
	}

	var written []string
	for _, field := range f.Managed() {
		value, ok := results.Lookup(field)
		if !ok {
			return nil, fmt.Errorf("no value produced for %s field %s", field.Role, field.Name)
		}
		data, err := json.MarshalIndent(value, "", "    ")
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", field.Name, err)
		}
		if field.Role == node.RolePlots && !bytes.HasPrefix(data, []byte("[")) {
			return nil, fmt.Errorf("plot %s must be a list", field.Name)
		}
		path := f.Path(field)
		if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
			return nil, fmt.Errorf("write %s: %w", path, err)
		}
		written = append(written, path)
	}
	sort.Strings(written)
	return written, nil
}

func checkUndeclared(fields []node.Field, results *node.Results) error {
	if results == nil {
		return nil
	}
	declared := make(map[node.Role]map[string]bool)
	for _, field := range fields {
		if !field.Managed() {
			continue
		}
		if declared[field.Role] == nil {
			declared[field.Role] = map[string]bool{}
		}
		declared[field.Role][field.Name] = true
	}
	check := func(role node.Role, values map[string]any) error {
		for key := range values {
			if !declared[role][key] {
				return fmt.Errorf("result %q is not a declared %s field", key, role)
			}
		}
		return nil
	}
	if err := check(node.RoleOuts, results.Outs); err != nil {
		return err
	}
	if err := check(node.RoleMetrics, results.Metrics); err != nil {
		return err
	}
	return check(node.RolePlots, results.Plots)
}

func (e *Executor) writeEvidence(outcome *Outcome, startedAt time.Time, runErr error) error {
	writer, err := evidence.NewWriter(e.evidenceDir, evidence.NewRunID())
	if err != nil {
		return err
	}
	hash, err := evidence.HashParams(outcome.Params)
	if err != nil {
		return err
	}
	run := evidence.RunRecord{
		ID:             writer.ID(),
		Kind:           evidence.KindExecute,
		Timestamp:      startedAt.UTC(),
		Stage:          outcome.StageName,
		Class:          outcome.Class,
		StageID:        outcome.ID,
		ParamsHash:     hash,
		Outputs:        outcome.Paths,
		Status:         evidence.StatusSucceeded,
		DurationMillis: outcome.Duration.Milliseconds(),
	}
	if runErr != nil {
		run.Status = evidence.StatusFailed
		run.Error = runErr.Error()
	}
	if len(outcome.Written) > 0 {
		run.OutputHashes = make(map[string]string, len(outcome.Written))
		for _, path := range outcome.Written {
			hash, err := evidence.HashFile(path)
			if err != nil {
				return err
			}
			run.OutputHashes[path] = hash
		}
	}
	if err := writer.WriteRun(run); err != nil {
		return err
	}
	outcome.RunDir = writer.RunDir()
	return nil
}
