// Package stage writes DVC stages for stage types and executes them when DVC
// calls back.
package stage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/zen-systems/stagetrack/pkg/evidence"
	"github.com/zen-systems/stagetrack/pkg/files"
	"github.com/zen-systems/stagetrack/pkg/node"
	"github.com/zen-systems/stagetrack/pkg/params"
	"github.com/zen-systems/stagetrack/pkg/pipeline"
	"github.com/zen-systems/stagetrack/pkg/process"
)

var (
	// ErrPipelineManager is returned when dvc exits with a non-zero status.
	ErrPipelineManager = errors.New("pipeline manager failed")
	// ErrUpstreamNotFound is returned when an After reference is not in dvc.yaml.
	ErrUpstreamNotFound = errors.New("upstream stage not found")
)

// Ref names a stage identity.
type Ref struct {
	Class string
	ID    string
}

// ParseRef parses "Class:ID".
func ParseRef(s string) (Ref, error) {
	class, id, ok := strings.Cut(s, ":")
	if !ok || class == "" || id == "" {
		return Ref{}, fmt.Errorf("invalid stage reference %q, expected Class:ID", s)
	}
	return Ref{Class: class, ID: id}, nil
}

func (r Ref) String() string {
	return r.Class + ":" + r.ID
}

// Options control one Write.
type Options struct {
	Force         bool
	Exec          bool
	AlwaysChanged bool
	Slurm         bool
	// After lists stages whose outs become deps of this one.
	After []Ref
}

// Record describes a written stage.
type Record struct {
	Class     string
	ID        string
	StageName string
	Params    params.Params
	Args      []string
	Result    *process.Result
}

// Writer persists parameter sets and registers stages with dvc.
type Writer struct {
	store       *params.Store
	layout      files.Layout
	runner      process.Runner
	dvcBinary   string
	slurm       SlurmConfig
	candidates  []string
	checkArgs   []string
	configFile  string
	multiUse    func(class string, fallback bool) bool
	evidenceDir string
	logger      zerolog.Logger
	executable  string
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithRunner sets the subprocess runner.
func WithRunner(r process.Runner) WriterOption {
	return func(w *Writer) { w.runner = r }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) WriterOption {
	return func(w *Writer) { w.logger = logger }
}

// WithDVCBinary sets the dvc executable.
func WithDVCBinary(binary string) WriterOption {
	return func(w *Writer) {
		if binary != "" {
			w.dvcBinary = binary
		}
	}
}

// WithSlurm sets the srun binary and task count.
func WithSlurm(cfg SlurmConfig) WriterOption {
	return func(w *Writer) { w.slurm = cfg }
}

// WithCandidates sets the executables tried for the job command and the
// arguments used to check them.
func WithCandidates(candidates []string, checkArgs ...string) WriterOption {
	return func(w *Writer) {
		w.candidates = append([]string(nil), candidates...)
		if len(checkArgs) > 0 {
			w.checkArgs = append([]string(nil), checkArgs...)
		}
	}
}

// WithConfigFile makes the job command pass --config file.
func WithConfigFile(file string) WriterOption {
	return func(w *Writer) { w.configFile = file }
}

// WithMultiUse overrides the multi-use flag per class.
func WithMultiUse(fn func(class string, fallback bool) bool) WriterOption {
	return func(w *Writer) { w.multiUse = fn }
}

// WithEvidenceDir enables run records under dir.
func WithEvidenceDir(dir string) WriterOption {
	return func(w *Writer) { w.evidenceDir = dir }
}

// WithStore replaces the parameter store derived from the layout.
func WithStore(store *params.Store) WriterOption {
	return func(w *Writer) { w.store = store }
}

// NewWriter creates a writer for layout.
func NewWriter(layout files.Layout, opts ...WriterOption) *Writer {
	w := &Writer{
		layout:    layout,
		runner:    process.ExecRunner{},
		dvcBinary: "dvc",
		slurm:     SlurmConfig{Binary: "srun", N: 1},
		checkArgs: []string{"version"},
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.store == nil {
		w.store = params.NewStore(layout.ParamsPath(), params.WithLogger(w.logger))
	}
	if len(w.candidates) == 0 {
		w.candidates = DefaultCandidates()
	}
	return w
}

// DefaultCandidates returns the running binary followed by stagetrack on PATH.
func DefaultCandidates() []string {
	var candidates []string
	if exe, err := os.Executable(); err == nil {
		candidates = append(candidates, exe)
	}
	return append(candidates, "stagetrack")
}

// Store returns the parameter store.
func (w *Writer) Store() *params.Store {
	return w.store
}

// Executable returns the job executable, probing the candidates on first use.
func (w *Writer) Executable(ctx context.Context) (string, error) {
	if w.executable != "" {
		return w.executable, nil
	}
	exe, err := process.SelectExecutable(ctx, w.runner, w.candidates, w.checkArgs...)
	if err != nil {
		return "", err
	}
	w.logger.Debug().Str("executable", exe).Msg("selected job executable")
	w.executable = exe
	return exe, nil
}

// Write stores the parameter set of n with overrides and registers the stage
// with dvc. Nothing is stored when an After stage or the job executable
// cannot be resolved.
func (w *Writer) Write(ctx context.Context, n node.Node, overrides params.Params, opts Options) (*Record, error) {
	class := n.ClassName()

	p, err := n.Normalize(overrides)
	if err != nil {
		return nil, err
	}

	multiUse := n.IsMultiUse()
	if w.multiUse != nil {
		multiUse = w.multiUse(class, multiUse)
	}
	id, err := w.store.Resolve(class, p, multiUse)
	if err != nil {
		return nil, err
	}

	afterArgs, err := w.upstreamArgs(opts.After)
	if err != nil {
		return nil, err
	}
	exe, err := w.Executable(ctx)
	if err != nil {
		return nil, err
	}

	f := files.New(w.layout, class, id, n.Schema())
	if err := f.MakeDirs(); err != nil {
		return nil, err
	}
	if err := w.store.Save(class, id, p); err != nil {
		return nil, err
	}

	name := pipeline.StageName(class, id)
	logger := w.logger.With().Str("stage", name).Logger()
	if opts.Force {
		logger.Warn().Msg("overwriting an existing stage configuration")
	}
	if opts.Exec {
		logger.Warn().Msg("running the stage now, output is not streamed")
	}
	spec := RunSpec{
		Name:          name,
		FileArgs:      append(f.Arguments(), afterArgs...),
		ParamsRef:     f.ParamsRef(),
		Force:         opts.Force,
		NoExec:        !opts.Exec,
		AlwaysChanged: opts.AlwaysChanged,
		Job:           Job{Executable: exe, Class: class, ID: id, ConfigFile: w.configFile},
	}
	if opts.Slurm {
		logger.Warn().Msg("using SLURM, every stage of the pipeline must use it")
		slurm := w.slurm
		spec.Slurm = &slurm
	}

	args := BuildRunArgs(spec)
	cmd := process.Command{Name: w.dvcBinary, Args: args}
	logger.Debug().Str("command", cmd.String()).Msg("running dvc")

	startedAt := time.Now().UTC()
	res, err := w.runner.Run(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if out := strings.TrimSpace(res.Stdout); out != "" {
		logger.Info().Msg(out)
	}
	if out := strings.TrimSpace(res.Stderr); out != "" {
		logger.Warn().Msg(out)
	}

	var runErr error
	if !res.Success() {
		runErr = fmt.Errorf("%w: %s exited with status %d: %s", ErrPipelineManager, w.dvcBinary, res.ExitCode, strings.TrimSpace(res.Stderr))
		logger.Error().Int("exit_code", res.ExitCode).Msg("dvc run failed")
	}

	if w.evidenceDir != "" {
		if err := w.writeEvidence(name, class, id, p, f, res, startedAt, runErr); err != nil {
			logger.Warn().Err(err).Msg("could not write evidence")
		}
	}

	record := &Record{
		Class:     class,
		ID:        id,
		StageName: name,
		Params:    p,
		Args:      cmd.Argv(),
		Result:    res,
	}
	if runErr != nil {
		return record, runErr
	}
	return record, nil
}

// Add encodes a typed parameter record and writes it.
func Add[P any](ctx context.Context, w *Writer, def *node.Definition[P], p P, opts Options) (*Record, error) {
	overrides, err := def.Encode(p)
	if err != nil {
		return nil, err
	}
	return w.Write(ctx, def, overrides, opts)
}

func (w *Writer) upstreamArgs(after []Ref) ([]string, error) {
	if len(after) == 0 {
		return nil, nil
	}
	manifest, err := pipeline.LoadManifest(w.layout.DVCFile)
	if err != nil {
		return nil, err
	}
	var args []string
	for _, ref := range after {
		upstream, ok := manifest.Lookup(ref.Class, ref.ID)
		if !ok {
			return nil, fmt.Errorf("%w: %s in %s", ErrUpstreamNotFound, pipeline.StageName(ref.Class, ref.ID), w.layout.DVCFile)
		}
		for _, out := range upstream.Outs {
			args = append(args, "--deps", out)
		}
	}
	return args, nil
}

func (w *Writer) writeEvidence(name, class, id string, p params.Params, f *files.Files, res *process.Result, startedAt time.Time, runErr error) error {
	writer, err := evidence.NewWriter(w.evidenceDir, evidence.NewRunID())
	if err != nil {
		return err
	}
	hash, err := evidence.HashParams(p)
	if err != nil {
		return err
	}
	run := evidence.RunRecord{
		ID:             writer.ID(),
		Kind:           evidence.KindConfigure,
		Timestamp:      startedAt,
		Stage:          name,
		Class:          class,
		StageID:        id,
		ParamsHash:     hash,
		Outputs:        f.PathMap(),
		Status:         evidence.StatusSucceeded,
		DurationMillis: res.Duration.Milliseconds(),
	}
	if runErr != nil {
		run.Status = evidence.StatusFailed
		run.Error = runErr.Error()
	}
	if err := writer.WriteRun(run); err != nil {
		return err
	}
	return writer.WriteInvocation(evidence.InvocationRecord{
		Stage:          name,
		Command:        res.Command,
		Stdout:         res.Stdout,
		Stderr:         res.Stderr,
		ExitCode:       res.ExitCode,
		DurationMillis: res.Duration.Milliseconds(),
	})
}
