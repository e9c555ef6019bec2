// Package cli is the stagetrack command line.
package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/zen-systems/stagetrack/pkg/config"
	"github.com/zen-systems/stagetrack/pkg/logging"
	"github.com/zen-systems/stagetrack/pkg/node"
	"github.com/zen-systems/stagetrack/pkg/params"
	"github.com/zen-systems/stagetrack/pkg/process"
	"github.com/zen-systems/stagetrack/pkg/stage"
)

// Version is set at build time.
var Version = "dev"

type app struct {
	registry *node.Registry
	runner   process.Runner
	logOut   io.Writer

	configFile string
	logLevel   string

	cfg    *config.Config
	logger zerolog.Logger
}

// Option configures the command tree.
type Option func(*app)

// WithRunner sets the runner used for dvc and the executable check.
func WithRunner(r process.Runner) Option {
	return func(a *app) { a.runner = r }
}

// WithLogOutput sets where logs are written. Defaults to stderr.
func WithLogOutput(w io.Writer) Option {
	return func(a *app) { a.logOut = w }
}

// NewRootCommand returns the stagetrack command tree for the stage types in reg.
func NewRootCommand(reg *node.Registry, opts ...Option) *cobra.Command {
	a := &app{
		registry: reg,
		runner:   process.ExecRunner{},
		logOut:   os.Stderr,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}

	rootCmd := &cobra.Command{
		Use:   "stagetrack",
		Short: "Declarative DVC stages with stored parameters",
		Long: `Stagetrack stores stage parameters in a JSON parameter file, resolves
	a stable id per parameter set and registers the stage with dvc run.
	DVC calls back into stagetrack exec to run the stage.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.loadConfig()
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.configFile, "config", "", "path to config file (default stagetrack.yaml)")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")

	rootCmd.AddCommand(a.addCmd())
	rootCmd.AddCommand(a.execCmd())
	rootCmd.AddCommand(a.paramsCmd())
	rootCmd.AddCommand(a.pathsCmd())
	rootCmd.AddCommand(a.stagesCmd())
	rootCmd.AddCommand(a.depsCmd())
	rootCmd.AddCommand(a.verifyCmd())
	rootCmd.AddCommand(versionCmd())

	return rootCmd
}

// Execute runs the command tree and returns the process exit code.
func Execute(reg *node.Registry) int {
	if err := NewRootCommand(reg).Execute(); err != nil {
		return 1
	}
	return 0
}

func (a *app) loadConfig() error {
	cfg, err := config.Load(config.WithConfigFile(a.configFile))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	a.cfg = cfg
	a.logger = logging.New(cfg.Log, a.logOut)
	return nil
}

func (a *app) newWriter() *stage.Writer {
	cfg := a.cfg
	return stage.NewWriter(cfg.Layout(),
		stage.WithRunner(a.runner),
		stage.WithLogger(a.logger),
		stage.WithDVCBinary(cfg.DVC.Binary),
		stage.WithSlurm(stage.SlurmConfig{Binary: cfg.Slurm.Binary, N: cfg.Slurm.N}),
		stage.WithCandidates(cfg.Runner.Candidates, cfg.Runner.Check...),
		stage.WithConfigFile(a.configFile),
		stage.WithMultiUse(cfg.MultiUse),
		stage.WithEvidenceDir(cfg.Evidence.Dir),
	)
}

func (a *app) newExecutor() *stage.Executor {
	return stage.NewExecutor(a.cfg.Layout(),
		stage.WithExecutorLogger(a.logger),
		stage.WithExecutorEvidenceDir(a.cfg.Evidence.Dir),
	)
}

func (a *app) store() *params.Store {
	return params.NewStore(a.cfg.Layout().ParamsPath(), params.WithLogger(a.logger))
}

// parseSets turns k=v pairs into a parameter set. Values are YAML, so 5 is a
// number, true a bool and [1, 2] a list.
func parseSets(sets []string) (params.Params, error) {
	out := params.Params{}
	for _, set := range sets {
		key, raw, ok := strings.Cut(set, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --set %q, expected key=value", set)
		}
		var value any
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
			return nil, fmt.Errorf("invalid value for %s: %w", key, err)
		}
		if value == nil && strings.TrimSpace(raw) == "" {
			value = ""
		}
		out[key] = value
	}
	return out, nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the stagetrack version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), Version)
		},
	}
}
