package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/zen-systems/stagetrack/pkg/files"
)

// DefaultFile is the config file read from the working directory when no
// file is given.
const DefaultFile = "stagetrack.yaml"

// EnvPrefix prefixes environment overrides, e.g. STAGETRACK_SLURM_N.
const EnvPrefix = "STAGETRACK"

// ErrInvalidConfig is returned when the loaded configuration fails validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the application configuration.
type Config struct {
	DVC      DVCConfig              `mapstructure:"dvc"`
	Params   ParamsConfig           `mapstructure:"params"`
	Files    FilesConfig            `mapstructure:"files"`
	Slurm    SlurmConfig            `mapstructure:"slurm"`
	Runner   RunnerConfig           `mapstructure:"runner"`
	Evidence EvidenceConfig         `mapstructure:"evidence"`
	Log      LogConfig              `mapstructure:"log"`
	Stages   map[string]StageConfig `mapstructure:"stages"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-"`
}

// DVCConfig configures the pipeline manager.
type DVCConfig struct {
	Binary string `mapstructure:"binary" validate:"required"`
	File   string `mapstructure:"file" validate:"required"`
}

// ParamsConfig locates the parameter store.
type ParamsConfig struct {
	File string `mapstructure:"file" validate:"required"`
	Dir  string `mapstructure:"dir"`
}

// FilesConfig names the directories of managed fields.
type FilesConfig struct {
	OutsDir    string `mapstructure:"outs_dir" validate:"required"`
	MetricsDir string `mapstructure:"metrics_dir" validate:"required"`
	PlotsDir   string `mapstructure:"plots_dir" validate:"required"`
}

// SlurmConfig configures the srun prefix.
type SlurmConfig struct {
	Binary string `mapstructure:"binary" validate:"required"`
	N      int    `mapstructure:"n" validate:"gte=1"`
}

// RunnerConfig configures the job executable check.
type RunnerConfig struct {
	Candidates []string `mapstructure:"candidates"`
	Check      []string `mapstructure:"check"`
}

// EvidenceConfig configures run records. An empty dir disables them.
type EvidenceConfig struct {
	Dir string `mapstructure:"dir"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=trace debug info warn error fatal panic disabled"`
	Format string `mapstructure:"format" validate:"oneof=console json"`
}

// StageConfig overrides settings of one stage class.
type StageConfig struct {
	MultiUse *bool `mapstructure:"multi_use"`
}

type loaderConfig struct {
	configFile string
	envFile    string
}

// Option configures Load.
type Option func(*loaderConfig)

// WithConfigFile sets an explicit config file. It must exist.
func WithConfigFile(path string) Option {
	return func(lc *loaderConfig) { lc.configFile = path }
}

// WithEnvFile sets the .env file loaded before reading the environment.
func WithEnvFile(path string) Option {
	return func(lc *loaderConfig) { lc.envFile = path }
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	layout := files.DefaultLayout()
	return &Config{
		DVC:      DVCConfig{Binary: "dvc", File: layout.DVCFile},
		Params:   ParamsConfig{File: layout.ParamsFile, Dir: layout.ParamsDir},
		Files:    FilesConfig{OutsDir: layout.OutsDir, MetricsDir: layout.MetricsDir, PlotsDir: layout.PlotsDir},
		Slurm:    SlurmConfig{Binary: "srun", N: 1},
		Runner:   RunnerConfig{Check: []string{"version"}},
		Evidence: EvidenceConfig{Dir: ".stagetrack/runs"},
		Log:      LogConfig{Level: "info", Format: "console"},
	}
}

// Load reads the config file, then the .env file and environment overrides,
// on top of the defaults.
func Load(opts ...Option) (*Config, error) {
	lc := loaderConfig{envFile: ".env"}
	for _, opt := range opts {
		opt(&lc)
	}

	v := viper.New()
	setDefaults(v, Default())

	file := lc.configFile
	if file == "" && exists(DefaultFile) {
		file = DefaultFile
	}
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}

	if lc.envFile != "" && exists(lc.envFile) {
		if err := godotenv.Load(lc.envFile); err != nil {
			return nil, fmt.Errorf("failed to load env file %s: %w", lc.envFile, err)
		}
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.File = file

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("dvc.binary", cfg.DVC.Binary)
	v.SetDefault("dvc.file", cfg.DVC.File)
	v.SetDefault("params.file", cfg.Params.File)
	v.SetDefault("params.dir", cfg.Params.Dir)
	v.SetDefault("files.outs_dir", cfg.Files.OutsDir)
	v.SetDefault("files.metrics_dir", cfg.Files.MetricsDir)
	v.SetDefault("files.plots_dir", cfg.Files.PlotsDir)
	v.SetDefault("slurm.binary", cfg.Slurm.Binary)
	v.SetDefault("slurm.n", cfg.Slurm.N)
	v.SetDefault("runner.candidates", cfg.Runner.Candidates)
	v.SetDefault("runner.check", cfg.Runner.Check)
	v.SetDefault("evidence.dir", cfg.Evidence.Dir)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
}

// Layout returns the file layout described by the configuration.
func (c *Config) Layout() files.Layout {
	return files.Layout{
		ParamsFile: c.Params.File,
		ParamsDir:  c.Params.Dir,
		DVCFile:    c.DVC.File,
		OutsDir:    c.Files.OutsDir,
		MetricsDir: c.Files.MetricsDir,
		PlotsDir:   c.Files.PlotsDir,
	}
}

// MultiUse returns the configured multi-use flag of class, or fallback.
// Class names are matched case-insensitively since config keys are not
// case-preserving.
func (c *Config) MultiUse(class string, fallback bool) bool {
	for name, stage := range c.Stages {
		if strings.EqualFold(name, class) && stage.MultiUse != nil {
			return *stage.MultiUse
		}
	}
	return fallback
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
