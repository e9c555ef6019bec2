package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DVC.Binary != "dvc" || cfg.DVC.File != "dvc.yaml" {
		t.Fatalf("unexpected dvc config: %+v", cfg.DVC)
	}
	if cfg.Slurm.N != 1 || cfg.Slurm.Binary != "srun" {
		t.Fatalf("unexpected slurm config: %+v", cfg.Slurm)
	}
	if len(cfg.Runner.Check) != 1 || cfg.Runner.Check[0] != "version" {
		t.Fatalf("unexpected check args: %v", cfg.Runner.Check)
	}
	if cfg.File != "" {
		t.Fatalf("expected no config file, got %s", cfg.File)
	}

	layout := cfg.Layout()
	if layout.ParamsPath() != filepath.Join("config", "params.json") {
		t.Fatalf("unexpected params path %s", layout.ParamsPath())
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeFile(t, DefaultFile, `
dvc:
  binary: /usr/local/bin/dvc
params:
  dir: settings
slurm:
  n: 8
stages:
  SumNumbers:
    multi_use: false
  RandomNumber:
    multi_use: true
`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.File != DefaultFile {
		t.Fatalf("expected %s to be read, got %q", DefaultFile, cfg.File)
	}
	if cfg.DVC.Binary != "/usr/local/bin/dvc" || cfg.DVC.File != "dvc.yaml" {
		t.Fatalf("unexpected dvc config: %+v", cfg.DVC)
	}
	if cfg.Params.Dir != "settings" || cfg.Params.File != "params.json" {
		t.Fatalf("unexpected params config: %+v", cfg.Params)
	}
	if cfg.Slurm.N != 8 {
		t.Fatalf("expected slurm.n 8, got %d", cfg.Slurm.N)
	}
	if cfg.MultiUse("SumNumbers", true) {
		t.Fatalf("expected SumNumbers override to disable multi-use")
	}
	if !cfg.MultiUse("RandomNumber", false) {
		t.Fatalf("expected RandomNumber override to enable multi-use")
	}
	if !cfg.MultiUse("Other", true) {
		t.Fatalf("expected fallback for unconfigured class")
	}
}

func TestLoadExplicitFileMissing(t *testing.T) {
	t.Chdir(t.TempDir())
	if _, err := Load(WithConfigFile("nope.yaml")); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	configPath := filepath.Join(dir, "custom.yaml")
	writeFile(t, configPath, "slurm:\n  n: 2\n")

	t.Setenv("STAGETRACK_SLURM_N", "16")
	t.Setenv("STAGETRACK_DVC_BINARY", "dvc-wrapper")

	cfg, err := Load(WithConfigFile(configPath))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Slurm.N != 16 {
		t.Fatalf("expected env to override slurm.n, got %d", cfg.Slurm.N)
	}
	if cfg.DVC.Binary != "dvc-wrapper" {
		t.Fatalf("expected env to override dvc.binary, got %s", cfg.DVC.Binary)
	}
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	envPath := filepath.Join(dir, "test.env")
	writeFile(t, envPath, "STAGETRACK_LOG_LEVEL=debug\n")
	t.Cleanup(func() { os.Unsetenv("STAGETRACK_LOG_LEVEL") })

	cfg, err := Load(WithEnvFile(envPath))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("expected log level from env file, got %s", cfg.Log.Level)
	}
}

func TestLoadInvalid(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeFile(t, DefaultFile, "slurm:\n  n: 0\nlog:\n  format: xml\n")

	_, err := Load()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
	for _, want := range []string{"slurm.n must be at least 1", "log.format must be one of"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %q", want, err.Error())
		}
	}
}
