package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/zen-systems/stagetrack/pkg/node"
	"github.com/zen-systems/stagetrack/pkg/params"
	"github.com/zen-systems/stagetrack/pkg/process"
)

type recordingRunner struct {
	commands []process.Command
}

func (r *recordingRunner) Run(_ context.Context, cmd process.Command) (*process.Result, error) {
	r.commands = append(r.commands, cmd)
	return &process.Result{Command: cmd.Argv()}, nil
}

type scaleParams struct {
	Factor int      `json:"factor" validate:"gte=1"`
	Label  string   `json:"label"`
	Tags   []string `json:"tags"`
}

func testRegistry() *node.Registry {
	reg := node.NewRegistry()
	reg.MustRegister(&node.Definition[scaleParams]{
		Class:    "Scale",
		MultiUse: true,
		Defaults: scaleParams{Factor: 1, Label: "base", Tags: []string{}},
		Fields:   []node.Field{node.Outs("value"), node.Metrics("summary")},
		Run: func(_ context.Context, p scaleParams, env *node.Env) (*node.Results, error) {
			return &node.Results{
				Outs:    map[string]any{"value": p.Factor * 10},
				Metrics: map[string]any{"summary": map[string]any{"label": p.Label}},
			}, nil
		},
	})
	return reg
}

func run(t *testing.T, runner process.Runner, args ...string) (string, error) {
	t.Helper()
	var out, logs bytes.Buffer
	root := NewRootCommand(testRegistry(), WithRunner(runner), WithLogOutput(&logs))
	root.SetOut(&out)
	root.SetErr(&logs)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, runner process.Runner, args ...string) string {
	t.Helper()
	out, err := run(t, runner, args...)
	if err != nil {
		t.Fatalf("%s: %v", strings.Join(args, " "), err)
	}
	return out
}

func TestAddAndExec(t *testing.T) {
	t.Chdir(t.TempDir())
	runner := &recordingRunner{}

	adds := []struct {
		args []string
		want string
	}{
		{[]string{"add", "Scale", "--set", "factor=3", "--set", "tags=[a, b]"}, "Scale_0\t0\n"},
		{[]string{"add", "Scale", "--params-json", `{"factor": 4}`, "--set", "label=other"}, "Scale_1\t1\n"},
		{[]string{"add", "Scale", "--set", "factor=3", "--set", "tags=[a, b]"}, "Scale_0\t0\n"},
	}
	for _, step := range adds {
		if out := mustRun(t, runner, step.args...); out != step.want {
			t.Fatalf("%v: expected %q, got %q", step.args, step.want, out)
		}
	}

	var dvcCalls []process.Command
	for _, c := range runner.commands {
		if c.Name == "dvc" {
			dvcCalls = append(dvcCalls, c)
		}
	}
	if len(dvcCalls) != 3 {
		t.Fatalf("expected 3 dvc calls, got %d", len(dvcCalls))
	}
	args := dvcCalls[1].Args
	if !reflect.DeepEqual(args[:3], []string{"run", "-n", "Scale_1"}) {
		t.Fatalf("unexpected dvc args %q", args)
	}
	ref := filepath.Join("config", "params.json") + ":Scale.1"
	found := false
	for _, arg := range args {
		if arg == ref {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected %s in %q", ref, args)
	}
	if !strings.HasSuffix(args[len(args)-1], "exec Scale --id 1") {
		t.Fatalf("unexpected job command %q", args[len(args)-1])
	}

	mustRun(t, runner, "exec", "Scale", "--id", "1")
	data, err := os.ReadFile(filepath.Join("outs", "Scale_1_value.json"))
	if err != nil {
		t.Fatalf("read outs: %v", err)
	}
	if string(data) != "40\n" {
		t.Fatalf("expected 40, got %q", data)
	}
}

func TestAddRejectsInvalidParams(t *testing.T) {
	t.Chdir(t.TempDir())

	if _, err := run(t, &recordingRunner{}, "add", "Scale", "--set", "factor=0"); !errors.Is(err, params.ErrInvalidParams) {
		t.Fatalf("expected ErrInvalidParams, got %v", err)
	}
	if _, err := run(t, &recordingRunner{}, "add", "Scale", "--set", "nofactor"); err == nil {
		t.Fatalf("expected error for --set without value")
	}
	if _, err := run(t, &recordingRunner{}, "add", "Missing"); !errors.Is(err, node.ErrUnknownClass) {
		t.Fatalf("expected ErrUnknownClass, got %v", err)
	}
}

func TestExecUnknownID(t *testing.T) {
	t.Chdir(t.TempDir())

	if _, err := run(t, &recordingRunner{}, "exec", "Scale", "--id", "7"); !errors.Is(err, params.ErrStageNotFound) {
		t.Fatalf("expected ErrStageNotFound, got %v", err)
	}
}

func TestParamsShowAndFind(t *testing.T) {
	t.Chdir(t.TempDir())
	runner := &recordingRunner{}

	mustRun(t, runner, "add", "Scale", "--set", "factor=2")
	mustRun(t, runner, "add", "Scale", "--set", "factor=5", "--set", "label=big")

	out := mustRun(t, runner, "params", "show", "Scale", "--id", "1")
	var p map[string]any
	if err := json.Unmarshal([]byte(out), &p); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if p["factor"] != 5.0 {
		t.Fatalf("expected factor 5, got %v", p["factor"])
	}

	if out := mustRun(t, runner, "params", "show"); !strings.Contains(out, `"Scale"`) {
		t.Fatalf("expected Scale in %q", out)
	}
	if out := mustRun(t, runner, "params", "find", "Scale", "--set", "label=big"); out != "1\n" {
		t.Fatalf("expected id 1, got %q", out)
	}
	if out := mustRun(t, runner, "params", "find", "Scale"); out != "0\n1\n" {
		t.Fatalf("expected ids 0 and 1, got %q", out)
	}
}

func TestPathsAndStages(t *testing.T) {
	t.Chdir(t.TempDir())

	out := mustRun(t, &recordingRunner{}, "paths", "Scale", "--id", "2")
	for _, want := range []string{filepath.Join("outs", "Scale_2_value.json"), filepath.Join("metrics", "Scale_2_summary.json")} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in %q", want, out)
		}
	}

	out = mustRun(t, &recordingRunner{}, "stages")
	for _, want := range []string{"Scale", "outs:value"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in %q", want, out)
		}
	}
}

func TestDeps(t *testing.T) {
	t.Chdir(t.TempDir())
	manifest := "stages:\n  Scale_0:\n    cmd: stagetrack exec Scale --id 0\n    deps:\n      - data/a.csv\n      - data/b.csv\n"
	if err := os.WriteFile("dvc.yaml", []byte(manifest), 0644); err != nil {
		t.Fatalf("write dvc.yaml: %v", err)
	}

	if out := mustRun(t, &recordingRunner{}, "deps", "Scale", "--id", "0"); out != "data/a.csv\ndata/b.csv\n" {
		t.Fatalf("unexpected deps %q", out)
	}
	if _, err := run(t, &recordingRunner{}, "deps", "Scale", "--id", "9"); err == nil {
		t.Fatalf("expected error for unknown stage")
	}
}

func TestVersion(t *testing.T) {
	t.Chdir(t.TempDir())
	if err := os.WriteFile("stagetrack.yaml", []byte("slurm:\n  n: 0\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if out := mustRun(t, &recordingRunner{}, "version"); out != Version+"\n" {
		t.Fatalf("expected %q, got %q", Version+"\n", out)
	}
}

func TestParseSets(t *testing.T) {
	p, err := parseSets([]string{"n=5", "ok=true", "xs=[1, 2]", "name=abc", "empty="})
	if err != nil {
		t.Fatalf("parse sets: %v", err)
	}
	want := params.Params{"n": 5, "ok": true, "xs": []any{1, 2}, "name": "abc", "empty": ""}
	if !reflect.DeepEqual(p, want) {
		t.Fatalf("expected %v, got %v", want, p)
	}

	if _, err := parseSets([]string{"=1"}); err == nil {
		t.Fatalf("expected error for empty key")
	}
}
