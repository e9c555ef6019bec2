package files

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/zen-systems/stagetrack/pkg/node"
)

func testFields() []node.Field {
	return []node.Field{
		node.Outs("model"),
		node.Metrics("scores"),
		node.Plots("loss"),
		node.DepsPath("data/raw.csv"),
		node.OutsPath("artifacts/report.html"),
		node.ParamsPath("settings.yaml"),
	}
}

func TestPaths(t *testing.T) {
	f := New(DefaultLayout(), "Train", "3", testFields())

	want := []string{
		"artifacts/report.html",
		"data/raw.csv",
		filepath.Join("metrics", "Train_3_scores.json"),
		filepath.Join("outs", "Train_3_model.json"),
		filepath.Join("plots", "Train_3_loss.json"),
		"settings.yaml",
	}
	if got := f.Paths(); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected paths:\n got %q\nwant %q", got, want)
	}
}

func TestPathsAreDeterministic(t *testing.T) {
	a := New(DefaultLayout(), "Train", "3", testFields())
	b := New(DefaultLayout(), "Train", "3", testFields())
	c := New(DefaultLayout(), "Train", "4", testFields())

	if !reflect.DeepEqual(a.Paths(), b.Paths()) {
		t.Fatalf("same identity gave different paths: %q and %q", a.Paths(), b.Paths())
	}
	if reflect.DeepEqual(a.Paths(), c.Paths()) {
		t.Fatalf("different ids gave the same paths %q", a.Paths())
	}
}

func TestArguments(t *testing.T) {
	f := New(DefaultLayout(), "Train", "0", testFields())

	want := []string{
		"--outs", filepath.Join("outs", "Train_0_model.json"),
		"--metrics", filepath.Join("metrics", "Train_0_scores.json"),
		"--plots", filepath.Join("plots", "Train_0_loss.json"),
		"--deps", "data/raw.csv",
		"--outs", "artifacts/report.html",
		"--params", "settings.yaml:",
	}
	if got := f.Arguments(); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected arguments:\n got %q\nwant %q", got, want)
	}
}

func TestParamsRef(t *testing.T) {
	layout := DefaultLayout()
	f := New(layout, "Train", "7", nil)
	if want := filepath.Join("config", "params.json") + ":Train.7"; f.ParamsRef() != want {
		t.Fatalf("expected %s, got %s", want, f.ParamsRef())
	}

	layout.ParamsDir = "settings"
	layout.ParamsFile = "store.json"
	f = New(layout, "Train", "7", nil)
	if want := filepath.Join("settings", "store.json") + ":Train.7"; f.ParamsRef() != want {
		t.Fatalf("expected %s, got %s", want, f.ParamsRef())
	}
}

func TestPathMap(t *testing.T) {
	f := New(DefaultLayout(), "Sum", "1", []node.Field{node.Outs("total"), node.DepsPath("in.txt")})
	want := map[string]string{
		"total":  filepath.Join("outs", "Sum_1_total.json"),
		"in.txt": "in.txt",
	}
	if got := f.PathMap(); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestMakeDirs(t *testing.T) {
	root := t.TempDir()
	layout := DefaultLayout()
	layout.OutsDir = filepath.Join(root, "o")
	layout.MetricsDir = filepath.Join(root, "m")
	layout.PlotsDir = filepath.Join(root, "p")

	f := New(layout, "Train", "0", testFields())
	if err := f.MakeDirs(); err != nil {
		t.Fatalf("make dirs: %v", err)
	}

	for _, dir := range []string{layout.OutsDir, layout.MetricsDir, layout.PlotsDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("stat %s: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %s to be a directory", dir)
		}
	}
}
