// Package files derives the on-disk paths of a stage and the DVC arguments
// that declare them.
package files

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/zen-systems/stagetrack/pkg/node"
)

// Layout names the files and directories shared by all stages.
type Layout struct {
	ParamsFile string
	ParamsDir  string
	DVCFile    string
	OutsDir    string
	MetricsDir string
	PlotsDir   string
}

// DefaultLayout returns the layout used when nothing is configured.
func DefaultLayout() Layout {
	return Layout{
		ParamsFile: "params.json",
		ParamsDir:  "config",
		DVCFile:    "dvc.yaml",
		OutsDir:    "outs",
		MetricsDir: "metrics",
		PlotsDir:   "plots",
	}
}

// ParamsPath returns the parameter store file.
func (l Layout) ParamsPath() string {
	return filepath.Join(l.ParamsDir, l.ParamsFile)
}

func (l Layout) dirFor(role node.Role) string {
	switch role {
	case node.RoleMetrics:
		return l.MetricsDir
	case node.RolePlots:
		return l.PlotsDir
	default:
		return l.OutsDir
	}
}

// Files resolves the paths of one stage identity.
type Files struct {
	Class  string
	ID     string
	layout Layout
	fields []node.Field
}

// New returns the files of stage (class, id) with the given fields.
func New(layout Layout, class, id string, fields []node.Field) *Files {
	return &Files{
		Class:  class,
		ID:     id,
		layout: layout,
		fields: append([]node.Field(nil), fields...),
	}
}

// Path returns the file of a field. Managed fields live in their role's
// directory as <class>_<id>_<name>.json.
func (f *Files) Path(field node.Field) string {
	if !field.Managed() {
		return field.Path
	}
	name := fmt.Sprintf("%s_%s_%s.json", f.Class, f.ID, field.Name)
	return filepath.Join(f.layout.dirFor(field.Role), name)
}

// PathMap returns the file of every field keyed by field name.
func (f *Files) PathMap() map[string]string {
	out := make(map[string]string, len(f.fields))
	for _, field := range f.fields {
		out[field.Name] = f.Path(field)
	}
	return out
}

// Paths returns the sorted set of all field paths.
func (f *Files) Paths() []string {
	seen := make(map[string]struct{}, len(f.fields))
	paths := make([]string, 0, len(f.fields))
	for _, field := range f.fields {
		p := f.Path(field)
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Managed returns the fields whose files stagetrack writes.
func (f *Files) Managed() []node.Field {
	var out []node.Field
	for _, field := range f.fields {
		if field.Managed() {
			out = append(out, field)
		}
	}
	return out
}

// Arguments returns the DVC flags declaring every field, in declaration order.
func (f *Files) Arguments() []string {
	args := make([]string, 0, 2*len(f.fields))
	for _, field := range f.fields {
		p := f.Path(field)
		switch field.Role {
		case node.RoleOuts:
			args = append(args, "--outs", p)
		case node.RoleMetrics:
			args = append(args, "--metrics", p)
		case node.RoleDeps:
			args = append(args, "--deps", p)
		case node.RolePlots:
			args = append(args, "--plots", p)
		case node.RoleParams:
			args = append(args, "--params", p+":")
		}
	}
	return args
}

// ParamsRef returns the --params reference into the parameter store.
func (f *Files) ParamsRef() string {
	return fmt.Sprintf("%s:%s.%s", f.layout.ParamsPath(), f.Class, f.ID)
}

// MakeDirs creates the directories managed fields are written into.
func (f *Files) MakeDirs() error {
	for _, field := range f.Managed() {
		dir := filepath.Dir(f.Path(field))
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}
