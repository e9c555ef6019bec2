package node

import "fmt"

// Role is how a declared field is handed to DVC.
type Role string

const (
	RoleParams  Role = "params"
	RoleOuts    Role = "outs"
	RoleMetrics Role = "metrics"
	RoleDeps    Role = "deps"
	RolePlots   Role = "plots"
)

// Field is one declared input or output of a stage.
//
// Managed fields have no Path: the stage returns a value for them and it is
// serialized to a file derived from the stage identity. Path fields point at
// a file the stage reads or writes itself.
type Field struct {
	Name string
	Role Role
	Path string
}

// Managed reports whether the field's file is written by stagetrack.
func (f Field) Managed() bool {
	return f.Path == ""
}

// Outs declares an output value serialized into the stage directory.
func Outs(name string) Field { return Field{Name: name, Role: RoleOuts} }

// Metrics declares a metrics mapping serialized into the metrics directory.
func Metrics(name string) Field { return Field{Name: name, Role: RoleMetrics} }

// Plots declares plot records serialized into the plots directory.
func Plots(name string) Field { return Field{Name: name, Role: RolePlots} }

// OutsPath declares a file or directory the stage produces.
func OutsPath(path string) Field { return Field{Name: path, Role: RoleOuts, Path: path} }

// MetricsPath declares a metrics file the stage writes.
func MetricsPath(path string) Field { return Field{Name: path, Role: RoleMetrics, Path: path} }

// ParamsPath declares a parameter file the stage reads.
func ParamsPath(path string) Field { return Field{Name: path, Role: RoleParams, Path: path} }

// DepsPath declares a file or directory the stage depends on.
func DepsPath(path string) Field { return Field{Name: path, Role: RoleDeps, Path: path} }

// PlotsPath declares a plots file the stage writes.
func PlotsPath(path string) Field { return Field{Name: path, Role: RolePlots, Path: path} }

func validateFields(fields []Field) error {
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if f.Name == "" {
			return fmt.Errorf("field name is required")
		}
		if _, ok := seen[f.Name]; ok {
			return fmt.Errorf("duplicate field name: %s", f.Name)
		}
		seen[f.Name] = struct{}{}

		switch f.Role {
		case RoleOuts, RoleMetrics, RolePlots:
		case RoleParams, RoleDeps:
			if f.Managed() {
				return fmt.Errorf("field %s: %s fields require a path", f.Name, f.Role)
			}
		default:
			return fmt.Errorf("field %s: unknown role %q", f.Name, f.Role)
		}
	}
	return nil
}
