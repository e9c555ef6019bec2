package stage

import (
	"strconv"

	"github.com/kballard/go-shellquote"
)

// SlurmConfig configures the srun prefix.
type SlurmConfig struct {
	Binary string
	N      int
}

// RunSpec is everything that goes into one dvc run call.
type RunSpec struct {
	Name          string
	FileArgs      []string
	ParamsRef     string
	Force         bool
	NoExec        bool
	AlwaysChanged bool
	// Slurm is nil unless the job runs through srun.
	Slurm *SlurmConfig
	Job   Job
}

// BuildRunArgs returns the dvc arguments for spec, without the dvc binary.
// The command dvc stores is always the last argument and a single word.
func BuildRunArgs(spec RunSpec) []string {
	args := []string{"run", "-n", spec.Name}
	args = append(args, spec.FileArgs...)
	args = append(args, "--params", spec.ParamsRef)
	if spec.Force {
		args = append(args, "--force")
	}
	if spec.NoExec {
		args = append(args, "--no-exec")
	}
	if spec.AlwaysChanged {
		args = append(args, "--always-changed")
	}
	if spec.Slurm != nil {
		binary := spec.Slurm.Binary
		if binary == "" {
			binary = "srun"
		}
		n := spec.Slurm.N
		if n < 1 {
			n = 1
		}
		// dvc quotes every command word that holds a space, so srun and the
		// job travel as one word.
		prefix := []string{binary, "-n", strconv.Itoa(n)}
		return append(args, shellquote.Join(append(prefix, spec.Job.Argv()...)...))
	}
	return append(args, spec.Job.String())
}
