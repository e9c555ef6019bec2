package stage

import (
	"github.com/kballard/go-shellquote"
)

// Job is the command DVC runs to execute a stage.
type Job struct {
	Executable string
	Class      string
	ID         string
	ConfigFile string
}

// Argv returns the job as an argument vector.
func (j Job) Argv() []string {
	argv := []string{j.Executable, "exec", j.Class, "--id", j.ID}
	if j.ConfigFile != "" {
		argv = append(argv, "--config", j.ConfigFile)
	}
	return argv
}

// String renders the job as a single shell command, which is what dvc run
// expects as its last argument.
func (j Job) String() string {
	return shellquote.Join(j.Argv()...)
}
