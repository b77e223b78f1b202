package process

import (
	"os"
	"os/exec"
)

// Spec describes one program launch.
type Spec struct {
	Program string
	Args    []string
	WorkDir string
	// Output receives both stdout and stderr. It must be a real file so the
	// child writes to it directly and keeps doing so after we exit.
	Output *os.File
}

// Spawner starts programs and returns their pid.
type Spawner interface {
	Spawn(spec Spec) (int, error)
}

// ExecSpawner starts programs with os/exec, detached from the caller.
type ExecSpawner struct{}

// Spawn starts spec.Program and releases it; the caller never waits on it.
func (ExecSpawner) Spawn(spec Spec) (int, error) {
	// #nosec G204 -- running the operator's program is the point
	cmd := exec.Command(spec.Program, spec.Args...)
	cmd.Dir = spec.WorkDir
	if spec.Output != nil {
		cmd.Stdout = spec.Output
		cmd.Stderr = spec.Output
	}
	configureSysProcAttr(cmd)
	if err := cmd.Start(); err != nil {
		return 0, err
	}
	pid := cmd.Process.Pid
	_ = cmd.Process.Release()
	return pid, nil
}
