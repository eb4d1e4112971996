//go:build !unix

package procgroup

import (
	"os"
	"os/exec"
)

// Without process groups only the root process is tracked.
func set(cmd *exec.Cmd) {}

func groupID(pid int) (int, error) {
	return pid, nil
}

// Kill terminates the root process only.
func Kill(pgid int) error {
	if pgid <= 0 {
		return nil
	}
	proc, err := os.FindProcess(pgid)
	if err != nil {
		return nil
	}
	return proc.Kill()
}
