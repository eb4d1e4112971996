// Package procgroup starts commands as process group leaders so a detached
// job and everything it spawns can be signalled together.
package procgroup

import (
	"fmt"
	"os/exec"
)

// Start sets up a new process group for cmd, starts it and returns the group id.
func Start(cmd *exec.Cmd) (int, error) {
	set(cmd)
	if err := cmd.Start(); err != nil {
		return 0, err
	}
	pgid, err := groupID(cmd.Process.Pid)
	if err != nil {
		return cmd.Process.Pid, nil
	}
	return pgid, nil
}

// KillHint is the shell command a user can run to stop the whole group.
func KillHint(pgid int) string {
	return fmt.Sprintf("kill -9 -%d", pgid)
}
