//go:build unix

package procgroup

import (
	"os/exec"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartMakesGroupLeaderAndKillReapsChildren(t *testing.T) {
	cmd := exec.Command("sh", "-c", "sleep 10 & sleep 10")
	pgid, err := Start(cmd)
	require.NoError(t, err)
	assert.Equal(t, cmd.Process.Pid, pgid, "process should lead its group")
	assert.True(t, groupAlive(pgid))

	require.NoError(t, Kill(pgid))

	err = cmd.Wait()
	require.Error(t, err)
	var exitErr *exec.ExitError
	if assert.ErrorAs(t, err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			assert.Equal(t, syscall.SIGKILL, status.Signal())
		}
	}

	require.Eventually(t, func() bool { return !groupAlive(pgid) }, time.Second, 10*time.Millisecond)
}

func TestKillGoneGroup(t *testing.T) {
	assert.NoError(t, Kill(0))
	assert.NoError(t, Kill(999999))
}

func TestKillHint(t *testing.T) {
	assert.Equal(t, "kill -9 -4242", KillHint(4242))
}

func groupAlive(pgid int) bool {
	return syscall.Kill(-pgid, syscall.Signal(0)) == nil
}
