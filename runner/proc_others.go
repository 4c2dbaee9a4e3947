//go:build !windows

package runner

import (
	"os/exec"
	"syscall"

	"github.com/cockroachdb/errors"
)

// configureCommand puts the child in its own process group so the whole
// group can be signalled at once.
func configureCommand(cmd *exec.Cmd, _ string, _ []string) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

func killGroup(pid int) error {
	err := syscall.Kill(-pid, syscall.SIGKILL)
	if err != nil && !errors.Is(err, syscall.ESRCH) {
		return errors.Wrapf(err, "kill process group %d", pid)
	}
	return nil
}
