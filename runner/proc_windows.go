//go:build windows

package runner

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/windows"
)

// configureCommand hands compact.exe the raw command line, since it parses
// /S:"dir" itself and Go's argument escaping would mangle the quotes. The
// child gets its own process group and no console window.
func configureCommand(cmd *exec.Cmd, tool string, args []string) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.CmdLine = CommandLine(tool, args)
	cmd.SysProcAttr.CreationFlags |= windows.CREATE_NEW_PROCESS_GROUP | windows.CREATE_NO_WINDOW
	cmd.SysProcAttr.HideWindow = true
}

// Windows has no process-group kill; descendants are walked instead.
func killGroup(int) error {
	return nil
}
