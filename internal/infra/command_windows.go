//go:build windows

package infra

import (
	"os/exec"
	"syscall"
)

// hideWindow keeps console windows from flashing for every script run.
func hideWindow(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{HideWindow: true}
}
