//go:build !windows

package infra

import (
	"os"
	"os/exec"
	"syscall"
)

// StartDetached starts path with args in a new session, detached from the
// caller's terminal, and returns its PID without waiting.
func StartDetached(path string, args ...string) (int, error) {
	cmd := exec.Command(path, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true, // Create new session (detach from terminal)
	}
	cmd.Dir = "/"
	cmd.Env = os.Environ()

	// No stdin/stdout/stderr - fully detached
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return 0, err
	}
	pid := cmd.Process.Pid
	_ = cmd.Process.Release()
	return pid, nil
}
