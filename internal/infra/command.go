package infra

import (
	"bytes"
	"context"
	"errors"
	"os/exec"

	"github.com/eliteGoblin/shield/internal/domain"
)

// ExecRunner implements domain.CommandRunner with os/exec.
// Arguments go straight to argv; nothing is interpreted by a shell.
type ExecRunner struct{}

// NewCommandRunner creates a new command runner.
func NewCommandRunner() domain.CommandRunner {
	return &ExecRunner{}
}

// Output runs the command and returns stdout.
func (r *ExecRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = nil
	hideWindow(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, toInvocationError(name, err, stderr.String())
	}
	return stdout.Bytes(), nil
}

// Run runs the command and waits for it to exit.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = nil
	hideWindow(cmd)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return toInvocationError(name, err, stderr.String())
	}
	return nil
}

func toInvocationError(name string, err error, stderr string) error {
	invErr := &domain.InvocationError{Script: name, Stderr: stderr, Err: err}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		invErr.ExitCode = exitErr.ExitCode()
	}
	return invErr
}

var _ domain.CommandRunner = (*ExecRunner)(nil)
