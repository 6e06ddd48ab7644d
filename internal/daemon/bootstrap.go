package daemon

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/eliteGoblin/shield/internal/domain"
	"github.com/eliteGoblin/shield/internal/infra"
)

// ServeCommand is the hidden-from-help subcommand that runs the host.
const ServeCommand = "serve"

// ServeArgs builds the argv that starts a host replacing replacePID.
func ServeArgs(replacePID int, extra ...string) []string {
	args := []string{ServeCommand}
	if replacePID > 0 {
		args = append(args, "--replace-pid", strconv.Itoa(replacePID))
	}
	return append(args, extra...)
}

// StartDetached spawns exe as a new host detached from the caller.
// The new host waits for the current process to exit before binding.
func StartDetached(exe string, extra ...string) (int, error) {
	if exe == "" {
		self, err := os.Executable()
		if err != nil {
			return 0, err
		}
		exe = self
	}
	pid, err := infra.StartDetached(exe, ServeArgs(os.Getpid(), extra...)...)
	if err != nil {
		return 0, fmt.Errorf("start %s: %w", exe, err)
	}
	return pid, nil
}

// Restarter returns the function the bridge calls after installing an
// update: it starts the new binary, which takes over once we exit.
func Restarter(extra ...string) func(exe string) error {
	return func(exe string) error {
		_, err := StartDetached(exe, extra...)
		return err
	}
}

// Relauncher returns the function the bridge calls to restart itself with
// administrator rights.
func Relauncher(runner domain.CommandRunner, extra ...string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		exe, err := os.Executable()
		if err != nil {
			return err
		}
		if err := infra.RelaunchElevated(ctx, runner, exe, ServeArgs(os.Getpid(), extra...)); err != nil {
			return &domain.InvocationError{Script: exe, Err: err}
		}
		return nil
	}
}
