//go:build windows

package infra

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/sys/windows"

	"github.com/eliteGoblin/shield/internal/domain"
)

// RelaunchElevated starts exe through the UAC prompt and returns once the
// prompt was accepted. It does not wait for the new process.
func RelaunchElevated(ctx context.Context, _ domain.CommandRunner, exe string, args []string) error {
	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = quoteWinArg(a)
	}

	verb, err := windows.UTF16PtrFromString("runas")
	if err != nil {
		return err
	}
	file, err := windows.UTF16PtrFromString(exe)
	if err != nil {
		return err
	}
	params, err := windows.UTF16PtrFromString(strings.Join(quoted, " "))
	if err != nil {
		return err
	}
	cwd, err := windows.UTF16PtrFromString(filepath.Dir(exe))
	if err != nil {
		return err
	}

	// ERROR_CANCELLED when the user declines the prompt.
	if err := windows.ShellExecute(0, verb, file, params, cwd, windows.SW_HIDE); err != nil {
		return fmt.Errorf("elevated relaunch of %s: %w", exe, err)
	}
	return nil
}
