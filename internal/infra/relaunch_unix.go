//go:build !windows

package infra

import (
	"context"
	"fmt"

	"github.com/eliteGoblin/shield/internal/domain"
)

// RelaunchElevated starts exe as root through sudo without waiting for it.
// A detached process cannot answer a password prompt, so cached sudo
// credentials are checked first.
func RelaunchElevated(ctx context.Context, runner domain.CommandRunner, exe string, args []string) error {
	if err := runner.Run(ctx, "sudo", "-n", "true"); err != nil {
		return fmt.Errorf("elevated relaunch needs cached sudo credentials: %w", err)
	}

	argv := append([]string{"-n", "--", exe}, args...)
	if _, err := StartDetached("sudo", argv...); err != nil {
		return fmt.Errorf("elevated relaunch of %s: %w", exe, err)
	}
	return nil
}
