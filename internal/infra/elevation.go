package infra

import (
	"context"
	"errors"
	"runtime"
	"strings"

	"github.com/eliteGoblin/shield/internal/domain"
)

// ElevationShim runs a script in a separate elevated process and waits for it.
// It never changes the privilege of the calling process, and the elevated
// process's stdout is never observed.
type ElevationShim struct {
	runner domain.CommandRunner
	interp Interpreter
	goos   string
}

// NewElevationShim creates a shim for the current platform.
func NewElevationShim(runner domain.CommandRunner, interp Interpreter) *ElevationShim {
	return &ElevationShim{runner: runner, interp: interp, goos: runtime.GOOS}
}

// NewElevationShimForOS creates a shim that builds commands for goos (for testing).
func NewElevationShimForOS(runner domain.CommandRunner, interp Interpreter, goos string) *ElevationShim {
	return &ElevationShim{runner: runner, interp: interp, goos: goos}
}

// RunElevated runs scriptPath with args elevated.
// A denied prompt, a missing mechanism and a non-zero exit all return *domain.InvocationError.
func (s *ElevationShim) RunElevated(ctx context.Context, scriptPath string, args []string) error {
	name, argv := s.Command(scriptPath, args)

	err := s.runner.Run(ctx, name, argv...)
	if err == nil {
		return nil
	}

	invErr := &domain.InvocationError{Script: scriptPath, Err: err}
	var runErr *domain.InvocationError
	if errors.As(err, &runErr) {
		invErr.ExitCode = runErr.ExitCode
		invErr.Stderr = runErr.Stderr
		invErr.Err = runErr.Err
	}
	return invErr
}

// Command returns the argv that launches the elevated run.
func (s *ElevationShim) Command(scriptPath string, args []string) (string, []string) {
	interpPath, interpArgs := s.interp.Command(scriptPath, args)

	if s.goos == "windows" {
		return "powershell", []string{"-NoProfile", "-NonInteractive", "-Command", runAsScript(interpPath, interpArgs)}
	}
	return "sudo", append([]string{"--", interpPath}, interpArgs...)
}

// runAsScript builds a PowerShell command that starts interp through the UAC
// prompt, waits, and propagates its exit code. A declined prompt makes
// Start-Process throw, which exits non-zero.
func runAsScript(interp string, args []string) string {
	var b strings.Builder
	b.WriteString("$p = Start-Process -FilePath ")
	b.WriteString(psQuote(interp))
	if len(args) > 0 {
		quoted := make([]string, len(args))
		for i, a := range args {
			quoted[i] = quoteWinArg(a)
		}
		b.WriteString(" -ArgumentList ")
		b.WriteString(psQuote(strings.Join(quoted, " ")))
	}
	b.WriteString(" -Verb RunAs -WindowStyle Hidden -Wait -PassThru; exit $p.ExitCode")
	return b.String()
}

// psQuote returns s as a PowerShell single-quoted literal.
func psQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// quoteWinArg quotes one argument for a Windows command line
// (CommandLineToArgvW rules).
func quoteWinArg(s string) string {
	if s == "" {
		return `""`
	}
	if !strings.ContainsAny(s, " \t\"") {
		return s
	}

	var b strings.Builder
	b.WriteByte('"')
	slashes := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '\\':
			slashes++
		case '"':
			b.WriteString(strings.Repeat(`\`, slashes*2+1))
			b.WriteByte(c)
			slashes = 0
		default:
			b.WriteString(strings.Repeat(`\`, slashes))
			b.WriteByte(c)
			slashes = 0
		}
	}
	b.WriteString(strings.Repeat(`\`, slashes*2))
	b.WriteByte('"')
	return b.String()
}
