package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvocationFailed matches every script invocation failure: non-zero
	// exit, unparseable stdout, denied or unavailable elevation.
	ErrInvocationFailed = errors.New("script invocation failed")

	ErrModuleNotFound  = errors.New("module not found")
	ErrFeatureNotFound = errors.New("feature not found")
	ErrActionNotFound  = errors.New("action not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrProfileNotFound = errors.New("profile not found")
	ErrInvalidProfile  = errors.New("invalid profile")
	ErrSystemProfile   = errors.New("system profiles are read-only")
)

// InvocationError carries the diagnostics of a failed script run.
type InvocationError struct {
	Script   string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *InvocationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "script %s", e.Script)
	if e.ExitCode != 0 {
		fmt.Fprintf(&b, " exited with code %d", e.ExitCode)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if s := strings.TrimSpace(e.Stderr); s != "" {
		fmt.Fprintf(&b, " (stderr: %s)", s)
	}
	return b.String()
}

func (e *InvocationError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrInvocationFailed) match any InvocationError.
func (e *InvocationError) Is(target error) bool {
	return target == ErrInvocationFailed
}

// DuplicateProfileError is returned when a new profile would equal an existing one.
type DuplicateProfileError struct {
	DuplicateOf string
}

func (e *DuplicateProfileError) Error() string {
	return fmt.Sprintf("settings match existing profile %q", e.DuplicateOf)
}
