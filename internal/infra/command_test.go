package infra

import (
	"context"
	"errors"
	"os"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eliteGoblin/shield/internal/domain"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("uses /bin/sh")
	}
}

func TestExecRunner_Output(t *testing.T) {
	skipOnWindows(t)
	runner := NewCommandRunner()

	out, err := runner.Output(context.Background(), "/bin/sh", "-c", `printf '%s|%s' "$0" "$1"`, "a b", "c;d")
	require.NoError(t, err)
	assert.Equal(t, "a b|c;d", string(out))
}

func TestExecRunner_ExitCode(t *testing.T) {
	skipOnWindows(t)
	runner := NewCommandRunner()

	err := runner.Run(context.Background(), "/bin/sh", "-c", "echo boom >&2; exit 7")
	require.Error(t, err)

	var invErr *domain.InvocationError
	require.True(t, errors.As(err, &invErr))
	assert.Equal(t, 7, invErr.ExitCode)
	assert.Equal(t, "boom\n", invErr.Stderr)
	assert.ErrorIs(t, err, domain.ErrInvocationFailed)
}

func TestExecRunner_MissingBinary(t *testing.T) {
	runner := NewCommandRunner()

	_, err := runner.Output(context.Background(), "definitely-not-a-real-binary-shield")
	assert.ErrorIs(t, err, domain.ErrInvocationFailed)
}

func TestExecRunner_ContextCancel(t *testing.T) {
	skipOnWindows(t)
	runner := NewCommandRunner()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := runner.Run(ctx, "/bin/sh", "-c", "exec sleep 5")
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestPrivilegeProber_NeverPanics(t *testing.T) {
	prober := NewPrivilegeProber()
	elevated := prober.IsElevated()
	if runtime.GOOS != "windows" {
		assert.Equal(t, os.Geteuid() == 0, elevated)
	}
}

func TestStaticProber(t *testing.T) {
	assert.True(t, StaticProber(true).IsElevated())
	assert.False(t, StaticProber(false).IsElevated())
}
