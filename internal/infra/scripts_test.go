package infra

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eliteGoblin/shield/internal/domain"
)

func newShInvoker(t *testing.T, elevated bool) (*ScriptInvoker, string) {
	t.Helper()
	dir := t.TempDir()
	inv := NewScriptInvoker(dir, shInterpreter(t), NewCommandRunner(), StaticProber(elevated), zap.NewNop())
	return inv, dir
}

func TestScriptInvoker_QueryParsesJSON(t *testing.T) {
	inv, dir := newShInvoker(t, false)
	writeStubScript(t, dir, "telemetry", `echo '{"enabled": true, "status": "At Risk", "details": "on"}'`)

	payload, err := inv.Query(context.Background(), "telemetry", "-Action", "Query")
	require.NoError(t, err)
	assert.JSONEq(t, `{"enabled": true, "status": "At Risk", "details": "on"}`, string(payload))
}

func TestScriptInvoker_PassesArgsVerbatim(t *testing.T) {
	inv, dir := newShInvoker(t, false)
	// Prints its arguments as a JSON array; no shell re-parsing may happen.
	writeStubScript(t, dir, "echo-args", `printf '['; sep=''; for a in "$@"; do printf '%s"%s"' "$sep" "$a"; sep=','; done; printf ']'`)

	res, err := inv.Execute(context.Background(), domain.ScriptInvocation{
		Script: "echo-args",
		Args:   []string{"-Action", "SetDNS", "-DNS1", "1.1.1.1; rm -rf x"},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ResultStructured, res.Kind)
	assert.JSONEq(t, `["-Action","SetDNS","-DNS1","1.1.1.1; rm -rf x"]`, string(res.Payload))
}

func TestScriptInvoker_NonZeroExit(t *testing.T) {
	inv, dir := newShInvoker(t, false)
	writeStubScript(t, dir, "broken", `echo "access denied" >&2; exit 3`)

	_, err := inv.Query(context.Background(), "broken")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvocationFailed))

	var invErr *domain.InvocationError
	require.True(t, errors.As(err, &invErr))
	assert.Equal(t, "broken", invErr.Script)
	assert.Equal(t, 3, invErr.ExitCode)
	assert.Contains(t, invErr.Stderr, "access denied")
}

func TestScriptInvoker_InvalidOutput(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty", `exit 0`},
		{"plain text", `echo "hello"`},
		{"truncated", `echo '{"enabled": tr'`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv, dir := newShInvoker(t, false)
			writeStubScript(t, dir, "noisy", tt.body)

			_, err := inv.Query(context.Background(), "noisy")
			assert.ErrorIs(t, err, domain.ErrInvocationFailed)
		})
	}
}

func TestScriptInvoker_MissingScript(t *testing.T) {
	inv, _ := newShInvoker(t, false)

	_, err := inv.Query(context.Background(), "does-not-exist")
	assert.ErrorIs(t, err, domain.ErrInvocationFailed)
}

func TestScriptInvoker_RejectsPathNames(t *testing.T) {
	runner := &recordingRunner{output: []byte(`{}`)}
	inv := NewScriptInvoker(t.TempDir(), Interpreter{Path: "sh", Ext: ".sh"}, runner, StaticProber(false), zap.NewNop())

	for _, name := range []string{"", "../evil", "sub/script", `sub\script`, ".."} {
		_, err := inv.Query(context.Background(), name)
		assert.ErrorIs(t, err, domain.ErrInvocationFailed, name)
	}
	assert.Empty(t, runner.Calls(), "no process may be spawned for rejected names")
}

func TestScriptInvoker_ElevatedPathReturnsAck(t *testing.T) {
	dir := t.TempDir()
	runner := &recordingRunner{output: []byte(`{"should":"not be read"}`)}
	interp := Interpreter{Path: "/usr/bin/pwsh", Args: []string{"-File"}, Ext: ".ps1"}
	inv := NewScriptInvoker(dir, interp, runner, StaticProber(false), zap.NewNop()).
		WithShim(NewElevationShimForOS(runner, interp, "linux"))

	res, err := inv.Execute(context.Background(), domain.ScriptInvocation{
		Script:            "smb1",
		Args:              []string{"-Action", "Disable"},
		RequiresElevation: true,
	})
	require.NoError(t, err)
	assert.True(t, res.IsElevatedAck())
	assert.JSONEq(t, `{"success":true,"message":"Action executed with elevation."}`, string(res.Payload))

	calls := runner.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"sudo", "--", "/usr/bin/pwsh", "-File", filepath.Join(dir, "smb1.ps1"), "-Action", "Disable"}, calls[0])
}

func TestScriptInvoker_ElevatedProcessRunsDirect(t *testing.T) {
	inv, dir := newShInvoker(t, true)
	writeStubScript(t, dir, "smb1", `echo '{"success": true}'`)

	res, err := inv.Execute(context.Background(), domain.ScriptInvocation{
		Script:            "smb1",
		RequiresElevation: true,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ResultStructured, res.Kind)
	assert.JSONEq(t, `{"success": true}`, string(res.Payload))
}

func TestScriptInvoker_ElevationFailure(t *testing.T) {
	runner := &recordingRunner{err: &domain.InvocationError{Script: "sudo", ExitCode: 1, Err: errors.New("exit status 1")}}
	interp := Interpreter{Path: "pwsh", Ext: ".ps1"}
	inv := NewScriptInvoker(t.TempDir(), interp, runner, StaticProber(false), zap.NewNop()).
		WithShim(NewElevationShimForOS(runner, interp, "linux"))

	_, err := inv.Invoke(context.Background(), "smb1", nil, true)
	require.Error(t, err)

	var invErr *domain.InvocationError
	require.True(t, errors.As(err, &invErr))
	assert.Equal(t, "smb1", invErr.Script)
	assert.Equal(t, 1, invErr.ExitCode)
}

func TestScriptInvoker_QueryNeverElevates(t *testing.T) {
	runner := &recordingRunner{output: []byte(`{"enabled":false}`)}
	interp := Interpreter{Path: "pwsh", Ext: ".ps1"}
	inv := NewScriptInvoker(t.TempDir(), interp, runner, StaticProber(false), zap.NewNop()).
		WithShim(NewElevationShimForOS(runner, interp, "linux"))

	_, err := inv.Query(context.Background(), "smb1", "-Action", "Query")
	require.NoError(t, err)

	calls := runner.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "pwsh", calls[0][0])
}

func TestParseScriptOutput(t *testing.T) {
	payload, err := parseScriptOutput(append(append([]byte(nil), utf8BOM...), []byte("  [1,2]\r\n")...))
	require.NoError(t, err)
	assert.Equal(t, "[1,2]", string(payload))

	for _, out := range []string{
		`{"a":1}{"b":2}`,
		`{"enabled":true} WARNING: reboot required`,
		`123abc`,
		`[1]]`,
		`{"a":1}}`,
		`{"a":1`,
	} {
		_, err = parseScriptOutput([]byte(out))
		assert.Error(t, err, "%q is not a single JSON value", out)
	}

	payload, err = parseScriptOutput([]byte("42\n"))
	require.NoError(t, err)
	assert.Equal(t, "42", string(payload))
}

func TestScriptInvoker_TrailingOutputIsInvocationError(t *testing.T) {
	inv, dir := newShInvoker(t, true)
	writeStubScript(t, dir, "noisy", `echo '{"enabled": true, "status": "At Risk", "details": "on"}'
echo 'WARNING: reboot required'`)

	_, err := inv.Query(context.Background(), "noisy")
	var invErr *domain.InvocationError
	require.True(t, errors.As(err, &invErr))
	assert.Equal(t, "noisy", invErr.Script)

	_, err = inv.Invoke(context.Background(), "noisy", nil, false)
	assert.True(t, errors.As(err, &invErr))
}
