package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/eliteGoblin/shield/internal/domain"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ScriptInvoker implements domain.Invoker for the bundled script directory.
// Every invocation spawns exactly one child process.
type ScriptInvoker struct {
	scriptsDir string
	interp     Interpreter
	runner     domain.CommandRunner
	prober     domain.PrivilegeProber
	shim       *ElevationShim
	logger     *zap.Logger
}

// NewScriptInvoker creates an invoker for scripts under scriptsDir.
func NewScriptInvoker(
	scriptsDir string,
	interp Interpreter,
	runner domain.CommandRunner,
	prober domain.PrivilegeProber,
	logger *zap.Logger,
) *ScriptInvoker {
	return &ScriptInvoker{
		scriptsDir: scriptsDir,
		interp:     interp,
		runner:     runner,
		prober:     prober,
		shim:       NewElevationShim(runner, interp),
		logger:     logger,
	}
}

// WithShim replaces the elevation shim (for testing).
func (s *ScriptInvoker) WithShim(shim *ElevationShim) *ScriptInvoker {
	s.shim = shim
	return s
}

// ScriptsDir returns the directory scripts are resolved against.
func (s *ScriptInvoker) ScriptsDir() string {
	return s.scriptsDir
}

// ScriptPath resolves a bare script name to its file.
// Names that could escape the scripts directory are rejected.
func (s *ScriptInvoker) ScriptPath(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return "", &domain.InvocationError{Script: name, Err: fmt.Errorf("invalid script name %q", name)}
	}
	return filepath.Join(s.scriptsDir, name+s.interp.Ext), nil
}

// Invoke runs a script by name. It is the bridge's runScript operation.
func (s *ScriptInvoker) Invoke(ctx context.Context, name string, args []string, requiresElevation bool) (domain.InvocationResult, error) {
	return s.Execute(ctx, domain.ScriptInvocation{
		Script:            name,
		Args:              args,
		RequiresElevation: requiresElevation,
	})
}

// Query runs the script without elevation and returns its JSON output.
func (s *ScriptInvoker) Query(ctx context.Context, name string, args ...string) (json.RawMessage, error) {
	path, err := s.ScriptPath(name)
	if err != nil {
		return nil, err
	}
	return s.runDirect(ctx, name, path, args)
}

// Execute runs an invocation. When elevation is required but the process is
// not elevated, the script runs through the shim and the result is the
// synthetic acknowledgment.
func (s *ScriptInvoker) Execute(ctx context.Context, inv domain.ScriptInvocation) (domain.InvocationResult, error) {
	path, err := s.ScriptPath(inv.Script)
	if err != nil {
		return domain.InvocationResult{}, err
	}

	if inv.RequiresElevation && !s.prober.IsElevated() {
		s.logger.Info("running script elevated",
			zap.String("script", inv.Script),
			zap.Strings("args", inv.Args))

		if err := s.shim.RunElevated(ctx, path, inv.Args); err != nil {
			s.logger.Warn("elevated script failed",
				zap.String("script", inv.Script),
				zap.Error(err))
			return domain.InvocationResult{}, withScriptName(err, inv.Script)
		}
		return domain.NewElevatedAck(), nil
	}

	payload, err := s.runDirect(ctx, inv.Script, path, inv.Args)
	if err != nil {
		return domain.InvocationResult{}, err
	}
	return domain.InvocationResult{Kind: domain.ResultStructured, Payload: payload}, nil
}

func (s *ScriptInvoker) runDirect(ctx context.Context, name, path string, args []string) (json.RawMessage, error) {
	bin, argv := s.interp.Command(path, args)

	s.logger.Debug("running script",
		zap.String("script", name),
		zap.Strings("args", args))

	out, err := s.runner.Output(ctx, bin, argv...)
	if err != nil {
		s.logger.Warn("script failed",
			zap.String("script", name),
			zap.Error(err))
		return nil, withScriptName(err, name)
	}

	payload, err := parseScriptOutput(out)
	if err != nil {
		return nil, &domain.InvocationError{Script: name, Err: err}
	}
	return payload, nil
}

// parseScriptOutput accepts exactly one JSON value on stdout.
func parseScriptOutput(out []byte) (json.RawMessage, error) {
	out = bytes.TrimPrefix(out, utf8BOM)
	out = bytes.TrimSpace(out)
	if len(out) == 0 {
		return nil, errors.New("script produced no output")
	}
	// Unmarshal rejects bytes left after the value; Skip and Valid do not.
	var value json.RawMessage
	if err := jsonCodec.Unmarshal(out, &value); err != nil {
		return nil, fmt.Errorf("script output is not a single JSON value: %.80q", out)
	}
	return json.RawMessage(append([]byte(nil), out...)), nil
}

// withScriptName labels runner errors with the script name instead of the interpreter.
func withScriptName(err error, name string) error {
	var invErr *domain.InvocationError
	if errors.As(err, &invErr) {
		labeled := *invErr
		labeled.Script = name
		return &labeled
	}
	return &domain.InvocationError{Script: name, Err: err}
}

var _ domain.Invoker = (*ScriptInvoker)(nil)
