package infra

import (
	"fmt"
	"os/exec"
	"runtime"
)

// Interpreter describes how to run a script file.
type Interpreter struct {
	Name string   // e.g. "powershell", "pwsh"
	Path string   // Resolved binary
	Args []string // Arguments placed before the script path
	Ext  string   // Script file extension, with dot
}

// Command returns argv for running scriptPath with args.
func (i Interpreter) Command(scriptPath string, args []string) (string, []string) {
	argv := make([]string, 0, len(i.Args)+1+len(args))
	argv = append(argv, i.Args...)
	argv = append(argv, scriptPath)
	argv = append(argv, args...)
	return i.Path, argv
}

var powershellArgs = []string{"-NoProfile", "-NonInteractive", "-ExecutionPolicy", "Bypass", "-File"}

// InterpreterStrategy is one candidate script host.
type InterpreterStrategy interface {
	Name() string
	IsAvailable() bool
	Interpreter() Interpreter
}

// PowerShellStrategy finds a PowerShell binary on PATH.
type PowerShellStrategy struct {
	binary string
	path   string
}

// NewWindowsPowerShellStrategy targets the inbox Windows PowerShell 5.1.
func NewWindowsPowerShellStrategy() *PowerShellStrategy {
	return newPowerShellStrategy("powershell")
}

// NewPwshStrategy targets PowerShell 7+.
func NewPwshStrategy() *PowerShellStrategy {
	return newPowerShellStrategy("pwsh")
}

func newPowerShellStrategy(binary string) *PowerShellStrategy {
	path, err := exec.LookPath(binary)
	if err != nil {
		path = ""
	}
	return &PowerShellStrategy{binary: binary, path: path}
}

func (s *PowerShellStrategy) Name() string {
	return s.binary
}

func (s *PowerShellStrategy) IsAvailable() bool {
	return s.path != ""
}

func (s *PowerShellStrategy) Interpreter() Interpreter {
	return Interpreter{
		Name: s.binary,
		Path: s.path,
		Args: append([]string(nil), powershellArgs...),
		Ext:  ".ps1",
	}
}

// InterpreterResolver picks the first available script host.
type InterpreterResolver struct {
	strategies []InterpreterStrategy
}

// NewInterpreterResolver creates a resolver with the platform's candidates.
func NewInterpreterResolver() *InterpreterResolver {
	r := &InterpreterResolver{}

	// Windows PowerShell ships with every Windows install; pwsh is the fallback
	// and the only option elsewhere.
	if runtime.GOOS == "windows" {
		r.strategies = append(r.strategies, NewWindowsPowerShellStrategy())
	}
	r.strategies = append(r.strategies, NewPwshStrategy())

	return r
}

// NewInterpreterResolverWith creates a resolver with custom strategies (for testing).
func NewInterpreterResolverWith(strategies ...InterpreterStrategy) *InterpreterResolver {
	return &InterpreterResolver{strategies: strategies}
}

// GetStrategies returns all candidate strategies.
func (r *InterpreterResolver) GetStrategies() []InterpreterStrategy {
	return r.strategies
}

// Resolve returns the first available interpreter.
func (r *InterpreterResolver) Resolve() (Interpreter, error) {
	for _, s := range r.strategies {
		if s.IsAvailable() {
			return s.Interpreter(), nil
		}
	}
	return Interpreter{}, fmt.Errorf("no PowerShell interpreter found on PATH")
}
