package infra

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"github.com/eliteGoblin/shield/internal/domain"
)

// mockProcessManager is a test double for ProcessManager
type mockProcessManager struct {
	runningPIDs map[int]bool
}

func newMockProcessManager() *mockProcessManager {
	return &mockProcessManager{
		runningPIDs: make(map[int]bool),
	}
}

func (m *mockProcessManager) IsRunning(pid int) bool {
	return m.runningPIDs[pid]
}

func (m *mockProcessManager) GetCurrentPID() int {
	return os.Getpid()
}

func (m *mockProcessManager) SetRunning(pid int, running bool) {
	m.runningPIDs[pid] = running
}

// recordingRunner is a test double for domain.CommandRunner.
// It records every call and replies with canned output.
type recordingRunner struct {
	mu     sync.Mutex
	calls  [][]string
	output []byte
	err    error
}

func (r *recordingRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	r.record(name, args)
	if r.err != nil {
		return nil, r.err
	}
	return r.output, nil
}

func (r *recordingRunner) Run(ctx context.Context, name string, args ...string) error {
	r.record(name, args)
	return r.err
}

func (r *recordingRunner) record(name string, args []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, append([]string{name}, args...))
}

func (r *recordingRunner) Calls() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]string(nil), r.calls...)
}

// shInterpreter runs .sh stub scripts in place of PowerShell.
func shInterpreter(t *testing.T) Interpreter {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("stub scripts need a POSIX shell")
	}
	return Interpreter{Name: "sh", Path: "/bin/sh", Ext: ".sh"}
}

// writeStubScript writes an executable shell script named name.sh into dir.
func writeStubScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name+".sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755); err != nil {
		t.Fatalf("write stub script: %v", err)
	}
	return path
}

// recordingNotifier captures published events.
type recordingNotifier struct {
	mu     sync.Mutex
	events []domain.Event
}

func (n *recordingNotifier) Publish(e domain.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
}

func (n *recordingNotifier) Statuses() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, e := range n.events {
		if st, ok := e.Payload.(domain.UpdateStatus); ok {
			out = append(out, st.Status)
		}
	}
	return out
}

var _ domain.ProcessManager = (*mockProcessManager)(nil)
var _ domain.Notifier = (*recordingNotifier)(nil)
var _ domain.CommandRunner = (*recordingRunner)(nil)
