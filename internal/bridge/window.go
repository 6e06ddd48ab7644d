package bridge

import (
	"sync"

	"github.com/eliteGoblin/shield/internal/domain"
)

// WindowState mirrors the UI window controls. The shell owns the real window;
// the daemon only keeps the flags and announces maximize changes.
type WindowState struct {
	mu        sync.Mutex
	minimized bool
	maximized bool
	notifier  domain.Notifier
}

// WindowSnapshot is the JSON view of WindowState.
type WindowSnapshot struct {
	Minimized bool `json:"minimized"`
	Maximized bool `json:"maximized"`
}

// NewWindowState creates a restored, unmaximized window.
func NewWindowState(notifier domain.Notifier) *WindowState {
	return &WindowState{notifier: notifier}
}

// Minimize marks the window minimized.
func (w *WindowState) Minimize() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.minimized = true
}

// ToggleMaximize flips maximized, restores from minimized, and publishes
// windowMaximizedChange with the new value.
func (w *WindowState) ToggleMaximize() bool {
	w.mu.Lock()
	w.maximized = !w.maximized
	w.minimized = false
	maximized := w.maximized
	w.mu.Unlock()

	w.notifier.Publish(domain.Event{Channel: domain.ChannelWindowMaximized, Payload: maximized})
	return maximized
}

// Snapshot returns the current flags.
func (w *WindowState) Snapshot() WindowSnapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return WindowSnapshot{Minimized: w.minimized, Maximized: w.maximized}
}
