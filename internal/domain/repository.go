package domain

import (
	"context"
	"encoding/json"
)

// PrivilegeProber reports whether the current process holds elevated rights.
// It never fails: anything it cannot determine counts as not elevated.
type PrivilegeProber interface {
	IsElevated() bool
}

// CommandRunner spawns one child process and waits for it.
// Implementation: os/exec with argv, no shell.
type CommandRunner interface {
	// Output runs the command and returns its stdout.
	// A non-zero exit returns *InvocationError with stderr attached.
	Output(ctx context.Context, name string, args ...string) ([]byte, error)

	// Run runs the command discarding its output.
	Run(ctx context.Context, name string, args ...string) error
}

// Invoker runs named scripts on behalf of feature services.
type Invoker interface {
	// Query always runs without elevation and returns the parsed JSON payload.
	Query(ctx context.Context, script string, args ...string) (json.RawMessage, error)

	// Execute runs an invocation, delegating to the elevation shim when needed.
	// The result kind tells whether Payload is real script output.
	Execute(ctx context.Context, inv ScriptInvocation) (InvocationResult, error)
}

// StateStore persists the state cache document.
// Implementation: JSON file written atomically.
type StateStore interface {
	// Load returns the persisted snapshot, or an empty one if none exists.
	Load() (*StateSnapshot, error)

	// Save replaces the persisted snapshot.
	Save(snapshot *StateSnapshot) error
}

// StatusCache is the process-wide module status cache.
type StatusCache interface {
	Get(key string) (ModuleStatus, bool)
	Put(key string, status ModuleStatus)
	Snapshot() StateSnapshot
	Replace(snapshot StateSnapshot)
}

// ProfileStore persists user-created hardening profiles.
// Implementation: SQLCipher encrypted database.
type ProfileStore interface {
	// List returns all user profiles in creation order.
	List() ([]HardeningProfile, error)

	// Get returns one user profile, or ErrProfileNotFound.
	Get(id string) (*HardeningProfile, error)

	// Save inserts or replaces a user profile.
	Save(profile HardeningProfile) error

	// Delete removes a user profile.
	Delete(id string) error

	// SetActive records the last applied or saved profile id.
	SetActive(id string) error

	// Active returns the recorded profile id, or "" if none.
	Active() (string, error)

	// Close releases resources (e.g., database connection).
	Close() error
}

// ProcessManager handles OS process queries.
// Implementation: uses gopsutil for cross-platform support.
type ProcessManager interface {
	// IsRunning checks if a PID exists and is running.
	IsRunning(pid int) bool

	// GetCurrentPID returns the current process PID.
	GetCurrentPID() int
}

// InstanceRegistry records the running bridge daemon for discovery.
// Implementation: JSON file in the data directory.
type InstanceRegistry interface {
	// Register saves the running instance.
	Register(instance BridgeInstance) error

	// Get returns the registered instance, or nil if none.
	Get() (*BridgeInstance, error)

	// IsAlive reports whether the registered instance is still running.
	IsAlive() bool

	// UpdateHeartbeat updates the liveness timestamp.
	UpdateHeartbeat() error

	// Clear removes the registration.
	Clear() error

	// GetRegistryPath returns the registry file path (for tests).
	GetRegistryPath() string
}

// Notifier publishes one-way events to UI subscribers.
type Notifier interface {
	Publish(event Event)
}

// KeyProvider abstracts the source of encryption keys.
type KeyProvider interface {
	// GetKey returns the encryption key bytes.
	GetKey() ([]byte, error)

	// StoreKey persists a new encryption key.
	StoreKey(key []byte) error

	// KeyExists checks if a key has been generated.
	KeyExists() bool
}

// NopNotifier discards events.
type NopNotifier struct{}

func (NopNotifier) Publish(Event) {}
