package infra

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/eliteGoblin/shield/internal/domain"
)

// jsonCodec is shared by every file-backed store in this package.
var jsonCodec = jsoniter.ConfigCompatibleWithStandardLibrary

// FileRegistry implements domain.InstanceRegistry using a JSON file in the data directory.
// The file holds the session token, so it is written 0600.
type FileRegistry struct {
	path           string
	processManager domain.ProcessManager
}

// NewFileRegistry creates a registry at the exec mode's registry path.
func NewFileRegistry(cfg *ExecModeConfig, pm domain.ProcessManager) domain.InstanceRegistry {
	return &FileRegistry{
		path:           cfg.RegistryPath,
		processManager: pm,
	}
}

// NewFileRegistryWithPath creates a registry at a specific path (for testing).
func NewFileRegistryWithPath(path string, pm domain.ProcessManager) domain.InstanceRegistry {
	return &FileRegistry{
		path:           path,
		processManager: pm,
	}
}

// GetRegistryPath returns the registry file path.
func (r *FileRegistry) GetRegistryPath() string {
	return r.path
}

// Register saves the running instance.
func (r *FileRegistry) Register(instance domain.BridgeInstance) error {
	if instance.StartedAt.IsZero() {
		instance.StartedAt = time.Now()
	}
	instance.LastHeartbeat = time.Now().Unix()
	return r.atomicWrite(&instance)
}

// Get returns the registered instance, or nil if none.
func (r *FileRegistry) Get() (*domain.BridgeInstance, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var instance domain.BridgeInstance
	if err := jsonCodec.Unmarshal(data, &instance); err != nil {
		return nil, fmt.Errorf("parse registry %s: %w", r.path, err)
	}
	return &instance, nil
}

// IsAlive reports whether the registered PID is still running.
// A stale entry left by a crashed daemon reads as not alive.
func (r *FileRegistry) IsAlive() bool {
	instance, err := r.Get()
	if err != nil || instance == nil {
		return false
	}
	return r.processManager.IsRunning(instance.PID)
}

// UpdateHeartbeat updates timestamp for liveness check.
func (r *FileRegistry) UpdateHeartbeat() error {
	instance, err := r.Get()
	if err != nil {
		return err
	}
	if instance == nil {
		return fmt.Errorf("no instance registered at %s", r.path)
	}

	instance.LastHeartbeat = time.Now().Unix()
	return r.atomicWrite(instance)
}

// Clear removes registry file. Clearing an absent registry is not an error.
func (r *FileRegistry) Clear() error {
	if err := os.Remove(r.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// atomicWrite writes registry to file atomically (write + rename).
func (r *FileRegistry) atomicWrite(instance *domain.BridgeInstance) error {
	data, err := jsonCodec.Marshal(instance)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(r.path), 0700); err != nil {
		return fmt.Errorf("create registry dir: %w", err)
	}

	// Write to temp file first (unique per process to avoid race)
	tmpPath := fmt.Sprintf("%s.%d.tmp", r.path, os.Getpid())
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}

	// Atomic rename
	if err := os.Rename(tmpPath, r.path); err != nil {
		os.Remove(tmpPath) // Clean up on failure
		return err
	}
	return nil
}

// Ensure FileRegistry implements domain.InstanceRegistry.
var _ domain.InstanceRegistry = (*FileRegistry)(nil)
