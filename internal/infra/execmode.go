// Package infra implements infrastructure concerns.
package infra

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/eliteGoblin/shield/internal/domain"
)

const appDirName = "shield"

// ExecModeConfig holds paths and settings based on the privilege level.
type ExecModeConfig struct {
	Mode         domain.ExecMode
	DataDir      string // State cache, profiles, key, registry, logs
	StateFile    string
	RegistryPath string
	ProfileDB    string
	LogPath      string
	IsElevated   bool
}

// DetectExecMode probes the current privilege level and derives the data paths.
// An empty dataDir override means "use the per-mode default".
func DetectExecMode(prober domain.PrivilegeProber, dataDir string) *ExecModeConfig {
	elevated := prober.IsElevated()
	mode := domain.ModeStandard
	if elevated {
		mode = domain.ModeElevated
	}

	if dataDir == "" {
		dataDir = DefaultDataDir(mode)
	}

	return &ExecModeConfig{
		Mode:         mode,
		DataDir:      dataDir,
		StateFile:    filepath.Join(dataDir, "state-cache.json"),
		RegistryPath: filepath.Join(dataDir, "bridge.json"),
		ProfileDB:    filepath.Join(dataDir, profileDBName),
		LogPath:      filepath.Join(dataDir, "shieldd.log"),
		IsElevated:   elevated,
	}
}

// DefaultDataDir returns the per-user or machine-wide application data directory.
func DefaultDataDir(mode domain.ExecMode) string {
	if mode == domain.ModeElevated {
		if runtime.GOOS == "windows" {
			if pd := os.Getenv("ProgramData"); pd != "" {
				return filepath.Join(pd, appDirName)
			}
		} else {
			return filepath.Join("/var/lib", appDirName)
		}
	}

	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, appDirName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "."+appDirName)
}

// String returns a human-readable description of the mode.
func (c *ExecModeConfig) String() string {
	switch c.Mode {
	case domain.ModeElevated:
		return "elevated (administrator)"
	case domain.ModeStandard:
		return "standard (non-administrator)"
	default:
		return "unknown"
	}
}
