// Package config loads daemon settings from .env files and SHIELD_* variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultListenAddr         = "127.0.0.1:47821"
	DefaultCacheDebounce      = 2 * time.Second
	DefaultRefreshConcurrency = 4
	DefaultUpdateOwner        = "Kryklin"
	DefaultUpdateRepo         = "shield"
	DefaultLogLevel           = "info"

	envFile = ".env"
)

// Config holds every tunable of the bridge.
type Config struct {
	ListenAddr string

	// Packaged selects the resources directory instead of the working
	// directory when resolving the scripts directory.
	Packaged     bool
	ResourcesDir string
	WorkDir      string
	ScriptsDir   string // explicit override, wins over resolution

	DataDir string // empty means "derive from exec mode"

	CacheDebounce      time.Duration
	RefreshConcurrency int

	UpdateOwner    string
	UpdateRepo     string
	UpdateInterval time.Duration // 0 disables periodic checks

	LogLevel string
}

// Default returns the built-in configuration.
func Default() Config {
	wd, _ := os.Getwd()
	resources := ""
	if exe, err := os.Executable(); err == nil {
		resources = filepath.Join(filepath.Dir(exe), "resources")
	}
	return Config{
		ListenAddr:         DefaultListenAddr,
		ResourcesDir:       resources,
		WorkDir:            wd,
		CacheDebounce:      DefaultCacheDebounce,
		RefreshConcurrency: DefaultRefreshConcurrency,
		UpdateOwner:        DefaultUpdateOwner,
		UpdateRepo:         DefaultUpdateRepo,
		LogLevel:           DefaultLogLevel,
	}
}

// Load reads optional .env files (working directory first, then each extra
// directory) and applies SHIELD_* environment variables over the defaults.
// Variables already present in the environment are never overwritten by .env.
func Load(extraDirs ...string) (Config, error) {
	candidates := []string{envFile}
	for _, dir := range extraDirs {
		if dir != "" {
			candidates = append(candidates, filepath.Join(dir, envFile))
		}
	}
	for _, path := range candidates {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return FromEnv(Default())
}

// FromEnv applies SHIELD_* variables to base.
func FromEnv(base Config) (Config, error) {
	c := base

	if v := os.Getenv("SHIELD_LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv("SHIELD_PACKAGED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SHIELD_PACKAGED %q: %w", v, err)
		}
		c.Packaged = b
	}
	if v := os.Getenv("SHIELD_RESOURCES_DIR"); v != "" {
		c.ResourcesDir = v
	}
	if v := os.Getenv("SHIELD_SCRIPTS_DIR"); v != "" {
		c.ScriptsDir = v
	}
	if v := os.Getenv("SHIELD_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("SHIELD_CACHE_DEBOUNCE"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("invalid SHIELD_CACHE_DEBOUNCE %q", v)
		}
		c.CacheDebounce = d
	}
	if v := os.Getenv("SHIELD_REFRESH_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return Config{}, fmt.Errorf("invalid SHIELD_REFRESH_CONCURRENCY %q", v)
		}
		c.RefreshConcurrency = n
	}
	if v := os.Getenv("SHIELD_UPDATE_OWNER"); v != "" {
		c.UpdateOwner = v
	}
	if v := os.Getenv("SHIELD_UPDATE_REPO"); v != "" {
		c.UpdateRepo = v
	}
	if v := os.Getenv("SHIELD_UPDATE_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return Config{}, fmt.Errorf("invalid SHIELD_UPDATE_INTERVAL %q", v)
		}
		c.UpdateInterval = d
	}
	if v := os.Getenv("SHIELD_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}

	return c, nil
}

// ResolveScriptsDir returns the directory holding the external scripts.
// It is a pure function of the packaged flag and the two base directories.
func ResolveScriptsDir(packaged bool, resourcesDir, workDir string) string {
	if packaged {
		return filepath.Join(resourcesDir, "powershell")
	}
	return filepath.Join(workDir, "powershell")
}

// EffectiveScriptsDir applies the explicit override, then resolution.
func (c Config) EffectiveScriptsDir() string {
	if c.ScriptsDir != "" {
		return c.ScriptsDir
	}
	return ResolveScriptsDir(c.Packaged, c.ResourcesDir, c.WorkDir)
}
