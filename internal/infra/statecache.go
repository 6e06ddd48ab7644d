package infra

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/shield/internal/domain"
)

// DefaultCacheDebounce is the quiet period before a cache write reaches disk.
const DefaultCacheDebounce = 2 * time.Second

// FileStateStore implements domain.StateStore as a JSON document on disk.
type FileStateStore struct {
	path string
}

// NewFileStateStore creates a store at path.
func NewFileStateStore(path string) *FileStateStore {
	return &FileStateStore{path: path}
}

// Path returns the state file location.
func (s *FileStateStore) Path() string {
	return s.path
}

// Load returns the persisted snapshot. A missing file yields an empty snapshot.
func (s *FileStateStore) Load() (*domain.StateSnapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return emptySnapshot(), nil
		}
		return nil, err
	}

	var snap domain.StateSnapshot
	if err := jsonCodec.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse state cache %s: %w", s.path, err)
	}
	if snap.Settings == nil {
		snap.Settings = make(map[string]domain.ModuleStatus)
	}
	return &snap, nil
}

// Save writes the snapshot atomically (write + rename).
func (s *FileStateStore) Save(snap *domain.StateSnapshot) error {
	data, err := jsonCodec.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	tmpPath := fmt.Sprintf("%s.%d.tmp", s.path, os.Getpid())
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

func emptySnapshot() *domain.StateSnapshot {
	return &domain.StateSnapshot{Settings: make(map[string]domain.ModuleStatus)}
}

// StateCache is the in-memory module status cache with a trailing-debounce
// write-behind to a StateStore. Every Put restarts the timer; only the last
// timer fire in a burst writes, and it writes the whole snapshot.
type StateCache struct {
	mu       sync.Mutex
	store    domain.StateStore
	debounce time.Duration
	logger   *zap.Logger

	settings  map[string]domain.ModuleStatus
	timestamp time.Time
	timer     *time.Timer
	dirty     bool
	closed    bool

	// writeMu is held from snapshot to Save.
	writeMu sync.Mutex
}

// NewStateCache loads the persisted snapshot eagerly. Read or parse failures
// are logged and the cache starts empty.
func NewStateCache(store domain.StateStore, debounce time.Duration, logger *zap.Logger) *StateCache {
	if debounce <= 0 {
		debounce = DefaultCacheDebounce
	}

	c := &StateCache{
		store:    store,
		debounce: debounce,
		logger:   logger,
		settings: make(map[string]domain.ModuleStatus),
	}

	snap, err := store.Load()
	if err != nil {
		logger.Warn("failed to load state cache, starting empty", zap.Error(err))
		return c
	}
	for k, v := range snap.Settings {
		c.settings[k] = v
	}
	c.timestamp = snap.Timestamp

	logger.Debug("state cache loaded", zap.Int("entries", len(c.settings)))
	return c
}

// Get returns the cached status for key.
func (c *StateCache) Get(key string) (domain.ModuleStatus, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.settings[key]
	return st, ok
}

// Put records a status and schedules a write.
func (c *StateCache) Put(key string, status domain.ModuleStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.settings[key] = status
	c.timestamp = time.Now()
	c.scheduleLocked()
}

// Snapshot returns a copy of the current cache contents.
func (c *StateCache) Snapshot() domain.StateSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Replace swaps the whole cache content and schedules a write.
func (c *StateCache) Replace(snap domain.StateSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.settings = make(map[string]domain.ModuleStatus, len(snap.Settings))
	for k, v := range snap.Settings {
		c.settings[k] = v
	}
	c.timestamp = snap.Timestamp
	if c.timestamp.IsZero() {
		c.timestamp = time.Now()
	}
	c.scheduleLocked()
}

// Flush writes pending changes immediately.
func (c *StateCache) Flush() error {
	return c.persist(true)
}

// Close stops the timer and flushes pending data. Later Puts stay in memory only.
func (c *StateCache) Close() error {
	err := c.Flush()
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return err
}

func (c *StateCache) scheduleLocked() {
	c.dirty = true
	if c.closed {
		return
	}
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.debounce, c.fire)
}

func (c *StateCache) fire() {
	if err := c.persist(false); err != nil {
		c.logger.Error("failed to persist state cache", zap.Error(err))
	}
}

// persist snapshots and saves under writeMu, so writes reach the store in
// snapshot order. Lock order is writeMu, then mu.
func (c *StateCache) persist(stopTimer bool) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	if stopTimer && c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if !c.dirty {
		c.mu.Unlock()
		return nil
	}
	snap := c.snapshotLocked()
	c.dirty = false
	c.mu.Unlock()

	if err := c.store.Save(&snap); err != nil {
		c.mu.Lock()
		c.dirty = true
		c.mu.Unlock()
		return err
	}
	c.logger.Debug("state cache persisted", zap.Int("entries", len(snap.Settings)))
	return nil
}

func (c *StateCache) snapshotLocked() domain.StateSnapshot {
	settings := make(map[string]domain.ModuleStatus, len(c.settings))
	for k, v := range c.settings {
		settings[k] = v
	}
	return domain.StateSnapshot{Timestamp: c.timestamp, Settings: settings}
}

var _ domain.StateStore = (*FileStateStore)(nil)
var _ domain.StatusCache = (*StateCache)(nil)
