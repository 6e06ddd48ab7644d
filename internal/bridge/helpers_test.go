package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/shield/internal/catalog"
	"github.com/eliteGoblin/shield/internal/domain"
	"github.com/eliteGoblin/shield/internal/infra"
	"github.com/eliteGoblin/shield/internal/usecase"
)

// fakeScripts plays every script. Toggle scripts keep an enabled flag;
// other scripts answer from payloads.
type fakeScripts struct {
	mu       sync.Mutex
	elevated bool
	enabled  map[string]bool
	payloads map[string]string
	fail     map[string]error
	calls    []domain.ScriptInvocation
}

func newFakeScripts() *fakeScripts {
	return &fakeScripts{
		enabled:  make(map[string]bool),
		payloads: make(map[string]string),
		fail:     make(map[string]error),
	}
}

func (f *fakeScripts) Invoke(ctx context.Context, name string, args []string, requiresElevation bool) (domain.InvocationResult, error) {
	return f.Execute(ctx, domain.ScriptInvocation{Script: name, Args: args, RequiresElevation: requiresElevation})
}

func (f *fakeScripts) Query(ctx context.Context, name string, args ...string) (json.RawMessage, error) {
	res, err := f.Execute(ctx, domain.ScriptInvocation{Script: name, Args: args})
	return res.Payload, err
}

func (f *fakeScripts) Execute(ctx context.Context, inv domain.ScriptInvocation) (domain.InvocationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, inv)
	if err := f.fail[inv.Script]; err != nil {
		return domain.InvocationResult{}, err
	}

	action := ""
	if len(inv.Args) >= 2 && inv.Args[0] == "-Action" {
		action = inv.Args[1]
	}
	switch action {
	case domain.ActionEnable:
		f.enabled[inv.Script] = true
	case domain.ActionDisable:
		f.enabled[inv.Script] = false
	}
	if inv.RequiresElevation && !f.elevated {
		return domain.NewElevatedAck(), nil
	}

	payload, ok := f.payloads[inv.Script]
	if !ok {
		payload = fmt.Sprintf(`{"enabled":%t,"status":"x","details":""}`, f.enabled[inv.Script])
	}
	return domain.InvocationResult{Kind: domain.ResultStructured, Payload: json.RawMessage(payload)}, nil
}

// memCache implements domain.StatusCache and StateCache.
type memCache struct {
	mu   sync.Mutex
	snap domain.StateSnapshot
}

func newMemCache() *memCache {
	return &memCache{snap: domain.StateSnapshot{Settings: map[string]domain.ModuleStatus{}}}
}

func (c *memCache) Get(key string) (domain.ModuleStatus, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.snap.Settings[key]
	return s, ok
}

func (c *memCache) Put(key string, status domain.ModuleStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap.Settings[key] = status
	c.snap.Timestamp = time.Now()
}

func (c *memCache) Snapshot() domain.StateSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := domain.StateSnapshot{Timestamp: c.snap.Timestamp, Settings: map[string]domain.ModuleStatus{}}
	for k, v := range c.snap.Settings {
		out.Settings[k] = v
	}
	return out
}

func (c *memCache) Replace(snap domain.StateSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap = snap
}

// memProfileStore is an in-memory domain.ProfileStore.
type memProfileStore struct {
	mu       sync.Mutex
	profiles []domain.HardeningProfile
	active   string
}

func (s *memProfileStore) List() ([]domain.HardeningProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.HardeningProfile(nil), s.profiles...), nil
}

func (s *memProfileStore) Get(id string) (*domain.HardeningProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.profiles {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, domain.ErrProfileNotFound
}

func (s *memProfileStore) Save(p domain.HardeningProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles = append(s.profiles, p)
	return nil
}

func (s *memProfileStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, p := range s.profiles {
		if p.ID == id {
			s.profiles = append(s.profiles[:i], s.profiles[i+1:]...)
			return nil
		}
	}
	return domain.ErrProfileNotFound
}

func (s *memProfileStore) SetActive(id string) error { s.active = id; return nil }
func (s *memProfileStore) Active() (string, error)   { return s.active, nil }
func (s *memProfileStore) Close() error              { return nil }

type fakeUpdater struct {
	check      *infra.UpdateCheck
	checkErr   error
	installErr error
	installed  bool
}

func (u *fakeUpdater) CheckForUpdates(ctx context.Context) (*infra.UpdateCheck, error) {
	return u.check, u.checkErr
}

func (u *fakeUpdater) Install() (string, error) {
	if u.installErr != nil {
		return "", u.installErr
	}
	u.installed = true
	return "/opt/shield/shieldd", nil
}

// recordingNotifier captures events.
type recordingNotifier struct {
	mu     sync.Mutex
	events []domain.Event
}

func (n *recordingNotifier) Publish(e domain.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
}

func (n *recordingNotifier) channel(name string) []domain.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []domain.Event
	for _, e := range n.events {
		if e.Channel == name {
			out = append(out, e)
		}
	}
	return out
}

type testEnv struct {
	scripts   *fakeScripts
	cache     *memCache
	profiles  *memProfileStore
	updater   *fakeUpdater
	notifier  *recordingNotifier
	shutdowns int
	relaunch  error
	restarted string
	mu        sync.Mutex
}

func (e *testEnv) shutdownCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.shutdowns
}

func newTestAPI(t *testing.T) (*API, *testEnv) {
	t.Helper()
	env := &testEnv{
		scripts:  newFakeScripts(),
		cache:    newMemCache(),
		profiles: &memProfileStore{},
		updater:  &fakeUpdater{check: &infra.UpdateCheck{Current: "1.0.0", Latest: "1.1.0", Available: true, Downloaded: true}},
		notifier: &recordingNotifier{},
	}
	logger := zap.NewNop()
	reg := catalog.NewRegistry()

	modules := make(map[string]*usecase.ModuleService)
	for _, f := range reg.ModuleFeatures() {
		modules[f.ID()] = usecase.NewModuleService(f, env.scripts, env.cache, env.notifier, logger)
	}

	api := NewAPI(Deps{
		Prober:   infra.StaticProber(false),
		Scripts:  env.scripts,
		Cache:    env.cache,
		Catalog:  reg,
		Modules:  modules,
		Actions:  usecase.NewActionService(reg, env.scripts, logger),
		Profiles: usecase.NewProfileService(modules[catalog.HardeningFeatureID], env.profiles, logger),
		Updater:  env.updater,
		Notifier: env.notifier,
		Relaunch: func(ctx context.Context) error { return env.relaunch },
		Restart: func(exe string) error {
			env.restarted = exe
			return nil
		},
		Shutdown: func() {
			env.mu.Lock()
			env.shutdowns++
			env.mu.Unlock()
		},
		Build: BuildInfo{Version: "1.2.3", Commit: "abc123"},
	}, logger)
	return api, env
}
