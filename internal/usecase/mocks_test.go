package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eliteGoblin/shield/internal/domain"
)

// fakeInvoker simulates toggle scripts. Each script keeps an "enabled" flag
// that Enable/Disable flip and Query reports.
type fakeInvoker struct {
	mu        sync.Mutex
	enabled   map[string]bool
	queryErr  map[string]error
	execErr   map[string]error
	payloads  map[string]string // raw Query/Execute output per script, overrides enabled
	elevated  bool
	queries   []string
	executes  []domain.ScriptInvocation
	inFlight  int32
	maxFlight int32
	delay     time.Duration
}

func newFakeInvoker() *fakeInvoker {
	return &fakeInvoker{
		enabled:  make(map[string]bool),
		queryErr: make(map[string]error),
		execErr:  make(map[string]error),
		payloads: make(map[string]string),
	}
}

func (f *fakeInvoker) Query(ctx context.Context, script string, args ...string) (json.RawMessage, error) {
	n := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		peak := atomic.LoadInt32(&f.maxFlight)
		if n <= peak || atomic.CompareAndSwapInt32(&f.maxFlight, peak, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, script)
	if err := f.queryErr[script]; err != nil {
		return nil, err
	}
	if p, ok := f.payloads[script]; ok {
		return json.RawMessage(p), nil
	}
	return statusPayload(f.enabled[script]), nil
}

func (f *fakeInvoker) Execute(ctx context.Context, inv domain.ScriptInvocation) (domain.InvocationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.executes = append(f.executes, inv)
	if err := f.execErr[inv.Script]; err != nil {
		return domain.InvocationResult{}, err
	}
	if len(inv.Args) == 2 && inv.Args[0] == "-Action" {
		switch inv.Args[1] {
		case domain.ActionEnable:
			f.enabled[inv.Script] = true
		case domain.ActionDisable:
			f.enabled[inv.Script] = false
		}
	}
	if inv.RequiresElevation && !f.elevated {
		return domain.NewElevatedAck(), nil
	}
	if p, ok := f.payloads[inv.Script]; ok {
		return domain.InvocationResult{Kind: domain.ResultStructured, Payload: json.RawMessage(p)}, nil
	}
	return domain.InvocationResult{Kind: domain.ResultStructured, Payload: json.RawMessage(`{"success":true}`)}, nil
}

func (f *fakeInvoker) set(script string, enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enabled[script] = enabled
}

func (f *fakeInvoker) executed() []domain.ScriptInvocation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.ScriptInvocation(nil), f.executes...)
}

func statusPayload(enabled bool) json.RawMessage {
	status := domain.StatusSafe
	if enabled {
		status = domain.StatusAtRisk
	}
	return json.RawMessage(fmt.Sprintf(`{"enabled":%t,"status":%q,"details":""}`, enabled, status))
}

// memCache is an in-memory domain.StatusCache.
type memCache struct {
	mu   sync.Mutex
	data map[string]domain.ModuleStatus
	puts int
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string]domain.ModuleStatus)}
}

func (c *memCache) Get(key string) (domain.ModuleStatus, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.data[key]
	return s, ok
}

func (c *memCache) Put(key string, status domain.ModuleStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = status
	c.puts++
}

func (c *memCache) Snapshot() domain.StateSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	settings := make(map[string]domain.ModuleStatus, len(c.data))
	for k, v := range c.data {
		settings[k] = v
	}
	return domain.StateSnapshot{Settings: settings}
}

func (c *memCache) Replace(snap domain.StateSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = snap.Settings
}

// memProfileStore is an in-memory domain.ProfileStore.
type memProfileStore struct {
	profiles map[string]domain.HardeningProfile
	order    []string
	active   string
	saveErr  error
}

func newMemProfileStore() *memProfileStore {
	return &memProfileStore{profiles: make(map[string]domain.HardeningProfile)}
}

func (s *memProfileStore) List() ([]domain.HardeningProfile, error) {
	out := make([]domain.HardeningProfile, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.profiles[id])
	}
	return out, nil
}

func (s *memProfileStore) Get(id string) (*domain.HardeningProfile, error) {
	p, ok := s.profiles[id]
	if !ok {
		return nil, domain.ErrProfileNotFound
	}
	return &p, nil
}

func (s *memProfileStore) Save(p domain.HardeningProfile) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	if _, ok := s.profiles[p.ID]; !ok {
		s.order = append(s.order, p.ID)
	}
	s.profiles[p.ID] = p
	return nil
}

func (s *memProfileStore) Delete(id string) error {
	if _, ok := s.profiles[id]; !ok {
		return domain.ErrProfileNotFound
	}
	delete(s.profiles, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	if s.active == id {
		s.active = ""
	}
	return nil
}

func (s *memProfileStore) SetActive(id string) error { s.active = id; return nil }
func (s *memProfileStore) Active() (string, error)   { return s.active, nil }
func (s *memProfileStore) Close() error              { return nil }

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

func (n *recordingNotifier) moduleIDs() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var ids []string
	for _, e := range n.events {
		if ev, ok := e.Payload.(ModuleStatusEvent); ok {
			ids = append(ids, ev.State.Module.ID)
		}
	}
	sort.Strings(ids)
	return ids
}
