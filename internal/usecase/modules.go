// Package usecase contains application business logic.
package usecase

import (
	"context"
	"fmt"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/eliteGoblin/shield/internal/catalog"
	"github.com/eliteGoblin/shield/internal/domain"
)

// DefaultRefreshConcurrency bounds parallel Query invocations in RefreshAll.
const DefaultRefreshConcurrency = 4

var jsonCodec = jsoniter.ConfigCompatibleWithStandardLibrary

// ModuleStatusEvent is the payload of the moduleStatus channel.
type ModuleStatusEvent struct {
	Feature string             `json:"feature"`
	State   domain.ModuleState `json:"state"`
}

// ModuleService owns the runtime state of one toggle catalog.
// It is the single writer of that state; readers get copies.
type ModuleService struct {
	feature     *catalog.ModuleFeature
	invoker     domain.Invoker
	cache       domain.StatusCache
	notifier    domain.Notifier
	concurrency int
	logger      *zap.Logger

	mu      sync.RWMutex
	states  map[string]*domain.ModuleState
	loading bool
}

// NewModuleService creates a service and seeds every module from the cache.
func NewModuleService(
	feature *catalog.ModuleFeature,
	invoker domain.Invoker,
	cache domain.StatusCache,
	notifier domain.Notifier,
	logger *zap.Logger,
) *ModuleService {
	if notifier == nil {
		notifier = domain.NopNotifier{}
	}
	s := &ModuleService{
		feature:     feature,
		invoker:     invoker,
		cache:       cache,
		notifier:    notifier,
		concurrency: DefaultRefreshConcurrency,
		logger:      logger.With(zap.String("feature", feature.ID())),
		states:      make(map[string]*domain.ModuleState),
	}

	seeded := 0
	for _, m := range feature.Modules() {
		st := &domain.ModuleState{Module: m, Phase: domain.PhaseUnknown}
		if status, ok := cache.Get(domain.CacheKey(feature.ID(), m.ID)); ok {
			st.Status = &status
			st.Phase = domain.PhaseCached
			seeded++
		}
		s.states[m.ID] = st
	}
	s.logger.Debug("module states seeded from cache", zap.Int("cached", seeded))
	return s
}

// WithConcurrency sets the RefreshAll fan-out limit.
func (s *ModuleService) WithConcurrency(n int) *ModuleService {
	if n > 0 {
		s.concurrency = n
	}
	return s
}

// Feature returns the catalog this service manages.
func (s *ModuleService) Feature() *catalog.ModuleFeature {
	return s.feature
}

// List returns every module state in catalog order.
func (s *ModuleService) List() []domain.ModuleState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.ModuleState, 0, len(s.states))
	for _, id := range s.feature.IDs() {
		result = append(result, copyState(s.states[id]))
	}
	return result
}

// Get returns one module state.
func (s *ModuleService) Get(id string) (domain.ModuleState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.states[id]
	if !ok {
		return domain.ModuleState{}, fmt.Errorf("%w: %s/%s", domain.ErrModuleNotFound, s.feature.ID(), id)
	}
	return copyState(st), nil
}

// Loading reports whether a RefreshAll is in progress.
func (s *ModuleService) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// RefreshAll queries every module with bounded concurrency.
// A failing module keeps its previous status; all failures are returned combined.
func (s *ModuleService) RefreshAll(ctx context.Context) error {
	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
	}()

	var (
		g     errgroup.Group
		errMu sync.Mutex
		errs  error
	)
	g.SetLimit(s.concurrency)

	for _, m := range s.feature.Modules() {
		m := m
		g.Go(func() error {
			if _, err := s.refresh(ctx, m); err != nil {
				s.logger.Warn("module query failed",
					zap.String("module", m.ID),
					zap.Error(err))
				errMu.Lock()
				errs = multierr.Append(errs, err)
				errMu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	s.logger.Info("modules refreshed",
		zap.Int("modules", len(s.states)),
		zap.Int("failed", len(multierr.Errors(errs))))
	return errs
}

// Refresh queries one module.
func (s *ModuleService) Refresh(ctx context.Context, id string) (domain.ModuleState, error) {
	m, ok := s.feature.Module(id)
	if !ok {
		return domain.ModuleState{}, fmt.Errorf("%w: %s/%s", domain.ErrModuleNotFound, s.feature.ID(), id)
	}
	return s.refresh(ctx, m)
}

// Toggle runs Enable (enable=true, the risky state) or Disable with
// elevation, then re-queries without elevation to confirm the result.
func (s *ModuleService) Toggle(ctx context.Context, id string, enable bool) (domain.ModuleState, error) {
	m, ok := s.feature.Module(id)
	if !ok {
		return domain.ModuleState{}, fmt.Errorf("%w: %s/%s", domain.ErrModuleNotFound, s.feature.ID(), id)
	}

	s.update(m.ID, func(st *domain.ModuleState) { st.Processing = true })
	defer s.update(m.ID, func(st *domain.ModuleState) { st.Processing = false })

	action := domain.ActionDisable
	if enable {
		action = domain.ActionEnable
	}

	res, err := s.invoker.Execute(ctx, domain.ScriptInvocation{
		Script:            m.Script,
		Args:              []string{"-Action", action},
		RequiresElevation: true,
	})
	if err != nil {
		s.logger.Warn("module toggle failed",
			zap.String("module", m.ID),
			zap.String("action", action),
			zap.Error(err))
		return domain.ModuleState{}, err
	}

	s.logger.Info("module toggled",
		zap.String("module", m.ID),
		zap.String("action", action),
		zap.Bool("elevated_ack", res.IsElevatedAck()))

	return s.refresh(ctx, m)
}

func (s *ModuleService) refresh(ctx context.Context, m domain.ModuleDescriptor) (domain.ModuleState, error) {
	var previous domain.Phase
	s.update(m.ID, func(st *domain.ModuleState) {
		previous = st.Phase
		st.Phase = domain.PhaseQuerying
	})

	status, err := s.query(ctx, m)
	if err != nil {
		s.update(m.ID, func(st *domain.ModuleState) { st.Phase = previous })
		return domain.ModuleState{}, err
	}

	s.cache.Put(domain.CacheKey(s.feature.ID(), m.ID), status)
	st := s.update(m.ID, func(st *domain.ModuleState) {
		st.Status = &status
		st.Phase = domain.PhaseFresh
	})
	s.notifier.Publish(domain.Event{
		Channel: domain.ChannelModuleStatus,
		Payload: ModuleStatusEvent{Feature: s.feature.ID(), State: st},
	})
	return st, nil
}

func (s *ModuleService) query(ctx context.Context, m domain.ModuleDescriptor) (domain.ModuleStatus, error) {
	payload, err := s.invoker.Query(ctx, m.Script, "-Action", domain.ActionQuery)
	if err != nil {
		return domain.ModuleStatus{}, err
	}
	var status domain.ModuleStatus
	if err := jsonCodec.Unmarshal(payload, &status); err != nil {
		return domain.ModuleStatus{}, &domain.InvocationError{
			Script: m.Script,
			Err:    fmt.Errorf("unexpected query result: %w", err),
		}
	}
	return status, nil
}

// update applies fn under the lock and returns a copy of the new state.
func (s *ModuleService) update(id string, fn func(*domain.ModuleState)) domain.ModuleState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.states[id]
	fn(st)
	return copyState(st)
}

func copyState(st *domain.ModuleState) domain.ModuleState {
	c := *st
	if st.Status != nil {
		status := *st.Status
		c.Status = &status
	}
	return c
}
