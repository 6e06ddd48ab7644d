// Package daemon runs the bridge host process.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/eliteGoblin/shield/internal/domain"
	"github.com/eliteGoblin/shield/internal/infra"
)

// ErrAlreadyRunning is returned when another live bridge is registered.
var ErrAlreadyRunning = errors.New("bridge already running")

// BridgeServer serves the authenticated bridge API.
type BridgeServer interface {
	Serve(ln net.Listener) error
	Shutdown(ctx context.Context) error
}

// TokenIssuer mints the session token published in the registry.
type TokenIssuer interface {
	Issue(pid int, ttl time.Duration) (string, error)
}

// Refresher re-queries every module of one feature.
type Refresher interface {
	RefreshAll(ctx context.Context) error
}

// UpdateChecker is the part of the updater the host drives on a schedule.
type UpdateChecker interface {
	CheckForUpdates(ctx context.Context) (*infra.UpdateCheck, error)
	CleanupPrevious()
}

// HostConfig holds host loop configuration.
type HostConfig struct {
	ListenAddr        string
	HeartbeatInterval time.Duration // How often to touch the registry
	UpdateInterval    time.Duration // 0 disables periodic update checks
	ShutdownTimeout   time.Duration
	ReplacePID        int           // PID of a previous instance to wait out
	ReplaceWait       time.Duration // How long to wait for ReplacePID to exit
	RefreshOnStart    bool
	Mode              domain.ExecMode
	Version           string
}

// DefaultHostConfig returns default host configuration.
func DefaultHostConfig() HostConfig {
	return HostConfig{
		HeartbeatInterval: 30 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		ReplaceWait:       30 * time.Second,
		RefreshOnStart:    true,
		Mode:              domain.ModeStandard,
	}
}

// Host owns the bridge process lifecycle: it registers the instance, serves
// the API, keeps the heartbeat fresh, and tears everything down on exit.
type Host struct {
	config         HostConfig
	registry       domain.InstanceRegistry
	processManager domain.ProcessManager
	tokens         TokenIssuer
	refreshers     map[string]Refresher
	updater        UpdateChecker
	closers        []io.Closer
	logger         *zap.Logger

	stopOnce sync.Once
	stop     chan struct{}

	mu   sync.Mutex
	addr string
}

// NewHost creates a host. closers run in order after the server stops.
func NewHost(
	config HostConfig,
	registry domain.InstanceRegistry,
	pm domain.ProcessManager,
	tokens TokenIssuer,
	logger *zap.Logger,
) *Host {
	return &Host{
		config:         config,
		registry:       registry,
		processManager: pm,
		tokens:         tokens,
		refreshers:     make(map[string]Refresher),
		logger:         logger,
		stop:           make(chan struct{}),
	}
}

// WithRefresher adds a feature refreshed in the background on start.
func (h *Host) WithRefresher(feature string, r Refresher) *Host {
	h.refreshers[feature] = r
	return h
}

// WithUpdater enables staged-update cleanup and periodic checks.
func (h *Host) WithUpdater(u UpdateChecker) *Host {
	h.updater = u
	return h
}

// WithClosers registers resources released on shutdown.
func (h *Host) WithClosers(closers ...io.Closer) *Host {
	h.closers = append(h.closers, closers...)
	return h
}

// RequestShutdown asks Run to return. Safe to call more than once.
func (h *Host) RequestShutdown() {
	h.stopOnce.Do(func() { close(h.stop) })
}

// Addr returns the bound listen address once Run has started serving.
func (h *Host) Addr() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.addr
}

// Run starts the bridge and blocks until ctx is canceled, RequestShutdown
// is called, or the server fails.
func (h *Host) Run(ctx context.Context, server BridgeServer) (err error) {
	pid := h.processManager.GetCurrentPID()

	if h.config.ReplacePID > 0 && h.config.ReplacePID != pid {
		if err := h.waitForExit(ctx, h.config.ReplacePID); err != nil {
			return err
		}
	}

	if existing, gerr := h.registry.Get(); gerr == nil && existing != nil && existing.PID != pid && h.registry.IsAlive() {
		return fmt.Errorf("%w: pid %d on %s", ErrAlreadyRunning, existing.PID, existing.Addr)
	}

	ln, err := net.Listen("tcp", h.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", h.config.ListenAddr, err)
	}
	addr := ln.Addr().String()
	h.mu.Lock()
	h.addr = addr
	h.mu.Unlock()

	token, err := h.tokens.Issue(pid, 0)
	if err != nil {
		ln.Close()
		return fmt.Errorf("issue session token: %w", err)
	}

	if err := h.registry.Register(domain.BridgeInstance{
		PID:     pid,
		Addr:    addr,
		Token:   token,
		Mode:    h.config.Mode,
		Version: h.config.Version,
	}); err != nil {
		ln.Close()
		h.logger.Error("failed to register bridge", zap.Error(err))
		return err
	}

	h.logger.Info("bridge host started",
		zap.Int("pid", pid),
		zap.String("addr", addr),
		zap.String("mode", string(h.config.Mode)))

	serveErr := make(chan error, 1)
	go func() { serveErr <- server.Serve(ln) }()

	runCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
		err = multierr.Append(err, h.teardown(server, pid))
	}()

	if h.updater != nil {
		h.updater.CleanupPrevious()
	}
	if h.config.RefreshOnStart {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.refreshAll(runCtx)
		}()
	}

	heartbeatTicker := time.NewTicker(h.config.HeartbeatInterval)
	defer heartbeatTicker.Stop()

	var updateC <-chan time.Time
	if h.updater != nil && h.config.UpdateInterval > 0 {
		updateTicker := time.NewTicker(h.config.UpdateInterval)
		defer updateTicker.Stop()
		updateC = updateTicker.C
	}

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("bridge host stopping", zap.String("reason", "context canceled"))
			return nil

		case <-h.stop:
			h.logger.Info("bridge host stopping", zap.String("reason", "shutdown requested"))
			return nil

		case serr := <-serveErr:
			if serr != nil {
				h.logger.Error("bridge server failed", zap.Error(serr))
			}
			return serr

		case <-heartbeatTicker.C:
			if err := h.registry.UpdateHeartbeat(); err != nil {
				h.logger.Warn("failed to update heartbeat", zap.Error(err))
			}

		case <-updateC:
			h.checkForUpdates(runCtx)
		}
	}
}

// waitForExit polls until pid is gone. A relaunched instance uses it to let
// the instance it replaces release the port and registry.
func (h *Host) waitForExit(ctx context.Context, pid int) error {
	h.logger.Info("waiting for previous instance to exit", zap.Int("pid", pid))
	deadline := time.NewTimer(h.config.ReplaceWait)
	defer deadline.Stop()
	poll := time.NewTicker(100 * time.Millisecond)
	defer poll.Stop()

	for h.processManager.IsRunning(pid) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("%w: previous instance %d did not exit", ErrAlreadyRunning, pid)
		case <-poll.C:
		}
	}
	return nil
}

func (h *Host) refreshAll(ctx context.Context) {
	for feature, r := range h.refreshers {
		if ctx.Err() != nil {
			return
		}
		if err := r.RefreshAll(ctx); err != nil {
			h.logger.Warn("initial refresh incomplete",
				zap.String("feature", feature),
				zap.Error(err))
			continue
		}
		h.logger.Debug("initial refresh completed", zap.String("feature", feature))
	}
}

func (h *Host) checkForUpdates(ctx context.Context) {
	check, err := h.updater.CheckForUpdates(ctx)
	if err != nil {
		return
	}
	if check.Available {
		h.logger.Info("update available",
			zap.String("current", check.Current),
			zap.String("latest", check.Latest),
			zap.Bool("downloaded", check.Downloaded))
	}
}

func (h *Host) teardown(server BridgeServer, pid int) error {
	ctx, cancel := context.WithTimeout(context.Background(), h.config.ShutdownTimeout)
	defer cancel()

	err := server.Shutdown(ctx)
	for _, c := range h.closers {
		err = multierr.Append(err, c.Close())
	}

	// A replacement may already have registered itself.
	if instance, gerr := h.registry.Get(); gerr == nil && instance != nil && instance.PID == pid {
		err = multierr.Append(err, h.registry.Clear())
	}

	if err != nil {
		h.logger.Warn("bridge host shutdown incomplete", zap.Error(err))
	} else {
		h.logger.Info("bridge host stopped")
	}
	return err
}
