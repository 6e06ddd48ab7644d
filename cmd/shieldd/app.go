package main

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/eliteGoblin/shield/internal/bridge"
	"github.com/eliteGoblin/shield/internal/catalog"
	"github.com/eliteGoblin/shield/internal/config"
	"github.com/eliteGoblin/shield/internal/daemon"
	"github.com/eliteGoblin/shield/internal/domain"
	"github.com/eliteGoblin/shield/internal/infra"
	"github.com/eliteGoblin/shield/internal/usecase"
)

// app holds the wired components shared by serve and the one-shot commands.
type app struct {
	cfg      config.Config
	mode     *infra.ExecModeConfig
	logger   *zap.Logger
	pm       domain.ProcessManager
	registry domain.InstanceRegistry
	runner   domain.CommandRunner
	prober   domain.PrivilegeProber
	invoker  *infra.ScriptInvoker
	cache    *infra.StateCache
	profiles *infra.EncryptedProfileStore
	catalog  *catalog.Registry
	modules  map[string]*usecase.ModuleService
	updater  *infra.Updater
	notifier domain.Notifier
	api      *bridge.API
}

type appOptions struct {
	notifier domain.Notifier
	shutdown func()
	extra    []string // flags forwarded to relaunched instances
}

func loadConfig() (config.Config, error) {
	var exeDir string
	if exe, err := os.Executable(); err == nil {
		exeDir = filepath.Dir(exe)
	}
	cfg, err := config.Load(exeDir)
	if err != nil {
		return config.Config{}, err
	}
	if flagDataDir != "" {
		cfg.DataDir = flagDataDir
	}
	if flagScriptsDir != "" {
		cfg.ScriptsDir = flagScriptsDir
	}
	if flagListen != "" {
		cfg.ListenAddr = flagListen
	}
	return cfg, nil
}

func newApp(cfg config.Config, logger *zap.Logger, opts appOptions) (*app, error) {
	if opts.notifier == nil {
		opts.notifier = domain.NopNotifier{}
	}

	a := &app{
		cfg:      cfg,
		logger:   logger,
		pm:       infra.NewProcessManager(),
		runner:   infra.NewCommandRunner(),
		prober:   infra.NewPrivilegeProber(),
		catalog:  catalog.NewRegistry(),
		modules:  make(map[string]*usecase.ModuleService),
		notifier: opts.notifier,
	}
	a.mode = infra.DetectExecMode(a.prober, cfg.DataDir)
	if err := os.MkdirAll(a.mode.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	a.registry = infra.NewFileRegistry(a.mode, a.pm)

	interp, err := infra.NewInterpreterResolver().Resolve()
	if err != nil {
		// Scripts fail individually; cached state and profiles stay usable.
		logger.Warn("script interpreter unavailable", zap.Error(err))
		interp = infra.NewPwshStrategy().Interpreter()
		interp.Path = interp.Name
	}
	a.invoker = infra.NewScriptInvoker(cfg.EffectiveScriptsDir(), interp, a.runner, a.prober, logger)

	a.cache = infra.NewStateCache(infra.NewFileStateStore(a.mode.StateFile), cfg.CacheDebounce, logger)

	key, err := infra.EnsureKey(infra.NewFileKeyProvider(a.mode.DataDir))
	if err != nil {
		return nil, fmt.Errorf("profile key: %w", err)
	}
	a.profiles, err = infra.NewEncryptedProfileStore(a.mode.ProfileDB, key)
	if err != nil {
		return nil, fmt.Errorf("open profile store: %w", err)
	}

	for _, f := range a.catalog.ModuleFeatures() {
		a.modules[f.ID()] = usecase.NewModuleService(f, a.invoker, a.cache, a.notifier, logger).
			WithConcurrency(cfg.RefreshConcurrency)
	}

	hardening := a.modules[catalog.HardeningFeatureID]
	a.updater = infra.NewUpdater(
		infra.NewGitHubDownloader(cfg.UpdateOwner, cfg.UpdateRepo),
		a.notifier,
		Version,
		filepath.Join(a.mode.DataDir, "updates"),
		logger,
	)

	a.api = bridge.NewAPI(bridge.Deps{
		Prober:   a.prober,
		Scripts:  a.invoker,
		Cache:    a.cache,
		Catalog:  a.catalog,
		Modules:  a.modules,
		Actions:  usecase.NewActionService(a.catalog, a.invoker, logger),
		Profiles: usecase.NewProfileService(hardening, a.profiles, logger),
		Updater:  a.updater,
		Notifier: a.notifier,
		Relaunch: daemon.Relauncher(a.runner, opts.extra...),
		Restart:  daemon.Restarter(opts.extra...),
		Shutdown: opts.shutdown,
		HostInfo: infra.ReadHostInfo,
		Build:    bridge.BuildInfo{Version: Version, Commit: Commit, BuildTime: BuildTime},
	}, logger)

	return a, nil
}

// close flushes the state cache and closes the profile database.
func (a *app) close() error {
	return multierr.Combine(a.cache.Close(), a.profiles.Close())
}

// liveBridge returns the registered bridge when another running process owns
// the data directory.
func liveBridge(registry domain.InstanceRegistry) *domain.BridgeInstance {
	instance, err := registry.Get()
	if err != nil || instance == nil || instance.PID == os.Getpid() {
		return nil
	}
	if !registry.IsAlive() {
		return nil
	}
	return instance
}

// warnIfBridgeRunning flags one-shot changes a running bridge may overwrite
// with its next cache flush.
func (a *app) warnIfBridgeRunning() {
	if instance := liveBridge(a.registry); instance != nil {
		a.logger.Warn("a bridge is running on the same data directory; changes made here may be overwritten by its cache",
			zap.Int("pid", instance.PID),
			zap.String("addr", instance.Addr))
	}
}
