// Package bridge exposes the privileged operations to the UI shell: a
// request/response API served over loopback HTTP and a one-way event stream.
package bridge

import (
	"context"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/shield/internal/catalog"
	"github.com/eliteGoblin/shield/internal/domain"
	"github.com/eliteGoblin/shield/internal/infra"
	"github.com/eliteGoblin/shield/internal/usecase"
)

// Security posture values.
const (
	PostureSecure  = "SECURE"
	PostureAtRisk  = "AT RISK"
	PostureUnknown = "UNKNOWN"
)

// ScriptRunner runs named scripts with optional elevation.
type ScriptRunner interface {
	Invoke(ctx context.Context, name string, args []string, requiresElevation bool) (domain.InvocationResult, error)
}

// Updater checks for and installs new releases.
type Updater interface {
	CheckForUpdates(ctx context.Context) (*infra.UpdateCheck, error)
	Install() (string, error)
}

// StateCache is the persisted module status cache.
type StateCache interface {
	Snapshot() domain.StateSnapshot
	Replace(snapshot domain.StateSnapshot)
}

// BuildInfo identifies the running binary.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
}

// SystemStatus is the dashboard summary.
type SystemStatus struct {
	Posture        string          `json:"status"`
	HardeningLevel int             `json:"hardeningLevel"`
	LastScan       *time.Time      `json:"lastScan,omitempty"`
	Elevated       bool            `json:"elevated"`
	Host           *infra.HostInfo `json:"host,omitempty"`
}

// ProfileList is the profiles listing with the active marker.
type ProfileList struct {
	Active   string                    `json:"active"`
	Profiles []domain.HardeningProfile `json:"profiles"`
}

// Deps wires the API to the rest of the daemon.
type Deps struct {
	Prober   domain.PrivilegeProber
	Scripts  ScriptRunner
	Cache    StateCache
	Catalog  *catalog.Registry
	Modules  map[string]*usecase.ModuleService
	Actions  *usecase.ActionService
	Profiles *usecase.ProfileService
	Updater  Updater
	Notifier domain.Notifier

	// Relaunch starts an elevated copy of the daemon.
	Relaunch func(ctx context.Context) error
	// Restart starts the given executable in place of this daemon.
	Restart func(exe string) error
	// Shutdown asks the daemon to stop. It must not block.
	Shutdown func()
	// HostInfo reads machine details; nil skips them.
	HostInfo func(ctx context.Context) (*infra.HostInfo, error)

	Build BuildInfo
}

// API implements every bridge operation. Transport lives in Server.
type API struct {
	deps   Deps
	window *WindowState
	logger *zap.Logger
}

// NewAPI creates the bridge API.
func NewAPI(deps Deps, logger *zap.Logger) *API {
	if deps.Notifier == nil {
		deps.Notifier = domain.NopNotifier{}
	}
	if deps.Shutdown == nil {
		deps.Shutdown = func() {}
	}
	if deps.Build.GoVersion == "" {
		deps.Build.GoVersion = runtime.Version()
	}
	return &API{
		deps:   deps,
		window: NewWindowState(deps.Notifier),
		logger: logger,
	}
}

// Window returns the window control state.
func (a *API) Window() *WindowState {
	return a.window
}

// GetSystemStatus summarizes the hardening posture from cached module states.
func (a *API) GetSystemStatus(ctx context.Context) (*SystemStatus, error) {
	status := &SystemStatus{
		Posture:  PostureUnknown,
		Elevated: a.deps.Prober.IsElevated(),
	}

	if svc, ok := a.deps.Modules[catalog.HardeningFeatureID]; ok {
		status.Posture, status.HardeningLevel = posture(svc.List())
	}
	if a.deps.Cache != nil {
		if ts := a.deps.Cache.Snapshot().Timestamp; !ts.IsZero() {
			status.LastScan = &ts
		}
	}
	if a.deps.HostInfo != nil {
		host, err := a.deps.HostInfo(ctx)
		if err != nil {
			a.logger.Debug("host info unavailable", zap.Error(err))
		} else {
			status.Host = host
		}
	}
	return status, nil
}

// posture reports SECURE only when every module is known and hardened.
// The level is the share of hardened modules over the whole catalog.
func posture(states []domain.ModuleState) (string, int) {
	if len(states) == 0 {
		return PostureUnknown, 0
	}
	known, hardened := 0, 0
	for _, st := range states {
		if st.Status == nil {
			continue
		}
		known++
		if st.Status.Hardened() {
			hardened++
		}
	}
	level := hardened * 100 / len(states)
	switch {
	case known == 0:
		return PostureUnknown, 0
	case hardened == len(states):
		return PostureSecure, level
	default:
		return PostureAtRisk, level
	}
}

// GetSystemInfo runs the system info script.
func (a *API) GetSystemInfo(ctx context.Context) (domain.InvocationResult, error) {
	return a.deps.Actions.Run(ctx, catalog.SystemFeatureID, catalog.SystemInfoAction, nil)
}

// GetFirewallStatus runs the firewall status script.
func (a *API) GetFirewallStatus(ctx context.Context) (domain.InvocationResult, error) {
	return a.deps.Actions.Run(ctx, catalog.SystemFeatureID, catalog.FirewallStatusAction, nil)
}

// RunScript is the generic script call.
func (a *API) RunScript(ctx context.Context, name string, args []string, requiresAdmin bool) (domain.InvocationResult, error) {
	return a.deps.Scripts.Invoke(ctx, name, args, requiresAdmin)
}

// IsProcessAdmin reports whether the daemon itself runs elevated.
func (a *API) IsProcessAdmin() bool {
	return a.deps.Prober.IsElevated()
}

// RelaunchAsAdmin starts an elevated daemon and stops this one. On failure
// this instance keeps running.
func (a *API) RelaunchAsAdmin(ctx context.Context) error {
	if a.deps.Relaunch == nil {
		return errUnsupported("relaunch")
	}
	if err := a.deps.Relaunch(ctx); err != nil {
		a.logger.Warn("elevated relaunch failed", zap.Error(err))
		return err
	}
	a.logger.Info("elevated instance started, shutting down")
	a.deps.Shutdown()
	return nil
}

// CheckForUpdates queries the release feed and stages a newer build.
func (a *API) CheckForUpdates(ctx context.Context) (*infra.UpdateCheck, error) {
	if a.deps.Updater == nil {
		return nil, errUnsupported("updates")
	}
	return a.deps.Updater.CheckForUpdates(ctx)
}

// QuitAndInstall swaps in the staged build, starts it, and stops this daemon.
func (a *API) QuitAndInstall(ctx context.Context) error {
	if a.deps.Updater == nil || a.deps.Restart == nil {
		return errUnsupported("updates")
	}
	exe, err := a.deps.Updater.Install()
	if err != nil {
		return err
	}
	if err := a.deps.Restart(exe); err != nil {
		return err
	}
	a.logger.Info("updated instance started, shutting down", zap.String("exe", exe))
	a.deps.Shutdown()
	return nil
}

// GetStateCache returns the whole cache document.
func (a *API) GetStateCache() domain.StateSnapshot {
	return a.deps.Cache.Snapshot()
}

// SaveStateCache replaces the cache document; the write is debounced.
func (a *API) SaveStateCache(snapshot domain.StateSnapshot) {
	if snapshot.Settings == nil {
		snapshot.Settings = make(map[string]domain.ModuleStatus)
	}
	a.deps.Cache.Replace(snapshot)
}

// Minimize records the window as minimized.
func (a *API) Minimize() {
	a.window.Minimize()
}

// ToggleMaximize flips the maximized state and returns the new value.
func (a *API) ToggleMaximize() bool {
	return a.window.ToggleMaximize()
}

// Close stops the daemon.
func (a *API) Close() {
	a.logger.Info("close requested")
	a.deps.Shutdown()
}

// Features lists every catalog feature.
func (a *API) Features() []catalog.Summary {
	return a.deps.Catalog.Summaries()
}

// Modules returns the module states of a toggle feature.
func (a *API) Modules(feature string) ([]domain.ModuleState, error) {
	svc, err := a.moduleService(feature)
	if err != nil {
		return nil, err
	}
	return svc.List(), nil
}

// RefreshFeature re-queries every module of a toggle feature. Modules that
// failed keep their previous state; the error lists them.
func (a *API) RefreshFeature(ctx context.Context, feature string) ([]domain.ModuleState, error) {
	svc, err := a.moduleService(feature)
	if err != nil {
		return nil, err
	}
	err = svc.RefreshAll(ctx)
	return svc.List(), err
}

// ToggleModule enables (risky) or disables one module.
func (a *API) ToggleModule(ctx context.Context, feature, id string, enable bool) (domain.ModuleState, error) {
	svc, err := a.moduleService(feature)
	if err != nil {
		return domain.ModuleState{}, err
	}
	return svc.Toggle(ctx, id, enable)
}

// Actions lists the actions of an action feature.
func (a *API) Actions(feature string) ([]catalog.ActionSpec, error) {
	af, err := a.deps.Catalog.ActionFeature(feature)
	if err != nil {
		return nil, err
	}
	return af.Actions(), nil
}

// RunAction runs one catalog action.
func (a *API) RunAction(ctx context.Context, feature, action string, params map[string]string) (domain.InvocationResult, error) {
	return a.deps.Actions.Run(ctx, feature, action, params)
}

// ListProfiles returns system and user profiles.
func (a *API) ListProfiles() (*ProfileList, error) {
	profiles, err := a.deps.Profiles.List()
	if err != nil {
		return nil, err
	}
	active, err := a.deps.Profiles.Active()
	if err != nil {
		a.logger.Warn("failed to read active profile", zap.Error(err))
	}
	return &ProfileList{Active: active, Profiles: profiles}, nil
}

// SaveProfile captures the current hardening state as a new profile.
func (a *API) SaveProfile(name string) (*domain.HardeningProfile, error) {
	return a.deps.Profiles.Save(name)
}

// ApplyProfile drives the hardening modules to a profile.
func (a *API) ApplyProfile(ctx context.Context, id string) (*usecase.ApplyResult, error) {
	return a.deps.Profiles.Apply(ctx, id)
}

// ImportProfile stores a profile document.
func (a *API) ImportProfile(doc domain.ProfileDocument) (*domain.HardeningProfile, error) {
	return a.deps.Profiles.Import(doc)
}

// ExportProfile returns a profile document.
func (a *API) ExportProfile(id string) (domain.ProfileDocument, error) {
	return a.deps.Profiles.Export(id)
}

// DeleteProfile removes a user profile.
func (a *API) DeleteProfile(id string) error {
	return a.deps.Profiles.Delete(id)
}

// Version returns build metadata.
func (a *API) Version() BuildInfo {
	return a.deps.Build
}

func (a *API) moduleService(feature string) (*usecase.ModuleService, error) {
	if _, err := a.deps.Catalog.ModuleFeature(feature); err != nil {
		return nil, err
	}
	svc, ok := a.deps.Modules[feature]
	if !ok {
		return nil, errUnsupported(feature)
	}
	return svc, nil
}
