package infra

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/Masterminds/semver/v3"
	"go.uber.org/zap"

	"github.com/eliteGoblin/shield/internal/domain"
)

// ErrNoStagedUpdate is returned by Install when nothing was downloaded yet.
var ErrNoStagedUpdate = errors.New("no update downloaded")

// UpdateCheck is the outcome of CheckForUpdates.
type UpdateCheck struct {
	Current     string `json:"current"`
	Latest      string `json:"latest"`
	ReleaseName string `json:"releaseName"`
	Available   bool   `json:"available"`
	Downloaded  bool   `json:"downloaded"`
}

// StagedUpdate is a downloaded binary waiting for Install.
type StagedUpdate struct {
	Version string
	Path    string
}

// Updater checks GitHub releases, stages the platform binary, and swaps it
// in on request. Progress goes out on the autoUpdateStatus channel.
type Updater struct {
	downloader     *GitHubDownloader
	notifier       domain.Notifier
	currentVersion string
	stageDir       string
	exePath        string
	goos           string
	goarch         string
	logger         *zap.Logger

	mu     sync.Mutex
	staged *StagedUpdate
}

// NewUpdater creates an updater that stages downloads under stageDir.
func NewUpdater(
	downloader *GitHubDownloader,
	notifier domain.Notifier,
	currentVersion string,
	stageDir string,
	logger *zap.Logger,
) *Updater {
	exe, err := os.Executable()
	if err == nil {
		if resolved, rerr := filepath.EvalSymlinks(exe); rerr == nil {
			exe = resolved
		}
	}
	return &Updater{
		downloader:     downloader,
		notifier:       notifier,
		currentVersion: currentVersion,
		stageDir:       stageDir,
		exePath:        exe,
		goos:           runtime.GOOS,
		goarch:         runtime.GOARCH,
		logger:         logger,
	}
}

// WithExecutable overrides the binary Install replaces (for testing).
func (u *Updater) WithExecutable(path string) *Updater {
	u.exePath = path
	return u
}

// ExecutablePath returns the binary Install replaces.
func (u *Updater) ExecutablePath() string {
	return u.exePath
}

// CheckForUpdates compares the latest release with the running version and
// downloads the platform binary when a newer one exists.
func (u *Updater) CheckForUpdates(ctx context.Context) (*UpdateCheck, error) {
	u.publish(domain.UpdateStatus{Status: domain.UpdateChecking})

	result, err := u.checkAndStage(ctx)
	if err != nil {
		u.logger.Warn("update check failed", zap.Error(err))
		u.publish(domain.UpdateStatus{Status: domain.UpdateError, Error: err.Error()})
		return nil, err
	}
	return result, nil
}

func (u *Updater) checkAndStage(ctx context.Context) (*UpdateCheck, error) {
	release, err := u.downloader.GetLatestRelease(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest release: %w", err)
	}

	result := &UpdateCheck{
		Current:     u.currentVersion,
		Latest:      release.TagName,
		ReleaseName: release.Name,
	}
	if result.ReleaseName == "" {
		result.ReleaseName = release.TagName
	}
	result.Available = isNewerVersion(release.TagName, u.currentVersion)

	if !result.Available {
		u.logger.Debug("no update available",
			zap.String("current", u.currentVersion),
			zap.String("latest", release.TagName))
		u.publish(domain.UpdateStatus{Status: domain.UpdateNotAvailable})
		return result, nil
	}

	u.logger.Info("update available",
		zap.String("current", u.currentVersion),
		zap.String("latest", release.TagName))
	u.publish(domain.UpdateStatus{Status: domain.UpdateAvailable, ReleaseName: result.ReleaseName})

	if staged := u.Staged(); staged != nil && staged.Version == release.TagName {
		result.Downloaded = true
		u.publish(domain.UpdateStatus{Status: domain.UpdateDownloaded, ReleaseName: result.ReleaseName})
		return result, nil
	}

	asset, err := FindAsset(release, u.goos, u.goarch)
	if err != nil {
		return nil, err
	}

	name := binaryName
	if u.goos == "windows" {
		name += ".exe"
	}
	dest := filepath.Join(u.stageDir, name)
	if err := u.downloader.Download(ctx, asset, dest); err != nil {
		return nil, err
	}

	u.mu.Lock()
	u.staged = &StagedUpdate{Version: release.TagName, Path: dest}
	u.mu.Unlock()

	u.logger.Info("update downloaded", zap.String("version", release.TagName), zap.String("path", dest))
	result.Downloaded = true
	u.publish(domain.UpdateStatus{Status: domain.UpdateDownloaded, ReleaseName: result.ReleaseName})
	return result, nil
}

// Staged returns the downloaded update, if any.
func (u *Updater) Staged() *StagedUpdate {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.staged == nil {
		return nil
	}
	s := *u.staged
	return &s
}

// Install swaps the running executable for the staged binary. The running
// image is moved aside to <exe>.old, which works on Windows too, and is
// restored if the copy fails. The caller starts the new binary and exits.
func (u *Updater) Install() (string, error) {
	staged := u.Staged()
	if staged == nil {
		return "", ErrNoStagedUpdate
	}
	if u.exePath == "" {
		return "", errors.New("cannot determine own executable path")
	}

	old := u.exePath + ".old"
	_ = os.Remove(old)

	if err := os.Rename(u.exePath, old); err != nil {
		return "", fmt.Errorf("move current binary aside: %w", err)
	}
	if err := copyFile(staged.Path, u.exePath); err != nil {
		if rbErr := os.Rename(old, u.exePath); rbErr != nil {
			return "", fmt.Errorf("critical: install failed and rollback failed: install=%w, rollback=%v", err, rbErr)
		}
		return "", fmt.Errorf("install new binary: %w", err)
	}
	_ = os.Chmod(u.exePath, 0755)

	u.logger.Info("update installed", zap.String("version", staged.Version), zap.String("path", u.exePath))

	u.mu.Lock()
	u.staged = nil
	u.mu.Unlock()
	_ = os.Remove(staged.Path)

	return u.exePath, nil
}

// CleanupPrevious removes the binary left aside by an earlier Install.
func (u *Updater) CleanupPrevious() {
	if u.exePath == "" {
		return
	}
	if err := os.Remove(u.exePath + ".old"); err == nil {
		u.logger.Debug("removed previous binary", zap.String("path", u.exePath+".old"))
	}
}

func (u *Updater) publish(status domain.UpdateStatus) {
	if u.notifier != nil {
		u.notifier.Publish(domain.Event{Channel: domain.ChannelAutoUpdateStatus, Payload: status})
	}
}

// isNewerVersion reports whether latest is a higher semver than current.
// A current version that is not semver (e.g. "dev") never updates.
func isNewerVersion(latest, current string) bool {
	lv, err := semver.NewVersion(latest)
	if err != nil {
		return false
	}
	cv, err := semver.NewVersion(current)
	if err != nil {
		return false
	}
	return lv.GreaterThan(cv)
}

// copyFile copies a file from src to dst using atomic write pattern.
// Writes to temp file first, syncs, then renames to avoid corruption.
func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	// Create temp file in same directory for atomic rename
	tmpFile, err := os.CreateTemp(filepath.Dir(dst), ".shieldd-copy-*")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err = io.Copy(tmpFile, sourceFile); err != nil {
		tmpFile.Close()
		return err
	}
	if err = tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return err
	}
	tmpFile.Close()

	if err = os.Rename(tmpPath, dst); err != nil {
		return err
	}
	success = true
	return nil
}
