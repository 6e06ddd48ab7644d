package infra

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	DefaultUpdateOwner = "Kryklin"
	DefaultUpdateRepo  = "shield"

	githubAPIBase    = "https://api.github.com"
	githubAPITimeout = 30 * time.Second
	downloadTimeout  = 5 * time.Minute
	binaryName       = "shieldd"
)

// GitHubRelease represents a GitHub release response.
type GitHubRelease struct {
	TagName string        `json:"tag_name"`
	Name    string        `json:"name"`
	HTMLURL string        `json:"html_url"`
	Assets  []GitHubAsset `json:"assets"`
}

// GitHubAsset represents a release asset.
type GitHubAsset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
}

// GitHubDownloader fetches release metadata and binaries from GitHub.
type GitHubDownloader struct {
	client  *http.Client
	baseURL string
	owner   string
	repo    string
}

// NewGitHubDownloader creates a downloader for owner/repo.
// The client has no timeout; each request carries its own context deadline.
func NewGitHubDownloader(owner, repo string) *GitHubDownloader {
	if owner == "" {
		owner = DefaultUpdateOwner
	}
	if repo == "" {
		repo = DefaultUpdateRepo
	}
	return &GitHubDownloader{
		client:  &http.Client{},
		baseURL: githubAPIBase,
		owner:   owner,
		repo:    repo,
	}
}

// WithBaseURL points the downloader at another API host (for testing).
func (d *GitHubDownloader) WithBaseURL(baseURL string) *GitHubDownloader {
	d.baseURL = strings.TrimRight(baseURL, "/")
	return d
}

// GetLatestRelease fetches the latest release info.
func (d *GitHubDownloader) GetLatestRelease(ctx context.Context) (*GitHubRelease, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/releases/latest", d.baseURL, d.owner, d.repo)

	ctx, cancel := context.WithTimeout(ctx, githubAPITimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", binaryName)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch release: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GitHub API returned status %d", resp.StatusCode)
	}

	var release GitHubRelease
	if err := jsonCodec.NewDecoder(resp.Body).Decode(&release); err != nil {
		return nil, fmt.Errorf("failed to parse release: %w", err)
	}
	return &release, nil
}

// FindAsset picks the release asset built for goos/goarch.
func FindAsset(release *GitHubRelease, goos, goarch string) (*GitHubAsset, error) {
	for i := range release.Assets {
		name := strings.ToLower(release.Assets[i].Name)
		if strings.Contains(name, goos) && strings.Contains(name, goarch) {
			return &release.Assets[i], nil
		}
	}
	return nil, fmt.Errorf("no asset found for %s/%s", goos, goarch)
}

// Download fetches asset into destPath. Archives (.tar.gz) are unpacked and
// only the shieldd binary is kept; anything else is taken as the binary itself.
func (d *GitHubDownloader) Download(ctx context.Context, asset *GitHubAsset, destPath string) error {
	ctx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, asset.BrowserDownloadURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create download request: %w", err)
	}
	req.Header.Set("User-Agent", binaryName)

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download asset: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download returned status %d", resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0700); err != nil {
		return err
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".shieldd-download-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmpFile, resp.Body); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write download: %w", err)
	}
	tmpFile.Close()

	if strings.HasSuffix(strings.ToLower(asset.Name), ".tar.gz") {
		if err := extractBinary(tmpPath, destPath); err != nil {
			return fmt.Errorf("failed to extract binary: %w", err)
		}
	} else if err := copyFile(tmpPath, destPath); err != nil {
		return err
	}

	return os.Chmod(destPath, 0755)
}

// extractBinary extracts the shieldd binary from a tar.gz archive.
func extractBinary(archivePath, destPath string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	gzr, err := gzip.NewReader(f)
	if err != nil {
		return err
	}
	defer gzr.Close()

	tr := tar.NewReader(gzr)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		base := filepath.Base(header.Name)
		if header.Typeflag != tar.TypeReg || (base != binaryName && base != binaryName+".exe") {
			continue
		}

		outFile, err := os.Create(destPath)
		if err != nil {
			return err
		}
		if _, err := io.Copy(outFile, tr); err != nil {
			outFile.Close()
			return err
		}
		return outFile.Close()
	}

	return fmt.Errorf("%s binary not found in archive", binaryName)
}
