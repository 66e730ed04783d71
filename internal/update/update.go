// Package update checks GitHub for newer tombstone releases.
package update

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/pthm/tombstone/internal/version"
)

const (
	// DefaultReleaseURL is the GitHub endpoint for the latest release.
	DefaultReleaseURL = "https://api.github.com/repos/pthm/tombstone/releases/latest"

	cacheTTL  = 24 * time.Hour
	cacheFile = "update-check.json"
)

// Info contains update check results
type Info struct {
	LatestVersion   string    `json:"latest_version"`
	CurrentVersion  string    `json:"current_version"`
	CheckedAt       time.Time `json:"checked_at"`
	UpdateAvailable bool      `json:"update_available"`
}

// githubRelease represents the GitHub API response
type githubRelease struct {
	TagName string `json:"tag_name"`
}

// Checker looks up the latest release, caching the answer on disk.
type Checker struct {
	ReleaseURL string
	Client     *http.Client
	// CacheDir holds the cache file. Empty means DefaultCacheDir.
	CacheDir string
	// Current is the running version. Empty means version.Version.
	Current string

	now func() time.Time
}

// NewChecker returns a Checker for the public release endpoint.
func NewChecker() *Checker {
	return &Checker{
		ReleaseURL: DefaultReleaseURL,
		Client:     &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *Checker) current() string {
	if c.Current != "" {
		return c.Current
	}
	return version.Version
}

func (c *Checker) clock() time.Time {
	if c.now != nil {
		return c.now()
	}
	return time.Now()
}

// CheckWithCache checks for updates using cache when available
func (c *Checker) CheckWithCache(ctx context.Context) (*Info, error) {
	info, err := c.loadCache()
	if err == nil && c.clock().Sub(info.CheckedAt) < cacheTTL {
		info.CurrentVersion = c.current()
		info.UpdateAvailable = newer(info.CurrentVersion, info.LatestVersion)
		return info, nil
	}

	info, err = c.Check(ctx)
	if err != nil {
		return nil, err
	}

	// Cache write failures only cost a refetch.
	_ = c.saveCache(info)
	return info, nil
}

// Check fetches the latest release, bypassing the cache.
func (c *Checker) Check(ctx context.Context) (*Info, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.ReleaseURL, http.NoBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", "tombstone/"+c.current())

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GitHub API returned status %d", resp.StatusCode)
	}

	var release githubRelease
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return nil, fmt.Errorf("decoding release: %w", err)
	}

	latest := strings.TrimPrefix(release.TagName, "v")
	return &Info{
		LatestVersion:   latest,
		CurrentVersion:  c.current(),
		CheckedAt:       c.clock(),
		UpdateAvailable: newer(c.current(), latest),
	}, nil
}

// DefaultCacheDir returns $XDG_CACHE_HOME/tombstone, or ~/.cache/tombstone.
func DefaultCacheDir() (string, error) {
	cacheHome := os.Getenv("XDG_CACHE_HOME")
	if cacheHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		cacheHome = filepath.Join(home, ".cache")
	}
	return filepath.Join(cacheHome, "tombstone"), nil
}

func (c *Checker) cachePath() (string, error) {
	dir := c.CacheDir
	if dir == "" {
		var err error
		if dir, err = DefaultCacheDir(); err != nil {
			return "", err
		}
	}
	return filepath.Join(dir, cacheFile), nil
}

func (c *Checker) loadCache() (*Info, error) {
	path, err := c.cachePath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Checker) saveCache(info *Info) error {
	path, err := c.cachePath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// newer reports whether latest is a higher release than current. Development
// builds and unparseable versions never report an update.
func newer(current, latest string) bool {
	if current == "dev" {
		return false
	}
	cur, err := semver.NewVersion(current)
	if err != nil {
		return false
	}
	lat, err := semver.NewVersion(latest)
	if err != nil {
		return false
	}
	return lat.GreaterThan(cur)
}
