// Package packs downloads extra scenario libraries and keeps a local copy so
// roleplay still works offline.
package packs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"speakgenie/internal/domain/library"
	"speakgenie/internal/domain/scenario"
)

const defaultPackName = "Scenario Pack"

var (
	ErrNoSource = errors.New("no scenario pack url configured")
	ErrTooLarge = errors.New("scenario pack is too large")
)

// maxPackBytes caps the size of a downloaded pack.
var maxPackBytes int64 = 4 << 20

// PackCache fetches a scenario pack over HTTP and caches it as JSON on disk.
type PackCache struct {
	url        string
	cacheDir   string
	cacheFile  string
	maxAge     time.Duration
	httpClient *http.Client
}

// CachedPack is the on-disk cache document.
type CachedPack struct {
	Library        library.ScenarioLibrary `json:"library"`
	LastUpdated    time.Time               `json:"last_updated"`
	TotalScenarios int                     `json:"total_scenarios"`
}

// Info describes the cache file.
type Info struct {
	Exists       bool
	Path         string
	Size         int64
	LastModified time.Time
	Fresh        bool
	MaxAge       time.Duration
}

// NewPackCache creates a cache for the pack at url.
func NewPackCache(url, cacheDir string, maxAge time.Duration) *PackCache {
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		logrus.WithError(err).Warn("Failed to create pack cache directory")
	}

	return &PackCache{
		url:       url,
		cacheDir:  cacheDir,
		cacheFile: filepath.Join(cacheDir, "scenario_pack.json"),
		maxAge:    maxAge,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// GetLibrary returns the pack from a fresh cache, the network, or a stale
// cache when the network fails.
func (pc *PackCache) GetLibrary(ctx context.Context) (*library.ScenarioLibrary, error) {
	if pc.isCacheFresh() {
		logrus.Info("Loading scenario pack from cache")
		return pc.loadFromCache()
	}

	if pc.url == "" {
		if lib, err := pc.loadFromCache(); err == nil {
			return lib, nil
		}
		return nil, ErrNoSource
	}

	logrus.WithField("url", pc.url).Info("Fetching scenario pack")
	lib, err := pc.fetch(ctx)
	if err != nil {
		logrus.WithError(err).Warn("Pack fetch failed, trying stale cache")
		if cached, cacheErr := pc.loadFromCache(); cacheErr == nil {
			return cached, nil
		}
		return nil, fmt.Errorf("failed to fetch scenario pack and no cache available: %w", err)
	}

	if err := pc.saveToCache(lib); err != nil {
		logrus.WithError(err).Warn("Failed to save scenario pack to cache")
	}

	return lib, nil
}

// Refresh fetches the pack again regardless of cache age. The cached copy is
// only replaced once the new pack has been downloaded and validated.
func (pc *PackCache) Refresh(ctx context.Context) (*library.ScenarioLibrary, error) {
	if pc.url == "" {
		return nil, ErrNoSource
	}

	logrus.WithField("url", pc.url).Info("Refreshing scenario pack")
	lib, err := pc.fetch(ctx)
	if err != nil {
		return nil, err
	}
	if err := pc.saveToCache(lib); err != nil {
		return nil, err
	}
	return lib, nil
}

func (pc *PackCache) isCacheFresh() bool {
	info, err := os.Stat(pc.cacheFile)
	if err != nil {
		return false
	}
	return time.Since(info.ModTime()) < pc.maxAge
}

func (pc *PackCache) loadFromCache() (*library.ScenarioLibrary, error) {
	file, err := os.Open(pc.cacheFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache file: %w", err)
	}
	defer file.Close()

	var cached CachedPack
	if err := json.NewDecoder(file).Decode(&cached); err != nil {
		return nil, fmt.Errorf("failed to decode cache file: %w", err)
	}
	if err := scenario.ValidateAll(cached.Library.Scenarios); err != nil {
		return nil, fmt.Errorf("cached pack is invalid: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"scenarios":    len(cached.Library.Scenarios),
		"last_updated": cached.LastUpdated.Format(time.RFC3339),
	}).Debug("Loaded scenario pack from cache")

	return &cached.Library, nil
}

func (pc *PackCache) saveToCache(lib *library.ScenarioLibrary) error {
	cached := CachedPack{
		Library:        *lib,
		LastUpdated:    time.Now(),
		TotalScenarios: len(lib.Scenarios),
	}

	// written beside the cache and renamed so a failed write keeps the old copy
	file, err := os.CreateTemp(pc.cacheDir, "scenario_pack-*.json")
	if err != nil {
		return fmt.Errorf("failed to create cache file: %w", err)
	}
	defer os.Remove(file.Name())

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(cached); err != nil {
		file.Close()
		return fmt.Errorf("failed to encode cache data: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := os.Rename(file.Name(), pc.cacheFile); err != nil {
		return fmt.Errorf("failed to replace cache file: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"scenarios": len(lib.Scenarios),
		"file":      pc.cacheFile,
	}).Info("Saved scenario pack to cache")

	return nil
}

func (pc *PackCache) fetch(ctx context.Context) (*library.ScenarioLibrary, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pc.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := pc.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", pc.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pack server returned status %d for %s", resp.StatusCode, pc.url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPackBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(body)) > maxPackBytes {
		return nil, fmt.Errorf("%s: %w (limit %d bytes)", pc.url, ErrTooLarge, maxPackBytes)
	}

	// yaml.v3 also reads JSON documents
	var lib library.ScenarioLibrary
	if err := yaml.Unmarshal(body, &lib); err != nil {
		return nil, fmt.Errorf("failed to parse scenario pack: %w", err)
	}
	if err := scenario.ValidateAll(lib.Scenarios); err != nil {
		return nil, fmt.Errorf("invalid scenario pack: %w", err)
	}
	if lib.Name == "" {
		lib.Name = defaultPackName
	}
	if lib.URL == "" {
		lib.URL = pc.url
	}

	return &lib, nil
}

// ClearCache removes the cache file.
func (pc *PackCache) ClearCache() error {
	if err := os.Remove(pc.cacheFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	logrus.Info("Cleared scenario pack cache")
	return nil
}

// GetCacheInfo reports on the cache file.
func (pc *PackCache) GetCacheInfo() Info {
	info := Info{Path: pc.cacheFile, MaxAge: pc.maxAge}
	if stat, err := os.Stat(pc.cacheFile); err == nil {
		info.Exists = true
		info.Size = stat.Size()
		info.LastModified = stat.ModTime()
		info.Fresh = pc.isCacheFresh()
	}
	return info
}
