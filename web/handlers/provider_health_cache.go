package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ArnieSalas/CMSC-5773-Debate-Project/internal/engine"
	"github.com/ArnieSalas/CMSC-5773-Debate-Project/internal/gateway"
)

const (
	healthCacheFilename = "agora-provider-health.json"
	healthCacheTTL      = 30 * time.Minute
)

// healthCacheFile is the on-disk layout. Entries are keyed by
// "<provider>/<model>" and only hold successful probes.
type healthCacheFile struct {
	Entries map[string]gateway.HealthStatus `json:"entries"`
}

// providerHealthCache keeps the last successful liveness probe of each model
// backend across restarts. A failed probe evicts the backend's entry.
type providerHealthCache struct {
	mu      sync.Mutex
	path    string
	ttl     time.Duration
	loaded  bool
	entries map[string]gateway.HealthStatus
}

func newProviderHealthCache(path string, ttl time.Duration) *providerHealthCache {
	if ttl <= 0 {
		ttl = healthCacheTTL
	}
	return &providerHealthCache{
		path:    path,
		ttl:     ttl,
		entries: make(map[string]gateway.HealthStatus),
	}
}

func defaultProviderHealthCachePath() string {
	return filepath.Join(os.TempDir(), healthCacheFilename)
}

func healthCacheKey(provider, model string) string {
	return provider + "/" + model
}

// Probe wraps check for one backend. The returned probe answers from the
// cache while the last successful check is within the TTL; refresh forces
// a new check.
func (c *providerHealthCache) Probe(provider, model string, refresh bool, check engine.ProviderProbe) engine.ProviderProbe {
	key := healthCacheKey(provider, model)
	return func(ctx context.Context) gateway.HealthStatus {
		if !refresh {
			if status, ok := c.lookup(key); ok {
				slog.Debug("Provider health served from cache", "backend", key, "checked_at", status.CheckedAt)
				return status
			}
		}
		status := check(ctx)
		c.record(key, status)
		return status
	}
}

func (c *providerHealthCache) lookup(key string) (gateway.HealthStatus, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.load()
	status, ok := c.entries[key]
	if !ok || status.CheckedAt.IsZero() || time.Since(status.CheckedAt) > c.ttl {
		return gateway.HealthStatus{}, false
	}
	return status, true
}

func (c *providerHealthCache) record(key string, status gateway.HealthStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.load()
	if status.Available {
		c.entries[key] = status
	} else {
		if _, ok := c.entries[key]; !ok {
			return
		}
		delete(c.entries, key)
	}
	c.save()
}

func (c *providerHealthCache) load() {
	if c.loaded {
		return
	}
	c.loaded = true

	data, err := os.ReadFile(c.path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("Failed to read provider health cache", "path", c.path, "error", err)
		}
		return
	}

	var file healthCacheFile
	if err := json.Unmarshal(data, &file); err != nil {
		slog.Warn("Failed to parse provider health cache", "path", c.path, "error", err)
		return
	}
	for key, status := range file.Entries {
		if status.Available {
			c.entries[key] = status
		}
	}
}

// save writes the cache through a temp file so readers never see a partial write.
func (c *providerHealthCache) save() {
	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		slog.Warn("Failed to create provider health cache directory", "path", c.path, "error", err)
		return
	}

	payload, err := json.MarshalIndent(healthCacheFile{Entries: c.entries}, "", "  ")
	if err != nil {
		slog.Warn("Failed to encode provider health cache", "path", c.path, "error", err)
		return
	}

	tmp, err := os.CreateTemp(dir, healthCacheFilename+".*")
	if err != nil {
		slog.Warn("Failed to write provider health cache", "path", c.path, "error", err)
		return
	}
	_, werr := tmp.Write(payload)
	cerr := tmp.Close()
	if werr != nil || cerr != nil {
		os.Remove(tmp.Name())
		slog.Warn("Failed to write provider health cache", "path", c.path, "error", errors.Join(werr, cerr))
		return
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		os.Remove(tmp.Name())
		slog.Warn("Failed to replace provider health cache", "path", c.path, "error", err)
	}
}
