package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ArnieSalas/CMSC-5773-Debate-Project/internal/core"
	"github.com/ArnieSalas/CMSC-5773-Debate-Project/internal/gateway"
)

type countingGateway struct {
	pings int32
}

func (g *countingGateway) Name() string  { return "counting" }
func (g *countingGateway) Model() string { return "counting-1" }

func (g *countingGateway) Generate(ctx context.Context, msgs []core.Message, opts gateway.Options) (string, error) {
	return "2", nil
}

func (g *countingGateway) Ping(ctx context.Context) error {
	atomic.AddInt32(&g.pings, 1)
	return nil
}

func TestHandleHealth_UsesCache(t *testing.T) {
	gw := &countingGateway{}
	handler, cleanup := setupTestHandler(t, gw)
	defer cleanup()

	cachePath := filepath.Join(t.TempDir(), "provider-health.json")
	handler.healthCache = newProviderHealthCache(cachePath, 30*time.Minute)
	router := handler.Router()

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", w.Code)
		}
	}

	if got := atomic.LoadInt32(&gw.pings); got != 1 {
		t.Fatalf("expected 1 health check call, got %d", got)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health?fresh=1", nil))
	if got := atomic.LoadInt32(&gw.pings); got != 2 {
		t.Fatalf("expected fresh=1 to bypass the cache, got %d checks", got)
	}

	if _, err := os.Stat(cachePath); err != nil {
		t.Fatalf("expected cache file to be created, got error: %v", err)
	}
}

func TestProviderHealthCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	ctx := context.Background()

	checks := 0
	up := func(context.Context) gateway.HealthStatus {
		checks++
		return gateway.HealthStatus{Available: true, CheckedAt: time.Now()}
	}
	down := func(context.Context) gateway.HealthStatus {
		checks++
		return gateway.HealthStatus{Available: false, Error: "connection refused", CheckedAt: time.Now()}
	}

	cache := newProviderHealthCache(path, time.Minute)
	cache.Probe("openai", "gpt-4o-mini", false, up)(ctx)
	cache.Probe("openai", "gpt-4o-mini", false, up)(ctx)
	if checks != 1 {
		t.Fatalf("expected second check from cache, got %d checks", checks)
	}

	cache.Probe("openai", "gpt-4o", false, up)(ctx)
	if checks != 2 {
		t.Fatalf("expected another model to be checked separately, got %d checks", checks)
	}

	reloaded := newProviderHealthCache(path, time.Minute)
	reloaded.Probe("openai", "gpt-4o-mini", false, up)(ctx)
	if checks != 2 {
		t.Errorf("expected entry to survive reload, got %d checks", checks)
	}
	reloaded.Probe("openai", "gpt-4o-mini", true, up)(ctx)
	if checks != 3 {
		t.Errorf("expected refresh to bypass the cache, got %d checks", checks)
	}

	if status := reloaded.Probe("openai", "gpt-4o", true, down)(ctx); status.Available {
		t.Fatal("expected failed check to be reported")
	}
	reloaded.Probe("openai", "gpt-4o", false, up)(ctx)
	if checks != 5 {
		t.Errorf("expected failed check to evict the entry, got %d checks", checks)
	}

	var file healthCacheFile
	data, _ := os.ReadFile(path)
	if err := json.Unmarshal(data, &file); err != nil || len(file.Entries) != 2 {
		t.Errorf("unexpected cache file contents: %s", data)
	}
	if _, ok := file.Entries[healthCacheKey("openai", "gpt-4o-mini")]; !ok {
		t.Errorf("expected provider/model key in %s", data)
	}
}

func TestProviderHealthCacheStaleEntry(t *testing.T) {
	cache := newProviderHealthCache(filepath.Join(t.TempDir(), "cache.json"), time.Minute)
	key := healthCacheKey("gemini", "gemini-2.5-flash")
	cache.record(key, gateway.HealthStatus{Available: true, CheckedAt: time.Now().Add(-time.Hour)})

	if _, ok := cache.lookup(key); ok {
		t.Error("expected stale entry to be ignored")
	}
}

func TestProviderHealthCacheCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	os.WriteFile(path, []byte("{not json"), 0o644)

	cache := newProviderHealthCache(path, 0)
	key := healthCacheKey("openai", "gpt-4o-mini")
	if _, ok := cache.lookup(key); ok {
		t.Fatal("expected miss on corrupt cache")
	}
	cache.record(key, gateway.HealthStatus{Available: true, CheckedAt: time.Now()})
	if _, ok := newProviderHealthCache(path, 0).lookup(key); !ok {
		t.Error("expected cache file to be rewritten after a successful check")
	}
}
