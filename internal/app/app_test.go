package app

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/bassista/tankwatch/internal/analytics"
	"github.com/bassista/tankwatch/internal/cache"
	"github.com/bassista/tankwatch/internal/config"
	"github.com/bassista/tankwatch/internal/kv"
	"github.com/bassista/tankwatch/internal/model"
	"github.com/bassista/tankwatch/internal/observability"
	"github.com/bassista/tankwatch/internal/profile"
	"github.com/bassista/tankwatch/internal/scheduler"
	"github.com/bassista/tankwatch/internal/telemetry"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{ShutDownTimeout: 2 * time.Second},
		Cache: config.CacheConfig{
			StalenessThreshold: 5 * time.Minute,
			PollInterval:       30 * time.Second,
			RetentionAge:       120 * time.Hour,
		},
	}
}

func testProfileStore(t *testing.T) *profile.Store {
	t.Helper()

	doc := profile.Document{Profiles: []model.TankProfile{{
		StoreID:             "store-1",
		TankID:              "tank-1",
		CapacityGallons:     10000,
		CriticalLevelInches: 10,
		WarningLevelInches:  20,
		BusinessOpenHour:    5,
		BusinessCloseHour:   23,
	}}}
	payload, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal profile document: %v", err)
	}
	path := filepath.Join(t.TempDir(), "profiles.json")
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		t.Fatalf("write profile document: %v", err)
	}
	store, err := profile.NewStore(path)
	if err != nil {
		t.Fatalf("load profile store: %v", err)
	}
	return store
}

func newTestApp(t *testing.T) *App {
	t.Helper()

	cfg := testConfig()
	profiles := testProfileStore(t)
	source := telemetry.NewMemorySource()
	clock := clockwork.NewRealClock()
	metrics := observability.NewMetricsForTesting()
	params := analytics.DefaultParams()

	store := cache.NewStoreCache(kv.NewMemoryStore(), clock, cfg.Cache.StalenessThreshold, cfg.Cache.RetentionAge, metrics)
	results := analytics.NewResultCache(clock, 4*time.Hour, 500, 0.3, params)
	refresher := scheduler.NewRefresher(source, profiles, store, results, params, clock, metrics, scheduler.Options{
		Poll:        cfg.Cache.PollInterval,
		WindowHours: 120,
		WindowDays:  5,
	})

	a, err := New(cfg, profiles, source, store, results, refresher, metrics, clock)
	if err != nil {
		t.Fatalf("build app: %v", err)
	}
	return a
}

func TestNew_RejectsMissingDependencies(t *testing.T) {
	if _, err := New(nil, nil, nil, nil, nil, nil, nil, nil); err == nil {
		t.Error("expected error for nil config")
	}

	cfg := testConfig()
	if _, err := New(cfg, nil, nil, nil, nil, nil, nil, nil); err == nil {
		t.Error("expected error for nil profile store")
	}
}

func TestApp_StartAndShutdown(t *testing.T) {
	a := newTestApp(t)

	a.StartBackground()
	a.Shutdown()

	select {
	case <-a.BaseCtx.Done():
	default:
		t.Error("lifecycle context should be canceled after shutdown")
	}
}

func TestApp_ShutdownWithoutStartIsSafe(t *testing.T) {
	a := newTestApp(t)
	a.Shutdown()

	var nilApp *App
	nilApp.Shutdown()
}
