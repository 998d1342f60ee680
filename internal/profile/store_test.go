package profile

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const validDocument = `{
  "profiles": [
    {
      "storeId": "store-1",
      "tankId": "tank-1",
      "capacityGallons": 10000,
      "criticalLevelInches": 10,
      "warningLevelInches": 20,
      "businessOpenHour": 5,
      "businessCloseHour": 23
    },
    {
      "storeId": "store-2",
      "tankId": "tank-1",
      "capacityGallons": 8000,
      "criticalLevelInches": 8,
      "warningLevelInches": 16,
      "businessOpenHour": 6,
      "businessCloseHour": 22
    }
  ],
  "hiddenStores": ["store-2"]
}`

func writeDocument(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "profiles.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write document: %v", err)
	}
	return path
}

func TestNewStore_LoadsDocument(t *testing.T) {
	path := writeDocument(t, t.TempDir(), validDocument)

	store, err := NewStore(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p, ok := store.GetTankProfile("store-1", "tank-1")
	if !ok {
		t.Fatal("expected profile for store-1/tank-1")
	}
	if p.CriticalLevelInches != 10 {
		t.Errorf("expected critical level 10, got %f", p.CriticalLevelInches)
	}

	if _, ok := store.GetTankProfile("store-1", "tank-9"); ok {
		t.Error("expected no profile for unknown tank")
	}
}

func TestStore_ListVisibleStores(t *testing.T) {
	path := writeDocument(t, t.TempDir(), validDocument)

	store, err := NewStore(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	visible := store.ListVisibleStores()
	if len(visible) != 1 || visible[0] != "store-1" {
		t.Errorf("expected [store-1], got %v", visible)
	}

	if store.IsVisible("store-2") {
		t.Error("expected hidden store-2 to be invisible")
	}
	if store.IsVisible("store-9") {
		t.Error("expected unknown store to be invisible")
	}
}

func TestNewStore_RejectsInvalidHours(t *testing.T) {
	doc := `{
  "profiles": [
    {
      "storeId": "store-1",
      "tankId": "tank-1",
      "capacityGallons": 10000,
      "criticalLevelInches": 10,
      "warningLevelInches": 20,
      "businessOpenHour": 22,
      "businessCloseHour": 6
    }
  ]
}`
	path := writeDocument(t, t.TempDir(), doc)

	if _, err := NewStore(path); err == nil {
		t.Fatal("expected error for close hour before open hour")
	}
}

func TestNewStore_RejectsNonPositiveCapacity(t *testing.T) {
	doc := `{
  "profiles": [
    {
      "storeId": "store-1",
      "tankId": "tank-1",
      "capacityGallons": 0,
      "criticalLevelInches": 10,
      "warningLevelInches": 20,
      "businessOpenHour": 5,
      "businessCloseHour": 23
    }
  ]
}`
	path := writeDocument(t, t.TempDir(), doc)

	if _, err := NewStore(path); err == nil {
		t.Fatal("expected error for zero capacity")
	}
}

func TestStore_ReloadKeepsPreviousOnError(t *testing.T) {
	dir := t.TempDir()
	path := writeDocument(t, dir, validDocument)

	store, err := NewStore(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	writeDocument(t, dir, `{"profiles": [broken`)
	if err := store.Load(); err == nil {
		t.Fatal("expected reload error for broken document")
	}

	// Previous document still served.
	if _, ok := store.GetTankProfile("store-1", "tank-1"); !ok {
		t.Error("expected previous profiles to survive a failed reload")
	}
}

func TestStore_WatcherReloads(t *testing.T) {
	dir := t.TempDir()
	path := writeDocument(t, dir, validDocument)

	store, err := NewStore(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := store.StartWatcher(ctx); err != nil {
		t.Fatalf("start watcher: %v", err)
	}

	updated := `{
  "profiles": [
    {
      "storeId": "store-3",
      "tankId": "tank-1",
      "capacityGallons": 5000,
      "criticalLevelInches": 6,
      "warningLevelInches": 12,
      "businessOpenHour": 7,
      "businessCloseHour": 21
    }
  ]
}`
	writeDocument(t, dir, updated)

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := store.GetTankProfile("store-3", "tank-1"); ok {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("watcher did not reload the updated document")
}
