package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/bassista/tankwatch/internal/logger"
	"github.com/bassista/tankwatch/internal/model"
)

// MemorySource is an in-memory Source for development and tests. Seeded
// readings are returned as-is, ignoring the requested window, so tests stay
// deterministic regardless of wall-clock time.
type MemorySource struct {
	mu       sync.RWMutex
	readings map[string][]model.Reading
	errs     map[string]error

	// CallCount tracks GetStoreReadings invocations per store.
	CallCount map[string]int
}

func NewMemorySource() *MemorySource {
	return &MemorySource{
		readings:  map[string][]model.Reading{},
		errs:      map[string]error{},
		CallCount: map[string]int{},
	}
}

// Seed replaces the readings served for a store.
func (m *MemorySource) Seed(storeID string, readings []model.Reading) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readings[storeID] = readings
}

// FailStore makes fetches for a store return the given error.
func (m *MemorySource) FailStore(storeID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[storeID] = err
}

func (m *MemorySource) ListStores(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stores := make([]string, 0, len(m.readings))
	for id := range m.readings {
		stores = append(stores, id)
	}
	logger.WithComponent("memory-source").Debugf("listing stores: %v", stores)
	return stores, nil
}

func (m *MemorySource) GetStoreReadings(_ context.Context, storeID string, _ Window) ([]model.Reading, error) {
	m.mu.Lock()
	m.CallCount[storeID]++
	m.mu.Unlock()

	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.errs[storeID]; err != nil {
		return nil, err
	}
	readings := m.readings[storeID]
	out := make([]model.Reading, len(readings))
	copy(out, readings)
	logger.WithComponent("memory-source").Debugf("serving %d readings for store %s", len(out), storeID)
	return out, nil
}

// SeedDemo fills the source with a few stores draining at constant rates,
// anchored to the current time. Used when the memory source backs a dev run.
func (m *MemorySource) SeedDemo() *MemorySource {
	now := time.Now().Truncate(time.Hour)
	demo := []struct {
		storeID string
		tankID  string
		level   float64
		rate    float64
	}{
		{"store-1", "tank-1", 62.0, 0.22},
		{"store-1", "tank-2", 28.5, 0.35},
		{"store-2", "tank-1", 14.0, 0.18},
	}

	byStore := map[string][]model.Reading{}
	for _, d := range demo {
		for h := 14 * 24; h >= 0; h-- {
			ts := now.Add(-time.Duration(h) * time.Hour)
			byStore[d.storeID] = append(byStore[d.storeID], model.Reading{
				StoreID:       d.storeID,
				TankID:        d.tankID,
				Timestamp:     ts,
				LevelInches:   d.level + d.rate*float64(h),
				VolumeGallons: (d.level + d.rate*float64(h)) * 120,
				Temperature:   55,
			})
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.readings = byStore
	return m
}
