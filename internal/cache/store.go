package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/containerd/errdefs"
	"github.com/jonboulle/clockwork"

	"github.com/bassista/tankwatch/internal/kv"
	"github.com/bassista/tankwatch/internal/logger"
	"github.com/bassista/tankwatch/internal/model"
	"github.com/bassista/tankwatch/internal/observability"
)

// ErrPersistDegraded marks a save that failed even after clearing the backing
// key and retrying. The in-memory entry stays authoritative; callers surface
// this as a warning, not a hard failure.
var ErrPersistDegraded = errors.New("backing store unavailable, serving from memory")

// StoreCache is the tiered snapshot cache: an in-memory map in front of a
// key-value backing store. Reads are instant; all mutation goes through Merge
// so retained history is never lost to a partial refresh.
type StoreCache struct {
	mu         sync.RWMutex
	entries    map[string]*model.StoreCacheEntry
	backing    kv.Store
	clock      clockwork.Clock
	staleAfter time.Duration
	maxAge     time.Duration
	metrics    *observability.Metrics
}

// NewStoreCache builds a cache over the given backing store. staleAfter is
// the refresh threshold; maxAge is both the history retention window and the
// whole-entry expiry age.
func NewStoreCache(backing kv.Store, clock clockwork.Clock, staleAfter, maxAge time.Duration, metrics *observability.Metrics) *StoreCache {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &StoreCache{
		entries:    map[string]*model.StoreCacheEntry{},
		backing:    backing,
		clock:      clock,
		staleAfter: staleAfter,
		maxAge:     maxAge,
		metrics:    metrics,
	}
}

// Get returns the snapshot for a store, loading it from the backing store on
// a cold start. An entry past the maximum age is treated as absent, which
// forces the caller into a full refetch instead of an incremental merge.
func (c *StoreCache) Get(storeID string) (model.StoreCacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[storeID]
	if !ok {
		loaded, err := c.loadFromBacking(storeID)
		if err != nil {
			if !errdefs.IsNotFound(err) {
				logger.WithStore("cache", storeID).Warnf("backing store read failed: %v", err)
			}
			return model.StoreCacheEntry{}, false
		}
		entry = loaded
		c.entries[storeID] = entry
	}

	if c.expired(entry) {
		logger.WithStore("cache", storeID).Infof("entry created %v ago exceeds max age, dropping for full refetch",
			c.clock.Now().Sub(entry.CreatedAt))
		delete(c.entries, storeID)
		if err := c.backing.Delete(backingKey(storeID)); err != nil {
			logger.WithStore("cache", storeID).Warnf("failed to delete expired entry: %v", err)
		}
		c.updateGauges()
		return model.StoreCacheEntry{}, false
	}

	cloned, err := cloneEntry(entry)
	if err != nil {
		logger.WithStore("cache", storeID).Errorf("clone failed: %v", err)
		return model.StoreCacheEntry{}, false
	}
	return cloned, true
}

// NeedsRefresh reports whether the entry is older than the staleness threshold.
func (c *StoreCache) NeedsRefresh(entry model.StoreCacheEntry) bool {
	return entry.Age(c.clock.Now()) > c.staleAfter
}

// Merge folds freshly computed tank snapshots into the retained entry.
//
// Per tank, the retained reading window becomes the union of existing and
// fresh readings, deduplicated by timestamp, pruned to the retention window
// and re-sorted; the latest reading, rate and forecast are replaced wholesale.
// Tanks missing from the fresh batch keep their retained state: a refresh
// that omits history is not evidence the history is gone.
func (c *StoreCache) Merge(storeID string, fresh map[string]model.TankSnapshot) model.StoreCacheEntry {
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	existing := c.entries[storeID]
	if existing != nil && c.expired(existing) {
		existing = nil
	}

	merged := &model.StoreCacheEntry{
		StoreID:         storeID,
		Tanks:           map[string]model.TankSnapshot{},
		CreatedAt:       now,
		LastRefreshedAt: now,
	}
	if existing != nil {
		merged.CreatedAt = existing.CreatedAt
		for tankID, snap := range existing.Tanks {
			merged.Tanks[tankID] = snap
		}
	}

	cutoff := now.Add(-c.maxAge)
	for tankID, freshSnap := range fresh {
		snap := freshSnap
		if prev, ok := merged.Tanks[tankID]; ok {
			snap.History = unionHistory(prev.History, freshSnap.History, cutoff)
		} else {
			snap.History = unionHistory(nil, freshSnap.History, cutoff)
		}
		merged.Tanks[tankID] = snap
	}

	c.entries[storeID] = merged
	c.updateGauges()

	cloned, err := cloneEntry(merged)
	if err != nil {
		logger.WithStore("cache", storeID).Errorf("clone failed after merge: %v", err)
		return *merged
	}
	return cloned
}

// Save persists the in-memory entry for a store. On a write failure the
// backing key is cleared once and the write retried; if that also fails the
// in-memory value stays authoritative and the error wraps ErrPersistDegraded.
func (c *StoreCache) Save(ctx context.Context, storeID string) error {
	c.mu.RLock()
	entry, ok := c.entries[storeID]
	if !ok {
		c.mu.RUnlock()
		return fmt.Errorf("no entry for store %s", storeID)
	}
	payload, err := json.Marshal(entry)
	c.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshal entry for store %s: %w", storeID, err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	key := backingKey(storeID)
	if err := c.backing.Set(key, payload); err != nil {
		logger.WithStore("cache", storeID).Warnf("persist failed, clearing key and retrying: %v", err)
		if delErr := c.backing.Delete(key); delErr != nil {
			logger.WithStore("cache", storeID).Warnf("clear before retry failed: %v", delErr)
		}
		if err := c.backing.Set(key, payload); err != nil {
			if c.metrics != nil {
				c.metrics.PersistFailures.Inc()
			}
			return fmt.Errorf("persist store %s: %v: %w", storeID, err, ErrPersistDegraded)
		}
	}
	return nil
}

// Diagnostics summarizes cache health for the diagnostics endpoint.
type Diagnostics struct {
	Entries    int                `json:"entries"`
	StaleCount int                `json:"staleCount"`
	Stores     []StoreDiagnostics `json:"stores"`
}

type StoreDiagnostics struct {
	StoreID    string  `json:"storeId"`
	AgeSeconds float64 `json:"ageSeconds"`
	Stale      bool    `json:"stale"`
	TankCount  int     `json:"tankCount"`
}

// GetDiagnostics reports per-store age and staleness.
func (c *StoreCache) GetDiagnostics() Diagnostics {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.clock.Now()
	diag := Diagnostics{Stores: make([]StoreDiagnostics, 0, len(c.entries))}
	for id, entry := range c.entries {
		stale := entry.Age(now) > c.staleAfter
		if stale {
			diag.StaleCount++
		}
		diag.Stores = append(diag.Stores, StoreDiagnostics{
			StoreID:    id,
			AgeSeconds: entry.Age(now).Seconds(),
			Stale:      stale,
			TankCount:  len(entry.Tanks),
		})
	}
	diag.Entries = len(c.entries)
	sort.Slice(diag.Stores, func(i, j int) bool { return diag.Stores[i].StoreID < diag.Stores[j].StoreID })

	if c.metrics != nil {
		c.metrics.CacheEntries.Set(float64(diag.Entries))
		c.metrics.StaleEntries.Set(float64(diag.StaleCount))
	}
	return diag
}

func (c *StoreCache) expired(entry *model.StoreCacheEntry) bool {
	return c.clock.Now().Sub(entry.CreatedAt) > c.maxAge
}

func (c *StoreCache) loadFromBacking(storeID string) (*model.StoreCacheEntry, error) {
	payload, err := c.backing.Get(backingKey(storeID))
	if err != nil {
		return nil, err
	}
	var entry model.StoreCacheEntry
	if err := json.Unmarshal(payload, &entry); err != nil {
		return nil, fmt.Errorf("decode persisted entry: %w", err)
	}
	logger.WithStore("cache", storeID).Debugf("loaded persisted snapshot with %d tanks", len(entry.Tanks))
	return &entry, nil
}

func (c *StoreCache) updateGauges() {
	if c.metrics != nil {
		c.metrics.CacheEntries.Set(float64(len(c.entries)))
	}
}

// unionHistory merges two reading windows, deduplicating by timestamp,
// pruning to the retention cutoff and sorting by time.
func unionHistory(existing, fresh []model.Reading, cutoff time.Time) []model.Reading {
	byTime := map[int64]model.Reading{}
	for _, r := range existing {
		if r.Timestamp.Before(cutoff) {
			continue
		}
		byTime[r.Timestamp.UnixNano()] = r
	}
	for _, r := range fresh {
		if r.Timestamp.Before(cutoff) {
			continue
		}
		byTime[r.Timestamp.UnixNano()] = r
	}

	out := make([]model.Reading, 0, len(byTime))
	for _, r := range byTime {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

// cloneEntry deep-copies an entry so callers never share slices with the cache.
func cloneEntry(entry *model.StoreCacheEntry) (model.StoreCacheEntry, error) {
	payload, err := json.Marshal(entry)
	if err != nil {
		return model.StoreCacheEntry{}, err
	}
	var out model.StoreCacheEntry
	if err := json.Unmarshal(payload, &out); err != nil {
		return model.StoreCacheEntry{}, err
	}
	return out, nil
}

func backingKey(storeID string) string {
	return "store-" + storeID
}
