package analytics

import (
	"encoding/binary"
	"hash/fnv"
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/bassista/tankwatch/internal/model"
)

// fingerprintWindow is how many of the most recent sanitized readings feed
// the fingerprint. Levels are rounded and timestamps truncated to the minute
// so sensor jitter does not churn the key.
const fingerprintWindow = 24

// CachedResult is the memoized output of the estimation+forecast pipeline.
type CachedResult struct {
	Rate     model.RateEstimate
	Forecast model.Forecast
}

type resultEntry struct {
	result      CachedResult
	fingerprint uint64
	storedAt    time.Time
}

// ResultCache memoizes per-tank analytics keyed by store/tank, guarded by an
// input fingerprint, a TTL and a minimum quality. It is bounded: when over
// capacity the lowest-quality entry is evicted first.
type ResultCache struct {
	mu         sync.Mutex
	entries    map[string]*resultEntry
	clock      clockwork.Clock
	ttl        time.Duration
	capacity   int
	minQuality float64
	params     Params
}

// NewResultCache builds a cache with the given bounds. A nil clock falls back
// to the real clock.
func NewResultCache(clock clockwork.Clock, ttl time.Duration, capacity int, minQuality float64, p Params) *ResultCache {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &ResultCache{
		entries:    make(map[string]*resultEntry),
		clock:      clock,
		ttl:        ttl,
		capacity:   capacity,
		minQuality: minQuality,
		params:     p,
	}
}

// ResultKey is the cache key for one tank's analytics.
func ResultKey(storeID, tankID string) string {
	return storeID + "|" + tankID
}

// Get returns a memoized result if it is still valid: young enough, computed
// from the same inputs, inside the physical rate band and of usable quality.
// Invalid entries are evicted on the spot.
func (c *ResultCache) Get(key string, fingerprint uint64) (CachedResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return CachedResult{}, false
	}

	valid := c.clock.Now().Sub(e.storedAt) < c.ttl &&
		e.fingerprint == fingerprint &&
		e.result.Rate.RatePerHour >= c.params.MinRatePerHour &&
		e.result.Rate.RatePerHour <= c.params.MaxRatePerHour &&
		e.result.Rate.QualityScore >= c.minQuality

	if !valid {
		delete(c.entries, key)
		return CachedResult{}, false
	}
	return e.result, true
}

// Put stores a result, evicting the lowest-quality entry when over capacity.
func (c *ResultCache) Put(key string, fingerprint uint64, result CachedResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &resultEntry{
		result:      result,
		fingerprint: fingerprint,
		storedAt:    c.clock.Now(),
	}

	for len(c.entries) > c.capacity {
		c.evictLowestQuality()
	}
}

// InvalidateStore drops all entries belonging to one store. Used by forced
// refreshes so the pipeline recomputes from fresh data.
func (c *ResultCache) InvalidateStore(storeID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prefix := storeID + "|"
	for key := range c.entries {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(c.entries, key)
		}
	}
}

// Len returns the number of cached results.
func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *ResultCache) evictLowestQuality() {
	var victim string
	lowest := math.Inf(1)
	for key, e := range c.entries {
		if e.result.Rate.QualityScore < lowest {
			lowest = e.result.Rate.QualityScore
			victim = key
		}
	}
	if victim != "" {
		delete(c.entries, victim)
	}
}

// Fingerprint summarizes the recent sanitized window plus the profile fields
// that influence the analytics. Levels are rounded to a tenth of an inch and
// timestamps truncated to the minute so insignificant jitter does not change
// the key.
func Fingerprint(readings []model.Reading, profile model.TankProfile) uint64 {
	h := fnv.New64a()
	buf := make([]byte, 8)

	start := 0
	if len(readings) > fingerprintWindow {
		start = len(readings) - fingerprintWindow
	}
	for _, r := range readings[start:] {
		binary.BigEndian.PutUint64(buf, uint64(r.Timestamp.Truncate(time.Minute).Unix()))
		h.Write(buf)
		binary.BigEndian.PutUint64(buf, uint64(int64(math.Round(r.LevelInches*10))))
		h.Write(buf)
	}

	for _, v := range []float64{
		profile.CapacityGallons,
		profile.CriticalLevelInches,
		profile.WarningLevelInches,
		float64(profile.BusinessOpenHour),
		float64(profile.BusinessCloseHour),
	} {
		binary.BigEndian.PutUint64(buf, math.Float64bits(v))
		h.Write(buf)
	}

	return h.Sum64()
}
