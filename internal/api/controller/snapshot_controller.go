package controller

import (
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"

	"github.com/bassista/tankwatch/internal/cache"
	"github.com/bassista/tankwatch/internal/logger"
	"github.com/bassista/tankwatch/internal/model"
	"github.com/bassista/tankwatch/internal/telemetry"
)

// ProfileView is the read-only profile surface the controllers need.
type ProfileView interface {
	IsVisible(storeID string) bool
	ListVisibleStores() []string
}

// SnapshotResponse is a cached store snapshot plus its freshness. The API
// always serves the best cached data it has; staleness is information for the
// caller, never a reason to withhold a response.
type SnapshotResponse struct {
	StoreID         string                        `json:"storeId"`
	Tanks           map[string]model.TankSnapshot `json:"tanks"`
	LastRefreshedAt time.Time                     `json:"lastRefreshedAt"`
	AgeSeconds      float64                       `json:"ageSeconds"`
	Stale           bool                          `json:"stale"`
}

// StoreSummary is one row of the store listing.
type StoreSummary struct {
	StoreID   string `json:"storeId"`
	HasData   bool   `json:"hasData"`
	Stale     bool   `json:"stale"`
	TankCount int    `json:"tankCount"`
}

// SnapshotController serves cached store snapshots and cache diagnostics.
type SnapshotController struct {
	cache      cache.SnapshotReader
	profiles   ProfileView
	source     telemetry.Source
	clock      clockwork.Clock
	staleAfter time.Duration
}

func NewSnapshotController(store cache.SnapshotReader, profiles ProfileView, source telemetry.Source, clock clockwork.Clock, staleAfter time.Duration) *SnapshotController {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &SnapshotController{
		cache:      store,
		profiles:   profiles,
		source:     source,
		clock:      clock,
		staleAfter: staleAfter,
	}
}

// ListStores returns every visible store with a data/freshness summary.
func (sc *SnapshotController) ListStores(c *gin.Context) {
	summaries := []StoreSummary{}
	for _, storeID := range sc.profiles.ListVisibleStores() {
		summary := StoreSummary{StoreID: storeID}
		if entry, ok := sc.cache.Get(storeID); ok {
			summary.HasData = true
			summary.Stale = entry.Age(sc.clock.Now()) > sc.staleAfter
			summary.TankCount = len(entry.Tanks)
		}
		summaries = append(summaries, summary)
	}
	c.JSON(http.StatusOK, summaries)
}

// GetSnapshot returns the cached snapshot for one store.
func (sc *SnapshotController) GetSnapshot(c *gin.Context) {
	storeID := c.Param("storeId")
	if !sc.profiles.IsVisible(storeID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "store not found"})
		return
	}

	entry, ok := sc.cache.Get(storeID)
	if !ok {
		// Known store but never populated: distinct from an unknown store.
		c.JSON(http.StatusNotFound, gin.H{"error": "no data yet for store " + storeID})
		return
	}

	c.JSON(http.StatusOK, sc.toResponse(entry))
}

// GetTank returns the cached snapshot for a single tank.
func (sc *SnapshotController) GetTank(c *gin.Context) {
	storeID := c.Param("storeId")
	tankID := c.Param("tankId")
	if !sc.profiles.IsVisible(storeID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "store not found"})
		return
	}

	entry, ok := sc.cache.Get(storeID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no data yet for store " + storeID})
		return
	}

	snap, ok := entry.Tanks[tankID]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "tank not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"storeId":    storeID,
		"tankId":     tankID,
		"tank":       snap,
		"ageSeconds": entry.Age(sc.clock.Now()).Seconds(),
		"stale":      entry.Age(sc.clock.Now()) > sc.staleAfter,
	})
}

// DiagnosticsResponse is the cache health report plus the upstream store
// inventory, so operators can spot stores the gauge API knows about that no
// profile covers (and vice versa).
type DiagnosticsResponse struct {
	cache.Diagnostics
	UpstreamStores     []string `json:"upstreamStores,omitempty"`
	UnconfiguredStores []string `json:"unconfiguredStores,omitempty"`
	UpstreamError      string   `json:"upstreamError,omitempty"`
}

// GetDiagnostics reports cache entry counts, per-store age and staleness.
// An unreachable upstream degrades the response, it never fails it: the
// cache-side diagnostics are always served.
func (sc *SnapshotController) GetDiagnostics(c *gin.Context) {
	resp := DiagnosticsResponse{Diagnostics: sc.cache.GetDiagnostics()}
	logger.WithComponent("snapshot_controller").Debugf("diagnostics: %d entries, %d stale", resp.Entries, resp.StaleCount)

	if sc.source != nil {
		upstream, err := sc.source.ListStores(c.Request.Context())
		if err != nil {
			logger.WithComponent("snapshot_controller").Warnf("upstream store listing failed: %v", err)
			resp.UpstreamError = err.Error()
		} else {
			sort.Strings(upstream)
			resp.UpstreamStores = upstream
			for _, id := range upstream {
				if !sc.profiles.IsVisible(id) {
					resp.UnconfiguredStores = append(resp.UnconfiguredStores, id)
				}
			}
		}
	}

	c.JSON(http.StatusOK, resp)
}

func (sc *SnapshotController) toResponse(entry model.StoreCacheEntry) SnapshotResponse {
	age := entry.Age(sc.clock.Now())
	return SnapshotResponse{
		StoreID:         entry.StoreID,
		Tanks:           entry.Tanks,
		LastRefreshedAt: entry.LastRefreshedAt,
		AgeSeconds:      age.Seconds(),
		Stale:           age > sc.staleAfter,
	}
}
