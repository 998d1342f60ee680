package scheduler

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/bassista/tankwatch/internal/analytics"
	"github.com/bassista/tankwatch/internal/cache"
	"github.com/bassista/tankwatch/internal/logger"
	"github.com/bassista/tankwatch/internal/model"
	"github.com/bassista/tankwatch/internal/observability"
	"github.com/bassista/tankwatch/internal/profile"
	"github.com/bassista/tankwatch/internal/telemetry"
)

// Outcome classifies one store's refresh attempt.
type Outcome string

const (
	// OutcomeRefreshed means fresh data was fetched and merged.
	OutcomeRefreshed Outcome = "refreshed"
	// OutcomeSkipped means the cached entry was still fresh.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeFailed means the upstream fetch failed; the cached entry is untouched.
	OutcomeFailed Outcome = "failed"
)

// StoreResult is the typed outcome of refreshing one store. Warnings carry
// recoverable degradations (persistence fallback, missing profiles) that are
// distinct from a failed fetch.
type StoreResult struct {
	StoreID   string   `json:"storeId"`
	Outcome   Outcome  `json:"outcome"`
	Error     string   `json:"error,omitempty"`
	Warnings  []string `json:"warnings,omitempty"`
	TankCount int      `json:"tankCount,omitempty"`
}

// CycleResult aggregates one refresh cycle.
type CycleResult struct {
	StartedAt time.Time     `json:"startedAt"`
	Skipped   bool          `json:"skipped,omitempty"` // a cycle was already in flight
	Stores    []StoreResult `json:"stores"`
}

// Refresher drives the periodic refresh loop: it re-pulls readings for
// stores whose cached entry is stale, runs the analytics pipeline and merges
// the result back into the tiered cache. Overlapping timer fires are no-ops;
// forced (manual) refreshes bypass both the staleness check and the guard.
type Refresher struct {
	source   telemetry.Source
	profiles *profile.Store
	cache    cache.RefreshStore
	results  *analytics.ResultCache
	params   analytics.Params
	clock    clockwork.Clock
	metrics  *observability.Metrics

	poll         time.Duration
	fetchTimeout time.Duration
	windowHours  int
	windowDays   int

	inFlight atomic.Bool
}

// Options carries the refresh loop tunables.
type Options struct {
	Poll         time.Duration
	FetchTimeout time.Duration
	WindowHours  int
	WindowDays   int
}

func NewRefresher(
	source telemetry.Source,
	profiles *profile.Store,
	store cache.RefreshStore,
	results *analytics.ResultCache,
	params analytics.Params,
	clock clockwork.Clock,
	metrics *observability.Metrics,
	opts Options,
) *Refresher {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Refresher{
		source:       source,
		profiles:     profiles,
		cache:        store,
		results:      results,
		params:       params,
		clock:        clock,
		metrics:      metrics,
		poll:         opts.Poll,
		fetchTimeout: opts.FetchTimeout,
		windowHours:  opts.WindowHours,
		windowDays:   opts.WindowDays,
	}
}

// Start runs the refresh loop until ctx is canceled. On shutdown it makes a
// final persistence pass so the freshest snapshots survive a restart.
// Returns a channel closed when the loop has fully stopped.
func (r *Refresher) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	logger.WithComponent("refresh").Debugf("starting refresh loop with interval: %v", r.poll)
	ticker := r.clock.NewTicker(r.poll)

	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				r.finalFlush()
				logger.WithComponent("refresh").Info("refresh loop stopped after final flush")
				return
			case <-ticker.Chan():
				r.RunCycle(ctx, false)
			}
		}
	}()
	return done
}

// RunCycle refreshes every visible store that needs it. When force is false
// and a cycle is already in flight, the fire is a no-op. Forced cycles ignore
// staleness, clear memoized analytics first and may overlap a timer cycle;
// the merge union makes the interleaving order irrelevant.
func (r *Refresher) RunCycle(ctx context.Context, force bool) CycleResult {
	result := CycleResult{StartedAt: r.clock.Now()}

	if !force {
		if !r.inFlight.CompareAndSwap(false, true) {
			logger.WithComponent("refresh").Debug("cycle already in flight, skipping")
			result.Skipped = true
			return result
		}
		defer r.inFlight.Store(false)
	}

	if r.metrics != nil {
		r.metrics.RefreshCycles.Inc()
	}

	for _, storeID := range r.profiles.ListVisibleStores() {
		select {
		case <-ctx.Done():
			logger.WithComponent("refresh").Debug("cycle canceled, exiting store loop")
			return result
		default:
		}
		result.Stores = append(result.Stores, r.RefreshStore(ctx, storeID, force))
	}
	return result
}

// RefreshStore runs the full pipeline for one store. A failed fetch leaves
// the cached entry untouched; it never blocks other stores.
func (r *Refresher) RefreshStore(ctx context.Context, storeID string, force bool) StoreResult {
	result := StoreResult{StoreID: storeID, Outcome: OutcomeRefreshed}

	if entry, ok := r.cache.Get(storeID); ok && !force && !r.cache.NeedsRefresh(entry) {
		result.Outcome = OutcomeSkipped
		r.countOutcome(result.Outcome)
		return result
	}

	if force {
		// Recompute from scratch: drop the memoized analytics for this store.
		r.results.InvalidateStore(storeID)
	}

	readings, err := r.fetch(ctx, storeID)
	if err != nil {
		logger.WithStore("refresh", storeID).Errorf("fetch failed, keeping cached entry: %v", err)
		result.Outcome = OutcomeFailed
		result.Error = err.Error()
		r.countOutcome(result.Outcome)
		return result
	}

	fresh := map[string]model.TankSnapshot{}
	for tankID, tankReadings := range groupByTank(readings) {
		tankProfile, ok := r.profiles.GetTankProfile(storeID, tankID)
		if !ok {
			result.Warnings = append(result.Warnings, fmt.Sprintf("no profile for tank %s, skipped", tankID))
			continue
		}
		latest, ok := latestPlausible(tankReadings, r.params)
		if !ok {
			// All levels out of range: bad input is dropped and counted, never
			// turned into a level-zero forecast. The retained snapshot stays.
			result.Warnings = append(result.Warnings, fmt.Sprintf("no plausible reading for tank %s, keeping retained snapshot", tankID))
			continue
		}
		fresh[tankID] = r.analyzeTank(storeID, tankID, tankReadings, latest, tankProfile)
	}
	result.TankCount = len(fresh)

	r.cache.Merge(storeID, fresh)
	if err := r.cache.Save(ctx, storeID); err != nil {
		if errors.Is(err, cache.ErrPersistDegraded) {
			result.Warnings = append(result.Warnings, err.Error())
		} else {
			result.Warnings = append(result.Warnings, fmt.Sprintf("persist: %v", err))
		}
	}

	r.countOutcome(result.Outcome)
	logger.WithStore("refresh", storeID).Debugf("refreshed %d tanks (%d warnings)", result.TankCount, len(result.Warnings))
	return result
}

// fetch pulls one store's readings, preferring the hour-bounded request and
// falling back to a day-bounded one. Each attempt gets its own timeout budget
// so a slow failed hour-window attempt cannot starve the fallback.
func (r *Refresher) fetch(ctx context.Context, storeID string) ([]model.Reading, error) {
	readings, err := r.fetchWindow(ctx, storeID, telemetry.HoursWindow(r.windowHours))
	if err == nil {
		return readings, nil
	}
	logger.WithStore("refresh", storeID).Warnf("hour-bounded fetch failed, retrying day-bounded: %v", err)

	readings, dayErr := r.fetchWindow(ctx, storeID, telemetry.DaysWindow(r.windowDays))
	if dayErr != nil {
		return nil, fmt.Errorf("hour window: %v; day window: %w", err, dayErr)
	}
	return readings, nil
}

func (r *Refresher) fetchWindow(ctx context.Context, storeID string, window telemetry.Window) ([]model.Reading, error) {
	if r.fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.fetchTimeout)
		defer cancel()
	}

	started := time.Now()
	defer func() {
		if r.metrics != nil {
			r.metrics.FetchDuration.Observe(time.Since(started).Seconds())
		}
	}()

	return r.source.GetStoreReadings(ctx, storeID, window)
}

// analyzeTank runs sanitize → estimate → forecast for one tank, reusing the
// memoized result when the input fingerprint still matches.
func (r *Refresher) analyzeTank(storeID, tankID string, readings []model.Reading, latest model.Reading, tankProfile model.TankProfile) model.TankSnapshot {
	now := r.clock.Now()

	sanitized := analytics.Sanitize(readings, tankProfile, now, r.params)
	r.countDrops(sanitized.Dropped)

	key := analytics.ResultKey(storeID, tankID)
	fingerprint := analytics.Fingerprint(sanitized.Readings, tankProfile)

	if cached, ok := r.results.Get(key, fingerprint); ok {
		r.countLookup("hit")
		return model.TankSnapshot{
			Latest:   latest,
			History:  sanitized.Readings,
			Rate:     cached.Rate,
			Forecast: cached.Forecast,
		}
	}
	r.countLookup("miss")

	estimate := analytics.EstimateRate(tankID, sanitized.Readings, r.params, now)
	estimate.InputFingerprint = fingerprint
	forecast := analytics.BuildForecast(latest.LevelInches, estimate, tankProfile, now, r.params)

	r.results.Put(key, fingerprint, analytics.CachedResult{Rate: estimate, Forecast: forecast})

	return model.TankSnapshot{
		Latest:   latest,
		History:  sanitized.Readings,
		Rate:     estimate,
		Forecast: forecast,
	}
}

// finalFlush persists every cached entry once on shutdown.
func (r *Refresher) finalFlush() {
	for _, s := range r.cache.GetDiagnostics().Stores {
		if err := r.cache.Save(context.Background(), s.StoreID); err != nil {
			logger.WithStore("refresh", s.StoreID).Warnf("final flush failed: %v", err)
		}
	}
}

func (r *Refresher) countOutcome(outcome Outcome) {
	if r.metrics != nil {
		r.metrics.StoreRefreshes.WithLabelValues(string(outcome)).Inc()
	}
}

func (r *Refresher) countLookup(result string) {
	if r.metrics != nil {
		r.metrics.ResultCache.WithLabelValues(result).Inc()
	}
}

func (r *Refresher) countDrops(dropped analytics.DroppedCounts) {
	if r.metrics == nil {
		return
	}
	r.metrics.ReadingsDropped.WithLabelValues("window").Add(float64(dropped.OutOfWindow))
	r.metrics.ReadingsDropped.WithLabelValues("hours").Add(float64(dropped.AfterHours))
	r.metrics.ReadingsDropped.WithLabelValues("range").Add(float64(dropped.OutOfRange))
	r.metrics.ReadingsDropped.WithLabelValues("delivery").Add(float64(dropped.Deliveries))
}

func groupByTank(readings []model.Reading) map[string][]model.Reading {
	out := map[string][]model.Reading{}
	for _, r := range readings {
		out[r.TankID] = append(out[r.TankID], r)
	}
	return out
}

// latestPlausible picks the most recent reading with a physically possible
// level, regardless of business hours: the current level is a display and
// forecasting input even when the store is closed. Reports false when no
// reading qualifies.
func latestPlausible(readings []model.Reading, p analytics.Params) (model.Reading, bool) {
	var latest model.Reading
	found := false
	for _, r := range readings {
		if math.IsNaN(r.LevelInches) || math.IsInf(r.LevelInches, 0) ||
			r.LevelInches <= 0 || r.LevelInches > p.MaxLevelInches {
			continue
		}
		if !found || r.Timestamp.After(latest.Timestamp) {
			latest = r
			found = true
		}
	}
	return latest, found
}
