package model

import (
	"fmt"
	"time"
)

// TankStatus is the classified health of a tank.
type TankStatus string

const (
	StatusNormal   TankStatus = "normal"
	StatusWarning  TankStatus = "warning"
	StatusCritical TankStatus = "critical"
)

// Reading is one timestamped tank measurement. Readings are immutable once
// recorded; duplicates share the same (storeId, tankId, timestamp) key.
type Reading struct {
	StoreID       string    `json:"storeId"`
	TankID        string    `json:"tankId"`
	Timestamp     time.Time `json:"timestamp"`
	LevelInches   float64   `json:"levelInches"`
	VolumeGallons float64   `json:"volumeGallons"`
	Temperature   float64   `json:"temperature"`
	WaterInches   float64   `json:"waterInches"`
}

// TankProfile carries the externally supplied tank configuration: capacity,
// alert thresholds and the store's business hours (24h wall clock, half-open
// interval [open, close)).
type TankProfile struct {
	StoreID             string  `json:"storeId" validate:"required"`
	TankID              string  `json:"tankId" validate:"required"`
	CapacityGallons     float64 `json:"capacityGallons" validate:"gt=0"`
	CriticalLevelInches float64 `json:"criticalLevelInches" validate:"gt=0"`
	WarningLevelInches  float64 `json:"warningLevelInches" validate:"gt=0"`
	BusinessOpenHour    int     `json:"businessOpenHour" validate:"min=0,max=23"`
	BusinessCloseHour   int     `json:"businessCloseHour" validate:"min=1,max=24"`
}

// Validate checks the invariants that struct tags cannot express.
func (p TankProfile) Validate() error {
	if p.BusinessCloseHour <= p.BusinessOpenHour {
		return fmt.Errorf("tank %s/%s: business close hour %d must be after open hour %d",
			p.StoreID, p.TankID, p.BusinessCloseHour, p.BusinessOpenHour)
	}
	if p.WarningLevelInches < p.CriticalLevelInches {
		return fmt.Errorf("tank %s/%s: warning level %.1f below critical level %.1f",
			p.StoreID, p.TankID, p.WarningLevelInches, p.CriticalLevelInches)
	}
	return nil
}

// InBusinessHours reports whether t falls inside the store's open window.
func (p TankProfile) InBusinessHours(t time.Time) bool {
	h := t.Hour()
	return h >= p.BusinessOpenHour && h < p.BusinessCloseHour
}

// HourOfWeek maps a timestamp to its hour-of-week slot in [0,167]
// (day-of-week * 24 + hour, Sunday = 0).
func HourOfWeek(t time.Time) int {
	return int(t.Weekday())*24 + t.Hour()
}

// RateEstimate is the derived consumption rate for one tank.
type RateEstimate struct {
	TankID           string    `json:"tankId"`
	RatePerHour      float64   `json:"ratePerHour"` // inches of level per hour
	SampleCount      int       `json:"sampleCount"`
	QualityScore     float64   `json:"qualityScore"` // [0,1]
	ComputedAt       time.Time `json:"computedAt"`
	InputFingerprint uint64    `json:"inputFingerprint"`
}

// Forecast is the depletion projection derived from the latest reading,
// the rate estimate and the tank profile.
type Forecast struct {
	HoursToCritical     float64    `json:"hoursToCritical"`
	PredictedCriticalAt *time.Time `json:"predictedCriticalAt,omitempty"`
	Status              TankStatus `json:"status"`
}

// TankSnapshot is everything the cache retains for one tank: the latest
// reading, the retained historical window and the derived analytics.
type TankSnapshot struct {
	Latest   Reading      `json:"latest"`
	History  []Reading    `json:"history"`
	Rate     RateEstimate `json:"rate"`
	Forecast Forecast     `json:"forecast"`
}

// StoreCacheEntry is the per-store snapshot owned by the tiered store cache.
// It is mutated only through the cache's merge operation.
type StoreCacheEntry struct {
	StoreID         string                  `json:"storeId"`
	Tanks           map[string]TankSnapshot `json:"tanks"`
	CreatedAt       time.Time               `json:"createdAt"`
	LastRefreshedAt time.Time               `json:"lastRefreshedAt"`
}

// Age returns how long ago the entry was last refreshed.
func (e StoreCacheEntry) Age(now time.Time) time.Duration {
	return now.Sub(e.LastRefreshedAt)
}
