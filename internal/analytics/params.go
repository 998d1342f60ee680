package analytics

import (
	"time"

	"github.com/bassista/tankwatch/internal/config"
)

// Params are the tunables for sanitization, rate estimation and forecasting.
// The defaults match typical retail-site tanks; all of them are exposed in
// configuration because the thresholds are operational judgments, not
// physical constants.
type Params struct {
	// Sanitizer
	Window               time.Duration // history considered for estimation
	SpikeThresholdInches float64       // level increase treated as a delivery
	SpikeMaxGap          time.Duration // max gap for spike detection
	MaxLevelInches       float64       // physical upper bound for a reading
	MinReadings          int           // below this, fall back to default rate

	// Rate band
	MinRatePerHour     float64
	MaxRatePerHour     float64
	DefaultRatePerHour float64

	// Quality scoring
	TargetSampleCount int
	TargetSpan        time.Duration
	TypicalMinRate    float64
	TypicalMaxRate    float64

	// Forecast walk safety cap
	MaxForecastHours int
}

// DefaultParams returns the stock tunables.
func DefaultParams() Params {
	return Params{
		Window:               28 * 24 * time.Hour,
		SpikeThresholdInches: 8.0,
		SpikeMaxGap:          4 * time.Hour,
		MaxLevelInches:       150.0,
		MinReadings:          5,
		MinRatePerHour:       0.01,
		MaxRatePerHour:       2.0,
		DefaultRatePerHour:   0.25,
		TargetSampleCount:    100,
		TargetSpan:           7 * 24 * time.Hour,
		TypicalMinRate:       0.05,
		TypicalMaxRate:       1.0,
		MaxForecastHours:     24 * 366,
	}
}

// ParamsFromConfig builds Params from the loaded configuration, keeping the
// defaults for anything the config does not override.
func ParamsFromConfig(cfg config.AnalyticsConfig) Params {
	p := DefaultParams()
	if cfg.WindowDays > 0 {
		p.Window = time.Duration(cfg.WindowDays) * 24 * time.Hour
	}
	if cfg.SpikeThresholdInches > 0 {
		p.SpikeThresholdInches = cfg.SpikeThresholdInches
	}
	if cfg.SpikeMaxGap > 0 {
		p.SpikeMaxGap = cfg.SpikeMaxGap
	}
	if cfg.MaxLevelInches > 0 {
		p.MaxLevelInches = cfg.MaxLevelInches
	}
	if cfg.MinReadings > 0 {
		p.MinReadings = cfg.MinReadings
	}
	if cfg.MinRatePerHour > 0 {
		p.MinRatePerHour = cfg.MinRatePerHour
	}
	if cfg.MaxRatePerHour > 0 {
		p.MaxRatePerHour = cfg.MaxRatePerHour
	}
	if cfg.DefaultRatePerHour > 0 {
		p.DefaultRatePerHour = cfg.DefaultRatePerHour
	}
	return p
}
