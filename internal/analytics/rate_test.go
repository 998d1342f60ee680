package analytics

import (
	"math"
	"testing"
	"time"

	"github.com/bassista/tankwatch/internal/model"
)

// drainReadings generates hourly business-hours readings over the given
// number of days, with the level falling at ratePerHour around the clock.
func drainReadings(start time.Time, days int, startLevel, ratePerHour float64, profile model.TankProfile) []model.Reading {
	var out []model.Reading
	for d := 0; d < days; d++ {
		day := start.AddDate(0, 0, d)
		for h := profile.BusinessOpenHour; h < profile.BusinessCloseHour; h++ {
			ts := time.Date(day.Year(), day.Month(), day.Day(), h, 0, 0, 0, day.Location())
			elapsed := ts.Sub(start).Hours()
			out = append(out, reading(ts, startLevel-ratePerHour*elapsed))
		}
	}
	return out
}

func TestEstimateRate_InsufficientReadings(t *testing.T) {
	p := DefaultParams()

	readings := []model.Reading{
		reading(baseTime.Add(-2*time.Hour), 50),
		reading(baseTime.Add(-1*time.Hour), 49.8),
	}

	estimate := EstimateRate("tank-1", readings, p, baseTime)

	if estimate.RatePerHour != p.DefaultRatePerHour {
		t.Errorf("expected default rate %f, got %f", p.DefaultRatePerHour, estimate.RatePerHour)
	}
	if estimate.QualityScore != 0 {
		t.Errorf("expected quality 0, got %f", estimate.QualityScore)
	}
	if estimate.SampleCount != 2 {
		t.Errorf("expected sample count 2, got %d", estimate.SampleCount)
	}
}

func TestEstimateRate_ConvergesToKnownRate(t *testing.T) {
	p := DefaultParams()
	profile := testProfile()
	start := time.Date(2025, 5, 26, 5, 0, 0, 0, time.UTC) // Monday 05:00

	readings := drainReadings(start, 7, 100, 0.2, profile)
	estimate := EstimateRate("tank-1", readings, p, baseTime)

	if math.Abs(estimate.RatePerHour-0.2) > 0.01 {
		t.Errorf("expected rate near 0.2, got %f", estimate.RatePerHour)
	}
	if estimate.QualityScore < 0.9 {
		t.Errorf("expected high quality for a dense week of data, got %f", estimate.QualityScore)
	}
}

func TestEstimateRate_AlwaysInsideBand(t *testing.T) {
	p := DefaultParams()
	profile := testProfile()
	start := time.Date(2025, 5, 26, 5, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		rate float64
	}{
		{"implausibly fast drain", 5.0},
		{"implausibly slow drain", 0.0001},
		{"normal drain", 0.3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			readings := drainReadings(start, 7, 120, tt.rate, profile)
			estimate := EstimateRate("tank-1", readings, p, baseTime)

			if estimate.RatePerHour < p.MinRatePerHour || estimate.RatePerHour > p.MaxRatePerHour {
				t.Errorf("rate %f escaped band [%f, %f]",
					estimate.RatePerHour, p.MinRatePerHour, p.MaxRatePerHour)
			}
		})
	}
}

func TestEstimateRate_NoDrainingDeltas(t *testing.T) {
	p := DefaultParams()

	// Slowly rising level: no draining deltas, so no valid buckets.
	var readings []model.Reading
	for i := 0; i < 10; i++ {
		readings = append(readings, reading(baseTime.Add(time.Duration(i)*time.Hour), 50+0.1*float64(i)))
	}

	estimate := EstimateRate("tank-1", readings, p, baseTime)

	if estimate.RatePerHour != p.DefaultRatePerHour {
		t.Errorf("expected default rate, got %f", estimate.RatePerHour)
	}
	if estimate.QualityScore != 0 {
		t.Errorf("expected quality 0, got %f", estimate.QualityScore)
	}
}

func TestEstimateRate_DeliveryExcludedFromRate(t *testing.T) {
	p := DefaultParams()
	profile := testProfile()
	start := time.Date(2025, 5, 26, 5, 0, 0, 0, time.UTC)

	// Normal 0.2"/hr decline with a 10 inch delivery jump mid-window.
	readings := drainReadings(start, 7, 100, 0.2, profile)
	for i := range readings {
		if readings[i].Timestamp.After(start.Add(72 * time.Hour)) {
			readings[i].LevelInches += 10 // tank refilled partway through
		}
	}

	sanitized := Sanitize(readings, profile, baseTime, p)
	estimate := EstimateRate("tank-1", sanitized.Readings, p, baseTime)

	// The jump itself is excluded; the surviving draining segments still
	// reflect the true rate.
	if math.Abs(estimate.RatePerHour-0.2) > 0.02 {
		t.Errorf("expected rate near 0.2 despite delivery, got %f", estimate.RatePerHour)
	}
}

func TestEstimateRate_DuplicateTimestampsIgnored(t *testing.T) {
	p := DefaultParams()

	ts := baseTime
	readings := []model.Reading{
		reading(ts, 50),
		reading(ts, 50), // duplicate
		reading(ts.Add(1*time.Hour), 49.8),
		reading(ts.Add(2*time.Hour), 49.6),
		reading(ts.Add(3*time.Hour), 49.4),
		reading(ts.Add(4*time.Hour), 49.2),
	}

	estimate := EstimateRate("tank-1", readings, p, baseTime)

	if math.Abs(estimate.RatePerHour-0.2) > 0.01 {
		t.Errorf("expected rate near 0.2, got %f", estimate.RatePerHour)
	}
}
