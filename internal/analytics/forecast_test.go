package analytics

import (
	"math"
	"testing"
	"time"

	"github.com/bassista/tankwatch/internal/model"
)

func estimate(rate float64) model.RateEstimate {
	return model.RateEstimate{
		TankID:       "tank-1",
		RatePerHour:  rate,
		SampleCount:  100,
		QualityScore: 0.9,
		ComputedAt:   baseTime,
	}
}

func TestBuildForecast_AlreadyCritical(t *testing.T) {
	p := DefaultParams()
	profile := testProfile()

	tests := []struct {
		name  string
		level float64
		rate  float64
	}{
		{"at threshold", 10, 0.2},
		{"below threshold", 5, 0.2},
		{"below threshold with zero rate", 5, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			forecast := BuildForecast(tt.level, estimate(tt.rate), profile, baseTime, p)

			if forecast.HoursToCritical != 0 {
				t.Errorf("expected 0 hours to critical, got %f", forecast.HoursToCritical)
			}
			if forecast.PredictedCriticalAt == nil || !forecast.PredictedCriticalAt.Equal(baseTime) {
				t.Errorf("expected predicted time now, got %v", forecast.PredictedCriticalAt)
			}
			if forecast.Status != model.StatusCritical {
				t.Errorf("expected critical status, got %s", forecast.Status)
			}
		})
	}
}

func TestBuildForecast_BusinessHoursScenario(t *testing.T) {
	p := DefaultParams()
	profile := testProfile() // critical 10", business 05:00-23:00

	// 25 inches draining at 0.2"/hr: 75 consumption hours to critical.
	forecast := BuildForecast(25, estimate(0.2), profile, baseTime, p)

	if math.Abs(forecast.HoursToCritical-75) > 0.001 {
		t.Errorf("expected 75 hours to critical, got %f", forecast.HoursToCritical)
	}
	if forecast.PredictedCriticalAt == nil {
		t.Fatal("expected a predicted timestamp")
	}
	if !profile.InBusinessHours(*forecast.PredictedCriticalAt) {
		t.Errorf("predicted time %v lands outside business hours", forecast.PredictedCriticalAt)
	}
	// 75 business hours from Monday 10:00 with an 18h open day: 13h remain on
	// Monday, then 18h Tuesday, 18h Wednesday, 18h Thursday leaves 8h into
	// Friday's open window.
	want := time.Date(2025, 6, 6, 13, 0, 0, 0, time.UTC)
	if !forecast.PredictedCriticalAt.Equal(want) {
		t.Errorf("expected predicted time %v, got %v", want, forecast.PredictedCriticalAt)
	}
}

func TestBuildForecast_AlwaysLandsInBusinessHours(t *testing.T) {
	p := DefaultParams()
	profile := testProfile()

	for _, level := range []float64{12, 15, 25, 40, 60} {
		forecast := BuildForecast(level, estimate(0.37), profile, baseTime, p)
		if forecast.PredictedCriticalAt == nil {
			t.Fatalf("level %f: expected a predicted timestamp", level)
		}
		if !profile.InBusinessHours(*forecast.PredictedCriticalAt) {
			t.Errorf("level %f: predicted time %v outside business hours", level, forecast.PredictedCriticalAt)
		}
	}
}

func TestBuildForecast_SafetyCap(t *testing.T) {
	p := DefaultParams()
	profile := testProfile()

	// 0.01"/hr over 90 inches is 9000 consumption hours, past the walk cap.
	forecast := BuildForecast(100, estimate(0.01), profile, baseTime, p)

	if forecast.PredictedCriticalAt != nil {
		t.Errorf("expected nil predicted time past the safety cap, got %v", forecast.PredictedCriticalAt)
	}
	if forecast.HoursToCritical != 9000 {
		t.Errorf("expected 9000 hours to critical, got %f", forecast.HoursToCritical)
	}
}

func TestBuildForecast_ZeroRateFallsBackToDefault(t *testing.T) {
	p := DefaultParams()
	profile := testProfile()

	forecast := BuildForecast(25, estimate(0), profile, baseTime, p)

	want := (25.0 - profile.CriticalLevelInches) / p.DefaultRatePerHour
	if math.Abs(forecast.HoursToCritical-want) > 0.001 {
		t.Errorf("expected %f hours with default rate, got %f", want, forecast.HoursToCritical)
	}
}

func TestClassifyStatus(t *testing.T) {
	profile := testProfile() // critical 10", warning 20"

	tests := []struct {
		name            string
		level           float64
		hoursToCritical float64
		want            model.TankStatus
	}{
		{"level at critical", 10, 0, model.StatusCritical},
		{"level below critical", 8, 0, model.StatusCritical},
		{"imminent depletion", 30, 12, model.StatusCritical},
		{"level at warning", 20, 100, model.StatusWarning},
		{"depletion within two days", 40, 36, model.StatusWarning},
		{"healthy", 40, 200, model.StatusNormal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyStatus(tt.level, tt.hoursToCritical, profile)
			if got != tt.want {
				t.Errorf("ClassifyStatus(%f, %f) = %s, want %s", tt.level, tt.hoursToCritical, got, tt.want)
			}
		})
	}
}
