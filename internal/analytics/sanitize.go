package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/bassista/tankwatch/internal/model"
)

// DroppedCounts records why readings were discarded during sanitization.
type DroppedCounts struct {
	OutOfWindow int `json:"outOfWindow"`
	AfterHours  int `json:"afterHours"`
	OutOfRange  int `json:"outOfRange"`
	Deliveries  int `json:"deliveries"`
}

func (d DroppedCounts) Total() int {
	return d.OutOfWindow + d.AfterHours + d.OutOfRange + d.Deliveries
}

// SanitizeResult is the filtered reading sequence plus drop accounting.
type SanitizeResult struct {
	Readings []model.Reading
	Dropped  DroppedCounts
}

// Sufficient reports whether enough readings survived for rate estimation.
func (r SanitizeResult) Sufficient(minReadings int) bool {
	return len(r.Readings) >= minReadings
}

// Sanitize filters one tank's readings down to the consumption signal:
// it keeps only in-window, business-hours, physically plausible readings,
// sorted by timestamp, and drops delivery spikes so refuelings are never
// mistaken for negative consumption.
func Sanitize(readings []model.Reading, profile model.TankProfile, now time.Time, p Params) SanitizeResult {
	var result SanitizeResult
	cutoff := now.Add(-p.Window)

	kept := make([]model.Reading, 0, len(readings))
	for _, r := range readings {
		if r.Timestamp.Before(cutoff) || r.Timestamp.After(now) {
			result.Dropped.OutOfWindow++
			continue
		}
		if !profile.InBusinessHours(r.Timestamp) {
			result.Dropped.AfterHours++
			continue
		}
		if math.IsNaN(r.LevelInches) || math.IsInf(r.LevelInches, 0) ||
			r.LevelInches <= 0 || r.LevelInches > p.MaxLevelInches {
			result.Dropped.OutOfRange++
			continue
		}
		kept = append(kept, r)
	}

	sort.Slice(kept, func(i, j int) bool {
		return kept[i].Timestamp.Before(kept[j].Timestamp)
	})

	// A sharp level increase shortly after the previous reading is a delivery:
	// drop the spiked reading, keep walking from the last accepted one so the
	// post-delivery decline still contributes.
	result.Readings = make([]model.Reading, 0, len(kept))
	for _, r := range kept {
		if len(result.Readings) > 0 {
			prev := result.Readings[len(result.Readings)-1]
			gap := r.Timestamp.Sub(prev.Timestamp)
			rise := r.LevelInches - prev.LevelInches
			if rise >= p.SpikeThresholdInches && gap <= p.SpikeMaxGap {
				result.Dropped.Deliveries++
				continue
			}
		}
		result.Readings = append(result.Readings, r)
	}

	return result
}
