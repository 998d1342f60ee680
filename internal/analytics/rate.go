package analytics

import (
	"time"

	"github.com/bassista/tankwatch/internal/model"
)

// hoursPerWeek is the number of hour-of-week buckets.
const hoursPerWeek = 168

type rateBucket struct {
	rateSum float64 // sum of per-delta rates (inches/hour)
	count   int     // draining deltas observed
	hours   float64 // total elapsed hours contributing
}

// EstimateRate derives a consumption rate from sanitized readings.
//
// Consecutive-reading deltas are bucketed by the hour-of-week of the earlier
// reading. Each bucket keeps the mean rate over its draining deltas; the
// buckets are then combined with weights proportional to the hours observed
// in each, so sparsely observed hours of the week carry less influence.
// The combined rate is clamped to the configured physical band; anything
// outside it is bad data and is replaced by the default rate.
func EstimateRate(tankID string, readings []model.Reading, p Params, computedAt time.Time) model.RateEstimate {
	estimate := model.RateEstimate{
		TankID:      tankID,
		SampleCount: len(readings),
		ComputedAt:  computedAt,
	}

	if len(readings) < p.MinReadings {
		estimate.RatePerHour = p.DefaultRatePerHour
		estimate.QualityScore = 0
		return estimate
	}

	var buckets [hoursPerWeek]rateBucket
	for i := 1; i < len(readings); i++ {
		prev, cur := readings[i-1], readings[i]
		elapsed := cur.Timestamp.Sub(prev.Timestamp).Hours()
		if elapsed <= 0 {
			continue // duplicate or out-of-order timestamp
		}
		drop := prev.LevelInches - cur.LevelInches
		if drop <= 0 {
			continue // only draining deltas count toward consumption
		}
		b := &buckets[model.HourOfWeek(prev.Timestamp)]
		b.rateSum += drop / elapsed
		b.count++
		b.hours += elapsed
	}

	var weightedSum, totalHours float64
	for _, b := range buckets {
		if b.count == 0 {
			continue
		}
		mean := b.rateSum / float64(b.count)
		weightedSum += mean * b.hours
		totalHours += b.hours
	}

	if totalHours == 0 {
		estimate.RatePerHour = p.DefaultRatePerHour
		estimate.QualityScore = 0
		return estimate
	}

	rate := weightedSum / totalHours
	if rate < p.MinRatePerHour || rate > p.MaxRatePerHour {
		// Outside the physical band the rate is noise, not signal.
		rate = p.DefaultRatePerHour
	}

	estimate.RatePerHour = rate
	estimate.QualityScore = qualityScore(readings, rate, p)
	return estimate
}

// qualityScore combines sample count, time span covered and plausibility of
// the rate itself into a [0,1] confidence value.
func qualityScore(readings []model.Reading, rate float64, p Params) float64 {
	sampleCredit := float64(len(readings)) / float64(p.TargetSampleCount)
	if sampleCredit > 1 {
		sampleCredit = 1
	}

	span := readings[len(readings)-1].Timestamp.Sub(readings[0].Timestamp)
	spanCredit := float64(span) / float64(p.TargetSpan)
	if spanCredit > 1 {
		spanCredit = 1
	}

	typicalCredit := 0.0
	if rate >= p.TypicalMinRate && rate <= p.TypicalMaxRate {
		typicalCredit = 1.0
	}

	return 0.4*sampleCredit + 0.4*spanCredit + 0.2*typicalCredit
}
