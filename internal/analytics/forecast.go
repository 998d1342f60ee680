package analytics

import (
	"time"

	"github.com/bassista/tankwatch/internal/model"
)

// BuildForecast projects when the tank reaches its critical level.
//
// Consumption only happens during business hours, so the predicted timestamp
// is found by walking wall-clock time forward one hour at a time and spending
// remaining consumption hours only inside the open window. The walk is capped
// to avoid spinning on corrupt input; if the landing hour falls outside
// business hours it snaps forward to the next opening.
func BuildForecast(level float64, rate model.RateEstimate, profile model.TankProfile, now time.Time, p Params) model.Forecast {
	forecast := model.Forecast{}

	if level <= profile.CriticalLevelInches {
		forecast.HoursToCritical = 0
		at := now
		forecast.PredictedCriticalAt = &at
		forecast.Status = ClassifyStatus(level, forecast.HoursToCritical, profile)
		return forecast
	}

	perHour := rate.RatePerHour
	if perHour <= 0 {
		perHour = p.DefaultRatePerHour
	}
	forecast.HoursToCritical = (level - profile.CriticalLevelInches) / perHour

	remaining := forecast.HoursToCritical
	t := now.Truncate(time.Hour)
	for i := 0; i < p.MaxForecastHours && remaining > 0; i++ {
		if profile.InBusinessHours(t) {
			remaining--
		}
		t = t.Add(time.Hour)
	}

	if remaining <= 0 {
		t = snapToBusinessHours(t, profile, p.MaxForecastHours)
		forecast.PredictedCriticalAt = &t
	}
	// remaining > 0 means the walk hit the safety cap; leave the timestamp nil.

	forecast.Status = ClassifyStatus(level, forecast.HoursToCritical, profile)
	return forecast
}

// snapToBusinessHours advances t to the next hour inside the open window.
func snapToBusinessHours(t time.Time, profile model.TankProfile, cap int) time.Time {
	for i := 0; i < cap && !profile.InBusinessHours(t); i++ {
		t = t.Add(time.Hour)
	}
	return t
}

// ClassifyStatus maps level and forecast horizon into a tank status.
// Pure and cheap; recomputed on every pipeline pass.
func ClassifyStatus(level, hoursToCritical float64, profile model.TankProfile) model.TankStatus {
	if level <= profile.CriticalLevelInches {
		return model.StatusCritical
	}
	if hoursToCritical > 0 && hoursToCritical < 24 {
		return model.StatusCritical
	}
	if level <= profile.WarningLevelInches || hoursToCritical < 48 {
		return model.StatusWarning
	}
	return model.StatusNormal
}
