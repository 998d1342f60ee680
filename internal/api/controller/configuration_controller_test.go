package controller

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bassista/tankwatch/internal/config"
)

func TestGetConfiguration(t *testing.T) {
	cfg := &config.Config{
		Cache: config.CacheConfig{
			PollInterval:       30 * time.Second,
			StalenessThreshold: 5 * time.Minute,
			RetentionAge:       120 * time.Hour,
		},
		Analytics: config.AnalyticsConfig{
			SpikeThresholdInches: 8.0,
			MinRatePerHour:       0.01,
			MaxRatePerHour:       2.0,
			DefaultRatePerHour:   0.25,
			ResultTTL:            4 * time.Hour,
		},
	}

	cc := NewConfigurationController(cfg)
	r := gin.New()
	r.GET("/api/configuration", cc.GetConfiguration)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/configuration", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var resp ConfigurationResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.PollIntervalSec != 30 {
		t.Errorf("poll interval = %d, want 30", resp.PollIntervalSec)
	}
	if resp.StalenessThresholdSec != 300 {
		t.Errorf("staleness threshold = %d, want 300", resp.StalenessThresholdSec)
	}
	if resp.RetentionHours != 120 {
		t.Errorf("retention = %d, want 120", resp.RetentionHours)
	}
	if resp.SpikeThresholdInches != 8.0 || resp.DefaultRatePerHour != 0.25 {
		t.Errorf("analytics tunables = %+v, want config values passed through", resp)
	}
	if resp.ResultTTLSec != 4*3600 {
		t.Errorf("result TTL = %d, want %d", resp.ResultTTLSec, 4*3600)
	}
}
