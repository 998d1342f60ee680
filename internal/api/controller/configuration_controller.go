package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bassista/tankwatch/internal/config"
)

// ConfigurationResponse exposes the operational tunables to API consumers.
type ConfigurationResponse struct {
	PollIntervalSec       int     `json:"pollIntervalSec"`
	StalenessThresholdSec int     `json:"stalenessThresholdSec"`
	RetentionHours        int     `json:"retentionHours"`
	SpikeThresholdInches  float64 `json:"spikeThresholdInches"`
	MinRatePerHour        float64 `json:"minRatePerHour"`
	MaxRatePerHour        float64 `json:"maxRatePerHour"`
	DefaultRatePerHour    float64 `json:"defaultRatePerHour"`
	ResultTTLSec          int     `json:"resultTtlSec"`
}

// ConfigurationController handles configuration-related API endpoints.
type ConfigurationController struct {
	config *config.Config
}

func NewConfigurationController(cfg *config.Config) *ConfigurationController {
	return &ConfigurationController{config: cfg}
}

// GetConfiguration returns the active tunables.
func (cc *ConfigurationController) GetConfiguration(c *gin.Context) {
	response := ConfigurationResponse{
		PollIntervalSec:       int(cc.config.Cache.PollInterval.Seconds()),
		StalenessThresholdSec: int(cc.config.Cache.StalenessThreshold.Seconds()),
		RetentionHours:        int(cc.config.Cache.RetentionAge.Hours()),
		SpikeThresholdInches:  cc.config.Analytics.SpikeThresholdInches,
		MinRatePerHour:        cc.config.Analytics.MinRatePerHour,
		MaxRatePerHour:        cc.config.Analytics.MaxRatePerHour,
		DefaultRatePerHour:    cc.config.Analytics.DefaultRatePerHour,
		ResultTTLSec:          int(cc.config.Analytics.ResultTTL.Seconds()),
	}
	c.JSON(http.StatusOK, response)
}
