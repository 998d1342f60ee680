package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full application configuration, loaded from config.yaml
// with TANKWATCH_* environment overrides.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Analytics AnalyticsConfig `mapstructure:"analytics"`
	Profiles  ProfilesConfig  `mapstructure:"profiles"`
	Misc      MiscConfig      `mapstructure:"misc"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutDownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	AllowedOrigins  string        `mapstructure:"allowed_origins"`
}

type TelemetryConfig struct {
	// SourceType selects the upstream adapter: "http" or "memory".
	SourceType   string        `mapstructure:"source_type"`
	BaseURL      string        `mapstructure:"base_url"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
	WindowHours  int           `mapstructure:"window_hours"`
	WindowDays   int           `mapstructure:"window_days"`
}

type CacheConfig struct {
	DataDir            string        `mapstructure:"data_dir"`
	StalenessThreshold time.Duration `mapstructure:"staleness_threshold"`
	PollInterval       time.Duration `mapstructure:"poll_interval"`
	RetentionAge       time.Duration `mapstructure:"retention_age"`
}

type AnalyticsConfig struct {
	WindowDays           int           `mapstructure:"window_days"`
	SpikeThresholdInches float64       `mapstructure:"spike_threshold_inches"`
	SpikeMaxGap          time.Duration `mapstructure:"spike_max_gap"`
	MinReadings          int           `mapstructure:"min_readings"`
	MinRatePerHour       float64       `mapstructure:"min_rate_per_hour"`
	MaxRatePerHour       float64       `mapstructure:"max_rate_per_hour"`
	DefaultRatePerHour   float64       `mapstructure:"default_rate_per_hour"`
	MaxLevelInches       float64       `mapstructure:"max_level_inches"`
	ResultTTL            time.Duration `mapstructure:"result_ttl"`
	ResultCapacity       int           `mapstructure:"result_capacity"`
	MinQuality           float64       `mapstructure:"min_quality"`
}

type ProfilesConfig struct {
	FilePath string `mapstructure:"file_path"`
}

type MiscConfig struct {
	LogLevel string `mapstructure:"log_level"`
	GinMode  string `mapstructure:"gin_mode"`
	Timezone string `mapstructure:"timezone"`
}

// LoadConfig reads config.yaml from the given path (or ./config when empty)
// and applies TANKWATCH_* environment variable overrides.
func LoadConfig(confPath string) (*Config, error) {
	if confPath == "" {
		confPath = "./config"
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(confPath)

	setDefaults()

	// Environment variables automatically override config file values,
	// e.g. TANKWATCH_SERVER_PORT overrides server.port.
	viper.AutomaticEnv()
	viper.SetEnvPrefix("TANKWATCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		// No config file is fine: defaults and env vars apply.
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.request_timeout", "30s")
	viper.SetDefault("server.shutdown_timeout", "10s")
	viper.SetDefault("server.read_timeout", "15s")
	viper.SetDefault("server.write_timeout", "15s")
	viper.SetDefault("server.idle_timeout", "60s")
	viper.SetDefault("server.allowed_origins", "*")

	viper.SetDefault("telemetry.source_type", "http")
	viper.SetDefault("telemetry.base_url", "http://localhost:9090")
	viper.SetDefault("telemetry.fetch_timeout", "60s")
	viper.SetDefault("telemetry.max_attempts", 3)
	viper.SetDefault("telemetry.window_hours", 120)
	viper.SetDefault("telemetry.window_days", 5)

	viper.SetDefault("cache.data_dir", "./config/data/cache")
	viper.SetDefault("cache.staleness_threshold", "5m")
	viper.SetDefault("cache.poll_interval", "30s")
	viper.SetDefault("cache.retention_age", "120h") // 5 days

	viper.SetDefault("analytics.window_days", 28)
	viper.SetDefault("analytics.spike_threshold_inches", 8.0)
	viper.SetDefault("analytics.spike_max_gap", "4h")
	viper.SetDefault("analytics.min_readings", 5)
	viper.SetDefault("analytics.min_rate_per_hour", 0.01)
	viper.SetDefault("analytics.max_rate_per_hour", 2.0)
	viper.SetDefault("analytics.default_rate_per_hour", 0.25)
	viper.SetDefault("analytics.max_level_inches", 150.0)
	viper.SetDefault("analytics.result_ttl", "4h")
	viper.SetDefault("analytics.result_capacity", 500)
	viper.SetDefault("analytics.min_quality", 0.3)

	viper.SetDefault("profiles.file_path", "./config/data/profiles.json")

	viper.SetDefault("misc.log_level", "info")
	viper.SetDefault("misc.gin_mode", "release")
	viper.SetDefault("misc.timezone", "Local")
}

func (c *Config) validate() error {
	if c.Analytics.MinRatePerHour <= 0 || c.Analytics.MaxRatePerHour <= c.Analytics.MinRatePerHour {
		return fmt.Errorf("invalid rate band [%f, %f]", c.Analytics.MinRatePerHour, c.Analytics.MaxRatePerHour)
	}
	if c.Analytics.DefaultRatePerHour < c.Analytics.MinRatePerHour || c.Analytics.DefaultRatePerHour > c.Analytics.MaxRatePerHour {
		return fmt.Errorf("default rate %f outside band [%f, %f]",
			c.Analytics.DefaultRatePerHour, c.Analytics.MinRatePerHour, c.Analytics.MaxRatePerHour)
	}
	if c.Cache.StalenessThreshold <= 0 {
		return fmt.Errorf("staleness threshold must be positive, got %v", c.Cache.StalenessThreshold)
	}
	if c.Cache.RetentionAge <= c.Cache.StalenessThreshold {
		return fmt.Errorf("retention age %v must exceed staleness threshold %v",
			c.Cache.RetentionAge, c.Cache.StalenessThreshold)
	}
	if c.Telemetry.MaxAttempts < 1 {
		return fmt.Errorf("telemetry max attempts must be at least 1, got %d", c.Telemetry.MaxAttempts)
	}
	return nil
}
