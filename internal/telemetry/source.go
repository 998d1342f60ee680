package telemetry

import (
	"context"
	"fmt"

	"github.com/bassista/tankwatch/internal/config"
	"github.com/bassista/tankwatch/internal/model"
)

const (
	SourceTypeHTTP   = "http"
	SourceTypeMemory = "memory"
)

// Window bounds a readings request. Exactly one of Hours or Days is set;
// upstream gauges answer hour-bounded requests faster but not all of them
// support it, so callers fall back to a day-bounded request on failure.
type Window struct {
	Hours int
	Days  int
}

// HoursWindow requests the last h hours of readings.
func HoursWindow(h int) Window { return Window{Hours: h} }

// DaysWindow requests the last d days of readings.
func DaysWindow(d int) Window { return Window{Days: d} }

func (w Window) String() string {
	if w.Hours > 0 {
		return fmt.Sprintf("%dh", w.Hours)
	}
	return fmt.Sprintf("%dd", w.Days)
}

// Source abstracts the upstream telemetry provider.
type Source interface {
	ListStores(ctx context.Context) ([]string, error)
	GetStoreReadings(ctx context.Context, storeID string, window Window) ([]model.Reading, error)
}

// NewSourceFromConfig creates a Source based on the configured source type.
// "memory" yields a seeded in-memory source for development and tests;
// "http" (the default) talks to the real telemetry API.
func NewSourceFromConfig(cfg config.TelemetryConfig) (Source, error) {
	switch cfg.SourceType {
	case SourceTypeMemory:
		return NewMemorySource().SeedDemo(), nil
	case SourceTypeHTTP, "":
		return NewHTTPClient(cfg.BaseURL, cfg.FetchTimeout, cfg.MaxAttempts)
	default:
		return nil, fmt.Errorf("unknown telemetry source type: %s (supported: %s, %s)",
			cfg.SourceType, SourceTypeHTTP, SourceTypeMemory)
	}
}
