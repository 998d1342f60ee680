package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/bassista/tankwatch/internal/logger"
	"github.com/bassista/tankwatch/internal/model"
)

// HTTPClient talks to the upstream telemetry API. The upstream is treated as
// unreliable: every request runs with a timeout and bounded exponential-backoff
// retry, and malformed responses surface as errors rather than panics.
type HTTPClient struct {
	baseURL     string
	httpClient  *http.Client
	maxAttempts int
}

// NewHTTPClient creates a telemetry client for the given base URL.
func NewHTTPClient(baseURL string, timeout time.Duration, maxAttempts int) (*HTTPClient, error) {
	if baseURL == "" {
		return nil, errors.New("telemetry base URL is required")
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &HTTPClient{
		baseURL:     baseURL,
		httpClient:  &http.Client{Timeout: timeout},
		maxAttempts: maxAttempts,
	}, nil
}

type storesResponse struct {
	Stores []string `json:"stores"`
}

type readingsResponse struct {
	Readings []model.Reading `json:"readings"`
}

// ListStores returns the store IDs the upstream knows about.
func (c *HTTPClient) ListStores(ctx context.Context) ([]string, error) {
	var out storesResponse
	if err := c.getJSON(ctx, c.baseURL+"/stores", &out); err != nil {
		return nil, fmt.Errorf("list stores: %w", err)
	}
	return out.Stores, nil
}

// GetStoreReadings fetches one store's readings for the given window.
func (c *HTTPClient) GetStoreReadings(ctx context.Context, storeID string, window Window) ([]model.Reading, error) {
	u := fmt.Sprintf("%s/stores/%s/readings", c.baseURL, url.PathEscape(storeID))
	params := url.Values{}
	if window.Hours > 0 {
		params.Set("hours", strconv.Itoa(window.Hours))
	} else {
		params.Set("days", strconv.Itoa(window.Days))
	}

	var out readingsResponse
	if err := c.getJSON(ctx, u+"?"+params.Encode(), &out); err != nil {
		return nil, fmt.Errorf("readings for store %s (%s window): %w", storeID, window, err)
	}
	return out.Readings, nil
}

// getJSON performs a GET with bounded retry and decodes the JSON body.
func (c *HTTPClient) getJSON(ctx context.Context, fullURL string, out any) error {
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("create request: %w", err))
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			body, _ := io.ReadAll(resp.Body)
			// Client errors will not heal on retry.
			return backoff.Permanent(fmt.Errorf("telemetry API status %d: %s", resp.StatusCode, body))
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("telemetry API status %d", resp.StatusCode)
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			// Partial or garbled payloads happen; the retry may get a clean one.
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(newBackOff(), uint64(c.maxAttempts-1)),
		ctx,
	)

	err := backoff.RetryNotify(operation, policy, func(err error, wait time.Duration) {
		logger.WithComponent("telemetry").Warnf("fetch failed, retrying in %v: %v", wait, err)
	})
	return err
}

func newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	return b
}
