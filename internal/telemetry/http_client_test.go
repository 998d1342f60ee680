package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPClient_ListStores(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stores", r.URL.Path)
		w.Write([]byte(`{"stores":["store-1","store-2"]}`))
	}))
	defer srv.Close()

	client, err := NewHTTPClient(srv.URL, 5*time.Second, 3)
	require.NoError(t, err)

	stores, err := client.ListStores(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"store-1", "store-2"}, stores)
}

func TestHTTPClient_GetStoreReadings_HoursWindow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stores/store-1/readings", r.URL.Path)
		assert.Equal(t, "120", r.URL.Query().Get("hours"))
		assert.Empty(t, r.URL.Query().Get("days"))
		w.Write([]byte(`{"readings":[{"storeId":"store-1","tankId":"tank-1","timestamp":"2025-06-02T10:00:00Z","levelInches":42.5}]}`))
	}))
	defer srv.Close()

	client, err := NewHTTPClient(srv.URL, 5*time.Second, 3)
	require.NoError(t, err)

	readings, err := client.GetStoreReadings(context.Background(), "store-1", HoursWindow(120))
	require.NoError(t, err)
	require.Len(t, readings, 1)
	assert.Equal(t, "tank-1", readings[0].TankID)
	assert.Equal(t, 42.5, readings[0].LevelInches)
}

func TestHTTPClient_GetStoreReadings_DaysWindow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "5", r.URL.Query().Get("days"))
		w.Write([]byte(`{"readings":[]}`))
	}))
	defer srv.Close()

	client, err := NewHTTPClient(srv.URL, 5*time.Second, 3)
	require.NoError(t, err)

	_, err = client.GetStoreReadings(context.Background(), "store-1", DaysWindow(5))
	require.NoError(t, err)
}

func TestHTTPClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"stores":["store-1"]}`))
	}))
	defer srv.Close()

	client, err := NewHTTPClient(srv.URL, 5*time.Second, 3)
	require.NoError(t, err)

	stores, err := client.ListStores(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"store-1"}, stores)
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPClient_ClientErrorIsPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client, err := NewHTTPClient(srv.URL, 5*time.Second, 3)
	require.NoError(t, err)

	_, err = client.ListStores(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load(), "4xx responses must not be retried")
}

func TestHTTPClient_MalformedJSONSurfacesError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"stores": [truncated`))
	}))
	defer srv.Close()

	client, err := NewHTTPClient(srv.URL, 5*time.Second, 2)
	require.NoError(t, err)

	_, err = client.ListStores(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
}

func TestNewHTTPClient_RequiresBaseURL(t *testing.T) {
	_, err := NewHTTPClient("", time.Second, 3)
	require.Error(t, err)
}
