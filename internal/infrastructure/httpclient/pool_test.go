package httpclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPool() *Pool {
	config := DefaultConfig()
	config.BackoffBase = time.Millisecond
	config.BackoffMax = 5 * time.Millisecond
	return NewPool(config)
}

func TestGetJSON_RetriesRetryableStatus(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))
	defer server.Close()

	var out map[string]string
	err := testPool().GetJSON(context.Background(), server.URL, &out)

	require.NoError(t, err)
	assert.Equal(t, "ok", out["status"])
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls), "two 503s then success")
}

func TestGetJSON_NoRetryOnClientError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	err := testPool().GetJSON(context.Background(), server.URL, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "4xx is not retryable")
}

func TestPostJSON_ResendsBodyOnRetry(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload),
			"every attempt must carry the full body")
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"echo": payload["key"]})
	}))
	defer server.Close()

	var out map[string]string
	err := testPool().PostJSON(context.Background(), server.URL, map[string]string{"key": "value"}, &out)

	require.NoError(t, err)
	assert.Equal(t, "value", out["echo"])
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestDo_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := testPool().GetJSON(ctx, server.URL, nil)
	require.Error(t, err)
}

func TestStats_CountOutcomes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]int{"n": 1})
	}))
	defer server.Close()

	pool := testPool()
	for i := 0; i < 3; i++ {
		require.NoError(t, pool.GetJSON(context.Background(), server.URL, nil))
	}

	stats := pool.Stats()
	assert.Equal(t, int64(3), stats.TotalRequests)
	assert.Equal(t, int64(3), stats.SuccessRequests)
	assert.Zero(t, stats.FailedRequests)
	assert.Greater(t, stats.AvgLatency, time.Duration(0))
	assert.False(t, stats.LastRequestAt.IsZero())
}
