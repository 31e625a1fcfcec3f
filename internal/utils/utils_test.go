package utils

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilter(t *testing.T) {
	even := Filter([]int{1, 2, 3, 4, 5, 6}, func(n int) bool { return n%2 == 0 })
	assert.Equal(t, []int{2, 4, 6}, even)

	none := Filter([]string{"a"}, func(string) bool { return false })
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestHTTPClientGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/simple/price", r.URL.Path)
		assert.Equal(t, "solana", r.URL.Query().Get("ids"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Write([]byte(`{"solana":{"usd":150.5}}`))
	}))
	defer srv.Close()

	client := NewHTTPClient(WithBaseURL(srv.URL), WithRetries(0, 0))
	resp, err := client.Get(context.Background(), "/api/v3/simple/price", map[string]string{"ids": "solana"}, nil)
	require.NoError(t, err)
	assert.True(t, resp.IsSuccess())

	var out map[string]map[string]float64
	require.NoError(t, resp.DecodeJSON(&out))
	assert.Equal(t, 150.5, out["solana"]["usd"])
}

func TestHTTPClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := NewHTTPClient(WithBaseURL(srv.URL), WithRetries(3, time.Millisecond))
	resp, err := client.Get(context.Background(), "/", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPClientDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewHTTPClient(WithBaseURL(srv.URL), WithRetries(3, time.Millisecond))
	_, err := client.Get(context.Background(), "/missing", nil, nil)

	var httpErr *Error
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPClientHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewHTTPClient(WithBaseURL(srv.URL), WithRetries(5, time.Second))
	_, err := client.Get(ctx, "/", nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
