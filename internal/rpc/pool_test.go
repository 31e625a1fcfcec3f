package rpc

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wnt/walletpnl/internal/metrics"
)

func TestNewPoolRequiresEndpoints(t *testing.T) {
	_, err := NewPool(nil, DefaultPoolOptions, zerolog.Nop())
	assert.Error(t, err)
}

func TestPoolRoundRobin(t *testing.T) {
	urls := []string{"http://a", "http://b", "http://c"}
	pool, err := NewPool(urls, testPoolOptions, zerolog.Nop())
	require.NoError(t, err)

	seen := make(map[string]int)
	for i := 0; i < 6; i++ {
		_, url, err := pool.GetClient(context.Background())
		require.NoError(t, err)
		seen[url]++
	}

	for _, url := range urls {
		assert.Equal(t, 2, seen[url], url)
	}
}

func TestPoolSkipsUnavailableEndpoints(t *testing.T) {
	pool, err := NewPool([]string{"http://a", "http://b", "http://c"}, testPoolOptions, zerolog.Nop())
	require.NoError(t, err)

	pool.MarkUnhealthy("http://a")
	pool.SetCooldown("http://b", time.Minute)
	assert.Equal(t, 1, pool.GetHealthyEndpointCount())

	for i := 0; i < 4; i++ {
		_, url, err := pool.GetClient(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "http://c", url)
	}

	pool.MarkHealthy("http://b")
	assert.Equal(t, 2, pool.GetHealthyEndpointCount())
}

func TestPoolFallsBackWhenAllUnavailable(t *testing.T) {
	pool, err := NewPool([]string{"http://a"}, testPoolOptions, zerolog.Nop())
	require.NoError(t, err)

	pool.MarkUnhealthy("http://a")
	_, url, err := pool.GetClient(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "http://a", url)
}

func TestPoolWaitRespectsContext(t *testing.T) {
	pool, err := NewPool([]string{"http://a"}, PoolOptions{RateLimit: 0.001, Burst: 1, Timeout: time.Second}, zerolog.Nop())
	require.NoError(t, err)

	_, _, err = pool.GetClient(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, _, err = pool.GetClient(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPoolStats(t *testing.T) {
	pool, err := NewPool([]string{"http://a", "http://b"}, testPoolOptions, zerolog.Nop())
	require.NoError(t, err)

	pool.SetCooldown("http://a", time.Minute)
	stats := pool.GetStats()
	require.Len(t, stats, 2)
	assert.True(t, stats[0].InCooldown)
	assert.False(t, stats[1].InCooldown)
	assert.True(t, stats[1].Healthy)
}

func TestPoolReportStats(t *testing.T) {
	pool, err := NewPool([]string{"http://report-a", "http://report-b"}, testPoolOptions, zerolog.Nop())
	require.NoError(t, err)

	pool.MarkUnhealthy("http://report-a")
	stats := pool.ReportStats()

	require.Len(t, stats, 2)
	assert.Equal(t, 1, pool.GetHealthyEndpointCount())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RPCEndpointsAvailable))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.RPCEndpointHealth.WithLabelValues("http://report-a")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RPCEndpointHealth.WithLabelValues("http://report-b")))
}
