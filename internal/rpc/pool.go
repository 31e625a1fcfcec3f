package rpc

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/wnt/walletpnl/internal/metrics"
	"golang.org/x/time/rate"
)

// PoolOptions configures per-endpoint limits
type PoolOptions struct {
	RateLimit float64
	Burst     int
	Timeout   time.Duration
}

// DefaultPoolOptions keeps each endpoint near free tier limits
var DefaultPoolOptions = PoolOptions{
	RateLimit: 2.0,
	Burst:     5,
	Timeout:   30 * time.Second,
}

// Pool manages a pool of RPC endpoints with load balancing and rate limiting
type Pool struct {
	endpoints []*Endpoint
	current   int
	mutex     sync.Mutex
	logger    zerolog.Logger
}

// Endpoint represents a single RPC endpoint with its own rate limiter
type Endpoint struct {
	URL           string
	client        *http.Client
	limiter       *rate.Limiter
	healthy       bool
	cooldownUntil time.Time
	mutex         sync.RWMutex
}

// EndpointStats is a point-in-time view of an endpoint
type EndpointStats struct {
	URL           string    `json:"url"`
	Healthy       bool      `json:"healthy"`
	InCooldown    bool      `json:"in_cooldown"`
	CooldownUntil time.Time `json:"cooldown_until"`
}

// NewPool creates a new RPC pool with the given endpoints
func NewPool(urls []string, opts PoolOptions, logger zerolog.Logger) (*Pool, error) {
	if len(urls) == 0 {
		return nil, fmt.Errorf("at least one RPC endpoint is required")
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = DefaultPoolOptions.RateLimit
	}
	if opts.Burst < 1 {
		opts.Burst = DefaultPoolOptions.Burst
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultPoolOptions.Timeout
	}

	endpoints := make([]*Endpoint, len(urls))
	for i, url := range urls {
		endpoints[i] = &Endpoint{
			URL:     url,
			client:  &http.Client{Timeout: opts.Timeout},
			limiter: rate.NewLimiter(rate.Limit(opts.RateLimit), opts.Burst),
			healthy: true,
		}
		metrics.SetRPCEndpointHealth(url, true)
	}

	return &Pool{
		endpoints: endpoints,
		current:   rand.Intn(len(endpoints)),
		logger:    logger.With().Str("component", "rpc_pool").Logger(),
	}, nil
}

// GetClient returns the next available RPC client using round-robin.
// When every endpoint is limited, unhealthy or cooling down it blocks on the
// first candidate's limiter until a token is available or ctx is done.
func (p *Pool) GetClient(ctx context.Context) (*http.Client, string, error) {
	p.mutex.Lock()
	startIndex := p.current
	for attempts := 0; attempts < len(p.endpoints); attempts++ {
		endpoint := p.endpoints[p.current]
		p.current = (p.current + 1) % len(p.endpoints)

		if !endpoint.available() {
			p.logger.Debug().Str("endpoint", endpoint.URL).Msg("Endpoint unavailable, skipping")
			continue
		}

		if endpoint.limiter.Allow() {
			p.mutex.Unlock()
			return endpoint.client, endpoint.URL, nil
		}

		p.logger.Debug().Str("endpoint", endpoint.URL).Msg("Endpoint rate limited, trying next")
	}
	endpoint := p.endpoints[startIndex]
	p.mutex.Unlock()

	p.logger.Debug().
		Str("endpoint", endpoint.URL).
		Msg("All endpoints busy, waiting for availability")

	reservation := endpoint.limiter.Reserve()
	if !reservation.OK() {
		return nil, "", fmt.Errorf("rate limiter failed to make reservation")
	}

	if delay := reservation.Delay(); delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			reservation.Cancel()
			return nil, "", ctx.Err()
		}
	}

	return endpoint.client, endpoint.URL, nil
}

func (e *Endpoint) available() bool {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	return e.healthy && !time.Now().Before(e.cooldownUntil)
}

func (p *Pool) find(url string) *Endpoint {
	for _, endpoint := range p.endpoints {
		if endpoint.URL == url {
			return endpoint
		}
	}
	return nil
}

// MarkUnhealthy marks an endpoint as unhealthy
func (p *Pool) MarkUnhealthy(url string) {
	endpoint := p.find(url)
	if endpoint == nil {
		return
	}

	endpoint.mutex.Lock()
	wasHealthy := endpoint.healthy
	endpoint.healthy = false
	endpoint.mutex.Unlock()

	metrics.SetRPCEndpointHealth(url, false)
	if wasHealthy {
		p.logger.Warn().Str("endpoint", url).Msg("Marked endpoint as unhealthy")
	}
}

// MarkHealthy marks an endpoint as healthy and clears any cooldown
func (p *Pool) MarkHealthy(url string) {
	endpoint := p.find(url)
	if endpoint == nil {
		return
	}

	endpoint.mutex.Lock()
	wasHealthy := endpoint.healthy
	endpoint.healthy = true
	endpoint.cooldownUntil = time.Time{}
	endpoint.mutex.Unlock()

	metrics.SetRPCEndpointHealth(url, true)
	if !wasHealthy {
		p.logger.Info().Str("endpoint", url).Msg("Marked endpoint as healthy")
	}
}

// SetCooldown puts an endpoint in cooldown for the specified duration
func (p *Pool) SetCooldown(url string, duration time.Duration) {
	endpoint := p.find(url)
	if endpoint == nil {
		return
	}

	endpoint.mutex.Lock()
	endpoint.cooldownUntil = time.Now().Add(duration)
	endpoint.mutex.Unlock()

	p.logger.Warn().
		Str("endpoint", url).
		Dur("duration", duration).
		Msg("Set endpoint cooldown")
}

// GetHealthyEndpointCount returns the number of endpoints ready to serve
func (p *Pool) GetHealthyEndpointCount() int {
	count := 0
	for _, endpoint := range p.endpoints {
		if endpoint.available() {
			count++
		}
	}
	return count
}

// GetStats returns per-endpoint statistics
func (p *Pool) GetStats() []EndpointStats {
	stats := make([]EndpointStats, len(p.endpoints))
	now := time.Now()
	for i, endpoint := range p.endpoints {
		endpoint.mutex.RLock()
		stats[i] = EndpointStats{
			URL:           endpoint.URL,
			Healthy:       endpoint.healthy,
			InCooldown:    now.Before(endpoint.cooldownUntil),
			CooldownUntil: endpoint.cooldownUntil,
		}
		endpoint.mutex.RUnlock()
	}
	return stats
}

// ReportStats refreshes the endpoint gauges and logs the pool state
func (p *Pool) ReportStats() []EndpointStats {
	stats := p.GetStats()
	available := p.GetHealthyEndpointCount()
	metrics.RPCEndpointsAvailable.Set(float64(available))

	for _, s := range stats {
		metrics.SetRPCEndpointHealth(s.URL, s.Healthy)
		p.logger.Debug().
			Str("endpoint", s.URL).
			Bool("healthy", s.Healthy).
			Bool("in_cooldown", s.InCooldown).
			Msg("RPC endpoint status")
	}

	p.logger.Info().
		Int("available", available).
		Int("total", len(stats)).
		Msg("RPC pool status")
	return stats
}
