package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/wnt/walletpnl/internal/cache"
	"github.com/wnt/walletpnl/internal/metrics"
)

const noPair = "none"

// MarketData answers pair and price questions through a cache
type MarketData struct {
	dex    *DexScreenerClient
	gecko  *CoinGeckoClient
	cache  cache.Cache
	ttl    time.Duration
	logger zerolog.Logger
}

// NewMarketData wires the market clients to a cache
func NewMarketData(dex *DexScreenerClient, gecko *CoinGeckoClient, c cache.Cache, ttl time.Duration, logger zerolog.Logger) *MarketData {
	return &MarketData{
		dex:    dex,
		gecko:  gecko,
		cache:  c,
		ttl:    ttl,
		logger: logger.With().Str("component", "market_data").Logger(),
	}
}

// PairCreatedAt returns when mint's first listed pair was created. found is
// false when DexScreener knows no pair for it.
func (m *MarketData) PairCreatedAt(ctx context.Context, mint string) (time.Time, bool, error) {
	key := "pair:" + mint
	if cached, ok := m.cached(ctx, key); ok {
		if cached == noPair {
			return time.Time{}, false, nil
		}
		if ms, err := strconv.ParseInt(cached, 10, 64); err == nil {
			metrics.RecordExternalLookup("dexscreener", "cache_hit")
			return time.UnixMilli(ms).UTC(), true, nil
		}
	}

	pairs, err := m.dex.TokenPairs(ctx, mint)
	if err != nil {
		metrics.RecordExternalLookup("dexscreener", "error")
		return time.Time{}, false, err
	}

	if len(pairs) == 0 || pairs[0].PairCreatedAt <= 0 {
		metrics.RecordExternalLookup("dexscreener", "not_found")
		m.store(ctx, key, noPair)
		return time.Time{}, false, nil
	}

	metrics.RecordExternalLookup("dexscreener", "found")
	m.store(ctx, key, strconv.FormatInt(pairs[0].PairCreatedAt, 10))
	return pairs[0].CreatedAt(), true, nil
}

// SOLPrice returns the current SOL price in USD
func (m *MarketData) SOLPrice(ctx context.Context) (float64, error) {
	const key = "price:solana:usd"
	if cached, ok := m.cached(ctx, key); ok {
		if price, err := strconv.ParseFloat(cached, 64); err == nil {
			metrics.RecordExternalLookup("coingecko", "cache_hit")
			return price, nil
		}
	}

	price, err := m.gecko.SimplePrice(ctx, SolanaCoinID, "usd")
	if err != nil {
		metrics.RecordExternalLookup("coingecko", "error")
		return 0, fmt.Errorf("failed to get SOL price: %w", err)
	}

	metrics.RecordExternalLookup("coingecko", "found")
	m.store(ctx, key, strconv.FormatFloat(price, 'f', -1, 64))
	return price, nil
}

func (m *MarketData) cached(ctx context.Context, key string) (string, bool) {
	value, ok, err := m.cache.Get(ctx, key)
	if err != nil {
		m.logger.Warn().Err(err).Str("key", key).Msg("Cache read failed")
		return "", false
	}
	return value, ok
}

func (m *MarketData) store(ctx context.Context, key, value string) {
	if err := m.cache.Set(ctx, key, value, m.ttl); err != nil {
		m.logger.Warn().Err(err).Str("key", key).Msg("Cache write failed")
	}
}
