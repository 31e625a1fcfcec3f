package services

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/wnt/walletpnl/internal/utils"
)

const DefaultDexScreenerBaseURL = "https://api.dexscreener.com"

// DexScreenerClient reads liquidity pairs from the DexScreener public API
type DexScreenerClient struct {
	httpClient *utils.HTTPClient
}

// NewDexScreenerClient creates a client for baseURL
func NewDexScreenerClient(baseURL string, timeout time.Duration) *DexScreenerClient {
	if baseURL == "" {
		baseURL = DefaultDexScreenerBaseURL
	}
	return &DexScreenerClient{
		httpClient: utils.NewHTTPClient(
			utils.WithBaseURL(baseURL),
			utils.WithTimeout(timeout),
		),
	}
}

type DexToken struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}

// DexPair is one liquidity pair. PairCreatedAt is in unix milliseconds.
type DexPair struct {
	ChainID       string   `json:"chainId"`
	DexID         string   `json:"dexId"`
	PairAddress   string   `json:"pairAddress"`
	BaseToken     DexToken `json:"baseToken"`
	QuoteToken    DexToken `json:"quoteToken"`
	PriceNative   string   `json:"priceNative"`
	PriceUsd      string   `json:"priceUsd"`
	PairCreatedAt int64    `json:"pairCreatedAt"`
}

// CreatedAt converts PairCreatedAt to a time
func (p DexPair) CreatedAt() time.Time {
	return time.UnixMilli(p.PairCreatedAt).UTC()
}

// TokenPairsResponse is returned by /latest/dex/tokens. Pairs is null for
// tokens without liquidity.
type TokenPairsResponse struct {
	SchemaVersion string    `json:"schemaVersion"`
	Pairs         []DexPair `json:"pairs"`
}

// TokenPairs returns the liquidity pairs of mint, most relevant first
func (c *DexScreenerClient) TokenPairs(ctx context.Context, mint string) ([]DexPair, error) {
	resp, err := c.httpClient.Get(ctx, "/latest/dex/tokens/"+url.PathEscape(mint), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pairs for %s: %w", mint, err)
	}

	var result TokenPairsResponse
	if err := resp.DecodeJSON(&result); err != nil {
		return nil, fmt.Errorf("failed to decode pairs for %s: %w", mint, err)
	}
	return result.Pairs, nil
}
