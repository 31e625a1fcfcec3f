package services

import (
	"context"
	"fmt"
	"time"

	"github.com/wnt/walletpnl/internal/utils"
)

const DefaultCoinGeckoBaseURL = "https://api.coingecko.com"

// SolanaCoinID is the CoinGecko id of SOL
const SolanaCoinID = "solana"

// CoinGeckoClient reads spot prices from the CoinGecko simple price API
type CoinGeckoClient struct {
	httpClient *utils.HTTPClient
}

func NewCoinGeckoClient(baseURL string, timeout time.Duration) *CoinGeckoClient {
	if baseURL == "" {
		baseURL = DefaultCoinGeckoBaseURL
	}
	return &CoinGeckoClient{
		httpClient: utils.NewHTTPClient(
			utils.WithBaseURL(baseURL),
			utils.WithTimeout(timeout),
		),
	}
}

// SimplePrice returns the price of coinID in the vs currency
func (c *CoinGeckoClient) SimplePrice(ctx context.Context, coinID, vs string) (float64, error) {
	resp, err := c.httpClient.Get(ctx, "/api/v3/simple/price", map[string]string{
		"ids":           coinID,
		"vs_currencies": vs,
	}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch %s price: %w", coinID, err)
	}

	var prices map[string]map[string]float64
	if err := resp.DecodeJSON(&prices); err != nil {
		return 0, fmt.Errorf("failed to decode %s price: %w", coinID, err)
	}

	price, ok := prices[coinID][vs]
	if !ok {
		return 0, fmt.Errorf("no %s price for %s", vs, coinID)
	}
	return price, nil
}
