package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/wnt/walletpnl/internal/metrics"
	"github.com/wnt/walletpnl/internal/solana"
)

// RpcRequest represents a JSON RPC request
type RpcRequest struct {
	Jsonrpc string        `json:"jsonrpc"`
	ID      string        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

// RpcResponse represents a JSON RPC response
type RpcResponse struct {
	Jsonrpc string          `json:"jsonrpc"`
	ID      string          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RpcError       `json:"error"`
}

// RpcError represents an RPC error
type RpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// NewRequest builds a request with a fresh id
func NewRequest(method string, params ...interface{}) RpcRequest {
	return RpcRequest{
		Jsonrpc: "2.0",
		ID:      uuid.NewString(),
		Method:  method,
		Params:  params,
	}
}

var errRateLimited = errors.New("rate limited")

// Fetcher issues JSON-RPC calls through the pool with retries and backoff
type Fetcher struct {
	pool       *Pool
	logger     zerolog.Logger
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	cooldown   time.Duration
}

// FetcherOption configures a Fetcher
type FetcherOption func(*Fetcher)

// WithMaxRetries sets how many times a failed call is retried
func WithMaxRetries(n int) FetcherOption {
	return func(f *Fetcher) {
		f.maxRetries = n
	}
}

// WithBackoff sets the base and maximum retry delay
func WithBackoff(base, maxDelay time.Duration) FetcherOption {
	return func(f *Fetcher) {
		f.baseDelay = base
		f.maxDelay = maxDelay
	}
}

// WithCooldown sets how long a rate limited endpoint is skipped
func WithCooldown(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		f.cooldown = d
	}
}

// NewFetcher creates a new fetcher
func NewFetcher(pool *Pool, logger zerolog.Logger, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		pool:       pool,
		logger:     logger.With().Str("component", "rpc_fetcher").Logger(),
		maxRetries: 5,
		baseDelay:  250 * time.Millisecond,
		maxDelay:   30 * time.Second,
		cooldown:   5 * time.Minute,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// GetTokenAccountsByOwner lists SPL token accounts owned by owner
func (f *Fetcher) GetTokenAccountsByOwner(ctx context.Context, owner string) ([]solana.KeyedTokenAccount, error) {
	var result solana.TokenAccountsResult
	err := f.call(ctx, &result, "getTokenAccountsByOwner",
		owner,
		map[string]interface{}{"programId": solana.TokenProgramID},
		map[string]interface{}{"encoding": "jsonParsed", "commitment": "confirmed"},
	)
	if err != nil {
		return nil, err
	}
	return result.Value, nil
}

// GetSignaturesForAddress returns up to limit signatures older than before, newest first
func (f *Fetcher) GetSignaturesForAddress(ctx context.Context, address, before string, limit int) ([]solana.SignatureInfo, error) {
	opts := map[string]interface{}{
		"limit":      limit,
		"commitment": "confirmed",
	}
	if before != "" {
		opts["before"] = before
	}

	var result []solana.SignatureInfo
	if err := f.call(ctx, &result, "getSignaturesForAddress", address, opts); err != nil {
		return nil, err
	}
	return result, nil
}

// GetTransaction fetches a parsed transaction. A nil result means the node does not know it.
func (f *Fetcher) GetTransaction(ctx context.Context, signature string) (*solana.Transaction, error) {
	var result *solana.Transaction
	err := f.call(ctx, &result, "getTransaction",
		signature,
		map[string]interface{}{
			"encoding":                       "jsonParsed",
			"commitment":                     "confirmed",
			"maxSupportedTransactionVersion": 0,
		},
	)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetBalance returns the lamport balance of address
func (f *Fetcher) GetBalance(ctx context.Context, address string) (uint64, error) {
	var result solana.BalanceResult
	if err := f.call(ctx, &result, "getBalance", address, map[string]interface{}{"commitment": "confirmed"}); err != nil {
		return 0, err
	}
	return result.Value, nil
}

// call performs method with retry logic and decodes the result into out
func (f *Fetcher) call(ctx context.Context, out interface{}, method string, params ...interface{}) error {
	var lastErr error

	for attempt := 0; attempt <= f.maxRetries; attempt++ {
		err := f.callOnce(ctx, out, method, params)
		if err == nil {
			metrics.RecordRPCRequest(method, "success")
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			metrics.RecordRPCRequest(method, "cancelled")
			return ctx.Err()
		}

		f.logger.Warn().
			Err(err).
			Str("method", method).
			Int("attempt", attempt+1).
			Int("max_retries", f.maxRetries).
			Msg("RPC call failed")

		if attempt == f.maxRetries {
			break
		}

		delay := f.baseDelay * time.Duration(1<<attempt)
		if delay > f.maxDelay {
			delay = f.maxDelay
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			metrics.RecordRPCRequest(method, "cancelled")
			return ctx.Err()
		}
	}

	metrics.RecordRPCRequest(method, "failed")
	return fmt.Errorf("%s failed after %d attempts: %w", method, f.maxRetries+1, lastErr)
}

// callOnce performs a single attempt
func (f *Fetcher) callOnce(ctx context.Context, out interface{}, method string, params []interface{}) error {
	client, endpoint, err := f.pool.GetClient(ctx)
	if err != nil {
		return fmt.Errorf("failed to get RPC client: %w", err)
	}

	requestBody, err := json.Marshal(NewRequest(method, params...))
	if err != nil {
		return fmt.Errorf("failed to marshal RPC request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(requestBody))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	startTime := time.Now()
	resp, err := client.Do(httpReq)
	duration := time.Since(startTime)

	if err != nil {
		f.handleError(method, endpoint, err, duration)
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
		f.handleRateLimit(method, endpoint)
		return fmt.Errorf("%w by endpoint %s: status %d", errRateLimited, endpoint, resp.StatusCode)
	}

	if resp.StatusCode != http.StatusOK {
		f.pool.MarkUnhealthy(endpoint)
		return fmt.Errorf("unexpected status code from %s: %d", endpoint, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	var rpcResponse RpcResponse
	if err := json.Unmarshal(body, &rpcResponse); err != nil {
		return fmt.Errorf("failed to unmarshal RPC response: %w", err)
	}

	if rpcResponse.Error != nil {
		return fmt.Errorf("%s from %s: %w", method, endpoint, rpcResponse.Error)
	}

	if len(rpcResponse.Result) > 0 {
		if err := json.Unmarshal(rpcResponse.Result, out); err != nil {
			return fmt.Errorf("failed to unmarshal %s result: %w", method, err)
		}
	}

	f.logger.Debug().
		Str("method", method).
		Str("endpoint", endpoint).
		Dur("duration", duration).
		Msg("RPC call succeeded")

	f.pool.MarkHealthy(endpoint)
	return nil
}

// handleError marks endpoints unhealthy on transport errors
func (f *Fetcher) handleError(method, endpoint string, err error, duration time.Duration) {
	f.logger.Error().
		Err(err).
		Str("method", method).
		Str("endpoint", endpoint).
		Dur("duration", duration).
		Msg("RPC request failed")

	f.pool.MarkUnhealthy(endpoint)
	metrics.RecordRPCRequest(method, "error")
}

// handleRateLimit puts the endpoint in cooldown
func (f *Fetcher) handleRateLimit(method, endpoint string) {
	f.logger.Warn().
		Str("method", method).
		Str("endpoint", endpoint).
		Msg("Rate limited by endpoint")

	f.pool.SetCooldown(endpoint, f.cooldown)
	metrics.RecordRPCRequest(method, "rate_limited")
}
