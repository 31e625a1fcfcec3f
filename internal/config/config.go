package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for walletpnl
type Config struct {
	// Wallet being analyzed
	WalletAddress string

	// Database configuration
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string
	DBSSLMode  string

	// RPC configuration
	RPCEndpoints  []string
	RPCRateLimit  float64
	RPCBurst      int
	RPCTimeout    time.Duration
	RPCMaxRetries int

	// Ingestion configuration
	SignaturePageSize int
	MaxTokenAccounts  int

	// Worker configuration
	Workers   int
	QueueSize int

	// Cache configuration, REDIS_URL empty means in-memory
	RedisURL string
	CacheTTL time.Duration

	// Market data
	DexScreenerBaseURL string
	CoinGeckoBaseURL   string

	// Reports
	ReportWindows []int
	ReportDir     string

	// Logging configuration
	LogLevel string

	// Metrics configuration, empty disables the endpoint
	MetricsPort string

	// Optional cron spec for repeated runs
	Schedule string
}

// Load reads configuration from environment variables and validates it
func Load() (Config, error) {
	cfg := Config{
		WalletAddress:      getEnv("WALLET_ADDRESS", ""),
		DBHost:             getEnv("DB_HOST", "localhost"),
		DBUser:             getEnv("DB_USER", ""),
		DBPassword:         getEnv("DB_PASSWORD", ""),
		DBName:             getEnv("DB_NAME", ""),
		DBPort:             getEnv("DB_PORT", "5432"),
		DBSSLMode:          getEnv("DB_SSL_MODE", "disable"),
		RedisURL:           getEnv("REDIS_URL", ""),
		DexScreenerBaseURL: getEnv("DEXSCREENER_BASE_URL", "https://api.dexscreener.com"),
		CoinGeckoBaseURL:   getEnv("COINGECKO_BASE_URL", "https://api.coingecko.com"),
		ReportDir:          getEnv("REPORT_DIR", "reports"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		MetricsPort:        getEnv("METRICS_PORT", ""),
		Schedule:           getEnv("SCHEDULE", ""),
	}

	// Parse RPC endpoints
	rpcEndpointsStr := getEnv("RPC_ENDPOINTS", "")
	if rpcEndpointsStr == "" {
		return cfg, fmt.Errorf("RPC_ENDPOINTS environment variable is required")
	}
	cfg.RPCEndpoints = splitList(rpcEndpointsStr)

	var err error
	cfg.RPCRateLimit, err = parseFloatEnv("RPC_RATE_LIMIT", 2.0)
	if err != nil {
		return cfg, fmt.Errorf("invalid RPC_RATE_LIMIT: %w", err)
	}

	cfg.RPCBurst, err = parseIntEnv("RPC_BURST", 5)
	if err != nil {
		return cfg, fmt.Errorf("invalid RPC_BURST: %w", err)
	}

	cfg.RPCTimeout, err = parseDurationEnv("RPC_TIMEOUT", 30*time.Second)
	if err != nil {
		return cfg, fmt.Errorf("invalid RPC_TIMEOUT: %w", err)
	}

	cfg.RPCMaxRetries, err = parseIntEnv("RPC_MAX_RETRIES", 5)
	if err != nil {
		return cfg, fmt.Errorf("invalid RPC_MAX_RETRIES: %w", err)
	}

	cfg.SignaturePageSize, err = parseIntEnv("SIGNATURE_PAGE_SIZE", 500)
	if err != nil {
		return cfg, fmt.Errorf("invalid SIGNATURE_PAGE_SIZE: %w", err)
	}

	cfg.MaxTokenAccounts, err = parseIntEnv("MAX_TOKEN_ACCOUNTS", 15000)
	if err != nil {
		return cfg, fmt.Errorf("invalid MAX_TOKEN_ACCOUNTS: %w", err)
	}

	cfg.Workers, err = parseIntEnv("WORKERS", 1)
	if err != nil {
		return cfg, fmt.Errorf("invalid WORKERS: %w", err)
	}

	cfg.QueueSize, err = parseIntEnv("QUEUE_SIZE", 100)
	if err != nil {
		return cfg, fmt.Errorf("invalid QUEUE_SIZE: %w", err)
	}

	cfg.CacheTTL, err = parseDurationEnv("CACHE_TTL", time.Hour)
	if err != nil {
		return cfg, fmt.Errorf("invalid CACHE_TTL: %w", err)
	}

	cfg.ReportWindows, err = parseIntListEnv("REPORT_WINDOWS", []int{90, 60, 30, 14, 7, 1})
	if err != nil {
		return cfg, fmt.Errorf("invalid REPORT_WINDOWS: %w", err)
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return cfg, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks that the configuration is valid
func (c Config) validate() error {
	if c.WalletAddress == "" {
		return fmt.Errorf("WALLET_ADDRESS is required")
	}

	if c.DBName == "" {
		return fmt.Errorf("DB_NAME is required")
	}

	if len(c.RPCEndpoints) == 0 {
		return fmt.Errorf("at least one RPC endpoint is required")
	}

	if c.RPCRateLimit <= 0 {
		return fmt.Errorf("RPC_RATE_LIMIT must be positive")
	}

	if c.RPCBurst < 1 {
		return fmt.Errorf("RPC_BURST must be at least 1")
	}

	if c.RPCMaxRetries < 0 {
		return fmt.Errorf("RPC_MAX_RETRIES must not be negative")
	}

	if c.SignaturePageSize < 1 || c.SignaturePageSize > 1000 {
		return fmt.Errorf("SIGNATURE_PAGE_SIZE must be between 1 and 1000")
	}

	if c.MaxTokenAccounts < 1 {
		return fmt.Errorf("MAX_TOKEN_ACCOUNTS must be at least 1")
	}

	if c.Workers < 1 {
		return fmt.Errorf("WORKERS must be at least 1")
	}

	if c.QueueSize < c.Workers {
		return fmt.Errorf("QUEUE_SIZE must be greater than or equal to WORKERS")
	}

	for _, w := range c.ReportWindows {
		if w < 1 {
			return fmt.Errorf("REPORT_WINDOWS entries must be positive, got %d", w)
		}
	}

	validLogLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
		"fatal": true,
		"panic": true,
	}

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("invalid LOG_LEVEL: %s (must be one of: trace, debug, info, warn, error, fatal, panic)", c.LogLevel)
	}

	return nil
}

// DSN returns the postgres connection string for gorm
func (c Config) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode,
	)
}

// getEnv retrieves an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseIntEnv parses an integer environment variable with a default value
func parseIntEnv(key string, defaultValue int) (int, error) {
	str := os.Getenv(key)
	if str == "" {
		return defaultValue, nil
	}
	return strconv.Atoi(str)
}

func parseFloatEnv(key string, defaultValue float64) (float64, error) {
	str := os.Getenv(key)
	if str == "" {
		return defaultValue, nil
	}
	return strconv.ParseFloat(str, 64)
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	str := os.Getenv(key)
	if str == "" {
		return defaultValue, nil
	}
	return time.ParseDuration(str)
}

// parseIntListEnv parses a comma separated list of integers
func parseIntListEnv(key string, defaultValue []int) ([]int, error) {
	str := os.Getenv(key)
	if str == "" {
		return defaultValue, nil
	}
	var out []int
	for _, part := range splitList(str) {
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
