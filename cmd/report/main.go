package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/wnt/walletpnl/internal/cache"
	"github.com/wnt/walletpnl/internal/config"
	"github.com/wnt/walletpnl/internal/database"
	"github.com/wnt/walletpnl/internal/logger"
	"github.com/wnt/walletpnl/internal/report"
	"github.com/wnt/walletpnl/internal/rpc"
	"github.com/wnt/walletpnl/internal/services"
	"github.com/wnt/walletpnl/internal/store"
)

func main() {
	// Parse command line arguments
	var envFile, walletAddress string
	flag.StringVar(&envFile, "env", ".env", "Path to .env file")
	flag.StringVar(&walletAddress, "wallet", "", "Wallet address to report on (defaults to WALLET_ADDRESS)")
	flag.Parse()

	if err := godotenv.Load(envFile); err != nil {
		log.Printf("No .env file found at %s, using environment variables", envFile)
	}
	if walletAddress != "" {
		os.Setenv("WALLET_ADDRESS", walletAddress)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Println("Usage: go run ./cmd/report -wallet <wallet_address> [-env <path>]")
		log.Fatalf("❌ Failed to load configuration: %v", err)
	}

	baseLogger := logger.New(cfg.LogLevel)

	fmt.Printf("🔍 Wallet: %s\n", cfg.WalletAddress)
	fmt.Printf("📁 Report dir: %s\n", cfg.ReportDir)
	fmt.Println(strings.Repeat("=", 80))

	db, err := database.Connect(cfg.DSN())
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}

	pool, err := rpc.NewPool(cfg.RPCEndpoints, rpc.PoolOptions{
		RateLimit: cfg.RPCRateLimit,
		Burst:     cfg.RPCBurst,
		Timeout:   cfg.RPCTimeout,
	}, baseLogger)
	if err != nil {
		log.Fatalf("❌ Failed to create RPC pool: %v", err)
	}

	lookupCache := cache.New(cfg.RedisURL, baseLogger)
	defer lookupCache.Close()

	market := services.NewMarketData(
		services.NewDexScreenerClient(cfg.DexScreenerBaseURL, 15*time.Second),
		services.NewCoinGeckoClient(cfg.CoinGeckoBaseURL, 15*time.Second),
		lookupCache,
		cfg.CacheTTL,
		baseLogger,
	)

	reporter := report.NewReporter(
		store.New(db, baseLogger),
		market,
		rpc.NewFetcher(pool, baseLogger, rpc.WithMaxRetries(cfg.RPCMaxRetries)),
		report.NewJSONGenerator(cfg.ReportDir, baseLogger),
		cfg.ReportWindows,
		baseLogger,
	)

	summaries, err := reporter.Generate(context.Background(), cfg.WalletAddress)
	if err != nil {
		log.Fatalf("❌ Failed to generate reports: %v", err)
	}

	for _, s := range summaries {
		fmt.Printf("\n📈 %s\n", strings.ToUpper(s.TimeWindow))
		fmt.Println(strings.Repeat("-", 40))
		fmt.Printf("🪙 Token accounts: %d\n", s.TokenAccounts)
		fmt.Printf("🏆 Win rate: %s\n", percent(s.WinRate))
		fmt.Printf("💰 Realized PnL: %.4f SOL ($%.2f)\n", s.RealizedPnL, s.ProfitUSD)
		fmt.Printf("🔻 Realized loss: %.4f SOL ($%.2f)\n", s.RealizedLoss, s.LossUSD)
		fmt.Printf("📊 Balance change: %s\n", percent(s.BalanceChange))
		fmt.Printf("🚩 Suspicious tokens: %d\n", s.ScamTokens)
	}

	fmt.Println(strings.Repeat("=", 80))
	if len(summaries) > 0 {
		fmt.Printf("💳 SOL balance: %.4f (price $%.2f)\n", summaries[0].SOLBalance, summaries[0].SOLPrice)
	}
	fmt.Printf("⚡ %d reports written\n", len(summaries))
}

func percent(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f%%", *v)
}
