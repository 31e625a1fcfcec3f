package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/wnt/walletpnl/internal/cache"
	"github.com/wnt/walletpnl/internal/config"
	"github.com/wnt/walletpnl/internal/database"
	"github.com/wnt/walletpnl/internal/logger"
	"github.com/wnt/walletpnl/internal/metrics"
	"github.com/wnt/walletpnl/internal/report"
	"github.com/wnt/walletpnl/internal/rpc"
	"github.com/wnt/walletpnl/internal/scraper"
	"github.com/wnt/walletpnl/internal/services"
	"github.com/wnt/walletpnl/internal/store"
	"github.com/wnt/walletpnl/internal/worker"
)

const externalTimeout = 15 * time.Second

func main() {
	// Parse command-line arguments
	envFile := flag.String("env", ".env", "Path to .env file")
	flag.Parse()

	// Load environment variables from the specified file
	if err := godotenv.Load(*envFile); err != nil {
		log.Printf("No .env file found at %s, using environment variables", *envFile)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	baseLogger := logger.New(cfg.LogLevel)

	db, err := database.Connect(cfg.DSN())
	if err != nil {
		baseLogger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	st := store.New(db, baseLogger)

	pool, err := rpc.NewPool(cfg.RPCEndpoints, rpc.PoolOptions{
		RateLimit: cfg.RPCRateLimit,
		Burst:     cfg.RPCBurst,
		Timeout:   cfg.RPCTimeout,
	}, baseLogger)
	if err != nil {
		baseLogger.Fatal().Err(err).Msg("Failed to create RPC pool")
	}
	fetcher := rpc.NewFetcher(pool, baseLogger, rpc.WithMaxRetries(cfg.RPCMaxRetries))

	lookupCache := cache.New(cfg.RedisURL, baseLogger)
	defer lookupCache.Close()

	market := services.NewMarketData(
		services.NewDexScreenerClient(cfg.DexScreenerBaseURL, externalTimeout),
		services.NewCoinGeckoClient(cfg.CoinGeckoBaseURL, externalTimeout),
		lookupCache,
		cfg.CacheTTL,
		baseLogger,
	)

	s := scraper.NewScraper(fetcher, st, market, scraper.Config{
		Workers:           cfg.Workers,
		QueueSize:         cfg.QueueSize,
		SignaturePageSize: cfg.SignaturePageSize,
		MaxTokenAccounts:  cfg.MaxTokenAccounts,
	}, baseLogger)
	defer s.Close()

	reporter := report.NewReporter(st, market, fetcher, report.NewJSONGenerator(cfg.ReportDir, baseLogger), cfg.ReportWindows, baseLogger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runCtx, finish := context.WithCancel(ctx)
	defer finish()

	manager := worker.NewManager(runCtx, baseLogger)

	if cfg.MetricsPort != "" {
		manager.Go("metrics", func(ctx context.Context) error {
			return serveMetrics(ctx, cfg.MetricsPort, baseLogger)
		})
	}

	run := func(ctx context.Context) error {
		defer pool.ReportStats()
		return runWallet(ctx, s, reporter, cfg.WalletAddress, baseLogger)
	}

	if cfg.Schedule == "" {
		manager.Go("run", func(ctx context.Context) error {
			defer finish()
			return run(ctx)
		})
	} else {
		if err := manager.Schedule("run", cfg.Schedule, run); err != nil {
			baseLogger.Fatal().Err(err).Msg("Failed to schedule wallet runs")
		}
		baseLogger.Info().Str("schedule", cfg.Schedule).Msg("Wallet runs scheduled")
	}

	if err := manager.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		baseLogger.Fatal().Err(err).Msg("Wallet run failed")
	}

	baseLogger.Info().Str("wallet", cfg.WalletAddress).Msg("Shutting down")
}

type walletRunner interface {
	Run(ctx context.Context, address string) (*scraper.RunStats, error)
}

type walletReporter interface {
	Generate(ctx context.Context, address string) ([]report.Summary, error)
}

// runWallet ingests address and writes its reports. A wallet refused for
// holding too many token accounts is still reported from its stored rows.
func runWallet(ctx context.Context, runner walletRunner, reporter walletReporter, address string, log zerolog.Logger) error {
	stats, err := runner.Run(ctx, address)
	switch {
	case errors.Is(err, scraper.ErrTooManyAccounts):
		log.Warn().Err(err).Str("wallet", address).Msg("Skipping ingestion, reporting stored rows only")
	case err != nil:
		return err
	default:
		for _, a := range stats.Abandoned {
			log.Warn().Str("token_account", a.Account).Str("reason", a.Reason).Msg("Token account abandoned")
		}
	}

	_, err = reporter.Generate(ctx, address)
	return err
}

// serveMetrics exposes prometheus metrics until ctx is done
func serveMetrics(ctx context.Context, port string, log zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Metrics server shutdown failed")
		}
	}()

	log.Info().Str("port", port).Msg("Serving metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
