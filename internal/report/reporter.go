package report

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"github.com/wnt/walletpnl/internal/logger"
	"github.com/wnt/walletpnl/internal/models"
	"github.com/wnt/walletpnl/internal/solana"
	"github.com/wnt/walletpnl/internal/store"
)

// Store is the persistence the reporter reads windows from
type Store interface {
	FindWallet(ctx context.Context, address string) (*models.Wallet, error)
	ComputeWindowSummary(ctx context.Context, walletID uint, windowDays int, now time.Time) (store.WindowSummary, error)
	UpsertWinRateSnapshot(ctx context.Context, walletID uint, windowDays int, summary store.WindowSummary) error
	ListPnLRows(ctx context.Context, walletID uint, since time.Time) ([]models.PnLInfo, error)
}

// PriceSource quotes SOL in USD
type PriceSource interface {
	SOLPrice(ctx context.Context) (float64, error)
}

// BalanceReader returns a wallet's native balance in lamports
type BalanceReader interface {
	GetBalance(ctx context.Context, address string) (uint64, error)
}

// Reporter turns persisted rows into one report per window and refreshes the
// wallet's win rate snapshot
type Reporter struct {
	store     Store
	prices    PriceSource
	balances  BalanceReader
	generator Generator
	windows   []int
	now       func() time.Time
	logger    zerolog.Logger
}

func NewReporter(st Store, prices PriceSource, balances BalanceReader, generator Generator, windows []int, logger zerolog.Logger) *Reporter {
	return &Reporter{
		store:     st,
		prices:    prices,
		balances:  balances,
		generator: generator,
		windows:   windows,
		now:       time.Now,
		logger:    logger.With().Str("component", "reporter").Logger(),
	}
}

// Generate writes a report for every configured window. Price and balance
// lookups are best effort; store and generator failures stop the pass.
func (r *Reporter) Generate(ctx context.Context, address string) ([]Summary, error) {
	log := logger.WithWallet(r.logger, address)

	wallet, err := r.store.FindWallet(ctx, address)
	if err != nil {
		return nil, err
	}

	price, err := r.prices.SOLPrice(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("SOL price unavailable, USD values will be 0")
		price = 0
	}

	var balance float64
	lamports, err := r.balances.GetBalance(ctx, address)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read SOL balance")
	} else {
		balance = solana.LamportsToSOL(lamports).InexactFloat64()
	}

	now := r.now()
	summaries := make([]Summary, 0, len(r.windows))
	for _, days := range r.windows {
		window, err := r.store.ComputeWindowSummary(ctx, wallet.ID, days, now)
		if err != nil {
			return summaries, err
		}

		if store.IsSnapshotWindow(days) {
			if err := r.store.UpsertWinRateSnapshot(ctx, wallet.ID, days, window); err != nil {
				return summaries, err
			}
		}

		infos, err := r.store.ListPnLRows(ctx, wallet.ID, window.Since)
		if err != nil {
			return summaries, err
		}
		rows := make([]Row, 0, len(infos))
		for _, info := range infos {
			rows = append(rows, NewRow(info))
		}

		summary := Summary{
			WalletAddress: address,
			SOLBalance:    balance,
			SOLPrice:      price,
			WinRate:       window.WinRate,
			RealizedPnL:   window.RealizedPnL,
			RealizedLoss:  window.RealizedLoss,
			BalanceChange: window.BalanceChange,
			ScamTokens:    window.ScamCount,
			ProfitUSD:     window.RealizedPnL * price,
			LossUSD:       math.Abs(window.RealizedLoss) * price,
			TimeWindow:    WindowLabel(days),
			TokenAccounts: window.Rows,
		}

		if err := r.generator.Generate(ctx, summary, rows); err != nil {
			return summaries, fmt.Errorf("failed to generate %s report: %w", summary.TimeWindow, err)
		}
		summaries = append(summaries, summary)
	}

	log.Info().Int("windows", len(summaries)).Float64("sol_price", price).Msg("Reports generated")
	return summaries, nil
}
