package pnl

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wnt/walletpnl/internal/models"
	"github.com/wnt/walletpnl/internal/solana"
)

const (
	// UnsoldPercentage marks an account that bought and never sold
	UnsoldPercentage = -100.0

	PeriodUnknown = "Unknown"
	PeriodNoBuy   = "No buy"
)

// ErrNumeric is returned when an aggregate cannot produce a finite row.
// Accounts failing with it are abandoned rather than retried.
var ErrNumeric = errors.New("numeric failure")

var hundred = decimal.NewFromInt(100)

// PairLookup resolves when a token first got a liquidity pair.
// found is false when no pair exists.
type PairLookup interface {
	PairCreatedAt(ctx context.Context, mint string) (created time.Time, found bool, err error)
}

// Finalize turns a folded aggregate into a pnl_info row. TokenAccount and
// WalletID are left for the caller.
func Finalize(ctx context.Context, agg Aggregate, lookup PairLookup) (models.PnLInfo, error) {
	if agg.Mint == "" {
		return models.PnLInfo{}, fmt.Errorf("%w: no counterpart mint", ErrNumeric)
	}
	if agg.Trades() == 0 {
		return models.PnLInfo{}, fmt.Errorf("%w: no trades", ErrNumeric)
	}

	deltaSOL := agg.Earned.Sub(agg.Spent)
	scam := agg.Suspicious

	var (
		deltaToken decimal.Decimal
		percentage decimal.Decimal
		duration   time.Duration
	)
	if agg.Sells > 0 {
		deltaToken = agg.Income.Sub(agg.Outcome)
		if !agg.Spent.IsZero() {
			percentage = deltaSOL.Div(agg.Spent).Mul(hundred)
		}
		if !agg.FirstBuy.IsZero() && agg.LastSell.After(agg.FirstBuy) {
			duration = agg.LastSell.Sub(agg.FirstBuy)
		}
	} else {
		deltaToken = agg.Income
		percentage = decimal.NewFromFloat(UnsoldPercentage)
		scam = true
	}

	// every token is checked for a pair, bought or not
	var buyPeriod string
	created, found, err := lookup.PairCreatedAt(ctx, agg.Mint)
	switch {
	case err != nil, !found:
		scam = true
		buyPeriod = PeriodUnknown
	case agg.FirstBuy.IsZero():
		buyPeriod = PeriodNoBuy
	default:
		buyPeriod = FormatDuration(max(0, agg.FirstBuy.Sub(created)))
	}

	row := models.PnLInfo{
		Income:          agg.Income.InexactFloat64(),
		Outcome:         agg.Outcome.InexactFloat64(),
		TotalFee:        solana.LamportsToSOL(agg.FeeLamports).InexactFloat64(),
		SpentSOL:        agg.Spent.InexactFloat64(),
		EarnedSOL:       agg.Earned.InexactFloat64(),
		DeltaToken:      deltaToken.InexactFloat64(),
		DeltaSOL:        deltaSOL.InexactFloat64(),
		DeltaPercentage: percentage.InexactFloat64(),
		Buys:            agg.Buys,
		Sells:           agg.Sells,
		LastTrade:       agg.LastTx.UTC(),
		TimePeriod:      FormatDuration(duration),
		Contract:        agg.Mint,
		ScamFlag:        scam,
		BuyPeriod:       buyPeriod,
	}

	if err := checkFinite(row); err != nil {
		return models.PnLInfo{}, err
	}
	return row, nil
}

func checkFinite(row models.PnLInfo) error {
	values := map[string]float64{
		"income":           row.Income,
		"outcome":          row.Outcome,
		"total_fee":        row.TotalFee,
		"spent_sol":        row.SpentSOL,
		"earned_sol":       row.EarnedSOL,
		"delta_token":      row.DeltaToken,
		"delta_sol":        row.DeltaSOL,
		"delta_percentage": row.DeltaPercentage,
	}
	for name, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s is not finite", ErrNumeric, name)
		}
	}
	return nil
}

// FormatDuration renders d as "Xh Ym Zs", dropping leading zero units
func FormatDuration(d time.Duration) string {
	total := int64(d / time.Second)
	if total < 0 {
		total = 0
	}
	h, m, s := total/3600, (total%3600)/60, total%60

	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}
