package pnl

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/wnt/walletpnl/internal/solana"
)

// Event is one classified swap of a token account
type Event = solana.Classification

// Aggregate holds the running totals of one token account. It is a value:
// Apply never mutates the receiver, so a fresh zero Aggregate per account is
// all the state a replay needs.
type Aggregate struct {
	Income      decimal.Decimal // tokens bought
	Outcome     decimal.Decimal // tokens sold
	Spent       decimal.Decimal // SOL paid for buys
	Earned      decimal.Decimal // SOL received from sells
	FeeLamports uint64

	Buys  int
	Sells int

	FirstBuy time.Time
	LastSell time.Time
	LastTx   time.Time

	Mint     string
	Decimals int32

	// Suspicious is set while the account has bought without ever selling
	Suspicious bool
}

// Apply folds ev into a copy of a. Unclassifiable events leave it unchanged.
func (a Aggregate) Apply(ev Event) Aggregate {
	next := a

	switch ev.Side {
	case solana.Buy:
		next.Income = a.Income.Add(ev.TokenAmount)
		next.Spent = a.Spent.Add(ev.SOLAmount)
		next.Buys++
		if next.FirstBuy.IsZero() || ev.BlockTime.Before(next.FirstBuy) {
			next.FirstBuy = ev.BlockTime
		}
	case solana.Sell:
		next.Outcome = a.Outcome.Add(ev.TokenAmount)
		next.Earned = a.Earned.Add(ev.SOLAmount)
		next.Sells++
		if ev.BlockTime.After(next.LastSell) {
			next.LastSell = ev.BlockTime
		}
	default:
		return a
	}

	next.FeeLamports += ev.Fee
	if ev.BlockTime.After(next.LastTx) {
		next.LastTx = ev.BlockTime
	}
	if ev.Mint != "" {
		next.Mint = ev.Mint
		next.Decimals = ev.Decimals
	}
	next.Suspicious = next.Buys > 0 && next.Sells == 0

	return next
}

// Trades is the number of events folded in
func (a Aggregate) Trades() int {
	return a.Buys + a.Sells
}

// Fold replays events in order starting from an empty aggregate
func Fold(events []Event) Aggregate {
	var agg Aggregate
	for _, ev := range events {
		agg = agg.Apply(ev)
	}
	return agg
}
