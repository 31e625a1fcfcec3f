package solana

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Side is the outcome of classifying a swap
type Side int

const (
	Unclassifiable Side = iota
	Buy
	Sell
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return "unclassifiable"
	}
}

// Leg is one token-program transfer of a swap
type Leg struct {
	Source      string
	Destination string
	Authority   string
	Mint        string
	Amount      string
}

// Classification describes one wallet swap. TokenAmount and SOLAmount are in
// whole units; Fee is in lamports. Reason is set only when Side is Unclassifiable.
type Classification struct {
	Side        Side
	Signature   string
	BlockTime   time.Time
	Mint        string
	Decimals    int32
	TokenAmount decimal.Decimal
	SOLAmount   decimal.Decimal
	Fee         uint64
	Reason      string
}

func unclassifiable(sig, reason string) Classification {
	return Classification{Side: Unclassifiable, Signature: sig, Reason: reason}
}

// Classify decides whether tx is a buy or a sell of a token by wallet.
//
// A swap must produce exactly two token-program transfers. It is a buy when the
// wallet authorizes the first leg and the second leg does not pay out wrapped
// SOL; everything else with two legs is a sell. The counterpart token is the
// wallet-owned non-WSOL post balance.
func Classify(wallet string, tx *Transaction) Classification {
	if tx == nil || tx.Meta == nil {
		return unclassifiable("", "missing transaction meta")
	}
	sig := tx.Signature()

	if tx.BlockTime == nil {
		return unclassifiable(sig, "missing block time")
	}

	legs := TransferLegs(tx)
	if len(legs) < 2 {
		return unclassifiable(sig, "fewer than two transfer legs")
	}
	if len(legs) > 2 {
		return unclassifiable(sig, "more than two transfer legs")
	}

	mint, decimals, ok := counterpartToken(wallet, tx)
	if !ok {
		return unclassifiable(sig, "no counterpart token balance")
	}

	mints := accountMints(tx)
	first, second := legs[0], legs[1]

	secondMint := second.Mint
	if secondMint == "" {
		secondMint = mints[second.Source]
	}
	if secondMint == "" {
		return unclassifiable(sig, "unknown mint for second leg source")
	}

	c := Classification{
		Signature: sig,
		BlockTime: tx.Time(),
		Mint:      mint,
		Decimals:  decimals,
		Fee:       tx.Meta.Fee,
	}

	var tokenRaw, solRaw string
	if first.Authority == wallet && secondMint != WrappedSOLMint {
		c.Side = Buy
		solRaw, tokenRaw = first.Amount, second.Amount
	} else {
		c.Side = Sell
		tokenRaw, solRaw = first.Amount, second.Amount
	}

	var err error
	if c.TokenAmount, err = ToUnits(tokenRaw, decimals); err != nil {
		return unclassifiable(sig, err.Error())
	}
	if c.SOLAmount, err = ToUnits(solRaw, NativeDecimals); err != nil {
		return unclassifiable(sig, err.Error())
	}

	return c
}

// TransferLegs returns the inner token-program transfers of tx in execution order
func TransferLegs(tx *Transaction) []Leg {
	if tx == nil || tx.Meta == nil {
		return nil
	}

	var legs []Leg
	for _, inner := range tx.Meta.InnerInstructions {
		for _, ix := range inner.Instructions {
			if ix.ProgramID != TokenProgramID || len(ix.Parsed) == 0 {
				continue
			}

			var parsed InstructionInfo
			if err := json.Unmarshal(ix.Parsed, &parsed); err != nil {
				continue
			}
			if parsed.Type != "transfer" && parsed.Type != "transferChecked" {
				continue
			}
			if parsed.Info.Destination == "" {
				continue
			}

			legs = append(legs, Leg{
				Source:      parsed.Info.Source,
				Destination: parsed.Info.Destination,
				Authority:   parsed.Info.Authority,
				Mint:        parsed.Info.Mint,
				Amount:      parsed.Info.RawAmount(),
			})
		}
	}
	return legs
}

// counterpartToken finds the first post balance owned by wallet that is not WSOL
func counterpartToken(wallet string, tx *Transaction) (string, int32, bool) {
	for _, balance := range tx.Meta.PostTokenBalances {
		if balance.Owner == wallet && balance.Mint != WrappedSOLMint {
			return balance.Mint, balance.UiTokenAmount.Decimals, true
		}
	}
	return "", 0, false
}

// accountMints maps token account addresses to their mint using the pre and
// post balances, which cover every account a swap touches.
func accountMints(tx *Transaction) map[string]string {
	keys := tx.Transaction.Message.AccountKeys
	mints := make(map[string]string, len(tx.Meta.PreTokenBalances)+len(tx.Meta.PostTokenBalances))

	add := func(balances []TokenBalance) {
		for _, b := range balances {
			if b.AccountIndex < 0 || b.AccountIndex >= len(keys) {
				continue
			}
			mints[keys[b.AccountIndex].Pubkey] = b.Mint
		}
	}
	add(tx.Meta.PreTokenBalances)
	add(tx.Meta.PostTokenBalances)

	return mints
}
