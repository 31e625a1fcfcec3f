package solana

import (
	"fmt"
	"math/big"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

// NativeDecimals is the fixed precision of SOL
const NativeDecimals = 9

var (
	// WrappedSOLMint is the token-program representation of SOL
	WrappedSOLMint = solanago.WrappedSol.String()

	// TokenProgramID is the SPL token program that owns tracked accounts
	TokenProgramID = solanago.TokenProgramID.String()

	lamportsPerSOL = decimal.NewFromInt(int64(solanago.LAMPORTS_PER_SOL))
)

// ValidateAddress checks that addr is a base58 public key
func ValidateAddress(addr string) error {
	if _, err := solanago.PublicKeyFromBase58(addr); err != nil {
		return fmt.Errorf("invalid address %q: %w", addr, err)
	}
	return nil
}

// LamportsToSOL converts lamports to whole SOL
func LamportsToSOL(lamports uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(lamports), 0).Div(lamportsPerSOL)
}

// ToUnits converts a base-unit amount string using the given decimals
func ToUnits(raw string, decimals int32) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	if amount.IsNegative() {
		return decimal.Zero, fmt.Errorf("negative amount %q", raw)
	}
	return amount.Shift(-decimals), nil
}
