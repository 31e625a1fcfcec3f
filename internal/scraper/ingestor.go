package scraper

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"
	"github.com/wnt/walletpnl/internal/logger"
	"github.com/wnt/walletpnl/internal/metrics"
	"github.com/wnt/walletpnl/internal/solana"
)

// DefaultSignaturePageSize is the getSignaturesForAddress page size
const DefaultSignaturePageSize = 500

// HistoryReader pages signatures and fetches parsed transactions
type HistoryReader interface {
	GetSignaturesForAddress(ctx context.Context, address, before string, limit int) ([]solana.SignatureInfo, error)
	GetTransaction(ctx context.Context, signature string) (*solana.Transaction, error)
}

// History is the wallet-signed, successful transactions of one token
// account, oldest first
type History struct {
	Transactions []*solana.Transaction
	FirstSeen    time.Time
	Signatures   int
	Skipped      int
	FetchFailed  int
}

// Ingestor pulls the full transaction history of token accounts
type Ingestor struct {
	reader   HistoryReader
	pageSize int
	logger   zerolog.Logger
}

func NewIngestor(reader HistoryReader, pageSize int, logger zerolog.Logger) *Ingestor {
	if pageSize <= 0 {
		pageSize = DefaultSignaturePageSize
	}
	return &Ingestor{
		reader:   reader,
		pageSize: pageSize,
		logger:   logger.With().Str("component", "ingestor").Logger(),
	}
}

// History fetches every transaction of account signed by wallet. Signature
// listing errors fail the account; individual transaction fetch errors are
// logged and skipped.
func (in *Ingestor) History(ctx context.Context, wallet, account string) (History, error) {
	log := logger.WithAccount(in.logger, account)

	signatures, err := in.signatures(ctx, account)
	if err != nil {
		return History{}, err
	}

	ordered := chronological(signatures)
	history := History{Signatures: len(ordered)}
	for _, sig := range ordered {
		if sig.BlockTime != nil {
			history.FirstSeen = solana.UnixTimeToTime(sig.BlockTime)
			break
		}
	}

	for _, sig := range ordered {
		if err := ctx.Err(); err != nil {
			return History{}, err
		}

		if sig.Failed() {
			history.Skipped++
			metrics.RecordTransactionProcessed("errored")
			continue
		}

		tx, err := in.reader.GetTransaction(ctx, sig.Signature)
		if err != nil {
			if ctx.Err() != nil {
				return History{}, ctx.Err()
			}
			log.Warn().Err(err).Str("signature", sig.Signature).Msg("Failed to fetch transaction, skipping")
			history.Skipped++
			history.FetchFailed++
			metrics.RecordTransactionProcessed("fetch_failed")
			continue
		}
		if tx == nil {
			log.Warn().Str("signature", sig.Signature).Msg("Transaction not found, skipping")
			history.Skipped++
			history.FetchFailed++
			metrics.RecordTransactionProcessed("not_found")
			continue
		}
		if tx.Failed() {
			history.Skipped++
			metrics.RecordTransactionProcessed("errored")
			continue
		}
		if tx.Signer() != wallet {
			history.Skipped++
			metrics.RecordTransactionProcessed("foreign_signer")
			continue
		}
		if tx.BlockTime == nil {
			tx.BlockTime = sig.BlockTime
		}
		if len(tx.Transaction.Signatures) == 0 {
			tx.Transaction.Signatures = []string{sig.Signature}
		}

		history.Transactions = append(history.Transactions, tx)
		metrics.RecordTransactionProcessed("accepted")
	}

	log.Debug().
		Int("signatures", history.Signatures).
		Int("accepted", len(history.Transactions)).
		Int("skipped", history.Skipped).
		Int("fetch_failed", history.FetchFailed).
		Msg("Ingested account history")

	return history, nil
}

// signatures pages backwards through the account history until a short page
func (in *Ingestor) signatures(ctx context.Context, account string) ([]solana.SignatureInfo, error) {
	var (
		all    []solana.SignatureInfo
		before string
	)
	for {
		page, err := in.reader.GetSignaturesForAddress(ctx, account, before, in.pageSize)
		if err != nil {
			return nil, fmt.Errorf("failed to list signatures of %s: %w", account, err)
		}
		all = append(all, page...)

		if len(page) < in.pageSize {
			return all, nil
		}
		last := page[len(page)-1].Signature
		if last == before {
			return all, nil
		}
		before = last
	}
}

// chronological reverses newest-first signatures and stably orders them by
// block time. Unknown block times sort first.
func chronological(signatures []solana.SignatureInfo) []solana.SignatureInfo {
	ordered := slices.Clone(signatures)
	slices.Reverse(ordered)
	slices.SortStableFunc(ordered, func(a, b solana.SignatureInfo) int {
		return compareBlockTime(a.BlockTime, b.BlockTime)
	})
	return ordered
}

func compareBlockTime(a, b *int64) int {
	var x, y int64
	if a != nil {
		x = *a
	}
	if b != nil {
		y = *b
	}
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	default:
		return 0
	}
}
