package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/wnt/walletpnl/internal/logger"
	"github.com/wnt/walletpnl/internal/metrics"
	"github.com/wnt/walletpnl/internal/models"
	"github.com/wnt/walletpnl/internal/pnl"
	"github.com/wnt/walletpnl/internal/solana"
	"github.com/wnt/walletpnl/internal/utils"
	"github.com/wnt/walletpnl/internal/worker"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrMissingWalletAddress is returned when the wallet address is not provided
	ErrMissingWalletAddress = errors.New("wallet address is not set")

	// ErrDurability aborts a run: results can no longer be recorded
	ErrDurability = errors.New("persistence failed")
)

// Chain is the RPC surface a run reads from
type Chain interface {
	AccountLister
	HistoryReader
}

// Store is the persistence a run writes to
type Store interface {
	Registry
	GetOrCreateWallet(ctx context.Context, address string) (*models.Wallet, error)
	RegisterAccount(ctx context.Context, account models.TokenAccount) error
	CommitAccount(ctx context.Context, row *models.PnLInfo, account models.TokenAccount) (bool, error)
	MarkRun(ctx context.Context, walletID uint, at time.Time) error
}

// Config holds the configuration for the scraper
type Config struct {
	Workers           int
	QueueSize         int
	SignaturePageSize int
	MaxTokenAccounts  int
}

// Abandoned is an account dropped from a run. It stays unregistered, so the
// next run picks it up again.
type Abandoned struct {
	Account string
	Reason  string
}

// RunStats summarizes one run
type RunStats struct {
	WalletID       uint
	Discovered     int
	Persisted      int
	Duplicates     int
	Empty          int
	Transactions   int
	Skipped        int
	Unclassifiable int
	Abandoned      []Abandoned
	Duration       time.Duration
}

// Scraper drives discovery, ingestion, classification and aggregation for a wallet
type Scraper struct {
	store     Store
	lookup    pnl.PairLookup
	discovery *Discovery
	ingestor  *Ingestor
	pool      *worker.Pool
	queueSize int
	now       func() time.Time
	logger    zerolog.Logger
}

// NewScraper creates a new instance of the scraper
func NewScraper(chain Chain, store Store, lookup pnl.PairLookup, cfg Config, baseLogger zerolog.Logger) *Scraper {
	log := baseLogger.With().Str("component", "scraper").Logger()
	pool := worker.NewPool(cfg.Workers, cfg.QueueSize, baseLogger)

	return &Scraper{
		store:     store,
		lookup:    lookup,
		discovery: NewDiscovery(chain, store, cfg.MaxTokenAccounts, baseLogger),
		ingestor:  NewIngestor(chain, cfg.SignaturePageSize, baseLogger),
		pool:      pool,
		queueSize: max(cfg.QueueSize, pool.Workers()),
		now:       time.Now,
		logger:    log,
	}
}

// Close releases the worker pool
func (s *Scraper) Close() {
	s.pool.Stop()
}

// accountResult is what a worker hands to the committer
type accountResult struct {
	account      string
	row          *models.PnLInfo
	registry     models.TokenAccount
	txs          int
	skipped      int
	unclassified int
	abandoned    string
}

// Run processes every new token account of address. Accounts that fail are
// abandoned and reported in the stats; only discovery and persistence
// failures abort the run.
func (s *Scraper) Run(ctx context.Context, address string) (*RunStats, error) {
	if address == "" {
		return nil, ErrMissingWalletAddress
	}
	if err := solana.ValidateAddress(address); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDiscovery, err)
	}

	start := s.now()
	log := logger.WithWallet(s.logger, address)
	log.Info().Msg("Starting wallet run")

	wallet, err := s.store.GetOrCreateWallet(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDurability, err)
	}

	accounts, err := s.discovery.NewAccounts(ctx, wallet)
	if err != nil {
		return nil, err
	}

	stats := &RunStats{WalletID: wallet.ID, Discovered: len(accounts)}
	results := make(chan accountResult, s.queueSize)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(results)
		return s.pool.Process(gctx, "account", accounts, func(ctx context.Context, workerLog zerolog.Logger, account string) {
			res := s.processAccount(ctx, workerLog, wallet, account)
			select {
			case results <- res:
			case <-ctx.Done():
			}
		})
	})
	g.Go(func() error {
		for res := range results {
			if err := s.commit(gctx, log, res, stats); err != nil {
				return err
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		stats.Duration = s.now().Sub(start)
		return stats, err
	}

	if err := s.store.MarkRun(ctx, wallet.ID, s.now()); err != nil {
		log.Warn().Err(err).Msg("Failed to record run time")
	}

	stats.Duration = s.now().Sub(start)
	metrics.RecordRun(stats.Duration.Seconds())

	log.Info().
		Int("discovered", stats.Discovered).
		Int("persisted", stats.Persisted).
		Int("duplicates", stats.Duplicates).
		Int("empty", stats.Empty).
		Int("abandoned", len(stats.Abandoned)).
		Dur("duration", stats.Duration).
		Msg("Wallet run completed")

	return stats, nil
}

// processAccount replays one account's history into a finalized row
func (s *Scraper) processAccount(ctx context.Context, workerLog zerolog.Logger, wallet *models.Wallet, account string) accountResult {
	log := logger.WithAccount(workerLog, account)
	res := accountResult{account: account}

	history, err := s.ingestor.History(ctx, wallet.Address, account)
	if err != nil {
		res.abandoned = err.Error()
		return res
	}
	res.skipped = history.Skipped

	events := make([]pnl.Event, 0, len(history.Transactions))
	for _, tx := range history.Transactions {
		events = append(events, solana.Classify(wallet.Address, tx))
	}
	trades := utils.Filter(events, func(ev pnl.Event) bool {
		if ev.Side != solana.Unclassifiable {
			return true
		}
		log.Debug().Str("signature", ev.Signature).Str("reason", ev.Reason).Msg("Skipping unclassifiable transaction")
		metrics.RecordTransactionProcessed("unclassifiable")
		return false
	})
	res.unclassified = len(events) - len(trades)
	agg := pnl.Fold(trades)

	res.txs = agg.Trades()
	res.registry = models.TokenAccount{
		WalletID:           wallet.ID,
		AccountAddress:     account,
		FirstSeenBlockTime: history.FirstSeen,
		TradeCount:         agg.Trades(),
	}
	if agg.Trades() == 0 {
		// an unreadable history is not an empty one
		if history.FetchFailed > 0 {
			res.abandoned = fmt.Sprintf("no trades recovered, %d of %d transactions could not be fetched", history.FetchFailed, history.Signatures)
		}
		return res
	}

	row, err := pnl.Finalize(ctx, agg, s.lookup)
	if err != nil {
		res.abandoned = err.Error()
		return res
	}
	row.TokenAccount = account
	row.WalletID = wallet.ID
	res.row = &row

	log.Debug().
		Int("buys", row.Buys).
		Int("sells", row.Sells).
		Float64("delta_sol", row.DeltaSOL).
		Bool("scam", row.ScamFlag).
		Msg("Account finalized")
	return res
}

// commit persists one result. It is only ever called from the committer
// goroutine, so stats need no locking.
func (s *Scraper) commit(ctx context.Context, log zerolog.Logger, res accountResult, stats *RunStats) error {
	stats.Skipped += res.skipped
	stats.Unclassifiable += res.unclassified

	if res.abandoned != "" {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn().Str("token_account", res.account).Str("reason", res.abandoned).Msg("Abandoning token account")
		stats.Abandoned = append(stats.Abandoned, Abandoned{Account: res.account, Reason: res.abandoned})
		metrics.RecordAccountProcessed("abandoned")
		return nil
	}

	if res.row == nil {
		if err := s.store.RegisterAccount(ctx, res.registry); err != nil {
			return fmt.Errorf("%w: %v", ErrDurability, err)
		}
		stats.Empty++
		metrics.RecordAccountProcessed("empty")
		return nil
	}

	inserted, err := s.store.CommitAccount(ctx, res.row, res.registry)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDurability, err)
	}
	stats.Transactions += res.txs
	if inserted {
		stats.Persisted++
		metrics.RecordAccountProcessed("persisted")
	} else {
		stats.Duplicates++
		metrics.RecordAccountProcessed("duplicate")
	}
	return nil
}
