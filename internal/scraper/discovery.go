package scraper

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/wnt/walletpnl/internal/models"
	"github.com/wnt/walletpnl/internal/solana"
)

var (
	// ErrDiscovery aborts a run: the wallet or its token accounts could not be resolved
	ErrDiscovery = errors.New("account discovery failed")

	// ErrTooManyAccounts refuses wallets with more new token accounts than the configured cap
	ErrTooManyAccounts = fmt.Errorf("%w: too many token accounts", ErrDiscovery)
)

// DefaultMaxTokenAccounts is the first new-account count a run refuses
const DefaultMaxTokenAccounts = 15000

// AccountLister lists the token accounts owned by a wallet
type AccountLister interface {
	GetTokenAccountsByOwner(ctx context.Context, owner string) ([]solana.KeyedTokenAccount, error)
}

// Registry lists the token accounts already processed for a wallet
type Registry interface {
	TokenAccountAddresses(ctx context.Context, walletID uint) ([]string, error)
}

// Discovery finds token accounts that have never been processed
type Discovery struct {
	lister      AccountLister
	registry    Registry
	maxAccounts int
	logger      zerolog.Logger
}

func NewDiscovery(lister AccountLister, registry Registry, maxAccounts int, logger zerolog.Logger) *Discovery {
	if maxAccounts <= 0 {
		maxAccounts = DefaultMaxTokenAccounts
	}
	return &Discovery{
		lister:      lister,
		registry:    registry,
		maxAccounts: maxAccounts,
		logger:      logger.With().Str("component", "discovery").Logger(),
	}
}

// NewAccounts returns the wallet's token accounts that are not yet registered.
// Order is unspecified.
func (d *Discovery) NewAccounts(ctx context.Context, wallet *models.Wallet) ([]string, error) {
	owned, err := d.lister.GetTokenAccountsByOwner(ctx, wallet.Address)
	if err != nil {
		return nil, fmt.Errorf("%w: list token accounts of %s: %v", ErrDiscovery, wallet.Address, err)
	}

	registered, err := d.registry.TokenAccountAddresses(ctx, wallet.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: load registry: %v", ErrDiscovery, err)
	}

	known := make(map[string]struct{}, len(registered)+len(owned))
	for _, addr := range registered {
		known[addr] = struct{}{}
	}

	var fresh []string
	for _, account := range owned {
		if account.Pubkey == "" {
			continue
		}
		if _, ok := known[account.Pubkey]; ok {
			continue
		}
		known[account.Pubkey] = struct{}{}
		fresh = append(fresh, account.Pubkey)
	}

	if len(fresh) >= d.maxAccounts {
		return nil, fmt.Errorf("%w: %d new accounts, limit is below %d", ErrTooManyAccounts, len(fresh), d.maxAccounts)
	}

	d.logger.Info().
		Str("wallet", wallet.Address).
		Int("owned", len(owned)).
		Int("registered", len(registered)).
		Int("new", len(fresh)).
		Msg("Discovered token accounts")

	return fresh, nil
}
