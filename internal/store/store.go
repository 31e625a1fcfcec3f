package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/wnt/walletpnl/internal/metrics"
	"github.com/wnt/walletpnl/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const uniqueViolation = "23505"

// Store owns every persisted entity: wallets, the token account registry,
// pnl rows and win rate snapshots.
type Store struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// New creates a store over an open, migrated database
func New(db *gorm.DB, logger zerolog.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger.With().Str("component", "store").Logger(),
	}
}

// GetOrCreateWallet returns the wallet for address, creating it on first sight
func (s *Store) GetOrCreateWallet(ctx context.Context, address string) (*models.Wallet, error) {
	var wallet models.Wallet
	result := s.db.WithContext(ctx).Where("address = ?", address).FirstOrCreate(&wallet, models.Wallet{
		Address: address,
	})
	if result.Error != nil {
		metrics.RecordDatabaseOperation("get_or_create_wallet", "failed")
		return nil, fmt.Errorf("failed to get or create wallet: %w", result.Error)
	}
	metrics.RecordDatabaseOperation("get_or_create_wallet", "success")
	return &wallet, nil
}

// FindWallet looks up a wallet without creating it
func (s *Store) FindWallet(ctx context.Context, address string) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := s.db.WithContext(ctx).Where("address = ?", address).First(&wallet).Error; err != nil {
		return nil, fmt.Errorf("failed to find wallet %s: %w", address, err)
	}
	return &wallet, nil
}

// MarkRun stamps the wallet with the time of its last completed run
func (s *Store) MarkRun(ctx context.Context, walletID uint, at time.Time) error {
	err := s.db.WithContext(ctx).Model(&models.Wallet{}).
		Where("id = ?", walletID).
		Update("last_run_at", at.UTC()).Error
	if err != nil {
		return fmt.Errorf("failed to update wallet run time: %w", err)
	}
	return nil
}

// TokenAccountAddresses returns the registered token accounts of a wallet
func (s *Store) TokenAccountAddresses(ctx context.Context, walletID uint) ([]string, error) {
	var addresses []string
	err := s.db.WithContext(ctx).Model(&models.TokenAccount{}).
		Where("wallet_id = ?", walletID).
		Pluck("account_address", &addresses).Error
	if err != nil {
		metrics.RecordDatabaseOperation("list_token_accounts", "failed")
		return nil, fmt.Errorf("failed to list token accounts: %w", err)
	}
	return addresses, nil
}

// RegisterAccount records a processed token account. Registering the same
// account twice is a no-op.
func (s *Store) RegisterAccount(ctx context.Context, account models.TokenAccount) error {
	err := s.db.WithContext(ctx).Create(&account).Error
	if err == nil {
		metrics.RecordDatabaseOperation("register_account", "success")
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		s.logger.Debug().
			Uint("wallet_id", account.WalletID).
			Str("account", account.AccountAddress).
			Msg("Token account already registered")
		metrics.RecordDatabaseOperation("register_account", "duplicate")
		return nil
	}

	metrics.RecordDatabaseOperation("register_account", "failed")
	return fmt.Errorf("failed to register token account %s: %w", account.AccountAddress, err)
}

// UpsertPnLRow inserts row unless one already exists for the same wallet and
// last trade time. It reports whether a row was written.
func (s *Store) UpsertPnLRow(ctx context.Context, row *models.PnLInfo) (bool, error) {
	inserted, err := upsertPnLRow(s.db.WithContext(ctx), row)
	if err != nil {
		metrics.RecordDatabaseOperation("upsert_pnl", "failed")
		return false, err
	}
	if inserted {
		metrics.RecordDatabaseOperation("upsert_pnl", "success")
	} else {
		metrics.RecordDatabaseOperation("upsert_pnl", "duplicate")
	}
	return inserted, nil
}

func upsertPnLRow(tx *gorm.DB, row *models.PnLInfo) (bool, error) {
	var existing int64
	err := tx.Model(&models.PnLInfo{}).
		Where("wallet_id = ? AND last_trade = ?", row.WalletID, row.LastTrade).
		Count(&existing).Error
	if err != nil {
		return false, fmt.Errorf("failed to check pnl row: %w", err)
	}
	if existing > 0 {
		return false, nil
	}

	result := tx.Omit(clause.Associations).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(row)
	if result.Error != nil {
		return false, fmt.Errorf("failed to insert pnl row for %s: %w", row.TokenAccount, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// CommitAccount writes the pnl row and the registry entry of one account in a
// single transaction, so a registered account always has its row.
func (s *Store) CommitAccount(ctx context.Context, row *models.PnLInfo, account models.TokenAccount) (bool, error) {
	var inserted bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if inserted, err = upsertPnLRow(tx, row); err != nil {
			return err
		}

		result := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "wallet_id"}, {Name: "account_address"}},
			DoNothing: true,
		}).Create(&account)
		if result.Error != nil {
			return fmt.Errorf("failed to register token account %s: %w", account.AccountAddress, result.Error)
		}
		return nil
	})
	if err != nil {
		metrics.RecordDatabaseOperation("commit_account", "failed")
		return false, err
	}

	metrics.RecordDatabaseOperation("commit_account", "success")
	return inserted, nil
}

// ListPnLRows returns the wallet's rows with a last trade at or after since,
// newest first
func (s *Store) ListPnLRows(ctx context.Context, walletID uint, since time.Time) ([]models.PnLInfo, error) {
	var rows []models.PnLInfo
	err := s.db.WithContext(ctx).
		Where("wallet_id = ? AND last_trade >= ?", walletID, since.UTC()).
		Order("last_trade DESC").
		Find(&rows).Error
	if err != nil {
		metrics.RecordDatabaseOperation("list_pnl", "failed")
		return nil, fmt.Errorf("failed to list pnl rows: %w", err)
	}
	return rows, nil
}

// Ping checks the database is reachable
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
