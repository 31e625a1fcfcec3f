package database

import (
	"errors"
	"fmt"
	"time"

	"github.com/wnt/walletpnl/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrMissingDSN is returned when no connection string is given
var ErrMissingDSN = errors.New("database DSN is empty")

// Connect opens the postgres database and migrates the schema.
// The pool is capped at a single open connection so writes stay serialized.
func Connect(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, ErrMissingDSN
	}

	config := &gorm.Config{
		Logger:      logger.Default.LogMode(logger.Silent),
		PrepareStmt: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	db, err := gorm.Open(postgres.Open(dsn), config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database connection: %w", err)
	}

	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate creates or updates the schema
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Wallet{},
		&models.TokenAccount{},
		&models.PnLInfo{},
		&models.WinningWallet{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	// Window queries filter on wallet and last trade time
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_pnl_info_wallet_scam ON pnl_info(wallet_id, scam_flag)",
		"CREATE INDEX IF NOT EXISTS idx_pnl_info_last_trade_desc ON pnl_info(wallet_id, last_trade DESC)",
	}
	for _, stmt := range indexes {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}
