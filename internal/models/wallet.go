package models

import (
	"time"

	"gorm.io/gorm"
)

// Wallet is the stable identity of a tracked Solana wallet
type Wallet struct {
	gorm.Model
	Address   string `gorm:"size:44;uniqueIndex;not null"`
	LastRunAt *time.Time

	// Relationships
	TokenAccounts []TokenAccount `gorm:"foreignKey:WalletID"`
}

func (Wallet) TableName() string {
	return "wallet_address"
}

// TokenAccount is the registry entry for a token account that has been fully processed.
// Rows are written once and never updated.
type TokenAccount struct {
	ID                 uint      `gorm:"primarykey"`
	CreatedAt          time.Time
	WalletID           uint      `gorm:"not null;uniqueIndex:idx_token_accounts_wallet_account"`
	AccountAddress     string    `gorm:"size:44;not null;uniqueIndex:idx_token_accounts_wallet_account"`
	FirstSeenBlockTime time.Time `gorm:"index"`
	TradeCount         int       `gorm:"default:0"`
}

func (TokenAccount) TableName() string {
	return "token_accounts"
}
