package models

import "time"

// PnLInfo is the finalized result for one token account
type PnLInfo struct {
	TokenAccount    string    `gorm:"primaryKey;size:44"`
	WalletID        uint      `gorm:"not null;uniqueIndex:idx_pnl_info_wallet_last_trade;index"`
	Income          float64   `gorm:"not null"`
	Outcome         float64   `gorm:"not null"`
	TotalFee        float64   `gorm:"not null"`
	SpentSOL        float64   `gorm:"column:spent_sol;not null"`
	EarnedSOL       float64   `gorm:"column:earned_sol;not null"`
	DeltaToken      float64   `gorm:"not null"`
	DeltaSOL        float64   `gorm:"column:delta_sol;not null"`
	DeltaPercentage float64   `gorm:"not null"`
	Buys            int       `gorm:"not null"`
	Sells           int       `gorm:"not null"`
	LastTrade       time.Time `gorm:"not null;uniqueIndex:idx_pnl_info_wallet_last_trade"`
	TimePeriod      string    `gorm:"size:32"`
	Contract        string    `gorm:"size:44;index"`
	ScamFlag        bool      `gorm:"not null;default:false"`
	BuyPeriod       string    `gorm:"size:32"`
	CreatedAt       time.Time

	Wallet Wallet `gorm:"foreignKey:WalletID"`
}

func (PnLInfo) TableName() string {
	return "pnl_info"
}

// WinningWallet holds the rolling window snapshot for a wallet. Each window's
// columns are written independently.
type WinningWallet struct {
	WalletID uint `gorm:"primaryKey;autoIncrement:false"`

	WinRate7        *float64 `gorm:"column:win_rate_7"`
	BalanceChange7  *float64 `gorm:"column:balance_change_7"`
	TokenAccounts7  *int     `gorm:"column:token_accounts_7"`
	WinRate14       *float64 `gorm:"column:win_rate_14"`
	BalanceChange14 *float64 `gorm:"column:balance_change_14"`
	TokenAccounts14 *int     `gorm:"column:token_accounts_14"`
	WinRate30       *float64 `gorm:"column:win_rate_30"`
	BalanceChange30 *float64 `gorm:"column:balance_change_30"`
	TokenAccounts30 *int     `gorm:"column:token_accounts_30"`
	WinRate60       *float64 `gorm:"column:win_rate_60"`
	BalanceChange60 *float64 `gorm:"column:balance_change_60"`
	TokenAccounts60 *int     `gorm:"column:token_accounts_60"`
	WinRate90       *float64 `gorm:"column:win_rate_90"`
	BalanceChange90 *float64 `gorm:"column:balance_change_90"`
	TokenAccounts90 *int     `gorm:"column:token_accounts_90"`
	UpdatedAt       time.Time

	Wallet Wallet `gorm:"foreignKey:WalletID"`
}

func (WinningWallet) TableName() string {
	return "winning_wallets"
}
