package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wnt/walletpnl/internal/metrics"
	"github.com/wnt/walletpnl/internal/models"
	"gorm.io/gorm/clause"
)

// ErrUnsupportedWindow is returned for windows without snapshot columns
var ErrUnsupportedWindow = errors.New("unsupported window")

// SnapshotWindows are the windows with columns in winning_wallets
var SnapshotWindows = []int{7, 14, 30, 60, 90}

// WindowSummary aggregates the pnl rows of one rolling window. WinRate and
// BalanceChange are nil when nothing qualifies.
type WindowSummary struct {
	WindowDays    int
	Since         time.Time
	Rows          int
	Wins          int
	WinRate       *float64
	RealizedPnL   float64
	RealizedLoss  float64
	BalanceChange *float64
	ScamCount     int
}

type windowAggregate struct {
	RowCount     int     `gorm:"column:row_count"`
	Wins         int     `gorm:"column:wins"`
	RealizedPnL  float64 `gorm:"column:realized_pnl"`
	RealizedLoss float64 `gorm:"column:realized_loss"`
	Earned       float64 `gorm:"column:earned"`
	Spent        float64 `gorm:"column:spent"`
	ScamCount    int     `gorm:"column:scam_count"`
}

const windowQuery = `
SELECT
	COUNT(*) AS row_count,
	COUNT(*) FILTER (WHERE delta_sol > 0) AS wins,
	COALESCE(SUM(delta_sol), 0) AS realized_pnl,
	COALESCE(SUM(delta_sol) FILTER (WHERE delta_sol < 0), 0) AS realized_loss,
	COALESCE(SUM(earned_sol), 0) AS earned,
	COALESCE(SUM(spent_sol), 0) AS spent,
	COUNT(*) FILTER (WHERE scam_flag) AS scam_count
FROM pnl_info
WHERE wallet_id = ? AND last_trade >= ?`

// ComputeWindowSummary aggregates rows whose last trade falls within
// windowDays of now
func (s *Store) ComputeWindowSummary(ctx context.Context, walletID uint, windowDays int, now time.Time) (WindowSummary, error) {
	if windowDays <= 0 {
		return WindowSummary{}, fmt.Errorf("%w: %d days", ErrUnsupportedWindow, windowDays)
	}

	since := now.UTC().AddDate(0, 0, -windowDays)
	var agg windowAggregate
	if err := s.db.WithContext(ctx).Raw(windowQuery, walletID, since).Scan(&agg).Error; err != nil {
		metrics.RecordDatabaseOperation("window_summary", "failed")
		return WindowSummary{}, fmt.Errorf("failed to compute %d day summary: %w", windowDays, err)
	}

	summary := WindowSummary{
		WindowDays:   windowDays,
		Since:        since,
		Rows:         agg.RowCount,
		Wins:         agg.Wins,
		RealizedPnL:  agg.RealizedPnL,
		RealizedLoss: agg.RealizedLoss,
		ScamCount:    agg.ScamCount,
	}
	if agg.RowCount > 0 {
		rate := float64(agg.Wins) / float64(agg.RowCount) * 100
		summary.WinRate = &rate
	}
	if agg.Spent != 0 {
		change := (agg.Earned/agg.Spent - 1) * 100
		summary.BalanceChange = &change
	}

	metrics.RecordDatabaseOperation("window_summary", "success")
	return summary, nil
}

// UpsertWinRateSnapshot writes one window's columns of the wallet snapshot,
// leaving the other windows untouched
func (s *Store) UpsertWinRateSnapshot(ctx context.Context, walletID uint, windowDays int, summary WindowSummary) error {
	snapshot := models.WinningWallet{WalletID: walletID}
	rows := summary.Rows

	switch windowDays {
	case 7:
		snapshot.WinRate7, snapshot.BalanceChange7, snapshot.TokenAccounts7 = summary.WinRate, summary.BalanceChange, &rows
	case 14:
		snapshot.WinRate14, snapshot.BalanceChange14, snapshot.TokenAccounts14 = summary.WinRate, summary.BalanceChange, &rows
	case 30:
		snapshot.WinRate30, snapshot.BalanceChange30, snapshot.TokenAccounts30 = summary.WinRate, summary.BalanceChange, &rows
	case 60:
		snapshot.WinRate60, snapshot.BalanceChange60, snapshot.TokenAccounts60 = summary.WinRate, summary.BalanceChange, &rows
	case 90:
		snapshot.WinRate90, snapshot.BalanceChange90, snapshot.TokenAccounts90 = summary.WinRate, summary.BalanceChange, &rows
	default:
		return fmt.Errorf("%w: %d days", ErrUnsupportedWindow, windowDays)
	}

	columns := []string{
		fmt.Sprintf("win_rate_%d", windowDays),
		fmt.Sprintf("balance_change_%d", windowDays),
		fmt.Sprintf("token_accounts_%d", windowDays),
		"updated_at",
	}

	err := s.db.WithContext(ctx).Omit(clause.Associations).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "wallet_id"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(&snapshot).Error
	if err != nil {
		metrics.RecordDatabaseOperation("upsert_snapshot", "failed")
		return fmt.Errorf("failed to upsert %d day snapshot: %w", windowDays, err)
	}

	metrics.RecordDatabaseOperation("upsert_snapshot", "success")
	return nil
}

// Snapshot returns the wallet's win rate snapshot
func (s *Store) Snapshot(ctx context.Context, walletID uint) (*models.WinningWallet, error) {
	var snapshot models.WinningWallet
	if err := s.db.WithContext(ctx).Where("wallet_id = ?", walletID).First(&snapshot).Error; err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return &snapshot, nil
}

// IsSnapshotWindow reports whether days has snapshot columns
func IsSnapshotWindow(days int) bool {
	for _, w := range SnapshotWindows {
		if w == days {
			return true
		}
	}
	return false
}
