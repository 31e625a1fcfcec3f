package report

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/wnt/walletpnl/internal/models"
)

// Summary is the headline of one report window
type Summary struct {
	WalletAddress string   `json:"wallet_address"`
	SOLBalance    float64  `json:"sol_balance"`
	SOLPrice      float64  `json:"sol_price"`
	WinRate       *float64 `json:"win_rate"`
	RealizedPnL   float64  `json:"realized_pnl"`
	RealizedLoss  float64  `json:"realized_loss"`
	BalanceChange *float64 `json:"balance_change"`
	ScamTokens    int      `json:"scam_tokens"`
	ProfitUSD     float64  `json:"profit_usd"`
	LossUSD       float64  `json:"loss_usd"`
	TimeWindow    string   `json:"time_window"`
	TokenAccounts int      `json:"token_accounts"`
}

// Row is a pnl_info row as it appears in a report
type Row struct {
	TokenAccount    string    `json:"token_account"`
	Income          float64   `json:"income"`
	Outcome         float64   `json:"outcome"`
	TotalFee        float64   `json:"total_fee"`
	SpentSOL        float64   `json:"spent_sol"`
	EarnedSOL       float64   `json:"earned_sol"`
	DeltaToken      float64   `json:"delta_token"`
	DeltaSOL        float64   `json:"delta_sol"`
	DeltaPercentage float64   `json:"delta_percentage"`
	Buys            int       `json:"buys"`
	Sells           int       `json:"sells"`
	LastTrade       time.Time `json:"last_trade"`
	TimePeriod      string    `json:"time_period"`
	Contract        string    `json:"contract"`
	ScamFlag        bool      `json:"scam_flag"`
	BuyPeriod       string    `json:"buy_period"`
}

// NewRow drops the internal wallet reference from a persisted row
func NewRow(info models.PnLInfo) Row {
	return Row{
		TokenAccount:    info.TokenAccount,
		Income:          info.Income,
		Outcome:         info.Outcome,
		TotalFee:        info.TotalFee,
		SpentSOL:        info.SpentSOL,
		EarnedSOL:       info.EarnedSOL,
		DeltaToken:      info.DeltaToken,
		DeltaSOL:        info.DeltaSOL,
		DeltaPercentage: info.DeltaPercentage,
		Buys:            info.Buys,
		Sells:           info.Sells,
		LastTrade:       info.LastTrade.UTC(),
		TimePeriod:      info.TimePeriod,
		Contract:        info.Contract,
		ScamFlag:        info.ScamFlag,
		BuyPeriod:       info.BuyPeriod,
	}
}

// WindowLabel renders a window length the way reports name it
func WindowLabel(days int) string {
	if days == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", days)
}

// Generator renders one report. Rows arrive sorted by last trade, newest first.
type Generator interface {
	Generate(ctx context.Context, summary Summary, rows []Row) error
}

// Document is the JSON layout written by JSONGenerator
type Document struct {
	GeneratedAt time.Time `json:"generated_at"`
	Summary     Summary   `json:"summary"`
	Rows        []Row     `json:"rows"`
}

// JSONGenerator writes each report to its own file under a directory
type JSONGenerator struct {
	dir    string
	now    func() time.Time
	logger zerolog.Logger
}

func NewJSONGenerator(dir string, logger zerolog.Logger) *JSONGenerator {
	return &JSONGenerator{
		dir:    dir,
		now:    time.Now,
		logger: logger.With().Str("component", "report_json").Logger(),
	}
}

// Path returns the file a summary is written to
func (g *JSONGenerator) Path(summary Summary) string {
	label := strings.ReplaceAll(summary.TimeWindow, " ", "_")
	return filepath.Join(g.dir, fmt.Sprintf("%s_%s.json", summary.WalletAddress, label))
}

// Generate writes the report atomically: a temp file renamed into place
func (g *JSONGenerator) Generate(ctx context.Context, summary Summary, rows []Row) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rows == nil {
		rows = []Row{}
	}

	if err := os.MkdirAll(g.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create report dir: %w", err)
	}

	data, err := json.MarshalIndent(Document{
		GeneratedAt: g.now().UTC(),
		Summary:     summary,
		Rows:        rows,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	path := g.Path(summary)
	tmp, err := os.CreateTemp(g.dir, ".report-*")
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move report into place: %w", err)
	}

	g.logger.Info().
		Str("wallet", summary.WalletAddress).
		Str("window", summary.TimeWindow).
		Int("rows", len(rows)).
		Str("path", path).
		Msg("Report written")
	return nil
}
