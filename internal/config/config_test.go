package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"invest-bot-go/internal/models"

	"github.com/shopspring/decimal"
)

func writeWallets(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wallets.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write wallet file: %v", err)
	}
	return path
}

const fullWallets = `
wallets:
  btc: [bc1qexample0]
  eth: [0xexample0, 0xexample1]
  usdt: [TExampleUsdt000000000000000000000]
  sol: [SoExample]
  ton: [UQexample]
`

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("WALLETS_FILE", writeWallets(t, fullWallets))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Database.Path != "investbot.db" {
		t.Errorf("Expected default database path, got %q", cfg.Database.Path)
	}
	if !cfg.Withdrawal.MinAmount.Equal(decimal.NewFromInt(10)) {
		t.Errorf("Expected min withdrawal 10, got %s", cfg.Withdrawal.MinAmount)
	}
	if cfg.Wallets.WithdrawalPrefix != "T" || cfg.Wallets.WithdrawalLength != 34 {
		t.Errorf("Unexpected withdrawal profile %q/%d", cfg.Wallets.WithdrawalPrefix, cfg.Wallets.WithdrawalLength)
	}
	if cfg.Referral.Mode != models.ReferralModeFlat || !cfg.Referral.FlatBonus.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Unexpected referral defaults %+v", cfg.Referral)
	}
	if cfg.Profit.AccrualPeriod != 24*time.Hour {
		t.Errorf("Expected 24h accrual period, got %v", cfg.Profit.AccrualPeriod)
	}
	if got := cfg.Wallets.Pools[models.KindETH]; len(got) != 2 {
		t.Errorf("Expected 2 eth wallets, got %v", got)
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("WALLETS_FILE", writeWallets(t, fullWallets))
	t.Setenv("WALLETS_BTC", "bc1qa, bc1qb ,")
	t.Setenv("OPERATOR_IDS", "100,200")
	t.Setenv("REFERRAL_BONUS_MODE", "PERCENT")
	t.Setenv("WITHDRAWAL_MIN_AMOUNT", "25.5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got := cfg.Wallets.Pools[models.KindBTC]; len(got) != 2 || got[1] != "bc1qb" {
		t.Errorf("Expected override btc pool, got %v", got)
	}
	if len(cfg.Telegram.OperatorIds) != 2 || cfg.Telegram.OperatorIds[0] != "100" {
		t.Errorf("Unexpected operator ids %v", cfg.Telegram.OperatorIds)
	}
	if cfg.Referral.Mode != models.ReferralModePercent {
		t.Errorf("Expected percent mode, got %q", cfg.Referral.Mode)
	}
	if !cfg.Withdrawal.MinAmount.Equal(decimal.RequireFromString("25.5")) {
		t.Errorf("Expected min withdrawal 25.5, got %s", cfg.Withdrawal.MinAmount)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		file string
	}{
		{"empty pool", nil, "wallets:\n  btc: [bc1q]\n"},
		{"unknown kind", nil, "wallets:\n  doge: [D123]\n"},
		{"bad duration", map[string]string{"PROFIT_ACCRUAL_PERIOD": "daily"}, fullWallets},
		{"bad decimal", map[string]string{"WITHDRAWAL_MIN_AMOUNT": "ten"}, fullWallets},
		{"bad mode", map[string]string{"REFERRAL_BONUS_MODE": "tiered"}, fullWallets},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("WALLETS_FILE", writeWallets(t, tt.file))
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Errorf("Expected error")
			}
		})
	}
}

func TestLoad_MissingFileUsesEnvironment(t *testing.T) {
	t.Setenv("WALLETS_FILE", filepath.Join(t.TempDir(), "absent.yaml"))
	t.Setenv("WALLETS_BTC", "bc1q")
	t.Setenv("WALLETS_ETH", "0xabc")
	t.Setenv("WALLETS_USDT", "TUsdt")
	t.Setenv("WALLETS_SOL", "So1")
	t.Setenv("WALLETS_TON", "UQ1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Wallets.Pools[models.KindTON][0] != "UQ1" {
		t.Errorf("Expected ton pool from environment, got %v", cfg.Wallets.Pools[models.KindTON])
	}
}
