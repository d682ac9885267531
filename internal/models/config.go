package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Config represents the application configuration
type Config struct {
	Database   DatabaseConfig
	Telegram   TelegramConfig
	Wallets    WalletConfig
	Withdrawal WithdrawalConfig
	Referral   ReferralConfig
	Profit     ProfitConfig
	Quotes     QuoteConfig
	Notify     NotifyConfig
	LogLevel   string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
	BusyTimeout     time.Duration
}

// TelegramConfig holds the chat transport settings
type TelegramConfig struct {
	BotToken    string
	OperatorIds []string
	PollTimeout int // seconds, long-poll timeout for getUpdates
}

// WalletConfig holds deposit pools and the withdrawal address profile
type WalletConfig struct {
	PoolsFile        string
	Pools            map[CryptoKind][]string
	WithdrawalPrefix string
	WithdrawalLength int
}

// WithdrawalConfig holds withdrawal bounds
type WithdrawalConfig struct {
	MinAmount decimal.Decimal
}

// Referral bonus modes
const (
	ReferralModeFlat    = "flat"
	ReferralModePercent = "percent"
)

// ReferralConfig selects the first-deposit bonus policy
type ReferralConfig struct {
	Mode      string // "flat" or "percent"
	FlatBonus decimal.Decimal
	Percent   decimal.Decimal
}

// ProfitConfig holds accrual engine settings
type ProfitConfig struct {
	AccrualPeriod time.Duration
}

// QuoteConfig holds market data settings
type QuoteConfig struct {
	BaseURL string
	Timeout time.Duration
	Tickers []string
}

// NotifyConfig holds delivery settings
type NotifyConfig struct {
	Timeout time.Duration
}
