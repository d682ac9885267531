/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"invest-bot-go/internal/models"

	"github.com/shopspring/decimal"
)

const defaultQuoteBaseURL = "https://query1.finance.yahoo.com"

func Load() (*models.Config, error) {
	connMaxLifetime, err := getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	connMaxIdleTime, err := getEnvDuration("DB_CONN_MAX_IDLE_TIME", 30*time.Second)
	if err != nil {
		return nil, err
	}

	pingTimeout, err := getEnvDuration("DB_PING_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	busyTimeout, err := getEnvDuration("DB_BUSY_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	accrualPeriod, err := getEnvDuration("PROFIT_ACCRUAL_PERIOD", 24*time.Hour)
	if err != nil {
		return nil, err
	}

	quoteTimeout, err := getEnvDuration("QUOTE_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, err
	}

	notifyTimeout, err := getEnvDuration("NOTIFY_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, err
	}

	minWithdrawal, err := getEnvDecimal("WITHDRAWAL_MIN_AMOUNT", decimal.NewFromInt(10))
	if err != nil {
		return nil, err
	}

	flatBonus, err := getEnvDecimal("REFERRAL_BONUS_FLAT", decimal.NewFromInt(100))
	if err != nil {
		return nil, err
	}

	bonusPercent, err := getEnvDecimal("REFERRAL_BONUS_PERCENT", decimal.NewFromInt(5))
	if err != nil {
		return nil, err
	}

	walletsFile := getEnvString("WALLETS_FILE", "wallets.yaml")
	pools, err := loadWalletPools(walletsFile)
	if err != nil {
		return nil, err
	}
	for _, kind := range models.CryptoKinds {
		if override := getEnvList("WALLETS_"+strings.ToUpper(string(kind)), nil); len(override) > 0 {
			pools[kind] = override
		}
	}

	cfg := &models.Config{
		Database: models.DatabaseConfig{
			Path:            getEnvString("DATABASE_PATH", "investbot.db"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: connMaxLifetime,
			ConnMaxIdleTime: connMaxIdleTime,
			PingTimeout:     pingTimeout,
			BusyTimeout:     busyTimeout,
		},
		Telegram: models.TelegramConfig{
			BotToken:    getEnvString("TELEGRAM_BOT_TOKEN", ""),
			OperatorIds: getEnvList("OPERATOR_IDS", nil),
			PollTimeout: getEnvInt("TELEGRAM_POLL_TIMEOUT", 60),
		},
		Wallets: models.WalletConfig{
			PoolsFile:        walletsFile,
			Pools:            pools,
			WithdrawalPrefix: getEnvString("WITHDRAWAL_WALLET_PREFIX", "T"),
			WithdrawalLength: getEnvInt("WITHDRAWAL_WALLET_LENGTH", 34),
		},
		Withdrawal: models.WithdrawalConfig{
			MinAmount: minWithdrawal,
		},
		Referral: models.ReferralConfig{
			Mode:      strings.ToLower(getEnvString("REFERRAL_BONUS_MODE", models.ReferralModeFlat)),
			FlatBonus: flatBonus,
			Percent:   bonusPercent,
		},
		Profit: models.ProfitConfig{
			AccrualPeriod: accrualPeriod,
		},
		Quotes: models.QuoteConfig{
			BaseURL: getEnvString("QUOTE_BASE_URL", defaultQuoteBaseURL),
			Timeout: quoteTimeout,
			Tickers: getEnvList("QUOTE_TICKERS", []string{"AAPL", "MSFT", "NVDA", "TSLA", "AMZN"}),
		},
		Notify: models.NotifyConfig{
			Timeout: notifyTimeout,
		},
		LogLevel: getEnvString("LOG_LEVEL", "info"),
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the bounds Load cannot express through defaults.
func Validate(cfg *models.Config) error {
	for _, kind := range models.CryptoKinds {
		if len(cfg.Wallets.Pools[kind]) == 0 {
			return fmt.Errorf("wallet pool for %s is empty (set it in %s or WALLETS_%s)",
				kind, cfg.Wallets.PoolsFile, strings.ToUpper(string(kind)))
		}
	}
	if cfg.Wallets.WithdrawalLength <= len(cfg.Wallets.WithdrawalPrefix) {
		return fmt.Errorf("withdrawal wallet length %d must exceed prefix %q", cfg.Wallets.WithdrawalLength, cfg.Wallets.WithdrawalPrefix)
	}
	if !cfg.Withdrawal.MinAmount.IsPositive() {
		return fmt.Errorf("minimum withdrawal must be positive, got %s", cfg.Withdrawal.MinAmount)
	}
	switch cfg.Referral.Mode {
	case models.ReferralModeFlat:
		if cfg.Referral.FlatBonus.IsNegative() {
			return fmt.Errorf("flat referral bonus cannot be negative, got %s", cfg.Referral.FlatBonus)
		}
	case models.ReferralModePercent:
		if cfg.Referral.Percent.IsNegative() || cfg.Referral.Percent.GreaterThan(decimal.NewFromInt(100)) {
			return fmt.Errorf("referral bonus percent must be within 0-100, got %s", cfg.Referral.Percent)
		}
	default:
		return fmt.Errorf("unknown referral bonus mode %q (want flat or percent)", cfg.Referral.Mode)
	}
	if cfg.Profit.AccrualPeriod <= 0 {
		return fmt.Errorf("profit accrual period must be positive, got %v", cfg.Profit.AccrualPeriod)
	}
	return nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		return duration, nil
	}
	return defaultValue, nil
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) (decimal.Decimal, error) {
	if value := os.Getenv(key); value != "" {
		d, err := decimal.NewFromString(value)
		if err != nil {
			return decimal.Zero, fmt.Errorf("invalid decimal for %s: %q (%w)", key, value, err)
		}
		return d, nil
	}
	return defaultValue, nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated value, dropping blanks.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
