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

package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a money-moving row.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusRejected  Status = "rejected"
)

// ParseStatus accepts the three settlement states, case-insensitively.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusPending, StatusConfirmed, StatusRejected:
		return st, nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// Terminal reports whether no operator action can move the row any further.
func (s Status) Terminal() bool {
	return s == StatusConfirmed || s == StatusRejected
}

// SaleStatus is the lifecycle state of a stock sale.
type SaleStatus string

const (
	SaleAwaitingWallet SaleStatus = "awaiting-wallet"
	SalePending        SaleStatus = "pending"
	SaleConfirmed      SaleStatus = "confirmed"
	SaleRejected       SaleStatus = "rejected"
)

// Open reports whether the sale still reserves shares of its investment.
func (s SaleStatus) Open() bool {
	return s == SaleAwaitingWallet || s == SalePending
}

// CryptoKind is an accepted deposit currency.
type CryptoKind string

const (
	KindBTC  CryptoKind = "btc"
	KindETH  CryptoKind = "eth"
	KindUSDT CryptoKind = "usdt"
	KindSOL  CryptoKind = "sol"
	KindTON  CryptoKind = "ton"
)

// CryptoKinds lists every accepted deposit currency in display order.
var CryptoKinds = []CryptoKind{KindBTC, KindETH, KindUSDT, KindSOL, KindTON}

func ParseCryptoKind(s string) (CryptoKind, error) {
	k := CryptoKind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range CryptoKinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown crypto kind %q", s)
}

// User represents a registered bot user and their aggregates
type User struct {
	Id               string          `db:"id"`
	Handle           string          `db:"handle"`
	FullName         string          `db:"full_name"`
	Email            string          `db:"email"`
	RegisteredAt     time.Time       `db:"registered_at"`
	Plan             Plan            `db:"plan"`
	TotalInvested    decimal.Decimal `db:"total_invested"`
	CurrentBalance   decimal.Decimal `db:"current_balance"`
	ProfitEarned     decimal.Decimal `db:"profit_earned"`
	LastProfitUpdate time.Time       `db:"last_profit_update"`
	ReferralCode     string          `db:"referral_code"`
	ReferredBy       string          `db:"referred_by"` // empty when the user joined without a code
	Version          int64           `db:"version"`
}

// CryptoInvestment is a user-declared crypto deposit awaiting operator attestation
type CryptoInvestment struct {
	Id            int64           `db:"id"`
	UserId        string          `db:"user_id"`
	Amount        decimal.Decimal `db:"amount"`
	Kind          CryptoKind      `db:"crypto_kind"`
	WalletAddress string          `db:"wallet_address"`
	TxId          string          `db:"tx_id"`
	CreatedAt     time.Time       `db:"created_at"`
	Status        Status          `db:"status"`
	Plan          Plan            `db:"plan"`
	Note          string          `db:"note"`
	ProcessedBy   string          `db:"processed_by"`
	ProcessedAt   *time.Time      `db:"processed_at"`
}

// StockInvestment is a bookkeeping position in a single ticker
type StockInvestment struct {
	Id            int64           `db:"id"`
	UserId        string          `db:"user_id"`
	Ticker        string          `db:"ticker"`
	Amount        decimal.Decimal `db:"amount"`
	PurchasePrice decimal.Decimal `db:"purchase_price"`
	Shares        decimal.Decimal `db:"shares"`
	Status        Status          `db:"status"`
	CreatedAt     time.Time       `db:"created_at"`
	ConfirmedAt   *time.Time      `db:"confirmed_at"`
	ConfirmedBy   string          `db:"confirmed_by"`
}

// Withdrawal is a cash-out request against the current balance
type Withdrawal struct {
	Id            int64           `db:"id"`
	UserId        string          `db:"user_id"`
	Amount        decimal.Decimal `db:"amount"`
	WalletAddress string          `db:"wallet_address"`
	CreatedAt     time.Time       `db:"created_at"`
	Status        Status          `db:"status"`
	ProcessedBy   string          `db:"processed_by"`
	ProcessedAt   *time.Time      `db:"processed_at"`
}

// StockSale is a user request to sell shares of a confirmed stock investment.
// StockInvestmentId is zero once the referenced position has been fully sold.
type StockSale struct {
	Id                int64           `db:"id"`
	UserId            string          `db:"user_id"`
	StockInvestmentId int64           `db:"stock_investment_id"`
	Ticker            string          `db:"ticker"`
	Shares            decimal.Decimal `db:"shares"`
	Price             decimal.Decimal `db:"price"`
	TotalValue        decimal.Decimal `db:"total_value"`
	WalletAddress     string          `db:"wallet_address"`
	Status            SaleStatus      `db:"status"`
	CreatedAt         time.Time       `db:"created_at"`
	ProcessedBy       string          `db:"processed_by"`
	ProcessedAt       *time.Time      `db:"processed_at"`
}

// Referral links an inviter to the user who registered with their code
type Referral struct {
	Id          string          `db:"id"`
	ReferrerId  string          `db:"referrer_id"`
	RefereeId   string          `db:"referee_id"`
	CreatedAt   time.Time       `db:"created_at"`
	BonusAmount decimal.Decimal `db:"bonus_amount"`
}

// AuditEntry is an append-only record of an operator-initiated change
type AuditEntry struct {
	Id           string              `db:"id"`
	AdminId      string              `db:"admin_id"`
	TargetUserId string              `db:"target_user_id"`
	Action       string              `db:"action"`
	Amount       decimal.NullDecimal `db:"amount"`
	OldBalance   decimal.NullDecimal `db:"old_balance"`
	NewBalance   decimal.NullDecimal `db:"new_balance"`
	CreatedAt    time.Time           `db:"created_at"`
	Note         string              `db:"note"`
}

// Audit action tags
const (
	AuditConfirmInvestment = "confirm_investment"
	AuditRejectInvestment  = "reject_investment"
	AuditEditInvestment    = "edit_investment"
	AuditConfirmStock      = "confirm_stock"
	AuditRejectStock       = "reject_stock"
	AuditAddStock          = "add_stock"
	AuditEditStock         = "edit_stock"
	AuditRecalculateStock  = "recalculate_stock"
	AuditDeleteStock       = "delete_stock"
	AuditConfirmStockSale  = "confirm_stock_sale"
	AuditRejectStockSale   = "reject_stock_sale"
	AuditQuoteFallback     = "quote_fallback"
	AuditConfirmWithdrawal = "confirm_withdrawal"
	AuditRejectWithdrawal  = "reject_withdrawal"
	AuditReferralBonus     = "referral_bonus"
	AuditProfitOverride    = "profit_override"
	AuditDeleteUser        = "delete_user"
)

// BalanceAction returns the audit tag for a direct balance change in the given mode.
func BalanceAction(mode string) string {
	return "balance_" + mode
}

// SystemActor is recorded as the admin of entries written without an operator.
const SystemActor = "system"
