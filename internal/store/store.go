package store

import (
	"context"
	"errors"

	"invest-bot-go/internal/models"

	"github.com/shopspring/decimal"
)

// Sentinel errors shared across all backend implementations.
var (
	ErrNotFound               = errors.New("record not found")
	ErrDuplicate              = errors.New("duplicate record")
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrStaleState             = errors.New("record is no longer in the expected state")
	ErrNegativeBalance        = errors.New("balance would become negative")
)

// UserRepository persists users and their aggregates.
type UserRepository interface {
	InsertUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, userId string) (*models.User, error)
	GetUserByReferralCode(ctx context.Context, code string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	ListUsersWithPlan(ctx context.Context) ([]models.User, error)
	TopUsersByProfit(ctx context.Context, limit int) ([]models.User, error)
	// UpdateUserAccount writes profile, plan and aggregate fields guarded by
	// user.Version, and bumps the version on success.
	UpdateUserAccount(ctx context.Context, user *models.User) error
	SetUserReferrer(ctx context.Context, userId, referrerId string) error
	DeleteUser(ctx context.Context, userId string) error
}

// InvestmentRepository persists crypto investments. Updates are guarded by
// the expected current status and fail with ErrStaleState otherwise.
type InvestmentRepository interface {
	InsertCryptoInvestment(ctx context.Context, inv *models.CryptoInvestment) error
	GetCryptoInvestment(ctx context.Context, id int64) (*models.CryptoInvestment, error)
	ListCryptoInvestments(ctx context.Context, userId string, status models.Status) ([]models.CryptoInvestment, error)
	CountCryptoInvestments(ctx context.Context, userId string, status models.Status) (int, error)
	UpdateCryptoInvestment(ctx context.Context, inv *models.CryptoInvestment, expected models.Status) error
}

// StockRepository persists stock investments and stock sales.
type StockRepository interface {
	InsertStockInvestment(ctx context.Context, inv *models.StockInvestment) error
	GetStockInvestment(ctx context.Context, id int64) (*models.StockInvestment, error)
	ListStockInvestments(ctx context.Context, userId string, status models.Status) ([]models.StockInvestment, error)
	UpdateStockInvestment(ctx context.Context, inv *models.StockInvestment, expected models.Status) error
	DeleteStockInvestment(ctx context.Context, id int64) error

	InsertStockSale(ctx context.Context, sale *models.StockSale) error
	GetStockSale(ctx context.Context, id int64) (*models.StockSale, error)
	ListStockSales(ctx context.Context, userId string, status models.SaleStatus) ([]models.StockSale, error)
	ListOpenSalesForStock(ctx context.Context, stockId int64) ([]models.StockSale, error)
	UpdateStockSale(ctx context.Context, sale *models.StockSale, expected models.SaleStatus) error
}

// WithdrawalRepository persists withdrawals.
type WithdrawalRepository interface {
	InsertWithdrawal(ctx context.Context, w *models.Withdrawal) error
	GetWithdrawal(ctx context.Context, id int64) (*models.Withdrawal, error)
	ListWithdrawals(ctx context.Context, userId string, status models.Status) ([]models.Withdrawal, error)
	UpdateWithdrawal(ctx context.Context, w *models.Withdrawal, expected models.Status) error
}

// ReferralRepository persists inviter/invitee links.
type ReferralRepository interface {
	InsertReferral(ctx context.Context, ref *models.Referral) error
	GetReferralByReferee(ctx context.Context, refereeId string) (*models.Referral, error)
	ListReferralsByReferrer(ctx context.Context, referrerId string) ([]models.Referral, error)
	UpdateReferralBonus(ctx context.Context, id string, bonus decimal.Decimal) error
}

// AuditRepository appends to and reads the operator audit log. There is no
// update or delete.
type AuditRepository interface {
	InsertAuditEntry(ctx context.Context, entry *models.AuditEntry) error
	ListAuditEntries(ctx context.Context, targetUserId string, limit int) ([]models.AuditEntry, error)
}

// Tx is the scoped handle passed to transaction callbacks. Reads see a
// consistent snapshot; writes commit together when the callback returns nil.
type Tx interface {
	UserRepository
	InvestmentRepository
	StockRepository
	WithdrawalRepository
	ReferralRepository
	AuditRepository
}

// Store is the contract every backend must satisfy.
type Store interface {
	// WithTx runs fn as the single writer. Any error or panic from fn rolls
	// back every change made through tx. fn must not block on external I/O.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
	// View runs fn against a read snapshot; writes made through tx are discarded.
	View(ctx context.Context, fn func(tx Tx) error) error
	Close()
}
