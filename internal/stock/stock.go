// Package stock manages bookkeeping stock positions: purchases priced from
// the quote oracle, operator confirmation and edits, and sales back to the
// balance.
package stock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"invest-bot-go/internal/apperr"
	"invest-bot-go/internal/models"
	"invest-bot-go/internal/quote"
	"invest-bot-go/internal/store"
	"invest-bot-go/internal/wallet"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Editable fields.
const (
	FieldAmount = "amount"
	FieldPrice  = "price"
	FieldShares = "shares"
)

const (
	shareScale = 8
	cents      = 2
)

type Service struct {
	store        store.Store
	oracle       quote.Oracle
	profile      wallet.Profile
	quoteTimeout time.Duration
	Now          func() time.Time
}

func NewService(st store.Store, oracle quote.Oracle, profile wallet.Profile, quoteTimeout time.Duration) *Service {
	return &Service{store: st, oracle: oracle, profile: profile, quoteTimeout: quoteTimeout, Now: time.Now}
}

// livePrice asks the oracle for ticker. It must be called with no transaction open.
func (s *Service) livePrice(ctx context.Context, ticker string) (decimal.Decimal, error) {
	if s.quoteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.quoteTimeout)
		defer cancel()
	}
	price, err := s.oracle.Price(ctx, ticker)
	if err != nil {
		return decimal.Zero, err
	}
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: non-positive price %s for %s", quote.ErrUnavailable, price, ticker)
	}
	return price, nil
}

func sharesFor(amount, price decimal.Decimal) decimal.Decimal {
	return amount.DivRound(price, shareScale)
}

func amountFor(shares, price decimal.Decimal) decimal.Decimal {
	return shares.Mul(price).Round(cents)
}

// checkPosition rejects rows that rounding has left worthless.
func checkPosition(inv *models.StockInvestment) error {
	if !inv.Amount.IsPositive() {
		return apperr.WithMessage(apperr.ErrInvalidInput, "Position value must be at least $0.01")
	}
	if !inv.Shares.IsPositive() {
		return apperr.WithMessage(apperr.ErrInvalidInput, "Position must hold more than zero shares")
	}
	return nil
}

func registered(ctx context.Context, tx store.Tx, userId string) (*models.User, error) {
	user, err := tx.GetUser(ctx, userId)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.Wrap(apperr.ErrNotRegistered, err)
	}
	return user, err
}

// SubmitPurchase records a pending purchase of amount USD of ticker at the
// current quote. A purchase requires a live price.
func (s *Service) SubmitPurchase(ctx context.Context, userId, rawTicker string, amount decimal.Decimal) (*models.StockInvestment, error) {
	ticker, err := quote.NormalizeTicker(rawTicker)
	if err != nil {
		return nil, apperr.Newf(apperr.ErrInvalidInput, "Unknown ticker %q", rawTicker)
	}
	amount = amount.Round(cents)
	if !amount.IsPositive() {
		return nil, apperr.WithMessage(apperr.ErrInvalidInput, "Amount must be at least $0.01")
	}

	err = s.store.View(ctx, func(tx store.Tx) error {
		_, err := registered(ctx, tx, userId)
		return err
	})
	if err != nil {
		return nil, apperr.FromStore(err)
	}

	price, err := s.livePrice(ctx, ticker)
	if errors.Is(err, quote.ErrUnknownTicker) {
		return nil, apperr.Newf(apperr.ErrInvalidInput, "Unknown ticker %q", ticker)
	}
	if err != nil {
		zap.L().Warn("Quote unavailable for purchase", zap.String("ticker", ticker), zap.Error(err))
		return nil, apperr.Wrap(apperr.ErrExternalUnavailable, err)
	}

	inv := &models.StockInvestment{
		UserId:        userId,
		Ticker:        ticker,
		Amount:        amount,
		PurchasePrice: price,
		Shares:        sharesFor(amount, price),
		Status:        models.StatusPending,
		CreatedAt:     s.Now().UTC(),
	}
	if err := checkPosition(inv); err != nil {
		return nil, err
	}
	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		if _, err := registered(ctx, tx, userId); err != nil {
			return err
		}
		return tx.InsertStockInvestment(ctx, inv)
	})
	if err != nil {
		return nil, apperr.FromStore(err)
	}

	zap.L().Info("Stock purchase submitted",
		zap.Int64("stock_id", inv.Id),
		zap.String("user_id", userId),
		zap.String("ticker", ticker),
		zap.String("amount", amount.String()),
		zap.String("price", price.String()))
	return inv, nil
}

type AdminPurchaseParams struct {
	AdminId string
	UserId  string
	Ticker  string
	Shares  decimal.Decimal
	Price   decimal.Decimal
}

// SubmitPurchaseAsAdmin records a position an operator bought on the user's
// behalf. It is confirmed immediately.
func (s *Service) SubmitPurchaseAsAdmin(ctx context.Context, p AdminPurchaseParams) (*models.StockInvestment, error) {
	ticker, err := quote.NormalizeTicker(p.Ticker)
	if err != nil {
		return nil, apperr.Newf(apperr.ErrInvalidInput, "Unknown ticker %q", p.Ticker)
	}
	if !p.Shares.IsPositive() || !p.Price.IsPositive() {
		return nil, apperr.WithMessage(apperr.ErrInvalidInput, "Shares and price must be greater than zero")
	}

	now := s.Now().UTC()
	inv := &models.StockInvestment{
		UserId:        p.UserId,
		Ticker:        ticker,
		Amount:        amountFor(p.Shares, p.Price),
		PurchasePrice: p.Price,
		Shares:        p.Shares,
		Status:        models.StatusConfirmed,
		CreatedAt:     now,
		ConfirmedAt:   &now,
		ConfirmedBy:   p.AdminId,
	}
	if err := checkPosition(inv); err != nil {
		return nil, err
	}
	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		user, err := registered(ctx, tx, p.UserId)
		if err != nil {
			return err
		}
		if err := tx.InsertStockInvestment(ctx, inv); err != nil {
			return err
		}
		user.TotalInvested = user.TotalInvested.Add(inv.Amount)
		if err := tx.UpdateUserAccount(ctx, user); err != nil {
			return err
		}
		return tx.InsertAuditEntry(ctx, &models.AuditEntry{
			AdminId:      p.AdminId,
			TargetUserId: p.UserId,
			Action:       models.AuditAddStock,
			Amount:       decimal.NewNullDecimal(inv.Amount),
			CreatedAt:    now,
			Note:         fmt.Sprintf("stock #%d %s shares of %s at %s", inv.Id, inv.Shares, ticker, inv.PurchasePrice),
		})
	})
	if err != nil {
		return nil, apperr.FromStore(err)
	}

	zap.L().Info("Stock position added by operator",
		zap.Int64("stock_id", inv.Id),
		zap.String("user_id", p.UserId),
		zap.String("admin_id", p.AdminId),
		zap.String("amount", inv.Amount.String()))
	return inv, nil
}

func getStock(ctx context.Context, tx store.Tx, id int64) (*models.StockInvestment, error) {
	inv, err := tx.GetStockInvestment(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.Newf(apperr.ErrNotFound, "Stock investment #%d was not found", id)
	}
	return inv, err
}

func pendingStock(ctx context.Context, tx store.Tx, id int64) (*models.StockInvestment, error) {
	inv, err := getStock(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if inv.Status != models.StatusPending {
		return nil, apperr.Newf(apperr.ErrNotFound, "Stock investment #%d is already %s", id, inv.Status)
	}
	return inv, nil
}

// Confirm settles a pending purchase and adds its amount to the owner's
// invested total.
func (s *Service) Confirm(ctx context.Context, id int64, adminId string) (*models.StockInvestment, *models.User, error) {
	return s.EditAndConfirm(ctx, id, adminId, decimal.NullDecimal{})
}

// EditAndConfirm is Confirm with the amount first replaced by amount, when
// given and different. Shares follow the new amount at the purchase price.
func (s *Service) EditAndConfirm(ctx context.Context, id int64, adminId string, amount decimal.NullDecimal) (*models.StockInvestment, *models.User, error) {
	var (
		inv  *models.StockInvestment
		user *models.User
	)
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		if inv, err = pendingStock(ctx, tx, id); err != nil {
			return err
		}
		if amount.Valid && !amount.Decimal.Equal(inv.Amount) {
			if err := s.editTx(ctx, tx, inv, FieldAmount, amount.Decimal, adminId); err != nil {
				return err
			}
		}
		now := s.Now().UTC()
		inv.Status = models.StatusConfirmed
		inv.ConfirmedAt = &now
		inv.ConfirmedBy = adminId
		if err := tx.UpdateStockInvestment(ctx, inv, models.StatusPending); err != nil {
			return err
		}

		if user, err = tx.GetUser(ctx, inv.UserId); err != nil {
			return err
		}
		user.TotalInvested = user.TotalInvested.Add(inv.Amount)
		if err := tx.UpdateUserAccount(ctx, user); err != nil {
			return err
		}
		return tx.InsertAuditEntry(ctx, &models.AuditEntry{
			AdminId:      adminId,
			TargetUserId: inv.UserId,
			Action:       models.AuditConfirmStock,
			Amount:       decimal.NewNullDecimal(inv.Amount),
			CreatedAt:    now,
			Note:         fmt.Sprintf("stock #%d %s", inv.Id, inv.Ticker),
		})
	})
	if err != nil {
		return nil, nil, apperr.FromStore(err)
	}

	zap.L().Info("Stock purchase confirmed",
		zap.Int64("stock_id", id),
		zap.String("user_id", inv.UserId),
		zap.String("admin_id", adminId))
	return inv, user, nil
}

// Reject closes a pending purchase.
func (s *Service) Reject(ctx context.Context, id int64, adminId string) (*models.StockInvestment, error) {
	var inv *models.StockInvestment
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		if inv, err = pendingStock(ctx, tx, id); err != nil {
			return err
		}
		now := s.Now().UTC()
		inv.Status = models.StatusRejected
		inv.ConfirmedAt = &now
		inv.ConfirmedBy = adminId
		if err := tx.UpdateStockInvestment(ctx, inv, models.StatusPending); err != nil {
			return err
		}
		return tx.InsertAuditEntry(ctx, &models.AuditEntry{
			AdminId:      adminId,
			TargetUserId: inv.UserId,
			Action:       models.AuditRejectStock,
			Amount:       decimal.NewNullDecimal(inv.Amount),
			CreatedAt:    now,
			Note:         fmt.Sprintf("stock #%d %s", inv.Id, inv.Ticker),
		})
	})
	if err != nil {
		return nil, apperr.FromStore(err)
	}

	zap.L().Info("Stock purchase rejected", zap.Int64("stock_id", id), zap.String("admin_id", adminId))
	return inv, nil
}

// reservedShares sums the shares held by open sales of stockId.
func reservedShares(ctx context.Context, tx store.Tx, stockId int64) (decimal.Decimal, []models.StockSale, error) {
	open, err := tx.ListOpenSalesForStock(ctx, stockId)
	if err != nil {
		return decimal.Zero, nil, err
	}
	total := decimal.Zero
	for _, sale := range open {
		total = total.Add(sale.Shares)
	}
	return total, open, nil
}

type EditParams struct {
	Id      int64
	AdminId string
	Field   string
	Value   string
}

// Edit changes amount, price or shares of a position and recomputes the
// dependent value so that shares = amount / price holds. On a confirmed row
// the owner's invested total follows the amount.
func (s *Service) Edit(ctx context.Context, p EditParams) (*models.StockInvestment, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(p.Value))
	if err != nil || !value.IsPositive() {
		return nil, apperr.Newf(apperr.ErrInvalidInput, "%s must be a positive number", p.Field)
	}
	field := strings.ToLower(p.Field)
	if field != FieldAmount && field != FieldPrice && field != FieldShares {
		return nil, apperr.Newf(apperr.ErrInvalidInput, "Field %q cannot be edited", p.Field)
	}

	var inv *models.StockInvestment
	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		if inv, err = getStock(ctx, tx, p.Id); err != nil {
			return err
		}
		return s.editTx(ctx, tx, inv, field, value, p.AdminId)
	})
	if err != nil {
		return nil, apperr.FromStore(err)
	}

	zap.L().Info("Stock investment edited",
		zap.Int64("stock_id", p.Id),
		zap.String("field", field),
		zap.String("value", value.String()),
		zap.String("admin_id", p.AdminId))
	return inv, nil
}

func (s *Service) editTx(ctx context.Context, tx store.Tx, inv *models.StockInvestment, field string, value decimal.Decimal, adminId string) error {
	if inv.Status == models.StatusRejected {
		return apperr.Newf(apperr.ErrInvalidInput, "Stock investment #%d is rejected", inv.Id)
	}

	previous := *inv
	switch field {
	case FieldAmount:
		inv.Amount = value.Round(cents)
		inv.Shares = sharesFor(inv.Amount, inv.PurchasePrice)
	case FieldPrice:
		inv.PurchasePrice = value
		inv.Shares = sharesFor(inv.Amount, inv.PurchasePrice)
	case FieldShares:
		inv.Shares = value
		inv.Amount = amountFor(inv.Shares, inv.PurchasePrice)
	}
	if err := checkPosition(inv); err != nil {
		return err
	}

	reserved, _, err := reservedShares(ctx, tx, inv.Id)
	if err != nil {
		return err
	}
	if inv.Shares.LessThan(reserved) {
		return apperr.Newf(apperr.ErrInvalidInput, "Open sales hold %s shares of stock #%d", reserved, inv.Id)
	}
	note := fmt.Sprintf("stock #%d %s %s -> %s", inv.Id, field, editedValue(&previous, field), editedValue(inv, field))
	return s.applyChange(ctx, tx, &previous, inv, adminId, models.AuditEditStock, note)
}

func editedValue(inv *models.StockInvestment, field string) string {
	switch field {
	case FieldAmount:
		return inv.Amount.String()
	case FieldPrice:
		return inv.PurchasePrice.String()
	}
	return inv.Shares.String()
}

// applyChange writes inv, moves the owner's invested total by the amount
// difference when the row is confirmed, and appends the audit entry.
func (s *Service) applyChange(ctx context.Context, tx store.Tx, previous, inv *models.StockInvestment, adminId, action, note string) error {
	if err := tx.UpdateStockInvestment(ctx, inv, previous.Status); err != nil {
		return err
	}
	if delta := inv.Amount.Sub(previous.Amount); inv.Status == models.StatusConfirmed && !delta.IsZero() {
		user, err := tx.GetUser(ctx, inv.UserId)
		if err != nil {
			return err
		}
		user.TotalInvested = user.TotalInvested.Add(delta)
		if user.TotalInvested.IsNegative() {
			return apperr.WithMessage(apperr.ErrInvalidInput, "Invested total cannot become negative")
		}
		if err := tx.UpdateUserAccount(ctx, user); err != nil {
			return err
		}
	}
	return tx.InsertAuditEntry(ctx, &models.AuditEntry{
		AdminId:      adminId,
		TargetUserId: inv.UserId,
		Action:       action,
		Amount:       decimal.NewNullDecimal(inv.Amount),
		CreatedAt:    s.Now().UTC(),
		Note:         note,
	})
}

// Recalculate recomputes shares from amount and price.
func (s *Service) Recalculate(ctx context.Context, id int64, adminId string) (*models.StockInvestment, error) {
	var inv *models.StockInvestment
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		if inv, err = getStock(ctx, tx, id); err != nil {
			return err
		}
		if !inv.PurchasePrice.IsPositive() {
			return apperr.Newf(apperr.ErrInvalidInput, "Stock investment #%d has no purchase price", id)
		}
		previous := *inv
		inv.Shares = sharesFor(inv.Amount, inv.PurchasePrice)
		note := fmt.Sprintf("stock #%d shares %s -> %s", inv.Id, previous.Shares, inv.Shares)
		return s.applyChange(ctx, tx, &previous, inv, adminId, models.AuditRecalculateStock, note)
	})
	if err != nil {
		return nil, apperr.FromStore(err)
	}

	zap.L().Info("Stock investment recalculated", zap.Int64("stock_id", id), zap.String("shares", inv.Shares.String()))
	return inv, nil
}

// Delete removes a position. A confirmed row gives its amount back out of the
// owner's invested total and its open sales are rejected.
func (s *Service) Delete(ctx context.Context, id int64, adminId string) (*models.StockInvestment, error) {
	var inv *models.StockInvestment
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		if inv, err = getStock(ctx, tx, id); err != nil {
			return err
		}
		now := s.Now().UTC()

		_, open, err := reservedShares(ctx, tx, id)
		if err != nil {
			return err
		}
		for i := range open {
			sale := &open[i]
			expected := sale.Status
			sale.Status = models.SaleRejected
			sale.ProcessedBy = adminId
			sale.ProcessedAt = &now
			if err := tx.UpdateStockSale(ctx, sale, expected); err != nil {
				return err
			}
		}

		if inv.Status == models.StatusConfirmed {
			user, err := tx.GetUser(ctx, inv.UserId)
			if err != nil {
				return err
			}
			user.TotalInvested = decimal.Max(decimal.Zero, user.TotalInvested.Sub(inv.Amount))
			if err := tx.UpdateUserAccount(ctx, user); err != nil {
				return err
			}
		}
		if err := tx.DeleteStockInvestment(ctx, id); err != nil {
			return err
		}
		return tx.InsertAuditEntry(ctx, &models.AuditEntry{
			AdminId:      adminId,
			TargetUserId: inv.UserId,
			Action:       models.AuditDeleteStock,
			Amount:       decimal.NewNullDecimal(inv.Amount),
			CreatedAt:    now,
			Note:         fmt.Sprintf("stock #%d %s (%s), %d open sales rejected", inv.Id, inv.Ticker, inv.Status, len(open)),
		})
	})
	if err != nil {
		return nil, apperr.FromStore(err)
	}

	zap.L().Info("Stock investment deleted", zap.Int64("stock_id", id), zap.String("admin_id", adminId))
	return inv, nil
}

// List returns positions filtered by user and status; empty values match all.
func (s *Service) List(ctx context.Context, userId string, status models.Status) ([]models.StockInvestment, error) {
	var out []models.StockInvestment
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		out, err = tx.ListStockInvestments(ctx, userId, status)
		return err
	})
	if err != nil {
		return nil, apperr.FromStore(err)
	}
	return out, nil
}

// OldestPendingPurchase returns the user's oldest pending purchase.
func (s *Service) OldestPendingPurchase(ctx context.Context, userId string) (*models.StockInvestment, error) {
	pending, err := s.List(ctx, userId, models.StatusPending)
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		return nil, apperr.Newf(apperr.ErrNotFound, "No pending stock purchase for user %s", userId)
	}
	return &pending[0], nil
}
