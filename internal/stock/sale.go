package stock

import (
	"context"
	"errors"
	"fmt"

	"invest-bot-go/internal/apperr"
	"invest-bot-go/internal/models"
	"invest-bot-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SellResult is a sale just opened. Fallback is set when the oracle failed
// and the purchase price was used instead.
type SellResult struct {
	Sale     *models.StockSale
	Fallback bool
}

// sellable checks that userId may sell shares of stockId and returns the
// position.
func sellable(ctx context.Context, tx store.Tx, userId string, stockId int64, shares decimal.Decimal) (*models.StockInvestment, error) {
	inv, err := getStock(ctx, tx, stockId)
	if err != nil {
		return nil, err
	}
	if inv.UserId != userId {
		return nil, apperr.Newf(apperr.ErrNotFound, "Stock investment #%d was not found", stockId)
	}
	if inv.Status != models.StatusConfirmed {
		return nil, apperr.Newf(apperr.ErrInvalidInput, "Stock investment #%d is %s, only confirmed positions can be sold", stockId, inv.Status)
	}
	reserved, _, err := reservedShares(ctx, tx, stockId)
	if err != nil {
		return nil, err
	}
	if available := inv.Shares.Sub(reserved); shares.GreaterThan(available) {
		return nil, apperr.Newf(apperr.ErrInvalidInput, "You can sell at most %s shares of %s", available, inv.Ticker)
	}
	return inv, nil
}

// Sell opens a sale of shares of the user's position at the live price. The
// sale waits for the user's payout wallet before an operator can confirm it.
func (s *Service) Sell(ctx context.Context, userId string, stockId int64, shares decimal.Decimal) (*SellResult, error) {
	if !shares.IsPositive() {
		return nil, apperr.WithMessage(apperr.ErrInvalidInput, "Shares to sell must be greater than zero")
	}

	var inv *models.StockInvestment
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		if _, err = registered(ctx, tx, userId); err != nil {
			return err
		}
		inv, err = sellable(ctx, tx, userId, stockId, shares)
		return err
	})
	if err != nil {
		return nil, apperr.FromStore(err)
	}

	result := &SellResult{}
	price, quoteErr := s.livePrice(ctx, inv.Ticker)
	if quoteErr != nil {
		zap.L().Warn("Quote unavailable for sale, using purchase price",
			zap.String("ticker", inv.Ticker),
			zap.Int64("stock_id", stockId),
			zap.Error(quoteErr))
		price = inv.PurchasePrice
		result.Fallback = true
	}

	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		current, err := sellable(ctx, tx, userId, stockId, shares)
		if err != nil {
			return err
		}
		if result.Fallback {
			price = current.PurchasePrice
		}
		sale := &models.StockSale{
			UserId:            userId,
			StockInvestmentId: stockId,
			Ticker:            current.Ticker,
			Shares:            shares,
			Price:             price,
			TotalValue:        amountFor(shares, price),
			Status:            models.SaleAwaitingWallet,
			CreatedAt:         s.Now().UTC(),
		}
		if !sale.TotalValue.IsPositive() {
			return apperr.WithMessage(apperr.ErrInvalidInput, "Sale value must be at least $0.01")
		}
		if err := tx.InsertStockSale(ctx, sale); err != nil {
			return err
		}
		result.Sale = sale

		if !result.Fallback {
			return nil
		}
		return tx.InsertAuditEntry(ctx, &models.AuditEntry{
			AdminId:      models.SystemActor,
			TargetUserId: userId,
			Action:       models.AuditQuoteFallback,
			Amount:       decimal.NewNullDecimal(sale.TotalValue),
			CreatedAt:    sale.CreatedAt,
			Note:         fmt.Sprintf("sale #%d of %s priced at purchase price %s: %v", sale.Id, sale.Ticker, price, quoteErr),
		})
	})
	if err != nil {
		return nil, apperr.FromStore(err)
	}

	zap.L().Info("Stock sale opened",
		zap.Int64("sale_id", result.Sale.Id),
		zap.Int64("stock_id", stockId),
		zap.String("user_id", userId),
		zap.String("shares", shares.String()),
		zap.String("price", price.String()),
		zap.Bool("fallback", result.Fallback))
	return result, nil
}

func getSale(ctx context.Context, tx store.Tx, id int64) (*models.StockSale, error) {
	sale, err := tx.GetStockSale(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.Newf(apperr.ErrNotFound, "Stock sale #%d was not found", id)
	}
	return sale, err
}

// AttachWallet records the payout wallet of a sale and hands it to operators.
func (s *Service) AttachWallet(ctx context.Context, saleId int64, userId, address string) (*models.StockSale, error) {
	address, err := s.profile.Validate(address)
	if err != nil {
		return nil, apperr.Newf(apperr.ErrInvalidInput, "Invalid wallet address, expected %s", s.profile.Describe())
	}

	var sale *models.StockSale
	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		if sale, err = getSale(ctx, tx, saleId); err != nil {
			return err
		}
		if sale.UserId != userId || sale.Status != models.SaleAwaitingWallet {
			return apperr.Newf(apperr.ErrNotFound, "No sale #%d is waiting for a wallet", saleId)
		}
		sale.WalletAddress = address
		sale.Status = models.SalePending
		return tx.UpdateStockSale(ctx, sale, models.SaleAwaitingWallet)
	})
	if err != nil {
		return nil, apperr.FromStore(err)
	}

	zap.L().Info("Wallet attached to stock sale", zap.Int64("sale_id", saleId), zap.String("user_id", userId))
	return sale, nil
}

// SaleResult is the committed outcome of a sale confirmation. Investment is
// nil when the position was sold out and removed.
type SaleResult struct {
	Sale       *models.StockSale
	Investment *models.StockInvestment
	User       *models.User
}

// ConfirmSale settles a pending sale: the position shrinks by the sold shares
// and the owner's balance is credited with the sale value in one transaction.
func (s *Service) ConfirmSale(ctx context.Context, saleId int64, adminId string) (*SaleResult, error) {
	var result *SaleResult
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		sale, err := getSale(ctx, tx, saleId)
		if err != nil {
			return err
		}
		if sale.Status != models.SalePending {
			return apperr.Newf(apperr.ErrNotFound, "Stock sale #%d is %s, not pending", saleId, sale.Status)
		}
		if sale.StockInvestmentId == 0 {
			return apperr.Newf(apperr.ErrNotFound, "The position of sale #%d no longer exists", saleId)
		}
		inv, err := getStock(ctx, tx, sale.StockInvestmentId)
		if err != nil {
			return err
		}
		if sale.Shares.GreaterThan(inv.Shares) {
			return apperr.Newf(apperr.ErrConflict, "Position #%d holds only %s shares", inv.Id, inv.Shares)
		}

		user, err := tx.GetUser(ctx, sale.UserId)
		if err != nil {
			return err
		}
		now := s.Now().UTC()
		oldBalance := user.CurrentBalance

		previousAmount := inv.Amount
		inv.Shares = inv.Shares.Sub(sale.Shares)
		inv.Amount = amountFor(inv.Shares, inv.PurchasePrice)
		user.TotalInvested = decimal.Max(decimal.Zero, user.TotalInvested.Sub(previousAmount.Sub(inv.Amount)))
		user.CurrentBalance = user.CurrentBalance.Add(sale.TotalValue)

		sale.Status = models.SaleConfirmed
		sale.ProcessedBy = adminId
		sale.ProcessedAt = &now
		if err := tx.UpdateStockSale(ctx, sale, models.SalePending); err != nil {
			return err
		}

		soldOut := !inv.Shares.IsPositive()
		if soldOut {
			if err := tx.DeleteStockInvestment(ctx, inv.Id); err != nil {
				return err
			}
			sale.StockInvestmentId = 0
		} else if err := tx.UpdateStockInvestment(ctx, inv, models.StatusConfirmed); err != nil {
			return err
		}
		if err := tx.UpdateUserAccount(ctx, user); err != nil {
			return err
		}

		err = tx.InsertAuditEntry(ctx, &models.AuditEntry{
			AdminId:      adminId,
			TargetUserId: user.Id,
			Action:       models.AuditConfirmStockSale,
			Amount:       decimal.NewNullDecimal(sale.TotalValue),
			OldBalance:   decimal.NewNullDecimal(oldBalance),
			NewBalance:   decimal.NewNullDecimal(user.CurrentBalance),
			CreatedAt:    now,
			Note:         fmt.Sprintf("sale #%d %s shares of %s at %s", sale.Id, sale.Shares, sale.Ticker, sale.Price),
		})
		if err != nil {
			return err
		}

		result = &SaleResult{Sale: sale, Investment: inv, User: user}
		if soldOut {
			result.Investment = nil
		}
		return nil
	})
	if err != nil {
		return nil, apperr.FromStore(err)
	}

	zap.L().Info("Stock sale confirmed",
		zap.Int64("sale_id", saleId),
		zap.String("user_id", result.User.Id),
		zap.String("credited", result.Sale.TotalValue.String()),
		zap.Bool("sold_out", result.Investment == nil))
	return result, nil
}

// RejectSale closes an open sale. Shares and balance are untouched.
func (s *Service) RejectSale(ctx context.Context, saleId int64, adminId string) (*models.StockSale, error) {
	var sale *models.StockSale
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		if sale, err = getSale(ctx, tx, saleId); err != nil {
			return err
		}
		if !sale.Status.Open() {
			return apperr.Newf(apperr.ErrNotFound, "Stock sale #%d is already %s", saleId, sale.Status)
		}
		expected := sale.Status
		now := s.Now().UTC()
		sale.Status = models.SaleRejected
		sale.ProcessedBy = adminId
		sale.ProcessedAt = &now
		if err := tx.UpdateStockSale(ctx, sale, expected); err != nil {
			return err
		}
		return tx.InsertAuditEntry(ctx, &models.AuditEntry{
			AdminId:      adminId,
			TargetUserId: sale.UserId,
			Action:       models.AuditRejectStockSale,
			Amount:       decimal.NewNullDecimal(sale.TotalValue),
			CreatedAt:    now,
			Note:         fmt.Sprintf("sale #%d of %s", sale.Id, sale.Ticker),
		})
	})
	if err != nil {
		return nil, apperr.FromStore(err)
	}

	zap.L().Info("Stock sale rejected", zap.Int64("sale_id", saleId), zap.String("admin_id", adminId))
	return sale, nil
}

// ListSales returns sales filtered by user and status; empty values match all.
func (s *Service) ListSales(ctx context.Context, userId string, status models.SaleStatus) ([]models.StockSale, error) {
	var out []models.StockSale
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		out, err = tx.ListStockSales(ctx, userId, status)
		return err
	})
	if err != nil {
		return nil, apperr.FromStore(err)
	}
	return out, nil
}

// PendingSaleAwaitingWallet returns the user's latest sale still waiting for
// a wallet, so an interrupted conversation can resume.
func (s *Service) PendingSaleAwaitingWallet(ctx context.Context, userId string) (*models.StockSale, error) {
	sales, err := s.ListSales(ctx, userId, models.SaleAwaitingWallet)
	if err != nil {
		return nil, err
	}
	if len(sales) == 0 {
		return nil, apperr.WithMessage(apperr.ErrNotFound, "No sale is waiting for a wallet")
	}
	return &sales[len(sales)-1], nil
}

// OldestPendingSale returns the user's oldest sale awaiting confirmation.
func (s *Service) OldestPendingSale(ctx context.Context, userId string) (*models.StockSale, error) {
	sales, err := s.ListSales(ctx, userId, models.SalePending)
	if err != nil {
		return nil, err
	}
	if len(sales) == 0 {
		return nil, apperr.Newf(apperr.ErrNotFound, "No pending stock sale for user %s", userId)
	}
	return &sales[0], nil
}
