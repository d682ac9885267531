// Package withdrawal handles cash-out requests against a user's balance.
// Requests reserve nothing; the balance is debited only when an operator
// confirms.
package withdrawal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"invest-bot-go/internal/apperr"
	"invest-bot-go/internal/models"
	"invest-bot-go/internal/store"
	"invest-bot-go/internal/wallet"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Service struct {
	store     store.Store
	minAmount decimal.Decimal
	profile   wallet.Profile
	Now       func() time.Time
}

func NewService(st store.Store, minAmount decimal.Decimal, profile wallet.Profile) *Service {
	return &Service{store: st, minAmount: minAmount, profile: profile, Now: time.Now}
}

func (s *Service) MinAmount() decimal.Decimal { return s.minAmount }

func (s *Service) Profile() wallet.Profile { return s.profile }

// CheckAmount validates amount against the minimum and userId's balance
// without persisting anything.
func (s *Service) CheckAmount(ctx context.Context, userId string, amount decimal.Decimal) error {
	if amount.LessThan(s.minAmount) {
		return apperr.Newf(apperr.ErrInvalidInput, "The minimum withdrawal is $%s", s.minAmount.StringFixed(2))
	}
	err := s.store.View(ctx, func(tx store.Tx) error {
		_, err := availableFor(ctx, tx, userId, amount)
		return err
	})
	return apperr.FromStore(err)
}

func availableFor(ctx context.Context, tx store.Tx, userId string, amount decimal.Decimal) (*models.User, error) {
	user, err := tx.GetUser(ctx, userId)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.Wrap(apperr.ErrNotRegistered, err)
	}
	if err != nil {
		return nil, err
	}
	if amount.GreaterThan(user.CurrentBalance) {
		return nil, apperr.Newf(apperr.ErrInsufficientBalance, "Insufficient balance, you can withdraw up to $%s", user.CurrentBalance.StringFixed(2))
	}
	return user, nil
}

// Submit records a pending withdrawal of amount to address.
func (s *Service) Submit(ctx context.Context, userId string, amount decimal.Decimal, address string) (*models.Withdrawal, error) {
	amount = amount.Round(2)
	if !amount.IsPositive() || amount.LessThan(s.minAmount) {
		return nil, apperr.Newf(apperr.ErrInvalidInput, "The minimum withdrawal is $%s", s.minAmount.StringFixed(2))
	}
	address, err := s.profile.Validate(address)
	if err != nil {
		return nil, apperr.Newf(apperr.ErrInvalidInput, "Invalid wallet address, expected %s", s.profile.Describe())
	}

	w := &models.Withdrawal{
		UserId:        userId,
		Amount:        amount,
		WalletAddress: address,
		CreatedAt:     s.Now().UTC(),
		Status:        models.StatusPending,
	}
	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		if _, err := availableFor(ctx, tx, userId, amount); err != nil {
			return err
		}
		return tx.InsertWithdrawal(ctx, w)
	})
	if err != nil {
		return nil, apperr.FromStore(err)
	}

	zap.L().Info("Withdrawal submitted",
		zap.Int64("withdrawal_id", w.Id),
		zap.String("user_id", userId),
		zap.String("amount", amount.String()))
	return w, nil
}

func pendingWithdrawal(ctx context.Context, tx store.Tx, id int64) (*models.Withdrawal, error) {
	w, err := tx.GetWithdrawal(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.Newf(apperr.ErrNotFound, "Withdrawal #%d was not found", id)
	}
	if err != nil {
		return nil, err
	}
	if w.Status != models.StatusPending {
		return nil, apperr.Newf(apperr.ErrNotFound, "Withdrawal #%d is already %s", id, w.Status)
	}
	return w, nil
}

// Confirm debits the owner's balance. If the balance no longer covers the
// amount nothing changes and the row stays pending.
func (s *Service) Confirm(ctx context.Context, id int64, adminId string) (*models.Withdrawal, *models.User, error) {
	var (
		w    *models.Withdrawal
		user *models.User
	)
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		if w, err = pendingWithdrawal(ctx, tx, id); err != nil {
			return err
		}
		if user, err = tx.GetUser(ctx, w.UserId); err != nil {
			return err
		}
		oldBalance := user.CurrentBalance
		if w.Amount.GreaterThan(oldBalance) {
			return apperr.Newf(apperr.ErrInsufficientBalance, "Balance $%s does not cover withdrawal #%d of $%s",
				oldBalance.StringFixed(2), id, w.Amount.StringFixed(2))
		}

		now := s.Now().UTC()
		w.Status = models.StatusConfirmed
		w.ProcessedBy = adminId
		w.ProcessedAt = &now
		if err := tx.UpdateWithdrawal(ctx, w, models.StatusPending); err != nil {
			return err
		}
		user.CurrentBalance = user.CurrentBalance.Sub(w.Amount)
		if err := tx.UpdateUserAccount(ctx, user); err != nil {
			return err
		}
		return tx.InsertAuditEntry(ctx, &models.AuditEntry{
			AdminId:      adminId,
			TargetUserId: user.Id,
			Action:       models.AuditConfirmWithdrawal,
			Amount:       decimal.NewNullDecimal(w.Amount),
			OldBalance:   decimal.NewNullDecimal(oldBalance),
			NewBalance:   decimal.NewNullDecimal(user.CurrentBalance),
			CreatedAt:    now,
			Note:         fmt.Sprintf("withdrawal #%d to %s", w.Id, w.WalletAddress),
		})
	})
	if err != nil {
		return nil, nil, apperr.FromStore(err)
	}

	zap.L().Info("Withdrawal confirmed",
		zap.Int64("withdrawal_id", id),
		zap.String("user_id", user.Id),
		zap.String("admin_id", adminId),
		zap.String("new_balance", user.CurrentBalance.String()))
	return w, user, nil
}

// Reject closes a pending withdrawal. The balance was never reserved.
func (s *Service) Reject(ctx context.Context, id int64, adminId string) (*models.Withdrawal, error) {
	var w *models.Withdrawal
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		if w, err = pendingWithdrawal(ctx, tx, id); err != nil {
			return err
		}
		now := s.Now().UTC()
		w.Status = models.StatusRejected
		w.ProcessedBy = adminId
		w.ProcessedAt = &now
		if err := tx.UpdateWithdrawal(ctx, w, models.StatusPending); err != nil {
			return err
		}
		return tx.InsertAuditEntry(ctx, &models.AuditEntry{
			AdminId:      adminId,
			TargetUserId: w.UserId,
			Action:       models.AuditRejectWithdrawal,
			Amount:       decimal.NewNullDecimal(w.Amount),
			CreatedAt:    now,
			Note:         fmt.Sprintf("withdrawal #%d", w.Id),
		})
	})
	if err != nil {
		return nil, apperr.FromStore(err)
	}

	zap.L().Info("Withdrawal rejected", zap.Int64("withdrawal_id", id), zap.String("admin_id", adminId))
	return w, nil
}

// List returns withdrawals filtered by user and status; empty values match all.
func (s *Service) List(ctx context.Context, userId string, status models.Status) ([]models.Withdrawal, error) {
	var out []models.Withdrawal
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		out, err = tx.ListWithdrawals(ctx, userId, status)
		return err
	})
	if err != nil {
		return nil, apperr.FromStore(err)
	}
	return out, nil
}

func (s *Service) OldestPending(ctx context.Context, userId string) (*models.Withdrawal, error) {
	pending, err := s.List(ctx, userId, models.StatusPending)
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		return nil, apperr.Newf(apperr.ErrNotFound, "No pending withdrawal for user %s", userId)
	}
	return &pending[0], nil
}
