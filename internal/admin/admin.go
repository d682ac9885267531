// Package admin holds operator actions that change a user's account
// directly. Every change is written to the audit log in the same transaction.
package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"invest-bot-go/internal/apperr"
	"invest-bot-go/internal/models"
	"invest-bot-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Balance modes
const (
	ModeAdd      = "add"
	ModeSubtract = "subtract"
	ModeSet      = "set"
	ModeReset    = "reset"
)

// ParseMode accepts a balance mode case-insensitively.
func ParseMode(s string) (string, error) {
	switch m := strings.ToLower(strings.TrimSpace(s)); m {
	case ModeAdd, ModeSubtract, ModeSet, ModeReset:
		return m, nil
	}
	return "", fmt.Errorf("unknown balance mode %q", s)
}

type Service struct {
	store store.Store
	Now   func() time.Time
}

func NewService(st store.Store) *Service {
	return &Service{store: st, Now: time.Now}
}

type ApplyParams struct {
	AdminId string
	UserId  string
	Mode    string
	Amount  decimal.Decimal
	Note    string
}

// BalanceChange is the committed outcome of Apply.
type BalanceChange struct {
	User   *models.User
	Mode   string
	Amount decimal.Decimal
	Old    decimal.Decimal
	New    decimal.Decimal
}

// NextBalance computes the balance after applying mode with amount to old.
// Subtract floors at zero.
func NextBalance(mode string, old, amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.IsNegative() {
		return decimal.Zero, fmt.Errorf("amount must not be negative")
	}
	switch mode {
	case ModeAdd:
		return old.Add(amount), nil
	case ModeSubtract:
		return decimal.Max(decimal.Zero, old.Sub(amount)), nil
	case ModeSet:
		return amount, nil
	case ModeReset:
		return decimal.Zero, nil
	}
	return decimal.Zero, fmt.Errorf("unknown balance mode %q", mode)
}

func getUser(ctx context.Context, tx store.Tx, userId string) (*models.User, error) {
	user, err := tx.GetUser(ctx, userId)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.Newf(apperr.ErrNotFound, "User %s is not registered", userId)
	}
	return user, err
}

// Apply changes the user's current balance.
func (s *Service) Apply(ctx context.Context, p ApplyParams) (*BalanceChange, error) {
	mode, err := ParseMode(p.Mode)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrInvalidInput, err)
	}
	amount := p.Amount.Round(2)
	if mode == ModeReset {
		amount = decimal.Zero
	}
	if amount.IsNegative() {
		return nil, apperr.WithMessage(apperr.ErrInvalidInput, "Amount must not be negative")
	}

	var change *BalanceChange
	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		user, err := getUser(ctx, tx, p.UserId)
		if err != nil {
			return err
		}
		old := user.CurrentBalance
		next, err := NextBalance(mode, old, amount)
		if err != nil {
			return apperr.Wrap(apperr.ErrInvalidInput, err)
		}
		user.CurrentBalance = next
		if err := tx.UpdateUserAccount(ctx, user); err != nil {
			return err
		}

		note := mode
		if n := strings.TrimSpace(p.Note); n != "" {
			note += ": " + n
		}
		err = tx.InsertAuditEntry(ctx, &models.AuditEntry{
			AdminId:      p.AdminId,
			TargetUserId: user.Id,
			Action:       models.BalanceAction(mode),
			Amount:       decimal.NewNullDecimal(amount),
			OldBalance:   decimal.NewNullDecimal(old),
			NewBalance:   decimal.NewNullDecimal(next),
			CreatedAt:    s.Now().UTC(),
			Note:         note,
		})
		if err != nil {
			return err
		}
		change = &BalanceChange{User: user, Mode: mode, Amount: amount, Old: old, New: next}
		return nil
	})
	if err != nil {
		return nil, apperr.FromStore(err)
	}

	zap.L().Info("Balance changed by operator",
		zap.String("user_id", p.UserId),
		zap.String("admin_id", p.AdminId),
		zap.String("mode", mode),
		zap.String("old_balance", change.Old.String()),
		zap.String("new_balance", change.New.String()))
	return change, nil
}

// OverrideProfit sets the user's profit_earned. The balance is untouched.
func (s *Service) OverrideProfit(ctx context.Context, adminId, userId string, value decimal.Decimal) (*models.User, error) {
	if value.IsNegative() {
		return nil, apperr.WithMessage(apperr.ErrInvalidInput, "Profit must not be negative")
	}
	value = value.Round(2)

	var user *models.User
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		if user, err = getUser(ctx, tx, userId); err != nil {
			return err
		}
		previous := user.ProfitEarned
		user.ProfitEarned = value
		if err := tx.UpdateUserAccount(ctx, user); err != nil {
			return err
		}
		return tx.InsertAuditEntry(ctx, &models.AuditEntry{
			AdminId:      adminId,
			TargetUserId: userId,
			Action:       models.AuditProfitOverride,
			Amount:       decimal.NewNullDecimal(value),
			CreatedAt:    s.Now().UTC(),
			Note:         fmt.Sprintf("profit_earned %s -> %s", previous, value),
		})
	})
	if err != nil {
		return nil, apperr.FromStore(err)
	}

	zap.L().Info("Profit overridden", zap.String("user_id", userId), zap.String("profit", value.String()))
	return user, nil
}

// DeleteUser removes the user and every row they own. The audit entry is
// kept; its target is cleared and the note names the deleted user.
func (s *Service) DeleteUser(ctx context.Context, adminId, userId string) (*models.User, error) {
	var user *models.User
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		if user, err = getUser(ctx, tx, userId); err != nil {
			return err
		}
		err = tx.InsertAuditEntry(ctx, &models.AuditEntry{
			AdminId:      adminId,
			TargetUserId: userId,
			Action:       models.AuditDeleteUser,
			Amount:       decimal.NewNullDecimal(user.CurrentBalance),
			OldBalance:   decimal.NewNullDecimal(user.CurrentBalance),
			CreatedAt:    s.Now().UTC(),
			Note:         fmt.Sprintf("deleted user %s (%s)", userId, user.Handle),
		})
		if err != nil {
			return err
		}
		return tx.DeleteUser(ctx, userId)
	})
	if err != nil {
		return nil, apperr.FromStore(err)
	}

	zap.L().Info("User deleted", zap.String("user_id", userId), zap.String("admin_id", adminId))
	return user, nil
}

// AuditLog lists entries newest first. An empty target lists all entries;
// limit <= 0 means no limit.
func (s *Service) AuditLog(ctx context.Context, targetUserId string, limit int) ([]models.AuditEntry, error) {
	var entries []models.AuditEntry
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		entries, err = tx.ListAuditEntries(ctx, targetUserId, limit)
		return err
	})
	if err != nil {
		return nil, apperr.FromStore(err)
	}
	return entries, nil
}
