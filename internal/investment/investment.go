// Package investment manages crypto deposits declared by users and attested
// by operators.
package investment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"invest-bot-go/internal/apperr"
	"invest-bot-go/internal/models"
	"invest-bot-go/internal/referral"
	"invest-bot-go/internal/store"
	"invest-bot-go/internal/wallet"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Editable fields.
const (
	FieldAmount = "amount"
	FieldStatus = "status"
	FieldPlan   = "plan"
)

type Service struct {
	store     store.Store
	wallets   *wallet.Rotation
	referrals *referral.Service
	Now       func() time.Time
}

func NewService(st store.Store, wallets *wallet.Rotation, referrals *referral.Service) *Service {
	return &Service{store: st, wallets: wallets, referrals: referrals, Now: time.Now}
}

// DepositAddress returns the next receiving address for kind.
func (s *Service) DepositAddress(kind models.CryptoKind) (string, error) {
	addr, err := s.wallets.Next(kind)
	if err != nil {
		return "", apperr.Wrap(apperr.ErrInternal, err)
	}
	return addr, nil
}

type SubmitParams struct {
	UserId        string
	Amount        decimal.Decimal
	Kind          models.CryptoKind
	WalletAddress string // empty picks the next address from the rotation
	TxId          string
	Plan          models.Plan
	Note          string
}

// Submit records a pending investment. Amounts below the plan minimum are
// accepted and flagged for operator review in the note.
func (s *Service) Submit(ctx context.Context, p SubmitParams) (*models.CryptoInvestment, error) {
	p.Amount = p.Amount.Round(2)
	if !p.Amount.IsPositive() {
		return nil, apperr.WithMessage(apperr.ErrInvalidInput, "Amount must be at least $0.01")
	}
	terms, ok := p.Plan.Terms()
	if !ok {
		return nil, apperr.Newf(apperr.ErrInvalidInput, "Unknown plan %q", p.Plan)
	}
	if _, err := models.ParseCryptoKind(string(p.Kind)); err != nil {
		return nil, apperr.Wrap(apperr.ErrInvalidInput, err)
	}

	address := strings.TrimSpace(p.WalletAddress)
	if address == "" {
		var err error
		if address, err = s.DepositAddress(p.Kind); err != nil {
			return nil, err
		}
	} else if !s.wallets.Contains(p.Kind, address) {
		return nil, apperr.WithMessage(apperr.ErrInvalidInput, "That address is not one of our receiving wallets")
	}

	note := strings.TrimSpace(p.Note)
	if !terms.Qualifies(p.Amount) {
		review := fmt.Sprintf("below %s minimum of $%s, operator review required", terms.Name, terms.MinAmount)
		if note == "" {
			note = review
		} else {
			note = note + "; " + review
		}
	}

	inv := &models.CryptoInvestment{
		UserId:        p.UserId,
		Amount:        p.Amount,
		Kind:          p.Kind,
		WalletAddress: address,
		TxId:          strings.TrimSpace(p.TxId),
		CreatedAt:     s.Now().UTC(),
		Status:        models.StatusPending,
		Plan:          p.Plan,
		Note:          note,
	}
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		if _, err := tx.GetUser(ctx, p.UserId); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return apperr.Wrap(apperr.ErrNotRegistered, err)
			}
			return err
		}
		return tx.InsertCryptoInvestment(ctx, inv)
	})
	if err != nil {
		return nil, apperr.FromStore(err)
	}

	zap.L().Info("Investment submitted",
		zap.Int64("investment_id", inv.Id),
		zap.String("user_id", inv.UserId),
		zap.String("amount", inv.Amount.String()),
		zap.String("kind", string(inv.Kind)),
		zap.String("plan", string(inv.Plan)))
	return inv, nil
}

// ConfirmResult is the committed outcome of a confirmation.
type ConfirmResult struct {
	Investment *models.CryptoInvestment
	User       *models.User
	Bonus      *referral.Bonus
}

// Confirm settles a pending investment: the owner's invested amount and
// balance grow by the amount, the owner moves to the row's plan and the
// first-deposit referral bonus is paid if due.
func (s *Service) Confirm(ctx context.Context, id int64, adminId string) (*ConfirmResult, error) {
	return s.EditAndConfirm(ctx, id, adminId, decimal.NullDecimal{})
}

// EditAndConfirm is Confirm with the declared amount first replaced by amount,
// when given and different. The audited edit commits only with the confirmation.
func (s *Service) EditAndConfirm(ctx context.Context, id int64, adminId string, amount decimal.NullDecimal) (*ConfirmResult, error) {
	var result *ConfirmResult
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		inv, err := pendingInvestment(ctx, tx, id)
		if err != nil {
			return err
		}
		if amount.Valid && !amount.Decimal.Equal(inv.Amount) {
			edit := EditParams{Id: id, AdminId: adminId, Field: FieldAmount, Value: amount.Decimal.String()}
			if err := s.editAmount(ctx, tx, inv, edit); err != nil {
				return err
			}
		}
		result, err = s.confirmTx(ctx, tx, inv, adminId)
		return err
	})
	if err != nil {
		return nil, apperr.FromStore(err)
	}

	zap.L().Info("Investment confirmed",
		zap.Int64("investment_id", id),
		zap.String("user_id", result.User.Id),
		zap.String("admin_id", adminId),
		zap.String("new_balance", result.User.CurrentBalance.String()))
	return result, nil
}

func pendingInvestment(ctx context.Context, tx store.Tx, id int64) (*models.CryptoInvestment, error) {
	inv, err := tx.GetCryptoInvestment(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.Newf(apperr.ErrNotFound, "Investment #%d was not found", id)
	}
	if err != nil {
		return nil, err
	}
	if inv.Status != models.StatusPending {
		return nil, apperr.Newf(apperr.ErrNotFound, "Investment #%d is already %s", id, inv.Status)
	}
	return inv, nil
}

func (s *Service) confirmTx(ctx context.Context, tx store.Tx, inv *models.CryptoInvestment, adminId string) (*ConfirmResult, error) {
	now := s.Now().UTC()
	inv.Status = models.StatusConfirmed
	inv.ProcessedBy = adminId
	inv.ProcessedAt = &now
	if err := tx.UpdateCryptoInvestment(ctx, inv, models.StatusPending); err != nil {
		return nil, err
	}

	user, err := tx.GetUser(ctx, inv.UserId)
	if err != nil {
		return nil, err
	}
	oldBalance := user.CurrentBalance
	user.TotalInvested = user.TotalInvested.Add(inv.Amount)
	user.CurrentBalance = user.CurrentBalance.Add(inv.Amount)
	user.Plan = inv.Plan
	user.LastProfitUpdate = now
	if err := tx.UpdateUserAccount(ctx, user); err != nil {
		return nil, err
	}

	bonus, err := s.referrals.MaybePayFirstDepositBonus(ctx, tx, user.Id, inv.Amount, adminId)
	if err != nil {
		return nil, err
	}

	err = tx.InsertAuditEntry(ctx, &models.AuditEntry{
		AdminId:      adminId,
		TargetUserId: user.Id,
		Action:       models.AuditConfirmInvestment,
		Amount:       decimal.NewNullDecimal(inv.Amount),
		OldBalance:   decimal.NewNullDecimal(oldBalance),
		NewBalance:   decimal.NewNullDecimal(user.CurrentBalance),
		CreatedAt:    now,
		Note:         fmt.Sprintf("investment #%d (%s, %s)", inv.Id, inv.Kind, inv.Plan),
	})
	if err != nil {
		return nil, err
	}
	return &ConfirmResult{Investment: inv, User: user, Bonus: bonus}, nil
}

// Reject closes a pending investment without touching any aggregate.
func (s *Service) Reject(ctx context.Context, id int64, adminId, reason string) (*models.CryptoInvestment, error) {
	var inv *models.CryptoInvestment
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		if inv, err = pendingInvestment(ctx, tx, id); err != nil {
			return err
		}
		return s.rejectTx(ctx, tx, inv, adminId, reason)
	})
	if err != nil {
		return nil, apperr.FromStore(err)
	}

	zap.L().Info("Investment rejected", zap.Int64("investment_id", id), zap.String("admin_id", adminId))
	return inv, nil
}

func (s *Service) rejectTx(ctx context.Context, tx store.Tx, inv *models.CryptoInvestment, adminId, reason string) error {
	now := s.Now().UTC()
	inv.Status = models.StatusRejected
	inv.ProcessedBy = adminId
	inv.ProcessedAt = &now
	if reason = strings.TrimSpace(reason); reason != "" {
		if inv.Note != "" {
			inv.Note += "; "
		}
		inv.Note += "rejected: " + reason
	}
	if err := tx.UpdateCryptoInvestment(ctx, inv, models.StatusPending); err != nil {
		return err
	}
	return tx.InsertAuditEntry(ctx, &models.AuditEntry{
		AdminId:      adminId,
		TargetUserId: inv.UserId,
		Action:       models.AuditRejectInvestment,
		Amount:       decimal.NewNullDecimal(inv.Amount),
		CreatedAt:    now,
		Note:         fmt.Sprintf("investment #%d %s", inv.Id, reason),
	})
}

type EditParams struct {
	Id      int64
	AdminId string
	Field   string
	Value   string
}

// Edit changes one field of an investment. Amount edits on a confirmed row
// move the owner's aggregates by the difference. Status edits only leave
// pending, and go through the same path as Confirm and Reject.
func (s *Service) Edit(ctx context.Context, p EditParams) (*models.CryptoInvestment, error) {
	var inv *models.CryptoInvestment
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		inv, err = tx.GetCryptoInvestment(ctx, p.Id)
		if errors.Is(err, store.ErrNotFound) {
			return apperr.Newf(apperr.ErrNotFound, "Investment #%d was not found", p.Id)
		}
		if err != nil {
			return err
		}

		switch strings.ToLower(p.Field) {
		case FieldAmount:
			return s.editAmount(ctx, tx, inv, p)
		case FieldPlan:
			return s.editPlan(ctx, tx, inv, p)
		case FieldStatus:
			return s.editStatus(ctx, tx, inv, p)
		}
		return apperr.Newf(apperr.ErrInvalidInput, "Field %q cannot be edited", p.Field)
	})
	if err != nil {
		return nil, apperr.FromStore(err)
	}

	zap.L().Info("Investment edited",
		zap.Int64("investment_id", p.Id),
		zap.String("field", p.Field),
		zap.String("value", p.Value),
		zap.String("admin_id", p.AdminId))
	return inv, nil
}

func (s *Service) editAmount(ctx context.Context, tx store.Tx, inv *models.CryptoInvestment, p EditParams) error {
	amount, err := decimal.NewFromString(strings.TrimSpace(p.Value))
	if err == nil {
		amount = amount.Round(2)
	}
	if err != nil || !amount.IsPositive() {
		return apperr.WithMessage(apperr.ErrInvalidInput, "Amount must be at least $0.01")
	}
	previous := inv.Amount
	status := inv.Status
	inv.Amount = amount
	if err := tx.UpdateCryptoInvestment(ctx, inv, status); err != nil {
		return err
	}

	entry := &models.AuditEntry{
		AdminId:      p.AdminId,
		TargetUserId: inv.UserId,
		Action:       models.AuditEditInvestment,
		Amount:       decimal.NewNullDecimal(amount),
		CreatedAt:    s.Now().UTC(),
		Note:         fmt.Sprintf("investment #%d amount %s -> %s", inv.Id, previous, amount),
	}

	if status == models.StatusConfirmed {
		delta := amount.Sub(previous)
		user, err := tx.GetUser(ctx, inv.UserId)
		if err != nil {
			return err
		}
		entry.OldBalance = decimal.NewNullDecimal(user.CurrentBalance)
		user.TotalInvested = user.TotalInvested.Add(delta)
		user.CurrentBalance = user.CurrentBalance.Add(delta)
		if user.CurrentBalance.IsNegative() || user.TotalInvested.IsNegative() {
			return apperr.WithMessage(apperr.ErrInsufficientBalance, "The user's balance cannot absorb this reduction")
		}
		entry.NewBalance = decimal.NewNullDecimal(user.CurrentBalance)
		if err := tx.UpdateUserAccount(ctx, user); err != nil {
			return err
		}
	}
	return tx.InsertAuditEntry(ctx, entry)
}

func (s *Service) editPlan(ctx context.Context, tx store.Tx, inv *models.CryptoInvestment, p EditParams) error {
	plan, err := models.ParsePlan(p.Value)
	if err != nil {
		return apperr.Wrap(apperr.ErrInvalidInput, err)
	}
	previous := inv.Plan
	inv.Plan = plan
	if err := tx.UpdateCryptoInvestment(ctx, inv, inv.Status); err != nil {
		return err
	}
	if inv.Status == models.StatusConfirmed {
		user, err := tx.GetUser(ctx, inv.UserId)
		if err != nil {
			return err
		}
		user.Plan = plan
		if err := tx.UpdateUserAccount(ctx, user); err != nil {
			return err
		}
	}
	return tx.InsertAuditEntry(ctx, &models.AuditEntry{
		AdminId:      p.AdminId,
		TargetUserId: inv.UserId,
		Action:       models.AuditEditInvestment,
		CreatedAt:    s.Now().UTC(),
		Note:         fmt.Sprintf("investment #%d plan %s -> %s", inv.Id, previous, plan),
	})
}

func (s *Service) editStatus(ctx context.Context, tx store.Tx, inv *models.CryptoInvestment, p EditParams) error {
	status, err := models.ParseStatus(p.Value)
	if err != nil {
		return apperr.Wrap(apperr.ErrInvalidInput, err)
	}
	if status == inv.Status {
		return nil
	}
	if inv.Status.Terminal() {
		return apperr.Newf(apperr.ErrInvalidInput, "Investment #%d is already %s", inv.Id, inv.Status)
	}

	err = tx.InsertAuditEntry(ctx, &models.AuditEntry{
		AdminId:      p.AdminId,
		TargetUserId: inv.UserId,
		Action:       models.AuditEditInvestment,
		CreatedAt:    s.Now().UTC(),
		Note:         fmt.Sprintf("investment #%d status %s -> %s", inv.Id, inv.Status, status),
	})
	if err != nil {
		return err
	}
	if status == models.StatusConfirmed {
		_, err := s.confirmTx(ctx, tx, inv, p.AdminId)
		return err
	}
	return s.rejectTx(ctx, tx, inv, p.AdminId, "status edit")
}

// List returns investments filtered by user and status; empty values match all.
func (s *Service) List(ctx context.Context, userId string, status models.Status) ([]models.CryptoInvestment, error) {
	var out []models.CryptoInvestment
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		out, err = tx.ListCryptoInvestments(ctx, userId, status)
		return err
	})
	if err != nil {
		return nil, apperr.FromStore(err)
	}
	return out, nil
}

// OldestPending returns the user's oldest pending investment.
func (s *Service) OldestPending(ctx context.Context, userId string) (*models.CryptoInvestment, error) {
	pending, err := s.List(ctx, userId, models.StatusPending)
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		return nil, apperr.Newf(apperr.ErrNotFound, "No pending investment for user %s", userId)
	}
	return &pending[0], nil
}
