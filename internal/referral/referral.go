package referral

import (
	"context"
	"errors"
	"fmt"
	"time"

	"invest-bot-go/internal/apperr"
	"invest-bot-go/internal/models"
	"invest-bot-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var hundred = decimal.NewFromInt(100)

// Policy computes the first-deposit bonus paid to an inviter.
type Policy struct {
	Mode    string
	Flat    decimal.Decimal
	Percent decimal.Decimal
}

func NewPolicy(cfg models.ReferralConfig) Policy {
	return Policy{Mode: cfg.Mode, Flat: cfg.FlatBonus, Percent: cfg.Percent}
}

// BonusFor returns the bonus for a first confirmed investment of amount,
// rounded to cents.
func (p Policy) BonusFor(amount decimal.Decimal) decimal.Decimal {
	if p.Mode == models.ReferralModePercent {
		return amount.Mul(p.Percent).Div(hundred).Round(2)
	}
	return p.Flat.Round(2)
}

// Describe renders the policy for user-facing copy.
func (p Policy) Describe() string {
	if p.Mode == models.ReferralModePercent {
		return fmt.Sprintf("%s%% of your friend's first investment", p.Percent)
	}
	return fmt.Sprintf("$%s when your friend's first investment is confirmed", p.Flat.StringFixed(2))
}

// Bonus describes a paid first-deposit bonus.
type Bonus struct {
	ReferrerId string
	RefereeId  string
	Amount     decimal.Decimal
}

type Service struct {
	store  store.Store
	policy Policy
	Now    func() time.Time
}

func NewService(st store.Store, policy Policy) *Service {
	return &Service{store: st, policy: policy, Now: time.Now}
}

func (s *Service) Policy() Policy { return s.policy }

// MaybeLink links newUserId to the owner of code. Unknown codes and self
// referrals are ignored. It runs inside the registration transaction.
func (s *Service) MaybeLink(ctx context.Context, tx store.Tx, newUserId, code string) (*models.Referral, error) {
	if code == "" {
		return nil, nil
	}

	referrer, err := tx.GetUserByReferralCode(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		zap.L().Info("Ignoring unknown referral code", zap.String("user_id", newUserId), zap.String("code", code))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if referrer.Id == newUserId {
		return nil, nil
	}

	if _, err := tx.GetReferralByReferee(ctx, newUserId); err == nil {
		return nil, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	ref := &models.Referral{
		ReferrerId:  referrer.Id,
		RefereeId:   newUserId,
		CreatedAt:   s.Now().UTC(),
		BonusAmount: decimal.Zero,
	}
	if err := tx.InsertReferral(ctx, ref); err != nil {
		return nil, err
	}
	if err := tx.SetUserReferrer(ctx, newUserId, referrer.Id); err != nil {
		return nil, err
	}

	zap.L().Info("Linked referral",
		zap.String("referrer_id", referrer.Id),
		zap.String("referee_id", newUserId))
	return ref, nil
}

// MaybePayFirstDepositBonus credits the inviter of userId when the
// investment just confirmed is the user's first. It must run in the same
// transaction as the confirmation, after the investment row was updated.
func (s *Service) MaybePayFirstDepositBonus(ctx context.Context, tx store.Tx, userId string, amount decimal.Decimal, adminId string) (*Bonus, error) {
	confirmed, err := tx.CountCryptoInvestments(ctx, userId, models.StatusConfirmed)
	if err != nil {
		return nil, err
	}
	if confirmed != 1 {
		return nil, nil
	}

	ref, err := tx.GetReferralByReferee(ctx, userId)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !ref.BonusAmount.IsZero() {
		return nil, nil
	}

	bonus := s.policy.BonusFor(amount)
	if !bonus.IsPositive() {
		return nil, nil
	}

	referrer, err := tx.GetUser(ctx, ref.ReferrerId)
	if err != nil {
		return nil, err
	}
	oldBalance := referrer.CurrentBalance
	referrer.CurrentBalance = referrer.CurrentBalance.Add(bonus)
	if err := tx.UpdateUserAccount(ctx, referrer); err != nil {
		return nil, err
	}
	if err := tx.UpdateReferralBonus(ctx, ref.Id, bonus); err != nil {
		return nil, err
	}

	err = tx.InsertAuditEntry(ctx, &models.AuditEntry{
		AdminId:      adminId,
		TargetUserId: referrer.Id,
		Action:       models.AuditReferralBonus,
		Amount:       decimal.NewNullDecimal(bonus),
		OldBalance:   decimal.NewNullDecimal(oldBalance),
		NewBalance:   decimal.NewNullDecimal(referrer.CurrentBalance),
		CreatedAt:    s.Now().UTC(),
		Note:         fmt.Sprintf("first deposit bonus for referee %s", userId),
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Paid first deposit bonus",
		zap.String("referrer_id", referrer.Id),
		zap.String("referee_id", userId),
		zap.String("bonus", bonus.String()))
	return &Bonus{ReferrerId: referrer.Id, RefereeId: userId, Amount: bonus}, nil
}

// Stats summarises a user's invitations.
type Stats struct {
	Code       string
	Invited    int
	BonusTotal decimal.Decimal
	Referrals  []models.Referral
}

func (s *Service) Stats(ctx context.Context, userId string) (*Stats, error) {
	var stats *Stats
	err := s.store.View(ctx, func(tx store.Tx) error {
		user, err := tx.GetUser(ctx, userId)
		if errors.Is(err, store.ErrNotFound) {
			return apperr.Wrap(apperr.ErrNotRegistered, err)
		}
		if err != nil {
			return err
		}
		refs, err := tx.ListReferralsByReferrer(ctx, userId)
		if err != nil {
			return err
		}
		stats = &Stats{Code: user.ReferralCode, Invited: len(refs), BonusTotal: decimal.Zero, Referrals: refs}
		for _, r := range refs {
			stats.BonusTotal = stats.BonusTotal.Add(r.BonusAmount)
		}
		return nil
	})
	if err != nil {
		return nil, apperr.FromStore(err)
	}
	return stats, nil
}
