// Package account registers users and serves read-only views of their state.
package account

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

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	referralCodeLength   = 10
	referralCodeAttempts = 5
)

type RegisterParams struct {
	UserId       string
	Handle       string
	FullName     string
	Email        string
	ReferralCode string // code of the inviter, optional
}

type Service struct {
	store     store.Store
	referrals *referral.Service
	Now       func() time.Time
	// NewCode generates candidate referral codes.
	NewCode func() string
}

func NewService(st store.Store, referrals *referral.Service) *Service {
	return &Service{store: st, referrals: referrals, Now: time.Now, NewCode: newReferralCode}
}

func newReferralCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))[:referralCodeLength]
}

// Register creates the user with empty plan and zero aggregates and links it
// to its inviter in the same transaction.
func (s *Service) Register(ctx context.Context, p RegisterParams) (*models.User, *models.Referral, error) {
	if strings.TrimSpace(p.UserId) == "" {
		return nil, nil, apperr.WithMessage(apperr.ErrInvalidInput, "Missing user id")
	}

	var (
		user *models.User
		ref  *models.Referral
	)
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		if _, err := tx.GetUser(ctx, p.UserId); err == nil {
			return apperr.WithMessage(apperr.ErrConflict, "You are already registered")
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		code, err := s.uniqueCode(ctx, tx)
		if err != nil {
			return err
		}

		now := s.Now().UTC()
		user = &models.User{
			Id:             p.UserId,
			Handle:         strings.TrimSpace(p.Handle),
			FullName:       strings.TrimSpace(p.FullName),
			Email:          strings.TrimSpace(p.Email),
			RegisteredAt:   now,
			Plan:           models.PlanNone,
			TotalInvested:  decimal.Zero,
			CurrentBalance: decimal.Zero,
			ProfitEarned:   decimal.Zero,
			ReferralCode:   code,
		}
		if err := tx.InsertUser(ctx, user); err != nil {
			return err
		}

		ref, err = s.referrals.MaybeLink(ctx, tx, user.Id, strings.TrimSpace(p.ReferralCode))
		if err != nil {
			return err
		}
		if ref != nil {
			user.ReferredBy = ref.ReferrerId
		}
		return nil
	})
	if err != nil {
		return nil, nil, apperr.FromStore(err)
	}

	zap.L().Info("Registered user",
		zap.String("user_id", user.Id),
		zap.String("referral_code", user.ReferralCode),
		zap.Bool("referred", ref != nil))
	return user, ref, nil
}

func (s *Service) uniqueCode(ctx context.Context, tx store.Tx) (string, error) {
	for i := 0; i < referralCodeAttempts; i++ {
		code := s.NewCode()
		_, err := tx.GetUserByReferralCode(ctx, code)
		if errors.Is(err, store.ErrNotFound) {
			return code, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("no unique referral code after %d attempts: %w", referralCodeAttempts, store.ErrDuplicate)
}

// Get returns the registered user or a not-registered error.
func (s *Service) Get(ctx context.Context, userId string) (*models.User, error) {
	var user *models.User
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		user, err = tx.GetUser(ctx, userId)
		return err
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.Wrap(apperr.ErrNotRegistered, err)
	}
	if err != nil {
		return nil, apperr.FromStore(err)
	}
	return user, nil
}

// Profile is a user's account summary.
type Profile struct {
	User               *models.User
	Terms              *models.PlanTerms
	PendingInvestments int
	PendingWithdrawals int
	Invited            int
}

func (s *Service) Profile(ctx context.Context, userId string) (*Profile, error) {
	var profile *Profile
	err := s.store.View(ctx, func(tx store.Tx) error {
		user, err := tx.GetUser(ctx, userId)
		if errors.Is(err, store.ErrNotFound) {
			return apperr.Wrap(apperr.ErrNotRegistered, err)
		}
		if err != nil {
			return err
		}
		profile = &Profile{User: user}
		if terms, ok := user.Plan.Terms(); ok {
			profile.Terms = &terms
		}
		if profile.PendingInvestments, err = tx.CountCryptoInvestments(ctx, userId, models.StatusPending); err != nil {
			return err
		}
		withdrawals, err := tx.ListWithdrawals(ctx, userId, models.StatusPending)
		if err != nil {
			return err
		}
		profile.PendingWithdrawals = len(withdrawals)
		refs, err := tx.ListReferralsByReferrer(ctx, userId)
		if err != nil {
			return err
		}
		profile.Invited = len(refs)
		return nil
	})
	if err != nil {
		return nil, apperr.FromStore(err)
	}
	return profile, nil
}

// Leaderboard returns the top users by profit earned.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]models.User, error) {
	var users []models.User
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		users, err = tx.TopUsersByProfit(ctx, limit)
		return err
	})
	if err != nil {
		return nil, apperr.FromStore(err)
	}
	return users, nil
}

// UserIds lists every registered user id, oldest first.
func (s *Service) UserIds(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.store.View(ctx, func(tx store.Tx) error {
		users, err := tx.ListUsers(ctx)
		if err != nil {
			return err
		}
		for _, u := range users {
			ids = append(ids, u.Id)
		}
		return nil
	})
	if err != nil {
		return nil, apperr.FromStore(err)
	}
	return ids, nil
}

// All lists every registered user, oldest first.
func (s *Service) All(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		users, err = tx.ListUsers(ctx)
		return err
	})
	if err != nil {
		return nil, apperr.FromStore(err)
	}
	return users, nil
}
