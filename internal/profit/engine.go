// Package profit accrues daily plan returns onto user balances.
package profit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"invest-bot-go/internal/models"
	"invest-bot-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const day = 24 * time.Hour

// WholeDays returns the number of complete days between since and now.
func WholeDays(since, now time.Time) int64 {
	if !now.After(since) {
		return 0
	}
	return int64(now.Sub(since) / day)
}

// Accrue returns the profit owed to user at now and the number of whole days
// it covers. Users without a plan or below the plan minimum accrue nothing.
func Accrue(user *models.User, now time.Time) (decimal.Decimal, int64) {
	terms, ok := user.Plan.Terms()
	if !ok || !terms.Qualifies(user.TotalInvested) || user.LastProfitUpdate.IsZero() {
		return decimal.Zero, 0
	}
	days := WholeDays(user.LastProfitUpdate, now)
	if days < 1 {
		return decimal.Zero, 0
	}
	profit := user.TotalInvested.Mul(terms.DailyReturn).Mul(decimal.NewFromInt(days)).Round(2)
	return profit, days
}

// Credit is one user's accrual in a run.
type Credit struct {
	UserId string
	Days   int64
	Amount decimal.Decimal
}

// RunSummary reports a single engine pass.
type RunSummary struct {
	Evaluated int
	Credited  int
	Total     decimal.Decimal
	Credits   []Credit
}

// Engine applies accruals. Each user is updated in its own transaction so
// one failure does not hold back the others.
type Engine struct {
	store  store.Store
	period time.Duration
	Now    func() time.Time

	stopChan chan struct{}
	doneChan chan struct{}
	stopOnce sync.Once
}

func NewEngine(st store.Store, period time.Duration) *Engine {
	return &Engine{
		store:    st,
		period:   period,
		Now:      time.Now,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Run evaluates every user with a plan at now. Running it again before
// another whole day has passed changes nothing.
func (e *Engine) Run(ctx context.Context, now time.Time) (*RunSummary, error) {
	now = now.UTC()

	var candidates []models.User
	err := e.store.View(ctx, func(tx store.Tx) error {
		var err error
		candidates, err = tx.ListUsersWithPlan(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list users with a plan: %w", err)
	}

	summary := &RunSummary{Evaluated: len(candidates), Total: decimal.Zero}
	var errs error
	for _, candidate := range candidates {
		credit, err := e.accrueUser(ctx, candidate.Id, now)
		if err != nil {
			zap.L().Error("Failed to accrue profit", zap.String("user_id", candidate.Id), zap.Error(err))
			errs = multierr.Append(errs, fmt.Errorf("user %s: %w", candidate.Id, err))
			continue
		}
		if credit == nil {
			continue
		}
		summary.Credited++
		summary.Total = summary.Total.Add(credit.Amount)
		summary.Credits = append(summary.Credits, *credit)
	}

	zap.L().Info("Profit run finished",
		zap.Int("evaluated", summary.Evaluated),
		zap.Int("credited", summary.Credited),
		zap.String("total", summary.Total.String()),
		zap.Int("failed", len(multierr.Errors(errs))))
	return summary, errs
}

func (e *Engine) accrueUser(ctx context.Context, userId string, now time.Time) (*Credit, error) {
	var credit *Credit
	err := e.store.WithTx(ctx, func(tx store.Tx) error {
		user, err := tx.GetUser(ctx, userId)
		if err != nil {
			return err
		}
		if user.LastProfitUpdate.IsZero() {
			user.LastProfitUpdate = now
			return tx.UpdateUserAccount(ctx, user)
		}

		amount, days := Accrue(user, now)
		if days == 0 {
			return nil
		}
		user.CurrentBalance = user.CurrentBalance.Add(amount)
		user.ProfitEarned = user.ProfitEarned.Add(amount)
		user.LastProfitUpdate = now
		if err := tx.UpdateUserAccount(ctx, user); err != nil {
			return err
		}
		credit = &Credit{UserId: userId, Days: days, Amount: amount}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if credit != nil {
		zap.L().Debug("Accrued profit",
			zap.String("user_id", userId),
			zap.Int64("days", credit.Days),
			zap.String("amount", credit.Amount.String()))
	}
	return credit, nil
}

// Start runs the engine once immediately and then every period until Stop
// is called or ctx is cancelled. onRun, if set, receives each summary.
func (e *Engine) Start(ctx context.Context, onRun func(context.Context, *RunSummary)) {
	zap.L().Info("Starting profit engine", zap.Duration("period", e.period))
	go e.loop(ctx, onRun)
}

// Stop ends the loop and waits for an in-flight run to finish.
func (e *Engine) Stop() {
	zap.L().Info("Stopping profit engine")
	e.stopOnce.Do(func() { close(e.stopChan) })
	<-e.doneChan
	zap.L().Info("Profit engine stopped")
}

func (e *Engine) loop(ctx context.Context, onRun func(context.Context, *RunSummary)) {
	defer close(e.doneChan)

	ticker := time.NewTicker(e.period)
	defer ticker.Stop()

	e.tick(ctx, onRun)

	for {
		select {
		case <-ticker.C:
			e.tick(ctx, onRun)
		case <-e.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (e *Engine) tick(ctx context.Context, onRun func(context.Context, *RunSummary)) {
	summary, err := e.Run(ctx, e.Now())
	if err != nil {
		zap.L().Warn("Profit run completed with errors", zap.Error(err))
	}
	if summary != nil && onRun != nil {
		onRun(ctx, summary)
	}
}
