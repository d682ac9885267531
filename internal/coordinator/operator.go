package coordinator

import (
	"context"
	"strconv"

	"invest-bot-go/internal/admin"
	"invest-bot-go/internal/apperr"
	"invest-bot-go/internal/investment"
	"invest-bot-go/internal/models"
	"invest-bot-go/internal/profit"
	"invest-bot-go/internal/stock"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// operatorCheck authorises the caller and validates req.
func (c *Coordinator) operatorCheck(caller Caller, req any) error {
	if err := c.authorise(caller); err != nil {
		return err
	}
	if req == nil {
		return nil
	}
	return c.check(req)
}

func amountMismatch(kind string, id int64, have decimal.Decimal, want decimal.NullDecimal) error {
	if !want.Valid || want.Decimal.Equal(have) {
		return nil
	}
	return apperr.Newf(apperr.ErrInvalidInput, "Pending %s #%d is %s, not %s", kind, id, usd(have), usd(want.Decimal))
}

// ConfirmInvestment confirms the target user's oldest pending investment. A
// given amount replaces the declared one first, and the edit is audited.
func (c *Coordinator) ConfirmInvestment(ctx context.Context, caller Caller, req TargetRequest) Result[*investment.ConfirmResult] {
	const op = "confirm_investment"
	if err := c.operatorCheck(caller, req); err != nil {
		return failed[*investment.ConfirmResult](op, err)
	}
	inv, err := c.svc.Investments.OldestPending(ctx, req.UserId)
	if err != nil {
		return failed[*investment.ConfirmResult](op, err)
	}
	res, err := c.svc.Investments.EditAndConfirm(ctx, inv.Id, caller.Id, req.Amount)
	if err != nil {
		return failed[*investment.ConfirmResult](op, err)
	}
	c.deliver(ctx, res.User.Id, msgInvestmentConfirmed(res.Investment, res.User))
	if res.Bonus != nil {
		c.deliver(ctx, res.Bonus.ReferrerId, msgReferralBonus(res.Bonus.Amount))
	}
	return ok(res)
}

func (c *Coordinator) RejectInvestment(ctx context.Context, caller Caller, req TargetRequest) Result[*models.CryptoInvestment] {
	const op = "reject_investment"
	if err := c.operatorCheck(caller, req); err != nil {
		return failed[*models.CryptoInvestment](op, err)
	}
	pending, err := c.svc.Investments.OldestPending(ctx, req.UserId)
	if err != nil {
		return failed[*models.CryptoInvestment](op, err)
	}
	inv, err := c.svc.Investments.Reject(ctx, pending.Id, caller.Id, "")
	if err != nil {
		return failed[*models.CryptoInvestment](op, err)
	}
	c.deliver(ctx, inv.UserId, msgInvestmentRejected(inv))
	return ok(inv)
}

func (c *Coordinator) EditInvestment(ctx context.Context, caller Caller, req EditRequest) Result[*models.CryptoInvestment] {
	const op = "edit_investment"
	if err := c.operatorCheck(caller, req); err != nil {
		return failed[*models.CryptoInvestment](op, err)
	}
	inv, err := c.svc.Investments.Edit(ctx, investment.EditParams{Id: req.Id, AdminId: caller.Id, Field: req.Field, Value: req.Value})
	if err != nil {
		return failed[*models.CryptoInvestment](op, err)
	}
	return ok(inv)
}

// ConfirmWithdrawal confirms the target user's oldest pending withdrawal. A
// given amount must match the request.
func (c *Coordinator) ConfirmWithdrawal(ctx context.Context, caller Caller, req TargetRequest) Result[*models.Withdrawal] {
	const op = "confirm_withdrawal"
	if err := c.operatorCheck(caller, req); err != nil {
		return failed[*models.Withdrawal](op, err)
	}
	pending, err := c.svc.Withdrawals.OldestPending(ctx, req.UserId)
	if err != nil {
		return failed[*models.Withdrawal](op, err)
	}
	if err := amountMismatch("withdrawal", pending.Id, pending.Amount, req.Amount); err != nil {
		return failed[*models.Withdrawal](op, err)
	}
	w, user, err := c.svc.Withdrawals.Confirm(ctx, pending.Id, caller.Id)
	if err != nil {
		return failed[*models.Withdrawal](op, err)
	}
	c.deliver(ctx, user.Id, msgWithdrawalConfirmed(w, user))
	return ok(w)
}

func (c *Coordinator) RejectWithdrawal(ctx context.Context, caller Caller, req TargetRequest) Result[*models.Withdrawal] {
	const op = "reject_withdrawal"
	if err := c.operatorCheck(caller, req); err != nil {
		return failed[*models.Withdrawal](op, err)
	}
	pending, err := c.svc.Withdrawals.OldestPending(ctx, req.UserId)
	if err != nil {
		return failed[*models.Withdrawal](op, err)
	}
	w, err := c.svc.Withdrawals.Reject(ctx, pending.Id, caller.Id)
	if err != nil {
		return failed[*models.Withdrawal](op, err)
	}
	c.deliver(ctx, w.UserId, msgWithdrawalRejected(w))
	return ok(w)
}

// ConfirmStock confirms the target user's oldest pending purchase. A given
// amount replaces the purchase amount first.
func (c *Coordinator) ConfirmStock(ctx context.Context, caller Caller, req TargetRequest) Result[*models.StockInvestment] {
	const op = "confirm_stock"
	if err := c.operatorCheck(caller, req); err != nil {
		return failed[*models.StockInvestment](op, err)
	}
	pending, err := c.svc.Stocks.OldestPendingPurchase(ctx, req.UserId)
	if err != nil {
		return failed[*models.StockInvestment](op, err)
	}
	inv, _, err := c.svc.Stocks.EditAndConfirm(ctx, pending.Id, caller.Id, req.Amount)
	if err != nil {
		return failed[*models.StockInvestment](op, err)
	}
	c.deliver(ctx, inv.UserId, msgStockConfirmed(inv))
	return ok(inv)
}

func (c *Coordinator) RejectStock(ctx context.Context, caller Caller, req TargetRequest) Result[*models.StockInvestment] {
	const op = "reject_stock"
	if err := c.operatorCheck(caller, req); err != nil {
		return failed[*models.StockInvestment](op, err)
	}
	pending, err := c.svc.Stocks.OldestPendingPurchase(ctx, req.UserId)
	if err != nil {
		return failed[*models.StockInvestment](op, err)
	}
	inv, err := c.svc.Stocks.Reject(ctx, pending.Id, caller.Id)
	if err != nil {
		return failed[*models.StockInvestment](op, err)
	}
	c.deliver(ctx, inv.UserId, msgStockRejected(inv))
	return ok(inv)
}

// ConfirmStockSale confirms the target user's oldest pending sale. A given
// amount must match the sale value.
func (c *Coordinator) ConfirmStockSale(ctx context.Context, caller Caller, req TargetRequest) Result[*stock.SaleResult] {
	const op = "confirm_stock_sale"
	if err := c.operatorCheck(caller, req); err != nil {
		return failed[*stock.SaleResult](op, err)
	}
	pending, err := c.svc.Stocks.OldestPendingSale(ctx, req.UserId)
	if err != nil {
		return failed[*stock.SaleResult](op, err)
	}
	if err := amountMismatch("sale", pending.Id, pending.TotalValue, req.Amount); err != nil {
		return failed[*stock.SaleResult](op, err)
	}
	res, err := c.svc.Stocks.ConfirmSale(ctx, pending.Id, caller.Id)
	if err != nil {
		return failed[*stock.SaleResult](op, err)
	}
	c.deliver(ctx, res.User.Id, msgStockSaleConfirmed(res.Sale, res.User))
	return ok(res)
}

func (c *Coordinator) RejectStockSale(ctx context.Context, caller Caller, req TargetRequest) Result[*models.StockSale] {
	const op = "reject_stock_sale"
	if err := c.operatorCheck(caller, req); err != nil {
		return failed[*models.StockSale](op, err)
	}
	pending, err := c.svc.Stocks.OldestPendingSale(ctx, req.UserId)
	if err != nil {
		return failed[*models.StockSale](op, err)
	}
	sale, err := c.svc.Stocks.RejectSale(ctx, pending.Id, caller.Id)
	if err != nil {
		return failed[*models.StockSale](op, err)
	}
	c.deliver(ctx, sale.UserId, msgStockSaleRejected(sale))
	return ok(sale)
}

// AddStock records a position bought for the user by an operator.
func (c *Coordinator) AddStock(ctx context.Context, caller Caller, req AddStockRequest) Result[*models.StockInvestment] {
	const op = "add_stock"
	if err := c.operatorCheck(caller, req); err != nil {
		return failed[*models.StockInvestment](op, err)
	}
	inv, err := c.svc.Stocks.SubmitPurchaseAsAdmin(ctx, stock.AdminPurchaseParams{
		AdminId: caller.Id, UserId: req.UserId, Ticker: req.Ticker, Shares: req.Shares, Price: req.Price,
	})
	if err != nil {
		return failed[*models.StockInvestment](op, err)
	}
	c.deliver(ctx, inv.UserId, msgStockAdded(inv))
	return ok(inv)
}

func (c *Coordinator) EditStock(ctx context.Context, caller Caller, req EditRequest) Result[*models.StockInvestment] {
	const op = "edit_stock"
	if err := c.operatorCheck(caller, req); err != nil {
		return failed[*models.StockInvestment](op, err)
	}
	inv, err := c.svc.Stocks.Edit(ctx, stock.EditParams{Id: req.Id, AdminId: caller.Id, Field: req.Field, Value: req.Value})
	if err != nil {
		return failed[*models.StockInvestment](op, err)
	}
	return ok(inv)
}

func (c *Coordinator) RecalculateStock(ctx context.Context, caller Caller, id int64) Result[*models.StockInvestment] {
	const op = "recalculate_stock"
	if err := c.operatorCheck(caller, nil); err != nil {
		return failed[*models.StockInvestment](op, err)
	}
	inv, err := c.svc.Stocks.Recalculate(ctx, id, caller.Id)
	if err != nil {
		return failed[*models.StockInvestment](op, err)
	}
	return ok(inv)
}

func (c *Coordinator) DeleteStock(ctx context.Context, caller Caller, id int64) Result[*models.StockInvestment] {
	const op = "delete_stock"
	if err := c.operatorCheck(caller, nil); err != nil {
		return failed[*models.StockInvestment](op, err)
	}
	inv, err := c.svc.Stocks.Delete(ctx, id, caller.Id)
	if err != nil {
		return failed[*models.StockInvestment](op, err)
	}
	return ok(inv)
}

// ApplyBalance changes a user's balance directly and tells them.
func (c *Coordinator) ApplyBalance(ctx context.Context, caller Caller, req BalanceRequest) Result[*admin.BalanceChange] {
	const op = "apply_balance"
	if err := c.operatorCheck(caller, req); err != nil {
		return failed[*admin.BalanceChange](op, err)
	}
	change, err := c.svc.Admin.Apply(ctx, admin.ApplyParams{
		AdminId: caller.Id, UserId: req.UserId, Mode: req.Mode, Amount: req.Amount, Note: req.Note,
	})
	if err != nil {
		return failed[*admin.BalanceChange](op, err)
	}
	c.deliver(ctx, change.User.Id, msgBalanceChanged(change.Old, change.New))
	return ok(change)
}

func (c *Coordinator) OverrideProfit(ctx context.Context, caller Caller, userId string, value decimal.Decimal) Result[*models.User] {
	const op = "override_profit"
	if err := c.operatorCheck(caller, nil); err != nil {
		return failed[*models.User](op, err)
	}
	user, err := c.svc.Admin.OverrideProfit(ctx, caller.Id, userId, value)
	if err != nil {
		return failed[*models.User](op, err)
	}
	return ok(user)
}

func (c *Coordinator) DeleteUser(ctx context.Context, caller Caller, userId string) Result[*models.User] {
	const op = "delete_user"
	if err := c.operatorCheck(caller, nil); err != nil {
		return failed[*models.User](op, err)
	}
	if userId == caller.Id {
		return failed[*models.User](op, apperr.WithMessage(apperr.ErrInvalidInput, "Operators cannot delete themselves"))
	}
	user, err := c.svc.Admin.DeleteUser(ctx, caller.Id, userId)
	if err != nil {
		return failed[*models.User](op, err)
	}
	return ok(user)
}

func (c *Coordinator) AuditLog(ctx context.Context, caller Caller, targetUserId string, limit int) Result[[]models.AuditEntry] {
	const op = "audit_log"
	if err := c.operatorCheck(caller, nil); err != nil {
		return failed[[]models.AuditEntry](op, err)
	}
	entries, err := c.svc.Admin.AuditLog(ctx, targetUserId, limit)
	if err != nil {
		return failed[[]models.AuditEntry](op, err)
	}
	return ok(entries)
}

// Users lists every registered user for operator review.
func (c *Coordinator) Users(ctx context.Context, caller Caller) Result[[]models.User] {
	const op = "users"
	if err := c.operatorCheck(caller, nil); err != nil {
		return failed[[]models.User](op, err)
	}
	users, err := c.svc.Accounts.All(ctx)
	if err != nil {
		return failed[[]models.User](op, err)
	}
	return ok(users)
}

// BroadcastReport counts a broadcast's deliveries.
type BroadcastReport struct {
	Recipients int
	Delivered  int
}

// Broadcast sends text to every registered user.
func (c *Coordinator) Broadcast(ctx context.Context, caller Caller, req BroadcastRequest) Result[BroadcastReport] {
	const op = "broadcast"
	if err := c.operatorCheck(caller, req); err != nil {
		return failed[BroadcastReport](op, err)
	}
	ids, err := c.svc.Accounts.UserIds(ctx)
	if err != nil {
		return failed[BroadcastReport](op, err)
	}

	report := BroadcastReport{Recipients: len(ids)}
	for _, id := range ids {
		if c.deliver(ctx, id, msgBroadcast(req.Text)) {
			report.Delivered++
		}
	}
	zap.L().Info("Broadcast sent",
		zap.String("admin_id", caller.Id),
		zap.Int("recipients", report.Recipients),
		zap.Int("delivered", report.Delivered))
	return ok(report)
}

// AccrueProfits runs the profit engine now on behalf of an operator.
func (c *Coordinator) AccrueProfits(ctx context.Context, caller Caller) Result[*profit.RunSummary] {
	const op = "accrue_profits"
	if err := c.operatorCheck(caller, nil); err != nil {
		return failed[*profit.RunSummary](op, err)
	}
	summary, err := c.svc.Profit.Run(ctx, c.Now())
	if summary == nil {
		return failed[*profit.RunSummary](op, apperr.Wrap(apperr.ErrInternal, err))
	}
	if err != nil {
		zap.L().Warn("Profit run had failures", zap.Error(err))
	}
	c.NotifyAccruals(ctx, summary)
	return ok(summary)
}

// NotifyAccruals tells each credited user about their profit. It is also
// the profit engine's per-run callback.
func (c *Coordinator) NotifyAccruals(ctx context.Context, summary *profit.RunSummary) {
	for _, credit := range summary.Credits {
		c.deliver(ctx, credit.UserId, msgProfitCredited(credit.Amount, credit.Days))
	}
}

// ParseId parses a row id argument.
func ParseId(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Newf(apperr.ErrInvalidInput, "%q is not a valid id", s)
	}
	return id, nil
}
