package coordinator

import (
	"context"
	"errors"
	"strings"

	"invest-bot-go/internal/account"
	"invest-bot-go/internal/apperr"
	"invest-bot-go/internal/models"
	"invest-bot-go/internal/referral"
	"invest-bot-go/internal/stock"

	"github.com/shopspring/decimal"
)

// Register creates the caller's account. The inviter, if any, is told after
// commit.
func (c *Coordinator) Register(ctx context.Context, caller Caller, req RegisterRequest) Result[*models.User] {
	req.FullName = strings.TrimSpace(req.FullName)
	req.Email = strings.TrimSpace(req.Email)
	req.ReferralCode = strings.ToUpper(strings.TrimSpace(req.ReferralCode))
	if err := c.check(req); err != nil {
		return failed[*models.User]("register", err)
	}

	user, ref, err := c.svc.Accounts.Register(ctx, account.RegisterParams{
		UserId:       caller.Id,
		Handle:       caller.Handle,
		FullName:     req.FullName,
		Email:        req.Email,
		ReferralCode: req.ReferralCode,
	})
	if err != nil {
		return failed[*models.User]("register", err)
	}

	if ref != nil {
		c.deliver(ctx, ref.ReferrerId, msgReferralJoined(user))
	}
	c.notifyOperators(ctx, msgNewUser(user))
	return ok(user)
}

// IsRegistered reports whether the caller has an account.
func (c *Coordinator) IsRegistered(ctx context.Context, caller Caller) Result[bool] {
	_, err := c.svc.Accounts.Get(ctx, caller.Id)
	if errors.Is(err, apperr.ErrNotRegistered) {
		return ok(false)
	}
	if err != nil {
		return failed[bool]("is_registered", err)
	}
	return ok(true)
}

// Portfolio is the caller's account with live-priced stock positions.
type Portfolio struct {
	User        *models.User
	Terms       *models.PlanTerms
	Positions   []stock.Position
	Investments []models.CryptoInvestment
	Withdrawals []models.Withdrawal
	Sales       []models.StockSale
}

func (c *Coordinator) Portfolio(ctx context.Context, caller Caller) Result[*Portfolio] {
	user, err := c.svc.Accounts.Get(ctx, caller.Id)
	if err != nil {
		return failed[*Portfolio]("portfolio", err)
	}
	p := &Portfolio{User: user}
	if terms, found := user.Plan.Terms(); found {
		p.Terms = &terms
	}
	if p.Investments, err = c.svc.Investments.List(ctx, caller.Id, ""); err != nil {
		return failed[*Portfolio]("portfolio", err)
	}
	if p.Withdrawals, err = c.svc.Withdrawals.List(ctx, caller.Id, ""); err != nil {
		return failed[*Portfolio]("portfolio", err)
	}
	if p.Sales, err = c.svc.Stocks.ListSales(ctx, caller.Id, ""); err != nil {
		return failed[*Portfolio]("portfolio", err)
	}
	if p.Positions, err = c.svc.Stocks.Positions(ctx, caller.Id); err != nil {
		return failed[*Portfolio]("portfolio", err)
	}
	return ok(p)
}

// ProfileView is the caller's profile with referral details.
type ProfileView struct {
	*account.Profile
	Referrals   *referral.Stats
	BonusPolicy string
}

func (c *Coordinator) Profile(ctx context.Context, caller Caller) Result[*ProfileView] {
	profile, err := c.svc.Accounts.Profile(ctx, caller.Id)
	if err != nil {
		return failed[*ProfileView]("profile", err)
	}
	stats, err := c.svc.Referrals.Stats(ctx, caller.Id)
	if err != nil {
		return failed[*ProfileView]("profile", err)
	}
	return ok(&ProfileView{Profile: profile, Referrals: stats, BonusPolicy: c.svc.Referrals.Policy().Describe()})
}

func (c *Coordinator) Leaderboard(ctx context.Context, limit int) Result[[]models.User] {
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	users, err := c.svc.Accounts.Leaderboard(ctx, limit)
	if err != nil {
		return failed[[]models.User]("leaderboard", err)
	}
	return ok(users)
}

// Prices quotes the configured tickers. Unavailable prices are reported per
// ticker and never fail the call.
func (c *Coordinator) Prices(ctx context.Context) Result[[]stock.Quote] {
	return ok(c.svc.Stocks.Quotes(ctx, c.tickers))
}

// Quote prices a single ticker for display.
func (c *Coordinator) Quote(ctx context.Context, ticker string) Result[stock.Quote] {
	return ok(c.svc.Stocks.Quotes(ctx, []string{strings.ToUpper(strings.TrimSpace(ticker))})[0])
}

// DepositAddress returns the wallet the caller should pay kind into.
func (c *Coordinator) DepositAddress(ctx context.Context, caller Caller, kind string) Result[string] {
	if _, err := c.svc.Accounts.Get(ctx, caller.Id); err != nil {
		return failed[string]("deposit_address", err)
	}
	k, err := models.ParseCryptoKind(kind)
	if err != nil {
		return failed[string]("deposit_address", apperr.Wrap(apperr.ErrInvalidInput, err))
	}
	addr, err := c.svc.Investments.DepositAddress(k)
	if err != nil {
		return failed[string]("deposit_address", err)
	}
	return ok(addr)
}

// SubmitInvestment records the caller's declared deposit and alerts operators.
func (c *Coordinator) SubmitInvestment(ctx context.Context, caller Caller, req InvestRequest) Result[*models.CryptoInvestment] {
	req.Plan = strings.ToLower(strings.TrimSpace(req.Plan))
	req.Kind = strings.ToLower(strings.TrimSpace(req.Kind))
	req.TxId = strings.TrimSpace(req.TxId)
	if err := c.check(req); err != nil {
		return failed[*models.CryptoInvestment]("submit_investment", err)
	}

	inv, err := c.svc.Investments.Submit(ctx, investmentParams(caller.Id, req))
	if err != nil {
		return failed[*models.CryptoInvestment]("submit_investment", err)
	}
	c.notifyOperators(ctx, msgNewInvestment(inv))
	return ok(inv)
}

// CheckWithdrawal validates an amount before the caller is asked for a wallet.
func (c *Coordinator) CheckWithdrawal(ctx context.Context, caller Caller, amount decimal.Decimal) Result[decimal.Decimal] {
	if err := c.svc.Withdrawals.CheckAmount(ctx, caller.Id, amount); err != nil {
		return failed[decimal.Decimal]("check_withdrawal", err)
	}
	return ok(amount)
}

func (c *Coordinator) SubmitWithdrawal(ctx context.Context, caller Caller, req WithdrawRequest) Result[*models.Withdrawal] {
	if err := c.check(req); err != nil {
		return failed[*models.Withdrawal]("submit_withdrawal", err)
	}
	w, err := c.svc.Withdrawals.Submit(ctx, caller.Id, req.Amount, req.Wallet)
	if err != nil {
		return failed[*models.Withdrawal]("submit_withdrawal", err)
	}
	c.notifyOperators(ctx, msgNewWithdrawal(w))
	return ok(w)
}

// BuyStock records a pending purchase at the live price.
func (c *Coordinator) BuyStock(ctx context.Context, caller Caller, req BuyRequest) Result[*models.StockInvestment] {
	req.TxDetails = strings.TrimSpace(req.TxDetails)
	if err := c.check(req); err != nil {
		return failed[*models.StockInvestment]("buy_stock", err)
	}
	inv, err := c.svc.Stocks.SubmitPurchase(ctx, caller.Id, req.Ticker, req.Amount)
	if err != nil {
		return failed[*models.StockInvestment]("buy_stock", err)
	}
	c.notifyOperators(ctx, msgNewStockPurchase(inv, req.TxDetails))
	return ok(inv)
}

// SellStock opens a sale. The caller must then supply a payout wallet.
func (c *Coordinator) SellStock(ctx context.Context, caller Caller, req SellRequest) Result[*stock.SellResult] {
	if err := c.check(req); err != nil {
		return failed[*stock.SellResult]("sell_stock", err)
	}
	res, err := c.svc.Stocks.Sell(ctx, caller.Id, req.StockId, req.Shares)
	if err != nil {
		return failed[*stock.SellResult]("sell_stock", err)
	}
	return ok(res)
}

// AttachSaleWallet completes a sale started earlier and hands it to operators.
func (c *Coordinator) AttachSaleWallet(ctx context.Context, caller Caller, saleId int64, wallet string) Result[*models.StockSale] {
	sale, err := c.svc.Stocks.AttachWallet(ctx, saleId, caller.Id, wallet)
	if err != nil {
		return failed[*models.StockSale]("attach_sale_wallet", err)
	}
	c.notifyOperators(ctx, msgNewStockSale(sale))
	return ok(sale)
}

// PendingSaleAwaitingWallet finds a sale the caller started but did not
// finish, so the conversation can resume after a restart.
func (c *Coordinator) PendingSaleAwaitingWallet(ctx context.Context, caller Caller) Result[*models.StockSale] {
	sale, err := c.svc.Stocks.PendingSaleAwaitingWallet(ctx, caller.Id)
	if err != nil {
		return failed[*models.StockSale]("pending_sale", err)
	}
	return ok(sale)
}

// Holdings lists the caller's confirmed positions.
func (c *Coordinator) Holdings(ctx context.Context, caller Caller) Result[[]models.StockInvestment] {
	holdings, err := c.svc.Stocks.List(ctx, caller.Id, models.StatusConfirmed)
	if err != nil {
		return failed[[]models.StockInvestment]("holdings", err)
	}
	return ok(holdings)
}
