package telegram

import (
	"context"
	"fmt"
	"strconv"

	"invest-bot-go/internal/apperr"
	"invest-bot-go/internal/coordinator"
	"invest-bot-go/internal/models"
	"invest-bot-go/internal/session"
)

// Handlers implements the chat commands on top of the coordinator.
type Handlers struct {
	coord    *coordinator.Coordinator
	sessions *session.Manager
}

func NewHandlers(coord *coordinator.Coordinator, sessions *session.Manager) *Handlers {
	return &Handlers{coord: coord, sessions: sessions}
}

// Register wires every command into r.
func (h *Handlers) Register(r *Router) {
	r.RegisterHandler("start", h.HandleStart)
	r.RegisterHandler("register", h.HandleRegister)
	r.RegisterHandler("help", h.HandleHelp)
	r.RegisterHandler("cancel", h.HandleCancel)
	r.RegisterHandler("portfolio", h.HandlePortfolio)
	r.RegisterHandler("profile", h.HandleProfile)
	r.RegisterHandler("invest", h.HandleInvest)
	r.RegisterHandler("withdraw", h.HandleWithdraw)
	r.RegisterHandler("buy", h.HandleBuy)
	r.RegisterHandler("sell", h.HandleSell)
	r.RegisterHandler("prices", h.HandlePrices)
	r.RegisterHandler("leaderboard", h.HandleLeaderboard)

	r.RegisterAdminHandler("admin", h.HandleAdmin)
	r.RegisterAdminHandler("confirm_investment", h.HandleConfirmInvestment)
	r.RegisterAdminHandler("reject_investment", h.HandleRejectInvestment)
	r.RegisterAdminHandler("confirm_withdrawal", h.HandleConfirmWithdrawal)
	r.RegisterAdminHandler("reject_withdrawal", h.HandleRejectWithdrawal)
	r.RegisterAdminHandler("confirm_stock", h.HandleConfirmStock)
	r.RegisterAdminHandler("reject_stock", h.HandleRejectStock)
	r.RegisterAdminHandler("confirm_stock_sale", h.HandleConfirmStockSale)
	r.RegisterAdminHandler("reject_stock_sale", h.HandleRejectStockSale)
	r.RegisterAdminHandler("balance", h.HandleBalance)
	r.RegisterAdminHandler("add_stock", h.HandleAddStock)
	r.RegisterAdminHandler("edit_investment", h.HandleEditInvestment)
	r.RegisterAdminHandler("edit_stock", h.HandleEditStock)
	r.RegisterAdminHandler("recalc_stock", h.HandleRecalculateStock)
	r.RegisterAdminHandler("delete_stock", h.HandleDeleteStock)
	r.RegisterAdminHandler("set_profit", h.HandleSetProfit)
	r.RegisterAdminHandler("delete_user", h.HandleDeleteUser)
	r.RegisterAdminHandler("users", h.HandleUsers)
	r.RegisterAdminHandler("audit", h.HandleAudit)
	r.RegisterAdminHandler("accrue", h.HandleAccrue)
	r.RegisterAdminHandler("broadcast", h.HandleBroadcast)
}

func (h *Handlers) HandleStart(ctx context.Context, req *Request) (string, error) {
	res := h.coord.IsRegistered(ctx, req.Caller)
	if !res.OK {
		return failure(res), nil
	}
	if res.Value {
		return "👋 Welcome back!\n\n" + helpText, nil
	}
	err := h.sessions.Advance(req.Caller.Id, session.Session{
		Step:         session.StepAwaitingRegistrationName,
		ReferralCode: req.Args.Arg(0),
	})
	if err != nil {
		return "", err
	}
	return "👋 Welcome! Let's open your account.\nPlease send your full name.", nil
}

func (h *Handlers) HandleRegister(ctx context.Context, req *Request) (string, error) {
	res := h.coord.IsRegistered(ctx, req.Caller)
	if !res.OK {
		return failure(res), nil
	}
	if res.Value {
		return "You are already registered. See /profile.", nil
	}
	code := h.sessions.Get(req.Caller.Id).ReferralCode
	if c := req.Args.Arg(0); c != "" {
		code = c
	}
	err := h.sessions.Advance(req.Caller.Id, session.Session{Step: session.StepAwaitingRegistrationName, ReferralCode: code})
	if err != nil {
		return "", err
	}
	return "Please send your full name.", nil
}

func (h *Handlers) HandleHelp(ctx context.Context, req *Request) (string, error) {
	if h.coord.IsOperator(req.Caller.Id) {
		return helpText + "\n\n/admin - operator commands", nil
	}
	return helpText, nil
}

func (h *Handlers) HandleAdmin(ctx context.Context, req *Request) (string, error) {
	return adminHelpText, nil
}

func (h *Handlers) HandleCancel(ctx context.Context, req *Request) (string, error) {
	if h.sessions.Get(req.Caller.Id).Step == session.StepIdle {
		return "Nothing to cancel.", nil
	}
	h.sessions.Reset(req.Caller.Id)
	return "Cancelled.", nil
}

func (h *Handlers) HandlePortfolio(ctx context.Context, req *Request) (string, error) {
	res := h.coord.Portfolio(ctx, req.Caller)
	if !res.OK {
		return failure(res), nil
	}
	return formatPortfolio(res.Value), nil
}

func (h *Handlers) HandleProfile(ctx context.Context, req *Request) (string, error) {
	res := h.coord.Profile(ctx, req.Caller)
	if !res.OK {
		return failure(res), nil
	}
	return formatProfile(res.Value), nil
}

func (h *Handlers) HandlePrices(ctx context.Context, req *Request) (string, error) {
	if ticker := req.Args.Arg(0); ticker != "" {
		q := h.coord.Quote(ctx, ticker).Value
		return fmt.Sprintf("%s: %s", q.Ticker, price(q.Price)), nil
	}
	return formatPrices(h.coord.Prices(ctx).Value), nil
}

func (h *Handlers) HandleLeaderboard(ctx context.Context, req *Request) (string, error) {
	limit, _ := strconv.Atoi(req.Args.Arg(0))
	res := h.coord.Leaderboard(ctx, limit)
	if !res.OK {
		return failure(res), nil
	}
	return formatLeaderboard(res.Value), nil
}

// HandleInvest shows the plans, or hands out a deposit wallet and waits for
// the transaction id.
func (h *Handlers) HandleInvest(ctx context.Context, req *Request) (string, error) {
	if len(req.Args.Raw) < 3 {
		return formatPlans(), nil
	}
	plan, err := models.ParsePlan(req.Args.Arg(0))
	if err != nil {
		return "⚠️ Unknown plan. " + formatPlans(), nil
	}
	amount, err := ParseAmount(req.Args.Arg(2))
	if err != nil || !amount.IsPositive() {
		return "⚠️ Please give a positive amount, e.g. /invest core btc 5000", nil
	}

	res := h.coord.DepositAddress(ctx, req.Caller, req.Args.Arg(1))
	if !res.OK {
		return failure(res), nil
	}
	kind, _ := models.ParseCryptoKind(req.Args.Arg(1))

	err = h.sessions.Advance(req.Caller.Id, session.Session{
		Step:       session.StepAwaitingInvestmentTxDetails,
		Plan:       plan,
		CryptoKind: kind,
		Wallet:     res.Value,
		Amount:     amount,
	})
	if err != nil {
		return "", err
	}

	reply := fmt.Sprintf("Send %s in %s to:\n%s\n\nThen reply with the transaction id.", usd(amount), kind, res.Value)
	if terms, _ := plan.Terms(); !terms.Qualifies(amount) {
		reply += fmt.Sprintf("\n\nNote: %s requires at least %s, so this deposit will be reviewed.", terms.Name, usd(terms.MinAmount))
	}
	return reply, nil
}

func (h *Handlers) HandleWithdraw(ctx context.Context, req *Request) (string, error) {
	if req.Args.Arg(0) == "" {
		if err := h.sessions.Advance(req.Caller.Id, session.Session{Step: session.StepAwaitingWithdrawalAmount}); err != nil {
			return "", err
		}
		return "How much would you like to withdraw?", nil
	}
	if err := h.sessions.Advance(req.Caller.Id, session.Session{Step: session.StepAwaitingWithdrawalAmount}); err != nil {
		return "", err
	}
	return h.withdrawalAmount(ctx, req.Caller, req.Args.Arg(0))
}

// HandleBuy quotes the ticker and waits for payment details.
func (h *Handlers) HandleBuy(ctx context.Context, req *Request) (string, error) {
	if len(req.Args.Raw) < 2 {
		return "Usage: /buy <ticker> <amount>, e.g. /buy AAPL 1000", nil
	}
	amount, err := ParseAmount(req.Args.Arg(1))
	if err != nil || !amount.IsPositive() {
		return "⚠️ Please give a positive amount, e.g. /buy AAPL 1000", nil
	}
	if res := h.coord.IsRegistered(ctx, req.Caller); !res.OK {
		return failure(res), nil
	} else if !res.Value {
		return FormatFailure(apperr.KindNotRegistered, ""), nil
	}

	q := h.coord.Quote(ctx, req.Args.Arg(0)).Value
	if !q.Price.Valid {
		return fmt.Sprintf("⏳ No price is available for %s right now. Please try again later.", q.Ticker), nil
	}

	err = h.sessions.Advance(req.Caller.Id, session.Session{
		Step:   session.StepAwaitingStockTxDetails,
		Ticker: q.Ticker,
		Amount: amount,
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s is at %s, so %s buys about %s shares.\nSend your payment details to place the order.",
		q.Ticker, usd(q.Price.Decimal), usd(amount), amount.DivRound(q.Price.Decimal, 4)), nil
}

// HandleSell lists holdings, asks for a share count, or opens the sale.
func (h *Handlers) HandleSell(ctx context.Context, req *Request) (string, error) {
	if req.Args.Arg(0) == "" {
		res := h.coord.Holdings(ctx, req.Caller)
		if !res.OK {
			return failure(res), nil
		}
		return formatHoldings(res.Value), nil
	}
	stockId, err := coordinator.ParseId(req.Args.Arg(0))
	if err != nil {
		return "⚠️ Usage: /sell <id> <shares>", nil
	}
	if req.Args.Arg(1) == "" {
		if err := h.sessions.Advance(req.Caller.Id, session.Session{Step: session.StepAwaitingStockShares, StockId: stockId}); err != nil {
			return "", err
		}
		return "How many shares would you like to sell?", nil
	}
	if err := h.sessions.Advance(req.Caller.Id, session.Session{Step: session.StepAwaitingStockShares, StockId: stockId}); err != nil {
		return "", err
	}
	return h.stockShares(ctx, req.Caller, req.Args.Arg(1))
}
