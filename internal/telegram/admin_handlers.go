package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"invest-bot-go/internal/admin"
	"invest-bot-go/internal/coordinator"
	"invest-bot-go/internal/session"

	"github.com/shopspring/decimal"
)

// targetArgs reads "<user> [amount]".
func targetArgs(args *CommandArgs) (coordinator.TargetRequest, string) {
	req := coordinator.TargetRequest{UserId: args.Arg(0)}
	if req.UserId == "" {
		return req, fmt.Sprintf("Usage: /%s <user> [amount]", args.Command)
	}
	if raw := args.Arg(1); raw != "" {
		amount, err := ParseAmount(raw)
		if err != nil {
			return req, "⚠️ " + err.Error()
		}
		req.Amount = decimal.NewNullDecimal(amount)
	}
	return req, ""
}

func (h *Handlers) HandleConfirmInvestment(ctx context.Context, req *Request) (string, error) {
	target, usage := targetArgs(req.Args)
	if usage != "" {
		return usage, nil
	}
	res := h.coord.ConfirmInvestment(ctx, req.Caller, target)
	if !res.OK {
		return failure(res), nil
	}
	inv := res.Value.Investment
	reply := fmt.Sprintf("✅ Investment #%d confirmed: %s, plan %s. User balance %s.", inv.Id, usd(inv.Amount), inv.Plan, usd(res.Value.User.CurrentBalance))
	if b := res.Value.Bonus; b != nil {
		reply += fmt.Sprintf("\nReferral bonus %s paid to %s.", usd(b.Amount), b.ReferrerId)
	}
	return reply, nil
}

func (h *Handlers) HandleRejectInvestment(ctx context.Context, req *Request) (string, error) {
	target, usage := targetArgs(req.Args)
	if usage != "" {
		return usage, nil
	}
	res := h.coord.RejectInvestment(ctx, req.Caller, target)
	if !res.OK {
		return failure(res), nil
	}
	return fmt.Sprintf("❌ Investment #%d rejected.", res.Value.Id), nil
}

func (h *Handlers) HandleConfirmWithdrawal(ctx context.Context, req *Request) (string, error) {
	target, usage := targetArgs(req.Args)
	if usage != "" {
		return usage, nil
	}
	res := h.coord.ConfirmWithdrawal(ctx, req.Caller, target)
	if !res.OK {
		return failure(res), nil
	}
	return fmt.Sprintf("✅ Withdrawal #%d of %s confirmed. Pay out to %s.", res.Value.Id, usd(res.Value.Amount), res.Value.WalletAddress), nil
}

func (h *Handlers) HandleRejectWithdrawal(ctx context.Context, req *Request) (string, error) {
	target, usage := targetArgs(req.Args)
	if usage != "" {
		return usage, nil
	}
	res := h.coord.RejectWithdrawal(ctx, req.Caller, target)
	if !res.OK {
		return failure(res), nil
	}
	return fmt.Sprintf("❌ Withdrawal #%d rejected.", res.Value.Id), nil
}

func (h *Handlers) HandleConfirmStock(ctx context.Context, req *Request) (string, error) {
	target, usage := targetArgs(req.Args)
	if usage != "" {
		return usage, nil
	}
	res := h.coord.ConfirmStock(ctx, req.Caller, target)
	if !res.OK {
		return failure(res), nil
	}
	return fmt.Sprintf("✅ Stock purchase #%d confirmed: %s shares of %s for %s.", res.Value.Id, res.Value.Shares, res.Value.Ticker, usd(res.Value.Amount)), nil
}

func (h *Handlers) HandleRejectStock(ctx context.Context, req *Request) (string, error) {
	target, usage := targetArgs(req.Args)
	if usage != "" {
		return usage, nil
	}
	res := h.coord.RejectStock(ctx, req.Caller, target)
	if !res.OK {
		return failure(res), nil
	}
	return fmt.Sprintf("❌ Stock purchase #%d rejected.", res.Value.Id), nil
}

func (h *Handlers) HandleConfirmStockSale(ctx context.Context, req *Request) (string, error) {
	target, usage := targetArgs(req.Args)
	if usage != "" {
		return usage, nil
	}
	res := h.coord.ConfirmStockSale(ctx, req.Caller, target)
	if !res.OK {
		return failure(res), nil
	}
	sale := res.Value.Sale
	reply := fmt.Sprintf("✅ Stock sale #%d confirmed: %s credited. Pay out to %s.", sale.Id, usd(sale.TotalValue), sale.WalletAddress)
	if res.Value.Investment == nil {
		reply += "\nPosition fully sold."
	}
	return reply, nil
}

func (h *Handlers) HandleRejectStockSale(ctx context.Context, req *Request) (string, error) {
	target, usage := targetArgs(req.Args)
	if usage != "" {
		return usage, nil
	}
	res := h.coord.RejectStockSale(ctx, req.Caller, target)
	if !res.OK {
		return failure(res), nil
	}
	return fmt.Sprintf("❌ Stock sale #%d rejected.", res.Value.Id), nil
}

// HandleBalance applies "<user> <mode> [amount] [note]". Without an amount
// the operator is asked for one.
func (h *Handlers) HandleBalance(ctx context.Context, req *Request) (string, error) {
	userId := req.Args.Arg(0)
	mode, err := admin.ParseMode(req.Args.Arg(1))
	if userId == "" || err != nil {
		return "Usage: /balance <user> <add|subtract|set|reset> [amount] [note]", nil
	}
	if mode == admin.ModeReset {
		return h.applyBalance(ctx, req.Caller, coordinator.BalanceRequest{UserId: userId, Mode: mode, Note: strings.Join(req.Args.Raw[2:], " ")}), nil
	}
	if req.Args.Arg(2) == "" {
		err := h.sessions.Advance(req.Caller.Id, session.Session{
			Step:         session.StepAdminAwaitingBalanceAmount,
			TargetUserId: userId,
			Mode:         mode,
		})
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Send the amount to %s for user %s.", mode, userId), nil
	}
	amount, err := ParseAmount(req.Args.Arg(2))
	if err != nil {
		return "⚠️ " + err.Error(), nil
	}
	note := ""
	if len(req.Args.Raw) > 3 {
		note = strings.Join(req.Args.Raw[3:], " ")
	}
	return h.applyBalance(ctx, req.Caller, coordinator.BalanceRequest{UserId: userId, Mode: mode, Amount: amount, Note: note}), nil
}

func (h *Handlers) applyBalance(ctx context.Context, caller coordinator.Caller, req coordinator.BalanceRequest) string {
	res := h.coord.ApplyBalance(ctx, caller, req)
	if !res.OK {
		return failure(res)
	}
	c := res.Value
	return fmt.Sprintf("✅ Balance of %s: %s -> %s (%s).", c.User.Id, usd(c.Old), usd(c.New), c.Mode)
}

func (h *Handlers) HandleAddStock(ctx context.Context, req *Request) (string, error) {
	if len(req.Args.Raw) < 4 {
		return "Usage: /add_stock <user> <ticker> <shares> <price>", nil
	}
	shares, err := ParseAmount(req.Args.Arg(2))
	if err != nil {
		return "⚠️ " + err.Error(), nil
	}
	p, err := ParseAmount(req.Args.Arg(3))
	if err != nil {
		return "⚠️ " + err.Error(), nil
	}
	res := h.coord.AddStock(ctx, req.Caller, coordinator.AddStockRequest{
		UserId: req.Args.Arg(0), Ticker: req.Args.Arg(1), Shares: shares, Price: p,
	})
	if !res.OK {
		return failure(res), nil
	}
	inv := res.Value
	return fmt.Sprintf("✅ Added #%d: %s shares of %s at %s (%s) to %s.", inv.Id, inv.Shares, inv.Ticker, usd(inv.PurchasePrice), usd(inv.Amount), inv.UserId), nil
}

func editArgs(args *CommandArgs) (coordinator.EditRequest, string) {
	id, err := coordinator.ParseId(args.Arg(0))
	if err != nil || args.Arg(1) == "" || args.Arg(2) == "" {
		return coordinator.EditRequest{}, fmt.Sprintf("Usage: /%s <id> <field> <value>", args.Command)
	}
	return coordinator.EditRequest{Id: id, Field: strings.ToLower(args.Arg(1)), Value: args.Arg(2)}, ""
}

func (h *Handlers) HandleEditInvestment(ctx context.Context, req *Request) (string, error) {
	edit, usage := editArgs(req.Args)
	if usage != "" {
		return usage, nil
	}
	res := h.coord.EditInvestment(ctx, req.Caller, edit)
	if !res.OK {
		return failure(res), nil
	}
	inv := res.Value
	return fmt.Sprintf("✏️ Investment #%d: %s, plan %s, %s.", inv.Id, usd(inv.Amount), inv.Plan, inv.Status), nil
}

func (h *Handlers) HandleEditStock(ctx context.Context, req *Request) (string, error) {
	edit, usage := editArgs(req.Args)
	if usage != "" {
		return usage, nil
	}
	res := h.coord.EditStock(ctx, req.Caller, edit)
	if !res.OK {
		return failure(res), nil
	}
	inv := res.Value
	return fmt.Sprintf("✏️ Stock #%d: %s shares of %s at %s = %s.", inv.Id, inv.Shares, inv.Ticker, usd(inv.PurchasePrice), usd(inv.Amount)), nil
}

func (h *Handlers) HandleRecalculateStock(ctx context.Context, req *Request) (string, error) {
	id, err := coordinator.ParseId(req.Args.Arg(0))
	if err != nil {
		return "Usage: /recalc_stock <id>", nil
	}
	res := h.coord.RecalculateStock(ctx, req.Caller, id)
	if !res.OK {
		return failure(res), nil
	}
	return fmt.Sprintf("🔄 Stock #%d now holds %s shares.", res.Value.Id, res.Value.Shares), nil
}

func (h *Handlers) HandleDeleteStock(ctx context.Context, req *Request) (string, error) {
	id, err := coordinator.ParseId(req.Args.Arg(0))
	if err != nil {
		return "Usage: /delete_stock <id>", nil
	}
	res := h.coord.DeleteStock(ctx, req.Caller, id)
	if !res.OK {
		return failure(res), nil
	}
	return fmt.Sprintf("🗑 Stock #%d (%s) deleted.", res.Value.Id, res.Value.Ticker), nil
}

func (h *Handlers) HandleSetProfit(ctx context.Context, req *Request) (string, error) {
	value, err := ParseAmount(req.Args.Arg(1))
	if req.Args.Arg(0) == "" || err != nil {
		return "Usage: /set_profit <user> <value>", nil
	}
	res := h.coord.OverrideProfit(ctx, req.Caller, req.Args.Arg(0), value)
	if !res.OK {
		return failure(res), nil
	}
	return fmt.Sprintf("✅ Profit earned of %s set to %s.", res.Value.Id, usd(res.Value.ProfitEarned)), nil
}

func (h *Handlers) HandleDeleteUser(ctx context.Context, req *Request) (string, error) {
	if req.Args.Arg(0) == "" {
		return "Usage: /delete_user <user>", nil
	}
	res := h.coord.DeleteUser(ctx, req.Caller, req.Args.Arg(0))
	if !res.OK {
		return failure(res), nil
	}
	return fmt.Sprintf("🗑 User %s (%s) deleted.", res.Value.Id, res.Value.FullName), nil
}

func (h *Handlers) HandleUsers(ctx context.Context, req *Request) (string, error) {
	res := h.coord.Users(ctx, req.Caller)
	if !res.OK {
		return failure(res), nil
	}
	return formatUsers(res.Value), nil
}

// HandleAudit takes an optional user id ("all" for everyone) and limit.
func (h *Handlers) HandleAudit(ctx context.Context, req *Request) (string, error) {
	target, limit := req.Args.Arg(0), 20
	if strings.EqualFold(target, "all") {
		target = ""
	}
	if n, err := strconv.Atoi(req.Args.Arg(1)); err == nil && n > 0 {
		limit = n
	}
	res := h.coord.AuditLog(ctx, req.Caller, target, limit)
	if !res.OK {
		return failure(res), nil
	}
	return formatAudit(res.Value), nil
}

func (h *Handlers) HandleAccrue(ctx context.Context, req *Request) (string, error) {
	res := h.coord.AccrueProfits(ctx, req.Caller)
	if !res.OK {
		return failure(res), nil
	}
	s := res.Value
	return fmt.Sprintf("💰 Profit run: %d evaluated, %d credited, %s total.", s.Evaluated, s.Credited, usd(s.Total)), nil
}

func (h *Handlers) HandleBroadcast(ctx context.Context, req *Request) (string, error) {
	if req.Args.Text == "" {
		if err := h.sessions.Advance(req.Caller.Id, session.Session{Step: session.StepAdminAwaitingBroadcast}); err != nil {
			return "", err
		}
		return "Send the message to broadcast.", nil
	}
	return h.broadcast(ctx, req.Caller, req.Args.Text), nil
}

func (h *Handlers) broadcast(ctx context.Context, caller coordinator.Caller, text string) string {
	res := h.coord.Broadcast(ctx, caller, coordinator.BroadcastRequest{Text: text})
	if !res.OK {
		return failure(res)
	}
	return fmt.Sprintf("📣 Broadcast delivered to %d of %d users.", res.Value.Delivered, res.Value.Recipients)
}
