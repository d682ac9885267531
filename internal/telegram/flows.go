package telegram

import (
	"context"
	"fmt"
	"strings"

	"invest-bot-go/internal/apperr"
	"invest-bot-go/internal/coordinator"
	"invest-bot-go/internal/session"
)

// HandleText continues the caller's current flow with a plain message.
func (h *Handlers) HandleText(ctx context.Context, caller coordinator.Caller, text string) (string, error) {
	text = strings.TrimSpace(text)
	s := h.sessions.Get(caller.Id)

	switch s.Step {
	case session.StepAwaitingRegistrationName:
		if text == "" {
			return "Please send your full name.", nil
		}
		s.FullName = text
		s.Step = session.StepAwaitingRegistrationEmail
		if err := h.sessions.Advance(caller.Id, s); err != nil {
			return "", err
		}
		return fmt.Sprintf("Thanks, %s. Now send your email address.", text), nil

	case session.StepAwaitingRegistrationEmail:
		res := h.coord.Register(ctx, caller, coordinator.RegisterRequest{FullName: s.FullName, Email: text, ReferralCode: s.ReferralCode})
		if !res.OK {
			return h.retryOrReset(caller, res.Kind, res.Message), nil
		}
		h.sessions.Reset(caller.Id)
		return fmt.Sprintf("✅ Registration complete.\nYour referral code: %s\n\n%s", res.Value.ReferralCode, helpText), nil

	case session.StepAwaitingInvestmentTxDetails:
		res := h.coord.SubmitInvestment(ctx, caller, coordinator.InvestRequest{
			Plan:   string(s.Plan),
			Kind:   string(s.CryptoKind),
			Amount: s.Amount,
			Wallet: s.Wallet,
			TxId:   text,
		})
		if !res.OK {
			return h.retryOrReset(caller, res.Kind, res.Message), nil
		}
		h.sessions.Reset(caller.Id)
		return fmt.Sprintf("✅ Investment #%d of %s submitted. You will be notified once it is confirmed.", res.Value.Id, usd(res.Value.Amount)), nil

	case session.StepAwaitingWithdrawalAmount:
		return h.withdrawalAmount(ctx, caller, text)

	case session.StepAwaitingWithdrawalWallet:
		res := h.coord.SubmitWithdrawal(ctx, caller, coordinator.WithdrawRequest{Amount: s.Amount, Wallet: text})
		if !res.OK {
			return h.retryOrReset(caller, res.Kind, res.Message), nil
		}
		h.sessions.Reset(caller.Id)
		return fmt.Sprintf("✅ Withdrawal #%d of %s to %s submitted for review.", res.Value.Id, usd(res.Value.Amount), res.Value.WalletAddress), nil

	case session.StepAwaitingStockTxDetails:
		res := h.coord.BuyStock(ctx, caller, coordinator.BuyRequest{Ticker: s.Ticker, Amount: s.Amount, TxDetails: text})
		if !res.OK {
			return h.retryOrReset(caller, res.Kind, res.Message), nil
		}
		h.sessions.Reset(caller.Id)
		inv := res.Value
		return fmt.Sprintf("✅ Order #%d placed: %s shares of %s at %s. Awaiting confirmation.", inv.Id, inv.Shares, inv.Ticker, usd(inv.PurchasePrice)), nil

	case session.StepAwaitingStockShares:
		return h.stockShares(ctx, caller, text)

	case session.StepAwaitingStockSaleWallet:
		return h.saleWallet(ctx, caller, s.SaleId, text)

	case session.StepAdminAwaitingBalanceAmount:
		amount, err := ParseAmount(text)
		if err != nil {
			return "⚠️ Please send a number.", nil
		}
		h.sessions.Reset(caller.Id)
		return h.applyBalance(ctx, caller, coordinator.BalanceRequest{UserId: s.TargetUserId, Mode: s.Mode, Amount: amount}), nil

	case session.StepAdminAwaitingBroadcast:
		h.sessions.Reset(caller.Id)
		return h.broadcast(ctx, caller, text), nil
	}

	// A sale started before a restart still waits for its wallet.
	if open := h.coord.PendingSaleAwaitingWallet(ctx, caller); open.OK {
		return h.saleWallet(ctx, caller, open.Value.Id, text)
	}
	return "Use /help to see available commands.", nil
}

// retryOrReset keeps the step for bad input so the user can try again, and
// ends the flow on any other refusal.
func (h *Handlers) retryOrReset(caller coordinator.Caller, kind apperr.Kind, message string) string {
	if kind == apperr.KindInvalidInput || kind == apperr.KindInsufficientBalance {
		return FormatFailure(kind, message) + "\nTry again or /cancel."
	}
	h.sessions.Reset(caller.Id)
	return FormatFailure(kind, message)
}

func (h *Handlers) withdrawalAmount(ctx context.Context, caller coordinator.Caller, text string) (string, error) {
	amount, err := ParseAmount(text)
	if err != nil {
		return "⚠️ Please send the amount as a number, e.g. 250", nil
	}
	res := h.coord.CheckWithdrawal(ctx, caller, amount)
	if !res.OK {
		return h.retryOrReset(caller, res.Kind, res.Message), nil
	}
	err = h.sessions.Advance(caller.Id, session.Session{Step: session.StepAwaitingWithdrawalWallet, Amount: amount})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Withdrawing %s. Send the wallet address to pay out to.", usd(amount)), nil
}

func (h *Handlers) stockShares(ctx context.Context, caller coordinator.Caller, text string) (string, error) {
	s := h.sessions.Get(caller.Id)
	shares, err := ParseAmount(text)
	if err != nil {
		return "⚠️ Please send the number of shares, e.g. 2.5", nil
	}
	res := h.coord.SellStock(ctx, caller, coordinator.SellRequest{StockId: s.StockId, Shares: shares})
	if !res.OK {
		return h.retryOrReset(caller, res.Kind, res.Message), nil
	}
	sale := res.Value.Sale
	err = h.sessions.Advance(caller.Id, session.Session{Step: session.StepAwaitingStockSaleWallet, StockId: s.StockId, SaleId: sale.Id})
	if err != nil {
		return "", err
	}

	reply := fmt.Sprintf("Selling %s shares of %s at %s = %s.", sale.Shares, sale.Ticker, usd(sale.Price), usd(sale.TotalValue))
	if res.Value.Fallback {
		reply += "\nLive prices are unavailable, so your purchase price was used."
	}
	return reply + "\nSend the wallet address to pay out to.", nil
}

func (h *Handlers) saleWallet(ctx context.Context, caller coordinator.Caller, saleId int64, text string) (string, error) {
	res := h.coord.AttachSaleWallet(ctx, caller, saleId, text)
	if !res.OK {
		if res.Kind == apperr.KindInvalidInput {
			return fmt.Sprintf("%s\nSale #%d is waiting for a payout wallet.", FormatFailure(res.Kind, res.Message), saleId), nil
		}
		h.sessions.Reset(caller.Id)
		return failure(res), nil
	}
	h.sessions.Reset(caller.Id)
	return fmt.Sprintf("✅ Sale #%d submitted for review. %s will be added to your balance once confirmed.", res.Value.Id, usd(res.Value.TotalValue)), nil
}
