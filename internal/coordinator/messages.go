package coordinator

import (
	"fmt"

	"invest-bot-go/internal/models"
	"invest-bot-go/internal/notify"

	"github.com/shopspring/decimal"
)

func usd(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

func who(user *models.User) string {
	if user.Handle != "" {
		return fmt.Sprintf("%s (%s)", user.Handle, user.Id)
	}
	return user.Id
}

func msgNewInvestment(inv *models.CryptoInvestment) notify.Message {
	body := fmt.Sprintf("New investment #%d from user %s: %s in %s, plan %s, tx %s.\nConfirm with /confirm_investment %s",
		inv.Id, inv.UserId, usd(inv.Amount), inv.Kind, inv.Plan, inv.TxId, inv.UserId)
	if inv.Note != "" {
		body += "\nNote: " + inv.Note
	}
	return notify.Plain(body)
}

func msgInvestmentConfirmed(inv *models.CryptoInvestment, user *models.User) notify.Message {
	return notify.Plain(fmt.Sprintf("Your investment of %s has been confirmed. Balance: %s, plan: %s.",
		usd(inv.Amount), usd(user.CurrentBalance), inv.Plan))
}

func msgInvestmentRejected(inv *models.CryptoInvestment) notify.Message {
	return notify.Plain(fmt.Sprintf("Your investment #%d of %s was rejected. Contact support if you believe this is a mistake.",
		inv.Id, usd(inv.Amount)))
}

func msgReferralBonus(amount decimal.Decimal) notify.Message {
	return notify.Plain(fmt.Sprintf("Your friend's first investment was confirmed. %s referral bonus has been added to your balance.", usd(amount)))
}

func msgReferralJoined(user *models.User) notify.Message {
	return notify.Plain(fmt.Sprintf("%s joined with your referral code.", user.FullName))
}

func msgNewWithdrawal(w *models.Withdrawal) notify.Message {
	return notify.Plain(fmt.Sprintf("New withdrawal #%d from user %s: %s to %s.\nConfirm with /confirm_withdrawal %s",
		w.Id, w.UserId, usd(w.Amount), w.WalletAddress, w.UserId))
}

func msgWithdrawalConfirmed(w *models.Withdrawal, user *models.User) notify.Message {
	return notify.Plain(fmt.Sprintf("Your withdrawal of %s to %s has been sent. Balance: %s.",
		usd(w.Amount), w.WalletAddress, usd(user.CurrentBalance)))
}

func msgWithdrawalRejected(w *models.Withdrawal) notify.Message {
	return notify.Plain(fmt.Sprintf("Your withdrawal #%d of %s was rejected. Your balance is unchanged.", w.Id, usd(w.Amount)))
}

func msgNewStockPurchase(inv *models.StockInvestment, details string) notify.Message {
	body := fmt.Sprintf("New stock purchase #%d from user %s: %s of %s at %s (%s shares).\nConfirm with /confirm_stock %s",
		inv.Id, inv.UserId, usd(inv.Amount), inv.Ticker, inv.PurchasePrice, inv.Shares, inv.UserId)
	if details != "" {
		body += "\nPayment: " + details
	}
	return notify.Plain(body)
}

func msgStockConfirmed(inv *models.StockInvestment) notify.Message {
	return notify.Plain(fmt.Sprintf("Your purchase of %s shares of %s (%s) has been confirmed.", inv.Shares, inv.Ticker, usd(inv.Amount)))
}

func msgStockRejected(inv *models.StockInvestment) notify.Message {
	return notify.Plain(fmt.Sprintf("Your purchase #%d of %s was rejected.", inv.Id, inv.Ticker))
}

func msgStockAdded(inv *models.StockInvestment) notify.Message {
	return notify.Plain(fmt.Sprintf("%s shares of %s at %s were added to your portfolio.", inv.Shares, inv.Ticker, inv.PurchasePrice))
}

func msgNewStockSale(sale *models.StockSale) notify.Message {
	return notify.Plain(fmt.Sprintf("New stock sale #%d from user %s: %s shares of %s at %s = %s to %s.\nConfirm with /confirm_stock_sale %s",
		sale.Id, sale.UserId, sale.Shares, sale.Ticker, sale.Price, usd(sale.TotalValue), sale.WalletAddress, sale.UserId))
}

func msgStockSaleConfirmed(sale *models.StockSale, user *models.User) notify.Message {
	return notify.Plain(fmt.Sprintf("Your sale of %s shares of %s has been confirmed. %s was added to your balance (now %s).",
		sale.Shares, sale.Ticker, usd(sale.TotalValue), usd(user.CurrentBalance)))
}

func msgStockSaleRejected(sale *models.StockSale) notify.Message {
	return notify.Plain(fmt.Sprintf("Your sale #%d of %s was rejected. Your shares are unchanged.", sale.Id, sale.Ticker))
}

func msgBalanceChanged(old, next decimal.Decimal) notify.Message {
	return notify.Plain(fmt.Sprintf("Your balance was updated by an operator: %s -> %s.", usd(old), usd(next)))
}

func msgProfitCredited(amount decimal.Decimal, days int64) notify.Message {
	return notify.Plain(fmt.Sprintf("Daily profit credited: %s for %d day(s).", usd(amount), days))
}

func msgNewUser(user *models.User) notify.Message {
	return notify.Plain(fmt.Sprintf("New user registered: %s, %s.", who(user), user.Email))
}

func msgBroadcast(text string) notify.Message {
	return notify.Plain(text)
}
