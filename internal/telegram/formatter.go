package telegram

import (
	"fmt"
	"strings"

	"invest-bot-go/internal/apperr"
	"invest-bot-go/internal/coordinator"
	"invest-bot-go/internal/models"
	"invest-bot-go/internal/stock"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

func usd(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

func price(d decimal.NullDecimal) string {
	if !d.Valid {
		return "price unavailable"
	}
	return usd(d.Decimal)
}

// FormatFailure renders a refused intent for the user.
func FormatFailure(kind apperr.Kind, message string) string {
	switch kind {
	case apperr.KindNotRegistered:
		return "You are not registered yet. Use /register to create an account."
	case apperr.KindUnauthorised:
		return "⛔ This command is restricted to operators."
	case apperr.KindExternalUnavailable:
		return "⏳ " + message + " Please try again later."
	}
	return "⚠️ " + message
}

func failure[T any](res coordinator.Result[T]) string {
	return FormatFailure(res.Kind, res.Message)
}

func formatPlans() string {
	var sb strings.Builder
	sb.WriteString("📈 Investment plans\n")
	for _, t := range models.Plans() {
		sb.WriteString(fmt.Sprintf("• %s: /invest %s <crypto> <amount>\n", t.Label(), t.Plan))
	}
	kinds := make([]string, 0, len(models.CryptoKinds))
	for _, k := range models.CryptoKinds {
		kinds = append(kinds, string(k))
	}
	sb.WriteString("Accepted crypto: " + strings.Join(kinds, ", "))
	return sb.String()
}

func formatPortfolio(p *coordinator.Portfolio) string {
	var sb strings.Builder
	u := p.User

	sb.WriteString("💼 Portfolio\n\n")
	if p.Terms != nil {
		sb.WriteString(fmt.Sprintf("Plan: %s\n", p.Terms.Label()))
	} else {
		sb.WriteString("Plan: none yet, see /invest\n")
	}
	sb.WriteString(fmt.Sprintf("Total invested: %s\n", usd(u.TotalInvested)))
	sb.WriteString(fmt.Sprintf("Balance: %s\n", usd(u.CurrentBalance)))
	sb.WriteString(fmt.Sprintf("Profit earned: %s\n", usd(u.ProfitEarned)))

	if len(p.Positions) > 0 {
		sb.WriteString("\n📊 Stocks\n")
		for _, pos := range p.Positions {
			sb.WriteString(formatPosition(pos))
		}
	}

	pending := 0
	for _, inv := range p.Investments {
		if inv.Status == models.StatusPending {
			pending++
		}
	}
	for _, w := range p.Withdrawals {
		if w.Status == models.StatusPending {
			pending++
		}
	}
	for _, s := range p.Sales {
		if s.Status.Open() {
			pending++
		}
	}
	if pending > 0 {
		sb.WriteString(fmt.Sprintf("\n⏳ %d request(s) awaiting review\n", pending))
	}
	return sb.String()
}

func formatPosition(pos stock.Position) string {
	inv := pos.Investment
	line := fmt.Sprintf("#%d %s: %s shares @ %s", inv.Id, inv.Ticker, inv.Shares, usd(inv.PurchasePrice))
	if !pos.Price.Valid {
		return line + ", price unavailable\n"
	}
	sign := ""
	if pos.PnL.Decimal.IsPositive() {
		sign = "+"
	}
	return fmt.Sprintf("%s, now %s = %s (%s%s)\n", line, usd(pos.Price.Decimal), usd(pos.Value.Decimal), sign, usd(pos.PnL.Decimal))
}

func formatHoldings(holdings []models.StockInvestment) string {
	if len(holdings) == 0 {
		return "You have no confirmed stock positions. Use /buy to open one."
	}
	var sb strings.Builder
	sb.WriteString("Your positions:\n")
	for _, inv := range holdings {
		sb.WriteString(fmt.Sprintf("• #%d %s: %s shares\n", inv.Id, inv.Ticker, inv.Shares))
	}
	sb.WriteString("\nSell with /sell <id> <shares>")
	return sb.String()
}

func formatProfile(v *coordinator.ProfileView) string {
	var sb strings.Builder
	u := v.User
	sb.WriteString("👤 Profile\n\n")
	sb.WriteString(fmt.Sprintf("Name: %s\nEmail: %s\nMember since: %s\n", u.FullName, u.Email, u.RegisteredAt.Format(dateLayout)))
	if v.Terms != nil {
		sb.WriteString(fmt.Sprintf("Plan: %s\n", v.Terms.Name))
	}
	sb.WriteString(fmt.Sprintf("Pending investments: %d\nPending withdrawals: %d\n", v.PendingInvestments, v.PendingWithdrawals))
	sb.WriteString(fmt.Sprintf("\n🎁 Referral code: %s\n", u.ReferralCode))
	sb.WriteString(fmt.Sprintf("Invite link: /start %s\n", u.ReferralCode))
	sb.WriteString(fmt.Sprintf("Bonus: %s\n", v.BonusPolicy))
	if v.Referrals != nil {
		sb.WriteString(fmt.Sprintf("Friends invited: %d, bonuses earned: %s\n", v.Referrals.Invited, usd(v.Referrals.BonusTotal)))
	}
	return sb.String()
}

func formatPrices(quotes []stock.Quote) string {
	if len(quotes) == 0 {
		return "No tickers configured."
	}
	var sb strings.Builder
	sb.WriteString("💹 Prices\n")
	for _, q := range quotes {
		sb.WriteString(fmt.Sprintf("• %s: %s\n", q.Ticker, price(q.Price)))
	}
	return sb.String()
}

func formatLeaderboard(users []models.User) string {
	if len(users) == 0 {
		return "No investors yet."
	}
	var sb strings.Builder
	sb.WriteString("🏆 Top investors by profit\n")
	for i, u := range users {
		sb.WriteString(fmt.Sprintf("%d. %s: %s\n", i+1, u.FullName, usd(u.ProfitEarned)))
	}
	return sb.String()
}

func formatUsers(users []models.User) string {
	if len(users) == 0 {
		return "No registered users."
	}
	var sb strings.Builder
	for _, u := range users {
		plan := string(u.Plan)
		if plan == "" {
			plan = "-"
		}
		sb.WriteString(fmt.Sprintf("%s %s | %s | invested %s | balance %s\n",
			u.Id, u.FullName, plan, usd(u.TotalInvested), usd(u.CurrentBalance)))
	}
	return sb.String()
}

func formatAudit(entries []models.AuditEntry) string {
	if len(entries) == 0 {
		return "Audit log is empty."
	}
	var sb strings.Builder
	for _, e := range entries {
		target := e.TargetUserId
		if target == "" {
			target = "-"
		}
		sb.WriteString(fmt.Sprintf("%s %s by %s on %s", e.CreatedAt.Format("2006-01-02 15:04"), e.Action, e.AdminId, target))
		if e.Amount.Valid {
			sb.WriteString(" " + usd(e.Amount.Decimal))
		}
		if e.OldBalance.Valid && e.NewBalance.Valid {
			sb.WriteString(fmt.Sprintf(" (%s -> %s)", usd(e.OldBalance.Decimal), usd(e.NewBalance.Decimal)))
		}
		if e.Note != "" {
			sb.WriteString(": " + e.Note)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

const helpText = `🤖 Commands
/register - create your account
/portfolio - balances, plan and stock positions
/profile - account details and referral code
/invest <plan> <crypto> <amount> - declare a crypto deposit
/withdraw [amount] - request a withdrawal
/buy <ticker> <amount> - buy a stock position
/sell [id] [shares] - sell shares of a position
/prices - live stock prices
/leaderboard - top investors
/cancel - abandon the current step`

const adminHelpText = `🛠 Operator commands
/confirm_investment <user> [amount]
/reject_investment <user>
/confirm_withdrawal <user> [amount]
/reject_withdrawal <user>
/confirm_stock <user> [amount]
/reject_stock <user>
/confirm_stock_sale <user> [amount]
/reject_stock_sale <user>
/balance <user> <add|subtract|set|reset> [amount] [note]
/add_stock <user> <ticker> <shares> <price>
/edit_investment <id> <amount|plan|status> <value>
/edit_stock <id> <amount|price|shares> <value>
/recalc_stock <id>
/delete_stock <id>
/set_profit <user> <value>
/delete_user <user>
/users
/audit [user|all] [limit]
/accrue
/broadcast [text]`
